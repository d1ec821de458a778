package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-freightsync/model"
	"github.com/goliatone/go-freightsync/pkg/di"
	"github.com/goliatone/go-freightsync/resource"
)

var locationColumns = []column[model.Location]{
	{"ID", func(l model.Location) any { return l.ID }},
	{"Name", func(l model.Location) any { return l.Name }},
	{"Country", func(l model.Location) any { return l.Country }},
}

func newLocationsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "locations",
		Short: "Search locations",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "search <text>",
		Short: "Search locations by name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			found, err := c.Locations.Search(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), found, func() {
				printTable(cmd.OutOrStdout(), locationColumns, found)
			})
		},
	})
	return cmd
}

// dictionaries maps CLI names to the dictionary clients.
func dictionaries(c *di.Container) map[string]*resource.Client[model.Entry] {
	return map[string]*resource.Client[model.Entry]{
		"load-types":          c.LoadTypes,
		"load-packages":       c.LoadPackages,
		"truck-options":       c.TruckOptions,
		"truck-load-types":    c.TruckLoadTypes,
		"truck-pricing-types": c.TruckPricingTypes,
	}
}

func newDictionaryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dict",
		Short: "Read backend dictionaries",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list <name>",
		Short: "List a dictionary (load-types, load-packages, truck-options, truck-load-types, truck-pricing-types)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			all := dictionaries(c)
			client, ok := all[args[0]]
			if !ok {
				names := make([]string, 0, len(all))
				for name := range all {
					names = append(names, name)
				}
				sort.Strings(names)
				return fmt.Errorf("unknown dictionary %q, want one of %s", args[0], strings.Join(names, ", "))
			}
			entries, err := client.List(cmd.Context())
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), entries, func() {
				printTable(cmd.OutOrStdout(), entryColumns, entries)
			})
		},
	})
	return cmd
}
