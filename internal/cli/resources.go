package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-freightsync/model"
	"github.com/goliatone/go-freightsync/pkg/di"
	"github.com/goliatone/go-freightsync/resource"
)

type resourceCmd[T any] struct {
	use     string
	short   string
	client  func(*di.Container) *resource.Client[T]
	columns []column[T]
}

var orderColumns = []column[model.Order]{
	{"ID", func(o model.Order) any { return o.ID }},
	{"Title", func(o model.Order) any { return o.Title }},
	{"Status", func(o model.Order) any { return o.Status }},
	{"Origin", func(o model.Order) any { return refName(o.Origin, locationName) }},
	{"Destination", func(o model.Order) any { return refName(o.Destination, locationName) }},
	{"Load", func(o model.Order) any { return refName(o.LoadType, entryName) }},
	{"Weight", func(o model.Order) any { return o.Weight }},
}

var truckColumns = []column[model.Truck]{
	{"ID", func(t model.Truck) any { return t.ID }},
	{"Plate", func(t model.Truck) any { return t.Plate }},
	{"Country", func(t model.Truck) any { return t.Country }},
	{"Status", func(t model.Truck) any { return t.Status }},
	{"Pricing", func(t model.Truck) any { return refName(t.PricingType, entryName) }},
	{"Capacity", func(t model.Truck) any { return t.Capacity }},
}

var entryColumns = []column[model.Entry]{
	{"ID", func(e model.Entry) any { return e.ID }},
	{"Code", func(e model.Entry) any { return e.Code }},
	{"Name", func(e model.Entry) any { return e.Name }},
}

func newOrdersCmd(a *app) *cobra.Command {
	return resourceCmd[model.Order]{
		use:     "orders",
		short:   "Manage freight orders",
		client:  func(c *di.Container) *resource.Client[model.Order] { return c.Orders },
		columns: orderColumns,
	}.build(a)
}

func newTrucksCmd(a *app) *cobra.Command {
	return resourceCmd[model.Truck]{
		use:     "trucks",
		short:   "Manage trucks",
		client:  func(c *di.Container) *resource.Client[model.Truck] { return c.Trucks },
		columns: truckColumns,
	}.build(a)
}

func (r resourceCmd[T]) build(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   r.use,
		Short: r.short,
	}
	cmd.AddCommand(
		r.listCmd(a),
		r.getCmd(a),
		r.createCmd(a),
		r.updateCmd(a),
		r.statusCmd(a),
		r.deleteCmd(a),
	)
	return cmd
}

func (r resourceCmd[T]) resolve(a *app) (*resource.Client[T], error) {
	c, err := a.client()
	if err != nil {
		return nil, err
	}
	return r.client(c), nil
}

func (r resourceCmd[T]) listCmd(a *app) *cobra.Command {
	var (
		mine    bool
		filters []string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List " + r.use,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := r.resolve(a)
			if err != nil {
				return err
			}
			if mine && len(filters) > 0 {
				return fmt.Errorf("--mine and --filter cannot be combined")
			}

			var items []T
			if mine {
				items, err = client.Mine(cmd.Context())
			} else {
				state, perr := parseFilters(filters)
				if perr != nil {
					return perr
				}
				items, err = client.Filter(cmd.Context(), state)
			}
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), items, func() {
				printTable(cmd.OutOrStdout(), r.columns, items)
			})
		},
	}
	cmd.Flags().BoolVar(&mine, "mine", false, "only my "+r.use)
	cmd.Flags().StringArrayVar(&filters, "filter", nil, "filter as key=value, repeatable; comma separated values match any")
	return cmd
}

func (r resourceCmd[T]) getCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := r.resolve(a)
			if err != nil {
				return err
			}
			item, err := client.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), item, func() {
				printTable(cmd.OutOrStdout(), r.columns, []T{item})
			})
		},
	}
}

func (r resourceCmd[T]) createCmd(a *app) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "create -f <file>",
		Short: "Create an item from a YAML file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := r.resolve(a)
			if err != nil {
				return err
			}
			doc, err := readPayload[T](file, cmd.InOrStdin())
			if err != nil {
				return err
			}
			created, err := client.Create(cmd.Context(), doc)
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), created, func() {
				printTable(cmd.OutOrStdout(), r.columns, []T{created})
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML payload, - for stdin")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func (r resourceCmd[T]) updateCmd(a *app) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "update <id> -f <file>",
		Short: "Replace an item with a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := r.resolve(a)
			if err != nil {
				return err
			}
			doc, err := readPayload[T](file, cmd.InOrStdin())
			if err != nil {
				return err
			}
			updated, err := client.Update(cmd.Context(), args[0], doc)
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), updated, func() {
				printTable(cmd.OutOrStdout(), r.columns, []T{updated})
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML payload, - for stdin")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func (r resourceCmd[T]) statusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status <id> <status>",
		Short: "Change the status of an item",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := r.resolve(a)
			if err != nil {
				return err
			}
			item, err := client.PatchStatus(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), item, func() {
				printTable(cmd.OutOrStdout(), r.columns, []T{item})
			})
		},
	}
}

func (r resourceCmd[T]) deleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := r.resolve(a)
			if err != nil {
				return err
			}
			if err := client.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s %s\n", client.Definition().Name, args[0])
			return nil
		},
	}
}
