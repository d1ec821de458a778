package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/goliatone/go-freightsync/internal/config"
	"github.com/goliatone/go-freightsync/pkg/di"
)

var errNotReady = errors.New("client not initialized")

// app carries what the commands share: the flags and the container built
// from them.
type app struct {
	v          *viper.Viper
	configPath string
	verbose    bool
	jsonOut    bool
	opts       []di.Option

	container *di.Container
}

// Execute runs the CLI with ctx.
func Execute(ctx context.Context) error {
	return newRootCmd().ExecuteContext(ctx)
}

func newRootCmd(opts ...di.Option) *cobra.Command {
	a := &app{v: viper.New(), opts: opts}

	rootCmd := &cobra.Command{
		Use:           "freightctl",
		Short:         "Freight marketplace client",
		Long:          "freightctl reads and edits orders, trucks and dictionaries of the freight marketplace through the caching client, and reports the session state.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if a.container != nil {
				a.container.Close()
			}
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "config file (default freightsync.yaml)")
	flags.String("base-url", "", "backend base URL, overrides "+config.BaseURLEnv)
	flags.String("token", "", "bearer token")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "log to stderr")
	flags.BoolVar(&a.jsonOut, "json", false, "output JSON")
	_ = a.v.BindPFlag("base_url", flags.Lookup("base-url"))
	_ = a.v.BindPFlag("token", flags.Lookup("token"))

	rootCmd.AddCommand(
		newOrdersCmd(a),
		newTrucksCmd(a),
		newLocationsCmd(a),
		newDictionaryCmd(a),
		newSessionCmd(a),
	)

	return rootCmd
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.LoadWith(a.v, a.configPath)
	if err != nil {
		return err
	}

	opts := append([]di.Option(nil), a.opts...)
	if a.verbose {
		logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelDebug}))
		opts = append(opts, di.WithLogger(logger))
	}

	container, err := di.NewContainer(cfg, opts...)
	if err != nil {
		return fmt.Errorf("build client: %w", err)
	}
	a.container = container
	return nil
}

func (a *app) client() (*di.Container, error) {
	if a.container == nil {
		return nil, errNotReady
	}
	return a.container, nil
}
