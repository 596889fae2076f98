// Package cmd implements the marketcache CLI commands.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/marketcache/config"
	"github.com/jonwraymond/marketcache/internal/app"
)

type rootOptions struct {
	configFile string
	envFiles   []string

	// appOpts is set by tests to inject a fetcher or clock.
	appOpts []app.Option
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&rootOptions{})
}

func newRootCmd(o *rootOptions) *cobra.Command {
	root := &cobra.Command{
		Use:   "marketcache",
		Short: "Incremental cache for market-data tools",
		Long: `marketcache caches date-ranged market data and fetches only missing ranges upstream.

Commands:
    serve          - HTTP tool server with health and metrics
    call           - run one tool and print its output
    cache get      - show a cached entry
    cache clear    - remove every entry in the namespace
`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVarP(&o.configFile, "config", "c", "", "YAML config file (default: built-in defaults)")
	root.PersistentFlags().StringSliceVar(&o.envFiles, "env", []string{".env"}, "dotenv files loaded before the config")

	root.AddCommand(newServeCmd(o))
	root.AddCommand(newCallCmd(o))
	root.AddCommand(newCacheCmd(o))
	return root
}

// Execute runs the root command with a signal-aware context.
func Execute() error {
	ctx, stop := signalContext(context.Background())
	defer stop()
	return NewRootCmd().ExecuteContext(ctx)
}

func (o *rootOptions) loadConfig(ctx context.Context) (*config.Config, error) {
	return config.Load(ctx, o.configFile, o.envFiles...)
}

// withApp loads the config, builds the app, runs fn and closes the app.
func (o *rootOptions) withApp(ctx context.Context, fn func(*app.App) error) error {
	cfg, err := o.loadConfig(ctx)
	if err != nil {
		return err
	}
	a, err := app.New(ctx, cfg, o.appOpts...)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(context.WithoutCancel(ctx)); cerr != nil {
			fmt.Fprintln(os.Stderr, "close:", cerr)
		}
	}()
	return fn(a)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
