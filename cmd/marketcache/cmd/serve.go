package cmd

import (
	"github.com/spf13/cobra"

	"github.com/jonwraymond/marketcache/internal/app"
	"github.com/jonwraymond/marketcache/observe"
)

func newServeCmd(o *rootOptions) *cobra.Command {
	var addr string
	c := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP tool server",
		Long: `Run the HTTP tool server until interrupted.

Routes:
    GET  /tools           list tools
    POST /tools/{name}    call a tool with a JSON object of arguments
    GET  /healthz /readyz /health /health/{name}
    GET  /metrics         when observe.metrics uses the prometheus exporter`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			return o.withApp(ctx, func(a *app.App) error {
				if addr != "" {
					a.Config.Server.Addr = addr
				}
				a.Telemetry.Logger.Info(ctx, "starting server",
					observe.F("addr", a.Config.Server.Addr),
					observe.F("cache_backend", a.Cache.Backend()))
				return a.Server().ListenAndServe(ctx)
			})
		},
	}
	c.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return c
}
