package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/marketcache/internal/app"
	"github.com/jonwraymond/marketcache/tools"
)

func newCallCmd(o *rootOptions) *cobra.Command {
	var (
		pairs   []string
		rawJSON string
	)
	c := &cobra.Command{
		Use:   "call <tool>",
		Short: "Run one tool and print its output as JSON",
		Example: `  marketcache call index_history --arg symbol=000300 --arg start_date=20240101
  marketcache call option_chain --json '{"symbol":"510050"}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			toolArgs, err := parseToolArgs(rawJSON, pairs)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			return o.withApp(ctx, func(a *app.App) error {
				out, err := a.Tools.Call(ctx, args[0], toolArgs)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), out)
			})
		},
	}
	c.Flags().StringArrayVarP(&pairs, "arg", "a", nil, "tool argument as key=value (repeatable)")
	c.Flags().StringVar(&rawJSON, "json", "", "tool arguments as a JSON object")
	return c
}

// parseToolArgs merges a JSON object with key=value pairs; pairs win.
func parseToolArgs(rawJSON string, pairs []string) (tools.Args, error) {
	args := tools.Args{}
	if rawJSON != "" {
		if err := json.Unmarshal([]byte(rawJSON), &args); err != nil {
			return nil, fmt.Errorf("--json: %w", err)
		}
	}
	kv, err := parsePairs(pairs)
	if err != nil {
		return nil, err
	}
	for k, v := range kv {
		args[k] = v
	}
	return args, nil
}

func parsePairs(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("argument %q: want key=value", p)
		}
		out[k] = strings.TrimSpace(v)
	}
	return out, nil
}
