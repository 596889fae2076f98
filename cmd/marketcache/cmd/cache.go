package cmd

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/marketcache/cache"
	"github.com/jonwraymond/marketcache/dataservice"
	"github.com/jonwraymond/marketcache/internal/app"
	"github.com/jonwraymond/marketcache/record"
	"github.com/jonwraymond/marketcache/tradedate"
)

func newCacheCmd(o *rootOptions) *cobra.Command {
	c := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the cache",
	}
	c.AddCommand(newCacheGetCmd(o), newCacheClearCmd(o))
	return c
}

func newCacheClearCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every entry in the configured namespace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			return o.withApp(ctx, func(a *app.App) error {
				if err := a.Cache.ClearAll(ctx); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "cleared namespace %q on %s backend\n",
					a.Config.Cache.Namespace, a.Cache.Backend())
				return nil
			})
		},
	}
}

type entryView struct {
	Key       string           `json:"key"`
	Records   int              `json:"records"`
	From      string           `json:"from,omitempty"`
	Latest    string           `json:"latest,omitempty"`
	Through   string           `json:"through,omitempty"`
	WrittenAt string           `json:"written_at"`
	TTL       string           `json:"ttl"`
	Rows      []map[string]any `json:"rows"`
}

func newCacheGetCmd(o *rootOptions) *cobra.Command {
	var (
		freq   string
		locale string
	)
	c := &cobra.Command{
		Use:     "get <resource> [key=value ...]",
		Short:   "Show the cached series entry for a resource and its parameters",
		Example: `  marketcache cache get index_history symbol=000300 adjust=qfq`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := parsePairs(args[1:])
			if err != nil {
				return err
			}
			f, err := tradedate.ParseFreq(freq)
			if err != nil {
				return err
			}
			if len(params) == 0 {
				params = nil
			}
			ctx := cmd.Context()
			return o.withApp(ctx, func(a *app.App) error {
				key, err := a.Service.KeyFor(dataservice.Request{Resource: args[0], Params: params, Freq: f})
				if err != nil {
					return err
				}
				e, ok := a.Cache.GetEntry(ctx, key)
				if !ok {
					return fmt.Errorf("no cached entry for %s", key)
				}
				return printJSON(cmd.OutOrStdout(), viewEntry(key, e, record.ParseLocale(locale)))
			})
		},
	}
	c.Flags().StringVar(&freq, "freq", "daily", "series frequency: daily, weekly, monthly")
	c.Flags().StringVar(&locale, "locale", "en", "column labels: en or zh")
	return c
}

func viewEntry(key string, e *cache.Entry, loc record.Locale) entryView {
	schema := fieldsOf(e.Records)
	v := entryView{
		Key:       key,
		Records:   e.Len(),
		From:      day(e.From),
		Through:   day(e.Through),
		WrittenAt: e.WrittenAt.Format(time.RFC3339),
		TTL:       e.TTL.String(),
		Rows:      make([]map[string]any, e.Len()),
	}
	if e.Len() > 0 {
		v.Latest = day(e.Latest())
	}
	for i, r := range e.Records {
		v.Rows[i] = record.Localize(r, schema, loc)
	}
	return v
}

// fieldsOf lists every field present in recs, date first.
func fieldsOf(recs []record.Record) record.Schema {
	seen := map[record.Field]bool{}
	var fields record.Schema
	for _, r := range recs {
		for f := range r {
			if !seen[f] {
				seen[f] = true
				fields = append(fields, f)
			}
		}
	}
	slices.SortFunc(fields, func(a, b record.Field) int {
		switch {
		case a == b:
			return 0
		case a == record.FieldDate:
			return -1
		case b == record.FieldDate:
			return 1
		}
		return cmp.Compare(a, b)
	})
	return fields
}

func day(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}
