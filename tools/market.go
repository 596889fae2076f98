package tools

import (
	"context"
	"strings"

	"github.com/jonwraymond/marketcache/cache"
	"github.com/jonwraymond/marketcache/dataservice"
	"github.com/jonwraymond/marketcache/record"
	"github.com/jonwraymond/marketcache/upstream"
)

// Snapshot resource names.
const (
	ResourceNews        = "market_news"
	ResourceOptionChain = "option_chain"
)

// Snapshot schemas.
var (
	NewsSchema        = record.Schema{record.FieldDate, record.FieldTitle, record.FieldContent, record.FieldSource, record.FieldURL}
	OptionChainSchema = record.Schema{record.FieldExpiry, record.FieldStrike, record.FieldCallPrice, record.FieldPutPrice}
)

// Deps are the components the market tools run on.
type Deps struct {
	Service  *dataservice.Service
	Snapshot *cache.Snapshot
	Fetcher  upstream.Fetcher
}

// RegisterMarketTools registers the history and snapshot tools.
func RegisterMarketTools(r *Registry, d Deps) error {
	index := dataservice.NewIndexService(d.Service)
	turnover := dataservice.NewTurnoverService(d.Service)
	margin := dataservice.NewMarginService(d.Service)
	macro := dataservice.NewMacroService(d.Service)

	ts := []Tool{
		{
			Name:        "index_history",
			Description: "Daily, weekly, monthly or minute bars of a market index.",
			Category:    CategoryHistory,
			Resource:    dataservice.ResourceIndexHistory,
			Args: []Arg{
				{Name: "symbol", Description: "Index code, e.g. 000300.", Required: true},
				{Name: "freq", Description: "day (default), week, month or a minute count."},
				{Name: "adjust", Description: "Price adjustment: empty, qfq or hfq."},
				argStartDate, argEndDate, argLocale,
			},
			Handler: func(ctx context.Context, a Args) (*Output, error) {
				symbol, err := a.Required("symbol")
				if err != nil {
					return nil, err
				}
				freq, err := a.Freq()
				if err != nil {
					return nil, err
				}
				rng, err := a.Range()
				if err != nil {
					return nil, err
				}
				res, err := index.History(ctx, symbol, freq, strings.ToLower(a.String("adjust")), rng)
				if err != nil {
					return nil, err
				}
				return fromResult(res, dataservice.IndexSchema, a.Locale()), nil
			},
		},
		{
			Name:        "turnover_history",
			Description: "Daily turnover of the Shanghai and Shenzhen exchanges and their total.",
			Category:    CategoryHistory,
			Resource:    "turnover",
			Args:        []Arg{argStartDate, argEndDate, argLocale},
			Handler: func(ctx context.Context, a Args) (*Output, error) {
				rng, err := a.Range()
				if err != nil {
					return nil, err
				}
				res, err := turnover.History(ctx, rng)
				if err != nil {
					return nil, err
				}
				return fromResult(res, dataservice.TurnoverSchema, a.Locale()), nil
			},
		},
		{
			Name:        "margin_history",
			Description: "Daily margin-trading balances of one exchange.",
			Category:    CategoryHistory,
			Resource:    dataservice.ResourceMargin,
			Args: []Arg{
				{Name: "exchange", Description: "sh (default) or sz."},
				argStartDate, argEndDate, argLocale,
			},
			Handler: func(ctx context.Context, a Args) (*Output, error) {
				rng, err := a.Range()
				if err != nil {
					return nil, err
				}
				exchange := a.String("exchange")
				if exchange == "" {
					exchange = "sh"
				}
				res, err := margin.History(ctx, exchange, rng)
				if err != nil {
					return nil, err
				}
				return fromResult(res, dataservice.MarginSchema, a.Locale()), nil
			},
		},
		{
			Name:        "macro_series",
			Description: "Monthly macroeconomic indicator values.",
			Category:    CategoryHistory,
			Resource:    dataservice.ResourceMacro,
			Args: []Arg{
				{Name: "indicator", Description: "Indicator name, e.g. cpi or pmi.", Required: true},
				argStartDate, argEndDate, argLocale,
			},
			Handler: func(ctx context.Context, a Args) (*Output, error) {
				indicator, err := a.Required("indicator")
				if err != nil {
					return nil, err
				}
				rng, err := a.Range()
				if err != nil {
					return nil, err
				}
				res, err := macro.Series(ctx, indicator, rng)
				if err != nil {
					return nil, err
				}
				return fromResult(res, dataservice.MacroSchema, a.Locale()), nil
			},
		},
		{
			Name:        "market_news",
			Description: "Latest market news, optionally for one symbol.",
			Category:    CategorySnapshot,
			Resource:    ResourceNews,
			Args: []Arg{
				{Name: "symbol", Description: "Stock or index code. Empty means the whole market."},
				argLocale,
			},
			Handler: snapshotHandler(d, ResourceNews, NewsSchema, []string{"symbol"}, nil),
		},
		{
			Name:        "option_chain",
			Description: "Call and put prices by strike for one underlying.",
			Category:    CategorySnapshot,
			Resource:    ResourceOptionChain,
			Args: []Arg{
				{Name: "symbol", Description: "Underlying code, e.g. 510050.", Required: true},
				{Name: "expiry", Description: "Expiry month, e.g. 2023-03. Empty means the nearest."},
				argLocale,
			},
			Handler: snapshotHandler(d, ResourceOptionChain, OptionChainSchema, []string{"symbol", "expiry"}, []string{"symbol"}),
		},
	}

	for _, t := range ts {
		if err := r.Register(t); err != nil {
			return err
		}
	}
	return nil
}

// snapshotHandler fetches the whole result of resource through the snapshot
// cache. The non-empty params arguments become query parameters and the
// cache key.
func snapshotHandler(d Deps, resource string, schema record.Schema, params, required []string) Handler {
	return func(ctx context.Context, a Args) (*Output, error) {
		for _, name := range required {
			if _, err := a.Required(name); err != nil {
				return nil, err
			}
		}
		q := upstream.Query{Resource: resource, Params: make(map[string]string, len(params))}
		for _, name := range params {
			if v := a.String(name); v != "" {
				q.Params[name] = v
			}
		}

		recs, hit, err := d.Snapshot.Execute(ctx, resource, q.Params, func(ctx context.Context) ([]record.Record, error) {
			return d.Fetcher.Fetch(ctx, q)
		})
		if err != nil {
			return nil, err
		}
		source := dataservice.SourceUpstream
		if hit {
			source = dataservice.SourceCache
		}
		return NewOutput(recs, schema, a.Locale(), string(source), nil), nil
	}
}

func fromResult(res *dataservice.Result, schema record.Schema, loc record.Locale) *Output {
	return NewOutput(res.Records, schema, loc, string(res.Source), res.Warning)
}
