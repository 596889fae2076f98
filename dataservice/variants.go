package dataservice

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/jonwraymond/marketcache/record"
	"github.com/jonwraymond/marketcache/tradedate"
)

// Resource names used by the specialized services.
const (
	ResourceIndexHistory = "index_history"
	ResourceTurnoverSH   = "turnover_sh"
	ResourceTurnoverSZ   = "turnover_sz"
	ResourceMargin       = "margin_history"
	ResourceMacro        = "macro_series"
)

// Schemas list the fields each resource renders, in column order.
var (
	IndexSchema    = record.Schema{record.FieldDate, record.FieldOpen, record.FieldHigh, record.FieldLow, record.FieldClose, record.FieldVolume, record.FieldAmount, record.FieldChangePct}
	TurnoverSchema = record.Schema{record.FieldDate, record.FieldAmount, record.FieldAmountSH, record.FieldAmountSZ}
	MarginSchema   = record.Schema{record.FieldDate, record.FieldMarginBalance, record.FieldMarginBuy, record.FieldShortBalance, record.FieldShortSell, record.FieldMarginTotal}
	MacroSchema    = record.Schema{record.FieldDate, record.FieldValue, record.FieldForecast, record.FieldPrevious}
)

// IndexService serves index price history.
type IndexService struct {
	svc *Service
}

// NewIndexService returns an IndexService on svc.
func NewIndexService(svc *Service) *IndexService {
	return &IndexService{svc: svc}
}

// History returns bars of symbol at freq. adjust is "", "qfq" or "hfq".
func (s *IndexService) History(ctx context.Context, symbol string, freq tradedate.Freq, adjust string, rng tradedate.Range) (*Result, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return nil, fmt.Errorf("%w: symbol is required", ErrInvalidRequest)
	}
	switch adjust {
	case "", "qfq", "hfq":
	default:
		return nil, fmt.Errorf("%w: unknown adjust %q", ErrInvalidRequest, adjust)
	}

	params := map[string]string{"symbol": symbol}
	if adjust != "" {
		params["adjust"] = adjust
	}
	return s.svc.Get(ctx, Request{
		Resource: ResourceIndexHistory,
		Params:   params,
		Range:    rng,
		Freq:     freq,
	})
}

// TurnoverService serves combined Shanghai and Shenzhen exchange turnover.
type TurnoverService struct {
	svc *Service
}

// NewTurnoverService returns a TurnoverService on svc.
func NewTurnoverService(svc *Service) *TurnoverService {
	return &TurnoverService{svc: svc}
}

// History returns one record per trading day with the turnover of each
// exchange and their sum. Each exchange is cached separately; days missing
// from one exchange count it as zero.
func (s *TurnoverService) History(ctx context.Context, rng tradedate.Range) (*Result, error) {
	sh, err := s.svc.Get(ctx, Request{Resource: ResourceTurnoverSH, Range: rng, Freq: tradedate.Daily})
	if err != nil {
		return nil, err
	}
	sz, err := s.svc.Get(ctx, Request{Resource: ResourceTurnoverSZ, Range: rng, Freq: tradedate.Daily})
	if err != nil {
		return nil, err
	}

	type sums struct{ sh, sz decimal.Decimal }
	byDay := make(map[string]*sums)
	add := func(records []record.Record, pick func(*sums) *decimal.Decimal) {
		for _, r := range records {
			v, ok := r.Float(record.FieldAmount)
			if !ok {
				continue
			}
			k := r.DateKey()
			if byDay[k] == nil {
				byDay[k] = &sums{}
			}
			d := pick(byDay[k])
			*d = d.Add(decimal.NewFromFloat(v))
		}
	}
	add(sh.Records, func(s *sums) *decimal.Decimal { return &s.sh })
	add(sz.Records, func(s *sums) *decimal.Decimal { return &s.sz })

	out := make([]record.Record, 0, len(byDay))
	for k, v := range byDay {
		out = append(out, record.Record{
			record.FieldDate:     k,
			record.FieldAmountSH: v.sh.InexactFloat64(),
			record.FieldAmountSZ: v.sz.InexactFloat64(),
			record.FieldAmount:   v.sh.Add(v.sz).InexactFloat64(),
		})
	}
	record.Sort(out)

	return &Result{
		Records: out,
		Source:  combineSource(sh.Source, sz.Source),
		Warning: errors.Join(sh.Warning, sz.Warning),
		Range:   sh.Range,
		Fetched: append(append([]tradedate.Range(nil), sh.Fetched...), sz.Fetched...),
	}, nil
}

// MarginService serves margin-trading statistics per exchange.
type MarginService struct {
	svc *Service
}

// NewMarginService returns a MarginService on svc.
func NewMarginService(svc *Service) *MarginService {
	return &MarginService{svc: svc}
}

// History returns daily margin statistics of exchange ("sh" or "sz").
// Records without a combined balance get margin_total computed as
// margin_balance plus short_balance.
func (s *MarginService) History(ctx context.Context, exchange string, rng tradedate.Range) (*Result, error) {
	exchange = strings.ToLower(strings.TrimSpace(exchange))
	if exchange != "sh" && exchange != "sz" {
		return nil, fmt.Errorf("%w: exchange must be sh or sz, got %q", ErrInvalidRequest, exchange)
	}

	res, err := s.svc.Get(ctx, Request{
		Resource: ResourceMargin,
		Params:   map[string]string{"exchange": exchange},
		Range:    rng,
		Freq:     tradedate.Daily,
	})
	if err != nil {
		return nil, err
	}

	out := *res
	out.Records = make([]record.Record, len(res.Records))
	for i, r := range res.Records {
		out.Records[i] = withMarginTotal(r)
	}
	return &out, nil
}

func withMarginTotal(r record.Record) record.Record {
	if _, ok := r.Float(record.FieldMarginTotal); ok {
		return r
	}
	margin, ok1 := r.Float(record.FieldMarginBalance)
	short, ok2 := r.Float(record.FieldShortBalance)
	if !ok1 || !ok2 {
		return r
	}
	c := r.Clone()
	c[record.FieldMarginTotal] = decimal.NewFromFloat(margin).Add(decimal.NewFromFloat(short)).InexactFloat64()
	return c
}

// MacroService serves monthly macroeconomic series.
type MacroService struct {
	svc *Service
}

// NewMacroService returns a MacroService on svc.
func NewMacroService(svc *Service) *MacroService {
	return &MacroService{svc: svc}
}

// Series returns the monthly values of indicator, such as "cpi" or "pmi".
func (s *MacroService) Series(ctx context.Context, indicator string, rng tradedate.Range) (*Result, error) {
	indicator = strings.ToLower(strings.TrimSpace(indicator))
	if indicator == "" {
		return nil, fmt.Errorf("%w: indicator is required", ErrInvalidRequest)
	}
	return s.svc.Get(ctx, Request{
		Resource: ResourceMacro,
		Params:   map[string]string{"indicator": indicator},
		Range:    rng,
		Freq:     tradedate.Monthly,
	})
}

// combineSource reports the weakest of two sources.
func combineSource(a, b Source) Source {
	rank := map[Source]int{SourceCache: 0, SourceMerged: 1, SourceUpstream: 2, SourceDegraded: 3}
	if rank[b] > rank[a] {
		return b
	}
	return a
}
