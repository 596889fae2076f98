package dataservice

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonwraymond/marketcache/record"
	"github.com/jonwraymond/marketcache/tradedate"
	"github.com/jonwraymond/marketcache/upstream"
)

func serviceWith(t *testing.T, f upstream.FetcherFunc) *Service {
	t.Helper()
	h := newHarness(t)
	return New(h.cache, f, WithCalendar(h.svc.calendar))
}

func TestIndexService_History(t *testing.T) {
	var queries []upstream.Query
	svc := NewIndexService(serviceWith(t, func(_ context.Context, q upstream.Query) ([]record.Record, error) {
		queries = append(queries, q)
		return []record.Record{{record.FieldDate: "2023-01-03", record.FieldClose: 3887.9}}, nil
	}))
	ctx := context.Background()

	res, err := svc.History(ctx, "000300", tradedate.Daily, "qfq", rng("2023-01-02", "2023-01-06"))
	require.NoError(t, err)
	assert.Len(t, res.Records, 1)
	require.Len(t, queries, 1)
	assert.Equal(t, ResourceIndexHistory, queries[0].Resource)
	assert.Equal(t, map[string]string{"symbol": "000300", "adjust": "qfq"}, queries[0].Params)

	_, err = svc.History(ctx, "000300", tradedate.Daily, "hfq", rng("2023-01-02", "2023-01-06"))
	require.NoError(t, err)
	assert.Len(t, queries, 2, "adjust type is part of the cache key")

	_, err = svc.History(ctx, "", tradedate.Daily, "", tradedate.Range{})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	_, err = svc.History(ctx, "000300", tradedate.Daily, "split", tradedate.Range{})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestTurnoverService_SumsExchanges(t *testing.T) {
	svc := NewTurnoverService(serviceWith(t, func(_ context.Context, q upstream.Query) ([]record.Record, error) {
		switch q.Resource {
		case ResourceTurnoverSH:
			return []record.Record{
				{record.FieldDate: "2023-01-03", record.FieldAmount: 0.1},
				{record.FieldDate: "2023-01-04", record.FieldAmount: 0.2},
			}, nil
		case ResourceTurnoverSZ:
			return []record.Record{
				{record.FieldDate: "2023-01-03", record.FieldAmount: 0.2},
			}, nil
		}
		t.Errorf("unexpected resource %q", q.Resource)
		return nil, nil
	}))

	res, err := svc.History(context.Background(), rng("2023-01-02", "2023-01-06"))
	require.NoError(t, err)
	require.Len(t, res.Records, 2)
	assert.NoError(t, res.Warning)
	assert.Equal(t, SourceUpstream, res.Source)

	first := res.Records[0]
	assert.Equal(t, "2023-01-03 00:00:00", first[record.FieldDate])
	assert.Equal(t, 0.3, first[record.FieldAmount], "decimal sum avoids float drift")
	assert.Equal(t, 0.1, first[record.FieldAmountSH])
	assert.Equal(t, 0.2, first[record.FieldAmountSZ])

	second := res.Records[1]
	assert.Equal(t, 0.2, second[record.FieldAmount])
	assert.Equal(t, 0.0, second[record.FieldAmountSZ])
}

func TestTurnoverService_DegradedExchange(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	turnover := NewTurnoverService(h.svc)

	_, err := turnover.History(ctx, rng("2023-01-02", "2023-01-06"))
	require.NoError(t, err)

	h.src.fail(errSourceDown)
	res, err := turnover.History(ctx, rng("2023-01-02", ""))
	require.NoError(t, err)
	assert.Equal(t, SourceDegraded, res.Source)
	assert.ErrorIs(t, res.Warning, ErrUpstreamFetchFailed)
	assert.Len(t, res.Records, 5)
}

func TestMarginService_History(t *testing.T) {
	svc := NewMarginService(serviceWith(t, func(_ context.Context, q upstream.Query) ([]record.Record, error) {
		assert.Equal(t, "sh", q.Params["exchange"])
		return []record.Record{
			{record.FieldDate: "2023-01-03", record.FieldMarginBalance: 1.1, record.FieldShortBalance: 2.2},
			{record.FieldDate: "2023-01-04", record.FieldMarginBalance: 1.0, record.FieldShortBalance: 1.0, record.FieldMarginTotal: 5.0},
		}, nil
	}))

	res, err := svc.History(context.Background(), " SH ", rng("2023-01-02", "2023-01-06"))
	require.NoError(t, err)
	require.Len(t, res.Records, 2)
	assert.Equal(t, 3.3, res.Records[0][record.FieldMarginTotal])
	assert.Equal(t, 5.0, res.Records[1][record.FieldMarginTotal], "upstream totals are kept")

	_, err = svc.History(context.Background(), "hk", tradedate.Range{})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestMacroService_Series(t *testing.T) {
	var queries []upstream.Query
	svc := NewMacroService(serviceWith(t, func(_ context.Context, q upstream.Query) ([]record.Record, error) {
		queries = append(queries, q)
		return []record.Record{
			{record.FieldDate: "2022-10", record.FieldValue: 2.1},
			{record.FieldDate: "2022-11", record.FieldValue: 1.6},
		}, nil
	}))
	ctx := context.Background()

	res, err := svc.Series(ctx, "CPI", rng("2022-10-01", ""))
	require.NoError(t, err)
	assert.Equal(t, []string{"2022-10-01", "2022-11-01"}, dates(res.Records),
		"a start rolled off a weekend still includes that month")
	require.Len(t, queries, 1)
	assert.Equal(t, tradedate.Monthly, queries[0].Freq)
	assert.Equal(t, "cpi", queries[0].Params["indicator"])

	_, err = svc.Series(ctx, "cpi", rng("2022-10-01", ""))
	require.NoError(t, err)
	assert.Len(t, queries, 1, "the source was already asked through the latest trading day")

	_, err = svc.Series(ctx, " ", tradedate.Range{})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}
