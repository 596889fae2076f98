package record

import (
	"encoding/json"
	"time"
)

// Field identifies a column of a market-data record.
type Field string

// Known fields. Resources use a subset of these; unknown upstream labels
// survive translation as Field(label).
const (
	FieldDate      Field = "date"
	FieldSymbol    Field = "symbol"
	FieldName      Field = "name"
	FieldOpen      Field = "open"
	FieldHigh      Field = "high"
	FieldLow       Field = "low"
	FieldClose     Field = "close"
	FieldVolume    Field = "volume"
	FieldAmount    Field = "amount"
	FieldChangePct Field = "change_pct"
	FieldAmountSH  Field = "amount_sh"
	FieldAmountSZ  Field = "amount_sz"

	FieldMarginBalance Field = "margin_balance"
	FieldMarginBuy     Field = "margin_buy"
	FieldShortBalance  Field = "short_balance"
	FieldShortSell     Field = "short_sell"
	FieldMarginTotal   Field = "margin_total"

	FieldValue    Field = "value"
	FieldForecast Field = "forecast"
	FieldPrevious Field = "previous"

	FieldTitle   Field = "title"
	FieldContent Field = "content"
	FieldSource  Field = "source"
	FieldURL     Field = "url"

	FieldExpiry    Field = "expiry"
	FieldStrike    Field = "strike"
	FieldCallPrice Field = "call_price"
	FieldPutPrice  Field = "put_price"
)

// dateFields lists the labels accepted as the date key, in lookup order.
var dateFields = []Field{FieldDate, "日期", "时间", "Date", "datetime", "time", "trade_date"}

// Record is a single time-stamped row of market data.
type Record map[Field]any

// Schema is the ordered field set a resource exposes.
type Schema []Field

// dateValue returns the raw date value and the field holding it.
func (r Record) dateValue() (Field, any, bool) {
	for _, f := range dateFields {
		if v, ok := r[f]; ok {
			return f, v, true
		}
	}
	return "", nil, false
}

// Time returns the parsed date key, or MinTime if it is absent or unparseable.
func (r Record) Time() time.Time {
	_, v, ok := r.dateValue()
	if !ok {
		return MinTime
	}
	t, ok := ParseDate(v)
	if !ok {
		return MinTime
	}
	return t
}

// DateKey returns the canonical, zero-padded string form of the date key.
func (r Record) DateKey() string {
	return r.Time().Format(KeyLayout)
}

// HasDate reports whether the record carries a parseable date key.
func (r Record) HasDate() bool {
	return !r.Time().Equal(MinTime)
}

// Float returns the field as a float64.
func (r Record) Float(f Field) (float64, bool) {
	v, ok := canonicalValue(r[f]).(float64)
	return v, ok
}

// String returns the field as a string.
func (r Record) String(f Field) (string, bool) {
	v, ok := r[f].(string)
	return v, ok
}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Normalize returns a copy with the date key moved to FieldDate in
// canonical form and every number converted to float64. A record without
// a parseable date keeps its original date value untouched.
func Normalize(r Record) Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = canonicalValue(v)
	}

	f, v, ok := r.dateValue()
	if !ok {
		return out
	}
	t, ok := ParseDate(v)
	if !ok {
		return out
	}
	if f != FieldDate {
		delete(out, f)
	}
	out[FieldDate] = t.Format(KeyLayout)
	return out
}

func canonicalValue(v any) any {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int8:
		return float64(n)
	case int16:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case uint:
		return float64(n)
	case uint8:
		return float64(n)
	case uint16:
		return float64(n)
	case uint32:
		return float64(n)
	case uint64:
		return float64(n)
	case json.Number:
		if f, err := n.Float64(); err == nil {
			return f
		}
		return n.String()
	case time.Time:
		return wallClock(n).Format(KeyLayout)
	default:
		return v
	}
}
