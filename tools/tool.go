package tools

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jonwraymond/marketcache/record"
	"github.com/jonwraymond/marketcache/tradedate"
)

// Categories group tools for telemetry.
const (
	CategoryHistory  = "history"
	CategorySnapshot = "snapshot"
)

// Arg documents one tool argument.
type Arg struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Required    bool   `json:"required,omitempty"`
}

// Handler executes a tool call.
type Handler func(ctx context.Context, args Args) (*Output, error)

// Tool is one callable operation.
type Tool struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Resource    string `json:"resource,omitempty"`
	Args        []Arg  `json:"args"`

	Handler Handler `json:"-"`
}

// Output is the result of a tool call.
type Output struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
	Source  string   `json:"source"`
	Warning string   `json:"warning,omitempty"`
}

// NewOutput renders records as a table with schema's column order.
func NewOutput(records []record.Record, schema record.Schema, loc record.Locale, source string, warning error) *Output {
	t := record.ToTable(records, schema, loc)
	out := &Output{Columns: t.Columns, Rows: t.Rows, Source: source}
	if warning != nil {
		out.Warning = warning.Error()
	}
	return out
}

// Args are the decoded arguments of a call.
type Args map[string]any

// String returns the named argument as a trimmed string. Numbers are
// formatted without exponent so symbols like 300 survive JSON decoding.
func (a Args) String(name string) string {
	switch v := a[name].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case bool:
		return strconv.FormatBool(v)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// Required returns the named argument or ErrInvalidArgs when it is empty.
func (a Args) Required(name string) (string, error) {
	v := a.String(name)
	if v == "" {
		return "", fmt.Errorf("%w: %s is required", ErrInvalidArgs, name)
	}
	return v, nil
}

// Range parses start_date and end_date.
func (a Args) Range() (tradedate.Range, error) {
	r, err := tradedate.NewRange(a.String("start_date"), a.String("end_date"))
	if err != nil {
		return tradedate.Range{}, fmt.Errorf("%w: %w", ErrInvalidArgs, err)
	}
	return r, nil
}

// Freq parses freq, defaulting to daily.
func (a Args) Freq() (tradedate.Freq, error) {
	s := a.String("freq")
	if s == "" {
		return tradedate.Daily, nil
	}
	f, err := tradedate.ParseFreq(s)
	if err != nil {
		return tradedate.Freq{}, fmt.Errorf("%w: %w", ErrInvalidArgs, err)
	}
	return f, nil
}

// Locale parses locale, defaulting to English.
func (a Args) Locale() record.Locale {
	return record.ParseLocale(a.String("locale"))
}

// Common argument declarations.
var (
	argStartDate = Arg{Name: "start_date", Description: "First date, YYYY-MM-DD or YYYYMMDD. Empty means all history."}
	argEndDate   = Arg{Name: "end_date", Description: "Last date, YYYY-MM-DD or YYYYMMDD. Empty means the latest trading day."}
	argLocale    = Arg{Name: "locale", Description: "Column labels: en (default) or zh."}
)
