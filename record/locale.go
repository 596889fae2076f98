package record

import "strings"

// Locale selects the label table used at the tool boundary.
type Locale string

const (
	LocaleEN Locale = "en"
	LocaleZH Locale = "zh"
)

// ParseLocale maps a user-supplied locale to a known one. Unknown values
// fall back to English.
func ParseLocale(s string) Locale {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "zh", "zh-cn", "cn", "chinese":
		return LocaleZH
	default:
		return LocaleEN
	}
}

var zhLabels = map[Field]string{
	FieldDate:          "日期",
	FieldSymbol:        "代码",
	FieldName:          "名称",
	FieldOpen:          "开盘",
	FieldHigh:          "最高",
	FieldLow:           "最低",
	FieldClose:         "收盘",
	FieldVolume:        "成交量",
	FieldAmount:        "成交额",
	FieldChangePct:     "涨跌幅",
	FieldAmountSH:      "上证成交额",
	FieldAmountSZ:      "深证成交额",
	FieldMarginBalance: "融资余额",
	FieldMarginBuy:     "融资买入额",
	FieldShortBalance:  "融券余额",
	FieldShortSell:     "融券卖出量",
	FieldMarginTotal:   "融资融券余额",
	FieldValue:         "今值",
	FieldForecast:      "预测值",
	FieldPrevious:      "前值",
	FieldTitle:         "标题",
	FieldContent:       "内容",
	FieldSource:        "来源",
	FieldURL:           "链接",
	FieldExpiry:        "到期日",
	FieldStrike:        "行权价",
	FieldCallPrice:     "看涨合约-最新价",
	FieldPutPrice:      "看跌合约-最新价",
}

// zhFields is the reverse of zhLabels, plus upstream aliases.
var zhFields = func() map[string]Field {
	m := make(map[string]Field, len(zhLabels)+4)
	for f, label := range zhLabels {
		m[label] = f
	}
	m["时间"] = FieldDate
	m["发布时间"] = FieldDate
	m["最新价"] = FieldClose
	m["成交金额"] = FieldAmount
	return m
}()

var enAliases = map[string]Field{
	"Date":       FieldDate,
	"datetime":   FieldDate,
	"time":       FieldDate,
	"trade_date": FieldDate,
	"vol":        FieldVolume,
	"turnover":   FieldAmount,
	"pct_chg":    FieldChangePct,
}

// Label returns the display label of a field in the given locale.
func Label(loc Locale, f Field) string {
	if loc == LocaleZH {
		if label, ok := zhLabels[f]; ok {
			return label
		}
	}
	return string(f)
}

// Lookup resolves an upstream label to a Field. Canonical names, localized
// labels and known aliases are accepted; anything else maps to Field(label).
func Lookup(label string) Field {
	if f, ok := zhFields[label]; ok {
		return f
	}
	if f, ok := enAliases[label]; ok {
		return f
	}
	return Field(label)
}

// Translate converts a raw upstream row into a normalized Record.
func Translate(raw map[string]any) Record {
	r := make(Record, len(raw))
	for label, v := range raw {
		r[Lookup(label)] = v
	}
	return Normalize(r)
}

// Table is the column-ordered rendering of records for tool output.
type Table struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// ToTable renders records with the schema's column order and the locale's
// labels. Fields missing from a record render as nil.
func ToTable(records []Record, schema Schema, loc Locale) Table {
	t := Table{
		Columns: make([]string, len(schema)),
		Rows:    make([][]any, 0, len(records)),
	}
	for i, f := range schema {
		t.Columns[i] = Label(loc, f)
	}
	for _, r := range records {
		row := make([]any, len(schema))
		for i, f := range schema {
			row[i] = r[f]
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// Localize renders a record as a label-keyed map for display. Only schema
// fields present in r are included.
func Localize(r Record, schema Schema, loc Locale) map[string]any {
	out := make(map[string]any, len(schema))
	for _, f := range schema {
		if v, ok := r[f]; ok {
			out[Label(loc, f)] = v
		}
	}
	return out
}
