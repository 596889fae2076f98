package tradedate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestAdjustStartEnd_Weekends(t *testing.T) {
	// 2023-01-07 is a Saturday.
	saturday := date(2023, 1, 7)
	sunday := date(2023, 1, 8)
	monday := date(2023, 1, 9)
	friday := date(2023, 1, 6)

	assert.Equal(t, monday, AdjustStart(saturday))
	assert.Equal(t, monday, AdjustStart(sunday))
	assert.Equal(t, friday, AdjustEnd(saturday))
	assert.Equal(t, friday, AdjustEnd(sunday))
}

func TestAdjustStartEnd_WeekdaysUnchanged(t *testing.T) {
	for d := date(2023, 1, 2); d.Before(date(2023, 3, 1)); d = d.AddDate(0, 0, 1) {
		if IsWeekend(d) {
			assert.Equal(t, time.Monday, AdjustStart(d).Weekday(), d)
			assert.Equal(t, time.Friday, AdjustEnd(d).Weekday(), d)
			assert.True(t, AdjustStart(d).After(d))
			assert.True(t, AdjustEnd(d).Before(d))
			continue
		}
		assert.Equal(t, d, AdjustStart(d))
		assert.Equal(t, d, AdjustEnd(d))
	}
}

func TestTruncate(t *testing.T) {
	ts := time.Date(2023, 1, 1, 10, 30, 45, 123, time.UTC) // Sunday

	tests := []struct {
		name string
		freq Freq
		want time.Time
	}{
		{"day", Daily, date(2023, 1, 1)},
		{"week on sunday goes to prior monday", Weekly, date(2022, 12, 26)},
		{"month", Monthly, date(2023, 1, 1)},
		{"5 minutes", Minutes(5), time.Date(2023, 1, 1, 10, 30, 0, 0, time.UTC)},
		{"15 minutes", Minutes(15), time.Date(2023, 1, 1, 10, 30, 0, 0, time.UTC)},
		{"60 minutes", Minutes(60), time.Date(2023, 1, 1, 10, 0, 0, 0, time.UTC)},
		{"zero minutes acts as one", Minutes(0), time.Date(2023, 1, 1, 10, 30, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Truncate(ts, tt.freq))
		})
	}
}

func TestTruncate_FiveMinuteBoundary(t *testing.T) {
	ts := time.Date(2023, 1, 3, 14, 7, 59, 0, time.UTC)
	assert.Equal(t, time.Date(2023, 1, 3, 14, 5, 0, 0, time.UTC), Truncate(ts, Minutes(5)))
}

func TestTruncate_WeekMonday(t *testing.T) {
	monday := time.Date(2023, 1, 2, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, date(2023, 1, 2), Truncate(monday, Weekly))

	saturday := time.Date(2023, 1, 7, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, date(2023, 1, 2), Truncate(saturday, Weekly))
}

func TestParseFreq(t *testing.T) {
	tests := []struct {
		in      string
		want    Freq
		wantErr bool
	}{
		{"daily", Daily, false},
		{"D", Daily, false},
		{"", Daily, false},
		{"week", Weekly, false},
		{"monthly", Monthly, false},
		{"5", Minutes(5), false},
		{"60", Minutes(60), false},
		{"0", Freq{}, true},
		{"-5", Freq{}, true},
		{"hourly", Freq{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFreq(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFreq_String(t *testing.T) {
	assert.Equal(t, "day", Daily.String())
	assert.Equal(t, "week", Weekly.String())
	assert.Equal(t, "month", Monthly.String())
	assert.Equal(t, "15", Minutes(15).String())
	assert.True(t, Minutes(1).Intraday())
	assert.False(t, Daily.Intraday())
}
