package tradedate

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
)

// Calendar answers trading-day questions for one market.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: LatestTradingDay may consult an external source and must honor cancellation.
type Calendar interface {
	// LatestTradingDay returns midnight of the most recent trading day
	// whose data is expected to be available.
	LatestTradingDay(ctx context.Context) (time.Time, error)

	// IsTradingDay reports whether the market is open on d.
	IsTradingDay(d time.Time) bool
}

// WeekdayCalendarConfig configures a WeekdayCalendar.
type WeekdayCalendarConfig struct {
	// Location is the market's time zone.
	// Default: Asia/Shanghai, falling back to UTC+8 if tzdata is missing.
	Location *time.Location

	// SessionClose is the time of day after which today's data counts as published.
	// Default: 15:00
	SessionClose time.Duration

	// Holidays are additional non-trading dates.
	Holidays []time.Time

	// Clock is the time source. Default: the real clock.
	Clock clockwork.Clock
}

// WeekdayCalendar treats Monday to Friday as trading days, minus holidays.
type WeekdayCalendar struct {
	loc      *time.Location
	close    time.Duration
	holidays map[string]struct{}
	clock    clockwork.Clock
}

// NewWeekdayCalendar creates a weekday calendar.
func NewWeekdayCalendar(config WeekdayCalendarConfig) *WeekdayCalendar {
	if config.Location == nil {
		loc, err := time.LoadLocation("Asia/Shanghai")
		if err != nil {
			loc = time.FixedZone("CST", 8*3600)
		}
		config.Location = loc
	}
	if config.SessionClose <= 0 {
		config.SessionClose = 15 * time.Hour
	}
	if config.Clock == nil {
		config.Clock = clockwork.NewRealClock()
	}

	holidays := make(map[string]struct{}, len(config.Holidays))
	for _, h := range config.Holidays {
		holidays[h.Format("2006-01-02")] = struct{}{}
	}

	return &WeekdayCalendar{
		loc:      config.Location,
		close:    config.SessionClose,
		holidays: holidays,
		clock:    config.Clock,
	}
}

// IsTradingDay reports whether d is a weekday that is not a holiday.
func (c *WeekdayCalendar) IsTradingDay(d time.Time) bool {
	if IsWeekend(d) {
		return false
	}
	_, holiday := c.holidays[d.Format("2006-01-02")]
	return !holiday
}

// LatestTradingDay returns today if the session has closed on a trading
// day, otherwise the previous trading day. The result is a UTC midnight
// carrying the market's calendar date.
func (c *WeekdayCalendar) LatestTradingDay(ctx context.Context) (time.Time, error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, err
	}

	now := c.clock.Now().In(c.loc)
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if now.Sub(Day(now)) < c.close {
		day = day.AddDate(0, 0, -1)
	}

	// A year without a trading day means the holiday list is broken.
	for i := 0; i < 366; i++ {
		if c.IsTradingDay(day) {
			return day, nil
		}
		day = day.AddDate(0, 0, -1)
	}
	return time.Time{}, fmt.Errorf("tradedate: no trading day found before %s", now.Format("2006-01-02"))
}

// Today returns the market's current calendar date as a UTC midnight.
func (c *WeekdayCalendar) Today() time.Time {
	now := c.clock.Now().In(c.loc)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

var _ Calendar = (*WeekdayCalendar)(nil)
