package leaderboard

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidWindow is returned for an unknown period or a malformed date.
var ErrInvalidWindow = errors.New("invalid leaderboard window")

// Period names an aggregation family.
type Period string

const (
	PeriodAll     Period = "all"
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
)

const (
	dayLayout   = "2006-01-02"
	monthLayout = "2006-01"
)

// Window is one concrete sorted set: a period plus the date key it covers.
// The all-time window has an empty Key.
type Window struct {
	Period Period `json:"period"`
	Key    string `json:"key,omitempty"`
}

// AllTime is the window that never rolls over.
func AllTime() Window {
	return Window{Period: PeriodAll}
}

// WindowAt returns the window of period p containing t. Dates are taken in UTC.
func WindowAt(p Period, t time.Time) (Window, error) {
	switch p {
	case PeriodAll:
		return AllTime(), nil
	case PeriodDaily:
		return Window{Period: p, Key: DailyKey(t)}, nil
	case PeriodWeekly:
		return Window{Period: p, Key: WeeklyKey(t)}, nil
	case PeriodMonthly:
		return Window{Period: p, Key: MonthlyKey(t)}, nil
	}
	return Window{}, fmt.Errorf("%w: unknown period %q", ErrInvalidWindow, p)
}

// ParseWindow resolves a period name and an optional date. An empty date means
// the window containing now. Daily windows take YYYY-MM-DD; weekly windows take
// YYYY-Www or any YYYY-MM-DD inside the week; monthly windows take YYYY-MM or
// any YYYY-MM-DD inside the month.
func ParseWindow(period, date string, now time.Time) (Window, error) {
	p := Period(strings.ToLower(strings.TrimSpace(period)))
	if p == "" {
		p = PeriodAll
	}
	date = strings.TrimSpace(date)
	if date == "" || p == PeriodAll {
		return WindowAt(p, now)
	}

	if day, err := time.Parse(dayLayout, date); err == nil {
		return WindowAt(p, day)
	}

	switch p {
	case PeriodWeekly:
		if key, ok := normalizeWeekKey(date); ok {
			return Window{Period: p, Key: key}, nil
		}
	case PeriodMonthly:
		if month, err := time.Parse(monthLayout, date); err == nil {
			return Window{Period: p, Key: MonthlyKey(month)}, nil
		}
	case PeriodDaily:
	default:
		return Window{}, fmt.Errorf("%w: unknown period %q", ErrInvalidWindow, p)
	}
	return Window{}, fmt.Errorf("%w: date %q does not match period %s", ErrInvalidWindow, date, p)
}

// DailyKey formats t as YYYY-MM-DD.
func DailyKey(t time.Time) string {
	return t.UTC().Format(dayLayout)
}

// WeeklyKey formats the ISO 8601 week of t as YYYY-Www. The year is the ISO
// week-numbering year, which differs from the calendar year around January 1st.
func WeeklyKey(t time.Time) string {
	year, week := t.UTC().ISOWeek()
	return fmt.Sprintf("%04d-W%02d", year, week)
}

// MonthlyKey formats t as YYYY-MM.
func MonthlyKey(t time.Time) string {
	return t.UTC().Format(monthLayout)
}

func normalizeWeekKey(s string) (string, bool) {
	yearStr, weekStr, ok := strings.Cut(strings.ToUpper(s), "-W")
	if !ok || len(yearStr) != 4 {
		return "", false
	}
	year, err := strconv.Atoi(yearStr)
	if err != nil {
		return "", false
	}
	week, err := strconv.Atoi(weekStr)
	if err != nil || week < 1 || week > isoWeeksIn(year) {
		return "", false
	}
	return fmt.Sprintf("%04d-W%02d", year, week), true
}

// isoWeeksIn returns 52 or 53. December 28th always falls in the last ISO week.
func isoWeeksIn(year int) int {
	_, week := time.Date(year, time.December, 28, 0, 0, 0, 0, time.UTC).ISOWeek()
	return week
}
