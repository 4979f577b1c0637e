package timekeeping

import (
	"fmt"
	"strconv"
	"time"
)

// =============================================================================
// DAY - Civil calendar date (the logical workday key)
// =============================================================================

// Day is a civil date with no time-of-day and no zone. Internally it is held
// at midnight UTC so that comparisons and arithmetic never depend on a zone;
// converting a Day to instants always goes through a Clock.
type Day struct {
	t time.Time
}

const dayLayout = "2006-01-02"

// NewDay builds a Day from its calendar components.
func NewDay(year int, month time.Month, day int) Day {
	return Day{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDay parses a YYYY-MM-DD date.
func ParseDay(s string) (Day, error) {
	t, err := time.Parse(dayLayout, s)
	if err != nil {
		return Day{}, fmt.Errorf("invalid date %q (use YYYY-MM-DD): %w", s, err)
	}
	return Day{t: t}, nil
}

// MustParseDay is ParseDay for literals in tests and fixtures.
func MustParseDay(s string) Day {
	d, err := ParseDay(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Comparison
func (d Day) Before(o Day) bool        { return d.t.Before(o.t) }
func (d Day) After(o Day) bool         { return d.t.After(o.t) }
func (d Day) Equal(o Day) bool         { return d.t.Equal(o.t) }
func (d Day) BeforeOrEqual(o Day) bool { return !d.After(o) }
func (d Day) AfterOrEqual(o Day) bool  { return !d.Before(o) }

// Arithmetic
func (d Day) AddDays(n int) Day { return Day{t: d.t.AddDate(0, 0, n)} }

// Properties
func (d Day) Year() int             { return d.t.Year() }
func (d Day) Month() time.Month     { return d.t.Month() }
func (d Day) DayOfMonth() int       { return d.t.Day() }
func (d Day) Weekday() time.Weekday { return d.t.Weekday() }
func (d Day) IsZero() bool          { return d.t.IsZero() }
func (d Day) String() string        { return d.t.Format(dayLayout) }

func (d Day) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *Day) UnmarshalText(b []byte) error {
	v, err := ParseDay(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// DaysBetween returns the number of days from -> to (negative if to is earlier).
func DaysBetween(from, to Day) int { return int(to.t.Sub(from.t).Hours() / 24) }

// Today returns the current civil date on the given clock.
func Today(c Clock) Day { return c.DayOf(time.Now()) }

// StartOfMonth / EndOfMonth bound a calendar month.
func StartOfMonth(year int, month time.Month) Day { return NewDay(year, month, 1) }
func EndOfMonth(year int, month time.Month) Day {
	return NewDay(year, month+1, 1).AddDays(-1)
}

// =============================================================================
// CLOCK TIME - "HH:MM" in a shift definition
// =============================================================================

// ClockTime is a planned time of day, in minutes after civil midnight.
type ClockTime int

const MinutesPerDay = 1440

// ParseClockTime parses "HH:MM" (00:00 through 23:59).
func ParseClockTime(s string) (ClockTime, error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, fmt.Errorf("invalid clock time %q (use HH:MM)", s)
	}
	h, errH := strconv.Atoi(s[:2])
	m, errM := strconv.Atoi(s[3:])
	if errH != nil || errM != nil {
		return 0, fmt.Errorf("invalid clock time %q (use HH:MM)", s)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("clock time out of range: %q", s)
	}
	return ClockTime(h*60 + m), nil
}

// MustClockTime is ParseClockTime for literals.
func MustClockTime(s string) ClockTime {
	c, err := ParseClockTime(s)
	if err != nil {
		panic(err)
	}
	return c
}

func (c ClockTime) String() string {
	m := int(c) % MinutesPerDay
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// MarshalText / UnmarshalText make ClockTime travel as "HH:MM" in JSON.
func (c ClockTime) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *ClockTime) UnmarshalText(b []byte) error {
	v, err := ParseClockTime(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// =============================================================================
// CLOCK - The single civil time policy
// =============================================================================

// Clock converts between absolute instants and civil time in ONE configured
// zone. Every time-of-day computation in the engine goes through
// MinuteOfDay; no code reads Hour()/Minute() off a time.Time directly, and the
// process-local zone is never consulted.
type Clock struct {
	loc *time.Location
}

// LedgerDayStart is the civil minute at which a logical workday begins.
// Punches before 06:00 belong to the previous workday (night shifts).
const LedgerDayStart = 6 * 60

// NewClock loads the named IANA zone ("Europe/Paris", "UTC", ...).
func NewClock(zone string) (Clock, error) {
	if zone == "" || zone == "Local" {
		return Clock{}, fmt.Errorf("clock zone must be an explicit IANA name, got %q", zone)
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return Clock{}, fmt.Errorf("failed to load zone %q: %w", zone, err)
	}
	return Clock{loc: loc}, nil
}

// ClockIn wraps an already loaded location.
func ClockIn(loc *time.Location) Clock { return Clock{loc: loc} }

// UTCClock is a clock for tests and UTC-only deployments.
func UTCClock() Clock { return Clock{loc: time.UTC} }

func (c Clock) Location() *time.Location {
	if c.loc == nil {
		return time.UTC
	}
	return c.loc
}

// MinuteOfDay is the civil time-of-day of an instant, in minutes after midnight.
func (c Clock) MinuteOfDay(t time.Time) int {
	civil := t.In(c.Location())
	return civil.Hour()*60 + civil.Minute()
}

// DayOf is the civil calendar date of an instant.
func (c Clock) DayOf(t time.Time) Day {
	civil := t.In(c.Location())
	return NewDay(civil.Year(), civil.Month(), civil.Day())
}

// MinutesFrom places an instant on the civil timeline of day d: minutes after
// d's midnight, exceeding 1440 for instants on following days.
func (c Clock) MinutesFrom(d Day, t time.Time) int {
	return DaysBetween(d, c.DayOf(t))*MinutesPerDay + c.MinuteOfDay(t)
}

// At is the instant at civil minute `minute` of day d. Minutes past 1440
// roll into the next day.
func (c Clock) At(d Day, minute int) time.Time {
	return time.Date(d.Year(), d.Month(), d.DayOfMonth(), 0, minute, 0, 0, c.Location())
}

// LedgerWindow returns [06:00 d, 06:00 d+1) as absolute instants.
func (c Clock) LedgerWindow(d Day) (time.Time, time.Time) {
	return c.At(d, LedgerDayStart), c.At(d.AddDays(1), LedgerDayStart)
}
