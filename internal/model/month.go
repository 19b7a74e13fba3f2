// Package model defines the core domain types for the envelope budgeting engine.
package model

import (
	"fmt"
	"time"
)

// Month identifies a calendar month. It is the granularity at which
// assignments and projections are kept, and serializes as "YYYY-MM",
// which sorts chronologically as text.
type Month struct {
	Year int
	Mon  time.Month
}

// ParseMonth parses a "YYYY-MM" string into a Month.
func ParseMonth(s string) (Month, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Month{}, fmt.Errorf("invalid month %q: expected YYYY-MM", s)
	}
	return Month{Year: t.Year(), Mon: t.Month()}, nil
}

// MonthOf returns the Month containing t.
func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Mon: t.Month()}
}

func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Mon))
}

// IsZero reports whether m is the zero value.
func (m Month) IsZero() bool {
	return m.Year == 0 && m.Mon == 0
}

// Next returns the following calendar month.
func (m Month) Next() Month {
	if m.Mon == time.December {
		return Month{Year: m.Year + 1, Mon: time.January}
	}
	return Month{Year: m.Year, Mon: m.Mon + 1}
}

// Prev returns the preceding calendar month.
func (m Month) Prev() Month {
	if m.Mon == time.January {
		return Month{Year: m.Year - 1, Mon: time.December}
	}
	return Month{Year: m.Year, Mon: m.Mon - 1}
}

// Before reports whether m is strictly earlier than o.
func (m Month) Before(o Month) bool {
	if m.Year != o.Year {
		return m.Year < o.Year
	}
	return m.Mon < o.Mon
}

// After reports whether m is strictly later than o.
func (m Month) After(o Month) bool {
	return o.Before(m)
}

// Start returns midnight UTC on the first day of the month.
func (m Month) Start() time.Time {
	return time.Date(m.Year, m.Mon, 1, 0, 0, 0, 0, time.UTC)
}

// End returns the last instant before the next month begins.
func (m Month) End() time.Time {
	return m.Next().Start().Add(-time.Nanosecond)
}

// Contains reports whether t falls within the month.
func (m Month) Contains(t time.Time) bool {
	return MonthOf(t) == m
}
