package domain

import (
	"fmt"
	"time"
)

// Period identifies a monthly settlement period in YYYY-MM form
type Period string

// ParsePeriod validates and returns a Period from its YYYY-MM representation
func ParsePeriod(s string) (Period, error) {
	if s == "" {
		return "", NewValidationError("period", "period is required")
	}
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return "", NewValidationError("period", fmt.Sprintf("invalid period %q, expected YYYY-MM", s))
	}
	// Round-trip guards against inputs like 2024-1 that time.Parse accepts loosely
	if t.Format("2006-01") != s {
		return "", NewValidationError("period", fmt.Sprintf("invalid period %q, expected YYYY-MM", s))
	}
	return Period(s), nil
}

func (p Period) String() string {
	return string(p)
}

// Start returns the first instant of the period in UTC
func (p Period) Start() time.Time {
	t, _ := time.Parse("2006-01", string(p))
	return t
}

// End returns the first instant of the following period in UTC
func (p Period) End() time.Time {
	return p.Start().AddDate(0, 1, 0)
}

// Contains reports whether t falls inside the period
func (p Period) Contains(t time.Time) bool {
	u := t.UTC()
	return !u.Before(p.Start()) && u.Before(p.End())
}
