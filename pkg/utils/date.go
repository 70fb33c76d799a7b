package utils

import "time"

// DateLayout is the wire form for calendar dates. Zero-padded ISO dates
// order lexically, so Date values compare correctly with <, <= and ==.
const DateLayout = "2006-01-02"

// TimeLayout is the wire form for times of day in user settings.
const TimeLayout = "15:04:05"

// Date is a calendar date in YYYY-MM-DD form.
type Date string

func DateOf(t time.Time) Date {
	return Date(t.Format(DateLayout))
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return "", err
	}
	return DateOf(t), nil
}

func (d Date) Time() time.Time {
	t, err := time.Parse(DateLayout, string(d))
	if err != nil {
		return time.Time{}
	}
	return t
}

func (d Date) AddDays(days int) Date {
	return DateOf(d.Time().AddDate(0, 0, days))
}

// DaysUntil returns the number of whole days from d to other.
// Negative when other is before d.
func (d Date) DaysUntil(other Date) int {
	return int(other.Time().Sub(d.Time()).Hours() / 24)
}

func (d Date) IsZero() bool {
	return d == ""
}

func (d Date) String() string {
	return string(d)
}

func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func DatesEqual(t1, t2 time.Time) bool {
	return StartOfDay(t1).Equal(StartOfDay(t2))
}
