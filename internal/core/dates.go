package core

import "time"

// Day returns t truncated to midnight UTC.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// MonthStart returns the first day of t's month at midnight UTC.
func MonthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// MonthEnd returns the last day of t's month at midnight UTC. Snapshot rows
// are keyed by these dates.
func MonthEnd(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, time.UTC)
}

// NextMonthEnd returns the month-end following the given month-end.
func NextMonthEnd(monthEnd time.Time) time.Time {
	return MonthEnd(monthEnd.AddDate(0, 0, 1))
}

// LastElapsedMonthEnd returns the month-end of the most recent fully elapsed
// calendar month. The current month only counts once its last day is reached.
func LastElapsedMonthEnd(now time.Time) time.Time {
	end := MonthEnd(now)
	if Day(now).Equal(end) {
		return end
	}
	return MonthEnd(MonthStart(now).AddDate(0, 0, -1))
}

// SameMonth reports whether a and b fall in the same calendar month.
func SameMonth(a, b time.Time) bool {
	a, b = a.UTC(), b.UTC()
	return a.Year() == b.Year() && a.Month() == b.Month()
}
