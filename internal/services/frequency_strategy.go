// Package services provides business logic and orchestration services.
//
// This file implements the Strategy Pattern for advancing recurring
// transaction schedules. Each frequency type has its own strategy that
// encapsulates how next_transaction_at moves forward by one period.

package services

import (
	"fmt"
	"time"

	"conti/internal/core"
)

// ScheduleAdvancer is the strategy interface for moving a recurring
// transaction's due date forward by exactly one period.
type ScheduleAdvancer interface {
	// Next returns the due date one period after from.
	Next(from time.Time) time.Time
}

// DailyAdvancer implements ScheduleAdvancer for daily schedules.
type DailyAdvancer struct{}

func (DailyAdvancer) Next(from time.Time) time.Time {
	return from.AddDate(0, 0, 1)
}

// WeeklyAdvancer implements ScheduleAdvancer for weekly schedules.
type WeeklyAdvancer struct{}

func (WeeklyAdvancer) Next(from time.Time) time.Time {
	return from.AddDate(0, 0, 7)
}

// BiweeklyAdvancer implements ScheduleAdvancer for biweekly schedules.
type BiweeklyAdvancer struct{}

func (BiweeklyAdvancer) Next(from time.Time) time.Time {
	return from.AddDate(0, 0, 14)
}

// MonthlyAdvancer implements ScheduleAdvancer for monthly schedules.
// AddDate normalizes a day past the end of the target month, so Jan 31
// advances to Mar 2 or Mar 3.
type MonthlyAdvancer struct{}

func (MonthlyAdvancer) Next(from time.Time) time.Time {
	return from.AddDate(0, 1, 0)
}

// QuarterlyAdvancer implements ScheduleAdvancer for quarterly schedules.
type QuarterlyAdvancer struct{}

func (QuarterlyAdvancer) Next(from time.Time) time.Time {
	return from.AddDate(0, 3, 0)
}

// YearlyAdvancer implements ScheduleAdvancer for yearly schedules.
type YearlyAdvancer struct{}

func (YearlyAdvancer) Next(from time.Time) time.Time {
	return from.AddDate(1, 0, 0)
}

var advancers = map[core.Frequency]ScheduleAdvancer{
	core.Daily:     DailyAdvancer{},
	core.Weekly:    WeeklyAdvancer{},
	core.Biweekly:  BiweeklyAdvancer{},
	core.Monthly:   MonthlyAdvancer{},
	core.Quarterly: QuarterlyAdvancer{},
	core.Yearly:    YearlyAdvancer{},
}

// AdvancerFor returns the strategy for the given frequency.
func AdvancerFor(f core.Frequency) (ScheduleAdvancer, error) {
	adv, ok := advancers[f]
	if !ok {
		return nil, fmt.Errorf("no schedule advancer for frequency %q", f)
	}
	return adv, nil
}
