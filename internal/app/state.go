// Package app holds the tracker's view state and derives dashboards from it.
package app

import (
	"mahjong/internal/core"
)

// RecentLimit is how many records the history list shows.
const RecentLimit = 8

// State is an immutable snapshot of what the tracker knows. Transitions
// return a new value and never touch the receiver.
type State struct {
	Records   []core.Record
	Month     core.YearMonth
	Loaded    bool
	LoadError error
	// Version increases with every accepted snapshot.
	Version uint64
}

// InitialState starts on month with nothing loaded.
func InitialState(month core.YearMonth) State {
	return State{Month: month}
}

// WithSnapshot replaces the record list wholesale.
func (s State) WithSnapshot(records []core.Record) State {
	if records == nil {
		records = []core.Record{}
	}
	s.Records = records
	s.Loaded = true
	s.LoadError = nil
	s.Version++
	return s
}

// WithLoadFailure leaves an empty, not-loaded state carrying err.
func (s State) WithLoadFailure(err error) State {
	s.Records = []core.Record{}
	s.Loaded = false
	s.LoadError = err
	s.Version++
	return s
}

func (s State) WithMonth(m core.YearMonth) State {
	s.Month = core.NewYearMonth(m.Year, m.Month)
	return s
}

func (s State) NextMonth() State { return s.WithMonth(s.Month.Next()) }

func (s State) PrevMonth() State { return s.WithMonth(s.Month.Prev()) }

// Dashboard is everything the presentation layer renders for one month.
type Dashboard struct {
	Month         core.YearMonth                `json:"month"`
	Year          int                           `json:"year"`
	YearlyBucket  core.Bucket                   `json:"yearly"`
	YearlyNet     core.Money                    `json:"yearly_net"`
	MonthlyBucket core.Bucket                   `json:"monthly"`
	MonthlyNet    core.Money                    `json:"monthly_net"`
	DayNet        map[string]core.DayProjection `json:"day_net"`
	Records       []core.Record                 `json:"records"`
	Recent        []core.Record                 `json:"recent"`
	Calendar      core.Calendar                 `json:"calendar"`
	Prev          core.YearMonth                `json:"prev"`
	Next          core.YearMonth                `json:"next"`
	Loaded        bool                          `json:"loaded"`
}

// Summarize derives the dashboard for month. The yearly bucket covers the
// year of the displayed month.
func Summarize(records []core.Record, month core.YearMonth, today core.Date) Dashboard {
	yearly := core.Aggregate(records, core.YearPrefix(month.Year))
	monthly := core.Aggregate(records, month.Prefix())

	recent := records
	if len(recent) > RecentLimit {
		recent = recent[:RecentLimit]
	}

	return Dashboard{
		Month:         month,
		Year:          month.Year,
		YearlyBucket:  yearly,
		YearlyNet:     yearly.Net(),
		MonthlyBucket: monthly,
		MonthlyNet:    monthly.Net(),
		DayNet:        core.DayNetMap(records, month),
		Records:       records,
		Recent:        recent,
		Calendar:      core.BuildCalendar(month, records, today),
		Prev:          month.Prev(),
		Next:          month.Next(),
	}
}
