package core

import (
	"fmt"
	"time"
)

// YearMonth identifies a displayed month. Month is 1-12.
type YearMonth struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

// CalendarCell is one slot of a 7-column month grid. Leading blanks have Day 0.
type CalendarCell struct {
	Day       int    `json:"day,omitempty"`
	Date      string `json:"date,omitempty"`
	IsToday   bool   `json:"is_today,omitempty"`
	IsWeekend bool   `json:"is_weekend,omitempty"`
	HasNet    bool   `json:"has_net,omitempty"`
	Net       Money  `json:"net"`
	Count     int    `json:"count,omitempty"`
}

// Calendar is a month laid out Sunday-first.
type Calendar struct {
	YearMonth
	Leading int            `json:"leading"`
	Cells   []CalendarCell `json:"cells"`
}

// NewYearMonth normalizes any month number, so (2026, 13) becomes 2027-01.
func NewYearMonth(year, month int) YearMonth {
	t := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	return YearMonth{Year: t.Year(), Month: int(t.Month())}
}

// YearMonthOf returns the month containing t.
func YearMonthOf(t time.Time) YearMonth {
	return YearMonth{Year: t.Year(), Month: int(t.Month())}
}

func (ym YearMonth) Valid() bool {
	return ym.Month >= 1 && ym.Month <= 12
}

func (ym YearMonth) Next() YearMonth {
	if ym.Month >= 12 {
		return YearMonth{Year: ym.Year + 1, Month: 1}
	}
	return YearMonth{Year: ym.Year, Month: ym.Month + 1}
}

func (ym YearMonth) Prev() YearMonth {
	if ym.Month <= 1 {
		return YearMonth{Year: ym.Year - 1, Month: 12}
	}
	return YearMonth{Year: ym.Year, Month: ym.Month - 1}
}

// Prefix is the "YYYY-MM" date prefix for this month.
func (ym YearMonth) Prefix() string {
	return MonthPrefix(ym.Year, ym.Month)
}

func (ym YearMonth) String() string {
	return ym.Prefix()
}

// DaysInMonth returns the Gregorian length of month (1-12) in year.
func DaysInMonth(year, month int) int {
	// Day 0 of the following month is the last day of this one.
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// FirstWeekday returns the weekday of the 1st, Sunday = 0.
func FirstWeekday(year, month int) time.Weekday {
	return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC).Weekday()
}

// DateString formats a day of ym as YYYY-MM-DD.
func (ym YearMonth) DateString(day int) string {
	return fmt.Sprintf("%s-%02d", ym.Prefix(), day)
}

// BuildCalendar lays out ym with one leading blank per weekday offset and one
// cell per day, attaching the per-day projection for days that have records.
func BuildCalendar(ym YearMonth, records []Record, today Date) Calendar {
	leading := int(FirstWeekday(ym.Year, ym.Month))
	days := DaysInMonth(ym.Year, ym.Month)
	projections := DayNetMap(records, ym)
	todayISO := today.ISO()

	cells := make([]CalendarCell, leading, leading+days)
	for d := 1; d <= days; d++ {
		date := ym.DateString(d)
		wd := (leading + d - 1) % 7
		cell := CalendarCell{
			Day:       d,
			Date:      date,
			IsToday:   date == todayISO,
			IsWeekend: wd == int(time.Sunday) || wd == int(time.Saturday),
		}
		if p, ok := projections[date]; ok {
			cell.HasNet = true
			cell.Net = p.Net
			cell.Count = p.Count
		}
		cells = append(cells, cell)
	}
	return Calendar{YearMonth: ym, Leading: leading, Cells: cells}
}
