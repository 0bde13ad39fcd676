package core

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDaysInMonth(t *testing.T) {
	cases := []struct {
		year, month, days int
	}{
		{2026, 1, 31},
		{2026, 2, 28},
		{2027, 2, 28},
		{2028, 2, 29},
		{2100, 2, 28},
		{2000, 2, 29},
		{2026, 4, 30},
		{2026, 12, 31},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("%d-%02d", tc.year, tc.month), func(t *testing.T) {
			assert.Equal(t, tc.days, DaysInMonth(tc.year, tc.month))
		})
	}
}

func TestFirstWeekday(t *testing.T) {
	assert.Equal(t, time.Thursday, FirstWeekday(2026, 1))
	assert.Equal(t, time.Sunday, FirstWeekday(2026, 2))
	assert.Equal(t, time.Tuesday, FirstWeekday(2028, 2))
}

func TestMonthNavigation(t *testing.T) {
	dec := YearMonth{Year: 2026, Month: 12}
	assert.Equal(t, YearMonth{Year: 2027, Month: 1}, dec.Next())
	assert.Equal(t, YearMonth{Year: 2025, Month: 12}, YearMonth{Year: 2026, Month: 1}.Prev())

	for y := 2024; y <= 2028; y++ {
		for m := 1; m <= 12; m++ {
			ym := YearMonth{Year: y, Month: m}
			assert.Equal(t, ym, ym.Next().Prev())
			assert.Equal(t, ym, ym.Prev().Next())
		}
	}
}

func TestNewYearMonthNormalizes(t *testing.T) {
	assert.Equal(t, YearMonth{Year: 2027, Month: 1}, NewYearMonth(2026, 13))
	assert.Equal(t, YearMonth{Year: 2025, Month: 12}, NewYearMonth(2026, 0))
}

func TestBuildCalendar(t *testing.T) {
	records := []Record{
		rec("1", "2026-01-05", Win, 300, 20),
		rec("2", "2026-01-05", Loss, 100, 10),
		rec("3", "2026-01-06", Win, 100, 0),
		rec("4", "2026-01-06", Loss, 100, 0),
	}
	cal := BuildCalendar(YearMonth{Year: 2026, Month: 1}, records, NewDate(2026, 1, 6))

	require.Equal(t, 4, cal.Leading)
	require.Len(t, cal.Cells, 4+31)
	for i := 0; i < cal.Leading; i++ {
		assert.Zero(t, cal.Cells[i].Day)
	}

	first := cal.Cells[4]
	assert.Equal(t, 1, first.Day)
	assert.Equal(t, "2026-01-01", first.Date)
	assert.False(t, first.HasNet)

	fifth := cal.Cells[4+4]
	assert.Equal(t, "2026-01-05", fifth.Date)
	assert.True(t, fifth.HasNet)
	assert.Equal(t, int64(17000), fifth.Net.Cents)
	assert.Equal(t, 2, fifth.Count)

	sixth := cal.Cells[4+5]
	assert.True(t, sixth.IsToday)
	assert.True(t, sixth.HasNet)
	assert.True(t, sixth.Net.IsZero())

	// 2026-01-03 is a Saturday, 2026-01-04 a Sunday.
	assert.True(t, cal.Cells[4+2].IsWeekend)
	assert.True(t, cal.Cells[4+3].IsWeekend)
	assert.False(t, cal.Cells[4+4].IsWeekend)
}
