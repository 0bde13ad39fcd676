package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func rec(id, date string, typ RecordType, amount, fee int64) Record {
	d, err := ParseDate(date)
	if err != nil {
		panic(err)
	}
	return Record{ID: id, Date: d, Type: typ, Amount: Money{Cents: amount * 100}, TableFee: Money{Cents: fee * 100}}
}

func TestMonthScenario(t *testing.T) {
	records := []Record{
		rec("1", "2026-01-05", Win, 300, 20),
		rec("2", "2026-01-05", Loss, 100, 10),
	}

	monthly := Aggregate(records, MonthPrefix(2026, 1))
	assert.Equal(t, Bucket{Won: Money{30000}, Lost: Money{10000}, Fees: Money{3000}}, monthly)
	assert.Equal(t, int64(17000), monthly.Net().Cents)

	day, ok := ProjectDay(records, "2026-01-05")
	assert.True(t, ok)
	assert.Equal(t, monthly.Net(), day)
}

func TestAggregatePrefixes(t *testing.T) {
	records := []Record{
		rec("1", "2026-01-05", Win, 300, 20),
		rec("2", "2026-02-10", Loss, 50, 5),
		rec("3", "2025-12-31", Win, 1000, 0),
		rec("4", "2026-10-01", Loss, 10, 0),
	}

	year := Aggregate(records, YearPrefix(2026))
	assert.Equal(t, int64(30000), year.Won.Cents)
	assert.Equal(t, int64(6000), year.Lost.Cents)
	assert.Equal(t, int64(2500), year.Fees.Cents)

	// "2026-1" must not leak into October when asking for January.
	jan := Aggregate(records, MonthPrefix(2026, 1))
	assert.Equal(t, int64(0), jan.Lost.Cents)

	assert.Equal(t, Bucket{}, Aggregate(nil, YearPrefix(2026)))
}

func TestFeesCountedForBothTypes(t *testing.T) {
	records := []Record{
		rec("1", "2026-03-01", Loss, 0, 15),
		rec("2", "2026-03-02", Win, 0, 25),
	}
	b := Aggregate(records, MonthPrefix(2026, 3))
	assert.Equal(t, int64(4000), b.Fees.Cents)
	assert.Equal(t, int64(-4000), b.Net().Cents)
}

func TestProjectDayEmptyVersusZero(t *testing.T) {
	records := []Record{
		rec("1", "2026-04-01", Win, 100, 0),
		rec("2", "2026-04-01", Loss, 100, 0),
	}

	net, ok := ProjectDay(records, "2026-04-01")
	assert.True(t, ok)
	assert.True(t, net.IsZero())

	net, ok = ProjectDay(records, "2026-04-02")
	assert.False(t, ok)
	assert.True(t, net.IsZero())
}

func TestYearBucketEqualsSumOfDays(t *testing.T) {
	records := []Record{
		rec("1", "2026-01-05", Win, 300, 20),
		rec("2", "2026-01-05", Loss, 100, 10),
		rec("3", "2026-02-28", Loss, 250, 30),
		rec("4", "2026-07-14", Win, 75, 0),
		rec("5", "2026-12-31", Win, 10, 40),
		rec("6", "2027-01-01", Win, 999, 0),
		rec("7", "2025-12-31", Loss, 999, 0),
	}

	var sum Money
	for m := 1; m <= 12; m++ {
		ym := YearMonth{Year: 2026, Month: m}
		for d := 1; d <= DaysInMonth(2026, m); d++ {
			if net, ok := ProjectDay(records, ym.DateString(d)); ok {
				sum = sum.Add(net)
			}
		}
	}
	assert.Equal(t, Aggregate(records, YearPrefix(2026)).Net(), sum)
}

func TestDayNetMap(t *testing.T) {
	records := []Record{
		rec("1", "2026-01-05", Win, 300, 20),
		rec("2", "2026-01-05", Loss, 100, 10),
		rec("3", "2026-01-09", Loss, 40, 0),
		rec("4", "2026-02-01", Win, 1, 0),
	}
	m := DayNetMap(records, YearMonth{Year: 2026, Month: 1})
	assert.Len(t, m, 2)
	assert.Equal(t, DayProjection{Net: Money{17000}, Count: 2}, m["2026-01-05"])
	assert.Equal(t, DayProjection{Net: Money{-4000}, Count: 1}, m["2026-01-09"])
}
