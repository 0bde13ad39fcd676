package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2026-01-05")
	require.NoError(t, err)
	assert.Equal(t, "2026-01-05", d.ISO())

	for _, in := range []string{"", "2026-13-01", "2026-02-30", "05/01/2026"} {
		_, err := ParseDate(in)
		assert.ErrorIs(t, err, ErrInvalidDate, in)
	}
}

func TestParseRecordType(t *testing.T) {
	assert.Equal(t, Win, ParseRecordType("win"))
	assert.Equal(t, Win, ParseRecordType(" WIN "))
	assert.Equal(t, Loss, ParseRecordType("loss"))
	assert.Equal(t, Loss, ParseRecordType(""))
}

func TestResolveStake(t *testing.T) {
	assert.Equal(t, "200/50", ResolveStake(OtherStake, " 200/50 "))
	assert.Equal(t, "50/20", ResolveStake("50/20", "ignored"))
}

func TestRecordNet(t *testing.T) {
	win := Record{Type: Win, Amount: Money{Cents: 30000}, TableFee: Money{Cents: 2000}}
	loss := Record{Type: Loss, Amount: Money{Cents: 10000}, TableFee: Money{Cents: 1000}}
	assert.Equal(t, int64(28000), win.Net().Cents)
	assert.Equal(t, int64(-11000), loss.Net().Cents)
}

func TestRecordValidate(t *testing.T) {
	good := Record{
		ID:        "1767571200000",
		Date:      NewDate(2026, 1, 5),
		Type:      Win,
		Amount:    Money{Cents: 100},
		Stake:     "50/20",
		CreatedAt: time.Now(),
	}
	require.NoError(t, good.Validate())

	bads := []Record{
		{Date: NewDate(2026, 1, 5), Type: Win},
		{ID: "1", Type: Win},
		{ID: "1", Date: NewDate(2026, 1, 5), Type: "draw"},
		{ID: "1", Date: NewDate(2026, 1, 5), Type: Win, Amount: Money{Cents: -1}},
		{ID: "1", Date: NewDate(2026, 1, 5), Type: Win, TableFee: Money{Cents: -1}},
	}
	for i, r := range bads {
		assert.Error(t, r.Validate(), "case %d", i)
	}
}
