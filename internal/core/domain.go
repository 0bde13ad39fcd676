package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Win  RecordType = "win"
	Loss RecordType = "loss"
)

// OtherStake is the preset that switches the stake label to free text.
const OtherStake = "其他"

// DefaultStake is the preset preselected on a new record form.
const DefaultStake = "50/20"

// StakePresets lists the selectable stake levels in display order.
var StakePresets = []string{"30/10", "50/20", "100/20", "100/30", OtherStake}

const dateLayout = "2006-01-02"

type (
	RecordType string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Record is one recorded session outcome.
	Record struct {
		ID        string     `json:"id"`
		Date      Date       `json:"date"`
		Type      RecordType `json:"type"`
		Amount    Money      `json:"amount"` // magnitude, sign implied by Type
		TableFee  Money      `json:"tableFee"`
		Stake     string     `json:"stake"`
		CreatedAt time.Time  `json:"createdAt"`
	}
)

var (
	ErrInvalidDate     = errors.New("invalid date")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidTableFee = errors.New("invalid table fee")
	ErrInvalidType     = errors.New("invalid record type")
	ErrEmptyID         = errors.New("empty record id")
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses an ISO YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

// DateOf truncates t to its calendar day in t's location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ISO returns the YYYY-MM-DD form used for prefix bucketing.
func (d Date) ISO() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.ISO() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// ParseRecordType maps stored type strings; anything but "win" counts as a loss.
func ParseRecordType(s string) RecordType {
	if strings.EqualFold(strings.TrimSpace(s), string(Win)) {
		return Win
	}
	return Loss
}

func (t RecordType) Valid() bool {
	return t == Win || t == Loss
}

// ResolveStake returns the label stored on a record for the chosen preset.
func ResolveStake(preset, custom string) string {
	preset = strings.TrimSpace(preset)
	if preset == OtherStake {
		return strings.TrimSpace(custom)
	}
	return preset
}

// Signed returns the amount with the sign implied by the record type.
func (r Record) Signed() Money {
	if r.Type == Win {
		return r.Amount
	}
	return Money{Cents: -r.Amount.Cents}
}

// Net is the record's contribution to a day: signed amount minus table fee.
func (r Record) Net() Money {
	return r.Signed().Sub(r.TableFee)
}

func (r Record) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return ErrEmptyID
	}
	if err := r.Date.Validate(); err != nil {
		return err
	}
	if !r.Type.Valid() {
		return ErrInvalidType
	}
	if r.Amount.Cents < 0 {
		return ErrInvalidAmount
	}
	if r.TableFee.Cents < 0 {
		return ErrInvalidTableFee
	}
	return nil
}
