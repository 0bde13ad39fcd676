package core

import (
	"fmt"
	"strings"
)

// Bucket aggregates records whose date matches a prefix.
type Bucket struct {
	Won  Money `json:"won"`
	Lost Money `json:"lost"`
	Fees Money `json:"fees"`
}

// Net is won - lost - fees.
func (b Bucket) Net() Money {
	return b.Won.Sub(b.Lost).Sub(b.Fees)
}

// DayProjection is the projected net of one calendar day that has records.
type DayProjection struct {
	Net   Money `json:"net"`
	Count int   `json:"count"`
}

// YearPrefix returns the date prefix selecting a whole year ("2026").
func YearPrefix(year int) string {
	return fmt.Sprintf("%04d", year)
}

// MonthPrefix returns the date prefix selecting one month ("2026-01").
func MonthPrefix(year, month int) string {
	return fmt.Sprintf("%04d-%02d", year, month)
}

// Aggregate sums the records whose ISO date starts with prefix.
// Win amounts go to Won, Loss amounts to Lost, and every matching
// record's table fee goes to Fees regardless of type.
func Aggregate(records []Record, prefix string) Bucket {
	var b Bucket
	for _, r := range records {
		if !strings.HasPrefix(r.Date.ISO(), prefix) {
			continue
		}
		if r.Type == Win {
			b.Won = b.Won.Add(r.Amount)
		} else {
			b.Lost = b.Lost.Add(r.Amount)
		}
		b.Fees = b.Fees.Add(r.TableFee)
	}
	return b
}

// ProjectDay sums Record.Net over the records dated exactly date.
// ok is false when no record matches, so an empty day is distinguishable
// from a day that nets to zero.
func ProjectDay(records []Record, date string) (net Money, ok bool) {
	for _, r := range records {
		if r.Date.ISO() != date {
			continue
		}
		net = net.Add(r.Net())
		ok = true
	}
	return net, ok
}

// DayNetMap projects every day of ym that has at least one record.
func DayNetMap(records []Record, ym YearMonth) map[string]DayProjection {
	prefix := ym.Prefix()
	out := make(map[string]DayProjection)
	for _, r := range records {
		iso := r.Date.ISO()
		if !strings.HasPrefix(iso, prefix) {
			continue
		}
		p := out[iso]
		p.Net = p.Net.Add(r.Net())
		p.Count++
		out[iso] = p
	}
	return out
}
