// Package report renders records as an XLSX workbook and a yearly chart.
package report

import (
	"bytes"
	"fmt"
	"io"
	"sort"

	"github.com/xuri/excelize/v2"

	"mahjong/internal/core"
)

const (
	RecordsSheet = "Records"
	MonthlySheet = "Monthly"

	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// MonthTotals is one row of the monthly summary.
type MonthTotals struct {
	Month  core.YearMonth
	Bucket core.Bucket
	Count  int
}

// Monthly groups records by month, oldest first.
func Monthly(records []core.Record) []MonthTotals {
	counts := map[core.YearMonth]int{}
	for _, r := range records {
		counts[core.YearMonthOf(r.Date.Time)]++
	}
	months := make([]core.YearMonth, 0, len(counts))
	for m := range counts {
		months = append(months, m)
	}
	sort.Slice(months, func(i, j int) bool { return months[i].Prefix() < months[j].Prefix() })

	out := make([]MonthTotals, 0, len(months))
	for _, m := range months {
		out = append(out, MonthTotals{Month: m, Bucket: core.Aggregate(records, m.Prefix()), Count: counts[m]})
	}
	return out
}

// WriteWorkbook writes every record and a per-month summary as XLSX.
func WriteWorkbook(w io.Writer, records []core.Record) error {
	f := excelize.NewFile()
	defer f.Close()

	// The default sheet becomes the record list.
	if err := f.SetSheetName("Sheet1", RecordsSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	headers := []any{"ID", "Date", "Type", "Stake", "Amount", "Table fee", "Net"}
	if err := f.SetSheetRow(RecordsSheet, "A1", &headers); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, r := range records {
		row := []any{r.ID, r.Date.ISO(), string(r.Type), r.Stake, r.Amount.Float(), r.TableFee.Float(), r.Net().Float()}
		if err := f.SetSheetRow(RecordsSheet, fmt.Sprintf("A%d", i+2), &row); err != nil {
			return fmt.Errorf("write record %s: %w", r.ID, err)
		}
	}
	_ = f.SetColWidth(RecordsSheet, "A", "A", 16)
	_ = f.SetColWidth(RecordsSheet, "B", "B", 12)
	_ = f.SetColWidth(RecordsSheet, "D", "D", 10)

	if _, err := f.NewSheet(MonthlySheet); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	mheaders := []any{"Month", "Records", "Won", "Lost", "Fees", "Net"}
	if err := f.SetSheetRow(MonthlySheet, "A1", &mheaders); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, m := range Monthly(records) {
		row := []any{m.Month.Prefix(), m.Count, m.Bucket.Won.Float(), m.Bucket.Lost.Float(), m.Bucket.Fees.Float(), m.Bucket.Net().Float()}
		if err := f.SetSheetRow(MonthlySheet, fmt.Sprintf("A%d", i+2), &row); err != nil {
			return fmt.Errorf("write month %s: %w", m.Month, err)
		}
	}

	f.SetActiveSheet(0)
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// Workbook is WriteWorkbook into memory.
func Workbook(records []core.Record) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteWorkbook(&buf, records); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
