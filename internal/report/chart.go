package report

import (
	"bytes"
	"fmt"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"mahjong/internal/core"
)

// YearNets returns the net of each month of year, January first.
func YearNets(records []core.Record, year int) [12]core.Money {
	var out [12]core.Money
	for m := 1; m <= 12; m++ {
		out[m-1] = core.Aggregate(records, core.MonthPrefix(year, m)).Net()
	}
	return out
}

// RenderYearChart draws the monthly and running net of year as a PNG.
func RenderYearChart(records []core.Record, year int) ([]byte, error) {
	nets := YearNets(records, year)

	xs := make([]float64, 12)
	monthly := make([]float64, 12)
	running := make([]float64, 12)
	lo, hi, sum := 0.0, 0.0, 0.0
	for i, n := range nets {
		xs[i] = float64(i + 1)
		monthly[i] = n.Float()
		sum += monthly[i]
		running[i] = sum
		for _, v := range []float64{monthly[i], running[i]} {
			lo, hi = min(lo, v), max(hi, v)
		}
	}
	if lo == hi {
		lo, hi = lo-1, hi+1
	}

	graph := chart.Chart{
		Title:  fmt.Sprintf("%d net by month", year),
		Width:  900,
		Height: 400,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 10, Right: 20, Bottom: 10},
		},
		XAxis: chart.XAxis{
			Range: &chart.ContinuousRange{Min: 1, Max: 12},
			Ticks: monthTicks(),
		},
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: lo, Max: hi},
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return fmt.Sprintf("%.0f", f)
				}
				return ""
			},
		},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name: "Monthly net",
				Style: chart.Style{
					StrokeColor: drawing.ColorFromHex("d97706"),
					StrokeWidth: 2.5,
				},
				XValues: xs,
				YValues: monthly,
			},
			chart.ContinuousSeries{
				Name: "Running net",
				Style: chart.Style{
					StrokeColor:     drawing.ColorFromHex("9ca3af"),
					StrokeWidth:     1.5,
					StrokeDashArray: []float64{5.0, 3.0},
				},
				XValues: xs,
				YValues: running,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.LegendLeft(&graph)}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("chart render failed: %w", err)
	}
	return buf.Bytes(), nil
}

func monthTicks() []chart.Tick {
	ticks := make([]chart.Tick, 12)
	for m := 1; m <= 12; m++ {
		ticks[m-1] = chart.Tick{Value: float64(m), Label: time.Month(m).String()[:3]}
	}
	return ticks
}
