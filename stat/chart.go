package stat

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/wcharczuk/go-chart/v2"
)

// renderDailyChart draws a bar chart of records per day for the month.
// Returns nil bytes when there is nothing to draw.
func renderDailyChart(month, year int, days []DayStat) ([]byte, error) {
	if len(days) == 0 {
		return nil, nil
	}

	bars := make([]chart.Value, 0, len(days))
	for _, day := range days {
		bars = append(bars, chart.Value{
			Label: strconv.Itoa(day.Day),
			Value: float64(day.Total),
			Style: chart.Style{
				StrokeColor: chart.ColorBlue,
				FillColor:   chart.ColorBlue.WithAlpha(160),
			},
		})
	}

	graph := chart.BarChart{
		Title: fmt.Sprintf("Payouts per day, %02d.%d", month, year),
		TitleStyle: chart.Style{
			FontSize:  14,
			FontColor: chart.ColorBlack,
		},
		Width:    800,
		Height:   400,
		BarWidth: 24,
		Background: chart.Style{
			Padding: chart.Box{
				Top:    40,
				Left:   20,
				Right:  20,
				Bottom: 20,
			},
			FillColor: chart.ColorWhite,
		},
		YAxis: chart.YAxis{
			ValueFormatter: func(v interface{}) string {
				return fmt.Sprintf("%.0f", v.(float64))
			},
		},
		Bars: bars,
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("failed to render daily chart: %w", err)
	}
	return buf.Bytes(), nil
}
