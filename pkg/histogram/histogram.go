// Package histogram renders an hourly occupancy profile for the terminal.
package histogram

import (
	"fmt"
	"strings"

	"github.com/fatih/color"

	"github.com/aforolabs/aforo/pkg/advice"
	"github.com/aforolabs/aforo/pkg/profile"
	"github.com/aforolabs/aforo/pkg/stats"
)

// barWidth is the number of cells a 100% reading occupies.
const barWidth = 40

// Render produces a bar chart of the day's profile with the quietest hour
// highlighted, followed by the summary line and the recommendation.
func Render(day string, points []profile.HourlyPoint, summary *stats.Summary, rec advice.Recommendation) string {
	var output strings.Builder

	fmt.Fprintf(&output, "📊 Ocupación por hora — %s\n", day)
	output.WriteString(strings.Repeat("─", 56) + "\n")

	if len(points) == 0 {
		output.WriteString("Sin datos para este día\n")
		return output.String()
	}

	bestHour := -1
	if summary != nil {
		bestHour = summary.BestHour
	}

	// The summary's Max may come from raw samples rather than hourly means,
	// so the busiest bar is picked from the profile itself.
	peak := 0
	for _, p := range points {
		if p.Occupancy > peak {
			peak = p.Occupancy
		}
	}

	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)
	grey := color.New(color.FgHiBlack)

	for _, p := range points {
		line := fmt.Sprintf("%02d:00 (%3d%%) ", p.Hour, p.Occupancy)

		barLength := p.Occupancy * barWidth / 100
		if barLength == 0 && p.Occupancy > 0 {
			barLength = 1
		}

		bar := strings.Repeat("█", barLength)
		switch {
		case p.Hour == bestHour:
			line += green.Sprint(bar) + green.Sprint("  ← hora valle")
		case p.Occupancy == peak:
			line += red.Sprint(bar)
		default:
			line += grey.Sprint(bar)
		}
		output.WriteString(line + "\n")
	}

	output.WriteString(strings.Repeat("─", 56) + "\n")
	if summary != nil {
		fmt.Fprintf(&output, "media %d%%  mediana %d%%  p25 %d%%  σ %d  max %d%%  min %d%%  tendencia %s\n",
			summary.Mean, summary.Median, summary.Percentile25, summary.StdDev,
			summary.Max, summary.Min, summary.Trend)
	}
	fmt.Fprintf(&output, "Hora dorada: %s (%s)  estabilidad %d/100\n",
		rec.GoldenHour, rec.Trend, rec.Stability)

	return output.String()
}
