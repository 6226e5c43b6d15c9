// Package advice derives a "best time to visit" recommendation from an
// hourly occupancy profile.
package advice

import (
	"fmt"

	"github.com/aforolabs/aforo/pkg/profile"
)

// Trend values for the golden-hour recommendation.
const (
	TrendRising  = "rising"
	TrendFalling = "falling"
)

// DefaultStabilityScale is the factor applied to the standard deviation
// when computing the stability score.
const DefaultStabilityScale = 2

// neutralGoldenHour is returned when the profile is too thin to recommend
// anything.
const neutralGoldenHour = "12:15"

// Recommendation is the local heuristic's output: a deliberately non-round
// visiting time plus a 0-100 consistency score.
type Recommendation struct {
	GoldenHour string `json:"goldenHour"`
	Trend      string `json:"trend"`
	Stability  int    `json:"stability"`
}

// Recommend finds the quietest hour of the profile and nudges the suggested
// time off the hour mark: if occupancy is about to climb in the next hour
// the suggestion is H:15 (arrive early), otherwise H:45 (the lull is still
// deepening). stdDev comes from the day's summary; stability is
// clamp(100 - scale*stdDev, 0, 100).
func Recommend(points []profile.HourlyPoint, stdDev, scale int) Recommendation {
	if len(points) < 2 {
		return Recommendation{
			GoldenHour: neutralGoldenHour,
			Trend:      TrendFalling,
			Stability:  0,
		}
	}

	minIdx := 0
	for i, p := range points {
		if p.Occupancy < points[minIdx].Occupancy {
			minIdx = i
		}
	}
	minPoint := points[minIdx]

	// The profile is sparse, so "the following hour" means the literal next
	// hour of the clock, not merely the next point. A missing next hour
	// counts as zero occupancy.
	next := 0
	if minIdx+1 < len(points) && points[minIdx+1].Hour == minPoint.Hour+1 {
		next = points[minIdx+1].Occupancy
	}

	trend := TrendFalling
	minute := 45
	if next > minPoint.Occupancy {
		trend = TrendRising
		minute = 15
	}

	return Recommendation{
		GoldenHour: fmt.Sprintf("%d:%02d", minPoint.Hour, minute),
		Trend:      trend,
		Stability:  Stability(stdDev, scale),
	}
}

// Stability maps dispersion among the hourly means to a 0-100 score: lower
// dispersion means higher stability.
func Stability(stdDev, scale int) int {
	if scale <= 0 {
		scale = DefaultStabilityScale
	}
	score := 100 - scale*stdDev
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
