// Package stats computes descriptive statistics over hourly occupancy
// profiles.
package stats

import (
	"math"
	"sort"

	"github.com/aforolabs/aforo/pkg/profile"
)

// Trend values for a summarized day.
const (
	TrendUp     = "up"
	TrendDown   = "down"
	TrendStable = "stable"
)

// trendDeadBand is the half-mean difference (in occupancy points) below
// which a day is reported as stable rather than up or down.
const trendDeadBand = 2

// Summary holds the descriptive statistics for one day's hourly profile.
type Summary struct {
	Mean         int    `json:"mean"`
	Median       int    `json:"median"`
	Percentile25 int    `json:"percentile25"`
	StdDev       int    `json:"stdDev"`
	Max          int    `json:"max"`
	Min          int    `json:"min"`
	BestHour     int    `json:"bestHour"`
	Trend        string `json:"trend"`
}

// Summarize computes statistics over the hourly profile. Max and min are
// taken from the hourly means themselves. Returns nil for an empty profile.
func Summarize(points []profile.HourlyPoint) *Summary {
	return summarize(points, nil)
}

// SummarizeWithHistory is the variant that sources max and min from the raw
// per-sample history for the day instead of the hourly means. Everything
// else is computed from the profile.
func SummarizeWithHistory(points []profile.HourlyPoint, history []int) *Summary {
	if len(history) == 0 {
		return Summarize(points)
	}
	return summarize(points, history)
}

func summarize(points []profile.HourlyPoint, extrema []int) *Summary {
	if len(points) == 0 {
		return nil
	}

	values := profile.Values(points)
	mean := roundedMean(values)

	sorted := append([]int(nil), values...)
	sort.Ints(sorted)

	// The midpoint index is floor(n/2): for an even-length series this
	// picks the upper-middle element, not the averaged midpoint. Downstream
	// consumers depend on this exact tie-break.
	median := sorted[len(sorted)/2]
	percentile25 := sorted[int(float64(len(sorted))*0.25)]

	if extrema == nil {
		extrema = sorted
	}
	maxVal, minVal := extrema[0], extrema[0]
	for _, v := range extrema {
		if v > maxVal {
			maxVal = v
		}
		if v < minVal {
			minVal = v
		}
	}

	return &Summary{
		Mean:         mean,
		Median:       median,
		Percentile25: percentile25,
		StdDev:       populationStdDev(values, mean),
		Max:          maxVal,
		Min:          minVal,
		BestHour:     bestHour(points),
		Trend:        trend(values),
	}
}

func roundedMean(values []int) int {
	sum := 0
	for _, v := range values {
		sum += v
	}
	return int(float64(sum)/float64(len(values)) + 0.5)
}

// populationStdDev divides by n, not n-1, and measures dispersion against
// the already-rounded mean.
func populationStdDev(values []int, mean int) int {
	sumSquares := 0.0
	for _, v := range values {
		d := float64(v - mean)
		sumSquares += d * d
	}
	return int(math.Sqrt(sumSquares/float64(len(values))) + 0.5)
}

// bestHour is the hour with the lowest mean occupancy.
func bestHour(points []profile.HourlyPoint) int {
	best := points[0]
	for _, p := range points[1:] {
		if p.Occupancy < best.Occupancy {
			best = p
		}
	}
	return best.Hour
}

// trend compares the mean of the later half of the day against the earlier
// half, with a small dead band so near-flat days read as stable.
func trend(values []int) string {
	if len(values) < 2 {
		return TrendStable
	}
	half := len(values) / 2
	early := roundedMean(values[:half])
	late := roundedMean(values[len(values)-half:])
	switch {
	case late-early > trendDeadBand:
		return TrendUp
	case early-late > trendDeadBand:
		return TrendDown
	default:
		return TrendStable
	}
}
