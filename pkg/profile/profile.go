// Package profile aggregates validated entries into hourly occupancy curves.
package profile

import (
	"sort"

	"github.com/aforolabs/aforo/pkg/ingest"
)

// HourlyPoint is the mean occupancy observed for one hour of the day.
type HourlyPoint struct {
	Hour      int `json:"hour"`
	Occupancy int `json:"occupancy"`
}

// Build filters entries to the given day (case-insensitive, plural
// artifacts folded) and returns one point per distinct observed hour,
// sorted ascending. Hours without observations produce no point.
func Build(entries []ingest.Entry, day string) []HourlyPoint {
	sums := make(map[int]int)
	counts := make(map[int]int)
	for _, e := range entries {
		if !ingest.SameDay(e.DayOfWeek, day) {
			continue
		}
		sums[e.Hour] += e.Occupancy
		counts[e.Hour]++
	}
	if len(counts) == 0 {
		return nil
	}

	points := make([]HourlyPoint, 0, len(counts))
	for hour, count := range counts {
		mean := float64(sums[hour]) / float64(count)
		points = append(points, HourlyPoint{Hour: hour, Occupancy: int(mean + 0.5)})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Hour < points[j].Hour })
	return points
}

// Values extracts the occupancy series from a profile, preserving order.
func Values(points []HourlyPoint) []int {
	values := make([]int, len(points))
	for i, p := range points {
		values[i] = p.Occupancy
	}
	return values
}

// History returns the raw per-sample occupancy series for the given day,
// in entry order. Used by the variant that sources max/min from the raw
// history rather than the hourly means.
func History(entries []ingest.Entry, day string) []int {
	var values []int
	for _, e := range entries {
		if ingest.SameDay(e.DayOfWeek, day) {
			values = append(values, e.Occupancy)
		}
	}
	return values
}
