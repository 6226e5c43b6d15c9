package profile

import (
	"testing"
	"time"

	"github.com/aforolabs/aforo/pkg/ingest"
)

func entry(day string, hour, occupancy int) ingest.Entry {
	return ingest.Entry{
		Timestamp: time.Date(2024, 6, 10, hour, 0, 0, 0, time.Local),
		DayOfWeek: day,
		Hour:      hour,
		Occupancy: occupancy,
	}
}

func TestBuildGroupsAndAverages(t *testing.T) {
	entries := []ingest.Entry{
		entry("Lunes", 9, 40),
		entry("Lunes", 9, 50),
		entry("Lunes", 18, 80),
		entry("Martes", 9, 10), // other day, must be excluded
	}

	points := Build(entries, "lunes")
	if len(points) != 2 {
		t.Fatalf("got %d points, want 2", len(points))
	}
	if points[0].Hour != 9 || points[0].Occupancy != 45 {
		t.Errorf("point[0] = %+v, want hour 9 occupancy 45", points[0])
	}
	if points[1].Hour != 18 || points[1].Occupancy != 80 {
		t.Errorf("point[1] = %+v, want hour 18 occupancy 80", points[1])
	}
}

func TestBuildRoundsMean(t *testing.T) {
	entries := []ingest.Entry{
		entry("Lunes", 9, 40),
		entry("Lunes", 9, 45), // mean 42.5 rounds to 43
	}
	points := Build(entries, "Lunes")
	if points[0].Occupancy != 43 {
		t.Errorf("occupancy = %d, want 43", points[0].Occupancy)
	}
}

func TestBuildSortedNoDuplicates(t *testing.T) {
	entries := []ingest.Entry{
		entry("Lunes", 21, 70),
		entry("Lunes", 8, 30),
		entry("Lunes", 14, 50),
		entry("Lunes", 8, 34),
	}
	points := Build(entries, "Lunes")

	seen := make(map[int]bool)
	for i, p := range points {
		if i > 0 && points[i-1].Hour >= p.Hour {
			t.Errorf("profile not strictly ascending at index %d", i)
		}
		if seen[p.Hour] {
			t.Errorf("duplicate hour %d", p.Hour)
		}
		seen[p.Hour] = true
	}
}

func TestBuildEmptyDay(t *testing.T) {
	entries := []ingest.Entry{entry("Lunes", 9, 40)}
	if points := Build(entries, "Domingo"); points != nil {
		t.Errorf("expected nil profile for empty day, got %v", points)
	}
	if points := Build(nil, "Lunes"); points != nil {
		t.Errorf("expected nil profile for empty entries, got %v", points)
	}
}

func TestHistory(t *testing.T) {
	entries := []ingest.Entry{
		entry("Lunes", 9, 40),
		entry("Martes", 9, 99),
		entry("Lunes", 18, 80),
	}
	history := History(entries, "lunes")
	if len(history) != 2 || history[0] != 40 || history[1] != 80 {
		t.Errorf("history = %v, want [40 80]", history)
	}
}
