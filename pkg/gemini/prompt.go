package gemini

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aforolabs/aforo/pkg/ingest"
)

// BuildPrompt renders the validated entry set for one day into the analysis
// prompt. Entries for other days are summarized only as totals so the model
// has context without drowning in rows.
func BuildPrompt(entries []ingest.Entry, day string) string {
	var b strings.Builder

	b.WriteString("You are analyzing the occupancy log of a gym. Occupancy readings are\n")
	b.WriteString("percentages of full capacity, sampled at irregular intervals. Day names\n")
	b.WriteString("are Spanish. Recommend the best time to visit on the requested day.\n\n")
	fmt.Fprintf(&b, "REQUESTED DAY: %s\n\n", ingest.NormalizeDayName(day))

	perHour := make(map[int][]int)
	otherDays := 0
	for _, e := range entries {
		if ingest.SameDay(e.DayOfWeek, day) {
			perHour[e.Hour] = append(perHour[e.Hour], e.Occupancy)
		} else {
			otherDays++
		}
	}

	hours := make([]int, 0, len(perHour))
	for h := range perHour {
		hours = append(hours, h)
	}
	sort.Ints(hours)

	b.WriteString("SAMPLES FOR REQUESTED DAY (hour: readings):\n")
	if len(hours) == 0 {
		b.WriteString("  (none)\n")
	}
	for _, h := range hours {
		readings := perHour[h]
		parts := make([]string, len(readings))
		for i, r := range readings {
			parts[i] = fmt.Sprintf("%d%%", r)
		}
		fmt.Fprintf(&b, "  %02d:00  %s\n", h, strings.Join(parts, " "))
	}
	fmt.Fprintf(&b, "\nOther days in the dataset hold %d further readings.\n\n", otherDays)

	b.WriteString("Respond with JSON only: a one-sentence recommendation, a goldenHour\n")
	b.WriteString("given as H:MM and deliberately not on the hour mark, a short analysis,\n")
	b.WriteString("and integer statistics {mean, median, percentile25, stdDev, max, min,\n")
	b.WriteString("bestHour, trend} computed over the hourly means, with trend one of\n")
	b.WriteString("up, down or stable.\n")

	return b.String()
}
