package aforo

import (
	"github.com/aforolabs/aforo/pkg/advice"
	"github.com/aforolabs/aforo/pkg/gemini"
	"github.com/aforolabs/aforo/pkg/profile"
	"github.com/aforolabs/aforo/pkg/stats"
)

// NeutralRecommendation is shown while no AI analysis has succeeded.
const NeutralRecommendation = "Sin recomendación todavía"

// Merged is the display-time selection between the local heuristic and the
// AI insight.
type Merged struct {
	GoldenHour     string                `json:"goldenHour"`
	Recommendation string                `json:"recommendation"`
	Analysis       string                `json:"analysis,omitempty"`
	Source         string                `json:"source"`
	Local          advice.Recommendation `json:"local"`
	AI             *gemini.Insight       `json:"ai,omitempty"`
}

// Outcome bundles everything the presentation layer consumes for one day.
type Outcome struct {
	Day     string                `json:"day"`
	Profile []profile.HourlyPoint `json:"profile"`
	Summary *stats.Summary        `json:"summary,omitempty"`
	Result  Merged                `json:"result"`
}

// Merge selects between the local heuristic and an AI insight: when a
// successful AI result exists its golden hour and texts win; otherwise the
// local golden hour is shown with a neutral recommendation. The two results
// are never numerically combined.
func Merge(local advice.Recommendation, ai *gemini.Insight) Merged {
	if ai != nil {
		return Merged{
			GoldenHour:     ai.GoldenHour,
			Recommendation: ai.Recommendation,
			Analysis:       ai.Analysis,
			Source:         "ai",
			Local:          local,
			AI:             ai,
		}
	}
	return Merged{
		GoldenHour:     local.GoldenHour,
		Recommendation: NeutralRecommendation,
		Source:         "local",
		Local:          local,
	}
}
