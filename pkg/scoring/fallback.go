package scoring

import "github.com/pairlink-inc/pairlink-engine/pkg/models"

// NeutralScore is substituted when the oracle returns a missing or
// out-of-range score, and used by the full fallback analysis.
const NeutralScore = 70

// NormalizeScore converts the oracle's raw score into a valid [0,100] integer,
// substituting the neutral default when it is absent or out of range.
func NormalizeScore(raw *float64) int {
	if raw == nil {
		return NeutralScore
	}
	score := int(*raw + 0.5)
	if score < 0 || score > 100 {
		return NeutralScore
	}
	return score
}

// FallbackAnalysis returns the fixed analysis used when the oracle fails or
// returns an unusable structure. Scoring must never leave a session unscored
// because of a transient downstream failure, so this is always available and
// fully deterministic.
func FallbackAnalysis() *models.Analysis {
	return &models.Analysis{
		Score: NeutralScore,
		Strengths: []models.Insight{
			{Area: "Commitment", Details: "You both completed the compatibility test, which shows a shared willingness to invest in the relationship."},
			{Area: "Communication", Details: "Answering these questions honestly is a strong foundation for open conversations."},
		},
		Weaknesses: []models.Insight{
			{Area: "Insight depth", Details: "A detailed comparison of your answers was not available this time, so some differences may not be reflected here."},
		},
		Suggestions: []models.Suggestion{
			{Title: "Talk through your answers", Description: "Set aside time to go through the questions together and compare how each of you answered."},
			{Title: "Retake the test later", Description: "Taking the test again after a few months can show how your relationship is evolving."},
		},
	}
}
