package refine

import "github.com/turboinfra/agent-core/pkg/utils"

// Trend classifies the direction of recent valid scores
type Trend string

const (
	TrendImproving Trend = "improving"
	TrendDegrading Trend = "degrading"
	TrendStable    Trend = "stable"
)

// HistorySummary aggregates the valid scores of a session history
type HistorySummary struct {
	ValidScores    int     `json:"valid_scores"`
	FailedAttempts int     `json:"failed_attempts"`
	AverageScore   float64 `json:"average_score"`
	ScoreStdDev    float64 `json:"score_stddev"`
	Trend          Trend   `json:"trend"`
}

// SummarizeHistory computes score statistics over a session history. Invalid
// records are counted but excluded from the statistics so failure sentinels
// do not drag the averages.
func SummarizeHistory(history []ScoreRecord) HistorySummary {
	var scores []float64
	failed := 0
	for _, rec := range history {
		if rec.Valid {
			scores = append(scores, rec.Score)
		} else {
			failed++
		}
	}
	return HistorySummary{
		ValidScores:    len(scores),
		FailedAttempts: failed,
		AverageScore:   utils.Mean(scores),
		ScoreStdDev:    utils.StdDev(scores),
		Trend:          scoreTrend(scores),
	}
}

// scoreTrend fits a least-squares line through the scores in iteration
// order. Scores are efficiencies, so a positive slope means improving.
func scoreTrend(scores []float64) Trend {
	if len(scores) < 2 {
		return TrendStable
	}

	n := float64(len(scores))
	var sumX, sumY, sumXY, sumX2 float64
	for i, score := range scores {
		x := float64(i)
		sumX += x
		sumY += score
		sumXY += x * score
		sumX2 += x * x
	}

	slope := (n*sumXY - sumX*sumY) / (n*sumX2 - sumX*sumX)

	if slope > 0.01 {
		return TrendImproving
	}
	if slope < -0.01 {
		return TrendDegrading
	}
	return TrendStable
}
