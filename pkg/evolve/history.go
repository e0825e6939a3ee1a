package evolve

import (
	"time"

	"github.com/Iszy-Dzire/Self-Evolving-Portfolio-2/pkg/evolve/metrics"
)

// MaxHistory bounds the evolution history ring; the oldest records are
// evicted first.
const MaxHistory = 100

// HistoryRecord captures one fired adaptation together with the metrics
// snapshot that triggered it, so past decisions stay explainable after
// the aggregate moves on.
type HistoryRecord struct {
	ID              string           `json:"id"`
	Timestamp       time.Time        `json:"timestamp"`
	Rule            string           `json:"rule"`
	Description     string           `json:"description"`
	Snapshot        metrics.Snapshot `json:"snapshot"`
	EngagementScore float64          `json:"engagement_score"`
}

// Insights aggregates the evolution history for the presentation layer.
type Insights struct {
	TotalEvolutions   int            `json:"total_evolutions"`
	FireCounts        map[string]int `json:"fire_counts"`
	AverageEngagement float64        `json:"average_engagement"`
}

func computeInsights(records []HistoryRecord) Insights {
	insights := Insights{
		TotalEvolutions: len(records),
		FireCounts:      make(map[string]int, len(records)),
	}
	if len(records) == 0 {
		return insights
	}

	var sum float64
	for _, rec := range records {
		insights.FireCounts[rec.Description]++
		sum += rec.EngagementScore
	}
	insights.AverageEngagement = sum / float64(len(records))
	return insights
}
