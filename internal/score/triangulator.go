// Package score computes cluster confidence. Corroboration across
// independent evidence types (reviews vs. forum vs. news vs. executive
// signal) is worth more than volume within one type, so the triangulation
// multiplier dominates the member count.
package score

import (
	"fmt"
	"math"

	"github.com/ndomino/triggerforge/internal/model"
)

// Scoring parameters. Fixed so the same cluster always scores the same.
const (
	memberWeight  = 0.5
	intentWeight  = 0.5
	memberSaturat = 10 // member count at which the volume component maxes out

	multiTriangulated = 1.3  // >=3 distinct source types
	multiCorroborated = 1.15 // exactly 2
	multiSingleSource = 0.9  // exactly 1: discounted, never promoted
)

// Result is a scored cluster with its transparent breakdown.
type Result struct {
	Confidence float64
	Signals    []model.Signal
}

// Triangulator scores clusters.
type Triangulator struct{}

// NewTriangulator creates a triangulator.
func NewTriangulator() *Triangulator {
	return &Triangulator{}
}

// Score computes confidence in [0,1] for a cluster: a base from member count
// and average intent strength, then the source-type multiplier, capped at 1.
func (t *Triangulator) Score(cluster model.Cluster) Result {
	n := len(cluster.Members)
	avgIntent := cluster.AvgIntentStrength()

	memberComponent := memberWeight * math.Min(float64(n)/memberSaturat, 1)
	intentComponent := intentWeight * avgIntent
	base := memberComponent + intentComponent

	types := len(cluster.SourceTypeSet())
	mult := multiSingleSource
	switch {
	case types >= 3:
		mult = multiTriangulated
	case types == 2:
		mult = multiCorroborated
	}

	confidence := math.Min(base*mult, 1)

	signals := []model.Signal{
		{
			Type:        model.SignalMemberCount,
			Description: fmt.Sprintf("%d members contribute %.2f", n, memberComponent),
			Data: map[string]interface{}{
				"members":   n,
				"component": memberComponent,
				"formula":   "0.5 * min(members/10, 1)",
			},
		},
		{
			Type:        model.SignalIntentAvg,
			Description: fmt.Sprintf("average intent %.2f contributes %.2f", avgIntent, intentComponent),
			Data: map[string]interface{}{
				"avg_intent": avgIntent,
				"component":  intentComponent,
				"formula":    "0.5 * avg_intent",
			},
		},
		{
			Type:        model.SignalTriangulation,
			Description: fmt.Sprintf("%d source types, multiplier %.2f", types, mult),
			Data: map[string]interface{}{
				"source_types": types,
				"multiplier":   mult,
				"base":         base,
			},
		},
	}
	if types == 1 {
		signals = append(signals, model.Signal{
			Type:        model.SignalSingleSource,
			Description: "single-source cluster discounted, not discarded",
		})
	}

	return Result{Confidence: confidence, Signals: signals}
}
