// Package diversity filters synthesized insights against the hard tag
// constraint matrix, pairwise distinctness, and per-axis-value distribution
// quotas. The solver is greedy and deterministic for a given input order;
// it covers minimum quotas and never violates hard constraints, but makes
// no global-optimality claim.
package diversity

import (
	"errors"
	"math"

	"go.uber.org/zap"

	"github.com/ndomino/triggerforge/internal/model"
	"github.com/ndomino/triggerforge/internal/taxonomy"
)

// MinAxisDistance is the pairwise distinctness floor: any two accepted
// insights must differ on at least this many axes.
const MinAxisDistance = 2

// Enforcer applies distribution targets to a candidate insight list.
type Enforcer struct {
	targets model.DistributionTargets
	logger  *zap.Logger
}

// New creates an enforcer. logger may be nil.
func New(targets model.DistributionTargets, logger *zap.Logger) *Enforcer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Enforcer{targets: targets, logger: logger}
}

// Enforce runs the main accept pass followed by one backfill pass per
// under-filled bucket. Candidates rejected for a hard constraint or for
// near-duplication are gone for good; candidates deferred only by a quota
// stay eligible for backfill.
func (e *Enforcer) Enforce(candidates []model.Insight) []model.Insight {
	tr := newTracker(e.targets)

	valid := make([]model.Insight, 0, len(candidates))
	for _, c := range candidates {
		if err := taxonomy.Validate(c.DimensionTags); err != nil {
			var cerr *taxonomy.ConstraintError
			if errors.As(err, &cerr) {
				e.logger.Info("insight rejected by tag constraint",
					zap.String("insight_id", c.ID),
					zap.String("rule", cerr.Rule.String()))
			} else {
				e.logger.Warn("insight carries invalid tags",
					zap.String("insight_id", c.ID),
					zap.Error(err))
			}
			continue
		}
		valid = append(valid, c)
	}

	quotaDeferred := e.mainPass(tr, valid)
	e.backfill(tr, quotaDeferred)

	return tr.accepted
}

// mainPass accepts candidates against share caps computed from an estimated
// output size. The estimate starts at the candidate count and is re-run at
// the actual accept count until it stops shrinking, so the final shares hold
// against the real total rather than an optimistic one. Returns the
// candidates deferred only by a quota.
func (e *Enforcer) mainPass(tr *tracker, valid []model.Insight) []model.Insight {
	estimate := len(valid)
	if tr.targets.MaxInsights > 0 && tr.targets.MaxInsights < estimate {
		estimate = tr.targets.MaxInsights
	}

	var deferred []model.Insight
	for iter := 0; ; iter++ {
		tr.reset()
		deferred = e.sweep(tr, valid, estimate)
		if len(tr.accepted) >= estimate || iter > len(valid) {
			break
		}
		estimate = len(tr.accepted)
	}
	return deferred
}

// sweep is one deterministic accept pass: first the candidates that fill a
// still-under-minimum bucket, then everything else, both in input order.
func (e *Enforcer) sweep(tr *tracker, valid []model.Insight, estimate int) []model.Insight {
	taken := make([]bool, len(valid))
	var deferred []model.Insight

	for _, minOnly := range []bool{true, false} {
		for i, c := range valid {
			if taken[i] {
				continue
			}
			if minOnly && !tr.fillsMinimum(c.DimensionTags) {
				continue
			}
			taken[i] = true

			if tr.nearDuplicate(c.DimensionTags) {
				e.logger.Info("insight rejected as tag near-duplicate",
					zap.String("insight_id", c.ID))
				continue
			}
			if tr.overQuota(c.DimensionTags, estimate) {
				deferred = append(deferred, c)
				continue
			}
			tr.accept(c)
		}
	}
	return deferred
}

// backfill walks every bucket with an unmet minimum, in fixed axis order,
// and re-admits quota-deferred candidates that satisfy it. Hard constraints
// and distinctness still apply; the share cap is deliberately relaxed, since
// the minimum exists to be covered.
func (e *Enforcer) backfill(tr *tracker, deferred []model.Insight) {
	used := make([]bool, len(deferred))

	for _, axis := range model.AllAxes {
		for _, value := range model.AxisValues[axis] {
			minCount := tr.targets.MinCountFor(axis, value)
			if minCount == 0 {
				continue
			}
			for i, c := range deferred {
				if tr.counts[model.Quota(axis, value)] >= minCount {
					break
				}
				if used[i] || c.DimensionTags.Get(axis) != value {
					continue
				}
				if tr.atCapacity() || tr.nearDuplicate(c.DimensionTags) {
					continue
				}
				used[i] = true
				tr.accept(c)
				e.logger.Info("insight backfilled for under-served bucket",
					zap.String("insight_id", c.ID),
					zap.String("bucket", string(model.Quota(axis, value))))
			}
		}
	}
}

// tracker holds the running accept state of one enforcement run.
type tracker struct {
	targets  model.DistributionTargets
	counts   map[model.QuotaKey]int
	accepted []model.Insight
}

func newTracker(targets model.DistributionTargets) *tracker {
	tr := &tracker{targets: targets}
	tr.reset()
	return tr
}

func (tr *tracker) reset() {
	tr.counts = make(map[model.QuotaKey]int)
	tr.accepted = nil
}

func (tr *tracker) accept(ins model.Insight) {
	for _, axis := range model.AllAxes {
		tr.counts[model.Quota(axis, ins.DimensionTags.Get(axis))]++
	}
	tr.accepted = append(tr.accepted, ins)
}

func (tr *tracker) atCapacity() bool {
	return tr.targets.MaxInsights > 0 && len(tr.accepted) >= tr.targets.MaxInsights
}

// nearDuplicate reports whether tags sit within MinAxisDistance of any
// already-accepted insight.
func (tr *tracker) nearDuplicate(tags model.DimensionTags) bool {
	for _, a := range tr.accepted {
		if model.AxisDistance(tags, a.DimensionTags) < MinAxisDistance {
			return true
		}
	}
	return false
}

// overQuota reports whether accepting tags would push any axis value past
// its share cap, with the cap resolved against the estimated output size.
// One insight per bucket is always allowed so a bucket can bootstrap.
func (tr *tracker) overQuota(tags model.DimensionTags, estimate int) bool {
	if tr.atCapacity() {
		return true
	}
	for _, axis := range model.AllAxes {
		v := tags.Get(axis)
		share := tr.targets.MaxShareFor(axis, v)
		if share <= 0 || share >= 1 {
			continue
		}
		limit := int(math.Floor(share*float64(estimate) + 1e-9))
		if limit < 1 {
			limit = 1
		}
		if tr.counts[model.Quota(axis, v)]+1 > limit {
			return true
		}
	}
	return false
}

// fillsMinimum reports whether tags land in any bucket still below its
// target minimum.
func (tr *tracker) fillsMinimum(tags model.DimensionTags) bool {
	for _, axis := range model.AllAxes {
		v := tags.Get(axis)
		if tr.counts[model.Quota(axis, v)] < tr.targets.MinCountFor(axis, v) {
			return true
		}
	}
	return false
}
