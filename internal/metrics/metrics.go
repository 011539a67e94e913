// Package metrics defines the engine's prometheus collectors. Collectors are
// passed explicitly to the components that increment them; nothing here is a
// global.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the engine collectors.
type Metrics struct {
	SamplesIngested   prometheus.Counter
	SamplesRejected   *prometheus.CounterVec // label: reason
	DedupMerged       *prometheus.CounterVec // label: layer (content_hash, title_hash, embedding)
	EmbedCache        *prometheus.CounterVec // label: result (hit, miss)
	SynthesisFailures *prometheus.CounterVec // label: stage (llm_call, parse)
	InsightsPublished prometheus.Counter
}

// New creates the collectors and registers them on reg. A nil registerer
// leaves them unregistered, which the tests rely on.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SamplesIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "triggerforge_samples_ingested_total",
			Help: "Samples accepted by the normalizer.",
		}),
		SamplesRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "triggerforge_samples_rejected_total",
			Help: "Samples rejected before deduplication, by reason.",
		}, []string{"reason"}),
		DedupMerged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "triggerforge_dedup_merged_total",
			Help: "Samples merged by the deduplicator, by layer.",
		}, []string{"layer"}),
		EmbedCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "triggerforge_embed_cache_total",
			Help: "Embedding cache lookups, by result.",
		}, []string{"result"}),
		SynthesisFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "triggerforge_synthesis_failures_total",
			Help: "Per-cluster synthesis failures, by stage.",
		}, []string{"stage"}),
		InsightsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "triggerforge_insights_published_total",
			Help: "Insights published after diversity enforcement.",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.SamplesIngested, m.SamplesRejected, m.DedupMerged,
			m.EmbedCache, m.SynthesisFailures, m.InsightsPublished,
		)
	}
	return m
}
