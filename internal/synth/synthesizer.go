// Package synth turns scored clusters into evidence-backed insights. The
// title is assembled from a verb table keyed to the cluster's dominant
// sentiment and intent, never to its category alone, because a desire-category
// cluster can still carry complaint language about a competitor.
package synth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/ndomino/triggerforge/internal/llm"
	"github.com/ndomino/triggerforge/internal/model"
	"github.com/ndomino/triggerforge/internal/score"
	"github.com/ndomino/triggerforge/internal/worker"
)

// ErrUnparseable means the LLM summary failed validation even after wrapper
// repair. The cluster yields no insight; the batch continues.
var ErrUnparseable = errors.New("synth: summary output failed to parse")

// verbTable keys title verb phrases to the dominant intent class.
// Extend here; the selection logic never special-cases a class.
var verbTable = map[model.IntentClass][]string{
	model.IntentComplaint:  {"are frustrated by", "are struggling with"},
	model.IntentDesire:     {"are seeking", "are wanting"},
	model.IntentComparison: {"are evaluating alternatives due to"},
}

// neutralVerbs cover clusters with no dominant intent class, keyed to the
// dominant literal sentiment instead.
var neutralVerbs = map[model.Sentiment][]string{
	model.SentimentNegative: {"are frustrated by"},
	model.SentimentPositive: {"are excited about"},
	model.SentimentNeutral:  {"are discussing"},
}

// familyTopics renders each pain-point keyword family as a title object.
var familyTopics = map[string]string{
	"support":        "slow support response times",
	"pricing":        "opaque pricing and renewal costs",
	"integration":    "missing integrations and sync gaps",
	"onboarding":     "drawn-out onboarding",
	"reporting":      "limited reporting and exports",
	"performance":    "slow and unreliable performance",
	"deliverability": "poor email deliverability",
}

// Synthesizer produces one Insight per accepted cluster. With no LLM
// provider configured it falls back to template summaries.
type Synthesizer struct {
	provider llm.Provider
	limiter  *worker.Limiter
	retries  int
	failures *prometheus.CounterVec
	logger   *zap.Logger
}

// New creates a synthesizer. provider may be nil; failures may be nil.
func New(provider llm.Provider, limiter *worker.Limiter, retries int, failures *prometheus.CounterVec, logger *zap.Logger) *Synthesizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if retries < 0 {
		retries = 0
	}
	return &Synthesizer{
		provider: provider,
		limiter:  limiter,
		retries:  retries,
		failures: failures,
		logger:   logger,
	}
}

// Synthesize builds the insight record for one cluster. Returns
// ErrUnparseable when LLM output fails post-call validation; the caller
// drops the cluster and keeps the batch alive.
func (s *Synthesizer) Synthesize(ctx context.Context, cluster model.Cluster, scored score.Result) (*model.Insight, error) {
	if len(cluster.Members) == 0 {
		return nil, errors.New("synth: empty cluster")
	}

	sentiment := cluster.DominantSentiment()
	intent := cluster.DominantIntent()
	dominant := dominantEvidence(cluster.Members)

	title := buildTitle(cluster, sentiment, intent, dominant)

	summary, err := s.summarize(ctx, cluster, title)
	if err != nil {
		return nil, err
	}

	shown, overflow := capEvidence(cluster.Members)

	competitor := dominant.CompetitorName
	if competitor == "" {
		competitor = cluster.CompetitorName
	}

	return &model.Insight{
		ID:             uuid.NewString(),
		Title:          title,
		Summary:        summary,
		Evidence:       shown,
		OverflowCount:  overflow,
		Category:       cluster.Category,
		Confidence:     scored.Confidence,
		Signals:        scored.Signals,
		CompetitorName: competitor,
		Sentiment:      sentiment,
		IntentClass:    intent,
	}, nil
}

// dominantEvidence picks the member with the highest engagement, breaking
// ties by intent strength.
func dominantEvidence(members []model.EvidenceItem) model.EvidenceItem {
	best := members[0]
	for _, m := range members[1:] {
		if m.EngagementScore > best.EngagementScore ||
			(m.EngagementScore == best.EngagementScore && m.IntentStrength > best.IntentStrength) {
			best = m
		}
	}
	return best
}

func buildTitle(cluster model.Cluster, sentiment model.Sentiment, intent model.IntentClass, dominant model.EvidenceItem) string {
	subject := "Buyers"
	if dominant.CompetitorName != "" {
		subject = dominant.CompetitorName + " users"
	} else if cluster.CompetitorName != "" {
		subject = cluster.CompetitorName + " users"
	}

	verb := verbFor(cluster.ID, sentiment, intent)
	topic := topicFor(cluster, dominant)

	return TruncateTitle(capitalize(subject+" "+verb+" "+topic), model.MaxTitleLength)
}

// verbFor selects from the verb table, deterministic per cluster so reruns
// produce identical titles.
func verbFor(clusterID string, sentiment model.Sentiment, intent model.IntentClass) string {
	verbs := verbTable[intent]
	if len(verbs) == 0 {
		verbs = neutralVerbs[sentiment]
	}
	if len(verbs) == 0 {
		verbs = neutralVerbs[model.SentimentNeutral]
	}
	h := fnv.New32a()
	h.Write([]byte(clusterID))
	return verbs[int(h.Sum32())%len(verbs)]
}

func topicFor(cluster model.Cluster, dominant model.EvidenceItem) string {
	if topic, ok := familyTopics[cluster.KeywordFamily]; ok {
		return topic
	}
	return snippet(dominant.Text, 8)
}

// snippet returns the first n words of text, lowercased and stripped of
// trailing punctuation.
func snippet(text string, n int) string {
	words := strings.Fields(strings.ToLower(text))
	if len(words) > n {
		words = words[:n]
	}
	return strings.TrimRight(strings.Join(words, " "), ".,;:!?")
}

// TruncateTitle caps a title at max characters without cutting a word.
// When a clause separator falls late in the allowed span the whole trailing
// clause is dropped instead.
func TruncateTitle(title string, max int) string {
	if len(title) <= max {
		return title
	}
	cut := title[:max]
	if idx := strings.LastIndex(cut, ", "); idx > max/2 {
		cut = cut[:idx]
	} else if idx := strings.LastIndex(cut, " "); idx > 0 {
		cut = cut[:idx]
	}
	return strings.TrimRight(cut, " .,;:")
}

func capitalize(s string) string {
	r := []rune(s)
	if len(r) == 0 {
		return s
	}
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

func capEvidence(members []model.EvidenceItem) ([]model.EvidenceItem, int) {
	ranked := make([]model.EvidenceItem, len(members))
	copy(ranked, members)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].IntentStrength != ranked[j].IntentStrength {
			return ranked[i].IntentStrength > ranked[j].IntentStrength
		}
		return ranked[i].EngagementScore > ranked[j].EngagementScore
	})
	if len(ranked) <= model.MaxEvidenceShown {
		return ranked, 0
	}
	return ranked[:model.MaxEvidenceShown], len(ranked) - model.MaxEvidenceShown
}

// summaryPayload is the structured format the LLM must return.
type summaryPayload struct {
	Summary string `json:"summary"`
}

func (s *Synthesizer) summarize(ctx context.Context, cluster model.Cluster, title string) (string, error) {
	if s.provider == nil {
		return templateSummary(cluster, title), nil
	}

	prompt := buildSummaryPrompt(cluster, title)

	var lastErr error
	for attempt := 0; attempt <= s.retries; attempt++ {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx, s.provider.Name()); err != nil {
				return "", err
			}
		}

		resp, err := s.provider.Complete(ctx, llm.CompleteRequest{
			System: summarySystemPrompt,
			Prompt: prompt,
		})
		if err != nil {
			lastErr = err
			s.countFailure("llm_call")
			s.logger.Warn("summary request failed",
				zap.String("cluster_id", cluster.ID),
				zap.Int("attempt", attempt),
				zap.Error(err))
			continue
		}

		summary, err := parseSummary(resp.Text)
		if err != nil {
			s.countFailure("parse")
			s.logger.Warn("summary output unparseable",
				zap.String("cluster_id", cluster.ID),
				zap.String("raw", clip(resp.Text, 200)))
			return "", ErrUnparseable
		}
		return summary, nil
	}

	return "", fmt.Errorf("synth: summary request: %w", lastErr)
}

const summarySystemPrompt = `You summarize customer evidence for content marketers.
Respond with a single JSON object: {"summary": "..."}.
The summary is 2-3 plain sentences grounded only in the evidence given.
No markdown, no preamble, no extra keys.`

func buildSummaryPrompt(cluster model.Cluster, title string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Insight title: %s\n", title)
	fmt.Fprintf(&b, "Trigger category: %s\n", cluster.Category)
	b.WriteString("Evidence:\n")
	for i, m := range cluster.Members {
		if i >= 10 {
			fmt.Fprintf(&b, "(and %d more)\n", len(cluster.Members)-i)
			break
		}
		fmt.Fprintf(&b, "- [%s] %s\n", m.SourceType, clip(m.Text, 240))
	}
	return b.String()
}

var fenceRe = regexp.MustCompile("(?s)^```(?:json)?\\s*(.*?)\\s*```$")

// parseSummary validates the model output: first a direct parse, then one
// repair pass that strips markdown fences and surrounding prose.
func parseSummary(raw string) (string, error) {
	text := strings.TrimSpace(raw)

	var payload summaryPayload
	if err := json.Unmarshal([]byte(text), &payload); err == nil && payload.Summary != "" {
		return payload.Summary, nil
	}

	repaired := repairWrappers(text)
	if err := json.Unmarshal([]byte(repaired), &payload); err != nil || payload.Summary == "" {
		return "", ErrUnparseable
	}
	return payload.Summary, nil
}

func repairWrappers(text string) string {
	if m := fenceRe.FindStringSubmatch(text); m != nil {
		text = m[1]
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}
	return text
}

// templateSummary is the offline fallback when no LLM provider is
// configured.
func templateSummary(cluster model.Cluster, title string) string {
	types := cluster.SourceTypeSet()
	first := dominantEvidence(cluster.Members)

	summary := fmt.Sprintf("%s. This theme appears in %d pieces of evidence across %d source types.",
		strings.TrimRight(title, "."), len(cluster.Members), len(types))
	if first.Text != "" {
		summary += fmt.Sprintf(" Representative voice: %q.", clip(first.Text, 160))
	}
	return summary
}

func (s *Synthesizer) countFailure(stage string) {
	if s.failures != nil {
		s.failures.WithLabelValues(stage).Inc()
	}
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
