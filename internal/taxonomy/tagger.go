// Package taxonomy assigns the twelve-axis dimension tag vector to
// synthesized insights and validates joint tag consistency against a
// fixed hard-constraint matrix.
package taxonomy

import (
	"fmt"
	"strings"

	"github.com/ndomino/triggerforge/internal/model"
)

// Rule forbids one pair of axis values from appearing together.
type Rule struct {
	AxisA  model.Axis
	ValueA string
	AxisB  model.Axis
	ValueB string
}

func (r Rule) String() string {
	return fmt.Sprintf("%s=%s with %s=%s", r.AxisA, r.ValueA, r.AxisB, r.ValueB)
}

// HardConstraints is the pairwise constraint matrix. A tag vector matching
// any rule is rejected outright; it is never auto-corrected, since changing
// a tag silently changes what the insight claims.
var HardConstraints = []Rule{
	{model.AxisStage, model.StageDecision, model.AxisCTA, model.CTADownload},
	{model.AxisFormat, model.FormatTestimonial, model.AxisStage, model.StageAwareness},
	{model.AxisEmotion, model.EmotionJoy, model.AxisAngle, model.AngleFearBased},
	{model.AxisStage, model.StageAwareness, model.AxisCTA, model.CTADemo},
}

// ConstraintError reports which rule a tag vector violated.
type ConstraintError struct {
	Rule Rule
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("tag constraint violated: %s", e.Rule)
}

// Validate checks that every axis carries a value from its closed enum and
// that no hard constraint pair is present. Returns a *ConstraintError for
// matrix violations.
func Validate(tags model.DimensionTags) error {
	for _, axis := range model.AllAxes {
		v := tags.Get(axis)
		if !validValue(axis, v) {
			return fmt.Errorf("axis %s: value %q not in enum", axis, v)
		}
	}
	for _, r := range HardConstraints {
		if tags.Get(r.AxisA) == r.ValueA && tags.Get(r.AxisB) == r.ValueB {
			return &ConstraintError{Rule: r}
		}
	}
	return nil
}

func validValue(axis model.Axis, v string) bool {
	for _, allowed := range model.AxisValues[axis] {
		if v == allowed {
			return true
		}
	}
	return false
}

// Tagger assigns dimension tags. Each axis is decided by its own heuristic
// reading only the insight record; no axis reads another axis's output.
type Tagger struct {
	profile model.BusinessProfile
}

// New creates a tagger for the given business profile.
func New(profile model.BusinessProfile) *Tagger {
	return &Tagger{profile: profile}
}

// Tag assigns one value per axis.
func (t *Tagger) Tag(ins *model.Insight) model.DimensionTags {
	text := corpus(ins)

	var d model.DimensionTags
	d.Stage = stageFor(ins)
	d.Emotion = emotionFor(ins)
	d.Format = formatFor(ins, text)
	d.Persona = personaFor(ins, text)
	d.Objection = objectionFor(text)
	d.Angle = angleFor(ins)
	d.CTA = ctaFor(ins, text)
	d.Urgency = urgencyFor(ins, text)
	d.Confidence = confidenceTierFor(ins)
	d.Competitive = t.competitiveFor(ins)
	d.Lifecycle = lifecycleFor(text)
	d.STEPPSTrigger = steppsFor(ins, text)
	return d
}

// corpus flattens the insight's visible text for keyword heuristics.
func corpus(ins *model.Insight) string {
	var b strings.Builder
	b.WriteString(strings.ToLower(ins.Title))
	b.WriteByte(' ')
	b.WriteString(strings.ToLower(ins.Summary))
	for _, ev := range ins.Evidence {
		b.WriteByte(' ')
		b.WriteString(strings.ToLower(ev.Text))
	}
	return b.String()
}

func containsAny(text string, cues ...string) bool {
	for _, cue := range cues {
		if strings.Contains(text, cue) {
			return true
		}
	}
	return false
}

// stageFor maps buying-intent language onto the funnel. Comparison language
// is a decision-stage signal; complaints and wishes mean the buyer already
// knows the problem.
func stageFor(ins *model.Insight) string {
	switch ins.IntentClass {
	case model.IntentComparison:
		return model.StageDecision
	case model.IntentComplaint, model.IntentDesire:
		return model.StageConsideration
	}
	if ins.Category == model.CategoryTrust {
		return model.StageConsideration
	}
	return model.StageAwareness
}

func emotionFor(ins *model.Insight) string {
	if ins.Category == model.CategoryFear {
		return model.EmotionFearEmotion
	}
	switch ins.Sentiment {
	case model.SentimentNegative:
		return model.EmotionAnger
	case model.SentimentPositive:
		return model.EmotionJoy
	}
	if ins.IntentClass == model.IntentDesire {
		return model.EmotionAnticipate
	}
	return model.EmotionNeutralFeel
}

func formatFor(ins *model.Insight, text string) string {
	if containsAny(text, "how to", "how do", "step by step") {
		return model.FormatHowTo
	}
	if ins.CompetitorName != "" || ins.IntentClass == model.IntentComparison {
		return model.FormatComparison
	}
	if ins.Category == model.CategoryTrust {
		return model.FormatTestimonial
	}
	if containsAny(text, "we switched", "our experience", "when we", "our journey") {
		return model.FormatStory
	}
	return model.FormatListicle
}

func personaFor(ins *model.Insight, text string) string {
	for _, ev := range ins.Evidence {
		if ev.SourceType == model.SourceTypeExecutive {
			return model.PersonaExecutive
		}
	}
	if containsAny(text, "budget", "roi", "headcount", "approve", "stakeholder", "our team's") {
		return model.PersonaManager
	}
	return model.PersonaPractitioner
}

func objectionFor(text string) string {
	switch {
	case containsAny(text, "price", "pricing", "cost", "expensive", "renewal"):
		return model.ObjectionPrice
	case containsAny(text, "complex", "complicated", "confusing", "hard to set up", "steep learning"):
		return model.ObjectionComplexity
	case containsAny(text, "security", "privacy", "compliance", "don't trust", "do not trust"):
		return model.ObjectionTrust
	case containsAny(text, "switch", "migrat", "lock-in", "locked in", "contract"):
		return model.ObjectionSwitching
	}
	return model.ObjectionNone
}

func angleFor(ins *model.Insight) string {
	switch ins.Category {
	case model.CategoryFear:
		return model.AngleFearBased
	case model.CategoryDesire, model.CategoryMotivation:
		return model.AngleAspiration
	case model.CategoryTrust:
		return model.AngleProof
	}
	return model.AnglePragmatic
}

func ctaFor(ins *model.Insight, text string) string {
	if ins.IntentClass == model.IntentComparison {
		return model.CTACompare
	}
	if containsAny(text, "guide", "template", "checklist", "ebook", "whitepaper") {
		return model.CTADownload
	}
	switch ins.IntentClass {
	case model.IntentDesire:
		return model.CTATrial
	case model.IntentComplaint:
		return model.CTADemo
	}
	return model.CTALearnMore
}

func urgencyFor(ins *model.Insight, text string) string {
	if ins.Category == model.CategoryUrgency {
		return model.UrgencyHigh
	}
	if containsAny(text, "contract is up", "deadline", "urgent", "asap", "running out") {
		return model.UrgencyHigh
	}
	if ins.Sentiment == model.SentimentNegative {
		return model.UrgencyMedium
	}
	return model.UrgencyLow
}

// confidenceTierFor reads the distinct-source-type count recorded by the
// scoring signals, falling back to a scan of the visible evidence.
func confidenceTierFor(ins *model.Insight) string {
	n := 0
	for _, sig := range ins.Signals {
		if sig.Type != model.SignalTriangulation {
			continue
		}
		if v, ok := sig.Data["source_types"]; ok {
			if count, ok := v.(int); ok {
				n = count
			}
		}
	}
	if n == 0 {
		seen := make(map[model.SourceType]struct{})
		for _, ev := range ins.Evidence {
			seen[ev.SourceType] = struct{}{}
		}
		n = len(seen)
	}
	switch {
	case n >= 3:
		return model.ConfidenceTierTriangulate
	case n == 2:
		return model.ConfidenceTierCorroborate
	}
	return model.ConfidenceTierSingle
}

// competitiveFor positions the insight against the profile's competitor
// list. Weakness in a named competitor is an attack opening; praise for one
// is something to defend against; unattributed insights stay neutral.
func (t *Tagger) competitiveFor(ins *model.Insight) string {
	if ins.CompetitorName == "" {
		return model.CompetitiveNeutral
	}
	known := false
	for _, c := range t.profile.Competitors {
		if strings.EqualFold(c, ins.CompetitorName) {
			known = true
			break
		}
	}
	if !known {
		return model.CompetitiveNeutral
	}
	if ins.Sentiment == model.SentimentNegative || ins.IntentClass == model.IntentComparison {
		return model.CompetitiveAttack
	}
	return model.CompetitiveDefend
}

func lifecycleFor(text string) string {
	switch {
	case containsAny(text, "upgrade", "add seats", "more seats", "expand our", "upsell"):
		return model.LifecycleExpand
	case containsAny(text, "churn", "cancel", "renew", "leaving", "about to switch away"):
		return model.LifecycleRetain
	}
	return model.LifecycleAcquire
}

func steppsFor(ins *model.Insight, text string) string {
	switch {
	case containsAny(text, "how to", "guide", "template", "tips", "checklist"):
		return model.STEPPSPractical
	case containsAny(text, "everyone is", "community", "talking about", "share"):
		return model.STEPPSSocialCurrency
	case containsAny(text, "publicly", "in public", "badge", "leaderboard"):
		return model.STEPPSPublic
	case containsAny(text, "we switched", "our experience", "story"):
		return model.STEPPSStories
	case ins.Category == model.CategoryUrgency:
		return model.STEPPSTriggers
	case ins.Sentiment != model.SentimentNeutral:
		return model.STEPPSEmotion
	}
	return model.STEPPSPractical
}
