package model

// Category is the psychological trigger family an insight belongs to.
type Category string

const (
	CategoryFrustration Category = "frustration"
	CategoryDesire      Category = "desire"
	CategoryFear        Category = "fear"
	CategoryTrust       Category = "trust"
	CategoryUrgency     Category = "urgency"
	CategoryMotivation  Category = "motivation"
	CategoryComparison  Category = "comparison"
)

// MaxEvidenceShown caps the evidence list attached to a published Insight;
// the remainder is reported as OverflowCount.
const MaxEvidenceShown = 5

// MaxTitleLength caps insight titles. Truncation happens on word boundaries,
// never mid-word.
const MaxTitleLength = 100

// Insight is the final unit of output: a synthesized, evidence-backed
// statement about customer psychology. Immutable after creation except for
// DimensionTags, which the diversity enforcer may finalize.
type Insight struct {
	ID             string         `json:"id"`
	Title          string         `json:"title"`   // <=100 chars, sentiment-correct, subject+verb+object
	Summary        string         `json:"summary"` // 2-3 sentences
	Evidence       []EvidenceItem `json:"evidence"`
	OverflowCount  int            `json:"overflow_count,omitempty"`
	Category       Category       `json:"category"`
	Confidence     float64        `json:"confidence"` // [0,1]
	Signals        []Signal       `json:"signals,omitempty"`
	DimensionTags  DimensionTags  `json:"dimension_tags"`
	CompetitorName string         `json:"competitor_name,omitempty"`
	Sentiment      Sentiment      `json:"sentiment"`
	IntentClass    IntentClass    `json:"intent_class"`
}

// Signal is a diagnostic scoring signal with transparent inputs, so every
// confidence number can be explained from the record alone.
type Signal struct {
	Type        SignalType             `json:"type"`
	Description string                 `json:"description"`
	Data        map[string]interface{} `json:"data,omitempty"`
}

// SignalType classifies a diagnostic signal.
type SignalType string

const (
	SignalMemberCount   SignalType = "member_count"
	SignalIntentAvg     SignalType = "intent_avg"
	SignalTriangulation SignalType = "triangulation"
	SignalSingleSource  SignalType = "single_source" // discounted, never discarded
)
