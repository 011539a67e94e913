package model

import "time"

// SourceType is the independent-evidence category of a sample. It is the
// axis used for confidence triangulation and is deliberately coarser than
// SourceName: "Reddit" and "HackerNews" are different sources but the same
// community evidence type.
type SourceType string

const (
	SourceTypeVoC       SourceType = "voc"       // Voice-of-customer: reviews, support tickets
	SourceTypeCommunity SourceType = "community" // Forums, Reddit, Q&A sites
	SourceTypeEvent     SourceType = "event"     // Funding rounds, launches, conference signals
	SourceTypeExecutive SourceType = "executive" // Exec interviews, earnings calls, job posts
	SourceTypeNews      SourceType = "news"      // Press and trade media
)

// ValidSourceType reports whether st is one of the fixed enum values.
func ValidSourceType(st SourceType) bool {
	switch st {
	case SourceTypeVoC, SourceTypeCommunity, SourceTypeEvent, SourceTypeExecutive, SourceTypeNews:
		return true
	}
	return false
}

// RawSampleInput is the loosely-typed payload a source collaborator hands to
// the engine. Everything except Text is optional; the engine validates and
// normalizes it into a RawSample before any downstream stage sees it.
type RawSampleInput struct {
	Text            string     `json:"text"`
	SourceName      string     `json:"source_name,omitempty"`      // e.g. "Reddit", "G2", "News"
	SourceType      SourceType `json:"source_type,omitempty"`      // declared by the collaborator
	URL             string     `json:"url,omitempty"`
	Author          string     `json:"author,omitempty"`
	TimestampUTC    *time.Time `json:"timestamp_utc,omitempty"`
	CompetitorName  string     `json:"competitor_name,omitempty"`
	EngagementScore float64    `json:"engagement_score,omitempty"` // platform-native, 0..inf
}

// RawSample is one validated unit of external text. Samples shorter than
// MinSampleLength never reach deduplication.
type RawSample struct {
	ID              string     `json:"id"`
	Text            string     `json:"text"`
	SourceName      string     `json:"source_name"`
	SourceType      SourceType `json:"source_type"`
	URL             string     `json:"url,omitempty"`
	Author          string     `json:"author,omitempty"`
	TimestampUTC    *time.Time `json:"timestamp_utc,omitempty"`
	CompetitorName  string     `json:"competitor_name,omitempty"`
	EngagementScore float64    `json:"engagement_score,omitempty"`
}

// MinSampleLength is the minimum text length for a valid sample.
const MinSampleLength = 15

// Sentiment is the literal polarity of a sample's language.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// IntentClass is the buying-intent language family a sample belongs to.
// Comparison/switching language signals higher intent than raw complaints,
// which drives downstream ranking.
type IntentClass string

const (
	IntentComplaint  IntentClass = "complaint"  // "frustrated", "struggling", negations
	IntentDesire     IntentClass = "desire"     // "want", "wish", "looking for"
	IntentComparison IntentClass = "comparison" // "evaluating", "migrating from", "alternative to"
	IntentNeutral    IntentClass = "neutral"
)

// EvidenceItem is a RawSample that survived the garbage filter, carrying its
// classification and embedding. An EvidenceItem is owned by exactly one
// Insight for the lifetime of a synthesis run; a sample supporting two themes
// is duplicated, never aliased.
type EvidenceItem struct {
	RawSample

	Sentiment      Sentiment   `json:"sentiment"`
	IntentClass    IntentClass `json:"intent_class"`
	IntentStrength float64     `json:"intent_strength"` // [0,1]
	Embedding      []float32   `json:"-"`
	Heuristic      string      `json:"heuristic,omitempty"` // which classification rule matched
}
