package classify

import (
	"regexp"
	"strings"

	"github.com/ndomino/triggerforge/internal/model"
)

// Intent strength constants. Comparison/switching language is a stronger
// buying signal than raw frustration, so its floor sits above the complaint
// ceiling; downstream ranking depends on that ordering.
const (
	comparisonBase = 0.70
	comparisonCap  = 0.90
	desireBase     = 0.50
	desireCap      = 0.65
	complaintBase  = 0.30
	complaintCap   = 0.40
	neutralScore   = 0.20
	cueBonus       = 0.05
)

// Classification is the output of classifying one sample.
type Classification struct {
	Sentiment      model.Sentiment
	IntentClass    model.IntentClass
	IntentStrength float64
	Heuristic      string // which rule family matched, e.g. "comparison:migrating from"
}

// Classifier tags samples with sentiment polarity and buying-intent strength.
type Classifier struct {
	comparisonCues []string
	complaintCues  []string
	desireCues     []string
	negations      []*regexp.Regexp
}

// NewClassifier creates a classifier with the standard cue families.
func NewClassifier() *Classifier {
	return &Classifier{
		comparisonCues: []string{
			"evaluating", "migrating from", "migrating away", "alternative to",
			"alternatives to", "switching from", "switching away", "moving off",
			"moving away from", "contract is up", "contract renewal", "instead of",
			"compared to", "comparing", "shopping around", "looking at competitors",
		},
		complaintCues: []string{
			"frustrated", "frustrating", "struggling", "struggle", "annoyed",
			"annoying", "too complex", "too complicated", "overly complicated",
			"terrible", "awful", "broken", "hate", "painful", "pain point",
			"waste of", "so slow", "unusable", "unreliable", "nightmare",
			"fed up", "sick of", "gave up",
		},
		desireCues: []string{
			"want", "wish", "looking for", "hoping for", "would love",
			"need a way", "needs a way", "searching for", "wanted", "dream of",
			"if only", "would be great",
		},
		negations: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(?:can't|cannot|can not)\b`),
			regexp.MustCompile(`(?i)\b(?:doesn't|does not|don't|do not)\s+(?:work|support|let|allow|scale)\b`),
			regexp.MustCompile(`(?i)\bno way to\b`),
			regexp.MustCompile(`(?i)\bnever\s+(?:works|loads|syncs|responds)\b`),
			regexp.MustCompile(`(?i)\bwon't\s+(?:work|load|sync|respond)\b`),
		},
	}
}

// Classify tags one sample. Ambiguous text defaults to neutral sentiment
// with a fixed low intent score.
func (c *Classifier) Classify(sample model.RawSample) Classification {
	lower := strings.ToLower(sample.Text)

	comparison, compCue := matchCues(lower, c.comparisonCues)
	complaint, complCue := matchCues(lower, c.complaintCues)
	desire, desCue := matchCues(lower, c.desireCues)

	negated := 0
	for _, p := range c.negations {
		if p.MatchString(sample.Text) {
			negated++
		}
	}
	// Negation patterns are complaint language even without an explicit
	// frustration word ("we can't export our own data").
	if negated > 0 && complCue == "" {
		complCue = "negation"
	}
	complaint += negated

	// Polarity is decided independently of the intent class: comparison
	// evidence soured by complaint cues stays negative.
	sentiment := model.SentimentNeutral
	switch {
	case complaint > 0:
		sentiment = model.SentimentNegative
	case desire > 0:
		sentiment = model.SentimentPositive
	}

	switch {
	case comparison > 0:
		return Classification{
			Sentiment:      sentiment,
			IntentClass:    model.IntentComparison,
			IntentStrength: scaled(comparisonBase, comparisonCap, comparison),
			Heuristic:      "comparison:" + compCue,
		}
	case complaint > 0:
		return Classification{
			Sentiment:      sentiment,
			IntentClass:    model.IntentComplaint,
			IntentStrength: scaled(complaintBase, complaintCap, complaint),
			Heuristic:      "complaint:" + complCue,
		}
	case desire > 0:
		return Classification{
			Sentiment:      sentiment,
			IntentClass:    model.IntentDesire,
			IntentStrength: scaled(desireBase, desireCap, desire),
			Heuristic:      "desire:" + desCue,
		}
	}

	return Classification{
		Sentiment:      model.SentimentNeutral,
		IntentClass:    model.IntentNeutral,
		IntentStrength: neutralScore,
		Heuristic:      "default:neutral",
	}
}

// matchCues counts cue hits and returns the first matched cue for the
// heuristic label.
func matchCues(lower string, cues []string) (int, string) {
	count := 0
	first := ""
	for _, cue := range cues {
		if strings.Contains(lower, cue) {
			if first == "" {
				first = cue
			}
			count++
		}
	}
	return count, first
}

// scaled maps a hit count onto [base, ceiling]: one cue scores base, every
// additional cue adds a small bonus.
func scaled(base, ceiling float64, hits int) float64 {
	if hits < 1 {
		hits = 1
	}
	s := base + cueBonus*float64(hits-1)
	if s > ceiling {
		return ceiling
	}
	return s
}
