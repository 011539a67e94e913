package ingest

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/jdkato/prose/v2"
	"golang.org/x/net/html"

	"github.com/ndomino/triggerforge/internal/model"
)

// Rejection reasons. Rejections are absorbed locally and counted; they are
// never surfaced to the caller as hard errors.
var (
	ErrEmpty          = errors.New("empty or whitespace text")
	ErrTooShort       = errors.New("text below minimum length")
	ErrMetaCommentary = errors.New("meta-commentary, not a first-person statement")
	ErrPromptLeak     = errors.New("prompt-leakage phrasing")
	ErrBadSourceType  = errors.New("unknown source type")
)

// metaPatterns match text that describes what a source generally says
// ("G2 reviews show that...") instead of reporting a specific statement.
// The list is maintained; add signatures here as new scraper noise appears.
var metaPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^\s*(?:reddit|g2|capterra|trustradius|forum|online|twitter|linkedin)?\s*(?:discussions?|reviews?|threads?|posts?|comments?|articles?)\b.{0,40}\b(?:discuss|mention|show|indicate|suggest|highlight|reveal|describe|cover|focus on|talk about)`),
	regexp.MustCompile(`(?i)^\s*(?:users?|customers?|people|buyers|reviewers)\s+(?:often|commonly|frequently|generally|typically|sometimes)\s+(?:say|mention|report|complain|note|discuss)`),
	regexp.MustCompile(`(?i)^\s*(?:there (?:is|are) )?no (?:specific |relevant )?(?:data|information|results|samples|mentions) (?:available|found)`),
	regexp.MustCompile(`(?i)^\s*(?:based on|according to) (?:the )?(?:available|collected|scraped) (?:data|sources|results)`),
}

// sourceTalk is a weaker cue: third-person talk about a source. On its own it
// is not enough to reject; combined with the absence of any first-person
// signal in the opening words it is.
var sourceTalk = regexp.MustCompile(`(?i)\b(?:discussions?|reviews?|threads?|reviewers|commenters)\b.{0,30}\b(?:about|on|of|around)\b`)

// promptLeakPatterns match instruction-like phrasing echoed back by an LLM
// or scraped from a prompt injection.
var promptLeakPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:generate|return|output|produce)\s+(?:a\s+|an\s+)?(?:valid\s+)?(?:json|yaml|array|list|markdown)\b`),
	regexp.MustCompile(`(?i)\bas an ai\b`),
	regexp.MustCompile(`(?i)^\s*you are (?:a|an|the)\b`),
	regexp.MustCompile(`(?i)\bbased on the (?:following|above) (?:instructions?|prompt|schema)\b`),
}

// firstPersonWords are the pronoun forms that mark a genuine first-person
// statement when they appear early in the text.
var firstPersonWords = map[string]bool{
	"i": true, "we": true, "me": true, "us": true,
	"my": true, "our": true, "mine": true, "ours": true,
	"i'm": true, "i've": true, "i'd": true, "i'll": true,
	"we're": true, "we've": true, "we'd": true, "we'll": true,
}

// firstPersonWindow is how many leading tokens are scanned for a
// first-person signal.
const firstPersonWindow = 15

// Normalizer validates loosely-typed scraper payloads into RawSamples and
// rejects garbage and meta-commentary. It is deliberately conservative:
// admitting noise is cheaper than dropping real signal, because downstream
// validation applies a second check.
type Normalizer struct{}

// NewNormalizer creates a normalizer.
func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// Normalize validates raw into a RawSample. The declared source type wins
// only when the payload does not carry its own.
func (n *Normalizer) Normalize(raw model.RawSampleInput, declared model.SourceType) (model.RawSample, error) {
	st := raw.SourceType
	if st == "" {
		st = declared
	}
	if !model.ValidSourceType(st) {
		return model.RawSample{}, fmt.Errorf("source type %q: %w", st, ErrBadSourceType)
	}

	text := raw.Text
	if looksLikeHTML(text) {
		text = flattenHTML(text)
	}
	text = strings.TrimSpace(text)

	if text == "" {
		return model.RawSample{}, ErrEmpty
	}
	if len(text) < model.MinSampleLength {
		return model.RawSample{}, ErrTooShort
	}
	for _, p := range promptLeakPatterns {
		if p.MatchString(text) {
			return model.RawSample{}, ErrPromptLeak
		}
	}
	if isMetaCommentary(text) {
		return model.RawSample{}, ErrMetaCommentary
	}

	return model.RawSample{
		ID:              uuid.NewString(),
		Text:            text,
		SourceName:      raw.SourceName,
		SourceType:      st,
		URL:             raw.URL,
		Author:          raw.Author,
		TimestampUTC:    raw.TimestampUTC,
		CompetitorName:  raw.CompetitorName,
		EngagementScore: raw.EngagementScore,
	}, nil
}

// isMetaCommentary applies the signature list, then the weaker
// source-talk cue gated on the first-person heuristic.
func isMetaCommentary(text string) bool {
	for _, p := range metaPatterns {
		if p.MatchString(text) {
			return true
		}
	}
	if sourceTalk.MatchString(text) && !hasFirstPersonSignal(text) {
		return true
	}
	return false
}

// hasFirstPersonSignal reports whether any of the first tokens is a
// personal/possessive pronoun, or a quoted clause opens in first person.
func hasFirstPersonSignal(text string) bool {
	for _, tok := range leadingTokens(text, firstPersonWindow) {
		// Trimming quote runes means a quoted first-person clause
		// ("I can't export...") counts the same as an unquoted one.
		w := strings.ToLower(strings.Trim(tok, `"'“”‘’`))
		if firstPersonWords[w] {
			return true
		}
	}
	return false
}

// leadingTokens tokenizes the opening of text. prose's tokenizer handles
// contractions and quote runes better than a whitespace split; fall back to
// fields if the document fails to build.
func leadingTokens(text string, n int) []string {
	doc, err := prose.NewDocument(text, prose.WithTagging(false), prose.WithExtraction(false), prose.WithSegmentation(false))
	if err != nil {
		fields := strings.Fields(text)
		if len(fields) > n {
			fields = fields[:n]
		}
		return fields
	}
	toks := doc.Tokens()
	out := make([]string, 0, n)
	for _, t := range toks {
		out = append(out, t.Text)
		if len(out) >= n {
			break
		}
	}
	return out
}

// looksLikeHTML is a cheap markup sniff; scrapers occasionally hand over
// fragments instead of extracted text.
func looksLikeHTML(s string) bool {
	open := strings.IndexByte(s, '<')
	return open >= 0 && strings.IndexByte(s[open:], '>') > 0 && regexp.MustCompile(`<[a-zA-Z!/]`).MatchString(s)
}

// flattenHTML extracts visible text, skipping script/style subtrees.
func flattenHTML(fragment string) string {
	doc, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		return fragment
	}

	var buf strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "iframe":
				return
			}
		}
		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				buf.WriteString(text)
				buf.WriteString(" ")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return strings.TrimSpace(buf.String())
}
