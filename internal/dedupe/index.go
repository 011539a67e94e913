// Package dedupe collapses near-duplicate samples with layered checks:
// cheap hash comparisons first, embedding similarity last. The index is
// incremental so streaming batches dedupe against the running set instead of
// re-scanning from empty.
package dedupe

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"unicode"

	"github.com/coder/hnsw"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/ndomino/triggerforge/internal/model"
)

// Similarity thresholds are fixed system parameters, not tunable per call,
// so test expectations stay reproducible.
const (
	MergeThreshold   = 0.92
	RelatedThreshold = 0.85

	contentPrefixLen = 100
	titlePrefixLen   = 40

	// multiValidatedMin is the source-diversity exception: identical
	// content from this many distinct source types is corroboration, not
	// duplication, and every instance is retained.
	multiValidatedMin = 3

	searchNeighbors = 5
)

// Action describes what the index did with a sample.
type Action string

const (
	ActionRetained       Action = "retained"
	ActionMergedContent  Action = "merged_content_hash"
	ActionMergedTitle    Action = "merged_title_hash"
	ActionMergedEmbed    Action = "merged_embedding"
	ActionMultiValidated Action = "retained_multi_validated"
)

// Decision is the outcome of adding one sample.
type Decision struct {
	Action     Action
	MergedInto string   // representative sample ID when merged
	RelatedTo  []string // 0.85..0.91 cosine neighbors, kept but linked
}

type record struct {
	sample    model.RawSample
	embedding []float32
	order     int
	retained  bool
	multi     bool
}

type contentBucket struct {
	keptID      string
	instanceIDs []string
	sourceTypes map[model.SourceType]struct{}
	resurrected bool
}

// Index is the incremental dedup index. Safe for concurrent use, though the
// engine serializes all mutation through one goroutine.
type Index struct {
	mu sync.RWMutex

	records   map[string]*record
	byContent map[string]*contentBucket
	byTitle   map[string]string // title hash -> representative ID
	related   map[string][]string
	graph     *hnsw.Graph[string]

	order  int
	merged *prometheus.CounterVec // label: layer; may be nil
	logger *zap.Logger
}

// New creates an empty index. merged may be nil.
func New(logger *zap.Logger, merged *prometheus.CounterVec) *Index {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := hnsw.NewGraph[string]()
	g.Distance = hnsw.CosineDistance
	g.M = 16
	g.EfSearch = 32

	return &Index{
		records:   make(map[string]*record),
		byContent: make(map[string]*contentBucket),
		byTitle:   make(map[string]string),
		related:   make(map[string][]string),
		graph:     g,
		merged:    merged,
		logger:    logger,
	}
}

// Add runs a sample through the layered checks and records the outcome.
// Re-adding a sample ID already known is a no-op retain, which keeps the
// whole operation idempotent.
func (ix *Index) Add(sample model.RawSample, embedding []float32) Decision {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if r, ok := ix.records[sample.ID]; ok && r.retained {
		return Decision{Action: ActionRetained}
	}

	contentKey := hashPrefix(sample.Text, contentPrefixLen)
	titleKey := hashPrefix(sample.Text, titlePrefixLen)

	// Layer 1: exact content-hash duplicates, with the source-diversity
	// exception overriding the merge.
	if bucket, ok := ix.byContent[contentKey]; ok {
		return ix.addToBucket(sample, embedding, contentKey, bucket)
	}

	// Layer 2: template-driven restatements share a title prefix.
	if repID, ok := ix.byTitle[titleKey]; ok && repID != "" {
		ix.store(sample, embedding, false)
		ix.countMerge(ActionMergedTitle)
		ix.byContent[contentKey] = &contentBucket{
			keptID:      repID,
			instanceIDs: []string{sample.ID},
			sourceTypes: map[model.SourceType]struct{}{sample.SourceType: {}},
		}
		return Decision{Action: ActionMergedTitle, MergedInto: repID}
	}

	// Layer 3: embedding similarity against the retained set.
	var relatedIDs []string
	if len(embedding) > 0 && ix.graph.Len() > 0 {
		for _, n := range ix.graph.Search(embedding, searchNeighbors) {
			rep := ix.records[n.Key]
			if rep == nil || !rep.retained {
				continue
			}
			sim := 1 - float64(hnsw.CosineDistance(embedding, n.Value))
			switch {
			case sim >= MergeThreshold:
				kept := ix.resolveEmbedMerge(rep, sample, embedding, contentKey, titleKey)
				ix.countMerge(ActionMergedEmbed)
				return Decision{Action: ActionMergedEmbed, MergedInto: kept}
			case sim >= RelatedThreshold:
				relatedIDs = append(relatedIDs, n.Key)
			}
		}
	}

	ix.store(sample, embedding, true)
	ix.byContent[contentKey] = &contentBucket{
		keptID:      sample.ID,
		instanceIDs: []string{sample.ID},
		sourceTypes: map[model.SourceType]struct{}{sample.SourceType: {}},
	}
	ix.byTitle[titleKey] = sample.ID
	if len(embedding) > 0 {
		ix.graph.Add(hnsw.MakeNode(sample.ID, embedding))
	}
	for _, id := range relatedIDs {
		ix.related[sample.ID] = append(ix.related[sample.ID], id)
		ix.related[id] = append(ix.related[id], sample.ID)
	}

	return Decision{Action: ActionRetained, RelatedTo: relatedIDs}
}

// addToBucket handles a content-hash hit: merge by default, resurrect every
// instance once enough distinct source types corroborate the same content.
func (ix *Index) addToBucket(sample model.RawSample, embedding []float32, contentKey string, bucket *contentBucket) Decision {
	ix.store(sample, embedding, false)
	bucket.instanceIDs = append(bucket.instanceIDs, sample.ID)
	bucket.sourceTypes[sample.SourceType] = struct{}{}

	if len(bucket.sourceTypes) >= multiValidatedMin {
		// Corroboration across independent source types is signal and
		// must not be erased: retain all instances, mark them.
		bucket.resurrected = true
		for _, id := range bucket.instanceIDs {
			r := ix.records[id]
			r.retained = true
			r.multi = true
		}
		if kept := ix.records[bucket.keptID]; kept != nil {
			kept.multi = true
		}
		return Decision{Action: ActionMultiValidated, MergedInto: bucket.keptID}
	}
	if bucket.resurrected {
		r := ix.records[sample.ID]
		r.retained = true
		r.multi = true
		return Decision{Action: ActionMultiValidated, MergedInto: bucket.keptID}
	}

	// Keep the instance with the higher engagement score.
	kept := ix.records[bucket.keptID]
	if kept != nil && sample.EngagementScore > kept.sample.EngagementScore {
		r := ix.records[sample.ID]
		r.retained = true
		r.order = kept.order // replaced in place, order preserved
		kept.retained = false
		bucket.keptID = sample.ID
		ix.countMerge(ActionMergedContent)
		return Decision{Action: ActionMergedContent, MergedInto: sample.ID}
	}
	ix.countMerge(ActionMergedContent)
	return Decision{Action: ActionMergedContent, MergedInto: bucket.keptID}
}

// resolveEmbedMerge resolves an embedding-layer merge, keeping the
// higher-engagement instance, and returns the surviving ID. When the new
// sample wins, every hash entry pointing at the old representative is
// re-pointed at the survivor so later exact duplicates still merge cleanly.
func (ix *Index) resolveEmbedMerge(rep *record, sample model.RawSample, embedding []float32, contentKey, titleKey string) string {
	if sample.EngagementScore > rep.sample.EngagementScore {
		ix.store(sample, embedding, true)
		ix.records[sample.ID].order = rep.order // replaced in place
		rep.retained = false

		repContent := hashPrefix(rep.sample.Text, contentPrefixLen)
		if b := ix.byContent[repContent]; b != nil && b.keptID == rep.sample.ID {
			b.keptID = sample.ID
		}
		repTitle := hashPrefix(rep.sample.Text, titlePrefixLen)
		if ix.byTitle[repTitle] == rep.sample.ID {
			ix.byTitle[repTitle] = sample.ID
		}
		ix.byContent[contentKey] = &contentBucket{
			keptID:      sample.ID,
			instanceIDs: []string{sample.ID},
			sourceTypes: map[model.SourceType]struct{}{sample.SourceType: {}},
		}
		ix.byTitle[titleKey] = sample.ID
		ix.graph.Add(hnsw.MakeNode(sample.ID, embedding))
		return sample.ID
	}

	ix.store(sample, embedding, false)
	ix.byContent[contentKey] = &contentBucket{
		keptID:      rep.sample.ID,
		instanceIDs: []string{sample.ID},
		sourceTypes: map[model.SourceType]struct{}{sample.SourceType: {}},
	}
	return rep.sample.ID
}

func (ix *Index) store(sample model.RawSample, embedding []float32, retained bool) {
	if _, ok := ix.records[sample.ID]; ok {
		return
	}
	ix.records[sample.ID] = &record{
		sample:    sample,
		embedding: embedding,
		order:     ix.order,
		retained:  retained,
	}
	ix.order++
}

func (ix *Index) countMerge(layer Action) {
	if ix.merged != nil {
		ix.merged.WithLabelValues(string(layer)).Inc()
	}
}

// Retained returns the surviving samples in their original arrival order.
func (ix *Index) Retained() []model.RawSample {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	recs := make([]*record, 0, len(ix.records))
	for _, r := range ix.records {
		if r.retained {
			recs = append(recs, r)
		}
	}
	sortByOrder(recs)
	out := make([]model.RawSample, len(recs))
	for i, r := range recs {
		out[i] = r.sample
	}
	return out
}

// Embedding returns the stored embedding for a sample ID.
func (ix *Index) Embedding(id string) ([]float32, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	r, ok := ix.records[id]
	if !ok {
		return nil, false
	}
	return r.embedding, true
}

// MultiValidated reports whether the sample was retained through the
// source-diversity exception.
func (ix *Index) MultiValidated(id string) bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	r, ok := ix.records[id]
	return ok && r.multi
}

// Related returns the IDs linked to id in the 0.85..0.91 band.
func (ix *Index) Related(id string) []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make([]string, len(ix.related[id]))
	copy(out, ix.related[id])
	return out
}

// Len returns the retained count.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	n := 0
	for _, r := range ix.records {
		if r.retained {
			n++
		}
	}
	return n
}

func sortByOrder(recs []*record) {
	// Insertion sort: retained sets are small and mostly ordered already.
	for i := 1; i < len(recs); i++ {
		for j := i; j > 0 && recs[j-1].order > recs[j].order; j-- {
			recs[j-1], recs[j] = recs[j], recs[j-1]
		}
	}
}

// hashPrefix hashes a normalized prefix of the text: lowercased,
// punctuation stripped, whitespace collapsed, first n characters.
func hashPrefix(text string, n int) string {
	norm := normalizeText(text)
	if len(norm) > n {
		norm = norm[:n]
	}
	sum := sha256.Sum256([]byte(norm))
	return hex.EncodeToString(sum[:])
}

func normalizeText(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	lastSpace := true
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		case unicode.IsSpace(r):
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		}
		// Punctuation is dropped entirely.
	}
	return strings.TrimSpace(b.String())
}
