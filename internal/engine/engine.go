// Package engine is the streaming orchestrator: it accepts raw samples from
// concurrent collaborators, debounces them into batches, and runs each batch
// through normalize, classify, embed, dedup, cluster, score, synthesize,
// tag, and enforce before publishing the accepted insight set.
//
// All index state (dedup, clusters) is owned by a single goroutine; Ingest
// only enqueues. Subscribers see the full enforced set after every pass.
package engine

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/ndomino/triggerforge/internal/cache"
	"github.com/ndomino/triggerforge/internal/classify"
	"github.com/ndomino/triggerforge/internal/cluster"
	"github.com/ndomino/triggerforge/internal/dedupe"
	"github.com/ndomino/triggerforge/internal/diversity"
	"github.com/ndomino/triggerforge/internal/ingest"
	"github.com/ndomino/triggerforge/internal/llm"
	"github.com/ndomino/triggerforge/internal/metrics"
	"github.com/ndomino/triggerforge/internal/model"
	"github.com/ndomino/triggerforge/internal/score"
	"github.com/ndomino/triggerforge/internal/synth"
	"github.com/ndomino/triggerforge/internal/taxonomy"
	"github.com/ndomino/triggerforge/internal/worker"
)

// ErrClosed is returned by Ingest after Close.
var ErrClosed = errors.New("engine: closed")

// Option configures the engine at construction time.
type Option func(*Engine)

// WithLogger injects a logger. Default is a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithEmbedder overrides the config-built embedder. Used by tests and by
// callers with a pre-warmed embedder.
func WithEmbedder(embedder llm.Embedder) Option {
	return func(e *Engine) { e.embedder = embedder }
}

// WithProvider overrides the config-built LLM provider.
func WithProvider(provider llm.Provider) Option {
	return func(e *Engine) {
		e.provider = provider
		e.providerSet = true
	}
}

// WithRegisterer registers the engine's collectors on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(e *Engine) { e.registerer = reg }
}

// Engine is the insight correlation and synthesis engine.
type Engine struct {
	cfg     *model.Config
	profile model.BusinessProfile
	logger  *zap.Logger
	metrics *metrics.Metrics

	registerer  prometheus.Registerer
	provider    llm.Provider
	providerSet bool
	embedder    llm.Embedder

	normalizer *ingest.Normalizer
	classifier *classify.Classifier
	index      *dedupe.Index
	correlator *cluster.Correlator
	scorer     *score.Triangulator
	synth      *synth.Synthesizer
	tagger     *taxonomy.Tagger
	enforcer   *diversity.Enforcer

	queue chan model.RawSampleInput

	closeOnce sync.Once
	closed    chan struct{}
	done      chan struct{}

	// loop-owned state, never touched outside the run goroutine
	items     map[string]model.EvidenceItem
	clustered map[string]struct{}

	mu       sync.RWMutex
	insights []model.Insight
	subs     map[int]func([]model.Insight)
	subSeq   int
}

// New builds an engine from config. cfg may be nil for defaults.
func New(cfg *model.Config, profile model.BusinessProfile, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = model.DefaultConfig()
	}

	e := &Engine{
		cfg:        cfg,
		profile:    profile,
		logger:     zap.NewNop(),
		normalizer: ingest.NewNormalizer(),
		classifier: classify.NewClassifier(),
		correlator: cluster.NewCorrelator(),
		scorer:     score.NewTriangulator(),
		tagger:     taxonomy.New(profile),
		queue:      make(chan model.RawSampleInput, queueSize(cfg)),
		closed:     make(chan struct{}),
		done:       make(chan struct{}),
		items:      make(map[string]model.EvidenceItem),
		clustered:  make(map[string]struct{}),
		subs:       make(map[int]func([]model.Insight)),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.metrics = metrics.New(e.registerer)
	e.index = dedupe.New(e.logger, e.metrics.DedupMerged)
	e.enforcer = diversity.New(cfg.Diversity, e.logger)

	if e.embedder == nil {
		embedder, err := llm.NewEmbedder(cfg.Embedding, cfg.LLM.APIKey, cfg.LLM.BaseURL)
		if err != nil {
			return nil, err
		}
		e.embedder = embedder
	}
	if cfg.Cache.Enabled {
		store := cache.NewMemoryCache(cfg.Cache.TTL, cfg.Cache.CleanupInterval)
		e.embedder = cache.NewCachedEmbedder(e.embedder, store, cfg.Cache.TTL, e.metrics.EmbedCache, e.logger)
	}

	if !e.providerSet {
		provider, err := llm.NewProvider(llm.ConfigFromModel(cfg.LLM), e.logger)
		if err != nil {
			return nil, err
		}
		e.provider = provider
	}

	limiter := worker.NewLimiter(cfg.LLM.RequestsPerSecond, cfg.LLM.Burst)
	e.synth = synth.New(e.provider, limiter, cfg.LLM.Retries, e.metrics.SynthesisFailures, e.logger)

	return e, nil
}

func queueSize(cfg *model.Config) int {
	if cfg.Engine.QueueSize > 0 {
		return cfg.Engine.QueueSize
	}
	return 1024
}

func (e *Engine) workers() int {
	if e.cfg.Engine.SynthesisWorkers > 0 {
		return e.cfg.Engine.SynthesisWorkers
	}
	return 1
}

func (e *Engine) batchInterval() time.Duration {
	if e.cfg.Engine.BatchInterval > 0 {
		return e.cfg.Engine.BatchInterval
	}
	return 250 * time.Millisecond
}

// Ingest queues one raw sample. It returns once the sample is enqueued and
// is safe to call from any number of goroutines; validation and every later
// stage run on the engine's own goroutine.
func (e *Engine) Ingest(ctx context.Context, input model.RawSampleInput) error {
	select {
	case <-e.closed:
		return ErrClosed
	default:
	}

	select {
	case e.queue <- input:
		return nil
	case <-e.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run starts the processing loop. Cancelling ctx abandons any in-flight
// pass; the last published insight set stays intact.
func (e *Engine) Run(ctx context.Context) {
	go e.loop(ctx)
}

// Close stops accepting samples, processes what is already queued, and waits
// for the loop to exit.
func (e *Engine) Close() {
	e.closeOnce.Do(func() { close(e.closed) })
	<-e.done
}

// Insights returns a copy of the current accepted, diversity-enforced set.
// Zero insights is a valid state, not an error.
func (e *Engine) Insights() []model.Insight {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]model.Insight, len(e.insights))
	copy(out, e.insights)
	return out
}

// Subscribe registers a callback fired after each completed enforcement
// pass with the full accepted set. The returned function unsubscribes.
func (e *Engine) Subscribe(fn func([]model.Insight)) func() {
	e.mu.Lock()
	id := e.subSeq
	e.subSeq++
	e.subs[id] = fn
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		delete(e.subs, id)
		e.mu.Unlock()
	}
}

func (e *Engine) loop(ctx context.Context) {
	defer close(e.done)

	var batch []model.RawSampleInput
	timer := time.NewTimer(e.batchInterval())
	defer timer.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		e.process(ctx, batch)
		batch = nil
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.closed:
			// Drain whatever was queued before Close, then finish.
			for {
				select {
				case in := <-e.queue:
					batch = append(batch, in)
					continue
				default:
				}
				break
			}
			flush()
			return
		case in := <-e.queue:
			batch = append(batch, in)
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(e.batchInterval())
		case <-timer.C:
			flush()
			timer.Reset(e.batchInterval())
		}
	}
}

// process runs one full pass over a batch. Each stage absorbs its own
// rejections; the pass aborts silently on context cancellation, leaving the
// previously published set in place.
func (e *Engine) process(ctx context.Context, batch []model.RawSampleInput) {
	fresh := e.intake(batch)

	e.embedAll(ctx, fresh)
	if ctx.Err() != nil {
		return
	}

	for _, item := range fresh {
		e.items[item.ID] = *item
		e.index.Add(item.RawSample, item.Embedding)
	}

	e.recluster()

	accepted, ok := e.synthesizeAll(ctx)
	if !ok {
		return
	}

	e.publish(accepted)
}

// intake normalizes and classifies the batch, dropping garbage and counting
// every rejection by reason.
func (e *Engine) intake(batch []model.RawSampleInput) []*model.EvidenceItem {
	fresh := make([]*model.EvidenceItem, 0, len(batch))
	for _, input := range batch {
		sample, err := e.normalizer.Normalize(input, input.SourceType)
		if err != nil {
			e.metrics.SamplesRejected.WithLabelValues(rejectReason(err)).Inc()
			e.logger.Debug("sample rejected",
				zap.String("source", input.SourceName),
				zap.String("reason", rejectReason(err)))
			continue
		}
		e.metrics.SamplesIngested.Inc()

		cls := e.classifier.Classify(sample)
		fresh = append(fresh, &model.EvidenceItem{
			RawSample:      sample,
			Sentiment:      cls.Sentiment,
			IntentClass:    cls.IntentClass,
			IntentStrength: cls.IntentStrength,
			Heuristic:      cls.Heuristic,
		})
	}
	return fresh
}

// embedAll fills in embeddings concurrently through the worker pool. Items
// whose embedding fails proceed without one; the dedup index falls back to
// its hash layers for them.
func (e *Engine) embedAll(ctx context.Context, items []*model.EvidenceItem) {
	if len(items) == 0 {
		return
	}
	results := worker.NewEmbedBatch(e.embedder, e.workers()).Process(ctx, items)
	for _, res := range results {
		if res.Error != nil {
			e.logger.Warn("embedding failed, continuing without vector",
				zap.String("sample_id", res.Item.ID),
				zap.Error(res.Error))
			continue
		}
		res.Item.Embedding = res.Vector
	}
}

// recluster reconciles cluster membership with the dedup index: evidence
// that lost its retained status leaves its cluster, newly retained evidence
// (including resurrected multi-validated instances) is assigned. Only the
// changed members are touched.
func (e *Engine) recluster() {
	retained := e.index.Retained()

	keep := make(map[string]struct{}, len(retained))
	for _, s := range retained {
		keep[s.ID] = struct{}{}
	}

	for id := range e.clustered {
		if _, ok := keep[id]; !ok {
			e.correlator.Remove(id)
			delete(e.clustered, id)
		}
	}

	for _, s := range retained {
		if _, ok := e.clustered[s.ID]; ok {
			continue
		}
		item, ok := e.items[s.ID]
		if !ok {
			continue
		}
		if emb, found := e.index.Embedding(s.ID); found {
			item.Embedding = emb
		}
		e.correlator.Assign(item, e.index.MultiValidated(s.ID))
		e.clustered[s.ID] = struct{}{}
	}
}

// synthesizeAll scores and synthesizes every live cluster concurrently,
// tags the results, and runs diversity enforcement. Returns ok=false when
// the pass was cancelled mid-flight.
func (e *Engine) synthesizeAll(ctx context.Context) ([]model.Insight, bool) {
	clusters := e.correlator.Clusters()
	if len(clusters) == 0 {
		return nil, ctx.Err() == nil
	}

	pool := worker.NewSizedPool(e.workers(), len(clusters))
	pool.Start()
	for i, c := range clusters {
		pool.Submit(&synthJob{
			order:   i,
			cluster: c,
			scored:  e.scorer.Score(c),
			synth:   e.synth,
			tagger:  e.tagger,
		})
	}
	results := pool.Wait()

	if ctx.Err() != nil {
		return nil, false
	}

	candidates := make([]*synthResult, 0, len(results))
	for _, r := range results {
		sr := r.(*synthResult)
		if sr.err != nil {
			if !errors.Is(sr.err, synth.ErrUnparseable) {
				e.logger.Warn("cluster synthesis failed",
					zap.String("cluster_id", sr.clusterID),
					zap.Error(sr.err))
			}
			continue
		}
		candidates = append(candidates, sr)
	}

	// Completion order is nondeterministic; restore cluster order, then rank
	// by confidence so enforcement sees the strongest candidates first.
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].order < candidates[j].order })
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].insight.Confidence > candidates[j].insight.Confidence
	})

	insights := make([]model.Insight, len(candidates))
	for i, c := range candidates {
		insights[i] = *c.insight
	}
	return e.enforcer.Enforce(insights), true
}

// publish swaps in the new accepted set and notifies subscribers.
func (e *Engine) publish(accepted []model.Insight) {
	e.mu.Lock()
	e.insights = accepted
	fns := make([]func([]model.Insight), 0, len(e.subs))
	for _, fn := range e.subs {
		fns = append(fns, fn)
	}
	e.mu.Unlock()

	e.metrics.InsightsPublished.Add(float64(len(accepted)))

	for _, fn := range fns {
		snapshot := make([]model.Insight, len(accepted))
		copy(snapshot, accepted)
		fn(snapshot)
	}
}

// synthJob synthesizes and tags one cluster on the worker pool.
type synthJob struct {
	order   int
	cluster model.Cluster
	scored  score.Result
	synth   *synth.Synthesizer
	tagger  *taxonomy.Tagger
}

func (j *synthJob) Execute(ctx context.Context) worker.Result {
	ins, err := j.synth.Synthesize(ctx, j.cluster, j.scored)
	if err != nil {
		return &synthResult{order: j.order, clusterID: j.cluster.ID, err: err}
	}
	ins.DimensionTags = j.tagger.Tag(ins)
	return &synthResult{order: j.order, clusterID: j.cluster.ID, insight: ins}
}

type synthResult struct {
	order     int
	clusterID string
	insight   *model.Insight
	err       error
}

func (r *synthResult) GetError() error { return r.err }

func rejectReason(err error) string {
	switch {
	case errors.Is(err, ingest.ErrEmpty):
		return "empty"
	case errors.Is(err, ingest.ErrTooShort):
		return "too_short"
	case errors.Is(err, ingest.ErrMetaCommentary):
		return "meta_commentary"
	case errors.Is(err, ingest.ErrPromptLeak):
		return "prompt_leak"
	case errors.Is(err, ingest.ErrBadSourceType):
		return "bad_source_type"
	}
	return "invalid"
}
