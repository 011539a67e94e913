package worker

import (
	"context"

	"github.com/ndomino/triggerforge/internal/model"
)

// Embedder is the embedding surface batch jobs need. Satisfied by
// llm.Embedder and cache.CachedEmbedder.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// EmbedJob embeds a single evidence item
type EmbedJob struct {
	Item     *model.EvidenceItem
	Embedder Embedder
}

// Execute executes the embedding job
func (j *EmbedJob) Execute(ctx context.Context) Result {
	vec, err := j.Embedder.Embed(ctx, j.Item.Text)
	if err != nil {
		return &EmbedResult{
			Item:  j.Item,
			Error: err,
		}
	}
	return &EmbedResult{
		Item:   j.Item,
		Vector: vec,
	}
}

// EmbedResult represents the result of an embedding job
type EmbedResult struct {
	Item   *model.EvidenceItem
	Vector []float32
	Error  error
}

// GetError returns the error from the embedding result
func (r *EmbedResult) GetError() error {
	return r.Error
}

// EmbedBatch embeds multiple evidence items concurrently
type EmbedBatch struct {
	embedder    Embedder
	concurrency int
}

// NewEmbedBatch creates a new batch embedder
func NewEmbedBatch(embedder Embedder, concurrency int) *EmbedBatch {
	return &EmbedBatch{
		embedder:    embedder,
		concurrency: concurrency,
	}
}

// Process embeds all items concurrently and returns one result per item.
// Results arrive in completion order, not submission order; callers match
// them back through the Item pointer.
func (b *EmbedBatch) Process(ctx context.Context, items []*model.EvidenceItem) []*EmbedResult {
	if len(items) == 0 {
		return []*EmbedResult{}
	}

	pool := NewSizedPool(b.concurrency, len(items))
	pool.Start()

	for _, item := range items {
		job := &EmbedJob{
			Item:     item,
			Embedder: b.embedder,
		}
		pool.Submit(job)
	}

	results := pool.Wait()

	embedResults := make([]*EmbedResult, len(results))
	for i, result := range results {
		embedResults[i] = result.(*EmbedResult)
	}

	return embedResults
}
