package llm

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/sashabaranov/go-openai"

	"github.com/ndomino/triggerforge/internal/model"
)

// Embedder produces fixed-dimension embedding vectors for text.
type Embedder interface {
	// Name identifies the embedder and its model, for cache keying
	Name() string

	// Dimensions is the fixed output vector size
	Dimensions() int

	// Embed returns the embedding for one text
	Embed(ctx context.Context, text string) ([]float32, error)
}

// OpenAIEmbedder calls OpenAI's embeddings API.
type OpenAIEmbedder struct {
	client *openai.Client
	model  openai.EmbeddingModel
	dims   int
}

// NewOpenAIEmbedder creates an OpenAI embedder.
func NewOpenAIEmbedder(cfg model.EmbeddingConfig, apiKey, baseURL string) (*OpenAIEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required for embeddings")
	}

	clientConfig := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientConfig.BaseURL = baseURL
	}

	embModel := openai.EmbeddingModel(cfg.Model)
	if cfg.Model == "" {
		embModel = openai.SmallEmbedding3
	}
	dims := cfg.Dimensions
	if dims <= 0 {
		dims = 256
	}

	return &OpenAIEmbedder{
		client: openai.NewClientWithConfig(clientConfig),
		model:  embModel,
		dims:   dims,
	}, nil
}

// Name returns the embedder identity for cache keys.
func (e *OpenAIEmbedder) Name() string {
	return fmt.Sprintf("openai/%s/%d", e.model, e.dims)
}

// Dimensions returns the configured vector size.
func (e *OpenAIEmbedder) Dimensions() int {
	return e.dims
}

// Embed returns the embedding for one text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      []string{text},
		Model:      e.model,
		Dimensions: e.dims,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("empty embedding response")
	}
	return resp.Data[0].Embedding, nil
}

// LocalEmbedder is a deterministic offline embedder: a hashed bag-of-words
// projection, L2-normalized. Texts sharing vocabulary land close in cosine
// space, which is enough for offline runs and reproducible tests. It is not
// a semantic model; configure a real provider for production quality.
type LocalEmbedder struct {
	dims    int
	version string
}

// NewLocalEmbedder creates a local embedder.
func NewLocalEmbedder(dims int, version string) *LocalEmbedder {
	if dims <= 0 {
		dims = 256
	}
	if version == "" {
		version = "v1"
	}
	return &LocalEmbedder{dims: dims, version: version}
}

// Name returns the embedder identity for cache keys.
func (e *LocalEmbedder) Name() string {
	return fmt.Sprintf("local/%s/%d", e.version, e.dims)
}

// Dimensions returns the vector size.
func (e *LocalEmbedder) Dimensions() int {
	return e.dims
}

// Embed hashes each token into a signed bucket and normalizes the result.
func (e *LocalEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, e.dims)
	for _, tok := range tokenizeWords(text) {
		h := fnv.New64a()
		_, _ = h.Write([]byte(tok))
		sum := h.Sum64()
		idx := int(sum % uint64(e.dims))
		if sum&(1<<63) != 0 {
			vec[idx]--
		} else {
			vec[idx]++
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		// All-stopword or empty text: a fixed unit vector keeps the
		// cosine math defined.
		vec[0] = 1
		return vec, nil
	}
	n := float32(math.Sqrt(norm))
	for i := range vec {
		vec[i] /= n
	}
	return vec, nil
}

// stopwords excluded from the local projection; they dominate cosine
// similarity otherwise.
var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "but": true,
	"is": true, "are": true, "was": true, "were": true, "be": true, "to": true,
	"of": true, "in": true, "on": true, "for": true, "with": true, "that": true,
	"this": true, "it": true, "at": true, "by": true, "from": true, "as": true,
}

func tokenizeWords(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if len(f) > 1 && !stopwords[f] {
			out = append(out, f)
		}
	}
	return out
}

// NewEmbedder builds the configured embedder.
func NewEmbedder(cfg model.EmbeddingConfig, apiKey, baseURL string) (Embedder, error) {
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		return NewOpenAIEmbedder(cfg, apiKey, baseURL)
	case "local", "":
		return NewLocalEmbedder(cfg.Dimensions, cfg.ModelVersion), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (supported: openai, local)", cfg.Provider)
	}
}
