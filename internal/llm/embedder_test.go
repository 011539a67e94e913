package llm

import (
	"context"
	"math"
	"testing"

	"github.com/ndomino/triggerforge/internal/model"
)

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func TestLocalEmbedder_Deterministic(t *testing.T) {
	e := NewLocalEmbedder(128, "v1")

	a, err := e.Embed(context.Background(), "support tickets sit unanswered for days")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	b, _ := e.Embed(context.Background(), "support tickets sit unanswered for days")

	if cosine(a, b) < 0.9999 {
		t.Error("Identical text must embed identically")
	}
}

func TestLocalEmbedder_SharedVocabularyIsCloser(t *testing.T) {
	e := NewLocalEmbedder(128, "v1")
	ctx := context.Background()

	a, _ := e.Embed(ctx, "support response time is slow and tickets pile up")
	b, _ := e.Embed(ctx, "slow support response time means tickets pile up fast")
	c, _ := e.Embed(ctx, "quarterly revenue guidance exceeded analyst expectations")

	if cosine(a, b) <= cosine(a, c) {
		t.Errorf("Expected vocabulary overlap to dominate: sim(a,b)=%.3f sim(a,c)=%.3f",
			cosine(a, b), cosine(a, c))
	}
}

func TestLocalEmbedder_NormalizedAndSized(t *testing.T) {
	e := NewLocalEmbedder(64, "v1")

	v, err := e.Embed(context.Background(), "deliverability rates dropped after the migration")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(v) != 64 {
		t.Fatalf("Expected 64 dims, got %d", len(v))
	}
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if math.Abs(norm-1) > 1e-5 {
		t.Errorf("Expected unit norm, got %.6f", norm)
	}
}

func TestLocalEmbedder_EmptyTextStaysDefined(t *testing.T) {
	e := NewLocalEmbedder(32, "v1")

	v, err := e.Embed(context.Background(), "the and of to")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if v[0] != 1 {
		t.Error("Expected fixed fallback vector for stopword-only text")
	}
}

func TestNewEmbedder_UnknownProvider(t *testing.T) {
	cfg := model.EmbeddingConfig{Provider: "milvus"}
	if _, err := NewEmbedder(cfg, "", ""); err == nil {
		t.Error("Expected error for unknown embedding provider")
	}
}

func TestNewProvider_Unknown(t *testing.T) {
	if _, err := NewProvider(Config{Provider: "bard"}, nil); err == nil {
		t.Error("Expected error for unknown LLM provider")
	}
}

func TestNewProvider_DisabledReturnsNil(t *testing.T) {
	p, err := NewProvider(Config{}, nil)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if p != nil {
		t.Error("Expected nil provider when disabled")
	}
}
