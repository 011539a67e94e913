package cache

import (
	"context"
	"testing"
	"time"
)

// countingEmbedder tracks how many times the inner embedder runs.
type countingEmbedder struct {
	calls int
}

func (e *countingEmbedder) Name() string    { return "counting/v1/4" }
func (e *countingEmbedder) Dimensions() int { return 4 }

func (e *countingEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.calls++
	return []float32{1, 0, 0, float32(len(text) % 7)}, nil
}

func TestCachedEmbedder_HitSkipsInner(t *testing.T) {
	inner := &countingEmbedder{}
	store := NewMemoryCache(time.Minute, time.Minute)
	ce := NewCachedEmbedder(inner, store, time.Minute, nil, nil)

	ctx := context.Background()
	first, err := ce.Embed(ctx, "the export button does nothing on large workspaces")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	second, err := ce.Embed(ctx, "the export button does nothing on large workspaces")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}

	if inner.calls != 1 {
		t.Errorf("Expected 1 inner call, got %d", inner.calls)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("Cached vector differs at %d", i)
		}
	}
}

func TestCachedEmbedder_DistinctTextsMiss(t *testing.T) {
	inner := &countingEmbedder{}
	store := NewMemoryCache(time.Minute, time.Minute)
	ce := NewCachedEmbedder(inner, store, time.Minute, nil, nil)

	ctx := context.Background()
	_, _ = ce.Embed(ctx, "filters reset every time the page reloads")
	_, _ = ce.Embed(ctx, "approval chains lose comments between steps")

	if inner.calls != 2 {
		t.Errorf("Expected 2 inner calls, got %d", inner.calls)
	}
}

func TestVectorCodec_RoundTrip(t *testing.T) {
	in := []float32{0.25, -1.5, 0, 3.125}
	out, err := bytesToVector(vectorToBytes(in))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("Length mismatch: %d vs %d", len(out), len(in))
	}
	for i := range in {
		if in[i] != out[i] {
			t.Errorf("Value mismatch at %d: %f vs %f", i, in[i], out[i])
		}
	}
}

func TestVectorCodec_RejectsTruncatedData(t *testing.T) {
	if _, err := bytesToVector([]byte{1, 2, 3}); err == nil {
		t.Error("Expected error for truncated data")
	}
}

func TestKey_NamespaceSeparatesModels(t *testing.T) {
	a := Key("local/v1/256", "same text")
	b := Key("local/v2/256", "same text")
	if a == b {
		t.Error("Different model versions must produce different keys")
	}
}
