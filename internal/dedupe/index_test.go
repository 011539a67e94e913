package dedupe

import (
	"fmt"
	"math"
	"testing"

	"github.com/ndomino/triggerforge/internal/model"
)

// unitVec builds a 2-d unit vector whose cosine similarity with baseVec
// ([1,0]) is exactly sim.
func unitVec(sim float64) []float32 {
	return []float32{float32(sim), float32(math.Sqrt(1 - sim*sim))}
}

// vecAt builds a unit vector at the given angle in degrees. Vectors more
// than ~32 degrees apart fall below the related threshold.
func vecAt(deg float64) []float32 {
	r := deg * math.Pi / 180
	return []float32{float32(math.Cos(r)), float32(math.Sin(r))}
}

var baseVec = []float32{1, 0}

func sample(id, text string, st model.SourceType, engagement float64) model.RawSample {
	return model.RawSample{
		ID:              id,
		Text:            text,
		SourceName:      string(st),
		SourceType:      st,
		EngagementScore: engagement,
	}
}

func TestIndex_ContentHashMergeKeepsHigherEngagement(t *testing.T) {
	ix := New(nil, nil)

	a := sample("a", "Support response time is killing us, tickets sit for days!", model.SourceTypeVoC, 3)
	b := sample("b", "Support response time is killing us; tickets sit for DAYS.", model.SourceTypeVoC, 10)

	ix.Add(a, baseVec)
	dec := ix.Add(b, baseVec)

	if dec.Action != ActionMergedContent {
		t.Fatalf("Expected content-hash merge, got %s", dec.Action)
	}
	retained := ix.Retained()
	if len(retained) != 1 {
		t.Fatalf("Expected 1 retained, got %d", len(retained))
	}
	if retained[0].ID != "b" {
		t.Errorf("Expected higher-engagement instance b kept, got %s", retained[0].ID)
	}
}

func TestIndex_TitleHashCatchesTemplateRestatement(t *testing.T) {
	ix := New(nil, nil)

	// Identical first 40 normalized chars, divergent within chars 41..100:
	// misses the content hash, hits the title hash.
	a := sample("a", "Why is the analytics dashboard so slow when filtering by campaign over long ranges", model.SourceTypeCommunity, 1)
	b := sample("b", "Why is the analytics dashboard so slow when exporting weekly reports to spreadsheets", model.SourceTypeCommunity, 1)

	ix.Add(a, unitVec(0.5))
	dec := ix.Add(b, unitVec(0.5))

	if dec.Action != ActionMergedTitle {
		t.Fatalf("Expected title-hash merge, got %s", dec.Action)
	}
	if dec.MergedInto != "a" {
		t.Errorf("Expected merge into a, got %s", dec.MergedInto)
	}
	if ix.Len() != 1 {
		t.Errorf("Expected 1 retained, got %d", ix.Len())
	}
}

func TestIndex_EmbeddingThresholds(t *testing.T) {
	cases := []struct {
		name   string
		sim    float64
		action Action
		len    int
	}{
		{"merge at 0.93", 0.93, ActionMergedEmbed, 1},
		{"related at 0.88", 0.88, ActionRetained, 2},
		{"independent at 0.80", 0.80, ActionRetained, 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ix := New(nil, nil)
			ix.Add(sample("a", "Buyers complain that onboarding takes weeks of engineering time", model.SourceTypeVoC, 1), baseVec)
			dec := ix.Add(sample("b", "Teams report multi-week setup efforts before seeing any value", model.SourceTypeCommunity, 1), unitVec(tc.sim))

			if dec.Action != tc.action {
				t.Fatalf("Expected %s, got %s", tc.action, dec.Action)
			}
			if ix.Len() != tc.len {
				t.Errorf("Expected %d retained, got %d", tc.len, ix.Len())
			}
			if tc.sim == 0.88 {
				if len(dec.RelatedTo) != 1 || dec.RelatedTo[0] != "a" {
					t.Errorf("Expected related link to a, got %v", dec.RelatedTo)
				}
			}
			if tc.sim == 0.80 && len(dec.RelatedTo) != 0 {
				t.Errorf("Expected no related links, got %v", dec.RelatedTo)
			}
		})
	}
}

func TestIndex_SourceDiversityExceptionRetainsAll(t *testing.T) {
	ix := New(nil, nil)

	text := "The vendor lock-in on reporting exports is a dealbreaker for us"
	ix.Add(sample("a", text, model.SourceTypeVoC, 1), baseVec)
	ix.Add(sample("b", text, model.SourceTypeCommunity, 1), baseVec)
	dec := ix.Add(sample("c", text, model.SourceTypeNews, 1), baseVec)

	if dec.Action != ActionMultiValidated {
		t.Fatalf("Expected multi-validated retention, got %s", dec.Action)
	}
	if ix.Len() != 3 {
		t.Fatalf("Expected all 3 instances retained, got %d", ix.Len())
	}
	for _, id := range []string{"a", "b", "c"} {
		if !ix.MultiValidated(id) {
			t.Errorf("Expected %s marked multi-validated", id)
		}
	}

	// A fourth instance from an already-seen type also stays.
	dec = ix.Add(sample("d", text, model.SourceTypeVoC, 1), baseVec)
	if dec.Action != ActionMultiValidated {
		t.Fatalf("Expected multi-validated retention for d, got %s", dec.Action)
	}
	if ix.Len() != 4 {
		t.Errorf("Expected 4 retained, got %d", ix.Len())
	}
}

func TestIndex_TwoSourceTypesStillMerge(t *testing.T) {
	ix := New(nil, nil)

	text := "Email deliverability tanked after the last template update"
	ix.Add(sample("a", text, model.SourceTypeVoC, 1), baseVec)
	dec := ix.Add(sample("b", text, model.SourceTypeCommunity, 1), baseVec)

	if dec.Action != ActionMergedContent {
		t.Fatalf("Expected merge below the diversity threshold, got %s", dec.Action)
	}
	if ix.Len() != 1 {
		t.Errorf("Expected 1 retained, got %d", ix.Len())
	}
}

func TestIndex_IdempotentOnOwnOutput(t *testing.T) {
	first := New(nil, nil)

	texts := []struct {
		id  string
		txt string
		sim float64
	}{
		{"a", "We keep losing leads because the CRM sync silently fails", 1.0},
		{"b", "Our leads vanish whenever the integration drops connection", 0.93}, // merges into a
		{"c", "Pricing jumped forty percent at renewal with no warning", 0.40},
		{"d", "The renewal quote came in far above what sales promised", 0.88}, // related to a, kept
	}
	for _, s := range texts {
		first.Add(sample(s.id, s.txt, model.SourceTypeVoC, 1), unitVec(s.sim))
	}

	out := first.Retained()

	second := New(nil, nil)
	for _, s := range out {
		emb, ok := first.Embedding(s.ID)
		if !ok {
			t.Fatalf("Missing embedding for %s", s.ID)
		}
		second.Add(s, emb)
	}

	reout := second.Retained()
	if len(reout) != len(out) {
		t.Fatalf("Dedup not idempotent: %d then %d", len(out), len(reout))
	}
	for i := range out {
		if reout[i].ID != out[i].ID {
			t.Errorf("Order or membership changed at %d: %s vs %s", i, out[i].ID, reout[i].ID)
		}
	}
}

func TestIndex_OrderPreserving(t *testing.T) {
	ix := New(nil, nil)

	for i := 0; i < 5; i++ {
		txt := fmt.Sprintf("Distinct complaint number %d about a completely separate workflow area", i)
		ix.Add(sample(fmt.Sprintf("s%d", i), txt, model.SourceTypeVoC, 1), vecAt(float64(i)*40))
	}

	retained := ix.Retained()
	for i, s := range retained {
		if s.ID != fmt.Sprintf("s%d", i) {
			t.Errorf("Expected s%d at position %d, got %s", i, i, s.ID)
		}
	}
}
