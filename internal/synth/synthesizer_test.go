package synth

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ndomino/triggerforge/internal/llm"
	"github.com/ndomino/triggerforge/internal/model"
	"github.com/ndomino/triggerforge/internal/score"
)

func member(text string, st model.SourceType, intent model.IntentClass, strength, engagement float64) model.EvidenceItem {
	item := model.EvidenceItem{}
	item.Text = text
	item.SourceType = st
	item.IntentClass = intent
	item.IntentStrength = strength
	item.EngagementScore = engagement
	switch intent {
	case model.IntentComplaint:
		item.Sentiment = model.SentimentNegative
	case model.IntentComparison:
		item.Sentiment = model.SentimentNegative
	case model.IntentDesire:
		item.Sentiment = model.SentimentPositive
	default:
		item.Sentiment = model.SentimentNeutral
	}
	return item
}

func complaintCluster() model.Cluster {
	return model.Cluster{
		ID:            "cluster-support",
		Category:      model.CategoryFrustration,
		KeywordFamily: "support",
		Members: []model.EvidenceItem{
			member("support tickets sit for days before anyone replies", model.SourceTypeVoC, model.IntentComplaint, 0.35, 10),
			member("frustrated with how long support takes to respond", model.SourceTypeCommunity, model.IntentComplaint, 0.4, 25),
			member("their help desk response time is unacceptable", model.SourceTypeNews, model.IntentComplaint, 0.3, 5),
		},
	}
}

func TestSynthesize_ComplaintTitleUsesComplaintVerb(t *testing.T) {
	s := New(nil, nil, 0, nil, nil)

	ins, err := s.Synthesize(context.Background(), complaintCluster(), score.Result{Confidence: 0.87})
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}

	title := strings.ToLower(ins.Title)
	if !strings.Contains(title, "frustrated") && !strings.Contains(title, "struggling") {
		t.Errorf("complaint cluster title should use complaint verbs, got %q", ins.Title)
	}
	for _, wrong := range []string{"seeking", "wanting", "excited"} {
		if strings.Contains(title, wrong) {
			t.Errorf("complaint cluster title must not use %q, got %q", wrong, ins.Title)
		}
	}
	if ins.Sentiment != model.SentimentNegative {
		t.Errorf("expected negative sentiment, got %s", ins.Sentiment)
	}
	if ins.Confidence != 0.87 {
		t.Errorf("confidence should pass through, got %v", ins.Confidence)
	}
}

func TestSynthesize_ComparisonVerb(t *testing.T) {
	c := model.Cluster{
		ID:            "cluster-switch",
		Category:      model.CategoryComparison,
		KeywordFamily: "pricing",
		Members: []model.EvidenceItem{
			member("our contract is up and we are evaluating alternatives", model.SourceTypeCommunity, model.IntentComparison, 0.85, 12),
			member("migrating from our current tool over renewal pricing", model.SourceTypeVoC, model.IntentComparison, 0.8, 3),
		},
	}

	ins, err := New(nil, nil, 0, nil, nil).Synthesize(context.Background(), c, score.Result{})
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if !strings.Contains(ins.Title, "evaluating alternatives due to") {
		t.Errorf("comparison cluster should use the switching verb phrase, got %q", ins.Title)
	}
}

func TestSynthesize_CompetitorAttribution(t *testing.T) {
	c := complaintCluster()
	c.Members[1].CompetitorName = "HubSpot" // the highest-engagement member
	c.CompetitorName = "HubSpot"

	ins, err := New(nil, nil, 0, nil, nil).Synthesize(context.Background(), c, score.Result{})
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}

	if !strings.HasPrefix(ins.Title, "HubSpot users") {
		t.Errorf("expected competitor-attributed subject, got %q", ins.Title)
	}
	if ins.CompetitorName != "HubSpot" {
		t.Errorf("expected competitor carried onto the insight, got %q", ins.CompetitorName)
	}
}

func TestSynthesize_GenericSubjectWithoutCompetitor(t *testing.T) {
	ins, err := New(nil, nil, 0, nil, nil).Synthesize(context.Background(), complaintCluster(), score.Result{})
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if !strings.HasPrefix(ins.Title, "Buyers") {
		t.Errorf("expected generic subject, got %q", ins.Title)
	}
}

func TestSynthesize_Deterministic(t *testing.T) {
	s := New(nil, nil, 0, nil, nil)

	a, err := s.Synthesize(context.Background(), complaintCluster(), score.Result{})
	if err != nil {
		t.Fatal(err)
	}
	b, err := s.Synthesize(context.Background(), complaintCluster(), score.Result{})
	if err != nil {
		t.Fatal(err)
	}
	if a.Title != b.Title {
		t.Errorf("titles differ across runs: %q vs %q", a.Title, b.Title)
	}
	if a.Summary != b.Summary {
		t.Errorf("summaries differ across runs")
	}
}

func TestSynthesize_EvidenceCap(t *testing.T) {
	c := complaintCluster()
	for i := 0; i < 6; i++ {
		c.Members = append(c.Members, member("another slow support complaint", model.SourceTypeVoC, model.IntentComplaint, 0.1*float64(i), 0))
	}

	ins, err := New(nil, nil, 0, nil, nil).Synthesize(context.Background(), c, score.Result{})
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}

	if len(ins.Evidence) != model.MaxEvidenceShown {
		t.Fatalf("expected %d evidence items, got %d", model.MaxEvidenceShown, len(ins.Evidence))
	}
	if ins.OverflowCount != len(c.Members)-model.MaxEvidenceShown {
		t.Errorf("expected overflow %d, got %d", len(c.Members)-model.MaxEvidenceShown, ins.OverflowCount)
	}
	for i := 1; i < len(ins.Evidence); i++ {
		if ins.Evidence[i].IntentStrength > ins.Evidence[i-1].IntentStrength {
			t.Errorf("evidence not ranked by intent strength at %d", i)
		}
	}
}

func TestTruncateTitle(t *testing.T) {
	short := "Buyers are frustrated by slow support"
	if got := TruncateTitle(short, 100); got != short {
		t.Errorf("short title must pass through, got %q", got)
	}

	long := strings.Repeat("wordhere ", 20) // 180 chars
	got := TruncateTitle(long, 100)
	if len(got) > 100 {
		t.Fatalf("truncated title too long: %d", len(got))
	}
	for _, w := range strings.Fields(got) {
		if w != "wordhere" {
			t.Errorf("word was cut mid-way: %q", w)
		}
	}

	clause := "Buyers are frustrated by slow support response times across every channel, especially during peak renewal season"
	got = TruncateTitle(clause, 100)
	if len(got) > 100 {
		t.Fatalf("truncated title too long: %d", len(got))
	}
	if strings.Contains(got, "especially") {
		t.Errorf("expected trailing clause dropped, got %q", got)
	}
}

// fakeProvider scripts LLM responses for the validation paths.
type fakeProvider struct {
	responses []string
	errs      []error
	calls     int
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) IsAvailable(ctx context.Context) bool { return true }

func (f *fakeProvider) Complete(ctx context.Context, req llm.CompleteRequest) (*llm.CompleteResponse, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	text := ""
	if i < len(f.responses) {
		text = f.responses[i]
	}
	return &llm.CompleteResponse{Text: text, Model: "fake"}, nil
}

func TestSynthesize_LLMSummary(t *testing.T) {
	provider := &fakeProvider{responses: []string{`{"summary": "Buyers report slow support. It spans three source types."}`}}

	ins, err := New(provider, nil, 0, nil, nil).Synthesize(context.Background(), complaintCluster(), score.Result{})
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if ins.Summary != "Buyers report slow support. It spans three source types." {
		t.Errorf("unexpected summary %q", ins.Summary)
	}
}

func TestSynthesize_RepairsFencedOutput(t *testing.T) {
	provider := &fakeProvider{responses: []string{
		"```json\n{\"summary\": \"Support is the dominant complaint.\"}\n```",
	}}

	ins, err := New(provider, nil, 0, nil, nil).Synthesize(context.Background(), complaintCluster(), score.Result{})
	if err != nil {
		t.Fatalf("expected fence repair to succeed: %v", err)
	}
	if ins.Summary != "Support is the dominant complaint." {
		t.Errorf("unexpected summary %q", ins.Summary)
	}
}

func TestSynthesize_UnparseableFailsSoft(t *testing.T) {
	provider := &fakeProvider{responses: []string{"Sure! Here is a summary without any structure."}}

	_, err := New(provider, nil, 0, nil, nil).Synthesize(context.Background(), complaintCluster(), score.Result{})
	if !errors.Is(err, ErrUnparseable) {
		t.Fatalf("expected ErrUnparseable, got %v", err)
	}
}

func TestSynthesize_RetriesTransientFailure(t *testing.T) {
	provider := &fakeProvider{
		errs:      []error{errors.New("rate limited"), nil},
		responses: []string{"", `{"summary": "Second attempt succeeded."}`},
	}

	ins, err := New(provider, nil, 1, nil, nil).Synthesize(context.Background(), complaintCluster(), score.Result{})
	if err != nil {
		t.Fatalf("expected retry to recover: %v", err)
	}
	if ins.Summary != "Second attempt succeeded." {
		t.Errorf("unexpected summary %q", ins.Summary)
	}
	if provider.calls != 2 {
		t.Errorf("expected 2 calls, got %d", provider.calls)
	}
}

func TestParseSummary_SurroundingProse(t *testing.T) {
	got, err := parseSummary("Here is the JSON you asked for: {\"summary\": \"Wrapped but valid.\"} Hope that helps!")
	if err != nil {
		t.Fatalf("expected wrapper repair to succeed: %v", err)
	}
	if got != "Wrapped but valid." {
		t.Errorf("unexpected summary %q", got)
	}
}
