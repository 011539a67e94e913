package engine

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/ndomino/triggerforge/internal/model"
)

func testConfig() *model.Config {
	cfg := model.DefaultConfig()
	cfg.Engine.BatchInterval = 20 * time.Millisecond
	return cfg
}

func sample(text string, st model.SourceType) model.RawSampleInput {
	return model.RawSampleInput{Text: text, SourceType: st, SourceName: string(st)}
}

// thirtySamples is a realistic scrape batch: a dominant support-complaint
// theme across four source types, a desire theme, a competitor-switching
// theme, background news, and two garbage entries.
func thirtySamples() []model.RawSampleInput {
	hub := func(text string, st model.SourceType) model.RawSampleInput {
		in := sample(text, st)
		in.CompetitorName = "HubSpot"
		return in
	}
	return []model.RawSampleInput{
		// Support response complaints, 14 items over 4 source types.
		sample("I'm frustrated with support response times, struggling to get anyone to reply at all", model.SourceTypeVoC),
		sample("Support tickets sit for days, so slow that I'm frustrated and struggling to run campaigns", model.SourceTypeVoC),
		sample("Their help desk is a nightmare, I'm fed up waiting on support and struggling every week", model.SourceTypeVoC),
		sample("Honestly fed up with customer service here, the support queue is so slow it hurts", model.SourceTypeVoC),
		sample("Anyone else frustrated by ticket response times? We're struggling to get answers before launches", model.SourceTypeCommunity),
		sample("Our team is struggling with support turnaround, it's frustrating to wait a week per ticket", model.SourceTypeCommunity),
		sample("So annoyed with the support desk, response time is terrible and we're struggling to ship", model.SourceTypeCommunity),
		sample("Sick of chasing our support ticket for two weeks, frustrating and painful process", model.SourceTypeCommunity),
		sample("We are frustrated that support response takes days while our send windows slip, struggling badly", model.SourceTypeCommunity),
		sample("Vendor support responsiveness came up as a top frustration in our customer advisory board, teams are struggling", model.SourceTypeExecutive),
		sample("On our earnings call we noted churn tied to frustrating vendor support experiences and slow ticket handling", model.SourceTypeExecutive),
		sample("A trade survey found marketers frustrated with vendor help desk response times, many struggling to get replies", model.SourceTypeNews),
		sample("Industry report: frustrating support response delays now a leading complaint among email platform buyers who keep struggling", model.SourceTypeNews),
		sample("My biggest pain point remains support, the ticket backlog keeps growing and I'm frustrated daily", model.SourceTypeVoC),

		// Reporting/export desire, 6 items.
		sample("I wish we had better dashboard exports, would love scheduled report delivery", model.SourceTypeVoC),
		sample("We would love richer analytics exports, really hoping for a proper metrics API", model.SourceTypeVoC),
		sample("Looking for a tool with decent report scheduling, would love custom dashboard views", model.SourceTypeCommunity),
		sample("I want deeper campaign analytics, hoping for exportable dashboards someday", model.SourceTypeCommunity),
		sample("If only the reporting module let us export raw metrics, we would love that", model.SourceTypeCommunity),
		sample("Searching for better report exports, I want something my analysts can actually use", model.SourceTypeVoC),

		// HubSpot switching, 5 items.
		hub("Our HubSpot contract is up and we are evaluating alternatives over renewal pricing", model.SourceTypeCommunity),
		hub("Migrating from HubSpot this quarter, the renewal quote was frustrating and too expensive", model.SourceTypeCommunity),
		hub("We are comparing HubSpot against two cheaper platforms before our contract renewal", model.SourceTypeVoC),
		hub("Shopping around for an alternative to HubSpot, pricing no longer fits our budget", model.SourceTypeCommunity),
		hub("Evaluating alternatives to HubSpot after another price increase on renewal", model.SourceTypeVoC),

		// Background news/events, 3 items.
		sample("The company announced a forty million dollar funding round to build out its platform", model.SourceTypeEvent),
		sample("A rival vendor launched an automation suite at the industry conference this week", model.SourceTypeNews),
		sample("New privacy regulation takes effect next year for bulk email senders", model.SourceTypeNews),

		// Garbage the filter must absorb.
		sample("G2 reviews discuss platform complexity and pricing concerns", model.SourceTypeVoC),
		sample("Too short.", model.SourceTypeVoC),
	}
}

func runBatch(t *testing.T, inputs []model.RawSampleInput) []model.Insight {
	t.Helper()

	eng, err := New(testConfig(), model.BusinessProfile{
		Industry:    "email marketing",
		Competitors: []string{"HubSpot", "Marketo"},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx := context.Background()
	eng.Run(ctx)
	for _, in := range inputs {
		if err := eng.Ingest(ctx, in); err != nil {
			t.Fatalf("Ingest failed: %v", err)
		}
	}
	eng.Close()

	return eng.Insights()
}

func TestEngine_EndToEnd(t *testing.T) {
	insights := runBatch(t, thirtySamples())

	if len(insights) == 0 {
		t.Fatal("expected at least one insight")
	}

	var support *model.Insight
	for i := range insights {
		ins := &insights[i]
		if ins.Category == model.CategoryFrustration && strings.Contains(strings.ToLower(ins.Title), "support") {
			support = ins
			break
		}
	}
	if support == nil {
		t.Fatalf("expected a frustration insight about support, got %v", titles(insights))
	}

	if support.Confidence < 0.85 {
		t.Errorf("support theme spans four source types, expected confidence >= 0.85, got %.3f", support.Confidence)
	}

	title := strings.ToLower(support.Title)
	if !strings.Contains(title, "frustrated") && !strings.Contains(title, "struggling") {
		t.Errorf("complaint title should use complaint verbs, got %q", support.Title)
	}
	if strings.Contains(title, "want") || strings.Contains(title, "seeking") {
		t.Errorf("complaint title must not use desire verbs, got %q", support.Title)
	}

	if len(support.Evidence) > model.MaxEvidenceShown {
		t.Errorf("evidence cap exceeded: %d", len(support.Evidence))
	}
	if len(support.Evidence)+support.OverflowCount < 10 {
		t.Errorf("expected the support cluster to gather at least 10 members, got %d",
			len(support.Evidence)+support.OverflowCount)
	}
	if !support.DimensionTags.Complete() {
		t.Errorf("published insight missing dimension tags: %+v", support.DimensionTags)
	}
}

func TestEngine_CompetitorAttribution(t *testing.T) {
	insights := runBatch(t, thirtySamples())

	found := false
	for _, ins := range insights {
		if ins.CompetitorName == "HubSpot" {
			found = true
			if !strings.Contains(ins.Title, "HubSpot") {
				t.Errorf("competitor insight should carry attribution in the title, got %q", ins.Title)
			}
		}
	}
	if !found {
		t.Fatalf("expected a HubSpot-attributed insight, got %v", titles(insights))
	}
}

func TestEngine_PublishedSetIsDistinct(t *testing.T) {
	insights := runBatch(t, thirtySamples())

	for i := range insights {
		for j := i + 1; j < len(insights); j++ {
			d := model.AxisDistance(insights[i].DimensionTags, insights[j].DimensionTags)
			if d < 2 {
				t.Errorf("insights %q and %q differ on only %d axes", insights[i].Title, insights[j].Title, d)
			}
		}
	}
}

func TestEngine_SubscribeFiresOnPublish(t *testing.T) {
	eng, err := New(testConfig(), model.BusinessProfile{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	got := make(chan int, 16)
	unsubscribe := eng.Subscribe(func(ins []model.Insight) {
		got <- len(ins)
	})
	defer unsubscribe()

	ctx := context.Background()
	eng.Run(ctx)
	if err := eng.Ingest(ctx, sample("I'm frustrated that support tickets take a week to answer", model.SourceTypeVoC)); err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	eng.Close()

	select {
	case n := <-got:
		if n < 1 {
			t.Errorf("expected a published set with at least one insight, got %d", n)
		}
	default:
		t.Fatal("subscriber was never notified")
	}
}

func TestEngine_IngestAfterClose(t *testing.T) {
	eng, err := New(testConfig(), model.BusinessProfile{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	eng.Run(context.Background())
	eng.Close()

	err = eng.Ingest(context.Background(), sample("I'm frustrated with support response times here", model.SourceTypeVoC))
	if err != ErrClosed {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestEngine_CancelPreservesPublishedSet(t *testing.T) {
	eng, err := New(testConfig(), model.BusinessProfile{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	published := make(chan struct{}, 16)
	defer eng.Subscribe(func([]model.Insight) { published <- struct{}{} })()

	ctx, cancel := context.WithCancel(context.Background())
	eng.Run(ctx)

	if err := eng.Ingest(ctx, sample("I'm frustrated with slow support tickets and struggling weekly", model.SourceTypeVoC)); err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	select {
	case <-published:
	case <-time.After(5 * time.Second):
		t.Fatal("first pass never published")
	}
	before := eng.Insights()

	cancel()
	// The loop exits on cancellation; the published set must survive.
	eng.Close()

	after := eng.Insights()
	if len(after) != len(before) {
		t.Errorf("cancellation changed the published set: %d vs %d", len(before), len(after))
	}
}

func TestEngine_ConcurrentIngest(t *testing.T) {
	eng, err := New(testConfig(), model.BusinessProfile{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx := context.Background()
	eng.Run(ctx)

	inputs := thirtySamples()
	done := make(chan error, len(inputs))
	for _, in := range inputs {
		in := in
		go func() {
			done <- eng.Ingest(ctx, in)
		}()
	}
	for range inputs {
		if err := <-done; err != nil {
			t.Fatalf("concurrent Ingest failed: %v", err)
		}
	}
	eng.Close()

	if len(eng.Insights()) == 0 {
		t.Fatal("expected insights from concurrent ingestion")
	}
}

func titles(insights []model.Insight) []string {
	out := make([]string, len(insights))
	for i, ins := range insights {
		out[i] = ins.Title
	}
	return out
}
