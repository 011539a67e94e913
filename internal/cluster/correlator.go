// Package cluster groups evidence items into candidate insight clusters by
// centroid proximity and shared categorical signals. Clustering is
// incremental: new items are assigned against live clusters, so a streaming
// batch only touches the region it lands in.
package cluster

import (
	"strings"
	"sync"

	"github.com/coder/hnsw"
	"github.com/google/uuid"

	"github.com/ndomino/triggerforge/internal/model"
)

// ClusterFloor is the centroid cosine floor for joining a cluster. It is
// deliberately looser than the dedup merge threshold: clusters group related
// statements, dedup collapses restatements.
const ClusterFloor = 0.70

// keywordFamilies maps a pain-point family name to its cue list. The first
// family with a hit wins; order the specific families before the broad ones.
var keywordFamilies = []struct {
	name string
	cues []string
}{
	{"support", []string{"support", "ticket", "response time", "help desk", "customer service"}},
	{"pricing", []string{"pricing", "price", "cost", "expensive", "renewal", "contract", "quote"}},
	{"integration", []string{"integration", "integrate", "api", "sync", "crm", "webhook", "connector"}},
	{"onboarding", []string{"onboarding", "setup", "implementation", "getting started", "migration"}},
	{"reporting", []string{"report", "analytics", "dashboard", "export", "metrics"}},
	{"performance", []string{"slow", "performance", "latency", "load", "timeout", "crash"}},
	{"deliverability", []string{"deliverability", "spam", "bounce", "inbox placement"}},
}

// categoryCues classify neutral-intent evidence into the remaining trigger
// categories; intent-classed evidence maps directly
// (complaint -> frustration, desire -> desire, comparison -> comparison).
var categoryCues = []struct {
	category model.Category
	cues     []string
}{
	{model.CategoryFear, []string{"worried", "afraid", "risk", "breach", "compliance", "audit", "lose data", "scared"}},
	{model.CategoryUrgency, []string{"deadline", "urgent", "asap", "running out", "before renewal", "this quarter", "immediately"}},
	{model.CategoryTrust, []string{"trust", "reliable", "proven", "track record", "security", "uptime", "references"}},
	{model.CategoryMotivation, []string{"grow", "scale", "improve", "goal", "increase", "efficiency", "save time"}},
}

// CategoryOf derives the trigger category for one evidence item.
func CategoryOf(item model.EvidenceItem) model.Category {
	switch item.IntentClass {
	case model.IntentComplaint:
		return model.CategoryFrustration
	case model.IntentDesire:
		return model.CategoryDesire
	case model.IntentComparison:
		return model.CategoryComparison
	}
	lower := strings.ToLower(item.Text)
	for _, cc := range categoryCues {
		for _, cue := range cc.cues {
			if strings.Contains(lower, cue) {
				return cc.category
			}
		}
	}
	return model.CategoryMotivation
}

// FamilyOf returns the pain-point keyword family of a text, or "".
func FamilyOf(text string) string {
	lower := strings.ToLower(text)
	for _, f := range keywordFamilies {
		for _, cue := range f.cues {
			if strings.Contains(lower, cue) {
				return f.name
			}
		}
	}
	return ""
}

type clusterState struct {
	id          string
	members     []model.EvidenceItem
	centroidSum []float32
	category    model.Category
	family      string
	competitors map[string]int
	multi       bool
}

func (cs *clusterState) centroid() []float32 {
	if len(cs.members) == 0 {
		return nil
	}
	out := make([]float32, len(cs.centroidSum))
	n := float32(len(cs.members))
	for i, v := range cs.centroidSum {
		out[i] = v / n
	}
	return out
}

// Correlator assigns evidence items to clusters incrementally.
type Correlator struct {
	mu        sync.RWMutex
	clusters  map[string]*clusterState
	memberOf  map[string]string // evidence ID -> cluster ID
	assignSeq []string          // cluster creation order, for stable output
}

// NewCorrelator creates an empty correlator.
func NewCorrelator() *Correlator {
	return &Correlator{
		clusters: make(map[string]*clusterState),
		memberOf: make(map[string]string),
	}
}

// Assign places one item into the best matching cluster or creates a new
// one, and returns the cluster ID. A cluster never spans two categories:
// merging a frustration cluster with a desire cluster would invert sentiment
// downstream, which is the root-cause invariant this package protects.
func (c *Correlator) Assign(item model.EvidenceItem, multiValidated bool) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if id, ok := c.memberOf[item.ID]; ok {
		return id
	}

	category := CategoryOf(item)
	family := FamilyOf(item.Text)

	var best *clusterState
	bestSim := -2.0 // below the no-embedding sentinel so a signal-only match still wins
	for _, id := range c.assignSeq {
		cs := c.clusters[id]
		if cs == nil || cs.category != category {
			continue
		}
		sim := -1.0
		if len(item.Embedding) > 0 {
			if cen := cs.centroid(); len(cen) == len(item.Embedding) {
				sim = 1 - float64(hnsw.CosineDistance(item.Embedding, cen))
			}
		}
		sharedFamily := family != "" && cs.family == family
		sharedCompetitor := item.CompetitorName != "" && cs.competitors[item.CompetitorName] > 0
		if sim >= ClusterFloor || sharedFamily || sharedCompetitor {
			if sim > bestSim {
				best = cs
				bestSim = sim
			}
		}
	}

	if best == nil {
		best = &clusterState{
			id:          uuid.NewString(),
			category:    category,
			family:      family,
			competitors: make(map[string]int),
			centroidSum: make([]float32, len(item.Embedding)),
		}
		c.clusters[best.id] = best
		c.assignSeq = append(c.assignSeq, best.id)
	}

	best.members = append(best.members, item)
	if len(best.centroidSum) == len(item.Embedding) {
		for i, v := range item.Embedding {
			best.centroidSum[i] += v
		}
	}
	if item.CompetitorName != "" {
		best.competitors[item.CompetitorName]++
	}
	if best.family == "" {
		best.family = family
	}
	if multiValidated {
		best.multi = true
	}
	c.memberOf[item.ID] = best.id
	return best.id
}

// Remove drops an evidence item, deleting its cluster if it empties. Used
// when the dedup index replaces a previously clustered representative.
func (c *Correlator) Remove(evidenceID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	clusterID, ok := c.memberOf[evidenceID]
	if !ok {
		return
	}
	delete(c.memberOf, evidenceID)
	cs := c.clusters[clusterID]
	if cs == nil {
		return
	}
	for i, m := range cs.members {
		if m.ID == evidenceID {
			if len(m.Embedding) == len(cs.centroidSum) {
				for j, v := range m.Embedding {
					cs.centroidSum[j] -= v
				}
			}
			cs.members = append(cs.members[:i], cs.members[i+1:]...)
			break
		}
	}
	if len(cs.members) == 0 {
		delete(c.clusters, clusterID)
		for i, id := range c.assignSeq {
			if id == clusterID {
				c.assignSeq = append(c.assignSeq[:i], c.assignSeq[i+1:]...)
				break
			}
		}
	}
}

// Assigned reports whether an evidence ID is already clustered.
func (c *Correlator) Assigned(evidenceID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.memberOf[evidenceID]
	return ok
}

// Clusters snapshots the current clusters in creation order. Singleton
// clusters are included: a single strong signal is still a valid,
// lower-confidence insight.
func (c *Correlator) Clusters() []model.Cluster {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]model.Cluster, 0, len(c.assignSeq))
	for _, id := range c.assignSeq {
		cs := c.clusters[id]
		if cs == nil || len(cs.members) == 0 {
			continue
		}
		members := make([]model.EvidenceItem, len(cs.members))
		copy(members, cs.members)
		out = append(out, model.Cluster{
			ID:             cs.id,
			Members:        members,
			Centroid:       cs.centroid(),
			Category:       cs.category,
			KeywordFamily:  cs.family,
			CompetitorName: dominantCompetitor(cs.competitors),
			MultiValidated: cs.multi,
		})
	}
	return out
}

// Reset discards all clustering state. Called on profile change, where the
// categorical signals themselves may shift.
func (c *Correlator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clusters = make(map[string]*clusterState)
	c.memberOf = make(map[string]string)
	c.assignSeq = nil
}

func dominantCompetitor(counts map[string]int) string {
	best := ""
	bestN := 0
	for name, n := range counts {
		if n > bestN || (n == bestN && best != "" && name < best) {
			best = name
			bestN = n
		}
	}
	return best
}
