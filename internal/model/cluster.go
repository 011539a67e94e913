package model

// Cluster is a transient grouping of evidence items awaiting synthesis.
// Clusters never persist past a synthesis run: once an Insight is produced
// (or the cluster is rejected), the cluster is discarded.
type Cluster struct {
	ID             string
	Members        []EvidenceItem // at least one; singletons are retained
	Centroid       []float32
	Category       Category // a cluster never spans two categories
	KeywordFamily  string   // dominant pain-point keyword family, if any
	CompetitorName string   // dominant competitor among members, if any
	MultiValidated bool     // same content corroborated by >=3 source types
}

// SourceTypeSet returns the distinct source types among members.
func (c *Cluster) SourceTypeSet() map[SourceType]struct{} {
	set := make(map[SourceType]struct{}, len(c.Members))
	for _, m := range c.Members {
		set[m.SourceType] = struct{}{}
	}
	return set
}

// AvgIntentStrength returns the mean intent strength across members,
// or 0 for an empty cluster.
func (c *Cluster) AvgIntentStrength() float64 {
	if len(c.Members) == 0 {
		return 0
	}
	sum := 0.0
	for _, m := range c.Members {
		sum += m.IntentStrength
	}
	return sum / float64(len(c.Members))
}

// DominantSentiment returns the most frequent literal sentiment among
// members. Ties resolve negative first, then positive, then neutral.
func (c *Cluster) DominantSentiment() Sentiment {
	counts := map[Sentiment]int{}
	for _, m := range c.Members {
		counts[m.Sentiment]++
	}
	best := SentimentNeutral
	bestN := -1
	for _, s := range []Sentiment{SentimentNegative, SentimentPositive, SentimentNeutral} {
		if counts[s] > bestN {
			best = s
			bestN = counts[s]
		}
	}
	return best
}

// DominantIntent returns the most frequent intent class among members.
// Ties resolve comparison first, then complaint, then desire.
func (c *Cluster) DominantIntent() IntentClass {
	counts := map[IntentClass]int{}
	for _, m := range c.Members {
		counts[m.IntentClass]++
	}
	best := IntentNeutral
	bestN := -1
	for _, ic := range []IntentClass{IntentComparison, IntentComplaint, IntentDesire, IntentNeutral} {
		if counts[ic] > bestN {
			best = ic
			bestN = counts[ic]
		}
	}
	return best
}
