package model

// Axis names the twelve independent categorical dimensions attached to every
// accepted insight. Axes are assigned by independent heuristics and only
// validated jointly by the constraint matrix.
type Axis string

const (
	AxisStage         Axis = "stage"
	AxisEmotion       Axis = "emotion"
	AxisFormat        Axis = "format"
	AxisPersona       Axis = "persona"
	AxisObjection     Axis = "objection"
	AxisAngle         Axis = "angle"
	AxisCTA           Axis = "cta"
	AxisUrgency       Axis = "urgency"
	AxisConfidence    Axis = "confidence_tier"
	AxisCompetitive   Axis = "competitive_position"
	AxisLifecycle     Axis = "lifecycle"
	AxisSTEPPSTrigger Axis = "stepps_trigger"
)

// AllAxes lists every axis in a fixed order.
var AllAxes = []Axis{
	AxisStage, AxisEmotion, AxisFormat, AxisPersona, AxisObjection,
	AxisAngle, AxisCTA, AxisUrgency, AxisConfidence, AxisCompetitive,
	AxisLifecycle, AxisSTEPPSTrigger,
}

// Closed enums per axis. Keep these small; the diversity quotas are tracked
// per value and an open-ended axis would starve every bucket.
const (
	StageAwareness     = "awareness"
	StageConsideration = "consideration"
	StageDecision      = "decision"

	EmotionJoy         = "joy"
	EmotionAnger       = "anger"
	EmotionFearEmotion = "fear"
	EmotionAnticipate  = "anticipation"
	EmotionNeutralFeel = "neutral"

	FormatHowTo       = "how_to"
	FormatListicle    = "listicle"
	FormatTestimonial = "testimonial"
	FormatComparison  = "comparison"
	FormatStory       = "story"

	PersonaPractitioner = "practitioner"
	PersonaManager      = "manager"
	PersonaExecutive    = "executive"

	ObjectionPrice      = "price"
	ObjectionComplexity = "complexity"
	ObjectionTrust      = "trust"
	ObjectionSwitching  = "switching_cost"
	ObjectionNone       = "none"

	AngleFearBased  = "fear_based"
	AngleAspiration = "aspirational"
	AngleProof      = "proof_driven"
	AngleContrarian = "contrarian"
	AnglePragmatic  = "pragmatic"

	CTALearnMore = "learn_more"
	CTADownload  = "download"
	CTATrial     = "trial"
	CTADemo      = "demo"
	CTACompare   = "compare"

	UrgencyLow    = "low"
	UrgencyMedium = "medium"
	UrgencyHigh   = "high"

	ConfidenceTierSingle      = "single_source"
	ConfidenceTierCorroborate = "corroborated"
	ConfidenceTierTriangulate = "triangulated"

	CompetitiveAttack  = "attack"
	CompetitiveDefend  = "defend"
	CompetitiveNeutral = "neutral"

	LifecycleAcquire = "acquisition"
	LifecycleExpand  = "expansion"
	LifecycleRetain  = "retention"

	STEPPSSocialCurrency = "social_currency"
	STEPPSTriggers       = "triggers"
	STEPPSEmotion        = "emotion"
	STEPPSPublic         = "public"
	STEPPSPractical      = "practical_value"
	STEPPSStories        = "stories"
)

// AxisValues maps each axis to its closed value set, in a fixed order.
var AxisValues = map[Axis][]string{
	AxisStage:         {StageAwareness, StageConsideration, StageDecision},
	AxisEmotion:       {EmotionJoy, EmotionAnger, EmotionFearEmotion, EmotionAnticipate, EmotionNeutralFeel},
	AxisFormat:        {FormatHowTo, FormatListicle, FormatTestimonial, FormatComparison, FormatStory},
	AxisPersona:       {PersonaPractitioner, PersonaManager, PersonaExecutive},
	AxisObjection:     {ObjectionPrice, ObjectionComplexity, ObjectionTrust, ObjectionSwitching, ObjectionNone},
	AxisAngle:         {AngleFearBased, AngleAspiration, AngleProof, AngleContrarian, AnglePragmatic},
	AxisCTA:           {CTALearnMore, CTADownload, CTATrial, CTADemo, CTACompare},
	AxisUrgency:       {UrgencyLow, UrgencyMedium, UrgencyHigh},
	AxisConfidence:    {ConfidenceTierSingle, ConfidenceTierCorroborate, ConfidenceTierTriangulate},
	AxisCompetitive:   {CompetitiveAttack, CompetitiveDefend, CompetitiveNeutral},
	AxisLifecycle:     {LifecycleAcquire, LifecycleExpand, LifecycleRetain},
	AxisSTEPPSTrigger: {STEPPSSocialCurrency, STEPPSTriggers, STEPPSEmotion, STEPPSPublic, STEPPSPractical, STEPPSStories},
}

// DimensionTags is the full tag vector: exactly one value per axis.
type DimensionTags struct {
	Stage         string `json:"stage"`
	Emotion       string `json:"emotion"`
	Format        string `json:"format"`
	Persona       string `json:"persona"`
	Objection     string `json:"objection"`
	Angle         string `json:"angle"`
	CTA           string `json:"cta"`
	Urgency       string `json:"urgency"`
	Confidence    string `json:"confidence_tier"`
	Competitive   string `json:"competitive_position"`
	Lifecycle     string `json:"lifecycle"`
	STEPPSTrigger string `json:"stepps_trigger"`
}

// Get returns the value for one axis.
func (d DimensionTags) Get(a Axis) string {
	switch a {
	case AxisStage:
		return d.Stage
	case AxisEmotion:
		return d.Emotion
	case AxisFormat:
		return d.Format
	case AxisPersona:
		return d.Persona
	case AxisObjection:
		return d.Objection
	case AxisAngle:
		return d.Angle
	case AxisCTA:
		return d.CTA
	case AxisUrgency:
		return d.Urgency
	case AxisConfidence:
		return d.Confidence
	case AxisCompetitive:
		return d.Competitive
	case AxisLifecycle:
		return d.Lifecycle
	case AxisSTEPPSTrigger:
		return d.STEPPSTrigger
	}
	return ""
}

// Set assigns the value for one axis.
func (d *DimensionTags) Set(a Axis, v string) {
	switch a {
	case AxisStage:
		d.Stage = v
	case AxisEmotion:
		d.Emotion = v
	case AxisFormat:
		d.Format = v
	case AxisPersona:
		d.Persona = v
	case AxisObjection:
		d.Objection = v
	case AxisAngle:
		d.Angle = v
	case AxisCTA:
		d.CTA = v
	case AxisUrgency:
		d.Urgency = v
	case AxisConfidence:
		d.Confidence = v
	case AxisCompetitive:
		d.Competitive = v
	case AxisLifecycle:
		d.Lifecycle = v
	case AxisSTEPPSTrigger:
		d.STEPPSTrigger = v
	}
}

// Complete reports whether every axis has a value.
func (d DimensionTags) Complete() bool {
	for _, a := range AllAxes {
		if d.Get(a) == "" {
			return false
		}
	}
	return true
}

// AxisDistance counts the axes on which two tag vectors differ. Two accepted
// insights must differ on at least two axes.
func AxisDistance(a, b DimensionTags) int {
	n := 0
	for _, ax := range AllAxes {
		if a.Get(ax) != b.Get(ax) {
			n++
		}
	}
	return n
}
