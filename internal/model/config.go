package model

import (
	"fmt"
	"time"
)

// Config is the complete engine configuration.
type Config struct {
	LLM       LLMConfig           `yaml:"llm"`
	Embedding EmbeddingConfig     `yaml:"embedding"`
	Cache     CacheConfig         `yaml:"cache"`
	Engine    EngineConfig        `yaml:"engine"`
	Diversity DistributionTargets `yaml:"diversity"`
	Logging   LoggingConfig       `yaml:"logging"`
}

// LLMConfig holds LLM provider settings for summary synthesis.
type LLMConfig struct {
	Provider          string  `yaml:"provider"` // openai, anthropic, ollama, "" (disabled)
	Model             string  `yaml:"model"`
	APIKey            string  `yaml:"api_key"`
	BaseURL           string  `yaml:"base_url"`
	TimeoutSec        int     `yaml:"timeout_sec"`
	MaxTokens         int     `yaml:"max_tokens"`
	Retries           int     `yaml:"retries"` // transient-failure retries per call
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider     string `yaml:"provider"` // openai, local
	Model        string `yaml:"model"`
	ModelVersion string `yaml:"model_version"` // part of the cache key prefix
	Dimensions   int    `yaml:"dimensions"`
}

// CacheConfig holds the process-scoped embedding/classification cache
// settings.
type CacheConfig struct {
	Enabled         bool          `yaml:"enabled"`
	TTL             time.Duration `yaml:"ttl"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// EngineConfig holds streaming-accumulation settings.
type EngineConfig struct {
	QueueSize        int           `yaml:"queue_size"`        // ingestion queue capacity
	BatchInterval    time.Duration `yaml:"batch_interval"`    // debounce before reprocessing
	SynthesisWorkers int           `yaml:"synthesis_workers"` // concurrent LLM synthesis jobs
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// QuotaKey identifies one axis value for quota tracking, e.g. "stage:decision".
type QuotaKey string

// Quota builds the key for an axis value.
func Quota(a Axis, value string) QuotaKey {
	return QuotaKey(fmt.Sprintf("%s:%s", a, value))
}

// DistributionTargets configures the diversity enforcer. MaxShares and
// MinCounts are keyed by QuotaKey. DefaultMaxShare applies only to the axes
// listed in CapAxes; values on other axes are uncapped unless they carry an
// explicit MaxShares entry.
type DistributionTargets struct {
	DefaultMaxShare float64              `yaml:"default_max_share"` // cap on a single value's share
	CapAxes         []Axis               `yaml:"cap_axes"`          // axes DefaultMaxShare applies to
	MaxShares       map[QuotaKey]float64 `yaml:"max_shares"`
	MinCounts       map[QuotaKey]int     `yaml:"min_counts"`
	MaxInsights     int                  `yaml:"max_insights"` // 0 = unlimited
}

// MaxShareFor returns the share cap for an axis value. Zero means uncapped.
func (t DistributionTargets) MaxShareFor(a Axis, value string) float64 {
	if s, ok := t.MaxShares[Quota(a, value)]; ok {
		return s
	}
	for _, capped := range t.CapAxes {
		if capped == a {
			return t.DefaultMaxShare
		}
	}
	return 0
}

// MinCountFor returns the target minimum for an axis value.
func (t DistributionTargets) MinCountFor(a Axis, value string) int {
	return t.MinCounts[Quota(a, value)]
}

// DefaultConfig returns the standard configuration.
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:          "", // disabled by default; titles still synthesize locally
			Model:             "",
			TimeoutSec:        30,
			MaxTokens:         400,
			Retries:           1,
			RequestsPerSecond: 2,
			Burst:             4,
		},
		Embedding: EmbeddingConfig{
			Provider:     "local",
			Model:        "",
			ModelVersion: "v1",
			Dimensions:   256,
		},
		Cache: CacheConfig{
			Enabled:         true,
			TTL:             6 * time.Hour,
			CleanupInterval: 30 * time.Minute,
		},
		Engine: EngineConfig{
			QueueSize:        1024,
			BatchInterval:    250 * time.Millisecond,
			SynthesisWorkers: 4,
		},
		Diversity: DistributionTargets{
			DefaultMaxShare: 0.4,
			CapAxes:         []Axis{AxisStage, AxisEmotion},
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}
