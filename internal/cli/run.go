package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/ndomino/triggerforge/internal/engine"
	"github.com/ndomino/triggerforge/internal/model"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	inputPath   string
	profilePath string
	outJSON     string
	runTimeout  time.Duration
	synthDelay  time.Duration
	llmEnabled  bool
	llmProvider string
	llmModel    string
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Process a batch of scraped samples into insights",
	Long: `Run processes a JSON file of scraped text samples:
- Normalize and filter garbage, meta-commentary, and duplicates
- Classify sentiment and intent per sample
- Cluster correlated samples into themes across source types
- Synthesize titled, evidence-backed insights with confidence scores
- Enforce diversity quotas on the published set

The input file is a JSON array of samples:
  [{"text": "...", "source_type": "voc", "source_name": "G2", ...}, ...]

Example:
  triggerforge run --input samples.json
  triggerforge run --input samples.json --profile profile.yaml --json insights.json
  triggerforge run --input samples.json --llm --llm-provider openai --llm-model gpt-4o-mini`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	// Input/output flags
	runCmd.Flags().StringVar(&inputPath, "input", "", "input JSON file of raw samples (required)")
	runCmd.Flags().StringVar(&profilePath, "profile", "", "business profile YAML (competitors, industry, UVP)")
	runCmd.Flags().StringVar(&outJSON, "json", "insights.json", "output JSON path")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 10*time.Minute, "overall processing timeout")
	runCmd.Flags().DurationVar(&synthDelay, "batch-interval", 0, "override the engine batch debounce interval")
	_ = runCmd.MarkFlagRequired("input")

	// LLM flags
	runCmd.Flags().BoolVar(&llmEnabled, "llm", false, "enable LLM summary generation")
	runCmd.Flags().StringVar(&llmProvider, "llm-provider", "openai", "LLM provider (openai, anthropic, ollama)")
	runCmd.Flags().StringVar(&llmModel, "llm-model", "gpt-4o-mini", "LLM model name")
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	// Build configuration from flags
	cfg := model.DefaultConfig()
	if synthDelay > 0 {
		cfg.Engine.BatchInterval = synthDelay
	}

	// Configure LLM if enabled
	if llmEnabled {
		cfg.LLM.Provider = llmProvider
		cfg.LLM.Model = llmModel

		// Get API key from environment
		switch llmProvider {
		case "openai":
			cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
			if cfg.LLM.APIKey == "" {
				return fmt.Errorf("OPENAI_API_KEY environment variable not set")
			}
		case "anthropic", "claude":
			cfg.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
			if cfg.LLM.APIKey == "" {
				return fmt.Errorf("ANTHROPIC_API_KEY environment variable not set")
			}
		case "ollama":
			// Ollama doesn't need an API key
			baseURL := os.Getenv("OLLAMA_BASE_URL")
			if baseURL != "" {
				cfg.LLM.BaseURL = baseURL
			}
		}
	}

	profile, err := loadProfile(profilePath)
	if err != nil {
		return err
	}

	samples, err := loadSamples(inputPath)
	if err != nil {
		return err
	}
	if verbose {
		fmt.Fprintf(os.Stderr, "✓ Loaded %d samples from %s\n", len(samples), inputPath)
	}

	logger := newLogger(cfg.Logging.Level)
	defer func() { _ = logger.Sync() }()

	eng, err := engine.New(cfg, profile, engine.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}

	eng.Run(ctx)
	for _, in := range samples {
		if err := eng.Ingest(ctx, in); err != nil {
			eng.Close()
			return fmt.Errorf("ingest sample: %w", err)
		}
	}
	eng.Close()

	insights := eng.Insights()
	if verbose {
		fmt.Fprintf(os.Stderr, "✓ Published %d insights\n", len(insights))
		for _, ins := range insights {
			fmt.Fprintf(os.Stderr, "  [%.2f] %s\n", ins.Confidence, ins.Title)
		}
		fmt.Fprintln(os.Stderr)
	}

	if err := writeReport(outJSON, samples, insights); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	fmt.Fprintf(os.Stderr, "✓ Processed %d samples into %d insights (%s)\n", len(samples), len(insights), outJSON)
	return nil
}

// report is the run command's output document.
type report struct {
	GeneratedAt time.Time       `json:"generated_at"`
	SampleCount int             `json:"sample_count"`
	Insights    []model.Insight `json:"insights"`
}

func loadSamples(path string) ([]model.RawSampleInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read input file: %w", err)
	}

	var samples []model.RawSampleInput
	if err := json.Unmarshal(data, &samples); err != nil {
		return nil, fmt.Errorf("parse input file: %w", err)
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("input file contains no samples")
	}
	return samples, nil
}

func loadProfile(path string) (model.BusinessProfile, error) {
	var profile model.BusinessProfile
	if path == "" {
		return profile, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return profile, fmt.Errorf("read profile: %w", err)
	}
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return profile, fmt.Errorf("parse profile: %w", err)
	}
	return profile, nil
}

func writeReport(path string, samples []model.RawSampleInput, insights []model.Insight) error {
	doc := report{
		GeneratedAt: time.Now().UTC(),
		SampleCount: len(samples),
		Insights:    insights,
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}
