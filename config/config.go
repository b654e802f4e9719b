// Package config loads and validates this service's configuration, in the
// same fail-fast style the rest of this codebase's lineage uses: every
// required field must be set or Load refuses to start the process. The API
// keys and reasoning_effort_models are optional, and the API keys and the
// database URL may come from the environment instead of the JSON file.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// Config is the full set of knobs this service needs to run.
type Config struct {
	ListenAddr string `json:"listen_addr"`

	AppDir string `json:"app_dir"`

	DatabaseURL string `json:"database_url"`

	VisionModel   string `json:"vision_model"`
	VisionBaseURL string `json:"vision_base_url"`
	VisionAPIKey  string `json:"vision_api_key,omitempty"`
	VisionTimeoutSec int `json:"vision_timeout_sec"`

	QAModels         []string `json:"qa_models"`
	QAPromptFragments []string `json:"qa_prompt_fragments"`
	QARepeats        int      `json:"qa_repeats"`
	QABaseURL        string   `json:"qa_base_url"`
	QAAPIKey         string   `json:"qa_api_key,omitempty"`
	// ReasoningEffortModels maps a model id to the reasoning_effort value
	// to send for it; models absent from this map get none.
	ReasoningEffortModels map[string]string `json:"reasoning_effort_models,omitempty"`

	FramesPerChunk       int `json:"frames_per_chunk"`
	ContextWindowSize    int `json:"context_window_size"`
	ConversationTurnLimit int `json:"conversation_turn_limit"`
	BatchesBeforeGenerate int `json:"batches_before_generate"`

	BatchSize int `json:"batch_size"`

	TrainerURL        string `json:"trainer_url"`
	TrainerTimeoutSec int    `json:"trainer_timeout_sec"`

	TrainerLogPath string `json:"trainer_log_path"`

	// ServingURL is the currently-trained adapter's OpenAI-compatible
	// completions endpoint (e.g. a vLLM server's /v1/completions), used by
	// the Ingress API's /infer proxy.
	ServingURL        string `json:"serving_url"`
	ServingModel      string `json:"serving_model"`
	ServingTimeoutSec int    `json:"serving_timeout_sec"`
}

// Path returns the default config file path: a local file first, then a
// file under the user's home directory.
func Path() (string, error) {
	const localName = "ctrain.config.json"
	if _, err := os.Stat(localName); err == nil {
		return localName, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".ctrain", "ctrain.config.json"), nil
}

// Load reads, overlays .env secrets onto, and validates the configuration
// at path (or the default path if empty).
func Load(path string) (*Config, error) {
	// Overlay any local .env before reading the JSON file, so secrets
	// (API keys, database URL) can live outside the committed config.
	_ = godotenv.Load()

	if path == "" {
		var err error
		path, err = Path()
		if err != nil {
			return nil, fmt.Errorf("get config path: %w", err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}

	overlayEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config in %s: %w", path, err)
	}

	return &cfg, nil
}

// overlayEnv lets secrets set in the environment (or a .env file) fill in
// API keys and the database URL without putting them in the JSON file.
func overlayEnv(cfg *Config) {
	if v := os.Getenv("CTRAIN_VISION_API_KEY"); v != "" {
		cfg.VisionAPIKey = v
	}
	if v := os.Getenv("CTRAIN_QA_API_KEY"); v != "" {
		cfg.QAAPIKey = v
	}
	if v := os.Getenv("CTRAIN_DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
}

// Validate checks that every required field is present and sane.
func (c *Config) Validate() error {
	var missing []string

	if c.ListenAddr == "" {
		missing = append(missing, "listen_addr")
	}
	if c.AppDir == "" {
		missing = append(missing, "app_dir")
	}
	if c.DatabaseURL == "" {
		missing = append(missing, "database_url")
	}
	if c.VisionModel == "" {
		missing = append(missing, "vision_model")
	}
	if c.VisionBaseURL == "" {
		missing = append(missing, "vision_base_url")
	}
	if c.VisionTimeoutSec <= 0 {
		missing = append(missing, "vision_timeout_sec")
	}
	if len(c.QAModels) == 0 {
		missing = append(missing, "qa_models")
	}
	if len(c.QAPromptFragments) == 0 {
		missing = append(missing, "qa_prompt_fragments")
	}
	if c.QARepeats <= 0 {
		missing = append(missing, "qa_repeats")
	}
	if c.QABaseURL == "" {
		missing = append(missing, "qa_base_url")
	}
	if c.FramesPerChunk <= 0 {
		missing = append(missing, "frames_per_chunk")
	}
	if c.ContextWindowSize <= 0 {
		missing = append(missing, "context_window_size")
	}
	if c.ConversationTurnLimit <= 0 {
		missing = append(missing, "conversation_turn_limit")
	}
	if c.BatchesBeforeGenerate <= 0 {
		missing = append(missing, "batches_before_generate")
	}
	if c.BatchSize <= 0 {
		missing = append(missing, "batch_size")
	}
	if c.TrainerURL == "" {
		missing = append(missing, "trainer_url")
	}
	if c.TrainerTimeoutSec <= 0 {
		missing = append(missing, "trainer_timeout_sec")
	}
	if c.TrainerLogPath == "" {
		missing = append(missing, "trainer_log_path")
	}
	if c.ServingURL == "" {
		missing = append(missing, "serving_url")
	}
	if c.ServingModel == "" {
		missing = append(missing, "serving_model")
	}
	if c.ServingTimeoutSec <= 0 {
		missing = append(missing, "serving_timeout_sec")
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required fields: %v", missing)
	}

	if _, _, err := net.SplitHostPort(c.ListenAddr); err != nil {
		return errors.New("listen_addr must be in format ':port' or 'host:port'")
	}

	return nil
}

// StoreDir returns the directory the Example Store and its carved batch
// files live under.
func (c *Config) StoreDir() string {
	return filepath.Join(c.AppDir, "store")
}

// StorePath returns the path to the append-only example log file.
func (c *Config) StorePath() string {
	return filepath.Join(c.StoreDir(), "examples.jsonl")
}
