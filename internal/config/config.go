package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// EnvLedgerKey overrides the ledger project credential from the
// environment (or a .env file) so the secret can stay out of config.yaml.
const EnvLedgerKey = "VERIFRAME_LEDGER_KEY"

// Config holds all configuration loaded from config.yaml.
type Config struct {
	HTTPAddr              string         `yaml:"http_addr"`
	DBPath                string         `yaml:"db_path"`
	UploadsDir            string         `yaml:"uploads_dir"`
	ComparisonsDir        string         `yaml:"comparisons_dir"`
	ArtifactRetentionDays int            `yaml:"artifact_retention_days"`
	PurgeSchedule         string         `yaml:"purge_schedule"`
	LogLevel              string         `yaml:"log_level"`
	Ledger                LedgerConfig   `yaml:"ledger"`
	Pipeline              PipelineConfig `yaml:"pipeline"`
}

// LedgerConfig points at the ledger metadata service.
type LedgerConfig struct {
	BaseURL   string `yaml:"base_url"`
	ProjectID string `yaml:"project_id"`
	// FallbackWallet is scanned when a request declares no wallet. It is a
	// plain configuration placeholder, not a notarization authority — there
	// is deliberately no baked-in default address.
	FallbackWallet string `yaml:"fallback_wallet"`
}

// PipelineConfig holds the fingerprint/diff parameters. These are shared
// between notarization time and verification time; changing them
// invalidates every previously notarized hash.
type PipelineConfig struct {
	PaletteSize   int `yaml:"palette_size"`
	FrameWidth    int `yaml:"frame_width"`
	FrameHeight   int `yaml:"frame_height"`
	DiffThreshold int `yaml:"diff_threshold"`
	DiffMinArea   int `yaml:"diff_min_area"`
}

// applyDefaults fills zero/empty fields with sensible defaults.
func (c *Config) applyDefaults() {
	if c.HTTPAddr == "" {
		c.HTTPAddr = ":8080"
	}
	if c.DBPath == "" {
		c.DBPath = "/data/veriframe.db"
	}
	if c.UploadsDir == "" {
		c.UploadsDir = "/data/uploads"
	}
	if c.ComparisonsDir == "" {
		c.ComparisonsDir = "/data/comparisons"
	}
	if c.ArtifactRetentionDays == 0 {
		c.ArtifactRetentionDays = 7
	}
	if c.PurgeSchedule == "" {
		c.PurgeSchedule = "0 3 * * *"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Ledger.BaseURL == "" {
		c.Ledger.BaseURL = "https://cardano-mainnet.blockfrost.io/api/v0"
	}
	if c.Pipeline.PaletteSize == 0 {
		c.Pipeline.PaletteSize = 8
	}
	if c.Pipeline.FrameWidth == 0 {
		c.Pipeline.FrameWidth = 640
	}
	if c.Pipeline.FrameHeight == 0 {
		c.Pipeline.FrameHeight = 480
	}
	if c.Pipeline.DiffThreshold == 0 {
		c.Pipeline.DiffThreshold = 30
	}
	if c.Pipeline.DiffMinArea == 0 {
		c.Pipeline.DiffMinArea = 50
	}
}

// Load reads and parses the YAML config file at path, then overlays
// environment overrides. If the file does not exist, Load returns a
// default Config so the server can start without a mounted config file.
func Load(path string) (*Config, error) {
	var cfg Config

	f, err := os.Open(path)
	switch {
	case os.IsNotExist(err):
		// defaults only
	case err != nil:
		return nil, fmt.Errorf("open config %q: %w", path, err)
	default:
		defer f.Close()
		dec := yaml.NewDecoder(f)
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("parse config %q: %w", path, err)
		}
	}

	if key := os.Getenv(EnvLedgerKey); key != "" {
		cfg.Ledger.ProjectID = key
	}
	cfg.applyDefaults()
	return &cfg, nil
}
