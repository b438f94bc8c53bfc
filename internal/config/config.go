package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"cdr3q/internal/genomic"
	"cdr3q/internal/qerr"
	"cdr3q/internal/qmodel"
)

// Config is the application's configuration model.
type Config struct {
	Model    ModelConfig    `yaml:"model"`
	Sampling SamplingConfig `yaml:"sampling"`
	Oracle   OracleConfig   `yaml:"oracle"`
	Genomic  GenomicConfig  `yaml:"genomic"`
	Storage  StorageConfig  `yaml:"storage"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

type ModelConfig struct {
	ChainType string `yaml:"chainType"`
	// Zero bounds are derived from the sequence sets
	MinL         int    `yaml:"minL"`
	MaxL         int    `yaml:"maxL"`
	IncludeGenes bool   `yaml:"includeGenes"`
	Alphabet     string `yaml:"alphabet"`
	// Pseudocount for the independent-site parameter seed
	Pseudocount float64 `yaml:"pseudocount"`
}

type SamplingConfig struct {
	UpperBound float64 `yaml:"upperBound"`
	Seed       int64   `yaml:"seed"` // 0 seeds from the clock
}

type OracleConfig struct {
	// Base URL of the pgen service. If empty, read from env CDR3Q_ORACLE_URL
	URL           string  `yaml:"url"`
	Workers       int     `yaml:"workers"` // 0 uses all CPUs
	RPS           float64 `yaml:"rps"`
	Burst         int     `yaml:"burst"`
	MaxAttempts   int     `yaml:"maxAttempts"`
	BaseBackoffMs int     `yaml:"baseBackoffMs"`
	TimeoutSec    int     `yaml:"timeoutSec"`
}

type GenomicConfig struct {
	// Directory holding <chain>/V_gene_CDR3_anchors.csv and J_gene_CDR3_anchors.csv
	Dir string `yaml:"dir"`
}

type StorageConfig struct {
	DBPath    string `yaml:"dbPath"`
	CacheSize int    `yaml:"cacheSize"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"` // empty disables the endpoint
}

// Default returns a sensible default configuration.
func Default() Config {
	return Config{
		Model:    ModelConfig{ChainType: "humanTRB", Pseudocount: 1e-4},
		Sampling: SamplingConfig{UpperBound: qmodel.DefaultUpperBound},
		Oracle: OracleConfig{
			URL:           "http://localhost:8080",
			RPS:           20,
			Burst:         40,
			MaxAttempts:   5,
			BaseBackoffMs: 500,
			TimeoutSec:    15,
		},
		Genomic: GenomicConfig{Dir: "./genomic"},
		Storage: StorageConfig{DBPath: "./cdr3q.db", CacheSize: 100000},
	}
}

// ResolveEnv fills in config fields from environment variables if set.
func (c *Config) ResolveEnv() {
	if v := os.Getenv("CDR3Q_ORACLE_URL"); v != "" {
		c.Oracle.URL = v
	}
	if v := os.Getenv("CDR3Q_METRICS_ADDR"); v != "" {
		c.Metrics.Addr = v
	}
	if v := os.Getenv("CDR3Q_DB_PATH"); v != "" {
		c.Storage.DBPath = v
	}
}

// Validate reports the first setting the model cannot run with.
func (c Config) Validate() error {
	if err := genomic.CheckChain(c.Model.ChainType); err != nil {
		return err
	}
	if c.Model.MinL < 0 || c.Model.MaxL < 0 {
		return fmt.Errorf("%w: negative length bound", qerr.ErrConfiguration)
	}
	if c.Model.MinL > 0 && c.Model.MaxL > 0 && c.Model.MinL > c.Model.MaxL {
		return fmt.Errorf("%w: minL %d exceeds maxL %d", qerr.ErrConfiguration, c.Model.MinL, c.Model.MaxL)
	}
	if c.Model.Pseudocount < 0 || math.IsNaN(c.Model.Pseudocount) {
		return fmt.Errorf("%w: pseudocount must be non-negative", qerr.ErrConfiguration)
	}
	if err := qmodel.CheckUpperBound(c.Sampling.UpperBound); err != nil {
		return err
	}
	if c.Oracle.Workers < 0 {
		return fmt.Errorf("%w: negative worker count", qerr.ErrConfiguration)
	}
	return nil
}

// Load reads YAML config from path. Fields missing from the file keep their
// defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, err
	}
	cfg.ResolveEnv()
	return cfg, nil
}

// Save writes YAML config to path, creating directories as needed.
func Save(path string, cfg Config) error {
	if path == "" {
		return errors.New("empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
