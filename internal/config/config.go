// Package config loads runtime settings for the API server and the CLI.
//
// Settings are layered with koanf: built-in defaults, then an optional YAML
// file, then environment variables. A .env file in the working directory is
// loaded into the environment first when present.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// ConfigPathEnvVar names the environment variable that points at a YAML file.
const ConfigPathEnvVar = "CONFIG_PATH"

// DefaultConfigPaths are searched in order when CONFIG_PATH is unset.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/vibereco/config.yaml",
}

// Config is the root configuration.
type Config struct {
	Catalog   CatalogConfig   `koanf:"catalog"`
	Lyrics    LyricsConfig    `koanf:"lyrics"`
	LLM       LLMConfig       `koanf:"llm"`
	Embedding EmbeddingConfig `koanf:"embedding"`
	Pipeline  PipelineConfig  `koanf:"pipeline"`
	Votes     VotesConfig     `koanf:"votes"`
	Store     StoreConfig     `koanf:"store"`
	Server    ServerConfig    `koanf:"server"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// CatalogConfig configures the Spotify search and recommendations client.
type CatalogConfig struct {
	BaseURL      string        `koanf:"base_url" validate:"required,url"`
	TokenURL     string        `koanf:"token_url" validate:"required,url"`
	ClientID     string        `koanf:"client_id"`
	ClientSecret string        `koanf:"client_secret"`
	Market       string        `koanf:"market" validate:"omitempty,len=2"`
	MaxRetries   int           `koanf:"max_retries" validate:"min=1,max=10"`
	Backoff      time.Duration `koanf:"backoff"`
	Timeout      time.Duration `koanf:"timeout"`
}

// LyricsConfig configures the primary (Genius) and secondary (LRCLIB) providers.
type LyricsConfig struct {
	GeniusBaseURL string        `koanf:"genius_base_url" validate:"required,url"`
	GeniusToken   string        `koanf:"genius_token"`
	LRCLibBaseURL string        `koanf:"lrclib_base_url" validate:"required,url"`
	Pause         time.Duration `koanf:"pause"`
	Timeout       time.Duration `koanf:"timeout"`
}

// LLMConfig selects and configures the profiler backend.
type LLMConfig struct {
	Provider string        `koanf:"provider" validate:"oneof=openrouter openai ollama"`
	BaseURL  string        `koanf:"base_url" validate:"required,url"`
	APIKey   string        `koanf:"api_key"`
	Model    string        `koanf:"model" validate:"required"`
	Timeout  time.Duration `koanf:"timeout"`
}

// EmbeddingConfig selects and configures the embedding backend.
type EmbeddingConfig struct {
	Provider string        `koanf:"provider" validate:"oneof=openai ollama"`
	BaseURL  string        `koanf:"base_url" validate:"required,url"`
	APIKey   string        `koanf:"api_key"`
	Model    string        `koanf:"model" validate:"required"`
	Timeout  time.Duration `koanf:"timeout"`
}

// PipelineConfig holds per-run tunables.
type PipelineConfig struct {
	Limit        int    `koanf:"limit" validate:"min=2,max=100"`
	Neighbors    int    `koanf:"neighbors" validate:"min=1"`
	ArtifactsDir string `koanf:"artifacts_dir"`
	PairsPath    string `koanf:"pairs_path"`
}

// VotesConfig selects where A/B votes are appended.
type VotesConfig struct {
	Driver        string `koanf:"driver" validate:"oneof=json redis"`
	Path          string `koanf:"path"`
	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db" validate:"min=0"`
	RedisKey      string `koanf:"redis_key"`
}

// StoreConfig configures the static catalog: the SQLite track store, the
// flat index snapshot and the optional Qdrant backend.
type StoreConfig struct {
	SQLitePath       string `koanf:"sqlite_path" validate:"required"`
	SnapshotPath     string `koanf:"snapshot_path" validate:"required"`
	IndexBackend     string `koanf:"index_backend" validate:"oneof=flat qdrant"`
	QdrantHost       string `koanf:"qdrant_host"`
	QdrantPort       int    `koanf:"qdrant_port" validate:"min=0,max=65535"`
	QdrantAPIKey     string `koanf:"qdrant_api_key"`
	QdrantCollection string `koanf:"qdrant_collection"`
}

// ServerConfig configures the HTTP API and its run queue.
type ServerConfig struct {
	Addr            string        `koanf:"addr" validate:"required"`
	Workers         int           `koanf:"workers" validate:"min=1,max=16"`
	QueueSize       int           `koanf:"queue_size" validate:"min=1"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
}

func defaultConfig() *Config {
	return &Config{
		Catalog: CatalogConfig{
			BaseURL:    "https://api.spotify.com/v1",
			TokenURL:   "https://accounts.spotify.com/api/token",
			Market:     "US",
			MaxRetries: 1,
			Backoff:    500 * time.Millisecond,
			Timeout:    15 * time.Second,
		},
		Lyrics: LyricsConfig{
			GeniusBaseURL: "https://api.genius.com",
			LRCLibBaseURL: "https://lrclib.net",
			Pause:         time.Second,
			Timeout:       15 * time.Second,
		},
		LLM: LLMConfig{
			Provider: "openrouter",
			BaseURL:  "https://openrouter.ai/api/v1",
			Model:    "tngtech/deepseek-r1t2-chimera:free",
			Timeout:  90 * time.Second,
		},
		Embedding: EmbeddingConfig{
			Provider: "openai",
			BaseURL:  "https://api.openai.com/v1",
			Model:    "text-embedding-3-small",
			Timeout:  30 * time.Second,
		},
		Pipeline: PipelineConfig{
			Limit:        10,
			Neighbors:    5,
			ArtifactsDir: "data",
			PairsPath:    "data/playlist_pairs.json",
		},
		Votes: VotesConfig{
			Driver:    "json",
			Path:      "data/ab_test_results.json",
			RedisAddr: "localhost:6379",
			RedisKey:  "vibereco:votes",
		},
		Store: StoreConfig{
			SQLitePath:       "data/catalog.db",
			SnapshotPath:     "data/vibe_index.bin",
			IndexBackend:     "flat",
			QdrantHost:       "localhost",
			QdrantPort:       6334,
			QdrantCollection: "vibereco_tracks",
		},
		Server: ServerConfig{
			Addr:            ":8080",
			Workers:         1,
			QueueSize:       32,
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

var validate = validator.New()

// Validate checks struct tags and the cross-field rules the tags cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Votes.Driver == "json" && strings.TrimSpace(c.Votes.Path) == "" {
		return fmt.Errorf("config: votes.path is required for the json driver")
	}
	if c.Votes.Driver == "redis" && (c.Votes.RedisAddr == "" || c.Votes.RedisKey == "") {
		return fmt.Errorf("config: votes.redis_addr and votes.redis_key are required for the redis driver")
	}
	if c.Store.IndexBackend == "qdrant" && (c.Store.QdrantHost == "" || c.Store.QdrantCollection == "") {
		return fmt.Errorf("config: store.qdrant_host and store.qdrant_collection are required for the qdrant backend")
	}
	return nil
}

// RequireCatalogCredentials reports whether the Spotify client credentials are set.
// Only commands that reach the live catalog call it.
func (c *Config) RequireCatalogCredentials() error {
	if c.Catalog.ClientID == "" || c.Catalog.ClientSecret == "" {
		return fmt.Errorf("config: SPOTIFY_CLIENT_ID and SPOTIFY_CLIENT_SECRET are required")
	}
	return nil
}
