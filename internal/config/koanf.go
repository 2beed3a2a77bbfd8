package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// Load reads .env (if present) and then layers defaults, the YAML file and
// environment variables. Environment variables win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}
	return load(findConfigFile())
}

func load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("config: load defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: load %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("config: load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// envMappings maps environment variable names (lower-cased) to koanf paths.
// Variables not listed here are ignored.
var envMappings = map[string]string{
	"spotify_client_id":     "catalog.client_id",
	"spotify_client_secret": "catalog.client_secret",
	"spotify_base_url":      "catalog.base_url",
	"spotify_token_url":     "catalog.token_url",
	"spotify_market":        "catalog.market",
	"spotify_max_retries":   "catalog.max_retries",
	"spotify_retry_backoff": "catalog.backoff",

	"token_genius":    "lyrics.genius_token",
	"genius_base_url": "lyrics.genius_base_url",
	"lrclib_base_url": "lyrics.lrclib_base_url",
	"lyrics_pause":    "lyrics.pause",

	"openrouter_api_key": "llm.api_key",
	"llm_provider":       "llm.provider",
	"llm_base_url":       "llm.base_url",
	"llm_model":          "llm.model",

	"openai_api_key":     "embedding.api_key",
	"embedding_provider": "embedding.provider",
	"embedding_base_url": "embedding.base_url",
	"embedding_model":    "embedding.model",

	"vibereco_limit":         "pipeline.limit",
	"vibereco_neighbors":     "pipeline.neighbors",
	"vibereco_artifacts_dir": "pipeline.artifacts_dir",
	"vibereco_pairs_path":    "pipeline.pairs_path",

	"vibereco_votes_driver": "votes.driver",
	"vibereco_votes_path":   "votes.path",
	"redis_addr":            "votes.redis_addr",
	"redis_password":        "votes.redis_password",
	"redis_db":              "votes.redis_db",
	"vibereco_votes_key":    "votes.redis_key",

	"vibereco_sqlite_path":   "store.sqlite_path",
	"vibereco_snapshot_path": "store.snapshot_path",
	"vibereco_index_backend": "store.index_backend",
	"qdrant_host":            "store.qdrant_host",
	"qdrant_port":            "store.qdrant_port",
	"qdrant_api_key":         "store.qdrant_api_key",
	"qdrant_collection":      "store.qdrant_collection",

	"http_addr":        "server.addr",
	"vibereco_workers": "server.workers",
	"vibereco_queue":   "server.queue_size",

	"log_level":  "logging.level",
	"log_format": "logging.format",
}

func envTransformFunc(key string) string {
	if path, ok := envMappings[strings.ToLower(key)]; ok {
		return path
	}
	return ""
}
