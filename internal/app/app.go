// Package app wires configuration into adapters and services. Both the API
// server and the CLI build their object graph here.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ewilliams-labs/vibereco/internal/adapters/genius"
	"github.com/ewilliams-labs/vibereco/internal/adapters/jsonfile"
	"github.com/ewilliams-labs/vibereco/internal/adapters/lrclib"
	"github.com/ewilliams-labs/vibereco/internal/adapters/ollama"
	"github.com/ewilliams-labs/vibereco/internal/adapters/openai"
	"github.com/ewilliams-labs/vibereco/internal/adapters/qdrant"
	"github.com/ewilliams-labs/vibereco/internal/adapters/redis"
	"github.com/ewilliams-labs/vibereco/internal/adapters/spotify"
	"github.com/ewilliams-labs/vibereco/internal/adapters/sqlite"
	"github.com/ewilliams-labs/vibereco/internal/config"
	"github.com/ewilliams-labs/vibereco/internal/core/ports"
	"github.com/ewilliams-labs/vibereco/internal/core/services"
	"github.com/ewilliams-labs/vibereco/internal/index"
	"github.com/ewilliams-labs/vibereco/internal/logging"
)

// Options tune what New builds.
type Options struct {
	// Progress receives orchestrator progress lines. nil prints to stdout.
	Progress func(string)
	// Live requires catalog credentials; offline commands leave it false.
	Live bool
}

// App holds the wired services.
type App struct {
	Config       *config.Config
	Orchestrator *services.Orchestrator
	ABTests      *services.ABTestManager
	Catalog      *services.CatalogService
	Pairs        *services.PairGenerator

	closers []func() error
}

// New connects every configured backend. Call Close when done.
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	if opts.Live {
		if err := cfg.RequireCatalogCredentials(); err != nil {
			return nil, err
		}
	}

	a := &App{Config: cfg}
	wired := false
	defer func() {
		if !wired {
			_ = a.Close()
		}
	}()

	catalog := spotify.NewAuthenticatedClient(ctx, spotify.Credentials{
		ClientID:     cfg.Catalog.ClientID,
		ClientSecret: cfg.Catalog.ClientSecret,
		TokenURL:     cfg.Catalog.TokenURL,
		Timeout:      cfg.Catalog.Timeout,
	}, cfg.Catalog.BaseURL,
		spotify.WithMarket(cfg.Catalog.Market),
		spotify.WithRetry(cfg.Catalog.MaxRetries, cfg.Catalog.Backoff),
	)

	lyricsHTTP := &http.Client{Timeout: cfg.Lyrics.Timeout}
	lyrics := services.NewLyricsFetcher(
		genius.NewClient(lyricsHTTP, cfg.Lyrics.GeniusBaseURL, cfg.Lyrics.GeniusToken),
		lrclib.NewClient(lyricsHTTP, cfg.Lyrics.LRCLibBaseURL),
		cfg.Lyrics.Pause,
	)

	analyzer := newAnalyzer(cfg.LLM)
	embedder := newEmbedder(cfg.Embedding)

	store, err := sqlite.NewAdapter(cfg.Store.SQLitePath)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, store.Close)

	votes, err := a.newVoteStore(ctx, cfg.Votes)
	if err != nil {
		return nil, err
	}

	orchOpts := []services.OrchestratorOption{
		services.WithProgress(opts.Progress),
		services.WithNeighbors(cfg.Pipeline.Neighbors),
		services.WithTrackStore(store),
	}
	if cfg.Pipeline.ArtifactsDir != "" {
		orchOpts = append(orchOpts, services.WithArtifacts(jsonfile.NewArtifactWriter(cfg.Pipeline.ArtifactsDir)))
	}
	// Per-run indexes hold a few dozen vectors; they always stay in memory.
	a.Orchestrator = services.NewOrchestrator(
		catalog,
		lyrics,
		services.NewProfiler(analyzer),
		services.NewEmbedStage(embedder),
		index.FlatBuilder{},
		orchOpts...,
	)

	catalogBuilder, catalogOpts, err := a.newCatalogIndex(cfg.Store)
	if err != nil {
		return nil, err
	}
	a.Catalog = services.NewCatalogService(store, catalogBuilder, cfg.Store.SnapshotPath, catalogOpts...)
	a.ABTests = services.NewABTestManager(votes)
	a.Pairs = services.NewPairGenerator(a.Orchestrator, jsonfile.NewPairsStore(cfg.Pipeline.PairsPath))

	logging.Info().
		Str("llm", cfg.LLM.Provider).
		Str("embedding", cfg.Embedding.Provider).
		Str("votes", cfg.Votes.Driver).
		Str("index", cfg.Store.IndexBackend).
		Msg("application wired")
	wired = true
	return a, nil
}

// Close releases every backend connection.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

func newAnalyzer(cfg config.LLMConfig) ports.ProfileAnalyzer {
	if cfg.Provider == "ollama" {
		return ollama.NewClient(cfg.BaseURL, ollama.WithChatModel(cfg.Model), ollama.WithTimeout(cfg.Timeout))
	}
	return openai.NewProfiler(&http.Client{Timeout: cfg.Timeout}, cfg.BaseURL, cfg.APIKey, cfg.Model, cfg.Provider)
}

func newEmbedder(cfg config.EmbeddingConfig) ports.Embedder {
	if cfg.Provider == "ollama" {
		return ollama.NewClient(cfg.BaseURL, ollama.WithEmbedModel(cfg.Model), ollama.WithTimeout(cfg.Timeout))
	}
	return openai.NewEmbedder(&http.Client{Timeout: cfg.Timeout}, cfg.BaseURL, cfg.APIKey, cfg.Model)
}

func (a *App) newVoteStore(ctx context.Context, cfg config.VotesConfig) (ports.VoteRepository, error) {
	switch cfg.Driver {
	case "redis":
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		store, err := redis.Open(pingCtx, redis.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Key:      cfg.RedisKey,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, store.Close)
		return store, nil
	case "json", "":
		return jsonfile.NewVoteStore(cfg.Path), nil
	default:
		return nil, fmt.Errorf("app: unknown votes driver %q", cfg.Driver)
	}
}

func (a *App) newCatalogIndex(cfg config.StoreConfig) (ports.IndexBuilder, []services.CatalogOption, error) {
	switch cfg.IndexBackend {
	case "qdrant":
		b, err := qdrant.NewBuilder(qdrant.Config{
			Host:       cfg.QdrantHost,
			Port:       cfg.QdrantPort,
			APIKey:     cfg.QdrantAPIKey,
			Collection: cfg.QdrantCollection,
		})
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, b.Close)
		return b, nil, nil
	case "flat", "":
		return index.FlatBuilder{}, []services.CatalogOption{services.WithSnapshotLoader(LoadFlatSnapshot)}, nil
	default:
		return nil, nil, fmt.Errorf("app: unknown index backend %q", cfg.IndexBackend)
	}
}

// LoadFlatSnapshot reads a flat index snapshot written by the catalog service.
func LoadFlatSnapshot(path string) (ports.VectorIndex, error) {
	f, err := index.LoadFile(path)
	if err != nil {
		return nil, err
	}
	return f, nil
}
