package factory

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/echovault/echovault/internal/analyzer"
	"github.com/echovault/echovault/internal/config"
	"github.com/echovault/echovault/internal/embeddings"
	"github.com/echovault/echovault/internal/embeddings/ollama"
)

// NewEmbeddingProvider creates an embedding provider based on config.
// Launches optional async warmup; returns provider immediately for fast startup.
func NewEmbeddingProvider(ctx context.Context, cfg *config.Config, log zerolog.Logger) embeddings.Provider {
	var provider embeddings.Provider
	switch cfg.EmbedProvider {
	case "hashing":
		return embeddings.NewHashing(0)
	default:
		provider = ollama.New(cfg.OllamaURL, cfg.EmbedModel)
	}

	// Optional async warmup; don't block startup
	go func() {
		warmupCtx, cancel := context.WithTimeout(ctx, cfg.AnalyzerTimeout())
		defer cancel()
		if vec, err := provider.Embed(warmupCtx, "factory warmup check"); err != nil || len(vec) == 0 {
			log.Warn().Err(err).Int("vec_len", len(vec)).
				Str("provider", cfg.EmbedProvider).Str("model", cfg.EmbedModel).
				Msg("embedding provider warmup failed")
		} else {
			log.Debug().Str("provider", cfg.EmbedProvider).Str("model", cfg.EmbedModel).
				Msg("embedding provider warmup completed")
		}
	}()
	return provider
}

// NewAnalyzer returns the text analyzer selected by LLM_PROVIDER, bounded by
// ANALYZER_TIMEOUT_SECONDS.
func NewAnalyzer(ctx context.Context, cfg *config.Config, log zerolog.Logger) (analyzer.TextAnalyzer, error) {
	var a analyzer.TextAnalyzer
	switch cfg.LLMProvider {
	case "heuristic", "":
		a = analyzer.NewHeuristicAnalyzer()
	default:
		llm, err := analyzer.NewFantasyCompleter(ctx, analyzer.FantasyConfig{
			Provider: cfg.LLMProvider,
			APIKey:   cfg.LLMAPIKey,
			BaseURL:  cfg.LLMBaseURL,
			Model:    cfg.LLMModel,
		})
		if err != nil {
			return nil, errors.Wrapf(err, "llm provider %s", cfg.LLMProvider)
		}
		a = analyzer.NewLLMAnalyzer(llm, log)
	}
	return analyzer.WithTimeout(a, cfg.AnalyzerTimeout()), nil
}

// NewTranscriber returns nil when no transcription key is configured.
func NewTranscriber(cfg *config.Config) analyzer.Transcriber {
	if cfg.TranscribeAPIKey == "" {
		return nil
	}
	return analyzer.NewWhisperTranscriber(cfg.TranscribeURL, cfg.TranscribeAPIKey, cfg.TranscribeModel)
}

// BoundedEmbedder applies ANALYZER_TIMEOUT_SECONDS to every Embed call.
func BoundedEmbedder(p embeddings.Provider, cfg *config.Config) embeddings.Provider {
	return analyzer.EmbedderWithTimeout(p, cfg.AnalyzerTimeout())
}
