package config

import (
	"os"
	"testing"
	"time"
)

func TestConfigLoad_EmbedDefaults(t *testing.T) {
	_ = os.Unsetenv("ECHOVAULT_EMBED_PROVIDER")
	_ = os.Unsetenv("ECHOVAULT_EMBED_MODEL")

	cfg, err := New()
	if err != nil {
		t.Fatalf("config load: %v", err)
	}
	if cfg.EmbedProvider != "ollama" || cfg.EmbedModel != "nomic-embed-text" {
		t.Fatalf("unexpected default embed config: %+v", cfg)
	}
}

func TestConfigLoad_EmbedEnvOverride(t *testing.T) {
	t.Setenv("ECHOVAULT_EMBED_MODEL", "test-model")

	cfg, err := New()
	if err != nil {
		t.Fatalf("config load: %v", err)
	}
	if cfg.EmbedModel != "test-model" {
		t.Fatalf("embed model env override failed, got %s", cfg.EmbedModel)
	}
}

func TestConfigLoad_PipelineDefaults(t *testing.T) {
	cfg, err := New()
	if err != nil {
		t.Fatalf("config load: %v", err)
	}
	if cfg.RelevanceThreshold != 0.3 || cfg.RelevanceTopK != 10 {
		t.Fatalf("unexpected relevance defaults: %v %d", cfg.RelevanceThreshold, cfg.RelevanceTopK)
	}
	if cfg.BackfillCap != 5 {
		t.Fatalf("unexpected backfill cap: %d", cfg.BackfillCap)
	}
	if cfg.AnalyzerTimeout() != 30*time.Second {
		t.Fatalf("unexpected analyzer timeout: %v", cfg.AnalyzerTimeout())
	}
}

func TestConfigLoad_RejectsBadMoodThreshold(t *testing.T) {
	t.Setenv("ECHOVAULT_LOW_MOOD_THRESHOLD", "1.5")

	if _, err := New(); err == nil {
		t.Fatalf("expected error for mood threshold outside [0,1]")
	}
}

func TestConfigLoad_RejectsUnknownLLMProvider(t *testing.T) {
	t.Setenv("ECHOVAULT_LLM_PROVIDER", "carrier-pigeon")

	if _, err := New(); err == nil {
		t.Fatalf("expected error for unknown llm provider")
	}
}

func TestConfigLoad_RelevanceBounds(t *testing.T) {
	t.Setenv("ECHOVAULT_RELEVANCE_THRESHOLD", "0")
	cfg, err := New()
	if err != nil {
		t.Fatalf("zero threshold rejected: %v", err)
	}
	if cfg.RelevanceThreshold != 0 {
		t.Fatalf("zero threshold not kept: %v", cfg.RelevanceThreshold)
	}

	t.Setenv("ECHOVAULT_RELEVANCE_THRESHOLD", "-0.2")
	if _, err := New(); err == nil {
		t.Fatalf("expected error for negative relevance threshold")
	}

	t.Setenv("ECHOVAULT_RELEVANCE_THRESHOLD", "0.3")
	t.Setenv("ECHOVAULT_RELEVANCE_TOP_K", "-1")
	if _, err := New(); err == nil {
		t.Fatalf("expected error for negative top k")
	}
}
