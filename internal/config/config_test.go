package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	setCoreEnvEmpty(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.BindAddr != ":8080" {
		t.Fatalf("BindAddr = %q, want %q", cfg.BindAddr, ":8080")
	}
	if cfg.MemoryMaxTurns != 10 {
		t.Fatalf("MemoryMaxTurns = %d, want 10", cfg.MemoryMaxTurns)
	}
	if cfg.LLMAttemptTimeout != 20*time.Second {
		t.Fatalf("LLMAttemptTimeout = %v, want 20s", cfg.LLMAttemptTimeout)
	}
	if len(cfg.LLMProviders) != 2 || cfg.LLMProviders[0] != "groq" || cfg.LLMProviders[1] != "gemini" {
		t.Fatalf("LLMProviders = %v, want [groq gemini]", cfg.LLMProviders)
	}
}

func TestLoadProviderOrderIsExplicit(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("LLM_PROVIDERS", " Gemini , groq ")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cfg.LLMProviders) != 2 || cfg.LLMProviders[0] != "gemini" || cfg.LLMProviders[1] != "groq" {
		t.Fatalf("LLMProviders = %v, want [gemini groq]", cfg.LLMProviders)
	}
}

func TestLoadRejectsUnknownProvider(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("LLM_PROVIDERS", "groq,openai")

	if _, err := Load(); err == nil {
		t.Fatalf("Load() expected error for unknown provider")
	}
}

func TestLoadRejectsNonPositiveMemoryBound(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("MEMORY_MAX_TURNS", "0")

	if _, err := Load(); err == nil {
		t.Fatalf("Load() expected error for MEMORY_MAX_TURNS=0")
	}
}

func setCoreEnvEmpty(t *testing.T) {
	t.Helper()
	keys := []string{
		"APP_BIND_ADDR",
		"APP_SHUTDOWN_TIMEOUT",
		"APP_METRICS_NAMESPACE",
		"APP_ENV",
		"APP_LOG_FILE",
		"AGENT_SERVICE_SECRET",
		"DATABASE_URL",
		"LLM_PROVIDERS",
		"LLM_ATTEMPT_TIMEOUT",
		"GROQ_API_KEY",
		"GROQ_BASE_URL",
		"GROQ_FAST_MODEL",
		"GROQ_QUALITY_MODEL",
		"GEMINI_API_KEY",
		"GEMINI_BASE_URL",
		"GEMINI_MODEL",
		"MEMORY_MAX_TURNS",
		"MEMORY_MAX_SESSIONS",
		"MEMORY_SESSION_RETENTION",
		"CLASSIFIER_MEMORY_WINDOW",
	}
	for _, key := range keys {
		t.Setenv(key, "")
	}
}
