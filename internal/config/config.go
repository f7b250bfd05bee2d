package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config contains all runtime settings for the inventory agent service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string
	Environment      string
	LogFilePath      string

	// AgentSecret is the shared secret the edge functions present as a
	// bearer token. Requests without it never reach the pipeline.
	AgentSecret string

	DatabaseURL string

	// Providers are tried in the listed order; the first one that answers
	// wins. Each attempt gets its own timeout.
	LLMProviders      []string
	LLMAttemptTimeout time.Duration

	GroqAPIKey       string
	GroqBaseURL      string
	GroqFastModel    string
	GroqQualityModel string

	GeminiAPIKey  string
	GeminiBaseURL string
	GeminiModel   string

	// MemoryMaxTurns bounds the per-session history fed back into prompts.
	MemoryMaxTurns    int
	MemoryMaxSessions int
	SessionRetention  time.Duration

	// ClassifierMemoryWindow is the number of recent turns the classifier
	// sees; the composer sees the full retained history.
	ClassifierMemoryWindow int
}

// Load reads environment variables (with optional .env file) and applies
// safe defaults.
func Load() (Config, error) {
	// Local development convenience only; the file is optional.
	_ = godotenv.Load()

	cfg := Config{
		BindAddr:         envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "inventory_agent"),
		Environment:      envOrDefault("APP_ENV", "development"),
		LogFilePath:      envOrDefault("APP_LOG_FILE", "agent.log"),
		AgentSecret:      envTrimmed("AGENT_SERVICE_SECRET"),
		DatabaseURL:      envTrimmed("DATABASE_URL"),
		GroqAPIKey:       envTrimmed("GROQ_API_KEY"),
		GroqBaseURL:      envOrDefault("GROQ_BASE_URL", "https://api.groq.com/openai/v1"),
		// Fast model for classification, quality model for spoken answers.
		GroqFastModel:          envOrDefault("GROQ_FAST_MODEL", "llama-3.1-8b-instant"),
		GroqQualityModel:       envOrDefault("GROQ_QUALITY_MODEL", "llama-3.3-70b-versatile"),
		GeminiAPIKey:           envTrimmed("GEMINI_API_KEY"),
		GeminiBaseURL:          envOrDefault("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com"),
		GeminiModel:            envOrDefault("GEMINI_MODEL", "gemini-2.0-flash"),
		ShutdownTimeout:        15 * time.Second,
		LLMAttemptTimeout:      20 * time.Second,
		MemoryMaxTurns:         10,
		MemoryMaxSessions:      100,
		SessionRetention:       30 * time.Minute,
		ClassifierMemoryWindow: 4,
	}

	providers := envOrDefault("LLM_PROVIDERS", "groq,gemini")
	for _, p := range strings.Split(providers, ",") {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			cfg.LLMProviders = append(cfg.LLMProviders, p)
		}
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.LLMAttemptTimeout, err = durationFromEnv("LLM_ATTEMPT_TIMEOUT", cfg.LLMAttemptTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionRetention, err = durationFromEnv("MEMORY_SESSION_RETENTION", cfg.SessionRetention)
	if err != nil {
		return Config{}, err
	}
	cfg.MemoryMaxTurns, err = intFromEnv("MEMORY_MAX_TURNS", cfg.MemoryMaxTurns)
	if err != nil {
		return Config{}, err
	}
	cfg.MemoryMaxSessions, err = intFromEnv("MEMORY_MAX_SESSIONS", cfg.MemoryMaxSessions)
	if err != nil {
		return Config{}, err
	}
	cfg.ClassifierMemoryWindow, err = intFromEnv("CLASSIFIER_MEMORY_WINDOW", cfg.ClassifierMemoryWindow)
	if err != nil {
		return Config{}, err
	}

	if len(cfg.LLMProviders) == 0 {
		return Config{}, fmt.Errorf("LLM_PROVIDERS must name at least one provider")
	}
	for _, p := range cfg.LLMProviders {
		switch p {
		case "groq", "gemini", "mock":
		default:
			return Config{}, fmt.Errorf("unknown LLM provider %q (expected groq|gemini|mock)", p)
		}
	}
	if cfg.LLMAttemptTimeout < time.Second {
		return Config{}, fmt.Errorf("LLM_ATTEMPT_TIMEOUT must be at least 1s")
	}
	if cfg.MemoryMaxTurns <= 0 {
		return Config{}, fmt.Errorf("MEMORY_MAX_TURNS must be positive")
	}
	if cfg.MemoryMaxSessions <= 0 {
		return Config{}, fmt.Errorf("MEMORY_MAX_SESSIONS must be positive")
	}
	if cfg.ClassifierMemoryWindow <= 0 {
		return Config{}, fmt.Errorf("CLASSIFIER_MEMORY_WINDOW must be positive")
	}
	if cfg.SessionRetention < time.Minute {
		return Config{}, fmt.Errorf("MEMORY_SESSION_RETENTION must be at least 1m")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func envTrimmed(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := envTrimmed(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := envTrimmed(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}
