package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration.
type Config struct {
	Port            string
	Env             string
	CORSAllowOrigin []string
	LocalStoreDir   string
	DatabaseURL     string
	QueueURL        string

	// Upload validation.
	MaxUploadBytes int64

	// Intake extraction latency simulation. A real extraction engine replaces
	// this with completion signaled by the engine itself.
	IntakeDelayMin time.Duration
	IntakeDelayMax time.Duration

	// RUNE orchestrator poll bounds: attempts x interval is the hard ceiling
	// before a pipeline run fails with an extraction timeout.
	RunePollAttempts int
	RunePollInterval time.Duration

	// TTL eviction for terminal jobs in the in-memory tracker. Zero disables.
	JobTTL time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")

	if env == "production" && dbURL == "" {
		log.Printf("DATABASE_URL is required in production")
	}

	return Config{
		Port:             getEnv("PORT", "8080"),
		Env:              env,
		CORSAllowOrigin:  splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173")),
		LocalStoreDir:    getEnv("LOCAL_STORE_DIR", "./data"),
		DatabaseURL:      dbURL,
		QueueURL:         strings.TrimSpace(os.Getenv("DF_SQS_QUEUE_URL")),
		MaxUploadBytes:   getEnvInt64("MAX_UPLOAD_BYTES", 25<<20),
		IntakeDelayMin:   getEnvDuration("INTAKE_DELAY_MIN", 400*time.Millisecond),
		IntakeDelayMax:   getEnvDuration("INTAKE_DELAY_MAX", 2500*time.Millisecond),
		RunePollAttempts: getEnvInt("RUNE_POLL_ATTEMPTS", 20),
		RunePollInterval: getEnvDuration("RUNE_POLL_INTERVAL", 250*time.Millisecond),
		JobTTL:           getEnvDuration("JOB_TTL", 0),
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("config %s invalid int: %v", key, err)
		return def
	}
	return val
}

func getEnvInt64(key string, def int64) int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		log.Printf("config %s invalid int: %v", key, err)
		return def
	}
	return val
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("config %s invalid duration: %v", key, err)
		return def
	}
	return val
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	default:
		return "dev"
	}
}
