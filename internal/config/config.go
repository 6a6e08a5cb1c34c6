package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Log      LogConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	LLM      LLMConfig
	Storage  StorageConfig
	OCR      OCRConfig
	Pipeline PipelineConfig
	Matching MatchingConfig
}

type ServerConfig struct {
	Host           string
	Port           int
	CORSOrigins    []string
	RateLimitRPS   float64
	RateLimitBurst int
}

type LogConfig struct {
	Level  string
	Format string // "json" or "text"
}

type DatabaseConfig struct {
	URL            string
	MaxConns       int
	MinConns       int
	MigrationsPath string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AuthConfig struct {
	JWTSecret string
}

type LLMConfig struct {
	OpenAIKey        string
	AnthropicKey     string
	OllamaURL        string
	DefaultProvider  string
	DefaultModel     string
	FallbackProvider string
	MaxRetries       int
}

type StorageConfig struct {
	Backend     string // "supabase", "minio" or "memory"
	SupabaseURL string
	SupabaseKey string
	Bucket      string

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioUseSSL    bool
}

type OCRConfig struct {
	Pdftoppm  string
	Tesseract string
	Lang      string
	DPI       int
	MaxPages  int
	// Timeout bounds a single pdftoppm or tesseract run. Zero means no bound.
	Timeout time.Duration
}

type PipelineConfig struct {
	Dispatch              string // "inline" or "asynq"
	AutoAdvance           bool
	MaxFileSizeMB         int
	ExtractionMaxAttempts int
	AnalysisMaxAttempts   int
	MatchingMaxAttempts   int
	BackoffBase           time.Duration
	FailureThreshold      int
	FailureWindow         time.Duration
	LockTTL               time.Duration
	TaskTimeout           time.Duration
}

// MaxFileSize returns the upload ceiling in bytes.
func (p PipelineConfig) MaxFileSize() int64 {
	return int64(p.MaxFileSizeMB) << 20
}

type MatchingConfig struct {
	DefaultMode        string // "graph" or "generative"
	GenerativeFallback bool
	GenerativeCount    int
	MaxResults         int
	CatalogPath        string
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real environment variables win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var errs []string
	intVar := func(key string, fallback int) int {
		v, err := getEnvInt(key, fallback)
		if err != nil {
			errs = append(errs, fmt.Sprintf("invalid %s: %v", key, err))
		}
		return v
	}
	boolVar := func(key string, fallback bool) bool {
		v, err := getEnvBool(key, fallback)
		if err != nil {
			errs = append(errs, fmt.Sprintf("invalid %s: %v", key, err))
		}
		return v
	}
	floatVar := func(key string, fallback float64) float64 {
		v, err := getEnvFloat(key, fallback)
		if err != nil {
			errs = append(errs, fmt.Sprintf("invalid %s: %v", key, err))
		}
		return v
	}
	durVar := func(key string, fallback time.Duration) time.Duration {
		v, err := getEnvDuration(key, fallback)
		if err != nil {
			errs = append(errs, fmt.Sprintf("invalid %s: %v", key, err))
		}
		return v
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           intVar("SERVER_PORT", 8080),
			CORSOrigins:    splitList(getEnv("SERVER_CORS_ORIGINS", "*")),
			RateLimitRPS:   floatVar("SERVER_RATE_LIMIT_RPS", 20),
			RateLimitBurst: intVar("SERVER_RATE_LIMIT_BURST", 40),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Database: DatabaseConfig{
			URL:            getEnv("DATABASE_URL", ""),
			MaxConns:       intVar("DB_MAX_CONNS", 20),
			MinConns:       intVar("DB_MIN_CONNS", 2),
			MigrationsPath: getEnv("MIGRATIONS_PATH", ""),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       intVar("REDIS_DB", 0),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("AUTH_JWT_SECRET", ""),
		},
		LLM: LLMConfig{
			OpenAIKey:        getEnv("OPENAI_API_KEY", ""),
			AnthropicKey:     getEnv("ANTHROPIC_API_KEY", ""),
			OllamaURL:        getEnv("OLLAMA_URL", "http://localhost:11434"),
			DefaultProvider:  getEnv("LLM_DEFAULT_PROVIDER", "openai"),
			DefaultModel:     getEnv("LLM_DEFAULT_MODEL", "gpt-4o-mini"),
			FallbackProvider: getEnv("LLM_FALLBACK_PROVIDER", ""),
			MaxRetries:       intVar("LLM_MAX_RETRIES", 1),
		},
		Storage: StorageConfig{
			Backend:        getEnv("STORAGE_BACKEND", "supabase"),
			SupabaseURL:    getEnv("SUPABASE_URL", ""),
			SupabaseKey:    getEnv("SUPABASE_SERVICE_KEY", ""),
			Bucket:         getEnv("STORAGE_BUCKET", "resumes"),
			MinioEndpoint:  getEnv("MINIO_ENDPOINT", "localhost:9000"),
			MinioAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			MinioSecretKey: getEnv("MINIO_SECRET_KEY", ""),
			MinioUseSSL:    boolVar("MINIO_USE_SSL", false),
		},
		OCR: OCRConfig{
			Pdftoppm:  getEnv("OCR_PDFTOPPM_BIN", "pdftoppm"),
			Tesseract: getEnv("OCR_TESSERACT_BIN", "tesseract"),
			Lang:      getEnv("OCR_LANG", "eng"),
			DPI:       intVar("OCR_DPI", 300),
			MaxPages:  intVar("OCR_MAX_PAGES", 10),
			Timeout:   durVar("OCR_TIMEOUT", 2*time.Minute),
		},
		Pipeline: PipelineConfig{
			Dispatch:              getEnv("PIPELINE_DISPATCH", "inline"),
			AutoAdvance:           boolVar("PIPELINE_AUTO_ADVANCE", true),
			MaxFileSizeMB:         intVar("PIPELINE_MAX_FILE_SIZE_MB", 10),
			ExtractionMaxAttempts: intVar("PIPELINE_EXTRACTION_MAX_ATTEMPTS", 3),
			AnalysisMaxAttempts:   intVar("PIPELINE_ANALYSIS_MAX_ATTEMPTS", 2),
			MatchingMaxAttempts:   intVar("PIPELINE_MATCHING_MAX_ATTEMPTS", 2),
			BackoffBase:           durVar("PIPELINE_BACKOFF_BASE", 2*time.Second),
			FailureThreshold:      intVar("PIPELINE_FAILURE_THRESHOLD", 5),
			FailureWindow:         durVar("PIPELINE_FAILURE_WINDOW", 10*time.Minute),
			LockTTL:               durVar("PIPELINE_LOCK_TTL", 15*time.Minute),
			TaskTimeout:           durVar("PIPELINE_TASK_TIMEOUT", 10*time.Minute),
		},
		Matching: MatchingConfig{
			DefaultMode:        getEnv("MATCHING_DEFAULT_MODE", "graph"),
			GenerativeFallback: boolVar("MATCHING_GENERATIVE_FALLBACK", true),
			GenerativeCount:    intVar("MATCHING_GENERATIVE_COUNT", 6),
			MaxResults:         intVar("MATCHING_MAX_RESULTS", 20),
			CatalogPath:        getEnv("MATCHING_CATALOG_PATH", ""),
		},
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("load config: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) Validate() error {
	var missing []string
	// the queue worker runs in another process, so state must be shared
	if c.Pipeline.Dispatch == "asynq" && c.Database.URL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	switch c.Storage.Backend {
	case "supabase":
		if c.Storage.SupabaseURL == "" {
			missing = append(missing, "SUPABASE_URL")
		}
	case "minio":
		if c.Storage.MinioAccessKey == "" {
			missing = append(missing, "MINIO_ACCESS_KEY")
		}
	case "memory":
		if c.Pipeline.Dispatch == "asynq" {
			return fmt.Errorf("STORAGE_BACKEND=memory cannot be used with PIPELINE_DISPATCH=asynq")
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.Storage.Backend)
	}
	switch c.Pipeline.Dispatch {
	case "inline", "asynq":
	default:
		return fmt.Errorf("unknown PIPELINE_DISPATCH %q", c.Pipeline.Dispatch)
	}
	switch c.Matching.DefaultMode {
	case "graph", "generative":
	default:
		return fmt.Errorf("unknown MATCHING_DEFAULT_MODE %q", c.Matching.DefaultMode)
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required env vars: %s", strings.Join(missing, ", "))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseBool(v)
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseFloat(v, 64)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return time.ParseDuration(v)
}
