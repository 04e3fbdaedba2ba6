package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the getglow server.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Blob     BlobConfig
	Upload   UploadConfig
	AI       AIConfig
	Progress ProgressConfig
}

type ServerConfig struct {
	Port           int
	Env            string
	RequestsPerMin int
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

type BlobConfig struct {
	Backend string // "local" or "s3"
	Local   LocalBlobConfig
	S3      S3Config
}

type LocalBlobConfig struct {
	BaseDir       string
	PublicBaseURL string
}

type S3Config struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	PublicBaseURL   string
}

type UploadConfig struct {
	MaxBytes     int64
	MaxDimension int
	JPEGQuality  int
}

type AIConfig struct {
	Provider         string // "openai" or "mock"
	InferenceTimeout time.Duration
	Streaming        bool
	OpenAI           OpenAIConfig
	Prompt           PromptConfig
}

type OpenAIConfig struct {
	APIKey string
	Model  string
}

type PromptConfig struct {
	SystemText      string
	UserText        string
	Temperature     float64
	MaxOutputTokens int
}

type ProgressConfig struct {
	Backend string // "memory" or "redis"
}

var validProviders = map[string]bool{
	"openai": true,
	"mock":   true,
}

var validBlobBackends = map[string]bool{
	"local": true,
	"s3":    true,
}

var validProgressBackends = map[string]bool{
	"memory": true,
	"redis":  true,
}

const (
	defaultSystemPrompt = "You are a wellness assistant. Examine the submitted face photo and " +
		"respond with a single JSON object containing integer fields overallScore, skinHealth, " +
		"eyeClarity, circulation and facialSymmetry (each 0-100), a recommendations array, and " +
		"nested analysis sections. Respond with JSON only."
	defaultUserPrompt = "Analyze this photo and produce the wellness report."
)

// Load reads configuration from environment variables and returns a validated
// Config. Returns an error with a descriptive message if any required value
// is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:           envInt("GETGLOW_PORT", 8080),
			Env:            envString("GETGLOW_ENV", "development"),
			RequestsPerMin: envInt("GETGLOW_RATE_LIMIT_PER_MIN", 60),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Blob: BlobConfig{
			Backend: envString("BLOB_BACKEND", "local"),
			Local: LocalBlobConfig{
				BaseDir:       envString("BLOB_LOCAL_DIR", "uploads"),
				PublicBaseURL: envString("BLOB_PUBLIC_BASE_URL", "/uploads"),
			},
			S3: S3Config{
				Endpoint:        os.Getenv("S3_ENDPOINT"),
				Region:          envString("S3_REGION", "us-east-1"),
				Bucket:          os.Getenv("S3_BUCKET"),
				AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
				SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
				PublicBaseURL:   os.Getenv("S3_PUBLIC_BASE_URL"),
			},
		},
		Upload: UploadConfig{
			MaxBytes:     envInt64("UPLOAD_MAX_BYTES", 10*1024*1024),
			MaxDimension: envInt("UPLOAD_MAX_DIMENSION", 1280),
			JPEGQuality:  envInt("UPLOAD_JPEG_QUALITY", 85),
		},
		AI: AIConfig{
			Provider:         envString("AI_PROVIDER", "openai"),
			InferenceTimeout: envDurationSecs("AI_INFERENCE_TIMEOUT_SECS", 120*time.Second),
			Streaming:        envBool("AI_STREAMING", true),
			OpenAI: OpenAIConfig{
				APIKey: os.Getenv("OPENAI_API_KEY"),
				Model:  envString("OPENAI_MODEL", "gpt-4o"),
			},
			Prompt: PromptConfig{
				SystemText:      envString("AI_SYSTEM_PROMPT", defaultSystemPrompt),
				UserText:        envString("AI_USER_PROMPT", defaultUserPrompt),
				Temperature:     envFloat("AI_TEMPERATURE", 0.4),
				MaxOutputTokens: envInt("AI_MAX_OUTPUT_TOKENS", 4096),
			},
		},
		Progress: ProgressConfig{
			Backend: envString("PROGRESS_BACKEND", "memory"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if !validBlobBackends[c.Blob.Backend] {
		return fmt.Errorf("BLOB_BACKEND must be one of local, s3; got %q", c.Blob.Backend)
	}
	if c.Blob.Backend == "s3" {
		if c.Blob.S3.Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required when BLOB_BACKEND is s3")
		}
		if c.Blob.S3.Endpoint != "" && !strings.HasPrefix(c.Blob.S3.Endpoint, "http://") &&
			!strings.HasPrefix(c.Blob.S3.Endpoint, "https://") {
			return fmt.Errorf("S3_ENDPOINT must start with http:// or https://, got %q", c.Blob.S3.Endpoint)
		}
	}

	if !validProviders[c.AI.Provider] {
		return fmt.Errorf("AI_PROVIDER must be one of openai, mock; got %q", c.AI.Provider)
	}
	if c.AI.Provider == "openai" && c.AI.OpenAI.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required when AI_PROVIDER is openai")
	}

	if !validProgressBackends[c.Progress.Backend] {
		return fmt.Errorf("PROGRESS_BACKEND must be one of memory, redis; got %q", c.Progress.Backend)
	}

	if c.Upload.MaxBytes <= 0 {
		return fmt.Errorf("UPLOAD_MAX_BYTES must be positive")
	}
	if c.Upload.JPEGQuality < 1 || c.Upload.JPEGQuality > 100 {
		return fmt.Errorf("UPLOAD_JPEG_QUALITY must be in 1..100, got %d", c.Upload.JPEGQuality)
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func envFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func envBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func envDurationSecs(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return time.Duration(secs) * time.Second
}
