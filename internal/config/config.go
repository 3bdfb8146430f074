package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// Config holds the configuration for the application.
type Config struct {
	Database  DatabaseConfig  `koanf:"database"`
	Cache     CacheConfig     `koanf:"cache"`
	Detection DetectionConfig `koanf:"detection"`
	Gemini    GeminiConfig    `koanf:"gemini"`
	AWS       AWSConfig       `koanf:"aws"`
	Storage   StorageConfig   `koanf:"storage"`
	Limits    LimitsConfig    `koanf:"limits"`
	Telegram  TelegramConfig  `koanf:"telegram"`
	Log       LogConfig       `koanf:"log"`
}

type DatabaseConfig struct {
	Path string `koanf:"path"`
}

type CacheConfig struct {
	// Dir is the badger directory. Empty keeps the cache in memory.
	Dir string        `koanf:"dir"`
	TTL time.Duration `koanf:"ttl"`
}

type DetectionConfig struct {
	MinConfidence           float64       `koanf:"min_confidence"`
	HighConfidenceThreshold float64       `koanf:"high_confidence_threshold"`
	PrimaryTimeout          time.Duration `koanf:"primary_timeout"`
	FallbackTimeout         time.Duration `koanf:"fallback_timeout"`
	MaxConcurrency          int           `koanf:"max_concurrency"`
}

type GeminiConfig struct {
	Enabled bool   `koanf:"enabled"`
	APIKey  string `koanf:"api_key"`
	Model   string `koanf:"model"`
}

type AWSConfig struct {
	Region    string `koanf:"region"`
	MaxLabels int    `koanf:"max_labels"`
}

type StorageConfig struct {
	// Bucket selects the S3 archive. Without a bucket images go to LocalDir.
	Bucket   string `koanf:"bucket"`
	LocalDir string `koanf:"local_dir"`
}

type LimitsConfig struct {
	FreeTierDailyLimit int   `koanf:"free_tier_daily_limit"`
	MaxImageBytes      int64 `koanf:"max_image_bytes"`
	MaxFridgeImages    int   `koanf:"max_fridge_images"`
	MinImageDimension  int   `koanf:"min_image_dimension"`
}

type TelegramConfig struct {
	BotToken       string  `koanf:"bot_token"`
	WebhookURL     string  `koanf:"webhook_url"`
	AllowedUserIDs []int64 `koanf:"allowed_user_ids"`
	AdminID        int64   `koanf:"admin_id"`
	Port           string  `koanf:"port"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

func defaultConfig() Config {
	return Config{
		Database: DatabaseConfig{Path: "data/psi.db"},
		Cache:    CacheConfig{Dir: "data/cache", TTL: 24 * time.Hour},
		Detection: DetectionConfig{
			MinConfidence:           0.5,
			HighConfidenceThreshold: 0.8,
			PrimaryTimeout:          5 * time.Second,
			FallbackTimeout:         20 * time.Second,
			MaxConcurrency:          4,
		},
		Gemini:  GeminiConfig{Enabled: true, Model: "gemini-1.5-flash"},
		AWS:     AWSConfig{Region: "us-east-1", MaxLabels: 20},
		Storage: StorageConfig{LocalDir: "data/images"},
		Limits: LimitsConfig{
			FreeTierDailyLimit: 3,
			MaxImageBytes:      10 * 1024 * 1024,
			MaxFridgeImages:    5,
			MinImageDimension:  100,
		},
		Telegram: TelegramConfig{Port: "8080"},
		Log:      LogConfig{Level: "info", Format: "json"},
	}
}

// envKeys maps environment variables to koanf paths.
var envKeys = map[string]string{
	"DATABASE_PATH":             "database.path",
	"CACHE_DIR":                 "cache.dir",
	"CACHE_TTL":                 "cache.ttl",
	"DETECTION_MIN_CONFIDENCE":  "detection.min_confidence",
	"HIGH_CONFIDENCE_THRESHOLD": "detection.high_confidence_threshold",
	"PRIMARY_TIMEOUT":           "detection.primary_timeout",
	"FALLBACK_TIMEOUT":          "detection.fallback_timeout",
	"DETECTION_MAX_CONCURRENCY": "detection.max_concurrency",
	"GEMINI_ENABLED":            "gemini.enabled",
	"GEMINI_API_KEY":            "gemini.api_key",
	"GEMINI_MODEL":              "gemini.model",
	"AWS_REGION":                "aws.region",
	"REKOGNITION_MAX_LABELS":    "aws.max_labels",
	"AWS_S3_BUCKET":             "storage.bucket",
	"IMAGE_STORAGE_DIR":         "storage.local_dir",
	"FREE_TIER_DAILY_LIMIT":     "limits.free_tier_daily_limit",
	"MAX_IMAGE_BYTES":           "limits.max_image_bytes",
	"MAX_FRIDGE_IMAGES":         "limits.max_fridge_images",
	"MIN_IMAGE_DIMENSION":       "limits.min_image_dimension",
	"TELEGRAM_BOT_TOKEN":        "telegram.bot_token",
	"TELEGRAM_WEBHOOK_URL":      "telegram.webhook_url",
	"TELEGRAM_ALLOWED_USER_IDS": "telegram.allowed_user_ids",
	"TELEGRAM_ADMIN_ID":         "telegram.admin_id",
	"PORT":                      "telegram.port",
	"LOG_LEVEL":                 "log.level",
	"LOG_FORMAT":                "log.format",
}

func envTransformFunc(key string) string {
	return envKeys[strings.ToUpper(key)]
}

// NewFromEnv creates a new Config object from defaults, an optional YAML
// file and environment variables, in increasing order of precedence.
func NewFromEnv() (*Config, error) {
	// A missing .env is the normal case outside local development.
	_ = godotenv.Load()

	k := koanf.New(".")

	defaults := defaultConfig()
	if err := k.Load(structs.Provider(&defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := configFilePath(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Comma separated ids arrive from the environment as a single string.
	if raw, ok := k.Get("telegram.allowed_user_ids").(string); ok {
		ids, err := parseIDs(raw)
		if err != nil {
			return nil, err
		}
		if err := k.Set("telegram.allowed_user_ids", ids); err != nil {
			return nil, fmt.Errorf("failed to set telegram user ids: %w", err)
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func configFilePath() string {
	if p := os.Getenv("PSI_CONFIG"); p != "" {
		return p
	}
	if _, err := os.Stat("config.yaml"); err == nil {
		return "config.yaml"
	}
	return ""
}

func parseIDs(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		var id int64
		if _, err := fmt.Sscanf(part, "%d", &id); err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_ALLOWED_USER_IDS entry %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (c *Config) validate() error {
	if c.Gemini.Enabled && c.Gemini.APIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY environment variable not set")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("DATABASE_PATH environment variable not set")
	}
	if c.Detection.HighConfidenceThreshold <= 0 || c.Detection.HighConfidenceThreshold > 1 {
		return fmt.Errorf("HIGH_CONFIDENCE_THRESHOLD must be in (0, 1], got %v", c.Detection.HighConfidenceThreshold)
	}
	if c.Detection.FallbackTimeout <= c.Detection.PrimaryTimeout {
		return fmt.Errorf("FALLBACK_TIMEOUT (%s) must be longer than PRIMARY_TIMEOUT (%s)",
			c.Detection.FallbackTimeout, c.Detection.PrimaryTimeout)
	}
	if c.Limits.MaxFridgeImages < 1 {
		return fmt.Errorf("MAX_FRIDGE_IMAGES must be at least 1, got %d", c.Limits.MaxFridgeImages)
	}
	return nil
}

// RequireTelegram reports whether the bot settings are present.
func (c *Config) RequireTelegram() error {
	if c.Telegram.BotToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN environment variable not set")
	}
	if c.Telegram.WebhookURL == "" {
		return fmt.Errorf("TELEGRAM_WEBHOOK_URL environment variable not set")
	}
	return nil
}
