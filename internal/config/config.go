package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	pkglogger "github.com/gymsmart/gymsmart-backend/pkg/logger"
	"gopkg.in/yaml.v3"
)

// Config application configuration
type Config struct {
	Env      string         `yaml:"env"`
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	JWT      JWTConfig      `yaml:"jwt"`
	CORS     CORSConfig     `yaml:"cors"`
	Storage  StorageConfig  `yaml:"storage"`
	AI       AIConfig       `yaml:"ai"`
	Chat     ChatConfig     `yaml:"chat"`
}

type ServerConfig struct {
	Port int `yaml:"port" validate:"min=1,max=65535"`
}

type DatabaseConfig struct {
	Host            string `yaml:"host" validate:"required"`
	Port            int    `yaml:"port" validate:"min=1,max=65535"`
	User            string `yaml:"user" validate:"required"`
	Password        string `yaml:"password"`
	DBName          string `yaml:"dbname" validate:"required"`
	MaxIdleConns    int    `yaml:"max_idle_conns" validate:"min=0"`
	MaxOpenConns    int    `yaml:"max_open_conns" validate:"min=0"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime" validate:"min=0"` // seconds
}

// GetDSN returns the MySQL DSN. clientFoundRows makes RowsAffected count
// matched rows, so an update that changes nothing still finds its row.
func (d DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC&clientFoundRows=true",
		d.User, d.Password, d.Host, d.Port, d.DBName)
}

type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type JWTConfig struct {
	Secret    string `yaml:"secret" validate:"required,min=16"`
	ExpiresIn int    `yaml:"expires_in" validate:"min=60"` // seconds
}

type CORSConfig struct {
	AllowOrigins string `yaml:"allow_origins"`
}

type StorageConfig struct {
	Enabled         bool     `yaml:"enabled"`
	Endpoint        string   `yaml:"endpoint"`
	Region          string   `yaml:"region"`
	AccessKeyID     string   `yaml:"access_key_id"`
	SecretAccessKey string   `yaml:"secret_access_key"`
	Buckets         []string `yaml:"buckets" validate:"required_if=Enabled true"`
	PublicBaseURL   string   `yaml:"public_base_url"`
	ForcePathStyle  bool     `yaml:"force_path_style"`
}

// AIConfig generative-AI providers, tried in the order Gemini, OpenRouter, Groq.
// A provider without a key is skipped.
type AIConfig struct {
	GeminiKey             string `yaml:"gemini_key"`
	GeminiModel           string `yaml:"gemini_model"`
	OpenRouterKey         string `yaml:"openrouter_key"`
	OpenRouterVisionModel string `yaml:"openrouter_vision_model"`
	OpenRouterChatModel   string `yaml:"openrouter_chat_model"`
	GroqKey               string `yaml:"groq_key"`
	GroqVisionModel       string `yaml:"groq_vision_model"`
	GroqChatModel         string `yaml:"groq_chat_model"`
	TimeoutSeconds        int    `yaml:"timeout_seconds" validate:"min=0"`
}

type ChatConfig struct {
	FetchLimit int `yaml:"fetch_limit" validate:"min=0,max=500"`
}

// IsDevelopment reports whether the app runs locally
func (c *Config) IsDevelopment() bool {
	return c.Env == "" || c.Env == "local" || c.Env == "development" || c.Env == "dev"
}

// Load reads a YAML config file, expands ${VAR} references, applies
// environment overrides and defaults, then validates the result.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse([]byte(os.ExpandEnv(string(raw))))
}

// Parse decodes YAML config data
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	setString(&cfg.Env, "APP_ENV")
	setInt(&cfg.Server.Port, "PORT")

	setString(&cfg.Database.Host, "DB_HOST")
	setInt(&cfg.Database.Port, "DB_PORT")
	setString(&cfg.Database.User, "DB_USER")
	setString(&cfg.Database.Password, "DB_PASSWORD")
	setString(&cfg.Database.DBName, "DB_NAME")

	setString(&cfg.Redis.Host, "REDIS_HOST")
	setInt(&cfg.Redis.Port, "REDIS_PORT")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")

	setString(&cfg.JWT.Secret, "JWT_SECRET")
	setString(&cfg.CORS.AllowOrigins, "CORS_ALLOW_ORIGINS")

	setString(&cfg.Storage.AccessKeyID, "S3_ACCESS_KEY_ID")
	setString(&cfg.Storage.SecretAccessKey, "S3_SECRET_ACCESS_KEY")
	setString(&cfg.Storage.Endpoint, "S3_ENDPOINT")

	setString(&cfg.AI.GeminiKey, "GEMINI_API_KEY")
	setString(&cfg.AI.OpenRouterKey, "OPENROUTER_API_KEY")
	setString(&cfg.AI.GroqKey, "GROQ_API_KEY")
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8082
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 3306
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 10
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 50
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 300
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Redis.PoolSize == 0 {
		cfg.Redis.PoolSize = 10
	}
	if cfg.JWT.ExpiresIn == 0 {
		cfg.JWT.ExpiresIn = 3600
	}
	if cfg.Storage.Enabled && len(cfg.Storage.Buckets) == 0 {
		cfg.Storage.Buckets = []string{"audio-messages", "gym_uploads"}
	}
	if cfg.AI.GeminiModel == "" {
		cfg.AI.GeminiModel = "gemini-2.5-flash-lite"
	}
	if cfg.AI.OpenRouterVisionModel == "" {
		cfg.AI.OpenRouterVisionModel = "meta-llama/llama-3.2-11b-vision-instruct"
	}
	if cfg.AI.OpenRouterChatModel == "" {
		cfg.AI.OpenRouterChatModel = "meta-llama/llama-3.1-8b-instruct:free"
	}
	if cfg.AI.GroqVisionModel == "" {
		cfg.AI.GroqVisionModel = "llama-3.2-11b-vision-preview"
	}
	if cfg.AI.GroqChatModel == "" {
		cfg.AI.GroqChatModel = "llama-3.3-70b-versatile"
	}
	if cfg.AI.TimeoutSeconds == 0 {
		cfg.AI.TimeoutSeconds = 60
	}
	if cfg.Chat.FetchLimit == 0 {
		cfg.Chat.FetchLimit = 100
	}
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

// LogResolved logs the effective configuration without secrets
func LogResolved(cfg *Config) {
	pkglogger.GetLogger().Info().
		Str("env", cfg.Env).
		Int("port", cfg.Server.Port).
		Str("db_host", cfg.Database.Host).
		Str("db_name", cfg.Database.DBName).
		Str("redis_host", cfg.Redis.Host).
		Bool("storage_enabled", cfg.Storage.Enabled).
		Str("storage_buckets", strings.Join(cfg.Storage.Buckets, ",")).
		Bool("ai_gemini", cfg.AI.GeminiKey != "").
		Bool("ai_openrouter", cfg.AI.OpenRouterKey != "").
		Bool("ai_groq", cfg.AI.GroqKey != "").
		Msg("config resolved")
}
