package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// DefaultEnvFile is the dotenv file read on startup. It is created empty on
// first run so users have an obvious place to put their keys.
const DefaultEnvFile = ".env"

// ReasonerConfig holds the reasoning-provider settings.
type ReasonerConfig struct {
	APIKey string
	Model  string
}

// SynthesizerConfig holds the synthesis-provider settings.
type SynthesizerConfig struct {
	Provider    string // "groq" or "claude"
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int64
	TopP        float64
}

// RedisConfig holds Redis history store configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// PostgresConfig holds PostgreSQL history store configuration.
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// MongoConfig holds MongoDB history store configuration.
type MongoConfig struct {
	URI        string
	Database   string
	Collection string
}

// Config is the process-wide configuration.
type Config struct {
	Listen      string
	Store       string // "memory", "redis", "postgres" or "mongo"
	Reasoner    ReasonerConfig
	Synthesizer SynthesizerConfig
	Redis       RedisConfig
	Postgres    PostgresConfig
	Mongo       MongoConfig
}

// NewDefaultConfig returns the built-in defaults. Model names and sampling
// parameters match the reasoning/synthesis chain the app was built around.
func NewDefaultConfig() *Config {
	return &Config{
		Listen: ":8080",
		Store:  "memory",
		Reasoner: ReasonerConfig{
			Model: "deepseek-reasoner",
		},
		Synthesizer: SynthesizerConfig{
			Provider:    "groq",
			Model:       "llama-3.3-70b-specdec",
			Temperature: 0.7,
			MaxTokens:   1024,
			TopP:        1,
		},
		Redis: RedisConfig{
			Addr:   "localhost:6379",
			Prefix: "reasonchain:",
		},
		Postgres: PostgresConfig{
			Host:    "localhost",
			Port:    5432,
			User:    "postgres",
			DBName:  "reasonchain",
			SSLMode: "disable",
		},
		Mongo: MongoConfig{
			URI:        "mongodb://localhost:27017",
			Database:   "reasonchain",
			Collection: "traces",
		},
	}
}

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the .env file (created
// with key placeholders when absent, matching first-run behavior), and binds
// environment variables.
//
// Value precedence (highest to lowest):
//  1. CLI flags (once bound by the command layer)
//  2. Environment variables (DEEPSEEK_API_KEY, REASONCHAIN_LISTEN, ...)
//  3. .env file values
//  4. Defaults from NewDefaultConfig()
func InitViper(envFile string) (*viper.Viper, error) {
	v := viper.New()

	setViperDefaults(v)

	if envFile == "" {
		envFile = DefaultEnvFile
	}
	if err := ensureEnvFile(envFile); err != nil {
		return nil, err
	}

	v.SetConfigFile(envFile)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", envFile, err)
	}

	v.AutomaticEnv()

	return v, nil
}

// Load reads the full configuration using viper.
func Load(envFile string) (*Config, error) {
	v, err := InitViper(envFile)
	if err != nil {
		return nil, err
	}
	return FromViper(v), nil
}

// FromViper materialises a Config from a configured viper instance. Keys use
// underscore notation so dotenv entries and environment variables resolve to
// the same names.
func FromViper(v *viper.Viper) *Config {
	cfg := NewDefaultConfig()

	cfg.Listen = v.GetString("reasonchain_listen")
	cfg.Store = v.GetString("reasonchain_store")

	cfg.Reasoner.APIKey = v.GetString("deepseek_api_key")
	cfg.Reasoner.Model = v.GetString("reasoner_model")

	cfg.Synthesizer.Provider = v.GetString("synthesizer_provider")
	cfg.Synthesizer.Model = v.GetString("synthesizer_model")
	cfg.Synthesizer.Temperature = v.GetFloat64("synthesizer_temperature")
	cfg.Synthesizer.MaxTokens = v.GetInt64("synthesizer_max_tokens")
	cfg.Synthesizer.TopP = v.GetFloat64("synthesizer_top_p")
	switch cfg.Synthesizer.Provider {
	case "claude":
		cfg.Synthesizer.APIKey = v.GetString("anthropic_api_key")
	default:
		cfg.Synthesizer.APIKey = v.GetString("groq_api_key")
	}

	cfg.Redis.Addr = v.GetString("redis_addr")
	cfg.Redis.Password = v.GetString("redis_password")
	cfg.Redis.DB = v.GetInt("redis_db")
	cfg.Redis.Prefix = v.GetString("redis_prefix")

	cfg.Postgres.Host = v.GetString("postgres_host")
	cfg.Postgres.Port = v.GetInt("postgres_port")
	cfg.Postgres.User = v.GetString("postgres_user")
	cfg.Postgres.Password = v.GetString("postgres_password")
	cfg.Postgres.DBName = v.GetString("postgres_dbname")
	cfg.Postgres.SSLMode = v.GetString("postgres_sslmode")

	cfg.Mongo.URI = v.GetString("mongo_uri")
	cfg.Mongo.Database = v.GetString("mongo_database")
	cfg.Mongo.Collection = v.GetString("mongo_collection")

	return cfg
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper.
// This keeps NewDefaultConfig as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("reasonchain_listen", d.Listen)
	v.SetDefault("reasonchain_store", d.Store)

	v.SetDefault("deepseek_api_key", "")
	v.SetDefault("groq_api_key", "")
	v.SetDefault("anthropic_api_key", "")

	v.SetDefault("reasoner_model", d.Reasoner.Model)

	v.SetDefault("synthesizer_provider", d.Synthesizer.Provider)
	v.SetDefault("synthesizer_model", d.Synthesizer.Model)
	v.SetDefault("synthesizer_temperature", d.Synthesizer.Temperature)
	v.SetDefault("synthesizer_max_tokens", d.Synthesizer.MaxTokens)
	v.SetDefault("synthesizer_top_p", d.Synthesizer.TopP)

	v.SetDefault("redis_addr", d.Redis.Addr)
	v.SetDefault("redis_password", d.Redis.Password)
	v.SetDefault("redis_db", d.Redis.DB)
	v.SetDefault("redis_prefix", d.Redis.Prefix)

	v.SetDefault("postgres_host", d.Postgres.Host)
	v.SetDefault("postgres_port", d.Postgres.Port)
	v.SetDefault("postgres_user", d.Postgres.User)
	v.SetDefault("postgres_password", d.Postgres.Password)
	v.SetDefault("postgres_dbname", d.Postgres.DBName)
	v.SetDefault("postgres_sslmode", d.Postgres.SSLMode)

	v.SetDefault("mongo_uri", d.Mongo.URI)
	v.SetDefault("mongo_database", d.Mongo.Database)
	v.SetDefault("mongo_collection", d.Mongo.Collection)
}

// ensureEnvFile creates a dotenv file with empty key placeholders when none
// exists yet.
func ensureEnvFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	content := "DEEPSEEK_API_KEY=\nGROQ_API_KEY=\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	return nil
}
