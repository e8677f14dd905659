package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for queryhaven-engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values. Secrets (passwords,
// API keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"3440"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// Schema metadata database (PostgreSQL, read-only)
	Database DatabaseConfig `yaml:"database"`

	// Cache backend (Redis). Optional: an empty host disables the Redis
	// backend and the engine falls back to the in-memory backend.
	Redis RedisConfig `yaml:"redis"`

	// Generation backend and embedding provider
	LLM LLMConfig `yaml:"llm"`

	// Context assembly pipeline settings
	Query QueryConfig `yaml:"query"`
}

// DatabaseConfig holds PostgreSQL configuration for the schema metadata
// repository.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"queryhaven"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"queryhaven_engine"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisConfig holds Redis cache backend configuration.
type RedisConfig struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:""`
	Port     int    `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string `yaml:"-" env:"REDIS_PASSWORD"` // Secret - not in YAML
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

// LLMConfig holds generation backend and embedding settings.
type LLMConfig struct {
	Endpoint       string `yaml:"endpoint" env:"LLM_ENDPOINT" env-default:"https://api.openai.com/v1"`
	Model          string `yaml:"model" env:"LLM_MODEL" env-default:"gpt-4o"`
	EmbeddingModel string `yaml:"embedding_model" env:"LLM_EMBEDDING_MODEL" env-default:"text-embedding-3-small"`
	APIKey         string `yaml:"-" env:"LLM_API_KEY"` // Secret - not in YAML
	// TimeoutSeconds bounds a single generation or embedding call.
	TimeoutSeconds int `yaml:"timeout_seconds" env:"LLM_TIMEOUT_SECONDS" env-default:"45"`
}

// Timeout returns the per-call LLM timeout as a duration.
func (c *LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// QueryConfig holds the recognized pipeline options.
type QueryConfig struct {
	EnableQueryCaching  bool    `yaml:"enable_query_caching" env:"ENABLE_QUERY_CACHING" env-default:"true"`
	EnableSemanticCache bool    `yaml:"enable_semantic_cache" env:"ENABLE_SEMANTIC_CACHE" env-default:"true"`
	SimilarityThreshold float64 `yaml:"similarity_threshold" env:"SIMILARITY_THRESHOLD" env-default:"0.85"`
	MaxTables           int     `yaml:"max_tables" env:"MAX_TABLES" env-default:"5"`
	MaxColumnsPerTable  int     `yaml:"max_columns_per_table" env:"MAX_COLUMNS_PER_TABLE" env-default:"15"`
	TotalTokenBudget    int     `yaml:"total_token_budget" env:"TOTAL_TOKEN_BUDGET" env-default:"6000"`

	// Budget allocation ratios across prompt sections. Must sum to <= 1.0.
	SchemaRatio   float64 `yaml:"schema_ratio" env:"BUDGET_SCHEMA_RATIO" env-default:"0.60"`
	RulesRatio    float64 `yaml:"rules_ratio" env:"BUDGET_RULES_RATIO" env-default:"0.15"`
	GlossaryRatio float64 `yaml:"glossary_ratio" env:"BUDGET_GLOSSARY_RATIO" env-default:"0.10"`
	ExamplesRatio float64 `yaml:"examples_ratio" env:"BUDGET_EXAMPLES_RATIO" env-default:"0.15"`

	// MaxExamples caps the few-shot examples included in a prompt.
	MaxExamples int `yaml:"max_examples" env:"MAX_EXAMPLES" env-default:"3"`

	// TemplateCacheTTLMinutes is how long prompt templates loaded from the
	// repository are served from memory before being refetched.
	TemplateCacheTTLMinutes int `yaml:"template_cache_ttl_minutes" env:"TEMPLATE_CACHE_TTL_MINUTES" env-default:"10"`
}

// TemplateCacheTTL returns the template cache expiry as a duration.
func (c *QueryConfig) TemplateCacheTTL() time.Duration {
	return time.Duration(c.TemplateCacheTTLMinutes) * time.Minute
}

// Load reads configuration from config.yaml with environment variable
// overrides. When config.yaml does not exist, environment variables and
// defaults alone are used.
func Load(version string) (*Config, error) {
	cfg := &Config{Version: version}

	if _, err := os.Stat("config.yaml"); err == nil {
		if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
			return nil, fmt.Errorf("failed to read config.yaml: %w", err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Query.SimilarityThreshold <= 0 || c.Query.SimilarityThreshold > 1 {
		return fmt.Errorf("similarity_threshold must be in (0, 1], got %v", c.Query.SimilarityThreshold)
	}
	if c.Query.MaxTables < 1 {
		return fmt.Errorf("max_tables must be >= 1, got %d", c.Query.MaxTables)
	}
	if c.Query.MaxColumnsPerTable < 1 {
		return fmt.Errorf("max_columns_per_table must be >= 1, got %d", c.Query.MaxColumnsPerTable)
	}
	if c.Query.TotalTokenBudget < 1 {
		return fmt.Errorf("total_token_budget must be >= 1, got %d", c.Query.TotalTokenBudget)
	}
	sum := c.Query.SchemaRatio + c.Query.RulesRatio + c.Query.GlossaryRatio + c.Query.ExamplesRatio
	if sum > 1.0+1e-9 {
		return fmt.Errorf("budget ratios must sum to <= 1.0, got %v", sum)
	}
	return nil
}
