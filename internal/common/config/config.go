package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Sanitizer SanitizerConfig `mapstructure:"sanitizer"`
	Sessions  SessionConfig   `mapstructure:"sessions"`
	Security  SecurityConfig  `mapstructure:"security"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	ReadTimeout     int    `mapstructure:"read_timeout"`     // seconds
	WriteTimeout    int    `mapstructure:"write_timeout"`    // seconds; must cover streaming responses
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"` // seconds
}

func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string.
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	Index     string   `mapstructure:"index"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// --- Capability Configuration ---

// LLMConfig configures the generation backend (OpenAI-compatible API).
type LLMConfig struct {
	BaseURL        string  `mapstructure:"base_url"`
	APIKey         string  `mapstructure:"api_key"`
	Model          string  `mapstructure:"model"`
	EmbeddingModel string  `mapstructure:"embedding_model"`
	Temperature    float64 `mapstructure:"temperature"`
	MaxTokens      int     `mapstructure:"max_tokens"`
	Timeout        int     `mapstructure:"timeout"`     // milliseconds
	MaxRetries     int     `mapstructure:"max_retries"` // retries on transient failure
}

// RetrievalConfig selects and configures the retrieval backend.
type RetrievalConfig struct {
	Backend string `mapstructure:"backend"` // "elasticsearch", "pgvector" or "memory"
	TopK    int    `mapstructure:"top_k"`
	Table   string `mapstructure:"table"` // pgvector table name
}

// PipelineConfig carries the tunables of the answer pipeline.
type PipelineConfig struct {
	MinRelevance float64 `mapstructure:"min_relevance"`
	MaxPassages  int     `mapstructure:"max_passages"`
}

type SanitizerConfig struct {
	MaxLength  int  `mapstructure:"max_length"`
	StrictMode bool `mapstructure:"strict_mode"`
}

// SessionConfig carries the TTLs of the Redis session store.
type SessionConfig struct {
	SessionTTL      int `mapstructure:"session_ttl"`      // seconds
	ConversationTTL int `mapstructure:"conversation_ttl"` // seconds
	HistoryLimit    int `mapstructure:"history_limit"`
}

// --- Security Configuration ---

type SecurityConfig struct {
	APIKeys     []string        `mapstructure:"api_keys"`
	RateLimit   RateLimitConfig `mapstructure:"rate_limit"`
	MaxBodySize int64           `mapstructure:"max_body_size"` // bytes
}

type RateLimitConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute"`
	RequestsPerHour   int  `mapstructure:"requests_per_hour"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}
