// Package config loads reposync's configuration: viper-layered defaults,
// an optional config file, then environment variables, unmarshaled into
// a mapstructure-tagged Config struct.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/sevigo/reposync/internal/logger"
)

const (
	llmProviderGemini = "gemini"
	llmProviderOllama = "ollama"
)

// Config is the top-level configuration structure, layered roughly
// component-for-component onto the seven-part core plus the ambient
// server/database/logging concerns.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Workers   WorkersConfig   `mapstructure:"workers"`
	Providers ProvidersConfig `mapstructure:"providers"`
	AI        AIConfig        `mapstructure:"ai"`
	Chunking  ChunkingConfig  `mapstructure:"chunking"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Database  DBConfig        `mapstructure:"database"`
	Logging   logger.Config   `mapstructure:"logging"`
}

// ServerConfig configures the HTTP transport wiring in cmd/server.
type ServerConfig struct {
	Port string `mapstructure:"port"`
}

// WorkersConfig configures the Repository Manager's worker pool.
type WorkersConfig struct {
	Count int `mapstructure:"count"`
}

// ResolvedCount returns Count, defaulting to runtime.NumCPU(), minimum
// 1.
func (w WorkersConfig) ResolvedCount() int {
	if w.Count > 0 {
		return w.Count
	}
	n := runtime.NumCPU()
	if n < 1 {
		n = 1
	}
	return n
}

// ProvidersConfig holds the shared HTTP client configuration and the
// Source Acquirer's file-filtering/clone knobs. Provider
// credentials are supplied per-descriptor (RepositoryDescriptor.AccessToken),
// not via a shared App-installation credential source.
type ProvidersConfig struct {
	UserAgent          string `mapstructure:"user_agent"`
	RequestTimeoutSecs int    `mapstructure:"request_timeout_secs"`

	MaxFileBytes         int64    `mapstructure:"max_file_bytes"`
	ExcludeGlobs         []string `mapstructure:"exclude_globs"`
	BinaryExtensionAllow []string `mapstructure:"binary_extension_allow"`
	CloneWorkDir         string   `mapstructure:"clone_work_dir"`
	CloneDepth           int      `mapstructure:"clone_depth"`
}

// AIConfig selects and parameterizes the Embedder and Generator providers.
type AIConfig struct {
	LLMProvider      string  `mapstructure:"llm_provider"`
	EmbedderProvider string  `mapstructure:"embedder_provider"`
	OllamaHost       string  `mapstructure:"ollama_host"`
	GeminiAPIKey     string  `mapstructure:"gemini_api_key"`
	GeneratorModel   string  `mapstructure:"generator_model"`
	EmbedderModel    string  `mapstructure:"embedder_model"`
	EmbedderDim      int     `mapstructure:"embedder_dimension"`
	Temperature      float64 `mapstructure:"temperature"`
	MaxOutputTokens  int     `mapstructure:"max_output_tokens"`
	EmbedBatchSize   int     `mapstructure:"embed_batch_size"`
	EmbedConcurrency int     `mapstructure:"embed_concurrency"`
}

// Validate checks the AI section's documented preconditions, returning a
// plain error that describes the first failed check (callers wrap it with
// fmt.Errorf).
func (c *AIConfig) Validate() error {
	if c.LLMProvider != llmProviderGemini && c.LLMProvider != llmProviderOllama {
		return fmt.Errorf("ai.llm_provider must be %q or %q, got %q", llmProviderGemini, llmProviderOllama, c.LLMProvider)
	}
	if c.EmbedderProvider != llmProviderGemini && c.EmbedderProvider != llmProviderOllama {
		return fmt.Errorf("ai.embedder_provider must be %q or %q, got %q", llmProviderGemini, llmProviderOllama, c.EmbedderProvider)
	}
	if (c.LLMProvider == llmProviderGemini || c.EmbedderProvider == llmProviderGemini) && c.GeminiAPIKey == "" {
		return errors.New("ai.gemini_api_key is required for gemini provider")
	}
	return nil
}

// ChunkingConfig selects the Chunker's parameter preset.
type ChunkingConfig struct {
	Preset string `mapstructure:"preset"`
}

// RetrievalConfig parameterizes the RAG Engine.
type RetrievalConfig struct {
	TopK                 int     `mapstructure:"top_k"`
	ScoreThreshold       float64 `mapstructure:"score_threshold"`
	ReservedOutputTokens int     `mapstructure:"reserved_output_tokens"`
	MaxContextMessages   int     `mapstructure:"max_context_messages"`
	MaxContextChars      int     `mapstructure:"max_context_chars"`
}

// StorageConfig selects and configures the Vector Store backend.
type StorageConfig struct {
	VectorStore string `mapstructure:"vector_store"` // "memory" or "qdrant"
	QdrantHost  string `mapstructure:"qdrant_host"`
	QdrantPort  int    `mapstructure:"qdrant_port"`
	QdrantKey   string `mapstructure:"qdrant_api_key"`
	QdrantTLS   bool   `mapstructure:"qdrant_tls"`
	RepoPath    string `mapstructure:"repo_path"`
}

// DBConfig configures the optional Postgres-backed registry
// persistence.
type DBConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Driver          string        `mapstructure:"driver"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Database        string        `mapstructure:"database"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

func (db *DBConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		db.Host, db.Port, db.Username, db.Password, db.Database, db.SSLMode)
}

// LoadConfig loads configuration with the hierarchy: flags (handled by
// the caller) > env vars > config file > defaults.
func LoadConfig() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.reposync")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		slog.Info("no config file found, using defaults and environment variables")
	} else {
		slog.Info("loaded configuration", "file", v.ConfigFileUsed())
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")

	v.SetDefault("workers.count", 0) // 0 -> runtime.NumCPU(), see WorkersConfig.ResolvedCount

	v.SetDefault("providers.user_agent", "reposync/1.0")
	v.SetDefault("providers.request_timeout_secs", 30)
	v.SetDefault("providers.max_file_bytes", 1<<20) // 1 MiB per-file cap
	v.SetDefault("providers.exclude_globs", []string{"*.min.js", "*.lock", "*.png", "*.jpg", "*.jpeg", "*.gif", "*.pdf", "*.zip"})
	v.SetDefault("providers.binary_extension_allow", []string{
		"go", "py", "js", "ts", "tsx", "jsx", "rs", "java", "c", "h", "cc", "cpp", "hpp",
		"rb", "php", "cs", "swift", "kt", "scala", "sh", "bash", "sql",
		"md", "markdown", "rst", "txt", "json", "yaml", "yml", "toml", "ini", "cfg", "xml",
	})
	v.SetDefault("providers.clone_work_dir", "")
	v.SetDefault("providers.clone_depth", 1)

	v.SetDefault("ai.llm_provider", "ollama")
	v.SetDefault("ai.embedder_provider", "ollama")
	v.SetDefault("ai.ollama_host", "http://localhost:11434")
	v.SetDefault("ai.generator_model", "llama3")
	v.SetDefault("ai.embedder_model", "nomic-embed-text")
	v.SetDefault("ai.embedder_dimension", 768)
	v.SetDefault("ai.temperature", 0.2)
	v.SetDefault("ai.max_output_tokens", 1024)
	v.SetDefault("ai.embed_batch_size", 500)
	v.SetDefault("ai.embed_concurrency", 4)

	v.SetDefault("chunking.preset", "code")

	v.SetDefault("retrieval.top_k", 5)
	v.SetDefault("retrieval.score_threshold", 0.3) // tuned for recall over precision
	v.SetDefault("retrieval.reserved_output_tokens", 1024)
	v.SetDefault("retrieval.max_context_messages", 20)
	v.SetDefault("retrieval.max_context_chars", 8000)

	v.SetDefault("storage.vector_store", "memory")
	v.SetDefault("storage.qdrant_host", "localhost")
	v.SetDefault("storage.qdrant_port", 6334)
	v.SetDefault("storage.repo_path", "./data/repos")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output", "stdout")

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.database", "reposync")
	v.SetDefault("database.username", "postgres")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "5m")
	v.SetDefault("database.conn_max_idle_time", "5m")
}

// ValidateForServer checks the settings only the long-running server
// requires (the CLI's one-shot commands tolerate the same minimum).
func (c *Config) ValidateForServer() error {
	return c.AI.Validate()
}

// ValidateForCLI checks the settings the embedded-library CLI surface
// requires before it can register, query, or reindex a repository.
func (c *Config) ValidateForCLI() error {
	return c.AI.Validate()
}
