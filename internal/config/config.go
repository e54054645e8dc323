// Package config loads Trident configuration from environment variables with
// an optional YAML overlay.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Provider names an LLM/embedding provider.
type Provider string

const (
	ProviderOllama    Provider = "ollama"
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
)

// Modalities states which index modalities are enabled for this process.
// Read-only after start; changing it requires re-initializing backends.
type Modalities struct {
	Vector   bool `yaml:"vector"`
	FullText bool `yaml:"fulltext"`
	Graph    bool `yaml:"graph"`
}

// Any reports whether at least one modality is enabled.
func (m Modalities) Any() bool {
	return m.Vector || m.FullText || m.Graph
}

// Config holds all configuration values.
type Config struct {
	// Modalities
	Modalities Modalities `yaml:"modalities"`

	// Vector backend (empty DSN selects the in-memory index)
	PostgresDSN  string `yaml:"postgres_dsn"`
	VectorTable  string `yaml:"vector_table"`
	VectorDim    int    `yaml:"vector_dim"`

	// Graph backend (empty URL selects the in-memory graph)
	SurrealDBURL       string `yaml:"surrealdb_url"`
	SurrealDBNamespace string `yaml:"surrealdb_namespace"`
	SurrealDBDatabase  string `yaml:"surrealdb_database"`
	SurrealDBUser      string `yaml:"surrealdb_user"`
	SurrealDBPass      string `yaml:"surrealdb_pass"`

	// Embedding
	EmbedProvider Provider `yaml:"embed_provider"`
	EmbedModel    string   `yaml:"embed_model"`
	OllamaHost    string   `yaml:"ollama_host"`
	OpenAIAPIKey  string   `yaml:"openai_api_key"`
	// EmbedRPS caps embedding calls per second (0 = unlimited).
	EmbedRPS float64 `yaml:"embed_rps"`

	// LLM (extraction + answer synthesis)
	LLMProvider     Provider `yaml:"llm_provider"`
	LLMModel        string   `yaml:"llm_model"`
	AnthropicAPIKey string   `yaml:"anthropic_api_key"`

	// Extraction
	ExtractStrategy  string        `yaml:"extract_strategy"` // unconstrained | schema | dynamic
	ExtractStrict    bool          `yaml:"extract_strict"`
	ExtractWorkers   int           `yaml:"extract_workers"`
	ExtractBatchSize int           `yaml:"extract_batch_size"`
	ExtractTimeout   time.Duration `yaml:"extract_timeout"`
	MaxPathsPerChunk int           `yaml:"max_paths_per_chunk"`

	// Conversion
	ConvertTimeout time.Duration `yaml:"convert_timeout"`

	// Chunking
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`

	// Retrieval
	FusionK    int     `yaml:"fusion_k"`
	TopK       int     `yaml:"top_k"`
	ScoreFloor float64 `yaml:"score_floor"`

	// Logging
	LogFile  string     `yaml:"log_file"`
	LogLevel slog.Level `yaml:"-"`
}

// Load reads configuration from environment variables.
func Load() Config {
	return Config{
		Modalities: Modalities{
			Vector:   getBool("TRIDENT_VECTOR", true),
			FullText: getBool("TRIDENT_FULLTEXT", true),
			Graph:    getBool("TRIDENT_GRAPH", true),
		},

		PostgresDSN: getEnv("TRIDENT_POSTGRES_DSN", ""),
		VectorTable: getEnv("TRIDENT_VECTOR_TABLE", "trident_chunks"),
		VectorDim:   getInt("TRIDENT_VECTOR_DIM", 384),

		SurrealDBURL:       getEnv("SURREALDB_URL", ""),
		SurrealDBNamespace: getEnv("SURREALDB_NAMESPACE", "trident"),
		SurrealDBDatabase:  getEnv("SURREALDB_DATABASE", "graph"),
		SurrealDBUser:      getEnv("SURREALDB_USER", "root"),
		SurrealDBPass:      getEnv("SURREALDB_PASS", "root"),

		EmbedProvider: Provider(getEnv("TRIDENT_EMBED_PROVIDER", string(ProviderOllama))),
		EmbedModel:    getEnv("TRIDENT_EMBED_MODEL", "all-minilm:l6-v2"),
		OllamaHost:    getEnv("OLLAMA_HOST", "http://localhost:11434"),
		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		EmbedRPS:      getFloat("TRIDENT_EMBED_RPS", 0),

		LLMProvider:     Provider(getEnv("TRIDENT_LLM_PROVIDER", string(ProviderOllama))),
		LLMModel:        getEnv("TRIDENT_LLM_MODEL", "llama3"),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),

		ExtractStrategy:  getEnv("TRIDENT_EXTRACT_STRATEGY", "unconstrained"),
		ExtractStrict:    getBool("TRIDENT_EXTRACT_STRICT", false),
		ExtractWorkers:   getInt("TRIDENT_EXTRACT_WORKERS", 4),
		ExtractBatchSize: getInt("TRIDENT_EXTRACT_BATCH", 8),
		ExtractTimeout:   getDuration("TRIDENT_EXTRACT_TIMEOUT", 2*time.Minute),
		MaxPathsPerChunk: getInt("TRIDENT_MAX_PATHS_PER_CHUNK", 20),

		ConvertTimeout: getDuration("TRIDENT_CONVERT_TIMEOUT", time.Minute),

		ChunkSize:    getInt("TRIDENT_CHUNK_SIZE", 1000),
		ChunkOverlap: getInt("TRIDENT_CHUNK_OVERLAP", 200),

		FusionK:    getInt("TRIDENT_FUSION_K", 60),
		TopK:       getInt("TRIDENT_TOP_K", 15),
		ScoreFloor: getFloat("TRIDENT_SCORE_FLOOR", 0.001),

		LogFile:  getEnv("TRIDENT_LOG_FILE", "/tmp/trident.log"),
		LogLevel: parseLogLevel(getEnv("TRIDENT_LOG_LEVEL", "INFO")),
	}
}

// LoadFile loads env config, then merges the YAML file over it.
func LoadFile(path string) (Config, error) {
	cfg := Load()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config file: %w", err)
	}
	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getBool(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return b
}

func getInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func getFloat(key string, defaultVal float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}
	return d
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
