// Package config loads BrainBox runtime configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Qdrant    QdrantConfig
	Redis     RedisConfig
	Embedding EmbeddingConfig
	LLM       LLMConfig
	Reranker  RerankerConfig
	Retrieval RetrievalConfig
	Ingestion IngestionConfig
}

type ServerConfig struct {
	Host           string
	Port           string
	Mode           string // "debug" or "release"
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	RequestLogging bool
	MaxUploadBytes int64
}

type QdrantConfig struct {
	Host               string
	Port               int
	APIKey             string
	UseTLS             bool
	RegistryCollection string
	UpsertRetries      int
	UpsertBackoff      time.Duration
	Timeout            time.Duration
}

func (c QdrantConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("qdrant host is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid qdrant port: %d", c.Port)
	}
	if c.RegistryCollection == "" {
		return fmt.Errorf("registry collection name is required")
	}
	return nil
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Enabled  bool
	TTL      time.Duration
}

type EmbeddingConfig struct {
	BaseURL     string
	APIKey      string
	DenseModel  string
	SparseModel string
	DenseDim    int
	Timeout     time.Duration
}

func (c EmbeddingConfig) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("embedding base URL is required")
	}
	if c.DenseDim <= 0 {
		return fmt.Errorf("dense dimension must be positive, got %d", c.DenseDim)
	}
	return nil
}

type LLMConfig struct {
	BaseURL       string
	APIKey        string
	AnswerModel   string
	RewardBaseURL string
	RewardAPIKey  string
	RewardModel   string
	InstructModel string
	Temperature   float64
	MaxTokens     int
	Timeout       time.Duration
	MaxRetries    int
	// RatePerSecond throttles calls to the answer model. The default of
	// 0.25 req/s matches the provider quota the service is deployed against.
	RatePerSecond float64
	RateBurst     int
}

func (c LLMConfig) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("llm base URL is required")
	}
	if c.AnswerModel == "" {
		return fmt.Errorf("answer model is required")
	}
	return nil
}

type RerankerConfig struct {
	Endpoint string
	APIKey   string
	Model    string
	Timeout  time.Duration
}

type RetrievalConfig struct {
	PrefetchLimit int // candidates fetched per vector space
	TopK          int // documents kept after reranking
}

type IngestionConfig struct {
	EmbedConcurrency int
	UpsertBatchSize  int
}

// Load reads configuration from the environment. A .env file in the working
// directory is honored when present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           getEnv("PORT", "8000"),
			Mode:           getEnv("GIN_MODE", "release"),
			ReadTimeout:    getDurationEnv("READ_TIMEOUT", 60*time.Second),
			WriteTimeout:   getDurationEnv("WRITE_TIMEOUT", 120*time.Second),
			RequestLogging: getBoolEnv("REQUEST_LOGGING", true),
			MaxUploadBytes: int64(getIntEnv("MAX_UPLOAD_BYTES", 64<<20)),
		},
		Qdrant: QdrantConfig{
			Host:               getEnv("QDRANT_HOST", "localhost"),
			Port:               getIntEnv("QDRANT_PORT", 6334),
			APIKey:             getEnv("QDRANT_API_KEY", ""),
			UseTLS:             getBoolEnv("QDRANT_USE_TLS", false),
			RegistryCollection: getEnv("REGISTRY_COLLECTION_NAME", "registry"),
			UpsertRetries:      getIntEnv("QDRANT_UPSERT_RETRIES", 3),
			UpsertBackoff:      getDurationEnv("QDRANT_UPSERT_BACKOFF", 500*time.Millisecond),
			Timeout:            getDurationEnv("QDRANT_TIMEOUT", 30*time.Second),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
			Enabled:  getBoolEnv("EMBEDDING_CACHE_ENABLED", false),
			TTL:      getDurationEnv("EMBEDDING_CACHE_TTL", 24*time.Hour),
		},
		Embedding: EmbeddingConfig{
			BaseURL:     getEnv("EMBEDDING_BASE_URL", "http://localhost:9000/v1"),
			APIKey:      getEnv("EMBEDDING_API_KEY", ""),
			DenseModel:  getEnv("DENSE_MODEL", "BAAI/bge-base-en-v1.5"),
			SparseModel: getEnv("SPARSE_MODEL", "Qdrant/bm42-all-minilm-l6-v2-attentions"),
			DenseDim:    getIntEnv("DENSE_DIM", 768),
			Timeout:     getDurationEnv("EMBEDDING_TIMEOUT", 30*time.Second),
		},
		LLM: LLMConfig{
			BaseURL:       getEnv("LLM_BASE_URL", "https://api.groq.com/openai/v1"),
			APIKey:        getEnv("GROQ_API_KEY", ""),
			AnswerModel:   getEnv("ANSWER_MODEL", "llama3-8b-8192"),
			RewardBaseURL: getEnv("REWARD_BASE_URL", "https://integrate.api.nvidia.com/v1"),
			RewardAPIKey:  getEnv("NVIDIA_API_KEY", ""),
			RewardModel:   getEnv("REWARD_MODEL", "nvidia/nemotron-4-340b-reward"),
			InstructModel: getEnv("INSTRUCT_MODEL", "nvidia/nemotron-4-340b-instruct"),
			Temperature:   getFloatEnv("LLM_TEMPERATURE", 0.3),
			MaxTokens:     getIntEnv("LLM_MAX_TOKENS", 1400),
			Timeout:       getDurationEnv("LLM_TIMEOUT", 60*time.Second),
			MaxRetries:    getIntEnv("LLM_MAX_RETRIES", 3),
			RatePerSecond: getFloatEnv("LLM_RATE_PER_SECOND", 0.25),
			RateBurst:     getIntEnv("LLM_RATE_BURST", 1),
		},
		Reranker: RerankerConfig{
			Endpoint: getEnv("RERANKER_ENDPOINT", ""),
			APIKey:   getEnv("RERANKER_API_KEY", ""),
			Model:    getEnv("RERANKER_MODEL", "cross-encoder/ms-marco-MiniLM-L-6-v2"),
			Timeout:  getDurationEnv("RERANKER_TIMEOUT", 30*time.Second),
		},
		Retrieval: RetrievalConfig{
			PrefetchLimit: getIntEnv("RETRIEVAL_PREFETCH_LIMIT", 20),
			TopK:          getIntEnv("RETRIEVAL_TOP_K", 4),
		},
		Ingestion: IngestionConfig{
			EmbedConcurrency: getIntEnv("INGEST_EMBED_CONCURRENCY", 4),
			UpsertBatchSize:  getIntEnv("INGEST_UPSERT_BATCH_SIZE", 64),
		},
	}
}

// Validate checks the sections a running service cannot do without.
func (c *Config) Validate() error {
	if err := c.Qdrant.Validate(); err != nil {
		return err
	}
	if err := c.Embedding.Validate(); err != nil {
		return err
	}
	return c.LLM.Validate()
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
