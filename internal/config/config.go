// Package config provides file-based configuration for docintel.
// Configuration is loaded with a layered precedence: defaults, then the
// config file, then env vars. Environment variables always win, so
// env-only deployments are unaffected.
//
// File search order:
//  1. --config CLI flag (explicit path)
//  2. DOCINTEL_CONFIG environment variable
//  3. ~/.docintel/config.yaml
//  4. ./docintel.yaml
//  5. ./docintel.toml
//
// Files ending in .toml are parsed as TOML, everything else as YAML.
// If no file is found the system runs entirely from env vars.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration structure.
// Keys mirror the env var naming (lowercase, underscored).
type Config struct {
	// Model configures the LLM chat model provider.
	Model ModelConfig `yaml:"model" toml:"model"`

	// Embedding configures the embedding provider.
	Embedding EmbeddingConfig `yaml:"embedding" toml:"embedding"`

	// Index selects and configures the retrieval index backend.
	Index IndexConfig `yaml:"index" toml:"index"`

	// Ingestion configures text extraction and chunking.
	Ingestion IngestionConfig `yaml:"ingestion" toml:"ingestion"`

	// Session configures conversation limits.
	Session SessionConfig `yaml:"session" toml:"session"`

	// Server configures the HTTP server.
	Server ServerConfig `yaml:"server" toml:"server"`

	// Logging configures structured logging.
	Logging LoggingConfig `yaml:"logging" toml:"logging"`

	// History configures conversation history persistence.
	History HistoryConfig `yaml:"history" toml:"history"`

	// Tracing configures Langfuse tracing integration.
	Tracing TracingConfig `yaml:"tracing" toml:"tracing"`
}

// ModelConfig holds LLM chat model settings.
type ModelConfig struct {
	// Provider selects the backend: ollama, openai, azure, bedrock, gemini.
	Provider string `yaml:"provider" toml:"provider"`

	// MaxTokens is the maximum number of tokens in the response.
	MaxTokens int `yaml:"max_tokens" toml:"max_tokens"`

	// Temperature controls response randomness (0.0 to 1.0).
	Temperature float32 `yaml:"temperature" toml:"temperature"`

	// Ollama holds Ollama-specific settings.
	Ollama OllamaConfig `yaml:"ollama" toml:"ollama"`

	// OpenAI holds OpenAI-specific settings.
	OpenAI OpenAIConfig `yaml:"openai" toml:"openai"`

	// Azure holds Azure OpenAI-specific settings.
	Azure AzureConfig `yaml:"azure" toml:"azure"`

	// Bedrock holds AWS Bedrock-specific settings.
	Bedrock BedrockConfig `yaml:"bedrock" toml:"bedrock"`

	// Gemini holds Google Gemini-specific settings.
	Gemini GeminiConfig `yaml:"gemini" toml:"gemini"`
}

// OllamaConfig holds Ollama provider settings.
type OllamaConfig struct {
	// Host is the Ollama API endpoint.
	Host string `yaml:"host" toml:"host"`
	// Model is the Ollama model name.
	Model string `yaml:"model" toml:"model"`
}

// OpenAIConfig holds OpenAI provider settings.
type OpenAIConfig struct {
	// APIKey is the OpenAI API key. Prefer env var OPENAI_API_KEY.
	APIKey string `yaml:"api_key" toml:"api_key"`
	// Model is the OpenAI model name.
	Model string `yaml:"model" toml:"model"`
}

// AzureConfig holds Azure OpenAI provider settings.
type AzureConfig struct {
	// APIKey is the Azure OpenAI API key. Prefer env var AZURE_OPENAI_API_KEY.
	APIKey string `yaml:"api_key" toml:"api_key"`
	// Endpoint is the Azure OpenAI resource endpoint.
	Endpoint string `yaml:"endpoint" toml:"endpoint"`
	// Deployment is the Azure OpenAI deployment name.
	Deployment string `yaml:"deployment" toml:"deployment"`
	// APIVersion is the Azure OpenAI API version.
	APIVersion string `yaml:"api_version" toml:"api_version"`
}

// BedrockConfig holds AWS Bedrock provider settings.
type BedrockConfig struct {
	// Region is the AWS region for Bedrock.
	Region string `yaml:"region" toml:"region"`
	// ModelID is the Bedrock model identifier.
	ModelID string `yaml:"model_id" toml:"model_id"`
}

// GeminiConfig holds Google Gemini provider settings.
type GeminiConfig struct {
	// APIKey is the Google API key. Prefer env var GOOGLE_API_KEY.
	APIKey string `yaml:"api_key" toml:"api_key"`
	// Model is the Gemini model name.
	Model string `yaml:"model" toml:"model"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	// Provider selects the embedding backend (hash, ollama, openai, azure).
	Provider string `yaml:"provider" toml:"provider"`
	// Model is the embedding model name.
	Model string `yaml:"model" toml:"model"`
	// Dimensions overrides the embedding vector size.
	Dimensions int `yaml:"dimensions" toml:"dimensions"`
	// APIKey is the embedding API key. Prefer env var EMBEDDING_API_KEY.
	APIKey string `yaml:"api_key" toml:"api_key"`
	// Endpoint is the embedding API endpoint.
	Endpoint string `yaml:"endpoint" toml:"endpoint"`
}

// IndexConfig holds retrieval index settings.
type IndexConfig struct {
	// Backend is memory or qdrant.
	Backend string `yaml:"backend" toml:"backend"`
	// TopK is the number of chunks retrieved per question.
	TopK int `yaml:"top_k" toml:"top_k"`
	// Qdrant configures the qdrant backend.
	Qdrant QdrantConfig `yaml:"qdrant" toml:"qdrant"`
}

// QdrantConfig holds Qdrant vector store settings.
type QdrantConfig struct {
	// Host is the Qdrant server hostname.
	Host string `yaml:"host" toml:"host"`
	// Port is the Qdrant gRPC port.
	Port int `yaml:"port" toml:"port"`
	// Collection is the Qdrant collection name.
	Collection string `yaml:"collection" toml:"collection"`
	// APIKey is the Qdrant API key. Prefer env var QDRANT_API_KEY.
	APIKey string `yaml:"api_key" toml:"api_key"`
	// TLS enables TLS for the Qdrant connection.
	TLS bool `yaml:"tls" toml:"tls"`
}

// IngestionConfig holds extraction and chunking settings.
type IngestionConfig struct {
	// ChunkSize is the number of runes per chunk.
	ChunkSize int `yaml:"chunk_size" toml:"chunk_size"`
	// ChunkOverlap is the number of runes shared by consecutive chunks.
	ChunkOverlap int `yaml:"chunk_overlap" toml:"chunk_overlap"`
	// PDFToText is the pdftotext binary path.
	PDFToText string `yaml:"pdftotext_path" toml:"pdftotext_path"`
}

// SessionConfig holds conversation limits.
type SessionConfig struct {
	// MaxMessages is the number of messages kept and replayed per session.
	MaxMessages int `yaml:"max_messages" toml:"max_messages"`
	// MaxActiveDocs caps the documents active in one session.
	MaxActiveDocs int `yaml:"max_active_docs" toml:"max_active_docs"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// APIKey is the Bearer token for API authentication. Prefer env var DOCINTEL_API_KEY.
	APIKey string `yaml:"api_key" toml:"api_key"`
	// UploadMaxBytes caps one upload request.
	UploadMaxBytes int64 `yaml:"upload_max_bytes" toml:"upload_max_bytes"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `yaml:"level" toml:"level"`
	// Format is the log output format: json, text.
	Format string `yaml:"format" toml:"format"`
}

// HistoryConfig holds conversation history settings.
type HistoryConfig struct {
	// DBPath is the SQLite database path. Empty keeps history in memory;
	// "default" uses ~/.docintel/history.db.
	DBPath string `yaml:"db_path" toml:"db_path"`
}

// TracingConfig holds Langfuse tracing settings.
type TracingConfig struct {
	// PublicKey is the Langfuse public key. Prefer env var LANGFUSE_PUBLIC_KEY.
	PublicKey string `yaml:"public_key" toml:"public_key"`
	// SecretKey is the Langfuse secret key. Prefer env var LANGFUSE_SECRET_KEY.
	SecretKey string `yaml:"secret_key" toml:"secret_key"`
	// Host is the Langfuse API host.
	Host string `yaml:"host" toml:"host"`
}

// envMapping maps config fields to their corresponding env var names.
// Only non-empty file values are applied; env vars always take precedence.
var envMapping = []struct {
	envKey string
	value  func(*Config) string
}{
	{"MODEL_PROVIDER", func(c *Config) string { return c.Model.Provider }},
	{"MODEL_MAX_TOKENS", func(c *Config) string { return intStr(c.Model.MaxTokens) }},
	{"MODEL_TEMPERATURE", func(c *Config) string { return float32Str(c.Model.Temperature) }},
	{"OLLAMA_HOST", func(c *Config) string { return c.Model.Ollama.Host }},
	{"OLLAMA_MODEL", func(c *Config) string { return c.Model.Ollama.Model }},
	{"OPENAI_API_KEY", func(c *Config) string { return c.Model.OpenAI.APIKey }},
	{"OPENAI_MODEL", func(c *Config) string { return c.Model.OpenAI.Model }},
	{"AZURE_OPENAI_API_KEY", func(c *Config) string { return c.Model.Azure.APIKey }},
	{"AZURE_OPENAI_ENDPOINT", func(c *Config) string { return c.Model.Azure.Endpoint }},
	{"AZURE_OPENAI_DEPLOYMENT", func(c *Config) string { return c.Model.Azure.Deployment }},
	{"AZURE_OPENAI_API_VERSION", func(c *Config) string { return c.Model.Azure.APIVersion }},
	{"AWS_REGION", func(c *Config) string { return c.Model.Bedrock.Region }},
	{"BEDROCK_MODEL_ID", func(c *Config) string { return c.Model.Bedrock.ModelID }},
	{"GOOGLE_API_KEY", func(c *Config) string { return c.Model.Gemini.APIKey }},
	{"GEMINI_MODEL", func(c *Config) string { return c.Model.Gemini.Model }},
	{"EMBEDDING_PROVIDER", func(c *Config) string { return c.Embedding.Provider }},
	{"EMBEDDING_MODEL", func(c *Config) string { return c.Embedding.Model }},
	{"EMBEDDING_DIMENSIONS", func(c *Config) string { return intStr(c.Embedding.Dimensions) }},
	{"EMBEDDING_API_KEY", func(c *Config) string { return c.Embedding.APIKey }},
	{"EMBEDDING_ENDPOINT", func(c *Config) string { return c.Embedding.Endpoint }},
	{"INDEX_BACKEND", func(c *Config) string { return c.Index.Backend }},
	{"RETRIEVAL_TOP_K", func(c *Config) string { return intStr(c.Index.TopK) }},
	{"QDRANT_HOST", func(c *Config) string { return c.Index.Qdrant.Host }},
	{"QDRANT_PORT", func(c *Config) string { return intStr(c.Index.Qdrant.Port) }},
	{"QDRANT_COLLECTION", func(c *Config) string { return c.Index.Qdrant.Collection }},
	{"QDRANT_API_KEY", func(c *Config) string { return c.Index.Qdrant.APIKey }},
	{"QDRANT_TLS", func(c *Config) string { return boolStr(c.Index.Qdrant.TLS) }},
	{"CHUNK_SIZE", func(c *Config) string { return intStr(c.Ingestion.ChunkSize) }},
	{"CHUNK_OVERLAP", func(c *Config) string { return intStr(c.Ingestion.ChunkOverlap) }},
	{"PDFTOTEXT_PATH", func(c *Config) string { return c.Ingestion.PDFToText }},
	{"SESSION_MAX_MESSAGES", func(c *Config) string { return intStr(c.Session.MaxMessages) }},
	{"SESSION_MAX_ACTIVE_DOCS", func(c *Config) string { return intStr(c.Session.MaxActiveDocs) }},
	{"DOCINTEL_API_KEY", func(c *Config) string { return c.Server.APIKey }},
	{"UPLOAD_MAX_BYTES", func(c *Config) string { return int64Str(c.Server.UploadMaxBytes) }},
	{"LOG_LEVEL", func(c *Config) string { return c.Logging.Level }},
	{"LOG_FORMAT", func(c *Config) string { return c.Logging.Format }},
	{"DOCINTEL_HISTORY_DB", func(c *Config) string { return c.History.DBPath }},
	{"LANGFUSE_PUBLIC_KEY", func(c *Config) string { return c.Tracing.PublicKey }},
	{"LANGFUSE_SECRET_KEY", func(c *Config) string { return c.Tracing.SecretKey }},
	{"LANGFUSE_HOST", func(c *Config) string { return c.Tracing.Host }},
}

// Load reads a config file and applies non-empty values as environment
// variables. Existing env vars are never overwritten (env always wins).
// Returns the path that was loaded, or empty string if no file was found.
func Load(explicitPath string, log *slog.Logger) (string, error) {
	path := resolveConfigPath(explicitPath)
	if path == "" {
		log.Debug("config: no config file found, using env vars only")
		return "", nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	cfg, err := parse(path, data)
	if err != nil {
		return "", err
	}

	applied := 0
	for _, m := range envMapping {
		fileVal := m.value(cfg)
		if fileVal == "" {
			continue
		}
		if os.Getenv(m.envKey) != "" {
			continue // env var already set, do not override
		}
		if err := os.Setenv(m.envKey, fileVal); err != nil {
			return "", fmt.Errorf("config: set %s: %w", m.envKey, err)
		}
		applied++
	}

	log.Info("config: loaded config file",
		slog.String("path", path),
		slog.Int("keys_applied", applied),
	)

	return path, nil
}

// parse decodes data as TOML or YAML based on the extension of path.
func parse(path string, data []byte) (*Config, error) {
	var cfg Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
		}
		return &cfg, nil
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}
	return &cfg, nil
}

// resolveConfigPath returns the first config file path that exists.
func resolveConfigPath(explicit string) string {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit
		}
		return ""
	}

	if envPath := os.Getenv("DOCINTEL_CONFIG"); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		p := filepath.Join(home, ".docintel", "config.yaml")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	for _, p := range []string{"docintel.yaml", "docintel.toml"} {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}

// intStr converts an int to string, returning "" for zero values.
func intStr(v int) string {
	if v == 0 {
		return ""
	}
	return strconv.Itoa(v)
}

// int64Str converts an int64 to string, returning "" for zero values.
func int64Str(v int64) string {
	if v == 0 {
		return ""
	}
	return strconv.FormatInt(v, 10)
}

// float32Str converts a float32 to string, returning "" for zero values.
func float32Str(v float32) string {
	if v == 0 {
		return ""
	}
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", v), "0"), ".")
}

// boolStr converts a bool to string, returning "" for false.
func boolStr(v bool) string {
	if !v {
		return ""
	}
	return "true"
}
