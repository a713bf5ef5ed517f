package embedder

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// knownChatModelPrefixes contains name fragments that identify chat/completion
// models which are NOT suitable for embedding.
var knownChatModelPrefixes = []string{
	"gpt-4",
	"gpt-3.5",
	"gpt-35",
	"o1",
	"o3",
	"llama3",
	"llama2",
	"llama-3",
	"llama-2",
	"mistral",
	"mixtral",
	"gemma",
	"phi-",
	"phi3",
	"claude",
	"command-r",
	"deepseek",
	"qwen",
	"solar",
	"vicuna",
	"falcon",
	"yi-",
}

// looksLikeChatModel returns true when the model name resembles a known
// chat/completion model rather than a dedicated embedding model.
func looksLikeChatModel(model string) bool {
	lower := strings.ToLower(model)
	for _, prefix := range knownChatModelPrefixes {
		if strings.Contains(lower, prefix) {
			return true
		}
	}
	return false
}

// ValidateForRAG is a pre-flight check of the embedding configuration, run
// before any document is ingested so operators get a clear startup error
// instead of a failed first upload. It returns an error when a remote
// backend is missing required credentials and logs a warning when
// EMBEDDING_MODEL looks like a chat model.
func ValidateForRAG(log *slog.Logger) error {
	backend := Backend()

	switch backend {
	case "hash":
		if os.Getenv("INDEX_BACKEND") == "qdrant" {
			log.Warn("embedder: qdrant index backend with the local hashing embedder",
				slog.String("hint", "set EMBEDDING_PROVIDER=ollama (or openai/azure) for semantic retrieval"),
			)
		}
		return nil

	case "ollama":

	case "openai":
		if getEnv("EMBEDDING_API_KEY") == "" && getEnv("OPENAI_API_KEY") == "" {
			return fmt.Errorf("embedder: no OpenAI API key found, set OPENAI_API_KEY or EMBEDDING_API_KEY")
		}

	case "azure":
		if getEnv("EMBEDDING_API_KEY") == "" && getEnv("AZURE_OPENAI_API_KEY") == "" {
			return fmt.Errorf("embedder: no Azure API key found, set AZURE_OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
		if getEnv("EMBEDDING_ENDPOINT") == "" && getEnv("AZURE_OPENAI_ENDPOINT") == "" {
			return fmt.Errorf("embedder: no Azure endpoint found, set AZURE_OPENAI_ENDPOINT or EMBEDDING_ENDPOINT")
		}

	default:
		return fmt.Errorf("embedder: unknown backend %q (valid values: hash, ollama, openai, azure)", backend)
	}

	if model := getEnv("EMBEDDING_MODEL"); model != "" && looksLikeChatModel(model) {
		log.Warn("embedder: EMBEDDING_MODEL looks like a chat model, not an embedding model",
			slog.String("model", model),
			slog.String("hint", "use a dedicated embedding model e.g. nomic-embed-text, text-embedding-3-small"),
		)
	}

	return nil
}
