// Package provider constructs the chat models that generate answers,
// summaries, comparisons and chat replies, and wraps them in a Generator with
// a bounded retry. Supported backends: Ollama, OpenAI, Azure OpenAI,
// AWS Bedrock and Google Gemini.
package provider

import "context"

// Backend enumerates the supported LLM inference providers.
type Backend string

const (
	// BackendOllama selects a locally running Ollama instance.
	BackendOllama Backend = "ollama"
	// BackendOpenAI selects the OpenAI API.
	BackendOpenAI Backend = "openai"
	// BackendAzure selects Azure OpenAI Service.
	BackendAzure Backend = "azure"
	// BackendBedrock selects AWS Bedrock.
	BackendBedrock Backend = "bedrock"
	// BackendGemini selects Google Gemini via AI Studio.
	BackendGemini Backend = "gemini"
)

// HealthCheckConfig is a zero-token reachability probe for a backend. Backends
// without a cheap probe have no HealthCheckConfig.
type HealthCheckConfig interface {
	// HealthCheck returns nil when the backend answers.
	HealthCheck(ctx context.Context) error
}
