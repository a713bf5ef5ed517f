package provider

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
)

// constructors maps each backend to the function building its chat model.
var constructors = map[Backend]func(context.Context, *Config) (model.ToolCallingChatModel, error){
	BackendOllama:  newOllama,
	BackendOpenAI:  newOpenAI,
	BackendAzure:   newAzure,
	BackendBedrock: newBedrock,
	BackendGemini:  newGemini,
}

// New validates cfg and builds the chat model of the selected backend, so a
// misconfigured backend fails at startup instead of on the first query.
func New(ctx context.Context, cfg *Config) (model.ToolCallingChatModel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	build, ok := constructors[cfg.Backend]
	if !ok {
		return nil, fmt.Errorf("provider: unknown backend %q", cfg.Backend)
	}
	m, err := build(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("provider: init %s (%s): %w", cfg.Backend, cfg.ModelName(), err)
	}
	return m, nil
}
