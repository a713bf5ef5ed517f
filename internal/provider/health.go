package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// healthTimeout bounds a single probe when ctx carries no deadline.
const healthTimeout = 5 * time.Second

// httpHealthCheck probes a backend with a GET that lists models, which costs
// no tokens.
type httpHealthCheck struct {
	// url is the probe endpoint.
	url string
	// header holds auth headers sent with the probe.
	header http.Header
	// client performs the request.
	client *http.Client
}

// NewHealthCheck returns the zero-token probe for cfg's backend, or nil when
// the backend has none (bedrock, gemini).
func NewHealthCheck(cfg *Config) HealthCheckConfig {
	h := http.Header{}
	switch cfg.Backend {
	case BackendOllama:
		return &httpHealthCheck{
			url:    strings.TrimRight(cfg.Ollama.Host, "/") + "/api/tags",
			header: h,
			client: &http.Client{Timeout: healthTimeout},
		}
	case BackendOpenAI:
		base := cfg.OpenAI.BaseURL
		if base == "" {
			base = "https://api.openai.com/v1"
		}
		h.Set("Authorization", "Bearer "+cfg.OpenAI.APIKey)
		return &httpHealthCheck{
			url:    strings.TrimRight(base, "/") + "/models",
			header: h,
			client: &http.Client{Timeout: healthTimeout},
		}
	case BackendAzure:
		h.Set("api-key", cfg.AzureOpenAI.APIKey)
		return &httpHealthCheck{
			url: fmt.Sprintf("%s/openai/models?api-version=%s",
				strings.TrimRight(cfg.AzureOpenAI.Endpoint, "/"), cfg.AzureOpenAI.APIVersion),
			header: h,
			client: &http.Client{Timeout: healthTimeout},
		}
	}
	return nil
}

// HealthCheck returns nil when the endpoint answers with a 2xx status.
func (c *httpHealthCheck) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return fmt.Errorf("provider: build health request: %w", err)
	}
	req.Header = c.header.Clone()

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("provider: health request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("provider: health check returned HTTP %d", resp.StatusCode)
	}
	return nil
}
