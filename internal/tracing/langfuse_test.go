package tracing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigFromEnv_DefaultHost(t *testing.T) {
	t.Setenv("LANGFUSE_HOST", "")
	t.Setenv("LANGFUSE_PUBLIC_KEY", "pk")
	t.Setenv("LANGFUSE_SECRET_KEY", "")

	cfg := ConfigFromEnv()
	assert.Equal(t, DefaultHost, cfg.Host)
	assert.False(t, cfg.Enabled())
}

func TestNew_DisabledWithoutKeys(t *testing.T) {
	h, flush, ok := New(&Config{Host: DefaultHost, PublicKey: "pk"})
	assert.False(t, ok)
	assert.Nil(t, h)
	assert.Nil(t, flush)

	_, _, ok = New(nil)
	assert.False(t, ok)
}

func TestConfig_Enabled(t *testing.T) {
	assert.True(t, (&Config{PublicKey: "pk", SecretKey: "sk"}).Enabled())
}
