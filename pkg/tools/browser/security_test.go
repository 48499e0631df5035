package browser

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFetcher(cfg Config) *Fetcher {
	return NewFetcher(cfg, zerolog.Nop())
}

func TestValidateURLSchemes(t *testing.T) {
	f := newTestFetcher(DefaultConfig())

	assert.NoError(t, f.ValidateURL("https://example.com/page"))
	assert.NoError(t, f.ValidateURL("http://example.com"))
	assert.Error(t, f.ValidateURL("ftp://example.com"))
	assert.Error(t, f.ValidateURL("file:///etc/passwd"))
}

func TestValidateURLFileAllowed(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AllowFileURLs = true
	f := newTestFetcher(cfg)

	assert.NoError(t, f.ValidateURL("file:///tmp/report.html"))
}

func TestValidateURLLocalhost(t *testing.T) {
	f := newTestFetcher(DefaultConfig())
	assert.Error(t, f.ValidateURL("http://localhost:8080"))
	assert.Error(t, f.ValidateURL("http://127.0.0.1/admin"))
	assert.Error(t, f.ValidateURL("http://svc.localhost"))

	cfg := DefaultConfig()
	cfg.AllowLocalhostURLs = true
	open := newTestFetcher(cfg)
	assert.NoError(t, open.ValidateURL("http://localhost:8080"))
}

func TestValidateURLDomainLists(t *testing.T) {
	t.Run("blocked domains", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.BlockedDomains = []string{"evil.test"}
		f := newTestFetcher(cfg)

		assert.Error(t, f.ValidateURL("https://evil.test/x"))
		assert.Error(t, f.ValidateURL("https://sub.evil.test/x"))
		assert.NoError(t, f.ValidateURL("https://good.test/x"))
	})

	t.Run("allow list", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.AllowedDomains = []string{"docs.test"}
		f := newTestFetcher(cfg)

		assert.NoError(t, f.ValidateURL("https://docs.test/guide"))
		assert.NoError(t, f.ValidateURL("https://api.docs.test/guide"))
		assert.Error(t, f.ValidateURL("https://other.test/guide"))
	})

	t.Run("block overrides allow", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.AllowedDomains = []string{"docs.test"}
		cfg.BlockedDomains = []string{"bad.docs.test"}
		f := newTestFetcher(cfg)

		assert.Error(t, f.ValidateURL("https://bad.docs.test/guide"))
		assert.NoError(t, f.ValidateURL("https://docs.test/guide"))
	})
}

func TestDefinitionSchema(t *testing.T) {
	def := Definition()
	require.Equal(t, "browse_page", def.Name)

	schema := def.Schema()
	assert.Equal(t, []string{"url"}, schema["required"])
}
