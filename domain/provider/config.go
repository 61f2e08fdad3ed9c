package provider

import (
	"time"

	"github.com/mcb/mcp-context-browser/domain/errs"
)

// DefaultCallTimeout bounds outbound provider calls when a config does not
// override it.
const DefaultCallTimeout = 30 * time.Second

// Config selects and parameterizes one provider instance. The factory
// registry maps Provider to a constructor; unknown names are a config error.
type Config struct {
	provider string
	model    string
	apiKey   string
	baseURL  string
	address  string
	path     string
	timeout  time.Duration
	options  map[string]string
}

// NewConfig creates a Config for the named provider.
func NewConfig(providerName string) Config {
	return Config{
		provider: providerName,
		timeout:  DefaultCallTimeout,
		options:  map[string]string{},
	}
}

// Provider returns the registered provider name.
func (c Config) Provider() string { return c.provider }

// Model returns the model identifier, where applicable.
func (c Config) Model() string { return c.model }

// APIKey returns the API key for cloud providers.
func (c Config) APIKey() string { return c.apiKey }

// BaseURL returns a custom API endpoint URL.
func (c Config) BaseURL() string { return c.baseURL }

// Address returns the server address for remote backends.
func (c Config) Address() string { return c.address }

// Path returns the filesystem path for file-backed backends.
func (c Config) Path() string { return c.path }

// Timeout returns the per-call timeout.
func (c Config) Timeout() time.Duration { return c.timeout }

// Option returns a free-form option value.
func (c Config) Option(key string) string { return c.options[key] }

// WithModel returns a copy with the model set.
func (c Config) WithModel(model string) Config { c.model = model; return c }

// WithAPIKey returns a copy with the API key set.
func (c Config) WithAPIKey(key string) Config { c.apiKey = key; return c }

// WithBaseURL returns a copy with the base URL set.
func (c Config) WithBaseURL(url string) Config { c.baseURL = url; return c }

// WithAddress returns a copy with the remote address set.
func (c Config) WithAddress(addr string) Config { c.address = addr; return c }

// WithPath returns a copy with the filesystem path set.
func (c Config) WithPath(path string) Config { c.path = path; return c }

// WithTimeout returns a copy with the call timeout set.
func (c Config) WithTimeout(d time.Duration) Config {
	if d > 0 {
		c.timeout = d
	}
	return c
}

// WithOption returns a copy with a free-form option set.
func (c Config) WithOption(key, value string) Config {
	options := make(map[string]string, len(c.options)+1)
	for k, v := range c.options {
		options[k] = v
	}
	options[key] = value
	c.options = options
	return c
}

// Validate checks that a provider name is present.
func (c Config) Validate() error {
	if c.provider == "" {
		return errs.New(errs.KindConfig, "provider name is empty")
	}
	return nil
}
