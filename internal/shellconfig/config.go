// Package shellconfig defines the configuration value the CLI edge hands
// to the core: backend selection, connection details, cache sizing and
// custom safety patterns. The core never reads this from a file itself;
// file loading belongs to the edge and only the parsed value crosses
// this boundary.
package shellconfig

import (
	"fmt"
	"time"

	"github.com/shellsage/shellsage/internal/safety"
	"github.com/shellsage/shellsage/internal/shelldomain"
)

// BackendKind names a configured backend family.
type BackendKind string

const (
	Embedded       BackendKind = "embedded"
	RemoteOpenAI   BackendKind = "remote-openai-compatible"
	RemoteLocalAPI BackendKind = "remote-local-api"
)

// RemoteConfig carries the connection details for one remote backend.
type RemoteConfig struct {
	Kind        BackendKind
	BaseURL     string
	ModelName   string
	BearerToken string
	Timeout     time.Duration
}

func (r RemoteConfig) validate() error {
	if r.BaseURL == "" {
		return fmt.Errorf("remote %s: base URL is required", r.Kind)
	}
	if r.ModelName == "" {
		return fmt.Errorf("remote %s: model name is required", r.Kind)
	}
	return nil
}

// Config is the full set of values the orchestrator, caches and
// validator are constructed from. It is assembled and validated by the
// CLI edge; the core never mutates it after construction.
type Config struct {
	Primary            BackendKind
	EnableFallback     bool
	Remotes            map[BackendKind]RemoteConfig
	DefaultSafetyLevel shelldomain.SafetyLevel

	CacheDir      string
	MaxCacheBytes int64

	// Model and Tokenizer describe the two artifacts the embedded
	// backend needs. SourceURL is not named explicitly among the
	// config fields in the external-interfaces contract but is
	// required by cache.ensure; it is added here to close that gap.
	ModelID               string
	ModelSourceURL        string
	ModelSHA256           string
	ModelExpectedSize     int64
	TokenizerID           string
	TokenizerSourceURL    string
	TokenizerSHA256       string
	TokenizerExpectedSize int64

	CustomPatterns []safety.PatternSpec
}

// Validate checks internal consistency: a usable primary backend, a
// recognized default safety level, and well-formed remote entries.
func (c Config) Validate() error {
	switch c.Primary {
	case Embedded, RemoteOpenAI, RemoteLocalAPI:
	default:
		return fmt.Errorf("unknown primary backend %q", c.Primary)
	}
	if c.Primary != Embedded {
		remote, ok := c.Remotes[c.Primary]
		if !ok {
			return fmt.Errorf("primary backend %q has no remote configuration", c.Primary)
		}
		if err := remote.validate(); err != nil {
			return err
		}
	}
	for kind, remote := range c.Remotes {
		if remote.Kind == "" {
			remote.Kind = kind
		}
		if err := remote.validate(); err != nil {
			return err
		}
	}
	switch c.DefaultSafetyLevel {
	case shelldomain.Strict, shelldomain.Moderate, shelldomain.Permissive:
	default:
		return fmt.Errorf("unknown default safety level %q", c.DefaultSafetyLevel)
	}
	return nil
}

// FallbackChain reports which backend kinds should be tried after the
// primary, in order, given EnableFallback and which remotes are
// configured. Embedded is always a fallback candidate when it is not
// already the primary, since it requires no network.
func (c Config) FallbackChain() []BackendKind {
	if !c.EnableFallback {
		return nil
	}
	var chain []BackendKind
	seen := map[BackendKind]bool{c.Primary: true}
	for kind := range c.Remotes {
		if seen[kind] {
			continue
		}
		seen[kind] = true
		chain = append(chain, kind)
	}
	if !seen[Embedded] {
		chain = append(chain, Embedded)
	}
	return chain
}
