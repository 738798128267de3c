// Package cli is the thin CLI edge around the core: it owns argument
// parsing, output formatting and exit codes, none of which the core
// defines itself: a cobra root command with persistent flags and a set
// of subcommands, an Execute() returning an int exit code.
package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/shellsage/shellsage/internal/artifactcache"
	"github.com/shellsage/shellsage/internal/backend"
	"github.com/shellsage/shellsage/internal/embeddedbackend"
	"github.com/shellsage/shellsage/internal/orchestrator"
	"github.com/shellsage/shellsage/internal/remotebackend"
	"github.com/shellsage/shellsage/internal/safety"
	"github.com/shellsage/shellsage/internal/shellconfig"
	"github.com/shellsage/shellsage/internal/shelldomain"
)

var version = "v0.1.0"

type rootOptions struct {
	cacheDir       string
	safetyLevel    string
	shell          string
	primary        string
	enableFallback bool

	remoteBaseURL string
	remoteModel   string
	remoteToken   string
	remoteTimeout time.Duration

	modelID        string
	modelSourceURL string
	modelSHA256    string
	modelSize      int64

	tokenizerID        string
	tokenizerSourceURL string
	tokenizerSHA256    string
	tokenizerSize      int64

	maxCacheBytes int64
}

// Execute builds and runs the root command, returning a process exit
// code. Spawning the resulting command is the edge's job, never the
// core's.
func Execute() int {
	cmd := newRootCmd()
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "shellsage",
		Short:         "Translate natural language into a validated shell command",
		SilenceErrors: false,
		SilenceUsage:  true,
		Version:       version,
	}

	cmd.PersistentFlags().StringVar(&opts.cacheDir, "cache-dir", "", "Override the model cache directory (default: OS user cache dir)")
	cmd.PersistentFlags().Int64Var(&opts.maxCacheBytes, "max-cache-bytes", 0, "Cap total cache size in bytes (0 uses the cache's default)")
	cmd.PersistentFlags().StringVar(&opts.safetyLevel, "safety", "moderate", "Safety level: strict, moderate, or permissive")
	cmd.PersistentFlags().StringVar(&opts.shell, "shell", "bash", "Target shell: bash, zsh, sh, fish, pwsh, or cmd")
	cmd.PersistentFlags().StringVar(&opts.primary, "primary", "embedded", "Primary backend: embedded, remote-openai-compatible, or remote-local-api")
	cmd.PersistentFlags().BoolVar(&opts.enableFallback, "fallback", true, "Fall back to the embedded backend when the primary is unavailable")
	cmd.PersistentFlags().StringVar(&opts.remoteBaseURL, "remote-base-url", "", "Base URL of the remote backend (required when --primary names a remote kind)")
	cmd.PersistentFlags().StringVar(&opts.remoteModel, "remote-model", "", "Model name to request from the remote backend")
	cmd.PersistentFlags().StringVar(&opts.remoteToken, "remote-token", "", "Bearer token for the remote backend, if it requires auth")
	cmd.PersistentFlags().DurationVar(&opts.remoteTimeout, "remote-timeout", 30*time.Second, "Per-request timeout against the remote backend")

	cmd.PersistentFlags().StringVar(&opts.modelID, "model-id", "qwen2.5-coder-1.5b", "Cache id of the embedded model weights")
	cmd.PersistentFlags().StringVar(&opts.modelSourceURL, "model-url", "", "Download URL for the embedded model weights")
	cmd.PersistentFlags().StringVar(&opts.modelSHA256, "model-sha256", "", "Expected SHA-256 of the embedded model weights")
	cmd.PersistentFlags().Int64Var(&opts.modelSize, "model-size", 0, "Expected byte size of the embedded model weights")

	cmd.PersistentFlags().StringVar(&opts.tokenizerID, "tokenizer-id", "qwen2.5-coder-1.5b-tokenizer", "Cache id of the embedded tokenizer")
	cmd.PersistentFlags().StringVar(&opts.tokenizerSourceURL, "tokenizer-url", "", "Download URL for the embedded tokenizer")
	cmd.PersistentFlags().StringVar(&opts.tokenizerSHA256, "tokenizer-sha256", "", "Expected SHA-256 of the embedded tokenizer")
	cmd.PersistentFlags().Int64Var(&opts.tokenizerSize, "tokenizer-size", 0, "Expected byte size of the embedded tokenizer")

	cmd.AddCommand(
		newGenerateCmd(opts),
		newValidateCmd(opts),
		newCacheCmd(opts),
	)

	return cmd
}

// buildConfig assembles the shellconfig.Config value from flags and
// validates it before anything is constructed from it.
func buildConfig(opts *rootOptions) (shellconfig.Config, error) {
	level, err := shelldomain.ParseSafetyLevel(opts.safetyLevel)
	if err != nil {
		return shellconfig.Config{}, err
	}

	primaryKind := shellconfig.BackendKind(opts.primary)
	cfg := shellconfig.Config{
		Primary:               primaryKind,
		EnableFallback:        opts.enableFallback,
		DefaultSafetyLevel:    level,
		CacheDir:              opts.cacheDir,
		MaxCacheBytes:         opts.maxCacheBytes,
		ModelID:               opts.modelID,
		ModelSourceURL:        opts.modelSourceURL,
		ModelSHA256:           opts.modelSHA256,
		ModelExpectedSize:     opts.modelSize,
		TokenizerID:           opts.tokenizerID,
		TokenizerSourceURL:    opts.tokenizerSourceURL,
		TokenizerSHA256:       opts.tokenizerSHA256,
		TokenizerExpectedSize: opts.tokenizerSize,
	}

	if primaryKind == shellconfig.RemoteOpenAI || primaryKind == shellconfig.RemoteLocalAPI {
		cfg.Remotes = map[shellconfig.BackendKind]shellconfig.RemoteConfig{
			primaryKind: {
				Kind:        primaryKind,
				BaseURL:     opts.remoteBaseURL,
				ModelName:   opts.remoteModel,
				BearerToken: opts.remoteToken,
				Timeout:     opts.remoteTimeout,
			},
		}
	}

	if err := cfg.Validate(); err != nil {
		return shellconfig.Config{}, err
	}
	return cfg, nil
}

// buildOrchestrator wires the configured backend chain together: the
// primary named by cfg.Primary, followed by cfg.FallbackChain() in
// order. The embedded backend is always constructible since it needs
// no network, making it a safe last resort.
func buildOrchestrator(opts *rootOptions) (*orchestrator.Orchestrator, *artifactcache.Cache, error) {
	cfg, err := buildConfig(opts)
	if err != nil {
		return nil, nil, err
	}

	cache, err := artifactcache.Open(cfg.CacheDir, cfg.MaxCacheBytes)
	if err != nil {
		return nil, nil, err
	}

	primary, err := buildNamedBackend(cfg.Primary, cfg, cache)
	if err != nil {
		return nil, nil, err
	}

	var fallbacks []backend.Backend
	for _, kind := range cfg.FallbackChain() {
		fb, err := buildNamedBackend(kind, cfg, cache)
		if err != nil {
			return nil, nil, err
		}
		fallbacks = append(fallbacks, fb)
	}

	o := orchestrator.New(primary, fallbacks...)
	return o, cache, nil
}

// buildNamedBackend constructs the backend for kind from cfg.
func buildNamedBackend(kind shellconfig.BackendKind, cfg shellconfig.Config, cache *artifactcache.Cache) (backend.Backend, error) {
	switch kind {
	case shellconfig.Embedded:
		return embeddedbackend.New(cache,
			embeddedbackend.ModelArtifact{
				ID:             cfg.ModelID,
				SourceURL:      cfg.ModelSourceURL,
				ExpectedSHA256: cfg.ModelSHA256,
				ExpectedSize:   cfg.ModelExpectedSize,
			},
			embeddedbackend.ModelArtifact{
				ID:             cfg.TokenizerID,
				SourceURL:      cfg.TokenizerSourceURL,
				ExpectedSHA256: cfg.TokenizerSHA256,
				ExpectedSize:   cfg.TokenizerExpectedSize,
			},
		), nil
	case shellconfig.RemoteOpenAI:
		remote := cfg.Remotes[kind]
		return remotebackend.NewOpenAICompatible(remote.BaseURL, remote.ModelName, remote.BearerToken, remote.Timeout), nil
	case shellconfig.RemoteLocalAPI:
		remote := cfg.Remotes[kind]
		return remotebackend.NewLocalGenerateAPI(remote.BaseURL, remote.ModelName, remote.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown backend kind %q", kind)
	}
}

func newValidator() (*safety.Validator, error) {
	return safety.NewValidator(nil)
}
