// Package ai provides the language-model abstraction used by the lead
// pipeline: a single "generate text from prompt" contract with one concrete
// provider selected per process from the configured credentials.
package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"leadhandler_backend/platform/config"
	"leadhandler_backend/platform/logger"
	"leadhandler_backend/platform/metrics"
)

// Provider names, in selection priority order.
const (
	ProviderOpenAI   = "openai"
	ProviderGemini   = "gemini"
	ProviderMoonshot = "moonshot"
	ProviderNone     = "none"
)

// ErrNoProvider is returned by the Unavailable generator.
var ErrNoProvider = errors.New("no language model provider configured")

// Prompt is one generation request.
type Prompt struct {
	System string
	User   string
	// JSON asks the provider for a JSON object response when it supports it.
	JSON bool
	// SchemaName and Schema describe the expected object for providers with
	// structured output. Optional.
	SchemaName string
	Schema     any
}

// TextGenerator generates text from a prompt.
type TextGenerator interface {
	Generate(ctx context.Context, prompt Prompt) (string, error)
	Name() string
}

// Unavailable always fails; callers fall back to their safe defaults.
type Unavailable struct{}

// Generate implements TextGenerator.
func (Unavailable) Generate(context.Context, Prompt) (string, error) { return "", ErrNoProvider }

// Name implements TextGenerator.
func (Unavailable) Name() string { return ProviderNone }

// Select probes the configured credentials in a fixed priority order
// (OpenAI, Gemini, Moonshot) and returns the first provider available,
// wrapped with timeout and metrics. No credentials yields Unavailable.
func Select(ctx context.Context, cfg config.LLMConfig, log *logger.Logger) (TextGenerator, error) {
	gen, err := selectProvider(ctx, cfg)
	if err != nil {
		return nil, err
	}
	log.Info("language model provider selected", "provider", gen.Name())
	return Instrument(gen, cfg.GetLLMTimeout()), nil
}

func selectProvider(ctx context.Context, cfg config.LLMConfig) (TextGenerator, error) {
	switch {
	case cfg.GetOpenAIAPIKey() != "":
		return NewOpenAI(cfg.GetOpenAIAPIKey(), cfg.GetOpenAIModel()), nil
	case cfg.GetGeminiAPIKey() != "":
		gen, err := NewGemini(ctx, cfg.GetGeminiAPIKey(), cfg.GetGeminiModel())
		if err != nil {
			return nil, fmt.Errorf("init gemini: %w", err)
		}
		return gen, nil
	case cfg.GetMoonshotAPIKey() != "":
		gen, err := NewMoonshot(cfg.GetMoonshotAPIKey(), cfg.GetMoonshotModel())
		if err != nil {
			return nil, fmt.Errorf("init moonshot: %w", err)
		}
		return gen, nil
	default:
		return Unavailable{}, nil
	}
}

// instrumented bounds each call with a timeout and records metrics.
type instrumented struct {
	next    TextGenerator
	timeout time.Duration
}

// Instrument wraps gen with a per-call timeout (zero disables) and metrics.
func Instrument(gen TextGenerator, timeout time.Duration) TextGenerator {
	return &instrumented{next: gen, timeout: timeout}
}

func (i *instrumented) Name() string { return i.next.Name() }

func (i *instrumented) Generate(ctx context.Context, prompt Prompt) (string, error) {
	if i.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := i.next.Generate(ctx, prompt)
	metrics.LLMDuration.WithLabelValues(i.next.Name()).Observe(time.Since(start).Seconds())

	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.LLMRequests.WithLabelValues(i.next.Name(), result).Inc()
	return text, err
}
