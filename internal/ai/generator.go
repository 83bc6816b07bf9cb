// Package ai produces draft text for the free-text situation fields.
package ai

import (
	"context"
	"fmt"
	"time"

	"social-support-wizard/internal/common/config"
	"social-support-wizard/internal/common/logger"
	"social-support-wizard/internal/models"
)

const DefaultTimeout = 10 * time.Second

type Request struct {
	Field        models.SituationField
	CurrentValue string
	// Timeout overrides the generator default when positive.
	Timeout time.Duration
}

// Generator produces one suggestion. Errors are one of ErrNotConfigured,
// ErrTimeout, *StatusError, ErrEmptyCompletion or ErrUnknown (possibly
// wrapped); use Classify.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// New builds the generator selected by cfg.Provider. A missing credential
// yields a generator that always reports ErrNotConfigured.
func New(ctx context.Context, cfg config.AIConfig, log logger.Logger) (Generator, error) {
	timeout := config.GetDuration(cfg.Timeout)
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	if cfg.Provider == config.ProviderNone || cfg.APIKey == "" {
		log.Warn("AI suggestions disabled", map[string]interface{}{"provider": cfg.Provider})
		return Unconfigured{}, nil
	}

	switch cfg.Provider {
	case config.ProviderChat:
		return NewChatClient(cfg.BaseURL, cfg.APIKey, cfg.Model, timeout), nil
	case config.ProviderGemini:
		return NewGeminiClient(ctx, GeminiConfig{APIKey: cfg.APIKey, Model: cfg.Model, BaseURL: cfg.BaseURL, Timeout: timeout})
	default:
		return nil, fmt.Errorf("unsupported ai provider %q", cfg.Provider)
	}
}

// Unconfigured is the generator used when no credential is available.
type Unconfigured struct{}

func (Unconfigured) Generate(context.Context, Request) (string, error) {
	return "", ErrNotConfigured
}

// withDeadline applies the request or default timeout to ctx.
func withDeadline(ctx context.Context, req Request, def time.Duration) (context.Context, context.CancelFunc) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = def
	}
	return context.WithTimeout(ctx, timeout)
}
