// Package llm sends single-turn prompts to an OpenAI-compatible chat
// completion endpoint and returns the raw text reply.
package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/wonny/stockgame/pkg/config"
	"github.com/wonny/stockgame/pkg/httputil"
	"github.com/wonny/stockgame/pkg/logger"
	"github.com/wonny/stockgame/pkg/redis"
)

// Completer sends one prompt and returns the model's text
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// New builds the Completer selected by cfg.LLM.Provider.
// limiter may be nil; it only applies to the openrouter provider.
func New(ctx context.Context, cfg *config.Config, limiter *redis.RateLimiter, log *logger.Logger) (Completer, error) {
	switch cfg.LLM.Provider {
	case config.ProviderEino:
		return NewEinoClient(ctx, cfg.LLM)
	case config.ProviderOpenRouter, "":
		httpClient := httputil.NewWithTimeout(log, cfg.LLM.Timeout)
		if limiter != nil && cfg.LLM.RateLimitPerMinute > 0 {
			httpClient.WithRateLimiter(limiter, redis.LLMRateLimit(cfg.LLM.RateLimitPerMinute))
		}
		return NewOpenRouterClient(cfg.LLM, httpClient), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.LLM.Provider)
	}
}

// StripCodeFence removes a surrounding ```json ... ``` (or bare ```) fence
func StripCodeFence(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```JSON")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// ExtractJSON cuts s down to the span between the first open and the last
// matching close delimiter, dropping prose the model put around the JSON.
// open is '[' or '{'. The input is returned unchanged when no span exists.
func ExtractJSON(s string, open byte) string {
	closing := byte(']')
	if open == '{' {
		closing = '}'
	}

	start := strings.IndexByte(s, open)
	end := strings.LastIndexByte(s, closing)
	if start < 0 || end <= start {
		return s
	}
	return s[start : end+1]
}
