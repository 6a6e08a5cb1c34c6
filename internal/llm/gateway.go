package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/nikhilbhutani/resumeflow/internal/config"
)

type gateway struct {
	providers        map[string]Provider
	defaultProvider  string
	defaultModel     string
	fallbackProvider string
	maxRetries       int
	retryBase        time.Duration
	recorder         UsageRecorder
	logger           *slog.Logger
}

// NewGateway builds a gateway from every provider that has credentials in
// cfg. recorder may be nil.
func NewGateway(cfg config.LLMConfig, recorder UsageRecorder, logger *slog.Logger) Gateway {
	providers := make(map[string]Provider)
	if cfg.OpenAIKey != "" {
		providers["openai"] = NewOpenAIProvider(cfg.OpenAIKey)
	}
	if cfg.AnthropicKey != "" {
		providers["anthropic"] = NewAnthropicProvider(cfg.AnthropicKey)
	}
	if cfg.OllamaURL != "" {
		providers["ollama"] = NewOllamaProvider(cfg.OllamaURL)
	}
	return NewGatewayWithProviders(providers, cfg, recorder, logger)
}

// NewGatewayWithProviders is NewGateway with an explicit provider set.
func NewGatewayWithProviders(providers map[string]Provider, cfg config.LLMConfig, recorder UsageRecorder, logger *slog.Logger) Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &gateway{
		providers:        providers,
		defaultProvider:  cfg.DefaultProvider,
		defaultModel:     cfg.DefaultModel,
		fallbackProvider: cfg.FallbackProvider,
		maxRetries:       cfg.MaxRetries,
		retryBase:        500 * time.Millisecond,
		recorder:         recorder,
		logger:           logger,
	}
}

func (g *gateway) Provider(name string) (Provider, error) {
	p, ok := g.providers[name]
	if !ok {
		return nil, fmt.Errorf("provider %q not configured", name)
	}
	return p, nil
}

// Complete sends a single system + user exchange. In JSON mode the content
// is trimmed to the outermost JSON object before it is returned.
func (g *gateway) Complete(ctx context.Context, req CompletionRequest) (*ChatResponse, error) {
	var msgs []Message
	if req.System != "" {
		msgs = append(msgs, Message{Role: "system", Content: req.System})
	}
	msgs = append(msgs, Message{Role: "user", Content: req.User})

	resp, err := g.Chat(ctx, ChatRequest{
		Messages:    msgs,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		JSONMode:    req.JSONMode,
	})
	if err != nil {
		return nil, err
	}
	if req.JSONMode {
		resp.Content = StripCodeFences(resp.Content)
	}

	if g.recorder != nil {
		rec := UsageRecord{
			Provider:     resp.Provider,
			Model:        resp.Model,
			InputTokens:  resp.InputTokens,
			OutputTokens: resp.OutputTokens,
			TotalTokens:  resp.TotalTokens,
			CostUSD:      resp.CostUSD,
			LatencyMs:    resp.LatencyMs,
			Endpoint:     req.Endpoint,
			Subject:      req.Subject,
			Timestamp:    time.Now().UTC(),
		}
		if err := g.recorder.RecordUsage(ctx, rec); err != nil {
			g.logger.Warn("record llm usage", "endpoint", req.Endpoint, "error", err)
		}
	}
	return resp, nil
}

func (g *gateway) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	providerName := req.Provider
	if providerName == "" {
		providerName = g.defaultProvider
	}

	resp, err := g.chatWithRetry(ctx, providerName, req)
	if err != nil && g.fallbackProvider != "" && g.fallbackProvider != providerName {
		g.logger.Warn("primary provider failed, trying fallback",
			"primary", providerName,
			"fallback", g.fallbackProvider,
			"error", err,
		)
		fallbackReq := req
		// the primary's model name means nothing to another provider
		fallbackReq.Model = ""
		return g.chatWithRetry(ctx, g.fallbackProvider, fallbackReq)
	}
	return resp, err
}

func (g *gateway) chatWithRetry(ctx context.Context, providerName string, req ChatRequest) (*ChatResponse, error) {
	p, err := g.Provider(providerName)
	if err != nil {
		return nil, err
	}
	if req.Model == "" {
		req.Model = g.modelFor(p)
	}

	attempt := 0
	backoff := retry.WithMaxRetries(uint64(max(g.maxRetries, 0)), retry.NewExponential(g.retryBase))
	var resp *ChatResponse
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			g.logger.Debug("retrying LLM call", "provider", providerName, "attempt", attempt)
		}
		r, err := p.ChatCompletion(ctx, req)
		if err != nil {
			if retryable(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s after %d attempt(s): %w", providerName, attempt, err)
	}
	return resp, nil
}

// modelFor returns the configured default model when the provider serves
// it, otherwise the provider's first model.
func (g *gateway) modelFor(p Provider) string {
	models := p.Models()
	for _, m := range models {
		if m == g.defaultModel {
			return m
		}
	}
	if len(models) > 0 {
		return models[0]
	}
	return g.defaultModel
}
