package summarizer

import (
	"context"
	"fmt"
	"strings"

	"github.com/breviobot/breviobot-service/config"
)

// IsOpenAIModel reports whether model is served by the OpenAI backend.
func IsOpenAIModel(model string) bool {
	return strings.HasPrefix(model, "gpt")
}

// Router picks a backend per request from the resolved model name.
type Router struct {
	defaultModel string
	ollama       Summarizer
	openai       Summarizer
}

// New builds the backends described by cfg. It fails when the default model
// is a gpt model and no OpenAI API key is configured.
func New(cfg config.SummarizerConfig) (*Router, error) {
	r := &Router{
		defaultModel: cfg.DefaultModel,
		ollama:       NewOllamaClient(cfg),
	}
	if cfg.OpenAIAPIKey != "" {
		r.openai = NewOpenAIClient(cfg)
	} else if IsOpenAIModel(cfg.DefaultModel) {
		return nil, fmt.Errorf("%w: OPENAI_API_KEY is required for model %q", ErrModelUnavailable, cfg.DefaultModel)
	}
	return r, nil
}

func (r *Router) Summarize(ctx context.Context, req Request) (string, error) {
	if req.Model == "" {
		req.Model = r.defaultModel
	}
	if !IsOpenAIModel(req.Model) {
		return r.ollama.Summarize(ctx, req)
	}
	if r.openai == nil {
		return "", fmt.Errorf("%w: OpenAI API key is not set", ErrModelUnavailable)
	}
	return r.openai.Summarize(ctx, req)
}
