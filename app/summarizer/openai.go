package summarizer

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/breviobot/breviobot-service/config"
)

const openAITemperature = 0.3

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// OpenAIClient calls an OpenAI-compatible chat completions endpoint.
type OpenAIClient struct {
	baseURL         string
	apiKey          string
	defaultModel    string
	defaultLanguage string
	httpClient      *http.Client
}

func NewOpenAIClient(cfg config.SummarizerConfig) *OpenAIClient {
	return &OpenAIClient{
		baseURL:         strings.TrimRight(cfg.OpenAIBaseURL, "/"),
		apiKey:          cfg.OpenAIAPIKey,
		defaultModel:    cfg.DefaultModel,
		defaultLanguage: cfg.DefaultLanguage,
		httpClient:      newHTTPClient(cfg.Timeout),
	}
}

func (c *OpenAIClient) Summarize(ctx context.Context, req Request) (string, error) {
	model := req.Model
	if model == "" {
		model = c.defaultModel
	}
	language := req.Language
	if language == "" {
		language = c.defaultLanguage
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.apiKey)

	var out chatCompletionResponse
	err := postJSON(ctx, c.httpClient, c.baseURL+"/chat/completions", header, chatCompletionRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: fmt.Sprintf("You summarize the user's text. Answer in %s with the summary only.", language)},
			{Role: "user", Content: req.Text},
		},
		Temperature: openAITemperature,
	}, &out)
	if err != nil {
		return "", err
	}
	if out.Error != nil {
		return "", fmt.Errorf("%w: %s", ErrBackend, out.Error.Message)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices", ErrBackend)
	}
	summary := strings.TrimSpace(out.Choices[0].Message.Content)
	if summary == "" {
		return "", fmt.Errorf("%w: empty response", ErrBackend)
	}
	return summary, nil
}
