package summarizer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/breviobot/breviobot-service/config"
)

var (
	// ErrBackend is returned when the completion backend fails or answers with garbage.
	ErrBackend = errors.New("summarization backend unavailable")
	// ErrModelUnavailable is returned when a model needs a backend that has no credentials.
	ErrModelUnavailable = errors.New("summarization model unavailable")
)

type Request struct {
	Text     string
	Language string
	Model    string
}

// Summarizer turns text into a summary using an external model backend.
type Summarizer interface {
	Summarize(ctx context.Context, req Request) (string, error)
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
	Error    string `json:"error,omitempty"`
}

// OllamaClient calls a locally running Ollama server.
type OllamaClient struct {
	baseURL         string
	defaultModel    string
	defaultLanguage string
	httpClient      *http.Client
}

func NewOllamaClient(cfg config.SummarizerConfig) *OllamaClient {
	return &OllamaClient{
		baseURL:         strings.TrimRight(cfg.BaseURL, "/"),
		defaultModel:    cfg.DefaultModel,
		defaultLanguage: cfg.DefaultLanguage,
		httpClient:      newHTTPClient(cfg.Timeout),
	}
}

func (c *OllamaClient) Summarize(ctx context.Context, req Request) (string, error) {
	model := req.Model
	if model == "" {
		model = c.defaultModel
	}
	language := req.Language
	if language == "" {
		language = c.defaultLanguage
	}

	var out generateResponse
	err := postJSON(ctx, c.httpClient, c.baseURL+"/api/generate", nil, generateRequest{
		Model:  model,
		Prompt: fmt.Sprintf("Summarize the following text in %s:\n\n%s", language, req.Text),
		Stream: false,
	}, &out)
	if err != nil {
		return "", err
	}
	if out.Error != "" {
		return "", fmt.Errorf("%w: %s", ErrBackend, out.Error)
	}
	summary := strings.TrimSpace(out.Response)
	if summary == "" {
		return "", fmt.Errorf("%w: empty response", ErrBackend)
	}
	return summary, nil
}

// postJSON sends in as a JSON body and decodes a 200 answer into out. Every
// transport or decoding failure wraps ErrBackend.
func postJSON(ctx context.Context, client *http.Client, url string, header http.Header, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	for key, values := range header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackend, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackend, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrBackend, resp.StatusCode)
	}
	if err = json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %v", ErrBackend, err)
	}
	return nil
}

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &http.Client{Timeout: timeout}
}
