package summarizer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/breviobot/breviobot-service/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatAnswer(content string) chatCompletionResponse {
	var out chatCompletionResponse
	out.Choices = append(out.Choices, struct {
		Message chatMessage `json:"message"`
	}{Message: chatMessage{Role: "assistant", Content: content}})
	return out
}

func TestOpenAIClient_Summarize(t *testing.T) {
	var (
		got  chatCompletionRequest
		auth string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		auth = r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(chatAnswer("\n the gist  "))
	}))
	defer srv.Close()

	client := NewOpenAIClient(config.SummarizerConfig{
		OpenAIBaseURL:   srv.URL + "/v1/",
		OpenAIAPIKey:    "sk-test",
		DefaultModel:    "gpt-4o-mini",
		DefaultLanguage: "English",
		Timeout:         time.Second,
	})
	summary, err := client.Summarize(context.Background(), Request{Text: "a long text", Language: "French"})
	require.NoError(t, err)
	require.Equal(t, "the gist", summary)
	require.Equal(t, "Bearer sk-test", auth)
	require.Equal(t, "gpt-4o-mini", got.Model)
	require.InDelta(t, 0.3, got.Temperature, 1e-9)
	require.Len(t, got.Messages, 2)
	require.Equal(t, "system", got.Messages[0].Role)
	require.Contains(t, got.Messages[0].Content, "French")
	require.Equal(t, chatMessage{Role: "user", Content: "a long text"}, got.Messages[1])
}

func TestOpenAIClient_BackendErrors(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"unauthorized": func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		},
		"garbage": func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("not json"))
		},
		"error field": func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"error":{"message":"model overloaded"}}`))
		},
		"no choices": func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"choices":[]}`))
		},
		"empty": func(w http.ResponseWriter, _ *http.Request) {
			_ = json.NewEncoder(w).Encode(chatAnswer("   "))
		},
	}
	for name, handler := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(handler)
			defer srv.Close()

			client := NewOpenAIClient(config.SummarizerConfig{OpenAIBaseURL: srv.URL, OpenAIAPIKey: "k", DefaultModel: "gpt-4o"})
			_, err := client.Summarize(context.Background(), Request{Text: "x"})
			require.ErrorIs(t, err, ErrBackend)
		})
	}
}
