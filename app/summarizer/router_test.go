package summarizer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/breviobot/breviobot-service/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsOpenAIModel(t *testing.T) {
	assert.True(t, IsOpenAIModel("gpt-4o"))
	assert.True(t, IsOpenAIModel("gpt-3.5-turbo"))
	assert.False(t, IsOpenAIModel("llama3.2"))
	assert.False(t, IsOpenAIModel(""))
}

func TestNewRequiresKeyForOpenAIDefault(t *testing.T) {
	_, err := New(config.SummarizerConfig{DefaultModel: "gpt-4o-mini"})
	require.ErrorIs(t, err, ErrModelUnavailable)

	router, err := New(config.SummarizerConfig{DefaultModel: "gpt-4o-mini", OpenAIAPIKey: "k"})
	require.NoError(t, err)
	require.NotNil(t, router)

	router, err = New(config.SummarizerConfig{DefaultModel: "llama3.2"})
	require.NoError(t, err)
	require.NotNil(t, router)
}

type routedBackends struct {
	ollamaCalls atomic.Int32
	openaiCalls atomic.Int32
	lastModel   atomic.Value
}

func newRoutedBackends(t *testing.T) (*routedBackends, *httptest.Server, *httptest.Server) {
	t.Helper()
	b := &routedBackends{}
	ollama := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.ollamaCalls.Add(1)
		var req generateRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		b.lastModel.Store(req.Model)
		_ = json.NewEncoder(w).Encode(generateResponse{Response: "from ollama"})
	}))
	openai := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.openaiCalls.Add(1)
		var req chatCompletionRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		b.lastModel.Store(req.Model)
		_ = json.NewEncoder(w).Encode(chatAnswer("from openai"))
	}))
	t.Cleanup(ollama.Close)
	t.Cleanup(openai.Close)
	return b, ollama, openai
}

func TestRouterDispatchesOnModelPrefix(t *testing.T) {
	b, ollama, openai := newRoutedBackends(t)
	router, err := New(config.SummarizerConfig{
		BaseURL:       ollama.URL,
		OpenAIBaseURL: openai.URL,
		OpenAIAPIKey:  "k",
		DefaultModel:  "llama3.2",
		Timeout:       time.Second,
	})
	require.NoError(t, err)
	ctx := context.Background()

	summary, err := router.Summarize(ctx, Request{Text: "x"})
	require.NoError(t, err)
	assert.Equal(t, "from ollama", summary)
	assert.Equal(t, "llama3.2", b.lastModel.Load())

	summary, err = router.Summarize(ctx, Request{Text: "x", Model: "gpt-4o"})
	require.NoError(t, err)
	assert.Equal(t, "from openai", summary)
	assert.Equal(t, "gpt-4o", b.lastModel.Load())

	assert.Equal(t, int32(1), b.ollamaCalls.Load())
	assert.Equal(t, int32(1), b.openaiCalls.Load())
}

func TestRouterRejectsOpenAIModelWithoutKey(t *testing.T) {
	b, ollama, _ := newRoutedBackends(t)
	router, err := New(config.SummarizerConfig{BaseURL: ollama.URL, DefaultModel: "llama3.2", Timeout: time.Second})
	require.NoError(t, err)

	_, err = router.Summarize(context.Background(), Request{Text: "x", Model: "gpt-4o"})
	require.ErrorIs(t, err, ErrModelUnavailable)
	assert.Zero(t, b.ollamaCalls.Load())
}
