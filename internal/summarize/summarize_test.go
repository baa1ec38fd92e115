package summarize

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatstream/internal/models"
)

func history(pairs ...string) []models.ChatMessage {
	msgs := make([]models.ChatMessage, 0, len(pairs))
	for i, text := range pairs {
		role := models.RoleUser
		if i%2 == 1 {
			role = models.RoleAssistant
		}
		msgs = append(msgs, models.NewTextMessage(role, text))
	}
	return msgs
}

func TestSummarizeUsesRemoteSummary(t *testing.T) {
	t.Parallel()

	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"Trip planning help"}}]}`))
	}))
	defer server.Close()

	client := New(server.Client())
	cfg := models.RequestConfig{
		EndpointURL: server.URL,
		Model:       "gpt-4",
		APIToken:    "sk-test",
	}

	summary := client.Summarize(context.Background(), history("Plan my trip", "Sure, where to?"), cfg)
	assert.Equal(t, "Trip planning help", summary)
	assert.Equal(t, "Bearer sk-test", gotAuth)
}

func TestSummarizeNoAuthHeaderWithoutToken(t *testing.T) {
	t.Parallel()

	var sawAuth bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, sawAuth = r.Header["Authorization"]
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer server.Close()

	client := New(server.Client())
	client.Summarize(context.Background(), history("hi"), models.RequestConfig{EndpointURL: server.URL})
	assert.False(t, sawAuth)
}

func TestSummarizeFallsBackOnServerError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := New(server.Client())
	summary := client.Summarize(context.Background(), history("What is the capital of France?"), models.RequestConfig{
		EndpointURL: server.URL,
	})
	assert.Equal(t, "What is the capital of France?", summary)
}

func TestSummarizeFallsBackOnUnreachableEndpoint(t *testing.T) {
	t.Parallel()

	client := New(&http.Client{})
	summary := client.Summarize(context.Background(), history("hello there"), models.RequestConfig{
		EndpointURL: "http://127.0.0.1:1",
	})
	assert.Equal(t, "hello there", summary)
}

func TestSummarizeFallsBackOnUnparseableBody(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer server.Close()

	client := New(server.Client())
	summary := client.Summarize(context.Background(), history("fallback me"), models.RequestConfig{
		EndpointURL: server.URL,
	})
	assert.Equal(t, "fallback me", summary)
}

func TestFallbackTruncatesFirstUserMessage(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("a", 80)
	got := Fallback(history(long))
	assert.Equal(t, strings.Repeat("a", 50), got)
}

func TestFallbackPlaceholderWithoutUserMessage(t *testing.T) {
	t.Parallel()

	msgs := []models.ChatMessage{models.NewTextMessage(models.RoleAssistant, "hi")}
	assert.Equal(t, "Previous conversation", Fallback(msgs))
}

func TestSummarizeEmptyHistory(t *testing.T) {
	t.Parallel()

	client := New(nil)
	assert.Equal(t, "Previous conversation", client.Summarize(context.Background(), nil, models.RequestConfig{}))
}

func TestTranscriptCappedToFirstExchange(t *testing.T) {
	t.Parallel()

	msgs := history("one", "two", "three", "four", "five")
	got := transcript(msgs)

	require.Contains(t, got, "user: one")
	require.Contains(t, got, "assistant: two")
	assert.NotContains(t, got, "three")
	assert.NotContains(t, got, "four")
}

func TestTranscriptShortHistoryComplete(t *testing.T) {
	t.Parallel()

	msgs := history("one", "two", "three")
	got := transcript(msgs)
	assert.Contains(t, got, "user: three")
}
