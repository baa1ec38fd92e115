// Package summarize produces short textual summaries of conversation
// history that no longer fits the context window. Summarization is strictly
// best-effort: any failure degrades to a local fallback string and is never
// surfaced to the streaming request that triggered it.
package summarize

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"chatstream/internal/endpoint"
	"chatstream/internal/models"
)

const (
	// fallbackSummary stands in when no user message exists to truncate.
	fallbackSummary = "Previous conversation"

	// fallbackTruncateLen bounds the first-user-message fallback.
	fallbackTruncateLen = 50

	// summaryTemperature keeps the summary deterministic-ish.
	summaryTemperature = 0.3

	summaryMaxTokens = 30

	maxErrorBodyBytes = 16 * 1024
)

const summaryInstruction = "Summarize the following conversation in 5 words or fewer. " +
	"Reply with only the summary, no punctuation or quotes."

// Client issues non-streaming completion requests to compress conversation
// history.
type Client struct {
	httpClient *http.Client
}

// New constructs a summarizer backed by the given HTTP client.
func New(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{httpClient: httpClient}
}

// Summarize returns a short summary of the messages. It never fails: any
// network, auth, or parse problem degrades to a locally derived fallback.
func (c *Client) Summarize(ctx context.Context, messages []models.ChatMessage, cfg models.RequestConfig) string {
	if len(messages) == 0 {
		return fallbackSummary
	}

	summary, err := c.request(ctx, messages, cfg)
	if err != nil {
		slog.Debug("summarization request failed, using fallback", "err", err)
		return Fallback(messages)
	}

	summary = strings.TrimSpace(summary)
	if summary == "" {
		return Fallback(messages)
	}
	return summary
}

// Fallback derives a summary without a network call: the first user message
// truncated, or a fixed placeholder when none exists.
func Fallback(messages []models.ChatMessage) string {
	for _, m := range messages {
		if m.Role != models.RoleUser {
			continue
		}
		text := strings.TrimSpace(m.Text())
		if text == "" {
			continue
		}
		runes := []rune(text)
		if len(runes) > fallbackTruncateLen {
			return string(runes[:fallbackTruncateLen])
		}
		return text
	}
	return fallbackSummary
}

type summaryRequest struct {
	Model       string           `json:"model"`
	Messages    []summaryMessage `json:"messages"`
	Temperature float64          `json:"temperature"`
	MaxTokens   int              `json:"max_tokens"`
	Stream      bool             `json:"stream"`
}

type summaryMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type summaryResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *Client) request(ctx context.Context, messages []models.ChatMessage, cfg models.RequestConfig) (string, error) {
	url, err := endpoint.Completions(cfg.EndpointURL, true)
	if err != nil {
		return "", err
	}

	payload := summaryRequest{
		Model: cfg.Model,
		Messages: []summaryMessage{
			{Role: string(models.RoleSystem), Content: summaryInstruction},
			{Role: string(models.RoleUser), Content: transcript(messages)},
		},
		Temperature: summaryTemperature,
		MaxTokens:   summaryMaxTokens,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal summary request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("construct summary request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if strings.TrimSpace(cfg.APIToken) != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.APIToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("summary request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("summary request status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	if err != nil {
		return "", fmt.Errorf("read summary response: %w", err)
	}

	var parsed summaryResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("parse summary response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", errors.New("summary response had no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

// transcript renders messages for the summarization prompt. The rendering
// is capped to the first exchange when the history is long, which keeps the
// prompt short.
func transcript(messages []models.ChatMessage) string {
	capToFirstExchange := len(messages) > 3

	var b strings.Builder
	for _, m := range messages {
		text := strings.TrimSpace(m.Text())
		if text == "" {
			continue
		}
		fmt.Fprintf(&b, "%s: %s\n", m.Role, text)
		if capToFirstExchange && m.Role == models.RoleAssistant {
			break
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
