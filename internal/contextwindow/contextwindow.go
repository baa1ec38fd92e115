// Package contextwindow fits conversation history into a model's token
// budget. History that fits passes through untouched; history that does not
// is compressed by keeping the head and tail of the conversation verbatim
// and replacing the middle with a single synthetic summary message.
package contextwindow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"chatstream/internal/models"
	"chatstream/internal/tokens"
)

const (
	// headKeep and tailKeep bound how many original messages survive
	// compression verbatim at each end of the conversation.
	headKeep = 3
	tailKeep = 5

	// fallbackLineLen bounds each line of the local summary fallback.
	fallbackLineLen = 100
)

// Summarizer compresses omitted history into a short string. It must not
// fail; implementations degrade internally.
type Summarizer interface {
	Summarize(ctx context.Context, messages []models.ChatMessage, cfg models.RequestConfig) string
}

// Manager decides whether history fits a model's budget and compresses it
// when it does not.
type Manager struct {
	summarizer Summarizer
}

// NewManager constructs a manager. A nil summarizer is legal: compression
// then uses the local fallback summary.
func NewManager(summarizer Summarizer) *Manager {
	return &Manager{summarizer: summarizer}
}

// Prepare returns the message history to send and whether it was
// compressed. The summarizer is only consulted when the history actually
// overflows the budget and a middle segment exists to compress.
func (m *Manager) Prepare(ctx context.Context, cfg models.RequestConfig) ([]models.ChatMessage, bool) {
	history := cfg.History
	if len(history) == 0 {
		return nil, false
	}

	budget := tokens.BudgetForModel(cfg.Model)
	total := tokens.Estimate(cfg.SystemPrompt)
	for _, msg := range history {
		total += tokens.EstimateMessage(msg)
	}
	if total <= budget.Usable() {
		return history, false
	}

	head := headKeep
	if head > len(history) {
		head = len(history)
	}
	tail := tailKeep
	if tail > len(history)-head {
		tail = len(history) - head
	}

	middle := history[head : len(history)-tail]
	slog.Debug("compressing conversation history",
		"model", cfg.Model,
		"estimated_tokens", total,
		"budget", budget.Usable(),
		"dropped", len(middle),
	)

	result := make([]models.ChatMessage, 0, head+tail+1)
	result = append(result, history[:head]...)
	if len(middle) > 0 {
		result = append(result, m.summaryMessage(ctx, middle, cfg))
	}
	result = append(result, history[len(history)-tail:]...)
	return result, true
}

func (m *Manager) summaryMessage(ctx context.Context, middle []models.ChatMessage, cfg models.RequestConfig) models.ChatMessage {
	var summary string
	if m.summarizer != nil {
		summary = m.summarizer.Summarize(ctx, middle, cfg)
	}
	if strings.TrimSpace(summary) == "" {
		summary = localSummary(middle)
	}
	return models.NewTextMessage(models.RoleAssistant, fmt.Sprintf("[Summary of previous conversation: %s]", summary))
}

// localSummary concatenates a truncated line per user message in the
// omitted segment. Used when no summarizer is available.
func localSummary(middle []models.ChatMessage) string {
	var lines []string
	for _, msg := range middle {
		if msg.Role != models.RoleUser {
			continue
		}
		text := strings.TrimSpace(msg.Text())
		if text == "" {
			continue
		}
		runes := []rune(text)
		if len(runes) > fallbackLineLen {
			text = string(runes[:fallbackLineLen])
		}
		lines = append(lines, text)
	}
	if len(lines) == 0 {
		return "earlier messages omitted"
	}
	return strings.Join(lines, "\n")
}
