// Package tokens approximates token accounting for chat models. The
// estimates are deliberately heuristic: a fixed characters-per-token ratio
// rather than real BPE tokenization, so callers must treat results as an
// upper-bound guide, not a contract with the remote API.
package tokens

import (
	"strings"
	"unicode/utf8"

	"chatstream/internal/models"
)

const (
	// charsPerToken is the assumed average characters per token.
	charsPerToken = 0.25

	// perMessageOverhead accounts for role framing and separators the API
	// adds around each message.
	perMessageOverhead = 4

	// imageTokenCost is the flat charge for image content, which cannot be
	// estimated from character count.
	imageTokenCost = 1000

	// defaultMaxTokens is the conservative ceiling for unrecognized models.
	defaultMaxTokens = 4096

	// maxReservedBuffer caps the slice of the window held back for the
	// model's response.
	maxReservedBuffer = 1000
)

// modelWindow pairs a model-name fragment with its context window size.
type modelWindow struct {
	fragment  string
	maxTokens int
}

// modelWindows is consulted in order; more specific fragments must come
// before fragments they contain (e.g. "gpt-4-turbo" before "gpt-4").
var modelWindows = []modelWindow{
	{"gpt-4-turbo", 128000},
	{"gpt-4o", 128000},
	{"gpt-4-32k", 32768},
	{"gpt-4", 8192},
	{"gpt-3.5-turbo-16k", 16384},
	{"gpt-3.5-turbo", 4096},
	{"claude-3", 200000},
	{"llama-3", 8192},
	{"mistral", 32768},
}

// Estimate approximates the token count of text plus per-message overhead.
// Deterministic and monotonically non-decreasing in the text length.
func Estimate(text string) int {
	return int(float64(utf8.RuneCountInString(text))*charsPerToken) + perMessageOverhead
}

// EstimateMessage approximates the token cost of a single chat message.
func EstimateMessage(m models.ChatMessage) int {
	switch c := m.Content.(type) {
	case models.TextContent:
		return Estimate(c.Text)
	case models.ImageContent:
		return imageTokenCost
	default:
		return perMessageOverhead
	}
}

// MaxTokensForModel returns the context window for a model, matched by
// case-insensitive substring against a most-specific-first table. Unknown
// models fall back to a conservative default.
func MaxTokensForModel(model string) int {
	name := strings.ToLower(model)
	for _, entry := range modelWindows {
		if strings.Contains(name, entry.fragment) {
			return entry.maxTokens
		}
	}
	return defaultMaxTokens
}

// BudgetForModel derives the context budget for a model, reserving part of
// the window for the response.
func BudgetForModel(model string) models.ContextBudget {
	maxTokens := MaxTokensForModel(model)
	reserved := maxTokens / 4
	if reserved > maxReservedBuffer {
		reserved = maxReservedBuffer
	}
	return models.ContextBudget{
		MaxTokens:      maxTokens,
		ReservedBuffer: reserved,
	}
}
