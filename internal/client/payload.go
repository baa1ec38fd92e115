package client

import (
	"encoding/base64"
	"fmt"
	"strings"

	"chatstream/internal/models"
)

// wireMessage is one message in the outgoing chat payload.
type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatPayload is the body for chat-shaped endpoints.
type chatPayload struct {
	Model       string        `json:"model"`
	Messages    []wireMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	Stream      bool          `json:"stream"`
}

// completionPayload is the body for legacy completion endpoints.
type completionPayload struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	Temperature float64 `json:"temperature"`
	Stream      bool    `json:"stream"`
}

// buildChatPayload assembles the messages array: system prompt first, then
// the prepared history, then the new user turn.
func buildChatPayload(cfg models.RequestConfig, prepared []models.ChatMessage, message string) chatPayload {
	messages := make([]wireMessage, 0, len(prepared)+2)
	messages = append(messages, wireMessage{
		Role:    string(models.RoleSystem),
		Content: systemContent(cfg),
	})
	for _, msg := range prepared {
		messages = append(messages, wireMessage{
			Role:    string(msg.Role),
			Content: messageContent(msg),
		})
	}
	messages = append(messages, wireMessage{
		Role:    string(models.RoleUser),
		Content: userContent(cfg, message),
	})

	return chatPayload{
		Model:       cfg.Model,
		Messages:    messages,
		Temperature: cfg.ClampedTemperature(),
		Stream:      true,
	}
}

// buildCompletionPayload concatenates everything into a single prompt for
// endpoints without a chat schema.
func buildCompletionPayload(cfg models.RequestConfig, prepared []models.ChatMessage, message string) completionPayload {
	var b strings.Builder
	if system := systemContent(cfg); system != "" {
		b.WriteString(system)
		b.WriteString("\n\n")
	}
	for _, msg := range prepared {
		if text := messageContent(msg); text != "" {
			fmt.Fprintf(&b, "%s: %s\n", msg.Role, text)
		}
	}
	b.WriteString(userContent(cfg, message))

	return completionPayload{
		Model:       cfg.Model,
		Prompt:      b.String(),
		Temperature: cfg.ClampedTemperature(),
		Stream:      true,
	}
}

func systemContent(cfg models.RequestConfig) string {
	system := cfg.SystemPrompt
	lang := strings.TrimSpace(cfg.PreferredLanguage)
	if lang != "" && !strings.EqualFold(lang, models.DefaultLanguage) {
		instruction := fmt.Sprintf("You must respond only in %s, regardless of the language of the conversation.", lang)
		if system == "" {
			return instruction
		}
		return system + "\n\n" + instruction
	}
	return system
}

func userContent(cfg models.RequestConfig, message string) string {
	template := strings.TrimSpace(cfg.UserPromptFormat)
	if template == "" {
		return message
	}
	return template + "\n\n" + message
}

// messageContent renders a message for the wire. Image content travels as
// base64 since the target endpoints take string content only.
func messageContent(msg models.ChatMessage) string {
	switch c := msg.Content.(type) {
	case models.TextContent:
		return c.Text
	case models.ImageContent:
		return base64.StdEncoding.EncodeToString(c.Data)
	default:
		return ""
	}
}
