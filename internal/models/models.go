package models

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a conversational message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether the role is one of the known conversation roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// Content is the payload of a chat message. Exactly one concrete variant
// backs each message; consumers switch exhaustively over the two types.
type Content interface {
	isContent()
}

// TextContent is plain conversational text.
type TextContent struct {
	Text string
}

// ImageContent carries raw image bytes attached to a message.
type ImageContent struct {
	Data []byte
}

func (TextContent) isContent()  {}
func (ImageContent) isContent() {}

// ChatMessage represents a single turn in a conversation. Messages are
// immutable once created and owned by the conversation transcript.
type ChatMessage struct {
	ID        string
	Role      Role
	Content   Content
	Timestamp time.Time
	IsError   bool
}

// NewTextMessage creates a text message with a generated unique identifier.
func NewTextMessage(role Role, text string) ChatMessage {
	return ChatMessage{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   TextContent{Text: text},
		Timestamp: time.Now(),
	}
}

// NewImageMessage creates an image-carrying message with a generated unique
// identifier.
func NewImageMessage(role Role, data []byte) ChatMessage {
	return ChatMessage{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   ImageContent{Data: data},
		Timestamp: time.Now(),
	}
}

// Text returns the textual payload of the message. Image content has no
// textual form and yields the empty string.
func (m ChatMessage) Text() string {
	switch c := m.Content.(type) {
	case TextContent:
		return c.Text
	default:
		return ""
	}
}

// StreamDelta is one incremental unit of assistant output. Deltas are
// ephemeral: consumed immediately to grow the running transcript, never
// persisted.
type StreamDelta struct {
	Text  string
	Final bool
	Err   error
}

// DefaultLanguage is the language for which no enforcement instruction is
// appended to the system prompt.
const DefaultLanguage = "English"

// RequestConfig carries the parameters for one streaming call.
type RequestConfig struct {
	EndpointURL       string
	Model             string
	APIToken          string
	ChatEndpoint      bool
	Temperature       float64
	SystemPrompt      string
	UserPromptFormat  string
	History           []ChatMessage
	PreferredLanguage string
}

// ClampedTemperature returns the temperature bounded to the valid [0, 2]
// sampling range.
func (c RequestConfig) ClampedTemperature() float64 {
	switch {
	case c.Temperature < 0:
		return 0
	case c.Temperature > 2:
		return 2
	}
	return c.Temperature
}

// ContextBudget is the token allowance derived for a model.
type ContextBudget struct {
	MaxTokens      int
	ReservedBuffer int
}

// Usable returns the token budget available for the prompt after the
// response reservation is subtracted.
func (b ContextBudget) Usable() int {
	return b.MaxTokens - b.ReservedBuffer
}
