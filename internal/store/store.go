// Package store defines the persistence collaborator for finished
// transcripts. The streaming core never persists anything itself; it hands
// the surrounding system a conversation record to upsert by ID.
package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"chatstream/internal/models"
)

// ErrNotFound indicates no conversation exists for the given ID.
var ErrNotFound = errors.New("conversation not found")

// Conversation is the record handed to the surrounding system for durable
// storage.
type Conversation struct {
	ID           string
	Title        string
	Model        string
	SystemPrompt string
	Language     string
	Messages     []models.ChatMessage
	UpdatedAt    time.Time
}

// ConversationStore is the upsert-by-ID contract the core depends on.
type ConversationStore interface {
	Upsert(ctx context.Context, conv Conversation) error
	Get(ctx context.Context, id string) (Conversation, error)
}

// MemoryStore keeps conversations in process memory. It backs the CLI and
// tests; durable storage is the surrounding system's concern.
type MemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]Conversation
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{conversations: make(map[string]Conversation)}
}

// Upsert inserts or replaces the conversation record.
func (s *MemoryStore) Upsert(_ context.Context, conv Conversation) error {
	if conv.ID == "" {
		return errors.New("conversation id must not be empty")
	}
	conv.UpdatedAt = time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations[conv.ID] = conv
	return nil
}

// Get returns the conversation for the ID.
func (s *MemoryStore) Get(_ context.Context, id string) (Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[id]
	if !ok {
		return Conversation{}, ErrNotFound
	}
	return conv, nil
}
