// Package triad provides the core types shared by the orchestration engine:
// backend messages, orchestration requests, personality pre-seeds, the agent
// payload union and orchestration results.
package triad

import (
	"fmt"
	"time"
)

// Message is a single turn exchanged with a reasoning backend.
type Message struct {
	Role      string                 `json:"role"`
	Content   string                 `json:"content"`
	Metadata  map[string]interface{} `json:"metadata"`
	Timestamp time.Time              `json:"timestamp"`
}

// NewMessage creates a new message with the given role and content.
func NewMessage(role, content string) *Message {
	return &Message{
		Role:      role,
		Content:   content,
		Metadata:  make(map[string]interface{}),
		Timestamp: time.Now().UTC(),
	}
}

// WithMetadata adds metadata to the message and returns the message for chaining.
func (m *Message) WithMetadata(key string, value interface{}) *Message {
	if m.Metadata == nil {
		m.Metadata = make(map[string]interface{})
	}
	m.Metadata[key] = value
	return m
}

const maxMessageContent = 1024 * 1024

var allowedMessageRoles = map[string]bool{
	"user":      true,
	"assistant": true,
	"system":    true,
	"agent":     true,
}

// Validate checks the role and the content size of the message.
func (m *Message) Validate() error {
	if m.Role == "" {
		return fmt.Errorf("message role cannot be empty")
	}
	if !allowedMessageRoles[m.Role] {
		return fmt.Errorf("invalid message role: %s. Must be one of: user, assistant, system, agent", m.Role)
	}
	if len(m.Content) > maxMessageContent {
		return fmt.Errorf("message content exceeds maximum size of %d bytes (got %d bytes)", maxMessageContent, len(m.Content))
	}
	return nil
}
