// Package publisher delivers run-completion notifications to downstream
// consumers.
package publisher

import (
	"context"
	"fmt"
	"sync"
)

// Publisher sends one payload to a named topic and returns a message ID.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Memory stores published payloads for inspection. Meant for development and
// tests.
type Memory struct {
	mu       sync.RWMutex
	messages []PublishedMessage
}

// PublishedMessage captures one publish call.
type PublishedMessage struct {
	Topic   string
	Payload any
}

// NewMemory returns an in-memory Publisher.
func NewMemory() *Memory {
	return &Memory{}
}

// Publish records the message and returns a pseudo ID.
func (p *Memory) Publish(_ context.Context, topic string, payload any) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, PublishedMessage{Topic: topic, Payload: payload})
	return fmt.Sprintf("memory-%d", len(p.messages)), nil
}

// Messages returns the recorded publishes.
func (p *Memory) Messages() []PublishedMessage {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]PublishedMessage, len(p.messages))
	copy(out, p.messages)
	return out
}
