package mocks

import (
	"context"
	"errors"

	"github.com/custodia-labs/nimbus-core/internal/core/domain"
)

// MockLLMService is a scripted LLMService for testing. It streams the
// configured fragments and optionally fails before or during the stream.
type MockLLMService struct {
	// Fragments are streamed in order for every call
	Fragments []string

	// StartErr, when set, fails GenerateStream before any fragment
	StartErr error

	// FailAfter, when >= 0, sends a stream error after that many fragments
	FailAfter int

	// LastSystemPrompt and LastHistory record the most recent call
	LastSystemPrompt string
	LastUserMessage  string
	LastHistory      []domain.ChatMessage

	GenerateCalls int
}

// NewMockLLMService creates a mock that streams the given fragments
func NewMockLLMService(fragments ...string) *MockLLMService {
	return &MockLLMService{
		Fragments: fragments,
		FailAfter: -1,
	}
}

func (m *MockLLMService) GenerateStream(ctx context.Context, systemPrompt, userMessage string, history []domain.ChatMessage) (<-chan domain.StreamChunk, error) {
	m.GenerateCalls++
	m.LastSystemPrompt = systemPrompt
	m.LastUserMessage = userMessage
	m.LastHistory = domain.TruncateHistory(history)

	if m.StartErr != nil {
		return nil, m.StartErr
	}

	ch := make(chan domain.StreamChunk)
	go func() {
		defer close(ch)
		for i, frag := range m.Fragments {
			if m.FailAfter >= 0 && i == m.FailAfter {
				ch <- domain.StreamChunk{Err: errors.New("backend stream failure")}
				return
			}
			select {
			case ch <- domain.StreamChunk{Content: frag}:
			case <-ctx.Done():
				return
			}
		}
		if m.FailAfter >= 0 && m.FailAfter >= len(m.Fragments) {
			ch <- domain.StreamChunk{Err: errors.New("backend stream failure")}
		}
	}()
	return ch, nil
}

func (m *MockLLMService) Model() string {
	return "mock-llm-model"
}

func (m *MockLLMService) Ping(ctx context.Context) error {
	return nil
}

func (m *MockLLMService) Close() error {
	return nil
}
