package driven

import (
	"context"

	"github.com/custodia-labs/nimbus-core/internal/core/domain"
)

// LLMService provides chat completion for answer generation.
//
// GenerateStream returns a channel of fragments that closes when generation
// finishes. The stream is finite and not restartable. A backend failure
// mid-stream must be signalled, never swallowed: implementations either send
// a StreamChunk with a non-nil Err as the final element, or (cloud backend)
// send the error message as a final text fragment - whichever policy a
// backend documents, it applies consistently. Cancelling ctx stops the
// stream and releases the underlying connection.
type LLMService interface {
	// GenerateStream produces answer fragments for one chat turn. Only the
	// trailing domain.HistoryWindow messages of history are forwarded to the
	// backend.
	GenerateStream(ctx context.Context, systemPrompt, userMessage string, history []domain.ChatMessage) (<-chan domain.StreamChunk, error)

	// Model returns the model name being used
	Model() string

	// Ping verifies the LLM service is available
	Ping(ctx context.Context) error

	// Close releases resources held by the LLM service
	Close() error
}
