package driving

import (
	"context"

	"github.com/custodia-labs/nimbus-core/internal/core/domain"
)

// ChatService drives one conversational turn: retrieval, weather context
// injection, prompt assembly and streamed generation.
type ChatService interface {
	// ChatStream runs a turn and returns its event stream. The channel
	// closes after a terminal done or error event. Cancelling ctx stops
	// generation and releases the upstream connection.
	ChatStream(ctx context.Context, req domain.ChatRequest) (<-chan domain.ChatEvent, error)
}
