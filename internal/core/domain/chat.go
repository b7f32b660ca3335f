package domain

// Message roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// HistoryWindow is the number of trailing conversation messages forwarded to
// a generation backend. Older messages are dropped, not summarised, so that
// conversation length never grows backend latency or cost. Every backend
// applies the same window.
const HistoryWindow = 6

// ChatMessage is one prior conversational exchange message.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// TruncateHistory keeps the trailing HistoryWindow messages.
func TruncateHistory(history []ChatMessage) []ChatMessage {
	if len(history) > HistoryWindow {
		return history[len(history)-HistoryWindow:]
	}
	return history
}

// ChatRequest is one chat turn as received from a client.
type ChatRequest struct {
	Message string        `json:"message"`
	History []ChatMessage `json:"history"`
	Lat     *float64      `json:"lat,omitempty"`
	Lon     *float64      `json:"lon,omitempty"`
}

// ChatEventType discriminates the framed events of a chat turn stream.
type ChatEventType string

const (
	ChatEventToken     ChatEventType = "token"
	ChatEventCitations ChatEventType = "citations"
	ChatEventDone      ChatEventType = "done"
	ChatEventError     ChatEventType = "error"
)

// ChatEvent is one framed event pushed to the client. A turn produces zero or
// more token events, exactly one citations event, and exactly one terminal
// done or error event.
type ChatEvent struct {
	Type      ChatEventType `json:"type"`
	Content   string        `json:"content,omitempty"`
	Citations []Citation    `json:"citations,omitempty"`
	Message   string        `json:"message,omitempty"`
}

// TokenEvent frames one generated text fragment.
func TokenEvent(content string) ChatEvent {
	return ChatEvent{Type: ChatEventToken, Content: content}
}

// CitationsEvent frames the citation list. An empty list is still emitted.
func CitationsEvent(citations []Citation) ChatEvent {
	if citations == nil {
		citations = []Citation{}
	}
	return ChatEvent{Type: ChatEventCitations, Citations: citations}
}

// DoneEvent is the terminal success marker.
func DoneEvent() ChatEvent {
	return ChatEvent{Type: ChatEventDone}
}

// ErrorEvent is the terminal failure marker, mutually exclusive with done.
func ErrorEvent(message string) ChatEvent {
	return ChatEvent{Type: ChatEventError, Message: message}
}

// StreamChunk is one fragment produced by a generation backend. A non-nil
// Err terminates the stream; backends never silently drop a failure.
type StreamChunk struct {
	Content string
	Err     error
}
