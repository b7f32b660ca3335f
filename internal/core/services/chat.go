package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/custodia-labs/nimbus-core/internal/core/domain"
	"github.com/custodia-labs/nimbus-core/internal/core/ports/driven"
	"github.com/custodia-labs/nimbus-core/internal/core/ports/driving"
	"github.com/custodia-labs/nimbus-core/internal/runtime"
)

// Ensure chatService implements ChatService
var _ driving.ChatService = (*chatService)(nil)

// chatService drives one conversational turn: retrieval, weather context
// injection, prompt assembly and streamed generation.
//
// Failure policy per stage: retrieval and weather errors degrade (empty
// context, no weather block) and the turn proceeds; generation errors are
// fatal to the turn and reported as the terminal error event.
type chatService struct {
	rag      driving.RAGService
	weather  driving.WeatherService // may be nil when no weather backend is wired
	services *runtime.Services
	logger   *slog.Logger
}

// NewChatService creates a new ChatService.
// The LLM is accessed dynamically via runtime.Services; weather may be nil.
func NewChatService(
	rag driving.RAGService,
	weather driving.WeatherService,
	services *runtime.Services,
	logger *slog.Logger,
) driving.ChatService {
	if logger == nil {
		logger = slog.Default()
	}
	return &chatService{
		rag:      rag,
		weather:  weather,
		services: services,
		logger:   logger,
	}
}

// ChatStream runs one chat turn and returns its event stream. The channel
// closes after exactly one terminal done or error event.
func (s *chatService) ChatStream(ctx context.Context, req domain.ChatRequest) (<-chan domain.ChatEvent, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, fmt.Errorf("%w: message must not be empty", domain.ErrInvalidInput)
	}

	llm := s.services.LLMService()
	if llm == nil {
		return nil, fmt.Errorf("%w: no generation backend configured", domain.ErrServiceUnavailable)
	}

	events := make(chan domain.ChatEvent)
	go func() {
		defer close(events)
		s.runTurn(ctx, llm, req, events)
	}()
	return events, nil
}

// runTurn executes the turn state machine, emitting events as it goes
func (s *chatService) runTurn(ctx context.Context, llm driven.LLMService, req domain.ChatRequest, events chan<- domain.ChatEvent) {
	// Retrieval. Errors degrade to an empty context, never fail the turn.
	contextItems, err := s.rag.GetContext(ctx, req.Message)
	if err != nil {
		s.logger.Warn("context retrieval failed, proceeding without context", "error", err)
		contextItems = nil
	}

	citations := make([]domain.Citation, 0, len(contextItems))
	for _, item := range contextItems {
		citations = append(citations, item.ToCitation())
	}

	// Weather snapshot, only when a location was supplied. A failure here
	// omits the weather block and nothing else.
	var report *domain.WeatherReport
	if s.weather != nil && req.Lat != nil && req.Lon != nil {
		report, err = s.weather.GetWeather(ctx, *req.Lat, *req.Lon, "metric")
		if err != nil {
			s.logger.Warn("weather lookup failed, proceeding without weather context", "error", err)
			report = nil
		}
	}

	systemPrompt := BuildSystemPrompt(contextItems, report)

	stream, err := llm.GenerateStream(ctx, systemPrompt, req.Message, req.History)
	if err != nil {
		s.emit(ctx, events, domain.ErrorEvent(err.Error()))
		return
	}

	for chunk := range stream {
		if chunk.Err != nil {
			s.emit(ctx, events, domain.ErrorEvent(chunk.Err.Error()))
			return
		}
		if chunk.Content == "" {
			continue
		}
		if !s.emit(ctx, events, domain.TokenEvent(chunk.Content)) {
			return
		}
	}

	if !s.emit(ctx, events, domain.CitationsEvent(citations)) {
		return
	}
	s.emit(ctx, events, domain.DoneEvent())
}

// emit sends an event unless the client has gone away
func (s *chatService) emit(ctx context.Context, events chan<- domain.ChatEvent, event domain.ChatEvent) bool {
	select {
	case events <- event:
		return true
	case <-ctx.Done():
		return false
	}
}

// BuildSystemPrompt assembles the generation system prompt from retrieved
// context and an optional current-conditions snapshot. Pure: no I/O, same
// inputs produce the same prompt.
func BuildSystemPrompt(contextItems []domain.RetrievedContext, weather *domain.WeatherReport) string {
	var contextText strings.Builder
	for i, item := range contextItems {
		if i > 0 {
			contextText.WriteString("\n\n")
		}
		fmt.Fprintf(&contextText, "[%s]: %s", item.Source, item.Content)
	}

	var weatherBlock string
	if weather != nil {
		weatherBlock = fmt.Sprintf(`
Current weather in %s:
- Temperature: %.1f°C (feels like %.1f°C)
- Conditions: %s
- Humidity: %d%%
- Wind: %.1f km/h
`,
			weather.Location,
			weather.Current.Temperature,
			weather.Current.FeelsLike,
			weather.Current.Description,
			weather.Current.Humidity,
			weather.Current.WindSpeed,
		)
	}

	return fmt.Sprintf(`You are a helpful weather assistant. Use the following knowledge base context and current weather data to answer questions accurately. Always cite your sources when using information from the knowledge base.

Knowledge Base Context:
%s

%s

Guidelines:
- Be concise and helpful
- For weather data, use the current weather information provided
- For explanations about weather concepts, UV, AQI, safety tips, cite the knowledge base
- If you don't know something, say so
- If the user asks about a specific time or location not provided, ask for clarification`,
		contextText.String(),
		weatherBlock,
	)
}

// Generate is the non-streaming convenience: it consumes GenerateStream and
// concatenates every fragment. No separate backend call path exists.
func Generate(ctx context.Context, llm driven.LLMService, systemPrompt, userMessage string, history []domain.ChatMessage) (string, error) {
	stream, err := llm.GenerateStream(ctx, systemPrompt, userMessage, history)
	if err != nil {
		return "", err
	}

	var full strings.Builder
	for chunk := range stream {
		if chunk.Err != nil {
			return full.String(), chunk.Err
		}
		full.WriteString(chunk.Content)
	}
	return full.String(), nil
}
