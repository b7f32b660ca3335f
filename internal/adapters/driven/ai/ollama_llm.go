package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/custodia-labs/nimbus-core/internal/core/domain"
	"github.com/custodia-labs/nimbus-core/internal/core/ports/driven"
)

// Ensure OllamaLLM implements LLMService
var _ driven.LLMService = (*OllamaLLM)(nil)

// OllamaLLM implements LLMService against a local Ollama chat endpoint.
//
// Failure policy: a backend error mid-stream is delivered as a final
// StreamChunk with a non-nil Err. The caller escalates it; fragments are
// never silently truncated.
type OllamaLLM struct {
	baseURL     string
	model       string
	temperature float64
	numCtx      int
	numPredict  int
	client      *http.Client
}

// NewOllamaLLM creates a new Ollama chat service
func NewOllamaLLM(baseURL, model string, settings *domain.LLMSettings) (driven.LLMService, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3.2:3b"
	}

	llm := &OllamaLLM{
		baseURL:     baseURL,
		model:       model,
		temperature: 0.7,
		numCtx:      2048,
		numPredict:  256,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
	if settings != nil {
		if settings.Temperature > 0 {
			llm.temperature = settings.Temperature
		}
		if settings.NumCtx > 0 {
			llm.numCtx = settings.NumCtx
		}
		if settings.NumPredict > 0 {
			llm.numPredict = settings.NumPredict
		}
	}
	return llm, nil
}

// ollamaChatMessage is one message in the Ollama chat request
type ollamaChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ollamaChatRequest is the request body for the Ollama chat API
type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []ollamaChatMessage `json:"messages"`
	Stream   bool                `json:"stream"`
	Options  ollamaChatOptions   `json:"options"`
}

type ollamaChatOptions struct {
	NumCtx      int     `json:"num_ctx"`
	NumPredict  int     `json:"num_predict"`
	Temperature float64 `json:"temperature"`
}

// ollamaChatChunk is one NDJSON line of the streamed chat response
type ollamaChatChunk struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done  bool   `json:"done"`
	Error string `json:"error,omitempty"`
}

// GenerateStream produces answer fragments for one chat turn
func (l *OllamaLLM) GenerateStream(ctx context.Context, systemPrompt, userMessage string, history []domain.ChatMessage) (<-chan domain.StreamChunk, error) {
	messages := []ollamaChatMessage{{Role: "system", Content: systemPrompt}}
	for _, msg := range domain.TruncateHistory(history) {
		messages = append(messages, ollamaChatMessage{Role: msg.Role, Content: msg.Content})
	}
	messages = append(messages, ollamaChatMessage{Role: "user", Content: userMessage})

	body, err := json.Marshal(ollamaChatRequest{
		Model:    l.model,
		Messages: messages,
		Stream:   true,
		Options: ollamaChatOptions{
			NumCtx:      l.numCtx,
			NumPredict:  l.numPredict,
			Temperature: l.temperature,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", l.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGeneration, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: ollama returned status %d", domain.ErrGeneration, resp.StatusCode)
	}

	chunks := make(chan domain.StreamChunk)
	go func() {
		defer close(chunks)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}

			var chunk ollamaChatChunk
			if err := json.Unmarshal(line, &chunk); err != nil {
				// Skip malformed keepalive lines, matching the backend's
				// documented NDJSON framing.
				continue
			}

			if chunk.Error != "" {
				l.send(ctx, chunks, domain.StreamChunk{Err: fmt.Errorf("%w: %s", domain.ErrGeneration, chunk.Error)})
				return
			}
			if chunk.Message.Content != "" {
				if !l.send(ctx, chunks, domain.StreamChunk{Content: chunk.Message.Content}) {
					return
				}
			}
			if chunk.Done {
				return
			}
		}

		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			l.send(ctx, chunks, domain.StreamChunk{Err: fmt.Errorf("%w: %v", domain.ErrGeneration, err)})
		}
	}()

	return chunks, nil
}

// Model returns the model name being used
func (l *OllamaLLM) Model() string {
	return l.model
}

// Ping verifies the Ollama server is reachable
func (l *OllamaLLM) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", l.baseURL+"/api/tags", nil)
	if err != nil {
		return err
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return fmt.Errorf("ollama unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama returned status %d", resp.StatusCode)
	}
	return nil
}

// Close releases resources held by the LLM service
func (l *OllamaLLM) Close() error {
	l.client.CloseIdleConnections()
	return nil
}

// send delivers a chunk unless the consumer has gone away
func (l *OllamaLLM) send(ctx context.Context, chunks chan<- domain.StreamChunk, chunk domain.StreamChunk) bool {
	select {
	case chunks <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}
