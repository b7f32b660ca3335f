package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/custodia-labs/nimbus-core/internal/core/domain"
	"github.com/custodia-labs/nimbus-core/internal/core/ports/driven"
)

// Ensure GeminiLLM implements LLMService
var _ driven.LLMService = (*GeminiLLM)(nil)

// GeminiLLM implements LLMService using the Gemini streamGenerateContent
// REST endpoint.
//
// Failure policy: an error after streaming has begun is surfaced as a final
// text fragment carrying the error message, so partial answers always end
// with a visible explanation rather than a truncation.
type GeminiLLM struct {
	apiKey          string
	model           string
	baseURL         string
	temperature     float64
	maxOutputTokens int
	client          *http.Client
}

// NewGeminiLLM creates a new Gemini chat service
func NewGeminiLLM(apiKey, model, baseURL string, settings *domain.LLMSettings) (driven.LLMService, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}
	if model == "" {
		model = "gemini-1.5-flash"
	}
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}

	llm := &GeminiLLM{
		apiKey:          apiKey,
		model:           model,
		baseURL:         baseURL,
		temperature:     0.7,
		maxOutputTokens: 1024,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
	if settings != nil && settings.Temperature > 0 {
		llm.temperature = settings.Temperature
	}
	return llm, nil
}

type geminiTurn struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type geminiGenerateRequest struct {
	Contents         []geminiTurn           `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiGenerateChunk struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *geminiAPIError `json:"error,omitempty"`
}

// GenerateStream produces answer fragments for one chat turn. The system
// prompt is folded into the final user turn, matching the Gemini content
// role model which has no system role.
func (l *GeminiLLM) GenerateStream(ctx context.Context, systemPrompt, userMessage string, history []domain.ChatMessage) (<-chan domain.StreamChunk, error) {
	var contents []geminiTurn
	for _, msg := range domain.TruncateHistory(history) {
		role := "user"
		if msg.Role == domain.RoleAssistant {
			role = "model"
		}
		contents = append(contents, geminiTurn{
			Role:  role,
			Parts: []geminiPart{{Text: msg.Content}},
		})
	}
	contents = append(contents, geminiTurn{
		Role:  "user",
		Parts: []geminiPart{{Text: fmt.Sprintf("%s\n\nUser question: %s", systemPrompt, userMessage)}},
	})

	body, err := json.Marshal(geminiGenerateRequest{
		Contents: contents,
		GenerationConfig: geminiGenerationConfig{
			Temperature:     l.temperature,
			MaxOutputTokens: l.maxOutputTokens,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:streamGenerateContent?alt=sse&key=%s", l.baseURL, l.model, l.apiKey)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
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
		return nil, fmt.Errorf("%w: Gemini returned status %d", domain.ErrGeneration, resp.StatusCode)
	}

	chunks := make(chan domain.StreamChunk)
	go func() {
		defer close(chunks)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if payload == "" || payload == "[DONE]" {
				continue
			}

			var chunk geminiGenerateChunk
			if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
				continue
			}

			if chunk.Error != nil {
				l.send(ctx, chunks, domain.StreamChunk{
					Content: fmt.Sprintf("Error generating response: %s", chunk.Error.Message),
				})
				return
			}

			for _, cand := range chunk.Candidates {
				for _, part := range cand.Content.Parts {
					if part.Text == "" {
						continue
					}
					if !l.send(ctx, chunks, domain.StreamChunk{Content: part.Text}) {
						return
					}
				}
			}
		}

		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			l.send(ctx, chunks, domain.StreamChunk{
				Content: fmt.Sprintf("Error generating response: %v", err),
			})
		}
	}()

	return chunks, nil
}

// Model returns the model name being used
func (l *GeminiLLM) Model() string {
	return l.model
}

// Ping verifies the Gemini API is reachable
func (l *GeminiLLM) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	url := fmt.Sprintf("%s/models/%s?key=%s", l.baseURL, l.model, l.apiKey)
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return err
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return fmt.Errorf("gemini unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gemini returned status %d", resp.StatusCode)
	}
	return nil
}

// Close releases resources held by the LLM service
func (l *GeminiLLM) Close() error {
	l.client.CloseIdleConnections()
	return nil
}

func (l *GeminiLLM) send(ctx context.Context, chunks chan<- domain.StreamChunk, chunk domain.StreamChunk) bool {
	select {
	case chunks <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}
