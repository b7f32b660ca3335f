package domain

import "sync"

// RuntimeConfig tracks which backends are live.
// Thread-safe: capability flags flip when providers are swapped at runtime.
type RuntimeConfig struct {
	mu sync.RWMutex

	// Provider is the active AI provider pair ("ollama" or "gemini")
	Provider AIProvider

	embeddingAvailable bool
	llmAvailable       bool
}

// NewRuntimeConfig creates a runtime configuration for the given provider
func NewRuntimeConfig(provider AIProvider) *RuntimeConfig {
	return &RuntimeConfig{Provider: provider}
}

// EmbeddingAvailable reports whether an embedding backend is live
func (c *RuntimeConfig) EmbeddingAvailable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.embeddingAvailable
}

// LLMAvailable reports whether a generation backend is live
func (c *RuntimeConfig) LLMAvailable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.llmAvailable
}

// SetEmbeddingAvailable updates the embedding capability flag
func (c *RuntimeConfig) SetEmbeddingAvailable(available bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.embeddingAvailable = available
}

// SetLLMAvailable updates the LLM capability flag
func (c *RuntimeConfig) SetLLMAvailable(available bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.llmAvailable = available
}
