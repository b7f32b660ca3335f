package domain

// AIProvider identifies the AI/embedding provider
type AIProvider string

const (
	AIProviderOllama AIProvider = "ollama"
	AIProviderGemini AIProvider = "gemini"
)

// EmbeddingSettings configures the embedding backend
type EmbeddingSettings struct {
	Provider AIProvider `json:"provider"`
	Model    string     `json:"model"`
	BaseURL  string     `json:"base_url,omitempty"`
	APIKey   string     `json:"-"`
}

// IsConfigured reports whether the settings name a provider
func (e *EmbeddingSettings) IsConfigured() bool {
	return e != nil && e.Provider != ""
}

// LLMSettings configures the generation backend
type LLMSettings struct {
	Provider AIProvider `json:"provider"`
	Model    string     `json:"model"`
	BaseURL  string     `json:"base_url,omitempty"`
	APIKey   string     `json:"-"`

	// Generation parameters forwarded to the backend
	Temperature float64 `json:"temperature"`
	NumCtx      int     `json:"num_ctx,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

// IsConfigured reports whether the settings name a provider
func (l *LLMSettings) IsConfigured() bool {
	return l != nil && l.Provider != ""
}
