package ai

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

const defaultMaxTokens = 1024

// Request один запрос к модели.
type Request struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
	// JSON просит модель вернуть JSON объект.
	JSON bool
}

func (r Request) maxTokens() int {
	if r.MaxTokens <= 0 {
		return defaultMaxTokens
	}
	return r.MaxTokens
}

// Provider языковая модель, которой пользуются AI сценарии.
type Provider interface {
	Complete(ctx context.Context, req Request) (string, error)
	// Model входит в ключ кэша, смена модели сбрасывает кэш.
	Model() string
}

const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

// NewProvider выбирает реализацию по имени из конфигурации.
func NewProvider(kind, baseURL, apiKey, model string) (Provider, error) {
	switch kind {
	case "", ProviderOpenAI:
		return NewClient(baseURL, apiKey, model), nil
	case ProviderOllama:
		return NewOllamaClient(baseURL, model, &http.Client{Timeout: 120 * time.Second})
	}
	return nil, fmt.Errorf("ai: неизвестный провайдер %q", kind)
}
