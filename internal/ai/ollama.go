package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
)

// OllamaClient провайдер для локально запущенной Ollama.
type OllamaClient struct {
	api   *api.Client
	model string
}

func NewOllamaClient(baseURL, model string, httpClient *http.Client) (*OllamaClient, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	u, err := url.ParseRequestURI(baseURL)
	if err != nil {
		return nil, fmt.Errorf("ai: некорректный адрес ollama: %w", err)
	}
	if model == "" {
		model = "llama3.1"
	}
	return &OllamaClient{api: api.NewClient(u, httpClient), model: model}, nil
}

func (c *OllamaClient) Model() string {
	return c.model
}

func (c *OllamaClient) Complete(ctx context.Context, req Request) (string, error) {
	stream := false
	genReq := &api.GenerateRequest{
		Model:  c.model,
		Prompt: req.Prompt,
		System: req.System,
		Stream: &stream,
		Options: map[string]any{
			"temperature": req.Temperature,
			"num_predict": req.maxTokens(),
		},
	}
	if req.JSON {
		genReq.Format = json.RawMessage(`"json"`)
	}

	var out strings.Builder
	err := c.api.Generate(ctx, genReq, func(r api.GenerateResponse) error {
		out.WriteString(r.Response)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ai: ollama generate: %w", err)
	}
	if out.Len() == 0 {
		return "", fmt.Errorf("ai: пустой ответ")
	}
	return out.String(), nil
}
