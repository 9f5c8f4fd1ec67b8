package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJobDescription(t *testing.T) {
	ctx := context.Background()

	t.Run("чистый JSON", func(t *testing.T) {
		out, raw, err := ParseJobDescription(ctx, `{"jobDescription": "  Install 4 cameras  "}`)
		require.NoError(t, err)
		assert.Equal(t, "Install 4 cameras", out.JobDescription)
		assert.JSONEq(t, `{"jobDescription":"Install 4 cameras"}`, string(raw))
	})

	t.Run("JSON в markdown блоке", func(t *testing.T) {
		text := "Here you go:\n```json\n{\"jobDescription\": \"Wire the DVR\"}\n```"
		out, _, err := ParseJobDescription(ctx, text)
		require.NoError(t, err)
		assert.Equal(t, "Wire the DVR", out.JobDescription)
	})

	t.Run("нет обязательного поля", func(t *testing.T) {
		_, _, err := ParseJobDescription(ctx, `{"description": "x"}`)
		assert.ErrorIs(t, err, ErrInvalidOutput)
	})

	t.Run("неверный тип", func(t *testing.T) {
		_, _, err := ParseJobDescription(ctx, `{"jobDescription": 42}`)
		assert.ErrorIs(t, err, ErrInvalidOutput)
	})

	t.Run("не JSON", func(t *testing.T) {
		_, _, err := ParseJobDescription(ctx, "sorry, I can't help")
		assert.ErrorIs(t, err, ErrInvalidOutput)
	})
}

func TestClient_Complete(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{\"jobDescription\":\"ok\"}"}}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/v1", "key", "test-model")
	out, desc, err := generateWith(t, c)
	require.NoError(t, err)
	assert.Equal(t, "ok", out.JobDescription)
	assert.NotEmpty(t, desc)
	assert.Equal(t, "test-model", got["model"])
	assert.Equal(t, map[string]any{"type": "json_object"}, got["response_format"])
}

func TestClient_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"slow down"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "", "").Complete(context.Background(), Request{Prompt: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestClient_EmptyBaseURL(t *testing.T) {
	_, err := NewClient("", "", "").Complete(context.Background(), Request{Prompt: "hi"})
	assert.Error(t, err)
}

func TestOllamaClient_Complete(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"llama3.1","response":"{\"jobDescription\":\"from ollama\"}","done":true}`))
	}))
	defer srv.Close()

	c, err := NewOllamaClient(srv.URL, "llama3.1", srv.Client())
	require.NoError(t, err)

	out, _, err := generateWith(t, c)
	require.NoError(t, err)
	assert.Equal(t, "from ollama", out.JobDescription)
	assert.Equal(t, false, got["stream"])
	assert.Equal(t, "json", got["format"])
}

func TestNewProvider(t *testing.T) {
	p, err := NewProvider(ProviderOpenAI, "http://localhost:1", "", "m")
	require.NoError(t, err)
	assert.Equal(t, "m", p.Model())

	p, err = NewProvider(ProviderOllama, "http://localhost:11434", "", "")
	require.NoError(t, err)
	assert.Equal(t, "llama3.1", p.Model())

	_, err = NewProvider("bard", "", "", "")
	assert.Error(t, err)
}

func generateWith(t *testing.T, p Provider) (*JobDescription, json.RawMessage, error) {
	t.Helper()
	return GenerateJobDescription(context.Background(), p, JobDescriptionInput{JobTitle: "Install CCTV"})
}
