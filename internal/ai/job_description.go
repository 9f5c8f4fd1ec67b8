package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/qri-io/jsonschema"
)

// FlowJobDescription имя сценария, входит в ключ кэша.
const FlowJobDescription = "generateJobDescriptionFlow"

var ErrInvalidOutput = errors.New("ai: ответ модели не соответствует схеме")

const jobDescriptionSchemaJSON = `{
	"type": "object",
	"required": ["jobDescription"],
	"properties": {
		"jobDescription": {"type": "string", "minLength": 1}
	}
}`

var jobDescriptionSchema = mustSchema(jobDescriptionSchemaJSON)

func mustSchema(raw string) *jsonschema.Schema {
	rs := &jsonschema.Schema{}
	if err := json.Unmarshal([]byte(raw), rs); err != nil {
		panic(fmt.Sprintf("ai: некорректная схема: %v", err))
	}
	return rs
}

type JobDescriptionInput struct {
	JobTitle string `json:"jobTitle"`
}

type JobDescription struct {
	JobDescription string `json:"jobDescription"`
}

const jobDescriptionSystem = "You are an expert in writing job descriptions for CCTV installation jobs that attract qualified installers. Reply with a JSON object only."

func jobDescriptionPrompt(title string) string {
	return fmt.Sprintf(`Based on the job title provided, create a detailed and compelling job description.
The description should be approximately 150-250 words and should include information about the responsibilities, required skills, and benefits of the job. Make it sound exciting and professional.

Respond as JSON: {"jobDescription": "<text>"}

Job Title: %s`, title)
}

// GenerateJobDescription вызывает модель и проверяет ответ по схеме.
// Возвращает и разобранный результат, и нормализованный JSON для кэша.
func GenerateJobDescription(ctx context.Context, p Provider, in JobDescriptionInput) (*JobDescription, json.RawMessage, error) {
	raw, err := p.Complete(ctx, Request{
		System:      jobDescriptionSystem,
		Prompt:      jobDescriptionPrompt(in.JobTitle),
		MaxTokens:   800,
		Temperature: 0.7,
		JSON:        true,
	})
	if err != nil {
		return nil, nil, err
	}
	return ParseJobDescription(ctx, raw)
}

// ParseJobDescription извлекает JSON из текста модели и валидирует его.
func ParseJobDescription(ctx context.Context, text string) (*JobDescription, json.RawMessage, error) {
	data := extractJSON(text)
	if data == nil {
		return nil, nil, fmt.Errorf("%w: JSON не найден", ErrInvalidOutput)
	}

	keyErrs, err := jobDescriptionSchema.ValidateBytes(ctx, data)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidOutput, err)
	}
	if len(keyErrs) > 0 {
		return nil, nil, fmt.Errorf("%w: %s %s", ErrInvalidOutput, keyErrs[0].PropertyPath, keyErrs[0].Message)
	}

	var out JobDescription
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidOutput, err)
	}
	out.JobDescription = strings.TrimSpace(out.JobDescription)

	normalized, err := json.Marshal(out)
	if err != nil {
		return nil, nil, err
	}
	return &out, normalized, nil
}

var codeBlockRe = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)\\s*```")

// extractJSON пытается извлечь JSON объект из текста, который может содержать markdown.
func extractJSON(text string) []byte {
	jsonStart := strings.Index(text, "{")
	jsonEnd := strings.LastIndex(text, "}")
	if jsonStart != -1 && jsonEnd > jsonStart {
		candidate := []byte(text[jsonStart : jsonEnd+1])
		if json.Valid(candidate) {
			return candidate
		}
	}

	if m := codeBlockRe.FindStringSubmatch(text); len(m) > 1 && json.Valid([]byte(m[1])) {
		return []byte(m[1])
	}
	return nil
}
