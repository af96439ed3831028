package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiGenerator calls Google's Gemini generateContent API.
type GeminiGenerator struct {
	apiKey      string
	model       string
	baseURL     string
	temperature float64
	client      *http.Client
}

type GeminiConfig struct {
	APIKey      string
	Model       string
	BaseURL     string
	Temperature float64
	Timeout     time.Duration
}

func NewGeminiGenerator(cfg GeminiConfig) *GeminiGenerator {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "gemini-2.5-flash"
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultGeminiBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &GeminiGenerator{
		apiKey:      strings.TrimSpace(cfg.APIKey),
		model:       model,
		baseURL:     baseURL,
		temperature: cfg.Temperature,
		client:      &http.Client{Timeout: timeout},
	}
}

func (g *GeminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	body := geminiRequest{
		Contents: []geminiContent{{
			Role:  "user",
			Parts: []geminiPart{{Text: prompt}},
		}},
	}
	if g.temperature > 0 {
		body.GenerationConfig = &geminiGenerationConfig{Temperature: &g.temperature}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", &ServiceError{Provider: "gemini", Err: fmt.Errorf("marshal request: %w", err)}
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.baseURL, g.model, g.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", &ServiceError{Provider: "gemini", Err: fmt.Errorf("build request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := g.client.Do(httpReq)
	if err != nil {
		return "", &ServiceError{Provider: "gemini", Err: err}
	}
	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return "", &ServiceError{Provider: "gemini", Err: fmt.Errorf("read response: %w", err)}
	}
	if httpResp.StatusCode != http.StatusOK {
		return "", &ServiceError{Provider: "gemini",
			Err: fmt.Errorf("HTTP %d: %s", httpResp.StatusCode, truncate(string(respBody), 200))}
	}

	var parsed geminiResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", &ServiceError{Provider: "gemini", Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(parsed.Candidates) == 0 {
		return "", &ServiceError{Provider: "gemini", Err: fmt.Errorf("no candidates in response")}
	}

	var content strings.Builder
	for _, part := range parsed.Candidates[0].Content.Parts {
		content.WriteString(part.Text)
	}
	return strings.TrimSpace(content.String()), nil
}

type geminiRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenerationConfig struct {
	Temperature *float64 `json:"temperature,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
}

func truncate(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	return value[:limit] + "..."
}
