package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gymsmart/gymsmart-backend/internal/common"
)

const (
	geminiBaseURL     = "https://generativelanguage.googleapis.com/v1beta"
	openRouterBaseURL = "https://openrouter.ai/api/v1"
	groqBaseURL       = "https://api.groq.com/openai/v1"

	maxProviderBody = 4 << 20
)

// aiProvider is one generative-AI backend
type aiProvider interface {
	Name() string
	// Vision sends a prompt plus one inline image and returns the raw text answer
	Vision(ctx context.Context, prompt, mimeType, imageBase64 string) (string, error)
	// Chat sends a text prompt and returns the raw text answer
	Chat(ctx context.Context, prompt string) (string, error)
}

// providerError non-2xx answer of a provider
type providerError struct {
	Provider string
	Status   int
	Body     string
}

func (e *providerError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Provider, e.Status, e.Body)
}

func (e *providerError) Unwrap() error {
	if e.Status == http.StatusTooManyRequests {
		return common.ErrQuotaExceeded
	}
	return nil
}

func postJSON(ctx context.Context, client *http.Client, provider, url string, headers map[string]string, body interface{}) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: request failed: %w", provider, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxProviderBody))
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", provider, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &providerError{Provider: provider, Status: resp.StatusCode, Body: truncateStr(string(respBody), 200)}
	}
	return respBody, nil
}

// ========================================
// Gemini (generateContent REST)
// ========================================

type geminiProvider struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

func newGeminiProvider(baseURL, apiKey, model string, client *http.Client) *geminiProvider {
	return &geminiProvider{baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey, model: model, client: client}
}

func (p *geminiProvider) Name() string { return "Gemini" }

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (p *geminiProvider) generate(ctx context.Context, parts []geminiPart, generationConfig map[string]interface{}) (string, error) {
	body := map[string]interface{}{
		"contents": []map[string]interface{}{
			{"role": "user", "parts": parts},
		},
	}
	if generationConfig != nil {
		body["generationConfig"] = generationConfig
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", p.baseURL, p.model)
	raw, err := postJSON(ctx, p.client, p.Name(), url, map[string]string{"x-goog-api-key": p.apiKey}, body)
	if err != nil {
		return "", err
	}

	var resp geminiResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("%s: %w: %v", p.Name(), common.ErrMalformedResponse, err)
	}
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("%s: %w: no candidates", p.Name(), common.ErrMalformedResponse)
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	return strings.TrimSpace(sb.String()), nil
}

func (p *geminiProvider) Vision(ctx context.Context, prompt, mimeType, imageBase64 string) (string, error) {
	parts := []geminiPart{
		{Text: prompt},
		{InlineData: &geminiInlineData{MimeType: mimeType, Data: imageBase64}},
	}
	return p.generate(ctx, parts, map[string]interface{}{
		"temperature":    0,
		"topP":           0.1,
		"candidateCount": 1,
	})
}

func (p *geminiProvider) Chat(ctx context.Context, prompt string) (string, error) {
	return p.generate(ctx, []geminiPart{{Text: prompt}}, nil)
}

// ========================================
// OpenAI-compatible chat/completions (OpenRouter, Groq)
// ========================================

type openAIProvider struct {
	name        string
	baseURL     string
	apiKey      string
	visionModel string
	chatModel   string
	headers     map[string]string
	client      *http.Client
}

func newOpenAIProvider(name, baseURL, apiKey, visionModel, chatModel string, client *http.Client) *openAIProvider {
	return &openAIProvider{
		name:        name,
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      apiKey,
		visionModel: visionModel,
		chatModel:   chatModel,
		headers:     map[string]string{"Authorization": "Bearer " + apiKey},
		client:      client,
	}
}

func (p *openAIProvider) Name() string { return p.name }

func (p *openAIProvider) complete(ctx context.Context, body map[string]interface{}) (string, error) {
	raw, err := postJSON(ctx, p.client, p.name, p.baseURL+"/chat/completions", p.headers, body)
	if err != nil {
		return "", err
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", fmt.Errorf("%s: %w: %v", p.name, common.ErrMalformedResponse, err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("%s: %w: no choices", p.name, common.ErrMalformedResponse)
	}
	return strings.TrimSpace(result.Choices[0].Message.Content), nil
}

func (p *openAIProvider) Vision(ctx context.Context, prompt, mimeType, imageBase64 string) (string, error) {
	return p.complete(ctx, map[string]interface{}{
		"model":       p.visionModel,
		"temperature": 0,
		"seed":        42,
		"messages": []map[string]interface{}{{
			"role": "user",
			"content": []map[string]interface{}{
				{"type": "text", "text": prompt},
				{"type": "image_url", "image_url": map[string]string{
					"url": "data:" + mimeType + ";base64," + imageBase64,
				}},
			},
		}},
	})
}

func (p *openAIProvider) Chat(ctx context.Context, prompt string) (string, error) {
	return p.complete(ctx, map[string]interface{}{
		"model": p.chatModel,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	})
}

func truncateStr(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}

func newAIHTTPClient(timeoutSeconds int) *http.Client {
	if timeoutSeconds <= 0 {
		timeoutSeconds = 60
	}
	return &http.Client{Timeout: time.Duration(timeoutSeconds) * time.Second}
}

// isQuotaError reports whether a provider rejected the call for rate limits
func isQuotaError(err error) bool {
	return errors.Is(err, common.ErrQuotaExceeded)
}
