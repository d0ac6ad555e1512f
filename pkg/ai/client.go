// Package ai relays a templated prompt plus structured CV data to an
// external text-generation provider and returns cleaned HTML.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"time"
)

// Provider names accepted on the wire.
const (
	ProviderGemini      = "gemini"
	ProviderHuggingFace = "huggingFace"
)

// ProviderConfig is the opaque per-provider configuration: credentials and
// model identifiers are supplied through the environment only.
type ProviderConfig struct {
	APIToken string
	Model    string
	APIURL   string
	EnvVar   string // credential env var, named in configuration errors
}

// ConfigError means the request referenced a provider whose credential is
// not configured.
type ConfigError struct {
	Provider string
	EnvVar   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("Token API dla %s nie jest skonfigurowany. Sprawdź zmienną środowiskową: %s", e.Provider, e.EnvVar)
}

// UnknownProviderError lists the known providers.
type UnknownProviderError struct {
	Provider string
	Known    []string
}

func (e *UnknownProviderError) Error() string {
	return fmt.Sprintf("Nieznany provider: %s. Dostępne providery: %v", e.Provider, e.Known)
}

// ProviderError carries an upstream HTTP failure; the status code is
// preserved so the relay can pass it through.
type ProviderError struct {
	Status  int
	Message string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider returned %d: %s", e.Status, e.Message)
}

// Client forwards generation requests to the configured provider.
type Client struct {
	HTTP      *http.Client
	Providers map[string]ProviderConfig
}

// NewClient resolves provider configuration from the environment.
func NewClient() *Client {
	geminiModel := os.Getenv("GEMINI_MODEL")
	if geminiModel == "" {
		geminiModel = "gemini-2.0-flash-exp"
	}
	hfModel := os.Getenv("HUGGINGFACE_MODEL")
	if hfModel == "" {
		hfModel = "deepseek-ai/DeepSeek-R1:novita"
	}
	return &Client{
		HTTP: &http.Client{Timeout: 120 * time.Second},
		Providers: map[string]ProviderConfig{
			ProviderGemini: {
				APIToken: os.Getenv("GEMINI_API_TOKEN"),
				Model:    geminiModel,
				APIURL:   "https://generativelanguage.googleapis.com/v1beta/models",
				EnvVar:   "GEMINI_API_TOKEN",
			},
			ProviderHuggingFace: {
				APIToken: os.Getenv("HUGGINGFACE_API_TOKEN"),
				Model:    hfModel,
				APIURL:   "https://router.huggingface.co/v1/chat/completions",
				EnvVar:   "HUGGINGFACE_API_TOKEN",
			},
		},
	}
}

// Generate builds the full prompt, calls the chosen provider and returns
// the cleaned HTML from its raw text output. Provider HTTP errors come
// back as *ProviderError; no automatic retry is performed on them.
func (c *Client) Generate(ctx context.Context, provider, prompt, templateHTML string, cvData map[string]interface{}) (string, error) {
	cfg, ok := c.Providers[provider]
	if !ok {
		known := make([]string, 0, len(c.Providers))
		for name := range c.Providers {
			known = append(known, name)
		}
		sort.Strings(known)
		return "", &UnknownProviderError{Provider: provider, Known: known}
	}
	if cfg.APIToken == "" {
		return "", &ConfigError{Provider: provider, EnvVar: cfg.EnvVar}
	}

	fullPrompt := buildPrompt(prompt, templateHTML, cvData)

	var raw string
	var err error
	switch provider {
	case ProviderGemini:
		raw, err = c.generateGemini(ctx, cfg, fullPrompt)
	default:
		raw, err = c.generateChatCompletions(ctx, cfg, fullPrompt)
	}
	if err != nil {
		return "", err
	}
	return CleanGenerated(raw), nil
}

func buildPrompt(prompt, templateHTML string, cvData map[string]interface{}) string {
	if cvData == nil {
		cvData = map[string]interface{}{}
	}
	dataJSON, _ := json.MarshalIndent(cvData, "", "  ")
	return prompt + "\n\n\nSzablon HTML:\n" + templateHTML + "\n\n\nDane JSON:\n" + string(dataJSON)
}

// generateGemini speaks the generateContent format: the key travels as a
// query parameter and the text sits in contents[].parts[].
func (c *Client) generateGemini(ctx context.Context, cfg ProviderConfig, fullPrompt string) (string, error) {
	url := fmt.Sprintf("%s/%s:generateContent?key=%s", cfg.APIURL, cfg.Model, cfg.APIToken)
	body := map[string]interface{}{
		"contents": []map[string]interface{}{
			{"parts": []map[string]string{{"text": fullPrompt}}},
		},
	}

	respBody, err := c.post(ctx, url, nil, body)
	if err != nil {
		return "", err
	}

	var parsed struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("decode gemini response: %w", err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "Brak odpowiedzi od AI", nil
	}
	return parsed.Candidates[0].Content.Parts[0].Text, nil
}

// generateChatCompletions speaks the OpenAI-compatible chat format used by
// the HuggingFace router.
func (c *Client) generateChatCompletions(ctx context.Context, cfg ProviderConfig, fullPrompt string) (string, error) {
	body := map[string]interface{}{
		"messages": []map[string]string{{"role": "user", "content": fullPrompt}},
		"model":    cfg.Model,
	}
	headers := map[string]string{"Authorization": "Bearer " + cfg.APIToken}

	respBody, err := c.post(ctx, cfg.APIURL, headers, body)
	if err != nil {
		return "", err
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("decode provider response: %w", err)
	}
	if len(parsed.Choices) > 0 {
		return parsed.Choices[0].Message.Content, nil
	}
	if parsed.Content != "" {
		return parsed.Content, nil
	}
	return "Brak odpowiedzi od AI", nil
}

// post sends one JSON request. Transport-level failures are retried with
// backoff; a non-2xx response is not retried and surfaces as *ProviderError
// with a best-effort message extracted from the error body.
func (c *Client) post(ctx context.Context, url string, headers map[string]string, body interface{}) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	attempts := 3
	var resp *http.Response
	var lastErr error
	for i := 0; i < attempts; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err = c.HTTP.Do(req)
		if err == nil {
			break
		}
		lastErr = err
		resp = nil
		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(1<<i) * time.Second):
			}
		}
	}
	if resp == nil {
		return nil, fmt.Errorf("provider unreachable: %w", lastErr)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &ProviderError{Status: resp.StatusCode, Message: extractErrorMessage(respBody, resp.Status)}
	}
	return respBody, nil
}

// extractErrorMessage digs a human-readable message out of a provider error
// body, falling back to the raw body or HTTP status line.
func extractErrorMessage(body []byte, status string) string {
	var parsed struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		if len(parsed.Error) > 0 {
			var nested struct {
				Message string `json:"message"`
			}
			if json.Unmarshal(parsed.Error, &nested) == nil && nested.Message != "" {
				return nested.Message
			}
			var plain string
			if json.Unmarshal(parsed.Error, &plain) == nil && plain != "" {
				return plain
			}
		}
		if parsed.Message != "" {
			return parsed.Message
		}
	}
	if len(body) > 0 {
		return string(body)
	}
	return "Błąd " + status
}
