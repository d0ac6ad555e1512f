package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestCleanGenerated(t *testing.T) {
	tests := []struct {
		desc string
		raw  string
		want string
	}{
		{
			desc: "fenced html block wins",
			raw:  "Oto wygenerowane CV:\n```html\n<html><body>cv</body></html>\n```\nPowodzenia!",
			want: "<html><body>cv</body></html>",
		},
		{
			desc: "no fence falls back to full text",
			raw:  "  <html><body>cv</body></html>  ",
			want: "<html><body>cv</body></html>",
		},
		{
			desc: "think span stripped before extraction",
			raw:  "<think>rozważam układ dwukolumnowy...</think>```html\n<div>cv</div>\n```",
			want: "<div>cv</div>",
		},
		{
			desc: "redacted reasoning stripped",
			raw:  "<redacted_reasoning token=\"5\">xxx</redacted_reasoning><p>cv</p>",
			want: "<p>cv</p>",
		},
		{
			desc: "reasoning only leaves empty string",
			raw:  "<think>nic więcej</think>",
			want: "",
		},
		{
			desc: "first of several fences wins",
			raw:  "```html\n<p>pierwszy</p>\n```\n```html\n<p>drugi</p>\n```",
			want: "<p>pierwszy</p>",
		},
		{
			desc: "fence casing is ignored",
			raw:  "```HTML\n<p>cv</p>\n```",
			want: "<p>cv</p>",
		},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			if got := CleanGenerated(tt.raw); got != tt.want {
				t.Errorf("CleanGenerated = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGenerateUnknownProvider(t *testing.T) {
	c := NewClient()
	_, err := c.Generate(context.Background(), "openai", "p", "<html/>", nil)

	var unknown *UnknownProviderError
	if !errors.As(err, &unknown) {
		t.Fatalf("err = %v, want UnknownProviderError", err)
	}
	msg := err.Error()
	if !strings.Contains(msg, "gemini") || !strings.Contains(msg, "huggingFace") {
		t.Errorf("error %q does not list known providers", msg)
	}
}

func TestGenerateMissingToken(t *testing.T) {
	// WHAT: A provider without a credential fails fast, naming the env var
	// the operator must set.
	c := &Client{
		HTTP: http.DefaultClient,
		Providers: map[string]ProviderConfig{
			ProviderGemini: {EnvVar: "GEMINI_API_TOKEN"},
		},
	}
	_, err := c.Generate(context.Background(), ProviderGemini, "p", "<html/>", nil)

	var cfg *ConfigError
	if !errors.As(err, &cfg) {
		t.Fatalf("err = %v, want ConfigError", err)
	}
	if !strings.Contains(err.Error(), "GEMINI_API_TOKEN") {
		t.Errorf("error %q does not name the env var", err.Error())
	}
}

func TestGenerateGemini(t *testing.T) {
	var gotPath, gotKey string
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("key")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"candidates": []map[string]interface{}{
				{"content": map[string]interface{}{
					"parts": []map[string]string{{"text": "```html\n<p>cv</p>\n```"}},
				}},
			},
		})
	}))
	defer srv.Close()

	c := &Client{
		HTTP: srv.Client(),
		Providers: map[string]ProviderConfig{
			ProviderGemini: {
				APIToken: "sekret",
				Model:    "gemini-2.0-flash-exp",
				APIURL:   srv.URL,
				EnvVar:   "GEMINI_API_TOKEN",
			},
		},
	}

	html, err := c.Generate(context.Background(), ProviderGemini, "Wygeneruj CV", "<html/>", map[string]interface{}{"personal": map[string]interface{}{"name": "Jan"}})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if html != "<p>cv</p>" {
		t.Errorf("html = %q", html)
	}
	if gotPath != "/gemini-2.0-flash-exp:generateContent" {
		t.Errorf("path = %q", gotPath)
	}
	if gotKey != "sekret" {
		t.Errorf("key = %q, want token as query parameter", gotKey)
	}

	contents, _ := gotBody["contents"].([]interface{})
	if len(contents) != 1 {
		t.Fatalf("contents = %v", gotBody["contents"])
	}
	first, _ := contents[0].(map[string]interface{})
	parts, _ := first["parts"].([]interface{})
	part, _ := parts[0].(map[string]interface{})
	text, _ := part["text"].(string)
	if !strings.Contains(text, "Wygeneruj CV") || !strings.Contains(text, "Szablon HTML:") || !strings.Contains(text, "Dane JSON:") {
		t.Errorf("prompt missing sections: %q", text)
	}
	if !strings.Contains(text, `"Jan"`) {
		t.Error("cv data not embedded in prompt")
	}
}

func TestGenerateHuggingFace(t *testing.T) {
	var gotAuth string
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": "<think>plan</think><p>cv</p>"}},
			},
		})
	}))
	defer srv.Close()

	c := &Client{
		HTTP: srv.Client(),
		Providers: map[string]ProviderConfig{
			ProviderHuggingFace: {
				APIToken: "hf-sekret",
				Model:    "deepseek-ai/DeepSeek-R1:novita",
				APIURL:   srv.URL,
				EnvVar:   "HUGGINGFACE_API_TOKEN",
			},
		},
	}

	html, err := c.Generate(context.Background(), ProviderHuggingFace, "Wygeneruj", "<html/>", nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if html != "<p>cv</p>" {
		t.Errorf("html = %q, want reasoning stripped", html)
	}
	if gotAuth != "Bearer hf-sekret" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotBody["model"] != "deepseek-ai/DeepSeek-R1:novita" {
		t.Errorf("model = %v", gotBody["model"])
	}
}

func TestGeneratePassesThroughProviderStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]string{"message": "Rate limit exceeded"},
		})
	}))
	defer srv.Close()

	c := &Client{
		HTTP: srv.Client(),
		Providers: map[string]ProviderConfig{
			ProviderGemini: {APIToken: "x", Model: "m", APIURL: srv.URL, EnvVar: "GEMINI_API_TOKEN"},
		},
	}

	_, err := c.Generate(context.Background(), ProviderGemini, "p", "<html/>", nil)
	var provErr *ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("err = %v, want ProviderError", err)
	}
	if provErr.Status != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429 preserved", provErr.Status)
	}
	if provErr.Message != "Rate limit exceeded" {
		t.Errorf("message = %q", provErr.Message)
	}
}

func TestExtractErrorMessage(t *testing.T) {
	tests := []struct {
		desc string
		body string
		want string
	}{
		{"nested error object", `{"error":{"message":"quota"}}`, "quota"},
		{"plain error string", `{"error":"broken"}`, "broken"},
		{"top-level message", `{"message":"nope"}`, "nope"},
		{"unparseable body", `<html>502</html>`, "<html>502</html>"},
		{"empty body", ``, "Błąd 502 Bad Gateway"},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			if got := extractErrorMessage([]byte(tt.body), "502 Bad Gateway"); got != tt.want {
				t.Errorf("extractErrorMessage = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPostRetriesTransportFailures(t *testing.T) {
	// WHAT: A connection-level failure is retried; an HTTP error status is
	// not.
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"zawsze źle"}`))
	}))
	defer srv.Close()

	c := &Client{HTTP: srv.Client()}
	_, err := c.post(context.Background(), srv.URL, nil, map[string]string{"a": "b"})
	var provErr *ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("err = %v, want ProviderError", err)
	}
	if hits != 1 {
		t.Errorf("hits = %d, want 1 (no retry on HTTP error)", hits)
	}

	// unreachable endpoint: all attempts consumed
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	deadURL := dead.URL
	dead.Close()

	c2 := &Client{HTTP: &http.Client{Timeout: 200 * time.Millisecond}}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := c2.post(ctx, deadURL, nil, map[string]string{}); err == nil {
		t.Fatal("post to closed server succeeded")
	}
}

func TestNewClientDefaults(t *testing.T) {
	t.Setenv("GEMINI_MODEL", "")
	t.Setenv("HUGGINGFACE_MODEL", "")
	c := NewClient()
	if got := c.Providers[ProviderGemini].Model; got != "gemini-2.0-flash-exp" {
		t.Errorf("gemini model = %q", got)
	}
	if got := c.Providers[ProviderHuggingFace].Model; got != "deepseek-ai/DeepSeek-R1:novita" {
		t.Errorf("huggingface model = %q", got)
	}
}
