package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/yk-CNMB/gemini-itchat-bot/llm"
)

func TestChatCandidates(t *testing.T) {
	t.Parallel()

	var gotPath string
	var gotBody generateContentRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{
			"candidates": [{"content": {"role": "model", "parts": [{"text": "  hi there "}]}}],
			"usageMetadata": {"promptTokenCount": 7, "candidatesTokenCount": 3, "totalTokenCount": 10}
		}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "k-123")
	res, err := c.Chat(context.Background(), llm.Request{
		Model:       "gemini-pro",
		Prompt:      "User: hello\nAssistant:",
		MaxTokens:   300,
		Temperature: 0.7,
	})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if res.Text != "hi there" {
		t.Fatalf("Chat() text = %q, want %q", res.Text, "hi there")
	}
	if res.Usage.TotalTokens != 10 {
		t.Fatalf("Chat() total tokens = %d, want 10", res.Usage.TotalTokens)
	}
	if !strings.Contains(gotPath, "models/gemini-pro:generateContent") {
		t.Fatalf("request path = %q", gotPath)
	}
	if gotBody.GenerationConfig == nil || gotBody.GenerationConfig.MaxOutputTokens != 300 {
		t.Fatalf("request generationConfig = %+v", gotBody.GenerationConfig)
	}
}

func TestChatDirectTextField(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"text": " direct "}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "k")
	res, err := c.Chat(context.Background(), llm.Request{Model: "gemini-pro", Prompt: "p"})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if res.Text != "direct" {
		t.Fatalf("Chat() text = %q, want %q", res.Text, "direct")
	}
}

func TestChatHTTPError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": {"code": 429, "message": "quota exceeded", "status": "RESOURCE_EXHAUSTED"}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "k")
	_, err := c.Chat(context.Background(), llm.Request{Model: "gemini-pro", Prompt: "p"})
	if err == nil {
		t.Fatalf("Chat() expected error")
	}
	if !strings.Contains(err.Error(), "quota exceeded") {
		t.Fatalf("Chat() error = %v, want quota message", err)
	}
}

func TestChatFallsBackToRawBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"unexpected": "shape"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "k")
	res, err := c.Chat(context.Background(), llm.Request{Model: "gemini-pro", Prompt: "p"})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if !strings.Contains(res.Text, "unexpected") {
		t.Fatalf("Chat() text = %q, want raw body fallback", res.Text)
	}
}
