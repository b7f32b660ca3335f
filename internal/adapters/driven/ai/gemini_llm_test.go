package ai

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func sseGenerateServer(t *testing.T, lines ...string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "streamGenerateContent") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, line := range lines {
			fmt.Fprintf(w, "data: %s\n\n", line)
			flusher.Flush()
		}
	}))
}

func TestNewGeminiLLM_RequiresAPIKey(t *testing.T) {
	if _, err := NewGeminiLLM("", "gemini-1.5-flash", "", nil); err == nil {
		t.Error("expected error for empty API key")
	}
}

func TestGeminiLLM_GenerateStream(t *testing.T) {
	server := sseGenerateServer(t,
		`{"candidates":[{"content":{"parts":[{"text":"Expect"}]}}]}`,
		`{"candidates":[{"content":{"parts":[{"text":" light rain."}]}}]}`,
	)
	defer server.Close()

	svc, err := NewGeminiLLM("test-key", "gemini-1.5-flash", server.URL, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stream, err := svc.GenerateStream(context.Background(), "system", "forecast?", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var full strings.Builder
	for chunk := range stream {
		if chunk.Err != nil {
			t.Fatalf("unexpected stream error: %v", chunk.Err)
		}
		full.WriteString(chunk.Content)
	}
	if full.String() != "Expect light rain." {
		t.Errorf("got %q", full.String())
	}
}

func TestGeminiLLM_GenerateStream_ErrorAsFinalFragment(t *testing.T) {
	server := sseGenerateServer(t,
		`{"candidates":[{"content":{"parts":[{"text":"partial"}]}}]}`,
		`{"error":{"code":429,"message":"quota exceeded","status":"RESOURCE_EXHAUSTED"}}`,
	)
	defer server.Close()

	svc, _ := NewGeminiLLM("test-key", "gemini-1.5-flash", server.URL, nil)

	stream, err := svc.GenerateStream(context.Background(), "system", "hi", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var fragments []string
	for chunk := range stream {
		if chunk.Err != nil {
			t.Fatalf("gemini adapter surfaces errors as text, got Err: %v", chunk.Err)
		}
		fragments = append(fragments, chunk.Content)
	}

	if len(fragments) != 2 {
		t.Fatalf("expected 2 fragments, got %d", len(fragments))
	}
	if !strings.Contains(fragments[1], "Error generating response: quota exceeded") {
		t.Errorf("final fragment = %q, want error message", fragments[1])
	}
}

func TestGeminiLLM_GenerateStream_NonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	svc, _ := NewGeminiLLM("bad-key", "gemini-1.5-flash", server.URL, nil)

	if _, err := svc.GenerateStream(context.Background(), "sys", "hi", nil); err == nil {
		t.Fatal("expected error for non-OK status")
	}
}
