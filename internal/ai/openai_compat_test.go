package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"
)

func TestOpenAICompatGenerate(t *testing.T) {
	var got map[string]any
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"choices": []any{map[string]any{"index": 0, "message": map[string]any{"role": "assistant", "content": "Saka created 4 chances."}}},
			"usage":   map[string]any{"prompt_tokens": 10, "completion_tokens": 6, "total_tokens": 16},
		})
	}))
	defer srv.Close()

	c := NewOpenAICompatClient("sk-test", srv.URL+"/v1", 2*time.Second)
	resp, err := c.Generate(context.Background(), GenerateRequest{
		Model:       "gpt-4o-mini",
		Messages:    []Message{{Role: "system", Content: "analyst"}, {Role: "user", Content: "report"}},
		Temperature: 0.7,
	})
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if resp.Text() != "Saka created 4 chances." || resp.Usage.TotalTokens != 16 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if got["model"] != "gpt-4o-mini" {
		t.Fatalf("unexpected request model: %v", got["model"])
	}
	if msgs, _ := got["messages"].([]any); len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %v", got["messages"])
	}
}

func TestOpenAICompatStream(t *testing.T) {
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, d := range []string{"Key ", "", "findings"} {
			fmt.Fprintf(w, "data: {\"id\":\"c\",\"choices\":[{\"index\":0,\"delta\":{\"content\":%q}}]}\n\n", d)
		}
		fmt.Fprintf(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	c := NewOpenAICompatClient("sk-test", srv.URL, 2*time.Second)
	var deltas []string
	err := c.GenerateStream(context.Background(), GenerateRequest{Model: "m", Messages: []Message{{Role: "user", Content: "hi"}}}, func(d string) {
		deltas = append(deltas, d)
	})
	if err != nil {
		t.Fatalf("GenerateStream error: %v", err)
	}
	if len(deltas) != 2 || deltas[0]+deltas[1] != "Key findings" {
		t.Fatalf("unexpected deltas: %q", deltas)
	}
}

func TestOpenAICompatMapsAuthError(t *testing.T) {
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": "Incorrect API key", "type": "invalid_request_error", "code": "invalid_api_key"}})
	}))
	defer srv.Close()

	c := NewOpenAICompatClient("bad", srv.URL, 2*time.Second)
	_, err := c.Generate(context.Background(), GenerateRequest{Model: "m", Messages: []Message{{Role: "user", Content: "hi"}}})
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthError, got %T: %v", err, err)
	}
	if authErr.Code != "invalid_api_key" {
		t.Fatalf("unexpected code %q", authErr.Code)
	}
}

func TestOpenAICompatRejectsEmptyMessages(t *testing.T) {
	c := NewOpenAICompatClient("k", "", time.Second)
	if _, err := c.Generate(context.Background(), GenerateRequest{Model: "m"}); err == nil {
		t.Fatalf("expected error for empty messages")
	}
}

func TestRegistryBuildsEveryProvider(t *testing.T) {
	for _, name := range []string{ProviderOpenRouter, ProviderOllama, ProviderLocal, ProviderOpenAI} {
		rt, ok := GetRuntime(name, RuntimeConfig{APIKey: "k"})
		if !ok || rt == nil {
			t.Fatalf("provider %s not registered", name)
		}
		if _, ok := rt.(StreamRuntime); !ok {
			t.Fatalf("provider %s does not stream", name)
		}
	}
	if _, ok := GetRuntime("nope", RuntimeConfig{}); ok {
		t.Fatalf("unexpected runtime for unknown provider")
	}
	if NeedsAPIKey(ProviderOllama) || !NeedsAPIKey(ProviderOpenRouter) {
		t.Fatalf("NeedsAPIKey mismatch")
	}
}
