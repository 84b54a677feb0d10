package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/atlascope/wikirag/internal/domain"
)

func TestGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var req map[string]any
		json.NewDecoder(r.Body).Decode(&req)
		if req["model"] != "llama3" {
			t.Errorf("unexpected model: %v", req["model"])
		}
		if req["stream"] != false {
			t.Error("expected stream false")
		}
		opts, ok := req["options"].(map[string]any)
		if !ok || opts["temperature"].(float64) != 0.2 {
			t.Errorf("temperature not forwarded: %v", req["options"])
		}
		json.NewEncoder(w).Encode(Result{
			Model:    "llama3",
			Response: "An answer.",
			Done:     true,
		})
	}))
	defer server.Close()

	temp := 0.2
	result, err := NewClient(Config{Host: server.URL}).Generate(context.Background(), Request{
		Model:       "llama3",
		Prompt:      "Question?",
		Temperature: &temp,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Response != "An answer." || !result.Done {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestGenerate_OmitsUnsetOptions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		json.NewDecoder(r.Body).Decode(&req)
		if _, ok := req["options"]; ok {
			t.Error("options should be omitted when no temperature is set")
		}
		if _, ok := req["system"]; ok {
			t.Error("system should be omitted when empty")
		}
		json.NewEncoder(w).Encode(Result{Done: true})
	}))
	defer server.Close()

	_, err := NewClient(Config{Host: server.URL}).Generate(context.Background(), Request{
		Model:  "llama3",
		Prompt: "Question?",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestGenerate_UpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("model not found"))
	}))
	defer server.Close()

	_, err := NewClient(Config{Host: server.URL}).Generate(context.Background(), Request{
		Model: "missing", Prompt: "hi",
	})
	if !errors.Is(err, domain.ErrUpstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
}
