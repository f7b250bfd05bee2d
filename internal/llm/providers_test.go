package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGroqCompleteSelectsModelByTier(t *testing.T) {
	var gotModel, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		gotModel = req.Model
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Errorf("messages = %+v", req.Messages)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": " hola "}}},
		})
	}))
	defer srv.Close()

	p := NewGroqProvider(GroqConfig{
		APIKey:       "k",
		BaseURL:      srv.URL,
		FastModel:    "fast-model",
		QualityModel: "quality-model",
	})

	got, err := p.Complete(context.Background(), Request{System: "sys", Prompt: "q", Tier: TierQuality})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if got != "hola" {
		t.Fatalf("Complete() = %q, want trimmed %q", got, "hola")
	}
	if gotModel != "quality-model" {
		t.Fatalf("model = %q, want quality-model", gotModel)
	}
	if gotAuth != "Bearer k" {
		t.Fatalf("auth header = %q", gotAuth)
	}
}

func TestGroqCompleteNon200IsProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": "rate_limit_exceeded"}`))
	}))
	defer srv.Close()

	p := NewGroqProvider(GroqConfig{APIKey: "k", BaseURL: srv.URL, FastModel: "m"})

	_, err := p.Complete(context.Background(), Request{Prompt: "q"})
	var pe *ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("error = %v, want *ProviderError", err)
	}
	if pe.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", pe.StatusCode)
	}
}

func TestGeminiCompleteFoldsSystemPrompt(t *testing.T) {
	var gotText, gotKey, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		var req struct {
			Contents []struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"contents"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		gotText = req.Contents[0].Parts[0].Text
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{{
				"content": map[string]any{"parts": []map[string]string{{"text": "respuesta"}}},
			}},
		})
	}))
	defer srv.Close()

	p := NewGeminiProvider(GeminiConfig{APIKey: "gk", BaseURL: srv.URL, Model: "gemini-2.0-flash"})

	got, err := p.Complete(context.Background(), Request{System: "sys", Prompt: "pregunta"})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if got != "respuesta" {
		t.Fatalf("Complete() = %q", got)
	}
	if gotPath != "/v1beta/models/gemini-2.0-flash:generateContent" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotKey != "gk" {
		t.Fatalf("api key header = %q", gotKey)
	}
	if gotText == "pregunta" {
		t.Fatal("system instructions were not folded into the user content")
	}
}

func TestGeminiCompleteNoCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"candidates": []any{}})
	}))
	defer srv.Close()

	p := NewGeminiProvider(GeminiConfig{APIKey: "gk", BaseURL: srv.URL, Model: "m"})

	_, err := p.Complete(context.Background(), Request{Prompt: "q"})
	var pe *ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("error = %v, want *ProviderError", err)
	}
}
