package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/textloom/textloom"
)

func localServer(t *testing.T, handler http.HandlerFunc) *LocalProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewLocalProvider(LocalConfig{BaseURL: srv.URL, Model: "llama3.2"})
}

func TestLocalProvider_Submit(t *testing.T) {
	var gotReq localRequest

	p := localServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(localResponse{
			Message:         localMessage{Role: "assistant", Content: `{"texts": ["rewritten"]}`},
			Done:            true,
			PromptEvalCount: 12,
			EvalCount:       4,
		})
	})

	comp, err := p.Submit(context.Background(), Request{
		Task:  textloom.TaskParaphrase,
		Texts: []string{"original"},
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if gotReq.Model != "llama3.2" {
		t.Errorf("model: %q", gotReq.Model)
	}
	if gotReq.Stream {
		t.Error("streaming must be disabled")
	}
	if gotReq.Format != "json" {
		t.Errorf("format: %q", gotReq.Format)
	}
	if len(gotReq.Messages) != 2 || gotReq.Messages[0].Role != "system" {
		t.Errorf("unexpected messages: %v", gotReq.Messages)
	}

	if len(comp.Texts) != 1 || comp.Texts[0] != "rewritten" {
		t.Errorf("unexpected texts: %v", comp.Texts)
	}
	if comp.TokensIn != 12 || comp.TokensOut != 4 {
		t.Errorf("unexpected usage: in=%d out=%d", comp.TokensIn, comp.TokensOut)
	}
}

func TestLocalProvider_ServerError(t *testing.T) {
	p := localServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model loading", http.StatusInternalServerError)
	})

	_, err := p.Submit(context.Background(), Request{Texts: []string{"x"}})
	var provErr *textloom.ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if !provErr.Retryable {
		t.Error("500 should be retryable")
	}
}

func TestLocalProvider_RequestModelOverride(t *testing.T) {
	var gotReq localRequest
	p := localServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotReq)
		json.NewEncoder(w).Encode(localResponse{
			Message: localMessage{Content: `{"texts": ["ok"]}`},
		})
	})

	_, err := p.Submit(context.Background(), Request{Texts: []string{"x"}, Model: "mistral"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if gotReq.Model != "mistral" {
		t.Errorf("request model should win, got %q", gotReq.Model)
	}
}

func TestLocalProvider_ConnectionRefused(t *testing.T) {
	p := NewLocalProvider(LocalConfig{BaseURL: "http://127.0.0.1:1"})

	_, err := p.Submit(context.Background(), Request{Texts: []string{"x"}})
	var provErr *textloom.ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if !provErr.Retryable {
		t.Error("connection errors should be retryable")
	}
}
