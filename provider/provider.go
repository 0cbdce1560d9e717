// Package provider defines the LLM backend adapters.
package provider

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/textloom/textloom"
)

// Provider is the interface for LLM backends.
// This is an alias to the main package interface for convenience.
type Provider = textloom.Provider

// Request is an alias to the main package type.
type Request = textloom.Request

// Completion is an alias to the main package type.
type Completion = textloom.Completion

// Config holds backend-agnostic settings used by FromModel.
type Config struct {
	APIKey  string        // credential; falls back to the backend's env var
	BaseURL string        // custom endpoint (optional)
	Timeout time.Duration // per-attempt HTTP timeout for HTTP backends
}

// FromModel selects a backend from the model identifier: OpenAI-style models
// go to the OpenAI adapter, gemini* to the Gemini adapter, everything else
// to the local HTTP adapter.
func FromModel(model string, cfg Config) (Provider, error) {
	switch {
	case strings.HasPrefix(model, "gpt-"), strings.HasPrefix(model, "o1"),
		strings.HasPrefix(model, "o3"), strings.HasPrefix(model, "text-"):
		key := cfg.APIKey
		if key == "" {
			key = os.Getenv("OPENAI_API_KEY")
		}
		if key == "" {
			return nil, fmt.Errorf("OpenAI API key required for model %q (set OPENAI_API_KEY)", model)
		}
		return NewOpenAIProvider(OpenAIConfig{APIKey: key, Model: model, BaseURL: cfg.BaseURL}), nil

	case strings.HasPrefix(model, "gemini"):
		key := cfg.APIKey
		if key == "" {
			key = os.Getenv("GEMINI_API_KEY")
		}
		if key == "" {
			return nil, fmt.Errorf("Gemini API key required for model %q (set GEMINI_API_KEY)", model)
		}
		return NewGeminiProvider(GeminiConfig{APIKey: key, Model: model, BaseURL: cfg.BaseURL, Timeout: cfg.Timeout}), nil

	default:
		base := cfg.BaseURL
		if base == "" {
			base = os.Getenv("LOCAL_LLM_URL")
		}
		return NewLocalProvider(LocalConfig{BaseURL: base, Model: model, Timeout: cfg.Timeout}), nil
	}
}

// parseBatch parses a completion body into one text per input. Accepts an
// object with a "texts" array, an object whose first array value matches, or
// a bare array.
func parseBatch(content string, expectedCount int) ([]string, error) {
	var objResult map[string]interface{}
	if err := json.Unmarshal([]byte(content), &objResult); err == nil {
		if texts, ok := objResult["texts"]; ok {
			if arr, ok := texts.([]interface{}); ok {
				return toStringSlice(arr, expectedCount)
			}
		}

		// Fallback: first array value
		for _, v := range objResult {
			if arr, ok := v.([]interface{}); ok {
				return toStringSlice(arr, expectedCount)
			}
		}
	}

	var arrResult []interface{}
	if err := json.Unmarshal([]byte(content), &arrResult); err == nil {
		return toStringSlice(arrResult, expectedCount)
	}

	return nil, &textloom.ProviderError{
		Message:   "invalid response format from backend",
		Retryable: false,
	}
}

func toStringSlice(arr []interface{}, expectedCount int) ([]string, error) {
	result := make([]string, len(arr))
	for i, v := range arr {
		if s, ok := v.(string); ok {
			result[i] = s
		} else {
			result[i] = fmt.Sprintf("%v", v)
		}
	}

	if len(result) != expectedCount {
		return nil, &textloom.CountMismatchError{
			Expected: expectedCount,
			Got:      len(result),
		}
	}

	return result, nil
}

// retryableStatus reports whether an HTTP status indicates a transient
// failure. 429 and 5xx are retryable; any other 4xx is fatal.
func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

// retryableTransportError classifies connection-level failures. Timeouts and
// refused/reset connections are transient.
func retryableTransportError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range []string{
		"timeout",
		"connection refused",
		"connection reset",
		"temporary",
		"unexpected eof",
	} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
