package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/textloom/textloom"
)

const geminiDefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiProvider implements Provider using Google's generateContent API.
type GeminiProvider struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// GeminiConfig holds configuration for the Gemini provider.
type GeminiConfig struct {
	APIKey  string        // Google API key
	Model   string        // Default model (default: "gemini-1.5-flash")
	BaseURL string        // Override for testing (optional)
	Timeout time.Duration // HTTP timeout per attempt (default: 60s)
}

// NewGeminiProvider creates a new Gemini provider.
func NewGeminiProvider(cfg GeminiConfig) *GeminiProvider {
	model := cfg.Model
	if model == "" {
		model = "gemini-1.5-flash"
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = geminiDefaultBaseURL
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &GeminiProvider{
		apiKey:  cfg.APIKey,
		model:   model,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature      float32 `json:"temperature,omitempty"`
	MaxOutputTokens  int     `json:"maxOutputTokens,omitempty"`
	ResponseMimeType string  `json:"responseMimeType,omitempty"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent         `json:"systemInstruction,omitempty"`
	Contents          []geminiContent        `json:"contents"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
}

// Submit sends a batch of texts through Gemini and returns one result per
// input text plus token usage.
func (p *GeminiProvider) Submit(ctx context.Context, req Request) (*Completion, error) {
	if len(req.Texts) == 0 {
		return &Completion{Texts: []string{}}, nil
	}

	model := req.Model
	if model == "" {
		model = p.model
	}

	body, err := json.Marshal(geminiRequest{
		SystemInstruction: &geminiContent{
			Parts: []geminiPart{{Text: textloom.BuildSystemPrompt(req)}},
		},
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: textloom.BuildUserMessage(req)}}},
		},
		GenerationConfig: geminiGenerationConfig{
			Temperature:      req.Temperature,
			MaxOutputTokens:  req.MaxTokens,
			ResponseMimeType: "application/json",
		},
	})
	if err != nil {
		return nil, &textloom.ProviderError{Message: "marshal Gemini request", Cause: err}
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", p.baseURL, model, p.apiKey)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &textloom.ProviderError{Message: "create Gemini request", Cause: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", textloom.UserAgent())

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, &textloom.ProviderError{
			Message:   "Gemini request failed",
			Cause:     err,
			Retryable: retryableTransportError(err),
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, &textloom.ProviderError{
			Message:   fmt.Sprintf("Gemini returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody))),
			Retryable: retryableStatus(resp.StatusCode),
		}
	}

	var geminiResp geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&geminiResp); err != nil {
		return nil, &textloom.ProviderError{Message: "decode Gemini response", Cause: err, Retryable: true}
	}

	if len(geminiResp.Candidates) == 0 {
		return nil, &textloom.ProviderError{Message: "no candidates from Gemini", Retryable: true}
	}

	var content strings.Builder
	for _, part := range geminiResp.Candidates[0].Content.Parts {
		content.WriteString(part.Text)
	}

	texts, err := parseBatch(content.String(), len(req.Texts))
	if err != nil {
		return nil, err
	}

	return &Completion{
		Texts:     texts,
		TokensIn:  geminiResp.UsageMetadata.PromptTokenCount,
		TokensOut: geminiResp.UsageMetadata.CandidatesTokenCount,
	}, nil
}

// Verify GeminiProvider implements Provider
var _ Provider = (*GeminiProvider)(nil)
