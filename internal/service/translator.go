package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/artemk/menulive/internal/domain"
	"github.com/go-resty/resty/v2"
)

// ErrNoCredentials indicates the translation provider has no API key
// configured. This is fatal for a whole job, never retried.
var ErrNoCredentials = errors.New("translation provider credentials not configured")

// TranslateRequest carries the text-bearing fields of one entity to translate.
type TranslateRequest struct {
	Name        string
	Description string
	Ingredients []string
	SourceLang  string
	TargetLangs []string
}

// TranslatorService wraps an external OpenAI-compatible translation provider.
// Treated as an unreliable network dependency: transient failures (network,
// timeout, 429, 5xx) are retried with exponential backoff before surfacing.
type TranslatorService struct {
	client     *resty.Client
	model      string
	apiKey     string
	endpoint   string
	maxRetries int
	retryDelay time.Duration
}

// TranslatorConfig holds configuration for the translator service.
type TranslatorConfig struct {
	Provider   string
	Model      string
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// NewTranslatorService creates a new translator service.
// Parameters:
//   - cfg: translator configuration including provider, model, and API key.
//
// Returns:
//   - *TranslatorService: initialized provider client wrapper.
func NewTranslatorService(cfg *TranslatorConfig) *TranslatorService {
	client := resty.New()
	client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	client.SetHeader("Content-Type", "application/json")
	// Set timeout to prevent hanging requests
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	client.SetTimeout(timeout)

	// Default to OpenAI compatible endpoint if not specified
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	endpoint := baseURL + "/chat/completions"

	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = time.Second
	}

	return &TranslatorService{
		client:     client,
		model:      cfg.Model,
		apiKey:     cfg.APIKey,
		endpoint:   endpoint,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
	}
}

// GetModel returns the model name being used.
func (s *TranslatorService) GetModel() string {
	return s.model
}

// Configured reports whether the provider has credentials to call.
func (s *TranslatorService) Configured() bool {
	return s.apiKey != ""
}

// OpenAI-compatible Chat Completion API request/response structures
type openAIRequest struct {
	Model          string               `json:"model"`
	Messages       []openAIMessage      `json:"messages"`
	MaxTokens      int                  `json:"max_tokens"`
	ResponseFormat openAIResponseFormat `json:"response_format"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponseFormat struct {
	Type string `json:"type"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

const translatorSystemPrompt = "You are a professional restaurant menu translator. " +
	"Translate the given menu entity into every requested target language. " +
	"Keep dish names appetizing and idiomatic, do not transliterate unless the name is a proper noun. " +
	"Respond with JSON only, an object keyed by target language code, each value an object " +
	`with keys "name", "description" and "ingredients" mirroring the input fields.`

// Translate translates the text-bearing fields of one entity into every
// requested target language in a single provider round trip. Transient
// provider failures are retried with exponential backoff; the caller only
// sees the final error.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - req: entity fields, source language, and target languages.
//
// Returns:
//   - map[string]domain.FieldTranslations: per-language translated fields.
//   - error: ErrNoCredentials when unconfigured, or the last attempt's error.
func (s *TranslatorService) Translate(ctx context.Context, req *TranslateRequest) (map[string]domain.FieldTranslations, error) {
	if !s.Configured() {
		return nil, ErrNoCredentials
	}
	if len(req.TargetLangs) == 0 {
		return map[string]domain.FieldTranslations{}, nil
	}

	payload := map[string]interface{}{
		"source_lang":  req.SourceLang,
		"target_langs": req.TargetLangs,
		"name":         req.Name,
	}
	if req.Description != "" {
		payload["description"] = req.Description
	}
	if len(req.Ingredients) > 0 {
		payload["ingredients"] = req.Ingredients
	}
	userMsg, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode translation request: %w", err)
	}

	apiReq := openAIRequest{
		Model: s.model,
		Messages: []openAIMessage{
			{Role: "system", Content: translatorSystemPrompt},
			{Role: "user", Content: string(userMsg)},
		},
		MaxTokens:      1500,
		ResponseFormat: openAIResponseFormat{Type: "json_object"},
	}

	var lastErr error
	delay := s.retryDelay
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			// Exponential backoff, capped
			delay *= 2
			if delay > 10*time.Second {
				delay = 10 * time.Second
			}
		}

		result, retryable, err := s.translateOnce(ctx, &apiReq)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !retryable {
			break
		}
	}

	return nil, lastErr
}

// translateOnce performs a single provider call. The bool result reports
// whether the failure is transient and worth retrying.
func (s *TranslatorService) translateOnce(ctx context.Context, apiReq *openAIRequest) (map[string]domain.FieldTranslations, bool, error) {
	var resp openAIResponse
	httpResp, err := s.client.R().
		SetContext(ctx).
		SetBody(apiReq).
		SetResult(&resp).
		Post(s.endpoint)

	if err != nil {
		return nil, true, fmt.Errorf("failed to call translation API: %w", err)
	}

	code := httpResp.StatusCode()
	if code < 200 || code >= 300 {
		errorMsg := fmt.Sprintf("HTTP %d", code)
		if resp.Error != nil {
			errorMsg = fmt.Sprintf("HTTP %d: %s", code, resp.Error.Message)
		} else if len(httpResp.Body()) > 0 {
			errorMsg = fmt.Sprintf("HTTP %d: %s", code, string(httpResp.Body()))
		}
		retryable := code == 429 || code >= 500
		return nil, retryable, fmt.Errorf("translation API returned error: %s", errorMsg)
	}

	if resp.Error != nil {
		return nil, false, fmt.Errorf("translation API error: %s", resp.Error.Message)
	}

	if len(resp.Choices) == 0 {
		return nil, false, fmt.Errorf("no response from translation API (status: %d)", code)
	}

	translations, err := parseTranslations(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, false, err
	}
	return translations, false, nil
}

// parseTranslations decodes the model's JSON answer into per-language fields.
// Tolerates a fenced code block around the JSON.
func parseTranslations(content string) (map[string]domain.FieldTranslations, error) {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(content, "```")
		content = strings.TrimSpace(content)
	}

	var out map[string]domain.FieldTranslations
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return nil, fmt.Errorf("failed to parse translation response: %w", err)
	}
	return out, nil
}
