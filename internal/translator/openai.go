package translator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/vkuzmyk/mdlate/internal/postprocess"
)

const (
	openaiDefaultBaseURL = "https://api.openai.com/v1"
	openaiDefaultModel   = "gpt-4o-mini"

	// DashScope's OpenAI-compatible endpoint serves the qwen provider.
	qwenBaseURL      = "https://dashscope.aliyuncs.com/compatible-mode/v1"
	qwenDefaultModel = "qwen-plus"
)

// OpenAIBackend talks to any chat-completions compatible endpoint. It backs
// both the "openai" and "qwen" providers.
type OpenAIBackend struct {
	name    string
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// NewOpenAI creates the openai provider backend.
func NewOpenAI(apiKey, baseURL, model string) *OpenAIBackend {
	if baseURL == "" {
		baseURL = openaiDefaultBaseURL
	}
	if model == "" {
		model = openaiDefaultModel
	}
	return &OpenAIBackend{
		name:    "openai",
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

// NewQwen creates the qwen provider backend via DashScope's
// OpenAI-compatible mode.
func NewQwen(apiKey, model string) *OpenAIBackend {
	if model == "" {
		model = qwenDefaultModel
	}
	return &OpenAIBackend{
		name:    "qwen",
		baseURL: qwenBaseURL,
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

func (s *OpenAIBackend) Name() string { return s.name }

func (s *OpenAIBackend) TranslateChunk(ctx context.Context, cfg Config, req Request) (*Result, error) {
	apiKey := s.apiKey
	if apiKey == "" {
		apiKey = cfg.APIKey
	}
	if apiKey == "" {
		return nil, permanentError(s.name, fmt.Errorf("API key required"))
	}

	model := cfg.Model
	if model == "" {
		model = s.model
	}

	body := map[string]interface{}{
		"model": model,
		"messages": []map[string]string{
			{"role": "system", "content": BuildSystemPrompt(req)},
			{"role": "user", "content": req.Text},
		},
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, permanentError(s.name, fmt.Errorf("marshal request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST",
		fmt.Sprintf("%s/chat/completions", s.baseURL), bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, permanentError(s.name, fmt.Errorf("create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", fmt.Sprintf("Bearer %s", apiKey))

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, transportError(s.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp map[string]interface{}
		json.NewDecoder(resp.Body).Decode(&errResp)
		return nil, httpError(s.name, resp.StatusCode,
			fmt.Errorf("API returned status %d: %v", resp.StatusCode, errResp))
	}

	var oaResp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
		} `json:"usage"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&oaResp); err != nil {
		return nil, permanentError(s.name, fmt.Errorf("decode response: %w", err))
	}
	if len(oaResp.Choices) == 0 {
		return nil, permanentError(s.name, fmt.Errorf("empty response from API"))
	}

	return &Result{
		TranslatedText:   postprocess.Clean(oaResp.Choices[0].Message.Content),
		Model:            model,
		PromptTokens:     oaResp.Usage.PromptTokens,
		CompletionTokens: oaResp.Usage.CompletionTokens,
	}, nil
}

func (s *OpenAIBackend) IsAvailable(ctx context.Context) error {
	if s.apiKey == "" {
		return fmt.Errorf("%s API key not configured", s.name)
	}
	return nil
}
