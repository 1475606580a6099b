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

const openrouterDefaultModel = "google/gemini-2.0-flash-exp:free"

type OpenRouterBackend struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

func NewOpenRouter(apiKey, baseURL, model string) *OpenRouterBackend {
	if baseURL == "" {
		baseURL = "https://openrouter.ai/api/v1"
	}
	if model == "" {
		model = openrouterDefaultModel
	}
	return &OpenRouterBackend{
		apiKey:  apiKey,
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

func (s *OpenRouterBackend) Name() string { return "openrouter" }

func (s *OpenRouterBackend) TranslateChunk(ctx context.Context, cfg Config, req Request) (*Result, error) {
	apiKey := s.apiKey
	if apiKey == "" {
		apiKey = cfg.APIKey
	}
	if apiKey == "" {
		return nil, permanentError(s.Name(), fmt.Errorf("OpenRouter API key required"))
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
		"max_tokens": 4096,
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, permanentError(s.Name(), fmt.Errorf("marshal request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST",
		fmt.Sprintf("%s/chat/completions", s.baseURL), bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, permanentError(s.Name(), fmt.Errorf("create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", fmt.Sprintf("Bearer %s", apiKey))
	httpReq.Header.Set("HTTP-Referer", "https://mdlate.local")
	httpReq.Header.Set("X-Title", "mdlate")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, transportError(s.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp map[string]interface{}
		json.NewDecoder(resp.Body).Decode(&errResp)
		return nil, httpError(s.Name(), resp.StatusCode,
			fmt.Errorf("API returned status %d: %v", resp.StatusCode, errResp))
	}

	var orResp struct {
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
	if err := json.NewDecoder(resp.Body).Decode(&orResp); err != nil {
		return nil, permanentError(s.Name(), fmt.Errorf("decode response: %w", err))
	}
	if len(orResp.Choices) == 0 {
		return nil, permanentError(s.Name(), fmt.Errorf("empty response from API"))
	}

	return &Result{
		TranslatedText:   postprocess.Clean(orResp.Choices[0].Message.Content),
		Model:            model,
		PromptTokens:     orResp.Usage.PromptTokens,
		CompletionTokens: orResp.Usage.CompletionTokens,
	}, nil
}

func (s *OpenRouterBackend) IsAvailable(ctx context.Context) error {
	if s.apiKey == "" {
		return fmt.Errorf("OpenRouter API key not configured")
	}
	return nil
}
