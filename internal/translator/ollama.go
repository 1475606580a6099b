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

const ollamaDefaultModel = "llama3.2"

type OllamaBackend struct {
	baseURL string
	model   string
	client  *http.Client
}

func NewOllama(baseURL, model string) *OllamaBackend {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = ollamaDefaultModel
	}
	return &OllamaBackend{
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

func (s *OllamaBackend) Name() string { return "ollama" }

func (s *OllamaBackend) TranslateChunk(ctx context.Context, cfg Config, req Request) (*Result, error) {
	model := cfg.Model
	if model == "" {
		model = s.model
	}

	// Ollama's generate API takes a single prompt; fold the system prompt
	// and the chunk text together.
	prompt := fmt.Sprintf("%s\nText to translate:\n%s\n\nTranslation:",
		BuildSystemPrompt(req), req.Text)

	body := map[string]interface{}{
		"model":  model,
		"prompt": prompt,
		"stream": false,
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, permanentError(s.Name(), fmt.Errorf("marshal request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST",
		fmt.Sprintf("%s/api/generate", s.baseURL), bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, permanentError(s.Name(), fmt.Errorf("create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, transportError(s.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, httpError(s.Name(), resp.StatusCode,
			fmt.Errorf("API returned status %d", resp.StatusCode))
	}

	var ollamaResp struct {
		Response string `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&ollamaResp); err != nil {
		return nil, permanentError(s.Name(), fmt.Errorf("decode response: %w", err))
	}

	return &Result{
		TranslatedText: postprocess.Clean(ollamaResp.Response),
		Model:          model,
	}, nil
}

func (s *OllamaBackend) IsAvailable(ctx context.Context) error {
	req, _ := http.NewRequestWithContext(ctx, "GET", fmt.Sprintf("%s/api/tags", s.baseURL), nil)
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("Ollama not available: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("Ollama returned status %d", resp.StatusCode)
	}
	return nil
}
