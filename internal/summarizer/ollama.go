package summarizer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/vkuzmyk/mdlate/internal/postprocess"
	"github.com/vkuzmyk/mdlate/internal/state"
)

// Ollama maintains the rolling summary with a local Ollama model.
type Ollama struct {
	model   string
	baseURL string
	client  *http.Client
}

type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaResponse struct {
	Response string `json:"response"`
}

func NewOllama(model, baseURL string) *Ollama {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3.2"
	}
	return &Ollama{
		model:   model,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

func (s *Ollama) Summarize(ctx context.Context, previous, addition string, maxRunes int) (string, error) {
	if maxRunes <= 0 {
		maxRunes = DefaultMaxRunes
	}

	prompt := buildSummaryPrompt(previous, addition, maxRunes)
	jsonData, err := json.Marshal(ollamaRequest{Model: s.model, Prompt: prompt, Stream: false})
	if err != nil {
		return "", fmt.Errorf("marshal summary request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST",
		fmt.Sprintf("%s/api/generate", s.baseURL), bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("create summary request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("summary request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("summarizer returned status %d", resp.StatusCode)
	}

	var ollamaResp ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&ollamaResp); err != nil {
		return "", fmt.Errorf("decode summary response: %w", err)
	}

	updated := postprocess.Clean(ollamaResp.Response)
	if updated == "" {
		return previous, nil
	}
	return state.Tail(updated, maxRunes), nil
}

func buildSummaryPrompt(previous, addition string, maxRunes int) string {
	return fmt.Sprintf(`You maintain a running summary of a document being translated.

CURRENT SUMMARY:
%s

NEW PASSAGE:
%s

Update the summary to cover the new passage as well. Keep it under %d characters,
factual and compact. Output ONLY the updated summary, no explanation.`,
		previous, addition, maxRunes)
}
