package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

func (c Client) completeGenerate(ctx context.Context, prompt string) (string, error) {
	body, err := c.do(ctx, http.MethodPost, "/api/generate", generateRequest{
		Model:  c.Model,
		Prompt: prompt,
		Stream: false,
	})
	if err != nil {
		return "", err
	}

	var gr generateResponse
	if err := json.Unmarshal(body, &gr); err != nil {
		return "", fmt.Errorf("decode response: %w (raw: %s)", err, string(body))
	}
	if gr.Error != "" {
		return "", fmt.Errorf("llm error: %s", gr.Error)
	}
	return gr.Response, nil
}

// Models lists the models installed on an Ollama endpoint.
func (c Client) Models(ctx context.Context) ([]string, error) {
	c = c.withDefaults()
	ctx, cancel := context.WithTimeout(ctx, HealthTimeout)
	defer cancel()

	body, err := c.do(ctx, http.MethodGet, "/api/tags", nil)
	if err != nil {
		return nil, err
	}
	var tr tagsResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	names := make([]string, 0, len(tr.Models))
	for _, m := range tr.Models {
		names = append(names, m.Name)
	}
	return names, nil
}
