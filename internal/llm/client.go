package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// API selects the wire format spoken by the inference endpoint.
type API string

const (
	// APIOllama is Ollama's native /api/generate.
	APIOllama API = "ollama"
	// APIOpenAI is any OpenAI-compatible /chat/completions endpoint.
	APIOpenAI API = "openai"
)

// Defaults for a local Ollama install.
const (
	DefaultEndpoint = "http://localhost:11434"
	DefaultModel    = "llama3.2"
	DefaultTimeout  = 60 * time.Second
	HealthTimeout   = 5 * time.Second
)

// Generator produces text for a prompt.
type Generator interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// StatusError is returned when the endpoint answers with a non-2xx status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Code, http.StatusText(e.Code), e.Body)
}

// Client is a minimal client for a local or OpenAI-compatible model server.
type Client struct {
	Endpoint string        // e.g. http://localhost:11434 or https://api.openai.com/v1
	Model    string        // e.g. llama3.2, gpt-4.1-mini
	API      API           // ollama (default) or openai
	APIKey   string        // optional for local; OPENAI_API_KEY is used when empty
	Timeout  time.Duration // per request timeout

	HTTPClient *http.Client
}

// ParseAPI validates an --api flag value.
func ParseAPI(s string) (API, error) {
	switch API(strings.ToLower(strings.TrimSpace(s))) {
	case "", APIOllama:
		return APIOllama, nil
	case APIOpenAI:
		return APIOpenAI, nil
	default:
		return "", fmt.Errorf("unknown api %q (want ollama or openai)", s)
	}
}

// Complete sends a single non-streaming generation request.
func (c Client) Complete(ctx context.Context, prompt string) (string, error) {
	c = c.withDefaults()
	if c.API == APIOpenAI {
		return c.completeChat(ctx, prompt)
	}
	return c.completeGenerate(ctx, prompt)
}

// Ping checks that the endpoint is reachable, bounded by HealthTimeout.
func (c Client) Ping(ctx context.Context) error {
	c = c.withDefaults()
	ctx, cancel := context.WithTimeout(ctx, HealthTimeout)
	defer cancel()

	path := "/api/tags"
	if c.API == APIOpenAI {
		path = "/models"
	}
	_, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return fmt.Errorf("cannot reach %s: %w", c.Endpoint, err)
	}
	return nil
}

func (c Client) withDefaults() Client {
	if c.Endpoint == "" {
		c.Endpoint = DefaultEndpoint
	}
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.API == "" {
		c.API = APIOllama
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	// explicit key wins, else OPENAI_API_KEY for cloud endpoints
	if c.APIKey == "" {
		c.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	return c
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`

	Error *struct {
		Message string      `json:"message"`
		Type    string      `json:"type"`
		Code    interface{} `json:"code"`
	} `json:"error,omitempty"`
}

func (c Client) completeChat(ctx context.Context, prompt string) (string, error) {
	body, err := c.do(ctx, http.MethodPost, "/chat/completions", chatRequest{
		Model:    c.Model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", err
	}

	var cr chatResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		return "", fmt.Errorf("decode response: %w (raw: %s)", err, string(body))
	}
	if cr.Error != nil {
		return "", fmt.Errorf("llm error: %s", cr.Error.Message)
	}
	if len(cr.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return cr.Choices[0].Message.Content, nil
}

// do sends one request and returns the body of a 2xx response.
func (c Client) do(ctx context.Context, method, path string, in any) ([]byte, error) {
	var reader io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	url := strings.TrimRight(c.Endpoint, "/") + path
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	// Only set Authorization when we actually have a key.
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http do: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return body, nil
}
