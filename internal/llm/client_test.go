package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_OllamaGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/generate", r.URL.Path)

		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama3.2", req.Model)
		assert.Equal(t, "why is the pod failing?", req.Prompt)
		assert.False(t, req.Stream)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"response": "OOMKilled", "done": true})
	}))
	defer server.Close()

	c := Client{Endpoint: server.URL, Model: "llama3.2"}
	out, err := c.Complete(context.Background(), "why is the pod failing?")
	require.NoError(t, err)
	assert.Equal(t, "OOMKilled", out)
}

func TestClient_OpenAIChat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "user", req.Messages[0].Role)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": "use alpine"}},
			},
		})
	}))
	defer server.Close()

	c := Client{Endpoint: server.URL + "/v1/", Model: "gpt-4.1-mini", API: APIOpenAI, APIKey: "test-key"}
	out, err := c.Complete(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "use alpine", out)
}

func TestClient_StatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer server.Close()

	_, err := Client{Endpoint: server.URL}.Complete(context.Background(), "x")
	require.Error(t, err)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.Code)
	assert.Equal(t, "model not found", se.Body)
}

func TestClient_ModelErrorPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":"model 'nope' not found"}`))
	}))
	defer server.Close()

	_, err := Client{Endpoint: server.URL, Model: "nope"}.Complete(context.Background(), "x")
	assert.ErrorContains(t, err, "model 'nope' not found")
}

func TestClient_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	_, err := Client{Endpoint: server.URL, Timeout: 20 * time.Millisecond}.Complete(context.Background(), "x")
	assert.Error(t, err)
}

func TestClient_PingAndModels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		_, _ = w.Write([]byte(`{"models":[{"name":"llama3.2:latest"},{"name":"mistral"}]}`))
	}))
	defer server.Close()

	c := Client{Endpoint: server.URL}
	require.NoError(t, c.Ping(context.Background()))

	models, err := c.Models(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"llama3.2:latest", "mistral"}, models)
}

func TestClient_PingDown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	err := Client{Endpoint: url}.Ping(context.Background())
	assert.ErrorContains(t, err, "cannot reach")
}

func TestParseAPI(t *testing.T) {
	api, err := ParseAPI("")
	require.NoError(t, err)
	assert.Equal(t, APIOllama, api)

	api, err = ParseAPI(" OpenAI ")
	require.NoError(t, err)
	assert.Equal(t, APIOpenAI, api)

	_, err = ParseAPI("grpc")
	assert.Error(t, err)
}

type fakeGenerator struct {
	calls atomic.Int32
	out   string
	err   error
}

func (f *fakeGenerator) Complete(ctx context.Context, prompt string) (string, error) {
	f.calls.Add(1)
	if f.err != nil {
		return "", f.err
	}
	return f.out + prompt, nil
}

func TestAsk(t *testing.T) {
	ctx := context.Background()

	assert.Equal(t, "ok: p", Ask(ctx, &fakeGenerator{out: "ok: "}, "p", time.Second))

	status := Ask(ctx, &fakeGenerator{err: &StatusError{Code: 500}}, "p", time.Second)
	assert.Equal(t, "Error: AI returned status code 500", status)
	assert.True(t, IsErrorText(status))

	comm := Ask(ctx, &fakeGenerator{err: errors.New("connection refused")}, "p", 0)
	assert.Equal(t, "Error communicating with AI: connection refused", comm)
	assert.True(t, IsErrorText(comm))

	assert.False(t, IsErrorText("Error budget exhausted in service A"))
}

func TestCache(t *testing.T) {
	next := &fakeGenerator{out: "answer to "}
	c, err := NewCache(next, 2)
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		out, err := c.Complete(ctx, "CVE-2024-1")
		require.NoError(t, err)
		assert.Equal(t, "answer to CVE-2024-1", out)
	}
	assert.Equal(t, int32(1), next.calls.Load())
	assert.Equal(t, 1, c.Len())
}

func TestCache_ErrorsNotCached(t *testing.T) {
	next := &fakeGenerator{err: errors.New("down")}
	c, err := NewCache(next, 0)
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), "p")
	assert.Error(t, err)
	_, err = c.Complete(context.Background(), "p")
	assert.Error(t, err)
	assert.Equal(t, int32(2), next.calls.Load())
	assert.Equal(t, 0, c.Len())
}
