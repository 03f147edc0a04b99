package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/hybridrag/internal/types"
)

var quiet = log.New(io.Discard, "", 0)

type fakeClient struct {
	vectors [][]float32
	err     error
	texts   []string
}

func (f *fakeClient) CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	f.texts = append(f.texts, texts...)
	return f.vectors, f.err
}

type countingEmbedder struct {
	calls atomic.Int32
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls.Add(1)
	return []float32{float32(len(text)), 0.5, -1}, nil
}

func TestGateWrapsFailures(t *testing.T) {
	g := newGate("test", 0, time.Second)

	err := g.call(context.Background(), func(ctx context.Context) error {
		return errors.New("connection refused")
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrExternalService)
	assert.Contains(t, err.Error(), "connection refused")

	assert.NoError(t, g.call(context.Background(), func(ctx context.Context) error { return nil }))
}

func TestGateTimeout(t *testing.T) {
	g := newGate("slow", 0, 20*time.Millisecond)

	err := g.call(context.Background(), func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	assert.ErrorIs(t, err, types.ErrExternalService)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGateCancelledContext(t *testing.T) {
	g := newGate("limited", 1, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := g.call(ctx, func(ctx context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, types.ErrExternalService)
	assert.False(t, called)
}

func TestOllamaEmbedder(t *testing.T) {
	client := &fakeClient{vectors: [][]float32{{0.1, 0.2, 0.3}}}
	emb := &OllamaEmbedder{client: client, gate: newGate("ollama embed", 0, time.Second)}

	vec, err := emb.Embed(context.Background(), "two bedroom flat")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
	assert.Equal(t, []string{"two bedroom flat"}, client.texts)

	client.vectors = nil
	_, err = emb.Embed(context.Background(), "nothing back")
	assert.ErrorIs(t, err, types.ErrExternalService)

	client.err = errors.New("model not found")
	_, err = emb.Embed(context.Background(), "broken")
	assert.ErrorIs(t, err, types.ErrExternalService)
}

func TestCachedEmbedder(t *testing.T) {
	next := &countingEmbedder{}
	cache, err := NewCachedEmbedder(next, "test-model", filepath.Join(t.TempDir(), "cache.db"), quiet)
	require.NoError(t, err)
	defer cache.Close()

	ctx := context.Background()
	first, err := cache.Embed(ctx, "pool and gym")
	require.NoError(t, err)
	second, err := cache.Embed(ctx, "pool and gym")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), next.calls.Load())

	_, err = cache.Embed(ctx, "metro nearby")
	require.NoError(t, err)
	assert.Equal(t, int32(2), next.calls.Load())
}

func TestCachedEmbedderKeyedByModel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	next := &countingEmbedder{}

	a, err := NewCachedEmbedder(next, "model-a", path, quiet)
	require.NoError(t, err)
	_, err = a.Embed(context.Background(), "same text")
	require.NoError(t, err)
	require.NoError(t, a.Close())

	b, err := NewCachedEmbedder(next, "model-b", path, quiet)
	require.NoError(t, err)
	defer b.Close()
	_, err = b.Embed(context.Background(), "same text")
	require.NoError(t, err)

	assert.Equal(t, int32(2), next.calls.Load())
}

func TestCachedEmbedderLogsWriteFailure(t *testing.T) {
	var buf bytes.Buffer
	next := &countingEmbedder{}
	cache, err := NewCachedEmbedder(next, "test-model", filepath.Join(t.TempDir(), "cache.db"), log.New(&buf, "", 0))
	require.NoError(t, err)
	require.NoError(t, cache.Close())

	vec, err := cache.Embed(context.Background(), "still embedded")
	require.NoError(t, err)
	assert.Len(t, vec, 3)
	assert.Equal(t, int32(1), next.calls.Load())
	assert.Contains(t, buf.String(), "embedding cache: write failed")
}

func TestVectorEncoding(t *testing.T) {
	v := []float32{1.5, -0.25, 0, 3.75}
	assert.Equal(t, v, decodeVector(encodeVector(v)))
}

func newOpenAIServer(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/embeddings", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"model":  "text-embedding-3-small",
			"data": []map[string]any{
				{"object": "embedding", "index": 0, "embedding": []float32{0.5, 0.25}},
			},
		})
	})
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Messages) != 2 {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message": map[string]any{
					"role":    "assistant",
					"content": req.Messages[0].Role + ": " + req.Messages[1].Content,
				},
			}},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIEmbedder(t *testing.T) {
	srv := newOpenAIServer(t)

	emb, err := NewOpenAIEmbedder(OpenAIConfig{APIKey: "test-key", BaseURL: srv.URL + "/v1"})
	require.NoError(t, err)

	vec, err := emb.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.25}, vec)

	_, err = emb.Embed(context.Background(), "")
	assert.ErrorIs(t, err, types.ErrExternalService)
}

func TestOpenAIChat(t *testing.T) {
	srv := newOpenAIServer(t)

	chat, err := NewOpenAIChat(OpenAIConfig{APIKey: "test-key", BaseURL: srv.URL + "/v1"})
	require.NoError(t, err)

	answer, err := chat.Generate(context.Background(), "be brief", "what is near P1?")
	require.NoError(t, err)
	assert.Equal(t, "system: what is near P1?", answer)
}

func TestOpenAIRequiresKey(t *testing.T) {
	_, err := NewOpenAIEmbedder(OpenAIConfig{})
	assert.Error(t, err)
	_, err = NewOpenAIChat(OpenAIConfig{})
	assert.Error(t, err)
}

func TestProviderSelection(t *testing.T) {
	_, err := NewEmbedder(ProviderConfig{Provider: "bogus"})
	assert.Error(t, err)
	_, err = NewGenerator(ProviderConfig{Provider: "bogus"})
	assert.Error(t, err)

	gen, err := NewGenerator(ProviderConfig{Provider: ProviderOllama, Model: "mistral"})
	require.NoError(t, err)
	assert.IsType(t, &ChatEngine{}, gen)

	emb, err := NewEmbedder(ProviderConfig{Provider: ProviderOpenAI, APIKey: "k"})
	require.NoError(t, err)
	assert.IsType(t, &OpenAIEmbedder{}, emb)
}

func TestChatConfigValidation(t *testing.T) {
	_, err := NewWithConfig(ChatConfig{Temperature: 3})
	assert.Error(t, err)
	_, err = NewWithConfig(ChatConfig{MaxTokens: -1})
	assert.Error(t, err)

	engine, err := NewWithConfig(ChatConfig{})
	require.NoError(t, err)
	assert.Equal(t, "mistral", engine.config.Model)
	assert.Equal(t, 2000, engine.config.MaxTokens)
}
