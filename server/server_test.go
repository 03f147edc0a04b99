package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/hybridrag/internal/types"
	"github.com/xhad/hybridrag/server"
)

type echoEngine struct{}

func (echoEngine) Answer(ctx context.Context, query string) (string, error) {
	if query == "broken" {
		return "", types.WrapOp("answer", types.ErrMetadataDesync)
	}
	return "answer to " + query, nil
}

// blockingEngine holds every query until its context ends.
type blockingEngine struct {
	started  chan struct{}
	released chan error
}

func (e *blockingEngine) Answer(ctx context.Context, query string) (string, error) {
	close(e.started)
	<-ctx.Done()
	e.released <- ctx.Err()
	return "", ctx.Err()
}

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	s := server.NewWSServer(echoEngine{}, server.Config{Logger: log.New(io.Discard, "", 0)})
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func TestHealth(t *testing.T) {
	srv := newServer(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", string(body))
}

func TestQuery(t *testing.T) {
	srv := newServer(t)

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"valid", `{"query": "gym downtown"}`, http.StatusOK},
		{"empty query", `{"query": "  "}`, http.StatusBadRequest},
		{"bad json", `{`, http.StatusBadRequest},
		{"engine error", `{"query": "broken"}`, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/query", "application/json", bytes.NewBufferString(tt.body))
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tt.status, resp.StatusCode)

			if tt.status == http.StatusOK {
				var out server.QueryResponse
				require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
				assert.Equal(t, "answer to gym downtown", out.Response)
				assert.NotEmpty(t, out.ID)
			}
		})
	}

	resp, err := http.Get(srv.URL + "/query")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestWebSocket(t *testing.T) {
	srv := newServer(t)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(server.Message{Type: "query", Content: "pets allowed?", ID: "q1"}))
	var msg server.Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, server.Message{Type: "response", Content: "answer to pets allowed?", ID: "q1"}, msg)

	require.NoError(t, conn.WriteJSON(server.Message{Type: "query", Content: "broken", ID: "q2"}))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "error", msg.Type)
	assert.Equal(t, "q2", msg.ID)
	assert.Contains(t, msg.Content, "out of sync")

	require.NoError(t, conn.WriteJSON(server.Message{Type: "subscribe"}))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "error", msg.Type)
}

func TestWebSocketDisconnectCancelsQuery(t *testing.T) {
	engine := &blockingEngine{started: make(chan struct{}), released: make(chan error, 1)}
	s := server.NewWSServer(engine, server.Config{
		QueryTimeout: 30 * time.Second,
		Logger:       log.New(io.Discard, "", 0),
	})
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)

	require.NoError(t, conn.WriteJSON(server.Message{Type: "query", Content: "slow question"}))

	select {
	case <-engine.started:
	case <-time.After(5 * time.Second):
		t.Fatal("query never reached the engine")
	}
	require.NoError(t, conn.Close())

	select {
	case err := <-engine.released:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("query still running after the client disconnected")
	}
}
