package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Be careful with this in production
	},
}

type Message struct {
	Type    string `json:"type"`
	Content string `json:"content"`
	ID      string `json:"id,omitempty"`
}

type QueryRequest struct {
	Query string `json:"query"`
}

type QueryResponse struct {
	ID       string `json:"id"`
	Response string `json:"response"`
}

// Answerer is the query path the server fronts.
type Answerer interface {
	Answer(ctx context.Context, query string) (string, error)
}

type Config struct {
	Addr         string
	QueryTimeout time.Duration
	Logger       *log.Logger
}

type WSServer struct {
	config Config
	engine Answerer
}

func NewWSServer(engine Answerer, config Config) *WSServer {
	if config.Addr == "" {
		config.Addr = ":8080"
	}
	if config.QueryTimeout == 0 {
		config.QueryTimeout = 2 * time.Minute
	}
	if config.Logger == nil {
		config.Logger = log.Default()
	}
	return &WSServer{config: config, engine: engine}
}

func (s *WSServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/query", s.handleQuery)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	return mux
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *WSServer) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{Addr: s.config.Addr, Handler: s.Handler()}

	errCh := make(chan error, 1)
	go func() {
		s.config.Logger.Printf("Starting server on %s", s.config.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *WSServer) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Query) == "" {
		http.Error(w, "request body must be {\"query\": \"...\"}", http.StatusBadRequest)
		return
	}

	id := uuid.NewString()
	response, err := s.answer(r.Context(), id, req.Query)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(QueryResponse{ID: id, Response: response})
}

func (s *WSServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.config.Logger.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	// gorilla connections allow one concurrent writer
	var writeMu sync.Mutex
	send := func(msg Message) {
		writeMu.Lock()
		defer writeMu.Unlock()
		if err := conn.WriteJSON(msg); err != nil {
			s.config.Logger.Printf("Error sending message: %v", err)
		}
	}

	// in-flight answers are cancelled before waiting on them
	var wg sync.WaitGroup
	defer wg.Wait()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.config.Logger.Printf("Error reading message: %v", err)
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			send(Message{Type: "error", Content: "invalid message"})
			continue
		}
		if msg.Type != "query" {
			send(Message{Type: "error", Content: "unsupported message type: " + msg.Type})
			continue
		}

		wg.Add(1)
		go func(msg Message) {
			defer wg.Done()
			id := msg.ID
			if id == "" {
				id = uuid.NewString()
			}
			response, err := s.answer(ctx, id, msg.Content)
			if err != nil {
				send(Message{Type: "error", Content: err.Error(), ID: id})
				return
			}
			send(Message{Type: "response", Content: response, ID: id})
		}(msg)
	}
}

func (s *WSServer) answer(ctx context.Context, id, query string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.QueryTimeout)
	defer cancel()

	start := time.Now()
	response, err := s.engine.Answer(ctx, query)
	if err != nil {
		s.config.Logger.Printf("query %s failed after %s: %v", id, time.Since(start), err)
		return "", err
	}
	s.config.Logger.Printf("query %s answered in %s", id, time.Since(start))
	return response, nil
}
