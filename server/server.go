package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/xhad/screener/internal/models"
)

// Ingester indexes one résumé file under a position.
type Ingester interface {
	IngestFile(ctx context.Context, path string, positionID int64, candidateName string) (int, error)
}

// Retriever returns the passages of one position.
type Retriever interface {
	Retrieve(ctx context.Context, query string, positionID int64, topK int) []models.RetrievedPassage
}

// Assistant answers a question from retrieved passages, chunk by chunk.
type Assistant interface {
	AskStream(ctx context.Context, question string, passages []models.RetrievedPassage, onChunk func(string) error) error
}

const (
	TypeIngest   = "ingest"
	TypeRetrieve = "retrieve"
	TypeAsk      = "ask"

	TypeStatus = "status"
	TypeResult = "result"
	TypeStream = "stream"
	TypeDone   = "done"
	TypeError  = "error"
)

type Message struct {
	Type          string      `json:"type"`
	Content       string      `json:"content"`
	PositionID    int64       `json:"position_id,omitempty"`
	Path          string      `json:"path,omitempty"`
	CandidateName string      `json:"candidate_name,omitempty"`
	TopK          int         `json:"top_k,omitempty"`
	Data          interface{} `json:"data,omitempty"`
}

type Config struct {
	Ingester  Ingester
	Retriever Retriever
	// Assistant is optional; without it ask messages are rejected.
	Assistant Assistant
	// IngestRoot is the only directory ingest requests may read from.
	// Empty disables ingestion over the websocket.
	IngestRoot string
	// AllowedOrigins lists browser origins accepted besides the server's own
	// host. "*" accepts any origin.
	AllowedOrigins []string
	Logger         *zap.Logger
}

var (
	ErrIngestDisabled = errors.New("ingestion is disabled on this server")
	ErrOutsideRoot    = errors.New("path is outside the ingest root")
)

type WSServer struct {
	config   Config
	logger   *zap.Logger
	root     string // symlinks resolved
	rootAbs  string
	origins  map[string]bool
	upgrader websocket.Upgrader
}

func NewWSServer(config Config) (*WSServer, error) {
	if config.Ingester == nil || config.Retriever == nil {
		return nil, errors.New("ingester and retriever are required")
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	s := &WSServer{
		config:  config,
		logger:  config.Logger,
		origins: make(map[string]bool, len(config.AllowedOrigins)),
	}
	for _, o := range config.AllowedOrigins {
		s.origins[strings.TrimRight(strings.ToLower(o), "/")] = true
	}
	if config.IngestRoot != "" {
		abs, err := filepath.Abs(config.IngestRoot)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve ingest root: %w", err)
		}
		root, err := filepath.EvalSymlinks(abs)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve ingest root: %w", err)
		}
		s.root, s.rootAbs = root, abs
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s, nil
}

// checkOrigin accepts requests without an Origin header (non-browser
// clients), same-host origins and the configured allow-list.
func (s *WSServer) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || s.origins["*"] {
		return true
	}
	if s.origins[strings.TrimRight(strings.ToLower(origin), "/")] {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if strings.EqualFold(u.Host, r.Host) {
		return true
	}
	s.logger.Warn("rejected websocket origin", zap.String("origin", origin))
	return false
}

// confine resolves path against the ingest root, following symlinks, and
// rejects anything that ends up outside it.
func (s *WSServer) confine(path string) (string, error) {
	if s.root == "" {
		return "", ErrIngestDisabled
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.root, path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if !within(s.root, abs) && !within(s.rootAbs, abs) {
		return "", ErrOutsideRoot
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	if !within(s.root, resolved) {
		return "", ErrOutsideRoot
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return "", err
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%s is not a regular file", path)
	}
	return resolved, nil
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

// Handler serves the websocket endpoint at /ws and a health check at /health.
func (s *WSServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	return mux
}

// ListenAndServe runs until ctx is canceled, then shuts down gracefully.
func (s *WSServer) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler()}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting websocket server", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// conn serializes writes; gorilla connections allow one concurrent writer.
type conn struct {
	ws     *websocket.Conn
	mu     sync.Mutex
	logger *zap.Logger
}

func (c *conn) send(msg Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ws.WriteJSON(msg); err != nil {
		c.logger.Warn("error sending message", zap.Error(err))
	}
}

func (s *WSServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer ws.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	c := &conn{ws: ws, logger: s.logger}
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("error reading message", zap.Error(err))
			}
			cancel()
			return
		}

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.send(Message{Type: TypeError, Content: "malformed message"})
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handleMessage(ctx, c, msg)
		}()
	}
}

func (s *WSServer) handleMessage(ctx context.Context, c *conn, msg Message) {
	switch msg.Type {
	case TypeIngest:
		s.handleIngest(ctx, c, msg)
	case TypeRetrieve:
		passages := s.config.Retriever.Retrieve(ctx, msg.Content, msg.PositionID, msg.TopK)
		c.send(Message{
			Type:       TypeResult,
			Content:    fmt.Sprintf("%d passages", len(passages)),
			PositionID: msg.PositionID,
			Data:       passages,
		})
	case TypeAsk:
		s.handleAsk(ctx, c, msg)
	default:
		c.send(Message{Type: TypeError, Content: fmt.Sprintf("unknown message type %q", msg.Type)})
	}
}

func (s *WSServer) handleIngest(ctx context.Context, c *conn, msg Message) {
	if msg.Path == "" {
		c.send(Message{Type: TypeError, Content: "path is required"})
		return
	}
	path, err := s.confine(msg.Path)
	if err != nil {
		s.logger.Warn("ingest path rejected", zap.String("file", msg.Path), zap.Error(err))
		c.send(Message{Type: TypeError, Content: fmt.Sprintf("Cannot ingest %s: %v", msg.Path, err)})
		return
	}
	c.send(Message{Type: TypeStatus, Content: fmt.Sprintf("Processing %s", msg.Path)})

	n, err := s.config.Ingester.IngestFile(ctx, path, msg.PositionID, msg.CandidateName)
	if err != nil {
		s.logger.Warn("ingest request failed", zap.String("file", msg.Path), zap.Error(err))
		c.send(Message{Type: TypeError, Content: fmt.Sprintf("Failed to ingest %s: %v", msg.Path, err)})
		return
	}
	c.send(Message{Type: TypeDone, Content: fmt.Sprintf("Indexed %d resume(s)", n), PositionID: msg.PositionID})
}

func (s *WSServer) handleAsk(ctx context.Context, c *conn, msg Message) {
	if s.config.Assistant == nil {
		c.send(Message{Type: TypeError, Content: "assistant is not configured"})
		return
	}

	passages := s.config.Retriever.Retrieve(ctx, msg.Content, msg.PositionID, msg.TopK)
	if len(passages) == 0 {
		c.send(Message{Type: TypeDone, Content: "No resumes found for this position."})
		return
	}

	err := s.config.Assistant.AskStream(ctx, msg.Content, passages, func(chunk string) error {
		c.send(Message{Type: TypeStream, Content: chunk})
		return nil
	})
	if err != nil {
		c.send(Message{Type: TypeError, Content: fmt.Sprintf("Error: %v", err)})
		return
	}
	c.send(Message{Type: TypeDone, PositionID: msg.PositionID, Data: passages})
}
