// Package web serves the browser front end: a WebSocket JSON-RPC channel
// that drives one controller and editor session per connection, plus the
// static presentation files.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/odvcencio/confedit/app"
	"github.com/odvcencio/confedit/editor"
	"github.com/odvcencio/confedit/metrics"
	"github.com/odvcencio/confedit/state"
)

// themeRetryDelay is how long a failed theme write waits before its retry.
const themeRetryDelay = 500 * time.Millisecond

// Config configures the web host.
type Config struct {
	// API is shared by all connections.
	API   app.API
	Store state.Store
	// StaticDir holds the presentation files. Empty disables static serving.
	StaticDir   string
	Logger      *zap.Logger
	RevertDelay time.Duration
}

// ServiceSource is implemented by APIs that can list the upstream service
// registry. An API without it answers the services method with {}.
type ServiceSource interface {
	FetchServices(ctx context.Context) (json.RawMessage, error)
}

// Server provides the web frontend HTTP + WebSocket server.
type Server struct {
	api         app.API
	store       state.Store
	static      http.Handler
	log         *zap.Logger
	revertDelay time.Duration
	upgrader    websocket.Upgrader
	mu          sync.Mutex
	clients     []*wsClient
}

type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
	log  *zap.Logger

	ctrl       *app.Controller
	session    *editor.Session
	systemDark bool
}

type rpcRequest struct {
	ID     any             `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

type rpcResponse struct {
	ID     any       `json:"id"`
	Result any       `json:"result,omitempty"`
	Error  *rpcError `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// JSON-RPC error codes.
const (
	codeInvalidParams  = -32602
	codeUnknownMethod  = -32601
	codeOperationError = -32000
)

// NewServer creates a web host.
func NewServer(cfg Config) *Server {
	if cfg.Store == nil {
		cfg.Store = state.NewMemoryStore()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	s := &Server{
		api:         cfg.API,
		store:       cfg.Store,
		log:         cfg.Logger,
		revertDelay: cfg.RevertDelay,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	if cfg.StaticDir != "" {
		s.static = StaticHandler(cfg.StaticDir)
	}
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/ws" {
		s.handleWebSocket(w, r)
		return
	}
	if s.static == nil {
		http.NotFound(w, r)
		return
	}
	s.static.ServeHTTP(w, r)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade", zap.Error(err))
		return
	}
	client := s.newClient(conn)
	s.mu.Lock()
	s.clients = append(s.clients, client)
	s.mu.Unlock()
	metrics.WebSessionOpened()

	defer func() {
		client.ctrl.Close()
		conn.Close()
		s.mu.Lock()
		for i, c := range s.clients {
			if c == client {
				s.clients = append(s.clients[:i], s.clients[i+1:]...)
				break
			}
		}
		s.mu.Unlock()
		metrics.WebSessionClosed()
	}()

	// RPCs on one connection run in order on this goroutine; the editor
	// session is only touched from here.
	ctx := r.Context()
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var req rpcRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			client.log.Debug("bad rpc frame", zap.Error(err))
			continue
		}
		resp := s.handleRPC(ctx, client, req)
		client.send(resp)
	}
}

func (s *Server) newClient(conn *websocket.Conn) *wsClient {
	c := &wsClient{conn: conn, log: s.log.With(zap.String("remote", conn.RemoteAddr().String()))}
	c.session = editor.NewSession(false)
	c.ctrl = app.New(app.Config{
		API:         s.api,
		Session:     c.session,
		Store:       s.store,
		Logger:      c.log,
		RevertDelay: s.revertDelay,
	})
	c.ctrl.Subscribe(func(st app.Status) {
		c.notify("status", st)
	})
	c.session.Subscribe(func(ev editor.Event) {
		switch ev.Kind {
		case editor.EventChanged:
			c.notify("changed", map[string]bool{
				"canUndo": ev.CanUndo,
				"canRedo": ev.CanRedo,
			})
		case editor.EventTheme:
			c.notify("theme", c.session.Palette())
		}
	})
	c.session.OnSave(func() {
		if err := s.save(context.Background(), c); err != nil {
			c.log.Debug("save from shortcut", zap.Error(err))
		}
	})
	return c
}

func (c *wsClient) send(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		c.log.Error("marshal rpc message", zap.Error(err))
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		c.log.Debug("websocket write", zap.Error(err))
	}
}

func (c *wsClient) notify(method string, params any) {
	c.send(map[string]any{"method": method, "params": params})
}

func (s *Server) save(ctx context.Context, c *wsClient) error {
	path := c.ctrl.State().CurrentFile
	if err := c.ctrl.Save(ctx); err != nil {
		return err
	}
	s.broadcastExcept(c, "saved", map[string]string{"path": path})
	return nil
}

func (s *Server) broadcastExcept(skip *wsClient, method string, params any) {
	s.mu.Lock()
	clients := append([]*wsClient(nil), s.clients...)
	s.mu.Unlock()

	for _, c := range clients {
		if c != skip {
			c.notify(method, params)
		}
	}
}

func (s *Server) handleRPC(ctx context.Context, c *wsClient, req rpcRequest) rpcResponse {
	h, ok := rpcMethods[req.Method]
	if !ok {
		return rpcResponse{
			ID:    req.ID,
			Error: &rpcError{Code: codeUnknownMethod, Message: fmt.Sprintf("unknown method: %s", req.Method)},
		}
	}
	result, err := h(ctx, s, c, req.Params)
	metrics.RecordRPC(req.Method, err)
	if err != nil {
		code := codeOperationError
		var pe paramsError
		if errors.As(err, &pe) {
			code = codeInvalidParams
		}
		return rpcResponse{ID: req.ID, Error: &rpcError{Code: code, Message: err.Error()}}
	}
	return rpcResponse{ID: req.ID, Result: result}
}
