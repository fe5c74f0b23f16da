// Package livereload implements a LiveReload protocol 7 server that tells
// connected browsers to reload when build output changes.
package livereload

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/conneroisu/kiln/internal/logging"
)

// Protocol is the LiveReload protocol the server speaks.
const Protocol = "http://livereload.com/protocols/official-7"

// DefaultPort is the conventional LiveReload port.
const DefaultPort = 35729

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Send pings to peer with this period.
	pingPeriod = 50 * time.Second

	// Maximum message size allowed from peer.
	maxMessageSize = 4096
)

type message struct {
	Command    string   `json:"command"`
	Protocols  []string `json:"protocols,omitempty"`
	ServerName string   `json:"serverName,omitempty"`
	Path       string   `json:"path,omitempty"`
	LiveCSS    bool     `json:"liveCSS,omitempty"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Server is a LiveReload server on its own listener.
type Server struct {
	host   string
	port   int
	logger logging.Logger

	mu      sync.RWMutex
	clients map[*client]struct{}
	srv     *http.Server
	ln      net.Listener
}

// New creates a server for host:port. Port 0 picks a free port.
func New(host string, port int, logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Server{
		host:    host,
		port:    port,
		logger:  logger.WithComponent("livereload"),
		clients: make(map[*client]struct{}),
	}
}

// Handler serves the websocket endpoint and the /changed trigger.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/livereload", s.handleWebSocket)
	mux.HandleFunc("/changed", s.handleChanged)
	return mux
}

// Start binds the listener and serves until Close.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", net.JoinHostPort(s.host, strconv.Itoa(s.port)))
	if err != nil {
		return fmt.Errorf("livereload could not bind %s: %w", net.JoinHostPort(s.host, strconv.Itoa(s.port)), err)
	}
	srv := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}

	s.mu.Lock()
	s.ln = ln
	s.srv = srv
	s.mu.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error(context.Background(), err, "livereload server stopped")
		}
	}()
	s.logger.Info(context.Background(), "listening", "addr", ln.Addr().String())
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Clients returns the number of connected browsers.
func (s *Server) Clients() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Notify tells every client that paths changed.
func (s *Server) Notify(paths []string) {
	if len(paths) == 0 {
		paths = []string{"index.html"}
	}
	for _, p := range paths {
		msg, _ := json.Marshal(message{
			Command: "reload",
			Path:    filepath.ToSlash(p),
			LiveCSS: filepath.Ext(p) == ".css",
		})
		s.broadcast(msg)
	}
}

func (s *Server) broadcast(msg []byte) {
	var failed []*client
	s.mu.RLock()
	for c := range s.clients {
		select {
		case c.send <- msg:
		default:
			failed = append(failed, c)
		}
	}
	s.mu.RUnlock()

	for _, c := range failed {
		s.unregister(c)
	}
}

// Close disconnects every client and stops the listener.
func (s *Server) Close() error {
	s.mu.Lock()
	srv := s.srv
	s.srv = nil
	clients := s.clients
	s.clients = make(map[*client]struct{})
	s.mu.Unlock()

	for c := range clients {
		close(c.send)
	}
	if srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

func (s *Server) register(c *client) {
	s.mu.Lock()
	s.clients[c] = struct{}{}
	n := len(s.clients)
	s.mu.Unlock()
	s.logger.Debug(context.Background(), "client connected", "clients", n)
}

func (s *Server) unregister(c *client) {
	s.mu.Lock()
	if _, ok := s.clients[c]; ok {
		delete(s.clients, c)
		close(c.send)
	}
	s.mu.Unlock()
}

func (s *Server) handleChanged(w http.ResponseWriter, r *http.Request) {
	var files []string
	if r.Method == http.MethodPost {
		var body struct {
			Files []string `json:"files"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}
		files = body.Files
	} else {
		files = r.URL.Query()["files"]
	}
	s.Notify(files)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"clients": s.Clients(), "files": files})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"localhost:*", "127.0.0.1:*", "[::1]:*", s.host + ":*"},
	})
	if err != nil {
		s.logger.Warn(r.Context(), err, "websocket upgrade failed")
		return
	}
	conn.SetReadLimit(maxMessageSize)

	c := &client{conn: conn, send: make(chan []byte, 16)}
	ctx, cancel := context.WithCancel(context.Background())
	go s.writePump(ctx, c)
	s.readPump(ctx, c)
	cancel()
}

// readPump answers hello handshakes until the peer goes away.
func (s *Server) readPump(ctx context.Context, c *client) {
	defer func() {
		s.unregister(c)
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	registered := false
	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway {
				s.logger.Debug(ctx, "client read ended", "error", err.Error())
			}
			return
		}
		var msg message
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Command == "hello" && !registered {
			reply, _ := json.Marshal(message{
				Command:    "hello",
				Protocols:  []string{Protocol},
				ServerName: "kiln",
			})
			writeCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Write(writeCtx, websocket.MessageText, reply)
			cancel()
			if err != nil {
				return
			}
			s.register(c)
			registered = true
		}
	}
}

func (s *Server) writePump(ctx context.Context, c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-c.send:
			if !ok {
				c.conn.Close(websocket.StatusNormalClosure, "")
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Write(writeCtx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}
