// Package monitor serves the store's live state to dashboards over a
// WebSocket feed.
package monitor

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/1ureka/roverlink/internal/store"
	"github.com/1ureka/roverlink/internal/util"
)

const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Snapshot is the first message a dashboard receives.
type Snapshot struct {
	Kind  string      `json:"kind"`
	State store.State `json:"state"`
}

// Server streams store events as JSON text messages on /ws.
type Server struct {
	store    *store.Store
	listener net.Listener
	srv      *http.Server

	// Hijacked feeds are invisible to http.Server.Shutdown.
	mu     sync.Mutex
	conns  map[*websocket.Conn]struct{}
	closed bool
}

// NewServer creates a monitor for st. Call Start to begin listening.
func NewServer(st *store.Store) *Server {
	return &Server{store: st, conns: make(map[*websocket.Conn]struct{})}
}

// Handler returns the monitor routes, for mounting without Start.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	return mux
}

// Start listens on addr (":0" picks a free port) and returns the bound
// address.
func (s *Server) Start(addr string) (string, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("failed to start monitor: %w", err)
	}
	s.listener = listener
	s.srv = &http.Server{Handler: s.Handler()}

	go func() {
		_ = s.srv.Serve(listener)
	}()

	util.LogInfo("monitor listening on %s", listener.Addr())
	return listener.Addr().String(), nil
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	if !s.track(conn) {
		conn.Close()
		return
	}
	defer s.untrack(conn)

	events, cancel := s.store.Subscribe()
	defer cancel()

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(Snapshot{Kind: "snapshot", State: s.store.Snapshot()}); err != nil {
		return
	}

	// Dashboards never send; reading only detects the close.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	util.LogDebug("dashboard connected from %s", r.RemoteAddr)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				util.LogDebug("dashboard %s write failed: %v", r.RemoteAddr, err)
				return
			}
		case <-closed:
			util.LogDebug("dashboard %s disconnected", r.RemoteAddr)
			return
		case <-r.Context().Done():
			return
		}
	}
}

func (s *Server) track(conn *websocket.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Server) untrack(conn *websocket.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
	conn.Close()
}

// Close shuts down the listener and every open feed.
func (s *Server) Close() error {
	s.mu.Lock()
	s.closed = true
	conns := make([]*websocket.Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}

	if s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
