package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"digital.vasic.challengeboard/pkg/engine"
	"digital.vasic.challengeboard/pkg/logging"
)

const (
	writeWait  = 5 * time.Second
	sendBuffer = 32
)

// Message is one websocket frame sent to clients.
type Message struct {
	Type      string             `json:"type"`
	Event     *engine.Event      `json:"event,omitempty"`
	Dashboard *DashboardSnapshot `json:"dashboard,omitempty"`
}

type subscriber struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (s *subscriber) close() {
	s.once.Do(func() { close(s.send) })
}

// Server streams engine events over websockets and serves the
// dashboard.
type Server struct {
	mu        sync.RWMutex
	collector *EventCollector
	dashboard *Dashboard
	clients   map[*subscriber]struct{}
	logger    logging.Logger
	upgrader  websocket.Upgrader
	addr      string
	server    *http.Server
}

// NewServer creates a Server fed by collector. Every collected
// event updates dashboard and is broadcast to connected
// clients.
func NewServer(
	addr string, collector *EventCollector, dashboard *Dashboard,
	logger logging.Logger,
) *Server {
	if logger == nil {
		logger = logging.NullLogger{}
	}
	s := &Server{
		addr:      addr,
		collector: collector,
		dashboard: dashboard,
		clients:   make(map[*subscriber]struct{}),
		logger:    logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	collector.OnEvent(func(ev engine.Event) {
		dashboard.UpdateFromEvent(ev)
		data, err := json.Marshal(Message{Type: "event", Event: &ev})
		if err != nil {
			return
		}
		s.broadcast(data)
	})
	return s
}

// Handler returns the monitor's routes: /ws, /dashboard and
// /health.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/dashboard", s.handleDashboard)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// Start serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	srv := s.server
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(
			context.Background(), 5*time.Second,
		)
		defer cancel()
		_ = s.Stop(shutdownCtx)
	}()

	s.logger.Info("monitor listening", logging.StringField("addr", s.addr))
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("monitor server: %w", err)
	}
	return nil
}

// Stop shuts the server down and disconnects every client.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	for c := range s.clients {
		delete(s.clients, c)
		c.close()
	}
	s.mu.Unlock()

	if srv != nil {
		return srv.Shutdown(ctx)
	}
	return nil
}

// Clients returns the number of connected websocket clients.
func (s *Server) Clients() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", logging.ErrorField(err))
		return
	}

	snap := s.dashboard.Snapshot()
	initial, err := json.Marshal(Message{Type: "dashboard", Dashboard: &snap})
	if err != nil {
		conn.Close()
		return
	}

	sub := &subscriber{conn: conn, send: make(chan []byte, sendBuffer)}
	sub.send <- initial

	s.mu.Lock()
	s.clients[sub] = struct{}{}
	s.mu.Unlock()

	go s.writeLoop(sub)
	s.readLoop(sub)
}

// readLoop discards client frames and unregisters the client
// once the connection closes.
func (s *Server) readLoop(sub *subscriber) {
	defer func() {
		s.mu.Lock()
		delete(s.clients, sub)
		s.mu.Unlock()
		sub.close()
	}()
	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) writeLoop(sub *subscriber) {
	defer sub.conn.Close()
	for data := range sub.send {
		_ = sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := sub.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
	_ = sub.conn.WriteMessage(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
	)
}

func (s *Server) handleDashboard(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.dashboard.Snapshot())
}

func (s *Server) broadcast(data []byte) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for c := range s.clients {
		select {
		case c.send <- data:
		default:
			// Client too slow, skip
		}
	}
}
