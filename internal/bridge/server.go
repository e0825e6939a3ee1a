// Package bridge exposes the adaptation engine to the portfolio front end:
// a websocket endpoint receiving visitor interaction events and pushing
// evolution notifications, plus read-only JSON APIs over the metrics,
// history, insights, and rule catalog.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Iszy-Dzire/Self-Evolving-Portfolio-2/pkg/evolve"
	"github.com/Iszy-Dzire/Self-Evolving-Portfolio-2/pkg/evolve/effects"
	"github.com/Iszy-Dzire/Self-Evolving-Portfolio-2/pkg/evolve/metrics"
)

const maxClients = 100

// ClientEvent is one inbound interaction from the front end.
type ClientEvent struct {
	Type     string `json:"type"`
	Category string `json:"category,omitempty"`
	Target   string `json:"target,omitempty"`
	Depth    int    `json:"depth,omitempty"`
	Section  string `json:"section,omitempty"`
	Theme    string `json:"theme,omitempty"`
}

// EvolutionEvent is pushed to every connected client when a rule fires.
type EvolutionEvent struct {
	Type        string    `json:"type"`
	Rule        string    `json:"rule"`
	Description string    `json:"description"`
	Timestamp   time.Time `json:"timestamp"`
}

// Server bridges websocket clients to the tracker and engine.
type Server struct {
	addr    string
	tracker *metrics.Tracker
	engine  *evolve.Engine
	logger  *zap.Logger

	upgrader websocket.Upgrader

	clientsMu sync.RWMutex
	clients   map[*websocket.Conn]bool

	events   chan EvolutionEvent
	stop     chan struct{}
	stopOnce sync.Once

	server *http.Server
}

// NewServer builds a bridge listening on addr and subscribes it to the
// effect registry so fired rules reach connected clients.
func NewServer(addr string, tracker *metrics.Tracker, engine *evolve.Engine, registry *effects.Registry, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		addr:    addr,
		tracker: tracker,
		engine:  engine,
		logger:  logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// The portfolio is a static site; allow same-origin and
				// local development hosts.
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				return origin == fmt.Sprintf("http://localhost%s", addr) ||
					origin == fmt.Sprintf("http://127.0.0.1%s", addr)
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		clients: make(map[*websocket.Conn]bool),
		events:  make(chan EvolutionEvent, 100),
		stop:    make(chan struct{}),
	}

	registry.Observe(func(rule, description string) {
		s.notify(rule, description)
	})
	return s
}

// Handler returns the HTTP handler, exported separately so tests can mount
// it on httptest.Server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/api/metrics", s.handleMetrics)
	mux.HandleFunc("/api/history", s.handleHistory)
	mux.HandleFunc("/api/insights", s.handleInsights)
	mux.HandleFunc("/api/rules", s.handleRules)
	return mux
}

// Start serves until Stop is called. Blocks, like http.ListenAndServe.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    s.addr,
		Handler: s.Handler(),
	}

	go s.broadcast()

	s.logger.Info("bridge listening", zap.String("addr", s.addr))
	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop shuts the listener down and disconnects all clients. Idempotent.
func (s *Server) Stop() error {
	s.stopOnce.Do(func() { close(s.stop) })
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) notify(rule, description string) {
	event := EvolutionEvent{
		Type:        "evolution",
		Rule:        rule,
		Description: description,
		Timestamp:   time.Now(),
	}
	select {
	case s.events <- event:
	default:
		// Drop when the channel is full; clients can re-sync via /api/history.
	}
}

func (s *Server) broadcast() {
	for {
		select {
		case event := <-s.events:
			data, err := json.Marshal(event)
			if err != nil {
				continue
			}
			s.clientsMu.RLock()
			conns := make([]*websocket.Conn, 0, len(s.clients))
			for conn := range s.clients {
				conns = append(conns, conn)
			}
			s.clientsMu.RUnlock()

			for _, conn := range conns {
				if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
					s.dropClient(conn)
				}
			}
		case <-s.stop:
			return
		}
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.clientsMu.RLock()
	count := len(s.clients)
	s.clientsMu.RUnlock()
	if count >= maxClients {
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	s.clientsMu.Lock()
	s.clients[conn] = true
	s.clientsMu.Unlock()

	go s.readLoop(conn)
}

func (s *Server) readLoop(conn *websocket.Conn) {
	defer s.dropClient(conn)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var event ClientEvent
		if err := json.Unmarshal(data, &event); err != nil {
			s.logger.Warn("malformed client event", zap.Error(err))
			continue
		}
		s.apply(event)
	}
}

// apply routes one client event into the tracker. Clicks, section changes,
// and theme changes also nudge the engine to evaluate soon.
func (s *Server) apply(event ClientEvent) {
	switch event.Type {
	case "click":
		s.tracker.RecordClick(metrics.Category(event.Category), metrics.Category(event.Target), nil)
		s.engine.NotifyInteraction()
	case "scroll":
		s.tracker.RecordScroll(event.Depth)
	case "section":
		s.tracker.RecordSectionEnter(metrics.Section(event.Section))
		s.engine.NotifyInteraction()
	case "theme":
		s.tracker.RecordThemeChange(metrics.Theme(event.Theme))
		s.engine.NotifyInteraction()
	case "visit":
		s.tracker.RegisterVisit()
	case "unload":
		s.tracker.Flush()
	default:
		s.logger.Warn("unknown client event", zap.String("type", event.Type))
	}
}

func (s *Server) dropClient(conn *websocket.Conn) {
	s.clientsMu.Lock()
	if s.clients[conn] {
		delete(s.clients, conn)
		conn.Close()
	}
	s.clientsMu.Unlock()
}

// metricsReport is the /api/metrics payload: the raw snapshot plus the
// derived values the front end would otherwise recompute.
type metricsReport struct {
	metrics.Snapshot
	EngagementScore    float64         `json:"engagement_score"`
	MostDwelledSection metrics.Section `json:"most_dwelled_section"`
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	writeJSON(w, metricsReport{
		Snapshot:           snap,
		EngagementScore:    snap.EngagementScore(),
		MostDwelledSection: snap.MostDwelledSection(),
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.engine.History())
}

func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.engine.Insights())
}

func (s *Server) handleRules(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.engine.Rules())
}

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	response := map[string]interface{}{
		"status": "ok",
		"data":   data,
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "encoding error", http.StatusInternalServerError)
	}
}
