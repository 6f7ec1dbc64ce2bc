// Package server hosts the relay: the per-game append-only event logs, the
// authoritative room sessions, and the HTTP surface the two clients talk to.
// Followers poll GET /games/{id}/events and append intents with POST; a
// websocket feed mirrors appended events to spectators.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	gosync "sync"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/koragame/kora/internal/sync"
)

// Server is the HTTP/websocket front of the relay.
type Server struct {
	addr       string
	upgrader   websocket.Upgrader
	spectators map[*spectator]bool
	register   chan *spectator
	unregister chan *spectator
	broadcast  chan sync.Event
	logger     *log.Logger
	mu         gosync.RWMutex
	ctx        context.Context
	cancel     context.CancelFunc
	rooms      *RoomManager
	httpSrv    *http.Server
}

// NewServer creates a relay server for the given rooms.
func NewServer(addr string, rooms *RoomManager, logger *log.Logger) *Server {
	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		addr: addr,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// For development, allow all origins
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		spectators: make(map[*spectator]bool),
		register:   make(chan *spectator),
		unregister: make(chan *spectator),
		broadcast:  make(chan sync.Event, 64),
		logger:     logger.WithPrefix("server"),
		ctx:        ctx,
		cancel:     cancel,
		rooms:      rooms,
	}
}

// Handler returns the route table. Exposed separately from Start so tests can
// drive it through httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /games", s.handleListRooms)
	mux.HandleFunc("GET /games/{id}/events", s.handleGetUpdates)
	mux.HandleFunc("POST /games/{id}/events", s.handleSendEvent)
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	return mux
}

// Start runs the spectator loop and serves HTTP until Stop is called or the
// listener fails.
func (s *Server) Start() error {
	go s.run()
	s.httpSrv = &http.Server{Addr: s.addr, Handler: s.Handler()}
	s.logger.Info("Starting relay server", "addr", s.addr)
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop shuts the listener down and closes all spectator connections.
func (s *Server) Stop() error {
	s.cancel()
	s.mu.Lock()
	for spec := range s.spectators {
		_ = spec.conn.Close()
	}
	s.mu.Unlock()
	if s.httpSrv != nil {
		return s.httpSrv.Shutdown(context.Background())
	}
	return nil
}

// run handles spectator lifecycle and event fan-out.
func (s *Server) run() {
	for {
		select {
		case spec := <-s.register:
			s.mu.Lock()
			s.spectators[spec] = true
			total := len(s.spectators)
			s.mu.Unlock()
			s.logger.Info("Spectator connected", "game", spec.gameID, "total", total)

		case spec := <-s.unregister:
			s.mu.Lock()
			if _, ok := s.spectators[spec]; ok {
				delete(s.spectators, spec)
				close(spec.send)
			}
			total := len(s.spectators)
			s.mu.Unlock()
			s.logger.Info("Spectator disconnected", "total", total)

		case e := <-s.broadcast:
			s.mu.RLock()
			for spec := range s.spectators {
				if spec.gameID != e.GameID {
					continue
				}
				select {
				case spec.send <- e:
				default:
					s.logger.Warn("Spectator send buffer full, dropping event", "game", e.GameID)
				}
			}
			s.mu.RUnlock()

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Server) handleGetUpdates(w http.ResponseWriter, r *http.Request) {
	room, ok := s.rooms.Get(r.PathValue("id"))
	if !ok {
		s.writeError(w, http.StatusNotFound, "unknown game")
		return
	}
	var after uint64
	if v := r.URL.Query().Get("after"); v != "" {
		if _, err := fmt.Sscanf(v, "%d", &after); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid after parameter")
			return
		}
	}
	events, version := room.Log.After(after)
	s.writeJSON(w, http.StatusOK, UpdatesResponse{Events: events, Version: version})
}

func (s *Server) handleSendEvent(w http.ResponseWriter, r *http.Request) {
	room, ok := s.rooms.Get(r.PathValue("id"))
	if !ok {
		s.writeError(w, http.StatusNotFound, "unknown game")
		return
	}
	var e sync.Event
	if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed event")
		return
	}
	if e.ID == "" {
		s.writeError(w, http.StatusBadRequest, "event id required")
		return
	}
	// Authoritative types are emitted in-process by the room's authority;
	// a client may only ever append an intent. Anything else in the log
	// would be replayed by followers as if the authority had published it.
	if e.Type != sync.TypePlayProposed {
		s.writeError(w, http.StatusBadRequest, "only play proposals may be appended")
		return
	}

	stamped := room.Log.Append(e)
	s.publish(stamped)

	// Nudge the authority so proposals are validated without waiting for
	// its next poll.
	if err := room.Sync(r.Context()); err != nil {
		s.logger.Error("Room sync failed", "room", room.ID, "error", err)
	}
	s.writeJSON(w, http.StatusAccepted, stamped)
}

func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.rooms.List())
}

// handleWebSocket upgrades a spectator connection. The game is chosen with
// the ?game= query parameter, defaulting to the default room.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	gameID := r.URL.Query().Get("game")
	if gameID == "" {
		room, ok := s.rooms.Default()
		if !ok {
			s.writeError(w, http.StatusNotFound, "no rooms")
			return
		}
		gameID = room.ID
	} else if _, ok := s.rooms.Get(gameID); !ok {
		s.writeError(w, http.StatusNotFound, "unknown game")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection", "error", err)
		return
	}
	spec := &spectator{conn: conn, gameID: gameID, send: make(chan sync.Event, 32)}
	s.register <- spec
	go spec.writeLoop()
	go func() {
		// Discard inbound frames; detect close.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				s.unregister <- spec
				return
			}
		}
	}()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "OK")
}

// publish mirrors an appended event to spectators without blocking the
// request path.
func (s *Server) publish(e sync.Event) {
	select {
	case s.broadcast <- e:
	default:
		s.logger.Warn("Broadcast buffer full, dropping event", "game", e.GameID)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to write response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, ErrorResponse{Error: msg})
}

// spectator is one websocket observer of a game's event stream.
type spectator struct {
	conn   *websocket.Conn
	gameID string
	send   chan sync.Event
}

func (sp *spectator) writeLoop() {
	for e := range sp.send {
		if err := sp.conn.WriteJSON(e); err != nil {
			return
		}
	}
	_ = sp.conn.Close()
}
