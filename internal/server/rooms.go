package server

import (
	"context"
	"fmt"
	rand "math/rand/v2"
	gosync "sync"
	"time"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"

	"github.com/koragame/kora/internal/bot"
	"github.com/koragame/kora/internal/game"
	"github.com/koragame/kora/internal/randutil"
	"github.com/koragame/kora/internal/sync"
)

// Room is one hosted game: the per-game event log plus the authority that
// owns the canonical session. The engine itself is single-threaded, so the
// room mutex serialises every path that touches the session: starting,
// AI plays, and proposals ingested from the log.
type Room struct {
	ID  string
	Log *sync.Log

	mu         gosync.Mutex
	authority  *sync.Authority
	difficulty bot.Difficulty
	aiSeat     game.Seat
	think      time.Duration
	rng        *rand.Rand
	logger     zerolog.Logger
}

// NewRoom builds a room from its configuration. Seat A is the remote human
// seat, seat B is driven by the in-process bot.
func NewRoom(cfg RoomConfig, clock quartz.Clock, logger zerolog.Logger) (*Room, error) {
	difficulty, err := bot.ParseDifficulty(cfg.Difficulty)
	if err != nil {
		return nil, err
	}
	firstLead, err := parseSeat(cfg.FirstLead)
	if err != nil {
		return nil, err
	}
	tiePolicy, err := parseTiePolicy(cfg.TiePolicy)
	if err != nil {
		return nil, err
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = clock.Now().UnixNano()
	}

	session := game.NewSession(game.Config{FirstLead: firstLead, Bet: cfg.Bet, TiePolicy: tiePolicy})
	if err := session.Join(game.SeatA, game.ControlHuman); err != nil {
		return nil, err
	}
	if err := session.Join(game.SeatB, game.ControlComputer); err != nil {
		return nil, err
	}

	log := sync.NewLog(cfg.Name)
	roomLogger := logger.With().Str("room", cfg.Name).Logger()
	return &Room{
		ID:         cfg.Name,
		Log:        log,
		authority:  sync.NewAuthority(cfg.Name, session, sync.LocalAppender{Log: log}, clock, roomLogger),
		difficulty: difficulty,
		aiSeat:     game.SeatB,
		think:      time.Duration(cfg.ThinkMs) * time.Millisecond,
		rng:        randutil.New(seed),
		logger:     roomLogger,
	}, nil
}

// Start deals the room's session and publishes game_started.
func (r *Room) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.authority.StartGame(ctx, r.rng)
}

// Sync feeds any log entries the authority has not seen yet through its
// ingest path. The relay calls this after appending a proposal so follower
// intents are validated promptly rather than on the next poll.
func (r *Room) Sync(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	events, _ := r.Log.After(r.authority.Watermark())
	if len(events) == 0 {
		return nil
	}
	return r.authority.Ingest(ctx, events)
}

// PlayAI makes the bot seat act if it is its turn. Returns whether a card
// was played.
func (r *Room) PlayAI(ctx context.Context) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session := r.authority.Session()
	if session.Phase != game.PhasePlaying || session.CurrentSeat() != r.aiSeat {
		return false, nil
	}
	hand := session.Seats[r.aiSeat].Hand
	legal := session.LegalFor(r.aiSeat)
	card, err := bot.SelectCard(r.rng, hand, legal, session.Trick.Number, r.difficulty, session.History)
	if err != nil {
		return false, err
	}
	if err := r.authority.PlayLocal(ctx, r.aiSeat, card); err != nil {
		return false, err
	}
	return true, nil
}

// Snapshot returns a copy of the canonical session state.
func (r *Room) Snapshot() game.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.authority.Session().Snapshot()
}

// ThinkDelay is how long the bot pretends to think before acting.
func (r *Room) ThinkDelay() time.Duration {
	return r.think
}

func parseSeat(s string) (game.Seat, error) {
	switch s {
	case "A", "a":
		return game.SeatA, nil
	case "B", "b":
		return game.SeatB, nil
	default:
		return game.SeatNone, fmt.Errorf("unknown seat %q", s)
	}
}

func parseTiePolicy(s string) (game.TiePolicy, error) {
	switch s {
	case "lower_sum":
		return game.TieLowerSum, nil
	case "redeal":
		return game.TieRedeal, nil
	default:
		return 0, fmt.Errorf("unknown tie policy %q", s)
	}
}

// RoomManager tracks the hosted rooms. The first registered room becomes the
// default.
type RoomManager struct {
	logger    zerolog.Logger
	mu        gosync.RWMutex
	rooms     map[string]*Room
	defaultID string
}

// NewRoomManager constructs an empty room manager.
func NewRoomManager(logger zerolog.Logger) *RoomManager {
	return &RoomManager{
		logger: logger.With().Str("component", "room_manager").Logger(),
		rooms:  make(map[string]*Room),
	}
}

// Register adds a room. Re-registering an id replaces the previous room.
func (rm *RoomManager) Register(room *Room) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.rooms[room.ID] = room
	if rm.defaultID == "" {
		rm.defaultID = room.ID
	}
	rm.logger.Info().Str("room", room.ID).Msg("room registered")
}

// Get retrieves a room by id.
func (rm *RoomManager) Get(id string) (*Room, bool) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	room, ok := rm.rooms[id]
	return room, ok
}

// Delete removes a room by id and returns it.
func (rm *RoomManager) Delete(id string) (*Room, bool) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	room, ok := rm.rooms[id]
	if !ok {
		return nil, false
	}
	delete(rm.rooms, id)
	if rm.defaultID == id {
		rm.defaultID = ""
		for newID := range rm.rooms {
			rm.defaultID = newID
			break
		}
	}
	return room, true
}

// Default returns the default room, if any.
func (rm *RoomManager) Default() (*Room, bool) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	if rm.defaultID == "" {
		return nil, false
	}
	room, ok := rm.rooms[rm.defaultID]
	return room, ok
}

// List returns summaries for every room.
func (rm *RoomManager) List() []RoomSummary {
	rm.mu.RLock()
	rooms := make([]*Room, 0, len(rm.rooms))
	for _, room := range rm.rooms {
		rooms = append(rooms, room)
	}
	rm.mu.RUnlock()

	out := make([]RoomSummary, 0, len(rooms))
	for _, room := range rooms {
		state := room.Snapshot()
		out = append(out, RoomSummary{
			ID:         room.ID,
			Bet:        state.Bet,
			Phase:      state.Phase,
			Version:    room.Log.Version(),
			Winner:     state.Winner.String(),
			Victory:    state.Victory,
			Multiplier: state.Multiplier,
		})
	}
	return out
}
