package sync

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/koragame/kora/internal/game"
)

// ErrDiverged means a replayed log produced a state that contradicts the
// authority's published outcome. With identical rule code on both sides this
// only happens if the log was corrupted or events were lost for good.
var ErrDiverged = errors.New("sync: follower state diverged from authority")

// Follower is the replica role: it holds a session that is mutated only by
// replaying authority events, in sequence order, through the same game code
// the authority runs. Events arriving early are buffered, never applied out
// of order; events arriving twice are no-ops.
type Follower struct {
	gameID    string
	session   *game.Session
	logger    zerolog.Logger
	watermark uint64
	pending   map[uint64]Event
	seen      *recentIDs
}

// NewFollower creates a follower with no session yet; the session is built
// from the game_started payload when it arrives.
func NewFollower(gameID string, logger zerolog.Logger) *Follower {
	return &Follower{
		gameID:  gameID,
		logger:  logger.With().Str("component", "follower").Str("game_id", gameID).Logger(),
		pending: make(map[uint64]Event),
		seen:    newRecentIDs(defaultRecentCap),
	}
}

// Session returns the replica session, nil before game_started was applied.
func (f *Follower) Session() *game.Session {
	return f.session
}

// Watermark implements Sink: the sequence number of the newest event
// reflected in the replica state.
func (f *Follower) Watermark() uint64 {
	return f.watermark
}

// Ingest implements Sink. The batch is sorted by sequence before anything is
// applied; duplicates (already-seen id, or seq at or below the watermark) are
// skipped, gaps are buffered until the missing events arrive.
func (f *Follower) Ingest(_ context.Context, events []Event) error {
	sorted := append([]Event(nil), events...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Seq < sorted[j].Seq })

	for _, e := range sorted {
		if f.seen.Has(e.ID) {
			f.logger.Debug().Str("event_id", e.ID).Msg("duplicate event, skipped")
			continue
		}
		if e.Seq <= f.watermark {
			// Already reflected in state; the seen window just hadn't
			// retained the id anymore.
			f.seen.Add(e.ID)
			continue
		}
		if e.Seq != f.watermark+1 {
			f.pending[e.Seq] = e
			f.logger.Debug().Uint64("seq", e.Seq).Uint64("watermark", f.watermark).Msg("out-of-order event buffered")
			continue
		}
		if err := f.applyAt(e); err != nil {
			return err
		}
		if err := f.drain(); err != nil {
			return err
		}
	}
	return nil
}

func (f *Follower) applyAt(e Event) error {
	if err := f.apply(e); err != nil {
		return err
	}
	f.watermark = e.Seq
	f.seen.Add(e.ID)
	return nil
}

// drain applies buffered events that have become contiguous.
func (f *Follower) drain() error {
	for {
		e, ok := f.pending[f.watermark+1]
		if !ok {
			return nil
		}
		delete(f.pending, e.Seq)
		if err := f.applyAt(e); err != nil {
			return err
		}
	}
}

func (f *Follower) apply(e Event) error {
	switch e.Type {
	case TypeGameStarted:
		return f.applyStarted(e)
	case TypeCardPlayed:
		return f.applyPlayed(e)
	case TypeGameEnded:
		return f.checkEnded(e)
	case TypePlayProposed:
		// Proposals carry no authority; only the matching card_played does.
		return nil
	default:
		f.logger.Warn().Str("type", string(e.Type)).Msg("unknown event type, skipped")
		return nil
	}
}

func (f *Follower) applyStarted(e Event) error {
	var p GameStartedPayload
	if err := unmarshalPayload(e, &p); err != nil {
		return err
	}
	s := game.NewSession(game.Config{FirstLead: p.FirstLead, Bet: p.Bet})
	if err := s.Join(game.SeatA, p.Controls[game.SeatA]); err != nil {
		return err
	}
	if err := s.Join(game.SeatB, p.Controls[game.SeatB]); err != nil {
		return err
	}
	if err := s.StartDealt(p.HandA, p.HandB); err != nil {
		return err
	}
	f.session = s
	f.logger.Debug().Stringer("first_lead", p.FirstLead).Msg("replica session started")
	return nil
}

func (f *Follower) applyPlayed(e Event) error {
	if f.session == nil {
		return fmt.Errorf("sync: card_played before game_started (seq %d)", e.Seq)
	}
	var p PlayPayload
	if err := unmarshalPayload(e, &p); err != nil {
		return err
	}
	if err := f.session.PlayCard(p.Seat, p.Card); err != nil {
		// The authority accepted this play, so a rejection here means the
		// replica is not looking at the same game anymore.
		return fmt.Errorf("%w: replay of seq %d: %v", ErrDiverged, e.Seq, err)
	}
	return nil
}

// checkEnded cross-checks the replayed outcome against the authority's
// summary.
func (f *Follower) checkEnded(e Event) error {
	if f.session == nil {
		return fmt.Errorf("sync: game_ended before game_started (seq %d)", e.Seq)
	}
	var p GameEndedPayload
	if err := unmarshalPayload(e, &p); err != nil {
		return err
	}
	if f.session.Phase != game.PhaseEnded ||
		f.session.Winner != p.Winner ||
		f.session.Victory.String() != p.Victory ||
		f.session.Multiplier != p.Multiplier {
		return fmt.Errorf("%w: ended with winner=%s victory=%s mult=%d, authority says winner=%s victory=%s mult=%d",
			ErrDiverged,
			f.session.Winner, f.session.Victory, f.session.Multiplier,
			p.Winner, p.Victory, p.Multiplier)
	}
	return nil
}
