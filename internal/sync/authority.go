package sync

import (
	"context"
	"errors"
	"fmt"
	rand "math/rand/v2"
	"sort"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"

	"github.com/koragame/kora/internal/game"
	"github.com/koragame/kora/kora"
)

// maxRedeals bounds the double-auto-win redeal loop under TieRedeal.
const maxRedeals = 100

// Authority owns the canonical session for a game. It is the only role that
// executes rule-engine transitions: local actions are applied optimistically
// and then published to the log, and follower proposals read back from the
// log are validated through the same path before they become real. The
// follower never decides an outcome.
type Authority struct {
	gameID    string
	session   *game.Session
	log       Appender
	clock     quartz.Clock
	logger    zerolog.Logger
	seen      *recentIDs
	watermark uint64
}

// NewAuthority wraps a session in the authority role.
func NewAuthority(gameID string, session *game.Session, log Appender, clock quartz.Clock, logger zerolog.Logger) *Authority {
	return &Authority{
		gameID:  gameID,
		session: session,
		log:     log,
		clock:   clock,
		logger:  logger.With().Str("component", "authority").Str("game_id", gameID).Logger(),
		seen:    newRecentIDs(defaultRecentCap),
	}
}

// Session exposes the canonical session. Callers must not mutate it directly;
// all writes go through StartGame and PlayLocal.
func (a *Authority) Session() *game.Session {
	return a.session
}

// StartGame deals the session and publishes game_started. Under the redeal
// tie policy a voided deal is retried before anything is published, so the
// log only ever carries deals that stand.
func (a *Authority) StartGame(ctx context.Context, rng *rand.Rand) error {
	for i := 0; ; i++ {
		if err := a.session.Start(rng); err != nil {
			return err
		}
		if !a.session.NeedsRedeal {
			break
		}
		if i >= maxRedeals {
			return errors.New("sync: redeal limit exceeded")
		}
		a.logger.Debug().Msg("double auto-win, redealing")
	}

	payload := GameStartedPayload{
		HandA:     a.session.Seats[game.SeatA].Hand.Clone(),
		HandB:     a.session.Seats[game.SeatB].Hand.Clone(),
		Controls:  [2]game.Control{a.session.Seats[game.SeatA].Control, a.session.Seats[game.SeatB].Control},
		FirstLead: a.session.FirstLead,
		Bet:       a.session.Bet,
	}
	if err := a.emit(ctx, game.SeatNone, TypeGameStarted, payload); err != nil {
		return err
	}
	a.logger.Info().
		Stringer("first_lead", a.session.FirstLead).
		Int("bet", a.session.Bet).
		Msg("game started")

	if a.session.Phase == game.PhaseEnded {
		// Auto-win decided the game straight off the deal.
		return a.emitEnded(ctx)
	}
	return nil
}

// PlayLocal applies a play on the canonical session and, if accepted,
// publishes card_played (and game_ended when the play closed the session).
// Rule violations are returned to the caller and nothing is published.
func (a *Authority) PlayLocal(ctx context.Context, seat game.Seat, card kora.Card) error {
	turn := a.session.Trick.Number
	if err := a.session.PlayCard(seat, card); err != nil {
		return err
	}
	payload := PlayPayload{Seat: seat, Card: card, Turn: turn}
	if err := a.emit(ctx, seat, TypeCardPlayed, payload); err != nil {
		return err
	}
	a.logger.Debug().
		Stringer("seat", seat).
		Stringer("card", card).
		Int("turn", turn).
		Msg("card played")

	if a.session.Phase == game.PhaseEnded {
		return a.emitEnded(ctx)
	}
	return nil
}

func (a *Authority) emitEnded(ctx context.Context) error {
	payload := GameEndedPayload{
		Winner:     a.session.Winner,
		Victory:    a.session.Victory.String(),
		Multiplier: a.session.Multiplier,
		Payout:     a.session.Bet * a.session.Multiplier,
	}
	if err := a.emit(ctx, game.SeatNone, TypeGameEnded, payload); err != nil {
		return err
	}
	a.logger.Info().
		Stringer("winner", a.session.Winner).
		Stringer("victory", a.session.Victory).
		Int("multiplier", a.session.Multiplier).
		Msg("game ended")
	return nil
}

func (a *Authority) emit(ctx context.Context, origin game.Seat, t Type, payload any) error {
	e, err := NewEvent(a.gameID, origin, t, payload, a.clock.Now())
	if err != nil {
		return err
	}
	stamped, err := a.log.Append(ctx, e)
	if err != nil {
		return fmt.Errorf("sync: append %s: %w", t, err)
	}
	a.seen.Add(stamped.ID)
	return nil
}

// Watermark implements Sink.
func (a *Authority) Watermark() uint64 {
	return a.watermark
}

// Ingest implements Sink. The authority consumes the log only to pick up
// follower proposals; its own published events are already reflected in
// state and pass through as no-ops.
func (a *Authority) Ingest(ctx context.Context, events []Event) error {
	sorted := append([]Event(nil), events...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Seq < sorted[j].Seq })

	for _, e := range sorted {
		if e.Seq <= a.watermark {
			continue
		}
		// Advance past own emissions too, so the caller's After(watermark)
		// window keeps moving instead of re-scanning the same tail.
		a.watermark = e.Seq
		if a.seen.Has(e.ID) {
			continue
		}
		a.seen.Add(e.ID)
		if e.Type != TypePlayProposed {
			continue
		}
		if err := a.handleProposal(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

// handleProposal validates a follower play intent. A rejected proposal is
// dropped without publishing anything: the proposer learns the outcome by
// whether a matching card_played ever appears in the log.
func (a *Authority) handleProposal(ctx context.Context, e Event) error {
	var p PlayPayload
	if err := unmarshalPayload(e, &p); err != nil {
		a.logger.Warn().Err(err).Str("event_id", e.ID).Msg("malformed proposal")
		return nil
	}
	if p.Seat != e.OriginSeat {
		a.logger.Warn().
			Stringer("origin", e.OriginSeat).
			Stringer("claimed", p.Seat).
			Msg("proposal seat mismatch, dropped")
		return nil
	}
	err := a.PlayLocal(ctx, p.Seat, p.Card)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, game.ErrIllegalPlay),
		errors.Is(err, game.ErrNotYourTurn),
		errors.Is(err, game.ErrInvalidPhase):
		a.logger.Warn().Err(err).
			Stringer("seat", p.Seat).
			Stringer("card", p.Card).
			Msg("proposal rejected")
		return nil
	default:
		return err
	}
}
