package server

import (
	"context"
	"time"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"

	"github.com/koragame/kora/internal/game"
)

// runnerTick is how often the runner re-checks the session while waiting for
// the human seat.
const runnerTick = 100 * time.Millisecond

// Runner drives a room's bot seat. The thinking delay is a scheduling
// concern that lives here, not in the engine: the runner waits on the clock
// and only then asks the room to act, re-checking turn ownership after the
// wait.
type Runner struct {
	room   *Room
	clock  quartz.Clock
	logger zerolog.Logger
}

// NewRunner creates a runner for the room.
func NewRunner(room *Room, clock quartz.Clock, logger zerolog.Logger) *Runner {
	return &Runner{
		room:   room,
		clock:  clock,
		logger: logger.With().Str("component", "runner").Str("room", room.ID).Logger(),
	}
}

// Run starts the room's game and plays the bot seat until the session ends
// or the context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.room.Start(ctx); err != nil {
		return err
	}
	for {
		state := r.room.Snapshot()
		if state.Phase == game.PhaseEnded.String() {
			r.logger.Info().
				Str("winner", state.Winner.String()).
				Str("victory", state.Victory).
				Int("multiplier", state.Multiplier).
				Msg("room finished")
			return nil
		}

		wait := runnerTick
		if state.Phase == game.PhasePlaying.String() && state.Current == game.SeatB {
			wait = r.room.ThinkDelay()
		}
		if err := r.sleep(ctx, wait); err != nil {
			return err
		}
		if state.Current == game.SeatB {
			if _, err := r.room.PlayAI(ctx); err != nil {
				return err
			}
		}
	}
}

func (r *Runner) sleep(ctx context.Context, d time.Duration) error {
	timer := r.clock.NewTimer(d, "runner")
	select {
	case <-ctx.Done():
		timer.Stop()
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
