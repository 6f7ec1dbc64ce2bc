package sync

import (
	"context"
	"time"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"
)

// Source is the read half of a remote log: in process it is backed by *Log,
// across the network it is the relay client.
type Source interface {
	Fetch(ctx context.Context, gameID string, after uint64) ([]Event, uint64, error)
}

// Sink consumes fetched events. Both roles implement it: the follower to
// replay, the authority to pick up proposals.
type Sink interface {
	Ingest(ctx context.Context, events []Event) error
	Watermark() uint64
}

// PollPolicy bounds the adaptive polling interval. The poller resets to Min
// whenever a fetch delivers events and doubles the interval, up to Max, while
// the log is quiet or a fetch fails.
type PollPolicy struct {
	Min time.Duration
	Max time.Duration
}

// DefaultPollPolicy suits active play: sub-second latency while cards are
// moving, backing off to a few seconds when the table goes idle.
func DefaultPollPolicy() PollPolicy {
	return PollPolicy{Min: 250 * time.Millisecond, Max: 5 * time.Second}
}

// Poller drives a Sink from a Source on an adaptive interval. It is the only
// concurrent element of the protocol; everything it calls is synchronous.
type Poller struct {
	gameID string
	source Source
	sink   Sink
	policy PollPolicy
	clock  quartz.Clock
	logger zerolog.Logger
}

// NewPoller assembles a poller. A zero-valued policy falls back to defaults.
func NewPoller(gameID string, source Source, sink Sink, policy PollPolicy, clock quartz.Clock, logger zerolog.Logger) *Poller {
	if policy.Min <= 0 || policy.Max <= 0 {
		policy = DefaultPollPolicy()
	}
	return &Poller{
		gameID: gameID,
		source: source,
		sink:   sink,
		policy: policy,
		clock:  clock,
		logger: logger.With().Str("component", "poller").Str("game_id", gameID).Logger(),
	}
}

// Run polls until the context is cancelled or the sink reports an unrecoverable
// replay error. Fetch failures are retried with the same geometric backoff
// used for idle periods; they never propagate.
func (p *Poller) Run(ctx context.Context) error {
	interval := p.policy.Min
	for {
		events, version, err := p.source.Fetch(ctx, p.gameID, p.sink.Watermark())
		switch {
		case ctx.Err() != nil:
			return ctx.Err()
		case err != nil:
			p.logger.Warn().Err(err).Dur("retry_in", p.grow(interval)).Msg("poll failed")
			interval = p.grow(interval)
		case len(events) > 0:
			if err := p.sink.Ingest(ctx, events); err != nil {
				return err
			}
			interval = p.policy.Min
			p.logger.Debug().Int("events", len(events)).Uint64("version", version).Msg("applied batch")
		default:
			interval = p.grow(interval)
		}

		timer := p.clock.NewTimer(interval, "poll")
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (p *Poller) grow(cur time.Duration) time.Duration {
	next := cur * 2
	if next > p.policy.Max {
		next = p.policy.Max
	}
	return next
}

// LocalSource adapts an in-process *Log to the Source interface.
type LocalSource struct {
	Log *Log
}

func (s LocalSource) Fetch(_ context.Context, _ string, after uint64) ([]Event, uint64, error) {
	events, version := s.Log.After(after)
	return events, version, nil
}
