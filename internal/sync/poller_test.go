package sync

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fetchReply struct {
	events  []Event
	version uint64
	err     error
}

// stubSource hands one reply per Fetch and lets the test observe the
// watermark each poll asked for.
type stubSource struct {
	calls chan uint64
	resp  chan fetchReply
}

func newStubSource() *stubSource {
	return &stubSource{calls: make(chan uint64), resp: make(chan fetchReply)}
}

func (s *stubSource) Fetch(ctx context.Context, _ string, after uint64) ([]Event, uint64, error) {
	select {
	case s.calls <- after:
	case <-ctx.Done():
		return nil, 0, ctx.Err()
	}
	select {
	case r := <-s.resp:
		return r.events, r.version, r.err
	case <-ctx.Done():
		return nil, 0, ctx.Err()
	}
}

type recordingSink struct {
	mu        gosync.Mutex
	watermark uint64
	batches   [][]Event
	err       error
}

func (s *recordingSink) Ingest(_ context.Context, events []Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.batches = append(s.batches, events)
	for _, e := range events {
		if e.Seq > s.watermark {
			s.watermark = e.Seq
		}
	}
	return nil
}

func (s *recordingSink) Watermark() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.watermark
}

func TestPollerAdaptiveInterval(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	mClock := quartz.NewMock(t)
	trap := mClock.Trap().NewTimer("poll")
	defer trap.Close()

	src := newStubSource()
	sink := &recordingSink{}
	policy := PollPolicy{Min: 100 * time.Millisecond, Max: 400 * time.Millisecond}
	p := NewPoller("g", src, sink, policy, mClock, zerolog.Nop())

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	event := func(seq uint64) Event {
		return Event{ID: fmt.Sprintf("e%d", seq), Seq: seq, Type: TypePlayProposed}
	}

	// Drives one poll cycle: answer the pending fetch, then assert the
	// interval the poller sleeps for before letting time pass.
	step := func(wantAfter uint64, reply fetchReply, wantInterval time.Duration) {
		t.Helper()
		after := <-src.calls
		assert.Equal(t, wantAfter, after, "poll must ask from the sink watermark")
		src.resp <- reply
		call := trap.MustWait(ctx)
		assert.Equal(t, wantInterval, call.Duration)
		call.MustRelease(ctx)
		mClock.Advance(call.Duration).MustWait(ctx)
	}

	step(0, fetchReply{events: []Event{event(1)}, version: 1}, 100*time.Millisecond)
	step(1, fetchReply{}, 200*time.Millisecond)
	step(1, fetchReply{}, 400*time.Millisecond)
	step(1, fetchReply{}, 400*time.Millisecond) // capped at Max
	step(1, fetchReply{err: errors.New("relay unreachable")}, 400*time.Millisecond)
	step(1, fetchReply{events: []Event{event(2)}, version: 2}, 100*time.Millisecond) // delivery resets

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
	assert.Len(t, sink.batches, 2)
}

func TestPollerStopsOnSinkError(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	src := newStubSource()
	sink := &recordingSink{err: ErrDiverged}
	p := NewPoller("g", src, sink, DefaultPollPolicy(), quartz.NewMock(t), zerolog.Nop())

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	<-src.calls
	src.resp <- fetchReply{events: []Event{{ID: "e1", Seq: 1, Type: TypeCardPlayed}}}
	require.ErrorIs(t, <-done, ErrDiverged)
}

func TestPollerDrivesFollowerToConvergence(t *testing.T) {
	authority, log := playedOutGame(t)

	mClock := quartz.NewMock(t)
	trap := mClock.Trap().NewTimer("poll")
	defer trap.Close()

	follower := NewFollower("test-game", zerolog.Nop())
	p := NewPoller("test-game", LocalSource{Log: log}, follower, DefaultPollPolicy(), mClock, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	// The first poll fetches the whole log; once the poller arms its timer
	// the batch has been applied.
	call := trap.MustWait(ctx)
	call.MustRelease(ctx)
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	require.NotNil(t, follower.Session())
	assert.Equal(t, authority.Session().Snapshot(), follower.Session().Snapshot())
}
