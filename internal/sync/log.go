package sync

import (
	"context"
	gosync "sync"
)

// Log is the ordered, append-only event log for a single game. Append stamps
// each event with the next sequence number; After serves the polling query.
// Safe for concurrent use.
type Log struct {
	mu      gosync.RWMutex
	gameID  string
	events  []Event
	version uint64
}

// NewLog creates an empty log for the given game.
func NewLog(gameID string) *Log {
	return &Log{gameID: gameID}
}

// GameID returns the game this log belongs to.
func (l *Log) GameID() string {
	return l.gameID
}

// Append stamps the event with the next sequence number and stores it. The
// stamped event is returned so the producer can observe the assigned Seq.
func (l *Log) Append(e Event) Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.version++
	e.Seq = l.version
	e.GameID = l.gameID
	l.events = append(l.events, e)
	return e
}

// After returns the events with a sequence number strictly greater than v,
// in log order, together with the current version.
func (l *Log) After(v uint64) ([]Event, uint64) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []Event
	for _, e := range l.events {
		if e.Seq > v {
			out = append(out, e)
		}
	}
	return out, l.version
}

// Version returns the sequence number of the newest event.
func (l *Log) Version() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.version
}

// Len returns the number of stored events.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}

// Appender is the write half of a log as seen by an authority: in process it
// is *Log, across the network it is the relay client.
type Appender interface {
	Append(ctx context.Context, e Event) (Event, error)
}

// LocalAppender adapts an in-process *Log to the Appender interface.
type LocalAppender struct {
	Log *Log
}

func (a LocalAppender) Append(_ context.Context, e Event) (Event, error) {
	return a.Log.Append(e), nil
}
