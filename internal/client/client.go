// Package client is the follower side of the wire: an HTTP client that polls
// the relay for log updates and appends proposal events, with exponential
// backoff on mutation failures. It implements sync.Source so it can drive a
// sync.Poller directly.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/koragame/kora/internal/game"
	"github.com/koragame/kora/internal/sync"
	"github.com/koragame/kora/kora"
)

const (
	defaultRequestTimeout = 10 * time.Second
	sendAttempts          = 5
	sendBaseDelay         = 100 * time.Millisecond
)

// Client talks to one relay server.
type Client struct {
	baseURL string
	httpc   *http.Client
	clock   quartz.Clock
	logger  *log.Logger
}

// New creates a client for the relay at baseURL (no trailing slash).
func New(baseURL string, clock quartz.Clock, logger *log.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		httpc:   &http.Client{Timeout: defaultRequestTimeout},
		clock:   clock,
		logger:  logger.WithPrefix("client"),
	}
}

// Fetch implements sync.Source: one polling query for events past the
// watermark.
func (c *Client) Fetch(ctx context.Context, gameID string, after uint64) ([]sync.Event, uint64, error) {
	url := fmt.Sprintf("%s/games/%s/events?after=%d", c.baseURL, gameID, after)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, 0, fmt.Errorf("client: poll %s: status %d", gameID, resp.StatusCode)
	}
	var updates struct {
		Events  []sync.Event `json:"events"`
		Version uint64       `json:"version"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&updates); err != nil {
		return nil, 0, err
	}
	return updates.Events, updates.Version, nil
}

// Send appends an event to the relay log, retrying transient failures with
// exponential backoff. The returned event carries the sequence number the
// log assigned.
func (c *Client) Send(ctx context.Context, e sync.Event) (sync.Event, error) {
	delay := sendBaseDelay
	var lastErr error
	for attempt := 1; attempt <= sendAttempts; attempt++ {
		stamped, err := c.sendOnce(ctx, e)
		if err == nil {
			return stamped, nil
		}
		lastErr = err
		c.logger.Warn("Send failed", "attempt", attempt, "error", err)
		if attempt == sendAttempts {
			break
		}
		timer := c.clock.NewTimer(delay, "send-retry")
		select {
		case <-ctx.Done():
			timer.Stop()
			return sync.Event{}, ctx.Err()
		case <-timer.C:
		}
		delay *= 2
	}
	return sync.Event{}, fmt.Errorf("client: send after %d attempts: %w", sendAttempts, lastErr)
}

func (c *Client) sendOnce(ctx context.Context, e sync.Event) (sync.Event, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return sync.Event{}, err
	}
	url := fmt.Sprintf("%s/games/%s/events", c.baseURL, e.GameID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return sync.Event{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpc.Do(req)
	if err != nil {
		return sync.Event{}, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusAccepted {
		return sync.Event{}, fmt.Errorf("client: send to %s: status %d", e.GameID, resp.StatusCode)
	}
	var stamped sync.Event
	if err := json.NewDecoder(resp.Body).Decode(&stamped); err != nil {
		return sync.Event{}, err
	}
	return stamped, nil
}

// ProposePlay wraps a play intent in a play_proposed event and sends it. The
// play becomes real only once the authority publishes the matching
// card_played, which the caller's poller will observe.
func (c *Client) ProposePlay(ctx context.Context, gameID string, seat game.Seat, card kora.Card, turn int) error {
	e, err := sync.NewEvent(gameID, seat, sync.TypePlayProposed,
		sync.PlayPayload{Seat: seat, Card: card, Turn: turn}, c.clock.Now())
	if err != nil {
		return err
	}
	_, err = c.Send(ctx, e)
	return err
}
