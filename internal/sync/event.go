// Package sync implements the replication protocol between the two clients
// of a game: an append-only per-game event log, an authority role that is the
// only side allowed to execute rule-engine transitions, and a follower role
// that converges on the authority's state by replaying the log through the
// identical game code. Delivery is polling-based; there is no persistent
// connection between the peers.
package sync

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/koragame/kora/internal/game"
	"github.com/koragame/kora/kora"
)

// Type discriminates event payloads.
type Type string

const (
	// TypeGameStarted carries the dealt hands and session parameters. It is
	// the first event of every game and the only one a follower needs to
	// construct its replica session.
	TypeGameStarted Type = "game_started"

	// TypeCardPlayed is an authority-accepted play. Followers replay it
	// through Session.PlayCard.
	TypeCardPlayed Type = "card_played"

	// TypePlayProposed is a follower-originated play intent. It carries no
	// authority: it only becomes real once the authority validates it and
	// publishes the matching TypeCardPlayed.
	TypePlayProposed Type = "play_proposed"

	// TypeGameEnded summarises the outcome for thin consumers and doubles
	// as a divergence checkpoint for followers.
	TypeGameEnded Type = "game_ended"
)

// Event is the wire unit of the protocol. ID is globally unique; Seq is the
// per-game position assigned by the log on append and is what followers
// watermark against.
type Event struct {
	ID         string          `json:"id"`
	GameID     string          `json:"gameId"`
	Seq        uint64          `json:"seq"`
	OriginSeat game.Seat       `json:"originSeat"`
	Type       Type            `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	Timestamp  int64           `json:"timestamp"`
}

// NewEvent builds an unsequenced event with a fresh id. Seq stays zero until
// the log stamps it.
func NewEvent(gameID string, origin game.Seat, t Type, payload any, now time.Time) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("sync: marshal %s payload: %w", t, err)
	}
	return Event{
		ID:         uuid.NewString(),
		GameID:     gameID,
		OriginSeat: origin,
		Type:       t,
		Payload:    raw,
		Timestamp:  now.UnixMilli(),
	}, nil
}

// GameStartedPayload is everything a follower needs to build its replica:
// both hands plus the setup parameters that are data rather than rules.
type GameStartedPayload struct {
	HandA     kora.Hand       `json:"handA"`
	HandB     kora.Hand       `json:"handB"`
	Controls  [2]game.Control `json:"controls"`
	FirstLead game.Seat       `json:"firstLead"`
	Bet       int             `json:"bet"`
}

// PlayPayload is shared by TypeCardPlayed and TypePlayProposed.
type PlayPayload struct {
	Seat game.Seat `json:"seat"`
	Card kora.Card `json:"card"`
	Turn int       `json:"turn"`
}

// GameEndedPayload is the outcome summary appended after the final state
// transition.
type GameEndedPayload struct {
	Winner     game.Seat `json:"winner"`
	Victory    string    `json:"victory"`
	Multiplier int       `json:"multiplier"`
	Payout     int       `json:"payout"`
}

func unmarshalPayload(e Event, dst any) error {
	if err := json.Unmarshal(e.Payload, dst); err != nil {
		return fmt.Errorf("sync: decode %s payload: %w", e.Type, err)
	}
	return nil
}
