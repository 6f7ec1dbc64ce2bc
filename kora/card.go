// Package kora provides the card primitives for the Kora/Garame game: the
// 31-card deck, suits, ranks and hands.
package kora

import "fmt"

// Suit identifies one of the four card suits.
type Suit uint8

const (
	Spade Suit = iota
	Heart
	Diamond
	Club
)

// String returns the lowercase wire name of the suit.
func (s Suit) String() string {
	switch s {
	case Spade:
		return "spade"
	case Heart:
		return "heart"
	case Diamond:
		return "diamond"
	case Club:
		return "club"
	default:
		return "?"
	}
}

// Rank is the face value of a card. The deck uses ranks 3 through 10; ranks
// are totally ordered by their numeric value.
type Rank uint8

const (
	MinRank Rank = 3
	MaxRank Rank = 10

	// KoraRank is the rank that earns payout multipliers when it wins the
	// closing tricks.
	KoraRank Rank = 3
)

// Card is an immutable (suit, rank) value. Two cards are the same card iff
// their fields are equal; no hidden identity exists at the rules level.
type Card struct {
	Suit Suit `json:"suit"`
	Rank Rank `json:"rank"`
}

func (c Card) String() string {
	return fmt.Sprintf("%d%c", c.Rank, c.Suit.String()[0])
}

// IsKora reports whether the card is a rank-3 card.
func (c Card) IsKora() bool {
	return c.Rank == KoraRank
}

// Beats reports whether c wins over other given the suit that led the trick.
// A card of the lead suit always beats an off-suit card; between two cards of
// the same suit the higher rank wins. An off-suit card never beats a lead-suit
// card regardless of rank.
func (c Card) Beats(other Card, lead Suit) bool {
	if c.Suit == other.Suit {
		return c.Rank > other.Rank
	}
	return c.Suit == lead
}
