package kora

import (
	rand "math/rand/v2"

	"github.com/google/uuid"
)

// DeckSize is the number of cards in a Kora deck: four suits crossed with
// ranks 3..10, minus the excluded spade-10.
const DeckSize = 31

// excluded is the single card missing from every deck.
var excluded = Card{Suit: Spade, Rank: 10}

// Deck is the 31-card set owned by a session during dealing. It is consumed
// by Deal and holds no draw pile afterwards. Each deck attaches a
// session-scoped opaque id to every card for UI tracking; the ids carry no
// meaning at the rules level.
type Deck struct {
	cards []Card
	ids   map[Card]uuid.UUID
	rng   *rand.Rand
}

// NewDeck builds a full shuffled deck using the supplied random source.
func NewDeck(rng *rand.Rand) *Deck {
	d := &Deck{
		cards: make([]Card, 0, DeckSize),
		ids:   make(map[Card]uuid.UUID, DeckSize),
		rng:   rng,
	}
	for suit := Spade; suit <= Club; suit++ {
		for rank := MinRank; rank <= MaxRank; rank++ {
			c := Card{Suit: suit, Rank: rank}
			if c == excluded {
				continue
			}
			d.cards = append(d.cards, c)
			d.ids[c] = uuid.New()
		}
	}
	d.Shuffle()
	return d
}

// Shuffle applies a uniform Fisher-Yates permutation to the deck.
func (d *Deck) Shuffle() {
	for i := len(d.cards) - 1; i > 0; i-- {
		j := d.rng.IntN(i + 1)
		d.cards[i], d.cards[j] = d.cards[j], d.cards[i]
	}
}

// Deal partitions the deck into two five-card hands: the first five cards to
// seat A, the next five to seat B. Dealing is deterministic given the deck
// order; all randomness lives in Shuffle.
func (d *Deck) Deal() (Hand, Hand) {
	a := make(Hand, HandSize)
	b := make(Hand, HandSize)
	copy(a, d.cards[:HandSize])
	copy(b, d.cards[HandSize:2*HandSize])
	d.cards = nil
	return a, b
}

// CardID returns the session-scoped id attached to the card at build time.
func (d *Deck) CardID(c Card) (uuid.UUID, bool) {
	id, ok := d.ids[c]
	return id, ok
}

// Cards returns the remaining undealt cards, in order.
func (d *Deck) Cards() []Card {
	return d.cards
}
