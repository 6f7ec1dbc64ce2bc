// Package game implements the Kora rules engine and the per-session state
// machine. All transitions are synchronous pure mutations over an owned
// Session value: a rejected action returns an error and leaves the session
// untouched, and the package holds no global state so any number of sessions
// can run side by side.
package game

import (
	rand "math/rand/v2"

	"github.com/google/uuid"

	"github.com/koragame/kora/kora"
)

// TricksPerGame is the number of tricks in a full session.
const TricksPerGame = 5

// Seat identifies one of the two players.
type Seat int8

const (
	SeatNone Seat = -1
	SeatA    Seat = 0
	SeatB    Seat = 1
)

func (s Seat) String() string {
	switch s {
	case SeatA:
		return "A"
	case SeatB:
		return "B"
	default:
		return "none"
	}
}

// Other returns the opposing seat.
func (s Seat) Other() Seat {
	return 1 - s
}

// Valid reports whether s names a real seat.
func (s Seat) Valid() bool {
	return s == SeatA || s == SeatB
}

// Control says who drives a seat's plays.
type Control uint8

const (
	ControlHuman Control = iota
	ControlComputer
)

// SeatState is one player's side of the session.
type SeatState struct {
	Occupied bool      `json:"occupied"`
	Control  Control   `json:"control"`
	Hand     kora.Hand `json:"hand"`
	Balance  int       `json:"balance"`
}

// Phase is the lifecycle stage of a session.
type Phase uint8

const (
	PhaseWaiting Phase = iota
	PhasePlaying
	PhaseEnded
)

func (p Phase) String() string {
	switch p {
	case PhaseWaiting:
		return "waiting"
	case PhasePlaying:
		return "playing"
	case PhaseEnded:
		return "ended"
	default:
		return "?"
	}
}

// VictoryType classifies how a session ended.
type VictoryType uint8

const (
	VictoryNone VictoryType = iota
	VictoryNormal
	VictorySimpleKora
	VictoryDoubleKora
	VictoryTripleKora
	VictoryWeakHand
	VictoryTripleSeven
)

func (v VictoryType) String() string {
	switch v {
	case VictoryNormal:
		return "normal"
	case VictorySimpleKora:
		return "simple_kora"
	case VictoryDoubleKora:
		return "double_kora"
	case VictoryTripleKora:
		return "triple_kora"
	case VictoryWeakHand:
		return "weak_hand"
	case VictoryTripleSeven:
		return "triple_seven"
	default:
		return "none"
	}
}

// victoryForMultiplier maps a kora multiplier to the played-out victory type.
func victoryForMultiplier(mult int) VictoryType {
	switch mult {
	case 8:
		return VictoryTripleKora
	case 4:
		return VictoryDoubleKora
	case 2:
		return VictorySimpleKora
	default:
		return VictoryNormal
	}
}

func victoryForAutoWin(kind AutoWinKind) VictoryType {
	if kind == AutoWinTripleSeven {
		return VictoryTripleSeven
	}
	return VictoryWeakHand
}

// TiePolicy decides a double auto-win, where both freshly dealt hands qualify.
type TiePolicy uint8

const (
	// TieLowerSum awards the win to the hand with the lower rank sum; on an
	// exact tie the first-lead seat wins.
	TieLowerSum TiePolicy = iota

	// TieRedeal voids the deal. The session returns to the waiting phase
	// with NeedsRedeal set and the owner is expected to start it again.
	TieRedeal
)

// TurnResult records one resolved trick. The ordered sequence across the five
// tricks is the authoritative history and the sole input to victory
// classification.
type TurnResult struct {
	Turn        int       `json:"turn"`
	WinnerSeat  Seat      `json:"winnerSeat"`
	WinningCard kora.Card `json:"winningCard"`
	LoserSeat   Seat      `json:"loserSeat"`
	LosingCard  kora.Card `json:"losingCard"`
}

// Trick is the exchange currently in progress.
type Trick struct {
	Number int        `json:"number"`
	Lead   *kora.Suit `json:"lead,omitempty"`
	Plays  []Play     `json:"plays"`
}

// Config carries the session parameters that are setup data rather than
// rules: who leads trick 1, the stake, and the double auto-win policy.
type Config struct {
	FirstLead Seat
	Bet       int
	TiePolicy TiePolicy
}

// Session is the aggregate root for one game. It is not safe for concurrent
// use; the owning goroutine serialises access.
type Session struct {
	Phase       Phase
	Seats       [2]SeatState
	Trick       Trick
	History     []TurnResult
	HandOwner   Seat
	FirstLead   Seat
	Bet         int
	TiePolicy   TiePolicy
	Winner      Seat
	Victory     VictoryType
	Multiplier  int
	NeedsRedeal bool

	cardIDs map[kora.Card]uuid.UUID
}

// NewSession creates a session in the waiting phase with both seats empty.
func NewSession(cfg Config) *Session {
	lead := cfg.FirstLead
	if !lead.Valid() {
		lead = SeatA
	}
	return &Session{
		Phase:     PhaseWaiting,
		FirstLead: lead,
		HandOwner: lead,
		Bet:       cfg.Bet,
		TiePolicy: cfg.TiePolicy,
		Winner:    SeatNone,
	}
}

// Join fills a seat. Only legal while waiting.
func (s *Session) Join(seat Seat, ctrl Control) error {
	if s.Phase != PhaseWaiting {
		return ErrInvalidPhase
	}
	if !seat.Valid() {
		return ErrNotYourTurn
	}
	if s.Seats[seat].Occupied {
		return ErrSeatOccupied
	}
	s.Seats[seat] = SeatState{Occupied: true, Control: ctrl, Balance: s.Seats[seat].Balance}
	return nil
}

// Start builds and shuffles a deck, deals both hands and enters the playing
// phase (or ends immediately on an auto-win). Requires both seats occupied.
func (s *Session) Start(rng *rand.Rand) error {
	if s.Phase != PhaseWaiting || !s.Seats[SeatA].Occupied || !s.Seats[SeatB].Occupied {
		return ErrInvalidPhase
	}
	deck := kora.NewDeck(rng)
	ids := make(map[kora.Card]uuid.UUID, kora.DeckSize)
	for _, c := range deck.Cards() {
		if id, ok := deck.CardID(c); ok {
			ids[c] = id
		}
	}
	a, b := deck.Deal()
	s.cardIDs = ids
	return s.StartDealt(a, b)
}

// StartDealt enters the playing phase with pre-dealt hands. This is the
// deterministic half of Start and the entry point for log replay: given the
// same two hands every client reaches the same state.
func (s *Session) StartDealt(a, b kora.Hand) error {
	if s.Phase != PhaseWaiting || !s.Seats[SeatA].Occupied || !s.Seats[SeatB].Occupied {
		return ErrInvalidPhase
	}
	s.Seats[SeatA].Hand = a.Clone()
	s.Seats[SeatB].Hand = b.Clone()
	s.NeedsRedeal = false
	s.HandOwner = s.FirstLead
	s.History = nil
	s.Trick = Trick{Number: 1}
	s.Phase = PhasePlaying

	kindA, autoA := CheckAutoWin(a)
	kindB, autoB := CheckAutoWin(b)
	switch {
	case autoA && autoB:
		s.resolveDoubleAutoWin(kindA, kindB)
	case autoA:
		s.end(SeatA, victoryForAutoWin(kindA), 1)
	case autoB:
		s.end(SeatB, victoryForAutoWin(kindB), 1)
	}
	return nil
}

// resolveDoubleAutoWin applies the configured tie policy when both hands
// qualify for an auto-win on the same deal.
func (s *Session) resolveDoubleAutoWin(kindA, kindB AutoWinKind) {
	if s.TiePolicy == TieRedeal {
		s.Seats[SeatA].Hand = nil
		s.Seats[SeatB].Hand = nil
		s.Trick = Trick{}
		s.Phase = PhaseWaiting
		s.NeedsRedeal = true
		return
	}
	winner := s.FirstLead
	sumA := s.Seats[SeatA].Hand.RankSum()
	sumB := s.Seats[SeatB].Hand.RankSum()
	if sumA < sumB {
		winner = SeatA
	} else if sumB < sumA {
		winner = SeatB
	}
	kind := kindA
	if winner == SeatB {
		kind = kindB
	}
	s.end(winner, victoryForAutoWin(kind), 1)
}

// CurrentSeat returns the seat expected to play next, or SeatNone outside the
// playing phase.
func (s *Session) CurrentSeat() Seat {
	if s.Phase != PhasePlaying {
		return SeatNone
	}
	if len(s.Trick.Plays) == 0 {
		return s.HandOwner
	}
	return s.Trick.Plays[0].Seat.Other()
}

// LegalFor returns the cards the seat may currently play.
func (s *Session) LegalFor(seat Seat) kora.Hand {
	if !seat.Valid() {
		return nil
	}
	return LegalPlays(s.Seats[seat].Hand, s.Trick.Lead)
}

// PlayCard applies one play by one seat. Violations are rejected without any
// state change: wrong phase, wrong seat, or a card outside the legal set.
// Completing a trick resolves it, hands the lead to the winner and either
// opens the next trick or ends the session after trick five.
func (s *Session) PlayCard(seat Seat, card kora.Card) error {
	if s.Phase != PhasePlaying {
		return ErrInvalidPhase
	}
	if !seat.Valid() || seat != s.CurrentSeat() {
		return ErrNotYourTurn
	}
	legal := s.LegalFor(seat)
	if len(legal) == 0 {
		return ErrNoLegalPlays
	}
	if !legal.Contains(card) {
		return ErrIllegalPlay
	}

	rest, _ := s.Seats[seat].Hand.Remove(card)
	s.Seats[seat].Hand = rest
	if s.Trick.Lead == nil {
		lead := card.Suit
		s.Trick.Lead = &lead
	}
	s.Trick.Plays = append(s.Trick.Plays, Play{Seat: seat, Card: card})
	if len(s.Trick.Plays) < 2 {
		return nil
	}

	winner := ResolveTrick(s.Trick.Plays[0], s.Trick.Plays[1], *s.Trick.Lead)
	loser := s.Trick.Plays[0]
	if loser.Seat == winner.Seat {
		loser = s.Trick.Plays[1]
	}
	s.History = append(s.History, TurnResult{
		Turn:        s.Trick.Number,
		WinnerSeat:  winner.Seat,
		WinningCard: winner.Card,
		LoserSeat:   loser.Seat,
		LosingCard:  loser.Card,
	})
	s.HandOwner = winner.Seat

	if s.Trick.Number == TricksPerGame {
		mult := Multiplier(s.History)
		s.end(winner.Seat, victoryForMultiplier(mult), mult)
		return nil
	}
	s.Trick = Trick{Number: s.Trick.Number + 1}
	return nil
}

// end settles the stake and freezes the session. The winner of the final
// trick takes bet x multiplier from the loser; auto-wins settle at x1.
func (s *Session) end(winner Seat, victory VictoryType, mult int) {
	payout := s.Bet * mult
	s.Seats[winner].Balance += payout
	s.Seats[winner.Other()].Balance -= payout
	s.Winner = winner
	s.Victory = victory
	s.Multiplier = mult
	s.Trick = Trick{}
	s.Phase = PhaseEnded
}

// CardID returns the session-scoped UI id for a dealt card, when known. Only
// the side that built the deck holds ids; replayed sessions have none.
func (s *Session) CardID(c kora.Card) (uuid.UUID, bool) {
	id, ok := s.cardIDs[c]
	return id, ok
}
