package game

import "github.com/koragame/kora/kora"

// LegalPlays returns the subset of hand that may be played given the suit
// that led the current trick. A nil lead (first play of a trick) makes every
// card legal. Otherwise the player must follow suit if able; a hand void in
// the lead suit may discard anything. The result is non-empty for any
// non-empty hand.
func LegalPlays(hand kora.Hand, lead *kora.Suit) kora.Hand {
	if lead == nil {
		return hand.Clone()
	}
	if follow := hand.OfSuit(*lead); len(follow) > 0 {
		return follow
	}
	return hand.Clone()
}

// Play is one card committed by one seat within a trick.
type Play struct {
	Seat Seat      `json:"seat"`
	Card kora.Card `json:"card"`
}

// ResolveTrick determines the winning play of a completed trick. A play of
// the lead suit beats an off-suit play regardless of rank; between two plays
// of the lead suit the higher rank wins. The lead play by definition matches
// lead, so exactly one play always qualifies.
func ResolveTrick(a, b Play, lead kora.Suit) Play {
	if b.Card.Beats(a.Card, lead) {
		return b
	}
	return a
}

// AutoWinKind classifies an immediate win decided right after dealing.
type AutoWinKind int

const (
	// AutoWinWeakHand: the hand's ranks sum to strictly less than 21.
	AutoWinWeakHand AutoWinKind = iota + 1

	// AutoWinTripleSeven: the hand holds three or more sevens.
	AutoWinTripleSeven
)

func (k AutoWinKind) String() string {
	switch k {
	case AutoWinWeakHand:
		return "weak_hand"
	case AutoWinTripleSeven:
		return "triple_seven"
	default:
		return "none"
	}
}

// autoWinSumLimit is exclusive: a hand summing to exactly 21 does not qualify.
const autoWinSumLimit = 21

// CheckAutoWin evaluates a freshly dealt hand for an immediate win. The
// weak-hand rule takes precedence when a hand qualifies under both.
func CheckAutoWin(hand kora.Hand) (AutoWinKind, bool) {
	if hand.RankSum() < autoWinSumLimit {
		return AutoWinWeakHand, true
	}
	if hand.CountRank(7) >= 3 {
		return AutoWinTripleSeven, true
	}
	return 0, false
}

// Multiplier computes the kora payout multiplier from the completed five-trick
// history. Only the tail matters: tricks 3, 4 and 5 all won with a rank-3
// card by the same seat pay x8; tricks 4 and 5 by the same seat pay x4; trick
// 5 alone pays x2; anything else pays x1. A streak broken by the other seat
// winning with a 3 does not count.
func Multiplier(history []TurnResult) int {
	if len(history) < TricksPerGame {
		return 1
	}
	last := history[TricksPerGame-1]
	if !last.WinningCard.IsKora() {
		return 1
	}
	streak := 1
	for i := TricksPerGame - 2; i >= TricksPerGame-3; i-- {
		r := history[i]
		if !r.WinningCard.IsKora() || r.WinnerSeat != last.WinnerSeat {
			break
		}
		streak++
	}
	switch streak {
	case 3:
		return 8
	case 2:
		return 4
	default:
		return 2
	}
}
