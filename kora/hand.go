package kora

// HandSize is the number of cards dealt to each seat.
const HandSize = 5

// Hand is an ordered collection of up to five cards belonging to one seat.
type Hand []Card

// Contains reports whether the hand holds the exact card.
func (h Hand) Contains(c Card) bool {
	for _, hc := range h {
		if hc == c {
			return true
		}
	}
	return false
}

// Remove returns a copy of the hand without the first occurrence of c, and
// whether c was present. The receiver is not modified.
func (h Hand) Remove(c Card) (Hand, bool) {
	for i, hc := range h {
		if hc == c {
			out := make(Hand, 0, len(h)-1)
			out = append(out, h[:i]...)
			out = append(out, h[i+1:]...)
			return out, true
		}
	}
	return h, false
}

// OfSuit returns the cards in the hand matching the given suit.
func (h Hand) OfSuit(s Suit) Hand {
	var out Hand
	for _, c := range h {
		if c.Suit == s {
			out = append(out, c)
		}
	}
	return out
}

// RankSum is the sum of the face values of all cards in the hand.
func (h Hand) RankSum() int {
	sum := 0
	for _, c := range h {
		sum += int(c.Rank)
	}
	return sum
}

// CountRank counts the cards of the given rank.
func (h Hand) CountRank(r Rank) int {
	n := 0
	for _, c := range h {
		if c.Rank == r {
			n++
		}
	}
	return n
}

// Clone returns an independent copy of the hand.
func (h Hand) Clone() Hand {
	out := make(Hand, len(h))
	copy(out, h)
	return out
}
