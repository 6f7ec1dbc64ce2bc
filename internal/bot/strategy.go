// Package bot implements the computer seat's card selection. Strategies pick
// from the legal set only; they never see more than a human player would.
package bot

import (
	"errors"
	"fmt"
	rand "math/rand/v2"

	"github.com/koragame/kora/internal/game"
	"github.com/koragame/kora/kora"
)

// ErrNoLegalPlays is returned when the legal set is empty, which a correct
// caller never produces for a non-empty hand. A strategy must not fabricate a
// card in that case.
var ErrNoLegalPlays = errors.New("bot: no legal plays to choose from")

// Difficulty selects a strategy.
type Difficulty uint8

const (
	Easy Difficulty = iota
	Medium
	Hard
)

func (d Difficulty) String() string {
	switch d {
	case Easy:
		return "easy"
	case Medium:
		return "medium"
	case Hard:
		return "hard"
	default:
		return "?"
	}
}

// ParseDifficulty maps a config string to a Difficulty.
func ParseDifficulty(s string) (Difficulty, error) {
	switch s {
	case "easy":
		return Easy, nil
	case "medium":
		return Medium, nil
	case "hard":
		return Hard, nil
	default:
		return 0, fmt.Errorf("bot: unknown difficulty %q", s)
	}
}

// SelectCard picks the card to play from the legal set.
//
// Easy plays uniformly at random. Medium preserves the hand early (lowest
// card through trick 3) and pushes to win late (highest card on tricks 4-5).
// Hard additionally manages its threes: it holds them back as long as
// possible, leads with its best non-three cards from trick 3 on, and forces a
// three out on trick 5 when it has one, because a three that wins the final
// trick multiplies the payout.
func SelectCard(rng *rand.Rand, hand, legal kora.Hand, trickNumber int, d Difficulty, history []game.TurnResult) (kora.Card, error) {
	if len(legal) == 0 {
		return kora.Card{}, ErrNoLegalPlays
	}
	switch d {
	case Easy:
		return legal[rng.IntN(len(legal))], nil
	case Medium:
		if trickNumber <= 3 {
			return lowest(legal), nil
		}
		return highest(legal), nil
	case Hard:
		return selectHard(legal, trickNumber), nil
	default:
		return kora.Card{}, fmt.Errorf("bot: unknown difficulty %d", d)
	}
}

// selectHard implements the three-hoarding heuristic. The ordering matters:
// on trick 5 a legal three beats any other choice, on tricks 3-4 the best
// non-three goes first and threes stay in reserve, and before that the
// cheapest non-three keeps both the highs and the threes alive.
func selectHard(legal kora.Hand, trickNumber int) kora.Card {
	threes, others := splitThrees(legal)
	switch {
	case trickNumber >= game.TricksPerGame:
		if len(threes) > 0 {
			return threes[0]
		}
		return highest(legal)
	case trickNumber >= 3:
		if len(others) > 0 {
			return highest(others)
		}
		return lowest(legal)
	default:
		if len(others) > 0 {
			return lowest(others)
		}
		return lowest(legal)
	}
}

func splitThrees(cards kora.Hand) (threes, others kora.Hand) {
	for _, c := range cards {
		if c.IsKora() {
			threes = append(threes, c)
		} else {
			others = append(others, c)
		}
	}
	return threes, others
}

func lowest(cards kora.Hand) kora.Card {
	best := cards[0]
	for _, c := range cards[1:] {
		if c.Rank < best.Rank {
			best = c
		}
	}
	return best
}

func highest(cards kora.Hand) kora.Card {
	best := cards[0]
	for _, c := range cards[1:] {
		if c.Rank > best.Rank {
			best = c
		}
	}
	return best
}
