package main

import (
	"fmt"
	"os"
	"time"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"

	"github.com/koragame/kora/internal/bot"
	"github.com/koragame/kora/internal/game"
	"github.com/koragame/kora/internal/randutil"
)

type CLI struct {
	Games   int    `default:"10000" help:"Number of games to simulate"`
	Bet     int    `default:"100" help:"Stake per game"`
	SeatA   string `default:"hard" help:"Seat A difficulty: easy, medium, hard"`
	SeatB   string `default:"medium" help:"Seat B difficulty: easy, medium, hard"`
	Seed    int64  `default:"0" help:"RNG seed (0 for time-based)"`
	Verbose bool   `short:"v" help:"Verbose logging"`
}

type tally struct {
	games       int
	wins        [2]int
	autoWins    int
	victories   map[string]int
	multipliers map[int]int
	balance     [2]int
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("kora-sim"),
		kong.Description("Simulate bot-vs-bot Kora games and report outcome statistics"),
		kong.UsageOnError(),
	)
	ctx.FatalIfErrorf(run(&cli))
}

func run(cli *CLI) error {
	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: false})
	if cli.Verbose {
		logger.SetLevel(log.DebugLevel)
	}

	diffA, err := bot.ParseDifficulty(cli.SeatA)
	if err != nil {
		return err
	}
	diffB, err := bot.ParseDifficulty(cli.SeatB)
	if err != nil {
		return err
	}
	seed := cli.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	logger.Info("Simulating", "games", cli.Games, "seatA", diffA, "seatB", diffB, "seed", seed)

	t := tally{
		victories:   make(map[string]int),
		multipliers: make(map[int]int),
	}
	diffs := [2]bot.Difficulty{diffA, diffB}

	for i := 0; i < cli.Games; i++ {
		rng := randutil.New(seed + int64(i))
		session := game.NewSession(game.Config{
			FirstLead: game.Seat(i % 2),
			Bet:       cli.Bet,
			TiePolicy: game.TieLowerSum,
		})
		if err := session.Join(game.SeatA, game.ControlComputer); err != nil {
			return err
		}
		if err := session.Join(game.SeatB, game.ControlComputer); err != nil {
			return err
		}
		if err := session.Start(rng); err != nil {
			return err
		}

		for session.Phase == game.PhasePlaying {
			seat := session.CurrentSeat()
			hand := session.Seats[seat].Hand
			legal := session.LegalFor(seat)
			card, err := bot.SelectCard(rng, hand, legal, session.Trick.Number, diffs[seat], session.History)
			if err != nil {
				return fmt.Errorf("game %d: %w", i, err)
			}
			if err := session.PlayCard(seat, card); err != nil {
				return fmt.Errorf("game %d: play %s: %w", i, card, err)
			}
		}

		t.games++
		t.wins[session.Winner]++
		t.victories[session.Victory.String()]++
		t.multipliers[session.Multiplier]++
		if session.Victory == game.VictoryWeakHand || session.Victory == game.VictoryTripleSeven {
			t.autoWins++
		}
		t.balance[game.SeatA] += session.Seats[game.SeatA].Balance
		t.balance[game.SeatB] += session.Seats[game.SeatB].Balance

		logger.Debug("Game finished",
			"game", i,
			"winner", session.Winner,
			"victory", session.Victory,
			"multiplier", session.Multiplier)
	}

	report(&t, diffs)
	return nil
}

func report(t *tally, diffs [2]bot.Difficulty) {
	fmt.Printf("\n=== Results over %d games ===\n\n", t.games)
	for seat := game.SeatA; seat <= game.SeatB; seat++ {
		fmt.Printf("Seat %s (%s): %d wins (%.1f%%), net %+d\n",
			seat, diffs[seat], t.wins[seat],
			100*float64(t.wins[seat])/float64(t.games),
			t.balance[seat])
	}
	fmt.Printf("\nAuto-wins: %d (%.1f%%)\n", t.autoWins, 100*float64(t.autoWins)/float64(t.games))
	fmt.Println("\nVictory types:")
	for _, v := range []string{"normal", "simple_kora", "double_kora", "triple_kora", "weak_hand", "triple_seven"} {
		if n := t.victories[v]; n > 0 {
			fmt.Printf("  %-13s %6d (%.2f%%)\n", v, n, 100*float64(n)/float64(t.games))
		}
	}
	fmt.Println("\nMultipliers:")
	for _, m := range []int{1, 2, 4, 8} {
		if n := t.multipliers[m]; n > 0 {
			fmt.Printf("  x%-2d %6d (%.2f%%)\n", m, n, 100*float64(n)/float64(t.games))
		}
	}
}
