package sync

import (
	"context"
	rand "math/rand/v2"
	"testing"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koragame/kora/internal/game"
	"github.com/koragame/kora/internal/randutil"
	"github.com/koragame/kora/kora"
)

// playedOutGame drives a full game through an authority and returns the
// authority plus its log. Seeds are scanned until the deal avoids an
// auto-win so the log always carries five full tricks.
func playedOutGame(t *testing.T) (*Authority, *Log) {
	t.Helper()
	ctx := context.Background()
	for seed := int64(1); seed < 100; seed++ {
		log := NewLog("test-game")
		session := game.NewSession(game.Config{FirstLead: game.SeatA, Bet: 100})
		require.NoError(t, session.Join(game.SeatA, game.ControlHuman))
		require.NoError(t, session.Join(game.SeatB, game.ControlComputer))

		authority := NewAuthority("test-game", session, LocalAppender{Log: log}, quartz.NewMock(t), zerolog.Nop())
		require.NoError(t, authority.StartGame(ctx, randutil.New(seed)))
		if session.Phase != game.PhasePlaying {
			continue
		}

		for session.Phase == game.PhasePlaying {
			seat := session.CurrentSeat()
			legal := session.LegalFor(seat)
			require.NotEmpty(t, legal)
			require.NoError(t, authority.PlayLocal(ctx, seat, legal[0]))
		}
		// game_started + 10 plays + game_ended
		require.Equal(t, 12, log.Len())
		return authority, log
	}
	t.Fatal("no seed produced a playable deal")
	return nil, nil
}

func TestLogAppendStampsSequence(t *testing.T) {
	log := NewLog("g1")
	e1 := log.Append(Event{ID: "a", Type: TypeGameStarted})
	e2 := log.Append(Event{ID: "b", Type: TypeCardPlayed})
	assert.Equal(t, uint64(1), e1.Seq)
	assert.Equal(t, uint64(2), e2.Seq)
	assert.Equal(t, "g1", e2.GameID)

	events, version := log.After(0)
	assert.Len(t, events, 2)
	assert.Equal(t, uint64(2), version)

	events, version = log.After(1)
	require.Len(t, events, 1)
	assert.Equal(t, "b", events[0].ID)
	assert.Equal(t, uint64(2), version)

	events, _ = log.After(2)
	assert.Empty(t, events)
}

func TestFollowerConvergesInOrder(t *testing.T) {
	authority, log := playedOutGame(t)

	follower := NewFollower("test-game", zerolog.Nop())
	events, version := log.After(0)
	require.NoError(t, follower.Ingest(context.Background(), events))

	assert.Equal(t, version, follower.Watermark())
	require.NotNil(t, follower.Session())
	assert.Equal(t, authority.Session().Snapshot(), follower.Session().Snapshot(),
		"replaying the full log reproduces the authority state")
}

func TestFollowerIdempotency(t *testing.T) {
	authority, log := playedOutGame(t)
	ctx := context.Background()
	events, _ := log.After(0)

	follower := NewFollower("test-game", zerolog.Nop())
	require.NoError(t, follower.Ingest(ctx, events))
	once := follower.Session().Snapshot()

	// The same batch again, and then each event individually.
	require.NoError(t, follower.Ingest(ctx, events))
	for _, e := range events {
		require.NoError(t, follower.Ingest(ctx, []Event{e}))
	}
	assert.Equal(t, once, follower.Session().Snapshot())
	assert.Equal(t, authority.Session().Snapshot(), follower.Session().Snapshot())
}

func TestFollowerBuffersOutOfOrderDelivery(t *testing.T) {
	authority, log := playedOutGame(t)
	ctx := context.Background()
	events, _ := log.After(0)

	// Deliver the log in several shuffled permutations, one event per
	// ingest call, so everything past the watermark has to be buffered.
	for trial := 0; trial < 20; trial++ {
		shuffled := append([]Event(nil), events...)
		rng := rand.New(rand.NewPCG(uint64(trial), 7))
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		follower := NewFollower("test-game", zerolog.Nop())
		for _, e := range shuffled {
			require.NoError(t, follower.Ingest(ctx, []Event{e}))
		}
		assert.Equal(t, authority.Session().Snapshot(), follower.Session().Snapshot(), "trial %d", trial)
	}
}

func TestFollowerPairwiseSwapConverges(t *testing.T) {
	authority, log := playedOutGame(t)
	ctx := context.Background()
	events, _ := log.After(0)
	require.GreaterOrEqual(t, len(events), 2)

	// [e2, e1] in one batch must apply as [e1, e2].
	follower := NewFollower("test-game", zerolog.Nop())
	require.NoError(t, follower.Ingest(ctx, []Event{events[1], events[0]}))
	assert.Equal(t, uint64(2), follower.Watermark())

	require.NoError(t, follower.Ingest(ctx, events[2:]))
	assert.Equal(t, authority.Session().Snapshot(), follower.Session().Snapshot())
}

func TestAuthorityAcceptsValidProposal(t *testing.T) {
	ctx := context.Background()
	log := NewLog("prop-game")
	session := game.NewSession(game.Config{FirstLead: game.SeatA, Bet: 10})
	require.NoError(t, session.Join(game.SeatA, game.ControlHuman))
	require.NoError(t, session.Join(game.SeatB, game.ControlHuman))

	clock := quartz.NewMock(t)
	authority := NewAuthority("prop-game", session, LocalAppender{Log: log}, clock, zerolog.Nop())

	var rng *rand.Rand
	for seed := int64(1); ; seed++ {
		rng = randutil.New(seed)
		require.NoError(t, authority.StartGame(ctx, rng))
		if session.Phase == game.PhasePlaying {
			break
		}
		session = game.NewSession(game.Config{FirstLead: game.SeatA, Bet: 10})
		require.NoError(t, session.Join(game.SeatA, game.ControlHuman))
		require.NoError(t, session.Join(game.SeatB, game.ControlHuman))
		log = NewLog("prop-game")
		authority = NewAuthority("prop-game", session, LocalAppender{Log: log}, clock, zerolog.Nop())
	}

	seat := session.CurrentSeat()
	legal := session.LegalFor(seat)
	proposal, err := NewEvent("prop-game", seat, TypePlayProposed,
		PlayPayload{Seat: seat, Card: legal[0], Turn: session.Trick.Number}, clock.Now())
	require.NoError(t, err)
	log.Append(proposal)

	events, _ := log.After(authority.Watermark())
	require.NoError(t, authority.Ingest(ctx, events))

	// The proposal was validated and republished as an authoritative play.
	require.Len(t, session.History, 0)
	require.Len(t, session.Trick.Plays, 1)
	assert.Equal(t, legal[0], session.Trick.Plays[0].Card)

	all, _ := log.After(0)
	last := all[len(all)-1]
	assert.Equal(t, TypeCardPlayed, last.Type)

	// Re-ingesting the same tail must not double-apply the play.
	events, _ = log.After(1)
	require.NoError(t, authority.Ingest(ctx, events))
	assert.Len(t, session.Trick.Plays, 1)
}

func TestAuthorityIngestAdvancesPastOwnEvents(t *testing.T) {
	authority, log := playedOutGame(t)
	ctx := context.Background()

	events, version := log.After(0)
	require.NoError(t, authority.Ingest(ctx, events))
	assert.Equal(t, version, authority.Watermark(),
		"own emissions move the watermark so the polling window keeps shrinking")

	remaining, _ := log.After(authority.Watermark())
	assert.Empty(t, remaining)
}

func TestAuthorityDropsInvalidProposal(t *testing.T) {
	ctx := context.Background()
	authority, log := playedOutGame(t)
	before := log.Len()

	// The game is over; any play proposal is now out of phase.
	proposal, err := NewEvent("test-game", game.SeatA, TypePlayProposed,
		PlayPayload{Seat: game.SeatA, Card: kora.Card{Suit: kora.Heart, Rank: 3}, Turn: 1}, quartz.NewMock(t).Now())
	require.NoError(t, err)
	log.Append(proposal)

	events, _ := log.After(authority.Watermark())
	require.NoError(t, authority.Ingest(ctx, events))
	assert.Equal(t, before+1, log.Len(), "a rejected proposal publishes nothing")
}

func TestAuthorityDropsSeatMismatchedProposal(t *testing.T) {
	ctx := context.Background()
	log := NewLog("cheat-game")
	session := game.NewSession(game.Config{FirstLead: game.SeatA, Bet: 10})
	require.NoError(t, session.Join(game.SeatA, game.ControlHuman))
	require.NoError(t, session.Join(game.SeatB, game.ControlHuman))
	clock := quartz.NewMock(t)
	authority := NewAuthority("cheat-game", session, LocalAppender{Log: log}, clock, zerolog.Nop())
	require.NoError(t, authority.StartGame(ctx, randutil.New(1)))

	// Origin seat B claims a play for seat A.
	proposal, err := NewEvent("cheat-game", game.SeatB, TypePlayProposed,
		PlayPayload{Seat: game.SeatA, Card: kora.Card{Suit: kora.Heart, Rank: 9}, Turn: 1}, clock.Now())
	require.NoError(t, err)
	log.Append(proposal)

	before := log.Len()
	events, _ := log.After(authority.Watermark())
	require.NoError(t, authority.Ingest(ctx, events))
	assert.Equal(t, before, log.Len())
}

func TestRecentIDsEviction(t *testing.T) {
	r := newRecentIDs(3)
	r.Add("a")
	r.Add("b")
	r.Add("c")
	assert.True(t, r.Has("a"))

	r.Add("d")
	assert.False(t, r.Has("a"), "oldest id is evicted at the cap")
	assert.True(t, r.Has("b"))
	assert.True(t, r.Has("d"))

	r.Add("b") // re-adding an existing id does not evict
	assert.True(t, r.Has("c"))
}
