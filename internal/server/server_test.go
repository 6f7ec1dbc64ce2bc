package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koragame/kora/internal/game"
	"github.com/koragame/kora/internal/sync"
)

// startedRoom builds and deals a room, scanning seeds until the deal avoids
// an auto-win so tests get a live game.
func startedRoom(t *testing.T) *Room {
	t.Helper()
	for seed := int64(1); seed < 100; seed++ {
		cfg := RoomConfig{
			Name:       "main",
			Bet:        100,
			Difficulty: "medium",
			FirstLead:  "A",
			TiePolicy:  "lower_sum",
			ThinkMs:    1,
			Seed:       seed,
		}
		room, err := NewRoom(cfg, quartz.NewMock(t), zerolog.Nop())
		require.NoError(t, err)
		require.NoError(t, room.Start(context.Background()))
		if room.Snapshot().Phase == game.PhasePlaying.String() {
			return room
		}
	}
	t.Fatal("no seed produced a playable deal")
	return nil
}

func newTestServer(t *testing.T, room *Room) *httptest.Server {
	t.Helper()
	rooms := NewRoomManager(zerolog.Nop())
	if room != nil {
		rooms.Register(room)
	}
	srv := NewServer("localhost:0", rooms, charmlog.New(io.Discard))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func getUpdates(t *testing.T, ts *httptest.Server, path string) UpdatesResponse {
	t.Helper()
	resp, err := http.Get(ts.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out UpdatesResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t, nil)
	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGetUpdatesUnknownGame(t *testing.T) {
	ts := newTestServer(t, nil)
	resp, err := http.Get(ts.URL + "/games/nope/events")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetUpdatesWithWatermark(t *testing.T) {
	room := startedRoom(t)
	ts := newTestServer(t, room)

	full := getUpdates(t, ts, "/games/main/events")
	require.NotEmpty(t, full.Events)
	assert.Equal(t, sync.TypeGameStarted, full.Events[0].Type)
	assert.Equal(t, full.Version, full.Events[len(full.Events)-1].Seq)

	// Polling from the current version yields nothing new.
	caught := getUpdates(t, ts, "/games/main/events?after="+strconv.FormatUint(full.Version, 10))
	assert.Empty(t, caught.Events)
	assert.Equal(t, full.Version, caught.Version)
}

func TestGetUpdatesBadAfterParameter(t *testing.T) {
	ts := newTestServer(t, startedRoom(t))
	resp, err := http.Get(ts.URL + "/games/main/events?after=banana")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPostProposalBecomesCardPlayed(t *testing.T) {
	room := startedRoom(t)
	ts := newTestServer(t, room)

	// Seat A leads trick 1, so any card in its hand is legal.
	state := room.Snapshot()
	require.Equal(t, game.SeatA, state.Current)
	card := state.Seats[game.SeatA].Hand[0]

	proposal, err := sync.NewEvent("main", game.SeatA, sync.TypePlayProposed,
		sync.PlayPayload{Seat: game.SeatA, Card: card, Turn: 1}, time.Now())
	require.NoError(t, err)
	body, err := json.Marshal(proposal)
	require.NoError(t, err)

	resp, err := http.Post(ts.URL+"/games/main/events", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var stamped sync.Event
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stamped))
	assert.Equal(t, proposal.ID, stamped.ID)
	assert.NotZero(t, stamped.Seq)

	// The append handler nudged the authority, so the accepted play is
	// already in the log behind the proposal.
	updates := getUpdates(t, ts, "/games/main/events?after="+strconv.FormatUint(stamped.Seq, 10))
	require.NotEmpty(t, updates.Events)
	assert.Equal(t, sync.TypeCardPlayed, updates.Events[0].Type)

	after := room.Snapshot()
	require.Len(t, after.Trick.Plays, 1)
	assert.Equal(t, card, after.Trick.Plays[0].Card)
}

func TestPostIllegalProposalIsDropped(t *testing.T) {
	room := startedRoom(t)
	ts := newTestServer(t, room)

	// Seat B proposing out of turn must be rejected by the authority.
	state := room.Snapshot()
	card := state.Seats[game.SeatB].Hand[0]
	proposal, err := sync.NewEvent("main", game.SeatB, sync.TypePlayProposed,
		sync.PlayPayload{Seat: game.SeatB, Card: card, Turn: 1}, time.Now())
	require.NoError(t, err)
	body, err := json.Marshal(proposal)
	require.NoError(t, err)

	resp, err := http.Post(ts.URL+"/games/main/events", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	// The relay accepts the append; validation happens in the authority.
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	after := room.Snapshot()
	assert.Empty(t, after.Trick.Plays, "out-of-turn proposal must not become a play")
	updates := getUpdates(t, ts, "/games/main/events")
	last := updates.Events[len(updates.Events)-1]
	assert.Equal(t, sync.TypePlayProposed, last.Type, "no card_played follows a rejected proposal")
}

func TestPostAuthoritativeTypesRejected(t *testing.T) {
	room := startedRoom(t)
	ts := newTestServer(t, room)

	// A client must not be able to inject events only the authority may
	// publish; a forged card_played in the log would be replayed by every
	// follower even though the authority ignores it.
	state := room.Snapshot()
	card := state.Seats[game.SeatA].Hand[0]
	versionBefore := room.Log.Version()

	for _, typ := range []sync.Type{sync.TypeCardPlayed, sync.TypeGameStarted, sync.TypeGameEnded} {
		forged, err := sync.NewEvent("main", game.SeatA, typ,
			sync.PlayPayload{Seat: game.SeatA, Card: card, Turn: 1}, time.Now())
		require.NoError(t, err)
		body, err := json.Marshal(forged)
		require.NoError(t, err)

		resp, err := http.Post(ts.URL+"/games/main/events", "application/json", bytes.NewReader(body))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "type %s must be rejected", typ)
	}

	assert.Equal(t, versionBefore, room.Log.Version(), "rejected events must not enter the log")

	// A replica built from the log matches the authority: no foreign plays.
	events, _ := room.Log.After(0)
	follower := sync.NewFollower("main", zerolog.Nop())
	require.NoError(t, follower.Ingest(context.Background(), events))
	require.NotNil(t, follower.Session())
	assert.Empty(t, follower.Session().Trick.Plays)
}

func TestPostEventRequiresID(t *testing.T) {
	ts := newTestServer(t, startedRoom(t))
	resp, err := http.Post(ts.URL+"/games/main/events", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPostEventMalformedBody(t *testing.T) {
	ts := newTestServer(t, startedRoom(t))
	resp, err := http.Post(ts.URL+"/games/main/events", "application/json", strings.NewReader(`{not json`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListRooms(t *testing.T) {
	ts := newTestServer(t, startedRoom(t))
	resp, err := http.Get(ts.URL + "/games")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var rooms []RoomSummary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rooms))
	require.Len(t, rooms, 1)
	assert.Equal(t, "main", rooms[0].ID)
	assert.Equal(t, 100, rooms[0].Bet)
	assert.Equal(t, game.PhasePlaying.String(), rooms[0].Phase)
}
