package game

// State is a plain-data snapshot of a session, suitable for serialisation to
// a UI layer and for comparing replicas. It carries everything the rules care
// about and nothing presentation-local, so an authority and a follower that
// converged produce identical snapshots.
type State struct {
	Phase       string       `json:"phase"`
	Seats       [2]SeatState `json:"seats"`
	Trick       Trick        `json:"trick"`
	History     []TurnResult `json:"history"`
	HandOwner   Seat         `json:"handOwner"`
	Current     Seat         `json:"current"`
	FirstLead   Seat         `json:"firstLead"`
	Bet         int          `json:"bet"`
	Winner      Seat         `json:"winner"`
	Victory     string       `json:"victory"`
	Multiplier  int          `json:"multiplier"`
	NeedsRedeal bool         `json:"needsRedeal"`
}

// Snapshot copies the session into a State.
func (s *Session) Snapshot() State {
	st := State{
		Phase:       s.Phase.String(),
		Seats:       s.Seats,
		Trick:       s.Trick,
		HandOwner:   s.HandOwner,
		Current:     s.CurrentSeat(),
		FirstLead:   s.FirstLead,
		Bet:         s.Bet,
		Winner:      s.Winner,
		Victory:     s.Victory.String(),
		Multiplier:  s.Multiplier,
		NeedsRedeal: s.NeedsRedeal,
	}
	st.Seats[SeatA].Hand = s.Seats[SeatA].Hand.Clone()
	st.Seats[SeatB].Hand = s.Seats[SeatB].Hand.Clone()
	if s.Trick.Lead != nil {
		lead := *s.Trick.Lead
		st.Trick.Lead = &lead
	}
	st.Trick.Plays = append([]Play(nil), s.Trick.Plays...)
	st.History = append([]TurnResult(nil), s.History...)
	return st
}
