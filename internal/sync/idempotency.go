package sync

// recentIDs is a bounded first-in-first-out set of processed event ids. The
// cap is a memory bound, not the correctness mechanism: real idempotency
// comes from checking the sequence watermark against applied state, and this
// set only short-circuits redeliveries that arrive while still in the window.
type recentIDs struct {
	cap   int
	order []string
	set   map[string]struct{}
}

const defaultRecentCap = 100

func newRecentIDs(cap int) *recentIDs {
	if cap <= 0 {
		cap = defaultRecentCap
	}
	return &recentIDs{cap: cap, set: make(map[string]struct{}, cap)}
}

func (r *recentIDs) Has(id string) bool {
	_, ok := r.set[id]
	return ok
}

func (r *recentIDs) Add(id string) {
	if _, ok := r.set[id]; ok {
		return
	}
	if len(r.order) >= r.cap {
		oldest := r.order[0]
		r.order = r.order[1:]
		delete(r.set, oldest)
	}
	r.order = append(r.order, id)
	r.set[id] = struct{}{}
}
