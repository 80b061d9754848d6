package flow

// RoundRobin is an ordered view over a set of connection IDs with a
// rotating cursor. ReaderRdy uses it two ways: as the stable admission
// order that drives normal-regime remainder distribution (via All), and
// as the fairness device that decides which idle connection gets the next
// unit of scarce credit in the low-RDY regime (via Next).
//
// Not safe for concurrent use; callers must already be serialized (as
// ReaderRdy is, via its own mutex).
type RoundRobin struct {
	items  []string
	cursor int
}

// NewRoundRobin returns an empty RoundRobin.
func NewRoundRobin() *RoundRobin {
	return &RoundRobin{}
}

// Add inserts id at the end of the rotation if it is not already present.
func (r *RoundRobin) Add(id string) {
	for _, x := range r.items {
		if x == id {
			return
		}
	}
	r.items = append(r.items, id)
}

// Remove drops id from the rotation, adjusting the cursor so it still
// points at the same logical "next" element.
func (r *RoundRobin) Remove(id string) {
	for i, x := range r.items {
		if x != id {
			continue
		}
		r.items = append(r.items[:i], r.items[i+1:]...)
		if len(r.items) == 0 {
			r.cursor = 0
			return
		}
		if i < r.cursor {
			r.cursor--
		}
		r.cursor %= len(r.items)
		return
	}
}

// Next returns up to k ids starting at the cursor and advances the
// cursor past them. If the rotation holds fewer than k ids, it returns
// all of them.
func (r *RoundRobin) Next(k int) []string {
	n := len(r.items)
	if n == 0 || k <= 0 {
		return nil
	}
	if k > n {
		k = n
	}
	out := make([]string, 0, k)
	for i := 0; i < k; i++ {
		out = append(out, r.items[(r.cursor+i)%n])
	}
	r.cursor = (r.cursor + k) % n
	return out
}

// All returns a stable snapshot of the rotation in its current order,
// without touching the cursor.
func (r *RoundRobin) All() []string {
	out := make([]string, len(r.items))
	copy(out, r.items)
	return out
}

// Len reports how many ids are currently in the rotation.
func (r *RoundRobin) Len() int {
	return len(r.items)
}
