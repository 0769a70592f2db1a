package runtime

// Slab stores every thread the scheduler knows about, keyed by the id the
// host Engine minted for it. Insertion order is kept separately so
// TimeSliced round-robin has a stable rotation to advance through instead
// of depending on Go's randomized map iteration.
type Slab struct {
	threads map[ExternThreadIdentifier]*Thread
	order   []ExternThreadIdentifier
}

// NewSlab returns an empty, ready-to-use Slab.
func NewSlab() *Slab {
	return &Slab{threads: make(map[ExternThreadIdentifier]*Thread)}
}

func (s *Slab) add(t *Thread) {
	s.threads[t.ID] = t
	s.order = append(s.order, t.ID)
}

// Get looks up a thread by id.
func (s *Slab) Get(id ExternThreadIdentifier) (*Thread, bool) {
	t, ok := s.threads[id]
	return t, ok
}

// Len reports how many threads the slab holds, including Closed ones.
func (s *Slab) Len() int { return len(s.threads) }

// All returns every thread in spawn order.
func (s *Slab) All() []*Thread {
	out := make([]*Thread, 0, len(s.order))
	for _, id := range s.order {
		if t, ok := s.threads[id]; ok {
			out = append(out, t)
		}
	}
	return out
}

// Runnable returns the threads currently eligible to run, in spawn order.
func (s *Slab) Runnable() []*Thread {
	var out []*Thread
	for _, id := range s.order {
		if t, ok := s.threads[id]; ok && t.Status == Runnable {
			out = append(out, t)
		}
	}
	return out
}

// AllClosed reports whether every known thread has reached Closed — the
// condition ToCompletion runs until.
func (s *Slab) AllClosed() bool {
	for _, id := range s.order {
		if t, ok := s.threads[id]; ok && t.Status != Closed {
			return false
		}
	}
	return true
}
