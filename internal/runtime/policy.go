package runtime

// Policy picks which Runnable thread runs next and how large a weight
// budget its slice gets. Budget <= 0 means "run to completion or block",
// matching machine.VM.Run's own convention for an unbounded slice.
type Policy interface {
	Next(s *Slab) *Thread
	Budget(t *Thread) int
}

// ToCompletion runs each thread until it blocks or finishes, rotating
// round-robin through the Runnable set the same way TimeSliced does.
// Picking a fixed index (e.g. always Runnable()[0]) would livelock: a
// channel op that isn't ready yet returns Yielded without changing
// Status away from Runnable (see Tick), so a thread pinned to one slot
// would be retried forever while any later thread that could otherwise
// complete and unblock it never gets a turn. The scheduler loop stops
// once every thread is Closed.
type ToCompletion struct {
	cursor int
}

func (p *ToCompletion) Next(s *Slab) *Thread {
	r := s.Runnable()
	if len(r) == 0 {
		return nil
	}
	p.cursor = (p.cursor + 1) % len(r)
	return r[p.cursor]
}

func (p *ToCompletion) Budget(*Thread) int { return 0 }

// TimeSliced rotates through Runnable threads round-robin, each getting at
// most Weight's worth of instruction weight per slice, guaranteeing no
// Runnable thread waits more than one full rotation.
type TimeSliced struct {
	Weight int
	cursor int
}

func (p *TimeSliced) Next(s *Slab) *Thread {
	r := s.Runnable()
	if len(r) == 0 {
		return nil
	}
	p.cursor = (p.cursor + 1) % len(r)
	return r[p.cursor]
}

func (p *TimeSliced) Budget(*Thread) int { return p.Weight }

// Cooperative only switches threads on a blocking Signal: each slice runs
// to completion or block (no weight budget), and YieldOnSignal is kept for
// parity with the spec's named constructor even though a slice always ends
// the moment its thread can't proceed without one. It rotates through the
// Runnable set the same way ToCompletion does, for the same reason: a
// fixed pick would livelock on a Runnable-but-not-ready channel op.
type Cooperative struct {
	YieldOnSignal bool
	cursor        int
}

func (p *Cooperative) Next(s *Slab) *Thread {
	r := s.Runnable()
	if len(r) == 0 {
		return nil
	}
	p.cursor = (p.cursor + 1) % len(r)
	return r[p.cursor]
}

func (p *Cooperative) Budget(*Thread) int { return 0 }
