// Package ids provides the 128-bit identifiers used to name scopes and
// code-generator labels. A plain incrementing counter would collide across
// independently-compiled modules once their programs are linked together at
// load time, so identifiers are split into a process-local counter (the low
// word) and a generation word fixed when the Source is created by NewSource,
// which keeps ids stable within one compilation but distinct across
// independently compiled chunks.
package ids

import "sync/atomic"

// ID is a 128-bit identifier, represented as two 64-bit words so that no
// fixed-width integer type big enough to hold it natively is required.
type ID struct {
	Hi, Lo uint64
}

// Zero is the reserved, never-generated id used as a sentinel for "no id".
var Zero ID

// IsZero reports whether id is the zero value.
func (id ID) IsZero() bool { return id == Zero }

// Source generates a stream of unique, monotonically increasing ids. The
// zero value is ready to use.
type Source struct {
	gen     uint64
	counter uint64
}

// NewSource returns a Source whose ids all share the given generation word,
// distinguishing them from ids minted by any other Source.
func NewSource(generation uint64) *Source {
	return &Source{gen: generation}
}

// Next returns a fresh id. It is safe for concurrent use.
func (s *Source) Next() ID {
	lo := atomic.AddUint64(&s.counter, 1)
	return ID{Hi: s.gen, Lo: lo}
}
