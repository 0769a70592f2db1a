// Package engine provides the default runtime.Engine a standalone run of
// the CLI wires up: real wall-clock time, monotonically-minted thread ids,
// and stdio-backed terminal/print intrinsics. An embedder wanting something
// else (a test harness, a sandboxed host) implements runtime.Engine itself
// instead of using this package.
package engine

import (
	"bufio"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ciphrpool/ciphel-sub003/internal/ids"
)

// Terminal is the default runtime.Engine: it mints thread ids off of an
// internal/ids.Source, sources Now from the wall clock relative to its own
// construction, and relays print/cursor/trace intrinsics to explicit
// io.Writers rather than package-global loggers.
type Terminal struct {
	Stdout io.Writer
	Stderr io.Writer
	Stdin  *bufio.Reader

	// Trace, when set, receives the disassembled CASM text PushCasm*
	// forwards — the TRACE=1 CLI flag's destination. Nil disables tracing
	// (PushCasm* become no-ops) rather than writing it anywhere by default.
	Trace io.Writer

	start  time.Time
	ids    *ids.Source
	mu     sync.Mutex
	closed map[uint64]bool
}

// NewTerminal returns a Terminal ready to drive a runtime.Scheduler, with
// its clock zeroed at the moment of construction.
func NewTerminal(stdout, stderr io.Writer, stdin io.Reader) *Terminal {
	return &Terminal{
		Stdout: stdout,
		Stderr: stderr,
		Stdin:  bufio.NewReader(stdin),
		start:  time.Now(),
		ids:    ids.NewSource(0),
		closed: make(map[uint64]bool),
	}
}

// Spawn mints a fresh thread id. Ids are only ever handed out, never
// reused, even once the thread they named is Closed.
func (t *Terminal) Spawn() uint64 {
	return t.ids.Next().Lo
}

// Close marks tid as no longer live. It is idempotent: closing an already-
// closed or unknown id is not an error.
func (t *Terminal) Close(tid uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed[tid] = true
	return nil
}

// Now reports milliseconds elapsed since the Terminal was constructed.
// CASM has no wall clock of its own; every Sleep deadline and
// receive(ch, timeout_ms) deadline is computed relative to this.
func (t *Terminal) Now() int64 {
	return time.Since(t.start).Milliseconds()
}

// StdinReady reports whether a read from stdin would return data without
// blocking. This repo runs the scheduler goroutine-free, so readiness can
// only be approximated by what the bufio.Reader already has buffered; a
// thread waiting on stdin that hasn't had anything typed yet stays
// WaitingSTDIN until some other caller (the CLI's own input loop) primes
// the buffer by reading ahead.
func (t *Terminal) StdinReady() bool {
	return t.Stdin.Buffered() > 0
}

// PushCasm writes one line of disassembled CASM instruction text to Trace.
func (t *Terminal) PushCasm(s string) {
	if t.Trace == nil {
		return
	}
	fmt.Fprintln(t.Trace, s)
}

// PushCasmLabel writes a label line (a jump target or function entry) to
// Trace, distinguished from a plain instruction line by the caller's own
// formatting.
func (t *Terminal) PushCasmLabel(s string) {
	if t.Trace == nil {
		return
	}
	fmt.Fprintln(t.Trace, s)
}

// PushCasmLib writes a line documenting a platform/library call resolved at
// a callsite (the generator's platformCalls lowering) to Trace.
func (t *Terminal) PushCasmLib(s string) {
	if t.Trace == nil {
		return
	}
	fmt.Fprintln(t.Trace, s)
}

// Print implements the `print` intrinsic: plain text to Stdout, no
// trailing newline added beyond what the string itself carries.
func (t *Terminal) Print(s string) {
	fmt.Fprint(t.Stdout, s)
}

// CursorPrint writes s at the terminal's current cursor position, same
// destination as Print — CASM doesn't distinguish the two at the Engine
// level, only at the opcode that invoked them.
func (t *Terminal) CursorPrint(s string) {
	fmt.Fprint(t.Stdout, s)
}

// CursorMove emits the ANSI relative cursor movement sequence for (dx, dy).
func (t *Terminal) CursorMove(dx, dy int64) {
	if dy < 0 {
		fmt.Fprintf(t.Stdout, "\x1b[%dA", -dy)
	} else if dy > 0 {
		fmt.Fprintf(t.Stdout, "\x1b[%dB", dy)
	}
	if dx > 0 {
		fmt.Fprintf(t.Stdout, "\x1b[%dC", dx)
	} else if dx < 0 {
		fmt.Fprintf(t.Stdout, "\x1b[%dD", -dx)
	}
}

// CursorClear emits the ANSI clear-screen-and-home sequence.
func (t *Terminal) CursorClear() {
	fmt.Fprint(t.Stdout, "\x1b[2J\x1b[H")
}
