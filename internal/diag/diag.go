// Package diag defines the error taxonomy shared by every compilation phase
// and the runtime, and the exit-code mapping the CLI uses to report
// failures (spec §6/§7).
package diag

import (
	"fmt"
	"sort"

	"github.com/ciphrpool/ciphel-sub003/internal/ast"
)

// Kind groups every concrete error into one of the phases the CLI reports
// distinct exit codes for.
type Kind int

const (
	Parsing Kind = iota + 1
	Semantic
	CodeGen
	RuntimeCatchable
	RuntimeFatal
)

// ExitCode returns the process exit code associated with k, per spec §6:
// 0 normal, 1 parse error, 2 semantic error, 3 code-gen error, 4 runtime
// error.
func (k Kind) ExitCode() int {
	switch k {
	case Parsing:
		return 1
	case Semantic:
		return 2
	case CodeGen:
		return 3
	case RuntimeCatchable, RuntimeFatal:
		return 4
	default:
		return 1
	}
}

// Error is one diagnostic: a position, a message and the phase it came
// from.
type Error struct {
	Pos     ast.Position
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	if e.Pos.Filename == "" {
		return e.Message
	}
	return fmt.Sprintf("%s:%d:%d: %s", e.Pos.Filename, e.Pos.Line, e.Pos.Col, e.Message)
}

// List accumulates diagnostics from a single pass (parsing, resolving or
// code generation can all produce more than one error before giving up),
// mirroring the sortable error-list pattern the teacher borrows from
// go/scanner.ErrorList.
type List struct {
	errs []*Error
}

// Add appends a new diagnostic.
func (l *List) Add(pos ast.Position, kind Kind, format string, args ...any) {
	l.errs = append(l.errs, &Error{Pos: pos, Kind: kind, Message: fmt.Sprintf(format, args...)})
}

// Len reports how many diagnostics have been recorded.
func (l *List) Len() int { return len(l.errs) }

// Sort orders diagnostics by filename, then line, then column.
func (l *List) Sort() {
	sort.Slice(l.errs, func(i, j int) bool {
		a, b := l.errs[i].Pos, l.errs[j].Pos
		if a.Filename != b.Filename {
			return a.Filename < b.Filename
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Col < b.Col
	})
}

// Err returns nil if the list is empty, otherwise an error that formats all
// diagnostics, one per line.
func (l *List) Err() error {
	if len(l.errs) == 0 {
		return nil
	}
	return errList(l.errs)
}

// Errors exposes the underlying slice, e.g. so the CLI can pick an exit
// code from the most severe Kind recorded.
func (l *List) Errors() []*Error { return l.errs }

type errList []*Error

func (e errList) Error() string {
	switch len(e) {
	case 0:
		return "no errors"
	case 1:
		return e[0].Error()
	}
	s := e[0].Error()
	for _, err := range e[1:] {
		s += "\n" + err.Error()
	}
	return s
}
