// Package scope implements the scope manager: a tree of lexical scopes used
// by the resolver to bind identifiers to variables and user types, and by
// the code generator to assign stack offsets to locals.
//
// Scopes are plain pointers in the tree rooted at the Manager's Root rather
// than reference counted: a scope's lifetime is the lifetime of the Manager
// that created it, and closures keep a non-owning Caller pointer back into
// an outer scope.
package scope

import (
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/ciphrpool/ciphel-sub003/internal/ids"
	"github.com/ciphrpool/ciphel-sub003/internal/types"
)

// ClosureState is the per-scope flag indicating whether closures defined in
// that scope may capture outer variables.
type ClosureState uint8

const (
	Default ClosureState = iota
	CanCapture
	Captured
)

// Variable is what an identifier resolves to: its static type, the stack
// cell that will eventually hold it (bound by the code generator, unknown
// at resolve time), and whether it has been captured by a nested closure.
type Variable struct {
	Name      string
	Type      types.Type
	Mutable   bool
	Captured  bool
	HasOffset bool
	Offset    int // meaningful only once HasOffset is true
}

// Scope is one node in the scope tree.
type Scope struct {
	ID     ids.ID
	Parent *Scope

	// Caller is set only for the scope introduced by a closure body; it is a
	// weak reference to the scope from which the closure literal was
	// evaluated, used by FindOuterVars to know where "outer" stops meaning
	// "enclosing function" and starts meaning "enclosing closure-capturing
	// context".
	Caller *Scope

	Closure ClosureState
	IsLoop  bool
	IsFunc  bool

	vars  map[string]*Variable
	types map[string]types.Type

	manager *Manager
}

// Manager owns the id source and the root of the scope tree, and is the
// single entry point the resolver and code generator use to navigate and
// mutate scopes.
type Manager struct {
	ids  *ids.Source
	Root *Scope
}

// NewManager returns a ready-to-use Manager with a fresh root scope.
func NewManager() *Manager {
	m := &Manager{ids: ids.NewSource(1)}
	m.Root = m.newScope(nil)
	m.Root.IsFunc = true
	return m
}

func (m *Manager) newScope(parent *Scope) *Scope {
	return &Scope{
		ID:      m.ids.Next(),
		Parent:  parent,
		vars:    make(map[string]*Variable),
		types:   make(map[string]types.Type),
		manager: m,
	}
}

// EnterChild creates and returns a new child scope of s.
func (m *Manager) EnterChild(s *Scope) *Scope {
	child := m.newScope(s)
	return child
}

// EnterFunction is like EnterChild but also marks the new scope as a
// function body and gives it the capability to let its own nested closures
// capture from it.
func (m *Manager) EnterFunction(s *Scope, caller *Scope) *Scope {
	child := m.newScope(s)
	child.IsFunc = true
	child.Closure = CanCapture
	child.Caller = caller
	return child
}

// RegisterType records a user type under id in s.
func (s *Scope) RegisterType(id string, ut types.Type) {
	s.types[id] = ut
}

// FindType looks up a user type by id, walking up through parents.
func (s *Scope) FindType(id string) (types.Type, bool) {
	for sc := s; sc != nil; sc = sc.Parent {
		if t, ok := sc.types[id]; ok {
			return t, true
		}
	}
	return nil, false
}

// DeclareVar introduces a new variable in s. It does not check for
// redeclaration; that is the resolver's responsibility (RedefinedIdentifier
// is a semantic error, not a scope-manager invariant).
func (s *Scope) DeclareVar(id string, t types.Type, mutable bool) *Variable {
	v := &Variable{Name: id, Type: t, Mutable: mutable}
	s.vars[id] = v
	return v
}

// FindVar looks up a variable by id, walking up through parents.
func (s *Scope) FindVar(id string) (*Variable, *Scope, bool) {
	for sc := s; sc != nil; sc = sc.Parent {
		if v, ok := sc.vars[id]; ok {
			return v, sc, true
		}
	}
	return nil, nil, false
}

// LocalNames returns the identifiers declared directly in s, in
// deterministic order (used by the code generator when it needs a stable
// iteration order for local slot assignment or debug dumps).
func (s *Scope) LocalNames() []string {
	names := maps.Keys(s.vars)
	slices.Sort(names)
	return names
}

// FindOuterVars performs closure-capture discovery: given the scope at the
// top of a closure body (inner), it returns every Variable referenced by
// code inside inner that was declared outside the function boundary
// inner belongs to, i.e. every free variable the closure must capture.
// Variables found this way are marked Captured.
//
// used is the set of identifier names the semantic resolver observed being
// referenced anywhere in the closure body; FindOuterVars resolves each one
// starting from inner and keeps only the ones that bottom out above the
// closure's own function scope.
func FindOuterVars(inner *Scope, used []string) []*Variable {
	if inner.Closure != CanCapture {
		return nil
	}
	boundary := functionBoundary(inner)

	seen := make(map[string]bool, len(used))
	var captured []*Variable
	for _, name := range used {
		if seen[name] {
			continue
		}
		seen[name] = true

		v, declScope, ok := inner.FindVar(name)
		if !ok || !isOutside(declScope, boundary) {
			continue
		}
		v.Captured = true
		captured = append(captured, v)
	}
	return captured
}

// functionBoundary walks up from s to the nearest enclosing scope whose
// IsFunc flag is set (the closure's own body scope).
func functionBoundary(s *Scope) *Scope {
	for sc := s; sc != nil; sc = sc.Parent {
		if sc.IsFunc {
			return sc
		}
	}
	return s
}

// isOutside reports whether declScope is an ancestor of (or equal to a
// scope strictly above) boundary — i.e. the declaration lives outside the
// function the closure introduces.
func isOutside(declScope, boundary *Scope) bool {
	for sc := boundary.Parent; sc != nil; sc = sc.Parent {
		if sc == declScope {
			return true
		}
	}
	return false
}
