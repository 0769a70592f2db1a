package scope_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ciphrpool/ciphel-sub003/internal/scope"
	"github.com/ciphrpool/ciphel-sub003/internal/types"
)

func TestFindVarWalksParents(t *testing.T) {
	m := scope.NewManager()
	m.Root.DeclareVar("x", types.Primitive{Kind: types.I64}, false)

	child := m.EnterChild(m.Root)
	v, declScope, ok := child.FindVar("x")
	require.True(t, ok)
	require.Same(t, m.Root, declScope)
	require.Equal(t, "x", v.Name)

	_, _, ok = child.FindVar("missing")
	require.False(t, ok)
}

func TestFindOuterVarsCapturesAcrossFunctionBoundary(t *testing.T) {
	m := scope.NewManager()
	outer := m.Root
	outer.DeclareVar("counter", types.Primitive{Kind: types.I64}, true)

	fnScope := m.EnterFunction(outer, outer)
	fnScope.DeclareVar("local", types.Primitive{Kind: types.I64}, false)

	captured := scope.FindOuterVars(fnScope, []string{"counter", "local"})
	require.Len(t, captured, 1)
	require.Equal(t, "counter", captured[0].Name)
	require.True(t, captured[0].Captured)
}

func TestFindOuterVarsRequiresCanCapture(t *testing.T) {
	m := scope.NewManager()
	outer := m.Root
	outer.DeclareVar("x", types.Primitive{Kind: types.I64}, false)

	plain := m.EnterChild(outer)
	require.Empty(t, scope.FindOuterVars(plain, []string{"x"}))
}
