package types_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ciphrpool/ciphel-sub003/internal/types"
)

func TestSizeOfPrimitives(t *testing.T) {
	require.Equal(t, 1, types.SizeOf(types.Primitive{Kind: types.I8}))
	require.Equal(t, 8, types.SizeOf(types.Primitive{Kind: types.I64}))
	require.Equal(t, 16, types.SizeOf(types.Primitive{Kind: types.U128}))
	require.Equal(t, 1, types.SizeOf(types.Primitive{Kind: types.Bool}))
}

func TestSizeOfStruct(t *testing.T) {
	s := types.Struct{
		ID: "Point",
		Fields: []types.Field{
			{Name: "x", Type: types.Primitive{Kind: types.U64}},
			{Name: "y", Type: types.Primitive{Kind: types.U64}},
		},
	}
	require.Equal(t, 16, types.SizeOf(s))
}

func TestSizeOfUnion(t *testing.T) {
	u := types.Union{
		ID: "Shape",
		Arms: []types.Arm{
			{Variant: "Circle", Payload: types.Struct{Fields: []types.Field{{Name: "r", Type: types.Primitive{Kind: types.F64}}}}},
			{Variant: "Square", Payload: types.Struct{Fields: []types.Field{
				{Name: "w", Type: types.Primitive{Kind: types.F64}},
				{Name: "h", Type: types.Primitive{Kind: types.F64}},
			}}},
		},
	}
	// 8-byte tag + max(8, 16) for the Square arm.
	require.Equal(t, 24, types.SizeOf(u))
}

func TestSizeOfEnumAndHandles(t *testing.T) {
	e := types.Enum{ID: "Color", Variants: []string{"Red", "Green", "Blue"}}
	require.Equal(t, types.HandleSize, types.SizeOf(e))
	require.Equal(t, types.HandleSize, types.SizeOf(types.Vec{Item: types.Primitive{Kind: types.I64}}))
	require.Equal(t, types.HandleSize, types.SizeOf(types.MapType{Key: types.StringVal{}, Value: types.Primitive{Kind: types.I64}}))
	require.Equal(t, types.HandleSize, types.SizeOf(types.StringVal{}))
	require.Equal(t, types.HandleSize, types.SizeOf(types.Channel{Elem: types.Primitive{Kind: types.U8}}))
}

func TestCompatibleWithAnyAndError(t *testing.T) {
	require.True(t, types.CompatibleWith(types.AnyType{}, types.Primitive{Kind: types.I64}))
	require.True(t, types.CompatibleWith(types.Primitive{Kind: types.I64}, types.AnyType{}))
	require.True(t, types.CompatibleWith(types.ErrorType{}, types.ErrorType{}))
	require.False(t, types.CompatibleWith(types.ErrorType{}, types.AnyType{}))
}

func TestMergePinsUnresolvedLiteral(t *testing.T) {
	lit := types.Primitive{Kind: types.UnresolvedInt}
	pinned := types.Primitive{Kind: types.U64}
	merged, err := types.Merge(lit, pinned)
	require.NoError(t, err)
	require.Equal(t, pinned, merged)
}

func TestMergeIncompatible(t *testing.T) {
	_, err := types.Merge(types.Primitive{Kind: types.I64}, types.StringVal{})
	require.Error(t, err)
	var ice *types.IncompatibleTypesError
	require.ErrorAs(t, err, &ice)
}
