package merkle_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilnworks/pat/pkg/merkle"
)

func TestBuildEmptyHasEmptyRoot(t *testing.T) {
	tree, err := merkle.Build(nil)
	require.NoError(t, err)
	assert.Equal(t, "", tree.Root)
}

func TestBuildSingleLeafRootIsLeafHash(t *testing.T) {
	tree, err := merkle.Build([]merkle.Leaf{{Path: "e1", Value: map[string]any{"a": 1}}})
	require.NoError(t, err)
	require.Len(t, tree.Leaves, 1)
	assert.Equal(t, tree.Leaves[0].LeafHash, tree.Root)
}

func TestBuildIsOrderIndependent(t *testing.T) {
	a, err := merkle.Build([]merkle.Leaf{
		{Path: "e1", Value: 1},
		{Path: "e2", Value: 2},
		{Path: "e3", Value: 3},
	})
	require.NoError(t, err)

	b, err := merkle.Build([]merkle.Leaf{
		{Path: "e3", Value: 3},
		{Path: "e1", Value: 1},
		{Path: "e2", Value: 2},
	})
	require.NoError(t, err)

	assert.Equal(t, a.Root, b.Root)
}

func TestInclusionProofVerifies(t *testing.T) {
	tree, err := merkle.Build([]merkle.Leaf{
		{Path: "e1", Value: 1},
		{Path: "e2", Value: 2},
		{Path: "e3", Value: 3},
		{Path: "e4", Value: 4},
	})
	require.NoError(t, err)

	for i := range tree.Leaves {
		proof, ok := tree.InclusionProof(i)
		require.True(t, ok)
		assert.True(t, merkle.VerifyInclusionProof(proof, tree.Root))
	}
}

func TestInclusionProofFailsForWrongRoot(t *testing.T) {
	tree, err := merkle.Build([]merkle.Leaf{
		{Path: "e1", Value: 1},
		{Path: "e2", Value: 2},
	})
	require.NoError(t, err)

	proof, ok := tree.InclusionProof(0)
	require.True(t, ok)
	assert.False(t, merkle.VerifyInclusionProof(proof, "sha256:deadbeef"))
}

func TestInclusionProofHandlesOddLeafCount(t *testing.T) {
	tree, err := merkle.Build([]merkle.Leaf{
		{Path: "e1", Value: 1},
		{Path: "e2", Value: 2},
		{Path: "e3", Value: 3},
	})
	require.NoError(t, err)

	for i := range tree.Leaves {
		proof, ok := tree.InclusionProof(i)
		require.True(t, ok)
		assert.True(t, merkle.VerifyInclusionProof(proof, tree.Root))
	}
}
