package canonicalize_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilnworks/pat/pkg/canonicalize"
)

func TestZeroHashShape(t *testing.T) {
	assert.True(t, strings.HasPrefix(canonicalize.ZeroHash, "sha256:"))
	assert.Len(t, strings.TrimPrefix(canonicalize.ZeroHash, "sha256:"), 64)
}

func TestSha256HexIsDeterministic(t *testing.T) {
	v := map[string]any{"b": 2, "a": 1}
	h1, err := canonicalize.Sha256Hex(v)
	require.NoError(t, err)
	h2, err := canonicalize.Sha256Hex(map[string]any{"a": 1, "b": 2})
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
	assert.True(t, strings.HasPrefix(h1, "sha256:"))
}

func TestRulesHashChangesWithThreshold(t *testing.T) {
	h1, err := canonicalize.RulesHash("P", "1.0.0", []string{"A"}, 0.8, "notes")
	require.NoError(t, err)
	h2, err := canonicalize.RulesHash("P", "1.0.0", []string{"A"}, 0.9, "notes")
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}

func TestRulesHashStableAcrossCalls(t *testing.T) {
	h1, err := canonicalize.RulesHash("P", "1.0.0", []string{"A", "B"}, 0.8, "notes")
	require.NoError(t, err)
	h2, err := canonicalize.RulesHash("P", "1.0.0", []string{"A", "B"}, 0.8, "notes")
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

func TestCanonicalReceiptHashStripsVolatileFields(t *testing.T) {
	base := map[string]interface{}{
		"event_id": "e1",
		"integrity": map[string]interface{}{
			"prev_hash":      canonicalize.ZeroHash,
			"canonical_hash": "",
			"this_hash":      "will-be-stripped",
			"verified_at":    "will-be-stripped-too",
		},
		"approval": map[string]interface{}{
			"signature": "will-be-stripped-three",
			"required":  false,
		},
	}
	raw1, err := canonicalize.JCS(base)
	require.NoError(t, err)
	h1, err := canonicalize.CanonicalReceiptHash(raw1)
	require.NoError(t, err)

	mutated := map[string]interface{}{
		"event_id": "e1",
		"integrity": map[string]interface{}{
			"prev_hash":      canonicalize.ZeroHash,
			"canonical_hash": "",
			"this_hash":      "different-but-irrelevant",
			"verified_at":    "also-different",
		},
		"approval": map[string]interface{}{
			"signature": "also-irrelevant",
			"required":  false,
		},
	}
	raw2, err := canonicalize.JCS(mutated)
	require.NoError(t, err)
	h2, err := canonicalize.CanonicalReceiptHash(raw2)
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
}

func TestThisHashChangesWithEitherInput(t *testing.T) {
	h1, err := canonicalize.ThisHash(canonicalize.ZeroHash, "deadbeef")
	require.NoError(t, err)
	h2, err := canonicalize.ThisHash(canonicalize.ZeroHash, "beefdead")
	require.NoError(t, err)
	h3, err := canonicalize.ThisHash("sha256:"+strings.Repeat("1", 64), "deadbeef")
	require.NoError(t, err)

	assert.NotEqual(t, h1, h2)
	assert.NotEqual(t, h1, h3)
	assert.True(t, strings.HasPrefix(h1, "sha256:"))
}
