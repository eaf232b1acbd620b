// Package merkle builds an inclusion-provable Merkle tree over a batch
// of receipts for archive export manifests. It is a supplemental
// integrity aid for exported batches, not a replacement for the
// ledger's required hash chain.
package merkle

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"sort"

	"github.com/kilnworks/pat/pkg/canonicalize"
)

const (
	leafPrefix = "pat:archive:leaf:v1"
	nodePrefix = "pat:archive:node:v1"
)

// Leaf is one archived item: Path is its event_id, Value its receipt
// (or any canonicalizable value).
type Leaf struct {
	Path  string
	Value interface{}
}

// MerkleLeaf is a built leaf: canonical bytes and their hash.
type MerkleLeaf struct {
	Path      string
	LeafBytes []byte
	LeafHash  string
}

// Tree is a built Merkle tree: its leaves in path-sorted order, the
// root hash, and each level of node hashes bottom-up (Nodes[0] is the
// leaf-hash level, Nodes[len-1] is [Root]).
type Tree struct {
	Leaves []MerkleLeaf
	Root   string
	Nodes  [][]string
}

// Build constructs a Tree from leaves, sorted by Path for determinism.
func Build(leaves []Leaf) (*Tree, error) {
	sorted := make([]Leaf, len(leaves))
	copy(sorted, leaves)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	built := make([]MerkleLeaf, len(sorted))
	for i, l := range sorted {
		canonBytes, err := canonicalize.JCS(l.Value)
		if err != nil {
			return nil, err
		}
		leafBytes := buildLeafBytes(l.Path, canonBytes)
		built[i] = MerkleLeaf{
			Path:      l.Path,
			LeafBytes: leafBytes,
			LeafHash:  sha256Hex(leafBytes),
		}
	}

	if len(built) == 0 {
		return &Tree{Root: ""}, nil
	}

	tree := &Tree{Leaves: built}
	level := extractHashes(built)
	tree.Nodes = append(tree.Nodes, level)

	for len(level) > 1 {
		level = buildNextLevel(level)
		tree.Nodes = append(tree.Nodes, level)
	}

	tree.Root = level[0]
	return tree, nil
}

func buildLeafBytes(path string, canonical []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString(leafPrefix)
	buf.WriteByte(0)
	buf.WriteString(path)
	buf.WriteByte(0)
	buf.Write(canonical)
	return buf.Bytes()
}

func extractHashes(leaves []MerkleLeaf) []string {
	hashes := make([]string, len(leaves))
	for i, l := range leaves {
		hashes[i] = l.LeafHash
	}
	return hashes
}

func buildNextLevel(hashes []string) []string {
	count := len(hashes)
	if count%2 != 0 {
		hashes = append(hashes, hashes[count-1])
		count++
	}
	next := make([]string, count/2)
	for i := 0; i < count; i += 2 {
		next[i/2] = buildNodeHash(hashes[i], hashes[i+1])
	}
	return next
}

func buildNodeHash(left, right string) string {
	var buf bytes.Buffer
	buf.WriteString(nodePrefix)
	buf.WriteByte(0)
	buf.Write(hexToBytes(left))
	buf.Write(hexToBytes(right))
	return sha256Hex(buf.Bytes())
}

func sha256Hex(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

func hexToBytes(s string) []byte {
	b, _ := hex.DecodeString(s)
	return b
}

// InclusionProof returns the sibling path proving leaf at index idx is
// included under t.Root.
func (t *Tree) InclusionProof(idx int) (InclusionProof, bool) {
	if idx < 0 || idx >= len(t.Leaves) {
		return InclusionProof{}, false
	}

	proof := InclusionProof{
		LeafPath:   t.Leaves[idx].Path,
		LeafHash:   t.Leaves[idx].LeafHash,
		MerkleRoot: t.Root,
	}

	pos := idx
	for level := 0; level < len(t.Nodes)-1; level++ {
		nodes := t.Nodes[level]
		if pos%2 == 0 {
			if pos+1 < len(nodes) {
				proof.ProofPath = append(proof.ProofPath, ProofStep{Side: "R", SiblingHash: nodes[pos+1]})
			} else {
				proof.ProofPath = append(proof.ProofPath, ProofStep{Side: "R", SiblingHash: nodes[pos]})
			}
		} else {
			proof.ProofPath = append(proof.ProofPath, ProofStep{Side: "L", SiblingHash: nodes[pos-1]})
		}
		pos /= 2
	}

	return proof, true
}
