// (c) 2024, SCREAMSOCIETY. All rights reserved.
// See the file LICENSE for licensing terms.

package resolve

import (
	"encoding/base64"
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/SCREAMSOCIETY/SolanaBurner-sub000/cnft"
	"github.com/SCREAMSOCIETY/SolanaBurner-sub000/provider"
)

var fetchedAt = time.Unix(1700000000, 0)

func u64(v uint64) *uint64 { return &v }

func fill(b byte) cnft.Hash256 {
	var h cnft.Hash256
	for i := range h {
		h[i] = b
	}
	return h
}

func fillKey(b byte) cnft.Pubkey {
	var pk cnft.Pubkey
	for i := range pk {
		pk[i] = b
	}
	return pk
}

// flatProof is the fully populated flat shape.
func flatProof() *provider.RawProof {
	return &provider.RawProof{
		Root:        fill(1).String(),
		Proof:       []string{fill(2).String(), fill(3).String(), fill(4).String()},
		TreeID:      fillKey(9).String(),
		LeafIndex:   u64(42),
		DataHash:    fill(5).String(),
		CreatorHash: fill(6).String(),
	}
}

func TestNormalizeFlatShape(t *testing.T) {
	assert := assert.New(t)

	rec, err := Normalize(flatProof(), nil, fetchedAt, "primary", Options{})
	assert.NoError(err)
	assert.Equal(fillKey(9), rec.TreeID)
	assert.Equal(fill(1), rec.Root)
	assert.Equal(fill(5), rec.DataHash)
	assert.Equal(fill(6), rec.CreatorHash)
	assert.Equal(uint64(42), rec.LeafIndex)
	assert.Equal([]cnft.Hash256{fill(2), fill(3), fill(4)}, rec.Proof)
	assert.Equal(fetchedAt, rec.FetchedAt)
	assert.Equal("primary", rec.Source)
}

// The nested shape keeps the tree id, leaf id and hashes inside a
// compression object, with the hashes split between proof and asset.
func TestNormalizeNestedShape(t *testing.T) {
	assert := assert.New(t)

	raw := &provider.RawProof{
		Root:  fill(1).String(),
		Proof: []string{fill(2).String()},
		Compression: &provider.RawCompression{
			Tree: fillKey(9).String(),
		},
	}
	asset := &provider.RawAsset{
		ID: fillKey(8).String(),
		Compression: &provider.RawCompression{
			Compressed:  true,
			Tree:        fillKey(9).String(),
			LeafID:      u64(7),
			DataHash:    fill(5).String(),
			CreatorHash: fill(6).String(),
		},
	}
	rec, err := Normalize(raw, asset, fetchedAt, "secondary", Options{})
	assert.NoError(err)
	assert.Equal(fillKey(9), rec.TreeID)
	assert.Equal(uint64(7), rec.LeafIndex)
	assert.Equal(fill(5), rec.DataHash)
	assert.Equal(fill(6), rec.CreatorHash)
}

// node_index addresses the flattened tree; the leaf tier offset (2^depth)
// is subtracted to recover the leaf index.
func TestNormalizeNodeIndexArithmetic(t *testing.T) {
	assert := assert.New(t)

	raw := flatProof()
	raw.LeafIndex = nil
	raw.NodeIndex = u64((1 << 3) + 5) // depth 3 tree, leaf 5

	rec, err := Normalize(raw, nil, fetchedAt, "p", Options{})
	assert.NoError(err)
	assert.Equal(uint64(5), rec.LeafIndex)

	// A node index below the leaf tier is corrupt, not leaf 0.
	raw.NodeIndex = u64(3)
	_, err = Normalize(raw, nil, fetchedAt, "p", Options{})
	assert.ErrorIs(err, cnft.ErrProofIncomplete)
}

func TestNormalizeMissingLeafIndex(t *testing.T) {
	assert := assert.New(t)

	raw := flatProof()
	raw.LeafIndex = nil

	_, err := Normalize(raw, nil, fetchedAt, "p", Options{})
	assert.ErrorIs(err, cnft.ErrProofIncomplete)

	// The documented legacy-tree exception is a per-resolver opt-in.
	rec, err := Normalize(raw, nil, fetchedAt, "p", Options{AllowLegacyLeafZero: true})
	assert.NoError(err)
	assert.Equal(uint64(0), rec.LeafIndex)
}

// A missing or empty proof node list never yields a usable record.
func TestNormalizeRejectsEmptyProof(t *testing.T) {
	assert := assert.New(t)

	raw := flatProof()
	raw.Proof = nil
	_, err := Normalize(raw, nil, fetchedAt, "p", Options{})
	assert.ErrorIs(err, cnft.ErrProofIncomplete)

	raw.Proof = []string{}
	_, err = Normalize(raw, nil, fetchedAt, "p", Options{})
	assert.ErrorIs(err, cnft.ErrProofIncomplete)

	_, err = Normalize(nil, nil, fetchedAt, "p", Options{})
	assert.ErrorIs(err, cnft.ErrProofIncomplete)
}

func TestNormalizeMissingTree(t *testing.T) {
	raw := flatProof()
	raw.TreeID = ""
	_, err := Normalize(raw, nil, fetchedAt, "p", Options{})
	assert.ErrorIs(t, err, cnft.ErrProofIncomplete)
}

func TestNormalizeUndecodableField(t *testing.T) {
	assert := assert.New(t)

	raw := flatProof()
	raw.Root = "not-a-hash"
	_, err := Normalize(raw, nil, fetchedAt, "p", Options{})
	assert.ErrorIs(err, cnft.ErrProofIncomplete)

	raw = flatProof()
	raw.Proof[1] = "zz"
	_, err = Normalize(raw, nil, fetchedAt, "p", Options{})
	assert.ErrorIs(err, cnft.ErrProofIncomplete)
}

// Providers encode 32-byte fields as base58, base64 or hex; all three decode
// to the same record.
func TestNormalizeWireEncodings(t *testing.T) {
	assert := assert.New(t)

	root := fill(1)
	base := flatProof()

	b64 := flatProof()
	b64.Root = base64.StdEncoding.EncodeToString(root[:])
	hx := flatProof()
	hx.Root = hex.EncodeToString(root[:])

	want, err := Normalize(base, nil, fetchedAt, "p", Options{})
	assert.NoError(err)
	for _, raw := range []*provider.RawProof{b64, hx} {
		got, err := Normalize(raw, nil, fetchedAt, "p", Options{})
		assert.NoError(err)
		assert.Equal(want.Root, got.Root)
	}
}

// Normalization is a pure function: re-normalizing the canonical encodings
// of a record reproduces the record exactly.
func TestNormalizeIdempotent(t *testing.T) {
	assert := assert.New(t)

	first, err := Normalize(flatProof(), nil, fetchedAt, "p", Options{})
	assert.NoError(err)

	again, err := Normalize(flatProof(), nil, fetchedAt, "p", Options{})
	assert.NoError(err)
	assert.Equal(first, again)

	canonical := &provider.RawProof{
		Root:        first.Root.String(),
		TreeID:      first.TreeID.String(),
		LeafIndex:   u64(first.LeafIndex),
		DataHash:    first.DataHash.String(),
		CreatorHash: first.CreatorHash.String(),
	}
	for _, node := range first.Proof {
		canonical.Proof = append(canonical.Proof, node.String())
	}
	fixed, err := Normalize(canonical, nil, fetchedAt, "p", Options{})
	assert.NoError(err)
	assert.Equal(first, fixed)
}

func TestNormalizeOwnership(t *testing.T) {
	assert := assert.New(t)

	delegate := fillKey(3)
	asset := &provider.RawAsset{
		ID: fillKey(8).String(),
		Ownership: &provider.RawOwnership{
			Owner:     fillKey(2).String(),
			Delegate:  delegate.String(),
			Delegated: true,
		},
	}
	own, err := NormalizeOwnership(asset)
	assert.NoError(err)
	assert.Equal(fillKey(2), own.Owner)
	assert.Equal(&delegate, own.Delegate)

	_, err = NormalizeOwnership(&provider.RawAsset{ID: "x"})
	assert.ErrorIs(err, cnft.ErrProofIncomplete)

	_, err = NormalizeOwnership(nil)
	assert.ErrorIs(err, cnft.ErrProofIncomplete)
}
