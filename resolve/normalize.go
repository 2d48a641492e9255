// (c) 2024, SCREAMSOCIETY. All rights reserved.
// See the file LICENSE for licensing terms.

// Package resolve turns raw provider responses into canonical proof records
// and orchestrates provider fallback.
package resolve

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/mr-tron/base58"

	"github.com/SCREAMSOCIETY/SolanaBurner-sub000/cnft"
	"github.com/SCREAMSOCIETY/SolanaBurner-sub000/provider"
)

// Normalize maps a raw proof response, plus optional raw asset metadata for
// providers that split the leaf hashes out of the proof, into a canonical
// ProofRecord. It is a pure function: the same inputs always produce the
// same record, and every missing or undecodable required field fails with
// cnft.ErrProofIncomplete instead of being papered over.
//
// A genuinely absent leaf index is ProofIncomplete: a real index of 0 is
// indistinguishable from "unknown", so defaulting silently would forge
// proofs for leaf 0. Callers working with legacy trees that predate index
// reporting can opt into the 0 default with [Options.AllowLegacyLeafZero].
func Normalize(raw *provider.RawProof, asset *provider.RawAsset, fetchedAt time.Time, source string, opts Options) (*cnft.ProofRecord, error) {
	if raw == nil {
		return nil, fmt.Errorf("%w: nil proof response", cnft.ErrProofIncomplete)
	}

	treeText := firstNonEmpty(
		raw.TreeID,
		raw.MerkleTree,
		compressionTree(raw.Compression),
		assetTree(asset),
	)
	if treeText == "" {
		return nil, fmt.Errorf("%w: no tree id in any known field", cnft.ErrProofIncomplete)
	}
	treeID, err := cnft.ParsePubkey(treeText)
	if err != nil {
		return nil, fmt.Errorf("%w: tree id: %s", cnft.ErrProofIncomplete, err)
	}

	if len(raw.Proof) == 0 {
		// An empty path cannot authorize a state transition; pushing it
		// forward just produces a transaction the ledger will reject.
		return nil, fmt.Errorf("%w: empty proof node list", cnft.ErrProofIncomplete)
	}
	nodes := make([]cnft.Hash256, len(raw.Proof))
	for i, entry := range raw.Proof {
		nodes[i], err = decode32("proof node", entry)
		if err != nil {
			return nil, err
		}
	}

	leafIndex, err := resolveLeafIndex(raw, asset, len(nodes), opts)
	if err != nil {
		return nil, err
	}

	root, err := decode32("root", raw.Root)
	if err != nil {
		return nil, err
	}
	dataHash, err := decode32("data hash", firstNonEmpty(
		raw.DataHash,
		compressionDataHash(raw.Compression),
		assetDataHash(asset),
	))
	if err != nil {
		return nil, err
	}
	creatorHash, err := decode32("creator hash", firstNonEmpty(
		raw.CreatorHash,
		compressionCreatorHash(raw.Compression),
		assetCreatorHash(asset),
	))
	if err != nil {
		return nil, err
	}

	return &cnft.ProofRecord{
		TreeID:      treeID,
		Root:        root,
		DataHash:    dataHash,
		CreatorHash: creatorHash,
		LeafIndex:   leafIndex,
		Proof:       nodes,
		FetchedAt:   fetchedAt,
		Source:      source,
	}, nil
}

// NormalizeOwnership extracts the owner/delegate pair from raw asset
// metadata.
func NormalizeOwnership(asset *provider.RawAsset) (*cnft.AssetOwnership, error) {
	if asset == nil || asset.Ownership == nil || asset.Ownership.Owner == "" {
		return nil, fmt.Errorf("%w: asset metadata missing ownership", cnft.ErrProofIncomplete)
	}
	owner, err := cnft.ParsePubkey(asset.Ownership.Owner)
	if err != nil {
		return nil, fmt.Errorf("%w: owner: %s", cnft.ErrProofIncomplete, err)
	}
	own := &cnft.AssetOwnership{Owner: owner}
	if asset.Ownership.Delegate != "" {
		delegate, err := cnft.ParsePubkey(asset.Ownership.Delegate)
		if err != nil {
			return nil, fmt.Errorf("%w: delegate: %s", cnft.ErrProofIncomplete, err)
		}
		own.Delegate = &delegate
	}
	return own, nil
}

// resolveLeafIndex picks the leaf index out of whichever variant field the
// provider populated. node_index addresses the flattened tree, so the leaf
// tier offset (2^depth) is subtracted to recover the leaf-relative index.
func resolveLeafIndex(raw *provider.RawProof, asset *provider.RawAsset, depth int, opts Options) (uint64, error) {
	switch {
	case raw.LeafIndex != nil:
		return *raw.LeafIndex, nil
	case raw.Compression != nil && raw.Compression.LeafID != nil:
		return *raw.Compression.LeafID, nil
	case asset != nil && asset.Compression != nil && asset.Compression.LeafID != nil:
		return *asset.Compression.LeafID, nil
	case raw.NodeIndex != nil:
		offset := uint64(1) << uint(depth)
		if *raw.NodeIndex < offset {
			return 0, fmt.Errorf("%w: node index %d below leaf tier of depth-%d tree", cnft.ErrProofIncomplete, *raw.NodeIndex, depth)
		}
		return *raw.NodeIndex - offset, nil
	case opts.AllowLegacyLeafZero:
		return 0, nil
	default:
		return 0, fmt.Errorf("%w: no leaf index in any known field", cnft.ErrProofIncomplete)
	}
}

// decode32 decodes a 32-byte value from its wire encoding. Providers
// disagree here too: base58 is tried first (the canonical encoding for
// roots and proof nodes), then base64, then hex.
func decode32(field, s string) (cnft.Hash256, error) {
	var out cnft.Hash256
	if s == "" {
		return out, fmt.Errorf("%w: missing %s", cnft.ErrProofIncomplete, field)
	}
	if raw, err := base58.Decode(s); err == nil && len(raw) == cnft.HashLen {
		copy(out[:], raw)
		return out, nil
	}
	if raw, err := base64.StdEncoding.DecodeString(s); err == nil && len(raw) == cnft.HashLen {
		copy(out[:], raw)
		return out, nil
	}
	if raw, err := hex.DecodeString(strings.TrimPrefix(s, "0x")); err == nil && len(raw) == cnft.HashLen {
		copy(out[:], raw)
		return out, nil
	}
	return out, fmt.Errorf("%w: undecodable %s %q", cnft.ErrProofIncomplete, field, s)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func compressionTree(c *provider.RawCompression) string {
	if c == nil {
		return ""
	}
	return c.Tree
}

func compressionDataHash(c *provider.RawCompression) string {
	if c == nil {
		return ""
	}
	return c.DataHash
}

func compressionCreatorHash(c *provider.RawCompression) string {
	if c == nil {
		return ""
	}
	return c.CreatorHash
}

func assetTree(a *provider.RawAsset) string {
	if a == nil {
		return ""
	}
	return compressionTree(a.Compression)
}

func assetDataHash(a *provider.RawAsset) string {
	if a == nil {
		return ""
	}
	return compressionDataHash(a.Compression)
}

func assetCreatorHash(a *provider.RawAsset) string {
	if a == nil {
		return ""
	}
	return compressionCreatorHash(a.Compression)
}
