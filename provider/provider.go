// (c) 2024, SCREAMSOCIETY. All rights reserved.
// See the file LICENSE for licensing terms.

// Package provider contains one adapter per upstream data source. Adapters
// translate their provider's wire format and tag failures with the provider
// name; they never fall back to another provider themselves.
package provider

import (
	"context"

	"github.com/SCREAMSOCIETY/SolanaBurner-sub000/cnft"
)

// Adapter is implemented by every upstream asset-data source.
type Adapter interface {
	Name() string

	// FetchAssetMetadata returns the provider's raw view of an asset,
	// including ownership and, for compressed assets, the compression
	// envelope.
	FetchAssetMetadata(ctx context.Context, assetID cnft.Pubkey) (*RawAsset, error)

	// FetchInclusionProof returns the provider's raw inclusion proof for a
	// leaf. Shapes vary widely between providers; see RawProof.
	FetchInclusionProof(ctx context.Context, assetID cnft.Pubkey) (*RawProof, error)
}

// RawCompression is the nested compression envelope some providers attach to
// assets and proofs.
type RawCompression struct {
	Compressed  bool    `json:"compressed"`
	Tree        string  `json:"tree"`
	LeafID      *uint64 `json:"leaf_id"`
	DataHash    string  `json:"data_hash"`
	CreatorHash string  `json:"creator_hash"`
	Seq         uint64  `json:"seq"`
}

// RawOwnership is a provider's view of who controls an asset.
type RawOwnership struct {
	Owner     string `json:"owner"`
	Delegate  string `json:"delegate"`
	Delegated bool   `json:"delegated"`
}

// RawAsset is an unnormalized asset metadata response.
type RawAsset struct {
	ID          string          `json:"id"`
	Ownership   *RawOwnership   `json:"ownership"`
	Compression *RawCompression `json:"compression"`
	Burnt       bool            `json:"burnt"`
}

// RawProof is the union of every known raw proof shape. Providers disagree on
// where the tree id and leaf index live (flat field, merkle_tree alias,
// nested compression object) and on whether leaf hashes ride along with the
// proof at all; pointer fields distinguish absent from zero. One
// normalization function (resolve.Normalize) consumes this union,
// so field-presence checks live in exactly one place.
type RawProof struct {
	Root  string   `json:"root"`
	Proof []string `json:"proof"`
	Leaf  string   `json:"leaf"`

	// Tree id variants.
	TreeID     string `json:"tree_id"`
	MerkleTree string `json:"merkle_tree"`

	// Leaf index variants. NodeIndex is the index of the leaf's node in the
	// flattened tree, offset by the leaf tier; LeafIndex and the nested
	// compression leaf_id are already leaf-relative.
	NodeIndex *uint64 `json:"node_index"`
	LeafIndex *uint64 `json:"leaf_index"`

	// Some providers return the leaf hashes with the proof, others only via
	// asset metadata.
	DataHash    string          `json:"data_hash"`
	CreatorHash string          `json:"creator_hash"`
	Compression *RawCompression `json:"compression"`
}

// HasLeafHashes reports whether the proof response itself carries the data
// and creator hashes, or whether they must be merged from asset metadata.
func (p *RawProof) HasLeafHashes() bool {
	if p.DataHash != "" && p.CreatorHash != "" {
		return true
	}
	return p.Compression != nil && p.Compression.DataHash != "" && p.Compression.CreatorHash != ""
}
