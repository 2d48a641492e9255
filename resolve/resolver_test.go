// (c) 2024, SCREAMSOCIETY. All rights reserved.
// See the file LICENSE for licensing terms.

package resolve

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/SCREAMSOCIETY/SolanaBurner-sub000/cnft"
	"github.com/SCREAMSOCIETY/SolanaBurner-sub000/provider"
)

type fakeAdapter struct {
	name       string
	proof      *provider.RawProof
	asset      *provider.RawAsset
	proofErr   error
	assetErr   error
	proofCalls int
	assetCalls int
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) FetchInclusionProof(context.Context, cnft.Pubkey) (*provider.RawProof, error) {
	f.proofCalls++
	return f.proof, f.proofErr
}

func (f *fakeAdapter) FetchAssetMetadata(context.Context, cnft.Pubkey) (*provider.RawAsset, error) {
	f.assetCalls++
	return f.asset, f.assetErr
}

func unavailable(name string) error {
	return &cnft.ProviderError{
		Provider: name,
		Err:      fmt.Errorf("%w: connection refused", cnft.ErrProviderUnavailable),
	}
}

func ownedAsset(owner cnft.Pubkey) *provider.RawAsset {
	return &provider.RawAsset{
		ID:        fillKey(8).String(),
		Ownership: &provider.RawOwnership{Owner: owner.String()},
	}
}

// Providers 1..k fail, provider k+1 succeeds: the resolver returns the first
// valid normalized result and stops there.
func TestResolveProofFallback(t *testing.T) {
	assert := assert.New(t)

	bad1 := &fakeAdapter{name: "a", proofErr: unavailable("a")}
	bad2 := &fakeAdapter{name: "b", proof: &provider.RawProof{}} // normalizes to ProofIncomplete
	good := &fakeAdapter{name: "c", proof: flatProof()}
	last := &fakeAdapter{name: "d", proof: flatProof()}
	r := NewResolver([]provider.Adapter{bad1, bad2, good, last}, Options{})

	rec, err := r.ResolveProof(context.Background(), fillKey(8))
	assert.NoError(err)
	assert.Equal("c", rec.Source)
	assert.Equal(uint64(42), rec.LeafIndex)
	assert.Equal(1, bad1.proofCalls)
	assert.Equal(1, bad2.proofCalls)
	assert.Equal(1, good.proofCalls)
	assert.Zero(last.proofCalls, "short-circuit must not reach lower-priority providers")
}

// Total failure aggregates one entry per provider, in priority order.
func TestResolveProofAggregateError(t *testing.T) {
	assert := assert.New(t)

	adapters := []provider.Adapter{
		&fakeAdapter{name: "a", proofErr: unavailable("a")},
		&fakeAdapter{name: "b", proof: &provider.RawProof{}},
		&fakeAdapter{name: "c", proofErr: unavailable("c")},
	}
	r := NewResolver(adapters, Options{})

	_, err := r.ResolveProof(context.Background(), fillKey(8))
	agg, ok := cnft.IsAggregate(err)
	assert.True(ok)
	assert.Len(agg.Failures, 3)
	assert.Equal("a", agg.Failures[0].Provider)
	assert.Equal("b", agg.Failures[1].Provider)
	assert.Equal("c", agg.Failures[2].Provider)
	assert.ErrorIs(agg.Failures[0].Err, cnft.ErrProviderUnavailable)
	assert.ErrorIs(agg.Failures[1].Err, cnft.ErrProofIncomplete)
	assert.ErrorIs(err, cnft.ErrProofIncomplete)
}

// When the proof response lacks the leaf hashes, the same provider's asset
// metadata fills them in before normalization.
func TestResolveProofMergesAssetHashes(t *testing.T) {
	assert := assert.New(t)

	raw := flatProof()
	raw.DataHash = ""
	raw.CreatorHash = ""
	ad := &fakeAdapter{
		name:  "a",
		proof: raw,
		asset: &provider.RawAsset{
			ID: fillKey(8).String(),
			Compression: &provider.RawCompression{
				Tree:        fillKey(9).String(),
				DataHash:    fill(5).String(),
				CreatorHash: fill(6).String(),
			},
		},
	}
	r := NewResolver([]provider.Adapter{ad}, Options{})

	rec, err := r.ResolveProof(context.Background(), fillKey(8))
	assert.NoError(err)
	assert.Equal(fill(5), rec.DataHash)
	assert.Equal(1, ad.assetCalls)

	// With hashes on the proof itself, no metadata round trip happens.
	ad2 := &fakeAdapter{name: "b", proof: flatProof()}
	r2 := NewResolver([]provider.Adapter{ad2}, Options{})
	_, err = r2.ResolveProof(context.Background(), fillKey(8))
	assert.NoError(err)
	assert.Zero(ad2.assetCalls)
}

func TestResolveOwnershipFallbackAndCache(t *testing.T) {
	assert := assert.New(t)

	owner := fillKey(2)
	bad := &fakeAdapter{name: "a", assetErr: unavailable("a")}
	good := &fakeAdapter{name: "b", asset: ownedAsset(owner)}
	r := NewResolver([]provider.Adapter{bad, good}, Options{})

	own, err := r.ResolveOwnership(context.Background(), fillKey(8))
	assert.NoError(err)
	assert.Equal(owner, own.Owner)
	assert.Nil(own.Delegate)
	assert.Equal(1, bad.assetCalls)
	assert.Equal(1, good.assetCalls)

	// Second call within the TTL is served from the cache.
	_, err = r.ResolveOwnership(context.Background(), fillKey(8))
	assert.NoError(err)
	assert.Equal(1, bad.assetCalls)
	assert.Equal(1, good.assetCalls)
}

func TestResolveOwnershipAggregateError(t *testing.T) {
	assert := assert.New(t)

	r := NewResolver([]provider.Adapter{
		&fakeAdapter{name: "a", assetErr: unavailable("a")},
		&fakeAdapter{name: "b", asset: &provider.RawAsset{ID: "x"}}, // no ownership block
	}, Options{})

	_, err := r.ResolveOwnership(context.Background(), fillKey(99))
	agg, ok := cnft.IsAggregate(err)
	assert.True(ok)
	assert.Len(agg.Failures, 2)
	assert.True(errors.Is(agg.Failures[1].Err, cnft.ErrProofIncomplete))
}
