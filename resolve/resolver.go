// (c) 2024, SCREAMSOCIETY. All rights reserved.
// See the file LICENSE for licensing terms.

package resolve

import (
	"context"
	"time"

	"github.com/ava-labs/avalanchego/cache"
	log "github.com/inconshreveable/log15"
	"golang.org/x/sync/singleflight"

	"github.com/SCREAMSOCIETY/SolanaBurner-sub000/cnft"
	"github.com/SCREAMSOCIETY/SolanaBurner-sub000/provider"
)

// Options configures normalization and the resolver's ownership cache.
type Options struct {
	// AllowLegacyLeafZero opts into the documented legacy-tree behavior of
	// defaulting a missing leaf index to 0. Off by default; see Normalize.
	AllowLegacyLeafZero bool

	// OwnershipTTL bounds how long a cached ownership entry is served before
	// being refetched. Ownership changes with every transfer, so this stays
	// short.
	OwnershipTTL time.Duration

	// OwnershipCacheSize is the LRU size of the ownership cache.
	OwnershipCacheSize int
}

const (
	defaultOwnershipTTL       = 30 * time.Second
	defaultOwnershipCacheSize = 256
)

// Resolver tries a fixed-priority list of provider adapters until one yields
// a usable result. Adapters are queried strictly one at a time within a
// resolution call, so a single call never fans out against provider rate
// budgets; concurrency exists only across calls.
type Resolver struct {
	adapters []provider.Adapter
	opts     Options
	now      func() time.Time

	group    singleflight.Group
	ownCache *cache.LRU[cnft.Pubkey, ownershipEntry]
}

type ownershipEntry struct {
	ownership cnft.AssetOwnership
	fetchedAt time.Time
}

// NewResolver builds a Resolver over [adapters] in priority order.
func NewResolver(adapters []provider.Adapter, opts Options) *Resolver {
	if opts.OwnershipTTL <= 0 {
		opts.OwnershipTTL = defaultOwnershipTTL
	}
	if opts.OwnershipCacheSize <= 0 {
		opts.OwnershipCacheSize = defaultOwnershipCacheSize
	}
	return &Resolver{
		adapters: adapters,
		opts:     opts,
		now:      time.Now,
		ownCache: &cache.LRU[cnft.Pubkey, ownershipEntry]{Size: opts.OwnershipCacheSize},
	}
}

// ResolveProof fetches and normalizes a fresh inclusion proof for [assetID].
// It short-circuits on the first adapter that returns a valid proof; when
// every adapter fails, the returned AggregateError carries one entry per
// provider in priority order.
func (r *Resolver) ResolveProof(ctx context.Context, assetID cnft.Pubkey) (*cnft.ProofRecord, error) {
	var failures []cnft.ProviderFailure
	for _, ad := range r.adapters {
		rec, err := r.tryProof(ctx, ad, assetID)
		if err == nil {
			log.Debug("resolved proof", "asset", assetID, "provider", ad.Name(), "nodes", len(rec.Proof), "leafIndex", rec.LeafIndex)
			return rec, nil
		}
		log.Warn("proof resolution failed", "asset", assetID, "provider", ad.Name(), "err", err)
		failures = append(failures, cnft.ProviderFailure{Provider: ad.Name(), Err: err})
		if ctx.Err() != nil {
			break
		}
	}
	return nil, &cnft.AggregateError{Op: "resolveProof", Failures: failures}
}

func (r *Resolver) tryProof(ctx context.Context, ad provider.Adapter, assetID cnft.Pubkey) (*cnft.ProofRecord, error) {
	raw, err := ad.FetchInclusionProof(ctx, assetID)
	if err != nil {
		return nil, err
	}
	var asset *provider.RawAsset
	if !raw.HasLeafHashes() {
		// This provider keeps the leaf hashes on the asset, not the proof.
		asset, err = ad.FetchAssetMetadata(ctx, assetID)
		if err != nil {
			return nil, err
		}
	}
	return Normalize(raw, asset, r.now(), ad.Name(), r.opts)
}

// ResolveOwnership fetches the owner/delegate pair for [assetID], consulting
// a short-TTL cache first. Concurrent calls for the same asset collapse into
// a single provider round trip.
func (r *Resolver) ResolveOwnership(ctx context.Context, assetID cnft.Pubkey) (*cnft.AssetOwnership, error) {
	if entry, ok := r.ownCache.Get(assetID); ok {
		if r.now().Sub(entry.fetchedAt) <= r.opts.OwnershipTTL {
			own := entry.ownership
			return &own, nil
		}
		r.ownCache.Evict(assetID)
	}

	v, err, _ := r.group.Do(assetID.String(), func() (interface{}, error) {
		return r.resolveOwnershipSlow(ctx, assetID)
	})
	if err != nil {
		return nil, err
	}
	own := v.(cnft.AssetOwnership)
	return &own, nil
}

func (r *Resolver) resolveOwnershipSlow(ctx context.Context, assetID cnft.Pubkey) (interface{}, error) {
	var failures []cnft.ProviderFailure
	for _, ad := range r.adapters {
		raw, err := ad.FetchAssetMetadata(ctx, assetID)
		if err == nil {
			var own *cnft.AssetOwnership
			if own, err = NormalizeOwnership(raw); err == nil {
				r.ownCache.Put(assetID, ownershipEntry{ownership: *own, fetchedAt: r.now()})
				return *own, nil
			}
		}
		log.Warn("metadata resolution failed", "asset", assetID, "provider", ad.Name(), "err", err)
		failures = append(failures, cnft.ProviderFailure{Provider: ad.Name(), Err: err})
		if ctx.Err() != nil {
			break
		}
	}
	return nil, &cnft.AggregateError{Op: "resolveAssetMetadata", Failures: failures}
}
