// (c) 2024, SCREAMSOCIETY. All rights reserved.
// See the file LICENSE for licensing terms.

package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/ava-labs/avalanchego/utils/rpc"

	"github.com/SCREAMSOCIETY/SolanaBurner-sub000/cnft"
	"github.com/SCREAMSOCIETY/SolanaBurner-sub000/ratelimit"
)

const defaultDASTimeout = 25 * time.Second

// DASAdapter speaks the digital-asset-standard JSON-RPC surface
// (getAsset/getAssetProof) of one upstream provider. Every call passes
// through the shared limiter under this adapter's name.
type DASAdapter struct {
	name    string
	req     rpc.EndpointRequester
	limiter *ratelimit.Limiter
	timeout time.Duration
	authKey string
}

// DASOption tweaks a DASAdapter.
type DASOption func(*DASAdapter)

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) DASOption {
	return func(a *DASAdapter) { a.timeout = d }
}

// WithAPIKey attaches the provider's auth token as the api-key query
// parameter on every request.
func WithAPIKey(key string) DASOption {
	return func(a *DASAdapter) { a.authKey = key }
}

// NewDAS returns an adapter for the provider at [baseURL].
func NewDAS(name, baseURL string, limiter *ratelimit.Limiter, opts ...DASOption) *DASAdapter {
	a := &DASAdapter{
		name:    name,
		req:     rpc.NewEndpointRequester(baseURL),
		limiter: limiter,
		timeout: defaultDASTimeout,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *DASAdapter) Name() string { return a.name }

type assetIDArgs struct {
	ID string `json:"id"`
}

func (a *DASAdapter) FetchAssetMetadata(ctx context.Context, assetID cnft.Pubkey) (*RawAsset, error) {
	raw := new(RawAsset)
	if err := a.call(ctx, "getAsset", &assetIDArgs{ID: assetID.String()}, raw); err != nil {
		return nil, err
	}
	if raw.ID == "" {
		return nil, &cnft.ProviderError{
			Provider: a.name,
			Err:      fmt.Errorf("%w: empty asset response for %s", cnft.ErrProviderUnavailable, assetID),
		}
	}
	return raw, nil
}

func (a *DASAdapter) FetchInclusionProof(ctx context.Context, assetID cnft.Pubkey) (*RawProof, error) {
	raw := new(RawProof)
	if err := a.call(ctx, "getAssetProof", &assetIDArgs{ID: assetID.String()}, raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// call runs one JSON-RPC request under the rate limiter with the adapter's
// timeout applied. Transport failures come back tagged with the provider
// name and wrapping cnft.ErrProviderUnavailable.
func (a *DASAdapter) call(ctx context.Context, method string, args interface{}, reply interface{}) error {
	return a.limiter.Schedule(ctx, a.name, false, func() error {
		reqCtx, cancel := context.WithTimeout(ctx, a.timeout)
		defer cancel()

		var opts []rpc.Option
		if a.authKey != "" {
			opts = append(opts, rpc.WithQueryParam("api-key", a.authKey))
		}
		if err := a.req.SendRequest(reqCtx, method, args, reply, opts...); err != nil {
			return &cnft.ProviderError{
				Provider: a.name,
				Err:      fmt.Errorf("%w: %s: %s", cnft.ErrProviderUnavailable, method, err),
			}
		}
		return nil
	})
}
