// (c) 2024, SCREAMSOCIETY. All rights reserved.
// See the file LICENSE for licensing terms.

package provider

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ava-labs/avalanchego/utils/rpc"
	"github.com/gorilla/rpc/v2/json2"

	"github.com/SCREAMSOCIETY/SolanaBurner-sub000/cnft"
	"github.com/SCREAMSOCIETY/SolanaBurner-sub000/ratelimit"
)

const confirmPollInterval = 2 * time.Second

// LedgerAdapter submits signed transactions to a ledger RPC endpoint and
// waits for confirmation. Blockhash and submission calls are scheduled with
// priority: they sit in a narrow freshness window between proof resolution
// and tree mutation, and waiting behind bulk metadata traffic would widen it.
type LedgerAdapter struct {
	name    string
	req     rpc.EndpointRequester
	limiter *ratelimit.Limiter
}

// NewLedger returns an adapter for the ledger RPC at [baseURL].
func NewLedger(name, baseURL string, limiter *ratelimit.Limiter) *LedgerAdapter {
	return &LedgerAdapter{
		name:    name,
		req:     rpc.NewEndpointRequester(baseURL),
		limiter: limiter,
	}
}

func (a *LedgerAdapter) Name() string { return a.name }

type latestBlockhashReply struct {
	Value struct {
		Blockhash            string `json:"blockhash"`
		LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
	} `json:"value"`
}

// LatestBlockhash fetches a fresh recent-blockhash reference. Callers must
// fetch it after proof resolution, never before, to keep the race window
// against tree mutation as small as possible.
func (a *LedgerAdapter) LatestBlockhash(ctx context.Context) (cnft.Hash256, error) {
	var (
		reply latestBlockhashReply
		hash  cnft.Hash256
	)
	err := a.limiter.Schedule(ctx, a.name, true, func() error {
		return a.req.SendRequest(ctx, "getLatestBlockhash", struct{}{}, &reply)
	})
	if err != nil {
		return hash, &cnft.ProviderError{
			Provider: a.name,
			Err:      fmt.Errorf("%w: getLatestBlockhash: %s", cnft.ErrProviderUnavailable, err),
		}
	}
	if err := hash.UnmarshalText([]byte(reply.Value.Blockhash)); err != nil {
		return hash, &cnft.ProviderError{Provider: a.name, Err: err}
	}
	return hash, nil
}

type sendTransactionArgs struct {
	Transaction string `json:"transaction"`
	Encoding    string `json:"encoding"`
}

// SubmitRaw broadcasts a signed transaction and returns its signature id.
// Broadcasts are not revocable; callers must never resubmit the same bytes
// on an ambiguous outcome.
func (a *LedgerAdapter) SubmitRaw(ctx context.Context, signed []byte) (cnft.Signature, error) {
	var (
		reply string
		sig   cnft.Signature
	)
	args := &sendTransactionArgs{
		Transaction: base64.StdEncoding.EncodeToString(signed),
		Encoding:    "base64",
	}
	err := a.limiter.Schedule(ctx, a.name, true, func() error {
		return a.req.SendRequest(ctx, "sendTransaction", args, &reply)
	})
	if err != nil {
		return sig, classifySubmitError(a.name, err)
	}
	if err := sig.UnmarshalText([]byte(reply)); err != nil {
		return sig, &cnft.ProviderError{Provider: a.name, Err: err}
	}
	return sig, nil
}

type signatureStatusesArgs struct {
	Signatures []string `json:"signatures"`
}

type signatureStatusesReply struct {
	Value []*struct {
		ConfirmationStatus string          `json:"confirmationStatus"`
		Err                json.RawMessage `json:"err"`
	} `json:"value"`
}

// Confirm polls signature status until the transaction confirms, the ledger
// reports a rejection, or [ctx] expires. Expiry is surfaced as
// cnft.ErrSubmissionTimeout: ambiguous, distinct from rejection.
func (a *LedgerAdapter) Confirm(ctx context.Context, sig cnft.Signature) error {
	args := &signatureStatusesArgs{Signatures: []string{sig.String()}}
	ticker := time.NewTicker(confirmPollInterval)
	defer ticker.Stop()

	for {
		var reply signatureStatusesReply
		err := a.limiter.Schedule(ctx, a.name, false, func() error {
			return a.req.SendRequest(ctx, "getSignatureStatuses", args, &reply)
		})
		switch {
		case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
			return fmt.Errorf("%w: %s", cnft.ErrSubmissionTimeout, sig)
		case err != nil:
			// Transient status-poll failure; keep waiting until the deadline.
		default:
			if len(reply.Value) > 0 && reply.Value[0] != nil {
				status := reply.Value[0]
				if len(status.Err) > 0 && string(status.Err) != "null" {
					return &cnft.OnChainError{Reason: string(status.Err)}
				}
				if status.ConfirmationStatus == "confirmed" || status.ConfirmationStatus == "finalized" {
					return nil
				}
			}
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %s", cnft.ErrSubmissionTimeout, sig)
		case <-ticker.C:
		}
	}
}

// classifySubmitError distinguishes a ledger-side rejection (the node
// preflighted the transaction and answered with a JSON-RPC error object)
// from plain transport failure. Rejections are terminal; the reason is
// carried verbatim.
func classifySubmitError(name string, err error) error {
	if errors.Is(err, cnft.ErrRateLimited) {
		return err
	}
	var jsonErr *json2.Error
	if errors.As(err, &jsonErr) {
		return &cnft.OnChainError{Reason: jsonErr.Message}
	}
	return &cnft.ProviderError{
		Provider: name,
		Err:      fmt.Errorf("%w: sendTransaction: %s", cnft.ErrProviderUnavailable, err),
	}
}
