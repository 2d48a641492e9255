// (c) 2024, SCREAMSOCIETY. All rights reserved.
// See the file LICENSE for licensing terms.

package cnft

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrRateLimited is returned when a provider's request queue is full.
	// Recoverable; the caller should back off.
	ErrRateLimited = errors.New("rate limited")

	// ErrProviderUnavailable is a network or HTTP level failure talking to a
	// provider. Recoverable via fallback to the next provider.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrProofIncomplete means a raw proof was missing a required field or a
	// field could not be decoded. Recoverable via fallback; terminal once
	// every provider has been exhausted.
	ErrProofIncomplete = errors.New("proof incomplete")

	// ErrProofStale means a proof aged past the staleness window, or the
	// ledger rejected an instruction because the tree root moved. Recoverable
	// only by full re-resolution, never by resubmission.
	ErrProofStale = errors.New("proof stale")

	// ErrOwnershipMismatch means the intent signer is neither the owner nor a
	// matching delegate. Terminal.
	ErrOwnershipMismatch = errors.New("ownership mismatch")

	// ErrSignatureInvalid means signing failed or produced an unusable
	// signature. Terminal.
	ErrSignatureInvalid = errors.New("signature invalid")

	// ErrInstructionBuild means the builder was handed malformed inputs.
	// Terminal; indicates an upstream data bug.
	ErrInstructionBuild = errors.New("instruction build error")

	// ErrSubmissionTimeout means the confirmation wait ran out. Ambiguous:
	// the transaction may still have landed.
	ErrSubmissionTimeout = errors.New("confirmation timed out")
)

// ProviderError tags a failure with the provider it came from.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %s", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// ProviderFailure is one entry of an AggregateError.
type ProviderFailure struct {
	Provider string
	Err      error
}

// AggregateError is returned when every configured provider failed to serve a
// resolution. It preserves each provider's failure in priority order rather
// than surfacing only the last attempt.
type AggregateError struct {
	Op       string
	Failures []ProviderFailure
}

func (e *AggregateError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: all %d providers failed", e.Op, len(e.Failures))
	for _, f := range e.Failures {
		fmt.Fprintf(&sb, "; %s: %s", f.Provider, f.Err)
	}
	return sb.String()
}

// Is reports a match against any of the aggregated failures, so
// errors.Is(err, ErrProofIncomplete) holds when every provider got at least
// as far as returning a proof-shaped response that failed normalization.
func (e *AggregateError) Is(target error) bool {
	for _, f := range e.Failures {
		if errors.Is(f.Err, target) {
			return true
		}
	}
	return false
}

// OnChainError carries a ledger rejection reason verbatim. Terminal.
type OnChainError struct {
	Reason string
}

func (e *OnChainError) Error() string {
	return fmt.Sprintf("rejected on chain: %s", e.Reason)
}

// IsAggregate returns the AggregateError wrapped in [err], if any.
func IsAggregate(err error) (*AggregateError, bool) {
	var agg *AggregateError
	ok := errors.As(err, &agg)
	return agg, ok
}

// IsOnChain returns the OnChainError wrapped in [err], if any.
func IsOnChain(err error) (*OnChainError, bool) {
	var oce *OnChainError
	ok := errors.As(err, &oce)
	return oce, ok
}
