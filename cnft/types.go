// (c) 2024, SCREAMSOCIETY. All rights reserved.
// See the file LICENSE for licensing terms.

package cnft

import (
	"fmt"
	"time"

	"github.com/mr-tron/base58"
)

const (
	// PubkeyLen is the byte length of an account address.
	PubkeyLen = 32
	// HashLen is the byte length of a tree root, leaf hash or proof node.
	HashLen = 32
	// SignatureLen is the byte length of a transaction signature.
	SignatureLen = 64
)

// Pubkey is a 32-byte account address, rendered as base58 text.
type Pubkey [PubkeyLen]byte

// Hash256 is a 32-byte hash: a tree root, data hash, creator hash or proof
// node.
type Hash256 [HashLen]byte

// Signature is a 64-byte transaction signature.
type Signature [SignatureLen]byte

// ParsePubkey decodes the base58 text representation of an address.
func ParsePubkey(s string) (Pubkey, error) {
	var pk Pubkey
	raw, err := base58.Decode(s)
	if err != nil {
		return pk, fmt.Errorf("invalid pubkey %q: %w", s, err)
	}
	if len(raw) != PubkeyLen {
		return pk, fmt.Errorf("invalid pubkey %q: expected %d bytes, got %d", s, PubkeyLen, len(raw))
	}
	copy(pk[:], raw)
	return pk, nil
}

func (pk Pubkey) String() string { return base58.Encode(pk[:]) }

// IsZero reports whether the address is all zero bytes.
func (pk Pubkey) IsZero() bool { return pk == Pubkey{} }

func (pk Pubkey) MarshalText() ([]byte, error) { return []byte(pk.String()), nil }

func (pk *Pubkey) UnmarshalText(text []byte) error {
	parsed, err := ParsePubkey(string(text))
	if err != nil {
		return err
	}
	*pk = parsed
	return nil
}

func (h Hash256) String() string { return base58.Encode(h[:]) }

func (h Hash256) MarshalText() ([]byte, error) { return []byte(h.String()), nil }

func (h *Hash256) UnmarshalText(text []byte) error {
	raw, err := base58.Decode(string(text))
	if err != nil {
		return fmt.Errorf("invalid hash %q: %w", text, err)
	}
	if len(raw) != HashLen {
		return fmt.Errorf("invalid hash %q: expected %d bytes, got %d", text, HashLen, len(raw))
	}
	copy(h[:], raw)
	return nil
}

func (sig Signature) String() string { return base58.Encode(sig[:]) }

func (sig Signature) MarshalText() ([]byte, error) { return []byte(sig.String()), nil }

func (sig *Signature) UnmarshalText(text []byte) error {
	raw, err := base58.Decode(string(text))
	if err != nil {
		return fmt.Errorf("invalid signature %q: %w", text, err)
	}
	if len(raw) != SignatureLen {
		return fmt.Errorf("invalid signature %q: expected %d bytes, got %d", text, SignatureLen, len(raw))
	}
	copy(sig[:], raw)
	return nil
}

// CompressedAssetRef identifies a leaf of a state-compression tree.
// Immutable once observed.
type CompressedAssetRef struct {
	AssetID Pubkey `json:"assetId"`
	TreeID  Pubkey `json:"treeId"`
}

// ProofRecord is the canonical form of an inclusion proof for one leaf,
// normalized from whichever raw shape a provider returned. A record is only
// valid for a short window after FetchedAt: any mutation of the tree
// invalidates the root and path.
type ProofRecord struct {
	TreeID      Pubkey    `json:"treeId"`
	Root        Hash256   `json:"root"`
	DataHash    Hash256   `json:"dataHash"`
	CreatorHash Hash256   `json:"creatorHash"`
	LeafIndex   uint64    `json:"leafIndex"`
	Proof       []Hash256 `json:"proof"`
	FetchedAt   time.Time `json:"fetchedAt"`
	Source      string    `json:"sourceProvider"`
}

// Fresh reports whether the record is still usable at [now] given the
// staleness window.
func (p *ProofRecord) Fresh(now time.Time, window time.Duration) bool {
	return now.Sub(p.FetchedAt) <= window
}

// AssetOwnership authorizes transfers and burns: the signer must be the
// owner, or the delegate when the intent is explicitly delegated.
type AssetOwnership struct {
	Owner    Pubkey  `json:"owner"`
	Delegate *Pubkey `json:"delegate,omitempty"`
}

// Intent is a one-shot request to mutate a single compressed asset. Each
// execution attempt re-derives a fresh proof; intents are never reused.
type Intent interface {
	Ref() CompressedAssetRef
	SignerKey() Pubkey

	intent()
}

// TransferIntent moves a leaf to a new owner.
type TransferIntent struct {
	Asset       CompressedAssetRef `json:"asset"`
	Signer      Pubkey             `json:"signer"`
	NewOwner    Pubkey             `json:"newOwner"`
	Delegated   bool               `json:"delegated"`
	RequestedAt time.Time          `json:"requestedAt"`
}

// BurnIntent removes a leaf permanently.
type BurnIntent struct {
	Asset       CompressedAssetRef `json:"asset"`
	Signer      Pubkey             `json:"signer"`
	Delegated   bool               `json:"delegated"`
	RequestedAt time.Time          `json:"requestedAt"`
}

func (t TransferIntent) Ref() CompressedAssetRef { return t.Asset }
func (t TransferIntent) SignerKey() Pubkey       { return t.Signer }
func (t TransferIntent) intent()                 {}

func (b BurnIntent) Ref() CompressedAssetRef { return b.Asset }
func (b BurnIntent) SignerKey() Pubkey       { return b.Signer }
func (b BurnIntent) intent()                 {}

// AccountMeta is one entry of an instruction's ordered account list.
type AccountMeta struct {
	Address    Pubkey `json:"address"`
	IsSigner   bool   `json:"isSigner"`
	IsWritable bool   `json:"isWritable"`
}

// InstructionPlan is a fully assembled, unsigned instruction. It is a pure
// value derived from one ProofRecord and one intent; it is submitted at most
// once and never rebuilt from a stale proof.
type InstructionPlan struct {
	ProgramID Pubkey        `json:"programId"`
	Accounts  []AccountMeta `json:"accounts"`
	Payload   []byte        `json:"payload"`
}

// ItemStatus is the lifecycle state of one batch item.
type ItemStatus uint8

const (
	StatusPending ItemStatus = iota
	StatusResolving
	StatusBuilding
	StatusSubmitting
	StatusConfirming
	StatusSucceeded
	StatusFailed
	// StatusUnconfirmed means the transaction was broadcast but confirmation
	// timed out. It may still have landed; this is not a hard failure and the
	// item must not be blindly resubmitted.
	StatusUnconfirmed
)

func (s ItemStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusResolving:
		return "resolving"
	case StatusBuilding:
		return "building"
	case StatusSubmitting:
		return "submitting"
	case StatusConfirming:
		return "confirming"
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	case StatusUnconfirmed:
		return "unconfirmed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the item has reached a final state.
func (s ItemStatus) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusUnconfirmed
}

// BatchItem tracks one intent through the execution engine.
type BatchItem struct {
	Intent    Intent     `json:"-"`
	Asset     Pubkey     `json:"asset"`
	Status    ItemStatus `json:"status"`
	Signature Signature  `json:"signature,omitempty"`
	Reason    string     `json:"reason,omitempty"`
}

// BatchJob is the aggregated result of a batch execution. Items resolve one
// at a time; a job is terminal once every item is. Failed items are reported
// individually, never silently retried as part of the same job.
type BatchJob struct {
	ID         string      `json:"jobId"`
	Items      []BatchItem `json:"items"`
	StartedAt  time.Time   `json:"startedAt"`
	FinishedAt time.Time   `json:"finishedAt,omitempty"`
}

// Succeeded returns the number of items that reached StatusSucceeded.
func (j *BatchJob) Succeeded() int { return j.count(StatusSucceeded) }

// Failed returns the number of items that reached StatusFailed.
func (j *BatchJob) Failed() int { return j.count(StatusFailed) }

// Unconfirmed returns the number of items with an ambiguous outcome.
func (j *BatchJob) Unconfirmed() int { return j.count(StatusUnconfirmed) }

func (j *BatchJob) count(s ItemStatus) int {
	n := 0
	for i := range j.Items {
		if j.Items[i].Status == s {
			n++
		}
	}
	return n
}
