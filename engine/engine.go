// (c) 2024, SCREAMSOCIETY. All rights reserved.
// See the file LICENSE for licensing terms.

// Package engine executes transfer and burn intents: fresh proof, plan,
// blockhash, submission, bounded confirmation wait. Batches run strictly one
// item at a time because every successful mutation moves the tree root and
// invalidates proofs fetched before it.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/inconshreveable/log15"

	"github.com/SCREAMSOCIETY/SolanaBurner-sub000/cnft"
	"github.com/SCREAMSOCIETY/SolanaBurner-sub000/instruction"
)

// Resolver supplies fresh proofs and ownership; implemented by
// resolve.Resolver.
type Resolver interface {
	ResolveProof(ctx context.Context, assetID cnft.Pubkey) (*cnft.ProofRecord, error)
	ResolveOwnership(ctx context.Context, assetID cnft.Pubkey) (*cnft.AssetOwnership, error)
}

// Ledger submits signed transactions and reports their fate; implemented by
// provider.LedgerAdapter.
type Ledger interface {
	LatestBlockhash(ctx context.Context) (cnft.Hash256, error)
	SubmitRaw(ctx context.Context, signed []byte) (cnft.Signature, error)
	Confirm(ctx context.Context, sig cnft.Signature) error
}

// Config bounds the engine's timing behavior.
type Config struct {
	// StalenessWindow is how long a fetched proof stays usable. A record
	// older than this is re-resolved, never submitted.
	StalenessWindow time.Duration
	// ConfirmTimeout bounds the confirmation wait per item.
	ConfirmTimeout time.Duration
	// ItemDelay is the pause between batch items, letting tree state settle
	// after a mutation and keeping provider budgets breathing room.
	ItemDelay time.Duration
}

// DefaultConfig is suitable for mainnet providers.
var DefaultConfig = Config{
	StalenessWindow: 10 * time.Second,
	ConfirmTimeout:  60 * time.Second,
	ItemDelay:       3 * time.Second,
}

var errEmptyBatch = errors.New("batch has no intents")

// Engine drives intents to a terminal state. All fields are read-only after
// construction; per-intent state never crosses intents.
type Engine struct {
	resolver Resolver
	ledger   Ledger
	signer   Signer
	cfg      Config
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
	jobs     *jobStore
}

// New wires an Engine. Zero Config fields fall back to DefaultConfig.
func New(resolver Resolver, ledger Ledger, signer Signer, cfg Config) *Engine {
	if cfg.StalenessWindow <= 0 {
		cfg.StalenessWindow = DefaultConfig.StalenessWindow
	}
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = DefaultConfig.ConfirmTimeout
	}
	if cfg.ItemDelay < 0 {
		cfg.ItemDelay = DefaultConfig.ItemDelay
	}
	return &Engine{
		resolver: resolver,
		ledger:   ledger,
		signer:   signer,
		cfg:      cfg,
		now:      time.Now,
		sleep:    sleepCtx,
		jobs:     newJobStore(),
	}
}

// Execute runs a single intent to a terminal state and returns its result.
func (e *Engine) Execute(ctx context.Context, intent cnft.Intent) cnft.BatchItem {
	item := cnft.BatchItem{
		Intent: intent,
		Asset:  intent.Ref().AssetID,
		Status: cnft.StatusPending,
	}
	e.run(ctx, intent, func(status cnft.ItemStatus, sig cnft.Signature, reason string) {
		item.Status = status
		item.Signature = sig
		item.Reason = reason
	})
	return item
}

// ExecuteBatch runs [intents] strictly sequentially and returns the
// fully-resolved job. One item's failure never aborts the rest; the batch as
// a whole counts as successful when at least one item succeeded, and per-item
// outcomes are always reported individually.
func (e *Engine) ExecuteBatch(ctx context.Context, intents []cnft.Intent) (*cnft.BatchJob, error) {
	if len(intents) == 0 {
		return nil, errEmptyBatch
	}
	job := e.jobs.create(intents, e.now())
	log.Info("starting batch", "job", job.ID, "items", len(intents))

	for i, intent := range intents {
		if i > 0 && e.cfg.ItemDelay > 0 {
			if err := e.sleep(ctx, e.cfg.ItemDelay); err != nil {
				e.jobs.update(job.ID, i, cnft.StatusFailed, cnft.Signature{}, err.Error())
				continue
			}
		}
		if err := ctx.Err(); err != nil {
			e.jobs.update(job.ID, i, cnft.StatusFailed, cnft.Signature{}, err.Error())
			continue
		}
		idx := i
		e.run(ctx, intent, func(status cnft.ItemStatus, sig cnft.Signature, reason string) {
			e.jobs.update(job.ID, idx, status, sig, reason)
		})
	}

	e.jobs.finish(job.ID, e.now())
	snap, _ := e.jobs.get(job.ID)
	log.Info("batch finished", "job", snap.ID,
		"succeeded", snap.Succeeded(), "failed", snap.Failed(), "unconfirmed", snap.Unconfirmed())
	return snap, nil
}

// GetBatch returns a snapshot of a previously started job.
func (e *Engine) GetBatch(jobID string) (*cnft.BatchJob, bool) {
	return e.jobs.get(jobID)
}

// run drives one intent through
// ProofResolving -> Building -> Submitting -> Confirming and reports every
// transition through [set]. Any retry restarts from proof resolution; plans
// and proofs are never reused across attempts.
func (e *Engine) run(ctx context.Context, intent cnft.Intent, set func(cnft.ItemStatus, cnft.Signature, string)) {
	var none cnft.Signature
	assetID := intent.Ref().AssetID

	if e.signer == nil {
		set(cnft.StatusFailed, none, fmt.Sprintf("%s: no signer configured", cnft.ErrSignatureInvalid))
		return
	}

	set(cnft.StatusResolving, none, "")
	proof, err := e.resolver.ResolveProof(ctx, assetID)
	if err != nil {
		set(cnft.StatusFailed, none, err.Error())
		return
	}
	ownership, err := e.resolver.ResolveOwnership(ctx, assetID)
	if err != nil {
		set(cnft.StatusFailed, none, err.Error())
		return
	}

	// Ownership resolution can stall on slow providers; if the proof aged
	// out meanwhile it must not reach the builder.
	if !proof.Fresh(e.now(), e.cfg.StalenessWindow) {
		log.Warn("proof aged out before build, re-resolving", "asset", assetID, "fetchedAt", proof.FetchedAt)
		proof, err = e.resolver.ResolveProof(ctx, assetID)
		if err != nil {
			set(cnft.StatusFailed, none, fmt.Sprintf("%s: %s", cnft.ErrProofStale, err))
			return
		}
	}

	set(cnft.StatusBuilding, none, "")
	plan, err := e.buildPlan(intent, proof, *ownership)
	if err != nil {
		set(cnft.StatusFailed, none, err.Error())
		return
	}

	// The blockhash reference is fetched after proof resolution, never
	// before, so both freshness windows overlap at submission time.
	blockhash, err := e.ledger.LatestBlockhash(ctx)
	if err != nil {
		set(cnft.StatusFailed, none, err.Error())
		return
	}
	signed, err := e.signer.Sign(ctx, plan, blockhash)
	if err != nil {
		set(cnft.StatusFailed, none, fmt.Sprintf("%s: %s", cnft.ErrSignatureInvalid, err))
		return
	}

	set(cnft.StatusSubmitting, none, "")
	sig, err := e.ledger.SubmitRaw(ctx, signed)
	if err != nil {
		set(cnft.StatusFailed, none, classifyRejection(err).Error())
		return
	}

	set(cnft.StatusConfirming, sig, "")
	confirmCtx, cancel := context.WithTimeout(ctx, e.cfg.ConfirmTimeout)
	err = e.ledger.Confirm(confirmCtx, sig)
	cancel()
	switch {
	case err == nil:
		log.Info("intent confirmed", "asset", assetID, "signature", sig)
		set(cnft.StatusSucceeded, sig, "")
	case errors.Is(err, cnft.ErrSubmissionTimeout):
		// Ambiguous: broadcast transactions cannot be recalled and may still
		// land. Surfaced distinctly so callers never blindly resubmit.
		log.Warn("confirmation timed out", "asset", assetID, "signature", sig)
		set(cnft.StatusUnconfirmed, sig, err.Error())
	default:
		log.Warn("intent rejected", "asset", assetID, "signature", sig, "err", err)
		set(cnft.StatusFailed, sig, classifyRejection(err).Error())
	}
}

func (e *Engine) buildPlan(intent cnft.Intent, proof *cnft.ProofRecord, ownership cnft.AssetOwnership) (*cnft.InstructionPlan, error) {
	switch it := intent.(type) {
	case cnft.TransferIntent:
		return instruction.BuildTransfer(it, proof, ownership)
	case cnft.BurnIntent:
		return instruction.BuildBurn(it, proof, ownership)
	default:
		return nil, fmt.Errorf("%w: unsupported intent type %T", cnft.ErrInstructionBuild, intent)
	}
}

// classifyRejection tags root-mismatch rejections as stale proofs so callers
// know to re-resolve rather than resubmit.
func classifyRejection(err error) error {
	if oce, ok := cnft.IsOnChain(err); ok && isStaleRejection(oce.Reason) {
		return fmt.Errorf("%w: %s", cnft.ErrProofStale, oce.Reason)
	}
	return err
}

// isStaleRejection matches the compression engine's root/proof mismatch
// errors, the signature of a tree that mutated between fetch and submission.
func isStaleRejection(reason string) bool {
	for _, marker := range []string{"InvalidRoot", "ConcurrentMerkleTreeError", "LeafContentsModified", "PublicKeyMismatch"} {
		if strings.Contains(reason, marker) {
			return true
		}
	}
	return false
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
