// (c) 2024, SCREAMSOCIETY. All rights reserved.
// See the file LICENSE for licensing terms.

// Package service exposes the proof-resolution and execution core as a
// JSON-RPC API for the HTTP layer.
package service

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/rpc/v2"

	cjson "github.com/ava-labs/avalanchego/utils/json"

	"github.com/SCREAMSOCIETY/SolanaBurner-sub000/cnft"
	"github.com/SCREAMSOCIETY/SolanaBurner-sub000/engine"
	"github.com/SCREAMSOCIETY/SolanaBurner-sub000/instruction"
	"github.com/SCREAMSOCIETY/SolanaBurner-sub000/resolve"
)

// Name is the service prefix of every exposed method.
const Name = "burner"

var (
	errUnknownJob        = errors.New("unknown job id")
	errUnknownIntentKind = errors.New("intent kind must be \"transfer\" or \"burn\"")
)

// Service is the API service for the burner core.
type Service struct {
	engine   *engine.Engine
	resolver *resolve.Resolver
}

// New returns the API service over [eng] and [resolver].
func New(eng *engine.Engine, resolver *resolve.Resolver) *Service {
	return &Service{engine: eng, resolver: resolver}
}

// NewHandler returns an http.Handler serving the service under [Name].
func NewHandler(s *Service) (http.Handler, error) {
	server := rpc.NewServer()
	codec := cjson.NewCodec()
	server.RegisterCodec(codec, "application/json")
	server.RegisterCodec(codec, "application/json;charset=UTF-8")
	return server, server.RegisterService(s, Name)
}

// ProofReply is the canonical proof record in wire form.
type ProofReply struct {
	TreeID      string       `json:"treeId"`
	Root        string       `json:"root"`
	DataHash    string       `json:"dataHash"`
	CreatorHash string       `json:"creatorHash"`
	LeafIndex   cjson.Uint64 `json:"leafIndex"`
	Proof       []string     `json:"proof"`
	FetchedAt   string       `json:"fetchedAt"`
	Source      string       `json:"sourceProvider"`
}

// AccountReply is one entry of a plan's ordered account list.
type AccountReply struct {
	Address    string `json:"address"`
	IsSigner   bool   `json:"isSigner"`
	IsWritable bool   `json:"isWritable"`
}

// PlanReply is an unsigned instruction plan in wire form; the payload is
// base64.
type PlanReply struct {
	ProgramID string         `json:"programId"`
	Accounts  []AccountReply `json:"accounts"`
	Payload   string         `json:"payload"`
}

// ItemReply is the status of one batch item.
type ItemReply struct {
	Asset     string `json:"asset"`
	Status    string `json:"status"`
	Signature string `json:"signature,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// JobReply is the aggregated batch result: per-item outcomes plus counts,
// never a single boolean.
type JobReply struct {
	JobID       string       `json:"jobId"`
	Succeeded   cjson.Uint64 `json:"succeeded"`
	Failed      cjson.Uint64 `json:"failed"`
	Unconfirmed cjson.Uint64 `json:"unconfirmed"`
	Finished    bool         `json:"finished"`
	Items       []ItemReply  `json:"items"`
}

// ResolveProofArgs are the arguments to ResolveProof.
type ResolveProofArgs struct {
	AssetID string `json:"assetId"`
}

// ResolveProofReply is the reply from ResolveProof.
type ResolveProofReply struct {
	Proof ProofReply `json:"proof"`
}

// ResolveProof fetches and normalizes a fresh inclusion proof for
// [args.AssetID].
func (s *Service) ResolveProof(r *http.Request, args *ResolveProofArgs, reply *ResolveProofReply) error {
	assetID, err := cnft.ParsePubkey(args.AssetID)
	if err != nil {
		return err
	}
	proof, err := s.resolver.ResolveProof(r.Context(), assetID)
	if err != nil {
		return err
	}
	reply.Proof = proofReply(proof)
	return nil
}

// BuildTransferArgs are the arguments to BuildTransfer.
type BuildTransferArgs struct {
	AssetID   string `json:"assetId"`
	Signer    string `json:"signer"`
	NewOwner  string `json:"newOwner"`
	Delegated bool   `json:"delegated"`
}

// BuildBurnArgs are the arguments to BuildBurn.
type BuildBurnArgs struct {
	AssetID   string `json:"assetId"`
	Signer    string `json:"signer"`
	Delegated bool   `json:"delegated"`
}

// BuildReply is the reply from BuildTransfer and BuildBurn.
type BuildReply struct {
	Plan PlanReply `json:"plan"`
}

// BuildTransfer resolves a fresh proof and ownership for [args.AssetID] and
// assembles an unsigned transfer plan. Signing stays with the caller.
func (s *Service) BuildTransfer(r *http.Request, args *BuildTransferArgs, reply *BuildReply) error {
	intent := cnft.TransferIntent{Delegated: args.Delegated, RequestedAt: time.Now()}
	var err error
	if intent.Asset.AssetID, err = cnft.ParsePubkey(args.AssetID); err != nil {
		return err
	}
	if intent.Signer, err = cnft.ParsePubkey(args.Signer); err != nil {
		return err
	}
	if intent.NewOwner, err = cnft.ParsePubkey(args.NewOwner); err != nil {
		return err
	}

	proof, ownership, err := s.resolveBoth(r, intent.Asset.AssetID)
	if err != nil {
		return err
	}
	intent.Asset.TreeID = proof.TreeID
	plan, err := instruction.BuildTransfer(intent, proof, *ownership)
	if err != nil {
		return err
	}
	reply.Plan = planReply(plan)
	return nil
}

// BuildBurn resolves a fresh proof and ownership for [args.AssetID] and
// assembles an unsigned burn plan.
func (s *Service) BuildBurn(r *http.Request, args *BuildBurnArgs, reply *BuildReply) error {
	intent := cnft.BurnIntent{Delegated: args.Delegated, RequestedAt: time.Now()}
	var err error
	if intent.Asset.AssetID, err = cnft.ParsePubkey(args.AssetID); err != nil {
		return err
	}
	if intent.Signer, err = cnft.ParsePubkey(args.Signer); err != nil {
		return err
	}

	proof, ownership, err := s.resolveBoth(r, intent.Asset.AssetID)
	if err != nil {
		return err
	}
	intent.Asset.TreeID = proof.TreeID
	plan, err := instruction.BuildBurn(intent, proof, *ownership)
	if err != nil {
		return err
	}
	reply.Plan = planReply(plan)
	return nil
}

// IntentArgs is one batch entry.
type IntentArgs struct {
	Kind      string `json:"kind"`
	AssetID   string `json:"assetId"`
	Signer    string `json:"signer"`
	NewOwner  string `json:"newOwner,omitempty"`
	Delegated bool   `json:"delegated"`
}

// ExecuteBatchArgs are the arguments to ExecuteBatch.
type ExecuteBatchArgs struct {
	Items []IntentArgs `json:"items"`
}

// BatchReply is the reply from ExecuteBatch and GetBatchStatus.
type BatchReply struct {
	Job JobReply `json:"job"`
}

// ExecuteBatch runs the given intents sequentially and returns the final
// aggregated result.
func (s *Service) ExecuteBatch(r *http.Request, args *ExecuteBatchArgs, reply *BatchReply) error {
	intents := make([]cnft.Intent, len(args.Items))
	for i, item := range args.Items {
		intent, err := parseIntent(item)
		if err != nil {
			return fmt.Errorf("item %d: %w", i, err)
		}
		intents[i] = intent
	}
	job, err := s.engine.ExecuteBatch(r.Context(), intents)
	if err != nil {
		return err
	}
	reply.Job = jobReply(job)
	return nil
}

// GetBatchStatusArgs are the arguments to GetBatchStatus.
type GetBatchStatusArgs struct {
	JobID string `json:"jobId"`
}

// GetBatchStatus returns a snapshot of a previously started batch.
func (s *Service) GetBatchStatus(_ *http.Request, args *GetBatchStatusArgs, reply *BatchReply) error {
	job, ok := s.engine.GetBatch(args.JobID)
	if !ok {
		return fmt.Errorf("%w: %s", errUnknownJob, args.JobID)
	}
	reply.Job = jobReply(job)
	return nil
}

func (s *Service) resolveBoth(r *http.Request, assetID cnft.Pubkey) (*cnft.ProofRecord, *cnft.AssetOwnership, error) {
	proof, err := s.resolver.ResolveProof(r.Context(), assetID)
	if err != nil {
		return nil, nil, err
	}
	ownership, err := s.resolver.ResolveOwnership(r.Context(), assetID)
	if err != nil {
		return nil, nil, err
	}
	return proof, ownership, nil
}

func parseIntent(args IntentArgs) (cnft.Intent, error) {
	assetID, err := cnft.ParsePubkey(args.AssetID)
	if err != nil {
		return nil, err
	}
	signer, err := cnft.ParsePubkey(args.Signer)
	if err != nil {
		return nil, err
	}
	ref := cnft.CompressedAssetRef{AssetID: assetID}
	switch args.Kind {
	case "transfer":
		newOwner, err := cnft.ParsePubkey(args.NewOwner)
		if err != nil {
			return nil, err
		}
		return cnft.TransferIntent{
			Asset:       ref,
			Signer:      signer,
			NewOwner:    newOwner,
			Delegated:   args.Delegated,
			RequestedAt: time.Now(),
		}, nil
	case "burn":
		return cnft.BurnIntent{
			Asset:       ref,
			Signer:      signer,
			Delegated:   args.Delegated,
			RequestedAt: time.Now(),
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownIntentKind, args.Kind)
	}
}

func proofReply(p *cnft.ProofRecord) ProofReply {
	nodes := make([]string, len(p.Proof))
	for i, n := range p.Proof {
		nodes[i] = n.String()
	}
	return ProofReply{
		TreeID:      p.TreeID.String(),
		Root:        p.Root.String(),
		DataHash:    p.DataHash.String(),
		CreatorHash: p.CreatorHash.String(),
		LeafIndex:   cjson.Uint64(p.LeafIndex),
		Proof:       nodes,
		FetchedAt:   p.FetchedAt.UTC().Format(time.RFC3339Nano),
		Source:      p.Source,
	}
}

func planReply(plan *cnft.InstructionPlan) PlanReply {
	accounts := make([]AccountReply, len(plan.Accounts))
	for i, acct := range plan.Accounts {
		accounts[i] = AccountReply{
			Address:    acct.Address.String(),
			IsSigner:   acct.IsSigner,
			IsWritable: acct.IsWritable,
		}
	}
	return PlanReply{
		ProgramID: plan.ProgramID.String(),
		Accounts:  accounts,
		Payload:   base64.StdEncoding.EncodeToString(plan.Payload),
	}
}

func jobReply(job *cnft.BatchJob) JobReply {
	items := make([]ItemReply, len(job.Items))
	finished := !job.FinishedAt.IsZero()
	for i, item := range job.Items {
		ir := ItemReply{
			Asset:  item.Asset.String(),
			Status: item.Status.String(),
			Reason: item.Reason,
		}
		if item.Signature != (cnft.Signature{}) {
			ir.Signature = item.Signature.String()
		}
		items[i] = ir
	}
	return JobReply{
		JobID:       job.ID,
		Succeeded:   cjson.Uint64(job.Succeeded()),
		Failed:      cjson.Uint64(job.Failed()),
		Unconfirmed: cjson.Uint64(job.Unconfirmed()),
		Finished:    finished,
		Items:       items,
	}
}
