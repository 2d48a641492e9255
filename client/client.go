// (c) 2024, SCREAMSOCIETY. All rights reserved.
// See the file LICENSE for licensing terms.

package client

import (
	"context"

	"github.com/ava-labs/avalanchego/utils/rpc"

	"github.com/SCREAMSOCIETY/SolanaBurner-sub000/service"
)

// Client defines burner service client operations.
type Client interface {
	// ResolveProof fetches a fresh normalized inclusion proof for an asset
	ResolveProof(ctx context.Context, assetID string) (*service.ProofReply, error)

	// BuildTransfer assembles an unsigned transfer plan for an asset
	BuildTransfer(ctx context.Context, assetID, signer, newOwner string, delegated bool) (*service.PlanReply, error)

	// BuildBurn assembles an unsigned burn plan for an asset
	BuildBurn(ctx context.Context, assetID, signer string, delegated bool) (*service.PlanReply, error)

	// ExecuteBatch runs the given intents sequentially and returns the final job
	ExecuteBatch(ctx context.Context, items []service.IntentArgs) (*service.JobReply, error)

	// GetBatchStatus returns a snapshot of a previously started batch
	GetBatchStatus(ctx context.Context, jobID string) (*service.JobReply, error)
}

// New creates a new client object.
func New(uri string) Client {
	req := rpc.NewEndpointRequester(uri)
	return &client{req: req}
}

type client struct {
	req rpc.EndpointRequester
}

func (cli *client) ResolveProof(ctx context.Context, assetID string) (*service.ProofReply, error) {
	resp := new(service.ResolveProofReply)
	err := cli.req.SendRequest(ctx,
		"burner.resolveProof",
		&service.ResolveProofArgs{AssetID: assetID},
		resp,
	)
	if err != nil {
		return nil, err
	}
	return &resp.Proof, nil
}

func (cli *client) BuildTransfer(ctx context.Context, assetID, signer, newOwner string, delegated bool) (*service.PlanReply, error) {
	resp := new(service.BuildReply)
	err := cli.req.SendRequest(ctx,
		"burner.buildTransfer",
		&service.BuildTransferArgs{
			AssetID:   assetID,
			Signer:    signer,
			NewOwner:  newOwner,
			Delegated: delegated,
		},
		resp,
	)
	if err != nil {
		return nil, err
	}
	return &resp.Plan, nil
}

func (cli *client) BuildBurn(ctx context.Context, assetID, signer string, delegated bool) (*service.PlanReply, error) {
	resp := new(service.BuildReply)
	err := cli.req.SendRequest(ctx,
		"burner.buildBurn",
		&service.BuildBurnArgs{
			AssetID:   assetID,
			Signer:    signer,
			Delegated: delegated,
		},
		resp,
	)
	if err != nil {
		return nil, err
	}
	return &resp.Plan, nil
}

func (cli *client) ExecuteBatch(ctx context.Context, items []service.IntentArgs) (*service.JobReply, error) {
	resp := new(service.BatchReply)
	err := cli.req.SendRequest(ctx,
		"burner.executeBatch",
		&service.ExecuteBatchArgs{Items: items},
		resp,
	)
	if err != nil {
		return nil, err
	}
	return &resp.Job, nil
}

func (cli *client) GetBatchStatus(ctx context.Context, jobID string) (*service.JobReply, error) {
	resp := new(service.BatchReply)
	err := cli.req.SendRequest(ctx,
		"burner.getBatchStatus",
		&service.GetBatchStatusArgs{JobID: jobID},
		resp,
	)
	if err != nil {
		return nil, err
	}
	return &resp.Job, nil
}
