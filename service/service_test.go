// (c) 2024, SCREAMSOCIETY. All rights reserved.
// See the file LICENSE for licensing terms.

package service

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SCREAMSOCIETY/SolanaBurner-sub000/cnft"
	"github.com/SCREAMSOCIETY/SolanaBurner-sub000/engine"
	"github.com/SCREAMSOCIETY/SolanaBurner-sub000/provider"
	"github.com/SCREAMSOCIETY/SolanaBurner-sub000/resolve"
)

func fill(b byte) cnft.Hash256 {
	var h cnft.Hash256
	for i := range h {
		h[i] = b
	}
	return h
}

func fillKey(b byte) cnft.Pubkey {
	var pk cnft.Pubkey
	for i := range pk {
		pk[i] = b
	}
	return pk
}

func u64(v uint64) *uint64 { return &v }

// fakeAdapter serves one asset with flat proof fields, the shape the
// resolver can normalize without a second metadata fetch.
type fakeAdapter struct {
	owner cnft.Pubkey
}

func (a *fakeAdapter) Name() string { return "fake" }

func (a *fakeAdapter) FetchAssetMetadata(context.Context, cnft.Pubkey) (*provider.RawAsset, error) {
	return &provider.RawAsset{
		Ownership: &provider.RawOwnership{Owner: a.owner.String()},
	}, nil
}

func (a *fakeAdapter) FetchInclusionProof(context.Context, cnft.Pubkey) (*provider.RawProof, error) {
	return &provider.RawProof{
		Root:        fill(1).String(),
		Proof:       []string{fill(2).String(), fill(3).String()},
		TreeID:      fillKey(9).String(),
		LeafIndex:   u64(7),
		DataHash:    fill(5).String(),
		CreatorHash: fill(6).String(),
	}, nil
}

type fakeLedger struct{}

func (fakeLedger) LatestBlockhash(context.Context) (cnft.Hash256, error) { return fill(13), nil }

func (fakeLedger) SubmitRaw(context.Context, []byte) (cnft.Signature, error) {
	var sig cnft.Signature
	sig[0] = 1
	return sig, nil
}

func (fakeLedger) Confirm(context.Context, cnft.Signature) error { return nil }

func newTestService(t *testing.T) (*Service, cnft.Pubkey) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	signer, err := engine.NewKeypairSigner(priv)
	require.NoError(t, err)

	resolver := resolve.NewResolver([]provider.Adapter{&fakeAdapter{owner: signer.Payer()}}, resolve.Options{})
	eng := engine.New(resolver, fakeLedger{}, signer, engine.Config{})
	return New(eng, resolver), signer.Payer()
}

func testRequest() *http.Request {
	return httptest.NewRequest(http.MethodPost, "/rpc", nil)
}

func TestServiceResolveProof(t *testing.T) {
	assert := assert.New(t)

	s, _ := newTestService(t)
	var reply ResolveProofReply
	err := s.ResolveProof(testRequest(), &ResolveProofArgs{AssetID: fillKey(8).String()}, &reply)
	assert.NoError(err)
	assert.Equal(fillKey(9).String(), reply.Proof.TreeID)
	assert.Equal(fill(1).String(), reply.Proof.Root)
	assert.Len(reply.Proof.Proof, 2)
	assert.EqualValues(7, reply.Proof.LeafIndex)
	assert.Equal("fake", reply.Proof.Source)

	err = s.ResolveProof(testRequest(), &ResolveProofArgs{AssetID: "not base58 0OIl"}, &reply)
	assert.Error(err)
}

func TestServiceBuildTransfer(t *testing.T) {
	assert := assert.New(t)

	s, owner := newTestService(t)
	var reply BuildReply
	err := s.BuildTransfer(testRequest(), &BuildTransferArgs{
		AssetID:  fillKey(8).String(),
		Signer:   owner.String(),
		NewOwner: fillKey(3).String(),
	}, &reply)
	assert.NoError(err)
	assert.NotEmpty(reply.Plan.Accounts)
	assert.NotEmpty(reply.Plan.Payload)

	// A signer that does not own the asset never gets a plan.
	err = s.BuildTransfer(testRequest(), &BuildTransferArgs{
		AssetID:  fillKey(8).String(),
		Signer:   fillKey(4).String(),
		NewOwner: fillKey(3).String(),
	}, &reply)
	assert.ErrorIs(err, cnft.ErrOwnershipMismatch)
}

func TestServiceBuildBurn(t *testing.T) {
	assert := assert.New(t)

	s, owner := newTestService(t)
	var reply BuildReply
	err := s.BuildBurn(testRequest(), &BuildBurnArgs{
		AssetID: fillKey(8).String(),
		Signer:  owner.String(),
	}, &reply)
	assert.NoError(err)
	assert.NotEmpty(reply.Plan.Payload)
}

func TestServiceExecuteBatchAndStatus(t *testing.T) {
	assert := assert.New(t)

	s, owner := newTestService(t)
	var reply BatchReply
	err := s.ExecuteBatch(testRequest(), &ExecuteBatchArgs{Items: []IntentArgs{
		{Kind: "burn", AssetID: fillKey(8).String(), Signer: owner.String()},
		{Kind: "transfer", AssetID: fillKey(8).String(), Signer: owner.String(), NewOwner: fillKey(3).String()},
	}}, &reply)
	assert.NoError(err)
	assert.EqualValues(2, reply.Job.Succeeded)
	assert.True(reply.Job.Finished)
	assert.Len(reply.Job.Items, 2)
	assert.Equal("succeeded", reply.Job.Items[0].Status)

	var status BatchReply
	err = s.GetBatchStatus(nil, &GetBatchStatusArgs{JobID: reply.Job.JobID}, &status)
	assert.NoError(err)
	assert.Equal(reply.Job.JobID, status.Job.JobID)

	err = s.GetBatchStatus(nil, &GetBatchStatusArgs{JobID: "missing"}, &status)
	assert.ErrorIs(err, errUnknownJob)
}

func TestParseIntentRejectsUnknownKind(t *testing.T) {
	assert := assert.New(t)

	_, err := parseIntent(IntentArgs{Kind: "mint", AssetID: fillKey(8).String(), Signer: fillKey(2).String()})
	assert.ErrorIs(err, errUnknownIntentKind)

	_, err = parseIntent(IntentArgs{Kind: "transfer", AssetID: fillKey(8).String(), Signer: fillKey(2).String(), NewOwner: "bad"})
	assert.Error(err)
}
