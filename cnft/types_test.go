// (c) 2024, SCREAMSOCIETY. All rights reserved.
// See the file LICENSE for licensing terms.

package cnft

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

const bubblegum = "BGUMAp9Gq7iTEuizy4pqaxsTyUCBK68MDfK752saRPUY"

func TestParsePubkey(t *testing.T) {
	assert := assert.New(t)

	pk, err := ParsePubkey(bubblegum)
	assert.NoError(err)
	assert.Equal(bubblegum, pk.String())
	assert.False(pk.IsZero())
	assert.True(Pubkey{}.IsZero())

	_, err = ParsePubkey("not base58 0OIl")
	assert.Error(err)

	// Valid base58, wrong length.
	_, err = ParsePubkey("3yZe7d")
	assert.Error(err)
}

func TestPubkeyTextRoundTrip(t *testing.T) {
	assert := assert.New(t)

	pk, err := ParsePubkey(bubblegum)
	assert.NoError(err)

	raw, err := json.Marshal(pk)
	assert.NoError(err)
	assert.Equal(`"`+bubblegum+`"`, string(raw))

	var back Pubkey
	assert.NoError(json.Unmarshal(raw, &back))
	assert.Equal(pk, back)

	assert.Error(back.UnmarshalText([]byte("tooshort")))
}

func TestHashAndSignatureText(t *testing.T) {
	assert := assert.New(t)

	var h Hash256
	for i := range h {
		h[i] = byte(i)
	}
	var back Hash256
	assert.NoError(back.UnmarshalText([]byte(h.String())))
	assert.Equal(h, back)
	assert.Error(back.UnmarshalText([]byte("tooshort")))

	var sig Signature
	for i := range sig {
		sig[i] = byte(i)
	}
	var sigBack Signature
	assert.NoError(sigBack.UnmarshalText([]byte(sig.String())))
	assert.Equal(sig, sigBack)
	// A 32-byte value is a valid hash but never a valid signature.
	assert.Error(sigBack.UnmarshalText([]byte(h.String())))
}

func TestProofRecordFresh(t *testing.T) {
	assert := assert.New(t)

	fetched := time.Unix(1700000000, 0)
	rec := &ProofRecord{FetchedAt: fetched}

	window := 10 * time.Second
	assert.True(rec.Fresh(fetched, window))
	assert.True(rec.Fresh(fetched.Add(window), window))
	assert.False(rec.Fresh(fetched.Add(window+time.Nanosecond), window))
}

func TestItemStatus(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("pending", StatusPending.String())
	assert.Equal("unconfirmed", StatusUnconfirmed.String())
	assert.Equal("unknown", ItemStatus(200).String())

	for _, s := range []ItemStatus{StatusPending, StatusResolving, StatusBuilding, StatusSubmitting, StatusConfirming} {
		assert.False(s.Terminal(), s.String())
	}
	for _, s := range []ItemStatus{StatusSucceeded, StatusFailed, StatusUnconfirmed} {
		assert.True(s.Terminal(), s.String())
	}
}

func TestBatchJobCounts(t *testing.T) {
	assert := assert.New(t)

	job := &BatchJob{Items: []BatchItem{
		{Status: StatusSucceeded},
		{Status: StatusFailed},
		{Status: StatusSucceeded},
		{Status: StatusUnconfirmed},
		{Status: StatusConfirming},
	}}
	assert.Equal(2, job.Succeeded())
	assert.Equal(1, job.Failed())
	assert.Equal(1, job.Unconfirmed())
}

func TestAggregateErrorMatching(t *testing.T) {
	assert := assert.New(t)

	agg := &AggregateError{Op: "resolveProof", Failures: []ProviderFailure{
		{Provider: "a", Err: ErrProviderUnavailable},
		{Provider: "b", Err: ErrProofIncomplete},
	}}
	assert.ErrorIs(agg, ErrProviderUnavailable)
	assert.ErrorIs(agg, ErrProofIncomplete)
	assert.NotErrorIs(agg, ErrProofStale)
	assert.Contains(agg.Error(), "all 2 providers failed")
	assert.Contains(agg.Error(), "b: proof incomplete")
}
