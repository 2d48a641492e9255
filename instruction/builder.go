// (c) 2024, SCREAMSOCIETY. All rights reserved.
// See the file LICENSE for licensing terms.

// Package instruction assembles transfer and burn instructions for
// compressed assets from a normalized proof record. Building is pure:
// identical inputs always yield a byte-identical plan.
package instruction

import (
	"encoding/binary"
	"fmt"

	"github.com/SCREAMSOCIETY/SolanaBurner-sub000/cnft"
)

// Program ids involved in every compressed-asset mutation.
var (
	// BubblegumProgramID owns compressed-asset leaves and their tree
	// authorities.
	BubblegumProgramID = mustPubkey("BGUMAp9Gq7iTEuizy4pqaxsTyUCBK68MDfK752saRPUY")
	// CompressionProgramID is the account-compression engine that verifies
	// inclusion proofs and applies leaf mutations.
	CompressionProgramID = mustPubkey("cmtDvXumGCrqC1Age74AVPhSRVXJMd8PJS91L8KbNCK")
	// NoopProgramID is the log wrapper the compression engine emits leaf
	// change events through.
	NoopProgramID = mustPubkey("noopb9bkMVfRPU8AsbpTUg8AQkHtKwMYZiFUjNRtMmV")
)

// Operation discriminators: the first 8 bytes of sha256("global:<name>").
var (
	transferDiscriminator = [8]byte{163, 52, 200, 231, 140, 3, 69, 186}
	burnDiscriminator     = [8]byte{116, 110, 29, 56, 107, 219, 42, 93}
)

// payloadLen is the serialized instruction size:
// discriminator + root + dataHash + creatorHash + nonce + index.
const payloadLen = 8 + cnft.HashLen*3 + 8 + 8

// BuildTransfer assembles the instruction moving [intent.Asset] to
// [intent.NewOwner]. The signer must be the current owner, or the recorded
// delegate when the intent is explicitly delegated.
func BuildTransfer(intent cnft.TransferIntent, proof *cnft.ProofRecord, ownership cnft.AssetOwnership) (*cnft.InstructionPlan, error) {
	if err := checkAuthority(intent.Signer, intent.Delegated, ownership); err != nil {
		return nil, err
	}
	if intent.NewOwner.IsZero() {
		return nil, fmt.Errorf("%w: transfer has no new owner", cnft.ErrInstructionBuild)
	}
	return build(transferDiscriminator, intent.Signer, &intent.NewOwner, intent.Asset, proof)
}

// BuildBurn assembles the instruction burning [intent.Asset].
func BuildBurn(intent cnft.BurnIntent, proof *cnft.ProofRecord, ownership cnft.AssetOwnership) (*cnft.InstructionPlan, error) {
	if err := checkAuthority(intent.Signer, intent.Delegated, ownership); err != nil {
		return nil, err
	}
	return build(burnDiscriminator, intent.Signer, nil, intent.Asset, proof)
}

// checkAuthority enforces the ownership precondition. A mismatch is
// terminal; proceeding would only burn the caller's fee on a transaction the
// program rejects.
func checkAuthority(signer cnft.Pubkey, delegated bool, ownership cnft.AssetOwnership) error {
	if delegated {
		if ownership.Delegate == nil {
			return fmt.Errorf("%w: intent is delegated but asset has no delegate", cnft.ErrOwnershipMismatch)
		}
		if *ownership.Delegate != signer {
			return fmt.Errorf("%w: signer %s is not delegate %s", cnft.ErrOwnershipMismatch, signer, ownership.Delegate)
		}
		return nil
	}
	if ownership.Owner != signer {
		return fmt.Errorf("%w: signer %s is not owner %s", cnft.ErrOwnershipMismatch, signer, ownership.Owner)
	}
	return nil
}

func build(discriminator [8]byte, signer cnft.Pubkey, newOwner *cnft.Pubkey, asset cnft.CompressedAssetRef, proof *cnft.ProofRecord) (*cnft.InstructionPlan, error) {
	if proof == nil || len(proof.Proof) == 0 {
		return nil, fmt.Errorf("%w: empty proof record", cnft.ErrInstructionBuild)
	}
	if !asset.TreeID.IsZero() && asset.TreeID != proof.TreeID {
		return nil, fmt.Errorf("%w: proof tree %s does not match asset tree %s", cnft.ErrInstructionBuild, proof.TreeID, asset.TreeID)
	}

	authority, _, err := DeriveTreeAuthority(proof.TreeID)
	if err != nil {
		return nil, fmt.Errorf("%w: tree authority: %s", cnft.ErrInstructionBuild, err)
	}

	// The account order is fixed by the program: authority, tree, signer as
	// owner, signer as delegate, new owner for transfers, log wrapper,
	// compression engine, then every proof node read-only in resolver order.
	accounts := make([]cnft.AccountMeta, 0, 7+len(proof.Proof))
	accounts = append(accounts,
		cnft.AccountMeta{Address: authority},
		cnft.AccountMeta{Address: proof.TreeID, IsWritable: true},
		cnft.AccountMeta{Address: signer, IsSigner: true},
		cnft.AccountMeta{Address: signer, IsSigner: true},
	)
	if newOwner != nil {
		accounts = append(accounts, cnft.AccountMeta{Address: *newOwner})
	}
	accounts = append(accounts,
		cnft.AccountMeta{Address: NoopProgramID},
		cnft.AccountMeta{Address: CompressionProgramID},
	)
	for _, node := range proof.Proof {
		accounts = append(accounts, cnft.AccountMeta{Address: cnft.Pubkey(node)})
	}

	return &cnft.InstructionPlan{
		ProgramID: BubblegumProgramID,
		Accounts:  accounts,
		Payload:   marshalPayload(discriminator, proof),
	}, nil
}

// marshalPayload serializes the fixed-layout instruction data. Nonce and
// index both carry the leaf index, little endian.
func marshalPayload(discriminator [8]byte, proof *cnft.ProofRecord) []byte {
	raw := make([]byte, payloadLen)
	work := raw

	copy(work, discriminator[:])
	work = work[8:]
	copy(work, proof.Root[:])
	work = work[cnft.HashLen:]
	copy(work, proof.DataHash[:])
	work = work[cnft.HashLen:]
	copy(work, proof.CreatorHash[:])
	work = work[cnft.HashLen:]
	binary.LittleEndian.PutUint64(work, proof.LeafIndex)
	work = work[8:]
	binary.LittleEndian.PutUint64(work, proof.LeafIndex)
	return raw
}

func mustPubkey(s string) cnft.Pubkey {
	pk, err := cnft.ParsePubkey(s)
	if err != nil {
		panic(err)
	}
	return pk
}
