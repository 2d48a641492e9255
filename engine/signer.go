// (c) 2024, SCREAMSOCIETY. All rights reserved.
// See the file LICENSE for licensing terms.

package engine

import (
	"context"
	"crypto/ed25519"
	"fmt"

	"github.com/SCREAMSOCIETY/SolanaBurner-sub000/cnft"
	"github.com/SCREAMSOCIETY/SolanaBurner-sub000/instruction"
)

// Signer turns an unsigned instruction plan into signed transaction bytes.
// Wallet-side signing flows implement this externally; the engine only ever
// sees the finished blob.
type Signer interface {
	// Payer is the fee-paying signing address.
	Payer() cnft.Pubkey

	// Sign serializes and signs [plan] against [recentBlockhash].
	Sign(ctx context.Context, plan *cnft.InstructionPlan, recentBlockhash cnft.Hash256) ([]byte, error)
}

// KeypairSigner signs locally with a raw ed25519 key. Used by the service
// binary when operating its own hot wallet; interactive wallets supply their
// own Signer.
type KeypairSigner struct {
	priv  ed25519.PrivateKey
	payer cnft.Pubkey
}

// NewKeypairSigner wraps a 64-byte ed25519 private key.
func NewKeypairSigner(priv ed25519.PrivateKey) (*KeypairSigner, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: expected %d key bytes, got %d", cnft.ErrSignatureInvalid, ed25519.PrivateKeySize, len(priv))
	}
	var payer cnft.Pubkey
	copy(payer[:], priv.Public().(ed25519.PublicKey))
	return &KeypairSigner{priv: priv, payer: payer}, nil
}

func (s *KeypairSigner) Payer() cnft.Pubkey { return s.payer }

func (s *KeypairSigner) Sign(_ context.Context, plan *cnft.InstructionPlan, recentBlockhash cnft.Hash256) ([]byte, error) {
	msg, err := instruction.Message(plan, s.payer, recentBlockhash)
	if err != nil {
		return nil, err
	}
	// A local keypair can only satisfy single-signer messages; anything else
	// belongs to an external wallet flow.
	if msg[0] != 1 {
		return nil, fmt.Errorf("%w: message requires %d signatures, keypair signer provides 1", cnft.ErrSignatureInvalid, msg[0])
	}
	sig := ed25519.Sign(s.priv, msg)

	signed := make([]byte, 0, 1+len(sig)+len(msg))
	signed = append(signed, 1)
	signed = append(signed, sig...)
	signed = append(signed, msg...)
	return signed, nil
}
