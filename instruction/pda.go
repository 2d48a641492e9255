// (c) 2024, SCREAMSOCIETY. All rights reserved.
// See the file LICENSE for licensing terms.

package instruction

import (
	"crypto/sha256"
	"errors"

	"filippo.io/edwards25519"

	"github.com/SCREAMSOCIETY/SolanaBurner-sub000/cnft"
)

// pdaMarker terminates the hash input of a program-derived address so the
// result can never collide with a user-derived key.
var pdaMarker = []byte("ProgramDerivedAddress")

var errNoBumpFound = errors.New("no valid bump seed found")

// DeriveTreeAuthority returns the controlling authority address for [tree]:
// the program-derived address of the tree's pubkey under the Bubblegum
// program. The derivation is one way and deterministic; there is no stored
// secret.
func DeriveTreeAuthority(tree cnft.Pubkey) (cnft.Pubkey, uint8, error) {
	return findProgramAddress([][]byte{tree[:]}, BubblegumProgramID)
}

// findProgramAddress searches bump seeds from 255 downward for the first
// candidate that does not land on the ed25519 curve, so the derived address
// can never have a corresponding private key.
func findProgramAddress(seeds [][]byte, programID cnft.Pubkey) (cnft.Pubkey, uint8, error) {
	for bump := 255; bump >= 0; bump-- {
		h := sha256.New()
		for _, seed := range seeds {
			h.Write(seed)
		}
		h.Write([]byte{uint8(bump)})
		h.Write(programID[:])
		h.Write(pdaMarker)

		var candidate cnft.Pubkey
		copy(candidate[:], h.Sum(nil))
		if !isOnCurve(candidate) {
			return candidate, uint8(bump), nil
		}
	}
	return cnft.Pubkey{}, 0, errNoBumpFound
}

func isOnCurve(pk cnft.Pubkey) bool {
	_, err := new(edwards25519.Point).SetBytes(pk[:])
	return err == nil
}
