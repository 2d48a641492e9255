// (c) 2024, SCREAMSOCIETY. All rights reserved.
// See the file LICENSE for licensing terms.

package instruction

import (
	"fmt"

	"github.com/SCREAMSOCIETY/SolanaBurner-sub000/cnft"
)

// Message serializes [plan] as a single-instruction legacy transaction
// message ready for external signing. [payer] funds the transaction fee and
// is always the first (signing, writable) account; [recentBlockhash] must be
// fetched after proof resolution so the freshness windows of hash and proof
// overlap.
func Message(plan *cnft.InstructionPlan, payer cnft.Pubkey, recentBlockhash cnft.Hash256) ([]byte, error) {
	if plan == nil || len(plan.Accounts) == 0 {
		return nil, fmt.Errorf("%w: empty instruction plan", cnft.ErrInstructionBuild)
	}

	type slot struct {
		key      cnft.Pubkey
		signer   bool
		writable bool
	}
	var slots []slot
	index := make(map[cnft.Pubkey]int)
	add := func(key cnft.Pubkey, signer, writable bool) {
		if i, ok := index[key]; ok {
			slots[i].signer = slots[i].signer || signer
			slots[i].writable = slots[i].writable || writable
			return
		}
		index[key] = len(slots)
		slots = append(slots, slot{key: key, signer: signer, writable: writable})
	}

	add(payer, true, true)
	for _, acct := range plan.Accounts {
		add(acct.Address, acct.IsSigner, acct.IsWritable)
	}
	add(plan.ProgramID, false, false)

	// Message account order: writable signers, readonly signers, writable
	// non-signers, readonly non-signers. First appearance wins within each
	// group.
	var ordered []slot
	for _, pick := range []func(slot) bool{
		func(s slot) bool { return s.signer && s.writable },
		func(s slot) bool { return s.signer && !s.writable },
		func(s slot) bool { return !s.signer && s.writable },
		func(s slot) bool { return !s.signer && !s.writable },
	} {
		for _, s := range slots {
			if pick(s) {
				ordered = append(ordered, s)
			}
		}
	}
	position := make(map[cnft.Pubkey]uint8, len(ordered))
	var numSigners, numReadonlySigned, numReadonlyUnsigned uint8
	for i, s := range ordered {
		position[s.key] = uint8(i)
		if s.signer {
			numSigners++
			if !s.writable {
				numReadonlySigned++
			}
		} else if !s.writable {
			numReadonlyUnsigned++
		}
	}

	var msg []byte
	msg = append(msg, numSigners, numReadonlySigned, numReadonlyUnsigned)
	msg = appendCompactU16(msg, len(ordered))
	for _, s := range ordered {
		msg = append(msg, s.key[:]...)
	}
	msg = append(msg, recentBlockhash[:]...)

	msg = appendCompactU16(msg, 1)
	msg = append(msg, position[plan.ProgramID])
	msg = appendCompactU16(msg, len(plan.Accounts))
	for _, acct := range plan.Accounts {
		msg = append(msg, position[acct.Address])
	}
	msg = appendCompactU16(msg, len(plan.Payload))
	msg = append(msg, plan.Payload...)
	return msg, nil
}

// appendCompactU16 appends the variable-length shortvec encoding of [v].
func appendCompactU16(buf []byte, v int) []byte {
	for {
		if v < 0x80 {
			return append(buf, byte(v))
		}
		buf = append(buf, byte(v&0x7f)|0x80)
		v >>= 7
	}
}
