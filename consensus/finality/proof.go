// Copyright 2019 The klaytn Authors
// This file is part of the klaytn library.
//
// The klaytn library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The klaytn library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the klaytn library. If not, see <http://www.gnu.org/licenses/>.

package finality

import (
	"github.com/pkg/errors"

	hucommon "github.com/hu-network/hunode/common"
	hucrypto "github.com/hu-network/hunode/crypto"
)

// SignerState pairs a signing MN with its operator key, as carried in the
// proof (§4.10).
type SignerState struct {
	MNID           hucommon.MNID
	OperatorPubKey hucommon.PubKey
}

// Proof is the light-client finality proof of §4.10.
type Proof struct {
	BlockHash     hucommon.Hash
	Height        uint64
	QuorumSize    int
	Threshold     int
	Signatures    [][]byte
	SignerStates  []SignerState
}

// BuildProof assembles a Proof from a finality record and the operator-key
// lookup used to populate each signer's state.
func BuildProof(r *Record, quorumSize, threshold int, resolveOp func(hucommon.MNID) (hucommon.PubKey, bool)) (Proof, error) {
	p := Proof{
		BlockHash:  r.BlockHash,
		Height:     r.Height,
		QuorumSize: quorumSize,
		Threshold:  threshold,
	}
	for id, sig := range r.Votes {
		pub, ok := resolveOp(id)
		if !ok {
			return Proof{}, errors.Errorf("finality: no operator key for signer %s", id.String())
		}
		p.Signatures = append(p.Signatures, sig)
		p.SignerStates = append(p.SignerStates, SignerState{MNID: id, OperatorPubKey: pub})
	}
	return p, nil
}

// VerifyProof implements §4.10's verifier: reconstruct "HUSIG" || block_hash,
// recover the public key from each compact signature, check it equals the
// claimed signer's operator key, and require at least threshold valid
// signatures. If knownMNs is non-nil, each signer MN must also appear in it.
func VerifyProof(p Proof, knownMNs map[hucommon.MNID]bool) error {
	if len(p.Signatures) != len(p.SignerStates) {
		return errors.New("finality: proof signature/signer-state count mismatch")
	}
	msg := hucrypto.HUSIGMessage(p.BlockHash)

	valid := 0
	for i, sig := range p.Signatures {
		state := p.SignerStates[i]
		if knownMNs != nil && !knownMNs[state.MNID] {
			continue
		}
		recovered, err := hucrypto.CompactRecover(msg, sig)
		if err != nil {
			continue
		}
		if recovered == state.OperatorPubKey {
			valid++
		}
	}
	if valid < p.Threshold {
		return errors.Errorf("finality: proof has %d valid signatures, need %d", valid, p.Threshold)
	}
	return nil
}
