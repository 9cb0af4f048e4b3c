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

// Package quorum selects the finality quorum for a rotation cycle (C4): a
// deterministic subset of unique operators, reselected every
// rotation_length blocks.
package quorum

import (
	"sort"

	hucommon "github.com/hu-network/hunode/common"
	"github.com/hu-network/hunode/crypto"
	"github.com/hu-network/hunode/params"
)

// Operator is a candidate quorum member: one representative MN per unique
// operator key (the operator-centric model, §3/§9).
type Operator struct {
	PubKey          hucommon.PubKey
	RepresentedByMN hucommon.MNID
}

// Quorum is the selected set of operators for a rotation cycle.
type Quorum struct {
	CycleIndex uint64
	Members    []hucommon.PubKey
}

// CycleIndex computes height / rotation_length.
func CycleIndex(p params.NetworkParams, height uint64) uint64 {
	if p.RotationLength == 0 {
		return 0
	}
	return height / p.RotationLength
}

// Select implements §4.4: seed = SHA256(prev_cycle_block_hash ∥
// cycle_index ∥ "HU_QUORUM"); score = SHA256(seed ∥ operator_pubkey);
// sort descending, exclude the producer's operator, take the top
// quorum_size.
func Select(p params.NetworkParams, prevCycleBlockHash hucommon.Hash, cycleIndex uint64, operators []Operator, excludeProducerOperator hucommon.PubKey) Quorum {
	seed := seedFor(prevCycleBlockHash, cycleIndex)

	type scored struct {
		pub   hucommon.PubKey
		score hucommon.Hash
	}
	candidates := make([]scored, 0, len(operators))
	seen := make(map[hucommon.PubKey]bool)
	for _, op := range operators {
		if op.PubKey == excludeProducerOperator {
			continue
		}
		if seen[op.PubKey] {
			continue
		}
		seen[op.PubKey] = true
		candidates = append(candidates, scored{pub: op.PubKey, score: scoreFor(seed, op.PubKey)})
	}

	sort.Slice(candidates, func(i, j int) bool {
		cmp := compareHash(candidates[i].score, candidates[j].score)
		if cmp != 0 {
			return cmp > 0
		}
		return candidates[i].pub.String() < candidates[j].pub.String()
	})

	n := p.QuorumSize
	if n > len(candidates) {
		n = len(candidates)
	}
	members := make([]hucommon.PubKey, n)
	for i := 0; i < n; i++ {
		members[i] = candidates[i].pub
	}
	return Quorum{CycleIndex: cycleIndex, Members: members}
}

// IsMember answers "is this operator in the quorum for this block?" (§4.4).
func (q Quorum) IsMember(pub hucommon.PubKey) bool {
	for _, m := range q.Members {
		if m == pub {
			return true
		}
	}
	return false
}

func seedFor(prevCycleBlockHash hucommon.Hash, cycleIndex uint64) hucommon.Hash {
	buf := make([]byte, 0, hucommon.HashLength+8+len("HU_QUORUM"))
	buf = append(buf, prevCycleBlockHash.Bytes()...)
	buf = appendUint64(buf, cycleIndex)
	buf = append(buf, "HU_QUORUM"...)
	return crypto.Sha256(buf)
}

func scoreFor(seed hucommon.Hash, pub hucommon.PubKey) hucommon.Hash {
	buf := make([]byte, 0, hucommon.HashLength+hucommon.PubKeyLength)
	buf = append(buf, seed.Bytes()...)
	buf = append(buf, pub.Bytes()...)
	return crypto.Sha256(buf)
}

func appendUint64(buf []byte, v uint64) []byte {
	return append(buf,
		byte(v>>56), byte(v>>48), byte(v>>40), byte(v>>32),
		byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

func compareHash(a, b hucommon.Hash) int {
	for i := range a {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}
