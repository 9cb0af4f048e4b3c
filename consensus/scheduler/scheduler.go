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

// Package scheduler computes, for a given previous block and wall-clock
// time, whether a locally-managed masternode is the expected producer for
// the next block (C2).
package scheduler

import (
	"sort"
	"time"

	hucommon "github.com/hu-network/hunode/common"
	"github.com/hu-network/hunode/crypto"
	"github.com/hu-network/hunode/log"
	"github.com/hu-network/hunode/params"
)

var logger = log.NewModuleLogger(log.ConsensusScheduler)

// defaultMaxFallbackSlot clamps the fallback slot index (§4.2) when
// NetworkParams.MaxFallbackSlot is zero.
const defaultMaxFallbackSlot = 360

// PrevBlock is the minimal view of the chain tip the scheduler needs.
type PrevBlock struct {
	Height    uint64
	Hash      hucommon.Hash
	Timestamp time.Time
}

// Candidate is a confirmed, valid masternode eligible to produce.
type Candidate struct {
	ID hucommon.MNID
}

// Decision is the scheduler's answer for a given (prev, now) pair.
type Decision struct {
	Slot          uint64
	AlignedTime   time.Time
	ProducerID    hucommon.MNID
	TooEarly      bool
	NoCandidates  bool
}

// Decide implements §4.2's timing and producer-selection algorithm. next
// reports the next height (prev.Height+1); candidates must already be
// filtered to confirmed+valid MNs except while the bootstrap exception
// applies.
func Decide(p params.NetworkParams, prev PrevBlock, next uint64, now time.Time, candidates []Candidate) Decision {
	minT := prev.Timestamp.Add(p.TargetSpacing)
	if now.Before(minT) {
		return Decision{TooEarly: true}
	}
	if len(candidates) == 0 {
		return Decision{NoCandidates: true}
	}

	dt := now.Sub(minT)

	var slot uint64
	var aligned time.Time
	if dt < p.LeaderTimeout {
		slot = 0
		aligned = alignDown(minT, p.SlotLength)
	} else {
		extra := dt - p.LeaderTimeout
		slot = 1 + uint64(extra/p.FallbackWindow)
		max := p.MaxFallbackSlot
		if max == 0 {
			max = defaultMaxFallbackSlot
		}
		if slot > max {
			slot = max
		}
		raw := minT.Add(p.LeaderTimeout).Add(time.Duration(slot-1) * p.FallbackWindow)
		aligned = alignUp(raw, p.SlotLength)
	}

	bootstrapped := next <= p.BootstrapHeight
	var producer hucommon.MNID
	if bootstrapped {
		producer = topScored(prev.Hash, next, candidates)
		slot = 0
	} else {
		ordered := sortByScore(prev.Hash, next, candidates)
		producer = ordered[int(slot)%len(ordered)].ID
	}

	return Decision{Slot: slot, AlignedTime: aligned, ProducerID: producer}
}

func alignDown(t time.Time, slotLen time.Duration) time.Time {
	if slotLen <= 0 {
		return t
	}
	rem := t.UnixNano() % int64(slotLen)
	return t.Add(-time.Duration(rem))
}

func alignUp(t time.Time, slotLen time.Duration) time.Time {
	if slotLen <= 0 {
		return t
	}
	rem := t.UnixNano() % int64(slotLen)
	if rem == 0 {
		return t
	}
	return t.Add(slotLen - time.Duration(rem))
}

// scored pairs a candidate with its deterministic slot-selection score.
type scored struct {
	ID    hucommon.MNID
	Score hucommon.Hash
}

// scoreOf computes SHA256(prev_block_hash ∥ next_height ∥ mn_id) (§4.2).
func scoreOf(prevHash hucommon.Hash, nextHeight uint64, id hucommon.MNID) hucommon.Hash {
	buf := make([]byte, 0, hucommon.HashLength+8+hucommon.HashLength)
	buf = append(buf, prevHash.Bytes()...)
	buf = append(buf,
		byte(nextHeight>>56), byte(nextHeight>>48), byte(nextHeight>>40), byte(nextHeight>>32),
		byte(nextHeight>>24), byte(nextHeight>>16), byte(nextHeight>>8), byte(nextHeight))
	buf = append(buf, id.Bytes()...)
	return crypto.Sha256(buf)
}

// sortByScore orders candidates descending by score, ties broken by
// ascending lexicographic MN id (§4.2).
func sortByScore(prevHash hucommon.Hash, nextHeight uint64, candidates []Candidate) []scored {
	out := make([]scored, len(candidates))
	for i, c := range candidates {
		out[i] = scored{ID: c.ID, Score: scoreOf(prevHash, nextHeight, c.ID)}
	}
	sort.Slice(out, func(i, j int) bool {
		cmp := compareHash(out[i].Score, out[j].Score)
		if cmp != 0 {
			return cmp > 0
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

func topScored(prevHash hucommon.Hash, nextHeight uint64, candidates []Candidate) hucommon.MNID {
	ordered := sortByScore(prevHash, nextHeight, candidates)
	return ordered[0].ID
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
