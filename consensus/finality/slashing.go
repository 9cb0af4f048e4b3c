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
	"sync"

	hucommon "github.com/hu-network/hunode/common"
)

// DoubleSignPenalty is the PoSe score increment §4.11 applies to a
// masternode caught double-signing, via registry.ApplyPenalty. It is half
// of masternode.MaxPenaltyScore so a single offense does not immediately
// ban the operator but a second one does.
const DoubleSignPenalty uint32 = 50

// Evidence is a detected double-sign: the same MN signed two different
// block hashes at the same height.
type Evidence struct {
	Height    uint64
	MNID      hucommon.MNID
	FirstHash hucommon.Hash
	FirstSig  []byte
	SecondHash hucommon.Hash
	SecondSig  []byte
}

type slashKey struct {
	height uint64
	id     hucommon.MNID
}

type slashEntry struct {
	hash hucommon.Hash
	sig  []byte
}

// SlashingRecorder keeps a rolling window of (height, mn_id) → (block_hash,
// signature) and detects double-signs (C11, §4.11).
type SlashingRecorder struct {
	mu       sync.Mutex
	window   uint64
	entries  map[slashKey]slashEntry
	evidence []Evidence
	onEvidence func(Evidence)
}

func NewSlashingRecorder(window uint64) *SlashingRecorder {
	if window == 0 {
		window = 100
	}
	return &SlashingRecorder{window: window, entries: make(map[slashKey]slashEntry)}
}

// OnEvidence registers a callback invoked whenever a double-sign is
// detected, typically wired to the registry's ApplyPenalty (§4.11: "apply a
// PoSe increment (handled by the registry)").
func (s *SlashingRecorder) OnEvidence(f func(Evidence)) { s.onEvidence = f }

// Observe records a (height, mn_id) → (hash, sig) observation, returning
// true if it conflicts with a previously recorded different block hash at
// the same height — the caller must then reject the new signature.
func (s *SlashingRecorder) Observe(height uint64, id hucommon.MNID, hash hucommon.Hash, sig []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := slashKey{height: height, id: id}
	existing, ok := s.entries[key]
	if !ok {
		s.entries[key] = slashEntry{hash: hash, sig: sig}
		return false
	}
	if existing.hash == hash {
		return false
	}

	ev := Evidence{
		Height:     height,
		MNID:       id,
		FirstHash:  existing.hash,
		FirstSig:   existing.sig,
		SecondHash: hash,
		SecondSig:  sig,
	}
	s.evidence = append(s.evidence, ev)
	if s.onEvidence != nil {
		s.onEvidence(ev)
	}
	return true
}

// Cleanup drops entries below currentHeight − window, to be invoked every
// 50 heights (§4.11).
func (s *SlashingRecorder) Cleanup(currentHeight uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if currentHeight < s.window {
		return
	}
	floor := currentHeight - s.window
	for k := range s.entries {
		if k.height < floor {
			delete(s.entries, k)
		}
	}
}

// EvidenceList returns all evidence recorded so far.
func (s *SlashingRecorder) EvidenceList() []Evidence {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Evidence{}, s.evidence...)
}
