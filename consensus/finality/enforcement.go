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

	"github.com/pkg/errors"

	hucommon "github.com/hu-network/hunode/common"
)

var (
	ErrConflictsWithFinal = errors.New("finality: conflicts with an already-final block at this height")
	ErrReorgUnseatsFinal  = errors.New("finality: reorg fork point is at or below a final ancestor")
)

// Enforcement implements C6: once a height is final, a conflicting block
// at that height is rejected, and any reorg whose fork point would unseat
// a final ancestor is refused.
type Enforcement struct {
	mu               sync.RWMutex
	finalHashByHeight map[uint64]hucommon.Hash
	highest           uint64
}

func NewEnforcement() *Enforcement {
	return &Enforcement{finalHashByHeight: make(map[uint64]hucommon.Hash)}
}

// MarkFinal records that height/hash has reached finality. Finality is
// monotonic (§5): once recorded, a height's mapping never changes.
func (e *Enforcement) MarkFinal(height uint64, hash hucommon.Hash) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.finalHashByHeight[height]; ok {
		return
	}
	e.finalHashByHeight[height] = hash
	if height > e.highest {
		e.highest = height
	}
}

// CheckNewBlock rejects a block whose (height, hash) conflicts with an
// already-final record at that height (§4.6a).
func (e *Enforcement) CheckNewBlock(height uint64, hash hucommon.Hash) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if final, ok := e.finalHashByHeight[height]; ok && final != hash {
		return ErrConflictsWithFinal
	}
	return nil
}

// CheckReorg rejects a proposed reorg whose fork point is at or below the
// highest final height (§4.6b): unseating a final ancestor is refused.
func (e *Enforcement) CheckReorg(forkPointHeight uint64) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if forkPointHeight <= e.highest {
		if _, ok := e.finalHashByHeight[forkPointHeight]; ok || forkPointHeight < e.highest {
			return ErrReorgUnseatsFinal
		}
	}
	return nil
}

// HighestFinal reports the highest height known to be final, reported to
// the sync gate at boot so production can resume without re-collecting
// signatures (§4.6).
func (e *Enforcement) HighestFinal() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.highest
}

// Hydrate scans the finality store and rebuilds the final-height index,
// the boot-time recovery path of §4.6.
func (e *Enforcement) Hydrate(store *Store) error {
	return store.ScanAll(func(r *Record) error {
		if r.Final {
			e.MarkFinal(r.Height, r.BlockHash)
		}
		return nil
	})
}
