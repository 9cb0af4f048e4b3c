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
	"time"
)

// RateLimitWindow is the sliding window over which per-peer finality
// signatures are counted (§4.5, §5).
const RateLimitWindow = 60 * time.Second

// DefaultRateLimit caps accepted signatures per peer per window (§5: "e.g.
// 100/min").
const DefaultRateLimit = 100

// RateLimiter is the per-peer sliding-window signature counter of §4.5
// step 2 and §5's "rate-limit resource". Excess signatures are dropped,
// never grounds for disconnecting the peer.
type RateLimiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	now    func() time.Time
	hits   map[string][]time.Time
}

func NewRateLimiter(limit int) *RateLimiter {
	if limit <= 0 {
		limit = DefaultRateLimit
	}
	return &RateLimiter{
		limit:  limit,
		window: RateLimitWindow,
		now:    time.Now,
		hits:   make(map[string][]time.Time),
	}
}

// Allow records a hit for peerID and reports whether it is within the
// per-peer budget for the current sliding window. The map is pruned for
// peerID on every call, as §5 requires.
func (rl *RateLimiter) Allow(peerID string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	cutoff := now.Add(-rl.window)
	kept := rl.hits[peerID][:0]
	for _, t := range rl.hits[peerID] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	if len(kept) >= rl.limit {
		rl.hits[peerID] = kept
		return false
	}
	kept = append(kept, now)
	rl.hits[peerID] = kept
	return true
}
