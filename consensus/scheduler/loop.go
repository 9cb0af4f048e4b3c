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

package scheduler

import (
	"sync"
	"sync/atomic"
	"time"

	hucommon "github.com/hu-network/hunode/common"
	"github.com/hu-network/hunode/params"
)

// Clock lets tests substitute wall-clock time.
type Clock func() time.Time

// ChainView answers the questions the loop needs about the local node:
// the chain tip, the set of confirmed candidates for the next height, and
// whether this node manages id's operator key.
type ChainView interface {
	Tip() PrevBlock
	NextHeight() uint64
	CandidatesAt(nextHeight uint64) []Candidate
	IsManagedLocally(id hucommon.MNID) bool
}

// Producer is invoked when the loop decides the local node should produce;
// it returns an error if production failed.
type Producer func(dec Decision) error

// HAConfig configures the "wait so a primary has first chance" failover
// mode of §4.2.
type HAConfig struct {
	Enabled bool
	Delay   time.Duration
}

// Loop is the cooperative, self-suspending scheduler thread of §5: it
// sleeps in short increments and checks the tip on a slower cadence,
// producing when the local node is the expected producer for the slot
// that the current time maps to.
type Loop struct {
	params   params.NetworkParams
	view     ChainView
	produce  Producer
	now      Clock
	ha       HAConfig
	tickSleep time.Duration
	checkEvery time.Duration

	shutdown int32 // atomic

	mu                 sync.Mutex
	lastProducedHeight uint64
}

func NewLoop(p params.NetworkParams, view ChainView, produce Producer, ha HAConfig) *Loop {
	return &Loop{
		params:     p,
		view:       view,
		produce:    produce,
		now:        time.Now,
		ha:         ha,
		tickSleep:  100 * time.Millisecond,
		checkEvery: 2 * time.Second,
	}
}

// Shutdown sets the process-wide shutdown flag; Run observes it at the
// next loop boundary and returns.
func (l *Loop) Shutdown() { atomic.StoreInt32(&l.shutdown, 1) }

func (l *Loop) isShutdown() bool { return atomic.LoadInt32(&l.shutdown) == 1 }

// Run blocks until Shutdown is called. It is meant to be started on its
// own goroutine, one per node.
func (l *Loop) Run() {
	var sinceCheck time.Duration
	for !l.isShutdown() {
		time.Sleep(l.tickSleep)
		sinceCheck += l.tickSleep
		if sinceCheck < l.checkEvery {
			continue
		}
		sinceCheck = 0
		l.checkAndProduce()
	}
}

// OnNewTip is invoked from the chainstate worker whenever the tip
// advances, in addition to the periodic check (§4.2 "... and on every
// new-tip notification").
func (l *Loop) OnNewTip() {
	if l.isShutdown() {
		return
	}
	l.checkAndProduce()
}

func (l *Loop) checkAndProduce() {
	tip := l.view.Tip()
	next := l.view.NextHeight()

	l.mu.Lock()
	already := l.lastProducedHeight >= next
	l.mu.Unlock()
	if already {
		return
	}

	now := l.now()
	candidates := l.view.CandidatesAt(next)
	dec := Decide(l.params, tip, next, now, candidates)
	if dec.TooEarly || dec.NoCandidates {
		return
	}
	if !l.view.IsManagedLocally(dec.ProducerID) {
		return
	}

	if l.ha.Enabled && l.ha.Delay > 0 {
		time.Sleep(l.ha.Delay)
		if l.isShutdown() {
			return
		}
		reTip := l.view.Tip()
		if reTip.Hash != tip.Hash {
			// A primary produced while we waited; abandon.
			return
		}
	}

	if err := l.produce(dec); err != nil {
		logger.Warn("block production abandoned", "height", next, "err", err)
		return
	}

	l.mu.Lock()
	l.lastProducedHeight = next
	l.mu.Unlock()
}
