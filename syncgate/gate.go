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

// Package syncgate is the Sync-State Gate (C9): whether the node considers
// itself caught up enough to serve and produce, decoupled from finality
// lag (§4.9 — "finality lag does not make the node not synced").
package syncgate

import (
	"time"

	"github.com/hu-network/hunode/log"
	"github.com/hu-network/hunode/params"
)

var logger = log.NewModuleLogger(log.SyncGate)

// State is the snapshot of local chain/network conditions IsSynced judges.
type State struct {
	// LocalHeight is the local chain tip height.
	LocalHeight uint64
	// TipTimestamp is the local tip's block timestamp.
	TipTimestamp time.Time
	// DownloadInProgress is true while a header/block download is active.
	DownloadInProgress bool
	// BestKnownPeerHeight is the highest header height seen from any peer.
	BestKnownPeerHeight uint64
	// LastFinality, if non-zero, is when a block was last finalized.
	LastFinality time.Time
}

// Gate evaluates §4.9's synced/not-synced decision.
type Gate struct {
	params params.NetworkParams
	now    func() time.Time
}

// New builds a Gate for the given network. now defaults to time.Now if nil,
// overridable in tests for deterministic tip-age checks.
func New(p params.NetworkParams, now func() time.Time) *Gate {
	if now == nil {
		now = time.Now
	}
	return &Gate{params: p, now: now}
}

// IsSynced implements §4.9 exactly:
//
//	(a) height <= bootstrap threshold (fresh chain)
//	(b) download not in progress AND best known header within 1 block of
//	    local tip AND tip age <= 2*target_spacing
//	(c) most recent finality was within a short window
//
// and returns false regardless of (a)-(c) if the best known header is more
// than peer_height_tolerance blocks ahead of the local tip. The cold-start
// override — tip age beyond stale_chain_timeout counts as synced — only
// applies when the caller passes ackStalePartition=true, per the operator
// acknowledgment gate decided for this network (§9).
func (g *Gate) IsSynced(s State, ackStalePartition bool) bool {
	if s.BestKnownPeerHeight > s.LocalHeight && s.BestKnownPeerHeight-s.LocalHeight > g.params.PeerHeightTolerance {
		return false
	}

	if s.LocalHeight <= g.params.BootstrapHeight {
		return true
	}

	tipAge := g.now().Sub(s.TipTimestamp)

	if !s.DownloadInProgress &&
		peerWithinOneBlock(s) &&
		tipAge <= 2*g.params.TargetSpacing {
		return true
	}

	if !s.LastFinality.IsZero() && g.now().Sub(s.LastFinality) <= g.params.RecentFinalityWindow {
		return true
	}

	if ackStalePartition && tipAge > g.params.StaleChainTimeout {
		logger.Warn("declaring synced on stale tip under explicit operator acknowledgment",
			"tip_age", tipAge, "stale_chain_timeout", g.params.StaleChainTimeout)
		return true
	}

	return false
}

func peerWithinOneBlock(s State) bool {
	if s.BestKnownPeerHeight <= s.LocalHeight {
		return true
	}
	return s.BestKnownPeerHeight-s.LocalHeight <= 1
}
