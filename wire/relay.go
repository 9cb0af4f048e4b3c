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

package wire

import (
	lru "github.com/hashicorp/golang-lru"

	hucommon "github.com/hu-network/hunode/common"
	"github.com/hu-network/hunode/log"
)

var logger = log.NewModuleLogger(log.Wire)

const inmemoryPeerSignatureSets = 256

// relayKey identifies one (block, signer) pair for the once-per-pair relay
// policy of §6.
type relayKey struct {
	block  hucommon.Hash
	signer hucommon.MNID
}

// Relay implements §6's relay policy: echo a finality signature to every
// connected peer except the sender, once per (block, signer) pair. It
// mirrors the teacher's Gossip/recentMessages idiom
// (consensus/istanbul/backend/backend.go) substituting an ARC cache keyed
// per peer for the per-peer "already sent" set.
type Relay struct {
	broadcaster Broadcaster
	// relayed tracks, per peer ID, which (block, signer) pairs have
	// already been sent to that peer.
	relayed *lru.ARCCache
}

// NewRelay builds a Relay over the given Broadcaster.
func NewRelay(b Broadcaster) *Relay {
	cache, _ := lru.NewARC(inmemoryPeerSignatureSets)
	return &Relay{broadcaster: b, relayed: cache}
}

// Echo sends sig to every connected peer except from (identified by peer
// ID), skipping peers that have already received this exact (block,
// signer) pair.
func (r *Relay) Echo(from string, sig FinalitySignature) {
	key := relayKey{block: sig.BlockHash, signer: sig.SignerID}

	for _, peer := range r.broadcaster.GetPeers() {
		if peer.ID() == from {
			continue
		}
		if r.alreadySent(peer.ID(), key) {
			continue
		}
		if err := peer.Send(FinalitySigMsg, sig); err != nil {
			logger.Warn("relay send failed", "peer", peer.ID(), "err", err)
			continue
		}
		r.markSent(peer.ID(), key)
	}
}

func (r *Relay) alreadySent(peerID string, key relayKey) bool {
	seen, ok := r.relayed.Get(peerID)
	if !ok {
		return false
	}
	set, _ := seen.(*lru.ARCCache)
	_, sent := set.Get(key)
	return sent
}

func (r *Relay) markSent(peerID string, key relayKey) {
	seen, ok := r.relayed.Get(peerID)
	var set *lru.ARCCache
	if ok {
		set, _ = seen.(*lru.ARCCache)
	} else {
		set, _ = lru.NewARC(inmemoryPeerSignatureSets)
	}
	set.Add(key, true)
	r.relayed.Add(peerID, set)
}
