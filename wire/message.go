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

// Package wire is the one P2P message addition of §6: a finality signature
// carrying {block_hash, signer_id, sig_bytes}, relayed to every connected
// peer except the sender, once per (block, signer) pair.
package wire

import (
	hucommon "github.com/hu-network/hunode/common"
)

const (
	// FinalitySigMsg is this protocol's single new message code, numbered
	// after the teacher's own istanbul message codes in
	// consensus/istanbul/backend/handler.go.
	FinalitySigMsg = 0x14
)

// FinalitySignature is the wire payload of §6: a single masternode's
// finality vote on a block.
type FinalitySignature struct {
	BlockHash hucommon.Hash
	SignerID  hucommon.MNID
	SigBytes  []byte
}

// Peer is the minimal send capability a connected peer exposes, adapted
// from the teacher's consensus.Peer (consensus/protocol.go).
type Peer interface {
	ID() string
	Send(msgcode uint64, data interface{}) error
}

// Broadcaster enumerates currently connected peers, adapted from the
// teacher's consensus.Broadcaster (consensus/protocol.go): this protocol
// has no validator set to filter by, so it only needs the flat peer list.
type Broadcaster interface {
	GetPeers() []Peer
}
