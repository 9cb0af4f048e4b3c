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

// Package finality implements the finality signature aggregator (C5),
// finality enforcement (C6), the light-client finality proof (C10), and
// the double-sign / slashing recorder (C11).
package finality

import (
	hucommon "github.com/hu-network/hunode/common"
	"github.com/hu-network/hunode/log"
)

var logger = log.NewModuleLogger(log.ConsensusFinality)

// Vote is one MN's compact signature over "HUSIG" || block_hash.
type Vote struct {
	MNID hucommon.MNID
	Sig  []byte
}

// Record is the finality record for one block height/hash pair: the set
// of MN signatures collected so far.
type Record struct {
	Height    uint64
	BlockHash hucommon.Hash
	Votes     map[hucommon.MNID][]byte
	Final     bool
}

func newRecord(height uint64, hash hucommon.Hash) *Record {
	return &Record{Height: height, BlockHash: hash, Votes: make(map[hucommon.MNID][]byte)}
}

// SignatureCount returns the number of distinct MN signatures, the unit
// §4.5 counts threshold against ("raw MN signatures, not unique operators").
func (r *Record) SignatureCount() int { return len(r.Votes) }
