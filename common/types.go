// Copyright 2018 The klaytn Authors
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

// Package common holds the small set of value types shared by every
// consensus component: hashes, masternode identifiers, and UTXO outpoints.
package common

import (
	"encoding/hex"
	"fmt"
)

// HashLength is the size of a block hash or a registration identifier.
const HashLength = 32

// Hash is a 32-byte, SHA-256-sized digest.
type Hash [HashLength]byte

func BytesToHash(b []byte) Hash {
	var h Hash
	if len(b) > HashLength {
		b = b[len(b)-HashLength:]
	}
	copy(h[HashLength-len(b):], b)
	return h
}

func (h Hash) Bytes() []byte { return h[:] }

func (h Hash) String() string { return hex.EncodeToString(h[:]) }

func (h Hash) IsZero() bool { return h == Hash{} }

// getShardIndex maps a Hash to a shard by its first byte. No sharded cache
// in this repository calls it.
func (h Hash) getShardIndex(shardMask int) int {
	return int(h[0]) & shardMask
}

// MNID is the 32-byte masternode registration identifier (§3, Masternode Record).
type MNID Hash

func BytesToMNID(b []byte) MNID { return MNID(BytesToHash(b)) }

func (id MNID) Bytes() []byte { return id[:] }

func (id MNID) String() string { return hex.EncodeToString(id[:]) }

func (id MNID) IsZero() bool { return id == MNID{} }

func (id MNID) getShardIndex(shardMask int) int {
	return int(id[0]) & shardMask
}

// PubKeyLength is the size of a compressed secp256k1 public key.
const PubKeyLength = 33

// PubKey is a compressed operator public key (§3, Masternode Record).
type PubKey [PubKeyLength]byte

func BytesToPubKey(b []byte) (PubKey, error) {
	var pk PubKey
	if len(b) != PubKeyLength {
		return pk, fmt.Errorf("common: public key must be %d bytes, got %d", PubKeyLength, len(b))
	}
	copy(pk[:], b)
	return pk, nil
}

func (pk PubKey) Bytes() []byte { return pk[:] }

func (pk PubKey) String() string { return hex.EncodeToString(pk[:]) }

func (pk PubKey) IsZero() bool { return pk == PubKey{} }

// Outpoint identifies a UTXO by its creating transaction id and output index.
type Outpoint struct {
	TxID  Hash
	Index uint32
}

func (o Outpoint) String() string {
	return fmt.Sprintf("%s:%d", o.TxID.String(), o.Index)
}

// Bytes returns the canonical encoding used as a store key suffix.
func (o Outpoint) Bytes() []byte {
	b := make([]byte, HashLength+4)
	copy(b, o.TxID[:])
	b[HashLength] = byte(o.Index >> 24)
	b[HashLength+1] = byte(o.Index >> 16)
	b[HashLength+2] = byte(o.Index >> 8)
	b[HashLength+3] = byte(o.Index)
	return b
}

func (o Outpoint) getShardIndex(shardMask int) int {
	return int(o.TxID[0]) & shardMask
}
