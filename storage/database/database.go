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

// Package database is the key-value abstraction every on-disk store in §6
// is built on: Settlement, HTLC, Finality, Burn-claim, and BTC-headers each
// open one Database (or share one and wrap it in a prefixed Table).
package database

import "github.com/syndtr/goleveldb/leveldb/iterator"

// Database is the minimal KV contract the settlement, HTLC, and finality
// stores are built against, adapted from the teacher's levelDB type in
// storage/database/leveldb_database.go.
type Database interface {
	Put(key, value []byte) error
	Has(key []byte) (bool, error)
	Get(key []byte) ([]byte, error)
	Delete(key []byte) error
	NewBatch() Batch
	NewIteratorWithPrefix(prefix []byte) iterator.Iterator
	Close()
}

// Batch accumulates writes for an atomic commit (§4.8: Settlement, HTLC, and
// Burn-Claim changes are staged in batches before the all-committed marker).
type Batch interface {
	Put(key, value []byte) error
	Delete(key []byte) error
	Write() error
	ValueSize() int
	Reset()
}
