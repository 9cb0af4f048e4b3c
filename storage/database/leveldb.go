// Copyright 2015 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

package database

import (
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/hu-network/hunode/log"
)

var OpenFileLimit = 64

type levelDB struct {
	fn string      // filename for reporting
	db *leveldb.DB // LevelDB instance
	lg log.Logger  // contextual logger tracking the database path
}

func ldbOptions(cacheSizeMB, numHandles int) *opt.Options {
	return &opt.Options{
		OpenFilesCacheCapacity: numHandles,
		BlockCacheCapacity:     cacheSizeMB / 2 * opt.MiB,
		WriteBuffer:            cacheSizeMB / 4 * opt.MiB,
		Filter:                 filter.NewBloomFilter(10),
	}
}

// NewLevelDB opens (or creates) a LevelDB store at file, recovering from a
// corrupted database the way the teacher's NewLDBDatabase does.
func NewLevelDB(file string, cacheSizeMB, numHandles int) (Database, error) {
	lg := log.New("database", file)

	if cacheSizeMB < 16 {
		cacheSizeMB = 16
	}
	if numHandles < 16 {
		numHandles = 16
	}

	db, err := leveldb.OpenFile(file, ldbOptions(cacheSizeMB, numHandles))
	if _, corrupted := err.(*errors.ErrCorrupted); corrupted {
		db, err = leveldb.RecoverFile(file, nil)
	}
	if err != nil {
		return nil, err
	}
	return &levelDB{fn: file, db: db, lg: lg}, nil
}

func (db *levelDB) Put(key, value []byte) error { return db.db.Put(key, value, nil) }

func (db *levelDB) Has(key []byte) (bool, error) { return db.db.Has(key, nil) }

func (db *levelDB) Get(key []byte) ([]byte, error) { return db.db.Get(key, nil) }

func (db *levelDB) Delete(key []byte) error { return db.db.Delete(key, nil) }

func (db *levelDB) NewIteratorWithPrefix(prefix []byte) iterator.Iterator {
	return db.db.NewIterator(util.BytesPrefix(prefix), nil)
}

func (db *levelDB) Close() {
	if err := db.db.Close(); err != nil {
		db.lg.Error("failed to close database", "err", err)
	}
}

func (db *levelDB) NewBatch() Batch {
	return &ldbBatch{db: db.db, b: new(leveldb.Batch)}
}

type ldbBatch struct {
	db   *leveldb.DB
	b    *leveldb.Batch
	size int
}

func (b *ldbBatch) Put(key, value []byte) error {
	b.b.Put(key, value)
	b.size += len(key) + len(value)
	return nil
}

func (b *ldbBatch) Delete(key []byte) error {
	b.b.Delete(key)
	b.size += len(key)
	return nil
}

func (b *ldbBatch) Write() error { return b.db.Write(b.b, nil) }

func (b *ldbBatch) ValueSize() int { return b.size }

func (b *ldbBatch) Reset() {
	b.b.Reset()
	b.size = 0
}
