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

package database

import (
	"sort"
	"strings"
	"sync"

	ldberr "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// MemDatabase is an in-memory Database for tests and ephemeral nodes,
// mirroring the teacher's MemDatabase used throughout its storage tests.
type MemDatabase struct {
	mu sync.RWMutex
	m  map[string][]byte
}

func NewMemDatabase() *MemDatabase {
	return &MemDatabase{m: make(map[string][]byte)}
}

func (db *MemDatabase) Put(key, value []byte) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	cp := make([]byte, len(value))
	copy(cp, value)
	db.m[string(key)] = cp
	return nil
}

func (db *MemDatabase) Has(key []byte) (bool, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	_, ok := db.m[string(key)]
	return ok, nil
}

func (db *MemDatabase) Get(key []byte) ([]byte, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	v, ok := db.m[string(key)]
	if !ok {
		return nil, ldberr.ErrNotFound
	}
	cp := make([]byte, len(v))
	copy(cp, v)
	return cp, nil
}

func (db *MemDatabase) Delete(key []byte) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	delete(db.m, string(key))
	return nil
}

func (db *MemDatabase) Close() {}

func (db *MemDatabase) NewBatch() Batch {
	return &memBatch{db: db}
}

func (db *MemDatabase) NewIteratorWithPrefix(prefix []byte) iterator.Iterator {
	db.mu.RLock()
	defer db.mu.RUnlock()
	p := string(prefix)
	keys := make([]string, 0)
	for k := range db.m {
		if strings.HasPrefix(k, p) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	entries := make([]struct{ k, v []byte }, len(keys))
	for i, k := range keys {
		entries[i].k = []byte(k)
		entries[i].v = db.m[k]
	}
	return &memIterator{entries: entries, pos: -1}
}

type memIterator struct {
	entries []struct{ k, v []byte }
	pos     int
}

func (it *memIterator) First() bool { it.pos = 0; return it.pos < len(it.entries) }
func (it *memIterator) Last() bool  { it.pos = len(it.entries) - 1; return it.pos >= 0 }
func (it *memIterator) Seek(key []byte) bool {
	for i, e := range it.entries {
		if string(e.k) >= string(key) {
			it.pos = i
			return true
		}
	}
	it.pos = len(it.entries)
	return false
}
func (it *memIterator) Next() bool { it.pos++; return it.pos < len(it.entries) }
func (it *memIterator) Prev() bool { it.pos--; return it.pos >= 0 }
func (it *memIterator) Key() []byte {
	if it.pos < 0 || it.pos >= len(it.entries) {
		return nil
	}
	return it.entries[it.pos].k
}
func (it *memIterator) Value() []byte {
	if it.pos < 0 || it.pos >= len(it.entries) {
		return nil
	}
	return it.entries[it.pos].v
}
func (it *memIterator) Release()                   {}
func (it *memIterator) SetReleaser(_ util.Releaser) {}
func (it *memIterator) Valid() bool                { return it.pos >= 0 && it.pos < len(it.entries) }
func (it *memIterator) Error() error               { return nil }

type memBatch struct {
	db  *MemDatabase
	ops []func()
}

func (b *memBatch) Put(key, value []byte) error {
	k := append([]byte{}, key...)
	v := append([]byte{}, value...)
	b.ops = append(b.ops, func() { b.db.m[string(k)] = v })
	return nil
}

func (b *memBatch) Delete(key []byte) error {
	k := append([]byte{}, key...)
	b.ops = append(b.ops, func() { delete(b.db.m, string(k)) })
	return nil
}

func (b *memBatch) Write() error {
	b.db.mu.Lock()
	defer b.db.mu.Unlock()
	for _, op := range b.ops {
		op()
	}
	return nil
}

func (b *memBatch) ValueSize() int { return len(b.ops) }

func (b *memBatch) Reset() { b.ops = nil }
