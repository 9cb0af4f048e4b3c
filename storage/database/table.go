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

import "github.com/syndtr/goleveldb/leveldb/iterator"

// Table is a Database restricted to keys sharing a prefix, without closing
// the underlying store on Close. The settlement store's "V"/"R"/"G"/"U"/"T"
// prefixes (§6) and the HTLC store's hashlock indices are each one Table
// over a single shared Database.
type Table struct {
	db     Database
	prefix []byte
}

func NewTable(db Database, prefix string) *Table {
	return &Table{db: db, prefix: []byte(prefix)}
}

func (t *Table) key(k []byte) []byte {
	return append(append([]byte{}, t.prefix...), k...)
}

func (t *Table) Put(key, value []byte) error { return t.db.Put(t.key(key), value) }

func (t *Table) Has(key []byte) (bool, error) { return t.db.Has(t.key(key)) }

func (t *Table) Get(key []byte) ([]byte, error) { return t.db.Get(t.key(key)) }

func (t *Table) Delete(key []byte) error { return t.db.Delete(t.key(key)) }

func (t *Table) NewIteratorWithPrefix(prefix []byte) iterator.Iterator {
	return t.db.NewIteratorWithPrefix(t.key(prefix))
}

func (t *Table) Close() {}

func (t *Table) NewBatch() Batch {
	return &tableBatch{batch: t.db.NewBatch(), prefix: t.prefix}
}

type tableBatch struct {
	batch  Batch
	prefix []byte
}

func (tb *tableBatch) key(k []byte) []byte {
	return append(append([]byte{}, tb.prefix...), k...)
}

func (tb *tableBatch) Put(key, value []byte) error { return tb.batch.Put(tb.key(key), value) }

func (tb *tableBatch) Delete(key []byte) error { return tb.batch.Delete(tb.key(key)) }

func (tb *tableBatch) Write() error { return tb.batch.Write() }

func (tb *tableBatch) ValueSize() int { return tb.batch.ValueSize() }

func (tb *tableBatch) Reset() { tb.batch.Reset() }
