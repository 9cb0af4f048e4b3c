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

package finality

import (
	"encoding/binary"

	"github.com/pkg/errors"
	goleveldberr "github.com/syndtr/goleveldb/leveldb/errors"

	hucommon "github.com/hu-network/hunode/common"
	"github.com/hu-network/hunode/storage/database"
)

// recordKeyPrefix is the "F" byte of §6's Finality DB: keys are F ∥ block_hash.
const recordKeyPrefix = "F"

// Store persists finality records, keyed F ∥ block_hash per §6.
type Store struct {
	table *database.Table
}

func NewStore(db database.Database) *Store {
	return &Store{table: database.NewTable(db, recordKeyPrefix)}
}

func (s *Store) Put(r *Record) error {
	return s.table.Put(r.BlockHash.Bytes(), encodeRecord(r))
}

func (s *Store) Get(hash hucommon.Hash) (*Record, bool, error) {
	raw, err := s.table.Get(hash.Bytes())
	if err != nil {
		if errors.Is(err, goleveldberr.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	r, err := decodeRecord(raw)
	if err != nil {
		return nil, false, err
	}
	return r, true, nil
}

// ScanAll walks every persisted finality record, for boot-time hydration (§4.6).
func (s *Store) ScanAll(f func(*Record) error) error {
	it := s.table.NewIteratorWithPrefix(nil)
	defer it.Release()
	for it.Next() {
		r, err := decodeRecord(it.Value())
		if err != nil {
			return err
		}
		if err := f(r); err != nil {
			return err
		}
	}
	return it.Error()
}

// encodeRecord/decodeRecord use a minimal fixed-layout encoding: no general
// serialization library appears in the retrieval pack that doesn't also
// drag in the teacher's non-fetchable internal ser/rlp fork, so the finality
// record (height, hash, and a small vote map) is encoded by hand, the way
// storage/database's key encoding already is.
func encodeRecord(r *Record) []byte {
	buf := make([]byte, 8+hucommon.HashLength+1, 64)
	binary.BigEndian.PutUint64(buf[0:8], r.Height)
	copy(buf[8:8+hucommon.HashLength], r.BlockHash.Bytes())
	if r.Final {
		buf[8+hucommon.HashLength] = 1
	}
	var countBuf [4]byte
	binary.BigEndian.PutUint32(countBuf[:], uint32(len(r.Votes)))
	buf = append(buf, countBuf[:]...)
	for id, sig := range r.Votes {
		buf = append(buf, id.Bytes()...)
		var sigLen [2]byte
		binary.BigEndian.PutUint16(sigLen[:], uint16(len(sig)))
		buf = append(buf, sigLen[:]...)
		buf = append(buf, sig...)
	}
	return buf
}

func decodeRecord(buf []byte) (*Record, error) {
	if len(buf) < 8+hucommon.HashLength+1+4 {
		return nil, errors.New("finality: truncated record")
	}
	height := binary.BigEndian.Uint64(buf[0:8])
	hash := hucommon.BytesToHash(buf[8 : 8+hucommon.HashLength])
	off := 8 + hucommon.HashLength
	final := buf[off] == 1
	off++
	count := binary.BigEndian.Uint32(buf[off : off+4])
	off += 4

	r := newRecord(height, hash)
	r.Final = final
	for i := uint32(0); i < count; i++ {
		if off+hucommon.HashLength+2 > len(buf) {
			return nil, errors.New("finality: truncated vote entry")
		}
		id := hucommon.BytesToMNID(buf[off : off+hucommon.HashLength])
		off += hucommon.HashLength
		sigLen := int(binary.BigEndian.Uint16(buf[off : off+2]))
		off += 2
		if off+sigLen > len(buf) {
			return nil, errors.New("finality: truncated signature")
		}
		sig := append([]byte{}, buf[off:off+sigLen]...)
		off += sigLen
		r.Votes[id] = sig
	}
	return r, nil
}
