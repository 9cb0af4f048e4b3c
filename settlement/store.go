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

package settlement

import (
	"encoding/binary"

	"github.com/pkg/errors"
	goleveldberr "github.com/syndtr/goleveldb/leveldb/errors"

	hucommon "github.com/hu-network/hunode/common"
	"github.com/hu-network/hunode/storage/database"
)

// One-byte key prefixes of the Settlement store (§6).
const (
	prefixVault       = "V"
	prefixReceipt     = "R"
	prefixSnapshot    = "G"
	prefixUnlockUndo  = "U"
	prefixTransferUndo = "T"
	prefixBestBlock   = "B"
	prefixAllCommitted = "A"
	prefixBurnScanA   = "H"
	prefixBurnScanB   = "Z"
)

// Key prefixes of the HTLC store, kept in the same underlying Database
// (§6 describes it as a second logical store; nothing requires a second
// file).
const (
	prefixHTLCRecord     = "L"
	prefixHashlockIndex1 = "1"
	prefixHashlockIndex2 = "2"
	prefixHashlockIndex3 = "3"
	prefixHTLCCreateUndo = "C"
	prefixHTLCResolveUndo = "X"
)

// Store is the Settlement Store + HTLC Store of §6, both backed by one
// shared database.Database, keyed through database.Table's one-byte
// prefix wrapper (adapted from the teacher's table/tableBatch idiom).
type Store struct {
	db database.Database

	vaults       *database.Table
	receipts     *database.Table
	snapshots    *database.Table
	unlockUndo   *database.Table
	transferUndo *database.Table
	bestBlock    *database.Table
	allCommitted *database.Table

	htlcs          *database.Table
	hashlockIndex1 *database.Table
	hashlockIndex2 *database.Table
	hashlockIndex3 *database.Table
	htlcCreateUndo *database.Table
	htlcResolveUndo *database.Table
}

func NewStore(db database.Database) *Store {
	return &Store{
		db:              db,
		vaults:          database.NewTable(db, prefixVault),
		receipts:        database.NewTable(db, prefixReceipt),
		snapshots:       database.NewTable(db, prefixSnapshot),
		unlockUndo:      database.NewTable(db, prefixUnlockUndo),
		transferUndo:    database.NewTable(db, prefixTransferUndo),
		bestBlock:       database.NewTable(db, prefixBestBlock),
		allCommitted:    database.NewTable(db, prefixAllCommitted),
		htlcs:           database.NewTable(db, prefixHTLCRecord),
		hashlockIndex1:  database.NewTable(db, prefixHashlockIndex1),
		hashlockIndex2:  database.NewTable(db, prefixHashlockIndex2),
		hashlockIndex3:  database.NewTable(db, prefixHashlockIndex3),
		htlcCreateUndo:  database.NewTable(db, prefixHTLCCreateUndo),
		htlcResolveUndo: database.NewTable(db, prefixHTLCResolveUndo),
	}
}

func notFound(err error) bool { return errors.Is(err, goleveldberr.ErrNotFound) }

// --- Vaults ---

func (s *Store) PutVault(v Vault) error {
	return s.vaults.Put(v.Outpoint.Bytes(), encodeVault(v))
}

func (s *Store) GetVault(op hucommon.Outpoint) (Vault, bool, error) {
	raw, err := s.vaults.Get(op.Bytes())
	if err != nil {
		if notFound(err) {
			return Vault{}, false, nil
		}
		return Vault{}, false, err
	}
	return decodeVault(op, raw), true, nil
}

func (s *Store) DeleteVault(op hucommon.Outpoint) error { return s.vaults.Delete(op.Bytes()) }

// --- Receipts ---

func (s *Store) PutReceipt(r Receipt) error {
	return s.receipts.Put(r.Outpoint.Bytes(), encodeReceipt(r))
}

func (s *Store) GetReceipt(op hucommon.Outpoint) (Receipt, bool, error) {
	raw, err := s.receipts.Get(op.Bytes())
	if err != nil {
		if notFound(err) {
			return Receipt{}, false, nil
		}
		return Receipt{}, false, err
	}
	return decodeReceipt(op, raw), true, nil
}

func (s *Store) DeleteReceipt(op hucommon.Outpoint) error { return s.receipts.Delete(op.Bytes()) }

// --- HTLCs ---

func (s *Store) PutHTLC(h HTLCRecord) error {
	if err := s.htlcs.Put(h.Outpoint.Bytes(), encodeHTLC(h)); err != nil {
		return err
	}
	idx := s.indexTableFor(len(h.Hashlocks))
	if len(h.Hashlocks) == 1 {
		return idx[0].Put(h.Hashlocks[0].Bytes(), h.Outpoint.Bytes())
	}
	for i, lock := range h.Hashlocks {
		if err := idx[i].Put(lock.Bytes(), h.Outpoint.Bytes()); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) indexTableFor(numLocks int) []*database.Table {
	if numLocks == 3 {
		return []*database.Table{s.hashlockIndex1, s.hashlockIndex2, s.hashlockIndex3}
	}
	return []*database.Table{s.hashlockIndex1}
}

// PutHTLCResolved persists a claimed/refunded record without touching the
// hashlock index, which must already have been erased via
// EraseHashlockIndex before the status transition.
func (s *Store) PutHTLCResolved(h HTLCRecord) error {
	return s.htlcs.Put(h.Outpoint.Bytes(), encodeHTLC(h))
}

// DeleteHTLC removes a record's htlcs-table entry, for undoing a covenant
// follow-up HTLC instantiated by a reverted HTLC_CLAIM. It does not touch
// the hashlock index; callers erase that separately via EraseHashlockIndex.
func (s *Store) DeleteHTLC(op hucommon.Outpoint) error { return s.htlcs.Delete(op.Bytes()) }

func (s *Store) GetHTLC(op hucommon.Outpoint) (HTLCRecord, bool, error) {
	raw, err := s.htlcs.Get(op.Bytes())
	if err != nil {
		if notFound(err) {
			return HTLCRecord{}, false, nil
		}
		return HTLCRecord{}, false, err
	}
	return decodeHTLC(op, raw), true, nil
}

func (s *Store) LookupByHashlock(slot int, lock hucommon.Hash) (hucommon.Outpoint, bool, error) {
	var table *database.Table
	switch slot {
	case 0:
		table = s.hashlockIndex1
	case 1:
		table = s.hashlockIndex2
	case 2:
		table = s.hashlockIndex3
	default:
		return hucommon.Outpoint{}, false, errors.Errorf("settlement: invalid hashlock slot %d", slot)
	}
	raw, err := table.Get(lock.Bytes())
	if err != nil {
		if notFound(err) {
			return hucommon.Outpoint{}, false, nil
		}
		return hucommon.Outpoint{}, false, err
	}
	return decodeOutpoint(raw), true, nil
}

func (s *Store) EraseHashlockIndex(h HTLCRecord) error {
	idx := s.indexTableFor(len(h.Hashlocks))
	for i, lock := range h.Hashlocks {
		table := idx[0]
		if len(idx) == 3 {
			table = idx[i]
		}
		if err := table.Delete(lock.Bytes()); err != nil {
			return err
		}
	}
	return nil
}

// --- Snapshots ---

func (s *Store) PutSnapshot(snap Snapshot) error {
	return s.snapshots.Put(heightKey(snap.Height), encodeSnapshot(snap))
}

func (s *Store) GetSnapshot(height uint64) (Snapshot, bool, error) {
	raw, err := s.snapshots.Get(heightKey(height))
	if err != nil {
		if notFound(err) {
			return Snapshot{}, false, nil
		}
		return Snapshot{}, false, err
	}
	return decodeSnapshot(raw), true, nil
}

// --- Best-block / all-committed markers (§4.8) ---

func (s *Store) PutBestBlock(hash hucommon.Hash) error {
	return s.bestBlock.Put([]byte("best"), hash.Bytes())
}

func (s *Store) GetBestBlock() (hucommon.Hash, bool, error) {
	raw, err := s.bestBlock.Get([]byte("best"))
	if err != nil {
		if notFound(err) {
			return hucommon.Hash{}, false, nil
		}
		return hucommon.Hash{}, false, err
	}
	return hucommon.BytesToHash(raw), true, nil
}

func (s *Store) PutAllCommitted(hash hucommon.Hash) error {
	return s.allCommitted.Put([]byte("marker"), hash.Bytes())
}

func (s *Store) GetAllCommitted() (hucommon.Hash, bool, error) {
	raw, err := s.allCommitted.Get([]byte("marker"))
	if err != nil {
		if notFound(err) {
			return hucommon.Hash{}, false, nil
		}
		return hucommon.Hash{}, false, err
	}
	return hucommon.BytesToHash(raw), true, nil
}

// WipeAll deletes every key across every logical table the Settlement and
// HTLC stores own, for commitdb's rebuild-from-chain path (§4.8): the
// snapshot and undo history are discarded, then the genesis snapshot is
// written and every block is replayed.
func (s *Store) WipeAll() error {
	tables := []*database.Table{
		s.vaults, s.receipts, s.snapshots, s.unlockUndo, s.transferUndo,
		s.bestBlock, s.allCommitted, s.htlcs, s.hashlockIndex1,
		s.hashlockIndex2, s.hashlockIndex3, s.htlcCreateUndo, s.htlcResolveUndo,
	}
	for _, t := range tables {
		iter := t.NewIteratorWithPrefix(nil)
		var keys [][]byte
		for iter.Next() {
			keys = append(keys, append([]byte{}, iter.Key()...))
		}
		iter.Release()
		for _, k := range keys {
			// Iterator keys already carry the table prefix.
			if err := s.db.Delete(k); err != nil {
				return err
			}
		}
	}
	return nil
}

func heightKey(h uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, h)
	return buf
}

func decodeOutpoint(b []byte) hucommon.Outpoint {
	var op hucommon.Outpoint
	op.TxID = hucommon.BytesToHash(b[:hucommon.HashLength])
	op.Index = binary.BigEndian.Uint32(b[hucommon.HashLength:])
	return op
}

func encodeVault(v Vault) []byte {
	buf := make([]byte, 16)
	binary.BigEndian.PutUint64(buf[0:8], v.Amount)
	binary.BigEndian.PutUint64(buf[8:16], v.LockHeight)
	return buf
}

func decodeVault(op hucommon.Outpoint, raw []byte) Vault {
	return Vault{
		Outpoint:   op,
		Amount:     binary.BigEndian.Uint64(raw[0:8]),
		LockHeight: binary.BigEndian.Uint64(raw[8:16]),
	}
}

func encodeReceipt(r Receipt) []byte {
	buf := make([]byte, 16)
	binary.BigEndian.PutUint64(buf[0:8], r.Amount)
	binary.BigEndian.PutUint64(buf[8:16], r.CreateHeight)
	return buf
}

func decodeReceipt(op hucommon.Outpoint, raw []byte) Receipt {
	return Receipt{
		Outpoint:     op,
		Amount:       binary.BigEndian.Uint64(raw[0:8]),
		CreateHeight: binary.BigEndian.Uint64(raw[8:16]),
	}
}

func encodeSnapshot(s Snapshot) []byte {
	buf := make([]byte, 0, 8+hucommon.HashLength+8*5)
	buf = append(buf, heightKey(s.Height)...)
	buf = append(buf, s.BlockHash.Bytes()...)
	for _, v := range []uint64{s.M0Vaulted, s.M1Supply, s.M0Shielded, s.M0TotalSupply, s.BurnClaimsBlock} {
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], v)
		buf = append(buf, b[:]...)
	}
	return buf
}

func decodeSnapshot(raw []byte) Snapshot {
	off := 0
	height := binary.BigEndian.Uint64(raw[off : off+8])
	off += 8
	hash := hucommon.BytesToHash(raw[off : off+hucommon.HashLength])
	off += hucommon.HashLength
	vals := make([]uint64, 5)
	for i := range vals {
		vals[i] = binary.BigEndian.Uint64(raw[off : off+8])
		off += 8
	}
	return Snapshot{
		Height:          height,
		BlockHash:       hash,
		M0Vaulted:       vals[0],
		M1Supply:        vals[1],
		M0Shielded:      vals[2],
		M0TotalSupply:   vals[3],
		BurnClaimsBlock: vals[4],
	}
}

// encodeHTLC/decodeHTLC use the same hand-rolled fixed-layout convention
// as the finality store (see consensus/finality/store.go) for the same
// reason: no fetchable general serialization library is grounded for this
// retrieval pack beyond what storage/database's own key encoding already
// does by hand.
func encodeHTLC(h HTLCRecord) []byte {
	buf := make([]byte, 0, 128)
	buf = append(buf, byte(len(h.Hashlocks)))
	for _, lock := range h.Hashlocks {
		buf = append(buf, lock.Bytes()...)
	}
	buf = append(buf, h.SourceReceipt.Bytes()...)
	var amt [8]byte
	binary.BigEndian.PutUint64(amt[:], h.Amount)
	buf = append(buf, amt[:]...)
	buf = append(buf, h.ClaimKeyHash.Bytes()...)
	buf = append(buf, h.RefundKeyHash.Bytes()...)
	var heights [16]byte
	binary.BigEndian.PutUint64(heights[0:8], h.CreateHeight)
	binary.BigEndian.PutUint64(heights[8:16], h.ExpiryHeight)
	buf = append(buf, heights[:]...)
	var scriptLen [2]byte
	binary.BigEndian.PutUint16(scriptLen[:], uint16(len(h.RedeemScript)))
	buf = append(buf, scriptLen[:]...)
	buf = append(buf, h.RedeemScript...)
	buf = append(buf, byte(h.Status))
	buf = append(buf, h.ResolveTxID.Bytes()...)
	buf = append(buf, byte(len(h.Preimages)))
	for _, p := range h.Preimages {
		var pLen [2]byte
		binary.BigEndian.PutUint16(pLen[:], uint16(len(p)))
		buf = append(buf, pLen[:]...)
		buf = append(buf, p...)
	}
	return buf
}

func decodeHTLC(op hucommon.Outpoint, raw []byte) HTLCRecord {
	off := 0
	numLocks := int(raw[off])
	off++
	locks := make([]hucommon.Hash, numLocks)
	for i := 0; i < numLocks; i++ {
		locks[i] = hucommon.BytesToHash(raw[off : off+hucommon.HashLength])
		off += hucommon.HashLength
	}
	src := decodeOutpoint(raw[off : off+hucommon.HashLength+4])
	off += hucommon.HashLength + 4
	amount := binary.BigEndian.Uint64(raw[off : off+8])
	off += 8
	claimKeyHash := hucommon.BytesToHash(raw[off : off+hucommon.HashLength])
	off += hucommon.HashLength
	refundKeyHash := hucommon.BytesToHash(raw[off : off+hucommon.HashLength])
	off += hucommon.HashLength
	createHeight := binary.BigEndian.Uint64(raw[off : off+8])
	off += 8
	expiryHeight := binary.BigEndian.Uint64(raw[off : off+8])
	off += 8
	scriptLen := int(binary.BigEndian.Uint16(raw[off : off+2]))
	off += 2
	script := append([]byte{}, raw[off:off+scriptLen]...)
	off += scriptLen
	status := HTLCStatus(raw[off])
	off++
	resolveTxID := hucommon.BytesToHash(raw[off : off+hucommon.HashLength])
	off += hucommon.HashLength
	numPreimages := int(raw[off])
	off++
	preimages := make([][]byte, numPreimages)
	for i := 0; i < numPreimages; i++ {
		pLen := int(binary.BigEndian.Uint16(raw[off : off+2]))
		off += 2
		preimages[i] = append([]byte{}, raw[off:off+pLen]...)
		off += pLen
	}
	return HTLCRecord{
		Outpoint:      op,
		Hashlocks:     locks,
		SourceReceipt: src,
		Amount:        amount,
		ClaimKeyHash:  claimKeyHash,
		RefundKeyHash: refundKeyHash,
		CreateHeight:  createHeight,
		ExpiryHeight:  expiryHeight,
		RedeemScript:  script,
		Status:        status,
		ResolveTxID:   resolveTxID,
		Preimages:     preimages,
	}
}
