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

package masternode

import (
	"sort"
	"sync"

	"github.com/pkg/errors"

	hucommon "github.com/hu-network/hunode/common"
	"github.com/hu-network/hunode/log"
)

var logger = log.NewModuleLogger(log.MasternodeRegistry)

// MaxPenaltyScore bans an MN once its accumulated penalty reaches this
// ceiling (§4.1: "PoSe penalties above a ceiling ban the MN").
const MaxPenaltyScore = 100

var (
	ErrDuplicateOwnerKey  = errors.New("masternode: owner key hash already registered")
	ErrUnknownMN          = errors.New("masternode: unknown registration id")
	ErrWrongOperator      = errors.New("masternode: update not signed by current operator")
	ErrAlreadyRevoked     = errors.New("masternode: already revoked")
	ErrDuplicateID        = errors.New("masternode: registration id already in use")
)

// undoEntry records exactly enough to invert one special transaction's
// effect on the registry, keyed by the height it was applied at.
type undoEntry struct {
	txType  SpecialTxType
	id      hucommon.MNID
	before  *Record // nil if the record did not exist before this tx (REGISTER)
	existed bool
}

// Registry is the deterministic masternode set of §4.1. It is owned
// exclusively by C1; every other component reads through the accessors
// below under a read lock.
type Registry struct {
	mu       sync.RWMutex
	byID     map[hucommon.MNID]*Record
	byOwner  map[hucommon.Hash]hucommon.MNID
	undoLog  map[uint64][]undoEntry // per-height undo entries, most-recent-last
}

func NewRegistry() *Registry {
	return &Registry{
		byID:    make(map[hucommon.MNID]*Record),
		byOwner: make(map[hucommon.Hash]hucommon.MNID),
		undoLog: make(map[uint64][]undoEntry),
	}
}

// Get returns the record for id regardless of PoSe-ban state.
func (r *Registry) Get(id hucommon.MNID) (*Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	return rec.Clone(), true
}

// GetValid returns the record only if it is not PoSe-banned.
func (r *Registry) GetValid(id hucommon.MNID) (*Record, bool) {
	rec, ok := r.Get(id)
	if !ok || !rec.IsValid() {
		return nil, false
	}
	return rec, true
}

// GetByOperatorKey returns every MN (banned or not) whose operator key
// matches pubkey — one operator key may manage many MNs (§4.1, §9).
func (r *Registry) GetByOperatorKey(pubkey hucommon.PubKey) []*Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Record
	for _, rec := range r.byID {
		if rec.OperatorPubKey == pubkey {
			out = append(out, rec.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out
}

// ListAt returns every record, in deterministic (sorted-by-id) order. The
// registry only ever holds the state "at chain tip"; callers wanting the
// view "as of a previous block" must call ListAt before processing that
// block, since process_block mutates in place (§4.1).
func (r *Registry) ListAt(onlyValid bool) []*Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Record, 0, len(r.byID))
	for _, rec := range r.byID {
		if onlyValid && !rec.IsValid() {
			continue
		}
		out = append(out, rec.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out
}

// ForEach iterates the set deterministically by ascending MN id.
func (r *Registry) ForEach(onlyValid bool, f func(*Record) error) error {
	for _, rec := range r.ListAt(onlyValid) {
		if err := f(rec); err != nil {
			return err
		}
	}
	return nil
}

// ProcessBlock applies every special transaction in block, in tx order
// (§4.1, §5: "special-transaction processing runs in block.tx order").
// On any failure the block is rejected wholesale; the caller must not
// persist partial state (the in-memory mutation here is applied
// incrementally, so callers that need atomicity across a failed block
// should clone the registry before calling, or rely on C8's batch discipline
// for the on-disk mirror).
func (r *Registry) ProcessBlock(block *Block) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, tx := range block.Special {
		entry, err := r.apply(block.Height, tx)
		if err != nil {
			return errors.Wrapf(err, "masternode: block %d tx type %d", block.Height, tx.Type)
		}
		r.undoLog[block.Height] = append(r.undoLog[block.Height], entry)
	}
	return nil
}

// UndoBlock inverts every special transaction applied at height, in
// reverse order, restoring byte-identical prior state (§8 property 6).
func (r *Registry) UndoBlock(height uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := r.undoLog[height]
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if !e.existed {
			// This tx created the record (REGISTER); undo removes it.
			if rec, ok := r.byID[e.id]; ok {
				delete(r.byOwner, rec.OwnerKeyHash)
			}
			delete(r.byID, e.id)
			continue
		}
		// Restore the prior record, including its prior owner-key index.
		if cur, ok := r.byID[e.id]; ok {
			delete(r.byOwner, cur.OwnerKeyHash)
		}
		r.byID[e.id] = e.before
		r.byOwner[e.before.OwnerKeyHash] = e.id
	}
	delete(r.undoLog, height)
}

func (r *Registry) apply(height uint64, tx SpecialTx) (undoEntry, error) {
	switch tx.Type {
	case TxRegister:
		return r.applyRegister(height, tx.Register)
	case TxUpdateService:
		return r.applyUpdateService(tx.UpdateService, tx.AuthorizedByKey)
	case TxUpdateRegistrar:
		return r.applyUpdateRegistrar(tx.UpdateRegistrar)
	case TxRevoke:
		return r.applyRevoke(tx.Revoke)
	default:
		return undoEntry{}, errors.Errorf("masternode: unknown special tx type %d", tx.Type)
	}
}

func (r *Registry) applyRegister(height uint64, p *RegisterPayload) (undoEntry, error) {
	if _, exists := r.byID[p.ID]; exists {
		return undoEntry{}, ErrDuplicateID
	}
	if _, exists := r.byOwner[p.OwnerKeyHash]; exists {
		return undoEntry{}, ErrDuplicateOwnerKey
	}
	rec := &Record{
		ID:                 p.ID,
		OperatorPubKey:     p.OperatorPubKey,
		CollateralOutpoint: p.CollateralOutpoint,
		PayoutScript:       append([]byte{}, p.PayoutScript...),
		OwnerKeyHash:       p.OwnerKeyHash,
		VotingKeyHash:      p.VotingKeyHash,
		ServiceEndpoint:    p.ServiceEndpoint,
		RegisteredHeight:   height,
	}
	r.byID[p.ID] = rec
	r.byOwner[p.OwnerKeyHash] = p.ID
	return undoEntry{txType: TxRegister, id: p.ID, existed: false}, nil
}

func (r *Registry) applyUpdateService(p *UpdateServicePayload, signer hucommon.PubKey) (undoEntry, error) {
	rec, ok := r.byID[p.ID]
	if !ok {
		return undoEntry{}, ErrUnknownMN
	}
	if rec.OperatorPubKey != signer {
		return undoEntry{}, ErrWrongOperator
	}
	before := rec.Clone()
	rec.ServiceEndpoint = p.ServiceEndpoint
	if !p.OperatorPubKey.IsZero() {
		rec.OperatorPubKey = p.OperatorPubKey
	}
	return undoEntry{txType: TxUpdateService, id: p.ID, before: before, existed: true}, nil
}

func (r *Registry) applyUpdateRegistrar(p *UpdateRegistrarPayload) (undoEntry, error) {
	rec, ok := r.byID[p.ID]
	if !ok {
		return undoEntry{}, ErrUnknownMN
	}
	if p.OwnerKeyHash != rec.OwnerKeyHash {
		if _, exists := r.byOwner[p.OwnerKeyHash]; exists {
			return undoEntry{}, ErrDuplicateOwnerKey
		}
	}
	before := rec.Clone()
	delete(r.byOwner, rec.OwnerKeyHash)
	rec.OwnerKeyHash = p.OwnerKeyHash
	rec.VotingKeyHash = p.VotingKeyHash
	rec.PayoutScript = append([]byte{}, p.PayoutScript...)
	r.byOwner[rec.OwnerKeyHash] = p.ID
	return undoEntry{txType: TxUpdateRegistrar, id: p.ID, before: before, existed: true}, nil
}

func (r *Registry) applyRevoke(p *RevokePayload) (undoEntry, error) {
	rec, ok := r.byID[p.ID]
	if !ok {
		return undoEntry{}, ErrUnknownMN
	}
	if rec.PoSeBanned {
		return undoEntry{}, ErrAlreadyRevoked
	}
	before := rec.Clone()
	rec.PoSeBanned = true
	return undoEntry{txType: TxRevoke, id: p.ID, before: before, existed: true}, nil
}

// Confirm marks id as confirmed at height, called once its registration has
// matured past params.VoteMaturityBlocks (§4.1).
func (r *Registry) Confirm(id hucommon.MNID, height uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.byID[id]; ok && rec.ConfirmedHeight == 0 {
		rec.ConfirmedHeight = height
	}
}

// ApplyPenalty adds score to id's accumulated PoSe penalty (§4.3, §4.11),
// banning it once MaxPenaltyScore is reached.
func (r *Registry) ApplyPenalty(id hucommon.MNID, score uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.byID[id]
	if !ok {
		return
	}
	rec.PenaltyScore += score
	if rec.PenaltyScore >= MaxPenaltyScore && !rec.PoSeBanned {
		rec.PoSeBanned = true
		logger.Warn("masternode banned for PoSe", "id", id.String(), "score", rec.PenaltyScore)
	}
}
