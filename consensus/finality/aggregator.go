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
	"crypto/ecdsa"
	"sync"

	"github.com/pkg/errors"

	hucommon "github.com/hu-network/hunode/common"
	hucrypto "github.com/hu-network/hunode/crypto"
	"github.com/hu-network/hunode/params"
)

var (
	ErrBadSignatureLen  = errors.New("finality: compact signature must be 65 bytes")
	ErrBlockUnknown     = errors.New("finality: block not known locally")
	ErrRecoverMismatch  = errors.New("finality: recovered key does not match signer's operator key")
	ErrNotInQuorum      = errors.New("finality: signer's operator is not in the quorum for this block")
	ErrDoubleSign       = errors.New("finality: conflicting signature for this MN at this height")
	ErrRateLimited      = errors.New("finality: peer exceeded signature rate limit")
)

// BlockInfo is the minimal view of a connected block the aggregator needs.
type BlockInfo struct {
	Height   uint64
	Hash     hucommon.Hash
	Producer hucommon.MNID
}

// OperatorLookup resolves id's operator key (§4.5 step 4). AcceptPeerVote
// passes the hash of the block being voted on, not its parent's; the
// registry-backed lookup built in node.New ignores the hash and answers
// from the registry's current state, not from the previous block's MN list.
type OperatorLookup func(id hucommon.MNID, blockHash hucommon.Hash) (hucommon.PubKey, bool)

// QuorumMembership answers whether operator is in the quorum for a block.
type QuorumMembership func(block BlockInfo, operator hucommon.PubKey) bool

// Aggregator implements C5: it signs locally on every new connected block,
// accepts and validates peer signatures, and marks blocks final once the
// quorum threshold is reached.
type Aggregator struct {
	params    params.NetworkParams
	store     *Store
	rate      *RateLimiter
	slashing  *SlashingRecorder
	resolveOp OperatorLookup
	inQuorum  QuorumMembership
	onFinal   func(BlockInfo)

	mu      sync.Mutex
	records map[hucommon.Hash]*Record
}

func NewAggregator(p params.NetworkParams, store *Store, resolveOp OperatorLookup, inQuorum QuorumMembership, onFinal func(BlockInfo)) *Aggregator {
	return &Aggregator{
		params:    p,
		store:     store,
		rate:      NewRateLimiter(p.PeerSignatureRateLimit),
		slashing:  NewSlashingRecorder(p.SlashingWindow),
		resolveOp: resolveOp,
		inQuorum:  inQuorum,
		onFinal:   onFinal,
		records:   make(map[hucommon.Hash]*Record),
	}
}

// OnDoubleSign registers f to run whenever the embedded SlashingRecorder
// observes a masternode signing two conflicting blocks at the same height;
// node wiring uses this to apply the PoSe penalty of §4.11.
func (a *Aggregator) OnDoubleSign(f func(Evidence)) {
	a.slashing.OnEvidence(f)
}

func (a *Aggregator) recordFor(block BlockInfo) *Record {
	r, ok := a.records[block.Hash]
	if !ok {
		r = newRecord(block.Height, block.Hash)
		a.records[block.Hash] = r
	}
	return r
}

// SignLocal signs the HUSIG message for every (id, key) pair the caller
// has determined is locally-managed, not the producer, and whose operator
// is in the quorum (§4.5: "On every new connected block ..."). It returns
// the votes to broadcast.
func (a *Aggregator) SignLocal(block BlockInfo, eligible map[hucommon.MNID]*ecdsa.PrivateKey) ([]Vote, error) {
	msg := hucrypto.HUSIGMessage(block.Hash)

	a.mu.Lock()
	defer a.mu.Unlock()
	r := a.recordFor(block)

	var votes []Vote
	for id, key := range eligible {
		if id == block.Producer {
			continue
		}
		sig, err := hucrypto.CompactSign(msg, key)
		if err != nil {
			return nil, errors.Wrapf(err, "finality: signing for %s", id.String())
		}
		if err := a.insertLocked(r, block, id, sig); err != nil {
			return nil, err
		}
		votes = append(votes, Vote{MNID: id, Sig: sig})
	}
	if err := a.store.Put(r); err != nil {
		return nil, errors.Wrap(err, "finality: persisting local votes")
	}
	a.maybeFinalizeLocked(r, block)
	return votes, nil
}

// AcceptPeerVote implements §4.5's ordered validation for an incoming peer
// signature. blockKnown reports whether block.Hash exists in the local
// block index (step 3).
func (a *Aggregator) AcceptPeerVote(peerID string, block BlockInfo, vote Vote, blockKnown bool) error {
	if vote.MNID.IsZero() || len(vote.Sig) != 65 {
		return ErrBadSignatureLen
	}
	if !a.rate.Allow(peerID) {
		return ErrRateLimited
	}
	if !blockKnown {
		return ErrBlockUnknown
	}

	msg := hucrypto.HUSIGMessage(block.Hash)
	recovered, err := hucrypto.CompactRecover(msg, vote.Sig)
	if err != nil {
		return errors.Wrap(err, "finality: recovering signer key")
	}
	operator, ok := a.resolveOp(vote.MNID, block.Hash)
	if !ok || recovered != operator {
		return ErrRecoverMismatch
	}
	if !a.inQuorum(block, operator) {
		return ErrNotInQuorum
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if conflict := a.slashing.Observe(block.Height, vote.MNID, block.Hash, vote.Sig); conflict {
		return ErrDoubleSign
	}

	r := a.recordFor(block)
	if _, dup := r.Votes[vote.MNID]; dup {
		return nil // de-duplicate silently
	}
	if err := a.insertLocked(r, block, vote.MNID, vote.Sig); err != nil {
		return err
	}
	if err := a.store.Put(r); err != nil {
		return errors.Wrap(err, "finality: persisting peer vote")
	}
	a.maybeFinalizeLocked(r, block)
	return nil
}

func (a *Aggregator) insertLocked(r *Record, block BlockInfo, id hucommon.MNID, sig []byte) error {
	r.Votes[id] = sig
	return nil
}

func (a *Aggregator) maybeFinalizeLocked(r *Record, block BlockInfo) {
	if r.Final {
		return
	}
	if r.SignatureCount() >= a.params.QuorumThreshold {
		r.Final = true
		if a.onFinal != nil {
			a.onFinal(block)
		}
	}
}

// Prune drops cached signature records for blocks older than keep_blocks,
// but only once they have reached finality (§4.5 tail paragraph).
func (a *Aggregator) Prune(currentHeight uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	keep := a.params.KeepBlocks
	for hash, r := range a.records {
		if currentHeight < r.Height+keep {
			continue
		}
		if !r.Final {
			continue // never drop unfinalized records
		}
		delete(a.records, hash)
	}
}

// RecordFor exposes the in-memory record for a block, for C6/C10 callers.
func (a *Aggregator) RecordFor(hash hucommon.Hash) (*Record, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	r, ok := a.records[hash]
	return r, ok
}

// Hydrate loads every persisted record into memory, for boot-time recovery
// (§4.6).
func (a *Aggregator) Hydrate() (highestFinal uint64, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	err = a.store.ScanAll(func(r *Record) error {
		a.records[r.BlockHash] = r
		if r.Final && r.Height > highestFinal {
			highestFinal = r.Height
		}
		return nil
	})
	return highestFinal, err
}
