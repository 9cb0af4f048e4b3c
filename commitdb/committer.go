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

// Package commitdb is the Atomic Multi-DB Committer (C8): it stages a
// block's Settlement/HTLC/Burn-Claim changes and commits them in a fixed
// order behind a single all-committed marker, so a crash between the two
// is always detectable on the next boot.
package commitdb

import (
	"github.com/pkg/errors"

	hucommon "github.com/hu-network/hunode/common"
	"github.com/hu-network/hunode/log"
	"github.com/hu-network/hunode/settlement"
)

var logger = log.NewModuleLogger(log.CommitDB)

var (
	// ErrInvariantViolated is returned when A5/A6 fail against the staged
	// in-memory state, before anything has been persisted.
	ErrInvariantViolated = errors.New("commitdb: staged state violates a conservation invariant")
	// ErrMarkerMismatch is returned by Verify when a collaborator's
	// best-block marker disagrees with the all-committed marker.
	ErrMarkerMismatch = errors.New("commitdb: best-block marker disagrees with all-committed marker, rebuild required")
)

// Collaborator is a DB outside the Settlement store that still must commit
// in lockstep with it (§4.8: Burn-Claim DB and BTC-Headers DB are "opaque
// collaborators with the same best-block / all-committed contract").
type Collaborator interface {
	// Name identifies the collaborator in logs and error messages.
	Name() string
	// Finalize persists whatever this collaborator staged for the block
	// and records its own best-block marker. Called after Settlement
	// commits and before the global all-committed marker is written.
	Finalize(height uint64, hash hucommon.Hash) error
	// BestBlock returns the collaborator's last-committed block, used by
	// Verify to detect a partial commit on startup.
	BestBlock() (hucommon.Hash, bool, error)
}

// Block is the minimal view of a connected block the committer needs.
type Block struct {
	Height uint64
	Hash   hucommon.Hash
	// BurnClaims is the M0 total-supply delta this block's burn-claim
	// transactions mint (A5).
	BurnClaims uint64
}

// Committer orchestrates C8's fixed commit order: Settlement snapshot and
// its best-block marker → BTC-Headers → Burn-Claim finalization (each
// collaborator writes its own best-block marker inside Finalize) → the
// single all-committed marker. Collaborators run in the order given to
// New, mirroring the "BTC-Headers → Burn-Claim" sequence named in §4.8.
type Committer struct {
	store         *settlement.Store
	state         *settlement.State
	collaborators []Collaborator
}

// New builds a Committer. collaborators should be passed BTC-Headers
// first, then Burn-Claim, per §4.8's fixed ordering.
func New(store *settlement.Store, state *settlement.State, collaborators ...Collaborator) *Committer {
	return &Committer{store: store, state: state, collaborators: collaborators}
}

// Commit runs the §4.8 sequence for one connected block: the caller has
// already applied every special transaction to state (staging it in
// memory); Commit verifies A5/A6 against that staged state, then commits
// in the fixed order, writing the all-committed marker last.
func (c *Committer) Commit(block Block) (settlement.Snapshot, error) {
	snap, err := c.state.FinalizeBlock(block.Height, block.Hash, block.BurnClaims)
	if err != nil {
		return settlement.Snapshot{}, errors.Wrap(ErrInvariantViolated, err.Error())
	}

	if err := c.store.PutBestBlock(block.Hash); err != nil {
		return settlement.Snapshot{}, errors.Wrap(err, "commitdb: settlement best-block write failed")
	}

	for _, collab := range c.collaborators {
		if err := collab.Finalize(block.Height, block.Hash); err != nil {
			logger.Error("collaborator finalize failed, node is now mid-commit", "collaborator", collab.Name(), "height", block.Height, "err", err)
			return settlement.Snapshot{}, errors.Wrapf(err, "commitdb: collaborator %q finalize failed", collab.Name())
		}
	}

	if err := c.store.PutAllCommitted(block.Hash); err != nil {
		logger.Error("all-committed marker write failed, node is now mid-commit", "height", block.Height, "err", err)
		return settlement.Snapshot{}, errors.Wrap(err, "commitdb: all-committed marker write failed")
	}

	logger.Info("committed block", "height", block.Height, "hash", block.Hash)
	return snap, nil
}

// Verify implements the §4.8 crash-recovery check: compare every
// collaborator's best-block marker (and the Settlement store's own) against
// the all-committed marker. Any disagreement means a commit was
// interrupted between markers and the caller must Rebuild.
func (c *Committer) Verify() error {
	allCommitted, ok, err := c.store.GetAllCommitted()
	if err != nil {
		return errors.Wrap(err, "commitdb: reading all-committed marker")
	}
	if !ok {
		// Nothing has ever committed; nothing to verify.
		return nil
	}

	settlementBest, ok, err := c.store.GetBestBlock()
	if err != nil {
		return errors.Wrap(err, "commitdb: reading settlement best-block")
	}
	if !ok || settlementBest != allCommitted {
		return ErrMarkerMismatch
	}

	for _, collab := range c.collaborators {
		best, ok, err := collab.BestBlock()
		if err != nil {
			return errors.Wrapf(err, "commitdb: reading %q best-block", collab.Name())
		}
		if !ok || best != allCommitted {
			return errors.Wrapf(ErrMarkerMismatch, "collaborator %q disagrees", collab.Name())
		}
	}
	return nil
}
