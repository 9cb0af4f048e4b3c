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

package commitdb

import (
	"github.com/pkg/errors"

	hucommon "github.com/hu-network/hunode/common"
	"github.com/hu-network/hunode/params"
	"github.com/hu-network/hunode/settlement"
)

// ReplayBlock is one previously-connected block's settlement effects,
// supplied by the chain index so Rebuild can replay it without
// re-validating (§4.8: "blocks were already validated when first
// connected").
type ReplayBlock struct {
	Height     uint64
	Hash       hucommon.Hash
	BurnClaims uint64
	// Apply re-runs this block's special transactions against state. It
	// must not re-validate signatures or quorum membership — only mutate
	// vaults/receipts/HTLCs exactly as they were applied the first time.
	Apply func(state *settlement.State) error
}

// Rebuild implements §4.8's rebuild-from-chain: wipe the Settlement/HTLC
// store, re-initialize the genesis snapshot, then replay every supplied
// block through the state machine with validation skipped, re-deriving
// A5/A6-consistent snapshots as it goes.
func Rebuild(store *settlement.Store, p params.NetworkParams, genesis settlement.Snapshot, blocks []ReplayBlock, collaborators ...Collaborator) (*settlement.State, error) {
	if err := store.WipeAll(); err != nil {
		return nil, errors.Wrap(err, "commitdb: wiping settlement store for rebuild")
	}
	if err := store.PutSnapshot(genesis); err != nil {
		return nil, errors.Wrap(err, "commitdb: writing genesis snapshot")
	}

	state := settlement.NewState(store, p, genesis)
	committer := New(store, state, collaborators...)

	for _, block := range blocks {
		if err := block.Apply(state); err != nil {
			return nil, errors.Wrapf(err, "commitdb: replaying block at height %d", block.Height)
		}
		if _, err := committer.Commit(Block{Height: block.Height, Hash: block.Hash, BurnClaims: block.BurnClaims}); err != nil {
			return nil, errors.Wrapf(err, "commitdb: committing replayed block at height %d", block.Height)
		}
	}

	logger.Info("rebuild from chain complete", "blocks_replayed", len(blocks))
	return state, nil
}
