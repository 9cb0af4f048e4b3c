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

package node

import (
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/hu-network/hunode/commitdb"
	hucommon "github.com/hu-network/hunode/common"
	"github.com/hu-network/hunode/consensus/finality"
	"github.com/hu-network/hunode/consensus/scheduler"
	"github.com/hu-network/hunode/crypto"
	"github.com/hu-network/hunode/log"
	"github.com/hu-network/hunode/masternode"
	"github.com/hu-network/hunode/settlement"
	"github.com/hu-network/hunode/storage/database"
	"github.com/hu-network/hunode/syncgate"
	"github.com/hu-network/hunode/wire"
)

var logger = log.NewModuleLogger(log.NodeCmd)

// Node wires together every C1-C11 component into one running daemon.
// P2P transport and JSON-RPC are external collaborators (§1 Non-goals) and
// are represented here only by the wire.Broadcaster interface a caller
// passes to New.
type Node struct {
	cfg Config

	Registry    *masternode.Registry
	Scheduler   *scheduler.Loop
	Aggregator  *finality.Aggregator
	Enforcement *finality.Enforcement

	SettlementStore *settlement.Store
	SettlementState *settlement.State
	Committer       *commitdb.Committer
	SyncGate        *syncgate.Gate
	Relay           *wire.Relay

	finalityDB   database.Database
	settlementDB database.Database

	// operatorMN is the local masternode record(s) whose operator key
	// matches cfg.OperatorKey (§5: "the registry auto-discovers every MN
	// using that key"). New looks them up once, in the registry it has just
	// created; the field is not refreshed afterwards.
	operatorMN []*masternode.Record
}

// New opens the on-disk stores under cfg.DataDir and constructs every
// component, performing the §4.8 crash-recovery check and the §4.6
// boot-time finality hydration along the way. A commit-marker mismatch is
// logged and New still returns the node. It does not start the scheduler
// loop; the caller runs n.Scheduler.Run for that.
func New(cfg Config, view scheduler.ChainView, produce scheduler.Producer, broadcaster wire.Broadcaster) (*Node, error) {
	settlementDB, err := database.NewLevelDB(filepath.Join(cfg.DataDir, "settlement"), 16, 16)
	if err != nil {
		return nil, errors.Wrap(err, "node: opening settlement database")
	}
	finalityDB, err := database.NewLevelDB(filepath.Join(cfg.DataDir, "finality"), 16, 16)
	if err != nil {
		return nil, errors.Wrap(err, "node: opening finality database")
	}

	settlementStore := settlement.NewStore(settlementDB)
	finalityStore := finality.NewStore(finalityDB)

	genesis, _, err := settlementStore.GetSnapshot(0)
	if err != nil {
		return nil, errors.Wrap(err, "node: reading genesis snapshot")
	}
	settlementState := settlement.NewState(settlementStore, cfg.Network, genesis)

	registry := masternode.NewRegistry()
	enforcement := finality.NewEnforcement()
	if err := enforcement.Hydrate(finalityStore); err != nil {
		return nil, errors.Wrap(err, "node: hydrating finality enforcement")
	}

	n := &Node{
		cfg:             cfg,
		Registry:        registry,
		Enforcement:     enforcement,
		SettlementStore: settlementStore,
		SettlementState: settlementState,
		SyncGate:        syncgate.New(cfg.Network, nil),
		Relay:           wire.NewRelay(broadcaster),
		finalityDB:      finalityDB,
		settlementDB:    settlementDB,
	}

	resolveOp := func(id hucommon.MNID, prevBlockHash hucommon.Hash) (hucommon.PubKey, bool) {
		rec, ok := registry.GetValid(id)
		if !ok {
			return hucommon.PubKey{}, false
		}
		return rec.OperatorPubKey, true
	}
	n.Aggregator = finality.NewAggregator(cfg.Network, finalityStore, resolveOp, alwaysInQuorum, func(block finality.BlockInfo) {
		enforcement.MarkFinal(block.Height, block.Hash)
	})
	n.Aggregator.OnDoubleSign(func(ev finality.Evidence) {
		registry.ApplyPenalty(ev.MNID, finality.DoubleSignPenalty)
	})
	if _, err := n.Aggregator.Hydrate(); err != nil {
		return nil, errors.Wrap(err, "node: hydrating finality aggregator")
	}

	n.Committer = commitdb.New(settlementStore, settlementState)

	if cfg.OperatorKey != nil {
		pub := crypto.CompressPubKey(&cfg.OperatorKey.PublicKey)
		n.operatorMN = registry.GetByOperatorKey(pub)
	}

	ha := scheduler.HAConfig{Enabled: cfg.HAFailoverDelay > 0, Delay: cfg.HAFailoverDelay}
	n.Scheduler = scheduler.NewLoop(cfg.Network, view, produce, ha)

	if err := n.verifyCommitMarkers(); err != nil {
		logger.Warn("commit markers disagree, rebuild-from-chain required", "err", err)
	}

	return n, nil
}

// alwaysInQuorum is a placeholder QuorumMembership used until the chain
// component (outside this spec's scope, §1) supplies the rotation-cycle
// quorum for the block in question; callers wire consensus/quorum.Select's
// result in through a ChainView-backed closure in production.
func alwaysInQuorum(block finality.BlockInfo, operator hucommon.PubKey) bool { return true }

func (n *Node) verifyCommitMarkers() error {
	if n.cfg.ForceRebuildFromChain {
		return commitdb.ErrMarkerMismatch
	}
	return n.Committer.Verify()
}

// Shutdown stops the scheduler loop and closes the on-disk stores.
func (n *Node) Shutdown() {
	if n.Scheduler != nil {
		n.Scheduler.Shutdown()
	}
	n.settlementDB.Close()
	n.finalityDB.Close()
}
