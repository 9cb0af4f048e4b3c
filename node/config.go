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

// Package node wires C1-C11 into one running daemon: the registry,
// scheduler, signer, quorum, finality aggregator, settlement state
// machine, committer, and sync gate, the way the teacher's node.New
// assembles services from a Config (node/defaults.go, node/service.go).
package node

import (
	"crypto/ecdsa"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"github.com/hu-network/hunode/params"
)

// ErrMultipleOperatorKeys is returned by ResolveOperatorKey when more than
// one candidate key is discovered; §5 requires exactly one per process.
var ErrMultipleOperatorKeys = errors.New("node: a hunode process may hold at most one masternode operator key")

// ResolveOperatorKey enforces §5's "a daemon may hold exactly one operator
// key" rule against whatever candidates cmd/utils loaded from the key files
// named by --operatorkey flags.
// Zero candidates is valid: the process runs observer-only.
func ResolveOperatorKey(candidates []*ecdsa.PrivateKey) (*ecdsa.PrivateKey, error) {
	if len(candidates) > 1 {
		return nil, ErrMultipleOperatorKeys
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	return candidates[0], nil
}

// DefaultDataDir mirrors the teacher's node.DefaultDataDir layout
// (node/defaults.go), rooted under the user's home directory.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(".", ".hunode")
	}
	return filepath.Join(home, ".hunode")
}

// Config is the full set of operator-facing settings a hunode process
// needs at startup (§5's "a daemon may hold exactly one operator key,
// enforced at init").
type Config struct {
	// DataDir is the root directory under which New opens the settlement
	// (Settlement + HTLC) and finality LevelDB stores.
	DataDir string

	// Network selects the NetworkParams preset (mainnet/testnet/regtest).
	Network params.NetworkParams

	// OperatorKey is the single masternode operator private key this
	// process signs blocks and finality votes with. Nil means this
	// process runs in observer-only mode (no local production/signing).
	OperatorKey *ecdsa.PrivateKey

	// HAFailoverDelay is the secondary/tertiary delay before this
	// process's scheduler attempts to take over a slot it doesn't own
	// outright (§4.2, §5).
	HAFailoverDelay time.Duration

	// SkipMintValidation records the --skip-mint-validation flag. No
	// component in this repository performs BTC-mint proof validation or
	// reads this field (§6: burn-claim DB is an opaque collaborator).
	SkipMintValidation bool

	// ForceRebuildFromChain makes New's startup marker check report
	// commitdb.ErrMarkerMismatch even if the best-block/all-committed
	// markers agree; New logs it as rebuild-required and continues. New
	// does not run commitdb.Rebuild.
	ForceRebuildFromChain bool

	// AcknowledgeStaleChain is the operator's opt-in for syncgate's
	// cold-start override (§4.9, §9 Open Question 2), the value for
	// Gate.IsSynced's ackStalePartition argument. Node does not call
	// IsSynced itself.
	AcknowledgeStaleChain bool
}
