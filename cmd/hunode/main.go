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

package main

import (
	"fmt"
	"net/http"
	"os"
	"runtime"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gopkg.in/urfave/cli.v1"

	"github.com/hu-network/hunode/cmd/utils"
	hucommon "github.com/hu-network/hunode/common"
	"github.com/hu-network/hunode/consensus/scheduler"
	"github.com/hu-network/hunode/log"
	"github.com/hu-network/hunode/node"
	"github.com/hu-network/hunode/wire"
)

var (
	logger = log.NewModuleLogger(log.NodeCmd)

	app = utils.NewApp("", "the consensus node for a proof-of-service masternode network")

	nodeFlags = []cli.Flag{
		utils.DataDirFlag,
		utils.NetworkFlag,
		utils.OperatorKeyFileFlag,
		utils.MasternodeModeFlag,
		utils.HAFailoverDelayFlag,
		utils.SkipMintValidationFlag,
		utils.ForceRebuildFlag,
		utils.AcknowledgeStaleChainFlag,
		utils.VerbosityFlag,
		utils.MetricsPortFlag,
	}
)

func init() {
	app.Action = runNode
	app.Flags = nodeFlags
}

func runNode(ctx *cli.Context) error {
	runtime.GOMAXPROCS(runtime.NumCPU())

	cfg, err := utils.MakeConfig(ctx)
	if err != nil {
		return err
	}

	if port := ctx.GlobalInt(utils.MetricsPortFlag.Name); port != 0 {
		http.Handle("/metrics", promhttp.Handler())
		go func() {
			addr := fmt.Sprintf(":%d", port)
			if err := http.ListenAndServe(addr, nil); err != nil {
				logger.Error("metrics server stopped", "err", err)
			}
		}()
	}

	// No P2P/chain component ships in this repository (§1 Non-goals); a
	// real deployment supplies its own scheduler.ChainView and
	// wire.Broadcaster backed by its networking layer.
	view := noOpChainView{}
	broadcaster := noOpBroadcaster{}
	produce := func(scheduler.Decision) error { return nil }

	n, err := node.New(cfg, view, produce, broadcaster)
	if err != nil {
		return err
	}
	defer n.Shutdown()

	if cfg.OperatorKey != nil {
		logger.Info("running as masternode", "network", cfg.Network.Name)
		go n.Scheduler.Run()
	} else {
		logger.Info("running as observer", "network", cfg.Network.Name)
	}

	select {}
}

type noOpChainView struct{}

func (noOpChainView) Tip() scheduler.PrevBlock                       { return scheduler.PrevBlock{} }
func (noOpChainView) NextHeight() uint64                             { return 0 }
func (noOpChainView) CandidatesAt(next uint64) []scheduler.Candidate { return nil }
func (noOpChainView) IsManagedLocally(id hucommon.MNID) bool         { return false }

type noOpBroadcaster struct{}

func (noOpBroadcaster) GetPeers() []wire.Peer { return nil }

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
