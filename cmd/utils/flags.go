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

// Package utils holds cmd/hunode's cli.v1 flag definitions and the
// plumbing that turns a *cli.Context into a node.Config, in the teacher's
// own cmd/utils/flags.go style.
package utils

import (
	"crypto/ecdsa"
	"io/ioutil"
	"path/filepath"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"gopkg.in/urfave/cli.v1"

	"github.com/hu-network/hunode/log"
	"github.com/hu-network/hunode/node"
	"github.com/hu-network/hunode/params"
)

// NewApp creates an app with sane defaults, mirroring the teacher's
// cmd/utils/flags.go NewApp.
func NewApp(gitCommit, usage string) *cli.App {
	app := cli.NewApp()
	app.Name = filepath.Base("hunode")
	app.Usage = usage
	app.Version = "0.1.0"
	if len(gitCommit) >= 8 {
		app.Version += "-" + gitCommit[:8]
	}
	return app
}

var (
	DataDirFlag = cli.StringFlag{
		Name:  "datadir",
		Usage: "Data directory for the settlement/finality databases",
		Value: node.DefaultDataDir(),
	}
	NetworkFlag = cli.StringFlag{
		Name:  "network",
		Usage: `Network preset ("mainnet", "testnet", "regtest")`,
		Value: "mainnet",
	}
	OperatorKeyFileFlag = cli.StringSliceFlag{
		Name:  "operatorkey",
		Usage: "Path to a masternode operator private key file; may be given multiple times, but exactly one key total is accepted",
	}
	MasternodeModeFlag = cli.BoolFlag{
		Name:  "masternode",
		Usage: "Run as a masternode: participate in block production and finality signing",
	}
	HAFailoverDelayFlag = cli.DurationFlag{
		Name:  "ha-failover-delay",
		Usage: "Delay before this process's scheduler attempts to take over a slot it doesn't own outright (0 disables HA mode)",
	}
	SkipMintValidationFlag = cli.BoolFlag{
		Name:  "skip-mint-validation",
		Usage: "Record a request to skip BTC-mint proof validation (no component of this binary performs that validation)",
	}
	ForceRebuildFlag = cli.BoolFlag{
		Name:  "force-rebuild-from-chain",
		Usage: "Report commit markers as mismatched (rebuild-from-chain required) on startup even if they agree; no rebuild is run",
	}
	AcknowledgeStaleChainFlag = cli.BoolFlag{
		Name:  "acknowledge-stale-chain",
		Usage: "Allow the sync gate's cold-start override to declare this node synced on a stale tip after a coordinated restart",
	}
	VerbosityFlag = cli.StringFlag{
		Name:  "verbosity",
		Usage: "Log verbosity (debug, info, warn, error)",
		Value: "info",
	}
	MetricsPortFlag = cli.IntFlag{
		Name:  "metrics-port",
		Usage: "Port to serve Prometheus metrics on (0 disables)",
		Value: 9090,
	}
)

// MakeNetworkParams resolves the --network flag to a params.NetworkParams
// preset.
func MakeNetworkParams(ctx *cli.Context) (params.NetworkParams, error) {
	switch ctx.GlobalString(NetworkFlag.Name) {
	case "mainnet", "":
		return params.Mainnet(), nil
	case "testnet":
		return params.Testnet(), nil
	case "regtest":
		return params.Regtest(), nil
	default:
		return params.NetworkParams{}, errors.Errorf("utils: unknown network %q", ctx.GlobalString(NetworkFlag.Name))
	}
}

// MakeOperatorKey loads every key file named by --operatorkey and enforces
// §5's single-operator-key rule via node.ResolveOperatorKey.
func MakeOperatorKey(ctx *cli.Context) (*ecdsa.PrivateKey, error) {
	paths := ctx.GlobalStringSlice(OperatorKeyFileFlag.Name)
	var keys []*ecdsa.PrivateKey
	for _, p := range paths {
		raw, err := ioutil.ReadFile(p)
		if err != nil {
			return nil, errors.Wrapf(err, "utils: reading operator key file %q", p)
		}
		key, err := crypto.HexToECDSA(string(trimNewline(raw)))
		if err != nil {
			return nil, errors.Wrapf(err, "utils: decoding operator key file %q", p)
		}
		keys = append(keys, key)
	}
	return node.ResolveOperatorKey(keys)
}

func trimNewline(b []byte) []byte {
	for len(b) > 0 && (b[len(b)-1] == '\n' || b[len(b)-1] == '\r' || b[len(b)-1] == ' ') {
		b = b[:len(b)-1]
	}
	return b
}

// MakeConfig assembles a node.Config from the parsed flags.
func MakeConfig(ctx *cli.Context) (node.Config, error) {
	net, err := MakeNetworkParams(ctx)
	if err != nil {
		return node.Config{}, err
	}
	log.SetVerbosity(ctx.GlobalString(VerbosityFlag.Name))

	var key *ecdsa.PrivateKey
	if ctx.GlobalBool(MasternodeModeFlag.Name) {
		key, err = MakeOperatorKey(ctx)
		if err != nil {
			return node.Config{}, err
		}
	}

	return node.Config{
		DataDir:               ctx.GlobalString(DataDirFlag.Name),
		Network:               net,
		OperatorKey:           key,
		HAFailoverDelay:       ctx.GlobalDuration(HAFailoverDelayFlag.Name),
		SkipMintValidation:    ctx.GlobalBool(SkipMintValidationFlag.Name),
		ForceRebuildFromChain: ctx.GlobalBool(ForceRebuildFlag.Name),
		AcknowledgeStaleChain: ctx.GlobalBool(AcknowledgeStaleChainFlag.Name),
	}, nil
}
