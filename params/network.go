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

// Package params collects the network-governed constants of §6: every
// number that differs between mainnet, testnet, and regtest.
package params

import "time"

// NetworkParams is the full set of chain constants named in §6.
type NetworkParams struct {
	Name string

	// TargetSpacing is the minimum spacing between blocks (§4.2).
	TargetSpacing time.Duration
	// LeaderTimeout bounds the primary-producer slot (§4.2).
	LeaderTimeout time.Duration
	// FallbackWindow is the per-slot delay once fallback begins (§4.2).
	FallbackWindow time.Duration
	// SlotLength is the grid every aligned block timestamp snaps to (§4.2).
	SlotLength time.Duration
	// MaxFallbackSlot clamps the fallback slot index (§4.2: "clamped to 360").
	MaxFallbackSlot uint64

	// BootstrapHeight is the height at/below which the bootstrap exception
	// applies (§4.2).
	BootstrapHeight uint64

	// StaleChainTimeout is the cold-start override threshold (§4.9).
	StaleChainTimeout time.Duration
	// PeerHeightTolerance bounds how far ahead a peer's header can be before
	// the node reports "not synced" (§4.9).
	PeerHeightTolerance uint64
	// RecentFinalityWindow: a finality within this window also counts as
	// "synced" (§4.9).
	RecentFinalityWindow time.Duration

	// QuorumSize and QuorumThreshold are the finality quorum parameters
	// (§4.4): e.g. 12/8, 3/2, 1/1 for mainnet/testnet/regtest.
	QuorumSize      int
	QuorumThreshold int
	// RotationLength is the number of heights per quorum cycle (§4.4).
	RotationLength uint64

	// MaxReorgDepth bounds how deep a reorg may unseat history (§4.6 works
	// together with finality; this is the raw depth ceiling).
	MaxReorgDepth uint64
	// VoteMaturityBlocks: a masternode's confirmation age required before it
	// may be selected as a producer outside the bootstrap window (§4.1, §4.2).
	VoteMaturityBlocks uint64

	// MinFeeRate is the minimum per-byte fee rate for settlement
	// transactions (§4.7, §8 property 3).
	MinFeeRate uint64

	// KeepBlocks is the finality-signature cache retention window (§4.5).
	KeepBlocks uint64
	// SlashingWindow is C11's rolling double-sign detection window (§4.11).
	SlashingWindow uint64

	// PeerSignatureRateLimit is the per-peer per-60s finality signature cap
	// (§4.5, §5).
	PeerSignatureRateLimit int

	// LegacyHTLCCutoffHeight is the Open Question decision from §9: zero
	// disables the legacy escape hatch entirely. Non-zero networks opt in
	// explicitly; the constant is never silently ported.
	LegacyHTLCCutoffHeight uint64
}

// Mainnet returns the production network constants.
func Mainnet() NetworkParams {
	return NetworkParams{
		Name:                   "mainnet",
		TargetSpacing:          60 * time.Second,
		LeaderTimeout:          45 * time.Second,
		FallbackWindow:         15 * time.Second,
		SlotLength:             5 * time.Second,
		MaxFallbackSlot:        360,
		BootstrapHeight:        2000,
		StaleChainTimeout:      30 * time.Minute,
		PeerHeightTolerance:    6,
		RecentFinalityWindow:   2 * time.Minute,
		QuorumSize:             12,
		QuorumThreshold:        8,
		RotationLength:         288,
		MaxReorgDepth:          100,
		VoteMaturityBlocks:     100,
		MinFeeRate:             1,
		KeepBlocks:             100,
		SlashingWindow:         100,
		PeerSignatureRateLimit: 100,
		LegacyHTLCCutoffHeight: 0,
	}
}

// Testnet returns the testnet network constants.
func Testnet() NetworkParams {
	p := Mainnet()
	p.Name = "testnet"
	p.QuorumSize = 3
	p.QuorumThreshold = 2
	p.BootstrapHeight = 500
	p.VoteMaturityBlocks = 10
	return p
}

// Regtest returns the local single-node regression-test constants.
func Regtest() NetworkParams {
	p := Mainnet()
	p.Name = "regtest"
	p.QuorumSize = 1
	p.QuorumThreshold = 1
	p.BootstrapHeight = 10000000 // regtest stays in the bootstrap exception
	p.VoteMaturityBlocks = 0
	p.TargetSpacing = 1 * time.Second
	p.LeaderTimeout = 2 * time.Second
	p.FallbackWindow = 1 * time.Second
	p.SlotLength = 1 * time.Second
	p.StaleChainTimeout = 5 * time.Second
	return p
}
