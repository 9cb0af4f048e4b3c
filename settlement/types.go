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

// Package settlement implements the two-money (M0/M1) settlement state
// machine (C7): vaults, bearer receipts, and hash-time-locked contracts,
// with the monetary conservation invariants A5/A6.
package settlement

import hucommon "github.com/hu-network/hunode/common"

// Vault represents M0 locked to collectively back M1 supply. Its script is
// exactly the single byte OP_TRUE (§3); consensus, not script, restricts
// spending to the unlock transaction type.
type Vault struct {
	Outpoint   hucommon.Outpoint
	Amount     uint64
	LockHeight uint64
}

// Receipt is a bearer M1 asset: whoever controls the UTXO controls the M1,
// with no linkage to any specific vault (§9: "resist the temptation to
// link each receipt to a specific vault").
type Receipt struct {
	Outpoint     hucommon.Outpoint
	Amount       uint64
	CreateHeight uint64
}

// HTLCStatus is the lifecycle state of an HTLC record.
type HTLCStatus uint8

const (
	HTLCActive HTLCStatus = iota + 1
	HTLCClaimed
	HTLCRefunded
)

// HTLCRecord is a hash-time-locked contract (§3). The 3-secret variant
// carries three independent hashlocks/preimages, indexed separately; the
// legacy variant carries exactly one.
type HTLCRecord struct {
	Outpoint      hucommon.Outpoint
	Hashlocks     []hucommon.Hash
	SourceReceipt hucommon.Outpoint
	Amount        uint64
	ClaimKeyHash  hucommon.Hash
	RefundKeyHash hucommon.Hash
	CreateHeight  uint64
	ExpiryHeight  uint64
	RedeemScript  []byte
	Status        HTLCStatus
	ResolveTxID   hucommon.Hash
	Preimages     [][]byte
}

func (h *HTLCRecord) IsThreeSecret() bool { return len(h.Hashlocks) == 3 }

// Snapshot is the Settlement State Snapshot of §3, persisted per height.
type Snapshot struct {
	Height          uint64
	BlockHash       hucommon.Hash
	M0Vaulted       uint64
	M1Supply        uint64
	M0Shielded      uint64 // informational only
	M0TotalSupply   uint64
	BurnClaimsBlock uint64
}

// UnlockUndo captures everything needed to reverse an UNLOCK transaction:
// every spent receipt and vault, the M0 released, and the created change
// outputs (§3).
type UnlockUndo struct {
	TxID           hucommon.Hash
	SpentReceipts  []Receipt
	SpentVaults    []Vault
	M0Released     uint64
	M1ChangeOutput *Receipt
	FeeReceipt     *Receipt
	FeeVault       *Vault
	VaultChange    *Vault
}

// TransferUndo captures the original receipt and the number of M1
// recipient outputs created by a TRANSFER_M1 transaction (§3).
type TransferUndo struct {
	TxID               hucommon.Hash
	OriginalReceipt    Receipt
	RecipientCount     int
	FeeReceipt         Receipt
}

// HTLCCreateUndo captures the consumed receipt for an HTLC_CREATE
// transaction (§3).
type HTLCCreateUndo struct {
	TxID            hucommon.Hash
	ConsumedReceipt Receipt
	HTLCOutpoint    hucommon.Outpoint
}

// HTLCResolveUndo captures the full pre-resolve HTLC record for an
// HTLC_CLAIM or HTLC_REFUND transaction (§3). FollowupHTLC is set only when
// the resolution was a covenant claim that instantiated a chained HTLC
// instead of minting a plain receipt.
type HTLCResolveUndo struct {
	TxID         hucommon.Hash
	PriorState   HTLCRecord
	FollowupHTLC *HTLCRecord
}
