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

package settlement

import hucommon "github.com/hu-network/hunode/common"

// TxType is the fixed numeric tag of a settlement-layer transaction (§6).
type TxType uint8

const (
	TxLock TxType = iota + 1
	TxUnlock
	TxTransferM1
	TxHTLCCreate
	TxHTLCClaim
	TxHTLCRefund
	TxHTLCCreate3S
	TxHTLCClaim3S
	TxHTLCRefund3S
	TxBurnClaim
	TxMintM0BTC
	TxBTCHeaders
)

// LockTx is a LOCK transaction: standard M0 inputs only, a vault and a
// matching receipt output, plus optional M0 change (§4.7).
type LockTx struct {
	TxID     hucommon.Hash
	Amount   uint64
	VaultOut hucommon.Outpoint
	ReceiptOut hucommon.Outpoint
	Height   uint64
}

// UnlockTx is an UNLOCK transaction: canonical-ordered receipt+vault
// inputs, M0 released plus optional M1 change/fee/vault outputs (§4.7).
// FeeOut, when set, must sit at the canonical index (1 with no M1 change,
// 2 with change) and carry FeeScript == ScriptOpTrue.
type UnlockTx struct {
	TxID            hucommon.Hash
	ReceiptInputs   []hucommon.Outpoint
	VaultInputs     []hucommon.Outpoint
	M0Released      uint64
	M0Out           hucommon.Outpoint
	M1ChangeOut     *hucommon.Outpoint
	M1ChangeAmount  uint64
	FeeOut          *hucommon.Outpoint
	FeeAmount       uint64
	FeeScript       []byte
	FeeVaultOut     *hucommon.Outpoint
	VaultChangeOut  *hucommon.Outpoint
	VaultChangeAmt  uint64
	Height          uint64
}

// TransferM1Tx moves M1 between bearer receipts (§4.7). Outputs must appear
// in canonical order: recipients first (indices 0..len(Recipients)-1), then
// the fee output at the last index, with FeeScript == ScriptOpTrue.
type TransferM1Tx struct {
	TxID       hucommon.Hash
	Input      hucommon.Outpoint
	Recipients []ReceiptOutput
	FeeOut     hucommon.Outpoint
	FeeAmount  uint64
	FeeScript  []byte
	Height     uint64
}

// ReceiptOutput is a single output amount/outpoint/script triple. Script
// must never be ScriptOpTrue: an ordinary M1 recipient output is never the
// fee sentinel (§4.7, §8 invariant 3).
type ReceiptOutput struct {
	Outpoint hucommon.Outpoint
	Amount   uint64
	Script   []byte
}

// HTLCCreateTx creates an HTLC from a single M1 receipt input (§4.7).
type HTLCCreateTx struct {
	TxID          hucommon.Hash
	Input         hucommon.Outpoint
	HTLCOut       hucommon.Outpoint
	Hashlocks     []hucommon.Hash
	ClaimKeyHash  hucommon.Hash
	RefundKeyHash hucommon.Hash
	ExpiryHeight  uint64
	RedeemScript  []byte
	Height        uint64
}

// HTLCClaimTx redeems an active HTLC with its preimage(s) (§4.7). A plain
// claim mints a new M1 receipt at ClaimerOut for the full htlc.amount. A
// covenant claim instead pivots amount-minus-CovenantFee into a follow-up
// HTLC (Followup non-nil) and never touches ClaimerOut.
type HTLCClaimTx struct {
	TxID        hucommon.Hash
	HTLCInput   hucommon.Outpoint
	Preimages   [][]byte
	ClaimerOut  hucommon.Outpoint
	CovenantFee uint64
	Followup    *CovenantHTLC
	Height      uint64
}

// CovenantHTLC describes the follow-up HTLC record a covenant HTLC_CLAIM
// instantiates in place of minting a plain M1 receipt (§4.7: "either mint a
// new M1 receipt for the claimer or instantiate the follow-up covenant
// HTLC").
type CovenantHTLC struct {
	HTLCOut       hucommon.Outpoint
	Hashlocks     []hucommon.Hash
	ClaimKeyHash  hucommon.Hash
	RefundKeyHash hucommon.Hash
	ExpiryHeight  uint64
	RedeemScript  []byte
}

// HTLCRefundTx returns an expired HTLC's value to its creator (§4.7).
type HTLCRefundTx struct {
	TxID        hucommon.Hash
	HTLCInput   hucommon.Outpoint
	CreatorOut  hucommon.Outpoint
	Height      uint64
}
