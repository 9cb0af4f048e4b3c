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

import (
	"crypto/sha256"

	"github.com/pkg/errors"

	hucommon "github.com/hu-network/hunode/common"
	"github.com/hu-network/hunode/log"
	"github.com/hu-network/hunode/params"
)

var logger = log.NewModuleLogger(log.Settlement)

var (
	ErrZeroAmount        = errors.New("settlement: amount must be greater than zero")
	ErrVaultReceiptMismatch = errors.New("settlement: vault and receipt amounts must match")
	ErrUnknownReceipt    = errors.New("settlement: unknown receipt outpoint")
	ErrUnknownVault      = errors.New("settlement: unknown vault outpoint")
	ErrUnknownHTLC       = errors.New("settlement: unknown HTLC outpoint")
	ErrConservation      = errors.New("settlement: input/output conservation violated")
	ErrInsufficientVault = errors.New("settlement: vault inputs insufficient to cover released amount and fee")
	ErrFeeTooLow         = errors.New("settlement: fee below minimum")
	ErrHTLCNotActive     = errors.New("settlement: HTLC is not active")
	ErrHTLCNotExpired    = errors.New("settlement: HTLC has not reached its expiry height")
	ErrHTLCAlreadyExpired = errors.New("settlement: HTLC already past expiry, refund only")
	ErrBadPreimage       = errors.New("settlement: preimage does not hash to the record's hashlock")
	ErrRecipientIsOpTrue = errors.New("settlement: recipient output must not be the fee sentinel")
	ErrFeeNotOpTrue      = errors.New("settlement: fee output script must be exactly OP_TRUE")
	ErrCanonicalOrder    = errors.New("settlement: outputs are not in canonical position")
)

// ScriptOpTrue is the single-byte consensus sentinel script of §3/§4.7:
// required on vault outputs and fee outputs, forbidden on ordinary M1
// recipient outputs.
var ScriptOpTrue = []byte{0x51}

func isOpTrue(script []byte) bool {
	return len(script) == 1 && script[0] == ScriptOpTrue[0]
}

// State is the live settlement state machine (C7): it mutates Vaults,
// Receipts, and HTLCs in Store and tracks the running M0/M1 aggregates
// that back the A5/A6 invariants, checked against the staged state before
// C8 commits it.
type State struct {
	store  *Store
	params params.NetworkParams

	m0Vaulted     uint64
	m1Supply      uint64
	m0TotalSupply uint64
}

// NewState resumes the state machine from a previously-persisted snapshot.
func NewState(store *Store, p params.NetworkParams, resume Snapshot) *State {
	return &State{
		store:         store,
		params:        p,
		m0Vaulted:     resume.M0Vaulted,
		m1Supply:      resume.M1Supply,
		m0TotalSupply: resume.M0TotalSupply,
	}
}

func (s *State) M0Vaulted() uint64     { return s.m0Vaulted }
func (s *State) M1Supply() uint64      { return s.m1Supply }
func (s *State) M0TotalSupply() uint64 { return s.m0TotalSupply }

// ApplyLock implements the LOCK contract of §4.7.
func (s *State) ApplyLock(tx LockTx) error {
	if tx.Amount == 0 {
		return ErrZeroAmount
	}
	if err := s.store.PutVault(Vault{Outpoint: tx.VaultOut, Amount: tx.Amount, LockHeight: tx.Height}); err != nil {
		return err
	}
	if err := s.store.PutReceipt(Receipt{Outpoint: tx.ReceiptOut, Amount: tx.Amount, CreateHeight: tx.Height}); err != nil {
		return err
	}
	s.m0Vaulted += tx.Amount
	s.m1Supply += tx.Amount
	return nil
}

func (s *State) UndoLock(tx LockTx) error {
	if err := s.store.DeleteVault(tx.VaultOut); err != nil {
		return err
	}
	if err := s.store.DeleteReceipt(tx.ReceiptOut); err != nil {
		return err
	}
	s.m0Vaulted -= tx.Amount
	s.m1Supply -= tx.Amount
	return nil
}

// ApplyUnlock implements the UNLOCK contract of §4.7: canonical receipt-
// then-vault inputs, conservation Σm1_in == m0_out + m1_change + m1_fee
// and Σvault_in ≥ m0_out + m1_fee, fee transferred (not burned) to the
// producer's claimable receipt.
func (s *State) ApplyUnlock(tx UnlockTx, feeRecipient hucommon.Outpoint) (*UnlockUndo, error) {
	if tx.M0Released == 0 {
		return nil, ErrZeroAmount
	}
	if tx.FeeAmount > 0 && tx.FeeAmount < ComputeMinFee(s.params, 1) {
		return nil, ErrFeeTooLow
	}
	if tx.M0Out.TxID != tx.TxID || tx.M0Out.Index != 0 {
		return nil, ErrCanonicalOrder
	}
	if (tx.FeeOut == nil) != (tx.FeeAmount == 0) {
		return nil, ErrCanonicalOrder
	}
	if tx.FeeOut != nil {
		wantIndex := uint32(1)
		if tx.M1ChangeOut != nil {
			wantIndex = 2
		}
		if tx.FeeOut.TxID != tx.TxID || tx.FeeOut.Index != wantIndex {
			return nil, ErrCanonicalOrder
		}
		if !isOpTrue(tx.FeeScript) {
			return nil, ErrFeeNotOpTrue
		}
	}

	var spentReceipts []Receipt
	var m1In uint64
	for _, op := range tx.ReceiptInputs {
		r, ok, err := s.store.GetReceipt(op)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrUnknownReceipt
		}
		spentReceipts = append(spentReceipts, r)
		m1In += r.Amount
	}
	if m1In != tx.M0Released+tx.M1ChangeAmount+tx.FeeAmount {
		return nil, ErrConservation
	}

	var spentVaults []Vault
	var vaultIn uint64
	for _, op := range tx.VaultInputs {
		v, ok, err := s.store.GetVault(op)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrUnknownVault
		}
		spentVaults = append(spentVaults, v)
		vaultIn += v.Amount
	}
	if vaultIn < tx.M0Released+tx.FeeAmount {
		return nil, ErrInsufficientVault
	}

	for _, op := range tx.ReceiptInputs {
		if err := s.store.DeleteReceipt(op); err != nil {
			return nil, err
		}
	}
	for _, op := range tx.VaultInputs {
		if err := s.store.DeleteVault(op); err != nil {
			return nil, err
		}
	}

	undo := &UnlockUndo{TxID: tx.TxID, SpentReceipts: spentReceipts, SpentVaults: spentVaults, M0Released: tx.M0Released}

	if tx.M1ChangeOut != nil && tx.M1ChangeAmount > 0 {
		change := Receipt{Outpoint: *tx.M1ChangeOut, Amount: tx.M1ChangeAmount, CreateHeight: tx.Height}
		if err := s.store.PutReceipt(change); err != nil {
			return nil, err
		}
		undo.M1ChangeOutput = &change
	}

	vaultReturned := vaultIn - tx.M0Released - tx.FeeAmount
	if tx.FeeAmount > 0 {
		feeReceipt := Receipt{Outpoint: feeRecipient, Amount: tx.FeeAmount, CreateHeight: tx.Height}
		if err := s.store.PutReceipt(feeReceipt); err != nil {
			return nil, err
		}
		undo.FeeReceipt = &feeReceipt

		if tx.FeeVaultOut != nil {
			feeVault := Vault{Outpoint: *tx.FeeVaultOut, Amount: tx.FeeAmount, LockHeight: tx.Height}
			if err := s.store.PutVault(feeVault); err != nil {
				return nil, err
			}
			undo.FeeVault = &feeVault
			vaultReturned -= tx.FeeAmount
		}
	}
	if tx.VaultChangeOut != nil && vaultReturned > 0 {
		vc := Vault{Outpoint: *tx.VaultChangeOut, Amount: vaultReturned, LockHeight: tx.Height}
		if err := s.store.PutVault(vc); err != nil {
			return nil, err
		}
		undo.VaultChange = &vc
	}

	s.m0Vaulted -= tx.M0Released
	s.m1Supply -= tx.M0Released
	return undo, nil
}

func (s *State) UndoUnlock(u *UnlockUndo) error {
	for _, r := range u.SpentReceipts {
		if err := s.store.PutReceipt(r); err != nil {
			return err
		}
	}
	for _, v := range u.SpentVaults {
		if err := s.store.PutVault(v); err != nil {
			return err
		}
	}
	if u.M1ChangeOutput != nil {
		if err := s.store.DeleteReceipt(u.M1ChangeOutput.Outpoint); err != nil {
			return err
		}
	}
	if u.FeeReceipt != nil {
		if err := s.store.DeleteReceipt(u.FeeReceipt.Outpoint); err != nil {
			return err
		}
	}
	if u.FeeVault != nil {
		if err := s.store.DeleteVault(u.FeeVault.Outpoint); err != nil {
			return err
		}
	}
	if u.VaultChange != nil {
		if err := s.store.DeleteVault(u.VaultChange.Outpoint); err != nil {
			return err
		}
	}
	s.m0Vaulted += u.M0Released
	s.m1Supply += u.M0Released
	return nil
}

// ApplyTransfer implements TRANSFER_M1 of §4.7: m1_supply is unchanged;
// the fee is transferred, not burned.
func (s *State) ApplyTransfer(tx TransferM1Tx) (*TransferUndo, error) {
	original, ok, err := s.store.GetReceipt(tx.Input)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrUnknownReceipt
	}
	if tx.FeeAmount == 0 {
		return nil, ErrFeeTooLow
	}
	if tx.FeeOut.TxID != tx.TxID || tx.FeeOut.Index != uint32(len(tx.Recipients)) {
		return nil, ErrCanonicalOrder
	}
	if !isOpTrue(tx.FeeScript) {
		return nil, ErrFeeNotOpTrue
	}

	var recipientTotal uint64
	for i, out := range tx.Recipients {
		if out.Outpoint.TxID != tx.TxID || out.Outpoint.Index != uint32(i) {
			return nil, ErrCanonicalOrder
		}
		if isOpTrue(out.Script) {
			return nil, ErrRecipientIsOpTrue
		}
		recipientTotal += out.Amount
	}
	if original.Amount != recipientTotal+tx.FeeAmount {
		return nil, ErrConservation
	}

	if err := s.store.DeleteReceipt(tx.Input); err != nil {
		return nil, err
	}
	for _, out := range tx.Recipients {
		if err := s.store.PutReceipt(Receipt{Outpoint: out.Outpoint, Amount: out.Amount, CreateHeight: tx.Height}); err != nil {
			return nil, err
		}
	}
	feeReceipt := Receipt{Outpoint: tx.FeeOut, Amount: tx.FeeAmount, CreateHeight: tx.Height}
	if err := s.store.PutReceipt(feeReceipt); err != nil {
		return nil, err
	}
	return &TransferUndo{TxID: tx.TxID, OriginalReceipt: original, RecipientCount: len(tx.Recipients), FeeReceipt: feeReceipt}, nil
}

func (s *State) UndoTransfer(u *TransferUndo, recipients []hucommon.Outpoint) error {
	for _, op := range recipients {
		if err := s.store.DeleteReceipt(op); err != nil {
			return err
		}
	}
	if err := s.store.DeleteReceipt(u.FeeReceipt.Outpoint); err != nil {
		return err
	}
	return s.store.PutReceipt(u.OriginalReceipt)
}

// legacyFarFutureExpiry is the default expiry height substituted for a
// legacy empty-payload HTLC_CREATE (§9 Open Question 1): far enough out
// that it never naturally expires, since the original payload carried no
// expiry to preserve.
const legacyFarFutureExpiry = ^uint64(0)

// ApplyHTLCCreate implements HTLC_CREATE / HTLC_CREATE_3S of §4.7. At or
// below params.LegacyHTLCCutoffHeight, an empty payload (no hashlocks) is
// tolerated and stored with a null hashlock and far-future expiry instead
// of being rejected, to keep historical blocks at or below that height
// valid; LegacyHTLCCutoffHeight is 0 (disabled) on every current preset.
func (s *State) ApplyHTLCCreate(tx HTLCCreateTx) (*HTLCCreateUndo, error) {
	if len(tx.Hashlocks) == 0 && s.params.LegacyHTLCCutoffHeight > 0 && tx.Height <= s.params.LegacyHTLCCutoffHeight {
		logger.Warn("accepting legacy empty-payload HTLC_CREATE below cutoff",
			"height", tx.Height, "cutoff", s.params.LegacyHTLCCutoffHeight)
		tx.Hashlocks = []hucommon.Hash{{}}
		tx.ExpiryHeight = legacyFarFutureExpiry
	}
	if len(tx.Hashlocks) == 0 {
		return nil, errors.New("settlement: HTLC_CREATE payload carries no hashlock")
	}

	receipt, ok, err := s.store.GetReceipt(tx.Input)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrUnknownReceipt
	}
	if err := s.store.DeleteReceipt(tx.Input); err != nil {
		return nil, err
	}
	record := HTLCRecord{
		Outpoint:      tx.HTLCOut,
		Hashlocks:     tx.Hashlocks,
		SourceReceipt: tx.Input,
		Amount:        receipt.Amount,
		ClaimKeyHash:  tx.ClaimKeyHash,
		RefundKeyHash: tx.RefundKeyHash,
		CreateHeight:  tx.Height,
		ExpiryHeight:  tx.ExpiryHeight,
		RedeemScript:  tx.RedeemScript,
		Status:        HTLCActive,
	}
	if err := s.store.PutHTLC(record); err != nil {
		return nil, err
	}
	return &HTLCCreateUndo{TxID: tx.TxID, ConsumedReceipt: receipt, HTLCOutpoint: tx.HTLCOut}, nil
}

func (s *State) UndoHTLCCreate(u *HTLCCreateUndo, record HTLCRecord) error {
	if err := s.store.EraseHashlockIndex(record); err != nil {
		return err
	}
	if err := s.store.PutReceipt(u.ConsumedReceipt); err != nil {
		return err
	}
	return nil
}

// ApplyHTLCClaim implements HTLC_CLAIM / HTLC_CLAIM_3S of §4.7: every
// preimage must hash (SHA-256) to its record's hashlock. `vout[0].amount ==
// htlc.amount`, or `amount - CovenantFee` when tx.Followup pivots the
// released value into a chained HTLC instead of minting a receipt.
func (s *State) ApplyHTLCClaim(tx HTLCClaimTx) (*HTLCResolveUndo, error) {
	record, ok, err := s.store.GetHTLC(tx.HTLCInput)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrUnknownHTLC
	}
	if record.Status != HTLCActive {
		return nil, ErrHTLCNotActive
	}
	if len(tx.Preimages) != len(record.Hashlocks) {
		return nil, ErrBadPreimage
	}
	for i, preimage := range tx.Preimages {
		if sha256.Sum256(preimage) != [32]byte(record.Hashlocks[i]) {
			return nil, ErrBadPreimage
		}
	}
	if tx.Followup != nil && tx.CovenantFee > record.Amount {
		return nil, ErrConservation
	}

	prior := record
	if err := s.store.EraseHashlockIndex(record); err != nil {
		return nil, err
	}
	record.Status = HTLCClaimed
	record.ResolveTxID = tx.TxID
	record.Preimages = tx.Preimages
	if err := s.store.PutHTLCResolved(record); err != nil {
		return nil, err
	}

	if tx.Followup == nil {
		if err := s.store.PutReceipt(Receipt{Outpoint: tx.ClaimerOut, Amount: record.Amount, CreateHeight: tx.Height}); err != nil {
			return nil, err
		}
		return &HTLCResolveUndo{TxID: tx.TxID, PriorState: prior}, nil
	}

	followup := HTLCRecord{
		Outpoint:      tx.Followup.HTLCOut,
		Hashlocks:     tx.Followup.Hashlocks,
		SourceReceipt: record.SourceReceipt,
		Amount:        record.Amount - tx.CovenantFee,
		ClaimKeyHash:  tx.Followup.ClaimKeyHash,
		RefundKeyHash: tx.Followup.RefundKeyHash,
		CreateHeight:  tx.Height,
		ExpiryHeight:  tx.Followup.ExpiryHeight,
		RedeemScript:  tx.Followup.RedeemScript,
		Status:        HTLCActive,
	}
	if err := s.store.PutHTLC(followup); err != nil {
		return nil, err
	}
	return &HTLCResolveUndo{TxID: tx.TxID, PriorState: prior, FollowupHTLC: &followup}, nil
}

// ApplyHTLCRefund implements HTLC_REFUND / HTLC_REFUND_3S of §4.7.
func (s *State) ApplyHTLCRefund(tx HTLCRefundTx, currentHeight uint64) (*HTLCResolveUndo, error) {
	record, ok, err := s.store.GetHTLC(tx.HTLCInput)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrUnknownHTLC
	}
	if record.Status != HTLCActive {
		return nil, ErrHTLCNotActive
	}
	if currentHeight < record.ExpiryHeight {
		return nil, ErrHTLCNotExpired
	}

	prior := record
	if err := s.store.EraseHashlockIndex(record); err != nil {
		return nil, err
	}
	record.Status = HTLCRefunded
	record.ResolveTxID = tx.TxID
	if err := s.store.PutHTLCResolved(record); err != nil {
		return nil, err
	}
	if err := s.store.PutReceipt(Receipt{Outpoint: tx.CreatorOut, Amount: record.Amount, CreateHeight: tx.Height}); err != nil {
		return nil, err
	}
	return &HTLCResolveUndo{TxID: tx.TxID, PriorState: prior}, nil
}

func (s *State) UndoHTLCResolve(u *HTLCResolveUndo, resolvedOut hucommon.Outpoint) error {
	if u.FollowupHTLC != nil {
		if err := s.store.EraseHashlockIndex(*u.FollowupHTLC); err != nil {
			return err
		}
		if err := s.store.DeleteHTLC(u.FollowupHTLC.Outpoint); err != nil {
			return err
		}
	} else if err := s.store.DeleteReceipt(resolvedOut); err != nil {
		return err
	}
	return s.store.PutHTLC(u.PriorState)
}

// FinalizeBlock checks A5/A6 against the staged in-memory state and writes
// the height's snapshot; C8 calls this before committing (§4.7, §4.8).
func (s *State) FinalizeBlock(height uint64, hash hucommon.Hash, burnClaims uint64) (Snapshot, error) {
	prevTotal := s.m0TotalSupply
	s.m0TotalSupply = prevTotal + burnClaims

	if s.m0Vaulted != s.m1Supply {
		return Snapshot{}, errors.Wrapf(ErrConservation, "A6 violated at height %d: vaulted=%d supply=%d", height, s.m0Vaulted, s.m1Supply)
	}

	snap := Snapshot{
		Height:          height,
		BlockHash:       hash,
		M0Vaulted:       s.m0Vaulted,
		M1Supply:        s.m1Supply,
		M0TotalSupply:   s.m0TotalSupply,
		BurnClaimsBlock: burnClaims,
	}
	if err := s.store.PutSnapshot(snap); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}
