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

// Package masternode implements the deterministic masternode registry (C1,
// §4.1): the active set keyed by registration identifier, reconstructible
// from the chain.
package masternode

import hucommon "github.com/hu-network/hunode/common"

// Record is the Masternode Record of §3.
type Record struct {
	ID                hucommon.MNID
	OperatorPubKey    hucommon.PubKey
	CollateralOutpoint hucommon.Outpoint
	PayoutScript      []byte
	OwnerKeyHash      hucommon.Hash
	VotingKeyHash     hucommon.Hash
	ServiceEndpoint   string
	RegisteredHeight  uint64
	ConfirmedHeight   uint64 // 0 means "not yet confirmed"
	PoSeBanned        bool
	PenaltyScore      uint32
}

func (r *Record) Clone() *Record {
	cp := *r
	cp.PayoutScript = append([]byte{}, r.PayoutScript...)
	return &cp
}

// IsValid reports whether the record may currently produce or sign blocks.
func (r *Record) IsValid() bool { return !r.PoSeBanned }

// IsConfirmed reports whether the record has reached the confirmation
// height required to participate outside the bootstrap exception (§4.2).
func (r *Record) IsConfirmed() bool { return r.ConfirmedHeight > 0 }

// SpecialTxType is the fixed numeric tag of a special transaction (§6).
type SpecialTxType uint8

const (
	TxRegister SpecialTxType = iota + 1
	TxUpdateService
	TxUpdateRegistrar
	TxRevoke
)

// RegisterPayload is the payload of a REGISTER special transaction.
type RegisterPayload struct {
	ID                 hucommon.MNID
	OperatorPubKey     hucommon.PubKey
	CollateralOutpoint hucommon.Outpoint
	PayoutScript       []byte
	OwnerKeyHash       hucommon.Hash
	VotingKeyHash      hucommon.Hash
	ServiceEndpoint    string
}

// UpdateServicePayload is the payload of an UPDATE_SERVICE special
// transaction; it must be signed by the MN's current operator key.
type UpdateServicePayload struct {
	ID              hucommon.MNID
	ServiceEndpoint string
	OperatorPubKey  hucommon.PubKey // 0-value means "unchanged"
}

// UpdateRegistrarPayload is the payload of an UPDATE_REGISTRAR special
// transaction, changing the owner/voting/payout fields.
type UpdateRegistrarPayload struct {
	ID            hucommon.MNID
	OwnerKeyHash  hucommon.Hash
	VotingKeyHash hucommon.Hash
	PayoutScript  []byte
}

// RevokePayload is the payload of a REVOKE special transaction.
type RevokePayload struct {
	ID hucommon.MNID
}

// Block is the minimal view of a connected block the registry needs to
// process special transactions; P2P framing and full transaction bodies are
// out of scope (§1) and sketched no further than this.
type Block struct {
	Height  uint64
	Hash    hucommon.Hash
	Special []SpecialTx
}

// SpecialTx pairs a special-transaction tag with its decoded payload and the
// signer that authorized it (owner/operator key hash, checked by the
// caller's signature-verification layer before handing the tx here).
type SpecialTx struct {
	Type             SpecialTxType
	Register         *RegisterPayload
	UpdateService    *UpdateServicePayload
	UpdateRegistrar  *UpdateRegistrarPayload
	Revoke           *RevokePayload
	AuthorizedByKey  hucommon.PubKey // operator key that signed update-service
}
