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

// Package signer implements the block signing and verification rules of
// C3: the operator key signs the block's content hash, and a verifier
// recomputes the expected producer from the block's own timestamp to
// check the signature against.
package signer

import (
	"crypto/ecdsa"
	"time"

	"github.com/pkg/errors"

	hucommon "github.com/hu-network/hunode/common"
	hucrypto "github.com/hu-network/hunode/crypto"
	"github.com/hu-network/hunode/log"
	"github.com/hu-network/hunode/params"
)

var logger = log.NewModuleLogger(log.ConsensusSigner)

var (
	ErrFutureTimestamp   = errors.New("signer: block timestamp too far in the future")
	ErrBadSignatureLen   = errors.New("signer: signature length outside DER range")
	ErrUnknownProducer   = errors.New("signer: expected producer not found in candidate set")
	ErrSignatureMismatch = errors.New("signer: signature does not verify against expected producer")
)

// MaxFutureDrift is the verification tolerance of §4.3.
const MaxFutureDrift = 120 * time.Second

// BlockHeader is the minimal view of a block needed for signing/verifying.
type BlockHeader struct {
	Hash      hucommon.Hash
	Timestamp time.Time
}

// Sign signs header.Hash with the operator key (§4.3).
func Sign(header BlockHeader, operatorKey *ecdsa.PrivateKey) ([]byte, error) {
	return hucrypto.Sign(header.Hash, operatorKey)
}

// OperatorKeyLookup resolves a masternode id to its currently registered
// operator public key.
type OperatorKeyLookup func(id hucommon.MNID) (hucommon.PubKey, bool)

// ProducerResolver reproduces C2's slot formula for a given header
// timestamp, returning the expected producer id.
type ProducerResolver func(headerTimestamp time.Time) (hucommon.MNID, error)

// Verify implements §4.3: it rejects stale-future timestamps and
// out-of-range signature lengths, recomputes the expected producer from
// the block's own timestamp, and checks the signature against that MN's
// operator key.
func Verify(header BlockHeader, sig []byte, resolve ProducerResolver, lookup OperatorKeyLookup, now time.Time) error {
	if header.Timestamp.After(now.Add(MaxFutureDrift)) {
		return ErrFutureTimestamp
	}
	if len(sig) < hucrypto.DERSignatureMin || len(sig) > hucrypto.DERSignatureMax {
		return ErrBadSignatureLen
	}

	producer, err := resolve(header.Timestamp)
	if err != nil {
		return errors.Wrap(err, "signer: resolving expected producer")
	}
	pub, ok := lookup(producer)
	if !ok {
		return ErrUnknownProducer
	}
	if err := hucrypto.VerifyBlockSignature(header.Hash, sig, pub); err != nil {
		return errors.Wrap(ErrSignatureMismatch, err.Error())
	}
	return nil
}

// VerifyWithSkippedSlots behaves like Verify but additionally reports the
// MN ids of every higher-scored candidate that was passed over for this
// slot, for PoSe penalty accrual (§4.3).
func VerifyWithSkippedSlots(
	header BlockHeader,
	sig []byte,
	resolve ProducerResolver,
	lookup OperatorKeyLookup,
	now time.Time,
	orderedCandidates []hucommon.MNID,
	chosenSlot uint64,
) ([]hucommon.MNID, error) {
	if err := Verify(header, sig, resolve, lookup, now); err != nil {
		return nil, err
	}
	var skipped []hucommon.MNID
	n := uint64(len(orderedCandidates))
	if n == 0 {
		return nil, nil
	}
	for s := uint64(0); s < chosenSlot && s < n; s++ {
		skipped = append(skipped, orderedCandidates[s%n])
	}
	return skipped, nil
}

// ReportSkippedProducer logs a skipped-slot observation; callers feed this
// into the masternode registry's ApplyPenalty via C11's bookkeeping.
func ReportSkippedProducer(p params.NetworkParams, id hucommon.MNID) {
	logger.Debug("producer skipped its slot", "id", id.String())
}
