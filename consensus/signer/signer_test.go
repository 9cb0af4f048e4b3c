package signer

import (
	"crypto/ecdsa"
	"testing"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	hucommon "github.com/hu-network/hunode/common"
	hucrypto "github.com/hu-network/hunode/crypto"
)

func genKey(t *testing.T) (*ecdsa.PrivateKey, hucommon.PubKey) {
	t.Helper()
	priv, err := ethcrypto.GenerateKey()
	require.NoError(t, err)
	return priv, hucrypto.CompressPubKey(&priv.PublicKey)
}

func TestSignAndVerify_RoundTrip(t *testing.T) {
	priv, pub := genKey(t)
	id := hucommon.BytesToMNID([]byte("mn-a"))
	now := time.Now()
	header := BlockHeader{Hash: hucrypto.Sha256([]byte("block")), Timestamp: now}

	sig, err := Sign(header, priv)
	require.NoError(t, err)

	resolve := func(ts time.Time) (hucommon.MNID, error) { return id, nil }
	lookup := func(mid hucommon.MNID) (hucommon.PubKey, bool) {
		if mid == id {
			return pub, true
		}
		return hucommon.PubKey{}, false
	}

	err = Verify(header, sig, resolve, lookup, now)
	assert.NoError(t, err)
}

func TestVerify_RejectsFutureTimestamp(t *testing.T) {
	priv, pub := genKey(t)
	id := hucommon.BytesToMNID([]byte("mn-a"))
	now := time.Now()
	header := BlockHeader{Hash: hucrypto.Sha256([]byte("block")), Timestamp: now.Add(200 * time.Second)}

	sig, err := Sign(BlockHeader{Hash: header.Hash}, priv)
	require.NoError(t, err)

	resolve := func(ts time.Time) (hucommon.MNID, error) { return id, nil }
	lookup := func(mid hucommon.MNID) (hucommon.PubKey, bool) { return pub, true }

	err = Verify(header, sig, resolve, lookup, now)
	assert.ErrorIs(t, err, ErrFutureTimestamp)
}

func TestVerify_RejectsBadSignatureLength(t *testing.T) {
	_, pub := genKey(t)
	id := hucommon.BytesToMNID([]byte("mn-a"))
	now := time.Now()
	header := BlockHeader{Hash: hucrypto.Sha256([]byte("block")), Timestamp: now}

	resolve := func(ts time.Time) (hucommon.MNID, error) { return id, nil }
	lookup := func(mid hucommon.MNID) (hucommon.PubKey, bool) { return pub, true }

	err := Verify(header, make([]byte, 10), resolve, lookup, now)
	assert.ErrorIs(t, err, ErrBadSignatureLen)
}

func TestVerify_RejectsWrongSigner(t *testing.T) {
	priv, _ := genKey(t)
	_, otherPub := genKey(t)
	id := hucommon.BytesToMNID([]byte("mn-a"))
	now := time.Now()
	header := BlockHeader{Hash: hucrypto.Sha256([]byte("block")), Timestamp: now}

	sig, err := Sign(header, priv)
	require.NoError(t, err)

	resolve := func(ts time.Time) (hucommon.MNID, error) { return id, nil }
	lookup := func(mid hucommon.MNID) (hucommon.PubKey, bool) { return otherPub, true }

	err = Verify(header, sig, resolve, lookup, now)
	require.Error(t, err)
}

func TestVerifyWithSkippedSlots_ReportsPassedOverCandidates(t *testing.T) {
	priv, pub := genKey(t)
	a := hucommon.BytesToMNID([]byte("a"))
	b := hucommon.BytesToMNID([]byte("b"))
	c := hucommon.BytesToMNID([]byte("c"))
	now := time.Now()
	header := BlockHeader{Hash: hucrypto.Sha256([]byte("block")), Timestamp: now}

	sig, err := Sign(header, priv)
	require.NoError(t, err)

	resolve := func(ts time.Time) (hucommon.MNID, error) { return c, nil }
	lookup := func(mid hucommon.MNID) (hucommon.PubKey, bool) { return pub, true }

	skipped, err := VerifyWithSkippedSlots(header, sig, resolve, lookup, now, []hucommon.MNID{a, b, c}, 2)
	require.NoError(t, err)
	assert.Equal(t, []hucommon.MNID{a, b}, skipped)
}
