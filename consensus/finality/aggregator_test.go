package finality

import (
	"crypto/ecdsa"
	"testing"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	hucommon "github.com/hu-network/hunode/common"
	hucrypto "github.com/hu-network/hunode/crypto"
	"github.com/hu-network/hunode/masternode"
	"github.com/hu-network/hunode/params"
	"github.com/hu-network/hunode/storage/database"
)

type testMN struct {
	id  hucommon.MNID
	key *ecdsa.PrivateKey
	pub hucommon.PubKey
}

func newTestMN(t *testing.T, tag string) testMN {
	t.Helper()
	priv, err := ethcrypto.GenerateKey()
	require.NoError(t, err)
	return testMN{
		id:  hucommon.BytesToMNID([]byte(tag)),
		key: priv,
		pub: hucrypto.CompressPubKey(&priv.PublicKey),
	}
}

func newTestAggregator(t *testing.T, p params.NetworkParams, mns []testMN, onFinal func(BlockInfo)) *Aggregator {
	store := NewStore(database.NewMemDatabase())
	lookup := map[hucommon.MNID]hucommon.PubKey{}
	for _, m := range mns {
		lookup[m.id] = m.pub
	}
	resolveOp := func(id hucommon.MNID, _ hucommon.Hash) (hucommon.PubKey, bool) {
		pub, ok := lookup[id]
		return pub, ok
	}
	inQuorum := func(_ BlockInfo, _ hucommon.PubKey) bool { return true }
	return NewAggregator(p, store, resolveOp, inQuorum, onFinal)
}

func TestAggregator_ReachesThresholdAndFinalizes(t *testing.T) {
	p := params.Regtest()
	p.QuorumThreshold = 2

	a1 := newTestMN(t, "a")
	a2 := newTestMN(t, "b")
	a3 := newTestMN(t, "c")
	producer := newTestMN(t, "producer")

	var finalized []BlockInfo
	agg := newTestAggregator(t, p, []testMN{a1, a2, a3, producer}, func(b BlockInfo) { finalized = append(finalized, b) })

	block := BlockInfo{Height: 10, Hash: hucrypto.Sha256([]byte("block-10")), Producer: producer.id}

	votes, err := agg.SignLocal(block, map[hucommon.MNID]*ecdsa.PrivateKey{a1.id: a1.key, producer.id: producer.key})
	require.NoError(t, err)
	require.Len(t, votes, 1, "producer must not sign its own block")
	assert.Empty(t, finalized, "threshold 2 not yet reached with 1 signature")

	require.NoError(t, agg.AcceptPeerVote("peer1", block, Vote{MNID: a2.id, Sig: mustSign(t, block.Hash, a2.key)}, true))

	// After a1 (local) + a2 (peer), count is 2 == threshold.
	rec, ok := agg.RecordFor(block.Hash)
	require.True(t, ok)
	assert.True(t, rec.Final)
	assert.Len(t, finalized, 1)
}

func mustSign(t *testing.T, blockHash hucommon.Hash, key *ecdsa.PrivateKey) []byte {
	t.Helper()
	msg := hucrypto.HUSIGMessage(blockHash)
	sig, err := hucrypto.CompactSign(msg, key)
	require.NoError(t, err)
	return sig
}

func TestAggregator_RejectsUnknownBlock(t *testing.T) {
	p := params.Regtest()
	p.QuorumThreshold = 2
	a1 := newTestMN(t, "a")
	agg := newTestAggregator(t, p, []testMN{a1}, nil)

	block := BlockInfo{Height: 1, Hash: hucrypto.Sha256([]byte("unknown"))}
	err := agg.AcceptPeerVote("peer1", block, Vote{MNID: a1.id, Sig: mustSign(t, block.Hash, a1.key)}, false)
	assert.ErrorIs(t, err, ErrBlockUnknown)
}

func TestAggregator_RejectsBadSignerKey(t *testing.T) {
	p := params.Regtest()
	p.QuorumThreshold = 2
	a1 := newTestMN(t, "a")
	other := newTestMN(t, "other")
	agg := newTestAggregator(t, p, []testMN{a1}, nil)

	block := BlockInfo{Height: 1, Hash: hucrypto.Sha256([]byte("block"))}
	// a1's claimed id but signed with a different key.
	err := agg.AcceptPeerVote("peer1", block, Vote{MNID: a1.id, Sig: mustSign(t, block.Hash, other.key)}, true)
	assert.ErrorIs(t, err, ErrRecoverMismatch)
}

func TestAggregator_RateLimitsExcessSignatures(t *testing.T) {
	p := params.Regtest()
	p.PeerSignatureRateLimit = 1
	p.QuorumThreshold = 100
	a1 := newTestMN(t, "a")
	a2 := newTestMN(t, "b")
	agg := newTestAggregator(t, p, []testMN{a1, a2}, nil)

	b1 := BlockInfo{Height: 1, Hash: hucrypto.Sha256([]byte("block-1"))}
	b2 := BlockInfo{Height: 2, Hash: hucrypto.Sha256([]byte("block-2"))}

	require.NoError(t, agg.AcceptPeerVote("peer1", b1, Vote{MNID: a1.id, Sig: mustSign(t, b1.Hash, a1.key)}, true))
	err := agg.AcceptPeerVote("peer1", b2, Vote{MNID: a2.id, Sig: mustSign(t, b2.Hash, a2.key)}, true)
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestSlashingRecorder_DetectsDoubleSign(t *testing.T) {
	s := NewSlashingRecorder(100)
	id := hucommon.BytesToMNID([]byte("mn"))
	h1 := hucommon.BytesToHash([]byte("hash1"))
	h2 := hucommon.BytesToHash([]byte("hash2"))

	conflict := s.Observe(10, id, h1, []byte("sig1"))
	assert.False(t, conflict)

	conflict = s.Observe(10, id, h2, []byte("sig2"))
	assert.True(t, conflict)
	assert.Len(t, s.EvidenceList(), 1)
}

func TestAggregator_DoubleSignAppliesPoSePenaltyToRegistry(t *testing.T) {
	p := params.Regtest()
	p.QuorumThreshold = 100
	a1 := newTestMN(t, "a")
	agg := newTestAggregator(t, p, []testMN{a1}, nil)

	registry := masternode.NewRegistry()
	require.NoError(t, registry.ProcessBlock(&masternode.Block{
		Height: 1,
		Special: []masternode.SpecialTx{{
			Type: masternode.TxRegister,
			Register: &masternode.RegisterPayload{
				ID:              a1.id,
				OperatorPubKey:  a1.pub,
				OwnerKeyHash:    hucommon.BytesToHash([]byte("owner")),
				VotingKeyHash:   hucommon.BytesToHash([]byte("owner")),
				ServiceEndpoint: "127.0.0.1:9000",
			},
		}},
	}))

	agg.OnDoubleSign(func(ev Evidence) {
		registry.ApplyPenalty(ev.MNID, DoubleSignPenalty)
	})

	b1 := BlockInfo{Height: 10, Hash: hucrypto.Sha256([]byte("block-a"))}
	b2 := BlockInfo{Height: 10, Hash: hucrypto.Sha256([]byte("block-b"))}

	require.NoError(t, agg.AcceptPeerVote("peer1", b1, Vote{MNID: a1.id, Sig: mustSign(t, b1.Hash, a1.key)}, true))
	err := agg.AcceptPeerVote("peer2", b2, Vote{MNID: a1.id, Sig: mustSign(t, b2.Hash, a1.key)}, true)
	assert.ErrorIs(t, err, ErrDoubleSign)

	rec, ok := registry.Get(a1.id)
	require.True(t, ok)
	assert.Equal(t, DoubleSignPenalty, rec.PenaltyScore)
	assert.False(t, rec.PoSeBanned, "single offense must not reach the ban ceiling")
}

func TestEnforcement_RejectsConflictingFinalBlock(t *testing.T) {
	e := NewEnforcement()
	hash := hucommon.BytesToHash([]byte("final"))
	e.MarkFinal(10, hash)

	assert.NoError(t, e.CheckNewBlock(10, hash))
	assert.ErrorIs(t, e.CheckNewBlock(10, hucommon.BytesToHash([]byte("other"))), ErrConflictsWithFinal)
}

func TestEnforcement_RejectsReorgBelowFinal(t *testing.T) {
	e := NewEnforcement()
	e.MarkFinal(10, hucommon.BytesToHash([]byte("final")))
	assert.Error(t, e.CheckReorg(5))
	assert.NoError(t, e.CheckReorg(11))
}

func TestProof_RoundTrip(t *testing.T) {
	a1 := newTestMN(t, "a")
	a2 := newTestMN(t, "b")

	hash := hucrypto.Sha256([]byte("block"))
	r := newRecord(42, hash)
	r.Votes[a1.id] = mustSign(t, hash, a1.key)
	r.Votes[a2.id] = mustSign(t, hash, a2.key)

	lookup := map[hucommon.MNID]hucommon.PubKey{a1.id: a1.pub, a2.id: a2.pub}
	proof, err := BuildProof(r, 2, 2, func(id hucommon.MNID) (hucommon.PubKey, bool) {
		pub, ok := lookup[id]
		return pub, ok
	})
	require.NoError(t, err)

	require.NoError(t, VerifyProof(proof, nil))
}

func TestProof_FailsBelowThreshold(t *testing.T) {
	a1 := newTestMN(t, "a")
	hash := hucrypto.Sha256([]byte("block"))
	r := newRecord(42, hash)
	r.Votes[a1.id] = mustSign(t, hash, a1.key)

	proof, err := BuildProof(r, 2, 2, func(id hucommon.MNID) (hucommon.PubKey, bool) { return a1.pub, true })
	require.NoError(t, err)

	assert.Error(t, VerifyProof(proof, nil))
}
