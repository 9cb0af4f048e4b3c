package commitdb

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	hucommon "github.com/hu-network/hunode/common"
	"github.com/hu-network/hunode/params"
	"github.com/hu-network/hunode/settlement"
	"github.com/hu-network/hunode/storage/database"
)

var errCollaboratorFailed = errors.New("collaborator failed")

type fakeCollaborator struct {
	name     string
	best     hucommon.Hash
	hasBest  bool
	failNext bool
}

func (f *fakeCollaborator) Name() string { return f.name }

func (f *fakeCollaborator) Finalize(height uint64, hash hucommon.Hash) error {
	if f.failNext {
		return errCollaboratorFailed
	}
	f.best = hash
	f.hasBest = true
	return nil
}

func (f *fakeCollaborator) BestBlock() (hucommon.Hash, bool, error) {
	return f.best, f.hasBest, nil
}

func newHarness(t *testing.T) (*settlement.Store, *settlement.State, *fakeCollaborator, *fakeCollaborator) {
	t.Helper()
	store := settlement.NewStore(database.NewMemDatabase())
	state := settlement.NewState(store, params.Regtest(), settlement.Snapshot{})
	headers := &fakeCollaborator{name: "btc-headers"}
	burnClaim := &fakeCollaborator{name: "burn-claim"}
	return store, state, headers, burnClaim
}

func TestCommitter_CommitsInOrderAndWritesAllCommitted(t *testing.T) {
	store, state, headers, burnClaim := newHarness(t)
	require.NoError(t, state.ApplyLock(settlement.LockTx{
		TxID: hucommon.BytesToHash([]byte("l")), Amount: 100,
		VaultOut: hucommon.Outpoint{TxID: hucommon.BytesToHash([]byte("l")), Index: 0},
		ReceiptOut: hucommon.Outpoint{TxID: hucommon.BytesToHash([]byte("l")), Index: 1},
		Height: 1,
	}))

	c := New(store, state, headers, burnClaim)
	blockHash := hucommon.BytesToHash([]byte("block1"))
	snap, err := c.Commit(Block{Height: 1, Hash: blockHash})
	require.NoError(t, err)
	assert.Equal(t, uint64(100), snap.M0Vaulted)

	best, ok, err := store.GetBestBlock()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, blockHash, best)

	allCommitted, ok, err := store.GetAllCommitted()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, blockHash, allCommitted)

	assert.True(t, headers.hasBest)
	assert.Equal(t, blockHash, headers.best)
	assert.True(t, burnClaim.hasBest)

	require.NoError(t, c.Verify())
}

func TestCommitter_CollaboratorFailureLeavesNoAllCommittedMarker(t *testing.T) {
	store, state, headers, burnClaim := newHarness(t)
	burnClaim.failNext = true

	c := New(store, state, headers, burnClaim)
	_, err := c.Commit(Block{Height: 1, Hash: hucommon.BytesToHash([]byte("block1"))})
	require.Error(t, err)

	_, ok, err := store.GetAllCommitted()
	require.NoError(t, err)
	assert.False(t, ok, "all-committed marker must not be written on partial failure")
}

func TestCommitter_VerifyDetectsMarkerMismatch(t *testing.T) {
	store, state, headers, burnClaim := newHarness(t)
	c := New(store, state, headers, burnClaim)
	require.NoError(t, store.PutAllCommitted(hucommon.BytesToHash([]byte("phantom"))))

	err := c.Verify()
	assert.ErrorIs(t, err, ErrMarkerMismatch)
}

func TestRebuild_ReplaysBlocksAndRederivesSnapshot(t *testing.T) {
	store := settlement.NewStore(database.NewMemDatabase())
	p := params.Regtest()

	lockOutV := hucommon.Outpoint{TxID: hucommon.BytesToHash([]byte("l")), Index: 0}
	lockOutR := hucommon.Outpoint{TxID: hucommon.BytesToHash([]byte("l")), Index: 1}

	blocks := []ReplayBlock{
		{
			Height: 1,
			Hash:   hucommon.BytesToHash([]byte("b1")),
			Apply: func(s *settlement.State) error {
				return s.ApplyLock(settlement.LockTx{
					TxID: hucommon.BytesToHash([]byte("l")), Amount: 250,
					VaultOut: lockOutV, ReceiptOut: lockOutR, Height: 1,
				})
			},
		},
	}

	state, err := Rebuild(store, p, settlement.Snapshot{}, blocks)
	require.NoError(t, err)
	assert.Equal(t, uint64(250), state.M0Vaulted())

	best, ok, err := store.GetBestBlock()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, blocks[0].Hash, best)
}
