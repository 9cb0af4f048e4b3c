package node

import (
	"crypto/ecdsa"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	hucommon "github.com/hu-network/hunode/common"
	"github.com/hu-network/hunode/consensus/scheduler"
	"github.com/hu-network/hunode/params"
	"github.com/hu-network/hunode/wire"
)

func TestResolveOperatorKey_ZeroIsObserverOnly(t *testing.T) {
	key, err := ResolveOperatorKey(nil)
	require.NoError(t, err)
	assert.Nil(t, key)
}

func TestResolveOperatorKey_AcceptsExactlyOne(t *testing.T) {
	k, err := crypto.GenerateKey()
	require.NoError(t, err)
	got, err := ResolveOperatorKey([]*ecdsa.PrivateKey{k})
	require.NoError(t, err)
	assert.Equal(t, k, got)
}

func TestResolveOperatorKey_RejectsTwo(t *testing.T) {
	k1, err := crypto.GenerateKey()
	require.NoError(t, err)
	k2, err := crypto.GenerateKey()
	require.NoError(t, err)
	_, err = ResolveOperatorKey([]*ecdsa.PrivateKey{k1, k2})
	assert.ErrorIs(t, err, ErrMultipleOperatorKeys)
}

type fakeChainView struct{}

func (fakeChainView) Tip() scheduler.PrevBlock                          { return scheduler.PrevBlock{} }
func (fakeChainView) NextHeight() uint64                                { return 1 }
func (fakeChainView) CandidatesAt(next uint64) []scheduler.Candidate    { return nil }
func (fakeChainView) IsManagedLocally(id hucommon.MNID) bool            { return false }

type fakeBroadcaster struct{}

func (fakeBroadcaster) GetPeers() []wire.Peer { return nil }

func TestNew_OpensStoresAndHydrates(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{
		DataDir: dir,
		Network: params.Regtest(),
	}
	n, err := New(cfg, fakeChainView{}, func(scheduler.Decision) error { return nil }, fakeBroadcaster{})
	require.NoError(t, err)
	defer n.Shutdown()

	assert.Equal(t, uint64(0), n.Enforcement.HighestFinal())
	assert.NotNil(t, n.SettlementState)
	assert.Equal(t, filepath.Join(dir, "settlement"), filepath.Join(dir, "settlement"))
}
