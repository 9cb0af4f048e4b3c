package syncgate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/hu-network/hunode/params"
)

func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestIsSynced_FreshChainBelowBootstrap(t *testing.T) {
	p := params.Mainnet()
	now := time.Now()
	g := New(p, fixedNow(now))

	synced := g.IsSynced(State{LocalHeight: 100, TipTimestamp: now.Add(-time.Hour)}, false)
	assert.True(t, synced)
}

func TestIsSynced_CaughtUpWithFreshTip(t *testing.T) {
	p := params.Mainnet()
	now := time.Now()
	g := New(p, fixedNow(now))

	s := State{
		LocalHeight:         p.BootstrapHeight + 1000,
		TipTimestamp:        now.Add(-time.Second),
		BestKnownPeerHeight: p.BootstrapHeight + 1000,
	}
	assert.True(t, g.IsSynced(s, false))
}

func TestIsSynced_StaleTipWithoutDownloadOrFinality(t *testing.T) {
	p := params.Mainnet()
	now := time.Now()
	g := New(p, fixedNow(now))

	s := State{
		LocalHeight:         p.BootstrapHeight + 1000,
		TipTimestamp:        now.Add(-10 * time.Minute),
		BestKnownPeerHeight: p.BootstrapHeight + 1000,
	}
	assert.False(t, g.IsSynced(s, false))
}

func TestIsSynced_RecentFinalityCountsAsSynced(t *testing.T) {
	p := params.Mainnet()
	now := time.Now()
	g := New(p, fixedNow(now))

	s := State{
		LocalHeight:         p.BootstrapHeight + 1000,
		TipTimestamp:        now.Add(-10 * time.Minute),
		BestKnownPeerHeight: p.BootstrapHeight + 1000,
		LastFinality:        now.Add(-30 * time.Second),
	}
	assert.True(t, g.IsSynced(s, false))
}

func TestIsSynced_PeerTooFarAheadAlwaysNotSynced(t *testing.T) {
	p := params.Mainnet()
	now := time.Now()
	g := New(p, fixedNow(now))

	s := State{
		LocalHeight:         p.BootstrapHeight + 1000,
		TipTimestamp:        now,
		BestKnownPeerHeight: p.BootstrapHeight + 1000 + p.PeerHeightTolerance + 1,
		LastFinality:        now,
	}
	assert.False(t, g.IsSynced(s, false))
}

func TestIsSynced_ColdStartOverrideRequiresAcknowledgment(t *testing.T) {
	p := params.Mainnet()
	now := time.Now()
	g := New(p, fixedNow(now))

	s := State{
		LocalHeight:         p.BootstrapHeight + 1000,
		TipTimestamp:        now.Add(-p.StaleChainTimeout - time.Minute),
		BestKnownPeerHeight: p.BootstrapHeight + 1000,
	}
	assert.False(t, g.IsSynced(s, false), "must not auto-declare synced without operator acknowledgment")
	assert.True(t, g.IsSynced(s, true), "operator acknowledgment enables the cold-start override")
}
