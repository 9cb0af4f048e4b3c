package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	hucommon "github.com/hu-network/hunode/common"
	"github.com/hu-network/hunode/params"
)

func candID(b byte) hucommon.MNID {
	buf := make([]byte, hucommon.HashLength)
	buf[0] = b
	return hucommon.BytesToMNID(buf)
}

func TestDecide_TooEarly(t *testing.T) {
	p := params.Regtest()
	p.TargetSpacing = 60 * time.Second
	prevTime := time.Unix(1_700_000_000, 0)
	prev := PrevBlock{Height: 100, Timestamp: prevTime}

	dec := Decide(p, prev, 101, prevTime.Add(10*time.Second), []Candidate{{ID: candID(1)}})
	assert.True(t, dec.TooEarly)
}

func TestDecide_PrimarySlot(t *testing.T) {
	p := params.Regtest()
	p.TargetSpacing = 60 * time.Second
	p.LeaderTimeout = 45 * time.Second
	p.SlotLength = 5 * time.Second
	prevTime := time.Unix(1_700_000_000, 0)
	prev := PrevBlock{Height: 100, Timestamp: prevTime, Hash: hucommon.BytesToHash([]byte("prev"))}

	now := prevTime.Add(60 * time.Second)
	dec := Decide(p, prev, 101, now, []Candidate{{ID: candID(1)}, {ID: candID(2)}})
	require.False(t, dec.TooEarly)
	assert.Equal(t, uint64(0), dec.Slot)
}

func TestDecide_FallbackAdvancesSlot(t *testing.T) {
	p := params.Regtest()
	p.TargetSpacing = 60 * time.Second
	p.LeaderTimeout = 45 * time.Second
	p.FallbackWindow = 15 * time.Second
	p.SlotLength = 5 * time.Second
	prevTime := time.Unix(1_700_000_000, 0)
	prev := PrevBlock{Height: 100, Timestamp: prevTime, Hash: hucommon.BytesToHash([]byte("prev"))}

	// S5 scenario: prev_time+60+45 -> slot 1.
	now := prevTime.Add(60 * time.Second).Add(45 * time.Second)
	dec := Decide(p, prev, 101, now, []Candidate{{ID: candID(1)}, {ID: candID(2)}})
	require.False(t, dec.TooEarly)
	assert.Equal(t, uint64(1), dec.Slot)
}

func TestDecide_FallbackClampsAt360(t *testing.T) {
	p := params.Regtest()
	p.TargetSpacing = 60 * time.Second
	p.LeaderTimeout = 45 * time.Second
	p.FallbackWindow = 15 * time.Second
	p.SlotLength = 5 * time.Second
	p.MaxFallbackSlot = 360
	prevTime := time.Unix(1_700_000_000, 0)
	prev := PrevBlock{Height: 100, Timestamp: prevTime, Hash: hucommon.BytesToHash([]byte("prev"))}

	now := prevTime.Add(60 * time.Second).Add(45 * time.Second).Add(10000 * time.Second)
	dec := Decide(p, prev, 101, now, []Candidate{{ID: candID(1)}})
	assert.Equal(t, uint64(360), dec.Slot)
}

func TestDecide_DeterministicAcrossCalls(t *testing.T) {
	p := params.Regtest()
	p.TargetSpacing = 60 * time.Second
	p.LeaderTimeout = 45 * time.Second
	p.SlotLength = 5 * time.Second
	prevTime := time.Unix(1_700_000_000, 0)
	prev := PrevBlock{Height: 100, Timestamp: prevTime, Hash: hucommon.BytesToHash([]byte("prev"))}
	candidates := []Candidate{{ID: candID(1)}, {ID: candID(2)}, {ID: candID(3)}}

	now := prevTime.Add(60 * time.Second)
	d1 := Decide(p, prev, 101, now, candidates)
	d2 := Decide(p, prev, 101, now, candidates)
	assert.Equal(t, d1.ProducerID, d2.ProducerID)
	assert.Equal(t, d1.AlignedTime, d2.AlignedTime)
}

func TestDecide_BootstrapAlwaysSlotZero(t *testing.T) {
	p := params.Regtest()
	p.TargetSpacing = 60 * time.Second
	p.LeaderTimeout = 45 * time.Second
	p.FallbackWindow = 15 * time.Second
	p.SlotLength = 5 * time.Second
	p.BootstrapHeight = 1000
	prevTime := time.Unix(1_700_000_000, 0)
	prev := PrevBlock{Height: 100, Timestamp: prevTime, Hash: hucommon.BytesToHash([]byte("prev"))}

	now := prevTime.Add(60 * time.Second).Add(45 * time.Second).Add(1000 * time.Second)
	dec := Decide(p, prev, 101, now, []Candidate{{ID: candID(1)}, {ID: candID(2)}})
	assert.Equal(t, uint64(0), dec.Slot)
}

func TestDecide_NoCandidates(t *testing.T) {
	p := params.Regtest()
	p.TargetSpacing = 60 * time.Second
	prevTime := time.Unix(1_700_000_000, 0)
	prev := PrevBlock{Height: 100, Timestamp: prevTime}

	dec := Decide(p, prev, 101, prevTime.Add(61*time.Second), nil)
	assert.True(t, dec.NoCandidates)
}
