package masternode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	hucommon "github.com/hu-network/hunode/common"
)

func mnID(b byte) hucommon.MNID {
	buf := make([]byte, hucommon.HashLength)
	buf[0] = b
	return hucommon.BytesToMNID(buf)
}

func ownerHash(b byte) hucommon.Hash {
	var h hucommon.Hash
	h[0] = b
	return h
}

func pubKey(b byte) hucommon.PubKey {
	buf := make([]byte, 33)
	buf[0] = 0x02
	buf[1] = b
	pk, _ := hucommon.BytesToPubKey(buf)
	return pk
}

func registerTx(id hucommon.MNID, owner hucommon.Hash, op hucommon.PubKey) SpecialTx {
	return SpecialTx{
		Type: TxRegister,
		Register: &RegisterPayload{
			ID:              id,
			OperatorPubKey:  op,
			OwnerKeyHash:    owner,
			VotingKeyHash:   owner,
			ServiceEndpoint: "127.0.0.1:9000",
		},
	}
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := NewRegistry()
	id := mnID(1)
	op := pubKey(1)
	block := &Block{Height: 10, Special: []SpecialTx{registerTx(id, ownerHash(1), op)}}

	require.NoError(t, r.ProcessBlock(block))

	rec, ok := r.GetValid(id)
	require.True(t, ok)
	assert.Equal(t, uint64(10), rec.RegisteredHeight)
	assert.False(t, rec.PoSeBanned)

	matches := r.GetByOperatorKey(op)
	require.Len(t, matches, 1)
	assert.Equal(t, id, matches[0].ID)
}

func TestRegistry_DuplicateOwnerKeyRejected(t *testing.T) {
	r := NewRegistry()
	owner := ownerHash(5)
	block1 := &Block{Height: 1, Special: []SpecialTx{registerTx(mnID(1), owner, pubKey(1))}}
	require.NoError(t, r.ProcessBlock(block1))

	block2 := &Block{Height: 2, Special: []SpecialTx{registerTx(mnID(2), owner, pubKey(2))}}
	err := r.ProcessBlock(block2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrDuplicateOwnerKey.Error())

	_, ok := r.Get(mnID(2))
	assert.False(t, ok, "rejected block must not leave a partial record")
}

func TestRegistry_DuplicateIDRejected(t *testing.T) {
	r := NewRegistry()
	id := mnID(1)
	require.NoError(t, r.ProcessBlock(&Block{Height: 1, Special: []SpecialTx{registerTx(id, ownerHash(1), pubKey(1))}}))

	err := r.ProcessBlock(&Block{Height: 2, Special: []SpecialTx{registerTx(id, ownerHash(2), pubKey(2))}})
	require.Error(t, err)
}

func TestRegistry_UpdateServiceWrongOperatorRejected(t *testing.T) {
	r := NewRegistry()
	id := mnID(1)
	require.NoError(t, r.ProcessBlock(&Block{Height: 1, Special: []SpecialTx{registerTx(id, ownerHash(1), pubKey(1))}}))

	badUpdate := SpecialTx{
		Type:            TxUpdateService,
		UpdateService:   &UpdateServicePayload{ID: id, ServiceEndpoint: "10.0.0.1:9000"},
		AuthorizedByKey: pubKey(9), // not the registered operator
	}
	err := r.ProcessBlock(&Block{Height: 2, Special: []SpecialTx{badUpdate}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrWrongOperator.Error())

	rec, _ := r.Get(id)
	assert.Equal(t, "127.0.0.1:9000", rec.ServiceEndpoint, "rejected update must not mutate state")
}

func TestRegistry_UpdateServiceByCorrectOperator(t *testing.T) {
	r := NewRegistry()
	id := mnID(1)
	op := pubKey(1)
	require.NoError(t, r.ProcessBlock(&Block{Height: 1, Special: []SpecialTx{registerTx(id, ownerHash(1), op)}}))

	update := SpecialTx{
		Type:            TxUpdateService,
		UpdateService:   &UpdateServicePayload{ID: id, ServiceEndpoint: "10.0.0.1:9000"},
		AuthorizedByKey: op,
	}
	require.NoError(t, r.ProcessBlock(&Block{Height: 2, Special: []SpecialTx{update}}))

	rec, _ := r.Get(id)
	assert.Equal(t, "10.0.0.1:9000", rec.ServiceEndpoint)
}

func TestRegistry_RevokeBansMN(t *testing.T) {
	r := NewRegistry()
	id := mnID(1)
	require.NoError(t, r.ProcessBlock(&Block{Height: 1, Special: []SpecialTx{registerTx(id, ownerHash(1), pubKey(1))}}))
	require.NoError(t, r.ProcessBlock(&Block{Height: 2, Special: []SpecialTx{{Type: TxRevoke, Revoke: &RevokePayload{ID: id}}}}))

	_, ok := r.GetValid(id)
	assert.False(t, ok)

	rec, ok := r.Get(id)
	require.True(t, ok)
	assert.True(t, rec.PoSeBanned)
}

func TestRegistry_UndoBlockRestoresPriorState(t *testing.T) {
	r := NewRegistry()
	id := mnID(1)
	op := pubKey(1)
	require.NoError(t, r.ProcessBlock(&Block{Height: 1, Special: []SpecialTx{registerTx(id, ownerHash(1), op)}}))

	update := SpecialTx{
		Type:            TxUpdateService,
		UpdateService:   &UpdateServicePayload{ID: id, ServiceEndpoint: "10.0.0.1:9000"},
		AuthorizedByKey: op,
	}
	require.NoError(t, r.ProcessBlock(&Block{Height: 2, Special: []SpecialTx{update}}))

	r.UndoBlock(2)
	rec, ok := r.Get(id)
	require.True(t, ok)
	assert.Equal(t, "127.0.0.1:9000", rec.ServiceEndpoint)

	r.UndoBlock(1)
	_, ok = r.Get(id)
	assert.False(t, ok, "undoing the registering block must remove the record")
}

func TestRegistry_ApplyPenaltyBansAtCeiling(t *testing.T) {
	r := NewRegistry()
	id := mnID(1)
	require.NoError(t, r.ProcessBlock(&Block{Height: 1, Special: []SpecialTx{registerTx(id, ownerHash(1), pubKey(1))}}))

	r.ApplyPenalty(id, MaxPenaltyScore-1)
	rec, _ := r.Get(id)
	assert.False(t, rec.PoSeBanned)

	r.ApplyPenalty(id, 1)
	rec, _ = r.Get(id)
	assert.True(t, rec.PoSeBanned)
}

func TestRegistry_ForEachDeterministicOrder(t *testing.T) {
	r := NewRegistry()
	for i := byte(1); i <= 5; i++ {
		require.NoError(t, r.ProcessBlock(&Block{Height: uint64(i), Special: []SpecialTx{registerTx(mnID(i), ownerHash(i), pubKey(i))}}))
	}

	var order []hucommon.MNID
	err := r.ForEach(false, func(rec *Record) error {
		order = append(order, rec.ID)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, order, 5)

	var order2 []hucommon.MNID
	r.ForEach(false, func(rec *Record) error {
		order2 = append(order2, rec.ID)
		return nil
	})
	assert.Equal(t, order, order2, "iteration order must be deterministic across calls")
}
