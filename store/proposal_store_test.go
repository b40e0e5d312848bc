package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendermint/tendermint/libs/log"
	tmdb "github.com/tendermint/tm-db"

	"ondemand_os/types"
)

func newTestStore() *ProposalStore {
	return NewProposalStoreWithDB(tmdb.NewMemDB(), log.TestingLogger())
}

func makeProposal(block, reject uint64, batches int) *types.Proposal {
	bs := make([]*types.Batch, batches)
	for i := range bs {
		bs[i] = types.MakeBatch("alice@test", i+1, int64(block*100+reject*10+uint64(i)))
	}
	return types.NewProposal(types.RoundCoordinate{BlockRound: block, RejectRound: reject}, bs, 1)
}

func TestSaveAndLoadProposal(t *testing.T) {
	s := newTestStore()
	defer s.Close()

	p := makeProposal(3, 1, 2)
	require.NoError(t, s.SaveProposal(p))

	loaded, err := s.LoadProposal(p.Round)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, p.Hash, loaded.Hash)
	assert.Equal(t, p.TxCount(), loaded.TxCount())

	missing, err := s.LoadProposal(types.RoundCoordinate{BlockRound: 9})
	assert.NoError(t, err)
	assert.Nil(t, missing)
}

func TestEmptyProposalIsStored(t *testing.T) {
	s := newTestStore()
	defer s.Close()

	p := types.MakeEmptyProposal(types.RoundCoordinate{BlockRound: 1}, 5)
	require.NoError(t, s.SaveProposal(p))

	loaded, err := s.LoadProposal(p.Round)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.True(t, loaded.IsEmpty())
}

func TestLatestRoundAndLoadRecent(t *testing.T) {
	s := newTestStore()
	defer s.Close()

	_, ok, err := s.LatestRound()
	require.NoError(t, err)
	assert.False(t, ok)

	// 故意乱序写入
	for _, p := range []*types.Proposal{
		makeProposal(1, 1, 1),
		makeProposal(2, 0, 1),
		makeProposal(1, 0, 1),
		makeProposal(1, 300, 1),
	} {
		require.NoError(t, s.SaveProposal(p))
	}

	latest, ok, err := s.LatestRound()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, types.RoundCoordinate{BlockRound: 2, RejectRound: 0}, latest)

	recent, err := s.LoadRecent(3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, types.RoundCoordinate{BlockRound: 1, RejectRound: 1}, recent[0].Round)
	assert.Equal(t, types.RoundCoordinate{BlockRound: 1, RejectRound: 300}, recent[1].Round)
	assert.Equal(t, types.RoundCoordinate{BlockRound: 2, RejectRound: 0}, recent[2].Round)

	all, err := s.LoadRecent(10)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestDeleteProposal(t *testing.T) {
	s := newTestStore()
	defer s.Close()

	p := makeProposal(1, 0, 1)
	require.NoError(t, s.SaveProposal(p))
	require.NoError(t, s.DeleteProposal(p.Round))

	loaded, err := s.LoadProposal(p.Round)
	assert.NoError(t, err)
	assert.Nil(t, loaded)

	_, ok, err := s.LatestRound()
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestCorruptedProposalIsRejected(t *testing.T) {
	db := tmdb.NewMemDB()
	s := NewProposalStoreWithDB(db, log.TestingLogger())

	p := makeProposal(1, 0, 1)
	require.NoError(t, s.SaveProposal(p))

	// 篡改存储中的交易内容
	p.Batches[0].Transactions[0].Payload = []byte("tampered")
	bz, err := s.encoder(p)
	require.NoError(t, err)
	require.NoError(t, db.Set(proposalKey(p.Round), bz))

	_, err = s.LoadProposal(p.Round)
	assert.Error(t, err)
}
