package ordering

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/fortytw2/leaktest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendermint/tendermint/libs/log"
	tmdb "github.com/tendermint/tm-db"

	cfg "ondemand_os/config"
	"ondemand_os/store"
	"ondemand_os/types"
)

const waitTimeout = 5 * time.Second

func newTestService(t *testing.T, modify func(*cfg.OrderingConfig), options ...ServiceOption) (*Service, *clock.Mock) {
	conf := cfg.TestOrderingConfig()
	if modify != nil {
		modify(conf)
	}
	mock := clock.NewMock()
	svc, err := NewService(conf, append([]ServiceOption{WithClock(mock)}, options...)...)
	require.NoError(t, err)
	svc.SetLogger(log.TestingLogger())
	return svc, mock
}

// advanceUntilFinalized 逐步推进模拟时钟，直到round被切分
func advanceUntilFinalized(t *testing.T, svc *Service, mock *clock.Mock, r types.RoundCoordinate) *types.Proposal {
	var p *types.Proposal
	require.Eventually(t, func() bool {
		var ok bool
		if p, ok = svc.OnRequestProposal(r); ok {
			return true
		}
		mock.Add(time.Millisecond)
		return false
	}, waitTimeout, time.Millisecond)
	return p
}

func TestNewServiceRejectsInvalidConfig(t *testing.T) {
	conf := cfg.TestOrderingConfig()
	conf.MaxSize = 0
	_, err := NewService(conf)
	assert.Equal(t, cfg.ErrInvalidMaxSize, err)
}

// max_size=2, delay=100ms：第二个batch入队时立即切分，提案为[A, B]
func TestServiceSizeTriggerScenario(t *testing.T) {
	svc, _ := newTestService(t, func(c *cfg.OrderingConfig) {
		c.MaxSize = 2
		c.Delay = 100 * time.Millisecond
	})

	a := types.MustNewBatch(types.NewTransaction("x", []byte("a"), 1))
	b := types.MustNewBatch(types.NewTransaction("y", []byte("b"), 2))

	svc.OnBatches(round(0, 0), []*types.Batch{a})
	_, ok := svc.OnRequestProposal(round(0, 0))
	assert.False(t, ok, "max_size-1 batches must not finalize")
	assert.Equal(t, RoundOpen, svc.RoundState(round(0, 0)))

	svc.OnBatches(round(0, 0), []*types.Batch{b})
	p, ok := svc.OnRequestProposal(round(0, 0))
	require.True(t, ok)
	require.Len(t, p.Batches, 2)
	assert.Equal(t, a.Hash, p.Batches[0].Hash)
	assert.Equal(t, b.Hash, p.Batches[1].Hash)
	assert.Equal(t, "x", p.Batches[0].Transactions[0].Creator)
	assert.Equal(t, "y", p.Batches[1].Transactions[0].Creator)

	assert.Equal(t, RoundFinalized, svc.RoundState(round(0, 0)))
	assert.Equal(t, round(0, 1), svc.CurrentRound())
	assert.EqualValues(t, 1, svc.Metrics().ProposalsBySize.Count())
}

// 没有batch时，延时到期后切分出空提案
func TestServiceTimeTriggerEmptyProposal(t *testing.T) {
	defer leaktest.CheckTimeout(t, waitTimeout)()

	svc, mock := newTestService(t, func(c *cfg.OrderingConfig) {
		c.Delay = 100 * time.Millisecond
	})
	require.NoError(t, svc.Start())
	defer svc.Stop() // nolint:errcheck

	mock.Add(99 * time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	_, ok := svc.OnRequestProposal(round(0, 0))
	assert.False(t, ok, "round must stay open before the delay elapses")

	p := advanceUntilFinalized(t, svc, mock, round(0, 0))
	assert.True(t, p.IsEmpty())
	assert.EqualValues(t, 1, svc.Metrics().ProposalsByTime.Count())
}

// max_size=10, delay=50ms：只有A入队，50ms后提案为[A]
func TestServiceTimeTriggerScenario(t *testing.T) {
	defer leaktest.CheckTimeout(t, waitTimeout)()

	svc, mock := newTestService(t, func(c *cfg.OrderingConfig) {
		c.MaxSize = 10
		c.Delay = 50 * time.Millisecond
	})
	require.NoError(t, svc.Start())
	defer svc.Stop() // nolint:errcheck

	a := types.MakeBatch("x", 1, 1)
	svc.OnBatches(round(0, 0), []*types.Batch{a})

	p := advanceUntilFinalized(t, svc, mock, round(0, 0))
	require.Len(t, p.Batches, 1)
	assert.Equal(t, a.Hash, p.Batches[0].Hash)
}

// 按大小切分后延时窗口重新开始计算
func TestServiceSizeTriggerRestartsDelayWindow(t *testing.T) {
	defer leaktest.CheckTimeout(t, waitTimeout)()

	svc, mock := newTestService(t, func(c *cfg.OrderingConfig) {
		c.MaxSize = 1
		c.Delay = 100 * time.Millisecond
	})
	require.NoError(t, svc.Start())
	defer svc.Stop() // nolint:errcheck

	mock.Add(60 * time.Millisecond)
	svc.OnBatches(round(0, 0), makeBatches("a", 1, 1))
	_, ok := svc.OnRequestProposal(round(0, 0))
	require.True(t, ok)

	// 距离上次切分只过了60ms，(0, 1)不能因为超时被切分
	mock.Add(60 * time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	_, ok = svc.OnRequestProposal(round(0, 1))
	assert.False(t, ok)

	p := advanceUntilFinalized(t, svc, mock, round(0, 1))
	assert.True(t, p.IsEmpty())
}

func TestServiceFinalizeIsIdempotent(t *testing.T) {
	svc, _ := newTestService(t, func(c *cfg.OrderingConfig) { c.MaxSize = 10 })

	first := makeBatches("first", 2, 1)
	svc.OnBatches(round(0, 0), first)

	p1, err := svc.Finalize(round(0, 0))
	require.NoError(t, err)
	p2, err := svc.Finalize(round(0, 0))
	require.NoError(t, err)
	assert.True(t, p1 == p2)
	assert.Equal(t, p1.Hash, p2.Hash)

	second := makeBatches("second", 1, 1)
	svc.OnBatches(round(0, 1), second)
	p3, err := svc.Finalize(round(0, 1))
	require.NoError(t, err)
	require.Len(t, p3.Batches, 1)
	assert.Equal(t, second[0].Hash, p3.Batches[0].Hash)

	_, err = svc.Finalize(round(3, 0))
	assert.True(t, errors.Is(err, ErrRoundNotOpen))
}

func TestServiceRetentionEviction(t *testing.T) {
	svc, _ := newTestService(t, func(c *cfg.OrderingConfig) { c.RetentionWindow = 3 })

	for r := uint64(0); r < 5; r++ {
		svc.OnBatches(round(0, r), makeBatches("b", 1, 1))
		_, err := svc.Finalize(round(0, r))
		require.NoError(t, err)
	}

	for r := uint64(0); r < 2; r++ {
		_, ok := svc.OnRequestProposal(round(0, r))
		assert.False(t, ok, "round (0, %d) must be evicted", r)
		assert.Equal(t, RoundClosed, svc.RoundState(round(0, r)))
	}
	for r := uint64(2); r < 5; r++ {
		_, ok := svc.OnRequestProposal(round(0, r))
		assert.True(t, ok, "round (0, %d) must be retained", r)
	}
	assert.EqualValues(t, 2, svc.Metrics().Evicted.Count())
}

func TestServiceNeverOpenedRound(t *testing.T) {
	svc, _ := newTestService(t, nil)

	p, ok := svc.OnRequestProposal(round(5, 0))
	assert.False(t, ok)
	assert.Nil(t, p)
	assert.Equal(t, RoundFuture, svc.RoundState(round(5, 0)))
}

func TestServiceAdvance(t *testing.T) {
	svc, _ := newTestService(t, func(c *cfg.OrderingConfig) { c.MaxSize = 2 })

	assert.NoError(t, svc.Advance(round(0, 0)), "advancing to the open round is a no-op")

	// 一次性入队5个：切分2个，积压3个
	svc.OnBatches(round(0, 0), makeBatches("burst", 5, 1))
	_, ok := svc.OnRequestProposal(round(0, 0))
	require.True(t, ok)
	batches, _ := svc.PendingSize()
	require.Equal(t, 3, batches)

	// 区块提交，跳到下一个区块轮次，积压已经达到max_size，立即切分
	require.NoError(t, svc.Advance(round(0, 1).NextBlock()))
	p, ok := svc.OnRequestProposal(round(1, 0))
	require.True(t, ok)
	assert.Len(t, p.Batches, 2)
	assert.Equal(t, round(1, 1), svc.CurrentRound())

	// (0, 1)被跳过，从未切分
	assert.Equal(t, RoundClosed, svc.RoundState(round(0, 1)))

	err := svc.Advance(round(0, 5))
	assert.True(t, errors.Is(err, ErrStaleRound))
	assert.Equal(t, round(1, 1), svc.CurrentRound())
}

func TestServiceTransactionLimit(t *testing.T) {
	svc, _ := newTestService(t, func(c *cfg.OrderingConfig) {
		c.MaxSize = 3
		c.SizeLimit = cfg.LimitTransactions
	})

	svc.OnBatches(round(0, 0), []*types.Batch{types.MakeBatch("a", 2, 0)})
	_, ok := svc.OnRequestProposal(round(0, 0))
	require.False(t, ok)

	svc.OnBatches(round(0, 0), []*types.Batch{types.MakeBatch("b", 2, 0)})
	p, ok := svc.OnRequestProposal(round(0, 0))
	require.True(t, ok)
	assert.Equal(t, 4, p.TxCount())
}

func TestServiceEmptyBatchesIgnored(t *testing.T) {
	svc, _ := newTestService(t, nil)
	svc.OnBatches(round(0, 0), nil)
	svc.OnBatches(round(0, 0), []*types.Batch{})

	batches, txs := svc.PendingSize()
	assert.Zero(t, batches)
	assert.Zero(t, txs)
	assert.Zero(t, svc.Metrics().BatchesEnqueued.Count())
}

// nil batch被跳过，同一次调用里的其他batch照常入队
func TestServiceSkipsNilBatches(t *testing.T) {
	svc, _ := newTestService(t, func(c *cfg.OrderingConfig) { c.MaxSize = 10 })

	assert.NotPanics(t, func() {
		svc.OnBatches(round(0, 0), []*types.Batch{types.MakeBatch("x", 1, 0), nil})
		svc.OnBatches(round(0, 0), []*types.Batch{nil})
	})

	batches, txs := svc.PendingSize()
	assert.Equal(t, 1, batches)
	assert.Equal(t, 1, txs)
	assert.EqualValues(t, 1, svc.Metrics().BatchesEnqueued.Count())
}

// 并发入队和切分时，每个batch恰好出现在一个提案里
func TestServiceConcurrentEnqueueAndFinalize(t *testing.T) {
	var (
		mtx       sync.Mutex
		proposals []*types.Proposal
	)
	svc, _ := newTestService(t, func(c *cfg.OrderingConfig) {
		c.MaxSize = 3
		c.RetentionWindow = 1000
	}, WithProposalListener(func(p *types.Proposal) {
		mtx.Lock()
		proposals = append(proposals, p)
		mtx.Unlock()
	}))

	const (
		producers   = 8
		perProducer = 50
	)
	var wg sync.WaitGroup
	for i := 0; i < producers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < perProducer; j++ {
				svc.OnBatches(round(0, 0), []*types.Batch{types.MakeBatch("producer", 1, int64(i*perProducer+j))})
			}
		}(i)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			_, _ = svc.Finalize(svc.CurrentRound())
		}
	}()
	wg.Wait()

	// 把剩下的batch切分出来
	_, err := svc.Finalize(svc.CurrentRound())
	require.NoError(t, err)

	mtx.Lock()
	defer mtx.Unlock()

	seen := make(map[string]types.RoundCoordinate)
	rounds := make(map[types.RoundCoordinate]bool)
	for _, p := range proposals {
		assert.False(t, rounds[p.Round], "round %v finalized twice", p.Round)
		rounds[p.Round] = true
		assert.LessOrEqual(t, len(p.Batches), 3)
		for _, b := range p.Batches {
			prev, dup := seen[string(b.Hash)]
			assert.False(t, dup, "batch %X in %v and %v", []byte(b.Hash), prev, p.Round)
			seen[string(b.Hash)] = p.Round
		}
	}
	assert.Len(t, seen, producers*perProducer)
}

func TestServiceRecoversFromStore(t *testing.T) {
	db := tmdb.NewMemDB()
	ps := store.NewProposalStoreWithDB(db, log.TestingLogger())

	svc, _ := newTestService(t, func(c *cfg.OrderingConfig) {
		c.MaxSize = 1
		c.RetentionWindow = 2
	}, WithStore(ps))
	for r := uint64(0); r < 3; r++ {
		svc.OnBatches(round(0, r), makeBatches("persisted", 1, 1))
	}
	last, ok := svc.OnRequestProposal(round(0, 2))
	require.True(t, ok)

	// 被淘汰的提案也从存储中删除
	evicted, err := ps.LoadProposal(round(0, 0))
	require.NoError(t, err)
	assert.Nil(t, evicted)

	restarted, _ := newTestService(t, func(c *cfg.OrderingConfig) {
		c.RetentionWindow = 2
	}, WithStore(ps))
	require.NoError(t, restarted.Start())
	defer restarted.Stop() // nolint:errcheck

	assert.Equal(t, round(0, 3), restarted.CurrentRound())
	p, ok := restarted.OnRequestProposal(round(0, 2))
	require.True(t, ok)
	assert.Equal(t, last.Hash, p.Hash)
	_, ok = restarted.OnRequestProposal(round(0, 1))
	assert.True(t, ok)
}

func TestServiceTxStatus(t *testing.T) {
	svc, _ := newTestService(t, nil)

	b := types.MakeBatch("alice", 2, 1)
	svc.OnBatches(round(0, 0), []*types.Batch{b})

	resp := svc.TxStatus(b.Transactions[1].Hash)
	assert.Equal(t, types.StatelessValid, resp.Status)

	unknown := svc.TxStatus([]byte{0xde, 0xad})
	assert.Equal(t, types.NotReceived, unknown.Status)
}

func TestServiceStopsTimeoutRoutine(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test in short mode.")
	}

	svc, _ := newTestService(t, nil)
	require.NoError(t, svc.Start())
	require.NoError(t, svc.Stop())

	// check that we are not leaking any go-routines
	leaktest.CheckTimeout(t, 10*time.Second)()
}
