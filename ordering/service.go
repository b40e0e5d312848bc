package ordering

import (
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/tendermint/tendermint/libs/service"

	cfg "ondemand_os/config"
	"ondemand_os/types"
)

// Store persists finalized proposals so a restarted service can keep answering requests.
type Store interface {
	SaveProposal(*types.Proposal) error
	DeleteProposal(types.RoundCoordinate) error
	LatestRound() (types.RoundCoordinate, bool, error)
	LoadRecent(n int) ([]*types.Proposal, error)
}

// ProposalListener is called once for every newly finalized proposal, outside the service lock.
type ProposalListener func(*types.Proposal)

// RoundState 轮次在排序服务中的状态
type RoundState uint8

const (
	// RoundFuture 尚未开放的轮次
	RoundFuture RoundState = iota
	// RoundOpen 正在接收batch的轮次
	RoundOpen
	// RoundFinalized 提案已切分并且仍在保留窗口内
	RoundFinalized
	// RoundClosed 早于当前轮次且不在历史中：已被淘汰，或被Advance跳过
	RoundClosed
)

func (rs RoundState) String() string {
	switch rs {
	case RoundFuture:
		return "future"
	case RoundOpen:
		return "open"
	case RoundFinalized:
		return "finalized"
	case RoundClosed:
		return "closed"
	}
	return "unknown"
}

// Service 排序服务：接收batch，按大小或延时切分出每一轮的提案，并响应对提案的请求
//
// 状态转移：OPEN -> FINALIZING -> FINALIZED -> EVICTED，只能前进
// 切分完成后下一轮 (b, r+1) 自动开放；共识通过Advance跳到更大的轮次，例如区块提交后的 (b+1, 0)
type Service struct {
	service.BaseService

	config *cfg.OrderingConfig

	// mtx 保护queue, current和windowStart
	mtx         sync.RWMutex
	queue       *batchQueue
	current     types.RoundCoordinate // 当前开放的轮次
	windowStart time.Time             // 当前轮次延时窗口的起点

	clock    clock.Clock
	store    Store
	statuses *TxStatusCache
	metrics  *Metrics

	listenersMtx sync.RWMutex
	listeners    []ProposalListener

	// 切分或轮次变化时通知timeoutRoutine重新计算截止时间
	resetCh chan struct{}
}

type ServiceOption func(*Service)

// WithClock sets the time source used for the delay trigger.
func WithClock(clk clock.Clock) ServiceOption {
	return func(s *Service) { s.clock = clk }
}

func WithStore(store Store) ServiceOption {
	return func(s *Service) { s.store = store }
}

// WithInitialRound sets the first open round. A persisted later round takes precedence on start.
func WithInitialRound(round types.RoundCoordinate) ServiceOption {
	return func(s *Service) { s.current = round }
}

func WithProposalListener(l ProposalListener) ServiceOption {
	return func(s *Service) { s.listeners = append(s.listeners, l) }
}

func WithMetrics(m *Metrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

func WithTxStatusCache(c *TxStatusCache) ServiceOption {
	return func(s *Service) { s.statuses = c }
}

func NewService(config *cfg.OrderingConfig, options ...ServiceOption) (*Service, error) {
	if err := config.ValidateBasic(); err != nil {
		return nil, err
	}

	s := &Service{
		config:   config,
		queue:    newBatchQueue(config.MaxSize, config.LimitByTransactions()),
		clock:    clock.New(),
		statuses: NewTxStatusCache(config.StatusCacheSize),
		metrics:  NewMetrics(),
		resetCh:  make(chan struct{}, 1),
	}
	s.BaseService = *service.NewBaseService(nil, "OrderingService", s)

	for _, option := range options {
		option(s)
	}
	s.windowStart = s.clock.Now()
	s.metrics.markRound(s.current)

	return s, nil
}

// OnStart implements service.Service.
// 从存储中恢复提案历史，然后启动延时切分的routine
func (s *Service) OnStart() error {
	if err := s.loadFromStore(); err != nil {
		return err
	}

	s.mtx.Lock()
	s.windowStart = s.clock.Now()
	s.mtx.Unlock()

	go s.timeoutRoutine()
	return nil
}

// AddProposalListener registers l for proposals finalized from now on.
func (s *Service) AddProposalListener(l ProposalListener) {
	s.listenersMtx.Lock()
	s.listeners = append(s.listeners, l)
	s.listenersMtx.Unlock()
}

// OnBatches 将batch加入队列，round只是发送方所在轮次的提示，batch总是进入当前开放的轮次
// 达到max_size时立即切分当前轮次
func (s *Service) OnBatches(round types.RoundCoordinate, batches []*types.Batch) {
	if len(batches) == 0 {
		return
	}

	// 跳过nil batch
	accepted := make([]*types.Batch, 0, len(batches))
	txs := 0
	for _, b := range batches {
		if b == nil {
			continue
		}
		accepted = append(accepted, b)
		txs += b.Len()
		for _, tx := range b.Transactions {
			if tx == nil {
				continue
			}
			s.statuses.Update(types.NewTxResponse(tx.Hash, types.StatelessValid, ""))
		}
	}
	if len(accepted) == 0 {
		return
	}

	s.mtx.Lock()
	s.queue.enqueue(accepted)
	s.metrics.BatchesEnqueued.Inc(int64(len(accepted)))
	s.metrics.TxsEnqueued.Inc(int64(txs))
	s.Logger.Debug("enqueued batches", "hint", round, "open", s.current,
		"batches", len(accepted), "pending", s.queue.size())

	var p *types.Proposal
	if s.queue.ready() {
		p = s.finalizeLocked(triggerSize)
	}
	s.metrics.markQueue(s.queue)
	s.mtx.Unlock()

	if p != nil {
		s.resetTimer()
		s.notify(p)
	}
}

// OnRequestProposal 非阻塞地查询某一轮的提案
// 只有已切分且仍在保留窗口内的轮次返回ok=true；开放中、未来和已淘汰的轮次都返回ok=false
func (s *Service) OnRequestProposal(round types.RoundCoordinate) (*types.Proposal, bool) {
	s.mtx.RLock()
	p, ok := s.queue.lookup(round)
	s.mtx.RUnlock()

	if ok {
		s.metrics.RequestHits.Inc(1)
	} else {
		s.metrics.RequestMisses.Inc(1)
	}
	return p, ok
}

// Finalize finalizes the open round now. Calling it for an already finalized round
// returns the same proposal again.
func (s *Service) Finalize(round types.RoundCoordinate) (*types.Proposal, error) {
	s.mtx.Lock()
	if p, ok := s.queue.lookup(round); ok {
		s.mtx.Unlock()
		return p, nil
	}
	if !round.Equal(s.current) {
		current := s.current
		s.mtx.Unlock()
		return nil, fmt.Errorf("%w: %v, open round is %v", ErrRoundNotOpen, round, current)
	}
	p := s.finalizeLocked(triggerExplicit)
	s.metrics.markQueue(s.queue)
	s.mtx.Unlock()

	s.resetTimer()
	s.notify(p)
	return p, nil
}

// Advance 共识推进到round，round必须大于当前开放的轮次；等于时什么都不做
// 新轮次的延时窗口从现在开始计算，如果积压的batch已经达到max_size则立即切分
func (s *Service) Advance(round types.RoundCoordinate) error {
	s.mtx.Lock()
	switch round.Compare(s.current) {
	case 0:
		s.mtx.Unlock()
		return nil
	case -1:
		current := s.current
		s.mtx.Unlock()
		s.Logger.Debug("ignore stale round", "round", round, "open", current)
		return fmt.Errorf("%w: %v < %v", ErrStaleRound, round, current)
	}

	prev := s.current
	s.current = round
	s.windowStart = s.clock.Now()
	s.evictLocked()
	s.metrics.markRound(s.current)

	var p *types.Proposal
	if s.queue.ready() {
		p = s.finalizeLocked(triggerSize)
		s.metrics.markQueue(s.queue)
	}
	s.mtx.Unlock()

	s.Logger.Info("advanced round", "from", prev, "to", round)
	s.resetTimer()
	if p != nil {
		s.notify(p)
	}
	return nil
}

// CurrentRound returns the open round.
func (s *Service) CurrentRound() types.RoundCoordinate {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return s.current
}

func (s *Service) RoundState(round types.RoundCoordinate) RoundState {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	if _, ok := s.queue.lookup(round); ok {
		return RoundFinalized
	}
	switch round.Compare(s.current) {
	case 0:
		return RoundOpen
	case 1:
		return RoundFuture
	}
	return RoundClosed
}

// PendingSize returns the pending batches and transactions.
func (s *Service) PendingSize() (batches, txs int) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return s.queue.pendingBatches(), s.queue.pendingTransactions()
}

// TxStatus 查询交易状态，未知的交易返回NotReceived
func (s *Service) TxStatus(hash []byte) *types.TxResponse {
	return s.statuses.Get(hash)
}

func (s *Service) Metrics() *Metrics {
	return s.metrics
}

// finalizeLocked 切分当前轮次并开放下一轮
// 切分后剩下的积压即使已达到max_size也留在新轮次，
// 等下一次入队、Advance或delay超时才会再切分，一次调用只切一轮
// NOTE: caller必须持有s.mtx的写锁
func (s *Service) finalizeLocked(trigger string) *types.Proposal {
	round := s.current
	now := s.clock.Now()

	p, _ := s.queue.finalize(round, now.UnixNano())
	s.current = round.NextReject()
	s.windowStart = now

	if s.store != nil {
		if err := s.store.SaveProposal(p); err != nil {
			s.Logger.Error("failed to save proposal", "round", round, "err", err)
		}
	}
	s.evictLocked()

	s.metrics.markFinalized(trigger, p.TxCount())
	s.metrics.markRound(s.current)
	s.Logger.Info("finalized proposal", "round", round, "trigger", trigger,
		"batches", len(p.Batches), "txs", p.TxCount(), "hash", p.Hash)
	return p
}

// evictLocked 淘汰保留窗口之外的提案
// NOTE: caller必须持有s.mtx的写锁
func (s *Service) evictLocked() {
	evicted := s.queue.evict(s.config.RetentionWindow)
	for _, r := range evicted {
		if s.store != nil {
			if err := s.store.DeleteProposal(r); err != nil {
				s.Logger.Error("failed to delete evicted proposal", "round", r, "err", err)
			}
		}
		s.Logger.Debug("evicted proposal", "round", r)
	}
	s.metrics.Evicted.Inc(int64(len(evicted)))
}

func (s *Service) notify(p *types.Proposal) {
	s.listenersMtx.RLock()
	listeners := s.listeners
	s.listenersMtx.RUnlock()

	for _, l := range listeners {
		l(p)
	}
}

func (s *Service) resetTimer() {
	select {
	case s.resetCh <- struct{}{}:
	default:
	}
}

// timeoutRoutine 等待当前轮次的延时窗口结束，等待期间不持有锁
func (s *Service) timeoutRoutine() {
	for {
		s.mtx.RLock()
		wait := s.windowStart.Add(s.config.Delay).Sub(s.clock.Now())
		s.mtx.RUnlock()

		if wait <= 0 {
			s.handleTimeout()
			continue
		}

		timer := s.clock.Timer(wait)
		select {
		case <-timer.C:
			s.handleTimeout()
		case <-s.resetCh:
			timer.Stop()
		case <-s.Quit():
			timer.Stop()
			return
		}
	}
}

// handleTimeout 重新检查截止时间，窗口可能已经因为按大小切分或Advance被重置
func (s *Service) handleTimeout() {
	s.mtx.Lock()
	if s.clock.Now().Before(s.windowStart.Add(s.config.Delay)) {
		s.mtx.Unlock()
		return
	}
	p := s.finalizeLocked(triggerTime)
	s.metrics.markQueue(s.queue)
	s.mtx.Unlock()

	s.notify(p)
}

func (s *Service) loadFromStore() error {
	if s.store == nil {
		return nil
	}

	latest, ok, err := s.store.LatestRound()
	if err != nil {
		return fmt.Errorf("load latest round: %w", err)
	}
	if !ok {
		return nil
	}
	proposals, err := s.store.LoadRecent(s.config.RetentionWindow)
	if err != nil {
		return fmt.Errorf("load recent proposals: %w", err)
	}

	s.mtx.Lock()
	for _, p := range proposals {
		s.queue.record(p)
	}
	if next := latest.NextReject(); s.current.Less(next) {
		s.current = next
	}
	current := s.current
	s.metrics.markRound(current)
	s.mtx.Unlock()

	s.Logger.Info("recovered proposals from store", "proposals", len(proposals), "latest", latest, "open", current)
	return nil
}
