package transport

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	jsoniter "github.com/json-iterator/go"
	"github.com/tendermint/tendermint/libs/log"

	"ondemand_os/types"
)

// MetricLabel is the label the client stats are registered under.
const MetricLabel = "ordering_client"

// Stats 客户端的统计信息
type Stats struct {
	Sent     int64 `json:"sent"`     // 成功发送的batch请求
	Dropped  int64 `json:"dropped"`  // 发送失败被丢弃的batch请求
	Requests int64 `json:"requests"` // 提案请求总数
	Received int64 `json:"received"` // 拿到提案的请求
	Timeouts int64 `json:"timeouts"` // 超时的请求
	Failures int64 `json:"failures"` // 传输出错的请求
}

// Client 排序服务的客户端
// 发送batch不等待结果；请求提案最多等待timeout，截止时间按注入的时钟计算
type Client struct {
	stats Stats // atomic, 放在第一个保证64位对齐

	transport Transport
	clock     clock.Clock
	timeout   time.Duration
	logger    log.Logger

	mtx         sync.RWMutex
	subscribers []Subscriber

	wg sync.WaitGroup // 正在发送的batch
}

func NewClient(t Transport, clk clock.Clock, timeout time.Duration, logger log.Logger) *Client {
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Client{
		transport: t,
		clock:     clk,
		timeout:   timeout,
		logger:    logger,
	}
}

// OnBatches sends batches on its own goroutine. Invalid input and failed sends are logged and dropped.
func (c *Client) OnBatches(round types.RoundCoordinate, batches []*types.Batch) {
	if len(batches) == 0 {
		return
	}
	if err := types.Batches(batches).ValidateBasic(); err != nil {
		atomic.AddInt64(&c.stats.Dropped, 1)
		c.logger.Error("invalid batches, dropped", "round", round, "batches", len(batches), "err", err)
		return
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		ctx, cancel := c.clock.WithTimeout(context.Background(), c.timeout)
		defer cancel()

		if err := c.transport.SendBatches(ctx, round, batches); err != nil {
			atomic.AddInt64(&c.stats.Dropped, 1)
			c.logger.Error("failed to send batches, dropped", "round", round, "batches", len(batches), "err", err)
			return
		}
		atomic.AddInt64(&c.stats.Sent, 1)
	}()
}

// OnRequestProposal 请求round的提案，超时、出错和排序服务没有提案都返回ok=false
// 超时后仍在进行的请求结果会被丢弃
func (c *Client) OnRequestProposal(round types.RoundCoordinate) (*types.Proposal, bool) {
	atomic.AddInt64(&c.stats.Requests, 1)

	ctx, cancel := c.clock.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	type result struct {
		proposal *types.Proposal
		err      error
	}
	resCh := make(chan result, 1)
	go func() {
		p, err := c.transport.RequestProposal(ctx, round)
		resCh <- result{p, err}
	}()

	select {
	case res := <-resCh:
		if res.err != nil {
			atomic.AddInt64(&c.stats.Failures, 1)
			c.logger.Error("proposal request failed", "round", round, "err", res.err)
			return nil, false
		}
		if res.proposal == nil {
			return nil, false
		}
		if !res.proposal.Round.Equal(round) {
			atomic.AddInt64(&c.stats.Failures, 1)
			c.logger.Error("proposal for wrong round", "requested", round, "got", res.proposal.Round)
			return nil, false
		}
		atomic.AddInt64(&c.stats.Received, 1)
		return res.proposal, true

	case <-ctx.Done():
		atomic.AddInt64(&c.stats.Timeouts, 1)
		c.logger.Info("proposal request timed out", "round", round, "timeout", c.timeout)
		return nil, false
	}
}

// Subscribe registers sub for proposals pushed by the service.
func (c *Client) Subscribe(sub Subscriber) {
	c.mtx.Lock()
	c.subscribers = append(c.subscribers, sub)
	c.mtx.Unlock()
}

// Deliver 将排序服务主动推送的提案转发给所有订阅者
func (c *Client) Deliver(p *types.Proposal) {
	c.mtx.RLock()
	subs := c.subscribers
	c.mtx.RUnlock()

	for _, sub := range subs {
		sub.OnProposal(p)
	}
}

// Wait blocks until every batch send started so far has finished.
func (c *Client) Wait() {
	c.wg.Wait()
}

func (c *Client) Stats() Stats {
	return Stats{
		Sent:     atomic.LoadInt64(&c.stats.Sent),
		Dropped:  atomic.LoadInt64(&c.stats.Dropped),
		Requests: atomic.LoadInt64(&c.stats.Requests),
		Received: atomic.LoadInt64(&c.stats.Received),
		Timeouts: atomic.LoadInt64(&c.stats.Timeouts),
		Failures: atomic.LoadInt64(&c.stats.Failures),
	}
}

// JSONString implements metric.MetricItem.
func (c *Client) JSONString() string {
	s, _ := jsoniter.MarshalToString(c.Stats())
	return s
}
