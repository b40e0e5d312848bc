package ordering

import (
	"ondemand_os/types"
)

// batchQueue 保存等待切分的batch和已切分的提案历史
// NOTE: 不是并发安全的，由Service的锁保护
type batchQueue struct {
	maxSize  int
	limitTxs bool // true时maxSize按交易数计算

	pending    []*types.Batch // 按到达顺序排列
	pendingTxs int

	history map[types.RoundCoordinate]*types.Proposal
	order   []types.RoundCoordinate // history中的轮次，升序
}

func newBatchQueue(maxSize int, limitTxs bool) *batchQueue {
	return &batchQueue{
		maxSize:  maxSize,
		limitTxs: limitTxs,
		history:  make(map[types.RoundCoordinate]*types.Proposal),
	}
}

// enqueue 按顺序追加batch，不做去重
func (q *batchQueue) enqueue(batches []*types.Batch) {
	for _, b := range batches {
		if b == nil {
			continue
		}
		q.pending = append(q.pending, b)
		q.pendingTxs += b.Len()
	}
}

// size returns the pending amount in the unit max_size is measured in.
func (q *batchQueue) size() int {
	if q.limitTxs {
		return q.pendingTxs
	}
	return len(q.pending)
}

// ready 是否达到了切分的大小条件
func (q *batchQueue) ready() bool {
	return q.size() >= q.maxSize
}

// finalize slices the front of the pending buffer into the proposal for round.
// A round that was already finalized gets its cached proposal back and fresh is false.
func (q *batchQueue) finalize(round types.RoundCoordinate, createdTime int64) (p *types.Proposal, fresh bool) {
	if cached, ok := q.history[round]; ok {
		return cached, false
	}

	n := q.take()
	taken := make([]*types.Batch, n)
	copy(taken, q.pending[:n])
	for i := 0; i < n; i++ {
		q.pendingTxs -= taken[i].Len()
	}

	rest := make([]*types.Batch, len(q.pending)-n)
	copy(rest, q.pending[n:])
	q.pending = rest

	p = types.NewProposal(round, taken, createdTime)
	q.record(p)
	return p, true
}

// take 计算本轮能从队首取出多少个batch
// 按交易数限制时，只要累计交易数还没达到上限就继续取，所以最后一个batch可能超出上限
func (q *batchQueue) take() int {
	n, txs := 0, 0
	for n < len(q.pending) {
		if q.limitTxs {
			if txs >= q.maxSize {
				break
			}
			txs += q.pending[n].Len()
		} else if n >= q.maxSize {
			break
		}
		n++
	}
	return n
}

// record 将提案加入历史，保持order升序
func (q *batchQueue) record(p *types.Proposal) {
	if _, ok := q.history[p.Round]; ok {
		return
	}
	q.history[p.Round] = p

	i := len(q.order)
	for i > 0 && p.Round.Less(q.order[i-1]) {
		i--
	}
	q.order = append(q.order, types.RoundCoordinate{})
	copy(q.order[i+1:], q.order[i:])
	q.order[i] = p.Round
}

func (q *batchQueue) lookup(round types.RoundCoordinate) (*types.Proposal, bool) {
	p, ok := q.history[round]
	return p, ok
}

// evict keeps the keep most recent finalized rounds and returns the evicted ones.
func (q *batchQueue) evict(keep int) []types.RoundCoordinate {
	if len(q.order) <= keep {
		return nil
	}
	n := len(q.order) - keep
	evicted := make([]types.RoundCoordinate, n)
	copy(evicted, q.order[:n])
	for _, r := range evicted {
		delete(q.history, r)
	}
	q.order = append(q.order[:0], q.order[n:]...)
	return evicted
}

func (q *batchQueue) pendingBatches() int {
	return len(q.pending)
}

func (q *batchQueue) pendingTransactions() int {
	return q.pendingTxs
}
