package ordering

import (
	metrics "github.com/rcrowley/go-metrics"

	"ondemand_os/libs/metric"
	"ondemand_os/types"
)

// MetricLabel is the label the ordering metrics are registered under.
const MetricLabel = "ordering"

const (
	triggerSize     = "size"
	triggerTime     = "time"
	triggerExplicit = "explicit"
)

// Metrics 排序服务的统计信息
type Metrics struct {
	*metric.RegistryItem

	BatchesEnqueued metrics.Counter // 入队的batch总数
	TxsEnqueued     metrics.Counter // 入队的交易总数
	PendingBatches  metrics.Gauge   // 等待切分的batch数
	PendingTxs      metrics.Gauge   // 等待切分的交易数

	ProposalsBySize     metrics.Counter
	ProposalsByTime     metrics.Counter
	ProposalsByExplicit metrics.Counter
	ProposalTxs         metrics.Histogram // 每个提案包含的交易数

	RequestHits   metrics.Counter // 请求到已切分的提案
	RequestMisses metrics.Counter // 请求的轮次未切分或已被淘汰
	Evicted       metrics.Counter

	OpenBlockRound  metrics.Gauge
	OpenRejectRound metrics.Gauge
}

func NewMetrics() *Metrics {
	item := metric.NewRegistryItem()
	return &Metrics{
		RegistryItem:        item,
		BatchesEnqueued:     item.Counter("batches_enqueued"),
		TxsEnqueued:         item.Counter("txs_enqueued"),
		PendingBatches:      item.Gauge("pending_batches"),
		PendingTxs:          item.Gauge("pending_txs"),
		ProposalsBySize:     item.Counter("proposals_by_size"),
		ProposalsByTime:     item.Counter("proposals_by_time"),
		ProposalsByExplicit: item.Counter("proposals_by_explicit"),
		ProposalTxs:         item.Histogram("proposal_txs"),
		RequestHits:         item.Counter("request_hits"),
		RequestMisses:       item.Counter("request_misses"),
		Evicted:             item.Counter("evicted"),
		OpenBlockRound:      item.Gauge("open_block_round"),
		OpenRejectRound:     item.Gauge("open_reject_round"),
	}
}

func (m *Metrics) markFinalized(trigger string, txs int) {
	switch trigger {
	case triggerSize:
		m.ProposalsBySize.Inc(1)
	case triggerTime:
		m.ProposalsByTime.Inc(1)
	default:
		m.ProposalsByExplicit.Inc(1)
	}
	m.ProposalTxs.Update(int64(txs))
}

func (m *Metrics) markQueue(q *batchQueue) {
	m.PendingBatches.Update(int64(q.pendingBatches()))
	m.PendingTxs.Update(int64(q.pendingTransactions()))
}

func (m *Metrics) markRound(r types.RoundCoordinate) {
	m.OpenBlockRound.Update(int64(r.BlockRound))
	m.OpenRejectRound.Update(int64(r.RejectRound))
}
