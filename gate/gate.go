package gate

import (
	"github.com/tendermint/tendermint/libs/log"

	"ondemand_os/transport"
	"ondemand_os/types"
)

// 推送提案的缓冲区大小，满了之后新的推送被丢弃
const proposalBufferSize = 16

// Gate 是共识一侧访问排序服务的入口，本身不保存任何排序状态
type Gate struct {
	client    *transport.Client
	proposals chan *types.Proposal
	logger    log.Logger
}

// New subscribes the gate to pushes delivered through client.
func New(client *transport.Client, logger log.Logger) *Gate {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	g := &Gate{
		client:    client,
		proposals: make(chan *types.Proposal, proposalBufferSize),
		logger:    logger,
	}
	client.Subscribe(g)
	return g
}

// OnTransactions 将batch转发给排序服务，不等待结果
func (g *Gate) OnTransactions(round types.RoundCoordinate, batches []*types.Batch) {
	if len(batches) == 0 {
		return
	}
	g.client.OnBatches(round, batches)
}

// OnRequestProposal asks once; a miss is not retried.
func (g *Gate) OnRequestProposal(round types.RoundCoordinate) (*types.Proposal, bool) {
	p, ok := g.client.OnRequestProposal(round)
	if !ok {
		g.logger.Debug("no proposal", "round", round)
	}
	return p, ok
}

// OnProposal implements transport.Subscriber.
func (g *Gate) OnProposal(p *types.Proposal) {
	if p == nil {
		return
	}
	select {
	case g.proposals <- p:
	default:
		g.logger.Error("proposal buffer full, dropped pushed proposal", "round", p.Round)
	}
}

// Proposals returns the proposals pushed by the ordering service.
func (g *Gate) Proposals() <-chan *types.Proposal {
	return g.proposals
}
