package transport

import (
	"context"

	"ondemand_os/types"
)

// LocalTransport 进程内直接调用排序服务，用于单节点部署和测试
type LocalTransport struct {
	service OrderingService
}

func NewLocalTransport(svc OrderingService) *LocalTransport {
	return &LocalTransport{service: svc}
}

func (lt *LocalTransport) SendBatches(ctx context.Context, round types.RoundCoordinate, batches []*types.Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	lt.service.OnBatches(round, batches)
	return nil
}

func (lt *LocalTransport) RequestProposal(ctx context.Context, round types.RoundCoordinate) (*types.Proposal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, ok := lt.service.OnRequestProposal(round)
	if !ok {
		return nil, nil
	}
	return p, nil
}
