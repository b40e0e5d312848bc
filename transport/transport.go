package transport

import (
	"context"

	"ondemand_os/types"
)

// Transport is the whole boundary between the ordering gate and the ordering service.
type Transport interface {
	// SendBatches delivers batches without any acknowledgement of the ordering outcome.
	SendBatches(ctx context.Context, round types.RoundCoordinate, batches []*types.Batch) error
	// RequestProposal returns nil, nil when the service has no proposal for round.
	RequestProposal(ctx context.Context, round types.RoundCoordinate) (*types.Proposal, error)
}

// Subscriber receives proposals the service pushes without being asked.
type Subscriber interface {
	OnProposal(*types.Proposal)
}

// OrderingService 排序服务对传输层暴露的接口
type OrderingService interface {
	OnBatches(round types.RoundCoordinate, batches []*types.Batch)
	OnRequestProposal(round types.RoundCoordinate) (*types.Proposal, bool)
}
