package coretypes

import (
	"ondemand_os/types"
)

// ResultSendBatches send_batches的返回值
type ResultSendBatches struct {
	Accepted int `json:"accepted"`
}

// ResultProposal request_proposal的返回值，Proposal为nil表示没有提案
type ResultProposal struct {
	Proposal *types.Proposal `json:"proposal"`
}

type ResultRound struct {
	Round types.RoundCoordinate `json:"round"`
	State string                `json:"state"`
}

type ResultMetrics struct {
	Metrics map[string]string `json:"metrics"`
}
