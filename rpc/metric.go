package rpc

import (
	rpctypes "github.com/tendermint/tendermint/rpc/jsonrpc/types"

	"ondemand_os/rpc/coretypes"
)

// JSONMetrics 返回label对应的指标，label为空时返回全部
func JSONMetrics(ctx *rpctypes.Context, label string) (*coretypes.ResultMetrics, error) {
	if env.MetricSet == nil {
		return &coretypes.ResultMetrics{Metrics: make(map[string]string)}, nil
	}
	return &coretypes.ResultMetrics{Metrics: env.MetricSet.Snapshot(label)}, nil
}
