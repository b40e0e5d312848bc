package rpc

import (
	"errors"
	"fmt"

	tmbytes "github.com/tendermint/tendermint/libs/bytes"
	rpctypes "github.com/tendermint/tendermint/rpc/jsonrpc/types"

	"ondemand_os/rpc/coretypes"
	"ondemand_os/types"
)

var ErrEmptyHash = errors.New("empty tx hash")

// SendBatches 将batch交给排序服务，只要格式合法就接受，不返回排序结果
func SendBatches(ctx *rpctypes.Context, round types.RoundCoordinate, batches []*types.Batch) (*coretypes.ResultSendBatches, error) {
	if err := types.Batches(batches).ValidateBasic(); err != nil {
		return nil, fmt.Errorf("invalid batches: %w", err)
	}
	env.Service.OnBatches(round, batches)
	return &coretypes.ResultSendBatches{Accepted: len(batches)}, nil
}

// RequestProposal returns a nil proposal when round has none.
func RequestProposal(ctx *rpctypes.Context, round types.RoundCoordinate) (*coretypes.ResultProposal, error) {
	p, ok := env.Service.OnRequestProposal(round)
	if !ok {
		return &coretypes.ResultProposal{}, nil
	}
	return &coretypes.ResultProposal{Proposal: p}, nil
}

// AdvanceRound 共识通知排序服务进入新的轮次
func AdvanceRound(ctx *rpctypes.Context, round types.RoundCoordinate) (*coretypes.ResultRound, error) {
	if err := env.Service.Advance(round); err != nil {
		return nil, err
	}
	return roundResult(env.Service.CurrentRound()), nil
}

func RoundState(ctx *rpctypes.Context, round types.RoundCoordinate) (*coretypes.ResultRound, error) {
	return roundResult(round), nil
}

func TxStatus(ctx *rpctypes.Context, hash tmbytes.HexBytes) (*types.TxResponse, error) {
	if len(hash) == 0 {
		return nil, ErrEmptyHash
	}
	return env.Service.TxStatus(hash), nil
}

func roundResult(round types.RoundCoordinate) *coretypes.ResultRound {
	return &coretypes.ResultRound{
		Round: round,
		State: env.Service.RoundState(round).String(),
	}
}
