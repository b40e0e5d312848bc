package transport

import (
	"context"

	"github.com/pkg/errors"
	jsonrpcclient "github.com/tendermint/tendermint/rpc/jsonrpc/client"

	"ondemand_os/rpc/coretypes"
	"ondemand_os/types"
)

// Caller is the part of the JSON-RPC client the transport uses.
type Caller interface {
	Call(ctx context.Context, method string, params map[string]interface{}, result interface{}) (interface{}, error)
}

// HTTPTransport 通过排序服务节点的JSON-RPC接口收发batch和提案
type HTTPTransport struct {
	remote string
	caller Caller
}

// NewHTTPTransport dials nothing; remote is e.g. tcp://127.0.0.1:26657.
func NewHTTPTransport(remote string) (*HTTPTransport, error) {
	c, err := jsonrpcclient.New(remote)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create rpc client for %s", remote)
	}
	return NewHTTPTransportWithCaller(remote, c), nil
}

func NewHTTPTransportWithCaller(remote string, caller Caller) *HTTPTransport {
	return &HTTPTransport{remote: remote, caller: caller}
}

func (ht *HTTPTransport) Remote() string {
	return ht.remote
}

func (ht *HTTPTransport) SendBatches(ctx context.Context, round types.RoundCoordinate, batches []*types.Batch) error {
	result := new(coretypes.ResultSendBatches)
	params := map[string]interface{}{
		"round":   round,
		"batches": batches,
	}
	if _, err := ht.caller.Call(ctx, "send_batches", params, result); err != nil {
		return errors.Wrapf(err, "send_batches to %s", ht.remote)
	}
	return nil
}

func (ht *HTTPTransport) RequestProposal(ctx context.Context, round types.RoundCoordinate) (*types.Proposal, error) {
	result := new(coretypes.ResultProposal)
	params := map[string]interface{}{
		"round": round,
	}
	if _, err := ht.caller.Call(ctx, "request_proposal", params, result); err != nil {
		return nil, errors.Wrapf(err, "request_proposal to %s", ht.remote)
	}
	if result.Proposal == nil {
		return nil, nil
	}
	if err := result.Proposal.ValidateBasic(); err != nil {
		return nil, errors.Wrap(err, "invalid proposal in response")
	}
	return result.Proposal, nil
}
