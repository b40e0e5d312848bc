package transport

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ondemand_os/rpc/coretypes"
	"ondemand_os/types"
)

type fakeCaller struct {
	method string
	params map[string]interface{}

	proposal *types.Proposal
	err      error
}

func (fc *fakeCaller) Call(ctx context.Context, method string, params map[string]interface{}, result interface{}) (interface{}, error) {
	fc.method = method
	fc.params = params
	if fc.err != nil {
		return nil, fc.err
	}
	if res, ok := result.(*coretypes.ResultProposal); ok {
		res.Proposal = fc.proposal
	}
	return result, nil
}

func TestHTTPTransportSendBatches(t *testing.T) {
	fc := &fakeCaller{}
	ht := NewHTTPTransportWithCaller("tcp://127.0.0.1:26657", fc)

	r := types.RoundCoordinate{BlockRound: 1}
	batches := []*types.Batch{types.MakeBatch("x", 1, 0)}
	require.NoError(t, ht.SendBatches(context.Background(), r, batches))

	assert.Equal(t, "send_batches", fc.method)
	assert.Equal(t, r, fc.params["round"])
	assert.Equal(t, batches, fc.params["batches"])
}

func TestHTTPTransportRequestProposal(t *testing.T) {
	r := types.RoundCoordinate{BlockRound: 1}
	p := types.NewProposal(r, []*types.Batch{types.MakeBatch("x", 1, 0)}, 0)

	fc := &fakeCaller{proposal: p}
	ht := NewHTTPTransportWithCaller("tcp://127.0.0.1:26657", fc)

	got, err := ht.RequestProposal(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, p.Hash, got.Hash)
	assert.Equal(t, "request_proposal", fc.method)

	// 没有提案
	fc.proposal = nil
	got, err = ht.RequestProposal(context.Background(), r)
	assert.NoError(t, err)
	assert.Nil(t, got)

	// 哈希不一致的提案
	bad := types.NewProposal(r, []*types.Batch{types.MakeBatch("x", 1, 0)}, 0)
	bad.Batches[0].Transactions[0].Creator = "mallory"
	fc.proposal = bad
	_, err = ht.RequestProposal(context.Background(), r)
	assert.Error(t, err)

	fc.err = errors.New("connection refused")
	_, err = ht.RequestProposal(context.Background(), r)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "127.0.0.1:26657")
}

func TestNewHTTPTransportRejectsBadRemote(t *testing.T) {
	_, err := NewHTTPTransport("foo://bar:baz:qux")
	assert.Error(t, err)
}
