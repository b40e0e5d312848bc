package rpc

import rpc "github.com/tendermint/tendermint/rpc/jsonrpc/server"

var Routes = map[string]*rpc.RPCFunc{
	// ordering
	"send_batches":     rpc.NewRPCFunc(SendBatches, "round,batches"),
	"request_proposal": rpc.NewRPCFunc(RequestProposal, "round"),
	"advance_round":    rpc.NewRPCFunc(AdvanceRound, "round"),
	"round_state":      rpc.NewRPCFunc(RoundState, "round"),
	"tx_status":        rpc.NewRPCFunc(TxStatus, "hash"),

	// metrics
	"metrics": rpc.NewRPCFunc(JSONMetrics, "label"),
}
