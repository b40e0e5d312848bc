package node

import (
	"fmt"

	"github.com/benbjohnson/clock"
	"github.com/tendermint/tendermint/libs/log"

	cfg "ondemand_os/config"
	"ondemand_os/gate"
	"ondemand_os/transport"
)

// InitOrderingGate 连接账本中第一个节点上的排序服务并创建ordering gate
// 只使用第一个节点，节点失效时不会切换到其它节点
func InitOrderingGate(peers PeerQuery, config *cfg.OrderingConfig, clk clock.Clock, logger log.Logger) (*gate.Gate, *transport.Client, error) {
	ledgerPeers, err := peers.GetLedgerPeers()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query ledger peers: %w", err)
	}
	if len(ledgerPeers) == 0 {
		return nil, nil, ErrNoLedgerPeers
	}

	target := ledgerPeers[0]
	t, err := transport.NewHTTPTransport(target.Address)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("ordering gate connected", "peer", target.ID, "remote", t.Remote(), "peers", len(ledgerPeers))

	client := transport.NewClient(t, clk, config.RequestTimeout, logger.With("module", "ordering_client"))
	return gate.New(client, logger.With("module", "gate")), client, nil
}
