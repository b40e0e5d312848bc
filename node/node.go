package node

import (
	"fmt"
	"net"

	"github.com/benbjohnson/clock"
	"github.com/tendermint/tendermint/libs/log"
	"github.com/tendermint/tendermint/libs/service"
	"github.com/tendermint/tendermint/p2p"
	"github.com/tendermint/tendermint/p2p/conn"
	"github.com/tendermint/tendermint/version"

	cfg "ondemand_os/config"
	"ondemand_os/gate"
	"ondemand_os/libs/metric"
	"ondemand_os/ordering"
	"ondemand_os/rpc"
	"ondemand_os/store"
	"ondemand_os/transport"
)

const networkName = "ondemand-ordering"

type Provider func(*cfg.Config, log.Logger) (*Node, error)

// Node 排序节点：运行排序服务并对外提供rpc和p2p接口，同时持有一个指向排序服务的ordering gate
type Node struct {
	service.BaseService

	// config
	config *cfg.Config
	clock  clock.Clock

	// network
	transport *p2p.MultiplexTransport
	sw        *p2p.Switch // p2p connections
	nodeInfo  p2p.NodeInfo
	nodeKey   *p2p.NodeKey // our node privkey

	// service
	store     *store.ProposalStore // nil if persist is off
	ordering  *ordering.Service
	reactor   *ordering.Reactor
	client    *transport.Client
	gate      *gate.Gate
	metricSet *metric.MetricSet

	rpcListener net.Listener
}

type Option func(*Node)

// WithClock replaces the wall clock used by the ordering service and the gate.
func WithClock(clk clock.Clock) Option {
	return func(n *Node) { n.clock = clk }
}

func DefaultNewNode(config *cfg.Config, logger log.Logger) (*Node, error) {
	nodeKey, err := p2p.LoadOrGenNodeKey(config.NodeKeyFile())
	if err != nil {
		return nil, fmt.Errorf("failed to load or gen node key %s: %w", config.NodeKeyFile(), err)
	}

	return NewNode(config, nodeKey, logger)
}

func createTransport(
	config *cfg.Config,
	nodeInfo p2p.NodeInfo,
	nodeKey *p2p.NodeKey,
) *p2p.MultiplexTransport {
	var (
		mConnConfig = conn.DefaultMConnConfig()
		transport   = p2p.NewMultiplexTransport(nodeInfo, *nodeKey, mConnConfig)
	)

	// Limit the number of incoming connections.
	p2p.MultiplexTransportMaxIncomingConnections(config.P2P.MaxNumInboundPeers)(transport)

	return transport
}

func createSwitch(config *cfg.Config,
	transport p2p.Transport,
	orderingReactor *ordering.Reactor,
	nodeInfo p2p.NodeInfo,
	nodeKey *p2p.NodeKey,
	p2pLogger log.Logger) *p2p.Switch {

	sw := p2p.NewSwitch(
		config.P2P,
		transport,
	)
	sw.SetLogger(p2pLogger)
	sw.AddReactor("ORDERING", orderingReactor)

	sw.SetNodeInfo(nodeInfo)
	sw.SetNodeKey(nodeKey)

	p2pLogger.Info("P2P Node ID", "ID", nodeKey.ID(), "file", config.NodeKeyFile())
	return sw
}

func makeNodeInfo(
	config *cfg.Config,
	nodeKey *p2p.NodeKey,
) (p2p.NodeInfo, error) {
	nodeInfo := p2p.DefaultNodeInfo{
		ProtocolVersion: p2p.NewProtocolVersion(
			version.P2PProtocol,
			version.BlockProtocol,
			0,
		),
		DefaultNodeID: nodeKey.ID(),
		Network:       networkName,
		Version:       version.TMCoreSemVer,
		Channels: []byte{
			ordering.BatchChannel, ordering.ProposalChannel,
		},
		Moniker: config.Moniker,
		Other: p2p.DefaultNodeInfoOther{
			TxIndex:    "off",
			RPCAddress: config.RPC.ListenAddress,
		},
	}

	lAddr := config.P2P.ExternalAddress

	if lAddr == "" {
		lAddr = config.P2P.ListenAddress
	}

	nodeInfo.ListenAddr = lAddr

	err := nodeInfo.Validate()
	return nodeInfo, err
}

// createOrderingGate 配置了排序节点时通过rpc连接第一个节点，否则直接使用本地的排序服务
func createOrderingGate(config *cfg.Config, svc *ordering.Service, clk clock.Clock, logger log.Logger) (*gate.Gate, *transport.Client, error) {
	entries := config.Ordering.PeerList()
	if len(entries) == 0 {
		client := transport.NewClient(transport.NewLocalTransport(svc), clk,
			config.Ordering.RequestTimeout, logger.With("module", "ordering_client"))
		return gate.New(client, logger.With("module", "gate")), client, nil
	}

	peers, err := NewStaticPeerQuery(entries)
	if err != nil {
		return nil, nil, err
	}
	return InitOrderingGate(peers, config.Ordering, clk, logger)
}

func NewNode(config *cfg.Config, nodekey *p2p.NodeKey, logger log.Logger, options ...Option) (*Node, error) {
	node := &Node{
		config:    config,
		clock:     clock.New(),
		nodeKey:   nodekey,
		metricSet: metric.NewMetricSet(),
	}
	for _, option := range options {
		option(node)
	}

	// proposal store
	svcOptions := []ordering.ServiceOption{ordering.WithClock(node.clock)}
	if config.Ordering.Persist {
		ps, err := store.NewProposalStore(store.DBName, config.DBBackend, config.DBDir(), logger.With("module", "store"))
		if err != nil {
			return nil, err
		}
		node.store = ps
		svcOptions = append(svcOptions, ordering.WithStore(ps))
	}

	// ordering service
	svc, err := ordering.NewService(config.Ordering, svcOptions...)
	if err != nil {
		return nil, err
	}
	node.ordering = svc

	// gate and its client
	g, client, err := createOrderingGate(config, svc, node.clock, logger)
	if err != nil {
		return nil, err
	}
	node.gate, node.client = g, client

	// ordering reactor: 推送本节点切分的提案，收到的推送交给client
	reactor := ordering.NewReactor(svc, ordering.WithProposalSink(client))
	reactor.SetLogger(logger.With("module", "ordering"))
	svc.AddProposalListener(reactor.BroadcastProposal)
	node.reactor = reactor

	if err := node.metricSet.SetMetrics(ordering.MetricLabel, svc.Metrics()); err != nil {
		return nil, err
	}
	if err := node.metricSet.SetMetrics(transport.MetricLabel, client); err != nil {
		return nil, err
	}

	// setup node identity
	nodeinfo, err := makeNodeInfo(config, nodekey)
	if err != nil {
		return nil, err
	}
	node.nodeInfo = nodeinfo

	// Setup Transport.
	node.transport = createTransport(config, nodeinfo, nodekey)

	// Setup Switch.
	node.sw = createSwitch(
		config, node.transport, reactor, nodeinfo, nodekey, logger.With("module", "p2p"),
	)

	node.BaseService = *service.NewBaseService(logger, "Node", node)
	return node, nil
}

func (n *Node) Switch() *p2p.Switch {
	return n.sw
}

func (n *Node) NodeInfo() p2p.NodeInfo {
	return n.nodeInfo
}

func (n *Node) OrderingService() *ordering.Service {
	return n.ordering
}

func (n *Node) Gate() *gate.Gate {
	return n.gate
}

func (n *Node) MetricSet() *metric.MetricSet {
	return n.metricSet
}

// RPCAddr returns the address the rpc server listens on, or nil before start.
func (n *Node) RPCAddr() net.Addr {
	if n.rpcListener == nil {
		return nil
	}
	return n.rpcListener.Addr()
}

func (n *Node) OnStart() (err error) {
	if err = n.ordering.Start(); err != nil {
		return err
	}
	// 启动失败时BaseService不会调用OnStop，这里自己收尾
	defer func() {
		if err != nil {
			n.abortStart()
		}
	}()

	// start rpc server
	rpc.SetEnvironment(&rpc.Environment{
		Service:   n.ordering,
		MetricSet: n.metricSet,
		Logger:    n.Logger.With("module", "rpc"),
	})
	if n.config.RPC.ListenAddress != "" {
		listener, err := rpc.StartHTTPServer(n.config.RPC.ListenAddress,
			n.config.RPC.MaxOpenConnections, n.Logger.With("module", "rpc-server"))
		if err != nil {
			return err
		}
		n.rpcListener = listener
	}

	// start the transport
	addr, err := p2p.NewNetAddressString(p2p.IDAddressString(n.nodeKey.ID(), n.config.P2P.ListenAddress))
	if err != nil {
		return err
	}
	if err = n.transport.Listen(*addr); err != nil {
		return err
	}

	// start the Switch
	err = n.sw.Start()
	if err != nil {
		return err
	}

	n.Logger.Info("dial peers", "peers", n.config.P2P.PersistentPeers)
	err = n.sw.DialPeersAsync(cfg.SplitAndTrimEmpty(n.config.P2P.PersistentPeers, ",", " "))
	if err != nil {
		return fmt.Errorf("could not dial peers from persistent_peers field: %w", err)
	}

	return nil
}

// abortStart 撤销OnStart中已经启动的部分
func (n *Node) abortStart() {
	if n.sw.IsRunning() {
		if err := n.sw.Stop(); err != nil {
			n.Logger.Error("failed to stop switch", "err", err)
		}
	}
	if err := n.transport.Close(); err != nil {
		n.Logger.Error("failed to close transport", "err", err)
	}
	if n.rpcListener != nil {
		if err := n.rpcListener.Close(); err != nil {
			n.Logger.Error("failed to close rpc listener", "err", err)
		}
		n.rpcListener = nil
	}
	if err := n.ordering.Stop(); err != nil {
		n.Logger.Error("failed to stop ordering service", "err", err)
	}
}

func (n *Node) OnStop() {
	if err := n.sw.Stop(); err != nil {
		n.Logger.Error("failed to stop switch", "err", err)
	}
	if err := n.transport.Close(); err != nil {
		n.Logger.Error("failed to close transport", "err", err)
	}

	if n.rpcListener != nil {
		if err := n.rpcListener.Close(); err != nil {
			n.Logger.Error("failed to close rpc listener", "err", err)
		}
	}

	if err := n.ordering.Stop(); err != nil {
		n.Logger.Error("failed to stop ordering service", "err", err)
	}
	n.client.Wait()

	if n.store != nil {
		if err := n.store.Close(); err != nil {
			n.Logger.Error("failed to close store", "err", err)
		}
	}
}
