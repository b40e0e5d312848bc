package ordering

import (
	"errors"
	"fmt"

	tmjson "github.com/tendermint/tendermint/libs/json"
	"github.com/tendermint/tendermint/libs/log"
	"github.com/tendermint/tendermint/p2p"

	"ondemand_os/types"
)

const (
	// BatchChannel 网关向排序服务发送batch
	BatchChannel = byte(0x40)
	// ProposalChannel 排序服务向其他节点推送切分好的提案
	ProposalChannel = byte(0x41)

	maxMsgSize = 4 * 1024 * 1024
)

// ProposalSink receives proposals pushed by peers.
type ProposalSink interface {
	Deliver(*types.Proposal)
}

// Reactor 在节点之间传递batch和提案
type Reactor struct {
	p2p.BaseReactor

	service *Service
	sink    ProposalSink
}

type ReactorOption func(*Reactor)

// WithProposalSink sets where proposals pushed by peers are delivered.
func WithProposalSink(sink ProposalSink) ReactorOption {
	return func(r *Reactor) { r.sink = sink }
}

func NewReactor(svc *Service, options ...ReactorOption) *Reactor {
	ordR := &Reactor{
		service: svc,
	}
	ordR.BaseReactor = *p2p.NewBaseReactor("Ordering", ordR)

	for _, option := range options {
		option(ordR)
	}
	return ordR
}

// SetLogger sets the Logger on the reactor and the underlying service.
func (ordR *Reactor) SetLogger(l log.Logger) {
	ordR.Logger = l
	ordR.service.SetLogger(l)
}

// OnStart implements p2p.BaseReactor.
func (ordR *Reactor) OnStart() error {
	ordR.Logger.Info("Ordering Reactor started.")
	return nil
}

// GetChannels implements Reactor by returning the list of channels for this
// reactor.
func (ordR *Reactor) GetChannels() []*p2p.ChannelDescriptor {
	return []*p2p.ChannelDescriptor{
		{
			ID:                  BatchChannel,
			Priority:            5,
			SendQueueCapacity:   100,
			RecvMessageCapacity: maxMsgSize,
		},
		{
			ID:                  ProposalChannel,
			Priority:            10,
			SendQueueCapacity:   10,
			RecvMessageCapacity: maxMsgSize,
		},
	}
}

// AddPeer implements Reactor.
func (ordR *Reactor) AddPeer(peer p2p.Peer) {
	ordR.Logger.Debug("added peer", "peer", peer.ID())
}

// RemovePeer implements Reactor.
func (ordR *Reactor) RemovePeer(peer p2p.Peer, reason interface{}) {
	ordR.Logger.Debug("removed peer", "peer", peer.ID(), "reason", reason)
}

// Receive implements Reactor.
// BatchChannel上的batch进入排序服务；ProposalChannel上的提案交给sink
func (ordR *Reactor) Receive(chID byte, src p2p.Peer, msgBytes []byte) {
	switch chID {
	case BatchChannel:
		var msg BatchesMessage
		if err := decodeMsg(msgBytes, &msg); err != nil {
			ordR.Logger.Error("Error decoding batches", "src", src, "err", err)
			ordR.Switch.StopPeerForError(src, err)
			return
		}
		ordR.Logger.Debug("Receive batches", "src", src.ID(), "round", msg.Round, "batches", len(msg.Batches))
		ordR.service.OnBatches(msg.Round, msg.Batches)

	case ProposalChannel:
		var msg ProposalMessage
		if err := decodeMsg(msgBytes, &msg); err != nil {
			ordR.Logger.Error("Error decoding proposal", "src", src, "err", err)
			ordR.Switch.StopPeerForError(src, err)
			return
		}
		ordR.Logger.Debug("Receive proposal", "src", src.ID(), "proposal", msg.Proposal)
		if ordR.sink != nil {
			ordR.sink.Deliver(msg.Proposal)
		}

	default:
		ordR.Logger.Error(fmt.Sprintf("Unknown chID %X", chID))
	}
}

// BroadcastProposal 将切分好的提案推送给所有节点，作为Service的ProposalListener
func (ordR *Reactor) BroadcastProposal(p *types.Proposal) {
	ordR.broadcast(ProposalChannel, &ProposalMessage{Proposal: p})
}

// BroadcastBatches 将batch转发给所有节点，尽力而为
func (ordR *Reactor) BroadcastBatches(round types.RoundCoordinate, batches []*types.Batch) {
	if len(batches) == 0 {
		return
	}
	ordR.broadcast(BatchChannel, &BatchesMessage{Round: round, Batches: batches})
}

func (ordR *Reactor) broadcast(chID byte, msg Message) {
	if ordR.Switch == nil || !ordR.IsRunning() {
		return
	}
	bz, err := tmjson.Marshal(msg)
	if err != nil {
		ordR.Logger.Error("Marshal message failed.", "err", err)
		ordR.Logger.Debug("Marshal message failed.", "msg", msg)
		return
	}
	ordR.Switch.Broadcast(chID, bz)
}

// ------ Message ------

type Message interface {
	ValidateBasic() error
}

func decodeMsg(bz []byte, msg Message) error {
	if err := tmjson.Unmarshal(bz, msg); err != nil {
		return err
	}
	return msg.ValidateBasic()
}

type BatchesMessage struct {
	Round   types.RoundCoordinate `json:"round"`
	Batches types.Batches         `json:"batches"`
}

func (msg *BatchesMessage) ValidateBasic() error {
	if len(msg.Batches) == 0 {
		return errors.New("empty batches message")
	}
	return msg.Batches.ValidateBasic()
}

func (msg *BatchesMessage) String() string {
	return fmt.Sprintf("[Batches %v %d]", msg.Round, len(msg.Batches))
}

type ProposalMessage struct {
	Proposal *types.Proposal `json:"proposal"`
}

func (msg *ProposalMessage) ValidateBasic() error {
	if msg.Proposal == nil {
		return errors.New("nil proposal")
	}
	return msg.Proposal.ValidateBasic()
}

func (msg *ProposalMessage) String() string {
	return fmt.Sprintf("[Proposal %v]", msg.Proposal)
}
