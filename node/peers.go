package node

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tendermint/tendermint/p2p"
)

var (
	ErrNoLedgerPeers = errors.New("no ledger peers")
)

// Peer 账本中的一个节点，Address是它的rpc地址
type Peer struct {
	ID      p2p.ID
	Address string
}

func (p Peer) String() string {
	if p.ID == "" {
		return p.Address
	}
	return fmt.Sprintf("%v@%v", p.ID, p.Address)
}

// PeerQuery 查询当前账本中的节点
type PeerQuery interface {
	GetLedgerPeers() ([]Peer, error)
}

// StaticPeerQuery 返回配置中写死的节点列表
type StaticPeerQuery struct {
	peers []Peer
}

// NewStaticPeerQuery parses entries of the form [id@]host:port, optionally prefixed by tcp://.
func NewStaticPeerQuery(entries []string) (*StaticPeerQuery, error) {
	peers := make([]Peer, 0, len(entries))
	for _, e := range entries {
		p, err := parsePeer(e)
		if err != nil {
			return nil, err
		}
		peers = append(peers, p)
	}
	return &StaticPeerQuery{peers: peers}, nil
}

func (q *StaticPeerQuery) GetLedgerPeers() ([]Peer, error) {
	return append([]Peer(nil), q.peers...), nil
}

func parsePeer(s string) (Peer, error) {
	s = removeProtocolIfDefined(strings.TrimSpace(s))

	var p Peer
	if i := strings.Index(s, "@"); i >= 0 {
		p.ID = p2p.ID(s[:i])
		if err := validateID(p.ID); err != nil {
			return Peer{}, fmt.Errorf("invalid peer %q: %w", s, err)
		}
		s = s[i+1:]
	}
	if s == "" || !strings.Contains(s, ":") {
		return Peer{}, fmt.Errorf("invalid peer address %q: expected host:port", s)
	}
	p.Address = "tcp://" + s
	return p, nil
}

func validateID(id p2p.ID) error {
	// 借用NetAddress的校验规则
	_, err := p2p.NewNetAddressString(p2p.IDAddressString(id, "127.0.0.1:1"))
	return err
}

func removeProtocolIfDefined(addr string) string {
	if strings.Contains(addr, "://") {
		return strings.Split(addr, "://")[1]
	}
	return addr
}
