package store

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/tendermint/tendermint/libs/log"
	tmdb "github.com/tendermint/tm-db"

	"ondemand_os/types"
)

const (
	// DBName 节点数据目录下提案数据库的名字
	DBName = "proposals"

	proposalPrefix = "proposal/"
)

type (
	EncodeFn func(v interface{}) ([]byte, error)
	DecodeFn func(data []byte, v interface{}) error
)

// ProposalStore 以轮次为key持久化已切分的提案
// key = "proposal/" + 大端序的(BlockRound, RejectRound)，因此按key的顺序即按轮次的顺序
type ProposalStore struct {
	db tmdb.DB

	encoder EncodeFn
	decoder DecodeFn

	logger log.Logger
}

type StoreOption func(*ProposalStore)

// WithCodec overrides the default CBOR encoding.
func WithCodec(enc EncodeFn, dec DecodeFn) StoreOption {
	return func(s *ProposalStore) {
		s.encoder = enc
		s.decoder = dec
	}
}

func NewProposalStore(name, backend, dir string, logger log.Logger, options ...StoreOption) (*ProposalStore, error) {
	db, err := tmdb.NewDB(name, tmdb.BackendType(backend), dir)
	if err != nil {
		return nil, fmt.Errorf("open %s db in %s: %w", backend, dir, err)
	}
	return NewProposalStoreWithDB(db, logger, options...), nil
}

func NewProposalStoreWithDB(db tmdb.DB, logger log.Logger, options ...StoreOption) *ProposalStore {
	s := &ProposalStore{
		db:      db,
		encoder: cbor.Marshal,
		decoder: cbor.Unmarshal,
		logger:  logger,
	}
	for _, option := range options {
		option(s)
	}
	return s
}

func (s *ProposalStore) SaveProposal(p *types.Proposal) error {
	bz, err := s.encoder(p)
	if err != nil {
		return fmt.Errorf("encode proposal %v: %w", p.Round, err)
	}
	if err := s.db.SetSync(proposalKey(p.Round), bz); err != nil {
		return err
	}
	s.logger.Debug("saved proposal", "round", p.Round, "hash", p.Hash)
	return nil
}

// LoadProposal returns nil, nil if no proposal is stored for round.
func (s *ProposalStore) LoadProposal(round types.RoundCoordinate) (*types.Proposal, error) {
	bz, err := s.db.Get(proposalKey(round))
	if err != nil {
		return nil, err
	}
	if len(bz) == 0 {
		return nil, nil
	}
	return s.decodeProposal(bz)
}

func (s *ProposalStore) DeleteProposal(round types.RoundCoordinate) error {
	return s.db.Delete(proposalKey(round))
}

// LatestRound 返回存储中最大的轮次，存储为空时ok为false
func (s *ProposalStore) LatestRound() (round types.RoundCoordinate, ok bool, err error) {
	it, err := s.db.ReverseIterator(prefixRange())
	if err != nil {
		return round, false, err
	}
	defer it.Close()

	if !it.Valid() {
		return round, false, it.Error()
	}
	round, err = types.RoundFromBytes(it.Key()[len(proposalPrefix):])
	if err != nil {
		return round, false, err
	}
	return round, true, nil
}

// LoadRecent returns at most n of the most recent proposals in ascending round order.
func (s *ProposalStore) LoadRecent(n int) ([]*types.Proposal, error) {
	if n <= 0 {
		return nil, nil
	}
	it, err := s.db.ReverseIterator(prefixRange())
	if err != nil {
		return nil, err
	}
	defer it.Close()

	proposals := make([]*types.Proposal, 0, n)
	for ; it.Valid() && len(proposals) < n; it.Next() {
		p, err := s.decodeProposal(it.Value())
		if err != nil {
			return nil, err
		}
		proposals = append(proposals, p)
	}
	if err := it.Error(); err != nil {
		return nil, err
	}

	// 反转为升序
	for i, j := 0, len(proposals)-1; i < j; i, j = i+1, j-1 {
		proposals[i], proposals[j] = proposals[j], proposals[i]
	}
	return proposals, nil
}

func (s *ProposalStore) Close() error {
	return s.db.Close()
}

func (s *ProposalStore) decodeProposal(bz []byte) (*types.Proposal, error) {
	p := new(types.Proposal)
	if err := s.decoder(bz, p); err != nil {
		return nil, fmt.Errorf("decode proposal: %w", err)
	}
	if err := p.ValidateBasic(); err != nil {
		return nil, fmt.Errorf("stored proposal %v is corrupted: %w", p.Round, err)
	}
	return p, nil
}

func proposalKey(round types.RoundCoordinate) []byte {
	return append([]byte(proposalPrefix), round.Bytes()...)
}

// prefixRange returns [start, end) covering every proposal key.
func prefixRange() ([]byte, []byte) {
	start := []byte(proposalPrefix)
	end := []byte(proposalPrefix)
	end[len(end)-1]++
	return start, end
}
