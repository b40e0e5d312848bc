package types

import (
	"bytes"
	"fmt"

	tmbytes "github.com/tendermint/tendermint/libs/bytes"
	"github.com/tendermint/tendermint/crypto/merkle"
)

// Proposal 是某一轮次切分出的batch集合，一旦生成就不再改变
type Proposal struct {
	// 基本的提案信息
	Round       RoundCoordinate  `json:"round"`
	Batches     Batches          `json:"batches"`
	CreatedTime int64            `json:"created_time"`
	Hash        tmbytes.HexBytes `json:"hash"`
}

// NewProposal copies the batch slice and computes the hash up front.
// A proposal without batches is valid.
func NewProposal(round RoundCoordinate, batches []*Batch, createdTime int64) *Proposal {
	p := &Proposal{
		Round:       round,
		Batches:     append(Batches{}, batches...),
		CreatedTime: createdTime,
	}
	p.Hash = p.computeHash()
	return p
}

func (p *Proposal) computeHash() []byte {
	leaves := make([][]byte, 0, len(p.Batches)+1)
	leaves = append(leaves, p.Round.Bytes())
	leaves = append(leaves, p.Batches.Hashes()...)
	return merkle.HashFromByteSlices(leaves)
}

func (p *Proposal) IsEmpty() bool {
	return len(p.Batches) == 0
}

func (p *Proposal) TxCount() int {
	return p.Batches.TxCount()
}

// Transactions 按batch顺序展开的交易
func (p *Proposal) Transactions() Txs {
	txs := make(Txs, 0, p.TxCount())
	for _, b := range p.Batches {
		txs = append(txs, b.Transactions...)
	}
	return txs
}

func (p *Proposal) ValidateBasic() error {
	if err := p.Batches.ValidateBasic(); err != nil {
		return err
	}
	if !bytes.Equal(p.Hash, p.computeHash()) {
		return fmt.Errorf("proposal %v: %w", p.Round, ErrHashMismatch)
	}
	return nil
}

func (p *Proposal) String() string {
	return fmt.Sprintf("Proposal{%v %X batches:%d txs:%d}", p.Round, []byte(p.Hash), len(p.Batches), p.TxCount())
}
