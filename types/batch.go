package types

import (
	"bytes"
	"fmt"

	tmbytes "github.com/tendermint/tendermint/libs/bytes"
)

// Batch 是不可拆分的一组有序交易，排序服务以batch为单位入队和切分
type Batch struct {
	Transactions Txs              `json:"transactions"`
	Hash         tmbytes.HexBytes `json:"hash"`
}

// NewBatch takes ownership of a copy of txs. An empty batch is rejected.
func NewBatch(txs ...*Transaction) (*Batch, error) {
	if len(txs) == 0 {
		return nil, ErrEmptyBatch
	}
	b := &Batch{Transactions: append(Txs(nil), txs...)}
	b.Hash = b.Transactions.Hash()
	return b, nil
}

// MustNewBatch panics on an empty batch. Used by tests and tooling.
func MustNewBatch(txs ...*Transaction) *Batch {
	b, err := NewBatch(txs...)
	if err != nil {
		panic(err)
	}
	return b
}

func (b *Batch) Len() int {
	return len(b.Transactions)
}

func (b *Batch) ValidateBasic() error {
	if len(b.Transactions) == 0 {
		return ErrEmptyBatch
	}
	for _, tx := range b.Transactions {
		if tx == nil {
			return fmt.Errorf("batch %X: nil transaction", []byte(b.Hash))
		}
		if err := tx.ValidateBasic(); err != nil {
			return err
		}
	}
	if !bytes.Equal(b.Hash, b.Transactions.Hash()) {
		return fmt.Errorf("batch %X: %w", []byte(b.Hash), ErrHashMismatch)
	}
	return nil
}

func (b *Batch) String() string {
	return fmt.Sprintf("Batch{%X txs:%d}", []byte(b.Hash), len(b.Transactions))
}

// ===== batch array =====
type Batches []*Batch

func (bs Batches) TxCount() int {
	n := 0
	for _, b := range bs {
		n += b.Len()
	}
	return n
}

func (bs Batches) Hashes() [][]byte {
	hashes := make([][]byte, len(bs))
	for i, b := range bs {
		hashes[i] = b.Hash
	}
	return hashes
}

func (bs Batches) ValidateBasic() error {
	for i, b := range bs {
		if b == nil {
			return fmt.Errorf("batch #%d is nil", i)
		}
		if err := b.ValidateBasic(); err != nil {
			return fmt.Errorf("batch #%d: %w", i, err)
		}
	}
	return nil
}
