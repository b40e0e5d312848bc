package types

import (
	"bytes"
	"encoding/binary"
	"fmt"

	tmbytes "github.com/tendermint/tendermint/libs/bytes"
	"github.com/tendermint/tendermint/crypto/merkle"
	"github.com/tendermint/tendermint/crypto/tmhash"
)

// Transaction 是客户端提交的一笔交易，排序服务只关心它的创建者和哈希，不解析Payload
type Transaction struct {
	Creator     string           `json:"creator"`
	Payload     []byte           `json:"payload"`
	CreatedTime int64            `json:"created_time"` // 客户端创建时间，纳秒
	Hash        tmbytes.HexBytes `json:"hash"`
}

// NewTransaction copies payload and computes the hash up front.
func NewTransaction(creator string, payload []byte, createdTime int64) *Transaction {
	tx := &Transaction{
		Creator:     creator,
		Payload:     append([]byte(nil), payload...),
		CreatedTime: createdTime,
	}
	tx.Hash = tx.computeHash()
	return tx
}

func (tx *Transaction) computeHash() []byte {
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(tx.CreatedTime))

	h := tmhash.New()
	h.Write([]byte(tx.Creator))
	h.Write(ts[:])
	h.Write(tx.Payload)
	return h.Sum(nil)
}

// ComputeSize 交易占用的大致字节数
func (tx *Transaction) ComputeSize() int64 {
	return int64(len(tx.Creator) + len(tx.Payload) + 8 + len(tx.Hash))
}

func (tx *Transaction) ValidateBasic() error {
	if tx.Creator == "" {
		return ErrEmptyCreator
	}
	if !bytes.Equal(tx.Hash, tx.computeHash()) {
		return fmt.Errorf("tx %X: %w", tx.Hash, ErrHashMismatch)
	}
	return nil
}

func (tx *Transaction) String() string {
	return fmt.Sprintf("Tx{%v %X}", tx.Creator, []byte(tx.Hash))
}

// ===== tx array =====
type Txs []*Transaction

func (txs Txs) ComputeSize() int64 {
	var dataSize int64
	for _, tx := range txs {
		dataSize += tx.ComputeSize()
	}
	return dataSize
}

// 返回交易形成的merkle tree的根value
func (txs Txs) Hash() []byte {
	txBzs := make([][]byte, len(txs))
	for i := 0; i < len(txs); i++ {
		txBzs[i] = txs[i].Hash
	}
	return merkle.HashFromByteSlices(txBzs)
}
