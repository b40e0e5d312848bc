package types

import (
	"fmt"
)

// MakeEmptyProposal 返回某一轮次的空提案
func MakeEmptyProposal(round RoundCoordinate, createdTime int64) *Proposal {
	return NewProposal(round, nil, createdTime)
}

// MakeBatch 生成包含n笔交易的batch，payload互不相同，供测试和压测工具使用
func MakeBatch(creator string, n int, createdTime int64) *Batch {
	if n <= 0 {
		n = 1
	}
	txs := make([]*Transaction, n)
	for i := 0; i < n; i++ {
		payload := []byte(fmt.Sprintf("%s-%d-%d", creator, createdTime, i))
		txs[i] = NewTransaction(creator, payload, createdTime)
	}
	return MustNewBatch(txs...)
}
