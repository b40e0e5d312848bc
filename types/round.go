package types

import (
	"encoding/binary"
	"fmt"
)

// RoundCoordinate 标识一个排序轮次，(BlockRound, RejectRound) 按字典序比较
// BlockRound 每提交一个区块加一；RejectRound 在同一个 BlockRound 内每次拒绝后加一
type RoundCoordinate struct {
	BlockRound  uint64 `json:"block_round"`
	RejectRound uint64 `json:"reject_round"`
}

// NewRoundCoordinate validates raw coordinates coming from outside the node.
func NewRoundCoordinate(block, reject int64) (RoundCoordinate, error) {
	if block < 0 || reject < 0 {
		return RoundCoordinate{}, fmt.Errorf("%w: (%d, %d)", ErrInvalidRound, block, reject)
	}
	return RoundCoordinate{BlockRound: uint64(block), RejectRound: uint64(reject)}, nil
}

// Compare returns -1, 0 or 1.
func (r RoundCoordinate) Compare(other RoundCoordinate) int {
	switch {
	case r.BlockRound < other.BlockRound:
		return -1
	case r.BlockRound > other.BlockRound:
		return 1
	case r.RejectRound < other.RejectRound:
		return -1
	case r.RejectRound > other.RejectRound:
		return 1
	}
	return 0
}

func (r RoundCoordinate) Less(other RoundCoordinate) bool {
	return r.Compare(other) < 0
}

func (r RoundCoordinate) Equal(other RoundCoordinate) bool {
	return r == other
}

// NextBlock 区块提交后进入的轮次
func (r RoundCoordinate) NextBlock() RoundCoordinate {
	return RoundCoordinate{BlockRound: r.BlockRound + 1, RejectRound: 0}
}

// NextReject 提案被拒绝后进入的轮次
func (r RoundCoordinate) NextReject() RoundCoordinate {
	return RoundCoordinate{BlockRound: r.BlockRound, RejectRound: r.RejectRound + 1}
}

// Bytes returns a fixed-width big-endian encoding that sorts like Compare.
func (r RoundCoordinate) Bytes() []byte {
	bz := make([]byte, 16)
	binary.BigEndian.PutUint64(bz[:8], r.BlockRound)
	binary.BigEndian.PutUint64(bz[8:], r.RejectRound)
	return bz
}

// RoundFromBytes is the inverse of Bytes.
func RoundFromBytes(bz []byte) (RoundCoordinate, error) {
	if len(bz) != 16 {
		return RoundCoordinate{}, fmt.Errorf("%w: expected 16 bytes, got %d", ErrInvalidRound, len(bz))
	}
	return RoundCoordinate{
		BlockRound:  binary.BigEndian.Uint64(bz[:8]),
		RejectRound: binary.BigEndian.Uint64(bz[8:]),
	}, nil
}

func (r RoundCoordinate) String() string {
	return fmt.Sprintf("(%d, %d)", r.BlockRound, r.RejectRound)
}
