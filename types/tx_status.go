package types

import (
	"fmt"

	tmbytes "github.com/tendermint/tendermint/libs/bytes"
)

// TxStatus 交易在系统中的状态
type TxStatus uint8

const (
	StatelessFailed TxStatus = iota
	StatelessValid
	StatefulFailed
	StatefulValid
	Committed
	MstExpired
	NotReceived
	MstPending
	MstPassed
)

type txStatusInfo struct {
	name     string
	priority int
}

// 状态到优先级的映射表，优先级高的状态可以覆盖优先级低的状态
var txStatusTable = [...]txStatusInfo{
	StatelessFailed: {"stateless_failed", 6},
	StatelessValid:  {"stateless_valid", 1},
	StatefulFailed:  {"stateful_failed", 7},
	StatefulValid:   {"stateful_valid", 4},
	Committed:       {"committed", 5},
	MstExpired:      {"mst_expired", 8},
	NotReceived:     {"not_received", 9},
	MstPending:      {"mst_pending", 2},
	MstPassed:       {"mst_passed", 3},
}

// normalize clamps unknown discriminants to the last kind.
func (s TxStatus) normalize() TxStatus {
	if int(s) >= len(txStatusTable) {
		return MstPassed
	}
	return s
}

func (s TxStatus) Priority() int {
	return txStatusTable[s.normalize()].priority
}

func (s TxStatus) String() string {
	return txStatusTable[s.normalize()].name
}

func ParseTxStatus(name string) (TxStatus, error) {
	for i, info := range txStatusTable {
		if info.name == name {
			return TxStatus(i), nil
		}
	}
	return NotReceived, fmt.Errorf("%w: %q", ErrUnknownTxStatus, name)
}

func (s TxStatus) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

func (s *TxStatus) UnmarshalJSON(bz []byte) error {
	if len(bz) < 2 || bz[0] != '"' || bz[len(bz)-1] != '"' {
		return fmt.Errorf("%w: %s", ErrUnknownTxStatus, bz)
	}
	st, err := ParseTxStatus(string(bz[1 : len(bz)-1]))
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// TxResponse 交易状态查询的结果
type TxResponse struct {
	TxHash       tmbytes.HexBytes `json:"tx_hash"`
	Status       TxStatus         `json:"status"`
	ErrorMessage string           `json:"error_message,omitempty"`
}

func NewTxResponse(hash []byte, status TxStatus, errMsg string) *TxResponse {
	return &TxResponse{TxHash: hash, Status: status, ErrorMessage: errMsg}
}

// ComparePriorities returns -1 if r has lower priority than other, 0 if equal, 1 otherwise.
func (r *TxResponse) ComparePriorities(other *TxResponse) int {
	p, o := r.Status.Priority(), other.Status.Priority()
	switch {
	case p < o:
		return -1
	case p == o:
		return 0
	}
	return 1
}
