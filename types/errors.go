package types

import "errors"

var (
	ErrInvalidRound    = errors.New("invalid round coordinate")
	ErrEmptyBatch      = errors.New("batch must contain at least one transaction")
	ErrEmptyCreator    = errors.New("transaction creator is empty")
	ErrHashMismatch    = errors.New("hash does not match content")
	ErrUnknownTxStatus = errors.New("unknown tx status")
)
