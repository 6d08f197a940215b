// Package escrow wraps the deferred-scheme escrow contract's ABI surface
// (collect, depositWithAuthorization, flushWithAuthorization, and the
// read-only account/verification views) behind a small on-chain client
// interface, the way the exact scheme's facilitator wraps its token
// contract via ReadContract/WriteContract.
package escrow

import (
	"context"
	"math/big"
)

// TransactionReceipt is the minimal on-chain receipt shape the facilitator
// and verifier need: status and decoded event logs.
type TransactionReceipt struct {
	TransactionHash string
	Status          uint64 // 1 == success, 0 == reverted
	Logs            []Log
}

// Log is one decoded-or-raw EVM log entry.
type Log struct {
	Address string
	Topics  []string
	Data    []byte
}

// Client is the on-chain capability set the facilitator needs: reading and
// writing contract state and waiting for transaction receipts. It has no
// typed-data signing because the facilitator never signs vouchers, permits,
// or authorizations — only buyers do, via eip712.ClientWallet.
type Client interface {
	ReadContract(ctx context.Context, address string, abiJSON []byte, method string, args ...interface{}) ([]interface{}, error)
	WriteContract(ctx context.Context, address string, abiJSON []byte, method string, args ...interface{}) (string, error)
	WaitForTransactionReceipt(ctx context.Context, txHash string) (*TransactionReceipt, error)
	GetChainID(ctx context.Context) (*big.Int, error)
}
