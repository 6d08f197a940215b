// Package store defines the voucher store contract: the persistence
// interface, query semantics, and pagination rules every other deferred
// scheme component depends on, plus an in-memory fixture for tests.
package store

import (
	"context"
	"fmt"

	"github.com/x402-foundation/x402-deferred/deferred/voucher"
)

// ErrVoucherAlreadyExists is returned by StoreVoucher when (id, nonce) is
// already present.
var ErrVoucherAlreadyExists = fmt.Errorf("voucher already exists")

// Pagination bounds a list query. Limit <= 0 means "apply the store's
// default limit".
type Pagination struct {
	Limit  int
	Offset int
}

// VoucherFilter selects vouchers for GetVouchers. Latest, when true,
// yields one voucher per series (its tip) instead of every stored nonce.
type VoucherFilter struct {
	Buyer  *string
	Seller *string
	Latest bool
}

// CollectionFilter selects VoucherCollection records.
type CollectionFilter struct {
	ID    *string
	Nonce *voucher.BigInt
}

// VoucherStore is the abstract persistent store every other component
// depends on. Any implementation meeting this contract is compliant; the
// one provided here (InMemoryVoucherStore) is for tests only.
type VoucherStore interface {
	// GetVoucher returns the voucher at (id, nonce), or the series tip
	// when nonce is nil. Returns (nil, nil) if not found.
	GetVoucher(ctx context.Context, id string, nonce *voucher.BigInt) (*voucher.SignedVoucher, error)

	// GetVoucherSeries returns all vouchers sharing id, sorted by nonce
	// descending.
	GetVoucherSeries(ctx context.Context, id string, page Pagination) ([]voucher.SignedVoucher, error)

	// GetVouchers returns vouchers matching filter, sorted by nonce
	// descending then timestamp descending.
	GetVouchers(ctx context.Context, filter VoucherFilter, page Pagination) ([]voucher.SignedVoucher, error)

	// GetAvailableVoucher returns the unique voucher satisfying the
	// availability rule for (buyer, seller): the per-series tip with the
	// greatest timestamp among all series tips for that pair. Returns
	// (nil, nil) if none.
	GetAvailableVoucher(ctx context.Context, buyer, seller string) (*voucher.SignedVoucher, error)

	// StoreVoucher persists sv. Returns ErrVoucherAlreadyExists if
	// (id, nonce) is already present.
	StoreVoucher(ctx context.Context, sv voucher.SignedVoucher) error

	// SettleVoucher appends a VoucherCollection recording an on-chain
	// settlement of (id, nonce).
	SettleVoucher(ctx context.Context, id string, nonce *voucher.BigInt, txHash string, asset string, chainID *voucher.BigInt, collectedAmount *voucher.BigInt, collectedAt uint64) error

	// GetVoucherCollections returns collection records matching filter.
	GetVoucherCollections(ctx context.Context, filter CollectionFilter, page Pagination) ([]voucher.VoucherCollection, error)
}

// DefaultLimit is applied whenever a Pagination carries Limit <= 0.
const DefaultLimit = 100

func (p Pagination) normalized() Pagination {
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

func paginate[T any](items []T, page Pagination) []T {
	page = page.normalized()
	if page.Offset >= len(items) {
		return []T{}
	}
	end := page.Offset + page.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[page.Offset:end]
}
