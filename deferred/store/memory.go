package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/x402-foundation/x402-deferred/deferred/voucher"
)

// InMemoryVoucherStore is the in-memory VoucherStore fixture named in the
// spec as the only included implementation, intended for tests only.
// Mirrors the idempotency extension's mutex-guarded-map shape, adapted
// from a single settlement cache to per-series voucher storage.
type InMemoryVoucherStore struct {
	mu          sync.Mutex
	vouchers    map[string]voucher.SignedVoucher  // key: id+"/"+nonce
	collections []voucherCollectionRecord
}

type voucherCollectionRecord struct {
	recordID string
	voucher.VoucherCollection
}

// NewInMemoryVoucherStore constructs an empty store.
func NewInMemoryVoucherStore() *InMemoryVoucherStore {
	return &InMemoryVoucherStore{
		vouchers: make(map[string]voucher.SignedVoucher),
	}
}

func voucherKey(id string, nonce *voucher.BigInt) string {
	return voucher.Normalize32ByteHex(id) + "/" + nonce.String()
}

func (s *InMemoryVoucherStore) GetVoucher(ctx context.Context, id string, nonce *voucher.BigInt) (*voucher.SignedVoucher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if nonce != nil {
		sv, ok := s.vouchers[voucherKey(id, nonce)]
		if !ok {
			return nil, nil
		}
		return &sv, nil
	}
	return s.seriesTipLocked(id), nil
}

func (s *InMemoryVoucherStore) seriesTipLocked(id string) *voucher.SignedVoucher {
	var tip *voucher.SignedVoucher
	for _, sv := range s.vouchers {
		if !voucher.HexEqual(sv.Voucher.ID, id) {
			continue
		}
		if tip == nil || sv.Voucher.Nonce.Cmp(tip.Voucher.Nonce) > 0 {
			svCopy := sv
			tip = &svCopy
		}
	}
	return tip
}

func (s *InMemoryVoucherStore) GetVoucherSeries(ctx context.Context, id string, page Pagination) ([]voucher.SignedVoucher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var series []voucher.SignedVoucher
	for _, sv := range s.vouchers {
		if voucher.HexEqual(sv.Voucher.ID, id) {
			series = append(series, sv)
		}
	}
	sort.Slice(series, func(i, j int) bool {
		return series[i].Voucher.Nonce.Cmp(series[j].Voucher.Nonce) > 0
	})
	return paginate(series, page), nil
}

func (s *InMemoryVoucherStore) GetVouchers(ctx context.Context, filter VoucherFilter, page Pagination) ([]voucher.SignedVoucher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matches []voucher.SignedVoucher
	if filter.Latest {
		tips := make(map[string]voucher.SignedVoucher)
		for _, sv := range s.vouchers {
			key := voucher.Normalize32ByteHex(sv.Voucher.ID)
			if existing, ok := tips[key]; !ok || sv.Voucher.Nonce.Cmp(existing.Voucher.Nonce) > 0 {
				tips[key] = sv
			}
		}
		for _, sv := range tips {
			matches = append(matches, sv)
		}
	} else {
		for _, sv := range s.vouchers {
			matches = append(matches, sv)
		}
	}

	filtered := matches[:0]
	for _, sv := range matches {
		if filter.Buyer != nil && !voucher.AddressesEqual(sv.Voucher.Buyer, *filter.Buyer) {
			continue
		}
		if filter.Seller != nil && !voucher.AddressesEqual(sv.Voucher.Seller, *filter.Seller) {
			continue
		}
		filtered = append(filtered, sv)
	}

	sort.Slice(filtered, func(i, j int) bool {
		if c := filtered[i].Voucher.Nonce.Cmp(filtered[j].Voucher.Nonce); c != 0 {
			return c > 0
		}
		return filtered[i].Voucher.Timestamp > filtered[j].Voucher.Timestamp
	})
	return paginate(filtered, page), nil
}

// GetAvailableVoucher returns, among the per-series tips for (buyer,
// seller), the one with the greatest timestamp.
func (s *InMemoryVoucherStore) GetAvailableVoucher(ctx context.Context, buyer, seller string) (*voucher.SignedVoucher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tips := make(map[string]voucher.SignedVoucher)
	for _, sv := range s.vouchers {
		if !voucher.AddressesEqual(sv.Voucher.Buyer, buyer) || !voucher.AddressesEqual(sv.Voucher.Seller, seller) {
			continue
		}
		key := voucher.Normalize32ByteHex(sv.Voucher.ID)
		if existing, ok := tips[key]; !ok || sv.Voucher.Nonce.Cmp(existing.Voucher.Nonce) > 0 {
			tips[key] = sv
		}
	}

	var best *voucher.SignedVoucher
	for _, sv := range tips {
		svCopy := sv
		if best == nil || svCopy.Voucher.Timestamp > best.Voucher.Timestamp {
			best = &svCopy
		}
	}
	return best, nil
}

func (s *InMemoryVoucherStore) StoreVoucher(ctx context.Context, sv voucher.SignedVoucher) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := voucherKey(sv.Voucher.ID, sv.Voucher.Nonce)
	if _, exists := s.vouchers[key]; exists {
		return ErrVoucherAlreadyExists
	}
	s.vouchers[key] = sv
	return nil
}

func (s *InMemoryVoucherStore) SettleVoucher(ctx context.Context, id string, nonce *voucher.BigInt, txHash string, asset string, chainID *voucher.BigInt, collectedAmount *voucher.BigInt, collectedAt uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.collections = append(s.collections, voucherCollectionRecord{
		recordID: uuid.NewString(),
		VoucherCollection: voucher.VoucherCollection{
			VoucherID:       id,
			VoucherNonce:    nonce,
			TransactionHash: txHash,
			CollectedAmount: collectedAmount,
			Asset:           asset,
			ChainID:         chainID,
			CollectedAt:     collectedAt,
		},
	})
	return nil
}

func (s *InMemoryVoucherStore) GetVoucherCollections(ctx context.Context, filter CollectionFilter, page Pagination) ([]voucher.VoucherCollection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matches []voucher.VoucherCollection
	for _, rec := range s.collections {
		if filter.ID != nil && !voucher.HexEqual(rec.VoucherID, *filter.ID) {
			continue
		}
		if filter.Nonce != nil && rec.VoucherNonce.Cmp(filter.Nonce) != 0 {
			continue
		}
		matches = append(matches, rec.VoucherCollection)
	}
	return paginate(matches, page), nil
}
