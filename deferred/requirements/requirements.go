// Package requirements builds the deferred scheme's PaymentRequirements.Extra
// tagged union on the seller side: deciding whether the next voucher in a
// series should be a fresh mint or an aggregation on top of whatever the
// buyer already holds.
package requirements

import (
	"context"
	"crypto/rand"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/x402-foundation/x402-deferred/deferred/voucher"
	"github.com/x402-foundation/x402-deferred/deferred/wire"
)

// AccountQueryResult is what the facilitator returns for a (buyer, seller,
// asset, escrow, chainId) account lookup: the account snapshot and,
// optionally, the facilitator's own view of the buyer's previous voucher
// with this seller.
type AccountQueryResult struct {
	Account *voucher.AccountSnapshot
	Voucher *voucher.SignedVoucher
}

// FacilitatorAccountQuery fetches fresh account state from the facilitator.
// A nil result or non-nil error means "proceed without account info."
type FacilitatorAccountQuery func(ctx context.Context, buyer, seller, asset, escrow string, chainID *voucher.BigInt) (*AccountQueryResult, error)

// LocalVoucherLookup is an optional server-local callback preferred over the
// facilitator's own previousVoucher when the caller maintains its own
// voucher cache.
type LocalVoucherLookup func(ctx context.Context, buyer, seller string) (*voucher.SignedVoucher, error)

// GenerateVoucherID returns 32 cryptographically random bytes as a
// 0x-prefixed lower-hex string, the series identifier for a freshly minted
// voucher.
func GenerateVoucherID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate voucher id: %w", err)
	}
	return "0x" + common.Bytes2Hex(b), nil
}

func newExtraFallback(escrow string, account *voucher.AccountSnapshot) (voucher.Extra, error) {
	id, err := GenerateVoucherID()
	if err != nil {
		return voucher.Extra{}, err
	}
	return voucher.NewExtra(voucher.VoucherRef{ID: id, Escrow: escrow}, account), nil
}

// resolveBuyer implements the header-precedence rule: X-PAYMENT's embedded
// voucher buyer wins when present and decodable; else X-BUYER. A present
// X-PAYMENT that fails to decode resolves no buyer at all (X-BUYER is not
// consulted), so the caller falls back to a "new" extra.
func resolveBuyer(xPaymentHeader, xBuyerHeader *string) (buyer string, ok bool) {
	if xPaymentHeader != nil {
		payload, err := wire.DecodePaymentPayload(*xPaymentHeader)
		if err != nil {
			return "", false
		}
		return payload.Payload.Voucher.Buyer, true
	}
	if xBuyerHeader != nil {
		return *xBuyerHeader, true
	}
	return "", false
}

// GetPaymentRequirementsExtra builds the PaymentRequirements.Extra tagged
// union for a request, per the negotiation rule: no identifying header at
// all, or a header that fails to resolve a buyer, yields a fresh "new"
// extra; otherwise the buyer's previous voucher with this seller (preferring
// a server-local lookup over the facilitator's own view) drives an
// "aggregation" extra.
func GetPaymentRequirementsExtra(
	ctx context.Context,
	xPaymentHeader *string,
	xBuyerHeader *string,
	seller, escrow, asset string,
	chainID *voucher.BigInt,
	query FacilitatorAccountQuery,
	localLookup LocalVoucherLookup,
) (voucher.Extra, error) {
	buyer, ok := resolveBuyer(xPaymentHeader, xBuyerHeader)
	if !ok {
		return newExtraFallback(escrow, nil)
	}

	var account *voucher.AccountSnapshot
	var facilitatorVoucher *voucher.SignedVoucher
	if query != nil {
		if result, err := query(ctx, buyer, seller, asset, escrow, chainID); err == nil && result != nil {
			account = result.Account
			facilitatorVoucher = result.Voucher
		}
	}

	var previous *voucher.SignedVoucher
	if localLookup != nil {
		if local, err := localLookup(ctx, buyer, seller); err == nil {
			previous = local
		}
		// A lookup error is treated as "no previous voucher", not a
		// fallback to the facilitator's view.
	} else {
		previous = facilitatorVoucher
	}

	if previous != nil {
		return voucher.NewAggregationExtra(*previous, account), nil
	}
	return newExtraFallback(escrow, account)
}
