// Package client implements the deferred scheme's client-side voucher
// engine: minting the first voucher in a series, aggregating the next one
// on top of a prior, preparing/signing/encoding the payment header, and
// deciding whether to attach a deposit-authorization side channel.
package client

import "fmt"

// PreconditionError is returned by AggregateVoucher when one of its ordered
// preconditions fails, naming which one.
type PreconditionError struct {
	Code   string
	Detail string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Detail)
}

// Precondition codes, checked in this order by AggregateVoucher.
const (
	CodeSellerMismatch   = "seller_mismatch"
	CodeAssetMismatch    = "asset_mismatch"
	CodeChainIDMismatch  = "chain_id_mismatch"
	CodeVoucherExpired   = "voucher_expired"
	CodeFutureTimestamp  = "future_timestamp"
	CodeSignatureInvalid = "signature_invalid"
)

func precondition(code, detail string) *PreconditionError {
	return &PreconditionError{Code: code, Detail: detail}
}
