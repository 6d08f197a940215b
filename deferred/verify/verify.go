package verify

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/x402-foundation/x402-deferred/deferred/eip712"
	"github.com/x402-foundation/x402-deferred/deferred/escrow"
	"github.com/x402-foundation/x402-deferred/deferred/store"
	"github.com/x402-foundation/x402-deferred/deferred/voucher"
)

// VerifyPaymentRequirements checks the shape/equivalence invariants between
// payload and requirements: schemes, network, chainId, required value, and
// the seller/asset fields.
func VerifyPaymentRequirements(payload voucher.PaymentPayload, requirements voucher.PaymentRequirements) Result {
	v := payload.Payload.Voucher
	payer := v.Buyer

	if payload.Scheme != voucher.Scheme || requirements.Scheme != voucher.Scheme {
		return Invalid(ReasonPayloadScheme, payer)
	}
	if payload.Network != requirements.Network {
		return Invalid(ReasonNetworkMismatch, payer)
	}
	chainID, err := voucher.ChainIDForNetwork(payload.Network)
	if err != nil {
		return Invalid(ReasonNetworkUnsupported, payer)
	}
	if v.ChainID == nil || v.ChainID.Cmp(chainID) != 0 {
		return Invalid(ReasonChainID, payer)
	}

	var required *voucher.BigInt
	switch requirements.Extra.Kind {
	case voucher.ExtraNew:
		required = requirements.MaxAmountRequired
	case voucher.ExtraAggregation:
		if requirements.Extra.Aggregation == nil {
			return Invalid(ReasonRequirementsScheme, payer)
		}
		prev := requirements.Extra.Aggregation.Voucher
		required = requirements.MaxAmountRequired.Add(prev.ValueAggregate)
	default:
		return Invalid(ReasonRequirementsScheme, payer)
	}
	if v.ValueAggregate == nil || v.ValueAggregate.Cmp(required) < 0 {
		return Invalid(ReasonVoucherValue, payer)
	}

	if !voucher.AddressesEqual(v.Seller, requirements.PayTo) {
		return Invalid(ReasonRecipientMismatch, payer)
	}
	if !voucher.AddressesEqual(v.Asset, requirements.Asset) {
		return Invalid(ReasonAssetMismatch, payer)
	}
	return Valid(payer)
}

// VerifyVoucherContinuity checks freshness and, for aggregation, every
// field-pair invariant against the prior voucher embedded in requirements.
func VerifyVoucherContinuity(payload voucher.PaymentPayload, requirements voucher.PaymentRequirements, now time.Time) Result {
	v := payload.Payload.Voucher
	payer := v.Buyer
	nowSec := uint64(now.Unix())

	if v.Expiry <= nowSec {
		return Invalid(ReasonVoucherExpired, payer)
	}
	if v.Timestamp > nowSec {
		return Invalid(ReasonTimestampTooEarly, payer)
	}

	switch requirements.Extra.Kind {
	case voucher.ExtraNew:
		if v.Nonce == nil || v.Nonce.Sign() != 0 {
			return Invalid(ReasonVoucherNonZeroNonce, payer)
		}
		if v.ValueAggregate == nil || v.ValueAggregate.Sign() <= 0 {
			return Invalid(ReasonVoucherZeroValueAggregate, payer)
		}
		return Valid(payer)

	case voucher.ExtraAggregation:
		if requirements.Extra.Aggregation == nil {
			return Invalid(ReasonRequirementsScheme, payer)
		}
		prev := requirements.Extra.Aggregation.Voucher
		if !voucher.HexEqual(v.ID, prev.ID) {
			return Invalid(ReasonVoucherIDMismatch, payer)
		}
		if !voucher.AddressesEqual(v.Buyer, prev.Buyer) {
			return Invalid(ReasonVoucherBuyerMismatch, payer)
		}
		if !voucher.AddressesEqual(v.Seller, prev.Seller) {
			return Invalid(ReasonVoucherSellerMismatch, payer)
		}
		if !voucher.AddressesEqual(v.Asset, prev.Asset) {
			return Invalid(ReasonVoucherAssetFieldMismatch, payer)
		}
		if !voucher.AddressesEqual(v.Escrow, prev.Escrow) {
			return Invalid(ReasonVoucherEscrowMismatch, payer)
		}
		if v.ChainID == nil || prev.ChainID == nil || v.ChainID.Cmp(prev.ChainID) != 0 {
			return Invalid(ReasonVoucherChainIDMismatch, payer)
		}
		if prev.Nonce == nil || v.Nonce == nil || v.Nonce.Cmp(prev.Nonce.Add(voucher.NewBigInt(1))) != 0 {
			return Invalid(ReasonVoucherNonceMismatch, payer)
		}
		if v.ValueAggregate == nil || prev.ValueAggregate == nil || v.ValueAggregate.Cmp(prev.ValueAggregate) < 0 {
			return Invalid(ReasonVoucherValueAggregateDecreasing, payer)
		}
		if v.Timestamp < prev.Timestamp {
			return Invalid(ReasonVoucherTimestampDecreasing, payer)
		}
		if v.Expiry < prev.Expiry {
			return Invalid(ReasonVoucherExpiryDecreasing, payer)
		}
		return Valid(payer)

	default:
		return Invalid(ReasonRequirementsScheme, payer)
	}
}

// VerifyVoucherSignature recovers the signer of v's EIP-712 digest and
// compares it to v.Buyer.
func VerifyVoucherSignature(v voucher.Voucher, signatureHex string) Result {
	ok, err := eip712.VerifyVoucherSignature(v, common.FromHex(signatureHex))
	if err != nil || !ok {
		return Invalid(ReasonPayloadSignature, v.Buyer)
	}
	return Valid(v.Buyer)
}

func vouchersEqual(a, b voucher.Voucher) bool {
	if !voucher.HexEqual(a.ID, b.ID) {
		return false
	}
	if !voucher.AddressesEqual(a.Buyer, b.Buyer) || !voucher.AddressesEqual(a.Seller, b.Seller) {
		return false
	}
	if !voucher.AddressesEqual(a.Asset, b.Asset) || !voucher.AddressesEqual(a.Escrow, b.Escrow) {
		return false
	}
	if a.ValueAggregate == nil || b.ValueAggregate == nil || a.ValueAggregate.Cmp(b.ValueAggregate) != 0 {
		return false
	}
	if a.Nonce == nil || b.Nonce == nil || a.Nonce.Cmp(b.Nonce) != 0 {
		return false
	}
	if a.ChainID == nil || b.ChainID == nil || a.ChainID.Cmp(b.ChainID) != 0 {
		return false
	}
	return a.Timestamp == b.Timestamp && a.Expiry == b.Expiry
}

// VerifyVoucherDuplicate strictly compares two signed vouchers field-by-field
// (case-insensitive id/signature, checksum-compared addresses). It is used
// both by VerifyVoucherAvailability (stored vs claimed must match) and may be
// reused wherever a caller needs to confirm two records describe the exact
// same commitment.
func VerifyVoucherDuplicate(stored, claimed voucher.SignedVoucher) Result {
	payer := claimed.Voucher.Buyer
	if !vouchersEqual(stored.Voucher, claimed.Voucher) {
		return Invalid(ReasonVoucherFoundNotDuplicate, payer)
	}
	if !voucher.HexEqual(stored.Signature, claimed.Signature) {
		return Invalid(ReasonVoucherFoundNotDuplicate, payer)
	}
	return Valid(payer)
}

// VerifyVoucherAvailability looks up (id, nonce) in s and requires it to
// exist and to equal claimed field-for-field including signature. This
// prevents settling a voucher the buyer never actually committed.
func VerifyVoucherAvailability(ctx context.Context, claimed voucher.SignedVoucher, s store.VoucherStore) Result {
	payer := claimed.Voucher.Buyer
	stored, err := s.GetVoucher(ctx, claimed.Voucher.ID, claimed.Voucher.Nonce)
	if err != nil || stored == nil {
		return Invalid(ReasonVoucherNotFound, payer)
	}
	return VerifyVoucherDuplicate(*stored, claimed)
}

// VerifyOnchainState reads the escrow's view of v and requires the connected
// client's chain to match v.ChainID and the buyer's balance to cover the
// outstanding amount.
func VerifyOnchainState(ctx context.Context, client escrow.Client, escrowAddr string, v voucher.Voucher) Result {
	payer := v.Buyer

	chainID, err := client.GetChainID(ctx)
	if err != nil {
		return Invalid(ReasonClientNetwork, payer)
	}
	if v.ChainID == nil || chainID.Cmp(&v.ChainID.Int) != 0 {
		return Invalid(ReasonChainID, payer)
	}

	oc, err := escrow.GetOutstandingAndCollectableAmount(ctx, client, escrowAddr, v)
	if err != nil {
		return Invalid(ReasonContractCallFailedOutstandingAmount, payer)
	}
	account, err := escrow.GetAccount(ctx, client, escrowAddr, v.Buyer, v.Seller, v.Asset)
	if err != nil {
		return Invalid(ReasonContractCallFailedAccount, payer)
	}
	if account.Balance.Cmp(oc.Outstanding) < 0 {
		return Invalid(ReasonInsufficientFunds, payer)
	}
	return Valid(payer)
}

// VerifyDepositAuthorization checks the inner deposit authorization's
// signature recovers to v.Buyer, verifies any attached permit against the
// asset's domain, and checks both haven't expired.
func VerifyDepositAuthorization(dp voucher.DepositAuthorizationPayload, v voucher.Voucher, now time.Time) Result {
	payer := v.Buyer
	nowSec := uint64(now.Unix())
	d := dp.DepositAuthorization

	if d.Expiry <= nowSec {
		return Invalid(ReasonDepositAuthorizationSignature, payer)
	}
	ok, err := eip712.VerifyDepositAuthorizationSignature(d, common.FromHex(d.Signature), &v.ChainID.Int, v.Escrow)
	if err != nil || !ok {
		return Invalid(ReasonDepositAuthorizationSignature, payer)
	}

	if dp.Permit != nil {
		p := *dp.Permit
		if p.Deadline <= nowSec {
			return Invalid(ReasonPermitSignature, payer)
		}
		ok, err := eip712.VerifyPermitSignature(p, common.FromHex(p.Signature), &v.ChainID.Int, d.Asset)
		if err != nil || !ok {
			return Invalid(ReasonPermitSignature, payer)
		}
	}
	return Valid(payer)
}

// VerifyFlushAuthorization verifies a flush authorization's signature
// (dispatching FlushAuthorization vs FlushAllAuthorization by field presence,
// the same way eip712.SignFlushAuthorization does) and checks its expiry.
func VerifyFlushAuthorization(f voucher.FlushAuthorization, chainID *voucher.BigInt, escrowAddr string, now time.Time) Result {
	payer := f.Buyer
	if f.Expiry <= uint64(now.Unix()) {
		return Invalid(ReasonFlushAuthorizationSignature, payer)
	}
	ok, err := eip712.VerifyFlushAuthorizationSignature(f, common.FromHex(f.Signature), &chainID.Int, escrowAddr)
	if err != nil || !ok {
		return Invalid(ReasonFlushAuthorizationSignature, payer)
	}
	return Valid(payer)
}
