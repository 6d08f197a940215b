package client

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/x402-foundation/x402-deferred/deferred/eip712"
	"github.com/x402-foundation/x402-deferred/deferred/voucher"
	"github.com/x402-foundation/x402-deferred/deferred/wire"
)

// VoucherLifetime is how far past now a freshly minted or aggregated
// voucher's expiry is set.
const VoucherLifetime = 30 * 24 * time.Hour

// CreateNewVoucher mints the nonce-0 voucher for a new series, requiring
// requirements.Extra.Kind == ExtraNew.
func CreateNewVoucher(buyer string, requirements voucher.PaymentRequirements, now time.Time) (voucher.Voucher, error) {
	if requirements.Extra.Kind != voucher.ExtraNew {
		return voucher.Voucher{}, fmt.Errorf("createNewVoucher requires extra.type=new, got %q", requirements.Extra.Kind)
	}
	chainID, err := voucher.ChainIDForNetwork(requirements.Network)
	if err != nil {
		return voucher.Voucher{}, err
	}
	ref := requirements.Extra.New
	nowSec := uint64(now.Unix())

	return voucher.Voucher{
		ID:             voucher.Normalize32ByteHex(ref.ID),
		Buyer:          common.HexToAddress(buyer).Hex(),
		Seller:         common.HexToAddress(requirements.PayTo).Hex(),
		ValueAggregate: requirements.MaxAmountRequired,
		Asset:          common.HexToAddress(requirements.Asset).Hex(),
		Timestamp:      nowSec,
		Nonce:          voucher.NewBigInt(0),
		Escrow:         common.HexToAddress(ref.Escrow).Hex(),
		ChainID:        chainID,
		Expiry:         nowSec + uint64(VoucherLifetime.Seconds()),
	}, nil
}

// AggregateVoucher builds the successor voucher in a series on top of the
// prior signed voucher embedded in requirements.Extra, requiring
// requirements.Extra.Kind == ExtraAggregation. Preconditions are checked in
// the order named by PreconditionError.Code; the first failure aborts.
func AggregateVoucher(buyer string, requirements voucher.PaymentRequirements, now time.Time) (voucher.Voucher, error) {
	if requirements.Extra.Kind != voucher.ExtraAggregation || requirements.Extra.Aggregation == nil {
		return voucher.Voucher{}, fmt.Errorf("aggregateVoucher requires extra.type=aggregation, got %q", requirements.Extra.Kind)
	}
	prior := requirements.Extra.Aggregation.Voucher
	priorSignature := requirements.Extra.Aggregation.Signature
	nowSec := uint64(now.Unix())

	if !voucher.AddressesEqual(prior.Seller, requirements.PayTo) {
		return voucher.Voucher{}, precondition(CodeSellerMismatch, "prior voucher seller does not match requirements.payTo")
	}
	if !voucher.AddressesEqual(prior.Asset, requirements.Asset) {
		return voucher.Voucher{}, precondition(CodeAssetMismatch, "prior voucher asset does not match requirements.asset")
	}
	chainID, err := voucher.ChainIDForNetwork(requirements.Network)
	if err != nil {
		return voucher.Voucher{}, err
	}
	if prior.ChainID == nil || prior.ChainID.Cmp(chainID) != 0 {
		return voucher.Voucher{}, precondition(CodeChainIDMismatch, "prior voucher chainId does not match the requirements network")
	}
	if prior.Expiry <= nowSec {
		return voucher.Voucher{}, precondition(CodeVoucherExpired, "prior voucher has already expired")
	}
	if nowSec < prior.Timestamp {
		return voucher.Voucher{}, precondition(CodeFutureTimestamp, "prior voucher timestamp is in the future")
	}
	ok, err := eip712.VerifyVoucherSignature(prior, common.FromHex(priorSignature))
	if err != nil || !ok {
		return voucher.Voucher{}, precondition(CodeSignatureInvalid, "prior voucher signature does not recover to its buyer")
	}

	return voucher.Voucher{
		ID:             prior.ID,
		Buyer:          prior.Buyer,
		Seller:         prior.Seller,
		ValueAggregate: prior.ValueAggregate.Add(requirements.MaxAmountRequired),
		Asset:          prior.Asset,
		Timestamp:      nowSec,
		Nonce:          prior.Nonce.Add(voucher.NewBigInt(1)),
		Escrow:         prior.Escrow,
		ChainID:        prior.ChainID,
		Expiry:         nowSec + uint64(VoucherLifetime.Seconds()),
	}, nil
}

// SignPaymentHeader signs the embedded voucher in an unsigned payment
// payload with wallet and returns the fully-populated payload.
func SignPaymentHeader(ctx context.Context, wallet eip712.ClientWallet, unsigned voucher.PaymentPayload) (voucher.PaymentPayload, error) {
	sig, err := eip712.SignVoucher(ctx, wallet, unsigned.Payload.Voucher)
	if err != nil {
		return voucher.PaymentPayload{}, fmt.Errorf("failed to sign voucher: %w", err)
	}
	signed := unsigned
	signed.Payload.Signature = "0x" + common.Bytes2Hex(sig)
	return signed, nil
}

// PreparePaymentHeader builds the unsigned payment payload for requirements,
// dispatching on extra.type, and attaching extraPayload (the deposit
// authorization side channel) when present.
func PreparePaymentHeader(buyer string, x402Version int, requirements voucher.PaymentRequirements, extraPayload *voucher.DepositAuthorizationPayload, now time.Time) (voucher.PaymentPayload, error) {
	var v voucher.Voucher
	var err error
	switch requirements.Extra.Kind {
	case voucher.ExtraNew:
		v, err = CreateNewVoucher(buyer, requirements, now)
	case voucher.ExtraAggregation:
		v, err = AggregateVoucher(buyer, requirements, now)
	default:
		err = fmt.Errorf("unsupported extra.type %q", requirements.Extra.Kind)
	}
	if err != nil {
		return voucher.PaymentPayload{}, err
	}

	return voucher.PaymentPayload{
		X402Version: x402Version,
		Scheme:      voucher.Scheme,
		Network:     requirements.Network,
		Payload: voucher.PaymentPayloadBody{
			Voucher:              v,
			DepositAuthorization: extraPayload,
		},
	}, nil
}

// CreatePaymentHeader composes PreparePaymentHeader, SignPaymentHeader, and
// wire encoding into the full buyer-side flow for the X-PAYMENT header:
// encode ∘ signPaymentHeader ∘ preparePaymentHeader.
func CreatePaymentHeader(ctx context.Context, wallet eip712.ClientWallet, x402Version int, requirements voucher.PaymentRequirements, extraPayload *voucher.DepositAuthorizationPayload, now time.Time) (string, error) {
	unsigned, err := PreparePaymentHeader(wallet.Address(), x402Version, requirements, extraPayload, now)
	if err != nil {
		return "", err
	}
	signed, err := SignPaymentHeader(ctx, wallet, unsigned)
	if err != nil {
		return "", err
	}
	return wire.EncodePaymentPayload(signed)
}
