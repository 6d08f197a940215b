package client

import (
	"context"
	"crypto/ecdsa"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/x402-foundation/x402-deferred/deferred/eip712"
	"github.com/x402-foundation/x402-deferred/deferred/voucher"
	"github.com/x402-foundation/x402-deferred/deferred/wire"
)

// testWallet is a minimal in-process eip712.ClientWallet over a raw ECDSA
// key, the same shape eip712's own tests use.
type testWallet struct {
	key *ecdsa.PrivateKey
}

func newTestWallet(t *testing.T) *testWallet {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return &testWallet{key: key}
}

func (w *testWallet) Address() string {
	return crypto.PubkeyToAddress(w.key.PublicKey).Hex()
}

func (w *testWallet) SignTypedData(ctx context.Context, domain eip712.TypedDataDomain, types map[string][]eip712.TypedDataField, primaryType string, message map[string]interface{}) ([]byte, error) {
	digest, err := eip712.HashTypedData(domain, types, primaryType, message)
	if err != nil {
		return nil, err
	}
	sig, err := crypto.Sign(digest, w.key)
	if err != nil {
		return nil, err
	}
	sig[64] += 27
	return sig, nil
}

func TestCreateNewVoucherMintsNonceZero(t *testing.T) {
	requirements := voucher.PaymentRequirements{
		Scheme:            voucher.Scheme,
		Network:           "eip155:84532",
		Asset:             "0x1111111111111111111111111111111111111c",
		PayTo:             "0x1234567890123456789012345678901234567890",
		MaxAmountRequired: voucher.NewBigInt(1000000),
		Extra: voucher.RequirementsExtra{Extra: voucher.NewExtra(
			voucher.VoucherRef{ID: "0x" + repeatHex("7a3e4f", 10) + "1a3e", Escrow: "0x4444444444444444444444444444444444444d"}, nil)},
	}
	now := time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC)

	v, err := CreateNewVoucher("0x1111111111111111111111111111111111111a", requirements, now)
	require.NoError(t, err)
	require.Equal(t, 0, v.Nonce.Cmp(voucher.NewBigInt(0)))
	require.Equal(t, 0, v.ValueAggregate.Cmp(voucher.NewBigInt(1000000)))
	require.Equal(t, uint64(now.Unix()), v.Timestamp)
	require.Equal(t, uint64(now.Unix())+uint64(VoucherLifetime.Seconds()), v.Expiry)
}

func TestAggregateVoucherRejectsExpiredPrior(t *testing.T) {
	now := time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC)
	prior := voucher.Voucher{
		ID:             "0x" + repeatHex("ab", 32),
		Buyer:          "0x1111111111111111111111111111111111111a",
		Seller:         "0x1234567890123456789012345678901234567890",
		ValueAggregate: voucher.NewBigInt(100000),
		Asset:          "0x1111111111111111111111111111111111111c",
		Timestamp:      uint64(now.Unix()) - 100,
		Nonce:          voucher.NewBigInt(0),
		Escrow:         "0x4444444444444444444444444444444444444d",
		ChainID:        voucher.NewBigInt(84532),
		Expiry:         uint64(now.Unix()) - 1,
	}
	requirements := voucher.PaymentRequirements{
		Scheme:            voucher.Scheme,
		Network:           "eip155:84532",
		Asset:             prior.Asset,
		PayTo:             prior.Seller,
		MaxAmountRequired: voucher.NewBigInt(50000),
		Extra: voucher.RequirementsExtra{Extra: voucher.NewAggregationExtra(
			voucher.SignedVoucher{Voucher: prior, Signature: "0x" + repeatHex("ab", 65)}, nil)},
	}

	_, err := AggregateVoucher(prior.Buyer, requirements, now)
	require.Error(t, err)
	var pe *PreconditionError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, CodeVoucherExpired, pe.Code)
}

func TestAggregateVoucherRejectsSellerMismatch(t *testing.T) {
	now := time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC)
	prior := voucher.Voucher{
		ID:             "0x" + repeatHex("ab", 32),
		Buyer:          "0x1111111111111111111111111111111111111a",
		Seller:         "0x1234567890123456789012345678901234567890",
		ValueAggregate: voucher.NewBigInt(100000),
		Asset:          "0x1111111111111111111111111111111111111c",
		Timestamp:      uint64(now.Unix()),
		Nonce:          voucher.NewBigInt(0),
		Escrow:         "0x4444444444444444444444444444444444444d",
		ChainID:        voucher.NewBigInt(84532),
		Expiry:         uint64(now.Unix()) + 2592000,
	}
	requirements := voucher.PaymentRequirements{
		Scheme:            voucher.Scheme,
		Network:           "eip155:84532",
		Asset:             prior.Asset,
		PayTo:             "0x9999999999999999999999999999999999999e",
		MaxAmountRequired: voucher.NewBigInt(50000),
		Extra: voucher.RequirementsExtra{Extra: voucher.NewAggregationExtra(
			voucher.SignedVoucher{Voucher: prior, Signature: "0x" + repeatHex("ab", 65)}, nil)},
	}

	_, err := AggregateVoucher(prior.Buyer, requirements, now)
	require.Error(t, err)
	var pe *PreconditionError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, CodeSellerMismatch, pe.Code)
}

func TestCreatePaymentHeaderRoundTrip(t *testing.T) {
	wallet := newTestWallet(t)

	requirements := voucher.PaymentRequirements{
		Scheme:            voucher.Scheme,
		Network:           "eip155:84532",
		Asset:             "0x1111111111111111111111111111111111111c",
		PayTo:             "0x1234567890123456789012345678901234567890",
		MaxAmountRequired: voucher.NewBigInt(1000000),
		Extra: voucher.RequirementsExtra{Extra: voucher.NewExtra(
			voucher.VoucherRef{ID: "0x" + repeatHex("7a3e4f", 10) + "1a3e", Escrow: "0x4444444444444444444444444444444444444d"}, nil)},
	}
	now := time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC)

	encoded, err := CreatePaymentHeader(context.Background(), wallet, 1, requirements, nil, now)
	require.NoError(t, err)
	require.NotEmpty(t, encoded)

	decoded, err := wire.DecodePaymentPayload(encoded)
	require.NoError(t, err)
	require.True(t, voucher.AddressesEqual(decoded.Payload.Voucher.Buyer, wallet.Address()))
}

func repeatHex(s string, n int) string {
	out := ""
	for i := 0; i < n; i++ {
		out += s
	}
	return out
}
