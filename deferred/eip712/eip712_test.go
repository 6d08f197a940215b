package eip712

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/x402-foundation/x402-deferred/deferred/voucher"
)

// testWallet is a minimal in-process ClientWallet over a raw ECDSA key,
// the same digest-assembly approach as the keypair signer this package's
// wallets are modeled on.
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

func (w *testWallet) SignTypedData(ctx context.Context, domain TypedDataDomain, types map[string][]TypedDataField, primaryType string, message map[string]interface{}) ([]byte, error) {
	digest, err := HashTypedData(domain, types, primaryType, message)
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

func sampleVoucher(buyer string) voucher.Voucher {
	return voucher.Voucher{
		ID:             "0x" + repeat("7a", 32),
		Buyer:          buyer,
		Seller:         "0x2222222222222222222222222222222222222b",
		ValueAggregate: voucher.NewBigInt(1000000),
		Asset:          "0x3333333333333333333333333333333333333c",
		Timestamp:      1716163200,
		Nonce:          voucher.NewBigInt(0),
		Escrow:         "0x4444444444444444444444444444444444444d",
		ChainID:        voucher.NewBigInt(84532),
		Expiry:         1716163200 + 2592000,
	}
}

func repeat(s string, n int) string {
	out := ""
	for i := 0; i < n; i++ {
		out += s
	}
	return out
}

func TestSignAndVerifyVoucher(t *testing.T) {
	w := newTestWallet(t)
	v := sampleVoucher(w.Address())

	sig, err := SignVoucher(context.Background(), w, v)
	require.NoError(t, err)

	ok, err := VerifyVoucherSignature(v, sig)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestVerifyVoucherRejectsWrongSigner(t *testing.T) {
	w := newTestWallet(t)
	other := newTestWallet(t)
	v := sampleVoucher(other.Address())

	sig, err := SignVoucher(context.Background(), w, v)
	require.NoError(t, err)

	ok, err := VerifyVoucherSignature(v, sig)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSignAndVerifyDepositAuthorization(t *testing.T) {
	w := newTestWallet(t)
	d := voucher.DepositAuthorization{
		Buyer:  w.Address(),
		Seller: "0x2222222222222222222222222222222222222b",
		Asset:  "0x3333333333333333333333333333333333333c",
		Amount: voucher.NewBigInt(1_000_000),
		Nonce:  "0x" + repeat("ab", 32),
		Expiry: 1716163200 + 2592000,
	}
	chainID := big.NewInt(84532)
	escrow := "0x4444444444444444444444444444444444444d"

	sig, err := SignDepositAuthorization(context.Background(), w, d, chainID, escrow)
	require.NoError(t, err)

	ok, err := VerifyDepositAuthorizationSignature(d, sig, chainID, escrow)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestSignAndVerifyFlushAllAuthorization(t *testing.T) {
	w := newTestWallet(t)
	f := voucher.FlushAuthorization{
		Buyer:  w.Address(),
		Nonce:  "0x" + repeat("cd", 32),
		Expiry: 1716163200 + 2592000,
	}
	chainID := big.NewInt(84532)
	escrow := "0x4444444444444444444444444444444444444d"

	require.True(t, f.IsFlushAll())

	sig, err := SignFlushAuthorization(context.Background(), w, f, chainID, escrow)
	require.NoError(t, err)

	ok, err := VerifyFlushAuthorizationSignature(f, sig, chainID, escrow)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestSignAndVerifyTargetedFlushAuthorization(t *testing.T) {
	w := newTestWallet(t)
	seller := "0x2222222222222222222222222222222222222b"
	asset := "0x3333333333333333333333333333333333333c"
	f := voucher.FlushAuthorization{
		Buyer:  w.Address(),
		Seller: &seller,
		Asset:  &asset,
		Nonce:  "0x" + repeat("ef", 32),
		Expiry: 1716163200 + 2592000,
	}
	chainID := big.NewInt(84532)
	escrow := "0x4444444444444444444444444444444444444d"

	require.False(t, f.IsFlushAll())

	sig, err := SignFlushAuthorization(context.Background(), w, f, chainID, escrow)
	require.NoError(t, err)

	ok, err := VerifyFlushAuthorizationSignature(f, sig, chainID, escrow)
	require.NoError(t, err)
	require.True(t, ok)
}
