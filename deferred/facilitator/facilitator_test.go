package facilitator

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/x402-foundation/x402-deferred/deferred/eip712"
	"github.com/x402-foundation/x402-deferred/deferred/escrow"
	"github.com/x402-foundation/x402-deferred/deferred/store"
	"github.com/x402-foundation/x402-deferred/deferred/verify"
	"github.com/x402-foundation/x402-deferred/deferred/voucher"
)

// fakeChainClient is a hand-rolled escrow.Client stub: no live node, just
// canned responses keyed by the ABI method name being called.
type fakeChainClient struct {
	chainID            *big.Int
	balance            *big.Int
	outstanding        *big.Int
	collectable        *big.Int
	receiptStatus      uint64
	nextTxHash         int
	writeCalls         []string
}

func (c *fakeChainClient) ReadContract(ctx context.Context, address string, abiJSON []byte, method string, args ...interface{}) ([]interface{}, error) {
	switch method {
	case "getOutstandingAndCollectableAmount":
		return []interface{}{c.outstanding, c.collectable}, nil
	case "getAccount":
		return []interface{}{c.balance, big.NewInt(0), big.NewInt(0)}, nil
	case "getAccountDetails":
		return []interface{}{c.balance, big.NewInt(0), big.NewInt(0)}, nil
	}
	return nil, nil
}

func (c *fakeChainClient) WriteContract(ctx context.Context, address string, abiJSON []byte, method string, args ...interface{}) (string, error) {
	c.writeCalls = append(c.writeCalls, method)
	c.nextTxHash++
	return "0x" + repeat("0", 63) + string(rune('0'+c.nextTxHash)), nil
}

func (c *fakeChainClient) WaitForTransactionReceipt(ctx context.Context, txHash string) (*escrow.TransactionReceipt, error) {
	return &escrow.TransactionReceipt{TransactionHash: txHash, Status: c.receiptStatus}, nil
}

func (c *fakeChainClient) GetChainID(ctx context.Context) (*big.Int, error) {
	return c.chainID, nil
}

func repeat(s string, n int) string {
	out := ""
	for i := 0; i < n; i++ {
		out += s
	}
	return out
}

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

const escrowAddr = "0x4444444444444444444444444444444444444d"

func signVoucher(t *testing.T, wallet *testWallet, v voucher.Voucher) voucher.SignedVoucher {
	t.Helper()
	sig, err := eip712.SignVoucher(context.Background(), wallet, v)
	require.NoError(t, err)
	return voucher.SignedVoucher{Voucher: v, Signature: "0x" + common.Bytes2Hex(sig)}
}

func sampleRequirements(sv voucher.SignedVoucher) voucher.PaymentRequirements {
	v := sv.Voucher
	return voucher.PaymentRequirements{
		Scheme:            voucher.Scheme,
		Network:           "eip155:84532",
		Asset:             v.Asset,
		PayTo:             v.Seller,
		MaxAmountRequired: v.ValueAggregate,
		Extra:             voucher.RequirementsExtra{Extra: voucher.NewExtra(voucher.VoucherRef{ID: v.ID, Escrow: v.Escrow}, nil)},
	}
}

func samplePayload(sv voucher.SignedVoucher) voucher.PaymentPayload {
	return voucher.PaymentPayload{
		X402Version: 1,
		Scheme:      voucher.Scheme,
		Network:     "eip155:84532",
		Payload:     voucher.PaymentPayloadBody{Signature: sv.Signature, Voucher: sv.Voucher},
	}
}

func TestVerifySucceedsWhenBalanceCoversOutstanding(t *testing.T) {
	now := time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC)
	wallet := newTestWallet(t)
	v := voucher.Voucher{
		ID:             "0x" + repeat("ab", 32),
		Buyer:          wallet.Address(),
		Seller:         "0x2222222222222222222222222222222222222b",
		ValueAggregate: voucher.NewBigInt(1000000),
		Asset:          "0x3333333333333333333333333333333333333c",
		Timestamp:      uint64(now.Unix()),
		Nonce:          voucher.NewBigInt(0),
		Escrow:         escrowAddr,
		ChainID:        voucher.NewBigInt(84532),
		Expiry:         uint64(now.Add(24 * time.Hour).Unix()),
	}
	sv := signVoucher(t, wallet, v)
	requirements := sampleRequirements(sv)
	payload := samplePayload(sv)

	client := &fakeChainClient{
		chainID:     big.NewInt(84532),
		balance:     big.NewInt(2000000),
		outstanding: big.NewInt(1000000),
		collectable: big.NewInt(1000000),
	}
	f := New(client, escrowAddr, store.NewInMemoryVoucherStore())

	result := f.Verify(context.Background(), payload, requirements, now)
	require.True(t, result.IsValid, result.InvalidReason)
}

func TestVerifyFailsOnInsufficientFunds(t *testing.T) {
	now := time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC)
	wallet := newTestWallet(t)
	v := voucher.Voucher{
		ID:             "0x" + repeat("ab", 32),
		Buyer:          wallet.Address(),
		Seller:         "0x2222222222222222222222222222222222222b",
		ValueAggregate: voucher.NewBigInt(1000000),
		Asset:          "0x3333333333333333333333333333333333333c",
		Timestamp:      uint64(now.Unix()),
		Nonce:          voucher.NewBigInt(0),
		Escrow:         escrowAddr,
		ChainID:        voucher.NewBigInt(84532),
		Expiry:         uint64(now.Add(24 * time.Hour).Unix()),
	}
	sv := signVoucher(t, wallet, v)
	requirements := sampleRequirements(sv)
	payload := samplePayload(sv)

	client := &fakeChainClient{
		chainID:     big.NewInt(84532),
		balance:     big.NewInt(100),
		outstanding: big.NewInt(1000000),
		collectable: big.NewInt(1000000),
	}
	f := New(client, escrowAddr, store.NewInMemoryVoucherStore())

	result := f.Verify(context.Background(), payload, requirements, now)
	require.False(t, result.IsValid)
	require.Equal(t, verify.ReasonInsufficientFunds, result.InvalidReason)
}

func TestSettleRequiresVoucherAlreadyInStore(t *testing.T) {
	now := time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC)
	wallet := newTestWallet(t)
	v := voucher.Voucher{
		ID:             "0x" + repeat("ab", 32),
		Buyer:          wallet.Address(),
		Seller:         "0x2222222222222222222222222222222222222b",
		ValueAggregate: voucher.NewBigInt(1000000),
		Asset:          "0x3333333333333333333333333333333333333c",
		Timestamp:      uint64(now.Unix()),
		Nonce:          voucher.NewBigInt(0),
		Escrow:         escrowAddr,
		ChainID:        voucher.NewBigInt(84532),
		Expiry:         uint64(now.Add(24 * time.Hour).Unix()),
	}
	sv := signVoucher(t, wallet, v)
	requirements := sampleRequirements(sv)
	payload := samplePayload(sv)

	client := &fakeChainClient{
		chainID:       big.NewInt(84532),
		balance:       big.NewInt(2000000),
		outstanding:   big.NewInt(1000000),
		collectable:   big.NewInt(1000000),
		receiptStatus: 1,
	}
	f := New(client, escrowAddr, store.NewInMemoryVoucherStore())

	resp := f.Settle(context.Background(), payload, requirements, now)
	require.False(t, resp.Success)
	require.Equal(t, verify.ReasonVoucherNotFound, resp.ErrorReason)
}

func TestSettleSucceedsForStoredVoucher(t *testing.T) {
	now := time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC)
	wallet := newTestWallet(t)
	v := voucher.Voucher{
		ID:             "0x" + repeat("ab", 32),
		Buyer:          wallet.Address(),
		Seller:         "0x2222222222222222222222222222222222222b",
		ValueAggregate: voucher.NewBigInt(1000000),
		Asset:          "0x3333333333333333333333333333333333333c",
		Timestamp:      uint64(now.Unix()),
		Nonce:          voucher.NewBigInt(0),
		Escrow:         escrowAddr,
		ChainID:        voucher.NewBigInt(84532),
		Expiry:         uint64(now.Add(24 * time.Hour).Unix()),
	}
	sv := signVoucher(t, wallet, v)
	requirements := sampleRequirements(sv)
	payload := samplePayload(sv)

	s := store.NewInMemoryVoucherStore()
	require.NoError(t, s.StoreVoucher(context.Background(), sv))

	client := &fakeChainClient{
		chainID:       big.NewInt(84532),
		balance:       big.NewInt(2000000),
		outstanding:   big.NewInt(1000000),
		collectable:   big.NewInt(1000000),
		receiptStatus: 1,
	}
	f := New(client, escrowAddr, s)

	resp := f.Settle(context.Background(), payload, requirements, now)
	require.True(t, resp.Success, resp.ErrorReason)
	require.NotEmpty(t, resp.Transaction)
	require.Contains(t, client.writeCalls, "collect")
}

func TestGetEscrowAccountDetailsReturnsContractBalance(t *testing.T) {
	wallet := newTestWallet(t)
	now := time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC)
	v := voucher.Voucher{
		ID:             "0x" + repeat("ab", 32),
		Buyer:          wallet.Address(),
		Seller:         "0x2222222222222222222222222222222222222b",
		ValueAggregate: voucher.NewBigInt(1000000),
		Asset:          "0x3333333333333333333333333333333333333c",
		Timestamp:      uint64(now.Unix()),
		Nonce:          voucher.NewBigInt(0),
		Escrow:         escrowAddr,
		ChainID:        voucher.NewBigInt(84532),
		Expiry:         uint64(now.Add(24 * time.Hour).Unix()),
	}
	sv := signVoucher(t, wallet, v)
	s := store.NewInMemoryVoucherStore()
	require.NoError(t, s.StoreVoucher(context.Background(), sv))

	client := &fakeChainClient{balance: big.NewInt(500000)}
	f := New(client, escrowAddr, s)

	snapshot, err := f.GetEscrowAccountDetails(context.Background(), v.Buyer, v.Seller, v.Asset)
	require.NoError(t, err)
	require.Equal(t, 0, snapshot.Balance.Cmp(voucher.NewBigInt(500000)))
}
