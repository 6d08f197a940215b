package escrow

import (
	"context"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/x402-foundation/x402-deferred/deferred/voucher"
)

// fakeClient is a hand-rolled Client fixture with no live node: ReadContract
// and WriteContract are backed by caller-supplied functions so a test can
// assert on the exact args the escrow package packed, and GetChainID/
// WaitForTransactionReceipt are unused by the ABI-packing tests below.
type fakeClient struct {
	readFn func(method string, args []interface{}) ([]interface{}, error)

	writeMethod string
	writeArgs   []interface{}
}

func (f *fakeClient) ReadContract(ctx context.Context, address string, abiJSON []byte, method string, args ...interface{}) ([]interface{}, error) {
	return f.readFn(method, args)
}

func (f *fakeClient) WriteContract(ctx context.Context, address string, abiJSON []byte, method string, args ...interface{}) (string, error) {
	f.writeMethod = method
	f.writeArgs = args
	return "0x" + strings.Repeat("a", 64), nil
}

func (f *fakeClient) WaitForTransactionReceipt(ctx context.Context, txHash string) (*TransactionReceipt, error) {
	return &TransactionReceipt{TransactionHash: txHash, Status: 1}, nil
}

func (f *fakeClient) GetChainID(ctx context.Context) (*big.Int, error) {
	return big.NewInt(84532), nil
}

func sampleVoucherForEscrow() voucher.Voucher {
	return voucher.Voucher{
		ID:             "0x" + strings.Repeat("ab", 32),
		Buyer:          "0x1111111111111111111111111111111111111a",
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

func TestIsCollectedReturnsContractBool(t *testing.T) {
	client := &fakeClient{readFn: func(method string, args []interface{}) ([]interface{}, error) {
		require.Equal(t, "isCollected", method)
		return []interface{}{true}, nil
	}}
	collected, err := IsCollected(context.Background(), client, "0x4444444444444444444444444444444444444d", "0x"+strings.Repeat("ab", 32))
	require.NoError(t, err)
	require.True(t, collected)
}

func TestGetOutstandingAndCollectableAmountDecodesBigInts(t *testing.T) {
	client := &fakeClient{readFn: func(method string, args []interface{}) ([]interface{}, error) {
		require.Equal(t, "getOutstandingAndCollectableAmount", method)
		return []interface{}{big.NewInt(500000), big.NewInt(300000)}, nil
	}}
	result, err := GetOutstandingAndCollectableAmount(context.Background(), client, "0x4444444444444444444444444444444444444d", sampleVoucherForEscrow())
	require.NoError(t, err)
	require.Equal(t, 0, result.Outstanding.Cmp(voucher.NewBigInt(500000)))
	require.Equal(t, 0, result.Collectable.Cmp(voucher.NewBigInt(300000)))
}

func TestGetAccountDetailsPacksIdsAndValues(t *testing.T) {
	v := sampleVoucherForEscrow()
	client := &fakeClient{readFn: func(method string, args []interface{}) ([]interface{}, error) {
		require.Equal(t, "getAccountDetails", method)
		require.Len(t, args, 5)
		ids, ok := args[3].([][32]byte)
		require.True(t, ok)
		require.Len(t, ids, 1)
		values, ok := args[4].([]*big.Int)
		require.True(t, ok)
		require.Equal(t, 0, values[0].Cmp(big.NewInt(1000000)))
		return []interface{}{big.NewInt(2000000), big.NewInt(0), big.NewInt(0)}, nil
	}}
	details, err := GetAccountDetails(context.Background(), client, v.Escrow, v.Buyer, v.Seller, v.Asset, []string{v.ID}, []*voucher.BigInt{v.ValueAggregate})
	require.NoError(t, err)
	require.Equal(t, 0, details.Balance.Cmp(voucher.NewBigInt(2000000)))
}

func TestCollectSubmitsVoucherTupleAndSignature(t *testing.T) {
	v := sampleVoucherForEscrow()
	client := &fakeClient{}
	txHash, err := Collect(context.Background(), client, v.Escrow, v, "0x"+strings.Repeat("cd", 65))
	require.NoError(t, err)
	require.NotEmpty(t, txHash)
	require.Equal(t, "collect", client.writeMethod)
	require.Len(t, client.writeArgs, 2)
	tuple, ok := client.writeArgs[0].(voucherTuple)
	require.True(t, ok)
	require.Equal(t, common.HexToAddress(v.Buyer), tuple.Buyer)
}

func TestParseVoucherCollectedAmountDecodesMatchingLog(t *testing.T) {
	v := sampleVoucherForEscrow()
	contractABI, err := abi.JSON(strings.NewReader(EscrowABI))
	require.NoError(t, err)
	event := contractABI.Events["VoucherCollected"]

	var idBytes [32]byte
	copy(idBytes[:], common.FromHex(v.ID))

	data, err := event.Inputs.NonIndexed().Pack(big.NewInt(0), big.NewInt(750000))
	require.NoError(t, err)

	log := Log{
		Address: v.Escrow,
		Topics:  []string{event.ID.Hex(), common.BytesToHash(idBytes[:]).Hex()},
		Data:    data,
	}

	amount, err := ParseVoucherCollectedAmount([]Log{log}, v.ID)
	require.NoError(t, err)
	require.Equal(t, 0, amount.Cmp(voucher.NewBigInt(750000)))
}

func TestParseVoucherCollectedAmountReturnsZeroWhenNoMatchingLog(t *testing.T) {
	v := sampleVoucherForEscrow()
	amount, err := ParseVoucherCollectedAmount(nil, v.ID)
	require.NoError(t, err)
	require.Equal(t, 0, amount.Cmp(voucher.NewBigInt(0)))
}
