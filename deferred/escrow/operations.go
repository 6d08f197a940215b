package escrow

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/x402-foundation/x402-deferred/deferred/voucher"
)

// voucherTuple is the Go shape matching the ABI's voucher tuple, in field
// order, for Pack/Unpack via go-ethereum's abi package.
type voucherTuple struct {
	ID             [32]byte
	Buyer          common.Address
	Seller         common.Address
	ValueAggregate *big.Int
	Asset          common.Address
	Timestamp      uint64
	Nonce          *big.Int
	Escrow         common.Address
	ChainID        *big.Int
	Expiry         uint64
}

func toVoucherTuple(v voucher.Voucher) voucherTuple {
	var id [32]byte
	copy(id[:], common.FromHex(v.ID))
	return voucherTuple{
		ID:             id,
		Buyer:          common.HexToAddress(v.Buyer),
		Seller:         common.HexToAddress(v.Seller),
		ValueAggregate: &v.ValueAggregate.Int,
		Asset:          common.HexToAddress(v.Asset),
		Timestamp:      v.Timestamp,
		Nonce:          &v.Nonce.Int,
		Escrow:         common.HexToAddress(v.Escrow),
		ChainID:        &v.ChainID.Int,
		Expiry:         v.Expiry,
	}
}

type depositAuthTuple struct {
	Buyer  common.Address
	Seller common.Address
	Asset  common.Address
	Amount *big.Int
	Nonce  [32]byte
	Expiry uint64
}

func toDepositAuthTuple(d voucher.DepositAuthorization) depositAuthTuple {
	var nonce [32]byte
	copy(nonce[:], common.FromHex(d.Nonce))
	return depositAuthTuple{
		Buyer:  common.HexToAddress(d.Buyer),
		Seller: common.HexToAddress(d.Seller),
		Asset:  common.HexToAddress(d.Asset),
		Amount: &d.Amount.Int,
		Nonce:  nonce,
		Expiry: d.Expiry,
	}
}

type flushAuthTuple struct {
	Buyer  common.Address
	Seller common.Address
	Asset  common.Address
	Nonce  [32]byte
	Expiry uint64
}

func toFlushAuthTuple(f voucher.FlushAuthorization) flushAuthTuple {
	var nonce [32]byte
	copy(nonce[:], common.FromHex(f.Nonce))
	seller := common.Address{}
	asset := common.Address{}
	if f.Seller != nil {
		seller = common.HexToAddress(*f.Seller)
	}
	if f.Asset != nil {
		asset = common.HexToAddress(*f.Asset)
	}
	return flushAuthTuple{Buyer: common.HexToAddress(f.Buyer), Seller: seller, Asset: asset, Nonce: nonce, Expiry: f.Expiry}
}

// IsCollected reports whether id has already been collected on-chain.
func IsCollected(ctx context.Context, client Client, escrowAddr string, id string) (bool, error) {
	var idBytes [32]byte
	copy(idBytes[:], common.FromHex(id))
	out, err := client.ReadContract(ctx, escrowAddr, []byte(EscrowABI), "isCollected", idBytes)
	if err != nil {
		return false, fmt.Errorf("isCollected call failed: %w", err)
	}
	if len(out) != 1 {
		return false, fmt.Errorf("isCollected: unexpected output shape")
	}
	collected, ok := out[0].(bool)
	if !ok {
		return false, fmt.Errorf("isCollected: unexpected output type")
	}
	return collected, nil
}

// OutstandingAndCollectable is the result of
// getOutstandingAndCollectableAmount.
type OutstandingAndCollectable struct {
	Outstanding *voucher.BigInt
	Collectable *voucher.BigInt
}

// GetOutstandingAndCollectableAmount reads the escrow's view of how much of
// v is still owed and collectable.
func GetOutstandingAndCollectableAmount(ctx context.Context, client Client, escrowAddr string, v voucher.Voucher) (*OutstandingAndCollectable, error) {
	out, err := client.ReadContract(ctx, escrowAddr, []byte(EscrowABI), "getOutstandingAndCollectableAmount", toVoucherTuple(v))
	if err != nil {
		return nil, fmt.Errorf("getOutstandingAndCollectableAmount call failed: %w", err)
	}
	if len(out) != 2 {
		return nil, fmt.Errorf("getOutstandingAndCollectableAmount: unexpected output shape")
	}
	outstanding, ok1 := out[0].(*big.Int)
	collectable, ok2 := out[1].(*big.Int)
	if !ok1 || !ok2 {
		return nil, fmt.Errorf("getOutstandingAndCollectableAmount: unexpected output types")
	}
	return &OutstandingAndCollectable{
		Outstanding: &voucher.BigInt{Int: *outstanding},
		Collectable: &voucher.BigInt{Int: *collectable},
	}, nil
}

// Account is the result of getAccount.
type Account struct {
	Balance       *voucher.BigInt
	ThawingAmount *voucher.BigInt
	ThawEndTime   *voucher.BigInt
}

// GetAccount reads the escrow's account balance view for (buyer, seller, asset).
func GetAccount(ctx context.Context, client Client, escrowAddr string, buyer, seller, asset string) (*Account, error) {
	out, err := client.ReadContract(ctx, escrowAddr, []byte(EscrowABI), "getAccount",
		common.HexToAddress(buyer), common.HexToAddress(seller), common.HexToAddress(asset))
	if err != nil {
		return nil, fmt.Errorf("getAccount call failed: %w", err)
	}
	if len(out) != 3 {
		return nil, fmt.Errorf("getAccount: unexpected output shape")
	}
	balance, ok1 := out[0].(*big.Int)
	thawing, ok2 := out[1].(*big.Int)
	thawEnd, ok3 := out[2].(*big.Int)
	if !ok1 || !ok2 || !ok3 {
		return nil, fmt.Errorf("getAccount: unexpected output types")
	}
	return &Account{
		Balance:       &voucher.BigInt{Int: *balance},
		ThawingAmount: &voucher.BigInt{Int: *thawing},
		ThawEndTime:   &voucher.BigInt{Int: *thawEnd},
	}, nil
}

// AccountDetails is the result of getAccountDetails.
type AccountDetails struct {
	Balance   *voucher.BigInt
	Allowance *voucher.BigInt
	Nonce     *voucher.BigInt
}

// GetAccountDetails reads balance/allowance/permit-nonce alongside the
// outstanding ids/values of every live series for (buyer, seller, asset).
func GetAccountDetails(ctx context.Context, client Client, escrowAddr string, buyer, seller, asset string, ids []string, values []*voucher.BigInt) (*AccountDetails, error) {
	idArgs := make([][32]byte, len(ids))
	for i, id := range ids {
		copy(idArgs[i][:], common.FromHex(id))
	}
	valueArgs := make([]*big.Int, len(values))
	for i, v := range values {
		valueArgs[i] = &v.Int
	}
	out, err := client.ReadContract(ctx, escrowAddr, []byte(EscrowABI), "getAccountDetails",
		common.HexToAddress(buyer), common.HexToAddress(seller), common.HexToAddress(asset), idArgs, valueArgs)
	if err != nil {
		return nil, fmt.Errorf("getAccountDetails call failed: %w", err)
	}
	if len(out) != 3 {
		return nil, fmt.Errorf("getAccountDetails: unexpected output shape")
	}
	balance, ok1 := out[0].(*big.Int)
	allowance, ok2 := out[1].(*big.Int)
	nonce, ok3 := out[2].(*big.Int)
	if !ok1 || !ok2 || !ok3 {
		return nil, fmt.Errorf("getAccountDetails: unexpected output types")
	}
	return &AccountDetails{
		Balance:   &voucher.BigInt{Int: *balance},
		Allowance: &voucher.BigInt{Int: *allowance},
		Nonce:     &voucher.BigInt{Int: *nonce},
	}, nil
}

// Collect submits collect(voucher, signature).
func Collect(ctx context.Context, client Client, escrowAddr string, v voucher.Voucher, signature string) (string, error) {
	txHash, err := client.WriteContract(ctx, escrowAddr, []byte(EscrowABI), "collect", toVoucherTuple(v), common.FromHex(signature))
	if err != nil {
		return "", fmt.Errorf("collect submission failed: %w", err)
	}
	return txHash, nil
}

// DepositWithAuthorization submits depositWithAuthorization(auth, signature).
func DepositWithAuthorization(ctx context.Context, client Client, escrowAddr string, d voucher.DepositAuthorization, signature string) (string, error) {
	txHash, err := client.WriteContract(ctx, escrowAddr, []byte(EscrowABI), "depositWithAuthorization", toDepositAuthTuple(d), common.FromHex(signature))
	if err != nil {
		return "", fmt.Errorf("depositWithAuthorization submission failed: %w", err)
	}
	return txHash, nil
}

// FlushWithAuthorization submits flushWithAuthorization(auth, signature).
func FlushWithAuthorization(ctx context.Context, client Client, escrowAddr string, f voucher.FlushAuthorization, signature string) (string, error) {
	txHash, err := client.WriteContract(ctx, escrowAddr, []byte(EscrowABI), "flushWithAuthorization", toFlushAuthTuple(f), common.FromHex(signature))
	if err != nil {
		return "", fmt.Errorf("flushWithAuthorization submission failed: %w", err)
	}
	return txHash, nil
}

// ParseVoucherCollectedAmount scans logs for a VoucherCollected event
// matching id and decodes its collectedAmount. Returns a zero amount if no
// matching log is present, per the settlement rule that the collected
// amount may legitimately be less than the voucher's valueAggregate but
// must never block settlement on a missing log.
func ParseVoucherCollectedAmount(logs []Log, id string) (*voucher.BigInt, error) {
	contractABI, err := abi.JSON(strings.NewReader(EscrowABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ABI: %w", err)
	}
	event, ok := contractABI.Events["VoucherCollected"]
	if !ok {
		return nil, fmt.Errorf("VoucherCollected event not found in ABI")
	}

	var idTopic [32]byte
	copy(idTopic[:], common.FromHex(id))

	for _, log := range logs {
		if len(log.Topics) < 2 || log.Topics[0] != event.ID.Hex() {
			continue
		}
		if common.HexToHash(log.Topics[1]) != common.BytesToHash(idTopic[:]) {
			continue
		}
		var decoded struct {
			Nonce           *big.Int
			CollectedAmount *big.Int
		}
		if err := contractABI.UnpackIntoInterface(&decoded, "VoucherCollected", log.Data); err != nil {
			return nil, fmt.Errorf("failed to unpack VoucherCollected log: %w", err)
		}
		return &voucher.BigInt{Int: *decoded.CollectedAmount}, nil
	}
	return voucher.NewBigInt(0), nil
}

// PermitAsset submits permit(owner, spender, value, deadline, v, r, s) on
// the asset contract, splitting the 65-byte signature into (v, r, s).
func PermitAsset(ctx context.Context, client Client, assetAddr string, p voucher.Permit) (string, error) {
	sig := common.FromHex(p.Signature)
	if len(sig) != 65 {
		return "", fmt.Errorf("permit signature must be 65 bytes, got %d", len(sig))
	}
	var r, s [32]byte
	copy(r[:], sig[:32])
	copy(s[:], sig[32:64])
	vByte := sig[64]

	txHash, err := client.WriteContract(ctx, assetAddr, []byte(ERC20PermitABI), "permit",
		common.HexToAddress(p.Owner), common.HexToAddress(p.Spender), &p.Value.Int,
		new(big.Int).SetUint64(p.Deadline), vByte, r, s)
	if err != nil {
		return "", fmt.Errorf("permit submission failed: %w", err)
	}
	return txHash, nil
}
