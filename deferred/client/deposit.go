package client

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/x402-foundation/x402-deferred/deferred/eip712"
	"github.com/x402-foundation/x402-deferred/deferred/voucher"
)

// DepositConfig names the per-asset deposit-decision parameters: how much
// headroom must exist before a deposit is considered, how much to top up
// by, and the asset's own EIP-712 domain for permit signing.
type DepositConfig struct {
	Asset     string
	Threshold *voucher.BigInt
	Amount    *voucher.BigInt
	Domain    voucher.PermitDomain
}

// defaultUSDCConfigs is the built-in fallback used when no matching
// DepositConfig is supplied, keyed by CAIP-2 network tag and by the legacy
// bare network names ("base", "base-sepolia").
var defaultUSDCConfigs = map[string]DepositConfig{
	"eip155:84532": {
		Asset:     "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
		Threshold: voucher.NewBigInt(10_000),
		Amount:    voucher.NewBigInt(1_000_000),
		Domain:    voucher.PermitDomain{Name: "USD Coin", Version: "2"},
	},
	"base-sepolia": {
		Asset:     "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
		Threshold: voucher.NewBigInt(10_000),
		Amount:    voucher.NewBigInt(1_000_000),
		Domain:    voucher.PermitDomain{Name: "USD Coin", Version: "2"},
	},
	"eip155:8453": {
		Asset:     "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
		Threshold: voucher.NewBigInt(10_000),
		Amount:    voucher.NewBigInt(1_000_000),
		Domain:    voucher.PermitDomain{Name: "USD Coin", Version: "2"},
	},
	"base": {
		Asset:     "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
		Threshold: voucher.NewBigInt(10_000),
		Amount:    voucher.NewBigInt(1_000_000),
		Domain:    voucher.PermitDomain{Name: "USD Coin", Version: "2"},
	},
}

// AccountFetcher re-queries fresh account state from the facilitator; it is
// the network round trip step 3 of the deposit-decision algorithm needs
// before committing to a stale balance snapshot.
type AccountFetcher func(ctx context.Context) (*voucher.AccountSnapshot, error)

// FindDepositConfig resolves the deposit config for (network, asset): a
// caller-supplied match wins, falling back to the built-in USDC default
// keyed by network and asset address.
func FindDepositConfig(configs []DepositConfig, network, asset string) (*DepositConfig, bool) {
	for _, c := range configs {
		if voucher.AddressesEqual(c.Asset, asset) {
			return &c, true
		}
	}
	if d, ok := defaultUSDCConfigs[network]; ok && voucher.AddressesEqual(d.Asset, asset) {
		return &d, true
	}
	return nil, false
}

// GenerateNonce32 returns 32 cryptographically random bytes as a 0x-prefixed
// lower-hex string, used for deposit and flush authorization nonces.
func GenerateNonce32() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random nonce: %w", err)
	}
	return "0x" + common.Bytes2Hex(b), nil
}

// CreatePaymentExtraPayload implements the deposit-decision algorithm: skip
// when requirements carry no account snapshot or when the cached balance
// already covers threshold+maxAmountRequired; otherwise re-fetch fresh
// account state, and if it's still insufficient, build (and sign) a deposit
// authorization, plus a permit when the allowance is short.
func CreatePaymentExtraPayload(
	ctx context.Context,
	wallet eip712.ClientWallet,
	requirements voucher.PaymentRequirements,
	network string,
	escrow string,
	seller string,
	configs []DepositConfig,
	fetchFresh AccountFetcher,
	now time.Time,
) (*voucher.DepositAuthorizationPayload, error) {
	account := requirements.Extra.Account
	if account == nil {
		return nil, nil
	}

	chainID, err := voucher.ChainIDForNetwork(network)
	if err != nil {
		return nil, err
	}

	threshold := voucher.NewBigInt(0)
	config, hasConfig := FindDepositConfig(configs, network, requirements.Asset)
	if hasConfig {
		threshold = config.Threshold
	}
	required := threshold.Add(requirements.MaxAmountRequired)
	if account.Balance != nil && account.Balance.Cmp(required) >= 0 {
		return nil, nil
	}

	fresh := account
	if fetchFresh != nil {
		f, err := fetchFresh(ctx)
		if err != nil {
			return nil, nil
		}
		if f != nil {
			fresh = f
		}
	}
	if fresh.Balance != nil && fresh.Balance.Cmp(required) >= 0 {
		return nil, nil
	}

	if !hasConfig {
		return nil, fmt.Errorf("no deposit config for asset %s on network %s", requirements.Asset, network)
	}

	nonce, err := GenerateNonce32()
	if err != nil {
		return nil, err
	}
	expiry := uint64(now.Add(VoucherLifetime).Unix())

	depositAuth := voucher.DepositAuthorization{
		Buyer:  wallet.Address(),
		Seller: seller,
		Asset:  config.Asset,
		Amount: config.Amount,
		Nonce:  nonce,
		Expiry: expiry,
	}
	sig, err := eip712.SignDepositAuthorization(ctx, wallet, depositAuth, &chainID.Int, escrow)
	if err != nil {
		return nil, fmt.Errorf("failed to sign deposit authorization: %w", err)
	}
	depositAuth.Signature = "0x" + common.Bytes2Hex(sig)

	payload := &voucher.DepositAuthorizationPayload{DepositAuthorization: depositAuth}

	if fresh.AssetAllowance == nil || fresh.AssetAllowance.Cmp(config.Amount) < 0 {
		permitNonce := voucher.NewBigInt(0)
		if fresh.AssetPermitNonce != nil {
			permitNonce = fresh.AssetPermitNonce
		}
		permit := voucher.Permit{
			Owner:    wallet.Address(),
			Spender:  escrow,
			Value:    config.Amount,
			Nonce:    permitNonce,
			Deadline: expiry,
			Domain:   config.Domain,
		}
		permitSig, err := eip712.SignPermit(ctx, wallet, permit, &chainID.Int, config.Asset)
		if err != nil {
			return nil, fmt.Errorf("failed to sign permit: %w", err)
		}
		permit.Signature = "0x" + common.Bytes2Hex(permitSig)
		payload.Permit = &permit
	}

	return payload, nil
}
