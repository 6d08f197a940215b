// Package facilitator orchestrates the deferred scheme's server-side
// settlement pipeline: verify, settle, the deposit- and flush-authorization
// side channels, and the escrow account-details query, wiring together
// deferred/verify, deferred/escrow, and deferred/store the way the exact
// scheme's top-level facilitator dispatches onto its mechanism package.
package facilitator

import (
	"context"
	"fmt"
	"time"

	"github.com/x402-foundation/x402-deferred/deferred/escrow"
	"github.com/x402-foundation/x402-deferred/deferred/store"
	"github.com/x402-foundation/x402-deferred/deferred/verify"
	"github.com/x402-foundation/x402-deferred/deferred/voucher"
	"github.com/x402-foundation/x402-deferred/deferred/wire"
)

// MaxAccountDetailsSeries bounds how many of a (buyer, seller) pair's live
// voucher series are sent to escrow.GetAccountDetails in one call.
const MaxAccountDetailsSeries = 1000

// Facilitator bundles the on-chain client, escrow contract address, and
// voucher store a deployment needs to verify and settle deferred payments.
type Facilitator struct {
	Client     escrow.Client
	EscrowAddr string
	Store      store.VoucherStore
}

// New constructs a Facilitator over the given on-chain client, escrow
// contract address, and voucher store.
func New(client escrow.Client, escrowAddr string, s store.VoucherStore) *Facilitator {
	return &Facilitator{Client: client, EscrowAddr: escrowAddr, Store: s}
}

// Verify runs the full verification pipeline: requirements equivalence,
// continuity, signature, store availability (for aggregation), then
// on-chain state. It short-circuits on the first failing sub-verifier.
func (f *Facilitator) Verify(ctx context.Context, payload voucher.PaymentPayload, requirements voucher.PaymentRequirements, now time.Time) verify.Result {
	if r := verify.VerifyPaymentRequirements(payload, requirements); !r.IsValid {
		return r
	}
	if r := verify.VerifyVoucherContinuity(payload, requirements, now); !r.IsValid {
		return r
	}
	if r := verify.VerifyVoucherSignature(payload.Payload.Voucher, payload.Payload.Signature); !r.IsValid {
		return r
	}
	if requirements.Extra.Kind == voucher.ExtraAggregation {
		prev := requirements.Extra.Aggregation
		claimedPrior := voucher.SignedVoucher{Voucher: prev.Voucher, Signature: prev.Signature}
		if r := verify.VerifyVoucherAvailability(ctx, claimedPrior, f.Store); !r.IsValid {
			return r
		}
	}
	if r := verify.VerifyOnchainState(ctx, f.Client, f.EscrowAddr, payload.Payload.Voucher); !r.IsValid {
		return r
	}
	return verify.Valid(payload.Payload.Voucher.Buyer)
}

// Settle re-verifies payload, then looks up the store-committed voucher at
// (id, nonce) and settles it. The store must already hold the voucher;
// Settle never settles a payload the buyer hasn't previously committed via
// StoreVoucher.
func (f *Facilitator) Settle(ctx context.Context, payload voucher.PaymentPayload, requirements voucher.PaymentRequirements, now time.Time) wire.SettleResponse {
	v := payload.Payload.Voucher
	if r := f.Verify(ctx, payload, requirements, now); !r.IsValid {
		return wire.SettleResponse{Success: false, Network: payload.Network, Transaction: "", ErrorReason: r.InvalidReason, Payer: r.Payer}
	}

	stored, err := f.Store.GetVoucher(ctx, v.ID, v.Nonce)
	if err != nil || stored == nil {
		return wire.SettleResponse{Success: false, Network: payload.Network, Transaction: "", ErrorReason: verify.ReasonVoucherNotFound, Payer: v.Buyer}
	}

	return f.settleVoucher(ctx, *stored, payload.Payload.DepositAuthorization, payload.Network, now)
}

// settleVoucher re-checks availability/signature/on-chain state for the
// store-backed voucher, optionally deposits first, submits collect, and
// records the settlement.
func (f *Facilitator) settleVoucher(ctx context.Context, sv voucher.SignedVoucher, depositAuth *voucher.DepositAuthorizationPayload, network string, now time.Time) wire.SettleResponse {
	v := sv.Voucher

	if r := verify.VerifyVoucherAvailability(ctx, sv, f.Store); !r.IsValid {
		return wire.SettleResponse{Success: false, Network: network, ErrorReason: r.InvalidReason, Payer: r.Payer}
	}
	if r := verify.VerifyVoucherSignature(v, sv.Signature); !r.IsValid {
		return wire.SettleResponse{Success: false, Network: network, ErrorReason: r.InvalidReason, Payer: r.Payer}
	}
	if r := verify.VerifyOnchainState(ctx, f.Client, f.EscrowAddr, v); !r.IsValid {
		return wire.SettleResponse{Success: false, Network: network, ErrorReason: r.InvalidReason, Payer: r.Payer}
	}

	if depositAuth != nil {
		if resp := f.DepositWithAuthorization(ctx, *depositAuth, v, network, now); !resp.Success {
			return resp
		}
	}

	txHash, err := escrow.Collect(ctx, f.Client, f.EscrowAddr, v, sv.Signature)
	if err != nil {
		return wire.SettleResponse{Success: false, Network: network, ErrorReason: verify.ReasonTransactionReverted, Payer: v.Buyer}
	}
	receipt, err := f.Client.WaitForTransactionReceipt(ctx, txHash)
	if err != nil || receipt.Status != 1 {
		return wire.SettleResponse{Success: false, Network: network, Transaction: txHash, ErrorReason: verify.ReasonTransactionState, Payer: v.Buyer}
	}

	collectedAmount, err := escrow.ParseVoucherCollectedAmount(receipt.Logs, v.ID)
	if err != nil {
		collectedAmount = voucher.NewBigInt(0)
	}

	if err := f.Store.SettleVoucher(ctx, v.ID, v.Nonce, txHash, v.Asset, v.ChainID, collectedAmount, uint64(now.Unix())); err != nil {
		if err == store.ErrVoucherAlreadyExists {
			return wire.SettleResponse{Success: false, Network: network, Transaction: txHash, ErrorReason: verify.ReasonVoucherCouldNotSettleStore, Payer: v.Buyer}
		}
		return wire.SettleResponse{Success: false, Network: network, Transaction: txHash, ErrorReason: verify.ReasonVoucherErrorSettlingStore, Payer: v.Buyer}
	}

	return wire.SettleResponse{Success: true, Network: network, Transaction: txHash, Payer: v.Buyer}
}

// DepositWithAuthorization verifies the deposit/permit signatures, submits
// the permit transaction first when present, then the deposit transaction,
// waiting for each receipt in turn. Either failure aborts with the same
// two-entry transaction-error taxonomy settleVoucher uses.
func (f *Facilitator) DepositWithAuthorization(ctx context.Context, dp voucher.DepositAuthorizationPayload, v voucher.Voucher, network string, now time.Time) wire.SettleResponse {
	if r := verify.VerifyDepositAuthorization(dp, v, now); !r.IsValid {
		return wire.SettleResponse{Success: false, Network: network, ErrorReason: r.InvalidReason, Payer: r.Payer}
	}

	if dp.Permit != nil {
		permitTx, err := escrow.PermitAsset(ctx, f.Client, dp.DepositAuthorization.Asset, *dp.Permit)
		if err != nil {
			return wire.SettleResponse{Success: false, Network: network, ErrorReason: verify.ReasonTransactionReverted, Payer: v.Buyer}
		}
		receipt, err := f.Client.WaitForTransactionReceipt(ctx, permitTx)
		if err != nil || receipt.Status != 1 {
			return wire.SettleResponse{Success: false, Network: network, Transaction: permitTx, ErrorReason: verify.ReasonTransactionState, Payer: v.Buyer}
		}
	}

	depositTx, err := escrow.DepositWithAuthorization(ctx, f.Client, f.EscrowAddr, dp.DepositAuthorization, dp.DepositAuthorization.Signature)
	if err != nil {
		return wire.SettleResponse{Success: false, Network: network, ErrorReason: verify.ReasonTransactionReverted, Payer: v.Buyer}
	}
	receipt, err := f.Client.WaitForTransactionReceipt(ctx, depositTx)
	if err != nil || receipt.Status != 1 {
		return wire.SettleResponse{Success: false, Network: network, Transaction: depositTx, ErrorReason: verify.ReasonTransactionState, Payer: v.Buyer}
	}

	return wire.SettleResponse{Success: true, Network: network, Transaction: depositTx, Payer: v.Buyer}
}

// FlushWithAuthorization verifies f's signature and expiry, then submits
// escrow.flushWithAuthorization.
func (f *Facilitator) FlushWithAuthorization(ctx context.Context, flushAuth voucher.FlushAuthorization, chainID *voucher.BigInt, network string, now time.Time) wire.SettleResponse {
	if r := verify.VerifyFlushAuthorization(flushAuth, chainID, f.EscrowAddr, now); !r.IsValid {
		return wire.SettleResponse{Success: false, Network: network, ErrorReason: r.InvalidReason, Payer: r.Payer}
	}
	txHash, err := escrow.FlushWithAuthorization(ctx, f.Client, f.EscrowAddr, flushAuth, flushAuth.Signature)
	if err != nil {
		return wire.SettleResponse{Success: false, Network: network, ErrorReason: verify.ReasonTransactionReverted, Payer: flushAuth.Buyer}
	}
	receipt, err := f.Client.WaitForTransactionReceipt(ctx, txHash)
	if err != nil || receipt.Status != 1 {
		return wire.SettleResponse{Success: false, Network: network, Transaction: txHash, ErrorReason: verify.ReasonTransactionState, Payer: flushAuth.Buyer}
	}
	return wire.SettleResponse{Success: true, Network: network, Transaction: txHash, Payer: flushAuth.Buyer}
}

// GetEscrowAccountDetails fetches every live series' (id, valueAggregate)
// tip for (buyer, seller) from the store (bounded by
// MaxAccountDetailsSeries) and queries the escrow for balance, allowance,
// and permit nonce against that outstanding set.
func (f *Facilitator) GetEscrowAccountDetails(ctx context.Context, buyer, seller, asset string) (*voucher.AccountSnapshot, error) {
	tips, err := f.Store.GetVouchers(ctx, store.VoucherFilter{Buyer: &buyer, Seller: &seller, Latest: true}, store.Pagination{Limit: MaxAccountDetailsSeries})
	if err != nil {
		return nil, fmt.Errorf("failed to list outstanding voucher series: %w", err)
	}

	ids := make([]string, len(tips))
	values := make([]*voucher.BigInt, len(tips))
	for i, sv := range tips {
		ids[i] = sv.Voucher.ID
		values[i] = sv.Voucher.ValueAggregate
	}

	details, err := escrow.GetAccountDetails(ctx, f.Client, f.EscrowAddr, buyer, seller, asset, ids, values)
	if err != nil {
		return nil, fmt.Errorf("getAccountDetails call failed: %w", err)
	}

	return &voucher.AccountSnapshot{
		Balance:          details.Balance,
		AssetAllowance:   details.Allowance,
		AssetPermitNonce: details.Nonce,
	}, nil
}
