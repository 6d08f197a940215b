package eip712

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/x402-foundation/x402-deferred/deferred/voucher"
)

// hexToBytes32 decodes a 0x-prefixed 32-byte hex string to raw bytes, the
// shape go-ethereum's apitypes encoder expects for a "bytes32" field.
func hexToBytes32(s string) ([]byte, error) {
	b := common.FromHex(s)
	if len(b) != 32 {
		return nil, fmt.Errorf("expected 32-byte hex value, got %d bytes: %s", len(b), s)
	}
	return b, nil
}

func voucherMessage(v voucher.Voucher) (map[string]interface{}, error) {
	id, err := hexToBytes32(v.ID)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"id":             id,
		"buyer":          common.HexToAddress(v.Buyer).Hex(),
		"seller":         common.HexToAddress(v.Seller).Hex(),
		"valueAggregate": &v.ValueAggregate.Int,
		"asset":          common.HexToAddress(v.Asset).Hex(),
		"timestamp":      new(big.Int).SetUint64(v.Timestamp),
		"nonce":          &v.Nonce.Int,
		"escrow":         common.HexToAddress(v.Escrow).Hex(),
		"chainId":        &v.ChainID.Int,
		"expiry":         new(big.Int).SetUint64(v.Expiry),
	}, nil
}

// SignVoucher signs the Voucher typed-data message against the escrow
// domain derived from v.ChainID/v.Escrow.
func SignVoucher(ctx context.Context, wallet ClientWallet, v voucher.Voucher) ([]byte, error) {
	msg, err := voucherMessage(v)
	if err != nil {
		return nil, err
	}
	domain := EscrowDomain(&v.ChainID.Int, v.Escrow)
	return Sign(ctx, wallet, domain, VoucherTypes, "Voucher", msg)
}

// VerifyVoucherSignature recovers the signer of v's EIP-712 digest and
// compares it (checksum-normalized) to v.Buyer.
func VerifyVoucherSignature(v voucher.Voucher, signature []byte) (bool, error) {
	msg, err := voucherMessage(v)
	if err != nil {
		return false, err
	}
	domain := EscrowDomain(&v.ChainID.Int, v.Escrow)
	return Verify(domain, VoucherTypes, "Voucher", msg, signature, v.Buyer)
}

func permitMessage(p voucher.Permit) map[string]interface{} {
	return map[string]interface{}{
		"owner":    common.HexToAddress(p.Owner).Hex(),
		"spender":  common.HexToAddress(p.Spender).Hex(),
		"value":    &p.Value.Int,
		"nonce":    &p.Nonce.Int,
		"deadline": new(big.Int).SetUint64(p.Deadline),
	}
}

// SignPermit signs the EIP-2612 Permit typed-data message against the
// asset's own domain (p.Domain.Name/Version), not the escrow's.
func SignPermit(ctx context.Context, wallet ClientWallet, p voucher.Permit, chainID *big.Int, asset string) ([]byte, error) {
	domain := AssetDomain(p.Domain.Name, p.Domain.Version, chainID, asset)
	return Sign(ctx, wallet, domain, PermitTypes, "Permit", permitMessage(p))
}

// VerifyPermitSignature recovers the signer of p's EIP-712 digest and
// compares it to p.Owner.
func VerifyPermitSignature(p voucher.Permit, signature []byte, chainID *big.Int, asset string) (bool, error) {
	domain := AssetDomain(p.Domain.Name, p.Domain.Version, chainID, asset)
	return Verify(domain, PermitTypes, "Permit", permitMessage(p), signature, p.Owner)
}

func depositAuthorizationMessage(d voucher.DepositAuthorization) (map[string]interface{}, error) {
	nonce, err := hexToBytes32(d.Nonce)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"buyer":  common.HexToAddress(d.Buyer).Hex(),
		"seller": common.HexToAddress(d.Seller).Hex(),
		"asset":  common.HexToAddress(d.Asset).Hex(),
		"amount": &d.Amount.Int,
		"nonce":  nonce,
		"expiry": new(big.Int).SetUint64(d.Expiry),
	}, nil
}

// SignDepositAuthorization signs the DepositAuthorization typed-data
// message against the escrow's domain.
func SignDepositAuthorization(ctx context.Context, wallet ClientWallet, d voucher.DepositAuthorization, chainID *big.Int, escrow string) ([]byte, error) {
	msg, err := depositAuthorizationMessage(d)
	if err != nil {
		return nil, err
	}
	domain := EscrowDomain(chainID, escrow)
	return Sign(ctx, wallet, domain, DepositAuthorizationTypes, "DepositAuthorization", msg)
}

// VerifyDepositAuthorizationSignature recovers the signer of d's EIP-712
// digest and compares it to d.Buyer.
func VerifyDepositAuthorizationSignature(d voucher.DepositAuthorization, signature []byte, chainID *big.Int, escrow string) (bool, error) {
	msg, err := depositAuthorizationMessage(d)
	if err != nil {
		return false, err
	}
	domain := EscrowDomain(chainID, escrow)
	return Verify(domain, DepositAuthorizationTypes, "DepositAuthorization", msg, signature, d.Buyer)
}

// SignFlushAuthorization signs either FlushAuthorization or
// FlushAllAuthorization, dispatching on whether f carries a seller/asset
// pair, against the escrow's domain.
func SignFlushAuthorization(ctx context.Context, wallet ClientWallet, f voucher.FlushAuthorization, chainID *big.Int, escrow string) ([]byte, error) {
	domain := EscrowDomain(chainID, escrow)
	nonce, err := hexToBytes32(f.Nonce)
	if err != nil {
		return nil, err
	}
	if f.IsFlushAll() {
		msg := map[string]interface{}{
			"buyer":  common.HexToAddress(f.Buyer).Hex(),
			"nonce":  nonce,
			"expiry": new(big.Int).SetUint64(f.Expiry),
		}
		return Sign(ctx, wallet, domain, FlushAllAuthorizationTypes, "FlushAllAuthorization", msg)
	}
	msg := map[string]interface{}{
		"buyer":  common.HexToAddress(f.Buyer).Hex(),
		"seller": common.HexToAddress(*f.Seller).Hex(),
		"asset":  common.HexToAddress(*f.Asset).Hex(),
		"nonce":  nonce,
		"expiry": new(big.Int).SetUint64(f.Expiry),
	}
	return Sign(ctx, wallet, domain, FlushAuthorizationTypes, "FlushAuthorization", msg)
}

// VerifyFlushAuthorizationSignature recovers the signer of f's EIP-712
// digest (dispatching primary type the same way SignFlushAuthorization
// does) and compares it to f.Buyer.
func VerifyFlushAuthorizationSignature(f voucher.FlushAuthorization, signature []byte, chainID *big.Int, escrow string) (bool, error) {
	domain := EscrowDomain(chainID, escrow)
	nonce, err := hexToBytes32(f.Nonce)
	if err != nil {
		return false, err
	}
	if f.IsFlushAll() {
		msg := map[string]interface{}{
			"buyer":  common.HexToAddress(f.Buyer).Hex(),
			"nonce":  nonce,
			"expiry": new(big.Int).SetUint64(f.Expiry),
		}
		return Verify(domain, FlushAllAuthorizationTypes, "FlushAllAuthorization", msg, signature, f.Buyer)
	}
	msg := map[string]interface{}{
		"buyer":  common.HexToAddress(f.Buyer).Hex(),
		"seller": common.HexToAddress(*f.Seller).Hex(),
		"asset":  common.HexToAddress(*f.Asset).Hex(),
		"nonce":  nonce,
		"expiry": new(big.Int).SetUint64(f.Expiry),
	}
	return Verify(domain, FlushAuthorizationTypes, "FlushAuthorization", msg, signature, f.Buyer)
}
