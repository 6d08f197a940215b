// Package voucher defines the deferred scheme's wire and domain types: the
// voucher lifecycle objects, payment payload/requirements, the deposit and
// flush authorization side channels, and field-level validation.
package voucher

// Scheme is the x402 scheme identifier this package implements.
const Scheme = "deferred"

// Voucher is the unsigned cumulative payment promise for one series.
type Voucher struct {
	ID             string  `json:"id"`
	Buyer          string  `json:"buyer"`
	Seller         string  `json:"seller"`
	ValueAggregate *BigInt `json:"valueAggregate"`
	Asset          string  `json:"asset"`
	Timestamp      uint64  `json:"timestamp"`
	Nonce          *BigInt `json:"nonce"`
	Escrow         string  `json:"escrow"`
	ChainID        *BigInt `json:"chainId"`
	Expiry         uint64  `json:"expiry"`
}

// SignedVoucher pairs a Voucher with the EIP-712 signature over it.
type SignedVoucher struct {
	Voucher   Voucher `json:"voucher"`
	Signature string  `json:"signature"`
}

// Permit is an EIP-2612 ERC-20 permit, signed against the asset's own
// EIP-712 domain (not the escrow's).
type Permit struct {
	Owner     string       `json:"owner"`
	Spender   string       `json:"spender"`
	Value     *BigInt      `json:"value"`
	Nonce     *BigInt      `json:"nonce"`
	Deadline  uint64       `json:"deadline"`
	Domain    PermitDomain `json:"domain"`
	Signature string       `json:"signature"`
}

// PermitDomain carries the asset contract's EIP-712 domain name/version,
// which vary per token and cannot be inferred from the asset address alone.
type PermitDomain struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// DepositAuthorization lets the facilitator top up the buyer's escrow
// balance on the buyer's behalf, signed against the escrow's domain.
type DepositAuthorization struct {
	Buyer     string  `json:"buyer"`
	Seller    string  `json:"seller"`
	Asset     string  `json:"asset"`
	Amount    *BigInt `json:"amount"`
	Nonce     string  `json:"nonce"` // 32-byte hex, independent of Voucher.Nonce
	Expiry    uint64  `json:"expiry"`
	Signature string  `json:"signature"`
}

// DepositAuthorizationPayload is the optional side-channel attached to a
// payment payload: an inner escrow-domain deposit authorization, plus an
// optional outer asset-domain permit when allowance is insufficient.
type DepositAuthorizationPayload struct {
	Permit               *Permit              `json:"permit,omitempty"`
	DepositAuthorization DepositAuthorization `json:"depositAuthorization"`
}

// FlushAuthorization lets the buyer authorize withdrawal of unencumbered
// escrow balance back to their own wallet. A targeted flush carries Seller
// and Asset; a flush-all omits both.
type FlushAuthorization struct {
	Buyer     string  `json:"buyer"`
	Seller    *string `json:"seller,omitempty"`
	Asset     *string `json:"asset,omitempty"`
	Nonce     string  `json:"nonce"`
	Expiry    uint64  `json:"expiry"`
	Signature string  `json:"signature"`
}

// IsFlushAll reports whether this is a flush-all authorization (no seller
// or asset named) rather than a targeted flush.
func (f FlushAuthorization) IsFlushAll() bool {
	return f.Seller == nil && f.Asset == nil
}

// VoucherCollection is the on-chain settlement record stored after a
// successful collect transaction.
type VoucherCollection struct {
	VoucherID       string  `json:"voucherId"`
	VoucherNonce    *BigInt `json:"voucherNonce"`
	TransactionHash string  `json:"transactionHash"`
	CollectedAmount *BigInt `json:"collectedAmount"`
	Asset           string  `json:"asset"`
	ChainID         *BigInt `json:"chainId"`
	CollectedAt     uint64  `json:"collectedAt"`
}

// PaymentPayloadBody is the scheme-specific payload nested inside a
// PaymentPayload envelope.
type PaymentPayloadBody struct {
	Signature            string                       `json:"signature"`
	Voucher               Voucher                      `json:"voucher"`
	DepositAuthorization *DepositAuthorizationPayload `json:"depositAuthorization,omitempty"`
}

// PaymentPayload is the deferred-scheme x402 payment payload exchanged in
// the X-PAYMENT header.
type PaymentPayload struct {
	X402Version int                `json:"x402Version"`
	Scheme      string             `json:"scheme"`
	Network     string             `json:"network"`
	Payload     PaymentPayloadBody `json:"payload"`
}

// AccountSnapshot is the optional on-chain account state the server may
// embed in requirements so the buyer can decide whether to attach a deposit
// authorization.
type AccountSnapshot struct {
	Balance          *BigInt `json:"balance"`
	AssetAllowance   *BigInt `json:"assetAllowance"`
	AssetPermitNonce *BigInt `json:"assetPermitNonce"`
	FacilitatorURL   string  `json:"facilitatorUrl,omitempty"`
}

// PaymentRequirements is the deferred-scheme x402 payment requirements
// object, including the tagged-union Extra.
type PaymentRequirements struct {
	Scheme            string        `json:"scheme"`
	Network           string        `json:"network"`
	Asset             string        `json:"asset"`
	PayTo             string        `json:"payTo"`
	MaxAmountRequired *BigInt       `json:"maxAmountRequired"`
	MaxTimeoutSeconds int           `json:"maxTimeoutSeconds"`
	Extra             RequirementsExtra `json:"extra"`
}
