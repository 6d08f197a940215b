// Package verify implements the deferred scheme's verifier sub-functions:
// shape/equivalence checks, continuity invariants, signature recovery,
// store-backed availability/duplicate checks, and on-chain state checks.
// Every sub-verifier returns a Result carrying a closed-set reason code on
// failure, never an exception, mirroring the exact scheme facilitator's
// error taxonomy.
package verify

// Reason codes. Closed set; higher components bubble these unchanged.
const (
	ReasonPayloadScheme      = "invalid_deferred_evm_payload_scheme"
	ReasonRequirementsScheme = "invalid_deferred_evm_requirements_scheme"
	ReasonNetworkMismatch    = "invalid_deferred_evm_network_mismatch"
	ReasonChainID            = "invalid_deferred_evm_chain_id"
	ReasonNetworkUnsupported = "invalid_network_unsupported"
	ReasonClientNetwork      = "invalid_client_network"

	ReasonVoucherValue      = "invalid_deferred_evm_payload_voucher_value"
	ReasonRecipientMismatch = "invalid_deferred_evm_payload_recipient_mismatch"
	ReasonAssetMismatch     = "invalid_deferred_evm_payload_asset_mismatch"

	ReasonVoucherExpired                  = "invalid_deferred_evm_payload_voucher_expired"
	ReasonTimestampTooEarly               = "invalid_deferred_evm_payload_timestamp_too_early"
	ReasonVoucherNonZeroNonce             = "invalid_deferred_evm_payload_voucher_non_zero_nonce"
	ReasonVoucherZeroValueAggregate       = "invalid_deferred_evm_payload_voucher_zero_value_aggregate"
	ReasonVoucherIDMismatch               = "invalid_deferred_evm_payload_voucher_id_mismatch"
	ReasonVoucherBuyerMismatch            = "invalid_deferred_evm_payload_voucher_buyer_mismatch"
	ReasonVoucherSellerMismatch           = "invalid_deferred_evm_payload_voucher_seller_mismatch"
	ReasonVoucherAssetFieldMismatch       = "invalid_deferred_evm_payload_voucher_asset_mismatch"
	ReasonVoucherEscrowMismatch           = "invalid_deferred_evm_payload_voucher_escrow_mismatch"
	ReasonVoucherChainIDMismatch          = "invalid_deferred_evm_payload_voucher_chainId_mismatch"
	ReasonVoucherNonceMismatch            = "invalid_deferred_evm_payload_voucher_nonce_mismatch"
	ReasonVoucherValueAggregateDecreasing = "invalid_deferred_evm_payload_voucher_value_aggregate_decreasing"
	ReasonVoucherTimestampDecreasing      = "invalid_deferred_evm_payload_voucher_timestamp_decreasing"
	ReasonVoucherExpiryDecreasing         = "invalid_deferred_evm_payload_voucher_expiry_decreasing"

	ReasonPayloadSignature            = "invalid_deferred_evm_payload_signature"
	ReasonPermitSignature             = "invalid_deferred_evm_permit_signature"
	ReasonFlushAuthorizationSignature = "invalid_deferred_evm_flush_authorization_signature"
	ReasonDepositAuthorizationSignature = "invalid_deferred_evm_deposit_authorization_signature"

	ReasonVoucherNotFound            = "invalid_deferred_evm_payload_voucher_not_found"
	ReasonVoucherFoundNotDuplicate   = "invalid_deferred_evm_payload_voucher_found_not_duplicate"
	ReasonVoucherNotDuplicate        = "invalid_deferred_evm_payload_voucher_not_duplicate"
	ReasonVoucherCouldNotSettleStore = "invalid_deferred_evm_payload_voucher_could_not_settle_store"
	ReasonVoucherErrorSettlingStore  = "invalid_deferred_evm_payload_voucher_error_settling_store"

	ReasonInsufficientFunds                    = "insufficient_funds"
	ReasonInsufficientFundsContractCallFailed  = "insufficient_funds_contract_call_failed"
	ReasonTransactionReverted                  = "invalid_transaction_reverted"
	ReasonTransactionState                     = "invalid_transaction_state"
	ReasonContractCallFailedOutstandingAmount  = "invalid_deferred_evm_contract_call_failed_outstanding_amount"
	ReasonContractCallFailedAccount            = "invalid_deferred_evm_contract_call_failed_account"
	ReasonContractCallFailedAccountDetails     = "invalid_deferred_evm_contract_call_failed_account_details"
)

// Result is the outcome of a single sub-verifier.
type Result struct {
	IsValid       bool
	InvalidReason string
	Payer         string
}

// Valid constructs a success result, optionally naming the payer for audit.
func Valid(payer string) Result {
	return Result{IsValid: true, Payer: payer}
}

// Invalid constructs a failure result carrying reason and the payer, when
// known, for audit.
func Invalid(reason string, payer string) Result {
	return Result{IsValid: false, InvalidReason: reason, Payer: payer}
}
