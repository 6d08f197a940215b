package eip712

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

var eip712DomainType = []TypedDataField{
	{Name: "name", Type: "string"},
	{Name: "version", Type: "string"},
	{Name: "chainId", Type: "uint256"},
	{Name: "verifyingContract", Type: "address"},
}

// HashTypedData computes the EIP-712 digest
// keccak256("\x19\x01" + domainSeparator + structHash) for an arbitrary
// typed-data message.
func HashTypedData(
	domain TypedDataDomain,
	types map[string][]TypedDataField,
	primaryType string,
	message map[string]interface{},
) ([]byte, error) {
	typedData := apitypes.TypedData{
		Types:       make(apitypes.Types),
		PrimaryType: primaryType,
		Domain: apitypes.TypedDataDomain{
			Name:              domain.Name,
			Version:           domain.Version,
			ChainId:           (*math.HexOrDecimal256)(domain.ChainID),
			VerifyingContract: domain.VerifyingContract,
		},
		Message: message,
	}

	for typeName, fields := range types {
		typedFields := make([]apitypes.Type, len(fields))
		for i, f := range fields {
			typedFields[i] = apitypes.Type{Name: f.Name, Type: f.Type}
		}
		typedData.Types[typeName] = typedFields
	}
	if _, exists := typedData.Types["EIP712Domain"]; !exists {
		domainFields := make([]apitypes.Type, len(eip712DomainType))
		for i, f := range eip712DomainType {
			domainFields[i] = apitypes.Type{Name: f.Name, Type: f.Type}
		}
		typedData.Types["EIP712Domain"] = domainFields
	}

	dataHash, err := typedData.HashStruct(typedData.PrimaryType, typedData.Message)
	if err != nil {
		return nil, fmt.Errorf("failed to hash struct: %w", err)
	}
	domainSeparator, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	if err != nil {
		return nil, fmt.Errorf("failed to hash domain: %w", err)
	}

	rawData := []byte{0x19, 0x01}
	rawData = append(rawData, domainSeparator...)
	rawData = append(rawData, dataHash...)
	return crypto.Keccak256(rawData), nil
}

// VoucherTypes is the EIP-712 type set for the Voucher primary type.
var VoucherTypes = map[string][]TypedDataField{
	"Voucher": {
		{Name: "id", Type: "bytes32"},
		{Name: "buyer", Type: "address"},
		{Name: "seller", Type: "address"},
		{Name: "valueAggregate", Type: "uint256"},
		{Name: "asset", Type: "address"},
		{Name: "timestamp", Type: "uint64"},
		{Name: "nonce", Type: "uint256"},
		{Name: "escrow", Type: "address"},
		{Name: "chainId", Type: "uint256"},
		{Name: "expiry", Type: "uint64"},
	},
}

// PermitTypes is the EIP-712 type set for the EIP-2612 Permit primary type.
var PermitTypes = map[string][]TypedDataField{
	"Permit": {
		{Name: "owner", Type: "address"},
		{Name: "spender", Type: "address"},
		{Name: "value", Type: "uint256"},
		{Name: "nonce", Type: "uint256"},
		{Name: "deadline", Type: "uint256"},
	},
}

// DepositAuthorizationTypes is the EIP-712 type set for DepositAuthorization.
var DepositAuthorizationTypes = map[string][]TypedDataField{
	"DepositAuthorization": {
		{Name: "buyer", Type: "address"},
		{Name: "seller", Type: "address"},
		{Name: "asset", Type: "address"},
		{Name: "amount", Type: "uint256"},
		{Name: "nonce", Type: "bytes32"},
		{Name: "expiry", Type: "uint64"},
	},
}

// FlushAuthorizationTypes is the EIP-712 type set for a targeted flush.
var FlushAuthorizationTypes = map[string][]TypedDataField{
	"FlushAuthorization": {
		{Name: "buyer", Type: "address"},
		{Name: "seller", Type: "address"},
		{Name: "asset", Type: "address"},
		{Name: "nonce", Type: "bytes32"},
		{Name: "expiry", Type: "uint64"},
	},
}

// FlushAllAuthorizationTypes is the EIP-712 type set for a flush-all.
var FlushAllAuthorizationTypes = map[string][]TypedDataField{
	"FlushAllAuthorization": {
		{Name: "buyer", Type: "address"},
		{Name: "nonce", Type: "bytes32"},
		{Name: "expiry", Type: "uint64"},
	},
}
