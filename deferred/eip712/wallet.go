package eip712

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ClientWallet is the capability set a buyer-side signer must provide:
// its address and the ability to sign EIP-712 typed data. Implementations
// may wrap an in-process keypair or a remote wallet RPC.
type ClientWallet interface {
	Address() string
	SignTypedData(ctx context.Context, domain TypedDataDomain, types map[string][]TypedDataField, primaryType string, message map[string]interface{}) ([]byte, error)
}

// ErrUnsupportedWallet is returned when a wallet lacks typed-data signing.
var ErrUnsupportedWallet = fmt.Errorf("wallet does not support EIP-712 typed-data signing")

// Sign signs an arbitrary typed-data message with wallet and returns the
// raw signature bytes.
func Sign(ctx context.Context, wallet ClientWallet, domain TypedDataDomain, types map[string][]TypedDataField, primaryType string, message map[string]interface{}) ([]byte, error) {
	if wallet == nil {
		return nil, ErrUnsupportedWallet
	}
	return wallet.SignTypedData(ctx, domain, types, primaryType, message)
}

// Verify recovers the signer of an EIP-712 digest and compares it
// (checksum-normalized) against expectedAddress.
func Verify(domain TypedDataDomain, types map[string][]TypedDataField, primaryType string, message map[string]interface{}, signature []byte, expectedAddress string) (bool, error) {
	digest, err := HashTypedData(domain, types, primaryType, message)
	if err != nil {
		return false, err
	}
	recovered, err := RecoverAddress(digest, signature)
	if err != nil {
		return false, err
	}
	return common.HexToAddress(recovered) == common.HexToAddress(expectedAddress), nil
}

// RecoverAddress recovers the signing address from a 65-byte EIP-712
// signature over digest.
func RecoverAddress(digest []byte, signature []byte) (string, error) {
	if len(signature) != 65 {
		return "", fmt.Errorf("signature must be 65 bytes, got %d", len(signature))
	}
	sig := make([]byte, 65)
	copy(sig, signature)
	// crypto.SigToPub expects v in {0,1}; typed-data signers emit {27,28}.
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	pubKey, err := crypto.SigToPub(digest, sig)
	if err != nil {
		return "", fmt.Errorf("failed to recover public key: %w", err)
	}
	return crypto.PubkeyToAddress(*pubKey).Hex(), nil
}
