package voucher

import (
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

var (
	hexAddressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
	hex32Pattern      = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)
)

// IsValidAddress reports whether s is a syntactically valid 20-byte hex address.
func IsValidAddress(s string) bool {
	return hexAddressPattern.MatchString(s)
}

// IsValid32ByteHex reports whether s is a syntactically valid 32-byte hex string.
func IsValid32ByteHex(s string) bool {
	return hex32Pattern.MatchString(s)
}

// NormalizeAddress checksum-normalizes an EVM address per EIP-55.
func NormalizeAddress(s string) string {
	return common.HexToAddress(s).Hex()
}

// AddressesEqual compares two addresses via checksum normalization, never
// raw hex string equality.
func AddressesEqual(a, b string) bool {
	return common.HexToAddress(a) == common.HexToAddress(b)
}

// Normalize32ByteHex lower-cases a 32-byte hex string for case-insensitive
// comparisons of voucher ids, deposit/flush nonces, and signatures.
func Normalize32ByteHex(s string) string {
	return strings.ToLower(s)
}

// HexEqual compares two hex strings case-insensitively.
func HexEqual(a, b string) bool {
	return strings.EqualFold(a, b)
}
