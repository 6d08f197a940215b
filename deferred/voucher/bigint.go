package voucher

import (
	"encoding/json"
	"fmt"
	"math/big"
	"regexp"
)

// MaxDecimalDigits bounds the width of any amount/nonce/chainId that rides
// the wire as a decimal string. 2^256-1 has 78 digits; this is the widest
// value the escrow contract's uint256 fields can ever hold.
const MaxDecimalDigits = 78

var decimalPattern = regexp.MustCompile(`^[0-9]+$`)

// BigInt is a non-negative arbitrary-precision integer that marshals to and
// from a decimal string, never a JSON number, so it survives round trips
// through environments without native 256-bit integers.
type BigInt struct {
	big.Int
}

// NewBigInt wraps an int64 as a BigInt.
func NewBigInt(v int64) *BigInt {
	b := &BigInt{}
	b.SetInt64(v)
	return b
}

// ParseBigInt parses a decimal string, rejecting negative values, non-digit
// characters, and strings wider than MaxDecimalDigits.
func ParseBigInt(s string) (*BigInt, error) {
	if s == "" {
		return nil, fmt.Errorf("empty integer string")
	}
	if len(s) > MaxDecimalDigits {
		return nil, fmt.Errorf("integer string exceeds %d digits: %q", MaxDecimalDigits, s)
	}
	if !decimalPattern.MatchString(s) {
		return nil, fmt.Errorf("not a non-negative integer string: %q", s)
	}
	i, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid integer string: %q", s)
	}
	return &BigInt{Int: *i}, nil
}

// Cmp returns -1, 0, or 1 comparing b to o.
func (b *BigInt) Cmp(o *BigInt) int {
	return b.Int.Cmp(&o.Int)
}

// Add returns b+o as a new BigInt.
func (b *BigInt) Add(o *BigInt) *BigInt {
	r := &BigInt{}
	r.Int.Add(&b.Int, &o.Int)
	return r
}

// Sign returns -1, 0, or 1 depending on the sign of b.
func (b *BigInt) Sign() int {
	return b.Int.Sign()
}

func (b BigInt) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.Int.String())
}

func (b *BigInt) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("valueAggregate/nonce/chainId must be a decimal string: %w", err)
	}
	parsed, err := ParseBigInt(s)
	if err != nil {
		return err
	}
	b.Int = parsed.Int
	return nil
}
