// Package wire implements the base64-JSON codec for the X-PAYMENT and
// X-PAYMENT-RESPONSE headers (X-BUYER is a plain address and only its
// header name is defined here), with strict parse-back
// validation and big-integer decimal-string discipline inherited from the
// voucher package's types.
package wire

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/x402-foundation/x402-deferred/deferred/voucher"
)

// Header names used verbatim on the wire.
const (
	HeaderPayment         = "X-PAYMENT"
	HeaderBuyer           = "X-BUYER"
	HeaderPaymentResponse = "X-PAYMENT-RESPONSE"
)

var base64Pattern = regexp.MustCompile(`^[A-Za-z0-9+/]+={0,2}$`)

// EncodePaymentPayload validates p against the wire schema, marshals it to
// canonical JSON, and base64-encodes the result for the X-PAYMENT header.
func EncodePaymentPayload(p voucher.PaymentPayload) (string, error) {
	if err := validatePayload(p); err != nil {
		return "", err
	}
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payment payload: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// DecodePaymentPayload reverses EncodePaymentPayload, rejecting any shape
// that doesn't strictly re-parse: unknown fields, missing required fields,
// or malformed base64 all fail.
func DecodePaymentPayload(encoded string) (*voucher.PaymentPayload, error) {
	if !base64Pattern.MatchString(encoded) {
		return nil, voucher.NewSchemaViolation("payload", "not valid base64")
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, voucher.NewSchemaViolation("payload", "base64 decode failed: "+err.Error())
	}
	if err := voucher.ValidateWireShape(raw); err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	var p voucher.PaymentPayload
	if err := dec.Decode(&p); err != nil {
		return nil, voucher.NewSchemaViolation("payload", "strict re-parse failed: "+err.Error())
	}
	if err := validatePayload(p); err != nil {
		return nil, err
	}
	return &p, nil
}

func validatePayload(p voucher.PaymentPayload) error {
	if p.Scheme != voucher.Scheme {
		return voucher.NewSchemaViolation("scheme", fmt.Sprintf("expected %q, got %q", voucher.Scheme, p.Scheme))
	}
	sv := voucher.SignedVoucher{Voucher: p.Payload.Voucher, Signature: p.Payload.Signature}
	if err := voucher.ValidateSignedVoucher(sv); err != nil {
		return err
	}
	if p.Payload.DepositAuthorization != nil {
		if err := voucher.ValidateDepositAuthorization(*p.Payload.DepositAuthorization); err != nil {
			return err
		}
	}
	return nil
}

// SettleResponse is the deferred-scheme settlement result carried in the
// X-PAYMENT-RESPONSE header.
type SettleResponse struct {
	Success     bool   `json:"success"`
	ErrorReason string `json:"errorReason,omitempty"`
	Payer       string `json:"payer,omitempty"`
	Transaction string `json:"transaction"`
	Network     string `json:"network"`
}

// EncodeSettleResponse base64-encodes a settlement response for the
// X-PAYMENT-RESPONSE header.
func EncodeSettleResponse(r SettleResponse) (string, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("failed to marshal settle response: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// DecodeSettleResponse reverses EncodeSettleResponse.
func DecodeSettleResponse(encoded string) (*SettleResponse, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("base64 decode failed: %w", err)
	}
	var r SettleResponse
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("failed to unmarshal settle response: %w", err)
	}
	return &r, nil
}
