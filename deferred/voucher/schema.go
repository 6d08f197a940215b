package voucher

import (
	"encoding/json"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// paymentPayloadSchema is the first-pass wire-shape gate for a deferred
// PaymentPayload, run before any field-level semantic validation. It only
// constrains the JSON shape (required keys, types); value-level invariants
// (continuity, checksum equality, expiry) are the verifier's job.
const paymentPayloadSchema = `{
  "type": "object",
  "required": ["x402Version", "scheme", "network", "payload"],
  "properties": {
    "x402Version": {"type": "integer"},
    "scheme": {"type": "string"},
    "network": {"type": "string"},
    "payload": {
      "type": "object",
      "required": ["signature", "voucher"],
      "properties": {
        "signature": {"type": "string"},
        "voucher": {
          "type": "object",
          "required": ["id", "buyer", "seller", "valueAggregate", "asset", "timestamp", "nonce", "escrow", "chainId", "expiry"]
        },
        "depositAuthorization": {
          "type": "object",
          "required": ["depositAuthorization"]
        }
      }
    }
  }
}`

var paymentPayloadSchemaLoader = gojsonschema.NewStringLoader(paymentPayloadSchema)

// ValidateWireShape runs the first-pass schema gate against raw JSON bytes,
// returning a SchemaViolation naming the first offending field.
func ValidateWireShape(raw []byte) error {
	documentLoader := gojsonschema.NewBytesLoader(raw)
	result, err := gojsonschema.Validate(paymentPayloadSchemaLoader, documentLoader)
	if err != nil {
		return NewSchemaViolation("payload", "malformed JSON: "+err.Error())
	}
	if result.Valid() {
		return nil
	}
	descs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		descs = append(descs, e.Context().String()+": "+e.Description())
	}
	return NewSchemaViolation("payload", strings.Join(descs, "; "))
}

// DecodeAndValidateShape unmarshals raw into a PaymentPayload only after it
// passes ValidateWireShape.
func DecodeAndValidateShape(raw []byte) (*PaymentPayload, error) {
	if err := ValidateWireShape(raw); err != nil {
		return nil, err
	}
	var p PaymentPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, NewSchemaViolation("payload", err.Error())
	}
	return &p, nil
}
