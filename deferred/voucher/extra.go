package voucher

import (
	"encoding/json"
	"fmt"
)

// ExtraKind discriminates the two PaymentRequirements.Extra variants.
type ExtraKind string

const (
	ExtraNew         ExtraKind = "new"
	ExtraAggregation ExtraKind = "aggregation"
)

// VoucherRef names the id/escrow pair a buyer must mint a nonce-0 voucher
// against. It carries no other voucher fields.
type VoucherRef struct {
	ID     string `json:"id"`
	Escrow string `json:"escrow"`
}

// Extra is the sum type of the two PaymentRequirements.Extra variants.
// Switch on Kind; exactly one of New/Aggregation is populated per Kind.
type Extra struct {
	Kind        ExtraKind
	New         *VoucherRef
	Aggregation *AggregationExtra
	Account     *AccountSnapshot
}

// AggregationExtra is the extra.type=="aggregation" payload: the prior
// signed voucher the buyer must build the next one on top of.
type AggregationExtra struct {
	Signature string
	Voucher   Voucher
}

// NewExtra builds an extra.type=="new" value.
func NewExtra(ref VoucherRef, account *AccountSnapshot) Extra {
	return Extra{Kind: ExtraNew, New: &ref, Account: account}
}

// NewAggregationExtra builds an extra.type=="aggregation" value.
func NewAggregationExtra(prior SignedVoucher, account *AccountSnapshot) Extra {
	return Extra{
		Kind:        ExtraAggregation,
		Aggregation: &AggregationExtra{Signature: prior.Signature, Voucher: prior.Voucher},
		Account:     account,
	}
}

// RequirementsExtra is the JSON-serializable wrapper around Extra; it exists
// only so PaymentRequirements.Extra can carry (un)marshal logic without
// every caller re-deriving the tagged-union wire shape.
type RequirementsExtra struct {
	Extra
}

type extraWire struct {
	Type      ExtraKind        `json:"type"`
	Voucher   *json.RawMessage `json:"voucher,omitempty"`
	Signature string           `json:"signature,omitempty"`
	Account   *AccountSnapshot `json:"account,omitempty"`
}

func (e RequirementsExtra) MarshalJSON() ([]byte, error) {
	switch e.Kind {
	case ExtraNew:
		if e.New == nil {
			return nil, fmt.Errorf("extra.type=new with nil voucher ref")
		}
		raw, err := json.Marshal(e.New)
		if err != nil {
			return nil, err
		}
		rm := json.RawMessage(raw)
		return json.Marshal(extraWire{Type: ExtraNew, Voucher: &rm, Account: e.Account})
	case ExtraAggregation:
		if e.Aggregation == nil {
			return nil, fmt.Errorf("extra.type=aggregation with nil aggregation payload")
		}
		raw, err := json.Marshal(e.Aggregation.Voucher)
		if err != nil {
			return nil, err
		}
		rm := json.RawMessage(raw)
		return json.Marshal(extraWire{
			Type:      ExtraAggregation,
			Voucher:   &rm,
			Signature: e.Aggregation.Signature,
			Account:   e.Account,
		})
	default:
		return nil, fmt.Errorf("unknown extra.type %q", e.Kind)
	}
}

func (e *RequirementsExtra) UnmarshalJSON(data []byte) error {
	var w extraWire
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("malformed requirements extra: %w", err)
	}
	switch w.Type {
	case ExtraNew:
		if w.Voucher == nil {
			return fmt.Errorf("extra.type=new missing voucher")
		}
		var ref VoucherRef
		if err := json.Unmarshal(*w.Voucher, &ref); err != nil {
			return fmt.Errorf("extra.type=new malformed voucher ref: %w", err)
		}
		e.Extra = NewExtra(ref, w.Account)
		return nil
	case ExtraAggregation:
		if w.Voucher == nil {
			return fmt.Errorf("extra.type=aggregation missing voucher")
		}
		var v Voucher
		if err := json.Unmarshal(*w.Voucher, &v); err != nil {
			return fmt.Errorf("extra.type=aggregation malformed voucher: %w", err)
		}
		e.Extra = NewAggregationExtra(SignedVoucher{Voucher: v, Signature: w.Signature}, w.Account)
		return nil
	default:
		return fmt.Errorf("unsupported extra.type %q", w.Type)
	}
}
