package voucher

// ValidateVoucher checks every field-level constraint from the data model:
// hex shapes, non-negative integers, and field presence. It does not check
// cross-voucher continuity or signatures; that is the verifier's job.
func ValidateVoucher(v Voucher) error {
	if !IsValid32ByteHex(v.ID) {
		return NewSchemaViolation("id", "must be a 32-byte hex string")
	}
	if !IsValidAddress(v.Buyer) {
		return NewSchemaViolation("buyer", "must be a 20-byte hex address")
	}
	if !IsValidAddress(v.Seller) {
		return NewSchemaViolation("seller", "must be a 20-byte hex address")
	}
	if !IsValidAddress(v.Asset) {
		return NewSchemaViolation("asset", "must be a 20-byte hex address")
	}
	if !IsValidAddress(v.Escrow) {
		return NewSchemaViolation("escrow", "must be a 20-byte hex address")
	}
	if v.ValueAggregate == nil || v.ValueAggregate.Sign() < 0 {
		return NewSchemaViolation("valueAggregate", "must be a non-negative integer")
	}
	if v.Nonce == nil || v.Nonce.Sign() < 0 {
		return NewSchemaViolation("nonce", "must be a non-negative integer")
	}
	if v.ChainID == nil || v.ChainID.Sign() < 0 {
		return NewSchemaViolation("chainId", "must be a non-negative integer")
	}
	return nil
}

// ValidateSignedVoucher validates the embedded voucher and requires a
// signature of plausible length (65 bytes, hex-tolerant of longer
// encodings per the spec's "65-byte (or longer-hex-tolerant)" wording).
func ValidateSignedVoucher(sv SignedVoucher) error {
	if err := ValidateVoucher(sv.Voucher); err != nil {
		return err
	}
	if len(sv.Signature) < len("0x")+2*65 {
		return NewSchemaViolation("signature", "must be at least a 65-byte hex signature")
	}
	return nil
}

// ValidateDepositAuthorization checks field-level shape of a deposit
// authorization and its optional permit.
func ValidateDepositAuthorization(d DepositAuthorizationPayload) error {
	da := d.DepositAuthorization
	if !IsValidAddress(da.Buyer) {
		return NewSchemaViolation("depositAuthorization.buyer", "must be a 20-byte hex address")
	}
	if !IsValidAddress(da.Seller) {
		return NewSchemaViolation("depositAuthorization.seller", "must be a 20-byte hex address")
	}
	if !IsValidAddress(da.Asset) {
		return NewSchemaViolation("depositAuthorization.asset", "must be a 20-byte hex address")
	}
	if da.Amount == nil || da.Amount.Sign() < 0 {
		return NewSchemaViolation("depositAuthorization.amount", "must be a non-negative integer")
	}
	if !IsValid32ByteHex(da.Nonce) {
		return NewSchemaViolation("depositAuthorization.nonce", "must be a 32-byte hex string")
	}
	if d.Permit != nil {
		p := d.Permit
		if !IsValidAddress(p.Owner) {
			return NewSchemaViolation("permit.owner", "must be a 20-byte hex address")
		}
		if !IsValidAddress(p.Spender) {
			return NewSchemaViolation("permit.spender", "must be a 20-byte hex address")
		}
		if p.Value == nil || p.Value.Sign() < 0 {
			return NewSchemaViolation("permit.value", "must be a non-negative integer")
		}
		if p.Nonce == nil || p.Nonce.Sign() < 0 {
			return NewSchemaViolation("permit.nonce", "must be a non-negative integer")
		}
	}
	return nil
}

// ValidateFlushAuthorization checks field-level shape. The seller/asset
// presence pair (both-or-neither) determines targeted vs. flush-all.
func ValidateFlushAuthorization(f FlushAuthorization) error {
	if !IsValidAddress(f.Buyer) {
		return NewSchemaViolation("flushAuthorization.buyer", "must be a 20-byte hex address")
	}
	if (f.Seller == nil) != (f.Asset == nil) {
		return NewSchemaViolation("flushAuthorization", "seller and asset must both be present (targeted) or both absent (flush-all)")
	}
	if f.Seller != nil && !IsValidAddress(*f.Seller) {
		return NewSchemaViolation("flushAuthorization.seller", "must be a 20-byte hex address")
	}
	if f.Asset != nil && !IsValidAddress(*f.Asset) {
		return NewSchemaViolation("flushAuthorization.asset", "must be a 20-byte hex address")
	}
	if !IsValid32ByteHex(f.Nonce) {
		return NewSchemaViolation("flushAuthorization.nonce", "must be a 32-byte hex string")
	}
	return nil
}
