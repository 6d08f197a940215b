package voucher

import "fmt"

// SchemaViolation is returned by the type & schema layer whenever a wire
// object fails a shape or field constraint before any semantic verification
// runs.
type SchemaViolation struct {
	Field  string
	Reason string
}

func (e *SchemaViolation) Error() string {
	return fmt.Sprintf("schema violation on %s: %s", e.Field, e.Reason)
}

// NewSchemaViolation constructs a SchemaViolation.
func NewSchemaViolation(field, reason string) *SchemaViolation {
	return &SchemaViolation{Field: field, Reason: reason}
}
