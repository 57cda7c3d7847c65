package records

import (
	"fmt"
	"strings"

	"pharmacy-service/internal/models"
	"pharmacy-service/internal/validate"
)

// FieldType selects the validator and conversion applied to a raw field value
type FieldType int

const (
	Text FieldType = iota
	Phone
	Email
	Date
	Quantity
	Stock
	Amount
	BatchNumber
	PaymentMethod
	Reference
)

// Field describes one non-key column
type Field struct {
	Column string
	Type   FieldType
	// Ref is the referenced entity for Reference fields
	Ref models.Entity
}

// Derived is a column computed from validated fields rather than supplied
type Derived struct {
	Column  string
	Compute func(r *Record) (any, error)
}

// Rule is a record-level check that runs after field validation
type Rule struct {
	Name  string
	Op    Op
	Check func(r *Record, v *Validator) error
}

// Schema describes an entity: its key, fields, derived columns and rules
type Schema struct {
	Entity  models.Entity
	Fields  []Field
	Derived []Derived
	Rules   []Rule
}

// Statement is a parameterized SQL statement with ? placeholders
type Statement struct {
	Query string
	Args  []any
}

func (s *Schema) Table() string { return s.Entity.Table() }

func (s *Schema) Key() string { return s.Entity.KeyColumn() }

// Columns returns key, declared and derived columns in persistence order
func (s *Schema) Columns() []string {
	cols := make([]string, 0, 1+len(s.Fields)+len(s.Derived))
	cols = append(cols, s.Key())
	for _, f := range s.Fields {
		cols = append(cols, f.Column)
	}
	for _, d := range s.Derived {
		cols = append(cols, d.Column)
	}
	return cols
}

// ExistsStatement is the point lookup used for key and reference checks
func (s *Schema) ExistsStatement(id string) Statement {
	return Statement{
		Query: fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?", s.Key(), s.Table(), s.Key()),
		Args:  []any{id},
	}
}

// DeleteStatement deletes one row by key
func (s *Schema) DeleteStatement(id string) Statement {
	return Statement{
		Query: fmt.Sprintf("DELETE FROM %s WHERE %s = ?", s.Table(), s.Key()),
		Args:  []any{id},
	}
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

var (
	Supplier = &Schema{
		Entity: models.EntitySupplier,
		Fields: []Field{
			{Column: "s_name", Type: Text},
			{Column: "contact_number", Type: Phone},
			{Column: "email", Type: Email},
			{Column: "address", Type: Text},
		},
	}

	Medicine = &Schema{
		Entity: models.EntityMedicine,
		Fields: []Field{
			{Column: "m_name", Type: Text},
			{Column: "brand", Type: Text},
			{Column: "batch_number", Type: BatchNumber},
			{Column: "expiry_date", Type: Date},
			{Column: "quantity", Type: Stock},
			{Column: "price", Type: Amount},
			{Column: "supplier_id", Type: Reference, Ref: models.EntitySupplier},
		},
		Rules: []Rule{
			{Name: "expiry_window", Op: Insert, Check: checkExpiryWindow},
		},
	}

	Customer = &Schema{
		Entity: models.EntityCustomer,
		Fields: []Field{
			{Column: "c_name", Type: Text},
			{Column: "contact_number", Type: Phone},
			{Column: "email", Type: Email},
			{Column: "address", Type: Text},
		},
	}

	Prescription = &Schema{
		Entity: models.EntityPrescription,
		Fields: []Field{
			{Column: "customer_id", Type: Reference, Ref: models.EntityCustomer},
			{Column: "doctor_name", Type: Text},
			{Column: "prescription_date", Type: Date},
			{Column: "dosage", Type: Text},
			{Column: "frequency", Type: Text},
			{Column: "duration", Type: Text},
			{Column: "additional_instructions", Type: Text},
		},
	}

	Sale = &Schema{
		Entity: models.EntitySale,
		Fields: []Field{
			{Column: "customer_id", Type: Reference, Ref: models.EntityCustomer},
			{Column: "sale_date", Type: Date},
			{Column: "total_amount", Type: Amount},
			{Column: "payment_method", Type: PaymentMethod},
		},
	}

	SaleItem = &Schema{
		Entity: models.EntitySaleItem,
		Fields: []Field{
			{Column: "sale_id", Type: Reference, Ref: models.EntitySale},
			{Column: "medicine_id", Type: Reference, Ref: models.EntityMedicine},
			{Column: "quantity", Type: Quantity},
			{Column: "price_per_unit", Type: Amount},
		},
		Derived: []Derived{
			{Column: "subtotal", Compute: func(r *Record) (any, error) { return r.Subtotal() }},
		},
	}
)

var schemas = map[models.Entity]*Schema{
	models.EntitySupplier:     Supplier,
	models.EntityMedicine:     Medicine,
	models.EntityCustomer:     Customer,
	models.EntityPrescription: Prescription,
	models.EntitySale:         Sale,
	models.EntitySaleItem:     SaleItem,
}

// For returns the schema of an entity
func For(entity models.Entity) (*Schema, bool) {
	s, ok := schemas[entity]
	return s, ok
}

func checkExpiryWindow(r *Record, v *Validator) error {
	return validate.ExpiryAfter("expiry_date", r.dates["expiry_date"], v.now(), v.expiryWindow())
}
