package records

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"pharmacy-service/internal/apperr"
	"pharmacy-service/internal/models"
	"pharmacy-service/internal/pricing"
	"pharmacy-service/internal/validate"
)

// Op distinguishes insert-time from update-time validation
type Op int

const (
	Insert Op = iota + 1
	Update
)

func (o Op) String() string {
	if o == Update {
		return "update"
	}
	return "insert"
}

// DefaultExpiryWindowDays is how far past today a new medicine must expire
const DefaultExpiryWindowDays = 30

// Lookup answers point existence queries against the persisted entities
type Lookup interface {
	Exists(ctx context.Context, entity models.Entity, id string) (bool, error)
}

// Validator carries what record validation needs beyond the raw fields
type Validator struct {
	Lookup           Lookup
	Now              func() time.Time
	ExpiryWindowDays int
}

func (v *Validator) now() time.Time {
	if v.Now == nil {
		return time.Now()
	}
	return v.Now()
}

func (v *Validator) expiryWindow() int {
	if v.ExpiryWindowDays <= 0 {
		return DefaultExpiryWindowDays
	}
	return v.ExpiryWindowDays
}

// Record holds the raw field values of one entity row and, once validated,
// their converted values.
type Record struct {
	schema    *Schema
	id        string
	raw       map[string]string
	values    map[string]any
	dates     map[string]time.Time
	policy    pricing.Policy
	validated Op
}

// New builds a record from user-supplied strings; values are trimmed
func New(schema *Schema, fields map[string]string) *Record {
	raw := make(map[string]string, len(fields))
	for k, v := range fields {
		raw[k] = strings.TrimSpace(v)
	}
	return &Record{
		schema: schema,
		id:     raw[schema.Key()],
		raw:    raw,
		policy: pricing.NoDiscount{},
	}
}

func (r *Record) Schema() *Schema { return r.schema }

func (r *Record) ID() string { return r.id }

// Raw returns the trimmed input for a column
func (r *Record) Raw(column string) string { return r.raw[column] }

// Value returns the converted value of a column after Validate
func (r *Record) Value(column string) any { return r.values[column] }

// WithDiscount sets the policy applied to a derived subtotal
func (r *Record) WithDiscount(p pricing.Policy) *Record {
	if p == nil {
		p = pricing.NoDiscount{}
	}
	r.policy = p
	r.validated = 0
	return r
}

func (r *Record) Discount() pricing.Policy { return r.policy }

// Subtotal computes quantity * price_per_unit with the discount applied once
func (r *Record) Subtotal() (float64, error) {
	qty, err := validate.Quantity("quantity", r.raw["quantity"])
	if err != nil {
		return 0, err
	}
	price, err := validate.Amount("price_per_unit", r.raw["price_per_unit"])
	if err != nil {
		return 0, err
	}
	return pricing.Round2(r.policy.Apply(float64(qty) * price)), nil
}

// Validate runs required, format, rule, reference and key checks in that order.
// The only I/O is the existence lookups.
func (r *Record) Validate(ctx context.Context, v *Validator, op Op) error {
	r.validated = 0
	r.values = make(map[string]any, len(r.schema.Fields)+len(r.schema.Derived)+1)
	r.dates = make(map[string]time.Time)

	key := r.schema.Key()
	if err := validate.Required(key, r.id); err != nil {
		return err
	}
	if err := validate.ID(r.schema.Entity, r.id); err != nil {
		return err
	}
	r.values[key] = r.id

	for _, f := range r.schema.Fields {
		value, err := r.convert(f, op)
		if err != nil {
			return err
		}
		r.values[f.Column] = value
	}

	for _, d := range r.schema.Derived {
		value, err := d.Compute(r)
		if err != nil {
			return err
		}
		r.values[d.Column] = value
	}

	for _, rule := range r.schema.Rules {
		if rule.Op != 0 && rule.Op != op {
			continue
		}
		if err := rule.Check(r, v); err != nil {
			return err
		}
	}

	if v.Lookup == nil {
		return apperr.New(apperr.KindInternal, "", "validator has no lookup")
	}

	for _, f := range r.schema.Fields {
		if f.Type != Reference {
			continue
		}
		id := r.raw[f.Column]
		ok, err := v.Lookup.Exists(ctx, f.Ref, id)
		if err != nil {
			return fmt.Errorf("failed to check %s %s: %w", f.Ref, id, err)
		}
		if !ok {
			return apperr.NotFound(f.Column, "%s ID %s does not exist", f.Ref, id)
		}
	}

	exists, err := v.Lookup.Exists(ctx, r.schema.Entity, r.id)
	if err != nil {
		return fmt.Errorf("failed to check %s %s: %w", r.schema.Entity, r.id, err)
	}
	switch {
	case op == Insert && exists:
		return apperr.Duplicate(key, "%s ID %s already exists", r.schema.Entity, r.id)
	case op == Update && !exists:
		return apperr.NotFound(key, "%s ID %s does not exist", r.schema.Entity, r.id)
	}

	r.validated = op
	return nil
}

func (r *Record) convert(f Field, op Op) (any, error) {
	raw := r.raw[f.Column]
	if err := validate.Required(f.Column, raw); err != nil {
		return nil, err
	}

	switch f.Type {
	case Phone:
		return raw, validate.Phone(f.Column, raw)
	case Email:
		return raw, validate.Email(f.Column, raw)
	case Date:
		t, err := validate.Date(f.Column, raw)
		if err != nil {
			return nil, err
		}
		r.dates[f.Column] = t
		return t.Format(models.StorageDateLayout), nil
	case Quantity:
		return validate.Quantity(f.Column, raw)
	case Stock:
		if op == Insert {
			return validate.Quantity(f.Column, raw)
		}
		return validate.Stock(f.Column, raw)
	case Amount:
		return validate.Amount(f.Column, raw)
	case BatchNumber:
		return raw, validate.BatchNumber(f.Column, raw)
	case PaymentMethod:
		return raw, validate.PaymentMethod(f.Column, raw)
	case Reference:
		if err := validate.ID(f.Ref, raw); err != nil {
			var ae *apperr.Error
			if errors.As(err, &ae) {
				return nil, apperr.Format(f.Column, "%s", ae.Message)
			}
			return nil, err
		}
		return raw, nil
	default:
		return raw, nil
	}
}

// InsertStatement returns INSERT INTO t (cols) VALUES (?, ...) for a record
// validated for insert.
func (r *Record) InsertStatement() (Statement, error) {
	if r.validated != Insert {
		return Statement{}, apperr.New(apperr.KindInternal, "", "%s %s has not been validated for insert", r.schema.Entity, r.id)
	}
	cols := r.schema.Columns()
	args := make([]any, len(cols))
	for i, c := range cols {
		args[i] = r.values[c]
	}
	return Statement{
		Query: fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", r.schema.Table(), strings.Join(cols, ", "), placeholders(len(cols))),
		Args:  args,
	}, nil
}

// UpdateStatement returns UPDATE t SET c = ?, ... WHERE key = ? for a record
// validated for update. The key itself is never changed.
func (r *Record) UpdateStatement() (Statement, error) {
	if r.validated != Update {
		return Statement{}, apperr.New(apperr.KindInternal, "", "%s %s has not been validated for update", r.schema.Entity, r.id)
	}
	cols := r.schema.Columns()[1:]
	sets := make([]string, len(cols))
	args := make([]any, 0, len(cols)+1)
	for i, c := range cols {
		sets[i] = c + " = ?"
		args = append(args, r.values[c])
	}
	args = append(args, r.id)
	return Statement{
		Query: fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?", r.schema.Table(), strings.Join(sets, ", "), r.schema.Key()),
		Args:  args,
	}, nil
}
