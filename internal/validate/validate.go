package validate

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"pharmacy-service/internal/apperr"
	"pharmacy-service/internal/models"
)

var (
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9_.+-]+@[a-zA-Z0-9-]+\.[a-zA-Z0-9-.]+$`)
	datePattern  = regexp.MustCompile(`^\d{2}-[A-Za-z]{3}-\d{2}$`)
	batchPattern = regexp.MustCompile(`^BATCH\d{3}$`)

	idPatterns = map[models.Entity]*regexp.Regexp{}
)

// PaymentMethods accepted on a sale
var PaymentMethods = []string{"Cash", "Credit Card", "Debit Card", "Online", "UPI"}

// PasswordSymbols is the set a password must draw at least one symbol from
const PasswordSymbols = "!@#$%^&*()_+"

func init() {
	for _, e := range models.Entities {
		idPatterns[e] = regexp.MustCompile(`^` + e.Prefix() + `\d{3}$`)
	}
}

// ID checks that value is the entity's prefix followed by exactly three digits
func ID(entity models.Entity, value string) error {
	pattern, ok := idPatterns[entity]
	if !ok {
		return apperr.Format("entity", "unknown entity %q", entity)
	}
	if !pattern.MatchString(value) {
		return apperr.Format(entity.KeyColumn(),
			"invalid %s ID %q: must be %q followed by three digits", entity, value, entity.Prefix())
	}
	return nil
}

// Required rejects blank values
func Required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return apperr.Format(field, "is required")
	}
	return nil
}

// Phone accepts exactly ten digits not starting with 0
func Phone(field, value string) error {
	if len(value) != 10 || value[0] == '0' {
		return apperr.Format(field, "invalid mobile number %q", value)
	}
	for i := 0; i < len(value); i++ {
		if value[i] < '0' || value[i] > '9' {
			return apperr.Format(field, "invalid mobile number %q", value)
		}
	}
	return nil
}

// Email applies a deliberately permissive local@domain.tld shape
func Email(field, value string) error {
	if !emailPattern.MatchString(value) {
		return apperr.Format(field, "invalid email %q", value)
	}
	return nil
}

// Date parses a DD-Mon-YY date, rejecting impossible calendar days
func Date(field, value string) (time.Time, error) {
	if !datePattern.MatchString(value) {
		return time.Time{}, apperr.Format(field, "invalid date %q: expected DD-Mon-YY", value)
	}
	t, err := time.Parse(models.DisplayDateLayout, value)
	if err != nil {
		return time.Time{}, apperr.Format(field, "invalid date %q: not a calendar date", value)
	}
	return t, nil
}

// Quantity parses a strictly positive integer
func Quantity(field, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, apperr.Format(field, "%q is not an integer", value)
	}
	if n <= 0 {
		return 0, apperr.Constraint(field, "must be greater than 0, got %d", n)
	}
	return n, nil
}

// Stock parses a non-negative integer
func Stock(field, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, apperr.Format(field, "%q is not an integer", value)
	}
	if n < 0 {
		return 0, apperr.Constraint(field, "must not be negative, got %d", n)
	}
	return n, nil
}

// Amount parses a non-negative decimal such as a price or a sale total
func Amount(field, value string) (float64, error) {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, apperr.Format(field, "%q is not a number", value)
	}
	if f < 0 {
		return 0, apperr.Constraint(field, "must not be negative, got %v", f)
	}
	return f, nil
}

// BatchNumber accepts BATCH followed by three digits
func BatchNumber(field, value string) error {
	if !batchPattern.MatchString(value) {
		return apperr.Format(field, "invalid batch number %q: must be \"BATCH\" followed by three digits", value)
	}
	return nil
}

// PaymentMethod accepts one of PaymentMethods
func PaymentMethod(field, value string) error {
	for _, m := range PaymentMethods {
		if value == m {
			return nil
		}
	}
	return apperr.Format(field, "invalid payment method %q: choose from %s", value, strings.Join(PaymentMethods, ", "))
}

// ExpiryAfter requires expiry to fall strictly after today plus days
func ExpiryAfter(field string, expiry, now time.Time, days int) error {
	today := models.NewDate(now).Time
	limit := today.AddDate(0, 0, days)
	if !models.NewDate(expiry).After(limit) {
		return apperr.Constraint(field, "expiry date %s is within %d days from today", expiry.Format(models.DisplayDateLayout), days)
	}
	return nil
}

// PasswordStrength requires at least 8 characters with upper, lower, digit and symbol
func PasswordStrength(password string) error {
	var upper, lower, digit, symbol bool
	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= '0' && r <= '9':
			digit = true
		case strings.ContainsRune(PasswordSymbols, r):
			symbol = true
		}
	}
	if len(password) < 8 || !upper || !lower || !digit || !symbol {
		return apperr.Constraint("password",
			"must be at least 8 characters long and contain uppercase, lowercase, a digit and one of %s", PasswordSymbols)
	}
	return nil
}
