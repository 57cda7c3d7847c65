package pricing

import (
	"math"
	"strings"

	"pharmacy-service/internal/apperr"
)

// Policy adjusts a computed subtotal before it is persisted
type Policy interface {
	Apply(subtotal float64) float64
	Name() string
}

// NoDiscount leaves the subtotal unchanged
type NoDiscount struct{}

func (NoDiscount) Apply(subtotal float64) float64 { return subtotal }
func (NoDiscount) Name() string                   { return "NoDiscount" }

// SeasonalDiscount takes 10% off
type SeasonalDiscount struct{}

func (SeasonalDiscount) Apply(subtotal float64) float64 { return subtotal * 0.9 }
func (SeasonalDiscount) Name() string                   { return "SeasonalDiscount" }

// FirstTimeBuyerDiscount takes 20% off. The operator selects it; purchase
// history is not consulted.
type FirstTimeBuyerDiscount struct{}

func (FirstTimeBuyerDiscount) Apply(subtotal float64) float64 { return subtotal * 0.8 }
func (FirstTimeBuyerDiscount) Name() string                   { return "FirstTimeBuyerDiscount" }

var policies = []Policy{NoDiscount{}, SeasonalDiscount{}, FirstTimeBuyerDiscount{}}

// Names lists the selectable policy names
func Names() []string {
	names := make([]string, len(policies))
	for i, p := range policies {
		names[i] = p.Name()
	}
	return names
}

// Parse selects a policy by name; an empty name means NoDiscount
func Parse(name string) (Policy, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return NoDiscount{}, nil
	}
	for _, p := range policies {
		if strings.EqualFold(p.Name(), name) {
			return p, nil
		}
	}
	return nil, apperr.Format("discount", "unknown discount %q: choose from %s", name, strings.Join(Names(), ", "))
}

// Round2 rounds a money amount to cents
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
