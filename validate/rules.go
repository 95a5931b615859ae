package validate

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/siphon-data/siphon/stream"
)

// Rule is one business check with its severity from the per-rule table.
// Check returns ok=true when the record passes.
type Rule struct {
	Name     string
	Field    string
	Severity Severity
	Check    func(rec stream.Record) (message string, ok bool)
}

var (
	rulesMu sync.Mutex
	rules   = make(map[string][]Rule)
)

func rulesKey(erpType, dataType string) string {
	return erpType + "/" + dataType
}

// RegisterRules appends business rules for a tuple at startup.
func RegisterRules(erpType, dataType string, set []Rule) {
	rulesMu.Lock()
	defer rulesMu.Unlock()
	key := rulesKey(erpType, dataType)
	rules[key] = append(rules[key], set...)
}

// ResolveRules returns the business rules for a tuple; none is valid.
func ResolveRules(erpType, dataType string) []Rule {
	rulesMu.Lock()
	defer rulesMu.Unlock()
	return rules[rulesKey(erpType, dataType)]
}

// NonNegativeDecimal flags negative values; credit notes arrive as negative
// amounts in some feeds, so this warns rather than blocks.
func NonNegativeDecimal(field string, severity Severity) Rule {
	return Rule{
		Name:     "non-negative",
		Field:    field,
		Severity: severity,
		Check: func(rec stream.Record) (string, bool) {
			v, ok := rec.Get(field)
			if !ok || v == nil {
				return "", true
			}
			s, isStr := v.(string)
			if !isStr {
				return "", true // type rule handles non-strings.
			}
			n, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return "", true
			}
			if n < 0 {
				return fmt.Sprintf("field %q is negative", field), false
			}
			return "", true
		},
	}
}

// OneOf flags values outside a known enumeration.
func OneOf(field string, severity Severity, allowed []string) Rule {
	set := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		set[a] = struct{}{}
	}
	return Rule{
		Name:     "enumeration",
		Field:    field,
		Severity: severity,
		Check: func(rec stream.Record) (string, bool) {
			v, ok := rec.Get(field)
			if !ok || v == nil {
				return "", true
			}
			s, isStr := v.(string)
			if !isStr {
				return "", true
			}
			if _, known := set[s]; !known {
				return fmt.Sprintf("field %q value %q is not a known code", field, s), false
			}
			return "", true
		},
	}
}

// NotInFuture flags timestamps ahead of the wall clock.
func NotInFuture(field string, severity Severity) Rule {
	return Rule{
		Name:     "not-in-future",
		Field:    field,
		Severity: severity,
		Check: func(rec stream.Record) (string, bool) {
			v, ok := rec.Get(field)
			if !ok || v == nil {
				return "", true
			}
			ts, isTime := v.(time.Time)
			if !isTime {
				return "", true
			}
			if ts.After(time.Now().UTC()) {
				return fmt.Sprintf("field %q is in the future", field), false
			}
			return "", true
		},
	}
}

// isoCurrencies is the subset of ISO 4217 codes seen across the ERP feeds.
var isoCurrencies = []string{"USD", "EUR", "GBP", "CAD", "AUD", "JPY", "CHF", "SEK", "NOK", "DKK", "NZD"}

// Built-in business rules per (erpType, dataType). Severity assignments are
// the per-rule table: unknown currency blocks, odd amounts and future dates
// only warn.
func init() {
	invoiceRules := []Rule{
		NonNegativeDecimal("amount", SeverityWarning),
		OneOf("currency", SeverityCritical, isoCurrencies),
		NotInFuture("issued_at", SeverityWarning),
	}
	RegisterRules("netsuite", "invoices", invoiceRules)
	RegisterRules("dynamics", "invoices", invoiceRules)
	RegisterRules("sageintacct", "invoices", invoiceRules)
	RegisterRules("sapbyd", "invoices", invoiceRules)
}
