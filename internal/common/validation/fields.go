package validation

import (
	"sort"
	"strconv"
	"strings"
)

// Field rule names accepted in instruction bundles. A rule maps to the
// message reported when a value breaks it. RuleFormat is a hint for the
// completion service and is never checked.
const (
	RuleFormat     = "format"
	RuleNumeric    = "numeric"
	RulePercentage = "percentage"
	RuleEmail      = "email"
	RulePhone      = "phone"
)

var ruleChecks = map[string]func(string) bool{
	RuleNumeric:    isAmount,
	RulePercentage: isPercentage,
	RuleEmail:      ValidateEmail,
	RulePhone:      ValidatePhone,
}

// CheckFields checks the known values against per-field rules. Fields
// without a value are skipped; missing values are reported elsewhere.
// Errors come back sorted by field so results are stable.
func CheckFields(values map[string]string, rules map[string]map[string]string) *ValidationResult {
	out := &ValidationResult{Valid: true}
	fields := make([]string, 0, len(rules))
	for f := range rules {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	for _, field := range fields {
		v, ok := values[field]
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		names := make([]string, 0, len(rules[field]))
		for name := range rules[field] {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			check, ok := ruleChecks[name]
			if !ok || check(strings.TrimSpace(v)) {
				continue
			}
			out.Valid = false
			out.Errors = append(out.Errors, ValidationError{Field: field, Message: rules[field][name], Code: name})
		}
	}
	return out
}

var currencyCodes = []string{"euro", "eur", "usd", "aed"}

// isAmount accepts numbers written with a currency sign or code, thousands
// separators or a k/m suffix, e.g. "€250,000", "1.2m" or "300k eur".
func isAmount(v string) bool {
	v = strings.NewReplacer("€", "", "$", "", "£", "", ",", "", " ", "").Replace(strings.ToLower(v))
	for _, code := range currencyCodes {
		v = strings.TrimSuffix(v, code)
	}
	v = strings.TrimRight(v, "km")
	if v == "" {
		return false
	}
	_, err := strconv.ParseFloat(v, 64)
	return err == nil
}

func isPercentage(v string) bool {
	v = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(v), "%"))
	f, err := strconv.ParseFloat(v, 64)
	return err == nil && f >= 0 && f <= 100
}
