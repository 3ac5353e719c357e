package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckFields(t *testing.T) {
	rules := map[string]map[string]string{
		"offer_amount":     {RuleNumeric: "Offer amount must be a number"},
		"commission_rate":  {RulePercentage: "Commission must be a percentage"},
		"buyer_email":      {RuleEmail: "Buyer email is not valid"},
		"buyer_phone":      {RulePhone: "Buyer phone is not valid"},
		"viewing_datetime": {RuleFormat: "Use day and time"},
	}

	tests := []struct {
		name    string
		values  map[string]string
		invalid []string
	}{
		{
			name: "all valid",
			values: map[string]string{
				"offer_amount":     "€250,000",
				"commission_rate":  "2.5%",
				"buyer_email":      "maria@example.com",
				"buyer_phone":      "+357 99 123456",
				"viewing_datetime": "whenever",
			},
		},
		{
			name:   "short amounts",
			values: map[string]string{"offer_amount": "300k eur"},
		},
		{
			name:   "missing values are not checked",
			values: map[string]string{},
		},
		{
			name: "broken values",
			values: map[string]string{
				"offer_amount":    "a lot",
				"commission_rate": "150%",
				"buyer_email":     "maria@",
				"buyer_phone":     "12",
			},
			invalid: []string{"buyer_email", "buyer_phone", "commission_rate", "offer_amount"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vr := CheckFields(tt.values, rules)
			assert.Equal(t, len(tt.invalid) == 0, vr.Valid)
			var fields []string
			for _, e := range vr.Errors {
				fields = append(fields, e.Field)
			}
			assert.Equal(t, tt.invalid, fields)
			for _, f := range tt.invalid {
				assert.True(t, vr.HasErrors(f))
			}
			assert.False(t, vr.HasErrors("viewing_datetime"))
		})
	}
}

func TestCheckFields_ReportsRuleMessage(t *testing.T) {
	vr := CheckFields(map[string]string{"offer_amount": "tbd"},
		map[string]map[string]string{"offer_amount": {RuleNumeric: "Offer amount must be a number"}})
	assert.Equal(t, []string{"offer_amount: Offer amount must be a number"}, vr.GetErrorMessages())
	assert.Equal(t, RuleNumeric, vr.Errors[0].Code)
}
