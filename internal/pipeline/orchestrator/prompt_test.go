package orchestrator

import (
	"testing"

	"docgen-workers/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestFinalize(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		values   map[string]string
		expected string
		missing  []string
	}{
		{"all known", "Hi {{buyer_name}}", map[string]string{"buyer_name": "Maria"}, "Hi Maria", nil},
		{"spacing and case", "Hi {{ Buyer_Name }}", map[string]string{"buyer_name": "Maria"}, "Hi Maria", nil},
		{"unknown left visible", "{{property}} on {{viewing_datetime}}, {{property}}", nil, "[property] on [viewing_datetime], [property]", []string{"property", "viewing_datetime"}},
		{"no placeholders", "Thank you", nil, "Thank you", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, missing := finalize(tt.content, tt.values)
			assert.Equal(t, tt.expected, out)
			assert.Equal(t, tt.missing, missing)
		})
	}
}

func TestKnownValues_ContextWins(t *testing.T) {
	v := knownValues(
		map[string]string{"buyer_name": "John", "property": "Villa 7"},
		map[string]string{"Buyer_Name": "John Smith", "agent_name": " "},
	)
	assert.Equal(t, map[string]string{"buyer_name": "John Smith", "property": "Villa 7"}, v)
}

func TestUserPrompt(t *testing.T) {
	tpl := &models.Template{ID: "social_listing_post", Content: "Just listed: {{property}}. Asking {{price}}."}
	p := userPrompt("  post the new listing ", tpl, map[string]string{"property": "Sea View 4", "agent_name": "Eleni"})

	assert.Contains(t, p, "Request: post the new listing\n")
	assert.Contains(t, p, "Template (social_listing_post):\nJust listed: Sea View 4. Asking {{price}}.")
	assert.Contains(t, p, "Known values:\n- agent_name: Eleni\n- property: Sea View 4\n")
}

func TestGenericTemplate(t *testing.T) {
	tpl := genericTemplate(models.IntentClassification{
		Category:       models.CategoryViewing,
		RequiredFields: []string{"buyer_name", "viewing_datetime"},
	})
	assert.Equal(t, "generic_viewing", tpl.ID)
	assert.Equal(t, "VIEWING\n\nBuyer Name: {{buyer_name}}\nViewing Datetime: {{viewing_datetime}}", tpl.Content)
	assert.Equal(t, []string{"buyer_name", "viewing_datetime"}, tpl.RequiredFields)
}

func TestDropInvalid(t *testing.T) {
	rules := map[string]map[string]string{
		"buyer_phone":  {"phone": "Buyer phone must be a phone number"},
		"offer_amount": {"numeric": "Offer amount must be a number"},
	}
	values := map[string]string{"buyer_name": "Maria", "buyer_phone": "ask agent", "offer_amount": "tbc"}

	assert.Equal(t, []string{"buyer_phone", "offer_amount"}, dropInvalid(values, rules))
	assert.Equal(t, map[string]string{"buyer_name": "Maria"}, values)
	assert.Nil(t, dropInvalid(map[string]string{"buyer_phone": "+357 99 123456"}, rules))
	assert.Nil(t, dropInvalid(values, nil))
}

func TestBundleFor(t *testing.T) {
	sel := models.InstructionSelection{Bundles: []models.MicroInstructionBundle{
		{TemplateID: "seller_registration_standard"},
		{TemplateID: "seller_registration_marketing", OutputFormat: models.OutputFormat{BoldLabels: true}},
	}}
	assert.True(t, bundleFor(sel, "seller_registration_marketing").OutputFormat.BoldLabels)
	assert.Equal(t, "seller_registration_standard", bundleFor(sel, "generic_registration").TemplateID)
	assert.Empty(t, bundleFor(models.InstructionSelection{}, "x").TemplateID)
}
