package instructions

import (
	"testing"

	"docgen-workers/internal/common/logger"
	"docgen-workers/internal/common/tokens"
	"docgen-workers/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSelector(t *testing.T, opts ...Option) *Selector {
	t.Helper()
	s, err := New(logger.NewTestLogger(t), opts...)
	require.NoError(t, err)
	return s
}

func TestSelectInstructions(t *testing.T) {
	s := newSelector(t)

	tests := []struct {
		name     string
		ids      []string
		category models.Category
		expected []string
		wantErr  error
	}{
		{"known ids keep order", []string{"viewing_reschedule", "viewing_confirmation"}, models.CategoryViewing, []string{"viewing_reschedule", "viewing_confirmation"}, nil},
		{"unknown ids skipped", []string{"nope", "email_follow_up"}, models.CategoryEmail, []string{"email_follow_up"}, nil},
		{"duplicates collapse", []string{"email_follow_up", "email_follow_up"}, models.CategoryEmail, []string{"email_follow_up"}, nil},
		{"generic when nothing resolves", []string{"nope"}, models.CategorySocial, []string{""}, nil},
		{"generic for empty ids", nil, models.CategoryAgreement, []string{""}, nil},
		{"unknown category", nil, models.Category("calculator"), nil, ErrUnknownCategory},
		{"unknown ids and category", []string{"nope"}, models.Category("calculator"), nil, ErrUnknownCategory},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bundles, err := s.SelectInstructions(tt.ids, tt.category)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			var got []string
			for _, b := range bundles {
				got = append(got, b.TemplateID)
				assert.Greater(t, b.EstimatedTokens, 0)
			}
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestSelectForClassification_Merges(t *testing.T) {
	s := newSelector(t, WithEstimator(tokens.Heuristic{}))

	sel, err := s.SelectForClassification(models.IntentClassification{
		Category:        models.CategoryRegistration,
		LikelyTemplates: []string{"seller_registration_standard", "seller_registration_marketing", "developer_registration", "bank_registration"},
	})
	require.NoError(t, err)

	assert.Equal(t, 3, sel.TemplateCount)
	assert.Contains(t, sel.Instructions, "Fill the seller registration.")
	assert.Contains(t, sel.Instructions, "\nAlternatives:\n1. seller_registration_marketing\n2. developer_registration")
	assert.NotContains(t, sel.Instructions, "bank_registration")
	assert.Equal(t, []string{"buyer_name", "property", "viewing_datetime"}, sel.FocusAreas)

	sum := 0
	for _, b := range sel.Bundles {
		sum += b.EstimatedTokens
	}
	assert.Equal(t, sum, sel.EstimatedTokens)
}

func TestSelectForClassification_SingleBundleHasNoAlternatives(t *testing.T) {
	s := newSelector(t)

	sel, err := s.SelectForClassification(models.IntentClassification{
		Category:        models.CategoryEmail,
		LikelyTemplates: []string{"email_offer_submission"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, sel.TemplateCount)
	assert.NotContains(t, sel.Instructions, "Alternatives")
	assert.Equal(t, []string{"buyer_name", "property", "offer_amount"}, sel.FocusAreas)
}

func TestBundle_ReturnsCopy(t *testing.T) {
	s := newSelector(t)

	b, ok := s.Bundle("email_offer_submission")
	require.True(t, ok)
	b.RequiredFields[0] = "mutated"
	b.ValidationRules["offer_amount"]["numeric"] = "mutated"

	again, _ := s.Bundle("email_offer_submission")
	assert.Equal(t, "buyer_name", again.RequiredFields[0])
	assert.Equal(t, "Offer amount must be a number", again.ValidationRules["offer_amount"]["numeric"])

	_, ok = s.Bundle("missing")
	assert.False(t, ok)
}

func TestShippedBundlesStayWithinTarget(t *testing.T) {
	s := newSelector(t, WithEstimator(tokens.Heuristic{}))
	for id, b := range s.byTemplate {
		assert.LessOrEqual(t, b.EstimatedTokens, 35, id)
	}
	assert.Len(t, s.generic, len(models.Categories))
}

func TestNewFromYAML_Rejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"empty", "bundles: []"},
		{"bad category", "bundles:\n  - {category: calculator, instructions: x}"},
		{"duplicate template", "bundles:\n  - {templateId: a, category: email, instructions: x}\n  - {templateId: a, category: email, instructions: y}"},
		{"duplicate generic", "bundles:\n  - {category: email, instructions: x}\n  - {category: email, instructions: y}"},
		{"unknown output flag", "bundles:\n  - {category: email, instructions: x, outputFormat: {suppressConfirmation: true}}"},
		{"unknown field rule", "bundles:\n  - {category: email, instructions: x, validationRules: {buyer_name: {capitalised: y}}}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFromYAML([]byte(tt.yaml), logger.NewNoOpLogger())
			assert.Error(t, err)
		})
	}
}

func TestSelectForClassification_RendersOutputFormat(t *testing.T) {
	s := newSelector(t)

	tests := []struct {
		name     string
		template string
		category models.Category
		contains []string
		excludes []string
	}{
		{
			name:     "registration",
			template: "seller_registration_standard",
			category: models.CategoryRegistration,
			contains: []string{"Bold labels.", "viewing_datetime: Use day and time, e.g. tomorrow 5pm."},
			excludes: []string{"Subject:", "confirmation request"},
		},
		{
			name:     "email",
			template: "email_offer_submission",
			category: models.CategoryEmail,
			contains: []string{"Start with a Subject: line."},
			excludes: []string{"Bold labels.", "offer_amount:"},
		},
		{
			name:     "agreement",
			template: "agreement_exclusive",
			category: models.CategoryAgreement,
			contains: []string{"Bold labels.", "No closing confirmation request."},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel, err := s.SelectForClassification(models.IntentClassification{
				Category:        tt.category,
				LikelyTemplates: []string{tt.template},
			})
			require.NoError(t, err)
			for _, c := range tt.contains {
				assert.Contains(t, sel.Instructions, c)
			}
			for _, c := range tt.excludes {
				assert.NotContains(t, sel.Instructions, c)
			}
		})
	}
}
