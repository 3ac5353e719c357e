package generatedocument

import (
	"context"
	"errors"
	"testing"
	"time"

	"docgen-workers/internal/common/config"
	apperrors "docgen-workers/internal/common/errors"
	"docgen-workers/internal/common/logger"
	"docgen-workers/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// ==========================
// Mock Generator
// ==========================

type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Generate(ctx context.Context, req models.DocumentRequest) (*models.DocumentResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.DocumentResponse), args.Error(1)
}

func newTestHandler(t *testing.T, gen Generator) *Handler {
	t.Helper()
	h, err := NewHandler(HandlerOptions{
		CustomConfig: DefaultConfig(),
		Generator:    gen,
		Logger:       logger.NewTestLogger(t),
	})
	require.NoError(t, err)
	return h
}

// ==========================
// Handler Creation Tests
// ==========================

func TestHandler_NewHandler(t *testing.T) {
	tests := []struct {
		name    string
		opts    HandlerOptions
		wantErr string
	}{
		{
			name: "defaults",
			opts: HandlerOptions{Generator: &MockGenerator{}, Logger: logger.NewNoOpLogger()},
		},
		{
			name:    "missing generator",
			opts:    HandlerOptions{Logger: logger.NewNoOpLogger()},
			wantErr: "generator is required",
		},
		{
			name: "invalid timeout",
			opts: HandlerOptions{
				CustomConfig: &Config{Enabled: true, MaxJobsActive: 1},
				Generator:    &MockGenerator{},
				Logger:       logger.NewNoOpLogger(),
			},
			wantErr: "timeout must be positive",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := NewHandler(tt.opts)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, h)
		})
	}
}

func TestCreateConfigFromAppConfig(t *testing.T) {
	app := &config.Config{Workers: map[string]config.WorkerConfig{
		TaskType: {Enabled: false, MaxJobsActive: 7, Timeout: 2500},
	}}
	cfg := createConfigFromAppConfig(app, nil)
	assert.False(t, cfg.Enabled)
	assert.Equal(t, 7, cfg.MaxJobsActive)
	assert.Equal(t, 2500*time.Millisecond, cfg.Timeout)

	assert.Equal(t, DefaultConfig(), createConfigFromAppConfig(nil, nil))
}

// ==========================
// Input Parsing Tests
// ==========================

func TestParseInput(t *testing.T) {
	tests := []struct {
		name      string
		variables string
		wantErr   bool
	}{
		{"valid", `{"message":"confirm the viewing","agentId":"a1","context":{"buyer_name":"Maria"}}`, false},
		{"extra process variables", `{"message":"hi","processStatus":"open"}`, false},
		{"missing message", `{"agentId":"a1"}`, true},
		{"empty message", `{"message":""}`, true},
		{"context values must be strings", `{"message":"hi","context":{"price":250000}}`, true},
		{"malformed", `{"message"`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input, err := parseInput(tt.variables)
			if tt.wantErr {
				assert.Equal(t, apperrors.ErrCodeInvalidRequest, apperrors.CodeOf(err))
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, input.Message)
		})
	}
}

// ==========================
// Execute Tests
// ==========================

func TestHandler_Execute_Generated(t *testing.T) {
	gen := &MockGenerator{}
	gen.On("Generate", mock.Anything, models.DocumentRequest{
		Message: "confirm the viewing",
		AgentID: "a1",
		Context: map[string]string{"buyer_name": "Maria"},
	}).Return(&models.DocumentResponse{
		Content:    "Hi Maria",
		TemplateID: "viewing_confirmation",
		TokensUsed: 140,
		Confidence: 0.8,
		Metadata: models.ResponseMetadata{
			RequestID:     "req-1",
			Category:      models.CategoryViewing,
			MissingFields: []string{"property"},
		},
	}, nil)

	out, err := newTestHandler(t, gen).Execute(context.Background(), &Input{
		Message: "confirm the viewing",
		AgentID: "a1",
		Context: map[string]string{"buyer_name": "Maria"},
	})
	require.NoError(t, err)

	assert.True(t, out.DocumentGenerated)
	assert.Equal(t, "Hi Maria", out.Content)
	assert.Equal(t, "viewing", out.Category)
	assert.Equal(t, []string{"property"}, out.MissingFields)
	assert.Equal(t, 140, out.TokensUsed)
	assert.Equal(t, "req-1", out.RequestID)
	gen.AssertExpectations(t)
}

func TestHandler_Execute_Clarification(t *testing.T) {
	gen := &MockGenerator{}
	gen.On("Generate", mock.Anything, mock.Anything).Return(&models.DocumentResponse{
		Content:    "Which registration do you need: seller, developer or bank?",
		Confidence: 0.9,
		Metadata: models.ResponseMetadata{
			Category:           models.CategoryRegistration,
			NeedsClarification: true,
			Questions:          []string{"Which registration do you need: seller, developer or bank?"},
		},
	}, nil)

	out, err := newTestHandler(t, gen).Execute(context.Background(), &Input{Message: "please register this"})
	require.NoError(t, err)
	assert.False(t, out.DocumentGenerated)
	assert.True(t, out.NeedsClarification)
	assert.Empty(t, out.Content)
	assert.Len(t, out.Questions, 1)
}

func TestHandler_Execute_PropagatesGenerationError(t *testing.T) {
	gen := &MockGenerator{}
	failure := apperrors.NewGenerationFailedError("completion", "viewing_confirmation", errors.New("upstream 502"))
	gen.On("Generate", mock.Anything, mock.Anything).Return(nil, failure)

	_, err := newTestHandler(t, gen).Execute(context.Background(), &Input{Message: "confirm the viewing"})
	assert.Equal(t, apperrors.ErrCodeGenerationFailed, apperrors.CodeOf(err))
	assert.True(t, apperrors.GetRetryCount(apperrors.CodeOf(err)) > 0)
}
