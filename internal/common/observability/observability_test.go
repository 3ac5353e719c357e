package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RecordsAndTraces(t *testing.T) {
	obs, err := New("docgen-test", 1)
	require.NoError(t, err)
	defer obs.Shutdown(context.Background())

	ctx, span := obs.Tracer().Start(context.Background(), "classify")
	assert.True(t, span.SpanContext().TraceID().IsValid())
	obs.RecordDocument(ctx, "email", 120*time.Millisecond, true)
	span.End()
}
