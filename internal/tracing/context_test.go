package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRunContextAssignsTraceAndRunIDs(t *testing.T) {
	ctx := NewRunContext(context.Background())

	assert.NotEmpty(t, GetTraceID(ctx))
	assert.NotEmpty(t, GetRunID(ctx))
}

func TestNewRunContextKeepsExistingTraceID(t *testing.T) {
	ctx := WithTraceID(context.Background(), "trace-1")
	ctx = NewRunContext(ctx)

	assert.Equal(t, "trace-1", GetTraceID(ctx))
	assert.NotEmpty(t, GetRunID(ctx))
}

func TestFromContextExtractsAllFields(t *testing.T) {
	ctx := WithTraceID(context.Background(), "trace-1")
	ctx = WithRunID(ctx, "run-1")
	ctx = WithGraph(ctx, "pipeline")
	ctx = WithNode(ctx, "classify")

	tc := FromContext(ctx)
	require.NotNil(t, tc)
	assert.Equal(t, "trace-1", tc.TraceID)
	assert.Equal(t, "run-1", tc.RunID)
	assert.Equal(t, "pipeline", tc.Graph)
	assert.Equal(t, "classify", tc.Node)
}

func TestGettersReturnEmptyWhenUnset(t *testing.T) {
	ctx := context.Background()

	assert.Empty(t, GetTraceID(ctx))
	assert.Empty(t, GetRunID(ctx))
	assert.Empty(t, GetGraph(ctx))
	assert.Empty(t, GetNode(ctx))
}
