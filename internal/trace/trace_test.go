package trace

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledIsNoop(t *testing.T) {
	require.NoError(t, Init(false, nil, "test"))
	assert.False(t, Enabled())

	ctx, span := StartSpan(context.Background(), "noop")
	span.End()

	_, _, ok := TraceFields(ctx)
	assert.False(t, ok)
}

func TestEnabledExportsSpans(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, Init(true, &buf, "test"))
	assert.True(t, Enabled())

	ctx, span := StartSpan(context.Background(), "store.list_trades")
	traceID, spanID, ok := TraceFields(ctx)
	span.End()

	assert.True(t, ok)
	assert.NotEmpty(t, traceID)
	assert.NotEmpty(t, spanID)

	require.NoError(t, Shutdown(context.Background()))
	assert.False(t, Enabled())
	assert.Contains(t, buf.String(), "store.list_trades")
}
