package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewInstruments_Disabled(t *testing.T) {
	ctx := context.Background()
	m, err := New(ctx, Config{Enabled: false}, "monite-gateway")
	require.NoError(t, err)

	inst, err := NewInstruments(m)
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		inst.RecordAPIRequest(ctx, "GET", "/entity_users/me", 200, 12.5)
		inst.RecordDecision(ctx, "tag", "create", true)
		inst.QueryStarted(ctx)
		inst.QueryFinished(ctx)
	})
}

func TestInstruments_NilIsNoop(t *testing.T) {
	var inst *Instruments
	ctx := context.Background()
	assert.NotPanics(t, func() {
		inst.RecordAPIRequest(ctx, "GET", "/tags", 500, 1)
		inst.RecordDecision(ctx, "payable", "pay", false)
		inst.QueryStarted(ctx)
		inst.QueryFinished(ctx)
	})
}
