package stripewebhook

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/deposit-ledger/pkg/db/dbtest"
	"github.com/angelmondragon/deposit-ledger/pkg/enums"
)

func TestGateClaimIsExclusive(t *testing.T) {
	gate, err := NewGate(dbtest.Open(t))
	require.NoError(t, err)
	ctx := context.Background()

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			isNew, err := gate.Claim(ctx, "evt_same", "payment_intent.succeeded", enums.ProviderModeTest)
			if err == nil && isNew {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins)
}

func TestGateLifecycle(t *testing.T) {
	gate, err := NewGate(dbtest.Open(t))
	require.NoError(t, err)
	ctx := context.Background()

	isNew, err := gate.Claim(ctx, "evt_ok", "checkout.session.completed", enums.ProviderModeLive)
	require.NoError(t, err)
	require.True(t, isNew)
	require.NoError(t, gate.MarkProcessed(ctx, "evt_ok"))

	record, err := gate.Find(ctx, "evt_ok")
	require.NoError(t, err)
	assert.Equal(t, enums.ExternalEventStatusProcessed, record.Status)
	assert.Equal(t, enums.ProviderModeLive, record.Mode)
	assert.NotNil(t, record.ProcessedAt)

	isNew, err = gate.Claim(ctx, "evt_bad", "payment_intent.succeeded", enums.ProviderModeTest)
	require.NoError(t, err)
	require.True(t, isNew)
	require.NoError(t, gate.MarkFailed(ctx, "evt_bad", errors.New("db down")))

	record, err = gate.Find(ctx, "evt_bad")
	require.NoError(t, err)
	assert.Equal(t, enums.ExternalEventStatusFailed, record.Status)
	require.NotNil(t, record.Error)
	assert.Equal(t, "db down", *record.Error)

	isNew, err = gate.Claim(ctx, "evt_bad", "payment_intent.succeeded", enums.ProviderModeTest)
	require.NoError(t, err)
	assert.False(t, isNew, "failed events stay claimed")

	_, err = gate.Claim(ctx, "", "x", enums.ProviderModeTest)
	assert.Error(t, err)
	assert.Error(t, gate.MarkProcessed(ctx, "evt_unknown"))
}
