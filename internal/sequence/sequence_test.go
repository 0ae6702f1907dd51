package sequence

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/deposit-ledger/pkg/db/dbtest"
)

func TestNextIncrementsPerCounter(t *testing.T) {
	conn := dbtest.Open(t)
	gen, err := NewGenerator(conn)
	require.NoError(t, err)

	ctx := context.Background()
	for want := int64(1); want <= 3; want++ {
		got, err := gen.Next(ctx, nil, "payment_number")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	other, err := gen.Next(ctx, nil, "order_number")
	require.NoError(t, err)
	assert.Equal(t, int64(1), other)
}

func TestNextConcurrentCallersNeverShareAValue(t *testing.T) {
	conn := dbtest.Open(t)
	gen, err := NewGenerator(conn)
	require.NoError(t, err)

	const callers = 25
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = map[int64]bool{}
		errs []error
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := gen.Next(context.Background(), nil, "payment_number")
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			seen[n] = true
		}()
	}
	wg.Wait()

	require.Empty(t, errs)
	assert.Len(t, seen, callers)
	for i := int64(1); i <= callers; i++ {
		assert.True(t, seen[i], "missing value %d", i)
	}
}

func TestNextRollbackLeavesGapNotDuplicate(t *testing.T) {
	conn := dbtest.Open(t)
	gen, err := NewGenerator(conn)
	require.NoError(t, err)
	ctx := context.Background()

	first, err := gen.Next(ctx, nil, "payment_number")
	require.NoError(t, err)

	rollbackErr := errors.New("insert failed")
	err = conn.Transaction(func(tx *gorm.DB) error {
		if _, err := gen.Next(ctx, tx, "payment_number"); err != nil {
			return err
		}
		return rollbackErr
	})
	require.ErrorIs(t, err, rollbackErr)

	next, err := gen.Next(ctx, nil, "payment_number")
	require.NoError(t, err)
	assert.Greater(t, next, first)
}

func TestNextRequiresCounterName(t *testing.T) {
	gen, err := NewGenerator(dbtest.Open(t))
	require.NoError(t, err)
	_, err = gen.Next(context.Background(), nil, "  ")
	require.Error(t, err)
}

func TestFormatting(t *testing.T) {
	assert.Equal(t, "PAY-000042", FormatPaymentNumber(42))
	assert.Equal(t, "ORD-001000", FormatOrderNumber(1000))
	assert.Equal(t, "PAY-1234567", FormatPaymentNumber(1234567))
}
