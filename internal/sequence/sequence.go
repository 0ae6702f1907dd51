package sequence

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	pkgerrors "github.com/angelmondragon/deposit-ledger/pkg/errors"
)

const (
	PaymentPrefix = "PAY"
	OrderPrefix   = "ORD"
)

// upsertSQL increments the named counter in a single statement, creating it on
// first use. Supported by Postgres and SQLite >= 3.35.
const upsertSQL = `INSERT INTO counters (name, value, updated_at) VALUES (?, 1, ?)
ON CONFLICT (name) DO UPDATE SET value = counters.value + 1, updated_at = excluded.updated_at
RETURNING value`

// Generator hands out numbers from durable named counters.
type Generator interface {
	Next(ctx context.Context, tx *gorm.DB, counter string) (int64, error)
}

type generator struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGenerator binds the generator to db; Next uses tx instead when one is supplied.
func NewGenerator(db *gorm.DB) (Generator, error) {
	if db == nil {
		return nil, fmt.Errorf("sequence db required")
	}
	return &generator{db: db, now: time.Now}, nil
}

// Next returns the next value of counter. Passing the caller's transaction ties
// the increment to the numbered entity: a rollback leaves a gap, never a duplicate.
func (g *generator) Next(ctx context.Context, tx *gorm.DB, counter string) (int64, error) {
	name := strings.TrimSpace(counter)
	if name == "" {
		return 0, pkgerrors.New(pkgerrors.CodeInternal, "counter name required")
	}
	conn := g.db
	if tx != nil {
		conn = tx
	}

	var value int64
	if err := conn.WithContext(ctx).Raw(upsertSQL, name, g.now().UTC()).Scan(&value).Error; err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment counter")
	}
	if value <= 0 {
		return 0, pkgerrors.New(pkgerrors.CodeInternal, "counter returned no value")
	}
	return value, nil
}

// FormatPaymentNumber renders n as PAY-000042.
func FormatPaymentNumber(n int64) string {
	return format(PaymentPrefix, n)
}

// FormatOrderNumber renders n as ORD-000042.
func FormatOrderNumber(n int64) string {
	return format(OrderPrefix, n)
}

func format(prefix string, n int64) string {
	return fmt.Sprintf("%s-%06d", prefix, n)
}
