package mirror

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/deposit-ledger/pkg/db/models"
	"github.com/angelmondragon/deposit-ledger/pkg/enums"
	"github.com/angelmondragon/deposit-ledger/pkg/logger"
)

type fakePublisher struct {
	messages []*gcppubsub.Message
	err      error
}

func (f *fakePublisher) Publish(_ context.Context, msg *gcppubsub.Message) publishResult {
	f.messages = append(f.messages, msg)
	return fakeResult{err: f.err}
}

type fakeResult struct{ err error }

func (r fakeResult) Get(context.Context) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	return "msg-1", nil
}

func TestPublishWritesEnvelope(t *testing.T) {
	pub := &fakePublisher{}
	m := newMirror(pub, nil, nil)
	m.now = func() time.Time { return time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC) }

	orderID := uuid.New()
	entry := &models.LedgerEntry{
		ID:              uuid.New(),
		OrderID:         orderID,
		PaymentNumber:   "PAY-000007",
		TransactionType: enums.TransactionTypePayment,
		Amount:          decimal.RequireFromString("200.5"),
		Method:          enums.PaymentMethodCheck,
		Category:        enums.LedgerCategoryAdditionalDeposit,
		Status:          enums.LedgerEntryStatusPending,
	}
	summary := &models.OrderLedgerSummary{
		Balance:       decimal.RequireFromString("799.5"),
		BalanceStatus: enums.BalanceStatusUnderpaid,
		EntryCount:    1,
	}
	m.Publish(context.Background(), Event{Type: EventEntryCreated, OrderID: orderID, Entry: entry, Summary: summary})

	require.Len(t, pub.messages, 1)
	msg := pub.messages[0]
	assert.Equal(t, EventEntryCreated, msg.Attributes["event_type"])
	assert.Equal(t, orderID.String(), msg.Attributes["order_id"])

	var envelope Envelope
	require.NoError(t, json.Unmarshal(msg.Data, &envelope))
	assert.Equal(t, 1, envelope.Version)
	assert.Equal(t, orderID.String(), envelope.OrderID)

	var body payload
	require.NoError(t, json.Unmarshal(envelope.Data, &body))
	require.NotNil(t, body.Entry)
	assert.Equal(t, "200.50", body.Entry.Amount)
	assert.Equal(t, "PAY-000007", body.Entry.PaymentNumber)
	require.NotNil(t, body.Summary)
	assert.Equal(t, "799.50", body.Summary.Balance)
}

func TestPublishFailureIsSwallowed(t *testing.T) {
	var buf bytes.Buffer
	pub := &fakePublisher{err: errors.New("topic gone")}
	m := newMirror(pub, logger.New(logger.Options{ServiceName: "test", Output: &buf}), nil)

	m.Publish(context.Background(), Event{Type: EventSummaryChanged, OrderID: uuid.New()})

	assert.Len(t, pub.messages, 1)
	assert.Contains(t, buf.String(), "mirror.publish_failed")
}

func TestNilTopicPublisherIsNoop(t *testing.T) {
	p := NewPubSubMirror(nil, nil, nil)
	_, ok := p.(Noop)
	assert.True(t, ok)
	p.Publish(context.Background(), Event{Type: EventEntryUpdated})
}
