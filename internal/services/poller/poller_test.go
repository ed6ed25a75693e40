package poller

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"waybox/internal/broker/messages"
	"waybox/internal/integrations/carrier"
	"waybox/internal/models"
)

type fakeProducer struct {
	topic string
	key   []byte
	value []byte
	calls int
	err   error
}

func (p *fakeProducer) Publish(ctx context.Context, topic string, key, value []byte) error {
	p.calls++
	p.topic, p.key, p.value = topic, key, value
	return p.err
}

type fakeRL struct {
	allowed bool
	count   int64
	err     error
}

func (r fakeRL) Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error) {
	return r.allowed, r.count, r.err
}

type fakeTracker struct {
	states []carrier.TrackingState
	err    error
	asked  []string
}

func (c *fakeTracker) GetStatusDocuments(ctx context.Context, documentNumbers []string) ([]carrier.TrackingState, error) {
	c.asked = append(c.asked, documentNumbers...)
	return c.states, c.err
}

func issuedWaybill(id uint64, number string) *models.Waybill {
	return &models.Waybill{ID: id, DocumentNumber: &number}
}

func TestPoller_processOne_okPublishes(t *testing.T) {
	now := time.Now().UTC()
	fp := &fakeProducer{}
	tracker := &fakeTracker{states: []carrier.TrackingState{
		{DocumentNumber: "20450000000001", TrackingCode: 5, TrackingAt: &now},
	}}
	p := New(nil, tracker, fp, fakeRL{allowed: true}, "waybill.tracking.updated")

	require.NoError(t, p.processOne(context.Background(), issuedWaybill(42, "20450000000001")))
	require.Equal(t, 1, fp.calls)
	require.Equal(t, "waybill.tracking.updated", fp.topic)
	require.Equal(t, []string{"20450000000001"}, tracker.asked)

	var msg messages.TrackingStatusChanged
	require.NoError(t, json.Unmarshal(fp.value, &msg))
	require.Equal(t, uint64(42), msg.WaybillID)
	require.Equal(t, 5, *msg.TrackingCode)
	require.Nil(t, msg.Error)
	require.True(t, msg.NextCheckAt.After(msg.CheckedAt))
}

func TestPoller_processOne_errorBackoff(t *testing.T) {
	fp := &fakeProducer{}
	p := New(nil, &fakeTracker{err: errors.New("boom")}, fp, nil, "waybill.tracking.updated")

	w := issuedWaybill(1, "20450000000001")
	w.CheckFailCount = 2
	require.NoError(t, p.processOne(context.Background(), w))
	require.Equal(t, 1, fp.calls)

	var msg messages.TrackingStatusChanged
	require.NoError(t, json.Unmarshal(fp.value, &msg))
	require.NotNil(t, msg.Error)
	require.Nil(t, msg.TrackingCode)
	// Третий сбой подряд — пауза из третьей ступени лестницы.
	require.Equal(t, msg.CheckedAt.Add(30*time.Minute), msg.NextCheckAt)
}

func TestPoller_processOne_noDocumentNumber(t *testing.T) {
	fp := &fakeProducer{}
	tracker := &fakeTracker{}
	p := New(nil, tracker, fp, nil, "t")

	require.NoError(t, p.processOne(context.Background(), &models.Waybill{ID: 3}))
	require.Empty(t, tracker.asked)

	var msg messages.TrackingStatusChanged
	require.NoError(t, json.Unmarshal(fp.value, &msg))
	require.NotNil(t, msg.Error)
}

func TestPoller_WithSettings(t *testing.T) {
	p := New(nil, &fakeTracker{}, &fakeProducer{}, nil, "t").
		WithSettings(5*time.Second, 7, 9, 11*time.Second, 13)
	require.Equal(t, 5*time.Second, p.pollInterval)
	require.Equal(t, 7, p.batchSize)
	require.Equal(t, 9, p.concurrency)
	require.Equal(t, 11*time.Second, p.lease)
	require.Equal(t, int64(13), p.rateLimitPerMinute)
}
