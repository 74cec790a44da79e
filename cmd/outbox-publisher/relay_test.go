package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"gorm.io/gorm"

	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/config"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/db/models"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/enums"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/logger"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/metrics"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/outbox"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/outbox/payloads"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/outbox/registry"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/types"
)

func TestDrainRetriesFailedRowAndPublishesTheRest(t *testing.T) {
	first := orderPaidRow(t, 0)
	second := orderPaidRow(t, 0)
	repo := &fakeRepo{rows: []models.OutboxEvent{first, second}}
	pub := &fakePublisher{errs: []error{errors.New("unavailable"), nil}}
	relay := newTestRelay(t, repo, pub, &fakeRegistry{resolved: orderPaidResolved()}, config.OutboxConfig{})

	handled, err := relay.drain(context.Background())
	if err != nil {
		t.Fatalf("drain returned error: %v", err)
	}
	if handled != 2 {
		t.Fatalf("expected 2 rows handled, got %d", handled)
	}
	if len(repo.failed) != 1 || repo.failed[0] != first.ID {
		t.Fatalf("expected first row marked failed, got %v", repo.failed)
	}
	if len(repo.published) != 1 || repo.published[0] != second.ID {
		t.Fatalf("expected second row published, got %v", repo.published)
	}
	if len(pub.resumed) != 1 || pub.resumed[0] != first.AggregateID.String() {
		t.Fatalf("expected ordering key of the failed row to be resumed, got %v", pub.resumed)
	}
}

func TestDrainBuildsOrderedMessage(t *testing.T) {
	row := orderPaidRow(t, 0)
	pub := &fakePublisher{}
	relay := newTestRelay(t, &fakeRepo{rows: []models.OutboxEvent{row}}, pub, &fakeRegistry{resolved: orderPaidResolved()}, config.OutboxConfig{})

	if _, err := relay.drain(context.Background()); err != nil {
		t.Fatalf("drain returned error: %v", err)
	}
	if len(pub.messages) != 1 {
		t.Fatalf("expected one message, got %d", len(pub.messages))
	}
	msg := pub.messages[0]
	if msg.OrderingKey != row.AggregateID.String() {
		t.Fatalf("ordering key should be the order id, got %q", msg.OrderingKey)
	}
	if msg.Attributes["event_type"] != string(enums.EventOrderPaid) {
		t.Fatalf("unexpected event_type attribute %q", msg.Attributes["event_type"])
	}
	if msg.Attributes["schema_version"] != "1" {
		t.Fatalf("unexpected schema_version attribute %q", msg.Attributes["schema_version"])
	}
	if string(msg.Data) != string(row.Payload) {
		t.Fatalf("message data should be the stored envelope")
	}
}

func TestDrainEmptyBatch(t *testing.T) {
	relay := newTestRelay(t, &fakeRepo{}, &fakePublisher{}, &fakeRegistry{resolved: orderPaidResolved()}, config.OutboxConfig{})

	handled, err := relay.drain(context.Background())
	if err != nil {
		t.Fatalf("drain returned error: %v", err)
	}
	if handled != 0 {
		t.Fatalf("expected nothing handled, got %d", handled)
	}
}

func TestDrainParksUndecodableRow(t *testing.T) {
	row := orderPaidRow(t, 0)
	repo := &fakeRepo{rows: []models.OutboxEvent{row}}
	pub := &fakePublisher{}
	eventRegistry := &fakeRegistry{err: registry.NewNonRetryableError(errors.New("payload missing"))}
	relay := newTestRelay(t, repo, pub, eventRegistry, config.OutboxConfig{})

	if _, err := relay.drain(context.Background()); err != nil {
		t.Fatalf("drain returned error: %v", err)
	}
	if len(repo.parked) != 1 || repo.parked[0] != row.ID {
		t.Fatalf("expected row parked, got %v", repo.parked)
	}
	if len(pub.messages) != 0 {
		t.Fatalf("nothing should be sent for an undecodable row")
	}
}

func TestDrainParksAtMaxAttempts(t *testing.T) {
	row := orderPaidRow(t, 2)
	repo := &fakeRepo{rows: []models.OutboxEvent{row}}
	pub := &fakePublisher{errs: []error{errors.New("deadline exceeded")}}
	relay := newTestRelay(t, repo, pub, &fakeRegistry{resolved: orderPaidResolved()}, config.OutboxConfig{MaxAttempts: 3})

	if _, err := relay.drain(context.Background()); err != nil {
		t.Fatalf("drain returned error: %v", err)
	}
	if len(repo.parked) != 1 {
		t.Fatalf("expected row parked, got %v", repo.parked)
	}
	if len(repo.failed) != 0 {
		t.Fatalf("parked rows should not be marked failed")
	}
}

func TestDrainParksWhenTopicHasNoPublisher(t *testing.T) {
	row := orderPaidRow(t, 0)
	repo := &fakeRepo{rows: []models.OutboxEvent{row}}
	relay := newTestRelay(t, repo, nil, &fakeRegistry{resolved: orderPaidResolved()}, config.OutboxConfig{})

	if _, err := relay.drain(context.Background()); err != nil {
		t.Fatalf("drain returned error: %v", err)
	}
	if len(repo.parked) != 1 {
		t.Fatalf("expected row parked, got %v", repo.parked)
	}
}

func TestDrainRecordsOutcomeMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	repo := &fakeRepo{rows: []models.OutboxEvent{orderPaidRow(t, 0), orderPaidRow(t, 0)}}
	pub := &fakePublisher{errs: []error{nil, errors.New("unavailable")}}
	relay := newTestRelay(t, repo, pub, &fakeRegistry{resolved: orderPaidResolved()}, config.OutboxConfig{})
	relay.metrics = metrics.NewOutboxMetrics(reg)

	if _, err := relay.drain(context.Background()); err != nil {
		t.Fatalf("drain returned error: %v", err)
	}
	if got := testutil.CollectAndCount(reg, "outbox_events_relayed_total"); got != 2 {
		t.Fatalf("expected published and retry series, got %d", got)
	}
}

func TestDrainSurfacesRowUpdateFailure(t *testing.T) {
	repo := &fakeRepo{rows: []models.OutboxEvent{orderPaidRow(t, 0)}, markErr: errors.New("connection reset")}
	relay := newTestRelay(t, repo, &fakePublisher{}, &fakeRegistry{resolved: orderPaidResolved()}, config.OutboxConfig{})

	if _, err := relay.drain(context.Background()); err == nil {
		t.Fatalf("expected the mark failure to abort the batch")
	}
}

func TestBackoffAndJitter(t *testing.T) {
	base := 100 * time.Millisecond
	if got := nextBackoff(0, base, time.Second); got != 200*time.Millisecond {
		t.Fatalf("unexpected backoff %v", got)
	}
	if got := nextBackoff(800*time.Millisecond, base, time.Second); got != time.Second {
		t.Fatalf("expected ceiling, got %v", got)
	}
	if got := withJitter(base); got < base || got >= base+jitterWindow {
		t.Fatalf("jitter out of range: %v", got)
	}
}

func TestNewRelayValidatesParams(t *testing.T) {
	if _, err := NewRelay(RelayParams{}); err == nil {
		t.Fatalf("expected error for empty params")
	}
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	relay := newTestRelay(t, &fakeRepo{}, &fakePublisher{}, &fakeRegistry{resolved: orderPaidResolved()}, config.OutboxConfig{PollIntervalMS: 10})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := relay.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func newTestRelay(t *testing.T, repo outboxRepository, pub *fakePublisher, resolver registryResolver, outboxCfg config.OutboxConfig) *Relay {
	t.Helper()
	if outboxCfg.BatchSize == 0 {
		outboxCfg.BatchSize = 2
	}
	if outboxCfg.MaxAttempts == 0 {
		outboxCfg.MaxAttempts = 5
	}
	relay, err := NewRelay(RelayParams{
		Outbox:     outboxCfg,
		Logger:     logger.New(logger.Options{ServiceName: "outbox-publisher-test", Output: io.Discard}),
		DB:         fakeDB{},
		PubSub:     fakePubSub{},
		Repository: repo,
		Registry:   resolver,
		Publishers: func(string) publisher {
			if pub == nil {
				return nil
			}
			return pub
		},
	})
	if err != nil {
		t.Fatalf("new relay: %v", err)
	}
	return relay
}

func orderPaidRow(tb testing.TB, attempts int) models.OutboxEvent {
	tb.Helper()
	orderID := uuid.New()
	data, err := json.Marshal(payloads.OrderPaidEvent{OrderID: orderID, OrderNumber: "ORD-1-ABCDEF"})
	if err != nil {
		tb.Fatalf("marshal payload: %v", err)
	}
	payload, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now(),
		Data:       data,
	})
	if err != nil {
		tb.Fatalf("marshal envelope: %v", err)
	}
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventOrderPaid,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		Payload:       types.RawJSON(payload),
		AttemptCount:  attempts,
		CreatedAt:     time.Now(),
	}
}

func orderPaidResolved() *registry.ResolvedEvent {
	return &registry.ResolvedEvent{
		Descriptor: registry.EventDescriptor{
			EventType:     enums.EventOrderPaid,
			AggregateType: enums.AggregateOrder,
			Topic:         "vg-order-events",
		},
		Envelope: outbox.PayloadEnvelope{Version: 1, EventID: uuid.NewString(), OccurredAt: time.Now()},
		Payload:  &payloads.OrderPaidEvent{},
	}
}

type fakeRepo struct {
	rows      []models.OutboxEvent
	published []uuid.UUID
	failed    []uuid.UUID
	parked    []uuid.UUID
	markErr   error
}

func (f *fakeRepo) FetchUnpublishedForPublish(_ *gorm.DB, _, _ int) ([]models.OutboxEvent, error) {
	return f.rows, nil
}

func (f *fakeRepo) MarkPublishedTx(_ *gorm.DB, id uuid.UUID) error {
	if f.markErr != nil {
		return f.markErr
	}
	f.published = append(f.published, id)
	return nil
}

func (f *fakeRepo) MarkFailedTx(_ *gorm.DB, id uuid.UUID, _ error) error {
	f.failed = append(f.failed, id)
	return nil
}

func (f *fakeRepo) MarkTerminalTx(_ *gorm.DB, id uuid.UUID, _ error, _ int) error {
	f.parked = append(f.parked, id)
	return nil
}

type fakeDB struct{}

func (fakeDB) Ping(context.Context) error { return nil }

func (fakeDB) WithTx(_ context.Context, fn func(*gorm.DB) error) error { return fn(nil) }

type fakePubSub struct{}

func (fakePubSub) Ping(context.Context) error { return nil }

func (fakePubSub) Publisher(string) *gcppubsub.Publisher { return nil }

type fakePublisher struct {
	errs     []error
	messages []*gcppubsub.Message
	resumed  []string
}

func (f *fakePublisher) Publish(_ context.Context, msg *gcppubsub.Message) publishResult {
	f.messages = append(f.messages, msg)
	var err error
	if len(f.errs) > 0 {
		err, f.errs = f.errs[0], f.errs[1:]
	}
	return fakeResult{err: err}
}

func (f *fakePublisher) ResumePublish(key string) {
	f.resumed = append(f.resumed, key)
}

type fakeResult struct {
	err error
}

func (r fakeResult) Get(context.Context) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	return "server-id", nil
}

type fakeRegistry struct {
	resolved *registry.ResolvedEvent
	err      error
}

func (f *fakeRegistry) Resolve(row models.OutboxEvent) (*registry.ResolvedEvent, error) {
	if f.err != nil {
		return nil, f.err
	}
	resolved := *f.resolved
	resolved.Descriptor.AggregateType = row.AggregateType
	return &resolved, nil
}
