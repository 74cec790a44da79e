package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"sync"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/config"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/db/models"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/logger"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/metrics"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/outbox/registry"
)

type outcome string

const (
	outcomePublished outcome = "published"
	outcomeRetry     outcome = "retry"
	outcomeParked    outcome = "parked"
)

const (
	defaultMaxAttempts = 10
	sendTimeout        = 15 * time.Second
	maxIdleBackoff     = 10 * time.Second
	jitterWindow       = 250 * time.Millisecond
)

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type pubSubClient interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type registryResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

// publisher is the slice of a Pub/Sub publisher the relay needs. Messages
// for one order share an ordering key, so a failed send must resume the key
// before the next attempt.
type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
	ResumePublish(orderingKey string)
}

type publishResult interface {
	Get(context.Context) (string, error)
}

type RelayParams struct {
	Outbox     config.OutboxConfig
	Logger     *logger.Logger
	DB         dbClient
	PubSub     pubSubClient
	Repository outboxRepository
	Registry   registryResolver
	Metrics    *metrics.OutboxMetrics
	// Publishers overrides how topic publishers are obtained.
	Publishers func(topic string) publisher
}

// Relay moves committed outbox rows (order_paid, order_cancelled,
// payment_failed, ...) onto Pub/Sub. A row is marked published only after
// the broker acknowledged it.
type Relay struct {
	logg         *logger.Logger
	db           dbClient
	pubsub       pubSubClient
	repo         outboxRepository
	registry     registryResolver
	metrics      *metrics.OutboxMetrics
	publisherFor func(topic string) publisher
	batchSize    int
	maxAttempts  int
	pollInterval time.Duration

	mu         sync.Mutex
	publishers map[string]*gcppubsub.Publisher
}

func NewRelay(params RelayParams) (*Relay, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	case params.DB == nil:
		return nil, errors.New("database client is required")
	case params.PubSub == nil:
		return nil, errors.New("pubsub client is required")
	case params.Repository == nil:
		return nil, errors.New("outbox repository is required")
	case params.Registry == nil:
		return nil, errors.New("event registry is required")
	}

	r := &Relay{
		logg:         params.Logger,
		db:           params.DB,
		pubsub:       params.PubSub,
		repo:         params.Repository,
		registry:     params.Registry,
		metrics:      params.Metrics,
		batchSize:    params.Outbox.BatchSize,
		maxAttempts:  params.Outbox.MaxAttempts,
		pollInterval: params.Outbox.PollInterval(),
		publishers:   make(map[string]*gcppubsub.Publisher),
	}
	if r.batchSize <= 0 {
		r.batchSize = 50
	}
	if r.maxAttempts <= 0 {
		r.maxAttempts = defaultMaxAttempts
	}
	r.publisherFor = params.Publishers
	if r.publisherFor == nil {
		r.publisherFor = r.cachedPublisher
	}
	return r, nil
}

// Run polls until ctx is cancelled. Empty polls wait for the poll interval;
// failed batches back off exponentially up to maxIdleBackoff.
func (r *Relay) Run(ctx context.Context) error {
	for name, ping := range map[string]func(context.Context) error{
		"database": r.db.Ping,
		"pubsub":   r.pubsub.Ping,
	} {
		if err := ping(ctx); err != nil {
			r.logg.Error(ctx, name+" ping failed", err)
			return fmt.Errorf("%s ping failed: %w", name, err)
		}
	}

	wait := r.pollInterval
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		handled, err := r.drain(ctx)
		switch {
		case err != nil:
			r.logg.Error(ctx, "outbox relay batch failed", err)
			wait = nextBackoff(wait, r.pollInterval, maxIdleBackoff)
		case handled > 0:
			wait = r.pollInterval
			continue
		default:
			wait = r.pollInterval
		}

		if err := sleepCtx(ctx, withJitter(wait)); err != nil {
			return err
		}
	}
}

// Close flushes and stops every cached publisher.
func (r *Relay) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for topic, p := range r.publishers {
		p.Stop()
		delete(r.publishers, topic)
	}
}

// drain relays one batch inside a transaction so that the row locks taken by
// the fetch are held until every row in the batch has been marked.
func (r *Relay) drain(ctx context.Context) (int, error) {
	handled := 0
	err := r.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := r.repo.FetchUnpublishedForPublish(tx, r.batchSize, r.maxAttempts)
		if err != nil {
			return fmt.Errorf("fetch outbox rows: %w", err)
		}
		r.metrics.SetBatchSize(len(rows))

		for _, row := range rows {
			result, err := r.relay(ctx, tx, row)
			if err != nil {
				return err
			}
			r.metrics.IncRelayed(string(row.EventType), string(result))
			handled++
		}
		return nil
	})
	return handled, err
}

// relay sends one row and records the result on it. The returned error is
// reserved for failures to update the row itself.
func (r *Relay) relay(ctx context.Context, tx *gorm.DB, row models.OutboxEvent) (outcome, error) {
	logCtx := r.logg.WithFields(ctx, rowFields(row))

	resolved, err := r.registry.Resolve(row)
	if err != nil {
		return r.park(logCtx, tx, row, "undecodable", err)
	}
	topic := resolved.Descriptor.Topic
	logCtx = r.logg.WithFields(logCtx, map[string]any{
		"topic":    topic,
		"event_id": resolved.Envelope.EventID,
	})

	pub := r.publisherFor(topic)
	if pub == nil {
		return r.park(logCtx, tx, row, "no_publisher", fmt.Errorf("no publisher for topic %s", topic))
	}

	msg := buildMessage(row, resolved)
	sendErr := send(ctx, pub, msg)
	if sendErr == nil {
		if err := r.repo.MarkPublishedTx(tx, row.ID); err != nil {
			return "", fmt.Errorf("mark published %s: %w", row.ID, err)
		}
		r.logg.Info(logCtx, "outbox event published")
		return outcomePublished, nil
	}

	var nonRetryable registry.NonRetryableError
	if errors.As(sendErr, &nonRetryable) {
		return r.park(logCtx, tx, row, "non_retryable", sendErr)
	}
	if row.AttemptCount+1 >= r.maxAttempts {
		return r.park(logCtx, tx, row, "max_attempts", fmt.Errorf("giving up after %d attempts: %w", row.AttemptCount+1, sendErr))
	}

	pub.ResumePublish(msg.OrderingKey)
	r.logg.Warn(r.logg.WithField(logCtx, "error", sendErr.Error()), "outbox publish failed, will retry")
	if err := r.repo.MarkFailedTx(tx, row.ID, sendErr); err != nil {
		return "", fmt.Errorf("mark failed %s: %w", row.ID, err)
	}
	return outcomeRetry, nil
}

// park stops retrying a row. It stays in outbox_events with its payload and
// last error so it can be replayed by hand.
func (r *Relay) park(ctx context.Context, tx *gorm.DB, row models.OutboxEvent, reason string, cause error) (outcome, error) {
	ctx = r.logg.WithFields(ctx, map[string]any{
		"park_reason": reason,
		"error":       cause.Error(),
	})
	r.logg.Warn(ctx, "outbox event parked")
	if err := r.repo.MarkTerminalTx(tx, row.ID, cause, r.maxAttempts); err != nil {
		return "", fmt.Errorf("park %s: %w", row.ID, err)
	}
	return outcomeParked, nil
}

func (r *Relay) cachedPublisher(topic string) publisher {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.publishers[topic]; ok {
		return gcpPublisher{p}
	}
	p := r.pubsub.Publisher(topic)
	if p == nil {
		return nil
	}
	p.EnableMessageOrdering = true
	r.publishers[topic] = p
	return gcpPublisher{p}
}

// buildMessage keeps the stored envelope as the message body. Events of one
// order share the order id as ordering key so consumers see paid before
// cancelled.
func buildMessage(row models.OutboxEvent, resolved *registry.ResolvedEvent) *gcppubsub.Message {
	occurred := row.CreatedAt
	if !resolved.Envelope.OccurredAt.IsZero() {
		occurred = resolved.Envelope.OccurredAt
	}
	return &gcppubsub.Message{
		Data:        row.Payload,
		OrderingKey: row.AggregateID.String(),
		Attributes: map[string]string{
			"event_id":       resolved.Envelope.EventID,
			"event_type":     string(row.EventType),
			"aggregate_type": string(row.AggregateType),
			"aggregate_id":   row.AggregateID.String(),
			"schema_version": strconv.Itoa(resolved.Envelope.Version),
			"occurred_at":    occurred.UTC().Format(time.RFC3339Nano),
		},
	}
}

func send(ctx context.Context, pub publisher, msg *gcppubsub.Message) error {
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	result := pub.Publish(ctx, msg)
	if result == nil {
		return registry.NewNonRetryableError(errors.New("publisher returned no result"))
	}
	_, err := result.Get(ctx)
	return err
}

func rowFields(row models.OutboxEvent) map[string]any {
	fields := map[string]any{
		"outbox_id":      row.ID.String(),
		"event_type":     row.EventType,
		"aggregate_type": row.AggregateType,
		"aggregate_id":   row.AggregateID.String(),
		"attempt_count":  row.AttemptCount,
	}
	if row.LastError != nil {
		fields["last_error"] = *row.LastError
	}
	return fields
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func nextBackoff(current, base, ceiling time.Duration) time.Duration {
	if current <= 0 {
		current = base
	}
	return min(current*2, ceiling)
}

func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d + rand.N(jitterWindow)
}

type gcpPublisher struct {
	p *gcppubsub.Publisher
}

func (g gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return g.p.Publish(ctx, msg)
}

func (g gcpPublisher) ResumePublish(orderingKey string) {
	g.p.ResumePublish(orderingKey)
}
