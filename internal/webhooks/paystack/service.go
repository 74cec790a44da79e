package paystackwebhook

import (
	"context"
	"strings"

	"github.com/obedyakpa0-dev/VitalAndGreen/internal/materializer"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/db/models"
	pkgerrors "github.com/obedyakpa0-dev/VitalAndGreen/pkg/errors"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/logger"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/metrics"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/paystack"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/types"
)

// Consumer scopes the idempotency keys of webhook deliveries.
const Consumer = "paystack_webhook"

const channelWebhook = "webhook"

type signatureVerifier interface {
	VerifySignature(rawBody []byte, signature string) bool
}

type sessionStore interface {
	FindByReference(ctx context.Context, reference string) (*models.PaymentSession, error)
	MarkFailed(ctx context.Context, session *models.PaymentSession, payload types.RawJSON, reason string) (*models.PaymentSession, error)
}

// Guard remembers processed deliveries.
type Guard interface {
	CheckAndMarkProcessed(ctx context.Context, consumer, eventID string) (bool, error)
	Delete(ctx context.Context, consumer, eventID string) error
}

type ServiceParams struct {
	Verifier     signatureVerifier
	Sessions     sessionStore
	Materializer materializer.Materializer
	Guard        Guard
	Logger       *logger.Logger
	Metrics      *metrics.PaymentMetrics
}

type Service struct {
	verifier     signatureVerifier
	sessions     sessionStore
	materializer materializer.Materializer
	guard        Guard
	logg         *logger.Logger
	metrics      *metrics.PaymentMetrics
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Verifier == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "signature verifier required")
	}
	if params.Sessions == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment session store required")
	}
	if params.Materializer == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order materializer required")
	}
	return &Service{
		verifier:     params.Verifier,
		sessions:     params.Sessions,
		materializer: params.Materializer,
		guard:        params.Guard,
		logg:         params.Logger,
		metrics:      params.Metrics,
	}, nil
}

// Handle authenticates and applies one webhook delivery. A nil error means
// the delivery must be acknowledged. Only unexpected internal failures are
// returned so that the provider redelivers.
func (s *Service) Handle(ctx context.Context, rawBody []byte, signature string) error {
	if len(rawBody) == 0 || strings.TrimSpace(signature) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "signature and body are required")
	}
	if !s.verifier.VerifySignature(rawBody, signature) {
		s.metrics.IncReconciliation(channelWebhook, "invalid_signature")
		if s.logg != nil {
			s.logg.Warn(ctx, "paystack webhook rejected: invalid signature")
		}
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid signature")
	}

	event, err := paystack.ParseEvent(rawBody)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid webhook payload")
	}
	ctx = s.withFields(ctx, event)
	if event.Reference == "" {
		s.ack(ctx, "ignored", "webhook without reference acknowledged")
		return nil
	}
	if event.Event != paystack.EventChargeSuccess && event.Event != paystack.EventChargeFailed {
		s.ack(ctx, "ignored", "webhook event ignored")
		return nil
	}

	eventID := event.Event + ":" + event.Reference
	if s.guard != nil {
		seen, err := s.guard.CheckAndMarkProcessed(ctx, Consumer, eventID)
		switch {
		case err != nil:
			// the materializer is idempotent on its own
			if s.logg != nil {
				s.logg.Warn(ctx, "webhook idempotency guard unavailable: "+err.Error())
			}
		case seen:
			s.ack(ctx, "duplicate", "duplicate webhook delivery acknowledged")
			return nil
		}
	}

	if err := s.apply(ctx, event, rawBody); err != nil {
		if s.guard != nil {
			if delErr := s.guard.Delete(ctx, Consumer, eventID); delErr != nil && s.logg != nil {
				s.logg.Error(ctx, "failed to release webhook idempotency key", delErr)
			}
		}
		s.metrics.IncReconciliation(channelWebhook, "error")
		if s.logg != nil {
			s.logg.Error(ctx, "paystack webhook processing failed", err)
		}
		return err
	}
	return nil
}

func (s *Service) apply(ctx context.Context, event paystack.Event, rawBody []byte) error {
	session, err := s.sessions.FindByReference(ctx, event.Reference)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			s.ack(ctx, "unknown_reference", "webhook for unknown reference acknowledged")
			return nil
		}
		return err
	}

	payload := types.RawJSON(rawBody)
	switch event.Event {
	case paystack.EventChargeSuccess:
		// the verify channel settles a charge whose payload contradicts its event name
		if event.Status != paystack.StatusSuccess {
			if s.logg != nil {
				ctx = s.logg.WithField(ctx, "charge_status", string(event.Status))
			}
			s.ack(ctx, "status_mismatch", "charge.success without a successful charge status acknowledged")
			return nil
		}
		order, err := s.materializer.Materialize(ctx, session, payload)
		if err != nil {
			return s.absorb(ctx, err)
		}
		if s.logg != nil {
			ctx = s.logg.WithOrderID(ctx, order.ID.String())
		}
		s.ack(ctx, "success", "webhook reconciled order")
	case paystack.EventChargeFailed:
		if _, err := s.sessions.MarkFailed(ctx, session, payload, event.Event); err != nil {
			return s.absorb(ctx, err)
		}
		s.ack(ctx, "failed", "webhook marked session failed")
	}
	return nil
}

// absorb acknowledges domain outcomes that a redelivery cannot change.
func (s *Service) absorb(ctx context.Context, err error) error {
	typed := pkgerrors.As(err)
	if typed == nil {
		return err
	}
	switch typed.Code() {
	case pkgerrors.CodeInsufficientStock,
		pkgerrors.CodeStateConflict,
		pkgerrors.CodeConflict,
		pkgerrors.CodeNotFound,
		pkgerrors.CodeValidation:
		s.ack(ctx, "absorbed", "webhook acknowledged after domain error: "+typed.Error())
		return nil
	}
	return err
}

func (s *Service) ack(ctx context.Context, result, msg string) {
	s.metrics.IncReconciliation(channelWebhook, result)
	if s.logg != nil {
		s.logg.Info(ctx, msg)
	}
}

func (s *Service) withFields(ctx context.Context, event paystack.Event) context.Context {
	if s.logg == nil {
		return ctx
	}
	ctx = s.logg.WithField(ctx, "webhook_event", event.Event)
	if event.Reference != "" {
		ctx = s.logg.WithReference(ctx, event.Reference)
	}
	return ctx
}
