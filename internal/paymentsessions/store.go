// Package paymentsessions stores payment attempts and guards their status
// transitions. A session only ever moves from pending to paid or failed.
package paymentsessions

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/obedyakpa0-dev/VitalAndGreen/pkg/db"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/db/models"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/enums"
	pkgerrors "github.com/obedyakpa0-dev/VitalAndGreen/pkg/errors"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/logger"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/outbox"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/outbox/payloads"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/types"
)

const maxReferenceAttempts = 3

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// CreateInput is the checkout snapshot frozen on a new session.
type CreateInput struct {
	Customer        types.Customer
	Items           types.CartItems
	Totals          types.Totals
	ShippingAddress types.ShippingAddress
	Currency        enums.Currency
}

// Store is the payment session store.
type Store interface {
	Create(ctx context.Context, input CreateInput) (*models.PaymentSession, error)
	FindByReference(ctx context.Context, reference string) (*models.PaymentSession, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentSession, error)
	SetCheckoutURL(ctx context.Context, session *models.PaymentSession, url string) error
	RecordPayload(ctx context.Context, session *models.PaymentSession, payload types.RawJSON) error
	MarkFailed(ctx context.Context, session *models.PaymentSession, payload types.RawJSON, reason string) (*models.PaymentSession, error)
	ClaimForOrder(ctx context.Context, tx *gorm.DB, session *models.PaymentSession, orderID uuid.UUID) (bool, error)
}

type StoreParams struct {
	Repository      *Repository
	TxRunner        txRunner
	Outbox          outbox.Emitter
	Logger          *logger.Logger
	ReferencePrefix string
	Now             func() time.Time
	NewReference    func(prefix string, now time.Time) string
}

type store struct {
	repo   *Repository
	tx     txRunner
	outbox outbox.Emitter
	logg   *logger.Logger
	prefix string
	now    func() time.Time
	newRef func(prefix string, now time.Time) string
}

func NewStore(params StoreParams) (Store, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("payment session repository required")
	}
	if params.TxRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	newRef := params.NewReference
	if newRef == nil {
		newRef = NewReference
	}
	return &store{
		repo:   params.Repository,
		tx:     params.TxRunner,
		outbox: params.Outbox,
		logg:   params.Logger,
		prefix: params.ReferencePrefix,
		now:    now,
		newRef: newRef,
	}, nil
}

// Create persists a pending session. A reference collision is retried with a
// fresh reference a bounded number of times.
func (s *store) Create(ctx context.Context, input CreateInput) (*models.PaymentSession, error) {
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	if !input.Totals.Total.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "total must be greater than zero")
	}
	currency := input.Currency
	if currency == "" {
		currency = enums.CurrencyGHS
	}
	if !currency.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unsupported currency")
	}

	var lastErr error
	for attempt := 0; attempt < maxReferenceAttempts; attempt++ {
		now := s.now()
		session := &models.PaymentSession{
			ID:              uuid.New(),
			Reference:       s.newRef(s.prefix, now),
			Amount:          input.Totals.Total,
			Currency:        currency,
			Status:          enums.SessionStatusPending,
			Customer:        input.Customer.Normalize(),
			Items:           input.Items,
			Subtotal:        input.Totals.Subtotal,
			Discount:        input.Totals.Discount,
			DiscountRate:    input.Totals.DiscountRate,
			Tax:             input.Totals.Tax,
			Shipping:        input.Totals.Shipping,
			Total:           input.Totals.Total,
			ShippingAddress: input.ShippingAddress,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		err := s.repo.Create(ctx, session)
		if err == nil {
			return session, nil
		}
		if !dbpkg.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment session")
		}
		lastErr = err
		if s.logg != nil {
			s.logg.Warn(s.logg.WithReference(ctx, session.Reference), "payment reference collision, retrying")
		}
	}
	return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, lastErr, "duplicate payment reference")
}

func (s *store) FindByReference(ctx context.Context, reference string) (*models.PaymentSession, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reference is required")
	}
	session, err := s.repo.FindByReference(ctx, reference)
	if err != nil {
		if dbpkg.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment session not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment session")
	}
	return session, nil
}

func (s *store) FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentSession, error) {
	session, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if dbpkg.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment session not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment session")
	}
	return session, nil
}

func (s *store) SetCheckoutURL(ctx context.Context, session *models.PaymentSession, url string) error {
	now := s.now()
	ok, err := s.repo.SetCheckoutURL(ctx, session.ID, url, now)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store checkout url")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "payment session is no longer pending")
	}
	session.CheckoutURL = &url
	session.UpdatedAt = now
	return nil
}

// RecordPayload is best effort: a session that went terminal in the meantime
// keeps its final payload.
func (s *store) RecordPayload(ctx context.Context, session *models.PaymentSession, payload types.RawJSON) error {
	if len(payload) == 0 {
		return nil
	}
	now := s.now()
	ok, err := s.repo.RecordPayload(ctx, session.ID, payload, now)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record provider payload")
	}
	if ok {
		session.ProviderPayload = payload
		session.UpdatedAt = now
	}
	return nil
}

// MarkFailed moves a pending session to failed and records a payment_failed
// event. Marking an already failed session is a no-op; a paid session is
// never overwritten.
func (s *store) MarkFailed(ctx context.Context, session *models.PaymentSession, payload types.RawJSON, reason string) (*models.PaymentSession, error) {
	if session == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment session required")
	}
	now := s.now()
	var changed bool
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ok, err := s.repo.WithTx(tx).MarkFailed(ctx, session.ID, payload, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payment session failed")
		}
		if !ok {
			return nil
		}
		changed = true
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentFailed,
			AggregateType: enums.AggregatePaymentSession,
			AggregateID:   session.ID,
			OccurredAt:    now,
			Data: payloads.PaymentFailedEvent{
				SessionID:        session.ID,
				PaymentReference: session.Reference,
				CustomerEmail:    session.Customer.Email,
				Reason:           reason,
				FailedAt:         now,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	if changed {
		session.Status = enums.SessionStatusFailed
		session.UpdatedAt = now
		if len(payload) > 0 {
			session.ProviderPayload = payload
		}
		if s.logg != nil {
			s.logg.Info(s.logg.WithReference(ctx, session.Reference), "payment session marked failed")
		}
		return session, nil
	}

	current, err := s.FindByID(ctx, session.ID)
	if err != nil {
		return nil, err
	}
	switch current.Status {
	case enums.SessionStatusFailed:
		return current, nil
	case enums.SessionStatusPaid:
		return current, pkgerrors.New(pkgerrors.CodeStateConflict, "payment session already paid")
	default:
		return current, pkgerrors.New(pkgerrors.CodeConflict, "payment session changed concurrently")
	}
}

// ClaimForOrder runs inside the materializer's transaction. It returns false
// when another caller already claimed or failed the session.
func (s *store) ClaimForOrder(ctx context.Context, tx *gorm.DB, session *models.PaymentSession, orderID uuid.UUID) (bool, error) {
	if session == nil || orderID == uuid.Nil {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "session and order id required")
	}
	now := s.now()
	ok, err := s.repo.WithTx(tx).ClaimForOrder(ctx, session.ID, orderID, session.ProviderPayload, now)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim payment session")
	}
	return ok, nil
}
