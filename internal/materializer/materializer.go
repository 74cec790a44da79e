// Package materializer turns a paid payment session into exactly one order.
package materializer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/obedyakpa0-dev/VitalAndGreen/internal/inventory"
	"github.com/obedyakpa0-dev/VitalAndGreen/internal/orders"
	dbpkg "github.com/obedyakpa0-dev/VitalAndGreen/pkg/db"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/db/models"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/enums"
	pkgerrors "github.com/obedyakpa0-dev/VitalAndGreen/pkg/errors"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/logger"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/metrics"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/outbox"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/outbox/payloads"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/types"
)

const (
	outcomeCreated    = "created"
	outcomeExisting   = "existing"
	outcomeLostClaim  = "lost_claim"
	outcomeInProgress = "in_progress"
	outcomeFailed     = "failed"
)

// ErrMaterializationInProgress is returned when another caller holds the
// claim but has not committed yet. It is retryable.
var ErrMaterializationInProgress = pkgerrors.New(pkgerrors.CodeConflict, "order materialization in progress")

// IsInProgress reports whether err means a concurrent materialization owns the session.
func IsInProgress(err error) bool {
	return errors.Is(err, ErrMaterializationInProgress)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type sessionStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentSession, error)
	ClaimForOrder(ctx context.Context, tx *gorm.DB, session *models.PaymentSession, orderID uuid.UUID) (bool, error)
}

type stockLedger interface {
	CheckAvailability(ctx context.Context, tx *gorm.DB, lines []inventory.Line) error
	Decrement(ctx context.Context, tx *gorm.DB, lines []inventory.Line) error
}

// Materializer creates the order for a session the provider reported as paid.
type Materializer interface {
	Materialize(ctx context.Context, session *models.PaymentSession, payload types.RawJSON) (*models.Order, error)
}

type Params struct {
	Sessions       sessionStore
	Inventory      stockLedger
	Orders         orders.Repository
	TxRunner       txRunner
	Outbox         outbox.Emitter
	Logger         *logger.Logger
	Metrics        *metrics.PaymentMetrics
	Now            func() time.Time
	NewOrderNumber func(now time.Time) string
}

type materializer struct {
	sessions  sessionStore
	inventory stockLedger
	orders    orders.Repository
	tx        txRunner
	outbox    outbox.Emitter
	logg      *logger.Logger
	metrics   *metrics.PaymentMetrics
	now       func() time.Time
	newNumber func(now time.Time) string
}

func New(params Params) (Materializer, error) {
	if params.Sessions == nil {
		return nil, fmt.Errorf("payment session store required")
	}
	if params.Inventory == nil {
		return nil, fmt.Errorf("inventory ledger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
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
	newNumber := params.NewOrderNumber
	if newNumber == nil {
		newNumber = orders.NewOrderNumber
	}
	return &materializer{
		sessions:  params.Sessions,
		inventory: params.Inventory,
		orders:    params.Orders,
		tx:        params.TxRunner,
		outbox:    params.Outbox,
		logg:      params.Logger,
		metrics:   params.Metrics,
		now:       now,
		newNumber: newNumber,
	}, nil
}

// Materialize claims the session, checks and decrements stock, and inserts
// the order in a single transaction. Any failure rolls everything back and
// leaves the session pending. A caller that loses the claim gets the
// winner's order once it has committed.
func (m *materializer) Materialize(ctx context.Context, session *models.PaymentSession, payload types.RawJSON) (*models.Order, error) {
	if session == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment session required")
	}
	ctx = m.logCtx(ctx, session.Reference)

	if session.OrderID != nil {
		order, err := m.existingOrder(ctx, *session.OrderID)
		if err != nil {
			return nil, err
		}
		m.metrics.IncMaterialization(outcomeExisting)
		return order, nil
	}
	if session.Status == enums.SessionStatusFailed {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payment session already failed")
	}

	claim := *session
	if len(payload) > 0 {
		claim.ProviderPayload = payload
	}
	lines := inventory.LinesFromCart(session.Items)
	orderID := uuid.New()

	var created *models.Order
	won := false
	err := m.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ok, err := m.sessions.ClaimForOrder(ctx, tx, &claim, orderID)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		won = true

		if err := m.inventory.CheckAvailability(ctx, tx, lines); err != nil {
			return err
		}

		now := m.now()
		order := buildOrder(orderID, m.newNumber(now), session, now)
		if err := m.orders.WithTx(tx).Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert order")
		}
		if err := m.inventory.Decrement(ctx, tx, lines); err != nil {
			return err
		}
		if err := m.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderPaid,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			OccurredAt:    now,
			Data: payloads.OrderPaidEvent{
				OrderID:          order.ID,
				OrderNumber:      order.OrderNumber,
				SessionID:        session.ID,
				PaymentReference: session.Reference,
				CustomerEmail:    session.Customer.Email,
				Currency:         order.Currency,
				Total:            order.Total,
				ItemCount:        len(order.Items),
				PaidAt:           now,
			},
		}); err != nil {
			return err
		}
		created = order
		return nil
	})
	if err != nil {
		m.metrics.IncMaterialization(outcomeFailed)
		m.logFailure(ctx, err)
		return nil, err
	}

	if !won {
		return m.resolveLostClaim(ctx, session.ID)
	}

	session.Status = enums.SessionStatusPaid
	session.OrderID = &created.ID
	session.ProviderPayload = claim.ProviderPayload
	m.metrics.IncMaterialization(outcomeCreated)
	if m.logg != nil {
		m.logg.Info(m.logg.WithOrderID(ctx, created.ID.String()), fmt.Sprintf("order %s created", created.OrderNumber))
	}
	return created, nil
}

// resolveLostClaim re-reads the session after a failed compare-and-swap.
func (m *materializer) resolveLostClaim(ctx context.Context, sessionID uuid.UUID) (*models.Order, error) {
	current, err := m.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	switch {
	case current.Status == enums.SessionStatusPaid && current.OrderID != nil:
		order, err := m.existingOrder(ctx, *current.OrderID)
		if err != nil {
			return nil, err
		}
		m.metrics.IncMaterialization(outcomeLostClaim)
		return order, nil
	case current.Status == enums.SessionStatusFailed:
		m.metrics.IncMaterialization(outcomeLostClaim)
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payment session already failed")
	default:
		m.metrics.IncMaterialization(outcomeInProgress)
		if m.logg != nil {
			m.logg.Warn(ctx, "order materialization already in progress")
		}
		return nil, ErrMaterializationInProgress
	}
}

func (m *materializer) existingOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, err := m.orders.FindByID(ctx, id)
	if err != nil {
		if dbpkg.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeInternal, "paid session references a missing order")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (m *materializer) logCtx(ctx context.Context, reference string) context.Context {
	if m.logg == nil {
		return ctx
	}
	return m.logg.WithReference(ctx, reference)
}

func (m *materializer) logFailure(ctx context.Context, err error) {
	if m.logg == nil {
		return
	}
	if pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock) || pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		m.logg.Warn(ctx, "order materialization rolled back: "+err.Error())
		return
	}
	m.logg.Error(ctx, "order materialization failed", err)
}

// buildOrder copies the frozen checkout snapshot; catalog prices are never re-read.
func buildOrder(id uuid.UUID, number string, session *models.PaymentSession, now time.Time) *models.Order {
	reference := session.Reference
	items := make([]models.OrderItem, 0, len(session.Items))
	for _, item := range session.Items {
		items = append(items, models.OrderItem{
			ID:        uuid.New(),
			OrderID:   id,
			ProductID: item.ProductID,
			Name:      item.Name,
			UnitPrice: item.Price,
			Quantity:  item.Quantity,
			SizeLabel: item.SizeLabel,
			LineTotal: item.LineTotal(),
			CreatedAt: now,
		})
	}
	return &models.Order{
		ID:               id,
		OrderNumber:      number,
		Customer:         session.Customer,
		ShippingAddress:  session.ShippingAddress,
		Items:            items,
		Currency:         session.Currency,
		Subtotal:         session.Subtotal,
		Discount:         session.Discount,
		DiscountRate:     session.DiscountRate,
		Tax:              session.Tax,
		Shipping:         session.Shipping,
		Total:            session.Total,
		Status:           enums.OrderStatusConfirmed,
		PaymentStatus:    enums.PaymentStatusCompleted,
		PaymentReference: &reference,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}
