// Package payments opens payment sessions with the provider and reconciles
// them when the customer returns from the hosted checkout.
package payments

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/obedyakpa0-dev/VitalAndGreen/internal/gateway"
	"github.com/obedyakpa0-dev/VitalAndGreen/internal/inventory"
	"github.com/obedyakpa0-dev/VitalAndGreen/internal/materializer"
	"github.com/obedyakpa0-dev/VitalAndGreen/internal/paymentsessions"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/db/models"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/enums"
	pkgerrors "github.com/obedyakpa0-dev/VitalAndGreen/pkg/errors"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/logger"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/metrics"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/paystack"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/types"
)

const channelVerify = "verify"

// VerifyStatus is what the storefront shows after the provider redirect.
type VerifyStatus string

const (
	VerifySuccess VerifyStatus = "success"
	VerifyPending VerifyStatus = "pending"
	VerifyFailed  VerifyStatus = "failed"
)

// InitializeInput is the checkout submitted by the storefront.
type InitializeInput struct {
	Customer        types.Customer
	Items           types.CartItems
	Totals          types.Totals
	ShippingAddress types.ShippingAddress
	Currency        enums.Currency
}

type InitializeResult struct {
	Reference   string `json:"reference"`
	CheckoutURL string `json:"checkoutUrl"`
}

type VerifyResult struct {
	Status VerifyStatus  `json:"status"`
	Order  *models.Order `json:"order,omitempty"`
}

type availabilityChecker interface {
	CheckAvailability(ctx context.Context, tx *gorm.DB, lines []inventory.Line) error
}

// Service is the client-facing half of payment reconciliation.
type Service interface {
	Initialize(ctx context.Context, input InitializeInput) (*InitializeResult, error)
	Verify(ctx context.Context, reference string) (*VerifyResult, error)
}

type ServiceParams struct {
	Sessions     paymentsessions.Store
	Gateway      gateway.Gateway
	Materializer materializer.Materializer
	Inventory    availabilityChecker
	Logger       *logger.Logger
	Metrics      *metrics.PaymentMetrics
	Currency     enums.Currency
}

type service struct {
	sessions     paymentsessions.Store
	gateway      gateway.Gateway
	materializer materializer.Materializer
	inventory    availabilityChecker
	logg         *logger.Logger
	metrics      *metrics.PaymentMetrics
	currency     enums.Currency
}

func NewService(params ServiceParams) (Service, error) {
	if params.Sessions == nil {
		return nil, fmt.Errorf("payment session store required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if params.Materializer == nil {
		return nil, fmt.Errorf("order materializer required")
	}
	if params.Inventory == nil {
		return nil, fmt.Errorf("inventory ledger required")
	}
	currency := params.Currency
	if currency == "" {
		currency = enums.CurrencyGHS
	}
	return &service{
		sessions:     params.Sessions,
		gateway:      params.Gateway,
		materializer: params.Materializer,
		inventory:    params.Inventory,
		logg:         params.Logger,
		metrics:      params.Metrics,
		currency:     currency,
	}, nil
}

// Initialize persists a pending session and opens the provider checkout. A
// provider decline marks the session failed; a transport failure leaves it
// pending because the charge may still exist on the provider side.
func (s *service) Initialize(ctx context.Context, input InitializeInput) (*InitializeResult, error) {
	if err := validateInitialize(input); err != nil {
		return nil, err
	}
	if err := s.gateway.CheckConfigured(); err != nil {
		return nil, err
	}
	if err := s.inventory.CheckAvailability(ctx, nil, inventory.LinesFromCart(input.Items)); err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "cart contains unknown products")
		}
		return nil, err
	}

	currency := input.Currency
	if currency == "" {
		currency = s.currency
	}
	session, err := s.sessions.Create(ctx, paymentsessions.CreateInput{
		Customer:        input.Customer,
		Items:           input.Items,
		Totals:          input.Totals,
		ShippingAddress: input.ShippingAddress,
		Currency:        currency,
	})
	if err != nil {
		return nil, err
	}
	ctx = s.logCtx(ctx, session.Reference)

	checkout, err := s.gateway.InitializeCharge(ctx, session)
	if err != nil {
		if gateway.IsRejected(err) {
			if _, markErr := s.sessions.MarkFailed(ctx, session, nil, "provider rejected initialize"); markErr != nil && s.logg != nil {
				s.logg.Error(ctx, "failed to mark rejected session failed", markErr)
			}
		}
		return nil, err
	}

	if err := s.sessions.SetCheckoutURL(ctx, session, checkout.URL); err != nil {
		return nil, err
	}
	if s.logg != nil {
		s.logg.Info(ctx, "payment session initialized")
	}
	return &InitializeResult{Reference: session.Reference, CheckoutURL: checkout.URL}, nil
}

// Verify reconciles a session against the provider. Terminal sessions are
// answered locally; ambiguous provider answers never mutate state.
func (s *service) Verify(ctx context.Context, reference string) (*VerifyResult, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reference is required")
	}
	session, err := s.sessions.FindByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	ctx = s.logCtx(ctx, session.Reference)

	switch session.Status {
	case enums.SessionStatusPaid:
		return s.materialize(ctx, session, nil)
	case enums.SessionStatusFailed:
		return s.result(VerifyFailed, nil), nil
	}

	status, raw, err := s.gateway.QueryChargeStatus(ctx, session.Reference)
	if err != nil {
		s.metrics.IncReconciliation(channelVerify, "provider_error")
		return nil, err
	}

	switch {
	case status == paystack.StatusSuccess:
		return s.materialize(ctx, session, raw)
	case status.IsFailure():
		current, err := s.sessions.MarkFailed(ctx, session, raw, string(status))
		if err != nil {
			if pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) && current != nil && current.Status == enums.SessionStatusPaid {
				return s.materialize(ctx, current, nil)
			}
			if pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
				return s.result(VerifyPending, nil), nil
			}
			return nil, err
		}
		return s.result(VerifyFailed, nil), nil
	default:
		if err := s.sessions.RecordPayload(ctx, session, raw); err != nil && s.logg != nil {
			s.logg.Warn(ctx, "failed to record provider payload: "+err.Error())
		}
		return s.result(VerifyPending, nil), nil
	}
}

func (s *service) materialize(ctx context.Context, session *models.PaymentSession, raw types.RawJSON) (*VerifyResult, error) {
	order, err := s.materializer.Materialize(ctx, session, raw)
	if err != nil {
		switch {
		case materializer.IsInProgress(err), pkgerrors.IsCode(err, pkgerrors.CodeConflict):
			return s.result(VerifyPending, nil), nil
		case pkgerrors.IsCode(err, pkgerrors.CodeStateConflict):
			return s.result(VerifyFailed, nil), nil
		}
		s.metrics.IncReconciliation(channelVerify, "error")
		return nil, err
	}
	return s.result(VerifySuccess, order), nil
}

func (s *service) result(status VerifyStatus, order *models.Order) *VerifyResult {
	s.metrics.IncReconciliation(channelVerify, string(status))
	return &VerifyResult{Status: status, Order: order}
}

func (s *service) logCtx(ctx context.Context, reference string) context.Context {
	if s.logg == nil {
		return ctx
	}
	return s.logg.WithReference(ctx, reference)
}

func validateInitialize(input InitializeInput) error {
	if len(input.Items) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	if strings.TrimSpace(input.Customer.Email) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "customer email is required")
	}
	if !input.Totals.Total.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "total must be greater than zero")
	}
	for i, item := range input.Items {
		if err := item.Validate(); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, fmt.Sprintf("invalid item at position %d", i))
		}
	}
	if input.Currency != "" && !input.Currency.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unsupported currency")
	}
	return nil
}
