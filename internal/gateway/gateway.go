// Package gateway adapts the Paystack client to payment sessions.
package gateway

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/config"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/db/models"
	pkgerrors "github.com/obedyakpa0-dev/VitalAndGreen/pkg/errors"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/logger"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/metrics"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/paystack"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/types"
)

const (
	opInitialize = "initialize"
	opVerify     = "verify"
)

// Checkout is the hosted payment page opened for a session.
type Checkout struct {
	URL string
	Raw types.RawJSON
}

// Gateway is what the reconciliation flows need from the payment provider.
type Gateway interface {
	InitializeCharge(ctx context.Context, session *models.PaymentSession) (*Checkout, error)
	QueryChargeStatus(ctx context.Context, reference string) (paystack.ProviderStatus, types.RawJSON, error)
	VerifySignature(rawBody []byte, signature string) bool
	CheckConfigured() error
}

type paystackClient interface {
	Initialize(ctx context.Context, req paystack.InitializeRequest) (*paystack.InitializeResult, error)
	Verify(ctx context.Context, reference string) (*paystack.ChargeResult, error)
}

type Params struct {
	Config  config.PaystackConfig
	Client  paystackClient
	Logger  *logger.Logger
	Metrics *metrics.PaymentMetrics
	Now     func() time.Time
}

type adapter struct {
	cfg     config.PaystackConfig
	client  paystackClient
	logg    *logger.Logger
	metrics *metrics.PaymentMetrics
	now     func() time.Time
}

// New builds the adapter. When no client is supplied one is created from the
// config; a missing secret key leaves the adapter unconfigured rather than
// failing start-up.
func New(params Params) Gateway {
	client := params.Client
	if client == nil && strings.TrimSpace(params.Config.SecretKey) != "" {
		built, err := paystack.NewClient(
			params.Config.SecretKey,
			paystack.WithBaseURL(params.Config.BaseURL),
			paystack.WithTimeout(params.Config.Timeout),
		)
		if err == nil {
			client = built
		}
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &adapter{
		cfg:     params.Config,
		client:  client,
		logg:    params.Logger,
		metrics: params.Metrics,
		now:     now,
	}
}

// IsRejected reports whether the provider answered and declined, as opposed
// to a transport failure whose outcome is unknown.
func IsRejected(err error) bool {
	return errors.Is(err, paystack.ErrRejected)
}

func (a *adapter) CheckConfigured() error {
	if a.client == nil {
		return configurationError(a.cfg.Missing())
	}
	if missing := a.cfg.Missing(); len(missing) > 0 {
		return configurationError(missing)
	}
	return nil
}

func (a *adapter) InitializeCharge(ctx context.Context, session *models.PaymentSession) (*Checkout, error) {
	if err := a.CheckConfigured(); err != nil {
		return nil, err
	}
	if session == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment session required")
	}

	metadata := map[string]any{
		"customer_name":  session.Customer.Name,
		"customer_phone": session.Customer.Phone,
		"session_id":     session.ID.String(),
	}
	if url := strings.TrimSpace(a.cfg.NotificationURL); url != "" {
		metadata["notification_url"] = url
	}

	start := a.now()
	result, err := a.client.Initialize(ctx, paystack.InitializeRequest{
		Email:       session.Customer.Email,
		Amount:      session.Amount,
		Currency:    string(session.Currency),
		Reference:   session.Reference,
		CallbackURL: strings.TrimSpace(a.cfg.RedirectURL),
		Metadata:    metadata,
	})
	a.metrics.ObserveProvider(opInitialize, outcome(err), a.now().Sub(start))
	if err != nil {
		a.logFailure(ctx, session.Reference, opInitialize, err)
		return nil, err
	}
	return &Checkout{URL: result.AuthorizationURL, Raw: types.RawJSON(result.Raw)}, nil
}

func (a *adapter) QueryChargeStatus(ctx context.Context, reference string) (paystack.ProviderStatus, types.RawJSON, error) {
	if a.client == nil {
		return paystack.StatusUnknown, nil, configurationError([]string{config.EnvPaystackSecretKey})
	}
	start := a.now()
	result, err := a.client.Verify(ctx, reference)
	a.metrics.ObserveProvider(opVerify, outcome(err), a.now().Sub(start))
	if err != nil {
		a.logFailure(ctx, reference, opVerify, err)
		return paystack.StatusUnknown, nil, err
	}
	return result.Status, types.RawJSON(result.Raw), nil
}

// VerifySignature checks the webhook HMAC with the configured secret key.
func (a *adapter) VerifySignature(rawBody []byte, signature string) bool {
	return paystack.VerifySignature(rawBody, signature, strings.TrimSpace(a.cfg.SecretKey))
}

func (a *adapter) logFailure(ctx context.Context, reference, op string, err error) {
	if a.logg == nil {
		return
	}
	ctx = a.logg.WithFields(a.logg.WithReference(ctx, reference), map[string]any{
		"provider":  "paystack",
		"operation": op,
		"rejected":  IsRejected(err),
	})
	a.logg.Error(ctx, "payment provider call failed", err)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case IsRejected(err):
		return "rejected"
	default:
		return "error"
	}
}

func configurationError(missing []string) error {
	return pkgerrors.New(pkgerrors.CodeConfiguration, "payment provider is not configured").
		WithDetails(map[string]any{"missing": missing})
}

