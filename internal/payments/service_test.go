package payments

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/obedyakpa0-dev/VitalAndGreen/internal/gateway"
	"github.com/obedyakpa0-dev/VitalAndGreen/internal/inventory"
	"github.com/obedyakpa0-dev/VitalAndGreen/internal/materializer"
	"github.com/obedyakpa0-dev/VitalAndGreen/internal/orders"
	"github.com/obedyakpa0-dev/VitalAndGreen/internal/paymentsessions"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/db"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/db/dbtest"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/db/models"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/enums"
	pkgerrors "github.com/obedyakpa0-dev/VitalAndGreen/pkg/errors"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/outbox"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/paystack"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/types"
)

type fakeGateway struct {
	configErr  error
	checkout   *gateway.Checkout
	initErr    error
	initCalls  int
	status     paystack.ProviderStatus
	raw        types.RawJSON
	queryErr   error
	queryCalls int
}

func (f *fakeGateway) InitializeCharge(ctx context.Context, session *models.PaymentSession) (*gateway.Checkout, error) {
	f.initCalls++
	if f.initErr != nil {
		return nil, f.initErr
	}
	return f.checkout, nil
}

func (f *fakeGateway) QueryChargeStatus(ctx context.Context, reference string) (paystack.ProviderStatus, types.RawJSON, error) {
	f.queryCalls++
	if f.queryErr != nil {
		return paystack.StatusUnknown, nil, f.queryErr
	}
	return f.status, f.raw, nil
}

func (f *fakeGateway) VerifySignature(rawBody []byte, signature string) bool { return false }

func (f *fakeGateway) CheckConfigured() error { return f.configErr }

type fixture struct {
	conn     *gorm.DB
	gw       *fakeGateway
	sessions paymentsessions.Store
	svc      Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := dbtest.Open(t)
	txRunner := db.FromConn(conn)
	emitter := outbox.NewService(outbox.NewRepository(conn), nil)
	sessions, err := paymentsessions.NewStore(paymentsessions.StoreParams{
		Repository: paymentsessions.NewRepository(conn),
		TxRunner:   txRunner,
		Outbox:     emitter,
	})
	require.NoError(t, err)
	ledger, err := inventory.NewService(inventory.NewRepository(conn), txRunner, emitter)
	require.NoError(t, err)
	mat, err := materializer.New(materializer.Params{
		Sessions:  sessions,
		Inventory: ledger,
		Orders:    orders.NewRepository(conn),
		TxRunner:  txRunner,
		Outbox:    emitter,
	})
	require.NoError(t, err)
	gw := &fakeGateway{checkout: &gateway.Checkout{URL: "https://checkout.paystack.com/abc"}}
	svc, err := NewService(ServiceParams{
		Sessions:     sessions,
		Gateway:      gw,
		Materializer: mat,
		Inventory:    ledger,
	})
	require.NoError(t, err)
	return &fixture{conn: conn, gw: gw, sessions: sessions, svc: svc}
}

func checkoutFor(product *models.Product, qty int) InitializeInput {
	item := types.CartItem{ProductID: product.ID, Name: product.Name, Price: product.Price, Quantity: qty}
	total := item.LineTotal()
	return InitializeInput{
		Customer: types.Customer{Name: "Ama Mensah", Email: "ama@example.com"},
		Items:    types.CartItems{item},
		Totals:   types.Totals{Subtotal: total, Total: total},
		ShippingAddress: types.ShippingAddress{
			FirstName: "Ama",
			Street:    "12 Oxford St",
			City:      "Accra",
		},
	}
}

func (f *fixture) countOrders(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.conn.Model(&models.Order{}).Count(&n).Error)
	return n
}

func (f *fixture) countSessions(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.conn.Model(&models.PaymentSession{}).Count(&n).Error)
	return n
}

func TestInitializeCreatesPendingSession(t *testing.T) {
	f := newFixture(t)
	product := dbtest.SeedProduct(t, f.conn, "Green Detox", "10.00", 5)

	result, err := f.svc.Initialize(context.Background(), checkoutFor(product, 2))
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.paystack.com/abc", result.CheckoutURL)
	assert.Regexp(t, `^VG-\d+-[0-9a-f]{16}$`, result.Reference)

	session, err := f.sessions.FindByReference(context.Background(), result.Reference)
	require.NoError(t, err)
	assert.Equal(t, enums.SessionStatusPending, session.Status)
	assert.Equal(t, enums.CurrencyGHS, session.Currency)
	require.NotNil(t, session.CheckoutURL)
	assert.Equal(t, result.CheckoutURL, *session.CheckoutURL)
	assert.True(t, session.Amount.Equal(decimal.RequireFromString("20")))
	assert.Equal(t, 5, dbtest.ProductStock(t, f.conn, product.ID))
}

func TestInitializeValidation(t *testing.T) {
	f := newFixture(t)
	product := dbtest.SeedProduct(t, f.conn, "Green Detox", "10.00", 5)

	empty := checkoutFor(product, 1)
	empty.Items = nil
	noEmail := checkoutFor(product, 1)
	noEmail.Customer.Email = " "
	noTotal := checkoutFor(product, 1)
	noTotal.Totals = types.Totals{}
	badItem := checkoutFor(product, 1)
	badItem.Items[0].ProductID = uuid.Nil
	unknown := checkoutFor(product, 1)
	unknown.Items[0].ProductID = uuid.New()

	for name, input := range map[string]InitializeInput{
		"empty cart":      empty,
		"missing email":   noEmail,
		"missing total":   noTotal,
		"missing item id": badItem,
		"unknown product": unknown,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.Initialize(context.Background(), input)
			require.Error(t, err)
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)
		})
	}
	assert.Equal(t, int64(0), f.countSessions(t))
	assert.Zero(t, f.gw.initCalls)
}

func TestInitializeInsufficientStock(t *testing.T) {
	f := newFixture(t)
	product := dbtest.SeedProduct(t, f.conn, "Green Detox", "10.00", 1)

	_, err := f.svc.Initialize(context.Background(), checkoutFor(product, 2))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock))
	assert.Equal(t, int64(0), f.countSessions(t))
}

func TestInitializeUnconfiguredProvider(t *testing.T) {
	f := newFixture(t)
	product := dbtest.SeedProduct(t, f.conn, "Green Detox", "10.00", 5)
	f.gw.configErr = pkgerrors.New(pkgerrors.CodeConfiguration, "payment provider is not configured")

	_, err := f.svc.Initialize(context.Background(), checkoutFor(product, 1))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConfiguration))
	assert.Equal(t, int64(0), f.countSessions(t))
}

func TestInitializeRejectedMarksSessionFailed(t *testing.T) {
	f := newFixture(t)
	product := dbtest.SeedProduct(t, f.conn, "Green Detox", "10.00", 5)
	f.gw.initErr = pkgerrors.Wrap(pkgerrors.CodeGateway, fmt.Errorf("%w: invalid amount", paystack.ErrRejected), "initialize declined")

	_, err := f.svc.Initialize(context.Background(), checkoutFor(product, 1))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeGateway))

	var session models.PaymentSession
	require.NoError(t, f.conn.First(&session).Error)
	assert.Equal(t, enums.SessionStatusFailed, session.Status)
}

func TestInitializeTransportErrorLeavesSessionPending(t *testing.T) {
	f := newFixture(t)
	product := dbtest.SeedProduct(t, f.conn, "Green Detox", "10.00", 5)
	f.gw.initErr = pkgerrors.Wrap(pkgerrors.CodeGateway, context.DeadlineExceeded, "execute initialize request")

	_, err := f.svc.Initialize(context.Background(), checkoutFor(product, 1))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeGateway))

	var session models.PaymentSession
	require.NoError(t, f.conn.First(&session).Error)
	assert.Equal(t, enums.SessionStatusPending, session.Status)
}

func TestVerifySuccessCreatesOrderOnce(t *testing.T) {
	f := newFixture(t)
	product := dbtest.SeedProduct(t, f.conn, "Green Detox", "10.00", 5)
	initialized, err := f.svc.Initialize(context.Background(), checkoutFor(product, 2))
	require.NoError(t, err)

	f.gw.status = paystack.StatusSuccess
	f.gw.raw = types.RawJSON(`{"status":true,"data":{"status":"success"}}`)

	first, err := f.svc.Verify(context.Background(), initialized.Reference)
	require.NoError(t, err)
	assert.Equal(t, VerifySuccess, first.Status)
	require.NotNil(t, first.Order)
	assert.True(t, first.Order.Total.Equal(decimal.RequireFromString("20")))
	assert.Equal(t, 3, dbtest.ProductStock(t, f.conn, product.ID))

	second, err := f.svc.Verify(context.Background(), initialized.Reference)
	require.NoError(t, err)
	assert.Equal(t, VerifySuccess, second.Status)
	assert.Equal(t, first.Order.ID, second.Order.ID)
	assert.Equal(t, 3, dbtest.ProductStock(t, f.conn, product.ID))
	assert.Equal(t, int64(1), f.countOrders(t))
	assert.Equal(t, 1, f.gw.queryCalls)
}

func TestVerifyAbandonedMarksFailed(t *testing.T) {
	f := newFixture(t)
	product := dbtest.SeedProduct(t, f.conn, "Green Detox", "10.00", 5)
	initialized, err := f.svc.Initialize(context.Background(), checkoutFor(product, 2))
	require.NoError(t, err)

	f.gw.status = paystack.StatusAbandoned
	f.gw.raw = types.RawJSON(`{"data":{"status":"abandoned"}}`)

	result, err := f.svc.Verify(context.Background(), initialized.Reference)
	require.NoError(t, err)
	assert.Equal(t, VerifyFailed, result.Status)
	assert.Nil(t, result.Order)

	session, err := f.sessions.FindByReference(context.Background(), initialized.Reference)
	require.NoError(t, err)
	assert.Equal(t, enums.SessionStatusFailed, session.Status)
	assert.Equal(t, int64(0), f.countOrders(t))
	assert.Equal(t, 5, dbtest.ProductStock(t, f.conn, product.ID))

	f.gw.status = paystack.StatusSuccess
	again, err := f.svc.Verify(context.Background(), initialized.Reference)
	require.NoError(t, err)
	assert.Equal(t, VerifyFailed, again.Status)
	assert.Equal(t, 1, f.gw.queryCalls)
}

func TestVerifyPendingRecordsPayloadOnly(t *testing.T) {
	f := newFixture(t)
	product := dbtest.SeedProduct(t, f.conn, "Green Detox", "10.00", 5)
	initialized, err := f.svc.Initialize(context.Background(), checkoutFor(product, 2))
	require.NoError(t, err)

	f.gw.status = paystack.StatusUnknown
	f.gw.raw = types.RawJSON(`{"data":{"status":"mystery"}}`)

	result, err := f.svc.Verify(context.Background(), initialized.Reference)
	require.NoError(t, err)
	assert.Equal(t, VerifyPending, result.Status)

	session, err := f.sessions.FindByReference(context.Background(), initialized.Reference)
	require.NoError(t, err)
	assert.Equal(t, enums.SessionStatusPending, session.Status)
	assert.JSONEq(t, `{"data":{"status":"mystery"}}`, string(session.ProviderPayload))
	assert.Equal(t, 5, dbtest.ProductStock(t, f.conn, product.ID))
}

func TestVerifyProviderErrorDoesNotMutate(t *testing.T) {
	f := newFixture(t)
	product := dbtest.SeedProduct(t, f.conn, "Green Detox", "10.00", 5)
	initialized, err := f.svc.Initialize(context.Background(), checkoutFor(product, 2))
	require.NoError(t, err)

	f.gw.queryErr = pkgerrors.Wrap(pkgerrors.CodeGateway, context.DeadlineExceeded, "execute verify request")
	_, err = f.svc.Verify(context.Background(), initialized.Reference)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeGateway))

	session, err := f.sessions.FindByReference(context.Background(), initialized.Reference)
	require.NoError(t, err)
	assert.Equal(t, enums.SessionStatusPending, session.Status)
	assert.Equal(t, int64(0), f.countOrders(t))
}

func TestVerifyInsufficientStockKeepsSessionPending(t *testing.T) {
	f := newFixture(t)
	product := dbtest.SeedProduct(t, f.conn, "Green Detox", "10.00", 5)
	initialized, err := f.svc.Initialize(context.Background(), checkoutFor(product, 2))
	require.NoError(t, err)
	require.NoError(t, f.conn.Model(&models.Product{}).Where("id = ?", product.ID).Update("stock", 1).Error)

	f.gw.status = paystack.StatusSuccess
	_, err = f.svc.Verify(context.Background(), initialized.Reference)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock))

	session, err := f.sessions.FindByReference(context.Background(), initialized.Reference)
	require.NoError(t, err)
	assert.Equal(t, enums.SessionStatusPending, session.Status)
	assert.Equal(t, 1, dbtest.ProductStock(t, f.conn, product.ID))
}

func TestVerifyReferenceErrors(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Verify(context.Background(), "  ")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.svc.Verify(context.Background(), "VG-missing")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	assert.Zero(t, f.gw.queryCalls)
}
