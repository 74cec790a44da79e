package paystackwebhook

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/obedyakpa0-dev/VitalAndGreen/internal/gateway"
	"github.com/obedyakpa0-dev/VitalAndGreen/internal/inventory"
	"github.com/obedyakpa0-dev/VitalAndGreen/internal/materializer"
	"github.com/obedyakpa0-dev/VitalAndGreen/internal/orders"
	"github.com/obedyakpa0-dev/VitalAndGreen/internal/paymentsessions"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/config"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/db"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/db/dbtest"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/db/models"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/enums"
	pkgerrors "github.com/obedyakpa0-dev/VitalAndGreen/pkg/errors"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/outbox"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/outbox/idempotency"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/paystack"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/types"
)

const testSecret = "sk_test_webhook"

type memStore struct {
	mu   sync.Mutex
	keys map[string]bool
}

func newMemStore() *memStore {
	return &memStore{keys: map[string]bool{}}
}

func (m *memStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keys[key] {
		return false, nil
	}
	m.keys[key] = true
	return true, nil
}

func (m *memStore) IdempotencyKey(scope, id string) string {
	return "vg:idempotency:" + scope + ":" + id
}

func (m *memStore) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.keys, key)
	}
	return nil
}

func (m *memStore) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.keys[key]
}

type fixture struct {
	conn     *gorm.DB
	store    *memStore
	sessions paymentsessions.Store
	svc      *Service
}

func newFixture(t *testing.T, mat materializer.Materializer) *fixture {
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
	if mat == nil {
		ledger, err := inventory.NewService(inventory.NewRepository(conn), txRunner, emitter)
		require.NoError(t, err)
		mat, err = materializer.New(materializer.Params{
			Sessions:  sessions,
			Inventory: ledger,
			Orders:    orders.NewRepository(conn),
			TxRunner:  txRunner,
			Outbox:    emitter,
		})
		require.NoError(t, err)
	}
	store := newMemStore()
	guard, err := idempotency.NewManager(store, time.Hour)
	require.NoError(t, err)
	svc, err := NewService(ServiceParams{
		Verifier:     gateway.New(gateway.Params{Config: config.PaystackConfig{SecretKey: testSecret}}),
		Sessions:     sessions,
		Materializer: mat,
		Guard:        guard,
	})
	require.NoError(t, err)
	return &fixture{conn: conn, store: store, sessions: sessions, svc: svc}
}

func body(event, reference string) []byte {
	return []byte(`{"event":"` + event + `","data":{"reference":"` + reference + `","status":"success","amount":2000}}`)
}

func (f *fixture) countOrders(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.conn.Model(&models.Order{}).Count(&n).Error)
	return n
}

func TestHandleChargeSuccessMaterializesOnce(t *testing.T) {
	f := newFixture(t, nil)
	product := dbtest.SeedProduct(t, f.conn, "Green Detox", "10.00", 5)
	session := dbtest.SeedSession(t, f.conn, "VG-1-abc", product, 2)

	raw := body(paystack.EventChargeSuccess, session.Reference)
	require.NoError(t, f.svc.Handle(context.Background(), raw, paystack.Sign(raw, testSecret)))
	require.NoError(t, f.svc.Handle(context.Background(), raw, paystack.Sign(raw, testSecret)))

	stored, err := f.sessions.FindByReference(context.Background(), session.Reference)
	require.NoError(t, err)
	assert.Equal(t, enums.SessionStatusPaid, stored.Status)
	assert.JSONEq(t, string(raw), string(stored.ProviderPayload))
	assert.Equal(t, int64(1), f.countOrders(t))
	assert.Equal(t, 3, dbtest.ProductStock(t, f.conn, product.ID))
	assert.True(t, f.store.has("vg:idempotency:evt:processed:paystack_webhook:charge.success:VG-1-abc"))
}

func TestHandleChargeSuccessRequiresSuccessfulStatus(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"failed status", `{"event":"charge.success","data":{"reference":"VG-8-abc","status":"failed"}}`},
		{"abandoned status", `{"event":"charge.success","data":{"reference":"VG-8-abc","status":"abandoned"}}`},
		{"missing status", `{"event":"charge.success","data":{"reference":"VG-8-abc"}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, nil)
			product := dbtest.SeedProduct(t, f.conn, "Green Detox", "10.00", 5)
			session := dbtest.SeedSession(t, f.conn, "VG-8-abc", product, 2)

			raw := []byte(tc.raw)
			require.NoError(t, f.svc.Handle(context.Background(), raw, paystack.Sign(raw, testSecret)))

			stored, err := f.sessions.FindByReference(context.Background(), session.Reference)
			require.NoError(t, err)
			assert.Equal(t, enums.SessionStatusPending, stored.Status)
			assert.Nil(t, stored.OrderID)
			assert.Equal(t, int64(0), f.countOrders(t))
			assert.Equal(t, 5, dbtest.ProductStock(t, f.conn, product.ID))
		})
	}
}

func TestHandleChargeFailedMarksSessionFailed(t *testing.T) {
	f := newFixture(t, nil)
	product := dbtest.SeedProduct(t, f.conn, "Green Detox", "10.00", 5)
	session := dbtest.SeedSession(t, f.conn, "VG-2-abc", product, 2)

	raw := body(paystack.EventChargeFailed, session.Reference)
	require.NoError(t, f.svc.Handle(context.Background(), raw, paystack.Sign(raw, testSecret)))

	stored, err := f.sessions.FindByReference(context.Background(), session.Reference)
	require.NoError(t, err)
	assert.Equal(t, enums.SessionStatusFailed, stored.Status)
	assert.Equal(t, int64(0), f.countOrders(t))
	assert.Equal(t, 5, dbtest.ProductStock(t, f.conn, product.ID))
}

func TestHandleFailedAfterPaidIsAcknowledged(t *testing.T) {
	f := newFixture(t, nil)
	product := dbtest.SeedProduct(t, f.conn, "Green Detox", "10.00", 5)
	session := dbtest.SeedSession(t, f.conn, "VG-3-abc", product, 2)

	success := body(paystack.EventChargeSuccess, session.Reference)
	require.NoError(t, f.svc.Handle(context.Background(), success, paystack.Sign(success, testSecret)))
	failed := body(paystack.EventChargeFailed, session.Reference)
	require.NoError(t, f.svc.Handle(context.Background(), failed, paystack.Sign(failed, testSecret)))

	stored, err := f.sessions.FindByReference(context.Background(), session.Reference)
	require.NoError(t, err)
	assert.Equal(t, enums.SessionStatusPaid, stored.Status)
}

func TestHandleInvalidSignatureMutatesNothing(t *testing.T) {
	f := newFixture(t, nil)
	product := dbtest.SeedProduct(t, f.conn, "Green Detox", "10.00", 5)
	session := dbtest.SeedSession(t, f.conn, "VG-4-abc", product, 2)

	raw := body(paystack.EventChargeSuccess, session.Reference)
	signature := paystack.Sign(raw, testSecret)
	tampered := append([]byte(nil), raw...)
	tampered[len(tampered)-3] ^= 0x01

	for name, tc := range map[string]struct {
		body      []byte
		signature string
	}{
		"wrong secret":  {raw, paystack.Sign(raw, "sk_other")},
		"tampered body": {tampered, signature},
		"garbage":       {raw, "not-hex"},
	} {
		t.Run(name, func(t *testing.T) {
			err := f.svc.Handle(context.Background(), tc.body, tc.signature)
			require.Error(t, err)
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
			assert.Equal(t, "invalid signature", pkgerrors.As(err).Message())
		})
	}

	stored, err := f.sessions.FindByReference(context.Background(), session.Reference)
	require.NoError(t, err)
	assert.Equal(t, enums.SessionStatusPending, stored.Status)
	assert.Equal(t, int64(0), f.countOrders(t))
	assert.Empty(t, f.store.keys)
}

func TestHandleMissingInput(t *testing.T) {
	f := newFixture(t, nil)
	raw := body(paystack.EventChargeSuccess, "VG-5")

	err := f.svc.Handle(context.Background(), raw, "")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	err = f.svc.Handle(context.Background(), nil, "abc")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	notJSON := []byte("not json")
	err = f.svc.Handle(context.Background(), notJSON, paystack.Sign(notJSON, testSecret))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestHandleUnknownReferenceIsAcknowledged(t *testing.T) {
	f := newFixture(t, nil)
	raw := body(paystack.EventChargeSuccess, "VG-unknown")

	require.NoError(t, f.svc.Handle(context.Background(), raw, paystack.Sign(raw, testSecret)))

	var sessions int64
	require.NoError(t, f.conn.Model(&models.PaymentSession{}).Count(&sessions).Error)
	assert.Zero(t, sessions)
	assert.Zero(t, f.countOrders(t))
}

func TestHandleOtherEventsAreAcknowledged(t *testing.T) {
	f := newFixture(t, nil)
	product := dbtest.SeedProduct(t, f.conn, "Green Detox", "10.00", 5)
	session := dbtest.SeedSession(t, f.conn, "VG-6-abc", product, 2)

	raw := body("transfer.success", session.Reference)
	require.NoError(t, f.svc.Handle(context.Background(), raw, paystack.Sign(raw, testSecret)))

	stored, err := f.sessions.FindByReference(context.Background(), session.Reference)
	require.NoError(t, err)
	assert.Equal(t, enums.SessionStatusPending, stored.Status)
	assert.Empty(t, f.store.keys)
}

func TestHandleInsufficientStockIsAcknowledged(t *testing.T) {
	f := newFixture(t, nil)
	product := dbtest.SeedProduct(t, f.conn, "Green Detox", "10.00", 1)
	session := dbtest.SeedSession(t, f.conn, "VG-7-abc", product, 2)

	raw := body(paystack.EventChargeSuccess, session.Reference)
	require.NoError(t, f.svc.Handle(context.Background(), raw, paystack.Sign(raw, testSecret)))

	stored, err := f.sessions.FindByReference(context.Background(), session.Reference)
	require.NoError(t, err)
	assert.Equal(t, enums.SessionStatusPending, stored.Status)
	assert.Equal(t, 1, dbtest.ProductStock(t, f.conn, product.ID))
}

type brokenMaterializer struct{ calls int }

func (b *brokenMaterializer) Materialize(ctx context.Context, session *models.PaymentSession, payload types.RawJSON) (*models.Order, error) {
	b.calls++
	return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, errors.New("connection reset"), "insert order")
}

func TestHandleInternalFailureReleasesGuard(t *testing.T) {
	broken := &brokenMaterializer{}
	f := newFixture(t, broken)
	product := dbtest.SeedProduct(t, f.conn, "Green Detox", "10.00", 5)
	session := dbtest.SeedSession(t, f.conn, "VG-8-abc", product, 2)

	raw := body(paystack.EventChargeSuccess, session.Reference)
	err := f.svc.Handle(context.Background(), raw, paystack.Sign(raw, testSecret))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
	assert.Empty(t, f.store.keys)

	_ = f.svc.Handle(context.Background(), raw, paystack.Sign(raw, testSecret))
	assert.Equal(t, 2, broken.calls)
}
