package orders

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	internalorders "github.com/obedyakpa0-dev/VitalAndGreen/internal/orders"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/db/models"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/enums"
	pkgerrors "github.com/obedyakpa0-dev/VitalAndGreen/pkg/errors"
)

type fakeService struct {
	internalorders.Service
	params internalorders.ListParams
	number string
	status enums.OrderStatus
	reason string
	err    error
}

func (f *fakeService) List(_ context.Context, params internalorders.ListParams) (*internalorders.ListResult, error) {
	f.params = params
	return &internalorders.ListResult{Orders: []models.Order{}}, f.err
}

func (f *fakeService) GetByNumber(_ context.Context, number string) (*models.Order, error) {
	f.number = number
	if f.err != nil {
		return nil, f.err
	}
	return &models.Order{OrderNumber: number}, nil
}

func (f *fakeService) UpdateStatus(_ context.Context, id uuid.UUID, status enums.OrderStatus) (*models.Order, error) {
	f.status = status
	if f.err != nil {
		return nil, f.err
	}
	return &models.Order{ID: id, Status: status}, nil
}

func (f *fakeService) Cancel(_ context.Context, id uuid.UUID, reason string) (*models.Order, error) {
	f.reason = reason
	if f.err != nil {
		return nil, f.err
	}
	return &models.Order{ID: id, Status: enums.OrderStatusCancelled}, nil
}

func routed(method, pattern, target string, h http.HandlerFunc, body string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Method(method, pattern, h)
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestListParsesFilters(t *testing.T) {
	svc := &fakeService{}
	rec := routed(http.MethodGet, "/api/orders", "/api/orders?status=Shipped&paymentStatus=completed&email=AMA@example.com&page=2", List(svc, nil), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if svc.params.Filters.Status == nil || *svc.params.Filters.Status != enums.OrderStatusShipped {
		t.Fatalf("unexpected status filter %v", svc.params.Filters.Status)
	}
	if svc.params.Filters.PaymentStatus == nil || *svc.params.Filters.PaymentStatus != enums.PaymentStatusCompleted {
		t.Fatalf("unexpected payment status filter")
	}
	if svc.params.Filters.Email != "ama@example.com" {
		t.Fatalf("unexpected email filter %q", svc.params.Filters.Email)
	}
	if svc.params.Pagination.Page != 2 {
		t.Fatalf("unexpected page %d", svc.params.Pagination.Page)
	}
}

func TestListRejectsUnknownStatus(t *testing.T) {
	rec := routed(http.MethodGet, "/api/orders", "/api/orders?status=lost", List(&fakeService{}, nil), "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestByNumberUppercases(t *testing.T) {
	svc := &fakeService{}
	rec := routed(http.MethodGet, "/api/orders/number/{orderNumber}", "/api/orders/number/ord-1-abc", ByNumber(svc, nil), "")
	if rec.Code != http.StatusOK || svc.number != "ORD-1-ABC" {
		t.Fatalf("unexpected %d %q", rec.Code, svc.number)
	}
}

func TestUpdateStatus(t *testing.T) {
	svc := &fakeService{}
	target := "/api/orders/" + uuid.NewString() + "/status"

	rec := routed(http.MethodPut, "/api/orders/{orderId}/status", target, UpdateStatus(svc, nil), `{"status":"delivered"}`)
	if rec.Code != http.StatusOK || svc.status != enums.OrderStatusDelivered {
		t.Fatalf("unexpected %d %q", rec.Code, svc.status)
	}

	rec = routed(http.MethodPut, "/api/orders/{orderId}/status", target, UpdateStatus(svc, nil), `{"status":"teleported"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	svc.err = pkgerrors.New(pkgerrors.CodeStateConflict, "order is already delivered")
	rec = routed(http.MethodPut, "/api/orders/{orderId}/status", target, UpdateStatus(svc, nil), `{"status":"shipped"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
}

func TestCancelWithAndWithoutBody(t *testing.T) {
	svc := &fakeService{}
	target := "/api/orders/" + uuid.NewString() + "/cancel"

	rec := routed(http.MethodPost, "/api/orders/{orderId}/cancel", target, Cancel(svc, nil), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 without body, got %d", rec.Code)
	}

	rec = routed(http.MethodPost, "/api/orders/{orderId}/cancel", target, Cancel(svc, nil), `{"reason":"changed my mind"}`)
	if rec.Code != http.StatusOK || svc.reason != "changed my mind" {
		t.Fatalf("unexpected %d %q", rec.Code, svc.reason)
	}

	rec = routed(http.MethodPost, "/api/orders/{orderId}/cancel", "/api/orders/not-a-uuid/cancel", Cancel(svc, nil), "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
