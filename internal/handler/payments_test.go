package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/mariahavens/pos-api/internal/enum"
	"github.com/mariahavens/pos-api/internal/order"
	"github.com/mariahavens/pos-api/internal/postgres"
	"github.com/shopspring/decimal"
)

type mockPaymentStore struct {
	createFn func(ctx context.Context, p postgres.CreatePaymentParams) (postgres.Payment, error)
	listFn   func(ctx context.Context, orderID uuid.UUID) ([]postgres.Payment, error)
	sumFn    func(ctx context.Context, orderID uuid.UUID) (decimal.Decimal, error)
}

func (m *mockPaymentStore) CreatePayment(ctx context.Context, p postgres.CreatePaymentParams) (postgres.Payment, error) {
	return m.createFn(ctx, p)
}

func (m *mockPaymentStore) ListPaymentsByOrder(ctx context.Context, orderID uuid.UUID) ([]postgres.Payment, error) {
	return m.listFn(ctx, orderID)
}

func (m *mockPaymentStore) SumPaymentsByOrder(ctx context.Context, orderID uuid.UUID) (decimal.Decimal, error) {
	return m.sumFn(ctx, orderID)
}

type mockPaymentOrderService struct {
	getFn      func(ctx context.Context, id uuid.UUID) (*order.Order, error)
	completeFn func(ctx context.Context, actor order.Actor, id uuid.UUID) (*order.Order, error)
}

func (m *mockPaymentOrderService) Get(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	return m.getFn(ctx, id)
}

func (m *mockPaymentOrderService) CompleteForPayment(ctx context.Context, actor order.Actor, id uuid.UUID) (*order.Order, error) {
	return m.completeFn(ctx, actor, id)
}

func newPaymentRouter(store PaymentStore, orders PaymentOrderService, tables OrderTableStore) http.Handler {
	h := NewPaymentHandler(store, orders, tables, nil)
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func paymentOf(orderID uuid.UUID, amount string) postgres.Payment {
	return postgres.Payment{
		ID:          uuid.New(),
		OrderID:     orderID,
		Method:      enum.PaymentMethodCash,
		Amount:      decimal.RequireFromString(amount),
		Status:      enum.PaymentStatusCompleted,
		ProcessedAt: time.Date(2026, 2, 10, 14, 0, 0, 0, time.UTC),
	}
}

func TestPaymentAddPartial(t *testing.T) {
	served := sampleOrder(enum.OrderStatusServed)

	store := &mockPaymentStore{
		createFn: func(_ context.Context, p postgres.CreatePaymentParams) (postgres.Payment, error) {
			return paymentOf(p.OrderID, p.Amount.StringFixed(2)), nil
		},
		sumFn: func(context.Context, uuid.UUID) (decimal.Decimal, error) {
			return decimal.RequireFromString("500.00"), nil
		},
	}
	orders := &mockPaymentOrderService{
		getFn: func(context.Context, uuid.UUID) (*order.Order, error) {
			return served, nil
		},
		completeFn: func(context.Context, order.Actor, uuid.UUID) (*order.Order, error) {
			t.Fatal("order should not complete on a partial payment")
			return nil, nil
		},
	}
	router := newPaymentRouter(store, orders, &mockTableStore{})

	body, _ := json.Marshal(map[string]string{"method": "cash", "amount": "500.00"})
	req := authedRequest(http.MethodPost, "/orders/"+served.ID.String()+"/payments", body, enum.UserRoleCashier, uuid.New())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got: %d (%s)", rec.Code, rec.Body.String())
	}

	var resp addPaymentResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Remaining != "760.00" {
		t.Errorf("expected remaining 760.00, got: %s", resp.Remaining)
	}
	if resp.Order != nil {
		t.Error("expected no completed order in partial payment response")
	}
}

func TestPaymentAddCompletesOrder(t *testing.T) {
	tableID := uuid.New()
	served := sampleOrder(enum.OrderStatusServed)
	served.TableID = &tableID

	completed := *served
	completed.Status = enum.OrderStatusCompleted
	doneAt := time.Date(2026, 2, 10, 14, 30, 0, 0, time.UTC)
	completed.CompletedAt = &doneAt

	store := &mockPaymentStore{
		createFn: func(_ context.Context, p postgres.CreatePaymentParams) (postgres.Payment, error) {
			if p.Status != enum.PaymentStatusCompleted {
				t.Errorf("expected payment recorded as completed, got: %s", p.Status)
			}
			return paymentOf(p.OrderID, p.Amount.StringFixed(2)), nil
		},
		sumFn: func(context.Context, uuid.UUID) (decimal.Decimal, error) {
			return decimal.RequireFromString("1260.00"), nil
		},
	}
	completeCalled := false
	orders := &mockPaymentOrderService{
		getFn: func(context.Context, uuid.UUID) (*order.Order, error) {
			return served, nil
		},
		completeFn: func(_ context.Context, actor order.Actor, _ uuid.UUID) (*order.Order, error) {
			completeCalled = true
			if actor.Role != enum.UserRoleCashier {
				t.Errorf("expected cashier actor, got: %s", actor.Role)
			}
			return &completed, nil
		},
	}
	var clearedStatus enum.TableStatus
	tables := &mockTableStore{
		clearByOrderFn: func(_ context.Context, orderID uuid.UUID, status enum.TableStatus) error {
			clearedStatus = status
			return nil
		},
	}
	router := newPaymentRouter(store, orders, tables)

	body, _ := json.Marshal(map[string]string{
		"method": "cash", "amount": "1260.00", "amount_received": "1500.00",
	})
	req := authedRequest(http.MethodPost, "/orders/"+served.ID.String()+"/payments", body, enum.UserRoleCashier, uuid.New())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got: %d (%s)", rec.Code, rec.Body.String())
	}
	if !completeCalled {
		t.Error("expected the order to be completed through the payment path")
	}
	if clearedStatus != enum.TableStatusCleaning {
		t.Errorf("expected table sent to cleaning, got: %s", clearedStatus)
	}

	var resp addPaymentResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Order == nil || resp.Order.Status != "completed" {
		t.Errorf("expected completed order in response, got: %+v", resp.Order)
	}
	if resp.Remaining != "0.00" {
		t.Errorf("expected remaining 0.00, got: %s", resp.Remaining)
	}
}

func TestPaymentAddRejectsUnservedOrder(t *testing.T) {
	pending := sampleOrder(enum.OrderStatusPending)

	orders := &mockPaymentOrderService{
		getFn: func(context.Context, uuid.UUID) (*order.Order, error) {
			return pending, nil
		},
	}
	store := &mockPaymentStore{
		createFn: func(context.Context, postgres.CreatePaymentParams) (postgres.Payment, error) {
			t.Fatal("payment should not be recorded")
			return postgres.Payment{}, nil
		},
	}
	router := newPaymentRouter(store, orders, &mockTableStore{})

	body, _ := json.Marshal(map[string]string{"method": "cash", "amount": "100.00"})
	req := authedRequest(http.MethodPost, "/orders/"+pending.ID.String()+"/payments", body, enum.UserRoleCashier, uuid.New())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got: %d", rec.Code)
	}
}

func TestPaymentAddRejectsShortCash(t *testing.T) {
	served := sampleOrder(enum.OrderStatusServed)
	orders := &mockPaymentOrderService{
		getFn: func(context.Context, uuid.UUID) (*order.Order, error) {
			return served, nil
		},
	}
	store := &mockPaymentStore{
		createFn: func(context.Context, postgres.CreatePaymentParams) (postgres.Payment, error) {
			t.Fatal("payment should not be recorded")
			return postgres.Payment{}, nil
		},
	}
	router := newPaymentRouter(store, orders, &mockTableStore{})

	// amount_received below amount.
	body, _ := json.Marshal(map[string]string{
		"method": "cash", "amount": "100.00", "amount_received": "50.00",
	})
	req := authedRequest(http.MethodPost, "/orders/"+served.ID.String()+"/payments", body, enum.UserRoleCashier, uuid.New())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got: %d", rec.Code)
	}
}

func TestPaymentList(t *testing.T) {
	served := sampleOrder(enum.OrderStatusServed)
	orders := &mockPaymentOrderService{
		getFn: func(context.Context, uuid.UUID) (*order.Order, error) {
			return served, nil
		},
	}
	store := &mockPaymentStore{
		listFn: func(_ context.Context, orderID uuid.UUID) ([]postgres.Payment, error) {
			return []postgres.Payment{paymentOf(orderID, "500.00"), paymentOf(orderID, "760.00")}, nil
		},
	}
	router := newPaymentRouter(store, orders, &mockTableStore{})

	req := authedRequest(http.MethodGet, "/orders/"+served.ID.String()+"/payments", nil, enum.UserRoleCashier, uuid.New())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got: %d (%s)", rec.Code, rec.Body.String())
	}

	var resp struct {
		Payments []paymentResponse `json:"payments"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Payments) != 2 {
		t.Fatalf("expected 2 payments, got: %d", len(resp.Payments))
	}
	if resp.Payments[0].Amount != "500.00" {
		t.Errorf("expected amount 500.00, got: %s", resp.Payments[0].Amount)
	}
}
