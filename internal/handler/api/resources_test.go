package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pverheyen/heimdall/internal/domain"
)

// mockStore implements domain.BillingStore. Lookups default to not found.
type mockStore struct {
	GetCustomerFunc     func(ctx context.Context, id string) (*domain.Customer, error)
	GetSubscriptionFunc func(ctx context.Context, id string) (*domain.Subscription, error)
	GetProductFunc      func(ctx context.Context, id string) (*domain.Product, error)
	GetPriceFunc        func(ctx context.Context, id string) (*domain.Price, error)
	GetRefundFunc       func(ctx context.Context, id string) (*domain.Refund, error)
}

func (m *mockStore) UpsertCustomer(ctx context.Context, c domain.Customer) error { return nil }
func (m *mockStore) MarkCustomerDeleted(ctx context.Context, id string) error    { return nil }
func (m *mockStore) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	if m.GetCustomerFunc == nil {
		return nil, domain.NotFound("store.get_customer", "customer", id)
	}
	return m.GetCustomerFunc(ctx, id)
}

func (m *mockStore) UpsertSubscription(ctx context.Context, s domain.Subscription) error { return nil }
func (m *mockStore) SetSubscriptionStatus(ctx context.Context, id string, status domain.SubscriptionStatus, periodEnd *time.Time) error {
	return nil
}
func (m *mockStore) GetSubscription(ctx context.Context, id string) (*domain.Subscription, error) {
	if m.GetSubscriptionFunc == nil {
		return nil, domain.NotFound("store.get_subscription", "subscription", id)
	}
	return m.GetSubscriptionFunc(ctx, id)
}

func (m *mockStore) UpsertProduct(ctx context.Context, p domain.Product) error { return nil }
func (m *mockStore) DeactivateProduct(ctx context.Context, id string) error    { return nil }
func (m *mockStore) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	if m.GetProductFunc == nil {
		return nil, domain.NotFound("store.get_product", "product", id)
	}
	return m.GetProductFunc(ctx, id)
}

func (m *mockStore) UpsertPrice(ctx context.Context, p domain.Price) error { return nil }
func (m *mockStore) DeactivatePrice(ctx context.Context, id string) error  { return nil }
func (m *mockStore) GetPrice(ctx context.Context, id string) (*domain.Price, error) {
	if m.GetPriceFunc == nil {
		return nil, domain.NotFound("store.get_price", "price", id)
	}
	return m.GetPriceFunc(ctx, id)
}

func (m *mockStore) UpsertRefund(ctx context.Context, r domain.Refund) error { return nil }
func (m *mockStore) GetRefund(ctx context.Context, id string) (*domain.Refund, error) {
	if m.GetRefundFunc == nil {
		return nil, domain.NotFound("store.get_refund", "refund", id)
	}
	return m.GetRefundFunc(ctx, id)
}

var _ domain.BillingStore = (*mockStore)(nil)

func resourceContext(path, id string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(id)
	return c, rec
}

func TestGetCustomer(t *testing.T) {
	store := &mockStore{
		GetCustomerFunc: func(ctx context.Context, id string) (*domain.Customer, error) {
			require.Equal(t, "cus_1", id)
			return &domain.Customer{ID: "cus_1", Email: "a@example.com"}, nil
		},
	}
	h := NewResourceHandler(store)

	c, rec := resourceContext("/api/customers/cus_1", "cus_1")
	require.NoError(t, h.GetCustomer(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "cus_1")
	assert.Contains(t, rec.Body.String(), `"success":true`)
}

func TestGetCustomerNotFound(t *testing.T) {
	h := NewResourceHandler(&mockStore{})

	c, rec := resourceContext("/api/customers/cus_missing", "cus_missing")
	require.NoError(t, h.GetCustomer(c))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":false`)
}

func TestGetSubscription(t *testing.T) {
	store := &mockStore{
		GetSubscriptionFunc: func(ctx context.Context, id string) (*domain.Subscription, error) {
			return &domain.Subscription{ID: id, Status: domain.StatusActive}, nil
		},
	}
	h := NewResourceHandler(store)

	c, rec := resourceContext("/api/subscriptions/sub_1", "sub_1")
	require.NoError(t, h.GetSubscription(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "active")
}

func TestGetRefundNotFound(t *testing.T) {
	h := NewResourceHandler(&mockStore{})

	c, rec := resourceContext("/api/refunds/re_missing", "re_missing")
	require.NoError(t, h.GetRefund(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
