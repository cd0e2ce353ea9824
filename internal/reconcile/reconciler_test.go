package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pverheyen/heimdall/internal/domain"
	"github.com/pverheyen/heimdall/internal/identity"
)

type mockCustomers struct {
	GetCustomerFunc func(ctx context.Context, id string) (*domain.Customer, error)
}

func (m *mockCustomers) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	return m.GetCustomerFunc(ctx, id)
}

type mockIdentity struct {
	GetUserFunc         func(ctx context.Context, userID string) (*identity.User, error)
	PatchCustomDataFunc func(ctx context.Context, userID string, customData map[string]any) error
}

func (m *mockIdentity) GetUser(ctx context.Context, userID string) (*identity.User, error) {
	if m.GetUserFunc == nil {
		return &identity.User{ID: userID}, nil
	}
	return m.GetUserFunc(ctx, userID)
}

func (m *mockIdentity) PatchCustomData(ctx context.Context, userID string, customData map[string]any) error {
	if m.PatchCustomDataFunc == nil {
		return nil
	}
	return m.PatchCustomDataFunc(ctx, userID, customData)
}

func testSubscription() domain.Subscription {
	return domain.Subscription{
		ID:               "sub_1",
		CustomerID:       "cus_1",
		Status:           domain.StatusActive,
		PriceID:          "price_1",
		CurrentPeriodEnd: time.Unix(1700003600, 0).UTC(),
	}
}

func TestSubscriptionChangedUpdatesCustomData(t *testing.T) {
	customers := &mockCustomers{
		GetCustomerFunc: func(ctx context.Context, id string) (*domain.Customer, error) {
			return &domain.Customer{ID: id, AccountID: "user_1"}, nil
		},
	}

	var patchedUser string
	var patched map[string]any
	users := &mockIdentity{
		GetUserFunc: func(ctx context.Context, userID string) (*identity.User, error) {
			return &identity.User{
				ID: userID,
				CustomData: map[string]any{
					"stripeCustomerId": "cus_1",
					"theme":            "dark",
				},
			}, nil
		},
		PatchCustomDataFunc: func(ctx context.Context, userID string, customData map[string]any) error {
			patchedUser = userID
			patched = customData
			return nil
		},
	}

	r := NewReconciler(customers, users, zerolog.Nop())
	r.SubscriptionChanged(context.Background(), testSubscription())

	require.Equal(t, "user_1", patchedUser)
	assert.Equal(t, "cus_1", patched["stripeCustomerId"])

	sub, ok := patched["subscription"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "sub_1", sub["id"])
	assert.Equal(t, "active", sub["status"])
	assert.Equal(t, "price_1", sub["priceId"])
	assert.Equal(t, int64(1700003600), sub["currentPeriodEnd"])
}

func TestSubscriptionChangedSkipsUnlinkedCustomer(t *testing.T) {
	customers := &mockCustomers{
		GetCustomerFunc: func(ctx context.Context, id string) (*domain.Customer, error) {
			return &domain.Customer{ID: id}, nil
		},
	}
	users := &mockIdentity{
		GetUserFunc: func(ctx context.Context, userID string) (*identity.User, error) {
			t.Fatal("identity must not be called for unlinked customers")
			return nil, nil
		},
	}

	r := NewReconciler(customers, users, zerolog.Nop())
	r.SubscriptionChanged(context.Background(), testSubscription())
}

func TestSubscriptionChangedSwallowsCustomerLookupFailure(t *testing.T) {
	customers := &mockCustomers{
		GetCustomerFunc: func(ctx context.Context, id string) (*domain.Customer, error) {
			return nil, domain.NotFound("store.get_customer", "customer", id)
		},
	}

	r := NewReconciler(customers, &mockIdentity{}, zerolog.Nop())
	// Must not panic or propagate.
	r.SubscriptionChanged(context.Background(), testSubscription())
}

func TestSubscriptionChangedSwallowsIdentityFailures(t *testing.T) {
	customers := &mockCustomers{
		GetCustomerFunc: func(ctx context.Context, id string) (*domain.Customer, error) {
			return &domain.Customer{ID: id, AccountID: "user_1"}, nil
		},
	}
	users := &mockIdentity{
		GetUserFunc: func(ctx context.Context, userID string) (*identity.User, error) {
			return nil, domain.Unavailable(nil, "identity.get_user", "endpoint down")
		},
	}

	r := NewReconciler(customers, users, zerolog.Nop())
	r.SubscriptionChanged(context.Background(), testSubscription())
}

func TestSubscriptionChangedSwallowsWriteFailure(t *testing.T) {
	customers := &mockCustomers{
		GetCustomerFunc: func(ctx context.Context, id string) (*domain.Customer, error) {
			return &domain.Customer{ID: id, AccountID: "user_1"}, nil
		},
	}
	users := &mockIdentity{
		PatchCustomDataFunc: func(ctx context.Context, userID string, customData map[string]any) error {
			return domain.Unavailable(nil, "identity.patch_custom_data", "endpoint down")
		},
	}

	r := NewReconciler(customers, users, zerolog.Nop())
	r.SubscriptionChanged(context.Background(), testSubscription())
}

func TestSubscriptionChangedPreservesNoStaleSubscription(t *testing.T) {
	customers := &mockCustomers{
		GetCustomerFunc: func(ctx context.Context, id string) (*domain.Customer, error) {
			return &domain.Customer{ID: id, AccountID: "user_1"}, nil
		},
	}

	var patched map[string]any
	users := &mockIdentity{
		GetUserFunc: func(ctx context.Context, userID string) (*identity.User, error) {
			return &identity.User{
				ID: userID,
				CustomData: map[string]any{
					"stripeCustomerId": "cus_1",
					"subscription": map[string]any{
						"id":     "sub_old",
						"status": "canceled",
					},
				},
			}, nil
		},
		PatchCustomDataFunc: func(ctx context.Context, userID string, customData map[string]any) error {
			patched = customData
			return nil
		},
	}

	r := NewReconciler(customers, users, zerolog.Nop())
	r.SubscriptionChanged(context.Background(), testSubscription())

	sub, ok := patched["subscription"].(map[string]any)
	require.True(t, ok)
	// The subscription key is replaced wholesale, never merged.
	assert.Equal(t, "sub_1", sub["id"])
	assert.Equal(t, "active", sub["status"])
}

func TestSubscriptionChangedZeroPeriodEnd(t *testing.T) {
	customers := &mockCustomers{
		GetCustomerFunc: func(ctx context.Context, id string) (*domain.Customer, error) {
			return &domain.Customer{ID: id, AccountID: "user_1"}, nil
		},
	}

	var patched map[string]any
	users := &mockIdentity{
		PatchCustomDataFunc: func(ctx context.Context, userID string, customData map[string]any) error {
			patched = customData
			return nil
		},
	}

	r := NewReconciler(customers, users, zerolog.Nop())
	sub := testSubscription()
	sub.CurrentPeriodEnd = time.Time{}
	r.SubscriptionChanged(context.Background(), sub)

	got, ok := patched["subscription"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, int64(0), got["currentPeriodEnd"])
}
