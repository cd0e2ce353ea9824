package domain

import (
	"context"
	"time"
)

// SubscriptionStatus is the closed set of subscription lifecycle states.
// The provider is authoritative; anything it sends outside this set is
// coerced to StatusIncomplete rather than stored verbatim.
type SubscriptionStatus string

const (
	StatusActive            SubscriptionStatus = "active"
	StatusPastDue           SubscriptionStatus = "past_due"
	StatusUnpaid            SubscriptionStatus = "unpaid"
	StatusCanceled          SubscriptionStatus = "canceled"
	StatusIncomplete        SubscriptionStatus = "incomplete"
	StatusIncompleteExpired SubscriptionStatus = "incomplete_expired"
	StatusTrialing          SubscriptionStatus = "trialing"
	StatusPaused            SubscriptionStatus = "paused"
)

// CoerceSubscriptionStatus maps a raw provider status string onto the closed
// enum, defaulting unknown values to StatusIncomplete.
func CoerceSubscriptionStatus(raw string) SubscriptionStatus {
	switch s := SubscriptionStatus(raw); s {
	case StatusActive, StatusPastDue, StatusUnpaid, StatusCanceled,
		StatusIncomplete, StatusIncompleteExpired, StatusTrialing, StatusPaused:
		return s
	default:
		return StatusIncomplete
	}
}

// RefundStatus is the closed set of refund states.
type RefundStatus string

const (
	RefundSucceeded RefundStatus = "succeeded"
	RefundPending   RefundStatus = "pending"
	RefundFailed    RefundStatus = "failed"
	RefundCanceled  RefundStatus = "canceled"
)

// CoerceRefundStatus maps a raw provider refund status onto the closed enum,
// defaulting unknown or empty values to RefundFailed.
func CoerceRefundStatus(raw string) RefundStatus {
	switch s := RefundStatus(raw); s {
	case RefundSucceeded, RefundPending, RefundFailed, RefundCanceled:
		return s
	default:
		return RefundFailed
	}
}

// Terminal reports whether the refund can no longer change state.
// Terminal rows are never overwritten by later upserts.
func (s RefundStatus) Terminal() bool {
	return s == RefundSucceeded || s == RefundCanceled
}

// Customer is the local mirror of a provider customer.
// The provider-assigned ID is immutable and globally unique.
type Customer struct {
	ID        string            `json:"id"`
	AccountID string            `json:"account_id"` // identity-provider user id, from metadata.accountId
	Email     string            `json:"email"`
	Name      string            `json:"name"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Deleted   bool              `json:"deleted"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Subscription is the local mirror of a provider subscription.
type Subscription struct {
	ID                 string             `json:"id"`
	CustomerID         string             `json:"customer_id"`
	Status             SubscriptionStatus `json:"status"`
	PriceID            string             `json:"price_id"`
	Quantity           int64              `json:"quantity"`
	CancelAtPeriodEnd  bool               `json:"cancel_at_period_end"`
	CurrentPeriodStart time.Time          `json:"current_period_start"`
	CurrentPeriodEnd   time.Time          `json:"current_period_end"`
	CancelAt           *time.Time         `json:"cancel_at,omitempty"`
	CanceledAt         *time.Time         `json:"canceled_at,omitempty"`
	Metadata           map[string]string  `json:"metadata,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// Product is the local mirror of a provider product.
type Product struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Active      bool              `json:"active"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// Recurring describes the billing cadence of a recurring price.
type Recurring struct {
	Interval      string `json:"interval"`
	IntervalCount int64  `json:"interval_count"`
}

// Price is the local mirror of a provider price. UnitAmount is in minor
// currency units; never floating point.
type Price struct {
	ID         string            `json:"id"`
	ProductID  string            `json:"product_id"`
	Currency   string            `json:"currency"`
	UnitAmount int64             `json:"unit_amount"`
	Type       string            `json:"type"` // "one_time" or "recurring"
	Recurring  *Recurring        `json:"recurring,omitempty"`
	Active     bool              `json:"active"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// Refund is the local mirror of a provider refund. Amount is in minor
// currency units.
type Refund struct {
	ID              string            `json:"id"`
	Amount          int64             `json:"amount"`
	Currency        string            `json:"currency"`
	PaymentIntentID string            `json:"payment_intent_id"`
	Status          RefundStatus      `json:"status"`
	Reason          string            `json:"reason,omitempty"`
	FailureReason   string            `json:"failure_reason,omitempty"`
	ReceiptNumber   string            `json:"receipt_number,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// BillingStore persists local mirrors of provider billing resources.
// All upserts are keyed by the provider-assigned id and must be expressed as
// a single atomic insert-or-update so concurrent deliveries for the same
// resource cannot lose updates. Deletes are soft flags, never row removals.
type BillingStore interface {
	UpsertCustomer(ctx context.Context, c Customer) error
	MarkCustomerDeleted(ctx context.Context, id string) error
	GetCustomer(ctx context.Context, id string) (*Customer, error)

	UpsertSubscription(ctx context.Context, s Subscription) error
	SetSubscriptionStatus(ctx context.Context, id string, status SubscriptionStatus, periodEnd *time.Time) error
	GetSubscription(ctx context.Context, id string) (*Subscription, error)

	UpsertProduct(ctx context.Context, p Product) error
	DeactivateProduct(ctx context.Context, id string) error
	GetProduct(ctx context.Context, id string) (*Product, error)

	UpsertPrice(ctx context.Context, p Price) error
	DeactivatePrice(ctx context.Context, id string) error
	GetPrice(ctx context.Context, id string) (*Price, error)

	// UpsertRefund skips rows already in a terminal status.
	UpsertRefund(ctx context.Context, r Refund) error
	GetRefund(ctx context.Context, id string) (*Refund, error)
}
