package event

import (
	"encoding/json"
	"time"
)

// Envelope is the provider's webhook delivery shape: a type string and a raw
// data.object payload. Decoding of the payload is deferred until the
// category handler runs, so the object-kind tag can be checked first.
type Envelope struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// SyntheticEnvelope wraps a raw resource fetched from the provider's list
// APIs in the shape the live webhook path produces, so backfill and live
// deliveries share the same handlers.
func SyntheticEnvelope(eventType string, object json.RawMessage) Envelope {
	var e Envelope
	e.ID = "sync"
	e.Type = eventType
	e.Data.Object = object
	return e
}

// objectTag is the minimal decode used for the type-narrowing guard.
type objectTag struct {
	Object string `json:"object"`
}

// Ref holds a provider reference that arrives either as a bare id string or
// as an expanded object with an `id` field.
type Ref string

func (r *Ref) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*r = Ref(s)
		return nil
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	*r = Ref(obj.ID)
	return nil
}

func (r Ref) String() string { return string(r) }

// Epoch is a provider timestamp in epoch seconds. Persisted shapes always
// carry timezone-aware instants, never raw integers.
type Epoch int64

func (e Epoch) Time() time.Time {
	if e == 0 {
		return time.Time{}
	}
	return time.Unix(int64(e), 0).UTC()
}

func (e Epoch) TimePtr() *time.Time {
	if e == 0 {
		return nil
	}
	t := e.Time()
	return &t
}

// wireCustomer is the provider customer payload.
type wireCustomer struct {
	ID       string            `json:"id"`
	Object   string            `json:"object"`
	Email    string            `json:"email"`
	Name     string            `json:"name"`
	Deleted  bool              `json:"deleted"`
	Metadata map[string]string `json:"metadata"`
	Created  Epoch             `json:"created"`
}

// wireSubscriptionItem is one line of a subscription. Newer provider API
// versions moved the current period fields down here.
type wireSubscriptionItem struct {
	ID    string `json:"id"`
	Price struct {
		ID string `json:"id"`
	} `json:"price"`
	Quantity           int64 `json:"quantity"`
	CurrentPeriodStart Epoch `json:"current_period_start"`
	CurrentPeriodEnd   Epoch `json:"current_period_end"`
}

// wireSubscription is the provider subscription payload. Period fields are
// read from the top level when present, falling back to the first item.
type wireSubscription struct {
	ID       string `json:"id"`
	Object   string `json:"object"`
	Customer Ref    `json:"customer"`
	Status   string `json:"status"`
	Items    struct {
		Data []wireSubscriptionItem `json:"data"`
	} `json:"items"`
	CancelAtPeriodEnd  bool              `json:"cancel_at_period_end"`
	CurrentPeriodStart Epoch             `json:"current_period_start"`
	CurrentPeriodEnd   Epoch             `json:"current_period_end"`
	CancelAt           Epoch             `json:"cancel_at"`
	CanceledAt         Epoch             `json:"canceled_at"`
	Metadata           map[string]string `json:"metadata"`
	Created            Epoch             `json:"created"`
}

func (s *wireSubscription) priceID() string {
	if len(s.Items.Data) == 0 {
		return ""
	}
	return s.Items.Data[0].Price.ID
}

func (s *wireSubscription) quantity() int64 {
	if len(s.Items.Data) == 0 {
		return 0
	}
	return s.Items.Data[0].Quantity
}

func (s *wireSubscription) periodStart() Epoch {
	if s.CurrentPeriodStart != 0 {
		return s.CurrentPeriodStart
	}
	if len(s.Items.Data) > 0 {
		return s.Items.Data[0].CurrentPeriodStart
	}
	return 0
}

func (s *wireSubscription) periodEnd() Epoch {
	if s.CurrentPeriodEnd != 0 {
		return s.CurrentPeriodEnd
	}
	if len(s.Items.Data) > 0 {
		return s.Items.Data[0].CurrentPeriodEnd
	}
	return 0
}

// wireProduct is the provider product payload.
type wireProduct struct {
	ID          string            `json:"id"`
	Object      string            `json:"object"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Active      bool              `json:"active"`
	Metadata    map[string]string `json:"metadata"`
	Created     Epoch             `json:"created"`
}

// wirePrice is the provider price payload.
type wirePrice struct {
	ID         string `json:"id"`
	Object     string `json:"object"`
	Product    Ref    `json:"product"`
	Currency   string `json:"currency"`
	UnitAmount int64  `json:"unit_amount"`
	Type       string `json:"type"`
	Recurring  *struct {
		Interval      string `json:"interval"`
		IntervalCount int64  `json:"interval_count"`
	} `json:"recurring"`
	Active   bool              `json:"active"`
	Metadata map[string]string `json:"metadata"`
	Created  Epoch             `json:"created"`
}

// wirePlan is the legacy plan payload; persisted as a recurring price.
type wirePlan struct {
	ID            string            `json:"id"`
	Object        string            `json:"object"`
	Product       Ref               `json:"product"`
	Currency      string            `json:"currency"`
	Amount        int64             `json:"amount"`
	Interval      string            `json:"interval"`
	IntervalCount int64             `json:"interval_count"`
	Active        bool              `json:"active"`
	Metadata      map[string]string `json:"metadata"`
	Created       Epoch             `json:"created"`
}

// wirePaymentIntent carries only what the payment handler needs: the
// invoice reference that leads back to the owning subscription.
type wirePaymentIntent struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Invoice Ref    `json:"invoice"`
}

// wireInvoice is the provider invoice payload. The subscription reference
// lives at the top level on older API versions and under parent on newer
// ones; both are tolerated.
type wireInvoice struct {
	ID           string `json:"id"`
	Object       string `json:"object"`
	Subscription Ref    `json:"subscription"`
	Parent       *struct {
		SubscriptionDetails *struct {
			Subscription Ref `json:"subscription"`
		} `json:"subscription_details"`
	} `json:"parent"`
	PeriodEnd Epoch `json:"period_end"`
}

func (i *wireInvoice) subscriptionID() string {
	if i.Subscription != "" {
		return string(i.Subscription)
	}
	if i.Parent != nil && i.Parent.SubscriptionDetails != nil {
		return string(i.Parent.SubscriptionDetails.Subscription)
	}
	return ""
}

// wireRefund is the provider refund payload.
type wireRefund struct {
	ID            string            `json:"id"`
	Object        string            `json:"object"`
	Amount        int64             `json:"amount"`
	Currency      string            `json:"currency"`
	PaymentIntent Ref               `json:"payment_intent"`
	Status        string            `json:"status"`
	Reason        string            `json:"reason"`
	FailureReason string            `json:"failure_reason"`
	ReceiptNumber string            `json:"receipt_number"`
	Metadata      map[string]string `json:"metadata"`
	Created       Epoch             `json:"created"`
}
