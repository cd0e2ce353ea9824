package billing

import (
	"context"
	"encoding/json"

	"github.com/pverheyen/heimdall/internal/domain"
)

// MockProvider is a mock billing provider for testing. Each method delegates
// to the corresponding function field, so tests only stub what they use.
type MockProvider struct {
	// VerifyWebhookSignatureFunc allows customizing webhook verification behavior
	VerifyWebhookSignatureFunc func(payload []byte, signature string, secret string) error

	// CreateCustomerFunc allows customizing customer creation behavior
	CreateCustomerFunc func(ctx context.Context, params CreateCustomerParams) (*Customer, error)

	// GetInvoiceFunc allows customizing invoice retrieval behavior
	GetInvoiceFunc func(ctx context.Context, invoiceID string) (*Invoice, error)

	// ListResourcesFunc allows customizing resource listing behavior
	ListResourcesFunc func(ctx context.Context, resource domain.SyncResource, opts domain.SyncOptions, each func(raw json.RawMessage) error) error
}

var _ Provider = (*MockProvider)(nil)

func (m *MockProvider) VerifyWebhookSignature(payload []byte, signature string, secret string) error {
	if m.VerifyWebhookSignatureFunc == nil {
		return nil
	}
	return m.VerifyWebhookSignatureFunc(payload, signature, secret)
}

func (m *MockProvider) CreateCustomer(ctx context.Context, params CreateCustomerParams) (*Customer, error) {
	if m.CreateCustomerFunc == nil {
		return &Customer{ID: "cus_mock", Email: params.Email, Name: params.Name, Metadata: params.Metadata}, nil
	}
	return m.CreateCustomerFunc(ctx, params)
}

func (m *MockProvider) GetInvoice(ctx context.Context, invoiceID string) (*Invoice, error) {
	if m.GetInvoiceFunc == nil {
		return &Invoice{ID: invoiceID}, nil
	}
	return m.GetInvoiceFunc(ctx, invoiceID)
}

func (m *MockProvider) ListResources(ctx context.Context, resource domain.SyncResource, opts domain.SyncOptions, each func(raw json.RawMessage) error) error {
	if m.ListResourcesFunc == nil {
		return nil
	}
	return m.ListResourcesFunc(ctx, resource, opts, each)
}
