package domain

// SyncResource names a provider resource type the backfill driver can page
// through. The four syncable resources match the provider's list APIs.
type SyncResource string

const (
	SyncCustomers     SyncResource = "customers"
	SyncSubscriptions SyncResource = "subscriptions"
	SyncProducts      SyncResource = "products"
	SyncPrices        SyncResource = "prices"
)

// AllSyncResources is the default set when a sync request names none.
var AllSyncResources = []SyncResource{SyncCustomers, SyncSubscriptions, SyncProducts, SyncPrices}

// ValidSyncResource reports whether name is a known syncable resource.
func ValidSyncResource(name string) bool {
	switch SyncResource(name) {
	case SyncCustomers, SyncSubscriptions, SyncProducts, SyncPrices:
		return true
	default:
		return false
	}
}

// SyncOptions carries pagination and time-range filters for a backfill run.
type SyncOptions struct {
	// Limit is the page size requested from the provider. Zero means the
	// provider default of 100.
	Limit int64

	// StartingAfter resumes listing after the given resource id.
	StartingAfter string

	// CreatedAfter restricts listing to resources created after the given
	// epoch-seconds instant. Zero means no filter.
	CreatedAfter int64
}

// SyncResult summarizes one resource's backfill outcome. A single record's
// failure increments FailedCount and appends to Errors; it never halts the
// run, and successfully applied records are not rolled back.
type SyncResult struct {
	Resource    SyncResource `json:"resource"`
	Success     bool         `json:"success"`
	SyncedCount int          `json:"syncedCount"`
	FailedCount int          `json:"failedCount"`
	Errors      []string     `json:"errors,omitempty"`
}
