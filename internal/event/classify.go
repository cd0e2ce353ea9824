package event

// Category is the closed set of domain groupings the dispatcher switches
// over. Multiple concrete provider event types map to the same category; the
// handler distinguishes create/update/delete internally from the type string.
type Category int

const (
	CategoryUnknown Category = iota
	CategoryCustomer
	CategorySubscription
	CategoryPrice
	CategoryProduct
	CategoryPayment
	CategoryInvoice
	CategoryPaymentMethod
	CategoryRefund
	CategoryUsageRecord
	CategoryCoupon
	CategoryPromotionCode
	CategoryPlan
)

// String returns the category name used in logs and metric labels.
func (c Category) String() string {
	switch c {
	case CategoryCustomer:
		return "customer"
	case CategorySubscription:
		return "subscription"
	case CategoryPrice:
		return "price"
	case CategoryProduct:
		return "product"
	case CategoryPayment:
		return "payment"
	case CategoryInvoice:
		return "invoice"
	case CategoryPaymentMethod:
		return "payment_method"
	case CategoryRefund:
		return "refund"
	case CategoryUsageRecord:
		return "usage_record"
	case CategoryCoupon:
		return "coupon"
	case CategoryPromotionCode:
		return "promotion_code"
	case CategoryPlan:
		return "plan"
	default:
		return "unknown"
	}
}

// ObjectTag returns the `object` field value a payload in this category must
// carry. Empty means the category has no single tag (never the case for
// persisted categories).
func (c Category) ObjectTag() string {
	switch c {
	case CategoryCustomer:
		return "customer"
	case CategorySubscription:
		return "subscription"
	case CategoryPrice:
		return "price"
	case CategoryProduct:
		return "product"
	case CategoryPayment:
		return "payment_intent"
	case CategoryInvoice:
		return "invoice"
	case CategoryPaymentMethod:
		return "payment_method"
	case CategoryRefund:
		return "refund"
	case CategoryUsageRecord:
		return "usage_record"
	case CategoryCoupon:
		return "coupon"
	case CategoryPromotionCode:
		return "promotion_code"
	case CategoryPlan:
		return "plan"
	default:
		return ""
	}
}

// Provider event type strings this service recognizes.
const (
	TypeCustomerCreated     = "customer.created"
	TypeCustomerUpdated     = "customer.updated"
	TypeCustomerDeleted     = "customer.deleted"
	TypeSubscriptionCreated = "customer.subscription.created"
	TypeSubscriptionUpdated = "customer.subscription.updated"
	TypeSubscriptionDeleted = "customer.subscription.deleted"
	TypePriceCreated        = "price.created"
	TypePriceUpdated        = "price.updated"
	TypePriceDeleted        = "price.deleted"
	TypeProductCreated      = "product.created"
	TypeProductUpdated      = "product.updated"
	TypeProductDeleted      = "product.deleted"
	TypePaymentSucceeded    = "payment_intent.succeeded"
	TypePaymentFailed       = "payment_intent.payment_failed"
	TypeInvoicePaid         = "invoice.paid"
	TypeInvoicePaymentFail  = "invoice.payment_failed"
	TypeRefundCreated       = "refund.created"
	TypeRefundUpdated       = "refund.updated"
	TypeRefundFailed        = "refund.failed"
	TypePlanCreated         = "plan.created"
	TypePlanUpdated         = "plan.updated"
	TypePlanDeleted         = "plan.deleted"
)

// classifications maps every recognized provider event type to its category.
// Anything absent from this map is acknowledged without action.
var classifications = map[string]Category{
	TypeCustomerCreated:     CategoryCustomer,
	TypeCustomerUpdated:     CategoryCustomer,
	TypeCustomerDeleted:     CategoryCustomer,
	TypeSubscriptionCreated: CategorySubscription,
	TypeSubscriptionUpdated: CategorySubscription,
	TypeSubscriptionDeleted: CategorySubscription,
	TypePriceCreated:        CategoryPrice,
	TypePriceUpdated:        CategoryPrice,
	TypePriceDeleted:        CategoryPrice,
	TypeProductCreated:      CategoryProduct,
	TypeProductUpdated:      CategoryProduct,
	TypeProductDeleted:      CategoryProduct,
	TypePaymentSucceeded:    CategoryPayment,
	TypePaymentFailed:       CategoryPayment,
	TypeInvoicePaid:         CategoryInvoice,
	TypeInvoicePaymentFail:  CategoryInvoice,

	"payment_method.attached":              CategoryPaymentMethod,
	"payment_method.detached":              CategoryPaymentMethod,
	"payment_method.updated":               CategoryPaymentMethod,
	"payment_method.automatically_updated": CategoryPaymentMethod,

	TypeRefundCreated: CategoryRefund,
	TypeRefundUpdated: CategoryRefund,
	TypeRefundFailed:  CategoryRefund,

	"usage_record.created": CategoryUsageRecord,
	"usage_record.updated": CategoryUsageRecord,

	"coupon.created": CategoryCoupon,
	"coupon.updated": CategoryCoupon,
	"coupon.deleted": CategoryCoupon,

	"promotion_code.created": CategoryPromotionCode,
	"promotion_code.updated": CategoryPromotionCode,

	TypePlanCreated: CategoryPlan,
	TypePlanUpdated: CategoryPlan,
	TypePlanDeleted: CategoryPlan,
}

// Classify maps a provider event type string to its category. ok is false
// for genuinely unknown types, which callers acknowledge as no-ops.
func Classify(eventType string) (Category, bool) {
	c, ok := classifications[eventType]
	return c, ok
}
