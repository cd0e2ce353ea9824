package billing

import (
	"errors"
	"net/http"

	"github.com/stripe/stripe-go/v82"

	"github.com/pverheyen/heimdall/internal/domain"
)

// mapStripeError translates a Stripe SDK error into a domain error. Missing
// resources map to ENOTFOUND; everything else is treated as an upstream
// availability problem so callers get a 502, not a 500.
func mapStripeError(err error, op string, msg string) error {
	var sErr *stripe.Error
	if errors.As(err, &sErr) {
		if sErr.HTTPStatusCode == http.StatusNotFound || sErr.Code == stripe.ErrorCodeResourceMissing {
			return domain.WrapError(err, domain.ENOTFOUND, op, msg)
		}
	}
	return domain.Unavailable(err, op, msg)
}
