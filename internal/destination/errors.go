package destination

import (
	"errors"
	"net/http"

	"github.com/relayline/relayline/internal/domain"
)

// classifyStatus maps an HTTP status from a platform API to a failure kind.
func classifyStatus(code int) domain.FailureKind {
	switch {
	case code == http.StatusTooManyRequests:
		return domain.FailRateLimited
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return domain.FailPermanentAuth
	case code >= 400 && code < 500:
		return domain.FailPermanentConfig
	default:
		return domain.FailTransient
	}
}

// wrapErr attaches a failure kind unless err already carries one.
func wrapErr(kind domain.FailureKind, err error) error {
	var de *domain.DeliveryError
	if errors.As(err, &de) {
		return err
	}
	return domain.NewDeliveryError(kind, err)
}
