package remote

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/dl-alexandre/collsync/internal/utils"
)

// classify maps transport failures onto the tool's error taxonomy. 404 means
// the addressed node does not exist and is surfaced as ErrNotFound so the
// resolver can apply its missing-collection policy; everything else becomes
// an AppError.
func classify(operation string, err error) error {
	var statusErr *statusError
	if !errors.As(err, &statusErr) {
		return utils.NewAppError(utils.ErrCodeNetworkError,
			fmt.Sprintf("Remote call failed: %s: %s", operation, err)).
			WithContext("operation", operation).
			Build()
	}

	switch statusErr.status {
	case http.StatusNotFound:
		return fmt.Errorf("%s: %w", operation, ErrNotFound)
	case http.StatusUnauthorized, http.StatusForbidden:
		return utils.NewAppError(utils.ErrCodeUserError,
			fmt.Sprintf("Remote service rejected credentials: %s", operation)).
			WithContext("operation", operation).
			WithContext("httpStatus", statusErr.status).
			Build()
	default:
		return utils.NewAppError(utils.ErrCodeNetworkError,
			fmt.Sprintf("Remote call failed: %s: %s", operation, statusErr)).
			WithContext("operation", operation).
			WithContext("httpStatus", statusErr.status).
			Build()
	}
}
