package httpx

import (
	"errors"
	"net/http"

	"go.uber.org/zap"
)

// Problem codes shared by every handler.
const (
	CodeValidation = "VALIDATION_FAILED"
	CodeForbidden  = "FORBIDDEN"
	CodeUnauth     = "UNAUTHORIZED"
	CodeInternal   = "INTERNAL_ERROR"
)

// ErrorMapping binds a sentinel error to the status and problem code it is reported with.
type ErrorMapping struct {
	Err    error
	Status int
	Code   string
}

// RespondError writes the problem for the first mapping whose Err matches err (errors.Is).
// Unmapped errors are logged and reported as 500 without detail.
func RespondError(w http.ResponseWriter, err error, mappings []ErrorMapping, logger *zap.Logger) {
	for _, m := range mappings {
		if errors.Is(err, m.Err) {
			Problem(w, m.Status, m.Code, m.Err.Error())
			return
		}
	}
	if errors.Is(err, ErrMalformedBody) {
		Problem(w, http.StatusBadRequest, CodeValidation, err.Error())
		return
	}
	if logger != nil {
		logger.Error("unhandled error", zap.Error(err))
	}
	Problem(w, http.StatusInternalServerError, CodeInternal, "")
}
