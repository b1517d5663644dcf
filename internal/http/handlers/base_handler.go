// README: Shared JSON helpers and error-to-status mapping.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"sokoni/internal/modules/dispatch"
	"sokoni/internal/modules/order"
	"sokoni/internal/modules/pricing"
	"sokoni/internal/modules/returns"
	"sokoni/internal/modules/tracking"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(c *gin.Context, status int, msg string) {
	c.JSON(status, errorResponse{Error: msg})
}

// writeServiceError translates the module error taxonomy into HTTP
// statuses. Every business rejection keeps its human-readable reason so
// customers, couriers and admins can self-diagnose a refusal.
func writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, order.ErrNotFound),
		errors.Is(err, dispatch.ErrNotFound),
		errors.Is(err, returns.ErrNotFound),
		errors.Is(err, tracking.ErrUnknownDispatch),
		errors.Is(err, tracking.ErrNoLocation):
		writeError(c, http.StatusNotFound, err.Error())

	case errors.Is(err, order.ErrBadRequest),
		errors.Is(err, order.ErrTotalsMismatch),
		errors.Is(err, order.ErrInvalidRating),
		errors.Is(err, dispatch.ErrBadRequest),
		errors.Is(err, returns.ErrBadRequest),
		errors.Is(err, tracking.ErrBadRequest),
		errors.Is(err, pricing.ErrInvalidDistance):
		writeError(c, http.StatusBadRequest, err.Error())

	case errors.Is(err, order.ErrIllegalTransition),
		errors.Is(err, order.ErrConflict),
		errors.Is(err, order.ErrAlreadyRated),
		errors.Is(err, order.ErrBadCompletionCode),
		errors.Is(err, order.ErrCompensationRequired),
		errors.Is(err, dispatch.ErrIllegalTransition),
		errors.Is(err, dispatch.ErrConflict),
		errors.Is(err, dispatch.ErrDispatchExists),
		errors.Is(err, returns.ErrIllegalTransition),
		errors.Is(err, returns.ErrConflict),
		errors.Is(err, returns.ErrDuplicateReturn),
		errors.Is(err, tracking.ErrDispatchTerminal):
		writeError(c, http.StatusConflict, err.Error())

	case errors.Is(err, order.ErrNotDelivered),
		errors.Is(err, returns.ErrNotEligible):
		writeError(c, http.StatusUnprocessableEntity, err.Error())

	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}
