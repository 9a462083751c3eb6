// README: Base handler utilities (JSON helpers, error mapping).
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"roadside/internal/modules/booking"
	"roadside/internal/modules/discovery"
	"roadside/internal/modules/pricing"
	"roadside/internal/modules/routing"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

func bookingErrorStatus(err error) int {
	switch {
	case errors.Is(err, booking.ErrBadRequest), errors.Is(err, discovery.ErrInvalidQuery):
		return http.StatusBadRequest
	case errors.Is(err, booking.ErrNotFound), errors.Is(err, booking.ErrNoProvidersAvailable):
		return http.StatusNotFound
	case errors.Is(err, booking.ErrMechanicNotAccepted):
		return http.StatusBadRequest
	case errors.Is(err, booking.ErrAlreadyResponded), errors.Is(err, booking.ErrAlreadyConfirmed):
		return http.StatusConflict
	case errors.Is(err, routing.ErrUpstream), errors.Is(err, routing.ErrNoRoute):
		return http.StatusBadGateway
	case errors.Is(err, pricing.ErrUnknownServiceType):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// writeBookingError hides internal details behind a generic message for 5xx.
func writeBookingError(c *gin.Context, log logrus.FieldLogger, err error) {
	status := bookingErrorStatus(err)
	switch {
	case status == http.StatusBadGateway:
		log.WithError(err).Error("booking: routing provider failure")
		writeError(c, status, "routing provider unavailable")
	case status >= 500:
		log.WithError(err).Error("booking: internal error")
		writeError(c, status, "internal error")
	default:
		writeError(c, status, rootMessage(err))
	}
}

// rootMessage returns the message of the booking sentinel err wraps, if any.
func rootMessage(err error) string {
	for _, s := range []error{
		booking.ErrBadRequest, discovery.ErrInvalidQuery, booking.ErrNotFound,
		booking.ErrNoProvidersAvailable, booking.ErrMechanicNotAccepted,
		booking.ErrAlreadyResponded, booking.ErrAlreadyConfirmed,
	} {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return err.Error()
}
