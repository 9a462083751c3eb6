// README: Booking handlers: request help, mechanic response, ranked mechanics, confirmation.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"roadside/internal/http/middleware"
	"roadside/internal/modules/booking"
	"roadside/internal/modules/discovery"
	"roadside/internal/types"
)

type BookingService interface {
	InitiateServiceRequest(ctx context.Context, cmd booking.InitiateCommand) (*booking.InitiateResult, error)
	MechanicRespondsToRequest(ctx context.Context, cmd booking.RespondCommand) error
	MechanicsForRequest(ctx context.Context, req *booking.ServiceRequest) ([]booking.RankedMechanic, error)
	ConfirmBookingWithMechanic(ctx context.Context, cmd booking.ConfirmCommand) (*booking.ConfirmResult, error)
	GetServiceRequest(ctx context.Context, id types.ID) (*booking.ServiceRequest, error)
}

type BookingHandler struct {
	booking BookingService
	log     logrus.FieldLogger
}

func NewBookingHandler(svc BookingService, log logrus.FieldLogger) *BookingHandler {
	return &BookingHandler{booking: svc, log: log}
}

type createRequestReq struct {
	ServiceType string   `json:"serviceType" binding:"required,servicetype"`
	Latitude    *float64 `json:"latitude" binding:"required,min=-90,max=90"`
	Longitude   *float64 `json:"longitude" binding:"required,min=-180,max=180"`
	Description string   `json:"description" binding:"max=2000"`
	Address     *string  `json:"address" binding:"omitempty,max=500"`
}

type respondReq struct {
	ServiceRequestID string `json:"serviceRequestId" binding:"required"`
	Accepted         *bool  `json:"accepted" binding:"required"`
}

type confirmReq struct {
	ServiceRequestID string `json:"serviceRequestId" binding:"required"`
	MechanicID       string `json:"mechanicId" binding:"required"`
}

type textValue struct {
	Text  string  `json:"text"`
	Value float64 `json:"value"`
}

type offerResp struct {
	ID       types.ID  `json:"id"`
	Name     string    `json:"name"`
	Distance textValue `json:"distance"`
	Duration textValue `json:"duration"`
	Cost     float64   `json:"cost"`
	Currency string    `json:"currency"`
}

type serviceRequestResp struct {
	ID          types.ID          `json:"id"`
	UserID      types.ID          `json:"userId"`
	ServiceType types.ServiceType `json:"serviceType"`
	Latitude    float64           `json:"latitude"`
	Longitude   float64           `json:"longitude"`
	Description string            `json:"description"`
	Address     *string           `json:"address,omitempty"`
	Status      string            `json:"status"`
	MechanicID  *types.ID         `json:"mechanicId"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

type mechanicProfileResp struct {
	ID           types.ID            `json:"id"`
	Name         string              `json:"name"`
	Phone        string              `json:"phone,omitempty"`
	Email        string              `json:"email,omitempty"`
	ServiceTypes []types.ServiceType `json:"serviceTypes"`
	Latitude     float64             `json:"latitude"`
	Longitude    float64             `json:"longitude"`
	Address      *discovery.Address  `json:"address,omitempty"`
}

type rankedMechanicResp struct {
	ID               types.ID             `json:"id"`
	ServiceRequestID types.ID             `json:"serviceRequestId"`
	MechanicID       types.ID             `json:"mechanicId"`
	Status           string               `json:"status"`
	Distance         textValue            `json:"distance"`
	Duration         textValue            `json:"duration"`
	EstimatedCost    float64              `json:"estimatedCost"`
	Currency         string               `json:"currency"`
	RespondedAt      *time.Time           `json:"respondedAt"`
	Mechanic         *mechanicProfileResp `json:"mechanic"`
	AverageRating    *float64             `json:"averageRating"`
}

func (h *BookingHandler) CreateRequest(c *gin.Context) {
	var req createRequestReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}
	res, err := h.booking.InitiateServiceRequest(c.Request.Context(), booking.InitiateCommand{
		UserID:      types.ID(middleware.CallerUID(c)),
		ServiceType: types.ServiceType(req.ServiceType),
		Origin:      types.Point{Lat: *req.Latitude, Lng: *req.Longitude},
		Description: req.Description,
		Address:     req.Address,
	})
	if err != nil {
		writeBookingError(c, h.log, err)
		return
	}
	offers := make([]offerResp, len(res.Offers))
	for i, o := range res.Offers {
		offers[i] = offerResp{
			ID:       o.MechanicID,
			Name:     o.Name,
			Distance: textValue{Text: o.DistanceText, Value: o.DistanceValue},
			Duration: textValue{Text: o.DurationText, Value: o.DurationValue},
			Cost:     o.Cost.Major(),
			Currency: o.Cost.Currency,
		}
	}
	writeJSON(c, http.StatusCreated, gin.H{"serviceRequestId": res.ServiceRequestID, "mechanicOffers": offers})
}

// Respond answers on behalf of the calling mechanic.
func (h *BookingHandler) Respond(c *gin.Context) {
	if middleware.CallerRole(c) != middleware.RoleMechanic {
		writeError(c, http.StatusForbidden, "mechanic role required")
		return
	}
	var req respondReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}
	err := h.booking.MechanicRespondsToRequest(c.Request.Context(), booking.RespondCommand{
		MechanicID:       types.ID(middleware.CallerUID(c)),
		ServiceRequestID: types.ID(req.ServiceRequestID),
		Accepted:         *req.Accepted,
	})
	if err != nil {
		writeBookingError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"success": true})
}

func (h *BookingHandler) ListMechanics(c *gin.Context) {
	req, ok := h.ownedRequest(c, types.ID(c.Param("id")))
	if !ok {
		return
	}
	ranked, err := h.booking.MechanicsForRequest(c.Request.Context(), req)
	if err != nil {
		writeBookingError(c, h.log, err)
		return
	}
	out := make([]rankedMechanicResp, len(ranked))
	for i, r := range ranked {
		out[i] = rankedMechanicResp{
			ID:               r.ID,
			ServiceRequestID: r.ServiceRequestID,
			MechanicID:       r.MechanicID,
			Status:           string(r.Status),
			Distance:         textValue{Text: r.DistanceText, Value: r.DistanceValue},
			Duration:         textValue{Text: r.DurationText, Value: r.DurationValue},
			EstimatedCost:    r.EstimatedCost.Major(),
			Currency:         r.EstimatedCost.Currency,
			RespondedAt:      r.RespondedAt,
			Mechanic:         toProfile(r.Mechanic),
			AverageRating:    r.AverageRating,
		}
	}
	writeJSON(c, http.StatusOK, out)
}

func (h *BookingHandler) Confirm(c *gin.Context) {
	var req confirmReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}
	res, err := h.booking.ConfirmBookingWithMechanic(c.Request.Context(), booking.ConfirmCommand{
		UserID:           types.ID(middleware.CallerUID(c)),
		ServiceRequestID: types.ID(req.ServiceRequestID),
		MechanicID:       types.ID(req.MechanicID),
	})
	if err != nil {
		writeBookingError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"serviceRequest": toRequestResp(res.ServiceRequest), "chatId": res.ChatID})
}

func (h *BookingHandler) GetRequest(c *gin.Context) {
	r, ok := h.ownedRequest(c, types.ID(c.Param("id")))
	if !ok {
		return
	}
	writeJSON(c, http.StatusOK, toRequestResp(r))
}

// ownedRequest writes 404 for requests the caller does not own.
func (h *BookingHandler) ownedRequest(c *gin.Context, id types.ID) (*booking.ServiceRequest, bool) {
	r, err := h.booking.GetServiceRequest(c.Request.Context(), id)
	if err != nil {
		writeBookingError(c, h.log, err)
		return nil, false
	}
	if r.UserID != types.ID(middleware.CallerUID(c)) {
		writeBookingError(c, h.log, booking.ErrNotFound)
		return nil, false
	}
	return r, true
}

func toRequestResp(r *booking.ServiceRequest) serviceRequestResp {
	return serviceRequestResp{
		ID:          r.ID,
		UserID:      r.UserID,
		ServiceType: r.ServiceType,
		Latitude:    r.Origin.Lat,
		Longitude:   r.Origin.Lng,
		Description: r.Description,
		Address:     r.Address,
		Status:      string(r.Status),
		MechanicID:  r.MechanicID,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func toProfile(m *discovery.Mechanic) *mechanicProfileResp {
	if m == nil {
		return nil
	}
	p := m.Location.Point()
	return &mechanicProfileResp{
		ID:           m.ID,
		Name:         m.Name,
		Phone:        m.Phone,
		Email:        m.Email,
		ServiceTypes: m.ServiceTypes,
		Latitude:     p.Lat,
		Longitude:    p.Lng,
		Address:      m.Address,
	}
}
