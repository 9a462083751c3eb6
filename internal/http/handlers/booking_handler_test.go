// README: Booking handler tests (auth, validation, status codes, response shape).
package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"roadside/internal/http/handlers"
	httpmiddleware "roadside/internal/http/middleware"
	"roadside/internal/infra"
	"roadside/internal/modules/booking"
	"roadside/internal/modules/discovery"
	"roadside/internal/modules/routing"
	"roadside/internal/types"
)

type stubTokenVerifier struct {
	token *infra.FirebaseToken
	err   error
}

func (s *stubTokenVerifier) VerifyIDToken(_ context.Context, _ string) (*infra.FirebaseToken, error) {
	return s.token, s.err
}

func makeVerifier(uid, role string) *stubTokenVerifier {
	claims := map[string]interface{}{}
	if role != "" {
		claims["role"] = role
	}
	return &stubTokenVerifier{token: &infra.FirebaseToken{UID: uid, Claims: claims}}
}

// stubBooking records the last command and returns canned results.
type stubBooking struct {
	mu         sync.Mutex
	initiate   *booking.InitiateResult
	ranked     []booking.RankedMechanic
	confirm    *booking.ConfirmResult
	request    *booking.ServiceRequest
	err        error
	lastCreate booking.InitiateCommand
	lastResp   booking.RespondCommand
	lastConf   booking.ConfirmCommand
	lookups    int
	rankedFor  *booking.ServiceRequest
}

func (s *stubBooking) InitiateServiceRequest(_ context.Context, cmd booking.InitiateCommand) (*booking.InitiateResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastCreate = cmd
	return s.initiate, s.err
}

func (s *stubBooking) MechanicRespondsToRequest(_ context.Context, cmd booking.RespondCommand) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastResp = cmd
	return s.err
}

func (s *stubBooking) MechanicsForRequest(_ context.Context, req *booking.ServiceRequest) ([]booking.RankedMechanic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rankedFor = req
	return s.ranked, s.err
}

func (s *stubBooking) ConfirmBookingWithMechanic(_ context.Context, cmd booking.ConfirmCommand) (*booking.ConfirmResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastConf = cmd
	return s.confirm, s.err
}

func (s *stubBooking) GetServiceRequest(_ context.Context, id types.ID) (*booking.ServiceRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookups++
	if s.request == nil || s.request.ID != id {
		return nil, booking.ErrNotFound
	}
	return s.request, nil
}

func buildTestRouter(t *testing.T, verifier infra.TokenVerifier, svc handlers.BookingService) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	if err := handlers.RegisterValidators(); err != nil {
		t.Fatalf("register validators: %v", err)
	}
	log := logrus.New()
	log.SetOutput(io.Discard)

	r := gin.New()
	r.Use(httpmiddleware.Auth(verifier))
	h := handlers.NewBookingHandler(svc, log)
	r.POST("/booking/request", h.CreateRequest)
	r.GET("/booking/request/:id", h.GetRequest)
	r.GET("/booking/request/:id/mechanics", h.ListMechanics)
	r.POST("/booking/mechanic/response", h.Respond)
	r.POST("/booking/confirm", h.Confirm)
	return r
}

func doRequest(r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer sometoken")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func validCreateBody() map[string]any {
	return map[string]any{
		"serviceType": "TOW",
		"latitude":    12.9716,
		"longitude":   77.5946,
		"description": "car won't start",
	}
}

func TestCreateRequest_Unauthenticated(t *testing.T) {
	r := buildTestRouter(t, &stubTokenVerifier{err: errors.New("no token")}, &stubBooking{})
	w := doRequest(r, http.MethodPost, "/booking/request", validCreateBody())
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestCreateRequest_Validation(t *testing.T) {
	cases := map[string]func(map[string]any){
		"unknown service type": func(b map[string]any) { b["serviceType"] = "HOVERCRAFT" },
		"missing latitude":     func(b map[string]any) { delete(b, "latitude") },
		"longitude range":      func(b map[string]any) { b["longitude"] = 190.0 },
		"missing service type": func(b map[string]any) { delete(b, "serviceType") },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			svc := &stubBooking{}
			r := buildTestRouter(t, makeVerifier("u1", ""), svc)
			body := validCreateBody()
			mutate(body)
			w := doRequest(r, http.MethodPost, "/booking/request", body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d: %s", w.Code, w.Body.String())
			}
			if svc.lastCreate.UserID != "" {
				t.Errorf("service must not be called on invalid input")
			}
		})
	}
}

func TestCreateRequest_ZeroCoordinatesAccepted(t *testing.T) {
	svc := &stubBooking{initiate: &booking.InitiateResult{ServiceRequestID: "r0"}}
	r := buildTestRouter(t, makeVerifier("u1", ""), svc)
	body := validCreateBody()
	body["latitude"], body["longitude"] = 0.0, 0.0
	if w := doRequest(r, http.MethodPost, "/booking/request", body); w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
}

func TestCreateRequest_Success(t *testing.T) {
	svc := &stubBooking{initiate: &booking.InitiateResult{
		ServiceRequestID: "r1",
		Offers: []booking.Offer{
			{MechanicID: "m1", Name: "Near Garage", DistanceText: "850 m", DistanceValue: 850, DurationText: "3 mins", DurationValue: 180,
				Cost: types.Money{Amount: 7000, Currency: "INR"}},
			{MechanicID: "m2", Name: "Mid Motors", DistanceText: "10.0 km", DistanceValue: 10000, DurationText: "20 mins", DurationValue: 1200,
				Cost: types.Money{Amount: 8900, Currency: "INR"}},
		},
	}}
	r := buildTestRouter(t, makeVerifier("u1", ""), svc)
	w := doRequest(r, http.MethodPost, "/booking/request", validCreateBody())
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if svc.lastCreate.UserID != "u1" || svc.lastCreate.ServiceType != types.ServiceTow || svc.lastCreate.Origin.Lat != 12.9716 {
		t.Errorf("unexpected command %+v", svc.lastCreate)
	}

	var got struct {
		ServiceRequestID string `json:"serviceRequestId"`
		MechanicOffers   []struct {
			ID       string `json:"id"`
			Name     string `json:"name"`
			Distance struct {
				Text  string  `json:"text"`
				Value float64 `json:"value"`
			} `json:"distance"`
			Duration struct {
				Text  string  `json:"text"`
				Value float64 `json:"value"`
			} `json:"duration"`
			Cost float64 `json:"cost"`
		} `json:"mechanicOffers"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ServiceRequestID != "r1" || len(got.MechanicOffers) != 2 {
		t.Fatalf("unexpected body %s", w.Body.String())
	}
	o := got.MechanicOffers[1]
	if o.ID != "m2" || o.Distance.Text != "10.0 km" || o.Duration.Value != 1200 || o.Cost != 89 {
		t.Errorf("unexpected offer %+v", o)
	}
}

func TestCreateRequest_ErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{booking.ErrNoProvidersAvailable, http.StatusNotFound},
		{fmt.Errorf("booking: route to mechanic m1: %w", routing.ErrUpstream), http.StatusBadGateway},
		{fmt.Errorf("booking: find nearby: %w", discovery.ErrInvalidQuery), http.StatusBadRequest},
		{errors.New("db down"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		r := buildTestRouter(t, makeVerifier("u1", ""), &stubBooking{err: tc.err})
		w := doRequest(r, http.MethodPost, "/booking/request", validCreateBody())
		if w.Code != tc.want {
			t.Errorf("%v: expected %d, got %d", tc.err, tc.want, w.Code)
		}
	}
}

func TestRespond_RequiresMechanicRole(t *testing.T) {
	svc := &stubBooking{}
	r := buildTestRouter(t, makeVerifier("u1", ""), svc)
	w := doRequest(r, http.MethodPost, "/booking/mechanic/response", map[string]any{"serviceRequestId": "r1", "accepted": true})
	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", w.Code)
	}
}

func TestRespond_Success(t *testing.T) {
	svc := &stubBooking{}
	r := buildTestRouter(t, makeVerifier("m1", "mechanic"), svc)
	w := doRequest(r, http.MethodPost, "/booking/mechanic/response", map[string]any{"serviceRequestId": "r1", "accepted": false})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if w.Body.String() != `{"success":true}` {
		t.Errorf("unexpected body %s", w.Body.String())
	}
	want := booking.RespondCommand{MechanicID: "m1", ServiceRequestID: "r1", Accepted: false}
	if svc.lastResp != want {
		t.Errorf("command = %+v, want %+v", svc.lastResp, want)
	}
}

func TestRespond_MissingAccepted(t *testing.T) {
	r := buildTestRouter(t, makeVerifier("m1", "mechanic"), &stubBooking{})
	w := doRequest(r, http.MethodPost, "/booking/mechanic/response", map[string]any{"serviceRequestId": "r1"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestRespond_Errors(t *testing.T) {
	for err, want := range map[error]int{
		booking.ErrNotFound:         http.StatusNotFound,
		booking.ErrAlreadyResponded: http.StatusConflict,
	} {
		r := buildTestRouter(t, makeVerifier("m1", "mechanic"), &stubBooking{err: err})
		w := doRequest(r, http.MethodPost, "/booking/mechanic/response", map[string]any{"serviceRequestId": "r1", "accepted": true})
		if w.Code != want {
			t.Errorf("%v: expected %d, got %d", err, want, w.Code)
		}
	}
}

func TestListMechanics_OwnerOnly(t *testing.T) {
	svc := &stubBooking{request: &booking.ServiceRequest{ID: "r1", UserID: "owner"}}
	r := buildTestRouter(t, makeVerifier("someone-else", ""), svc)
	w := doRequest(r, http.MethodGet, "/booking/request/r1/mechanics", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestListMechanics_Success(t *testing.T) {
	rating := 4.5
	svc := &stubBooking{
		request: &booking.ServiceRequest{ID: "r1", UserID: "owner"},
		ranked: []booking.RankedMechanic{
			{
				Confirmation: booking.Confirmation{ID: "c3", ServiceRequestID: "r1", MechanicID: "m3", Status: booking.ConfirmationConfirmed,
					DistanceText: "10 m", DistanceValue: 10, EstimatedCost: types.Money{Amount: 7000, Currency: "INR"}},
				Mechanic:      &discovery.Mechanic{ID: "m3", Name: "Three", Location: discovery.NewGeoPoint(types.Point{Lat: 1, Lng: 2})},
				AverageRating: &rating,
			},
			{
				Confirmation: booking.Confirmation{ID: "c2", ServiceRequestID: "r1", MechanicID: "m2", Status: booking.ConfirmationPending, DistanceValue: 1},
			},
		},
	}
	r := buildTestRouter(t, makeVerifier("owner", ""), svc)
	w := doRequest(r, http.MethodGet, "/booking/request/r1/mechanics", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var got []struct {
		MechanicID    string   `json:"mechanicId"`
		Status        string   `json:"status"`
		EstimatedCost float64  `json:"estimatedCost"`
		AverageRating *float64 `json:"averageRating"`
		Mechanic      *struct {
			Name      string  `json:"name"`
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
		} `json:"mechanic"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 2 || got[0].MechanicID != "m3" || got[1].Status != "PENDING" {
		t.Fatalf("unexpected order %s", w.Body.String())
	}
	if got[0].EstimatedCost != 70 || *got[0].AverageRating != 4.5 || got[0].Mechanic.Longitude != 2 {
		t.Errorf("unexpected first entry %+v", got[0])
	}
	if got[1].AverageRating != nil || got[1].Mechanic != nil {
		t.Errorf("expected null rating and profile, got %s", w.Body.String())
	}
}

func TestListMechanics_LoadsRequestOnce(t *testing.T) {
	req := &booking.ServiceRequest{ID: "r1", UserID: "owner"}
	svc := &stubBooking{request: req}
	r := buildTestRouter(t, makeVerifier("owner", ""), svc)
	w := doRequest(r, http.MethodGet, "/booking/request/r1/mechanics", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if svc.lookups != 1 {
		t.Errorf("request loaded %d times, want 1", svc.lookups)
	}
	if svc.rankedFor != req {
		t.Errorf("ranking did not receive the owned request")
	}
}

func TestConfirm(t *testing.T) {
	mech := types.ID("m2")
	ok := &booking.ConfirmResult{
		ServiceRequest: &booking.ServiceRequest{ID: "r1", UserID: "owner", Status: booking.StatusConfirmed, MechanicID: &mech},
		ChatID:         "chat-1",
	}
	cases := []struct {
		name string
		svc  *stubBooking
		want int
	}{
		{"success", &stubBooking{confirm: ok}, http.StatusOK},
		{"not accepted", &stubBooking{err: booking.ErrMechanicNotAccepted}, http.StatusBadRequest},
		{"not owner", &stubBooking{err: booking.ErrNotFound}, http.StatusNotFound},
		{"already confirmed", &stubBooking{err: booking.ErrAlreadyConfirmed}, http.StatusConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := buildTestRouter(t, makeVerifier("owner", ""), tc.svc)
			w := doRequest(r, http.MethodPost, "/booking/confirm", map[string]any{"serviceRequestId": "r1", "mechanicId": "m2"})
			if w.Code != tc.want {
				t.Fatalf("expected %d, got %d: %s", tc.want, w.Code, w.Body.String())
			}
			if tc.svc.lastConf.UserID != "owner" || tc.svc.lastConf.MechanicID != "m2" {
				t.Errorf("unexpected command %+v", tc.svc.lastConf)
			}
			if tc.want != http.StatusOK {
				return
			}
			var got struct {
				ServiceRequest struct {
					Status     string `json:"status"`
					MechanicID string `json:"mechanicId"`
				} `json:"serviceRequest"`
				ChatID string `json:"chatId"`
			}
			_ = json.Unmarshal(w.Body.Bytes(), &got)
			if got.ChatID != "chat-1" || got.ServiceRequest.Status != "CONFIRMED" || got.ServiceRequest.MechanicID != "m2" {
				t.Errorf("unexpected body %s", w.Body.String())
			}
		})
	}
}

func TestGetRequest(t *testing.T) {
	svc := &stubBooking{request: &booking.ServiceRequest{ID: "r1", UserID: "owner", Status: booking.StatusRequested}}
	r := buildTestRouter(t, makeVerifier("owner", ""), svc)
	if w := doRequest(r, http.MethodGet, "/booking/request/r1", nil); w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	if w := doRequest(r, http.MethodGet, "/booking/request/missing", nil); w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}
