package maps

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"roadside/internal/types"
)

func newOSRMServer(t *testing.T, status int, body string) (*httptest.Server, *string) {
	t.Helper()
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &gotPath
}

func TestOSRMClient_Route_OK(t *testing.T) {
	srv, path := newOSRMServer(t, http.StatusOK,
		`{"code":"Ok","routes":[{"distance":12345.6,"duration":1260.5}]}`)
	c := NewOSRMClient(srv.URL, time.Second)

	got, err := c.Route(context.Background(),
		types.Point{Lat: 12.97, Lng: 77.59}, types.Point{Lat: 12.93, Lng: 77.62})
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if got.DistanceMeters != 12345.6 || got.DurationSec != 1260.5 {
		t.Errorf("route = %+v", got)
	}
	// OSRM wants lng,lat order.
	if !strings.HasPrefix(*path, "/route/v1/driving/77.590000,12.970000;77.620000,12.930000") {
		t.Errorf("unexpected path %s", *path)
	}
}

func TestOSRMClient_Route_Failures(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"no route code", http.StatusOK, `{"code":"NoRoute","routes":[]}`, ErrNoRoute},
		{"empty routes", http.StatusOK, `{"code":"Ok","routes":[]}`, ErrNoRoute},
		{"invalid query", http.StatusBadRequest, `{"code":"InvalidQuery","message":"bad coords"}`, ErrUpstream},
		{"server error html", http.StatusBadGateway, `<html>bad gateway</html>`, ErrUpstream},
		{"malformed json", http.StatusOK, `{"code":`, ErrUpstream},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv, _ := newOSRMServer(t, tc.status, tc.body)
			c := NewOSRMClient(srv.URL, time.Second)
			_, err := c.Route(context.Background(), types.Point{}, types.Point{Lat: 1, Lng: 1})
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestOSRMClient_Route_Unreachable(t *testing.T) {
	c := NewOSRMClient("http://127.0.0.1:1", 200*time.Millisecond)
	_, err := c.Route(context.Background(), types.Point{}, types.Point{Lat: 1, Lng: 1})
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
}
