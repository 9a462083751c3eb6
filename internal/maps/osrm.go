package maps

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"roadside/internal/types"
)

// OSRMClient queries an OSRM route service using the driving profile.
type OSRMClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewOSRMClient(baseURL string, timeout time.Duration) *OSRMClient {
	return &OSRMClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type osrmResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Routes  []struct {
		Distance float64 `json:"distance"`
		Duration float64 `json:"duration"`
	} `json:"routes"`
}

// Route fails on transport errors, non-200 responses, a code other than "Ok",
// or an empty route list. It never returns a zero route as success.
func (c *OSRMClient) Route(ctx context.Context, origin, destination types.Point) (Route, error) {
	url := fmt.Sprintf("%s/route/v1/driving/%f,%f;%f,%f?overview=false",
		c.baseURL, origin.Lng, origin.Lat, destination.Lng, destination.Lat)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Route{}, fmt.Errorf("%w: build request: %v", ErrUpstream, err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Route{}, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	var body osrmResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		if resp.StatusCode != http.StatusOK {
			return Route{}, fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
		}
		return Route{}, fmt.Errorf("%w: decode: %v", ErrUpstream, err)
	}
	if body.Code == "NoRoute" {
		return Route{}, ErrNoRoute
	}
	if resp.StatusCode != http.StatusOK || body.Code != "Ok" {
		return Route{}, fmt.Errorf("%w: status %d code %q %s", ErrUpstream, resp.StatusCode, body.Code, body.Message)
	}
	if len(body.Routes) == 0 {
		return Route{}, ErrNoRoute
	}
	return Route{
		DistanceMeters: body.Routes[0].Distance,
		DurationSec:    body.Routes[0].Duration,
	}, nil
}
