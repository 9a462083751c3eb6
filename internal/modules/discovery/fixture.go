package discovery

import (
	"encoding/json"
	"fmt"
	"io"

	"roadside/internal/types"
)

// fixtureMechanic is the flat lat/lng shape used by seed files.
type fixtureMechanic struct {
	ID           string              `json:"id"`
	Name         string              `json:"name"`
	Phone        string              `json:"phone"`
	Email        string              `json:"email"`
	ServiceTypes []types.ServiceType `json:"serviceTypes"`
	Latitude     float64             `json:"latitude"`
	Longitude    float64             `json:"longitude"`
	Address      *Address            `json:"address"`
	Approved     bool                `json:"approved"`
	PushToken    string              `json:"pushToken"`
}

// LoadFixtures decodes a JSON array of mechanics. Entries with an empty id,
// out-of-range coordinates or an unknown service type are rejected.
func LoadFixtures(r io.Reader) ([]Mechanic, error) {
	var raw []fixtureMechanic
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("discovery: decode fixtures: %w", err)
	}
	out := make([]Mechanic, 0, len(raw))
	for i, f := range raw {
		p := types.Point{Lat: f.Latitude, Lng: f.Longitude}
		if f.ID == "" {
			return nil, fmt.Errorf("discovery: fixture %d: missing id", i)
		}
		if !p.Valid() {
			return nil, fmt.Errorf("discovery: fixture %s: coordinates out of range", f.ID)
		}
		for _, st := range f.ServiceTypes {
			if !st.Valid() {
				return nil, fmt.Errorf("discovery: fixture %s: unknown service type %q", f.ID, st)
			}
		}
		out = append(out, Mechanic{
			ID:           types.ID(f.ID),
			Name:         f.Name,
			Phone:        f.Phone,
			Email:        f.Email,
			ServiceTypes: f.ServiceTypes,
			Location:     NewGeoPoint(p),
			Address:      f.Address,
			Approved:     f.Approved,
			PushToken:    f.PushToken,
		})
	}
	return out, nil
}
