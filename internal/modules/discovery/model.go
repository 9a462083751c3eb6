// README: Mechanic documents and nearest-mechanic query types.
package discovery

import "roadside/internal/types"

// GeoPoint is a GeoJSON point; coordinates are [lng, lat].
type GeoPoint struct {
	Type        string    `bson:"type" json:"type"`
	Coordinates []float64 `bson:"coordinates" json:"coordinates"`
}

func NewGeoPoint(p types.Point) GeoPoint {
	return GeoPoint{Type: "Point", Coordinates: []float64{p.Lng, p.Lat}}
}

func (g GeoPoint) Point() types.Point {
	if len(g.Coordinates) != 2 {
		return types.Point{}
	}
	return types.Point{Lat: g.Coordinates[1], Lng: g.Coordinates[0]}
}

type Address struct {
	Street     string `bson:"street,omitempty" json:"street,omitempty"`
	City       string `bson:"city,omitempty" json:"city,omitempty"`
	State      string `bson:"state,omitempty" json:"state,omitempty"`
	PostalCode string `bson:"postalCode,omitempty" json:"postalCode,omitempty"`
}

type Mechanic struct {
	ID           types.ID            `bson:"_id" json:"id"`
	Name         string              `bson:"name" json:"name"`
	Phone        string              `bson:"phone,omitempty" json:"phone,omitempty"`
	Email        string              `bson:"email,omitempty" json:"email,omitempty"`
	ServiceTypes []types.ServiceType `bson:"serviceTypes" json:"serviceTypes"`
	Location     GeoPoint            `bson:"location" json:"location"`
	Address      *Address            `bson:"address,omitempty" json:"address,omitempty"`
	Approved     bool                `bson:"approved" json:"approved"`
	PushToken    string              `bson:"pushToken,omitempty" json:"-"`
}

// Supports reports whether the mechanic offers st.
func (m *Mechanic) Supports(st types.ServiceType) bool {
	for _, s := range m.ServiceTypes {
		if s == st {
			return true
		}
	}
	return false
}

// NearbyQuery asks for the closest eligible mechanics to Point.
// Zero MaxDistanceMeters or Limit take the service defaults.
type NearbyQuery struct {
	Point             types.Point
	ServiceType       types.ServiceType
	MaxDistanceMeters float64
	Limit             int
}

// Candidate is a mechanic with its spherical distance from the query point.
type Candidate struct {
	Mechanic       Mechanic
	DistanceMeters float64
}
