// Package domain contains the core business entities and domain logic for the bike day service.
// This package defines the fundamental types and business rules that are independent
// of external frameworks and infrastructure concerns.
package domain

import (
	"fmt"
)

// Coordinates represent a geographic location using latitude and longitude.
type Coordinates struct {
	// Latitude specifies the north-south position (-90 to 90 degrees)
	Latitude float64

	// Longitude specifies the east-west position (-180 to 180 degrees)
	Longitude float64
}

// Validate checks if the coordinates are within valid geographic bounds.
// Latitude must be between -90 and 90 degrees (south to north poles).
// Longitude must be between -180 and 180 degrees (international date line).
func (c Coordinates) Validate() error {
	if c.Latitude < -90 || c.Latitude > 90 {
		return fmt.Errorf("latitude must be between -90 and 90, got %f", c.Latitude)
	}

	if c.Longitude < -180 || c.Longitude > 180 {
		return fmt.Errorf("longitude must be between -180 and 180, got %f", c.Longitude)
	}

	return nil
}

// Location identifies a place a forecast can be requested for.
// The JSON field names follow the geocoding provider so that search results
// and persisted favorites share one encoding.
type Location struct {
	// Name is the place name, e.g. "Utrecht"
	Name string `json:"name"`

	// Country is the ISO country code reported by the geocoder
	Country string `json:"country"`

	// State is the optional administrative region
	State *string `json:"state,omitempty"`

	// Lat and Lon position the place
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// NewLocation builds a Location. An empty state is treated as absent.
func NewLocation(name, country, state string, lat, lon float64) Location {
	loc := Location{
		Name:    name,
		Country: country,
		Lat:     lat,
		Lon:     lon,
	}

	if state != "" {
		s := state
		loc.State = &s
	}

	return loc
}

// DisplayName renders "name, state, country" or "name, country" when no state is known.
func (l Location) DisplayName() string {
	if l.State != nil {
		return fmt.Sprintf("%s, %s, %s", l.Name, *l.State, l.Country)
	}

	return fmt.Sprintf("%s, %s", l.Name, l.Country)
}

// Coordinates returns the position of the location.
func (l Location) Coordinates() Coordinates {
	return Coordinates{Latitude: l.Lat, Longitude: l.Lon}
}

// SameIdentity reports whether two locations are the same place for deduplication.
// Identity is (name, country) only, so same-named places in one country collapse.
func (l Location) SameIdentity(other Location) bool {
	return l.Name == other.Name && l.Country == other.Country
}

// IdentityKey is the string form of the (name, country) identity.
// Two locations share a key exactly when SameIdentity holds.
func (l Location) IdentityKey() string {
	return l.Name + "|" + l.Country
}
