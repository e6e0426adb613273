package models

import (
	"github.com/google/uuid"
)

// Jurisdiction is a first-level administrative region. Only active
// jurisdictions accept imports.
type Jurisdiction struct {
	ID       uuid.UUID `db:"id" json:"id"`
	Name     string    `db:"name" json:"name"`
	Code     string    `db:"code" json:"code"`
	IsActive bool      `db:"is_active" json:"is_active"`
}

func (Jurisdiction) TableName() string {
	return "jurisdictions"
}

// Locality is a city-level reference point used as the anchor for entities.
type Locality struct {
	ID               uuid.UUID `db:"id" json:"id"`
	Name             string    `db:"name" json:"name"`
	Latitude         *float64  `db:"latitude" json:"latitude,omitempty"`
	Longitude        *float64  `db:"longitude" json:"longitude,omitempty"`
	JurisdictionID   uuid.UUID `db:"jurisdiction_id" json:"jurisdiction_id"`
	JurisdictionCode string    `db:"jurisdiction_code" json:"jurisdiction_code"`
	IsActive         bool      `db:"is_active" json:"is_active"`
}

func (Locality) TableName() string {
	return "localities"
}

// HasCoordinates reports whether the locality can take part in distance matching.
func (l Locality) HasCoordinates() bool {
	return l.Latitude != nil && l.Longitude != nil
}
