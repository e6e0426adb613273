package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/database"
)

const (
	SourceProvider            = "gmb"
	ClaimStatusUnclaimed      = "unclaimed"
	VerificationStatusPending = "unverified"
)

// DirectoryEntity is a business listing. ExternalID is the provider's place id
// and is unique across the directory.
type DirectoryEntity struct {
	ID                 uuid.UUID                      `db:"id" json:"id"`
	ExternalID         *string                        `db:"external_id" json:"external_id,omitempty"`
	Name               string                         `db:"name" json:"name"`
	Slug               string                         `db:"slug" json:"slug"`
	Address            *string                        `db:"address" json:"address,omitempty"`
	Phone              *string                        `db:"phone" json:"phone,omitempty"`
	Website            *string                        `db:"website" json:"website,omitempty"`
	MapsURL            *string                        `db:"maps_url" json:"maps_url,omitempty"`
	Latitude           *float64                       `db:"latitude" json:"latitude,omitempty"`
	Longitude          *float64                       `db:"longitude" json:"longitude,omitempty"`
	LocalityID         uuid.UUID                      `db:"locality_id" json:"locality_id"`
	AreaID             *uuid.UUID                     `db:"area_id" json:"area_id,omitempty"`
	Rating             *float64                       `db:"rating" json:"rating,omitempty"`
	ReviewCount        int                            `db:"review_count" json:"review_count"`
	CoverImageURL      *string                        `db:"cover_image_url" json:"cover_image_url,omitempty"`
	Description        *string                        `db:"description" json:"description,omitempty"`
	StructuredMetadata database.JSONB[map[string]any] `db:"structured_metadata" json:"structured_metadata"`
	Source             string                         `db:"source" json:"source"`
	IsActive           bool                           `db:"is_active" json:"is_active"`
	ClaimStatus        string                         `db:"claim_status" json:"claim_status"`
	VerificationStatus string                         `db:"verification_status" json:"verification_status"`
	CreatedAt          time.Time                      `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time                      `db:"updated_at" json:"updated_at"`
}

func (DirectoryEntity) TableName() string {
	return "directory_entities"
}

// DuplicateCandidate is the projection returned by phone-based duplicate checks.
type DuplicateCandidate struct {
	ID         uuid.UUID `db:"id" json:"id"`
	Name       string    `db:"name" json:"name"`
	Phone      *string   `db:"phone" json:"phone,omitempty"`
	Address    *string   `db:"address" json:"address,omitempty"`
	ExternalID *string   `db:"external_id" json:"external_id,omitempty"`
}
