package models

import (
	"time"

	"github.com/google/uuid"
)

// OperatingHours is one day of a weekly schedule; DayOfWeek 0 is Sunday.
type OperatingHours struct {
	EntityID  uuid.UUID `db:"entity_id" json:"entity_id"`
	DayOfWeek int       `db:"day_of_week" json:"day_of_week"`
	OpenTime  *string   `db:"open_time" json:"open_time,omitempty"`
	CloseTime *string   `db:"close_time" json:"close_time,omitempty"`
	IsClosed  bool      `db:"is_closed" json:"is_closed"`
}

func (OperatingHours) TableName() string {
	return "operating_hours"
}

type SourceReview struct {
	EntityID       uuid.UUID  `db:"entity_id" json:"entity_id"`
	AuthorName     string     `db:"author_name" json:"author_name"`
	AuthorPhotoURL *string    `db:"author_photo_url" json:"author_photo_url,omitempty"`
	Rating         int        `db:"rating" json:"rating"`
	Text           *string    `db:"text" json:"text,omitempty"`
	PublishedAt    *time.Time `db:"published_at" json:"published_at,omitempty"`
	SourceReviewID string     `db:"source_review_id" json:"source_review_id"`
	SyncedAt       time.Time  `db:"synced_at" json:"synced_at"`
}

func (SourceReview) TableName() string {
	return "source_reviews"
}

type Photo struct {
	EntityID     uuid.UUID `db:"entity_id" json:"entity_id"`
	URL          string    `db:"url" json:"url"`
	DisplayOrder int       `db:"display_order" json:"display_order"`
	Caption      string    `db:"caption" json:"caption"`
}

func (Photo) TableName() string {
	return "entity_photos"
}
