package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AdType represents the format an ad event refers to
type AdType string

const (
	AdTypeInlineContent   AdType = "inline_content_ad"
	AdTypeNotification    AdType = "ad_notification"
	AdTypeNewTabPage      AdType = "new_tab_page_ad"
	AdTypePromotedContent AdType = "promoted_content_ad"
)

// String returns the string representation of the ad type
func (t AdType) String() string {
	return string(t)
}

// Valid checks if the ad type is valid
func (t AdType) Valid() bool {
	switch t {
	case AdTypeInlineContent, AdTypeNotification, AdTypeNewTabPage, AdTypePromotedContent:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for AdType
func (t *AdType) Scan(value any) error {
	if value == nil {
		*t = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*t = AdType(v)
	case []byte:
		*t = AdType(string(v))
	default:
		return fmt.Errorf("cannot scan %T into AdType", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for AdType
func (t AdType) Value() (driver.Value, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid AdType: %s", t)
	}
	return string(t), nil
}

// ConfirmationType represents the interaction an ad event records
type ConfirmationType string

const (
	ConfirmationTypeServed    ConfirmationType = "served"
	ConfirmationTypeViewed    ConfirmationType = "viewed"
	ConfirmationTypeClicked   ConfirmationType = "clicked"
	ConfirmationTypeDismissed ConfirmationType = "dismissed"
	ConfirmationTypeConverted ConfirmationType = "converted"
)

// String returns the string representation of the confirmation type
func (c ConfirmationType) String() string {
	return string(c)
}

// Valid checks if the confirmation type is valid
func (c ConfirmationType) Valid() bool {
	switch c {
	case ConfirmationTypeServed, ConfirmationTypeViewed, ConfirmationTypeClicked,
		ConfirmationTypeDismissed, ConfirmationTypeConverted:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for ConfirmationType
func (c *ConfirmationType) Scan(value any) error {
	if value == nil {
		*c = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*c = ConfirmationType(v)
	case []byte:
		*c = ConfirmationType(string(v))
	default:
		return fmt.Errorf("cannot scan %T into ConfirmationType", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for ConfirmationType
func (c ConfirmationType) Value() (driver.Value, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("invalid ConfirmationType: %s", c)
	}
	return string(c), nil
}

// AdEvent represents a historical serving interaction. Events are append-only
// from the engine's perspective; the serving path only ever reads them.
type AdEvent struct {
	ID                 uint             `gorm:"primaryKey" json:"id"`
	Type               AdType           `gorm:"not null;index:idx_ad_events_type" json:"type"`
	ConfirmationType   ConfirmationType `gorm:"not null;index:idx_ad_events_confirmation" json:"confirmation_type"`
	CreativeInstanceID uuid.UUID        `gorm:"type:uuid;not null;index:idx_ad_events_instance" json:"creative_instance_id"`
	CreativeSetID      uuid.UUID        `gorm:"type:uuid;not null;index:idx_ad_events_set" json:"creative_set_id"`
	CampaignID         uuid.UUID        `gorm:"type:uuid;not null;index:idx_ad_events_campaign" json:"campaign_id"`
	AdvertiserID       uuid.UUID        `gorm:"type:uuid;not null" json:"advertiser_id"`
	CreatedAt          time.Time        `gorm:"not null;index:idx_ad_events_created_at" json:"created_at"`
}

// TableName returns the table name for the AdEvent model
func (AdEvent) TableName() string {
	return "ad_events"
}

// AdEventFilter represents filters for querying ad events
type AdEventFilter struct {
	ID                 *uint             `json:"id,omitempty"`
	Type               *AdType           `json:"type,omitempty"`
	ConfirmationType   *ConfirmationType `json:"confirmation_type,omitempty"`
	CreativeInstanceID *uuid.UUID        `json:"creative_instance_id,omitempty"`
	CreativeSetID      *uuid.UUID        `json:"creative_set_id,omitempty"`
	CampaignID         *uuid.UUID        `json:"campaign_id,omitempty"`
	CreatedAfter       *time.Time        `json:"created_after,omitempty"`
	CreatedBefore      *time.Time        `json:"created_before,omitempty"`
}
