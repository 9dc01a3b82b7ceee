package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Daypart restricts ad delivery to a time-of-day window on selected days.
// DaysOfWeek holds the allowed weekday digits, Sunday = "0" through
// Saturday = "6". Minutes are counted from local midnight.
type Daypart struct {
	DaysOfWeek  string `json:"days_of_week"`
	StartMinute int    `json:"start_minute"`
	EndMinute   int    `json:"end_minute"`
}

// NewFullWeekDaypart returns a daypart covering every day and minute.
func NewFullWeekDaypart() Daypart {
	return Daypart{
		DaysOfWeek:  "0123456",
		StartMinute: 0,
		EndMinute:   (24 * 60) - 1,
	}
}

// Matches reports whether the given local time falls within the daypart.
func (d Daypart) Matches(t time.Time) bool {
	dayOfWeek := strconv.Itoa(int(t.Weekday()))
	minuteOfDay := t.Hour()*60 + t.Minute()

	if !containsDay(d.DaysOfWeek, dayOfWeek) {
		return false
	}

	return minuteOfDay >= d.StartMinute && minuteOfDay <= d.EndMinute
}

func containsDay(daysOfWeek, day string) bool {
	for i := 0; i < len(daysOfWeek); i++ {
		if string(daysOfWeek[i]) == day {
			return true
		}
	}
	return false
}

// DaypartList is the JSON column type for an ad's dayparts
type DaypartList []Daypart

// Value implements the driver.Valuer interface for DaypartList
func (l DaypartList) Value() (driver.Value, error) {
	return json.Marshal(l)
}

// Scan implements the sql.Scanner interface for DaypartList
func (l *DaypartList) Scan(value any) error {
	if value == nil {
		*l = DaypartList{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into DaypartList", value)
	}

	return json.Unmarshal(bytes, l)
}

// GeoTargets is the JSON column type for an ad's targeted region codes, for
// example "US" or "US-CA".
type GeoTargets []string

// Value implements the driver.Valuer interface for GeoTargets
func (g GeoTargets) Value() (driver.Value, error) {
	return json.Marshal(g)
}

// Scan implements the sql.Scanner interface for GeoTargets
func (g *GeoTargets) Scan(value any) error {
	if value == nil {
		*g = GeoTargets{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into GeoTargets", value)
	}

	return json.Unmarshal(bytes, g)
}

// CreativeAd represents a candidate creative in the database. Records are
// immutable once loaded; the catalog is replaced wholesale by the external
// catalog sync, never edited by the serving path.
type CreativeAd struct {
	ID                 uint        `gorm:"primaryKey" json:"id"`
	CreativeInstanceID uuid.UUID   `gorm:"type:uuid;not null;index:idx_creative_ads_instance" json:"creative_instance_id"`
	CreativeSetID      uuid.UUID   `gorm:"type:uuid;not null;index:idx_creative_ads_set" json:"creative_set_id"`
	CampaignID         uuid.UUID   `gorm:"type:uuid;not null;index:idx_creative_ads_campaign" json:"campaign_id"`
	AdvertiserID       uuid.UUID   `gorm:"type:uuid;not null" json:"advertiser_id"`
	Segment            string      `gorm:"not null;index:idx_creative_ads_segment" json:"segment"`
	Dimensions         string      `gorm:"not null;index:idx_creative_ads_dimensions" json:"dimensions"`
	StartAt            time.Time   `gorm:"not null" json:"start_at"`
	EndAt              time.Time   `gorm:"not null" json:"end_at"`
	DailyCap           int         `gorm:"not null;default:0" json:"daily_cap"`
	PerDay             int         `gorm:"not null;default:0" json:"per_day"`
	PerWeek            int         `gorm:"not null;default:0" json:"per_week"`
	PerMonth           int         `gorm:"not null;default:0" json:"per_month"`
	TotalMax           int         `gorm:"not null;default:0" json:"total_max"`
	Priority           int         `gorm:"not null;default:1" json:"priority"`
	PTR                float64     `gorm:"column:ptr;not null;default:1" json:"ptr"`
	GeoTargets         GeoTargets  `gorm:"type:jsonb" json:"geo_targets"`
	Dayparts           DaypartList `gorm:"type:jsonb" json:"dayparts"`
	TargetURL          string      `gorm:"not null" json:"target_url"`
	CreatedAt          time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          *time.Time  `gorm:"autoUpdateTime" json:"updated_at,omitempty"`
}

// TableName returns the table name for the CreativeAd model
func (CreativeAd) TableName() string {
	return "creative_ads"
}

// Creative returns the common creative record. Ad format variants embed
// CreativeAd and share this accessor.
func (a *CreativeAd) Creative() *CreativeAd {
	return a
}

// IsActiveAt reports whether the given time falls within the ad's validity window.
func (a *CreativeAd) IsActiveAt(t time.Time) bool {
	return !t.Before(a.StartAt) && !t.After(a.EndAt)
}

// CreativeAdFilter represents filters for querying creative ads
type CreativeAdFilter struct {
	ID                 *uint      `json:"id,omitempty"`
	CreativeInstanceID *uuid.UUID `json:"creative_instance_id,omitempty"`
	CampaignID         *uuid.UUID `json:"campaign_id,omitempty"`
	Segment            *string    `json:"segment,omitempty"`
	Segments           []string   `json:"segments,omitempty"`
	Dimensions         *string    `json:"dimensions,omitempty"`
	ActiveAt           *time.Time `json:"active_at,omitempty"`
}
