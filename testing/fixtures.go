// Package testing provides test utilities and database setup for testing the ad serving engine
package testing

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mizuchi/adserving/models"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// CreateTestCreativeAd creates a creative ad targeting the given segment.
// The record is US-targeted, open every day of the week, and valid far into
// the past and future, so only the rules under test can exclude it.
func (tf *TestFixtures) CreateTestCreativeAd(segment string) (*models.CreativeAd, error) {
	ad := NewTestCreativeAd(segment)

	if err := tf.DB.DB.Create(ad).Error; err != nil {
		return nil, fmt.Errorf("failed to create test creative ad: %w", err)
	}

	return ad, nil
}

// NewTestCreativeAd builds an unsaved creative ad fixture for the given segment
func NewTestCreativeAd(segment string) *models.CreativeAd {
	return &models.CreativeAd{
		CreativeInstanceID: uuid.New(),
		CreativeSetID:      uuid.New(),
		CampaignID:         uuid.New(),
		AdvertiserID:       uuid.New(),
		Segment:            segment,
		Dimensions:         "300x200",
		StartAt:            time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC),
		EndAt:              time.Date(2100, time.January, 1, 0, 0, 0, 0, time.UTC),
		DailyCap:           1,
		PerDay:             1,
		PerWeek:            1,
		PerMonth:           1,
		TotalMax:           1,
		Priority:           1,
		PTR:                1.0,
		GeoTargets:         models.GeoTargets{"US"},
		Dayparts:           models.DaypartList{models.NewFullWeekDaypart()},
		TargetURL:          "https://example.com",
	}
}

// CreateTestAdEvent creates an ad event tied to the given creative ad
func (tf *TestFixtures) CreateTestAdEvent(ad *models.CreativeAd, confirmationType models.ConfirmationType, createdAt time.Time) (*models.AdEvent, error) {
	event := &models.AdEvent{
		Type:               models.AdTypeInlineContent,
		ConfirmationType:   confirmationType,
		CreativeInstanceID: ad.CreativeInstanceID,
		CreativeSetID:      ad.CreativeSetID,
		CampaignID:         ad.CampaignID,
		AdvertiserID:       ad.AdvertiserID,
		CreatedAt:          createdAt,
	}

	if err := tf.DB.DB.Create(event).Error; err != nil {
		return nil, fmt.Errorf("failed to create test ad event: %w", err)
	}

	return event, nil
}
