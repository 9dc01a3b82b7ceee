package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mizuchi/adserving/models"
	"gorm.io/gorm"
)

// AdEventRepositoryImpl implements AdEventRepository
type AdEventRepositoryImpl struct {
	*BaseRepository[models.AdEvent, models.AdEventFilter]
}

// NewAdEventRepository creates a new ad event repository instance
func NewAdEventRepository(db *gorm.DB) AdEventRepository {
	return &AdEventRepositoryImpl{
		BaseRepository: NewBaseRepository[models.AdEvent, models.AdEventFilter](db),
	}
}

// ListAll retrieves the full ad event history, oldest first
func (r *AdEventRepositoryImpl) ListAll(ctx context.Context) ([]*models.AdEvent, error) {
	db := r.getDB(ctx)

	var events []*models.AdEvent
	err := db.
		Order("created_at ASC").
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list ad events: %w", err)
	}

	return events, nil
}

// ListByCampaign retrieves all ad events for the given campaign, oldest first
func (r *AdEventRepositoryImpl) ListByCampaign(ctx context.Context, campaignID uuid.UUID) ([]*models.AdEvent, error) {
	db := r.getDB(ctx)

	var events []*models.AdEvent
	err := db.
		Where("campaign_id = ?", campaignID).
		Order("created_at ASC").
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list ad events for campaign %s: %w", campaignID, err)
	}

	return events, nil
}

// ByFilter retrieves ad events based on filter criteria
func (r *AdEventRepositoryImpl) ByFilter(ctx context.Context, filter models.AdEventFilter, orderBy string, limit, offset int) ([]*models.AdEvent, error) {
	db := r.getDB(ctx).Model(&models.AdEvent{})

	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.Type != nil {
		db = db.Where("type = ?", *filter.Type)
	}
	if filter.ConfirmationType != nil {
		db = db.Where("confirmation_type = ?", *filter.ConfirmationType)
	}
	if filter.CreativeInstanceID != nil {
		db = db.Where("creative_instance_id = ?", *filter.CreativeInstanceID)
	}
	if filter.CreativeSetID != nil {
		db = db.Where("creative_set_id = ?", *filter.CreativeSetID)
	}
	if filter.CampaignID != nil {
		db = db.Where("campaign_id = ?", *filter.CampaignID)
	}
	if filter.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		db = db.Where("created_at < ?", *filter.CreatedBefore)
	}

	if orderBy != "" {
		db = db.Order(orderBy)
	}
	if limit > 0 {
		db = db.Limit(limit)
	}
	if offset > 0 {
		db = db.Offset(offset)
	}

	var events []*models.AdEvent
	if err := db.Find(&events).Error; err != nil {
		return nil, fmt.Errorf("failed to find ad events by filter: %w", err)
	}

	return events, nil
}

// PurgeOlderThan removes ad events created before the cutoff; keeps the
// history bounded so frequency caps only ever see relevant windows
func (r *AdEventRepositoryImpl) PurgeOlderThan(ctx context.Context, cutoff time.Time) error {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}

	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	err = db.Where("created_at < ?", cutoff).Delete(&models.AdEvent{}).Error
	if err != nil {
		return fmt.Errorf("failed to purge ad events: %w", err)
	}

	return nil
}
