package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mizuchi/adserving/models"
	"gorm.io/gorm"
)

// CreativeAdRepositoryImpl implements CreativeAdRepository
type CreativeAdRepositoryImpl struct {
	*BaseRepository[models.CreativeAd, models.CreativeAdFilter]
}

// NewCreativeAdRepository creates a new creative ad repository instance
func NewCreativeAdRepository(db *gorm.DB) CreativeAdRepository {
	return &CreativeAdRepositoryImpl{
		BaseRepository: NewBaseRepository[models.CreativeAd, models.CreativeAdFilter](db),
	}
}

// ByDimensions retrieves all creative ads for the given dimensions
func (r *CreativeAdRepositoryImpl) ByDimensions(ctx context.Context, dimensions string) ([]*models.CreativeAd, error) {
	db := r.getDB(ctx)

	var ads []*models.CreativeAd
	err := db.
		Where("dimensions = ?", dimensions).
		Order("id ASC").
		Find(&ads).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find creative ads by dimensions %s: %w", dimensions, err)
	}

	return ads, nil
}

// BySegmentsAndDimensions retrieves all creative ads tagged with any of the
// given segments for the given dimensions
func (r *CreativeAdRepositoryImpl) BySegmentsAndDimensions(ctx context.Context, segments models.SegmentList, dimensions string) ([]*models.CreativeAd, error) {
	if len(segments) == 0 {
		return nil, nil
	}

	db := r.getDB(ctx)

	var ads []*models.CreativeAd
	err := db.
		Where("segment IN ?", []string(segments)).
		Where("dimensions = ?", dimensions).
		Order("id ASC").
		Find(&ads).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find creative ads by segments and dimensions: %w", err)
	}

	return ads, nil
}

// ByCreativeInstanceID retrieves a creative ad by its creative instance ID
func (r *CreativeAdRepositoryImpl) ByCreativeInstanceID(ctx context.Context, creativeInstanceID uuid.UUID) (*models.CreativeAd, error) {
	db := r.getDB(ctx)

	var ad models.CreativeAd
	err := db.
		Where("creative_instance_id = ?", creativeInstanceID).
		Last(&ad).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find creative ad by creative instance ID %s: %w", creativeInstanceID, err)
	}

	return &ad, nil
}

// ByFilter retrieves creative ads based on filter criteria
func (r *CreativeAdRepositoryImpl) ByFilter(ctx context.Context, filter models.CreativeAdFilter, orderBy string, limit, offset int) ([]*models.CreativeAd, error) {
	db := r.getDB(ctx).Model(&models.CreativeAd{})

	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.CreativeInstanceID != nil {
		db = db.Where("creative_instance_id = ?", *filter.CreativeInstanceID)
	}
	if filter.CampaignID != nil {
		db = db.Where("campaign_id = ?", *filter.CampaignID)
	}
	if filter.Segment != nil {
		db = db.Where("segment = ?", *filter.Segment)
	}
	if len(filter.Segments) > 0 {
		db = db.Where("segment IN ?", filter.Segments)
	}
	if filter.Dimensions != nil {
		db = db.Where("dimensions = ?", *filter.Dimensions)
	}
	if filter.ActiveAt != nil {
		db = db.Where("start_at <= ? AND end_at >= ?", *filter.ActiveAt, *filter.ActiveAt)
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

	var ads []*models.CreativeAd
	if err := db.Find(&ads).Error; err != nil {
		return nil, fmt.Errorf("failed to find creative ads by filter: %w", err)
	}

	return ads, nil
}

// DeleteAll removes every creative ad; used by the catalog sync before a
// wholesale replace
func (r *CreativeAdRepositoryImpl) DeleteAll(ctx context.Context) error {
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

	err = db.Where("1 = 1").Delete(&models.CreativeAd{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete creative ads: %w", err)
	}

	return nil
}
