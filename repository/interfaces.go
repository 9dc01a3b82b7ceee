// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mizuchi/adserving/models"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
}

// CreativeAdRepository defines operations for the creative ad catalog
type CreativeAdRepository interface {
	Repository[models.CreativeAd, models.CreativeAdFilter]
	ByDimensions(ctx context.Context, dimensions string) ([]*models.CreativeAd, error)
	BySegmentsAndDimensions(ctx context.Context, segments models.SegmentList, dimensions string) ([]*models.CreativeAd, error)
	ByCreativeInstanceID(ctx context.Context, creativeInstanceID uuid.UUID) (*models.CreativeAd, error)
	DeleteAll(ctx context.Context) error
}

// AdEventRepository defines operations for the ad event history
type AdEventRepository interface {
	Repository[models.AdEvent, models.AdEventFilter]
	ListAll(ctx context.Context) ([]*models.AdEvent, error)
	ListByCampaign(ctx context.Context, campaignID uuid.UUID) ([]*models.AdEvent, error)
	PurgeOlderThan(ctx context.Context, cutoff time.Time) error
}
