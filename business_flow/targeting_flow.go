package businessflow

import (
	"context"
	"log"

	"github.com/mizuchi/adserving/app/services"
	"github.com/mizuchi/adserving/models"
)

// Only the strongest text-classification signals participate in targeting;
// the bandit and purchase-intent lists are already bounded upstream.
const topTextClassificationSegmentCount = 3

// SegmentCatalog merges the per-model segment lists into the single ranked
// views the serving flows consume
type SegmentCatalog interface {
	Merge(ctx context.Context, info models.SegmentsInfo) models.SegmentList
	TopParentChildSegments(ctx context.Context, info models.SegmentsInfo) models.SegmentList
	TopParentSegments(ctx context.Context, info models.SegmentsInfo) models.SegmentList
}

// SegmentCatalogImpl implements the segment catalog
type SegmentCatalogImpl struct {
	optOut services.OptOutService
}

// NewSegmentCatalog creates a new segment catalog instance
func NewSegmentCatalog(optOut services.OptOutService) SegmentCatalog {
	return &SegmentCatalogImpl{
		optOut: optOut,
	}
}

// Merge concatenates, in fixed order, the capped text-classification
// segments surviving the opt-out filter, then the bandit segments, then the
// purchase-intent segments
func (c *SegmentCatalogImpl) Merge(ctx context.Context, info models.SegmentsInfo) models.SegmentList {
	return c.merge(ctx, info.TextClassificationSegments, info)
}

// TopParentChildSegments merges the child-level view: the raw
// text-classification segments participate as-is
func (c *SegmentCatalogImpl) TopParentChildSegments(ctx context.Context, info models.SegmentsInfo) models.SegmentList {
	return c.merge(ctx, info.TextClassificationSegments, info)
}

// TopParentSegments merges the parent-level view: the text-classification
// segments are mapped to their parents before filtering and capping
func (c *SegmentCatalogImpl) TopParentSegments(ctx context.Context, info models.SegmentsInfo) models.SegmentList {
	return c.merge(ctx, models.ParentSegments(info.TextClassificationSegments), info)
}

func (c *SegmentCatalogImpl) merge(ctx context.Context, textClassificationSegments models.SegmentList, info models.SegmentsInfo) models.SegmentList {
	merged := c.filterSegments(ctx, textClassificationSegments, topTextClassificationSegmentCount)

	merged = append(merged, info.EpsilonGreedyBanditSegments...)
	merged = append(merged, info.PurchaseIntentSegments...)

	return merged
}

// filterSegments drops opted-out segments and caps the survivors at maxCount
func (c *SegmentCatalogImpl) filterSegments(ctx context.Context, segments models.SegmentList, maxCount int) models.SegmentList {
	filtered := make(models.SegmentList, 0, maxCount)

	for _, segment := range segments {
		if c.optOut != nil && c.optOut.IsOptedOut(ctx, segment) {
			log.Printf("Excluding segment %s marked to no longer receive ads", segment)
			continue
		}

		filtered = append(filtered, segment)
		if len(filtered) == maxCount {
			break
		}
	}

	return filtered
}
