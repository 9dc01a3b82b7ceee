// Package businessflow contains the core serving logic: candidate
// eligibility, pacing, prioritization, predictor scoring, and selection.
package businessflow

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/mizuchi/adserving/app/dto"
	"github.com/mizuchi/adserving/models"
)

// CreativeAdVariant is implemented by every ad format variant. Format types
// embed models.CreativeAd and share its accessor, so the predictor and
// sampler stay format-agnostic.
type CreativeAdVariant interface {
	Creative() *models.CreativeAd
}

// ToCreativeAdDTO converts a creative ad model to its response representation
func ToCreativeAdDTO(ad *models.CreativeAd) dto.CreativeAdDTO {
	return dto.CreativeAdDTO{
		CreativeInstanceID: ad.CreativeInstanceID.String(),
		CreativeSetID:      ad.CreativeSetID.String(),
		CampaignID:         ad.CampaignID.String(),
		AdvertiserID:       ad.AdvertiserID.String(),
		Segment:            ad.Segment,
		Dimensions:         ad.Dimensions,
		StartAt:            ad.StartAt,
		EndAt:              ad.EndAt,
		Priority:           ad.Priority,
		PTR:                ad.PTR,
		TargetURL:          ad.TargetURL,
	}
}

// ToCreativeAdDTOs converts a list of creative ad models
func ToCreativeAdDTOs(ads []*models.CreativeAd) []dto.CreativeAdDTO {
	dtos := make([]dto.CreativeAdDTO, 0, len(ads))
	for _, ad := range ads {
		dtos = append(dtos, ToCreativeAdDTO(ad))
	}
	return dtos
}

// FromCreativeAdDTO converts a response representation back to the model,
// validating the embedded identifiers
func FromCreativeAdDTO(ad *dto.CreativeAdDTO) (*models.CreativeAd, error) {
	creativeInstanceID, err := uuid.Parse(ad.CreativeInstanceID)
	if err != nil {
		return nil, fmt.Errorf("invalid creative instance id %s: %w", ad.CreativeInstanceID, err)
	}
	creativeSetID, err := uuid.Parse(ad.CreativeSetID)
	if err != nil {
		return nil, fmt.Errorf("invalid creative set id %s: %w", ad.CreativeSetID, err)
	}
	campaignID, err := uuid.Parse(ad.CampaignID)
	if err != nil {
		return nil, fmt.Errorf("invalid campaign id %s: %w", ad.CampaignID, err)
	}
	advertiserID, err := uuid.Parse(ad.AdvertiserID)
	if err != nil {
		return nil, fmt.Errorf("invalid advertiser id %s: %w", ad.AdvertiserID, err)
	}

	return &models.CreativeAd{
		CreativeInstanceID: creativeInstanceID,
		CreativeSetID:      creativeSetID,
		CampaignID:         campaignID,
		AdvertiserID:       advertiserID,
		Segment:            ad.Segment,
		Dimensions:         ad.Dimensions,
		StartAt:            ad.StartAt,
		EndAt:              ad.EndAt,
		Priority:           ad.Priority,
		PTR:                ad.PTR,
		TargetURL:          ad.TargetURL,
	}, nil
}
