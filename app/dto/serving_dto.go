// Package dto contains request and response types for the serving flows.
package dto

import (
	"time"
)

// EligibleAdsRequest represents a segment-targeted candidate request
type EligibleAdsRequest struct {
	Segments   []string `json:"segments"`
	Dimensions string   `json:"dimensions"`
}

// CreativeAdDTO represents a creative ad in responses
type CreativeAdDTO struct {
	CreativeInstanceID string    `json:"creative_instance_id"`
	CreativeSetID      string    `json:"creative_set_id"`
	CampaignID         string    `json:"campaign_id"`
	AdvertiserID       string    `json:"advertiser_id"`
	Segment            string    `json:"segment"`
	Dimensions         string    `json:"dimensions"`
	StartAt            time.Time `json:"start_at"`
	EndAt              time.Time `json:"end_at"`
	Priority           int       `json:"priority"`
	PTR                float64   `json:"ptr"`
	TargetURL          string    `json:"target_url"`
}

// EligibleAdsResponse represents the outcome of a segment-targeted request.
// Allowed is false only when the pipeline aborted or dead-ended; an empty ad
// list with Allowed true means nothing matched.
type EligibleAdsResponse struct {
	Allowed bool            `json:"allowed"`
	Ads     []CreativeAdDTO `json:"ads"`
}

// BestAdRequest represents a predictor-based single-winner request
type BestAdRequest struct {
	InterestSegments []string `json:"interest_segments"`
	IntentSegments   []string `json:"intent_segments"`
	Dimensions       string   `json:"dimensions"`
}

// BestAdResponse represents the outcome of a predictor-based request
type BestAdResponse struct {
	Allowed bool           `json:"allowed"`
	Ad      *CreativeAdDTO `json:"ad,omitempty"`
}
