package businessflow

import (
	"time"

	"github.com/mizuchi/adserving/config"
	"github.com/mizuchi/adserving/models"
)

const hoursPerDay = 24

// AdPredictor wraps a candidate with the computed segment-match flags,
// recency features, and weighted score used for single-winner selection.
// Predictors are created fresh per selection request and never persisted.
type AdPredictor[T CreativeAdVariant] struct {
	Ad       T
	Segments models.SegmentList

	MatchesIntentChildSegments    bool
	MatchesIntentParentSegments   bool
	MatchesInterestChildSegments  bool
	MatchesInterestParentSegments bool

	AdLastSeenHoursAgo         int
	AdvertiserLastSeenHoursAgo int

	Score float64
}

// GroupAdsByCreativeInstance collapses one row per segment into one predictor
// per creative instance, accumulating the instance's segments
func GroupAdsByCreativeInstance[T CreativeAdVariant](ads []T) map[string]AdPredictor[T] {
	predictors := make(map[string]AdPredictor[T], len(ads))

	for _, ad := range ads {
		creative := ad.Creative()
		key := creative.CreativeInstanceID.String()

		predictor, ok := predictors[key]
		if !ok {
			predictor = AdPredictor[T]{Ad: ad}
		}
		predictor.Segments = append(predictor.Segments, creative.Segment)
		predictors[key] = predictor
	}

	return predictors
}

// ComputePredictorFeatures fills in the segment-match flags and recency
// features for one predictor. Child matches use the raw segment lists; parent
// matches use each list mapped through its parents.
func ComputePredictorFeatures[T CreativeAdVariant](
	predictor AdPredictor[T],
	adEvents []*models.AdEvent,
	interestSegments models.SegmentList,
	intentSegments models.SegmentList,
	now time.Time,
) AdPredictor[T] {
	predictor.MatchesIntentChildSegments = intentSegments.Intersects(predictor.Segments)
	predictor.MatchesIntentParentSegments = models.ParentSegments(intentSegments).Intersects(predictor.Segments)

	predictor.MatchesInterestChildSegments = interestSegments.Intersects(predictor.Segments)
	predictor.MatchesInterestParentSegments = models.ParentSegments(interestSegments).Intersects(predictor.Segments)

	creative := predictor.Ad.Creative()

	if lastSeen := lastSeenTime(adEvents, func(event *models.AdEvent) bool {
		return event.CreativeInstanceID == creative.CreativeInstanceID
	}); lastSeen != nil {
		predictor.AdLastSeenHoursAgo = int(now.Sub(*lastSeen).Hours())
	}

	if lastSeen := lastSeenTime(adEvents, func(event *models.AdEvent) bool {
		return event.AdvertiserID == creative.AdvertiserID
	}); lastSeen != nil {
		predictor.AdvertiserLastSeenHoursAgo = int(now.Sub(*lastSeen).Hours())
	}

	return predictor
}

// ComputePredictorScore computes the weighted score. A child match takes
// precedence over a parent match for the same signal; recency terms scale
// linearly within the last day and contribute nothing beyond it. The weighted
// sum is multiplied by the ad's predicted total return.
func ComputePredictorScore[T CreativeAdVariant](predictor AdPredictor[T], weights config.PredictorWeights) float64 {
	score := 0.0

	if predictor.MatchesIntentChildSegments {
		score += weights.IntentChild
	} else if predictor.MatchesIntentParentSegments {
		score += weights.IntentParent
	}

	if predictor.MatchesInterestChildSegments {
		score += weights.InterestChild
	} else if predictor.MatchesInterestParentSegments {
		score += weights.InterestParent
	}

	if predictor.AdLastSeenHoursAgo <= hoursPerDay {
		score += weights.AdLastSeen * float64(predictor.AdLastSeenHoursAgo) / hoursPerDay
	}

	if predictor.AdvertiserLastSeenHoursAgo <= hoursPerDay {
		score += weights.AdvertiserLastSeen * float64(predictor.AdvertiserLastSeenHoursAgo) / hoursPerDay
	}

	creative := predictor.Ad.Creative()
	if creative.Priority > 0 {
		score += weights.Priority / float64(creative.Priority)
	}

	score *= creative.PTR

	return score
}

// ComputePredictorFeaturesAndScores runs feature and score computation over
// every grouped predictor
func ComputePredictorFeaturesAndScores[T CreativeAdVariant](
	predictors map[string]AdPredictor[T],
	adEvents []*models.AdEvent,
	interestSegments models.SegmentList,
	intentSegments models.SegmentList,
	weights config.PredictorWeights,
	now time.Time,
) map[string]AdPredictor[T] {
	scored := make(map[string]AdPredictor[T], len(predictors))

	for key, predictor := range predictors {
		predictor = ComputePredictorFeatures(predictor, adEvents, interestSegments, intentSegments, now)
		predictor.Score = ComputePredictorScore(predictor, weights)
		scored[key] = predictor
	}

	return scored
}

// lastSeenTime returns the timestamp of the most recent served event matching
// the predicate, or nil when none exists
func lastSeenTime(adEvents []*models.AdEvent, match func(*models.AdEvent) bool) *time.Time {
	var lastSeen *time.Time

	for _, event := range adEvents {
		if event.ConfirmationType != models.ConfirmationTypeServed {
			continue
		}
		if !match(event) {
			continue
		}
		if lastSeen == nil || event.CreatedAt.After(*lastSeen) {
			createdAt := event.CreatedAt
			lastSeen = &createdAt
		}
	}

	return lastSeen
}
