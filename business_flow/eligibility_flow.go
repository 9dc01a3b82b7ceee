package businessflow

import (
	"context"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/mizuchi/adserving/app/dto"
	"github.com/mizuchi/adserving/app/metrics"
	"github.com/mizuchi/adserving/app/services"
	"github.com/mizuchi/adserving/config"
	"github.com/mizuchi/adserving/models"
	"github.com/mizuchi/adserving/repository"
	"github.com/mizuchi/adserving/utils"
)

// EligibilityFlow narrows the creative catalog to eligible candidates and
// selects winners, entirely from local state
type EligibilityFlow interface {
	GetEligibleAdsForSegments(ctx context.Context, req *dto.EligibleAdsRequest) (*dto.EligibleAdsResponse, error)
	GetBestAdByPrediction(ctx context.Context, req *dto.BestAdRequest) (*dto.BestAdResponse, error)
	SetLastServedAd(ad *models.CreativeAd)
	LastServedAd() *models.CreativeAd
	FilterEligibleAds(ctx context.Context, ads []*models.CreativeAd, adEvents []*models.AdEvent, browsingHistory []string) []*models.CreativeAd
}

// EligibilityFlowImpl implements the eligibility business flow
type EligibilityFlowImpl struct {
	creativeAdRepo  repository.CreativeAdRepository
	adEventRepo     repository.AdEventRepository
	browsingHistory services.BrowsingHistoryProvider
	subdivision     services.SubdivisionResolver
	antiTargeting   services.AntiTargetingResource
	servingConfig   *config.ServingConfig

	randMu sync.Mutex
	rng    *rand.Rand

	mu           sync.RWMutex
	lastServedAd *models.CreativeAd
}

// NewEligibilityFlow creates a new eligibility flow instance. The random
// source drives pacing and sampling; tests inject a seeded source.
func NewEligibilityFlow(
	creativeAdRepo repository.CreativeAdRepository,
	adEventRepo repository.AdEventRepository,
	browsingHistory services.BrowsingHistoryProvider,
	subdivision services.SubdivisionResolver,
	antiTargeting services.AntiTargetingResource,
	servingConfig *config.ServingConfig,
	rng *rand.Rand,
) EligibilityFlow {
	return &EligibilityFlowImpl{
		creativeAdRepo:  creativeAdRepo,
		adEventRepo:     adEventRepo,
		browsingHistory: browsingHistory,
		subdivision:     subdivision,
		antiTargeting:   antiTargeting,
		servingConfig:   servingConfig,
		rng:             rng,
	}
}

// SetLastServedAd records the most recently delivered creative. The caller
// invokes this after a successful delivery, never concurrently with reads
// inside a running pipeline: each pipeline snapshots the slot on entry.
func (s *EligibilityFlowImpl) SetLastServedAd(ad *models.CreativeAd) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastServedAd = ad
}

// LastServedAd returns the most recently delivered creative, or nil
func (s *EligibilityFlowImpl) LastServedAd() *models.CreativeAd {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastServedAd
}

// pipelineState holds the external context fetched once per request. Every
// later stage works off this snapshot so a request never observes a
// partially refreshed world.
type pipelineState struct {
	adEvents        []*models.AdEvent
	browsingHistory []string
	subdivision     string
	lastServed      *models.CreativeAd
	now             time.Time
}

// beginPipeline performs the sequential context fetches: ad events fail the
// pipeline closed, browsing history and subdivision fail open.
func (s *EligibilityFlowImpl) beginPipeline(ctx context.Context) (*pipelineState, error) {
	adEvents, err := s.adEventRepo.ListAll(ctx)
	if err != nil {
		log.Printf("Failed to get ad events: %v", err)
		return nil, NewBusinessError("AD_EVENTS_FETCH_FAILED", "Failed to fetch ad event history", ErrAdEventsUnavailable)
	}

	history, err := s.browsingHistory.Get(ctx, s.servingConfig.History.MaxCount, s.servingConfig.History.DaysAgo)
	if err != nil {
		log.Printf("Failed to get browsing history: %v", err)
		history = nil
	}

	subdivision, err := s.subdivision.Get(ctx)
	if err != nil {
		log.Printf("Failed to resolve subdivision: %v", err)
		subdivision = ""
	}

	return &pipelineState{
		adEvents:        adEvents,
		browsingHistory: history,
		subdivision:     subdivision,
		lastServed:      s.LastServedAd(),
		now:             utils.UTCNow(),
	}, nil
}

// GetEligibleAdsForSegments returns every eligible candidate for the given
// segments, walking the child-parent, parent-only, untargeted fallback chain
func (s *EligibilityFlowImpl) GetEligibleAdsForSegments(ctx context.Context, req *dto.EligibleAdsRequest) (*dto.EligibleAdsResponse, error) {
	if req == nil {
		return &dto.EligibleAdsResponse{Allowed: false}, NewBusinessError("REQUEST_NIL", "Eligible ads request is nil", ErrRequestNil)
	}

	state, err := s.beginPipeline(ctx)
	if err != nil {
		metrics.RecordServingRequest(metrics.FlowSegments, metrics.OutcomeError)
		return &dto.EligibleAdsResponse{Allowed: false}, err
	}

	if len(req.Segments) == 0 {
		return s.getForUntargeted(ctx, req.Dimensions, state)
	}

	return s.getForParentChildSegments(ctx, models.SegmentList(req.Segments), req.Dimensions, state)
}

// getForParentChildSegments fetches candidates for the exact input segments;
// on an empty eligible set it falls back to the parent-level stage
func (s *EligibilityFlowImpl) getForParentChildSegments(ctx context.Context, segments models.SegmentList, dimensions string, state *pipelineState) (*dto.EligibleAdsResponse, error) {
	log.Printf("Get eligible ads for parent-child segments: %v", segments)

	ads, err := s.creativeAdRepo.BySegmentsAndDimensions(ctx, segments, dimensions)
	if err != nil {
		metrics.RecordServingRequest(metrics.FlowSegments, metrics.OutcomeError)
		return &dto.EligibleAdsResponse{Allowed: false}, NewBusinessError("CREATIVE_ADS_FETCH_FAILED", "Failed to fetch creative ads", ErrCreativeAdsUnavailable)
	}

	eligible := s.filterEligibleAds(ads, state)
	if len(eligible) == 0 {
		log.Printf("No eligible ads for parent-child segments")
		return s.getForParentSegments(ctx, segments, dimensions, state)
	}

	metrics.RecordServingRequest(metrics.FlowSegments, metrics.OutcomeAllowed)
	metrics.ObserveEligibleAds(metrics.FlowSegments, len(eligible))
	return &dto.EligibleAdsResponse{Allowed: true, Ads: ToCreativeAdDTOs(eligible)}, nil
}

// getForParentSegments retries with parent-derived segments. When the input
// is already top-level this is a deliberate dead end: a child-segment miss at
// the top must not silently degrade to generic ads.
func (s *EligibilityFlowImpl) getForParentSegments(ctx context.Context, segments models.SegmentList, dimensions string, state *pipelineState) (*dto.EligibleAdsResponse, error) {
	parentSegments := models.ParentSegments(segments)
	if parentSegments.Equal(segments) {
		metrics.RecordServingRequest(metrics.FlowSegments, metrics.OutcomeNotAllowed)
		return &dto.EligibleAdsResponse{Allowed: false}, nil
	}

	log.Printf("Get eligible ads for parent segments: %v", parentSegments)

	ads, err := s.creativeAdRepo.BySegmentsAndDimensions(ctx, parentSegments, dimensions)
	if err != nil {
		metrics.RecordServingRequest(metrics.FlowSegments, metrics.OutcomeError)
		return &dto.EligibleAdsResponse{Allowed: false}, NewBusinessError("CREATIVE_ADS_FETCH_FAILED", "Failed to fetch creative ads", ErrCreativeAdsUnavailable)
	}

	eligible := s.filterEligibleAds(ads, state)
	if len(eligible) == 0 {
		log.Printf("No eligible ads for parent segments")
		return s.getForUntargeted(ctx, dimensions, state)
	}

	metrics.RecordServingRequest(metrics.FlowSegments, metrics.OutcomeAllowed)
	metrics.ObserveEligibleAds(metrics.FlowSegments, len(eligible))
	return &dto.EligibleAdsResponse{Allowed: true, Ads: ToCreativeAdDTOs(eligible)}, nil
}

// getForUntargeted is the last fallback stage; it always reports allowed,
// even with zero results
func (s *EligibilityFlowImpl) getForUntargeted(ctx context.Context, dimensions string, state *pipelineState) (*dto.EligibleAdsResponse, error) {
	log.Printf("Get eligible ads for untargeted segment")

	ads, err := s.creativeAdRepo.BySegmentsAndDimensions(ctx, models.SegmentList{models.UntargetedSegment}, dimensions)
	if err != nil {
		metrics.RecordServingRequest(metrics.FlowSegments, metrics.OutcomeError)
		return &dto.EligibleAdsResponse{Allowed: false}, NewBusinessError("CREATIVE_ADS_FETCH_FAILED", "Failed to fetch creative ads", ErrCreativeAdsUnavailable)
	}

	eligible := s.filterEligibleAds(ads, state)
	if len(eligible) == 0 {
		log.Printf("No eligible ads for untargeted segment")
	}

	metrics.RecordServingRequest(metrics.FlowSegments, metrics.OutcomeAllowed)
	metrics.ObserveEligibleAds(metrics.FlowSegments, len(eligible))
	return &dto.EligibleAdsResponse{Allowed: true, Ads: ToCreativeAdDTOs(eligible)}, nil
}

// GetBestAdByPrediction selects a single winner for the requested dimensions
// by predictor score
func (s *EligibilityFlowImpl) GetBestAdByPrediction(ctx context.Context, req *dto.BestAdRequest) (*dto.BestAdResponse, error) {
	if req == nil {
		return &dto.BestAdResponse{Allowed: false}, NewBusinessError("REQUEST_NIL", "Best ad request is nil", ErrRequestNil)
	}

	state, err := s.beginPipeline(ctx)
	if err != nil {
		metrics.RecordServingRequest(metrics.FlowPrediction, metrics.OutcomeError)
		return &dto.BestAdResponse{Allowed: false}, err
	}

	log.Printf("Get eligible ads for dimensions %s", req.Dimensions)

	ads, err := s.creativeAdRepo.ByDimensions(ctx, req.Dimensions)
	if err != nil {
		metrics.RecordServingRequest(metrics.FlowPrediction, metrics.OutcomeError)
		return &dto.BestAdResponse{Allowed: false}, NewBusinessError("CREATIVE_ADS_FETCH_FAILED", "Failed to fetch creative ads", ErrCreativeAdsUnavailable)
	}

	if len(ads) == 0 {
		log.Printf("No ads for dimensions %s", req.Dimensions)
		metrics.RecordServingRequest(metrics.FlowPrediction, metrics.OutcomeAllowed)
		return &dto.BestAdResponse{Allowed: true}, nil
	}

	eligible := s.filterEligibleAds(ads, state)
	if len(eligible) == 0 {
		log.Printf("No eligible ads")
		metrics.RecordServingRequest(metrics.FlowPrediction, metrics.OutcomeAllowed)
		metrics.ObserveEligibleAds(metrics.FlowPrediction, 0)
		return &dto.BestAdResponse{Allowed: true}, nil
	}

	// Delivery throttling applies only to the single-winner flow; list
	// consumers expect every eligible candidate.
	s.randMu.Lock()
	eligible = PaceAds(eligible, s.rng)
	s.randMu.Unlock()

	eligible = PrioritizeAds(eligible)
	if len(eligible) == 0 {
		metrics.RecordServingRequest(metrics.FlowPrediction, metrics.OutcomeAllowed)
		metrics.ObserveEligibleAds(metrics.FlowPrediction, 0)
		return &dto.BestAdResponse{Allowed: true}, nil
	}

	ad := s.chooseAd(eligible, state, models.SegmentList(req.InterestSegments), models.SegmentList(req.IntentSegments))

	metrics.RecordServingRequest(metrics.FlowPrediction, metrics.OutcomeAllowed)
	metrics.ObserveEligibleAds(metrics.FlowPrediction, len(eligible))

	if ad == nil {
		return &dto.BestAdResponse{Allowed: true}, nil
	}

	adDTO := ToCreativeAdDTO(ad)
	return &dto.BestAdResponse{Allowed: true, Ad: &adDTO}, nil
}

// chooseAd groups candidates by creative instance, scores them, and samples
// one winner proportionally to score
func (s *EligibilityFlowImpl) chooseAd(ads []*models.CreativeAd, state *pipelineState, interestSegments, intentSegments models.SegmentList) *models.CreativeAd {
	predictors := GroupAdsByCreativeInstance(ads)

	predictors = ComputePredictorFeaturesAndScores(
		predictors,
		state.adEvents,
		interestSegments,
		intentSegments,
		s.servingConfig.Weights,
		state.now,
	)

	s.randMu.Lock()
	defer s.randMu.Unlock()

	ad, ok := SampleFromAds(predictors, s.rng)
	if !ok {
		return nil
	}
	return ad
}

// FilterEligibleAds applies the exclusion rules and the last-served cap over
// the caller's context snapshot. The filter is idempotent: reapplying it to
// its own output returns the same list.
func (s *EligibilityFlowImpl) FilterEligibleAds(ctx context.Context, ads []*models.CreativeAd, adEvents []*models.AdEvent, browsingHistory []string) []*models.CreativeAd {
	subdivision, err := s.subdivision.Get(ctx)
	if err != nil {
		subdivision = ""
	}

	state := &pipelineState{
		adEvents:        adEvents,
		browsingHistory: browsingHistory,
		subdivision:     subdivision,
		lastServed:      s.LastServedAd(),
		now:             utils.UTCNow(),
	}

	return s.filterEligibleAds(ads, state)
}

func (s *EligibilityFlowImpl) filterEligibleAds(ads []*models.CreativeAd, state *pipelineState) []*models.CreativeAd {
	if len(ads) == 0 {
		return nil
	}

	rules := NewExclusionRules(state.subdivision, s.antiTargeting, state.adEvents, state.browsingHistory, state.now)

	eligible := make([]*models.CreativeAd, 0, len(ads))
	for _, ad := range ads {
		if rules.ShouldInclude(ad) {
			eligible = append(eligible, ad)
		}
	}

	return ExcludeLastServedAd(eligible, state.lastServed)
}

// ExcludeLastServedAd removes the most recently served creative from the
// pool. A pool of exactly one is exempt so a lone candidate is never starved.
func ExcludeLastServedAd(ads []*models.CreativeAd, lastServed *models.CreativeAd) []*models.CreativeAd {
	if lastServed == nil || len(ads) <= 1 {
		return ads
	}

	filtered := make([]*models.CreativeAd, 0, len(ads))
	for _, ad := range ads {
		if ad.CreativeInstanceID == lastServed.CreativeInstanceID {
			continue
		}
		filtered = append(filtered, ad)
	}

	return filtered
}
