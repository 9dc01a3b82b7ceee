package businessflow

import (
	"log"
	"time"

	"github.com/mizuchi/adserving/app/metrics"
	"github.com/mizuchi/adserving/app/services"
	"github.com/mizuchi/adserving/models"
)

// Exclusion rule names, used as metric labels
const (
	RuleValidityWindow = "validity_window"
	RuleDaypart        = "daypart"
	RuleGeoTarget      = "geo_target"
	RuleAntiTargeting  = "anti_targeting"
	RulePerDay         = "per_day"
	RulePerWeek        = "per_week"
	RulePerMonth       = "per_month"
	RuleTotalMax       = "total_max"
	RuleDailyCap       = "daily_cap"
	RuleConverted      = "converted"
)

// ExclusionRules decides per-ad inclusion for one pipeline invocation. All
// rules must pass for an ad to remain eligible. Rules never error;
// unresolvable context (unknown subdivision, missing resource) passes the ad
// through so delivery is not starved.
type ExclusionRules struct {
	subdivision     string
	antiTargeting   services.AntiTargetingResource
	adEvents        []*models.AdEvent
	browsingHistory []string
	now             time.Time
}

// NewExclusionRules creates an exclusion rule set over a fixed snapshot of
// the serving context. Subdivision is pre-resolved; empty means unknown.
func NewExclusionRules(
	subdivision string,
	antiTargeting services.AntiTargetingResource,
	adEvents []*models.AdEvent,
	browsingHistory []string,
	now time.Time,
) *ExclusionRules {
	return &ExclusionRules{
		subdivision:     subdivision,
		antiTargeting:   antiTargeting,
		adEvents:        adEvents,
		browsingHistory: browsingHistory,
		now:             now,
	}
}

// ShouldInclude reports whether the ad passes every exclusion rule
func (r *ExclusionRules) ShouldInclude(ad *models.CreativeAd) bool {
	if !r.withinValidityWindow(ad) {
		r.exclude(ad, RuleValidityWindow)
		return false
	}

	if !r.matchesDaypart(ad) {
		r.exclude(ad, RuleDaypart)
		return false
	}

	if !r.matchesGeoTarget(ad) {
		r.exclude(ad, RuleGeoTarget)
		return false
	}

	if r.isAntiTargeted(ad) {
		r.exclude(ad, RuleAntiTargeting)
		return false
	}

	if rule, ok := r.exceedsFrequencyCap(ad); ok {
		r.exclude(ad, rule)
		return false
	}

	if r.alreadyConverted(ad) {
		r.exclude(ad, RuleConverted)
		return false
	}

	return true
}

func (r *ExclusionRules) exclude(ad *models.CreativeAd, rule string) {
	metrics.RecordExclusion(rule)
	log.Printf("Excluding creative instance %s: %s", ad.CreativeInstanceID, rule)
}

func (r *ExclusionRules) withinValidityWindow(ad *models.CreativeAd) bool {
	return ad.IsActiveAt(r.now)
}

func (r *ExclusionRules) matchesDaypart(ad *models.CreativeAd) bool {
	if len(ad.Dayparts) == 0 {
		return true
	}

	for _, daypart := range ad.Dayparts {
		if daypart.Matches(r.now) {
			return true
		}
	}

	return false
}

// matchesGeoTarget passes untargeted ads and, when the subdivision could not
// be resolved, every ad.
func (r *ExclusionRules) matchesGeoTarget(ad *models.CreativeAd) bool {
	if len(ad.GeoTargets) == 0 {
		return true
	}

	if r.subdivision == "" {
		return true
	}

	country := models.ParentOf(r.subdivision)
	for _, target := range ad.GeoTargets {
		if target == r.subdivision || target == country {
			return true
		}
	}

	return false
}

func (r *ExclusionRules) isAntiTargeted(ad *models.CreativeAd) bool {
	if r.antiTargeting == nil {
		return false
	}

	for _, site := range r.browsingHistory {
		if r.antiTargeting.Matches(ad.CampaignID, site) {
			return true
		}
	}

	return false
}

// exceedsFrequencyCap returns the first served-count cap the ad has reached.
// A cap of zero or less means uncapped.
func (r *ExclusionRules) exceedsFrequencyCap(ad *models.CreativeAd) (string, bool) {
	if !r.respectsCap(ad.PerDay, r.countServedForCreativeSet(ad, r.now.AddDate(0, 0, -1))) {
		return RulePerDay, true
	}

	if !r.respectsCap(ad.PerWeek, r.countServedForCreativeSet(ad, r.now.AddDate(0, 0, -7))) {
		return RulePerWeek, true
	}

	if !r.respectsCap(ad.PerMonth, r.countServedForCreativeSet(ad, r.now.AddDate(0, -1, 0))) {
		return RulePerMonth, true
	}

	if !r.respectsCap(ad.TotalMax, r.countServedForCreativeSet(ad, time.Time{})) {
		return RuleTotalMax, true
	}

	if !r.respectsCap(ad.DailyCap, r.countServedForCampaign(ad, r.now.AddDate(0, 0, -1))) {
		return RuleDailyCap, true
	}

	return "", false
}

func (r *ExclusionRules) respectsCap(limit, count int) bool {
	if limit <= 0 {
		return true
	}
	return count < limit
}

func (r *ExclusionRules) countServedForCreativeSet(ad *models.CreativeAd, since time.Time) int {
	return r.countServed(since, func(event *models.AdEvent) bool {
		return event.CreativeSetID == ad.CreativeSetID
	})
}

func (r *ExclusionRules) countServedForCampaign(ad *models.CreativeAd, since time.Time) int {
	return r.countServed(since, func(event *models.AdEvent) bool {
		return event.CampaignID == ad.CampaignID
	})
}

func (r *ExclusionRules) countServed(since time.Time, match func(*models.AdEvent) bool) int {
	count := 0
	for _, event := range r.adEvents {
		if event.ConfirmationType != models.ConfirmationTypeServed {
			continue
		}
		if event.CreatedAt.Before(since) {
			continue
		}
		if match(event) {
			count++
		}
	}
	return count
}

// alreadyConverted excludes ads whose campaign already converted within the
// ad's validity window
func (r *ExclusionRules) alreadyConverted(ad *models.CreativeAd) bool {
	for _, event := range r.adEvents {
		if event.ConfirmationType != models.ConfirmationTypeConverted {
			continue
		}
		if event.CampaignID != ad.CampaignID {
			continue
		}
		if event.CreatedAt.Before(ad.StartAt) || event.CreatedAt.After(ad.EndAt) {
			continue
		}
		return true
	}
	return false
}
