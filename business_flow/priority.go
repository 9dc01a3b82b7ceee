package businessflow

import (
	"github.com/mizuchi/adserving/models"
)

// PrioritizeAds retains only the ads at the best (lowest-valued) priority
// tier present. An ad at a lower tier value always wins over any
// higher-valued one that survived pacing.
func PrioritizeAds(ads []*models.CreativeAd) []*models.CreativeAd {
	if len(ads) == 0 {
		return nil
	}

	best := ads[0].Priority
	for _, ad := range ads[1:] {
		if ad.Priority < best {
			best = ad.Priority
		}
	}

	prioritized := make([]*models.CreativeAd, 0, len(ads))
	for _, ad := range ads {
		if ad.Priority == best {
			prioritized = append(prioritized, ad)
		}
	}

	return prioritized
}
