package businessflow

import (
	"math/rand"

	"github.com/mizuchi/adserving/models"
)

// PaceAds throttles delivery by priority tier: each ad is independently kept
// with probability inverse to its priority value, so tier 1 always passes and
// lower-precedence tiers are increasingly paced out. The random source is
// injected so pacing behavior is assertable over many trials.
func PaceAds(ads []*models.CreativeAd, rng *rand.Rand) []*models.CreativeAd {
	paced := make([]*models.CreativeAd, 0, len(ads))

	for _, ad := range ads {
		if rng.Float64() < pacingProbability(ad.Priority) {
			paced = append(paced, ad)
		}
	}

	return paced
}

func pacingProbability(priority int) float64 {
	if priority <= 1 {
		return 1.0
	}
	return 1.0 / float64(priority)
}
