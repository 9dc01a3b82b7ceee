package businessflow

import (
	"math/rand"
	"testing"

	"github.com/mizuchi/adserving/models"
	testingutil "github.com/mizuchi/adserving/testing"
	"github.com/stretchr/testify/assert"
)

func TestPaceAdsAlwaysKeepsTopPriority(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	ad := testingutil.NewTestCreativeAd("technology & computing")
	ad.Priority = 1

	for i := 0; i < 100; i++ {
		paced := PaceAds([]*models.CreativeAd{ad}, rng)
		assert.Len(t, paced, 1)
	}
}

func TestPaceAdsThrottlesByPriority(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	ad := testingutil.NewTestCreativeAd("technology & computing")
	ad.Priority = 4

	const trials = 10000
	kept := 0
	for i := 0; i < trials; i++ {
		if len(PaceAds([]*models.CreativeAd{ad}, rng)) == 1 {
			kept++
		}
	}

	// Expect roughly 1/4 of trials to keep the ad
	rate := float64(kept) / trials
	assert.InDelta(t, 0.25, rate, 0.05)
}

func TestPaceAdsEmpty(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	assert.Empty(t, PaceAds(nil, rng))
}
