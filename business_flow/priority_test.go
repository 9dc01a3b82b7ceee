package businessflow

import (
	"testing"

	"github.com/mizuchi/adserving/models"
	testingutil "github.com/mizuchi/adserving/testing"
	"github.com/stretchr/testify/assert"
)

func TestPrioritizeAdsKeepsBestTier(t *testing.T) {
	first := testingutil.NewTestCreativeAd("technology & computing")
	first.Priority = 2

	second := testingutil.NewTestCreativeAd("food & drink")
	second.Priority = 1

	third := testingutil.NewTestCreativeAd("science")
	third.Priority = 2

	prioritized := PrioritizeAds([]*models.CreativeAd{first, second, third})

	assert.Equal(t, []*models.CreativeAd{second}, prioritized)
}

func TestPrioritizeAdsKeepsAllAtSameTier(t *testing.T) {
	first := testingutil.NewTestCreativeAd("technology & computing")
	second := testingutil.NewTestCreativeAd("food & drink")

	prioritized := PrioritizeAds([]*models.CreativeAd{first, second})

	assert.Equal(t, []*models.CreativeAd{first, second}, prioritized)
}

func TestPrioritizeAdsEmpty(t *testing.T) {
	assert.Nil(t, PrioritizeAds(nil))
}
