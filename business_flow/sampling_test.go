package businessflow

import (
	"math/rand"
	"testing"

	"github.com/mizuchi/adserving/models"
	testingutil "github.com/mizuchi/adserving/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSampleFromAdsEmpty(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	_, ok := SampleFromAds(map[string]AdPredictor[*models.CreativeAd]{}, rng)

	assert.False(t, ok)
}

func TestSampleFromAdsSingle(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	ad := testingutil.NewTestCreativeAd("technology & computing")
	predictors := map[string]AdPredictor[*models.CreativeAd]{
		ad.CreativeInstanceID.String(): {Ad: ad, Score: 1.0},
	}

	winner, ok := SampleFromAds(predictors, rng)

	require.True(t, ok)
	assert.Equal(t, ad, winner)
}

func TestSampleFromAdsProportionalToScore(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	favored := testingutil.NewTestCreativeAd("technology & computing")
	longshot := testingutil.NewTestCreativeAd("food & drink")

	predictors := map[string]AdPredictor[*models.CreativeAd]{
		favored.CreativeInstanceID.String():  {Ad: favored, Score: 3.0},
		longshot.CreativeInstanceID.String(): {Ad: longshot, Score: 1.0},
	}

	const trials = 10000
	favoredWins := 0
	for i := 0; i < trials; i++ {
		winner, ok := SampleFromAds(predictors, rng)
		require.True(t, ok)
		if winner == favored {
			favoredWins++
		}
	}

	// 3:1 score ratio should win about 75% of draws
	rate := float64(favoredWins) / trials
	assert.InDelta(t, 0.75, rate, 0.05)
}

func TestSampleFromAdsUniformWhenAllScoresZero(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	first := testingutil.NewTestCreativeAd("technology & computing")
	second := testingutil.NewTestCreativeAd("food & drink")

	predictors := map[string]AdPredictor[*models.CreativeAd]{
		first.CreativeInstanceID.String():  {Ad: first},
		second.CreativeInstanceID.String(): {Ad: second},
	}

	const trials = 10000
	firstWins := 0
	for i := 0; i < trials; i++ {
		winner, ok := SampleFromAds(predictors, rng)
		require.True(t, ok)
		if winner == first {
			firstWins++
		}
	}

	rate := float64(firstWins) / trials
	assert.InDelta(t, 0.5, rate, 0.05)
}
