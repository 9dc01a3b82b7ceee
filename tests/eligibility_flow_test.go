// Package tests contains integration tests for the eligibility flow
package tests

import (
	"context"
	"math/rand"
	"testing"

	"github.com/mizuchi/adserving/app/dto"
	"github.com/mizuchi/adserving/app/services"
	businessflow "github.com/mizuchi/adserving/business_flow"
	"github.com/mizuchi/adserving/config"
	"github.com/mizuchi/adserving/repository"
	testingutil "github.com/mizuchi/adserving/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServingConfig() *config.ServingConfig {
	return &config.ServingConfig{
		Weights: config.PredictorWeights{
			IntentChild:        1.0,
			IntentParent:       1.0,
			InterestChild:      1.0,
			InterestParent:     1.0,
			AdLastSeen:         1.0,
			AdvertiserLastSeen: 1.0,
			Priority:           1.0,
		},
		History: config.HistoryWindowConfig{
			MaxCount: 5000,
			DaysAgo:  180,
		},
	}
}

func newFlow(testDB *testingutil.TestDB) businessflow.EligibilityFlow {
	return businessflow.NewEligibilityFlow(
		repository.NewCreativeAdRepository(testDB.DB),
		repository.NewAdEventRepository(testDB.DB),
		services.NewMockBrowsingHistoryProvider(),
		services.NewMockSubdivisionResolver("US-CA"),
		services.NewMockAntiTargetingResource(),
		newServingConfig(),
		rand.New(rand.NewSource(1)),
	)
}

func TestGetEligibleAdsForSegments(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		flow := newFlow(testDB)
		ctx := context.Background()

		t.Run("ServeAdForChildSegment", func(t *testing.T) {
			require.NoError(t, testDB.ClearAllTables())

			childAd, err := fixtures.CreateTestCreativeAd("technology & computing-software")
			require.NoError(t, err)
			_, err = fixtures.CreateTestCreativeAd("technology & computing")
			require.NoError(t, err)

			resp, err := flow.GetEligibleAdsForSegments(ctx, &dto.EligibleAdsRequest{
				Segments:   []string{"technology & computing-software"},
				Dimensions: "300x200",
			})
			require.NoError(t, err)
			require.NotNil(t, resp)

			// The exact child segment wins; the parent-targeted ad does
			// not participate at this stage
			assert.True(t, resp.Allowed)
			require.Len(t, resp.Ads, 1)
			assert.Equal(t, childAd.CreativeInstanceID.String(), resp.Ads[0].CreativeInstanceID)
		})

		t.Run("FallBackToParentSegment", func(t *testing.T) {
			require.NoError(t, testDB.ClearAllTables())

			parentAd, err := fixtures.CreateTestCreativeAd("technology & computing")
			require.NoError(t, err)

			resp, err := flow.GetEligibleAdsForSegments(ctx, &dto.EligibleAdsRequest{
				Segments:   []string{"technology & computing-software"},
				Dimensions: "300x200",
			})
			require.NoError(t, err)

			assert.True(t, resp.Allowed)
			require.Len(t, resp.Ads, 1)
			assert.Equal(t, parentAd.CreativeInstanceID.String(), resp.Ads[0].CreativeInstanceID)
		})

		t.Run("FallBackToUntargetedSegment", func(t *testing.T) {
			require.NoError(t, testDB.ClearAllTables())

			untargetedAd, err := fixtures.CreateTestCreativeAd("untargeted")
			require.NoError(t, err)

			resp, err := flow.GetEligibleAdsForSegments(ctx, &dto.EligibleAdsRequest{
				Segments:   []string{"finance-personal finance"},
				Dimensions: "300x200",
			})
			require.NoError(t, err)

			assert.True(t, resp.Allowed)
			require.Len(t, resp.Ads, 1)
			assert.Equal(t, untargetedAd.CreativeInstanceID.String(), resp.Ads[0].CreativeInstanceID)
		})

		t.Run("ServeAdsForMultipleSegments", func(t *testing.T) {
			require.NoError(t, testDB.ClearAllTables())

			_, err := fixtures.CreateTestCreativeAd("technology & computing")
			require.NoError(t, err)
			_, err = fixtures.CreateTestCreativeAd("food & drink")
			require.NoError(t, err)
			_, err = fixtures.CreateTestCreativeAd("automotive")
			require.NoError(t, err)

			resp, err := flow.GetEligibleAdsForSegments(ctx, &dto.EligibleAdsRequest{
				Segments:   []string{"technology & computing", "food & drink"},
				Dimensions: "300x200",
			})
			require.NoError(t, err)

			assert.True(t, resp.Allowed)
			require.Len(t, resp.Ads, 2)
			segments := []string{resp.Ads[0].Segment, resp.Ads[1].Segment}
			assert.Contains(t, segments, "technology & computing")
			assert.Contains(t, segments, "food & drink")
		})

		t.Run("ServeUntargetedAdForNoSegments", func(t *testing.T) {
			require.NoError(t, testDB.ClearAllTables())

			untargetedAd, err := fixtures.CreateTestCreativeAd("untargeted")
			require.NoError(t, err)
			_, err = fixtures.CreateTestCreativeAd("technology & computing")
			require.NoError(t, err)

			resp, err := flow.GetEligibleAdsForSegments(ctx, &dto.EligibleAdsRequest{
				Segments:   nil,
				Dimensions: "300x200",
			})
			require.NoError(t, err)

			assert.True(t, resp.Allowed)
			require.Len(t, resp.Ads, 1)
			assert.Equal(t, untargetedAd.CreativeInstanceID.String(), resp.Ads[0].CreativeInstanceID)
		})

		t.Run("DoNotServeAdForUnmatchedTopLevelSegment", func(t *testing.T) {
			require.NoError(t, testDB.ClearAllTables())

			_, err := fixtures.CreateTestCreativeAd("untargeted")
			require.NoError(t, err)

			resp, err := flow.GetEligibleAdsForSegments(ctx, &dto.EligibleAdsRequest{
				Segments:   []string{"UNMATCHED"},
				Dimensions: "300x200",
			})
			require.NoError(t, err)

			// A top-level segment has no parent to retry with; the chain
			// dead-ends rather than degrading to untargeted ads
			assert.False(t, resp.Allowed)
			assert.Empty(t, resp.Ads)
		})

		t.Run("ExhaustedFallbackChainIsAllowedButEmpty", func(t *testing.T) {
			require.NoError(t, testDB.ClearAllTables())

			resp, err := flow.GetEligibleAdsForSegments(ctx, &dto.EligibleAdsRequest{
				Segments:   []string{"UNMATCHED-child"},
				Dimensions: "300x200",
			})
			require.NoError(t, err)

			assert.True(t, resp.Allowed)
			assert.Empty(t, resp.Ads)
		})

		t.Run("DoNotServeAdForMismatchedDimensions", func(t *testing.T) {
			require.NoError(t, testDB.ClearAllTables())

			_, err := fixtures.CreateTestCreativeAd("technology & computing")
			require.NoError(t, err)

			resp, err := flow.GetEligibleAdsForSegments(ctx, &dto.EligibleAdsRequest{
				Segments:   []string{"technology & computing"},
				Dimensions: "728x90",
			})
			require.NoError(t, err)

			assert.False(t, resp.Allowed)
			assert.Empty(t, resp.Ads)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestGetBestAdByPrediction(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		flow := newFlow(testDB)
		ctx := context.Background()

		t.Run("NoAdsForDimensions", func(t *testing.T) {
			require.NoError(t, testDB.ClearAllTables())

			resp, err := flow.GetBestAdByPrediction(ctx, &dto.BestAdRequest{
				InterestSegments: []string{"technology & computing"},
				Dimensions:       "300x200",
			})
			require.NoError(t, err)

			assert.True(t, resp.Allowed)
			assert.Nil(t, resp.Ad)
		})

		t.Run("ServeAdMatchingInterestSegments", func(t *testing.T) {
			require.NoError(t, testDB.ClearAllTables())

			ad, err := fixtures.CreateTestCreativeAd("technology & computing")
			require.NoError(t, err)

			resp, err := flow.GetBestAdByPrediction(ctx, &dto.BestAdRequest{
				InterestSegments: []string{"technology & computing"},
				Dimensions:       "300x200",
			})
			require.NoError(t, err)

			assert.True(t, resp.Allowed)
			require.NotNil(t, resp.Ad)
			assert.Equal(t, ad.CreativeInstanceID.String(), resp.Ad.CreativeInstanceID)
		})

		t.Run("ServeAdForEmptySegments", func(t *testing.T) {
			require.NoError(t, testDB.ClearAllTables())

			ad, err := fixtures.CreateTestCreativeAd("untargeted")
			require.NoError(t, err)

			resp, err := flow.GetBestAdByPrediction(ctx, &dto.BestAdRequest{
				Dimensions: "300x200",
			})
			require.NoError(t, err)

			assert.True(t, resp.Allowed)
			require.NotNil(t, resp.Ad)
			assert.Equal(t, ad.CreativeInstanceID.String(), resp.Ad.CreativeInstanceID)
		})

		t.Run("DoNotServeLastServedAdAgain", func(t *testing.T) {
			require.NoError(t, testDB.ClearAllTables())

			first, err := fixtures.CreateTestCreativeAd("technology & computing")
			require.NoError(t, err)
			second, err := fixtures.CreateTestCreativeAd("food & drink")
			require.NoError(t, err)

			flow.SetLastServedAd(first)
			defer flow.SetLastServedAd(nil)

			resp, err := flow.GetBestAdByPrediction(ctx, &dto.BestAdRequest{
				Dimensions: "300x200",
			})
			require.NoError(t, err)

			assert.True(t, resp.Allowed)
			require.NotNil(t, resp.Ad)
			assert.Equal(t, second.CreativeInstanceID.String(), resp.Ad.CreativeInstanceID)
		})

		t.Run("ServeLastServedAdWhenItIsTheOnlyCandidate", func(t *testing.T) {
			require.NoError(t, testDB.ClearAllTables())

			only, err := fixtures.CreateTestCreativeAd("technology & computing")
			require.NoError(t, err)

			flow.SetLastServedAd(only)
			defer flow.SetLastServedAd(nil)

			resp, err := flow.GetBestAdByPrediction(ctx, &dto.BestAdRequest{
				Dimensions: "300x200",
			})
			require.NoError(t, err)

			assert.True(t, resp.Allowed)
			require.NotNil(t, resp.Ad)
			assert.Equal(t, only.CreativeInstanceID.String(), resp.Ad.CreativeInstanceID)
		})

		return nil
	})
	require.NoError(t, err)
}
