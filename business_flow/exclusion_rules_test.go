package businessflow

import (
	"testing"
	"time"

	"github.com/mizuchi/adserving/app/services"
	"github.com/mizuchi/adserving/models"
	testingutil "github.com/mizuchi/adserving/testing"
	"github.com/stretchr/testify/assert"
)

var testNow = time.Date(2026, time.March, 4, 12, 0, 0, 0, time.UTC) // a Wednesday

func newTestRules(adEvents []*models.AdEvent) *ExclusionRules {
	return NewExclusionRules("US-CA", services.NewMockAntiTargetingResource(), adEvents, nil, testNow)
}

func servedEvent(ad *models.CreativeAd, createdAt time.Time) *models.AdEvent {
	return &models.AdEvent{
		Type:               models.AdTypeInlineContent,
		ConfirmationType:   models.ConfirmationTypeServed,
		CreativeInstanceID: ad.CreativeInstanceID,
		CreativeSetID:      ad.CreativeSetID,
		CampaignID:         ad.CampaignID,
		AdvertiserID:       ad.AdvertiserID,
		CreatedAt:          createdAt,
	}
}

func TestShouldIncludeFreshAd(t *testing.T) {
	ad := testingutil.NewTestCreativeAd("technology & computing")

	assert.True(t, newTestRules(nil).ShouldInclude(ad))
}

func TestExcludesAdOutsideValidityWindow(t *testing.T) {
	ad := testingutil.NewTestCreativeAd("technology & computing")
	ad.EndAt = testNow.Add(-time.Hour)

	assert.False(t, newTestRules(nil).ShouldInclude(ad))
}

func TestIncludesAdAtValidityWindowBoundary(t *testing.T) {
	ad := testingutil.NewTestCreativeAd("technology & computing")
	ad.StartAt = testNow
	ad.EndAt = testNow

	assert.True(t, newTestRules(nil).ShouldInclude(ad))
}

func TestExcludesAdOutsideDaypart(t *testing.T) {
	ad := testingutil.NewTestCreativeAd("technology & computing")
	ad.Dayparts = models.DaypartList{{
		DaysOfWeek:  "06", // weekends only
		StartMinute: 0,
		EndMinute:   (24 * 60) - 1,
	}}

	assert.False(t, newTestRules(nil).ShouldInclude(ad))
}

func TestIncludesAdMatchingAnyDaypart(t *testing.T) {
	ad := testingutil.NewTestCreativeAd("technology & computing")
	ad.Dayparts = models.DaypartList{
		{DaysOfWeek: "06", StartMinute: 0, EndMinute: (24 * 60) - 1},
		{DaysOfWeek: "3", StartMinute: 11 * 60, EndMinute: 13 * 60},
	}

	assert.True(t, newTestRules(nil).ShouldInclude(ad))
}

func TestIncludesAdWithoutDayparts(t *testing.T) {
	ad := testingutil.NewTestCreativeAd("technology & computing")
	ad.Dayparts = nil

	assert.True(t, newTestRules(nil).ShouldInclude(ad))
}

func TestGeoTargetMatchesSubdivisionOrCountry(t *testing.T) {
	ad := testingutil.NewTestCreativeAd("technology & computing")

	ad.GeoTargets = models.GeoTargets{"US-CA"}
	assert.True(t, newTestRules(nil).ShouldInclude(ad))

	ad.GeoTargets = models.GeoTargets{"US"}
	assert.True(t, newTestRules(nil).ShouldInclude(ad))

	ad.GeoTargets = models.GeoTargets{"US-FL"}
	assert.False(t, newTestRules(nil).ShouldInclude(ad))

	ad.GeoTargets = models.GeoTargets{"GB"}
	assert.False(t, newTestRules(nil).ShouldInclude(ad))
}

func TestGeoTargetPassesWhenSubdivisionUnknown(t *testing.T) {
	ad := testingutil.NewTestCreativeAd("technology & computing")
	ad.GeoTargets = models.GeoTargets{"GB"}

	rules := NewExclusionRules("", services.NewMockAntiTargetingResource(), nil, nil, testNow)

	assert.True(t, rules.ShouldInclude(ad))
}

func TestGeoTargetPassesUntargetedAd(t *testing.T) {
	ad := testingutil.NewTestCreativeAd("technology & computing")
	ad.GeoTargets = nil

	assert.True(t, newTestRules(nil).ShouldInclude(ad))
}

func TestExcludesAntiTargetedCampaign(t *testing.T) {
	ad := testingutil.NewTestCreativeAd("technology & computing")

	antiTargeting := services.NewMockAntiTargetingResource()
	antiTargeting.Sites[ad.CampaignID] = []string{"https://www.example.com"}

	rules := NewExclusionRules("US-CA", antiTargeting, nil, []string{"https://example.com/download"}, testNow)
	assert.False(t, rules.ShouldInclude(ad))

	rules = NewExclusionRules("US-CA", antiTargeting, nil, []string{"https://other.example"}, testNow)
	assert.True(t, rules.ShouldInclude(ad))
}

func TestExcludesAdAtPerDayCap(t *testing.T) {
	ad := testingutil.NewTestCreativeAd("technology & computing")

	events := []*models.AdEvent{servedEvent(ad, testNow.Add(-2*time.Hour))}

	assert.False(t, newTestRules(events).ShouldInclude(ad))
}

func TestPerDayCapIgnoresEventsOlderThanOneDay(t *testing.T) {
	ad := testingutil.NewTestCreativeAd("technology & computing")
	ad.PerWeek = 0
	ad.PerMonth = 0
	ad.TotalMax = 0
	ad.DailyCap = 0

	events := []*models.AdEvent{servedEvent(ad, testNow.Add(-25*time.Hour))}

	assert.True(t, newTestRules(events).ShouldInclude(ad))
}

func TestExcludesAdAtPerWeekCap(t *testing.T) {
	ad := testingutil.NewTestCreativeAd("technology & computing")
	ad.PerDay = 0
	ad.PerMonth = 0
	ad.TotalMax = 0
	ad.DailyCap = 0

	events := []*models.AdEvent{servedEvent(ad, testNow.AddDate(0, 0, -3))}
	assert.False(t, newTestRules(events).ShouldInclude(ad))

	events = []*models.AdEvent{servedEvent(ad, testNow.AddDate(0, 0, -8))}
	assert.True(t, newTestRules(events).ShouldInclude(ad))
}

func TestExcludesAdAtPerMonthCap(t *testing.T) {
	ad := testingutil.NewTestCreativeAd("technology & computing")
	ad.PerDay = 0
	ad.PerWeek = 0
	ad.TotalMax = 0
	ad.DailyCap = 0

	events := []*models.AdEvent{servedEvent(ad, testNow.AddDate(0, 0, -20))}
	assert.False(t, newTestRules(events).ShouldInclude(ad))

	events = []*models.AdEvent{servedEvent(ad, testNow.AddDate(0, -1, -1))}
	assert.True(t, newTestRules(events).ShouldInclude(ad))
}

func TestExcludesAdAtTotalMaxCap(t *testing.T) {
	ad := testingutil.NewTestCreativeAd("technology & computing")
	ad.PerDay = 0
	ad.PerWeek = 0
	ad.PerMonth = 0
	ad.DailyCap = 0

	// total_max has no window; arbitrarily old events count
	events := []*models.AdEvent{servedEvent(ad, testNow.AddDate(-1, 0, 0))}

	assert.False(t, newTestRules(events).ShouldInclude(ad))
}

func TestDailyCapCountsWholeCampaign(t *testing.T) {
	ad := testingutil.NewTestCreativeAd("technology & computing")
	ad.PerDay = 0
	ad.PerWeek = 0
	ad.PerMonth = 0
	ad.TotalMax = 0

	sibling := testingutil.NewTestCreativeAd("technology & computing")
	sibling.CampaignID = ad.CampaignID

	events := []*models.AdEvent{servedEvent(sibling, testNow.Add(-time.Hour))}

	assert.False(t, newTestRules(events).ShouldInclude(ad))
}

func TestZeroCapsMeanUncapped(t *testing.T) {
	ad := testingutil.NewTestCreativeAd("technology & computing")
	ad.DailyCap = 0
	ad.PerDay = 0
	ad.PerWeek = 0
	ad.PerMonth = 0
	ad.TotalMax = 0

	events := []*models.AdEvent{
		servedEvent(ad, testNow.Add(-time.Hour)),
		servedEvent(ad, testNow.Add(-2*time.Hour)),
		servedEvent(ad, testNow.Add(-3*time.Hour)),
	}

	assert.True(t, newTestRules(events).ShouldInclude(ad))
}

func TestCapsIgnoreNonServedEvents(t *testing.T) {
	ad := testingutil.NewTestCreativeAd("technology & computing")

	viewed := servedEvent(ad, testNow.Add(-time.Hour))
	viewed.ConfirmationType = models.ConfirmationTypeViewed

	assert.True(t, newTestRules([]*models.AdEvent{viewed}).ShouldInclude(ad))
}

func TestExcludesConvertedCampaignWithinValidityWindow(t *testing.T) {
	ad := testingutil.NewTestCreativeAd("technology & computing")

	converted := servedEvent(ad, testNow.Add(-time.Hour))
	converted.ConfirmationType = models.ConfirmationTypeConverted

	assert.False(t, newTestRules([]*models.AdEvent{converted}).ShouldInclude(ad))
}

func TestConversionOutsideValidityWindowDoesNotExclude(t *testing.T) {
	ad := testingutil.NewTestCreativeAd("technology & computing")
	ad.StartAt = testNow.Add(-time.Hour)
	ad.EndAt = testNow.Add(time.Hour)

	converted := servedEvent(ad, testNow.AddDate(0, 0, -2))
	converted.ConfirmationType = models.ConfirmationTypeConverted

	assert.True(t, newTestRules([]*models.AdEvent{converted}).ShouldInclude(ad))
}
