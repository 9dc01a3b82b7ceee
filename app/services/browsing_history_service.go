package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const browsingHistoryKey = "browsing:history"

// BrowsingHistoryProvider returns recently visited sites, newest first. The
// engine only reads history; recording visits belongs to the host.
type BrowsingHistoryProvider interface {
	Get(ctx context.Context, maxCount, daysAgo int) ([]string, error)
}

// BrowsingHistoryProviderImpl implements BrowsingHistoryProvider backed by a
// redis sorted set scored by visit time
type BrowsingHistoryProviderImpl struct {
	rc *redis.Client
}

// NewBrowsingHistoryProvider creates a new browsing history provider instance
func NewBrowsingHistoryProvider(rc *redis.Client) BrowsingHistoryProvider {
	return &BrowsingHistoryProviderImpl{rc: rc}
}

// Get returns up to maxCount sites visited within the last daysAgo days,
// newest first
func (p *BrowsingHistoryProviderImpl) Get(ctx context.Context, maxCount, daysAgo int) ([]string, error) {
	if p.rc == nil {
		return nil, nil
	}

	cutoff := time.Now().AddDate(0, 0, -daysAgo).Unix()

	sites, err := p.rc.ZRevRangeByScore(ctx, browsingHistoryKey, &redis.ZRangeBy{
		Min:   strconv.FormatInt(cutoff, 10),
		Max:   "+inf",
		Count: int64(maxCount),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch browsing history: %w", err)
	}

	return sites, nil
}

// RecordVisit stores a visit for the host-facing write path
func (p *BrowsingHistoryProviderImpl) RecordVisit(ctx context.Context, site string, visitedAt time.Time) error {
	err := p.rc.ZAdd(ctx, browsingHistoryKey, redis.Z{
		Score:  float64(visitedAt.Unix()),
		Member: site,
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to record visit to %s: %w", site, err)
	}
	return nil
}

// MockBrowsingHistoryProvider implements BrowsingHistoryProvider for testing
type MockBrowsingHistoryProvider struct {
	History []string
	Err     error
}

// NewMockBrowsingHistoryProvider creates a new mock browsing history provider
func NewMockBrowsingHistoryProvider(history ...string) *MockBrowsingHistoryProvider {
	return &MockBrowsingHistoryProvider{History: history}
}

func (m *MockBrowsingHistoryProvider) Get(ctx context.Context, maxCount, daysAgo int) ([]string, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if len(m.History) > maxCount {
		return m.History[:maxCount], nil
	}
	return m.History, nil
}
