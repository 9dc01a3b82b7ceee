package services

import (
	"context"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"
)

const optOutSegmentsKey = "optout:segments"

// OptOutService tracks segments the user marked "stop seeing ads about this".
// Opted-out segments are dropped before segment-targeted candidate queries.
type OptOutService interface {
	IsOptedOut(ctx context.Context, segment string) bool
	OptOut(ctx context.Context, segment string) error
	OptIn(ctx context.Context, segment string) error
}

// OptOutServiceImpl implements OptOutService backed by a redis set
type OptOutServiceImpl struct {
	rc *redis.Client
}

// NewOptOutService creates a new opt-out service instance
func NewOptOutService(rc *redis.Client) OptOutService {
	return &OptOutServiceImpl{rc: rc}
}

// IsOptedOut reports whether the segment was marked opted-out. Lookup
// failures fail open so a cache outage never suppresses delivery.
func (s *OptOutServiceImpl) IsOptedOut(ctx context.Context, segment string) bool {
	if s.rc == nil {
		return false
	}

	member, err := s.rc.SIsMember(ctx, optOutSegmentsKey, segment).Result()
	if err != nil {
		log.Printf("Opt-out lookup failed for segment %s: %v", segment, err)
		return false
	}

	return member
}

// OptOut marks the segment as opted-out
func (s *OptOutServiceImpl) OptOut(ctx context.Context, segment string) error {
	if err := s.rc.SAdd(ctx, optOutSegmentsKey, segment).Err(); err != nil {
		return fmt.Errorf("failed to opt out of segment %s: %w", segment, err)
	}
	return nil
}

// OptIn removes the opt-out mark from the segment
func (s *OptOutServiceImpl) OptIn(ctx context.Context, segment string) error {
	if err := s.rc.SRem(ctx, optOutSegmentsKey, segment).Err(); err != nil {
		return fmt.Errorf("failed to opt back into segment %s: %w", segment, err)
	}
	return nil
}

// MockOptOutService implements OptOutService for testing
type MockOptOutService struct {
	Segments map[string]struct{}
}

// NewMockOptOutService creates a new mock opt-out service
func NewMockOptOutService(segments ...string) *MockOptOutService {
	m := &MockOptOutService{Segments: make(map[string]struct{})}
	for _, segment := range segments {
		m.Segments[segment] = struct{}{}
	}
	return m
}

func (m *MockOptOutService) IsOptedOut(ctx context.Context, segment string) bool {
	_, ok := m.Segments[segment]
	return ok
}

func (m *MockOptOutService) OptOut(ctx context.Context, segment string) error {
	m.Segments[segment] = struct{}{}
	return nil
}

func (m *MockOptOutService) OptIn(ctx context.Context, segment string) error {
	delete(m.Segments, segment)
	return nil
}
