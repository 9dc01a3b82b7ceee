// Package services provides external service integrations and contextual resolvers for the serving pipeline
package services

import (
	"context"
	"errors"
	"log"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	subdivisionCacheKey = "geo:subdivision"
	subdivisionCacheTTL = 24 * time.Hour
)

// SubdivisionResolver resolves the user's geographic subdivision code, for
// example "US-CA". An empty code means the subdivision is unknown; callers
// are expected to fail open.
type SubdivisionResolver interface {
	Get(ctx context.Context) (string, error)
}

// SubdivisionResolverImpl resolves the subdivision from the environment and
// caches it in redis so repeated serving cycles skip the lookup
type SubdivisionResolverImpl struct {
	rc *redis.Client
}

// NewSubdivisionResolver creates a new subdivision resolver instance
func NewSubdivisionResolver(rc *redis.Client) SubdivisionResolver {
	return &SubdivisionResolverImpl{rc: rc}
}

// Get returns the cached subdivision code, falling back to the locale
// environment when the cache is cold. Unknown stays unknown; this never
// fabricates a code.
func (s *SubdivisionResolverImpl) Get(ctx context.Context) (string, error) {
	if s.rc != nil {
		code, err := s.rc.Get(ctx, subdivisionCacheKey).Result()
		if err == nil && code != "" {
			return code, nil
		}
		if err != nil && !errors.Is(err, redis.Nil) {
			log.Printf("Subdivision cache read failed: %v", err)
		}
	}

	code := os.Getenv("GEO_SUBDIVISION")
	if code == "" {
		return "", nil
	}

	if s.rc != nil {
		if err := s.rc.Set(ctx, subdivisionCacheKey, code, subdivisionCacheTTL).Err(); err != nil {
			log.Printf("Subdivision cache write failed: %v", err)
		}
	}

	return code, nil
}

// MockSubdivisionResolver implements SubdivisionResolver for testing
type MockSubdivisionResolver struct {
	Subdivision string
	Err         error
}

// NewMockSubdivisionResolver creates a new mock subdivision resolver
func NewMockSubdivisionResolver(subdivision string) *MockSubdivisionResolver {
	return &MockSubdivisionResolver{Subdivision: subdivision}
}

func (m *MockSubdivisionResolver) Get(ctx context.Context) (string, error) {
	return m.Subdivision, m.Err
}
