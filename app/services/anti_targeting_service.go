package services

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
)

// AntiTargetingResource answers whether a browsing-history site is
// anti-targeted for a campaign: campaigns opt out of users who visited
// certain sites.
type AntiTargetingResource interface {
	Matches(campaignID uuid.UUID, site string) bool
	Version() int
}

// antiTargetingFile is the on-disk resource format
type antiTargetingFile struct {
	Version int                 `json:"version"`
	Sites   map[string][]string `json:"sites"`
}

// AntiTargetingResourceImpl implements AntiTargetingResource from a JSON
// resource file keyed by campaign ID
type AntiTargetingResourceImpl struct {
	version int
	sites   map[uuid.UUID][]string
}

// LoadAntiTargetingResource loads the anti-targeting resource from the given
// path. A missing file yields an empty resource rather than an error so the
// pipeline fails open.
func LoadAntiTargetingResource(path string) (AntiTargetingResource, error) {
	resource := &AntiTargetingResourceImpl{
		sites: make(map[uuid.UUID][]string),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return resource, nil
		}
		return nil, fmt.Errorf("failed to read anti-targeting resource %s: %w", path, err)
	}

	var file antiTargetingFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse anti-targeting resource %s: %w", path, err)
	}

	resource.version = file.Version
	for campaign, sites := range file.Sites {
		id, err := uuid.Parse(campaign)
		if err != nil {
			continue
		}
		resource.sites[id] = sites
	}

	return resource, nil
}

// Matches reports whether the site is anti-targeted for the campaign
func (r *AntiTargetingResourceImpl) Matches(campaignID uuid.UUID, site string) bool {
	sites, ok := r.sites[campaignID]
	if !ok {
		return false
	}

	for _, candidate := range sites {
		if sameSite(candidate, site) {
			return true
		}
	}

	return false
}

// Version returns the resource version
func (r *AntiTargetingResourceImpl) Version() int {
	return r.version
}

// sameSite compares hosts ignoring scheme and a leading www
func sameSite(a, b string) bool {
	return normalizeSite(a) == normalizeSite(b)
}

func normalizeSite(site string) string {
	site = strings.TrimPrefix(site, "https://")
	site = strings.TrimPrefix(site, "http://")
	site = strings.TrimPrefix(site, "www.")
	if idx := strings.Index(site, "/"); idx != -1 {
		site = site[:idx]
	}
	return strings.ToLower(site)
}

// MockAntiTargetingResource implements AntiTargetingResource for testing
type MockAntiTargetingResource struct {
	Sites map[uuid.UUID][]string
}

// NewMockAntiTargetingResource creates a new mock anti-targeting resource
func NewMockAntiTargetingResource() *MockAntiTargetingResource {
	return &MockAntiTargetingResource{
		Sites: make(map[uuid.UUID][]string),
	}
}

func (m *MockAntiTargetingResource) Matches(campaignID uuid.UUID, site string) bool {
	for _, candidate := range m.Sites[campaignID] {
		if sameSite(candidate, site) {
			return true
		}
	}
	return false
}

func (m *MockAntiTargetingResource) Version() int {
	return 1
}
