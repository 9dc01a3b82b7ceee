// Package models contains the database models and domain types for the ad serving engine.
package models

import (
	"strings"
)

// UntargetedSegment is the reserved segment for ads that carry no targeting.
const UntargetedSegment = "untargeted"

// SegmentList is an ordered list of segment identifiers. A segment may encode
// a single parent-child level as "parent-child".
type SegmentList []string

// ParentOf returns the parent portion of a segment. Segments without a hyphen
// are their own parent.
func ParentOf(segment string) string {
	if idx := strings.Index(segment, "-"); idx != -1 {
		return segment[:idx]
	}
	return segment
}

// ParentSegments maps each segment to its parent, preserving order and
// dropping duplicates.
func ParentSegments(segments SegmentList) SegmentList {
	parents := make(SegmentList, 0, len(segments))
	seen := make(map[string]struct{}, len(segments))

	for _, segment := range segments {
		parent := ParentOf(segment)
		if _, ok := seen[parent]; ok {
			continue
		}
		seen[parent] = struct{}{}
		parents = append(parents, parent)
	}

	return parents
}

// Equal reports whether two segment lists hold the same segments in the same order.
func (s SegmentList) Equal(other SegmentList) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Intersects reports whether any segment is present in both lists.
func (s SegmentList) Intersects(other SegmentList) bool {
	set := make(map[string]struct{}, len(s))
	for _, segment := range s {
		set[segment] = struct{}{}
	}
	for _, segment := range other {
		if _, ok := set[segment]; ok {
			return true
		}
	}
	return false
}
