package segmentation

import (
	"bytes"
	"slices"
	"time"

	"github.com/google/uuid"
)

// MembershipDiff is the change set that brings a segment's stored members to its target set
type MembershipDiff struct {
	SegmentID uuid.UUID
	ToAdd     []uuid.UUID
	ToRemove  []uuid.UUID
}

// IsEmpty reports whether applying the diff would change nothing
func (d MembershipDiff) IsEmpty() bool {
	return len(d.ToAdd) == 0 && len(d.ToRemove) == 0
}

// ComputeDiff returns toAdd = target - current and toRemove = current - target.
// Both lists are sorted so repeated runs issue writes in the same order.
func ComputeDiff(segmentID uuid.UUID, current, target []uuid.UUID) MembershipDiff {
	currentSet := make(map[uuid.UUID]struct{}, len(current))
	for _, id := range current {
		currentSet[id] = struct{}{}
	}
	targetSet := make(map[uuid.UUID]struct{}, len(target))
	for _, id := range target {
		targetSet[id] = struct{}{}
	}

	diff := MembershipDiff{SegmentID: segmentID}
	for id := range targetSet {
		if _, ok := currentSet[id]; !ok {
			diff.ToAdd = append(diff.ToAdd, id)
		}
	}
	for id := range currentSet {
		if _, ok := targetSet[id]; !ok {
			diff.ToRemove = append(diff.ToRemove, id)
		}
	}
	slices.SortFunc(diff.ToAdd, compareUUID)
	slices.SortFunc(diff.ToRemove, compareUUID)
	return diff
}

func compareUUID(a, b uuid.UUID) int {
	return bytes.Compare(a[:], b[:])
}

// Member is one customer in a segment, as listed by the registry
type Member struct {
	CustomerID uuid.UUID
	Code       string
	Name       string
	AddedAt    time.Time
}
