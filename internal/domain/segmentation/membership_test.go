package segmentation

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestComputeDiff(t *testing.T) {
	segmentID := uuid.New()
	a, b, c, d := uuid.New(), uuid.New(), uuid.New(), uuid.New()

	diff := ComputeDiff(segmentID, []uuid.UUID{a, b, c}, []uuid.UUID{b, c, d})

	assert.Equal(t, segmentID, diff.SegmentID)
	assert.Equal(t, []uuid.UUID{d}, diff.ToAdd)
	assert.Equal(t, []uuid.UUID{a}, diff.ToRemove)
	assert.False(t, diff.IsEmpty())
}

func TestComputeDiff_Idempotent(t *testing.T) {
	ids := []uuid.UUID{uuid.New(), uuid.New()}

	diff := ComputeDiff(uuid.New(), ids, []uuid.UUID{ids[1], ids[0], ids[0]})

	assert.True(t, diff.IsEmpty())
}

func TestComputeDiff_SortedOutput(t *testing.T) {
	target := make([]uuid.UUID, 0, 20)
	for range 20 {
		target = append(target, uuid.New())
	}

	diff := ComputeDiff(uuid.New(), nil, target)

	assert.Len(t, diff.ToAdd, 20)
	assert.IsNonDecreasing(t, uuidStrings(diff.ToAdd))
	assert.Empty(t, diff.ToRemove)
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
