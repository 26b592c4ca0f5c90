package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextCapacity(t *testing.T) {
	tests := []struct {
		name     string
		cur      int
		required int
		want     int
	}{
		{"seed from empty", 0, 1, SeedCapacity},
		{"seed covers small batch", 0, 49, SeedCapacity},
		{"large first batch", 0, 120, 200},
		{"double", 50, 51, 100},
		{"double twice", 50, 150, 200},
		{"clamped", maxCapacity/2 + 1, maxCapacity, maxCapacity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, nextCapacity(tt.cur, tt.required))
		})
	}
}

func TestGrowTogether_PreservesCellsAndKeepsPeersEqual(t *testing.T) {
	var names column[string]
	var ids column[int]

	require.NoError(t, growTogether(3, 0, &names, &ids))
	assert.Equal(t, SeedCapacity, names.capacity())
	assert.Equal(t, SeedCapacity, ids.capacity())

	for i := 0; i < 3; i++ {
		names.buf[i] = string(rune('a' + i))
		ids.buf[i] = i + 10
	}
	before := names.view(3)

	require.NoError(t, growTogether(SeedCapacity+1, 3, &names, &ids))
	assert.Equal(t, 2*SeedCapacity, names.capacity())
	assert.Equal(t, 2*SeedCapacity, ids.capacity())
	assert.Equal(t, []string{"a", "b", "c"}, names.view(3))
	assert.Equal(t, []int{10, 11, 12}, ids.view(3))

	// the earlier view still points at the replaced backing array
	names.buf[0] = "z"
	assert.Equal(t, "a", before[0])
}

func TestGrowTogether_NoGrowthWhenLargeEnough(t *testing.T) {
	var c column[int]
	require.NoError(t, growTogether(10, 0, &c))
	buf := c.buf

	require.NoError(t, growTogether(SeedCapacity, 0, &c))
	assert.Same(t, &buf[0], &c.buf[0])
}

func TestGrowTogether_RejectsOversizedRequest(t *testing.T) {
	var c column[bool]
	err := growTogether(maxCapacity+1, 0, &c)
	require.ErrorIs(t, err, ErrCapacityExceeded)
	assert.Zero(t, c.capacity())
}

func TestColumnView_ClipsCapacity(t *testing.T) {
	var c column[int]
	require.NoError(t, growTogether(5, 0, &c))

	v := c.view(2)
	assert.Len(t, v, 2)
	assert.Equal(t, 2, cap(v))

	_ = append(v, 99)
	assert.Zero(t, c.buf[2])
	assert.Empty(t, c.view(0))
}
