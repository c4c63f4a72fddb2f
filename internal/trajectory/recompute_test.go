package trajectory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecompute(t *testing.T) {
	t.Parallel()
	frames := []FrameRecord{
		{Frame: 0, Ego: egoAt(0, 0), Detections: []Detection{det(1, 0, 10)}},
		{Frame: 1, Ego: egoAt(1, 0), Detections: []Detection{det(1, 0, 11), det(2, 5, 5)}},
		{Frame: 2, Ego: egoAt(2, 0), Detections: []Detection{det(1, 0, 11), det(2, 6, 5)}},
	}

	out, err := Recompute(frames, DefaultParams(), false)
	require.NoError(t, err)

	for i, r := range out {
		assert.InDelta(t, 108, r.Ego.Velocity, 1e-9, "frame %d", i)
		assert.InDelta(t, 0, r.Ego.Yaw, 1e-9, "frame %d", i)
	}

	d := find(out[1], 1)
	require.NotNil(t, d.Velocity)
	assert.InDelta(t, 108, *d.Velocity, 1e-9)
	assert.InDelta(t, 90, *d.Yaw, 1e-9)

	assert.Equal(t, *d.Velocity, *find(out[0], 1).Velocity, "first record copies the second")
	assert.Nil(t, find(out[2], 1).Velocity, "stationary detection keeps its values")

	d2 := find(out[2], 2)
	require.NotNil(t, d2.Velocity)
	assert.InDelta(t, 0, *d2.Yaw, 1e-9, "objects first seen later are tracked too")
	assert.Nil(t, find(out[1], 2).Velocity)
}

func TestRecompute_LimitYaw(t *testing.T) {
	t.Parallel()
	frames := []FrameRecord{
		{Frame: 0, Ego: egoAt(0, 0), Detections: []Detection{det(1, 0, 0)}},
		{Frame: 1, Ego: egoAt(1, 0), Detections: []Detection{det(1, 1, 1)}},
	}
	out, err := Recompute(frames, DefaultParams(), true)
	require.NoError(t, err)
	assert.InDelta(t, 10, *find(out[1], 1).Yaw, 1e-9)
}

func TestRecompute_StationaryEgoKeepsYaw(t *testing.T) {
	t.Parallel()
	frames := []FrameRecord{
		{Frame: 0, Ego: egoAt(0, 0)},
		{Frame: 1, Ego: egoAt(0, 1)},
		{Frame: 2, Ego: egoAt(0, 1)},
	}
	out, err := Recompute(frames, DefaultParams(), false)
	require.NoError(t, err)
	assert.Equal(t, 0.0, out[2].Ego.Velocity)
	assert.InDelta(t, 90, out[2].Ego.Yaw, 1e-9)
}

func TestLimitYaw(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name           string
		ref, yaw, want float64
	}{
		{"within range", 90, 95, 95},
		{"above range", 90, 120, 100},
		{"below range", 90, 45, 80},
		{"wraps past zero", 355, 30, 5},
		{"wraps below zero", 5, 300, 355},
		{"opposite picks upper bound", 0, 180, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, LimitYaw(tt.ref, tt.yaw, 10), 1e-9)
		})
	}
}
