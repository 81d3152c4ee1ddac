package models

import (
	"testing"

	"github.com/aukilabs/spatialgrid/spatial"
	"github.com/stretchr/testify/require"
)

func TestEntityPose(t *testing.T) {
	var e Entity

	p := Pose{
		PX: 1.0,
		PY: 2.0,
		PZ: 3.0,
		RX: 4.0,
		RY: 5.0,
		RZ: 6.0,
		RW: 7.0,
	}

	e.SetPose(p)
	require.Equal(t, p, e.Pose())
	require.Equal(t, spatial.Vector3{X: 1, Y: 2, Z: 3}, e.Position())
}

func TestPoseAt(t *testing.T) {
	p := PoseAt(spatial.Vector3{X: 1.5, Y: -2, Z: 0.25})
	require.Equal(t, Pose{PX: 1.5, PY: -2, PZ: 0.25, RW: 1}, p)
	require.Equal(t, spatial.Vector3{X: 1.5, Y: -2, Z: 0.25}, p.Position())
}

func TestPoseWithPosition(t *testing.T) {
	p := Pose{PX: 1, PY: 1, PZ: 1, RX: 0.5, RW: 0.5}

	moved := p.WithPosition(spatial.Vector3{X: 0.1, Y: 2, Z: 3})
	require.Equal(t, Pose{PX: 0.1, PY: 2, PZ: 3, RX: 0.5, RW: 0.5}, moved)
	require.Equal(t, float32(1), p.PX)

	// Positions go through float32 so the indexed position is the one read
	// back from the pose.
	require.Equal(t, float64(float32(0.1)), moved.Position().X)
}
