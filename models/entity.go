package models

import (
	"sync"

	"github.com/aukilabs/spatialgrid/spatial"
)

// Entity is an object placed in a world.
type Entity struct {
	ID uint32

	mutex sync.RWMutex
	pose  Pose
}

func NewEntity(id uint32, pose Pose) *Entity {
	return &Entity{ID: id, pose: pose}
}

func (e *Entity) SetPose(v Pose) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	e.pose = v
}

func (e *Entity) Pose() Pose {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	return e.pose
}

// Position returns the position of the entity in the world.
func (e *Entity) Position() spatial.Vector3 {
	return e.Pose().Position()
}

// Pose is a position and a rotation quaternion.
type Pose struct {
	PX float32 `json:"px"`
	PY float32 `json:"py"`
	PZ float32 `json:"pz"`
	RX float32 `json:"rx"`
	RY float32 `json:"ry"`
	RZ float32 `json:"rz"`
	RW float32 `json:"rw"`
}

// PoseAt returns an unrotated pose at the given position.
func PoseAt(p spatial.Vector3) Pose {
	return Pose{
		PX: float32(p.X),
		PY: float32(p.Y),
		PZ: float32(p.Z),
		RW: 1,
	}
}

func (p Pose) Position() spatial.Vector3 {
	return spatial.Vector3{
		X: float64(p.PX),
		Y: float64(p.PY),
		Z: float64(p.PZ),
	}
}

// WithPosition returns a copy of the pose moved to the given position.
func (p Pose) WithPosition(v spatial.Vector3) Pose {
	p.PX = float32(v.X)
	p.PY = float32(v.Y)
	p.PZ = float32(v.Z)
	return p
}
