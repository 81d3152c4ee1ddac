package models

import (
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/spatialgrid/spatial"
	"github.com/google/uuid"
)

const (
	// ErrTypeEntityNotFound is the error type returned when an entity is not
	// part of a world.
	ErrTypeEntityNotFound = "entity_not_found"

	// ErrTypeEntityAlreadyAdded is the error type returned when an entity id
	// is already used in a world.
	ErrTypeEntityAlreadyAdded = "entity_already_added"
)

// World is a space where entities are placed. Entities are indexed by
// position so they can be looked up by region.
//
// The pose of an entity that is part of a world must only be changed with
// UpdateEntityPose or ReplaceEntityPose. Unlike the spatial index it wraps, a
// world is safe for concurrent use.
type World struct {
	ID        uint32
	WorldUUID string

	entityIDs   SequentialIDGenerator
	entityMutex sync.Mutex
	entities    map[uint32]*Entity
	index       *spatial.Index[*Entity]

	startFrameOnce  sync.Once
	closeFrameChan  chan struct{}
	frameTicker     *time.Ticker
	frameHandlerIDs SequentialIDGenerator
	frameHandlers   map[uint32]func()
	frameMutex      sync.RWMutex

	closeOnce sync.Once
}

// WorldOption configures a world.
type WorldOption func(*worldConfig)

type worldConfig struct {
	index spatial.Options
	pool  *spatial.CellPool[*Entity]
}

// WithIndexOptions sets the options of the spatial index that stores the
// world entities.
func WithIndexOptions(o spatial.Options) WorldOption {
	return func(c *worldConfig) {
		c.index = o
	}
}

// WithCellPool makes the world index take its cells from the given pool.
func WithCellPool(p *spatial.CellPool[*Entity]) WorldOption {
	return func(c *worldConfig) {
		c.pool = p
	}
}

func NewWorld(id uint32, frameDuration time.Duration, options ...WorldOption) (*World, error) {
	var conf worldConfig
	for _, o := range options {
		o(&conf)
	}

	index, err := spatial.NewWithPool(conf.pool, conf.index)
	if err != nil {
		return nil, errors.New("creating world index failed").Wrap(err)
	}

	w := &World{
		ID:             id,
		WorldUUID:      uuid.New().String(),
		entities:       make(map[uint32]*Entity),
		index:          index,
		closeFrameChan: make(chan struct{}, 1),
		frameTicker:    time.NewTicker(frameDuration),
		frameHandlers:  make(map[uint32]func()),
	}

	instrumentWorldEntities(w.WorldUUID, 0)
	return w, nil
}

func (w *World) Close() {
	w.closeOnce.Do(func() {
		w.frameTicker.Stop()
		w.closeFrameChan <- struct{}{}
		instrumentDeleteWorld(w.WorldUUID)
	})
}

func (w *World) NewEntityID() uint32 {
	return w.entityIDs.New()
}

// AddEntity places an entity in the world at the position of its pose.
func (w *World) AddEntity(e *Entity) error {
	w.entityMutex.Lock()
	defer w.entityMutex.Unlock()

	if _, ok := w.entities[e.ID]; ok {
		return errors.New("entity is already added").
			WithType(ErrTypeEntityAlreadyAdded).
			WithTag("entity_id", e.ID)
	}

	if err := w.index.Add(e, e.Position()); err != nil {
		return errors.New("indexing entity failed").
			WithType(errors.Type(err)).
			WithTag("entity_id", e.ID).
			Wrap(err)
	}

	w.entities[e.ID] = e
	instrumentWorldEntities(w.WorldUUID, len(w.entities))
	return nil
}

// AddEntities places a batch of entities in the world. No entity is added
// when one of them can't be.
func (w *World) AddEntities(entities ...*Entity) error {
	w.entityMutex.Lock()
	defer w.entityMutex.Unlock()

	positions := make([]spatial.Vector3, len(entities))
	seen := make(map[uint32]struct{}, len(entities))
	for i, e := range entities {
		_, added := w.entities[e.ID]
		_, duplicated := seen[e.ID]
		if added || duplicated {
			return errors.New("entity is already added").
				WithType(ErrTypeEntityAlreadyAdded).
				WithTag("entity_id", e.ID)
		}

		seen[e.ID] = struct{}{}
		positions[i] = e.Position()
	}

	if err := w.index.AddRange(entities, positions); err != nil {
		return errors.New("indexing entities failed").
			WithType(errors.Type(err)).
			WithTag("count", len(entities)).
			Wrap(err)
	}

	for _, e := range entities {
		w.entities[e.ID] = e
	}
	instrumentWorldEntities(w.WorldUUID, len(w.entities))
	return nil
}

// RemoveEntity removes an entity from the world and reports whether it was
// part of it. Its id becomes reusable.
func (w *World) RemoveEntity(e *Entity) bool {
	w.entityMutex.Lock()
	defer w.entityMutex.Unlock()

	if w.entities[e.ID] != e {
		return false
	}

	w.index.Remove(e, e.Position())
	delete(w.entities, e.ID)
	w.entityIDs.Reuse(e.ID)

	instrumentWorldEntities(w.WorldUUID, len(w.entities))
	return true
}

func (w *World) EntityByID(id uint32) (*Entity, bool) {
	w.entityMutex.Lock()
	defer w.entityMutex.Unlock()

	e, ok := w.entities[id]
	return e, ok
}

func (w *World) Entities() []*Entity {
	w.entityMutex.Lock()
	defer w.entityMutex.Unlock()

	entities := make([]*Entity, 0, len(w.entities))
	for _, e := range w.entities {
		entities = append(entities, e)
	}
	return entities
}

func (w *World) EntityCount() int {
	w.entityMutex.Lock()
	defer w.entityMutex.Unlock()

	return len(w.entities)
}

// UpdateEntityPose sets the pose of an entity and moves it in the index.
func (w *World) UpdateEntityPose(e *Entity, pose Pose) error {
	w.entityMutex.Lock()
	defer w.entityMutex.Unlock()

	if w.entities[e.ID] != e {
		return errors.New("entity is not in the world").
			WithType(ErrTypeEntityNotFound).
			WithTag("entity_id", e.ID)
	}

	moved, err := w.index.MoveItem(e, e.Position(), pose.Position())
	if err != nil {
		return errors.New("moving entity failed").
			WithType(errors.Type(err)).
			WithTag("entity_id", e.ID).
			WithTag("pose", pose).
			Wrap(err)
	}
	if !moved {
		return errors.New("entity is not indexed at its position").
			WithType(ErrTypeEntityNotFound).
			WithTag("entity_id", e.ID)
	}

	e.SetPose(pose)
	return nil
}

// ReplaceEntityPose is like UpdateEntityPose but removes the entity from the
// index and adds it back instead of moving it.
func (w *World) ReplaceEntityPose(e *Entity, pose Pose) error {
	w.entityMutex.Lock()
	defer w.entityMutex.Unlock()

	if w.entities[e.ID] != e || !w.index.Remove(e, e.Position()) {
		return errors.New("entity is not in the world").
			WithType(ErrTypeEntityNotFound).
			WithTag("entity_id", e.ID)
	}

	if err := w.index.Add(e, pose.Position()); err != nil {
		// Put the entity back where it was so the world stays consistent.
		w.index.Add(e, e.Position())
		return errors.New("indexing entity failed").
			WithType(errors.Type(err)).
			WithTag("entity_id", e.ID).
			WithTag("pose", pose).
			Wrap(err)
	}

	e.SetPose(pose)
	return nil
}

// EntitiesInBox returns the entities positioned in the box. Both corners are
// inclusive.
func (w *World) EntitiesInBox(min, max spatial.Vector3) []*Entity {
	w.entityMutex.Lock()
	defer w.entityMutex.Unlock()

	return w.index.AppendAabbCast(nil, min, max)
}

// EntitiesOutsideBox returns the entities positioned out of the box.
func (w *World) EntitiesOutsideBox(min, max spatial.Vector3) []*Entity {
	w.entityMutex.Lock()
	defer w.entityMutex.Unlock()

	return w.index.AppendInverseAabbCast(nil, min, max)
}

// EntitiesInSphere returns the entities positioned in the sphere.
func (w *World) EntitiesInSphere(center spatial.Vector3, radius float64) []*Entity {
	w.entityMutex.Lock()
	defer w.entityMutex.Unlock()

	return w.index.AppendSphereCast(nil, center, radius)
}

// EntitiesOutsideSphere returns the entities positioned out of the sphere.
func (w *World) EntitiesOutsideSphere(center spatial.Vector3, radius float64) []*Entity {
	w.entityMutex.Lock()
	defer w.entityMutex.Unlock()

	return w.index.AppendInverseSphereCast(nil, center, radius)
}

// Query runs fn with exclusive access to the world index. Casts created from
// the index must only be iterated within fn and the index must not be
// mutated.
func (w *World) Query(fn func(index *spatial.Index[*Entity])) {
	w.entityMutex.Lock()
	defer w.entityMutex.Unlock()

	fn(w.index)
}

// IndexStats returns the statistics of the world index.
func (w *World) IndexStats() spatial.Stats {
	w.entityMutex.Lock()
	defer w.entityMutex.Unlock()

	stats := w.index.Stats()
	instrumentWorldIndex(w.WorldUUID, stats)
	return stats
}

func (w *World) HandleFrame(h func()) (cancel func()) {
	w.frameMutex.Lock()
	defer w.frameMutex.Unlock()

	id := w.frameHandlerIDs.New()
	w.frameHandlers[id] = h

	return func() {
		w.frameMutex.Lock()
		defer w.frameMutex.Unlock()

		delete(w.frameHandlers, id)
		w.frameHandlerIDs.Reuse(id)
	}
}

// StartDispatchFrames calls the frame handlers on every frame until the world
// is closed. It blocks.
func (w *World) StartDispatchFrames() {
	w.startFrameOnce.Do(func() {
		for {
			select {
			case <-w.closeFrameChan:
				return

			case <-w.frameTicker.C:
				w.frameMutex.RLock()
				for _, h := range w.frameHandlers {
					h()
				}
				w.frameMutex.RUnlock()
			}
		}
	})
}
