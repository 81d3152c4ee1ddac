// Package simulation moves entities around a world every frame and runs the
// range queries a real-time server would run for its clients.
package simulation

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/spatialgrid/featureflag"
	"github.com/aukilabs/spatialgrid/models"
	"github.com/aukilabs/spatialgrid/spatial"
)

const (
	opAdd     = "add"
	opRemove  = "remove"
	opMove    = "move"
	opReplace = "replace"

	shapeSphere        = "sphere"
	shapeBox           = "box"
	shapeInverseSphere = "inverse_sphere"
)

// Options configures a simulation.
type Options struct {
	// The number of entities kept in the world.
	EntityCount int

	// Entities live in [-Extent, Extent] on each axis.
	Extent float64

	// The maximum distance an entity moves on each axis during a frame.
	Speed float64

	// The probability for an entity to be despawned and respawned somewhere
	// else during a frame.
	RespawnRate float64

	// The number of sphere and box queries run every frame.
	QueriesPerFrame int

	// The radius of sphere queries and the half extent of box queries.
	QueryRadius float64

	FeatureFlags featureflag.FeatureFlag

	// Seeds the random source. Zero picks a time based seed.
	Seed int64
}

// FrameStats describes what happened during a simulated frame.
type FrameStats struct {
	Moves          int
	Respawns       int
	Queries        int
	SphereResults  int
	BoxResults     int
	InverseResults int
	Errors         int
}

// Simulator animates the entities of a world. Frames must not be simulated
// concurrently.
type Simulator struct {
	world *models.World
	opts  Options
	rnd   *rand.Rand

	entities []*models.Entity

	sphereCast  *spatial.Cast[*models.Entity, spatial.Sphere]
	boxCast     *spatial.Cast[*models.Entity, spatial.AABB]
	inverseCast *spatial.Cast[*models.Entity, spatial.Sphere]

	counterMutex sync.Mutex
	counter      map[string]int
}

func New(world *models.World, opts Options) *Simulator {
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	if opts.FeatureFlags == nil {
		opts.FeatureFlags = featureflag.New(nil)
	}

	return &Simulator{
		world:   world,
		opts:    opts,
		rnd:     rand.New(rand.NewSource(seed)),
		counter: make(map[string]int),
	}
}

// Entities returns the entities animated by the simulator.
func (s *Simulator) Entities() []*models.Entity {
	return s.entities
}

// Spawn adds the simulated entities to the world at random positions.
func (s *Simulator) Spawn() error {
	entities := make([]*models.Entity, s.opts.EntityCount)
	for i := range entities {
		entities[i] = models.NewEntity(s.world.NewEntityID(), models.PoseAt(s.randomPosition()))
	}

	if err := s.world.AddEntities(entities...); err != nil {
		return errors.New("spawning entities failed").
			WithTag("count", len(entities)).
			Wrap(err)
	}

	s.entities = entities
	s.incCounter("spawns", len(entities))
	return nil
}

// Step simulates a frame.
func (s *Simulator) Step() FrameStats {
	start := time.Now()
	defer instrumentFrame(start)

	var stats FrameStats
	for i, e := range s.entities {
		respawn := s.rnd.Float64() < s.opts.RespawnRate
		if respawn && !s.opts.FeatureFlags.IsSet(featureflag.FlagDisableRespawn) {
			entity, err := s.respawn(e)
			if err != nil {
				s.handleError(err, &stats)
				continue
			}
			s.entities[i] = entity
			stats.Respawns++
			continue
		}

		if err := s.move(e); err != nil {
			s.handleError(err, &stats)
			continue
		}
		stats.Moves++
	}

	s.world.Query(func(index *spatial.Index[*models.Entity]) {
		s.runQueries(index, &stats)
	})

	s.incCounter("frames", 1)
	s.incCounter("moves", stats.Moves)
	s.incCounter("respawns", stats.Respawns)
	s.incCounter("queries", stats.Queries)
	s.incCounter("sphere_query_results", stats.SphereResults)
	s.incCounter("box_query_results", stats.BoxResults)
	s.incCounter("inverse_query_results", stats.InverseResults)
	s.incCounter("errors", stats.Errors)
	return stats
}

// Run spawns the entities and simulates a frame on each world frame until ctx
// is done. The world is closed when Run returns.
func (s *Simulator) Run(ctx context.Context, summaryInterval time.Duration) error {
	defer s.world.Close()

	if err := s.Spawn(); err != nil {
		return err
	}

	logs.WithTag("world_uuid", s.world.WorldUUID).
		WithTag("entity_count", len(s.entities)).
		WithTag("feature_flags", s.opts.FeatureFlags.List()).
		Info("simulation started")

	cancel := s.world.HandleFrame(func() {
		s.Step()
	})
	defer cancel()

	go s.world.StartDispatchFrames()

	ticker := time.NewTicker(summaryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logSummary(summaryInterval)
			logs.WithTag("world_uuid", s.world.WorldUUID).Info("simulation stopped")
			return nil

		case <-ticker.C:
			s.logSummary(summaryInterval)
		}
	}
}

func (s *Simulator) move(e *models.Entity) error {
	step := spatial.Vector3{
		X: (s.rnd.Float64()*2 - 1) * s.opts.Speed,
		Y: (s.rnd.Float64()*2 - 1) * s.opts.Speed,
		Z: (s.rnd.Float64()*2 - 1) * s.opts.Speed,
	}
	pose := e.Pose().WithPosition(s.clamp(spatial.Add(e.Position(), step)))

	if s.opts.FeatureFlags.IsSet(featureflag.FlagDisableMoveItem) {
		if err := s.world.ReplaceEntityPose(e, pose); err != nil {
			return err
		}
		instrumentMutation(opReplace)
		return nil
	}

	if err := s.world.UpdateEntityPose(e, pose); err != nil {
		return err
	}
	instrumentMutation(opMove)
	return nil
}

func (s *Simulator) respawn(e *models.Entity) (*models.Entity, error) {
	if !s.world.RemoveEntity(e) {
		return nil, errors.New("despawning entity failed").
			WithType(models.ErrTypeEntityNotFound).
			WithTag("entity_id", e.ID)
	}
	instrumentMutation(opRemove)

	entity := models.NewEntity(s.world.NewEntityID(), models.PoseAt(s.randomPosition()))
	if err := s.world.AddEntity(entity); err != nil {
		return nil, err
	}
	instrumentMutation(opAdd)
	return entity, nil
}

func (s *Simulator) runQueries(index *spatial.Index[*models.Entity], stats *FrameStats) {
	if s.sphereCast == nil {
		s.sphereCast = spatial.NewShapeCast(index, spatial.Sphere{})
		s.boxCast = spatial.NewShapeCast(index, spatial.AABB{})
		s.inverseCast = spatial.NewInverseShapeCast(index, spatial.Sphere{})
	}

	r := s.opts.QueryRadius
	for i := 0; i < s.opts.QueriesPerFrame; i++ {
		center := s.queryCenter()

		start := time.Now()
		s.sphereCast.Restart(spatial.Sphere{Center: center, Radius: r})
		n := count(s.sphereCast)
		instrumentQuery(shapeSphere, start, n)
		stats.SphereResults += n

		start = time.Now()
		s.boxCast.Restart(spatial.AABB{
			Min: spatial.Sub(center, spatial.Vector3{X: r, Y: r, Z: r}),
			Max: spatial.Add(center, spatial.Vector3{X: r, Y: r, Z: r}),
		})
		n = count(s.boxCast)
		instrumentQuery(shapeBox, start, n)
		stats.BoxResults += n

		stats.Queries += 2

		if s.opts.FeatureFlags.IsSet(featureflag.FlagDisableInverseQueries) {
			continue
		}

		start = time.Now()
		s.inverseCast.Restart(spatial.Sphere{Center: center, Radius: r})
		n = count(s.inverseCast)
		instrumentQuery(shapeInverseSphere, start, n)
		stats.InverseResults += n
		stats.Queries++
	}
}

// queryCenter returns the position of a random entity, which is where
// clients issue their queries from.
func (s *Simulator) queryCenter() spatial.Vector3 {
	if len(s.entities) == 0 {
		return s.randomPosition()
	}
	return s.entities[s.rnd.Intn(len(s.entities))].Position()
}

func (s *Simulator) handleError(err error, stats *FrameStats) {
	stats.Errors++
	instrumentError(err)
	logs.WithTag("world_uuid", s.world.WorldUUID).Warn(err)
}

func (s *Simulator) randomPosition() spatial.Vector3 {
	e := s.opts.Extent
	return spatial.Vector3{
		X: (s.rnd.Float64()*2 - 1) * e,
		Y: (s.rnd.Float64()*2 - 1) * e,
		Z: (s.rnd.Float64()*2 - 1) * e,
	}
}

func (s *Simulator) clamp(p spatial.Vector3) spatial.Vector3 {
	e := s.opts.Extent
	return spatial.Vector3{
		X: math.Max(-e, math.Min(e, p.X)),
		Y: math.Max(-e, math.Min(e, p.Y)),
		Z: math.Max(-e, math.Min(e, p.Z)),
	}
}

func count[S spatial.Shape](c *spatial.Cast[*models.Entity, S]) int {
	n := 0
	for c.Next() {
		n++
	}
	return n
}
