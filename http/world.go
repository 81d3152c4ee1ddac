package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/spatialgrid/models"
	"github.com/aukilabs/spatialgrid/spatial"
	"github.com/segmentio/encoding/json"
)

const errTypeBadQuery = "bad_query"

// DebugInfo describes the state of a world and of its index.
type DebugInfo struct {
	WorldID     uint32        `json:"world_id"`
	WorldUUID   string        `json:"world_uuid"`
	EntityCount int           `json:"entity_count"`
	Index       spatial.Stats `json:"index"`
}

// RegionEntity is an entity returned by a region query.
type RegionEntity struct {
	ID       uint32          `json:"id"`
	Position spatial.Vector3 `json:"position"`
}

type RegionQueryResponse struct {
	Inverse  bool           `json:"inverse"`
	Entities []RegionEntity `json:"entities"`
}

// HandleIndexDebugInfo reports the world index statistics as JSON.
func HandleIndexDebugInfo(world *models.World) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats := world.IndexStats()

		writeJSON(w, http.StatusOK, DebugInfo{
			WorldID:     world.ID,
			WorldUUID:   world.WorldUUID,
			EntityCount: stats.Count,
			Index:       stats,
		})
	}
}

// HandleRegionQuery returns the entities in a region as JSON. The region is
// either a box given by ?min=x,y,z&max=x,y,z or a sphere given by
// ?center=x,y,z&radius=r. With &inverse=true, the entities out of the region
// are returned instead.
func HandleRegionQuery(world *models.World) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		shape, inverse, err := parseRegionQuery(r)
		if err != nil {
			logs.WithTag("query", r.URL.RawQuery).Debug(err)
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": err.Error(),
			})
			return
		}

		var entities []*models.Entity
		world.Query(func(index *spatial.Index[*models.Entity]) {
			if inverse {
				entities = index.AppendInverseShapeCast(nil, shape)
				return
			}
			entities = index.AppendShapeCast(nil, shape)
		})

		res := RegionQueryResponse{
			Inverse:  inverse,
			Entities: make([]RegionEntity, len(entities)),
		}
		for i, e := range entities {
			res.Entities[i] = RegionEntity{ID: e.ID, Position: e.Position()}
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func parseRegionQuery(r *http.Request) (spatial.Shape, bool, error) {
	query := r.URL.Query()

	var inverse bool
	if v := query.Get("inverse"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, false, errors.New("invalid inverse parameter").
				WithType(errTypeBadQuery).
				WithTag("inverse", v).
				Wrap(err)
		}
		inverse = b
	}

	switch {
	case query.Has("min") || query.Has("max"):
		min, err := parseVector(query.Get("min"))
		if err != nil {
			return nil, false, errors.New("invalid min parameter").
				WithType(errTypeBadQuery).
				Wrap(err)
		}

		max, err := parseVector(query.Get("max"))
		if err != nil {
			return nil, false, errors.New("invalid max parameter").
				WithType(errTypeBadQuery).
				Wrap(err)
		}
		return spatial.AABB{Min: min, Max: max}, inverse, nil

	case query.Has("center") || query.Has("radius"):
		center, err := parseVector(query.Get("center"))
		if err != nil {
			return nil, false, errors.New("invalid center parameter").
				WithType(errTypeBadQuery).
				Wrap(err)
		}

		radius, err := parseFloat(query.Get("radius"))
		if err != nil {
			return nil, false, errors.New("invalid radius parameter").
				WithType(errTypeBadQuery).
				Wrap(err)
		}
		return spatial.Sphere{Center: center, Radius: radius}, inverse, nil

	default:
		return nil, false, errors.New("region is missing, use min and max or center and radius").
			WithType(errTypeBadQuery)
	}
}

// parseVector parses a "x,y,z" vector.
func parseVector(s string) (spatial.Vector3, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return spatial.Vector3{}, errors.New("vector must have 3 comma separated components").
			WithTag("vector", s)
	}

	var v [3]float64
	for i, p := range parts {
		f, err := parseFloat(p)
		if err != nil {
			return spatial.Vector3{}, err
		}
		v[i] = f
	}
	return spatial.Vector3{X: v[0], Y: v[1], Z: v[2]}, nil
}

func parseFloat(s string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, errors.New("invalid number").
			WithTag("number", s).
			Wrap(err)
	}
	return f, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		logs.Warn(errors.New("encoding response failed").Wrap(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(b)
}
