package http

import (
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/spatialgrid/models"
	"github.com/aukilabs/spatialgrid/spatial"
	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/require"
)

func TestHandleIndexDebugInfo(t *testing.T) {
	world := newTestWorld(t)

	w := httptest.NewRecorder()
	HandleIndexDebugInfo(world)(w, httptest.NewRequest(http.MethodGet, "/debug/index", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var info DebugInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	require.Equal(t, world.ID, info.WorldID)
	require.Equal(t, world.WorldUUID, info.WorldUUID)
	require.Equal(t, 3, info.EntityCount)
	require.Equal(t, 3, info.Index.Count)
	require.NotZero(t, info.Index.Cells)
	require.Equal(t, info.Index.Cells, info.Index.Pool.Live)
	require.True(t, info.Index.Bounds.ContainsPoint(spatial.Vector3{X: -5, Y: -5, Z: -5}))
}

func TestHandleRegionQuery(t *testing.T) {
	world := newTestWorld(t)

	tests := []struct {
		name     string
		query    string
		inverse  bool
		expected []uint32
	}{
		{
			name:     "box",
			query:    "min=-1,-1,-1&max=1,1,1",
			expected: []uint32{1},
		},
		{
			name:     "inverse box",
			query:    "min=-1,-1,-1&max=1,1,1&inverse=true",
			inverse:  true,
			expected: []uint32{2, 3},
		},
		{
			name:     "sphere",
			query:    "center=5,5,5&radius=1",
			expected: []uint32{2},
		},
		{
			name:     "inverse sphere",
			query:    "center=5,5,5&radius=1&inverse=1",
			inverse:  true,
			expected: []uint32{1, 3},
		},
		{
			name:     "explicit inclusion",
			query:    "center=0,0,0&radius=100&inverse=false",
			expected: []uint32{1, 2, 3},
		},
		{
			name:  "empty region",
			query: "min=10,10,10&max=20,20,20",
		},
		{
			name:     "spaces around components",
			query:    "min=-6,%20-6,%20-6&max=-4,-4,-4",
			expected: []uint32{3},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			HandleRegionQuery(world)(w, httptest.NewRequest(http.MethodGet, "/regions?"+test.query, nil))
			require.Equal(t, http.StatusOK, w.Code)

			var res RegionQueryResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
			require.Equal(t, test.inverse, res.Inverse)

			var ids []uint32
			for _, e := range res.Entities {
				ids = append(ids, e.ID)

				entity, ok := world.EntityByID(e.ID)
				require.True(t, ok)
				require.Equal(t, entity.Position(), e.Position)
			}
			sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
			require.Equal(t, test.expected, ids)
		})
	}
}

func TestHandleRegionQueryErrors(t *testing.T) {
	world := newTestWorld(t)

	queries := []string{
		"",
		"min=1,1&max=2,2,2",
		"min=1,1,1",
		"min=a,1,1&max=2,2,2",
		"center=1,1,1",
		"center=1,1,1&radius=big",
		"radius=1",
		"center=1,1,1&radius=1&inverse=maybe",
	}

	for _, query := range queries {
		t.Run(query, func(t *testing.T) {
			w := httptest.NewRecorder()
			HandleRegionQuery(world)(w, httptest.NewRequest(http.MethodGet, "/regions?"+query, nil))
			require.Equal(t, http.StatusBadRequest, w.Code)

			var res map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
			require.NotEmpty(t, res["error"])
		})
	}

	t.Run("method not allowed", func(t *testing.T) {
		w := httptest.NewRecorder()
		HandleRegionQuery(world)(w, httptest.NewRequest(http.MethodPost, "/regions?center=1,1,1&radius=1", nil))
		require.Equal(t, http.StatusMethodNotAllowed, w.Code)
	})
}

func TestParseRegionQuery(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/regions?center=1,2,3&radius=4.5", nil)
	shape, inverse, err := parseRegionQuery(r)
	require.NoError(t, err)
	require.False(t, inverse)
	require.Equal(t, spatial.Sphere{Center: spatial.Vector3{X: 1, Y: 2, Z: 3}, Radius: 4.5}, shape)

	r = httptest.NewRequest(http.MethodGet, "/regions?radius=1", nil)
	_, _, err = parseRegionQuery(r)
	require.Equal(t, errTypeBadQuery, errors.Type(err))
}

func newTestWorld(t *testing.T) *models.World {
	world, err := models.NewWorld(7, time.Hour)
	require.NoError(t, err)
	t.Cleanup(world.Close)

	require.NoError(t, world.AddEntities(
		models.NewEntity(world.NewEntityID(), models.PoseAt(spatial.Vector3{X: 0, Y: 0, Z: 0})),
		models.NewEntity(world.NewEntityID(), models.PoseAt(spatial.Vector3{X: 5, Y: 5, Z: 5})),
		models.NewEntity(world.NewEntityID(), models.PoseAt(spatial.Vector3{X: -5, Y: -5, Z: -5})),
	))
	return world
}
