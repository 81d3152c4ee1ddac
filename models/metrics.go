package models

import (
	"github.com/aukilabs/spatialgrid/spatial"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	worldLabel = "world_uuid"
	kindLabel  = "kind"
)

var (
	worldEntityCount = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "world_entity_count",
		Help: "The number of entities in a world.",
	}, []string{worldLabel})

	worldIndexCells = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "world_index_cells",
		Help: "The number of cells of a world index.",
	}, []string{worldLabel, kindLabel})
)

func instrumentWorldEntities(worldUUID string, count int) {
	worldEntityCount.
		With(prometheus.Labels{worldLabel: worldUUID}).
		Set(float64(count))
}

func instrumentWorldIndex(worldUUID string, stats spatial.Stats) {
	worldIndexCells.
		With(prometheus.Labels{worldLabel: worldUUID, kindLabel: "all"}).
		Set(float64(stats.Cells))

	worldIndexCells.
		With(prometheus.Labels{worldLabel: worldUUID, kindLabel: "leaf"}).
		Set(float64(stats.Leaves))

	worldIndexCells.
		With(prometheus.Labels{worldLabel: worldUUID, kindLabel: "free"}).
		Set(float64(stats.Pool.Free))
}

func instrumentDeleteWorld(worldUUID string) {
	worldEntityCount.Delete(prometheus.Labels{worldLabel: worldUUID})
	worldIndexCells.DeletePartialMatch(prometheus.Labels{worldLabel: worldUUID})
}
