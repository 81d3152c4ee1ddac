package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/pprof"
	"os"
	"reflect"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/aukilabs/go-tooling/pkg/cli"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/events"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/go-tooling/pkg/metrics"
	"github.com/aukilabs/spatialgrid/featureflag"
	gridhttp "github.com/aukilabs/spatialgrid/http"
	"github.com/aukilabs/spatialgrid/models"
	"github.com/aukilabs/spatialgrid/simulation"
	"github.com/aukilabs/spatialgrid/spatial"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/encoding/json"
)

var (
	// The spatialgrid version number. Set at build.
	version = "v0.1.0"

	infoGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name:        "spatialgrid_info",
		Help:        "Spatialgrid information.",
		ConstLabels: prometheus.Labels{"version": version},
	})
)

// Keeps the config field names when the binary is obfuscated so the cli
// package generates readable options.
var _ = reflect.TypeOf(config{})

type config struct {
	Addr               string        `cli:""        env:"SPATIALGRID_ADDR"                 help:"Listening address for region queries."`
	AdminAddr          string        `cli:""        env:"SPATIALGRID_ADMIN_ADDR"           help:"Admin listening address."`
	LogLevel           string        `cli:""        env:"SPATIALGRID_LOG_LEVEL"            help:"Log level (debug|info|warning|error)."`
	LogIndent          bool          `cli:""        env:"SPATIALGRID_LOG_INDENT"           help:"Indent logs."`
	FrameDuration      time.Duration `cli:",hidden" env:"SPATIALGRID_FRAME_DURATION"       help:"The duration of a simulation frame."`
	LogSummaryInterval time.Duration `cli:",hidden" env:"SPATIALGRID_LOG_SUMMARY_INTERVAL" help:"The duration between each simulation log summary."`
	Simulation         simConfig     `cli:""        env:"-"                                help:"Simulation configuration."`
	Index              indexConfig   `cli:""        env:"-"                                help:"Spatial index configuration."`
	Events             eventsConfig  `cli:",hidden" env:"-"                                help:"Event pusher configuration."`
	FeatureFlags       []string      `cli:",hidden" env:"SPATIALGRID_FEATURE_FLAGS"        help:"Comma separated feature flags."`
	Version            bool          `cli:""        env:"-"                                help:"Show version."`
	Help               bool          `cli:""        env:"-"                                help:"Show help."`
}

type simConfig struct {
	EntityCount     int     `cli:"" env:"SPATIALGRID_ENTITY_COUNT"      help:"The number of simulated entities."`
	Extent          float64 `cli:"" env:"SPATIALGRID_EXTENT"            help:"Entities live within [-extent, extent] on each axis."`
	Speed           float64 `cli:"" env:"SPATIALGRID_SPEED"             help:"The maximum distance moved by an entity on each axis per frame."`
	RespawnRate     float64 `cli:"" env:"SPATIALGRID_RESPAWN_RATE"      help:"The probability for an entity to respawn during a frame."`
	QueriesPerFrame int     `cli:"" env:"SPATIALGRID_QUERIES_PER_FRAME" help:"The number of sphere and box queries per frame."`
	QueryRadius     float64 `cli:"" env:"SPATIALGRID_QUERY_RADIUS"      help:"The radius of the simulated queries."`
	Seed            int64   `cli:",hidden" env:"SPATIALGRID_SEED"       help:"The simulation random seed. 0 picks one."`
}

type indexConfig struct {
	Size           float64 `cli:",hidden" env:"SPATIALGRID_INDEX_SIZE"            help:"The extent of the initial root cell."`
	Subdivision    int     `cli:",hidden" env:"SPATIALGRID_INDEX_SUBDIVISION"     help:"The number of subdivisions per axis. Must be odd."`
	SplitThreshold int     `cli:",hidden" env:"SPATIALGRID_INDEX_SPLIT_THRESHOLD" help:"The number of items a leaf holds before being split."`
	MergeThreshold int     `cli:",hidden" env:"SPATIALGRID_INDEX_MERGE_THRESHOLD" help:"The item count at which a cell is merged back."`
	Depth          int     `cli:",hidden" env:"SPATIALGRID_INDEX_DEPTH"           help:"The number of subdivision levels below the initial root."`
}

type eventsConfig struct {
	Endpoint      string        `cli:",hidden" env:"SPATIALGRID_EVENTS_ENDPOINT"       help:"Endpoint to where events are pushed. Empty disables events."`
	FlushInterval time.Duration `cli:",hidden" env:"SPATIALGRID_EVENTS_FLUSH_INTERVAL" help:"The duration between each event flush."`
	BatchSize     int           `cli:",hidden" env:"SPATIALGRID_EVENTS_BATCH_SIZE"     help:"The maximum number of events sent at once."`
	QueueSize     int           `cli:",hidden" env:"SPATIALGRID_EVENTS_QUEUE_SIZE"     help:"The size of the queue where events are stored."`
}

func main() {
	conf := config{
		Addr:               ":4100",
		AdminAddr:          ":18191",
		LogLevel:           logs.InfoLevel.String(),
		FrameDuration:      time.Millisecond * 15,
		LogSummaryInterval: time.Minute,
		Simulation: simConfig{
			EntityCount:     1000,
			Extent:          50,
			Speed:           0.5,
			RespawnRate:     0.001,
			QueriesPerFrame: 8,
			QueryRadius:     5,
		},
		Index: indexConfig{
			Size:           spatial.DefaultSize,
			Subdivision:    spatial.DefaultSubdivision,
			SplitThreshold: spatial.DefaultSplitThreshold,
			MergeThreshold: spatial.DefaultMergeThreshold,
			Depth:          spatial.DefaultDepth,
		},
		Events: eventsConfig{
			FlushInterval: events.DefaultFlushInterval,
			BatchSize:     events.DefaultBatchSize,
			QueueSize:     events.DefaultQueueSize,
		},
	}

	// set the information gauge to 1, useful for SUM query
	infoGauge.Set(1)

	ctx, cancel := cli.ContextWithSignals(context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer cancel()

	cli.Register().
		Help("Starts a spatialgrid server that simulates moving entities and serves region queries.").
		Options(&conf)
	cli.Load()

	if conf.Version {
		fmt.Println(version)
		os.Exit(0)
	}

	if err := validateConfig(conf); err != nil {
		logs.Fatal(err)
	}

	logs.SetLevel(logs.ParseLevel(conf.LogLevel))
	logs.Encoder = json.Marshal
	if conf.LogIndent {
		logs.Encoder = func(v any) ([]byte, error) {
			return json.MarshalIndent(v, "", "  ")
		}
	}

	errors.Encoder = json.Marshal

	if conf.Events.Endpoint != "" {
		eventsPusher := events.Pusher{
			Endpoint:      conf.Events.Endpoint,
			FlushInterval: conf.Events.FlushInterval,
			BatchSize:     conf.Events.BatchSize,
			QueueSize:     conf.Events.QueueSize,
			Transport:     metrics.HTTPTransport(http.DefaultTransport),
		}
		go eventsPusher.Start()
		defer eventsPusher.Close()

		eventsLogger := events.Logger{
			Pusher:           &eventsPusher,
			SDKType:          "spatialgrid",
			SDKVersionFamily: version,
		}
		logs.SetLogger(eventsLogger.Log)
	}

	world, err := models.NewWorld(1, conf.FrameDuration, models.WithIndexOptions(spatial.Options{
		Offset:         spatial.Vector3{X: -conf.Index.Size / 2, Y: -conf.Index.Size / 2, Z: -conf.Index.Size / 2},
		Size:           conf.Index.Size,
		Subdivision:    conf.Index.Subdivision,
		SplitThreshold: conf.Index.SplitThreshold,
		MergeThreshold: conf.Index.MergeThreshold,
		Depth:          conf.Index.Depth,
	}))
	if err != nil {
		logs.Fatal(errors.New("creating world failed").Wrap(err))
	}

	simulator := simulation.New(world, simulation.Options{
		EntityCount:     conf.Simulation.EntityCount,
		Extent:          conf.Simulation.Extent,
		Speed:           conf.Simulation.Speed,
		RespawnRate:     conf.Simulation.RespawnRate,
		QueriesPerFrame: conf.Simulation.QueriesPerFrame,
		QueryRadius:     conf.Simulation.QueryRadius,
		FeatureFlags:    featureflag.New(conf.FeatureFlags),
		Seed:            conf.Simulation.Seed,
	})

	var simulationRunning atomic.Bool
	readinessCheck := simulationRunning.Load

	var service http.ServeMux
	service.Handle("/regions", gridhttp.HandleWithCORS(gridhttp.HandleRegionQuery(world)))
	service.Handle("/debug/index", gridhttp.HandleWithCORS(gridhttp.HandleIndexDebugInfo(world)))
	service.Handle("/health", gridhttp.HandleWithCORS(http.HandlerFunc(gridhttp.HandleHealthCheck)))
	service.Handle("/version", gridhttp.HandleWithCORS(gridhttp.HandleVersion(version)))
	service.Handle("/ready", gridhttp.HandleWithCORS(gridhttp.HandleReadyCheck(readinessCheck)))

	var admin http.ServeMux
	admin.Handle("/metrics", promhttp.Handler())
	admin.HandleFunc("/health", gridhttp.HandleHealthCheck)
	admin.HandleFunc("/debug/pprof/", pprof.Index)
	admin.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	admin.HandleFunc("/debug/pprof/profile", pprof.Profile)
	admin.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	admin.HandleFunc("/debug/pprof/trace", pprof.Trace)
	admin.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))
	admin.Handle("/debug/pprof/heap", pprof.Handler("heap"))
	admin.Handle("/debug/pprof/threadcreate", pprof.Handler("threadcreate"))
	admin.Handle("/debug/pprof/block", pprof.Handler("block"))
	admin.HandleFunc("/ready", gridhttp.HandleReadyCheck(readinessCheck))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer cancel()

		simulationRunning.Store(true)
		defer simulationRunning.Store(false)

		if err := simulator.Run(ctx, conf.LogSummaryInterval); err != nil {
			logs.Warn(errors.New("simulation failed").Wrap(err))
		}
	}()

	logs.WithTag("version", version).
		WithTag("log_level", conf.LogLevel).
		WithTag("world_uuid", world.WorldUUID).
		WithTag("feature_flags", conf.FeatureFlags).
		Info("starting spatialgrid server")

	gridhttp.ListenAndServe(ctx,
		&http.Server{Addr: conf.Addr, Handler: metrics.HTTPHandler(&service,
			gridhttp.MetricsPathFormatter)},
		&http.Server{Addr: conf.AdminAddr, Handler: &admin},
	)

	cancel()
	wg.Wait()
}

func validateConfig(conf config) error {
	if conf.FrameDuration <= 0 {
		return errors.New("frame duration must be positive").
			WithTag("frame_duration", conf.FrameDuration)
	}

	if conf.LogSummaryInterval <= 0 {
		return errors.New("log summary interval must be positive").
			WithTag("log_summary_interval", conf.LogSummaryInterval)
	}

	sim := conf.Simulation
	if sim.EntityCount < 0 {
		return errors.New("entity count must not be negative").
			WithTag("entity_count", sim.EntityCount)
	}

	if sim.Extent <= 0 || sim.Speed < 0 || sim.QueryRadius < 0 {
		return errors.New("extent must be positive, speed and query radius must not be negative").
			WithTag("extent", sim.Extent).
			WithTag("speed", sim.Speed).
			WithTag("query_radius", sim.QueryRadius)
	}

	if sim.RespawnRate < 0 || sim.RespawnRate > 1 {
		return errors.New("respawn rate must be within [0, 1]").
			WithTag("respawn_rate", sim.RespawnRate)
	}

	if sim.QueriesPerFrame < 0 {
		return errors.New("queries per frame must not be negative").
			WithTag("queries_per_frame", sim.QueriesPerFrame)
	}

	if conf.Index.Size <= 0 {
		return errors.New("index size must be positive").
			WithTag("index_size", conf.Index.Size)
	}

	return nil
}
