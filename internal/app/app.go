package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"zonewatch/internal/broker/kafka"
	"zonewatch/internal/broker/nats"
	"zonewatch/internal/config"
	"zonewatch/internal/logger"
	"zonewatch/internal/model"
	"zonewatch/internal/repository"
	"zonewatch/internal/repository/csvlog"
	"zonewatch/internal/repository/postgres"
	"zonewatch/internal/repository/sqlite"
	"zonewatch/internal/route"
	"zonewatch/internal/service/ai"
	"zonewatch/internal/service/detect"
	"zonewatch/internal/service/eventlog"
	"zonewatch/internal/service/notify"
	"zonewatch/internal/service/pipeline"
	"zonewatch/internal/service/recorder"
	"zonewatch/internal/service/storage"
	"zonewatch/internal/service/video"
	"zonewatch/internal/service/websocket"
	"zonewatch/internal/service/worker"
)

// FrameSource yields frames in capture order until it is exhausted.
type FrameSource interface {
	Read() (model.Frame, error)
	FPS() float64
	Close() error
}

// Detector finds objects in a frame.
type Detector interface {
	Detect(frame model.Frame) ([]model.Detection, error)
}

type App struct {
	config   *config.Config
	logger   *logger.Logger
	source   FrameSource
	detector Detector

	pool     *worker.Pool
	recorder *recorder.Recorder
	events   *eventlog.EventLogger
	pipeline *pipeline.Pipeline
	hub      *websocket.Hub
	clips    repository.ClipRepository
	server   *http.Server

	// closed in order after the event log is flushed
	closers []io.Closer
}

// NewApp validates cfg, opens the video source and the detector and wires
// every service.
func NewApp(cfg *config.Config, logger *logger.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	source, err := video.Open(cfg.Source.Input, cfg.Source.FPS, logger)
	if err != nil {
		return nil, err
	}

	var detector Detector
	var detectorCloser io.Closer
	if cfg.Detector.Endpoint != "" {
		detector = detect.NewClient(cfg.Detector.Endpoint, 5*time.Second)
		logger.Info("🤖 Using remote detector at %s", cfg.Detector.Endpoint)
	} else {
		d, err := ai.NewDetector(cfg.Detector, logger)
		if err != nil {
			source.Close()
			return nil, err
		}
		detector, detectorCloser = d, d
	}

	a, err := New(cfg, source, detector, video.NewWriter, logger)
	if err != nil {
		source.Close()
		if detectorCloser != nil {
			detectorCloser.Close()
		}
		return nil, err
	}
	if detectorCloser != nil {
		a.closers = append(a.closers, detectorCloser)
	}
	return a, nil
}

// New wires the services around an already opened source and detector.
// newWriter opens clip files.
func New(cfg *config.Config, source FrameSource, detector Detector, newWriter recorder.WriterFactory, logger *logger.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.Output.ClipsDir, 0755); err != nil {
		return nil, &model.ConfigurationError{Field: "output.clips_dir", Reason: err.Error()}
	}

	a := &App{
		config:   cfg,
		logger:   logger,
		source:   source,
		detector: detector,
		hub:      websocket.NewHub(logger),
	}

	sinks, alerts, err := a.openStores()
	if err != nil {
		a.closeAll()
		return nil, err
	}

	publishers := []pipeline.Publisher{a.hub}
	brokers, err := a.openBrokers()
	if err != nil {
		a.closeAll()
		return nil, err
	}
	publishers = append(publishers, brokers...)

	a.pool = worker.NewPool(cfg.Workers.Count, cfg.Workers.QueueSize, logger)
	a.events = eventlog.New(sinks, logger)

	deps := pipeline.Deps{
		Notifier:   notify.New(cfg.Email, a.pool, logger),
		Events:     a.events,
		Pool:       a.pool,
		Alerts:     alerts,
		Publishers: publishers,
	}
	if cfg.Minio.Endpoint != "" {
		uploader, err := a.openUploader()
		if err != nil {
			a.drain()
			a.closeAll()
			return nil, err
		}
		deps.Uploader = uploader
	}
	if cfg.Alerting.AnnotateClips {
		deps.Annotate = ai.NewAnnotator(logger).Annotate
	}

	opts := pipeline.OptionsFromConfig(cfg)
	opts.FPS = source.FPS()
	a.recorder = recorder.New(opts.FPS, newWriter, a.onRecordingComplete, logger)
	deps.Recorder = a.recorder
	a.pipeline = pipeline.New(opts, cfg.Zones, deps, logger)

	if cfg.HTTP.Addr != "" {
		a.server = &http.Server{
			Addr: cfg.HTTP.Addr,
			Handler: route.SetupRoutes(cfg, route.Deps{
				Stats:    a.pipeline,
				Recorder: a.recorder,
				Hub:      a.hub,
				Alerts:   alerts,
				Clips:    a.clips,
			}, logger),
			ReadHeaderTimeout: 10 * time.Second,
		}
	}

	return a, nil
}

func (a *App) openStores() ([]repository.RecordSink, repository.AlertRepository, error) {
	cfg := a.config

	csvWriter, err := csvlog.NewWriter(cfg.Output.LogsDir)
	if err != nil {
		return nil, nil, err
	}
	a.closers = append(a.closers, csvWriter)
	sinks := []repository.RecordSink{csvWriter}

	var alerts repository.AlertRepository
	if cfg.Output.SQLitePath != "" {
		db, err := sqlite.New(cfg.Output.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open event database: %w", err)
		}
		a.closers = append(a.closers, db)
		sinks = append(sinks, sqlite.NewRecordRepository(db))
		alerts = sqlite.NewAlertRepository(db)
		a.clips = sqlite.NewClipRepository(db)
	}

	if cfg.Output.PostgresDSN != "" {
		db, err := postgres.New(cfg.Output.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		a.closers = append(a.closers, db)
		sinks = append(sinks, postgres.NewRecordRepository(db.DB))
	}
	return sinks, alerts, nil
}

func (a *App) openBrokers() ([]pipeline.Publisher, error) {
	cfg := a.config
	var publishers []pipeline.Publisher

	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, producer)
		publishers = append(publishers, producer)
		a.logger.Info("📨 Publishing alerts to Kafka topic %s", cfg.Kafka.Topic)
	}

	if cfg.NATS.URL != "" {
		publisher, err := nats.Connect(cfg.NATS.URL, cfg.NATS.Subject)
		if err != nil {
			return publishers, err
		}
		a.closers = append(a.closers, publisher)
		publishers = append(publishers, publisher)
		a.logger.Info("📨 Publishing alerts to NATS subject %s", cfg.NATS.Subject)
	}
	return publishers, nil
}

func (a *App) openUploader() (*storage.Uploader, error) {
	uploader, err := storage.NewUploader(a.config.Minio)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), a.config.Workers.ShutdownTimeout)
	defer cancel()
	if err := uploader.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	a.logger.Info("☁️  Uploading clips to bucket %s", a.config.Minio.Bucket)
	return uploader, nil
}

// onRecordingComplete finishes the alert and registers the clip in the catalog.
func (a *App) onRecordingComplete(res recorder.Result) {
	a.pipeline.OnRecordingComplete(res)
	if res.Err != nil || a.clips == nil {
		return
	}

	clip := model.Clip{Filename: filepath.Base(res.Path), Timestamp: res.StartedAt, FilePath: res.Path}
	if info, err := os.Stat(res.Path); err == nil {
		clip.FileSize = info.Size()
	}
	a.pool.Submit("index_clip", func(ctx context.Context) {
		if _, err := a.clips.Insert(&clip); err != nil {
			a.logger.Error("Failed to register clip %s: %v", clip.Filename, err)
		}
	})
}

// Pipeline returns the frame pipeline.
func (a *App) Pipeline() *pipeline.Pipeline {
	return a.pipeline
}

// Run processes frames until ctx is cancelled or the source is exhausted,
// then shuts every service down. Per-frame errors never stop the loop.
func (a *App) Run(ctx context.Context) error {
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go a.hub.Run(hubCtx)

	serverErr := make(chan error, 1)
	if a.server != nil {
		go func() {
			a.logger.Info("🌐 HTTP server listening on %s", a.server.Addr)
			if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErr <- err
			}
		}()
	}

	a.logger.Info("🚀 Monitoring %s (ROI %v, %d zones, watching %v)",
		a.config.Source.Input, a.config.Alerting.ROIEnabled, len(a.config.Zones), a.config.Alerting.WatchedClasses)

	var runErr error
loop:
	for {
		select {
		case <-ctx.Done():
			a.logger.Info("Stop requested")
			break loop
		case err := <-serverErr:
			runErr = fmt.Errorf("http server: %w", err)
			break loop
		default:
		}

		frame, err := a.source.Read()
		if errors.Is(err, model.ErrSourceExhausted) {
			a.logger.Info("Source exhausted")
			break loop
		}
		if err != nil {
			a.logger.Warning("Failed to read frame: %v", err)
			continue
		}

		detections, err := a.detector.Detect(frame)
		if err != nil {
			a.logger.Warning("Detection failed on frame %d: %v", frame.Seq, err)
			detections = nil
		}
		a.pipeline.Process(frame, detections)
	}

	a.shutdown(stopHub)
	return runErr
}

// shutdown stops the recorder, drains background work, flushes the event
// log and closes the remaining resources. Each step is bounded by the
// configured timeout.
func (a *App) shutdown(stopHub context.CancelFunc) {
	a.step("recorder", a.recorder.Stop)
	a.drain()

	stopHub()
	if a.server != nil {
		a.step("http server", a.server.Shutdown)
	}
	a.closeAll()
	if err := a.source.Close(); err != nil {
		a.logger.Warning("Shutdown: source: %v", err)
	}
	a.logger.Info("👋 Shutdown complete")
}

func (a *App) step(name string, fn func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), a.config.Workers.ShutdownTimeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		a.logger.Warning("Shutdown: %s: %v", name, err)
	}
}

// drain waits for queued background tasks, then flushes the event log.
func (a *App) drain() {
	if a.pool != nil {
		a.step("worker pool", func(ctx context.Context) error {
			abandoned, err := a.pool.Shutdown(ctx)
			if err != nil {
				return fmt.Errorf("%d background task(s) lost: %w", abandoned, err)
			}
			return nil
		})
	}
	if a.events != nil {
		a.step("event log", a.events.Close)
	}
}

func (a *App) closeAll() {
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.logger.Warning("Shutdown: close: %v", err)
		}
	}
	a.closers = nil
}
