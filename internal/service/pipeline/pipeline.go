package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"zonewatch/internal/config"
	"zonewatch/internal/dto"
	"zonewatch/internal/logger"
	"zonewatch/internal/metrics"
	"zonewatch/internal/model"
	"zonewatch/internal/repository"
	"zonewatch/internal/service/alert"
	"zonewatch/internal/service/notify"
	"zonewatch/internal/service/recorder"
	"zonewatch/internal/service/storage"
	"zonewatch/internal/service/zone"
)

// ClipTimeFormat names clips after their trigger time.
const ClipTimeFormat = "20060102_150405"

// insertWait bounds how long a finished clip waits for its alert row.
const insertWait = 5 * time.Second

// Recorder is the clip recording side of the pipeline. *recorder.Recorder satisfies it.
type Recorder interface {
	Begin(pre []model.Frame, target time.Duration, path string) (string, error)
	Feed(frame model.Frame)
	IsActive() bool
}

// Notifier delivers alert messages. *notify.Notifier satisfies it.
type Notifier interface {
	Notify(msg notify.Message)
}

// RecordAppender accepts event log records. *eventlog.EventLogger satisfies it.
type RecordAppender interface {
	Append(rec model.LogRecord)
}

// Publisher fans alert events out to a broker or live clients.
type Publisher interface {
	Name() string
	Publish(event dto.AlertEvent) error
}

// Submitter schedules background work. *worker.Pool satisfies it.
type Submitter interface {
	Submit(name string, run func(ctx context.Context)) bool
}

// Uploader copies finished clips to object storage. *storage.Uploader satisfies it.
type Uploader interface {
	Upload(ctx context.Context, path string, triggeredAt time.Time) (string, error)
}

// Annotator returns a copy of frame with zones and detections drawn on it.
type Annotator func(frame model.Frame, detections []model.Detection, zones []model.Zone) model.Frame

// Options holds the alerting settings the pipeline reads at construction.
type Options struct {
	ROIEnabled          bool
	LogOutsideZones     bool
	WatchedClasses      []string
	ConfidenceThreshold float64
	Cooldown            time.Duration
	PreEvent            time.Duration
	PostEvent           time.Duration
	FPS                 float64
	ClipsDir            string
}

// OptionsFromConfig extracts pipeline options from cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		ROIEnabled:          cfg.Alerting.ROIEnabled,
		LogOutsideZones:     cfg.Alerting.LogOutsideZones,
		WatchedClasses:      cfg.Alerting.WatchedClasses,
		ConfidenceThreshold: cfg.Alerting.ConfidenceThreshold,
		Cooldown:            cfg.Alerting.Cooldown,
		PreEvent:            cfg.Alerting.PreEvent,
		PostEvent:           cfg.Alerting.PostEvent,
		FPS:                 cfg.Source.FPS,
		ClipsDir:            cfg.Output.ClipsDir,
	}
}

// ClipDuration is the full length of an alert clip.
func (o Options) ClipDuration() time.Duration {
	return o.PreEvent + o.PostEvent
}

// Deps are the collaborators of a Pipeline. Recorder, Events and Pool are
// required; the rest may be left nil.
type Deps struct {
	Recorder   Recorder
	Notifier   Notifier
	Events     RecordAppender
	Pool       Submitter
	Alerts     repository.AlertRepository
	Publishers []Publisher
	Uploader   Uploader
	Annotate   Annotator
}

// Stats is a point-in-time view of pipeline activity. Cooldowns are those
// still running at the timestamp of the latest frame.
type Stats struct {
	FramesProcessed uint64           `json:"frames_processed"`
	Detections      uint64           `json:"detections"`
	Alerts          uint64           `json:"alerts"`
	SkippedBusy     uint64           `json:"skipped_busy"`
	BufferedFrames  int              `json:"buffered_frames"`
	EvictedFrames   uint64           `json:"evicted_frames"`
	LastAlert       *model.Alert     `json:"last_alert,omitempty"`
	Cooldowns       []alert.Cooldown `json:"cooldowns,omitempty"`
}

type pendingAlert struct {
	alert    model.Alert
	inserted chan struct{}
	started  chan struct{} // closed once the alert event is out
}

// Pipeline evaluates the detections of each frame against the configured
// zones and turns permitted triggers into clips, emails, log records and
// events. Process must be called from a single goroutine.
type Pipeline struct {
	opts    Options
	watched map[string]bool
	zones   *zone.Index
	buffer  *storage.FrameBuffer
	gate    *alert.Gate
	deps    Deps
	logger  *logger.Logger

	frames      atomic.Uint64
	detections  atomic.Uint64
	alerts      atomic.Uint64
	skippedBusy atomic.Uint64
	lastFrameAt atomic.Int64 // unix nanos of the latest frame

	mu        sync.Mutex
	pending   map[string]*pendingAlert // keyed by clip path
	lastAlert *model.Alert
}

// New creates a Pipeline over zones with a pre-event buffer sized from
// opts.PreEvent and opts.FPS.
func New(opts Options, zones []model.Zone, deps Deps, logger *logger.Logger) *Pipeline {
	watched := lo.SliceToMap(opts.WatchedClasses, func(c string) (string, bool) {
		return strings.ToLower(c), true
	})
	return &Pipeline{
		opts:    opts,
		watched: watched,
		zones:   zone.NewIndex(zones),
		buffer:  storage.NewFrameBuffer(storage.CapacityFor(opts.PreEvent, opts.FPS)),
		gate:    alert.NewGate(opts.Cooldown),
		deps:    deps,
		logger:  logger,
		pending: make(map[string]*pendingAlert),
	}
}

// Process handles one frame and its detections. The frame always enters the
// pre-event buffer; now is the frame timestamp.
func (p *Pipeline) Process(frame model.Frame, detections []model.Detection) {
	start := time.Now()

	if p.deps.Annotate != nil {
		frame = p.deps.Annotate(frame, detections, p.zones.Zones())
	}

	// The running session gets the frame before the buffer so a session
	// begun below is seeded with it exactly once.
	p.deps.Recorder.Feed(frame)
	p.buffer.Push(frame)
	p.frames.Add(1)
	p.lastFrameAt.Store(frame.Timestamp.UnixNano())

	for _, d := range detections {
		p.evaluate(frame, d)
	}

	metrics.RecordFrame(float64(time.Since(start).Microseconds()) / 1000)
}

func (p *Pipeline) evaluate(frame model.Frame, d model.Detection) {
	p.detections.Add(1)
	now := frame.Timestamp

	if !p.opts.ROIEnabled {
		p.log(model.LogRecord{Timestamp: now, Class: d.Class, Confidence: d.Confidence})
		return
	}

	var zones []model.Zone
	if p.watched[strings.ToLower(d.Class)] {
		zones = p.zones.ZonesContaining(d.Center())
	}
	if len(zones) == 0 {
		if p.opts.LogOutsideZones {
			p.log(model.LogRecord{Timestamp: now, Class: d.Class, Confidence: d.Confidence})
		}
		return
	}

	for _, z := range zones {
		triggered := false
		if d.Confidence >= p.opts.ConfidenceThreshold {
			triggered = p.gate.TryTrigger(z.Name, d.Class, now)
			if !triggered {
				metrics.RecordSkippedTrigger("cooldown")
			}
		} else {
			metrics.RecordSkippedTrigger("low_confidence")
		}

		p.log(model.LogRecord{
			Timestamp:      now,
			Class:          d.Class,
			Confidence:     d.Confidence,
			InZone:         true,
			Zone:           z.Name,
			AlertTriggered: triggered,
		})

		if triggered {
			p.trigger(z, d, now)
		}
	}
}

func (p *Pipeline) log(rec model.LogRecord) {
	metrics.RecordDetection(rec.Class, rec.InZone)
	p.deps.Events.Append(rec)
}

// ClipPath returns the clip location for a trigger at t.
func (p *Pipeline) ClipPath(t time.Time) string {
	return filepath.Join(p.opts.ClipsDir, fmt.Sprintf("alert_%s.avi", t.Format(ClipTimeFormat)))
}

// freePath returns path, or path with a _N suffix when a clip of that name
// is already on disk.
func freePath(path string) string {
	candidate := path
	stem := strings.TrimSuffix(path, filepath.Ext(path))
	for n := 1; ; n++ {
		if _, err := os.Stat(candidate); errors.Is(err, os.ErrNotExist) {
			return candidate
		}
		candidate = fmt.Sprintf("%s_%d%s", stem, n, filepath.Ext(path))
	}
}

func (p *Pipeline) trigger(z model.Zone, d model.Detection, now time.Time) {
	a := model.Alert{
		ID:          uuid.NewString(),
		Zone:        z.Name,
		Class:       d.Class,
		Confidence:  d.Confidence,
		Box:         d.Box,
		TriggeredAt: now,
		Status:      model.AlertRecording,
	}
	p.alerts.Add(1)
	metrics.RecordAlert(z.Name, d.Class)
	p.logger.Info("🚨 %s detected in %s (%.2f)", d.Class, z.Name, d.Confidence)

	path := p.ClipPath(now)
	pa := &pendingAlert{inserted: make(chan struct{}), started: make(chan struct{})}

	p.mu.Lock()
	_, clash := p.pending[path]
	if !clash {
		path = freePath(path)
		a.ClipPath = path
		pa.alert = a
		p.pending[path] = pa
	}
	p.mu.Unlock()

	var err error
	if clash {
		err = model.ErrBusy
	} else {
		_, err = p.deps.Recorder.Begin(p.buffer.Snapshot(), p.opts.ClipDuration(), path)
	}

	if err != nil {
		if !clash {
			p.mu.Lock()
			delete(p.pending, path)
			p.mu.Unlock()
		}
		a.ClipPath = ""
		a.Status = model.AlertSkippedBusy
		if errors.Is(err, model.ErrBusy) {
			p.skippedBusy.Add(1)
			metrics.RecordSkippedTrigger("busy")
			p.logger.Warning("Recorder busy - no clip for %s in %s", d.Class, z.Name)
		} else {
			metrics.RecordSkippedTrigger("recorder")
			p.logger.Error("Could not start clip for %s in %s: %v", d.Class, z.Name, err)
		}
		p.setLastAlert(a)
		p.persist(a, nil)
		p.publish(dto.NewAlertEvent(dto.EventAlert, a))
		p.notify(a, "")
		return
	}

	p.setLastAlert(a)
	p.persist(a, pa.inserted)
	p.publish(dto.NewAlertEvent(dto.EventAlert, a))
	close(pa.started)
}

// OnRecordingComplete finishes the alert whose clip just closed. It is the
// recorder's completion callback and runs off the frame loop.
func (p *Pipeline) OnRecordingComplete(res recorder.Result) {
	p.mu.Lock()
	pa, ok := p.pending[res.Path]
	delete(p.pending, res.Path)
	p.mu.Unlock()
	if !ok {
		p.logger.Warning("Finished clip %s has no pending alert", res.Path)
		return
	}
	// A clip seeded entirely from the buffer can close before trigger returns.
	<-pa.started

	a := pa.alert
	a.Frames = res.Frames
	eventType := dto.EventClipReady
	attachment := res.Path
	if res.Err != nil {
		a.Status = model.AlertClipFailed
		a.ClipPath = ""
		eventType = dto.EventClipFail
		attachment = ""
	} else {
		a.Status = model.AlertClipReady
	}
	p.setLastAlert(a)

	if p.deps.Alerts != nil {
		select {
		case <-pa.inserted:
		case <-time.After(insertWait):
			p.logger.Warning("Alert %s not stored yet - updating anyway", a.ID)
		}
		if err := p.deps.Alerts.UpdateClip(a.ID, a.ClipPath, a.Frames, a.Status); err != nil {
			p.logger.Error("Failed to update alert %s: %v", a.ID, err)
		}
	}

	event := dto.NewAlertEvent(eventType, a)
	if res.Err != nil {
		event.Error = res.Err.Error()
	}
	p.publish(event)
	p.notify(a, attachment)

	if res.Err == nil && p.deps.Uploader != nil {
		p.submit("upload", func(ctx context.Context) {
			key, err := p.deps.Uploader.Upload(ctx, res.Path, a.TriggeredAt)
			metrics.RecordDelivery("minio", err)
			if err != nil {
				p.logger.Error("Upload of %s failed: %v", res.Path, err)
				return
			}
			p.logger.Info("☁️  Uploaded %s as %s", res.Path, key)
		})
	}
}

func (p *Pipeline) persist(a model.Alert, inserted chan struct{}) {
	if p.deps.Alerts == nil {
		if inserted != nil {
			close(inserted)
		}
		return
	}
	ok := p.submit("store_alert", func(ctx context.Context) {
		if inserted != nil {
			defer close(inserted)
		}
		if err := p.deps.Alerts.Insert(&a); err != nil {
			p.logger.Error("Failed to store alert %s: %v", a.ID, err)
		}
	})
	if !ok && inserted != nil {
		close(inserted)
	}
}

func (p *Pipeline) publish(event dto.AlertEvent) {
	for _, pub := range p.deps.Publishers {
		p.submit("publish_"+pub.Name(), func(ctx context.Context) {
			err := pub.Publish(event)
			metrics.RecordDelivery(pub.Name(), err)
			if err != nil {
				p.logger.Warning("Publishing %s event %s to %s failed: %v", event.Type, event.ID, pub.Name(), err)
			}
		})
	}
}

func (p *Pipeline) notify(a model.Alert, attachment string) {
	if p.deps.Notifier == nil {
		return
	}
	p.deps.Notifier.Notify(Message(a, attachment))
}

func (p *Pipeline) submit(name string, run func(ctx context.Context)) bool {
	return p.deps.Pool.Submit(name, run)
}

// Message composes the alert email for a.
func Message(a model.Alert, attachment string) notify.Message {
	body := fmt.Sprintf("A %s was detected in zone %q at %s with confidence %.2f.",
		a.Class, a.Zone, a.TriggeredAt.Format("2006-01-02 15:04:05"), a.Confidence)
	switch a.Status {
	case model.AlertSkippedBusy:
		body += "\nNo clip was recorded because another recording was in progress."
	case model.AlertClipFailed:
		body += "\nThe clip could not be saved."
	case model.AlertClipReady:
		body += fmt.Sprintf("\nThe attached clip has %d frames.", a.Frames)
	}
	return notify.Message{
		Subject:        fmt.Sprintf("🚨 ALERT: %s detected in %s", a.Class, a.Zone),
		Body:           body,
		AttachmentPath: attachment,
	}
}

func (p *Pipeline) setLastAlert(a model.Alert) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastAlert = &a
}

// Stats returns counters for the status endpoint.
func (p *Pipeline) Stats() Stats {
	p.mu.Lock()
	last := p.lastAlert
	p.mu.Unlock()

	var lastCopy *model.Alert
	if last != nil {
		c := *last
		lastCopy = &c
	}
	stats := Stats{
		FramesProcessed: p.frames.Load(),
		Detections:      p.detections.Load(),
		Alerts:          p.alerts.Load(),
		SkippedBusy:     p.skippedBusy.Load(),
		BufferedFrames:  p.buffer.Len(),
		EvictedFrames:   p.buffer.Evicted(),
		LastAlert:       lastCopy,
	}
	if p.frames.Load() > 0 {
		stats.Cooldowns = p.gate.Cooling(time.Unix(0, p.lastFrameAt.Load()))
	}
	return stats
}

// Zones returns the configured zones in order.
func (p *Pipeline) Zones() []model.Zone {
	return p.zones.Zones()
}
