package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Labels stay low-cardinality: zones and watched classes come from config.

var (
	FramesProcessedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "zonewatch_frames_processed_total",
			Help: "Frames evaluated by the pipeline",
		},
	)

	FrameLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "zonewatch_frame_latency_ms",
			Help:    "Detection plus pipeline time per frame in milliseconds",
			Buckets: []float64{5, 10, 25, 50, 100, 200, 500, 1000},
		},
	)

	DetectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zonewatch_detections_total",
			Help: "Detections evaluated, by class and zone membership",
		},
		[]string{"class", "in_zone"},
	)

	AlertsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zonewatch_alerts_total",
			Help: "Alerts permitted by the cooldown gate",
		},
		[]string{"zone", "class"},
	)

	TriggersSkippedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zonewatch_triggers_skipped_total",
			Help: "Alerts that could not start a recording",
		},
		[]string{"reason"},
	)

	ClipsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zonewatch_clips_total",
			Help: "Finished recording sessions by result",
		},
		[]string{"result"},
	)

	RecorderActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "zonewatch_recorder_active",
			Help: "1 while a clip is being recorded",
		},
	)

	DeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zonewatch_deliveries_total",
			Help: "Alert deliveries by channel and result",
		},
		[]string{"channel", "result"},
	)

	LogRecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zonewatch_log_records_total",
			Help: "Event log records by sink and result",
		},
		[]string{"sink", "result"},
	)

	TasksDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zonewatch_tasks_dropped_total",
			Help: "Background tasks dropped because the queue was full or closed",
		},
		[]string{"task"},
	)
)

func RecordFrame(latencyMs float64) {
	FramesProcessedTotal.Inc()
	FrameLatency.Observe(latencyMs)
}

func RecordDetection(class string, inZone bool) {
	DetectionsTotal.WithLabelValues(class, boolLabel(inZone)).Inc()
}

func RecordAlert(zone, class string) {
	AlertsTotal.WithLabelValues(zone, class).Inc()
}

func RecordSkippedTrigger(reason string) {
	TriggersSkippedTotal.WithLabelValues(reason).Inc()
}

func RecordClip(ok bool) {
	if ok {
		ClipsTotal.WithLabelValues("ok").Inc()
	} else {
		ClipsTotal.WithLabelValues("failed").Inc()
	}
}

func SetRecorderActive(active bool) {
	if active {
		RecorderActive.Set(1)
	} else {
		RecorderActive.Set(0)
	}
}

func RecordDelivery(channel string, err error) {
	if err != nil {
		DeliveriesTotal.WithLabelValues(channel, "failed").Inc()
		return
	}
	DeliveriesTotal.WithLabelValues(channel, "ok").Inc()
}

func RecordLogRecords(sink string, n int, err error) {
	result := "ok"
	if err != nil {
		result = "failed"
	}
	LogRecordsTotal.WithLabelValues(sink, result).Add(float64(n))
}

func RecordTaskDropped(task string) {
	TasksDroppedTotal.WithLabelValues(task).Inc()
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
