package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const prefix = "remoteq_"

var (
	jobsSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: prefix + "jobs_submitted_total",
		Help: "Jobs accepted into the pending queue",
	}, []string{"board"})

	jobsCancelled = promauto.NewCounter(prometheus.CounterOpts{
		Name: prefix + "jobs_cancelled_total",
		Help: "Queued jobs removed by cancellation",
	})

	jobsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: prefix + "jobs_finished_total",
		Help: "Jobs that reached a terminal state",
	}, []string{"board", "status"})

	dispatchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    prefix + "dispatch_duration_seconds",
		Help:    "Time spent waiting on the remote device",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 14),
	}, []string{"board"})

	queueLength = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: prefix + "queue_length",
		Help: "Number of jobs in a queue",
	}, []string{"queue"})

	busyDevices = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: prefix + "device_busy",
		Help: "1 while the device runs a job",
	}, []string{"device", "board"})

	sinkFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: prefix + "result_sink_failures_total",
		Help: "Result persistence or notification failures",
	}, []string{"kind"})

	dispatcherRestarts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: prefix + "dispatcher_restarts_total",
		Help: "Dispatcher loops restarted after a crash",
	}, []string{"device"})
)

func RecordSubmitted(board string) { jobsSubmitted.WithLabelValues(board).Inc() }

func RecordCancelled() { jobsCancelled.Inc() }

func RecordFinished(board, status string, took time.Duration) {
	jobsFinished.WithLabelValues(board, status).Inc()
	dispatchDuration.WithLabelValues(board).Observe(took.Seconds())
}

func SetQueueLength(queue string, n int) { queueLength.WithLabelValues(queue).Set(float64(n)) }

func SetDeviceBusy(device, board string, busy bool) {
	v := 0.0
	if busy {
		v = 1
	}
	busyDevices.WithLabelValues(device, board).Set(v)
}

// Sink failure kinds.
const (
	SinkPersist = "persist"
	SinkNotify  = "notify"
	SinkLedger  = "ledger"
)

func RecordSinkFailure(kind string) { sinkFailures.WithLabelValues(kind).Inc() }

func RecordRestart(device string) { dispatcherRestarts.WithLabelValues(device).Inc() }
