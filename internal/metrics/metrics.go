package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "rollcall"

	rosterSubsystem   = "roster"
	displaySubsystem  = "display"
	presenceSubsystem = "presence"
	historySubsystem  = "history"
	httpSubsystem     = "http"

	outcomeLabelName = "outcome"
	methodLabelName  = "method"
	routeLabelName   = "route"
	statusLabelName  = "status"
)

// Outcome label values for RosterLifecycle
const (
	OutcomeOpened    = "opened"
	OutcomeClosed    = "closed"
	OutcomeCancelled = "cancelled"
	OutcomeTimeout   = "timeout"
	OutcomeEmpty     = "empty"
)

var (
	registerOnce sync.Once

	RosterLifecycle = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: rosterSubsystem,
			Name:      "lifecycle_total",
			Help:      "Roster lifecycle transitions by outcome",
		}, []string{outcomeLabelName})

	RosterEntries = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: rosterSubsystem,
		Name:      "entries",
		Help:      "Number of entries on the open roster",
	})

	RejectedBatches = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: rosterSubsystem,
		Name:      "rejected_batches_total",
		Help:      "Input batches rejected because of a duplicate name",
	})

	RefreshesPushed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: displaySubsystem,
		Name:      "refreshes_pushed_total",
		Help:      "Display refreshes pushed to the target",
	})

	RefreshesDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: displaySubsystem,
		Name:      "refreshes_dropped_total",
		Help:      "Non-forced display refreshes dropped by the throttle",
	})

	RefreshErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: displaySubsystem,
		Name:      "refresh_errors_total",
		Help:      "Display refreshes that failed at the target",
	})

	PresenceEvents = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: presenceSubsystem,
		Name:      "events_total",
		Help:      "Presence events accepted by the tracker",
	})

	PresenceEventsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: presenceSubsystem,
		Name:      "events_dropped_total",
		Help:      "Presence events dropped because the event queue was full",
	})

	Sweeps = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: presenceSubsystem,
		Name:      "sweeps_total",
		Help:      "Periodic presence sweeps performed",
	})

	SessionsPersisted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: historySubsystem,
		Name:      "sessions_persisted_total",
		Help:      "Closed sessions appended to the store",
	})

	PersistenceFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: historySubsystem,
		Name:      "persistence_failures_total",
		Help:      "Closed sessions that could not be persisted after retries",
	})

	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: httpSubsystem,
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status",
		}, []string{methodLabelName, routeLabelName, statusLabelName})

	PanicsRecovered = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: httpSubsystem,
		Name:      "panics_recovered_total",
		Help:      "Handler panics turned into error responses",
	})

	// HTTPDuration is in milliseconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: httpSubsystem,
			Name:      "request_duration_ms",
			Help:      "HTTP request latency in milliseconds",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 14),
		}, []string{methodLabelName, routeLabelName})
)

// Register registers every collector with r. Only the first call has an effect.
func Register(r prometheus.Registerer) {
	registerOnce.Do(func() {
		r.MustRegister(
			RosterLifecycle,
			RosterEntries,
			RejectedBatches,
			RefreshesPushed,
			RefreshesDropped,
			RefreshErrors,
			PresenceEvents,
			PresenceEventsDropped,
			Sweeps,
			SessionsPersisted,
			PersistenceFailures,
			HTTPRequests,
			HTTPDuration,
			PanicsRecovered,
		)
	})
}
