package alfred

import (
	"errors"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the core's Prometheus instrumentation. A record too large
// to fit any packet, and a cache entry actually changing, are both silent
// in the underlying protocol logic; this type surfaces both as counters
// instead of changing that behavior.
type Metrics struct {
	registerOnce sync.Once

	framesDropped           *prometheus.CounterVec
	cacheChanged            *prometheus.CounterVec
	recordsSkippedOversized prometheus.Counter
	transactionsFinished    *prometheus.CounterVec
	transactionsSwept       prometheus.Counter
	cacheSize               prometheus.GaugeFunc
}

// NewMetrics builds the counter/gauge set. sizeFn is polled lazily by the
// cacheSize gauge so construction never needs a populated cache.
func NewMetrics(sizeFn func() int) *Metrics {
	m := &Metrics{
		framesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "alfred",
			Name:      "frames_dropped_total",
			Help:      "Frames rejected or ignored by the dispatcher, by reason.",
		}, []string{"reason"}),
		cacheChanged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "alfred",
			Subsystem: "cache",
			Name:      "changed_total",
			Help:      "Dataset cache entries created or mutated, by data type.",
		}, []string{"type"}),
		recordsSkippedOversized: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "alfred",
			Subsystem: "transmit",
			Name:      "records_skipped_oversized_total",
			Help:      "Dataset records silently skipped because they alone exceed a packet budget.",
		}),
		transactionsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "alfred",
			Subsystem: "transaction",
			Name:      "finished_total",
			Help:      "Transactions drained after completion, by role.",
		}, []string{"role"}),
		transactionsSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "alfred",
			Subsystem: "transaction",
			Name:      "swept_total",
			Help:      "Transactions reaped by the retention sweeper before completing.",
		}),
	}
	m.cacheSize = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "alfred",
		Subsystem: "cache",
		Name:      "entries",
		Help:      "Current dataset cache entry count.",
	}, func() float64 { return float64(sizeFn()) })
	return m
}

// Register registers every collector with the default Prometheus registry.
// Safe to call more than once, and on more than one Metrics instance: a
// collector that an earlier instance already registered is left in place,
// and this instance's counterpart stays unregistered, so only the first
// instance's values are exported.
func (m *Metrics) Register() {
	m.registerOnce.Do(func() {
		for _, c := range []prometheus.Collector{
			m.framesDropped,
			m.cacheChanged,
			m.recordsSkippedOversized,
			m.transactionsFinished,
			m.transactionsSwept,
			m.cacheSize,
		} {
			if err := prometheus.Register(c); err != nil {
				var already prometheus.AlreadyRegisteredError
				if !errors.As(err, &already) {
					panic(err)
				}
			}
		}
	})
}

func (m *Metrics) frameDropped(reason string) {
	if m == nil {
		return
	}
	m.framesDropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) cacheEntryChanged(dataType uint8) {
	if m == nil {
		return
	}
	m.cacheChanged.WithLabelValues(strconv.Itoa(int(dataType))).Inc()
}

func (m *Metrics) recordSkippedOversized() {
	if m == nil {
		return
	}
	m.recordsSkippedOversized.Inc()
}

func (m *Metrics) transactionFinished(role string) {
	if m == nil {
		return
	}
	m.transactionsFinished.WithLabelValues(role).Inc()
}

func (m *Metrics) transactionSwept() {
	if m == nil {
		return
	}
	m.transactionsSwept.Inc()
}
