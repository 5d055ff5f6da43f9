package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "clinicbook"

// SchedulingMetrics exposes counters for booking and queue flows.
type SchedulingMetrics struct {
	bookingTotal    *prometheus.CounterVec
	completionTotal prometheus.Counter
	queueShiftTotal prometheus.Counter
	cancelTotal     *prometheus.CounterVec
}

func NewSchedulingMetrics(reg prometheus.Registerer) *SchedulingMetrics {
	m := &SchedulingMetrics{
		bookingTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduling",
			Name:      "booking_total",
			Help:      "Booking attempts by outcome",
		}, []string{"result", "source"}),
		completionTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduling",
			Name:      "completion_total",
			Help:      "Appointments marked completed",
		}),
		queueShiftTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduling",
			Name:      "queue_shift_total",
			Help:      "Appointments moved by queue reflow after a completion",
		}),
		cancelTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduling",
			Name:      "cancel_total",
			Help:      "Appointments cancelled, by mode",
		}, []string{"mode"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingTotal, m.completionTotal, m.queueShiftTotal, m.cancelTotal)
	return m
}

// ObserveBooking records one booking attempt. result is "booked" or an error kind.
func (m *SchedulingMetrics) ObserveBooking(result, source string) {
	if m == nil {
		return
	}
	m.bookingTotal.WithLabelValues(result, source).Inc()
}

func (m *SchedulingMetrics) ObserveCompletion(shifted int) {
	if m == nil {
		return
	}
	m.completionTotal.Inc()
	if shifted > 0 {
		m.queueShiftTotal.Add(float64(shifted))
	}
}

func (m *SchedulingMetrics) ObserveCancel(deleted bool) {
	if m == nil {
		return
	}
	mode := "cancel"
	if deleted {
		mode = "delete"
	}
	m.cancelTotal.WithLabelValues(mode).Inc()
}

// ConversationMetrics exposes counters/histograms for the booking dialog.
type ConversationMetrics struct {
	turnTotal        *prometheus.CounterVec
	phrasingFallback *prometheus.CounterVec
	turnLatency      prometheus.Histogram
	jobsTotal        *prometheus.CounterVec
}

func NewConversationMetrics(reg prometheus.Registerer) *ConversationMetrics {
	m := &ConversationMetrics{
		turnTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "conversation",
			Name:      "turn_total",
			Help:      "Processed inbound messages by resulting state and outcome",
		}, []string{"state", "outcome"}),
		phrasingFallback: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "conversation",
			Name:      "phrasing_fallback_total",
			Help:      "Replies that used canned text instead of generated phrasing",
		}, []string{"reason"}),
		turnLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "conversation",
			Name:      "turn_latency_seconds",
			Help:      "Latency of handling one inbound message",
			Buckets:   prometheus.DefBuckets,
		}),
		jobsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "conversation",
			Name:      "jobs_total",
			Help:      "Queued conversation jobs handled by the worker",
		}, []string{"status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.turnTotal, m.phrasingFallback, m.turnLatency, m.jobsTotal)
	return m
}

func (m *ConversationMetrics) ObserveTurn(state, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.turnTotal.WithLabelValues(state, outcome).Inc()
	m.turnLatency.Observe(seconds)
}

func (m *ConversationMetrics) ObservePhrasingFallback(reason string) {
	if m == nil {
		return
	}
	m.phrasingFallback.WithLabelValues(reason).Inc()
}

func (m *ConversationMetrics) ObserveJob(status string) {
	if m == nil {
		return
	}
	m.jobsTotal.WithLabelValues(status).Inc()
}
