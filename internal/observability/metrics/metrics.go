package metrics

import "github.com/prometheus/client_golang/prometheus"

// ConversationMetrics exposes counters for the chat conversation engine.
type ConversationMetrics struct {
	eventsTotal      *prometheus.CounterVec
	transitionsTotal *prometheus.CounterVec
	repliesTotal     *prometheus.CounterVec
}

func NewConversationMetrics(reg prometheus.Registerer) *ConversationMetrics {
	m := &ConversationMetrics{
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "yakushift",
			Subsystem: "conversation",
			Name:      "events_total",
			Help:      "Total inbound chat events by kind and sender role",
		}, []string{"kind", "role"}),
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "yakushift",
			Subsystem: "conversation",
			Name:      "step_transitions_total",
			Help:      "Total conversation step transitions",
		}, []string{"from", "to"}),
		repliesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "yakushift",
			Subsystem: "conversation",
			Name:      "replies_total",
			Help:      "Total outbound replies by outcome",
		}, []string{"outcome"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.eventsTotal, m.transitionsTotal, m.repliesTotal)
	return m
}

func (m *ConversationMetrics) ObserveEvent(kind, role string) {
	if m == nil {
		return
	}
	if role == "" {
		role = "unknown"
	}
	m.eventsTotal.WithLabelValues(kind, role).Inc()
}

func (m *ConversationMetrics) ObserveTransition(from, to string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(from, to).Inc()
}

func (m *ConversationMetrics) ObserveReply(outcome string) {
	if m == nil {
		return
	}
	m.repliesTotal.WithLabelValues(outcome).Inc()
}

// DispatchMetrics exposes counters/histograms for request fan-out.
type DispatchMetrics struct {
	dispatchesTotal    *prometheus.CounterVec
	notificationsTotal *prometheus.CounterVec
	jobLatency         prometheus.Histogram
	queueDepth         prometheus.Gauge
}

func NewDispatchMetrics(reg prometheus.Registerer) *DispatchMetrics {
	m := &DispatchMetrics{
		dispatchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "yakushift",
			Subsystem: "dispatch",
			Name:      "dispatches_total",
			Help:      "Total dispatch jobs by outcome",
		}, []string{"outcome"}),
		notificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "yakushift",
			Subsystem: "dispatch",
			Name:      "notifications_total",
			Help:      "Total pharmacist notifications by delivery status",
		}, []string{"status"}),
		jobLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "yakushift",
			Subsystem: "dispatch",
			Name:      "job_latency_seconds",
			Help:      "Latency of dispatch job processing",
			Buckets:   prometheus.DefBuckets,
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "yakushift",
			Subsystem: "dispatch",
			Name:      "queue_depth",
			Help:      "Dispatch jobs waiting in the queue",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.dispatchesTotal, m.notificationsTotal, m.jobLatency, m.queueDepth)
	return m
}

func (m *DispatchMetrics) ObserveDispatch(outcome string) {
	if m == nil {
		return
	}
	m.dispatchesTotal.WithLabelValues(outcome).Inc()
}

func (m *DispatchMetrics) ObserveNotification(status string) {
	if m == nil {
		return
	}
	m.notificationsTotal.WithLabelValues(status).Inc()
}

func (m *DispatchMetrics) ObserveJobLatency(seconds float64) {
	if m == nil {
		return
	}
	m.jobLatency.Observe(seconds)
}

func (m *DispatchMetrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

// ArbitrationMetrics exposes counters for application and confirmation
// outcomes.
type ArbitrationMetrics struct {
	applicationsTotal  *prometheus.CounterVec
	confirmationsTotal *prometheus.CounterVec
	filledTotal        prometheus.Counter
}

func NewArbitrationMetrics(reg prometheus.Registerer) *ArbitrationMetrics {
	m := &ArbitrationMetrics{
		applicationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "yakushift",
			Subsystem: "arbitration",
			Name:      "applications_total",
			Help:      "Total pharmacist applications by result",
		}, []string{"result"}),
		confirmationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "yakushift",
			Subsystem: "arbitration",
			Name:      "confirmations_total",
			Help:      "Total store confirmation decisions by result",
		}, []string{"result"}),
		filledTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "yakushift",
			Subsystem: "arbitration",
			Name:      "requests_filled_total",
			Help:      "Total requests that reached their required headcount",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.applicationsTotal, m.confirmationsTotal, m.filledTotal)
	return m
}

func (m *ArbitrationMetrics) ObserveApplication(result string) {
	if m == nil {
		return
	}
	m.applicationsTotal.WithLabelValues(result).Inc()
}

func (m *ArbitrationMetrics) ObserveConfirmation(result string) {
	if m == nil {
		return
	}
	m.confirmationsTotal.WithLabelValues(result).Inc()
}

func (m *ArbitrationMetrics) ObserveFilled() {
	if m == nil {
		return
	}
	m.filledTotal.Inc()
}

// ReminderMetrics exposes counters for the reminder sweeper.
type ReminderMetrics struct {
	sentTotal       prometheus.Counter
	suppressedTotal prometheus.Counter
}

func NewReminderMetrics(reg prometheus.Registerer) *ReminderMetrics {
	m := &ReminderMetrics{
		sentTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "yakushift",
			Subsystem: "reminder",
			Name:      "sent_total",
			Help:      "Total reminders delivered to pharmacists",
		}),
		suppressedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "yakushift",
			Subsystem: "reminder",
			Name:      "suppressed_total",
			Help:      "Total reminders suppressed by the per-pair cap",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.sentTotal, m.suppressedTotal)
	return m
}

func (m *ReminderMetrics) ObserveSent() {
	if m == nil {
		return
	}
	m.sentTotal.Inc()
}

func (m *ReminderMetrics) ObserveSuppressed() {
	if m == nil {
		return
	}
	m.suppressedTotal.Inc()
}

// WebhookMetrics exposes counters/histograms for the inbound webhook.
type WebhookMetrics struct {
	inboundTotal      *prometheus.CounterVec
	webhookLatency    *prometheus.HistogramVec
	signatureFailures prometheus.Counter
}

func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	m := &WebhookMetrics{
		inboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "yakushift",
			Subsystem: "webhook",
			Name:      "inbound_total",
			Help:      "Total inbound webhook events by kind and status",
		}, []string{"kind", "status"}),
		webhookLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "yakushift",
			Subsystem: "webhook",
			Name:      "latency_seconds",
			Help:      "Latency of webhook event processing",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		signatureFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "yakushift",
			Subsystem: "webhook",
			Name:      "signature_failures_total",
			Help:      "Total webhook deliveries rejected for a bad signature",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.inboundTotal, m.webhookLatency, m.signatureFailures)
	return m
}

func (m *WebhookMetrics) ObserveInbound(kind, status string) {
	if m == nil {
		return
	}
	m.inboundTotal.WithLabelValues(kind, status).Inc()
}

func (m *WebhookMetrics) ObserveLatency(kind string, seconds float64) {
	if m == nil {
		return
	}
	m.webhookLatency.WithLabelValues(kind).Observe(seconds)
}

func (m *WebhookMetrics) ObserveSignatureFailure() {
	if m == nil {
		return
	}
	m.signatureFailures.Inc()
}
