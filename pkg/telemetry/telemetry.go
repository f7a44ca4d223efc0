package telemetry

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"explora/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
)

var slowThreshold = 200 * time.Millisecond

var (
	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "explora_http_requests_total",
			Help: "HTTP requests handled, by method and status code.",
		},
		[]string{"method", "status"},
	)

	requestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "explora_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		},
	)

	// MessagesAppended counts messages accepted into conversation streams,
	// including edit versions.
	MessagesAppended = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "explora_messages_appended_total",
			Help: "Message records appended to conversation streams.",
		},
	)

	// GroupsComputed counts grouped-view computations.
	GroupsComputed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "explora_groups_computed_total",
			Help: "Grouped thread views computed.",
		},
	)

	// BranchesCreated counts branch anchors created from highlights.
	BranchesCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "explora_branches_created_total",
			Help: "Branch threads created from highlighted text.",
		},
	)

	// GuidesExported counts learning guide exports by format.
	GuidesExported = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "explora_guides_exported_total",
			Help: "Learning guides exported, by format.",
		},
		[]string{"format"},
	)

	// ConversationsArchived counts conversations archived by the idle sweep.
	ConversationsArchived = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "explora_conversations_archived_total",
			Help: "Conversations marked archived by the idle sweep.",
		},
	)
)

func init() {
	prometheus.MustRegister(requestsTotal)
	prometheus.MustRegister(requestDuration)
	prometheus.MustRegister(MessagesAppended)
	prometheus.MustRegister(GroupsComputed)
	prometheus.MustRegister(BranchesCreated)
	prometheus.MustRegister(GuidesExported)
	prometheus.MustRegister(ConversationsArchived)
}

// SetSlowThreshold sets the duration above which requests get a warning log.
func SetSlowThreshold(d time.Duration) {
	if d <= 0 {
		return
	}
	slowThreshold = d
}

// Middleware records request counts and latency and logs slow requests.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		srw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(srw, r)
		dur := time.Since(start)

		requestsTotal.WithLabelValues(r.Method, http.StatusText(srw.status)).Inc()
		requestDuration.Observe(dur.Seconds())

		if dur > slowThreshold {
			logger.Warn("slow_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", srw.status),
				zap.Int64("duration_ms", dur.Milliseconds()),
			)
		}
	})
}

// statusRecorder captures the response status code.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
