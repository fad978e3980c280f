package notifications

import (
	"time"

	"github.com/bissquit/newsroom/internal/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	notificationsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "notifications",
			Name:      "created_total",
			Help:      "Inbox notifications created, by source",
		},
		[]string{"source"},
	)

	publishHandlerRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "notifications",
			Name:      "publish_handler_runs_total",
			Help:      "Publish fan-out handler runs by handler and result",
		},
		[]string{"handler", "result"},
	)

	pushSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "notifications",
			Name:      "push_sent_total",
			Help:      "Push messages processed by status",
		},
		[]string{"status"},
	)

	pushSendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: metrics.Namespace,
			Subsystem: "notifications",
			Name:      "push_send_duration_seconds",
			Help:      "Time to deliver one push message, retries included",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)

	digestRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "notifications",
			Name:      "digest_runs_total",
			Help:      "Daily digest runs by result",
		},
		[]string{"result"},
	)
)

func recordCreated(source string, count int) {
	notificationsCreated.WithLabelValues(source).Add(float64(count))
}

func recordHandlerRun(handler string, err error) {
	result := "success"
	if err != nil {
		result = "failed"
	}
	publishHandlerRuns.WithLabelValues(handler, result).Inc()
}

func recordPush(status string, duration time.Duration) {
	pushSent.WithLabelValues(status).Inc()
	pushSendDuration.Observe(duration.Seconds())
}

func recordDigestRun(result string) {
	digestRuns.WithLabelValues(result).Inc()
}
