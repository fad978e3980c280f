package ads

import (
	"github.com/bissquit/newsroom/internal/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	adImpressions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "ads",
			Name:      "impressions_total",
			Help:      "Ad impressions recorded by ad type",
		},
		[]string{"ad_type"},
	)

	adClicks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "ads",
			Name:      "clicks_total",
			Help:      "Ad clicks recorded by ad type",
		},
		[]string{"ad_type"},
	)

	adsServed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "ads",
			Name:      "served_total",
			Help:      "Ads returned by selection, by placement and strategy",
		},
		[]string{"placement", "strategy"},
	)
)

func recordServed(placement, strategy string, count int) {
	adsServed.WithLabelValues(placement, strategy).Add(float64(count))
}
