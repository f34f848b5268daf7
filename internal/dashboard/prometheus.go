package dashboard

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/savegress/amldesk/pkg/models"
)

var (
	clientsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "amldesk_clients_total",
		Help: "Clients in the last dashboard snapshot",
	})

	clientsByBand = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "amldesk_clients_by_band",
		Help: "Clients per AML risk band in the last dashboard snapshot",
	}, []string{"band"})

	avgOperationalScore = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "amldesk_avg_operational_score",
		Help: "Mean behavioral score of the population",
	})

	refreshSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "amldesk_dashboard_refresh_seconds",
		Help:    "Dashboard refresh duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
	})

	refreshErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "amldesk_dashboard_refresh_errors_total",
		Help: "Failed dashboard refreshes",
	})
)

func observe(m Metrics) {
	clientsTotal.Set(float64(m.Total))
	clientsByBand.WithLabelValues(string(models.RiskBandLow)).Set(float64(m.Low))
	clientsByBand.WithLabelValues(string(models.RiskBandMedium)).Set(float64(m.Medium))
	clientsByBand.WithLabelValues(string(models.RiskBandHigh)).Set(float64(m.High))
	avgOperationalScore.Set(float64(m.AvgOperational))
}
