package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics 采集指标，nil 时所有方法为空操作
type Metrics struct {
	PagesTotal    *prometheus.CounterVec // result: processed / skipped
	RecordsSaved  *prometheus.CounterVec
	RecordsFailed *prometheus.CounterVec
	RunsTotal     *prometheus.CounterVec // status: success / partial / failed
	RunDuration   prometheus.Histogram
	CurrentPage   *prometheus.GaugeVec
}

// NewMetrics 在 reg 上注册采集指标
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		PagesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_total",
			Help:      "Listing pages handled, by result",
		}, []string{"come_key", "result"}),
		RecordsSaved: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_saved_total",
			Help:      "Videos inserted or updated",
		}, []string{"come_key"}),
		RecordsFailed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_failed_total",
			Help:      "Videos that failed to fetch or save",
		}, []string{"come_key"}),
		RunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Collection runs, by final status",
		}, []string{"come_key", "status"}),
		RunDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of a collection run",
			Buckets:   prometheus.ExponentialBuckets(10, 2, 12),
		}),
		CurrentPage: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "current_page",
			Help:      "Last listing page processed",
		}, []string{"come_key"}),
	}
}

func (m *Metrics) observePage(comeKey string, page int, processed bool) {
	if m == nil {
		return
	}
	result := "skipped"
	if processed {
		result = "processed"
		m.CurrentPage.WithLabelValues(comeKey).Set(float64(page))
	}
	m.PagesTotal.WithLabelValues(comeKey, result).Inc()
}

func (m *Metrics) observeRecords(comeKey string, saved, failed int) {
	if m == nil {
		return
	}
	m.RecordsSaved.WithLabelValues(comeKey).Add(float64(saved))
	m.RecordsFailed.WithLabelValues(comeKey).Add(float64(failed))
}

func (m *Metrics) observeRun(comeKey, status string, seconds float64) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(comeKey, status).Inc()
	m.RunDuration.Observe(seconds)
}
