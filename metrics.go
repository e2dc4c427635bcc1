package workbench

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics instruments load and save activity. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	AssetsLoaded   prometheus.Counter
	LoadFailures   prometheus.Counter
	Saves          *prometheus.CounterVec
	ModifiedAssets prometheus.Gauge
	LoadDuration   prometheus.Histogram
}

// NewMetrics creates the collectors and registers them when reg is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AssetsLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tag_workbench_assets_loaded_total",
			Help: "Assets successfully read from the project.",
		}),
		LoadFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tag_workbench_asset_load_failures_total",
			Help: "Assets that could not be read during a load.",
		}),
		Saves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tag_workbench_asset_saves_total",
			Help: "Single asset saves by result.",
		}, []string{"result"}),
		ModifiedAssets: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tag_workbench_modified_assets",
			Help: "Assets with unsaved tag changes.",
		}),
		LoadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tag_workbench_load_duration_seconds",
			Help:    "Time taken by a full asset load.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	if reg != nil {
		reg.MustRegister(m.AssetsLoaded, m.LoadFailures, m.Saves, m.ModifiedAssets, m.LoadDuration)
	}
	return m
}

func (m *Metrics) observeLoad(loaded, failed int, started time.Time) {
	if m == nil {
		return
	}
	m.AssetsLoaded.Add(float64(loaded))
	m.LoadFailures.Add(float64(failed))
	m.LoadDuration.Observe(time.Since(started).Seconds())
}

func (m *Metrics) observeSave(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.Saves.WithLabelValues("error").Inc()
		return
	}
	m.Saves.WithLabelValues("success").Inc()
}

func (m *Metrics) setModified(n int) {
	if m == nil {
		return
	}
	m.ModifiedAssets.Set(float64(n))
}
