package api

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/psaab/metconf/pkg/config"
	"github.com/psaab/metconf/pkg/configstore"
)

// loadStages are the failure stages reported by config.Stage.
var loadStages = []string{"lex", "parse", "register", "validate", "io"}

var recordKinds = []config.RecordKind{
	config.KindDaemon, config.KindProcess, config.KindVisi, config.KindTunable,
}

// storeCollector implements prometheus.Collector, reading the store on each scrape.
type storeCollector struct {
	store *configstore.Store

	loadsTotal      *prometheus.Desc
	loadErrorsTotal *prometheus.Desc
	descriptors     *prometheus.Desc
	lastLoad        *prometheus.Desc
	historyEntries  *prometheus.Desc
	configLoaded    *prometheus.Desc
}

func newCollector(store *configstore.Store) *storeCollector {
	return &storeCollector{
		store: store,

		loadsTotal: prometheus.NewDesc(
			"metconf_loads_total",
			"Total configuration load attempts.",
			[]string{"result"}, nil,
		),
		loadErrorsTotal: prometheus.NewDesc(
			"metconf_load_errors_total",
			"Total failed configuration loads by failing stage.",
			[]string{"stage"}, nil,
		),
		descriptors: prometheus.NewDesc(
			"metconf_descriptors",
			"Descriptors in the active configuration.",
			[]string{"kind"}, nil,
		),
		lastLoad: prometheus.NewDesc(
			"metconf_last_load_timestamp_seconds",
			"Unix time of the last load attempt.",
			nil, nil,
		),
		historyEntries: prometheus.NewDesc(
			"metconf_history_entries",
			"Loads kept for rollback.",
			nil, nil,
		),
		configLoaded: prometheus.NewDesc(
			"metconf_config_loaded",
			"1 if a configuration is active.",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *storeCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.loadsTotal
	ch <- c.loadErrorsTotal
	ch <- c.descriptors
	ch <- c.lastLoad
	ch <- c.historyEntries
	ch <- c.configLoaded
}

// Collect implements prometheus.Collector.
func (c *storeCollector) Collect(ch chan<- prometheus.Metric) {
	st := c.store.Stats()

	ch <- prometheus.MustNewConstMetric(c.loadsTotal, prometheus.CounterValue,
		float64(st.Loads), "success")
	ch <- prometheus.MustNewConstMetric(c.loadsTotal, prometheus.CounterValue,
		float64(st.Failures), "failure")
	for _, stage := range loadStages {
		ch <- prometheus.MustNewConstMetric(c.loadErrorsTotal, prometheus.CounterValue,
			float64(st.FailuresByStage[stage]), stage)
	}

	var lastLoad float64
	if !st.LastLoad.IsZero() {
		lastLoad = float64(st.LastLoad.UnixNano()) / 1e9
	}
	ch <- prometheus.MustNewConstMetric(c.lastLoad, prometheus.GaugeValue, lastLoad)
	ch <- prometheus.MustNewConstMetric(c.historyEntries, prometheus.GaugeValue,
		float64(c.store.HistoryLen()))

	cs := c.store.Active()
	var loaded float64
	if cs != nil {
		loaded = 1
	}
	ch <- prometheus.MustNewConstMetric(c.configLoaded, prometheus.GaugeValue, loaded)
	for _, kind := range recordKinds {
		var n int
		if cs != nil {
			n = cs.Len(kind)
		}
		ch <- prometheus.MustNewConstMetric(c.descriptors, prometheus.GaugeValue,
			float64(n), kind.String())
	}
}
