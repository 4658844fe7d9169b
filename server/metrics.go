package server

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts what the hub does. All fields are optional at the
// hub; a nil Metrics disables collection.
type Metrics struct {
	DeltasTotal        prometheus.Counter
	FullUpdatesTotal   prometheus.Counter
	CatchUpMissesTotal prometheus.Counter
	SessionDropsTotal  prometheus.Counter
	ActiveSessions     prometheus.Gauge
}

func NewMetrics() *Metrics {
	return &Metrics{
		DeltasTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "treesync_hub_deltas_total",
			Help: "Deltas confirmed into the serial log",
		}),
		FullUpdatesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "treesync_hub_full_updates_total",
			Help: "Full updates served to clients",
		}),
		CatchUpMissesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "treesync_hub_catchup_misses_total",
			Help: "Catch-up requests that fell outside the incremental window",
		}),
		SessionDropsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "treesync_hub_session_drops_total",
			Help: "Sessions dropped for overflowing their update queue",
		}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "treesync_hub_active_sessions",
			Help: "Currently connected client sessions",
		}),
	}
}

func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		m.DeltasTotal,
		m.FullUpdatesTotal,
		m.CatchUpMissesTotal,
		m.SessionDropsTotal,
		m.ActiveSessions,
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
