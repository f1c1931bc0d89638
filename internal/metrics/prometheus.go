package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

// Collectors are built eagerly so packages can record before (or without)
// InitCustomMetrics registering them.
var (
	CodesIssuedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "authcodes_codes_issued_total",
		Help: "Total number of one-time codes issued, by kind.",
	}, []string{"kind"})

	VerificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "authcodes_verifications_total",
		Help: "Total number of code checks, by kind and result.",
	}, []string{"kind", "result"})

	EmailsSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "authcodes_emails_sent_total",
		Help: "Total number of code emails handed to a transport, by transport and result.",
	}, []string{"transport", "result"})

	SweepDeletedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "authcodes_sweep_deleted_total",
		Help: "Total number of expired code records deleted by the sweeper, by kind.",
	}, []string{"kind"})

	SweepLastRun = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "authcodes_sweep_last_run_timestamp_seconds",
		Help: "Unix time of the last completed sweep.",
	})

	SessionsRevokedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "authcodes_sessions_revoked_total",
		Help: "Total number of sessions revoked by password resets.",
	})

	RPCRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "authcodes_rpc_requests_total",
		Help: "Total number of RPCs handled, by procedure and Connect code.",
	}, []string{"procedure", "code"})

	RPCDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "authcodes_rpc_duration_seconds",
		Help:    "RPC handling latency, by procedure.",
		Buckets: prometheus.DefBuckets,
	}, []string{"procedure"})
)

// InitCustomMetrics registers the collectors with reg.
// It should be called once at application startup.
func InitCustomMetrics(reg prometheus.Registerer) {
	if reg == nil {
		log.Error().Msg("Prometheus registry is nil, cannot register custom metrics.")
		return
	}
	collectors := map[string]prometheus.Collector{
		"CodesIssuedTotal":     CodesIssuedTotal,
		"VerificationsTotal":   VerificationsTotal,
		"EmailsSent":           EmailsSent,
		"SweepDeletedTotal":    SweepDeletedTotal,
		"SweepLastRun":         SweepLastRun,
		"SessionsRevokedTotal": SessionsRevokedTotal,
		"RPCRequestsTotal":     RPCRequestsTotal,
		"RPCDuration":          RPCDuration,
	}
	for name, c := range collectors {
		if err := reg.Register(c); err != nil {
			log.Warn().Err(err).Str("metric", name).Msg("Failed to register metric")
		}
	}
	log.Info().Msg("Custom Prometheus metrics registered.")
}
