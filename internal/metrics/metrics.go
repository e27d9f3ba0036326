package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	packetsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "netscope",
			Name:      "packets_total",
			Help:      "Total number of normalized packets pulled from the capture source.",
		},
	)

	alertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "netscope",
			Name:      "alerts_total",
			Help:      "Total number of anomaly alerts emitted, partitioned by level.",
		},
		[]string{"level"},
	)

	connectedClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "netscope",
			Name:      "connected_clients",
			Help:      "Number of currently connected streaming subscribers.",
		},
	)

	droppedSubscribersTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "netscope",
			Name:      "dropped_subscribers_total",
			Help:      "Total number of subscribers removed after a failed delivery.",
		},
	)
)

// Register attaches all collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		packetsTotal,
		alertsTotal,
		connectedClients,
		droppedSubscribersTotal,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObservePacket counts one packet through the pipeline.
func ObservePacket() {
	packetsTotal.Inc()
}

// ObserveAlert counts one emitted alert by level.
func ObserveAlert(level string) {
	alertsTotal.WithLabelValues(level).Inc()
}

// SetConnectedClients updates the streaming-subscriber gauge.
func SetConnectedClients(n int) {
	connectedClients.Set(float64(n))
}

// ObserveDroppedSubscriber counts a subscriber removed after delivery
// failure.
func ObserveDroppedSubscriber() {
	droppedSubscribersTotal.Inc()
}
