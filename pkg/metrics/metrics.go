// Package metrics exposes this node's Prometheus instruments: packet
// outcome counters matching relay.Recorder, plus gauges for the DHT's
// routing-table and outstanding-onionbox sizes. It is the promoted
// form of the original onion collaborator's internal uint64 counters
// and the teacher's promhttp-served /metrics endpoint.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics is the node's Prometheus registry plus its instruments. It
// implements relay.Recorder without importing pkg/relay, so pkg/relay
// tests never pull in a Prometheus registry.
type Metrics struct {
	Registry *prometheus.Registry

	packetsForwarded prometheus.Counter
	packetsDelivered prometheus.Counter
	packetsDropped   *prometheus.CounterVec
	responsesMatched prometheus.Counter

	dhtSize         prometheus.Gauge
	outstandingSize prometheus.Gauge
	rateLimitBuckets prometheus.Gauge
}

// New builds a Metrics instance registered against a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		packetsForwarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pmailnet",
			Subsystem: "relay",
			Name:      "packets_forwarded_total",
			Help:      "Onion packets relayed on to their next hop.",
		}),
		packetsDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pmailnet",
			Subsystem: "relay",
			Name:      "packets_delivered_total",
			Help:      "Onion packets whose innermost layer addressed this node.",
		}),
		packetsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pmailnet",
			Subsystem: "relay",
			Name:      "packets_dropped_total",
			Help:      "Packets dropped before delivery or forwarding, by reason.",
		}, []string{"reason"}),
		responsesMatched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pmailnet",
			Subsystem: "relay",
			Name:      "responses_matched_total",
			Help:      "Unopenable packets successfully matched to an outstanding onion box.",
		}),
		dhtSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "pmailnet",
			Subsystem: "dht",
			Name:      "table_size",
			Help:      "Number of peers currently known to this node's routing table.",
		}),
		outstandingSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "pmailnet",
			Subsystem: "dht",
			Name:      "outstanding_onionboxen",
			Help:      "Number of onion boxes awaiting a response.",
		}),
		rateLimitBuckets: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "pmailnet",
			Subsystem: "relay",
			Name:      "rate_limit_buckets",
			Help:      "Number of distinct source addresses currently tracked by the ingress rate limiter.",
		}),
	}

	reg.MustRegister(
		m.packetsForwarded,
		m.packetsDelivered,
		m.packetsDropped,
		m.responsesMatched,
		m.dhtSize,
		m.outstandingSize,
		m.rateLimitBuckets,
	)
	return m
}

// PacketForwarded implements relay.Recorder.
func (m *Metrics) PacketForwarded() { m.packetsForwarded.Inc() }

// PacketDelivered implements relay.Recorder.
func (m *Metrics) PacketDelivered() { m.packetsDelivered.Inc() }

// PacketDropped implements relay.Recorder.
func (m *Metrics) PacketDropped(reason string) { m.packetsDropped.WithLabelValues(reason).Inc() }

// ResponseMatched implements relay.Recorder.
func (m *Metrics) ResponseMatched() { m.responsesMatched.Inc() }

// SetDHTSize records the routing table's current peer count.
func (m *Metrics) SetDHTSize(n int) { m.dhtSize.Set(float64(n)) }

// SetOutstandingSize records the number of onion boxes still awaiting
// a response.
func (m *Metrics) SetOutstandingSize(n int) { m.outstandingSize.Set(float64(n)) }

// SetRateLimitBuckets records the ingress limiter's tracked-address count.
func (m *Metrics) SetRateLimitBuckets(n int) { m.rateLimitBuckets.Set(float64(n)) }
