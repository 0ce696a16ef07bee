package metrics

import (
	"strconv"
	"sync"

	"github.com/YiuTerran/go-bidi/network"
	"github.com/prometheus/client_golang/prometheus"
)

/**  prometheus实现的Observer
  *  同一个Registerer只能注册一次，进程内一般用Default
**/

const namespace = "bidi"

type Observer struct {
	matched     *prometheus.CounterVec
	dropped     *prometheus.CounterVec
	panicked    *prometheus.CounterVec
	connections *prometheus.GaugeVec
	reconnects  prometheus.Counter
	broadcasts  *prometheus.CounterVec
}

var (
	registerOnce sync.Once
	defaultObs   *Observer
)

var _ network.Observer = (*Observer)(nil)

// New 创建并注册到reg，reg为nil时不注册
func New(reg prometheus.Registerer) (*Observer, error) {
	o := &Observer{
		matched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "envelopes",
			Name:      "matched_total",
			Help:      "Envelopes delivered to a registered handler.",
		}, []string{"side", "id"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "envelopes",
			Name:      "dropped_total",
			Help:      "Envelopes dropped because no handler was registered.",
		}, []string{"side", "id"}),
		panicked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "handler",
			Name:      "panics_total",
			Help:      "Handler invocations that panicked.",
		}, []string{"side", "id"}),
		connections: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections",
			Help:      "Live sessions on the client side and registered remotes on the server side.",
		}, []string{"side"}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "reconnects_total",
			Help:      "Reconnect attempts made by clients.",
		}),
		broadcasts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "broadcast",
			Name:      "sends_total",
			Help:      "Per-remote sends performed by broadcasts.",
		}, []string{"id", "success"}),
	}
	if reg == nil {
		return o, nil
	}
	for _, c := range []prometheus.Collector{o.matched, o.dropped, o.panicked, o.connections, o.reconnects, o.broadcasts} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// Default 注册到prometheus.DefaultRegisterer的单例
func Default() *Observer {
	registerOnce.Do(func() {
		o, err := New(prometheus.DefaultRegisterer)
		if err != nil {
			panic(err)
		}
		defaultObs = o
	})
	return defaultObs
}

func (o *Observer) Matched(side, id string) {
	o.matched.WithLabelValues(side, id).Inc()
}

func (o *Observer) Dropped(side, id string) {
	o.dropped.WithLabelValues(side, id).Inc()
}

func (o *Observer) Panicked(side, id string) {
	o.panicked.WithLabelValues(side, id).Inc()
}

func (o *Observer) Connected(side string) {
	o.connections.WithLabelValues(side).Inc()
}

func (o *Observer) Disconnected(side string) {
	o.connections.WithLabelValues(side).Dec()
}

func (o *Observer) Reconnecting() {
	o.reconnects.Inc()
}

func (o *Observer) Broadcast(id string, delivered, failed int) {
	if delivered > 0 {
		o.broadcasts.WithLabelValues(id, strconv.FormatBool(true)).Add(float64(delivered))
	}
	if failed > 0 {
		o.broadcasts.WithLabelValues(id, strconv.FormatBool(false)).Add(float64(failed))
	}
}
