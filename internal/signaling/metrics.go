package signaling

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the relay's prometheus instruments. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	RoomsActive           prometheus.Gauge
	ParticipantsConnected prometheus.Gauge
	RoomJoins             prometheus.Counter
	SignalsRelayed        prometheus.Counter
	SignalsDropped        prometheus.Counter
}

// NewMetrics creates the instruments and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RoomsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "yali_rooms_active",
			Help: "Rooms with at least one member.",
		}),
		ParticipantsConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "yali_participants_connected",
			Help: "Open participant connections.",
		}),
		RoomJoins: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "yali_room_joins_total",
			Help: "Successful join-room requests.",
		}),
		SignalsRelayed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "yali_signals_relayed_total",
			Help: "Handshake payloads delivered to a recipient.",
		}),
		SignalsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "yali_signals_dropped_total",
			Help: "Handshake payloads dropped because the recipient was gone.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.RoomsActive, m.ParticipantsConnected, m.RoomJoins, m.SignalsRelayed, m.SignalsDropped)
	}
	return m
}

func (m *Metrics) roomCreated() {
	if m != nil {
		m.RoomsActive.Inc()
	}
}

func (m *Metrics) roomDeleted() {
	if m != nil {
		m.RoomsActive.Dec()
	}
}

func (m *Metrics) joined() {
	if m != nil {
		m.RoomJoins.Inc()
	}
}

func (m *Metrics) connected() {
	if m != nil {
		m.ParticipantsConnected.Inc()
	}
}

func (m *Metrics) disconnected() {
	if m != nil {
		m.ParticipantsConnected.Dec()
	}
}

func (m *Metrics) relayed() {
	if m != nil {
		m.SignalsRelayed.Inc()
	}
}

func (m *Metrics) dropped() {
	if m != nil {
		m.SignalsDropped.Inc()
	}
}
