package relay

// DeliveryEvent describes one fanout for monitoring surfaces.
// Namespace-wide deliveries report the room as "main".
type DeliveryEvent struct {
	Namespace string `json:"namespace"`
	Room      string `json:"room"`
	Message   string `json:"message"`
}

// Tap receives a read-only mirror of delivery activity. Taps observe,
// they never mutate registry state, and a slow or failing tap must not
// affect delivery — implementations are expected to be non-blocking
// or to shed their own load.
type Tap interface {
	MessageDelivered(ev DeliveryEvent)
}

// MultiTap fans a delivery event out to several taps in order.
type MultiTap []Tap

func (m MultiTap) MessageDelivered(ev DeliveryEvent) {
	for _, t := range m {
		t.MessageDelivered(ev)
	}
}
