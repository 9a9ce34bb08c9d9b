package relay

// Connection is a live bidirectional channel as the registry sees it.
//
// Why an interface and not the websocket type directly?
//   - The registry's job is membership and fanout. It should not know
//     about gorilla/websocket, pumps, or deadlines.
//   - Tests register in-memory fakes and assert on what they received,
//     with no network in sight.
//
// A Connection belongs to exactly one namespace for its entire
// lifetime, and to exactly one room within it — the room comes from
// the token claims at connect time and never changes afterwards.
type Connection interface {
	// ID is an opaque identifier, unique within the process.
	ID() string

	// Room is the room this connection joined at registration.
	Room() string

	// Send queues a payload for delivery. It must not block: if the
	// connection cannot accept the payload (buffer full, transport
	// closed) it returns an error and the payload is dropped for this
	// recipient only.
	Send(data []byte) error

	Close() error
}

// DeliveryResult reports one fanout: how many connections were in the
// target set, and how many accepted the payload. Delivery is
// fire-and-forget — failed recipients are skipped, not retried, and
// the payload is not kept anywhere.
type DeliveryResult struct {
	Attempted int `json:"attempted"`
	Delivered int `json:"delivered"`
}
