package ws

// Wire protocol for the real-time channel. Every frame, both
// directions, is one JSON envelope with an explicit kind tag.
//
// The tag replaces dynamic event names: clients do not subscribe to a
// channel named after their room (user-controlled strings make bad
// dispatch keys, and a room called "disconnect" should not collide
// with anything). A single dispatcher switches on Kind instead.
const (
	// KindRoom: client→server, relay Payload to the rest of the
	// sender's room. The sender is never echoed.
	KindRoom = "room"

	// KindNamespace: client→server, deliver Payload to every
	// connection in the tenant's namespace, sender included.
	KindNamespace = "namespace"

	// KindMessage: server→client, a delivered payload.
	KindMessage = "message"
)

// Envelope is the single frame shape. Room is set on server→client
// frames for room-scoped deliveries and left empty for namespace-wide
// ones; it is ignored on client→server frames (the sender's room is
// fixed at connect time by its token, not by what it writes).
type Envelope struct {
	Kind    string `json:"kind"`
	Room    string `json:"room,omitempty"`
	Payload string `json:"payload"`
}
