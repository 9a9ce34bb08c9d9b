package relay

import (
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Namespace is one tenant's isolation boundary: the set of currently
// open connections, partitioned into rooms. It is the only shared
// mutable state in the relay.
//
// Concurrency model: one mutex per namespace, held for the full
// duration of every register/unregister/fanout call. That serializes
// membership mutation against fanout reads WITHIN a tenant (so a
// snapshot can never contain a connection whose removal has already
// completed) while leaving different tenants fully independent — there
// is no lock shared across namespaces.
//
// Holding the lock across delivery is safe because Connection.Send is
// required to be non-blocking: the critical section is bounded by a
// handful of channel sends, never by network I/O.
type Namespace struct {
	tenantID string
	logger   *zap.Logger

	mu sync.Mutex
	// rooms maps a room label to its members, keyed by connection ID.
	// A room exists only while it has members: the entry is created on
	// first Register and deleted when the last member leaves, so
	// observability snapshots never show ghost rooms.
	rooms map[string]map[string]Connection
}

func newNamespace(tenantID string, logger *zap.Logger) *Namespace {
	return &Namespace{
		tenantID: tenantID,
		logger:   logger,
		rooms:    make(map[string]map[string]Connection),
	}
}

func (n *Namespace) TenantID() string { return n.tenantID }

// Register adds conn to the members of its room. Idempotent: a second
// Register of the same connection is a no-op, not an error.
//
// Callers must have already passed the connection through the Gate —
// Register itself does no authorization.
func (n *Namespace) Register(conn Connection) {
	n.mu.Lock()
	room, exists := n.rooms[conn.Room()]
	if !exists {
		room = make(map[string]Connection)
		n.rooms[conn.Room()] = room
	}
	if _, dup := room[conn.ID()]; dup {
		n.mu.Unlock()
		return
	}
	room[conn.ID()] = conn
	count := len(room)
	n.mu.Unlock()

	n.logger.Info("client connected",
		zap.String("tenant", n.tenantID),
		zap.String("room", conn.Room()),
		zap.String("client_id", conn.ID()),
		zap.Int("room_clients", count),
	)
}

// Unregister removes conn from its room, deleting the room when it
// empties. Safe to call for a connection that was never registered
// (or already unregistered) — that is a silent no-op, because the
// transport's close path cannot always know whether registration
// completed before the socket died.
func (n *Namespace) Unregister(conn Connection) {
	n.mu.Lock()
	room, exists := n.rooms[conn.Room()]
	if !exists {
		n.mu.Unlock()
		return
	}
	if _, member := room[conn.ID()]; !member {
		n.mu.Unlock()
		return
	}
	delete(room, conn.ID())
	if len(room) == 0 {
		delete(n.rooms, conn.Room())
	}
	n.mu.Unlock()

	n.logger.Info("client disconnected",
		zap.String("tenant", n.tenantID),
		zap.String("room", conn.Room()),
		zap.String("client_id", conn.ID()),
	)
}

// SendToRoom delivers payload to every current member of room, each at
// most once. A room with no members is a successful no-op with
// Attempted == 0 — sending into silence is not an error.
func (n *Namespace) SendToRoom(room string, payload []byte) DeliveryResult {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.deliverLocked(n.rooms[room], "", payload)
}

// SendToNamespace delivers payload to every connection in the
// namespace, across all rooms, including any sender.
func (n *Namespace) SendToNamespace(payload []byte) DeliveryResult {
	n.mu.Lock()
	defer n.mu.Unlock()

	var res DeliveryResult
	for _, members := range n.rooms {
		r := n.deliverLocked(members, "", payload)
		res.Attempted += r.Attempted
		res.Delivered += r.Delivered
	}
	return res
}

// RelayFrom delivers payload from a live connection to the OTHER
// members of its room. The sender never receives its own relayed
// message back — echo-to-self is not part of the contract.
func (n *Namespace) RelayFrom(sender Connection, payload []byte) DeliveryResult {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.deliverLocked(n.rooms[sender.Room()], sender.ID(), payload)
}

// deliverLocked fans payload out to members, skipping excludeID.
// Callers hold n.mu. A recipient whose Send fails (transport already
// broken, buffer full) is skipped and excluded from Delivered; it does
// not abort delivery to the rest, and cleanup is left to that
// connection's own close path.
func (n *Namespace) deliverLocked(members map[string]Connection, excludeID string, payload []byte) DeliveryResult {
	var res DeliveryResult
	for id, conn := range members {
		if id == excludeID {
			continue
		}
		res.Attempted++
		if err := conn.Send(payload); err != nil {
			n.logger.Debug("dropping payload for unreachable client",
				zap.String("tenant", n.tenantID),
				zap.String("client_id", id),
				zap.Error(err),
			)
			continue
		}
		res.Delivered++
	}
	return res
}

// MembersOf returns a point-in-time snapshot of room's members,
// sorted by connection ID. The slice is the caller's to keep; the
// membership table is untouched.
func (n *Namespace) MembersOf(room string) []Connection {
	n.mu.Lock()
	defer n.mu.Unlock()
	return sortedConns(n.rooms[room])
}

// AllMembers returns a snapshot of every connection in the namespace,
// across all rooms, sorted by connection ID.
func (n *Namespace) AllMembers() []Connection {
	n.mu.Lock()
	defer n.mu.Unlock()

	all := make(map[string]Connection)
	for _, members := range n.rooms {
		for id, conn := range members {
			all[id] = conn
		}
	}
	return sortedConns(all)
}

func sortedConns(members map[string]Connection) []Connection {
	out := make([]Connection, 0, len(members))
	for _, conn := range members {
		out = append(out, conn)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// ConnectionCount reports the number of open connections across all
// rooms in the namespace.
func (n *Namespace) ConnectionCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()

	count := 0
	for _, members := range n.rooms {
		count += len(members)
	}
	return count
}

// snapshot returns the namespace's room labels and connection IDs,
// both sorted lexicographically so repeated observability polls are
// diff-friendly. Read-only: it copies under the lock and never touches
// membership.
func (n *Namespace) snapshot() (rooms, clientIDs []string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	rooms = make([]string, 0, len(n.rooms))
	for room, members := range n.rooms {
		rooms = append(rooms, room)
		for id := range members {
			clientIDs = append(clientIDs, id)
		}
	}
	sort.Strings(rooms)
	sort.Strings(clientIDs)
	return rooms, clientIDs
}
