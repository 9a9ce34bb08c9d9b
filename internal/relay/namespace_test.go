package relay

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeConn struct {
	id      string
	room    string
	mu      sync.Mutex
	sendErr error
	recv    [][]byte
	closed  bool
}

func (f *fakeConn) ID() string   { return f.id }
func (f *fakeConn) Room() string { return f.room }

func (f *fakeConn) Send(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.recv = append(f.recv, data)
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) received() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.recv))
	copy(out, f.recv)
	return out
}

func newTestNamespace(t *testing.T, tenantID string) *Namespace {
	t.Helper()
	return newNamespace(tenantID, zap.NewNop())
}

func TestNamespace_RelayFrom(t *testing.T) {
	tests := []struct {
		name         string
		setup        func(*Namespace) (sender *fakeConn, others []*fakeConn)
		wantReceived map[string]int
	}{
		{
			name: "relay reaches room members, never the sender",
			setup: func(ns *Namespace) (*fakeConn, []*fakeConn) {
				sender := &fakeConn{id: "sender", room: "lobby"}
				recv1 := &fakeConn{id: "recv1", room: "lobby"}
				recv2 := &fakeConn{id: "recv2", room: "lobby"}
				ns.Register(sender)
				ns.Register(recv1)
				ns.Register(recv2)
				return sender, []*fakeConn{recv1, recv2}
			},
			wantReceived: map[string]int{"recv1": 1, "recv2": 1},
		},
		{
			name: "no cross-room relay",
			setup: func(ns *Namespace) (*fakeConn, []*fakeConn) {
				sender := &fakeConn{id: "sender", room: "lobby"}
				other := &fakeConn{id: "recv1", room: "support"}
				ns.Register(sender)
				ns.Register(other)
				return sender, []*fakeConn{other}
			},
			wantReceived: map[string]int{"recv1": 0},
		},
		{
			name: "alone in the room",
			setup: func(ns *Namespace) (*fakeConn, []*fakeConn) {
				sender := &fakeConn{id: "sender", room: "lobby"}
				ns.Register(sender)
				return sender, nil
			},
			wantReceived: map[string]int{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ns := newTestNamespace(t, "acme")
			sender, others := tt.setup(ns)

			ns.RelayFrom(sender, []byte("hello"))

			assert.Empty(t, sender.received(), "sender must never see its own relayed message")
			for _, r := range others {
				assert.Len(t, r.received(), tt.wantReceived[r.ID()], "receiver %s", r.ID())
			}
		})
	}
}

func TestNamespace_SendToRoom(t *testing.T) {
	ns := newTestNamespace(t, "acme")
	a := &fakeConn{id: "a", room: "lobby"}
	b := &fakeConn{id: "b", room: "lobby"}
	c := &fakeConn{id: "c", room: "support"}
	ns.Register(a)
	ns.Register(b)
	ns.Register(c)

	res := ns.SendToRoom("lobby", []byte("hi"))

	assert.Equal(t, DeliveryResult{Attempted: 2, Delivered: 2}, res)
	assert.Len(t, a.received(), 1)
	assert.Len(t, b.received(), 1)
	assert.Empty(t, c.received())
}

func TestNamespace_SendToRoom_Empty(t *testing.T) {
	ns := newTestNamespace(t, "acme")

	res := ns.SendToRoom("empty", []byte("hi"))

	// Sending into silence is a successful no-op, not an error.
	assert.Equal(t, DeliveryResult{Attempted: 0, Delivered: 0}, res)
}

func TestNamespace_SendToNamespace(t *testing.T) {
	ns := newTestNamespace(t, "acme")
	a := &fakeConn{id: "a", room: "lobby"}
	b := &fakeConn{id: "b", room: "support"}
	ns.Register(a)
	ns.Register(b)

	res := ns.SendToNamespace([]byte("all hands"))

	assert.Equal(t, DeliveryResult{Attempted: 2, Delivered: 2}, res)
	assert.Len(t, a.received(), 1)
	assert.Len(t, b.received(), 1)
}

func TestNamespace_FailedRecipientIsolated(t *testing.T) {
	ns := newTestNamespace(t, "acme")
	broken := &fakeConn{id: "broken", room: "lobby", sendErr: assert.AnError}
	healthy := &fakeConn{id: "healthy", room: "lobby"}
	ns.Register(broken)
	ns.Register(healthy)

	res := ns.SendToRoom("lobby", []byte("hi"))

	assert.Equal(t, 2, res.Attempted)
	assert.Equal(t, 1, res.Delivered, "failure for one recipient must not abort the rest")
	assert.Len(t, healthy.received(), 1)
}

func TestNamespace_RegisterIdempotent(t *testing.T) {
	ns := newTestNamespace(t, "acme")
	conn := &fakeConn{id: "c1", room: "lobby"}

	ns.Register(conn)
	ns.Register(conn)

	// One member, one delivery.
	res := ns.SendToRoom("lobby", []byte("hi"))
	assert.Equal(t, DeliveryResult{Attempted: 1, Delivered: 1}, res)
	assert.Len(t, conn.received(), 1)
}

func TestNamespace_UnregisterIdempotent(t *testing.T) {
	ns := newTestNamespace(t, "acme")
	conn := &fakeConn{id: "c1", room: "lobby"}
	never := &fakeConn{id: "ghost", room: "lobby"}

	ns.Register(conn)
	ns.Unregister(conn)
	ns.Unregister(conn) // repeated: no-op, not a panic or error
	ns.Unregister(never) // never registered: equally a no-op

	assert.Equal(t, 0, ns.ConnectionCount())
	res := ns.SendToRoom("lobby", []byte("hi"))
	assert.Equal(t, DeliveryResult{}, res)
	assert.Empty(t, conn.received())
}

func TestNamespace_RoomCleanup(t *testing.T) {
	ns := newTestNamespace(t, "acme")
	conn := &fakeConn{id: "c1", room: "lobby"}

	ns.Register(conn)
	rooms, _ := ns.snapshot()
	require.Equal(t, []string{"lobby"}, rooms)

	ns.Unregister(conn)
	rooms, clients := ns.snapshot()
	assert.Empty(t, rooms, "an empty room must vanish from the snapshot")
	assert.Empty(t, clients)
}

func TestNamespace_FIFOPerSender(t *testing.T) {
	ns := newTestNamespace(t, "acme")
	sender := &fakeConn{id: "sender", room: "lobby"}
	receiver := &fakeConn{id: "receiver", room: "lobby"}
	ns.Register(sender)
	ns.Register(receiver)

	ns.RelayFrom(sender, []byte("m1"))
	ns.RelayFrom(sender, []byte("m2"))

	got := receiver.received()
	require.Len(t, got, 2)
	assert.Equal(t, "m1", string(got[0]))
	assert.Equal(t, "m2", string(got[1]))
}

func TestNamespace_MemberSnapshots(t *testing.T) {
	ns := newTestNamespace(t, "acme")
	a := &fakeConn{id: "a", room: "lobby"}
	b := &fakeConn{id: "b", room: "lobby"}
	c := &fakeConn{id: "c", room: "support"}
	ns.Register(b)
	ns.Register(a)
	ns.Register(c)

	lobby := ns.MembersOf("lobby")
	require.Len(t, lobby, 2)
	assert.Equal(t, "a", lobby[0].ID())
	assert.Equal(t, "b", lobby[1].ID())

	all := ns.AllMembers()
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[2].ID())

	assert.Empty(t, ns.MembersOf("nowhere"))
}

func TestNamespace_SnapshotSorted(t *testing.T) {
	ns := newTestNamespace(t, "acme")
	ns.Register(&fakeConn{id: "zz", room: "zeta"})
	ns.Register(&fakeConn{id: "aa", room: "alpha"})
	ns.Register(&fakeConn{id: "mm", room: "alpha"})

	rooms, clients := ns.snapshot()

	assert.Equal(t, []string{"alpha", "zeta"}, rooms)
	assert.Equal(t, []string{"aa", "mm", "zz"}, clients)
}

func TestNamespace_ConcurrentChurn(t *testing.T) {
	ns := newTestNamespace(t, "acme")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		conn := &fakeConn{id: string(rune('a'+i%26)) + string(rune('0'+i/26)), room: "lobby"}
		wg.Add(1)
		go func() {
			defer wg.Done()
			ns.Register(conn)
			ns.SendToRoom("lobby", []byte("hi"))
			ns.Unregister(conn)
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, ns.ConnectionCount())
}
