package hub

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lifesync-server/domain"
)

type mockConn struct {
	id       string
	state    domain.ConnState
	received [][]byte
	closed   bool
	mu       sync.Mutex
	sendErr  error
}

func (m *mockConn) ID() string    { return m.id }
func (m *mockConn) Token() string { return "" }

func (m *mockConn) State() domain.ConnState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *mockConn) Send(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.received = append(m.received, data)
	return nil
}

func (m *mockConn) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.state = domain.StateClosed
	return nil
}

func (m *mockConn) getReceived() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.received
}

func (m *mockConn) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func TestHub_Broadcast(t *testing.T) {
	tests := []struct {
		name         string
		conns        []*mockConn
		wantReceived map[string]int
	}{
		{
			name: "every open client",
			conns: []*mockConn{
				{id: "c1", state: domain.StateActive},
				{id: "c2", state: domain.StateActive},
				{id: "c3", state: domain.StateConnected},
			},
			wantReceived: map[string]int{"c1": 1, "c2": 1, "c3": 1},
		},
		{
			name: "closed clients skipped",
			conns: []*mockConn{
				{id: "c1", state: domain.StateActive},
				{id: "c2", state: domain.StateClosed},
			},
			wantReceived: map[string]int{"c1": 1, "c2": 0},
		},
		{
			name:         "no clients",
			conns:        nil,
			wantReceived: map[string]int{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New()
			for _, c := range tt.conns {
				h.Register(c)
			}

			h.Broadcast([]byte("test message"))

			for _, c := range tt.conns {
				got := c.getReceived()
				require.Len(t, got, tt.wantReceived[c.ID()], "client %s", c.ID())
				for _, frame := range got {
					assert.Equal(t, "test message", string(frame))
				}
			}
		})
	}
}

func TestHub_BroadcastOrder(t *testing.T) {
	h := New()
	a := &mockConn{id: "a", state: domain.StateActive}
	b := &mockConn{id: "b", state: domain.StateActive}
	h.Register(a)
	h.Register(b)

	h.Broadcast([]byte("1"))
	h.Broadcast([]byte("2"))
	h.Broadcast([]byte("3"))

	want := [][]byte{[]byte("1"), []byte("2"), []byte("3")}
	assert.Equal(t, want, a.getReceived())
	assert.Equal(t, want, b.getReceived())
}

func TestHub_SendFailureDropsClient(t *testing.T) {
	h := New()
	slow := &mockConn{id: "slow", state: domain.StateActive, sendErr: errors.New("buffer full")}
	ok := &mockConn{id: "ok", state: domain.StateActive}
	h.Register(slow)
	h.Register(ok)

	h.Broadcast([]byte("frame"))

	assert.Len(t, ok.getReceived(), 1)
	assert.Eventually(t, func() bool { return h.Count() == 1 && slow.isClosed() }, timeout, tick)
}

func TestHub_Count(t *testing.T) {
	h := New()
	assert.Equal(t, 0, h.Count())

	c1 := &mockConn{id: "c1"}
	c2 := &mockConn{id: "c2"}
	h.Register(c1)
	h.Register(c2)
	assert.Equal(t, 2, h.Count())

	h.Unregister(c1)
	assert.Equal(t, 1, h.Count())

	// unknown and repeated unregisters are ignored
	h.Unregister(c1)
	h.Unregister(&mockConn{id: "nobody"})
	assert.Equal(t, 1, h.Count())
}

const (
	timeout = time.Second
	tick    = 10 * time.Millisecond
)
