package realtime

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/carelink/comms/internal/domain/directory"
)

// DefaultSendBuffer is the per-connection outbound queue depth used when the
// Manager is constructed with a non-positive buffer size.
const DefaultSendBuffer = 256

// Connection is one live transport for one identity. It is created by
// Connect, destroyed by disconnect, and owned exclusively by the Manager;
// the websocket layer only drains Outbox and reports failures.
type Connection struct {
	UserID      string
	Name        string
	Role        directory.Role
	ConnectedAt time.Time

	rooms        map[string]struct{}
	lastActivity time.Time

	send      chan Event
	done      chan struct{}
	closeOnce sync.Once
}

// Outbox is the queue the transport's write pump drains.
func (c *Connection) Outbox() <-chan Event { return c.send }

// Done is closed when the connection has been torn down.
func (c *Connection) Done() <-chan struct{} { return c.done }

func (c *Connection) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// enqueue offers an event to the connection without blocking. A full queue or
// a torn-down connection counts as a delivery failure.
func (c *Connection) enqueue(evt Event) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- evt:
		return true
	case <-c.done:
		return false
	default:
		return false
	}
}

// Manager holds all mutable chat state: the connection registry, room
// membership, typing sets, and delivery receipts. Every mutation happens
// inside one critical section that only touches in-memory maps; membership
// snapshots are taken under the lock and fan-out happens after it is
// released, so the lock is never held across a send.
type Manager struct {
	mu         sync.Mutex
	conns      map[string]*Connection
	rooms      map[string]map[string]struct{}
	typing     map[string]map[string]struct{}
	receipts   map[string]*DeliveryStatus
	sendBuffer int
	log        zerolog.Logger
}

// NewManager creates an empty Manager.
func NewManager(log zerolog.Logger, sendBuffer int) *Manager {
	if sendBuffer <= 0 {
		sendBuffer = DefaultSendBuffer
	}
	return &Manager{
		conns:      make(map[string]*Connection),
		rooms:      make(map[string]map[string]struct{}),
		typing:     make(map[string]map[string]struct{}),
		receipts:   make(map[string]*DeliveryStatus),
		sendBuffer: sendBuffer,
		log:        log,
	}
}

// delivery pairs an event with the membership snapshot it must reach. The
// snapshot is taken inside the critical section; the send happens outside it.
type delivery struct {
	recipients []*Connection
	event      Event
}

// deliver fans an event out to each recipient. One recipient's failure never
// suppresses delivery to the rest; failed recipients are cleaned up through
// the normal disconnect path once the loop is done.
func (m *Manager) deliver(d delivery) {
	var failed []*Connection
	for _, c := range d.recipients {
		if !c.enqueue(d.event) {
			failed = append(failed, c)
		}
	}
	for _, c := range failed {
		m.log.Warn().
			Str("user_id", c.UserID).
			Str("event_type", string(d.event.Type)).
			Msg("delivery failed, disconnecting recipient")
		m.disconnectConn(c)
	}
}

func (m *Manager) deliverAll(ds []delivery) {
	for _, d := range ds {
		m.deliver(d)
	}
}
