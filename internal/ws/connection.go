package ws

import (
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// Connection is one WebSocket client with its metadata and a write mutex
// serializing outbound frames.
type Connection struct {
	ID         string   // user ID (UUID), also the delivery address
	Conn       net.Conn // underlying TCP connection
	Fd         int      // file descriptor for poller lookups
	CreatedAt  time.Time
	LastSeen   time.Time  // last successful read from the client
	writeMu    sync.Mutex // serializes writes to this connection
	processing int32      // atomic flag guarding duplicate poller dispatch
}

// WriteMessage sends a WebSocket text frame. The write mutex keeps
// concurrent goroutines from interleaving frame bytes.
func (c *Connection) WriteMessage(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return wsutil.WriteServerMessage(c.Conn, ws.OpText, data)
}

// WritePing sends a protocol-level ping frame (opcode 0x9).
func (c *Connection) WritePing() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return ws.WriteFrame(c.Conn, ws.NewPingFrame(nil))
}

// Close closes the underlying network connection.
func (c *Connection) Close() error {
	return c.Conn.Close()
}

// Manager is a thread-safe registry mapping user IDs and file descriptors
// to connections, with O(1) lookup by either key.
type Manager struct {
	mu   sync.RWMutex
	byID map[string]*Connection
	byFd map[int]*Connection
}

// NewManager creates an empty connection manager.
func NewManager() *Manager {
	return &Manager{
		byID: make(map[string]*Connection),
		byFd: make(map[int]*Connection),
	}
}

// Add registers a connection in both lookup maps.
func (m *Manager) Add(conn *Connection) {
	m.mu.Lock()
	m.byID[conn.ID] = conn
	m.byFd[conn.Fd] = conn
	m.mu.Unlock()
}

// Remove removes a connection by user ID and closes it. Returns false if
// the connection was already gone.
func (m *Manager) Remove(id string) bool {
	m.mu.Lock()
	conn, ok := m.byID[id]
	if ok {
		delete(m.byID, id)
		delete(m.byFd, conn.Fd)
	}
	m.mu.Unlock()

	if ok {
		conn.Close()
	}
	return ok
}

// Get returns the connection for the given user ID, or nil.
func (m *Manager) Get(id string) *Connection {
	m.mu.RLock()
	conn := m.byID[id]
	m.mu.RUnlock()
	return conn
}

// GetByFd returns the connection for the given file descriptor, or nil.
func (m *Manager) GetByFd(fd int) *Connection {
	m.mu.RLock()
	conn := m.byFd[fd]
	m.mu.RUnlock()
	return conn
}

// GetByConn resolves a net.Conn back to its Connection via the file
// descriptor. Returns nil if not registered.
func (m *Manager) GetByConn(c net.Conn) *Connection {
	return m.GetByFd(socketFD(c))
}

// Count returns the number of active connections.
func (m *Manager) Count() int {
	m.mu.RLock()
	n := len(m.byID)
	m.mu.RUnlock()
	return n
}

// All returns a snapshot of current connections, safe to iterate without
// holding the lock.
func (m *Manager) All() []*Connection {
	m.mu.RLock()
	conns := make([]*Connection, 0, len(m.byID))
	for _, conn := range m.byID {
		conns = append(conns, conn)
	}
	m.mu.RUnlock()
	return conns
}
