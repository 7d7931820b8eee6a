package ws

import (
	"log"
	"time"

	"github.com/duet/chat-app/internal/protocol"
)

// MessageHandler handles one parsed client message. msg is the concrete
// struct returned by protocol.ParseClientMessage (protocol.JoinMsg,
// protocol.ChatMsg, and so on).
type MessageHandler func(conn *Connection, msg interface{})

// Dispatcher routes incoming frames to registered handlers by message
// type. Ping/pong keepalive is handled internally; malformed or
// unsupported messages get a structured error response.
type Dispatcher struct {
	handlers map[string]MessageHandler
	server   *Server
}

// NewDispatcher creates a Dispatcher. The server reference may be set
// later with SetServer since NewServer needs the dispatch callback first.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string]MessageHandler)}
}

// SetServer binds the dispatcher to its server.
func (d *Dispatcher) SetServer(server *Server) {
	d.server = server
}

// Register associates a handler with a message type, replacing any
// previous registration.
func (d *Dispatcher) Register(msgType string, handler MessageHandler) {
	d.handlers[msgType] = handler
}

// Dispatch parses the raw frame into a typed message, answers pings
// internally, and routes everything else to the registered handler.
func (d *Dispatcher) Dispatch(conn *Connection, data []byte) {
	msgType, msg, err := protocol.ParseClientMessage(data)
	if err != nil {
		log.Printf("[ws] dispatch parse error user=%s: %v", conn.ID, err)
		d.sendError(conn, "parse_error", "invalid message format")
		return
	}

	if msgType == protocol.TypePing {
		d.sendPong(conn)
		return
	}

	handler, ok := d.handlers[msgType]
	if !ok {
		log.Printf("[ws] unsupported message type=%q user=%s", msgType, conn.ID)
		d.sendError(conn, "unsupported_type", "unsupported message type")
		return
	}

	handler(conn, msg)
}

func (d *Dispatcher) sendError(conn *Connection, code, message string) {
	data, err := protocol.NewServerMessage(protocol.TypeError, protocol.ErrorMsg{
		Code:    code,
		Message: message,
	})
	if err != nil {
		log.Printf("[ws] build error message user=%s: %v", conn.ID, err)
		return
	}
	if err := conn.WriteMessage(data); err != nil {
		log.Printf("[ws] send error message user=%s: %v", conn.ID, err)
	}
}

func (d *Dispatcher) sendPong(conn *Connection) {
	conn.LastSeen = time.Now()

	data, err := protocol.NewServerMessage(protocol.TypePong, nil)
	if err != nil {
		log.Printf("[ws] build pong user=%s: %v", conn.ID, err)
		return
	}
	if err := conn.WriteMessage(data); err != nil {
		log.Printf("[ws] send pong user=%s: %v", conn.ID, err)
	}
}
