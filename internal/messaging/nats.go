// Package messaging provides a NATS client wrapper for the abuse
// notification bus between the chat server and the moderator service.
// It handles connection lifecycle and typed publish/subscribe helpers.
package messaging

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// Subjects carried on the bus.
const (
	SubjectReportFiled = "abuse.report"
	SubjectBanApplied  = "abuse.ban"
)

// ReportEvent is published for every accepted abuse report.
type ReportEvent struct {
	ReporterID string    `json:"reporter_id"`
	ReportedID string    `json:"reported_id"`
	Count      int       `json:"count"`
	At         time.Time `json:"at"`
}

// BanEvent is published when a report count crosses a ban threshold.
type BanEvent struct {
	UserID   string    `json:"user_id"`
	Count    int       `json:"count"`
	BanUntil time.Time `json:"ban_until"`
	At       time.Time `json:"at"`
}

// Client wraps the NATS connection with helper methods for the abuse bus.
type Client struct {
	conn *nats.Conn
	mu   sync.Mutex
	subs map[string]*nats.Subscription
}

// Config holds NATS connection settings.
type Config struct {
	URL           string
	Name          string
	ReconnectWait time.Duration
	MaxReconnects int // -1 for infinite
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		URL:           "nats://localhost:4222",
		Name:          "duet",
		ReconnectWait: 2 * time.Second,
		MaxReconnects: -1,
	}
}

// NewClient connects to NATS with the given config and returns a ready
// client. It returns an error if the initial connection fails.
func NewClient(config Config) (*Client, error) {
	opts := []nats.Option{
		nats.Name(config.Name),
		nats.ReconnectWait(config.ReconnectWait),
		nats.MaxReconnects(config.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Printf("[nats] disconnected: %v", err)
			} else {
				log.Printf("[nats] disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("[nats] reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			log.Printf("[nats] connection closed")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	log.Printf("[nats] connected to %s", nc.ConnectedUrl())

	return &Client{
		conn: nc,
		subs: make(map[string]*nats.Subscription),
	}, nil
}

// PublishReport publishes an accepted report to the abuse bus.
func (c *Client) PublishReport(ev ReportEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("nats marshal report: %w", err)
	}
	return c.conn.Publish(SubjectReportFiled, data)
}

// PublishBan publishes an applied ban to the abuse bus.
func (c *Client) PublishBan(ev BanEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("nats marshal ban: %w", err)
	}
	return c.conn.Publish(SubjectBanApplied, data)
}

// SubscribeReports registers a handler for report events. Malformed
// payloads are logged and dropped.
func (c *Client) SubscribeReports(handler func(ReportEvent)) error {
	return c.subscribe(SubjectReportFiled, func(msg *nats.Msg) {
		var ev ReportEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			log.Printf("[nats] bad report event: %v", err)
			return
		}
		handler(ev)
	})
}

// SubscribeBans registers a handler for ban events.
func (c *Client) SubscribeBans(handler func(BanEvent)) error {
	return c.subscribe(SubjectBanApplied, func(msg *nats.Msg) {
		var ev BanEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			log.Printf("[nats] bad ban event: %v", err)
			return
		}
		handler(ev)
	})
}

func (c *Client) subscribe(subject string, handler nats.MsgHandler) error {
	sub, err := c.conn.Subscribe(subject, handler)
	if err != nil {
		return fmt.Errorf("nats subscribe %s: %w", subject, err)
	}

	c.mu.Lock()
	c.subs[subject] = sub
	c.mu.Unlock()
	return nil
}

// Close drains all subscriptions and closes the connection.
func (c *Client) Close() {
	c.mu.Lock()
	for subject, sub := range c.subs {
		if err := sub.Drain(); err != nil {
			log.Printf("[nats] drain %s: %v", subject, err)
		}
	}
	c.subs = make(map[string]*nats.Subscription)
	c.mu.Unlock()

	if err := c.conn.Drain(); err != nil {
		log.Printf("[nats] drain connection: %v", err)
		c.conn.Close()
	}
}
