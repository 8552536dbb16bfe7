// Package broker owns the process's AMQP connection, the per-worker channel
// registry, and the one-time queue topology declaration.
package broker

import (
	"context"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	errspkg "github.com/glyphbot/shardlink/internal/rpc/errors"
	"github.com/glyphbot/shardlink/internal/rpc/logging"
)

// Channel is the subset of *amqp091.Channel that shardlink workers use.
// Channel handles are not safe for concurrent use; the ConnManager hands out
// one handle per worker.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Ack(tag uint64, multiple bool) error
	Reject(tag uint64, requeue bool) error
	Close() error
}

// Connection abstracts one logical broker connection.
type Connection interface {
	Channel() (Channel, error)
	IsClosed() bool
	Close() error
}

// Dialer opens a broker connection. Tests substitute an in-memory
// implementation.
type Dialer func(url string) (Connection, error)

// AMQPDialer dials a real AMQP broker.
func AMQPDialer(url string) (Connection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	return &amqpConnection{conn: conn}, nil
}

type amqpConnection struct {
	conn *amqp.Connection
}

func (c *amqpConnection) Channel() (Channel, error) { return c.conn.Channel() }
func (c *amqpConnection) IsClosed() bool            { return c.conn.IsClosed() }
func (c *amqpConnection) Close() error              { return c.conn.Close() }

// ConnManager maintains one broker connection for the process and one channel
// handle per named worker. A worker gets its handle lazily on first acquire
// and reuses it for its lifetime. If the connection is observed closed, a
// fresh one is opened before any new handle is served.
type ConnManager struct {
	url  string
	dial Dialer
	log  logging.ServiceLogger

	mu       sync.Mutex
	conn     Connection
	channels map[string]Channel
}

// NewConnManager dials the broker eagerly. A dial failure here means the
// broker is unreachable or rejected the credentials; callers should treat it
// as fatal.
func NewConnManager(url string, dial Dialer, log logging.ServiceLogger) (*ConnManager, error) {
	if url == "" {
		return nil, errspkg.ErrConnectionRequired
	}
	if dial == nil {
		dial = AMQPDialer
	}
	conn, err := dial(url)
	if err != nil {
		return nil, fmt.Errorf("broker: dial %s: %w", url, err)
	}
	log.Info("Broker connection established", nil)
	return &ConnManager{
		url:      url,
		dial:     dial,
		log:      log,
		conn:     conn,
		channels: make(map[string]Channel),
	}, nil
}

// AcquireChannel returns the channel handle bound to the named worker,
// creating it on first use. A provisioning failure is returned to the caller;
// the next acquire starts over from a fresh connection check.
func (m *ConnManager) AcquireChannel(owner string) (Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ch, ok := m.channels[owner]; ok {
		return ch, nil
	}

	if m.conn == nil || m.conn.IsClosed() {
		conn, err := m.dial(m.url)
		if err != nil {
			return nil, fmt.Errorf("broker: redial %s: %w", m.url, err)
		}
		m.log.Info("Broker connection re-established", logging.LogFields{"owner": owner})
		m.conn = conn
		// Handles minted on the dead connection are useless now.
		m.channels = make(map[string]Channel)
	}

	ch, err := m.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("broker: open channel for %s: %w", owner, err)
	}
	m.channels[owner] = ch
	return ch, nil
}

// ReleaseChannel closes and forgets the named worker's handle.
func (m *ConnManager) ReleaseChannel(owner string) {
	m.mu.Lock()
	ch, ok := m.channels[owner]
	delete(m.channels, owner)
	m.mu.Unlock()

	if ok {
		if err := ch.Close(); err != nil {
			m.log.Error("Failed to close channel", err, logging.LogFields{"owner": owner})
		}
	}
}

// Close tears down every channel handle and the connection.
func (m *ConnManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for owner, ch := range m.channels {
		if err := ch.Close(); err != nil {
			m.log.Error("Failed to close channel", err, logging.LogFields{"owner": owner})
		}
	}
	m.channels = make(map[string]Channel)

	if m.conn == nil {
		return nil
	}
	err := m.conn.Close()
	m.conn = nil
	return err
}
