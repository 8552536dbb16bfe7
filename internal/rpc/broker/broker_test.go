package broker

import (
	"context"
	"errors"
	"sync"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"

	errspkg "github.com/glyphbot/shardlink/internal/rpc/errors"
	"github.com/glyphbot/shardlink/internal/rpc/logging"
)

var errDialBoom = errors.New("dial boom")

type fakeChannel struct {
	mu         sync.Mutex
	exchanges  []string
	queues     []string
	binds      []string
	declareErr error
	closed     bool
}

func (c *fakeChannel) ExchangeDeclare(name, _ string, _, _, _, _ bool, _ amqp.Table) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.declareErr != nil {
		return c.declareErr
	}
	c.exchanges = append(c.exchanges, name)
	return nil
}

func (c *fakeChannel) QueueDeclare(name string, _, _, _, _ bool, _ amqp.Table) (amqp.Queue, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.declareErr != nil {
		return amqp.Queue{}, c.declareErr
	}
	c.queues = append(c.queues, name)
	return amqp.Queue{Name: name}, nil
}

func (c *fakeChannel) QueueBind(name, _, exchange string, _ bool, _ amqp.Table) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.binds = append(c.binds, name+"->"+exchange)
	return nil
}

func (c *fakeChannel) Consume(string, string, bool, bool, bool, bool, amqp.Table) (<-chan amqp.Delivery, error) {
	return make(chan amqp.Delivery), nil
}

func (c *fakeChannel) PublishWithContext(context.Context, string, string, bool, bool, amqp.Publishing) error {
	return nil
}

func (c *fakeChannel) Ack(uint64, bool) error    { return nil }
func (c *fakeChannel) Reject(uint64, bool) error { return nil }

func (c *fakeChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

type fakeConnection struct {
	mu       sync.Mutex
	channels []*fakeChannel
	closed   bool
}

func (c *fakeConnection) Channel() (Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := &fakeChannel{}
	c.channels = append(c.channels, ch)
	return ch, nil
}

func (c *fakeConnection) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConnection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// fakeDialer counts dials and hands out fresh connections.
type fakeDialer struct {
	mu    sync.Mutex
	conns []*fakeConnection
	err   error
}

func (d *fakeDialer) dial(string) (Connection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	conn := &fakeConnection{}
	d.conns = append(d.conns, conn)
	return conn, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.conns)
}

func newTestManager(t *testing.T) (*ConnManager, *fakeDialer) {
	t.Helper()
	dialer := &fakeDialer{}
	m, err := NewConnManager("amqp://localhost", dialer.dial, logging.Nop())
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m, dialer
}

func TestNewConnManagerEmptyURL(t *testing.T) {
	dialer := &fakeDialer{}
	_, err := NewConnManager("", dialer.dial, logging.Nop())
	if !errors.Is(err, errspkg.ErrConnectionRequired) {
		t.Fatalf("error = %v, want ErrConnectionRequired", err)
	}
	if dialer.dialCount() != 0 {
		t.Fatalf("dial count = %d, want 0", dialer.dialCount())
	}
}

func TestNewConnManagerDialFailure(t *testing.T) {
	dialer := &fakeDialer{err: errDialBoom}
	_, err := NewConnManager("amqp://localhost", dialer.dial, logging.Nop())
	if !errors.Is(err, errDialBoom) {
		t.Fatalf("error = %v, want dial failure", err)
	}
}

func TestAcquireChannelReusesPerOwner(t *testing.T) {
	m, dialer := newTestManager(t)

	first, err := m.AcquireChannel("worker.0")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	again, err := m.AcquireChannel("worker.0")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if first != again {
		t.Fatal("same owner must get the same channel handle")
	}

	other, err := m.AcquireChannel("worker.1")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if other == first {
		t.Fatal("distinct owners must get distinct channel handles")
	}
	if dialer.dialCount() != 1 {
		t.Fatalf("dial count = %d, want 1", dialer.dialCount())
	}
}

func TestAcquireChannelRedialsClosedConnection(t *testing.T) {
	m, dialer := newTestManager(t)

	stale, err := m.AcquireChannel("worker.0")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	dialer.conns[0].Close()

	fresh, err := m.AcquireChannel("worker.1")
	if err != nil {
		t.Fatalf("acquire after close: %v", err)
	}
	if dialer.dialCount() != 2 {
		t.Fatalf("dial count = %d, want 2", dialer.dialCount())
	}

	// The stale owner's handle was minted on the dead connection and must be
	// re-provisioned, not returned from the registry.
	replacement, err := m.AcquireChannel("worker.0")
	if err != nil {
		t.Fatalf("acquire replacement: %v", err)
	}
	if replacement == stale {
		t.Fatal("handle from the dead connection must not be reused")
	}
	if fresh == replacement {
		t.Fatal("owners keep distinct handles after redial")
	}
}

func TestReleaseChannelClosesHandle(t *testing.T) {
	m, dialer := newTestManager(t)

	ch, err := m.AcquireChannel("worker.0")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	m.ReleaseChannel("worker.0")

	if !ch.(*fakeChannel).closed {
		t.Fatal("release must close the handle")
	}
	replacement, err := m.AcquireChannel("worker.0")
	if err != nil {
		t.Fatalf("reacquire: %v", err)
	}
	if replacement == ch {
		t.Fatal("released handle must not be served again")
	}
	if dialer.dialCount() != 1 {
		t.Fatalf("dial count = %d, want 1", dialer.dialCount())
	}
}

func TestCloseTearsDownEverything(t *testing.T) {
	m, dialer := newTestManager(t)

	ch, err := m.AcquireChannel("worker.0")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !ch.(*fakeChannel).closed {
		t.Fatal("close must close every channel handle")
	}
	if !dialer.conns[0].IsClosed() {
		t.Fatal("close must close the connection")
	}
	if err := m.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func testTopology() *Topology {
	return &Topology{
		BroadcastExchange: "gateway.broadcast",
		BroadcastQueue:    "broadcast",
		MetaQueue:         "meta",
		ResourceQueue:     "resource",
		ShardQueues:       []string{"shard.0", "shard.1"},
	}
}

func TestTopologyDeclare(t *testing.T) {
	topo := testTopology()
	ch := &fakeChannel{}

	if err := topo.Declare(ch); err != nil {
		t.Fatalf("declare: %v", err)
	}
	if !topo.Declared() {
		t.Fatal("topology should report declared")
	}
	if len(ch.exchanges) != 1 || ch.exchanges[0] != "gateway.broadcast" {
		t.Fatalf("exchanges = %v", ch.exchanges)
	}
	want := []string{"broadcast", "meta", "resource", "shard.0", "shard.1"}
	if len(ch.queues) != len(want) {
		t.Fatalf("queues = %v, want %v", ch.queues, want)
	}
	for i, q := range want {
		if ch.queues[i] != q {
			t.Fatalf("queues = %v, want %v", ch.queues, want)
		}
	}
	if len(ch.binds) != 1 || ch.binds[0] != "broadcast->gateway.broadcast" {
		t.Fatalf("binds = %v", ch.binds)
	}
}

func TestTopologyDeclaresOnce(t *testing.T) {
	topo := testTopology()
	ch := &fakeChannel{}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := topo.Declare(ch); err != nil {
				t.Errorf("declare: %v", err)
			}
		}()
	}
	wg.Wait()

	if len(ch.exchanges) != 1 {
		t.Fatalf("exchange declared %d times, want 1", len(ch.exchanges))
	}
}

func TestTopologyDeclareFailureSticks(t *testing.T) {
	topo := testTopology()
	broken := &fakeChannel{declareErr: errDialBoom}

	if err := topo.Declare(broken); err == nil {
		t.Fatal("expected declare failure")
	}
	if topo.Declared() {
		t.Fatal("failed declaration must not report declared")
	}
	// The declaration ran under once; the error is remembered.
	if err := topo.Declare(&fakeChannel{}); err == nil {
		t.Fatal("later callers observe the first declaration's error")
	}
}
