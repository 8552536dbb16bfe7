package broker

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Topology declares the exchanges and queues the service consumes from. The
// declaration runs at most once per process even though every shard worker
// calls Declare while booting; later callers block until the first finishes
// and observe its result. Direct-routed queues use the broker's default
// exchange, which binds every queue under its own name.
type Topology struct {
	BroadcastExchange string
	BroadcastQueue    string
	MetaQueue         string
	ResourceQueue     string
	ShardQueues       []string

	once     sync.Once
	err      error
	declared atomic.Bool
}

// Declare runs the idempotent topology declaration on the given channel.
func (t *Topology) Declare(ch Channel) error {
	t.once.Do(func() {
		t.err = t.declare(ch)
		if t.err == nil {
			t.declared.Store(true)
		}
	})
	return t.err
}

// Declared reports whether the declaration has completed successfully.
func (t *Topology) Declared() bool {
	return t.declared.Load()
}

func (t *Topology) declare(ch Channel) error {
	if err := ch.ExchangeDeclare(t.BroadcastExchange, "fanout", true, false, false, false, nil); err != nil {
		return fmt.Errorf("broker: declare exchange %s: %w", t.BroadcastExchange, err)
	}

	queues := make([]string, 0, len(t.ShardQueues)+3)
	queues = append(queues, t.BroadcastQueue, t.MetaQueue, t.ResourceQueue)
	queues = append(queues, t.ShardQueues...)
	for _, queue := range queues {
		if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
			return fmt.Errorf("broker: declare queue %s: %w", queue, err)
		}
	}

	if err := ch.QueueBind(t.BroadcastQueue, "", t.BroadcastExchange, false, nil); err != nil {
		return fmt.Errorf("broker: bind %s to %s: %w", t.BroadcastQueue, t.BroadcastExchange, err)
	}
	return nil
}
