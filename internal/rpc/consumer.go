package rpc

import (
	"context"
	"fmt"
	"sync/atomic"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/glyphbot/shardlink/internal/rpc/broker"
	"github.com/glyphbot/shardlink/internal/rpc/gateway"
	"github.com/glyphbot/shardlink/internal/rpc/jsoncodec"
	"github.com/glyphbot/shardlink/internal/rpc/logging"
)

// Consumer lifecycle states. Transitions only move forward: Idle at
// construction, AwaitingTopology while the channel is provisioned and the
// topology declared, Consuming for the delivery loop, Closed at teardown.
const (
	stateIdle int32 = iota
	stateAwaitingTopology
	stateConsuming
	stateClosed
)

// consumer runs the delivery loop for one queue. Each consumer owns exactly
// one channel handle, named after it, for the whole loop. The shard consumers
// additionally drain the shared broadcast queue.
type consumer struct {
	name         string
	queue        string
	shardID      int
	broadcastKey string // empty when this consumer ignores the broadcast queue
	totalShards  int

	conn     *broker.ConnManager
	topology *broker.Topology
	router   *Router
	client   gateway.Client
	replier  *replier
	log      logging.ServiceLogger
	metrics  *metrics

	state atomic.Int32
}

// State returns the consumer's current lifecycle state.
func (c *consumer) State() int32 {
	return c.state.Load()
}

// Run provisions the consumer's channel, declares the topology, and drains
// deliveries until the context is cancelled or the broker closes the stream.
// It runs on its own goroutine, one per consumer.
func (c *consumer) Run(ctx context.Context) error {
	if !c.state.CompareAndSwap(stateIdle, stateAwaitingTopology) {
		return fmt.Errorf("consumer %s: already started", c.name)
	}
	defer c.state.Store(stateClosed)

	ch, err := c.conn.AcquireChannel(c.name)
	if err != nil {
		return err
	}
	defer c.conn.ReleaseChannel(c.name)

	if err := c.topology.Declare(ch); err != nil {
		return err
	}

	deliveries, err := ch.Consume(c.queue, c.name, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consumer %s: consume %s: %w", c.name, c.queue, err)
	}

	// A receive from a nil channel never fires, so consumers without a
	// broadcast subscription just skip that select arm.
	var broadcasts <-chan amqp.Delivery
	if c.broadcastKey != "" {
		broadcasts, err = ch.Consume(c.broadcastKey, c.name+".broadcast", false, false, false, false, nil)
		if err != nil {
			return fmt.Errorf("consumer %s: consume %s: %w", c.name, c.broadcastKey, err)
		}
	}

	c.state.Store(stateConsuming)
	c.log.Info("Consumer started", logging.LogFields{"queue": c.queue, "shard": c.shardID})

	for {
		select {
		case <-ctx.Done():
			c.log.Info("Consumer stopping", logging.LogFields{"queue": c.queue})
			return nil
		case msg, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("consumer %s: delivery stream closed", c.name)
			}
			c.handle(ctx, &msg, false)
		case msg, ok := <-broadcasts:
			if !ok {
				return fmt.Errorf("consumer %s: broadcast stream closed", c.name)
			}
			c.handle(ctx, &msg, true)
		}
	}
}

// handle settles exactly one delivery. Fire-and-forget messages carry no
// reply-to and are rejected without redelivery: there is nowhere to send a
// response, success or failure.
func (c *consumer) handle(ctx context.Context, msg *amqp.Delivery, fromBroadcast bool) {
	queue := c.queue
	if fromBroadcast {
		queue = c.broadcastKey
	}
	c.metrics.recordDelivery(queue)

	d := deliveryFromAMQP(msg)
	if d.ReplyTo == "" {
		if err := d.Reject(); err != nil {
			c.log.Error("Failed to reject fire-and-forget delivery", err, logging.LogFields{"queue": queue})
		}
		return
	}

	if fromBroadcast || (c.broadcastKey != "" && d.RoutingKey == c.broadcastKey) {
		c.handleBroadcast(ctx, d)
		return
	}
	c.router.Dispatch(ctx, d, c.shardID)
}

type broadcastRequest struct {
	UserID string `json:"user_id"`
	User   string `json:"user"`
}

func (b broadcastRequest) id() (uint64, bool) {
	if b.UserID != "" {
		return parseSnowflake(b.UserID)
	}
	return parseSnowflake(b.User)
}

type mutualGuildsPayload struct {
	Guilds []guildPayload `json:"guilds"`
	Count  int            `json:"count"`
}

// handleBroadcast answers cross-shard aggregate queries. The only broadcast
// query is mutual-guild enumeration for an external identity: every process
// replies with the hosted guilds the user belongs to, and the requester merges
// the responses.
func (c *consumer) handleBroadcast(ctx context.Context, d *Delivery) {
	resp := c.mutualGuilds(d.Body)
	if err := c.replier.sendAndAck(ctx, d, resp); err != nil {
		c.log.Error("Failed to deliver broadcast response", err, logging.LogFields{
			"correlation_id": d.CorrelationID,
			"reply_to":       d.ReplyTo,
		})
	}
}

func (c *consumer) mutualGuilds(body []byte) Response {
	var req broadcastRequest
	if err := jsoncodec.Unmarshal(body, &req); err != nil {
		return Failure(StatusBadRequest, CodeInvalidRequest, "request body is not valid JSON")
	}
	userID, ok := req.id()
	if !ok {
		return Failure(StatusBadRequest, CodeInvalidUser, "user id missing or malformed")
	}

	guilds := c.client.MutualGuilds(userID)
	payload := mutualGuildsPayload{Guilds: make([]guildPayload, 0, len(guilds)), Count: len(guilds)}
	for _, g := range guilds {
		payload.Guilds = append(payload.Guilds, newGuildPayload(g, c.totalShards))
	}
	return Success(payload)
}
