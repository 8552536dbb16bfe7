package rpc

import (
	"context"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/glyphbot/shardlink/internal/rpc/logging"
)

func newTestConsumer(env *testEnv, broadcastKey string) *consumer {
	return &consumer{
		name:         "consumer.test",
		queue:        "shard.1",
		shardID:      testShard,
		broadcastKey: broadcastKey,
		totalShards:  testTotalShards,
		router:       env.router,
		client:       env.client,
		replier:      &replier{pub: env.pub.publish, log: logging.Nop()},
		log:          logging.Nop(),
	}
}

func amqpDelivery(action, replyTo, routingKey string, body string, acker *fakeAcker) *amqp.Delivery {
	return &amqp.Delivery{
		Acknowledger:  acker,
		Headers:       amqp.Table{"action": action},
		CorrelationId: "corr-1",
		ReplyTo:       replyTo,
		RoutingKey:    routingKey,
		DeliveryTag:   7,
		Body:          []byte(body),
	}
}

func TestConsumerStartsIdle(t *testing.T) {
	env := newTestEnv(t)
	c := newTestConsumer(env, "")
	if c.State() != stateIdle {
		t.Fatalf("state = %d, want idle", c.State())
	}
}

func TestConsumerHandleDispatches(t *testing.T) {
	env := newTestEnv(t)
	c := newTestConsumer(env, "")
	acker := &fakeAcker{}

	msg := amqpDelivery("global:guild", "replies.app", "shard.1", `{"guild_id": "4194304"}`, acker)
	c.handle(context.Background(), msg, false)

	resp := env.pub.lastResponse(t)
	if resp.StatusCode != StatusOK {
		t.Fatalf("status = %d (%+v)", resp.StatusCode, resp.Error)
	}
	var guild guildPayload
	remarshal(t, resp.Data, &guild)
	if guild.ID != "4194304" || guild.Shard != testShard {
		t.Fatalf("unexpected guild payload: %+v", guild)
	}
	if acker.ackCount() != 1 || acker.rejectCount() != 0 {
		t.Fatalf("acks = %d rejects = %d, want exactly one ack", acker.ackCount(), acker.rejectCount())
	}
}

func TestConsumerRejectsFireAndForget(t *testing.T) {
	env := newTestEnv(t)
	c := newTestConsumer(env, "")
	acker := &fakeAcker{}

	msg := amqpDelivery("global:guild", "", "shard.1", `{"guild_id": "4194304"}`, acker)
	c.handle(context.Background(), msg, false)

	if len(env.pub.replies()) != 0 {
		t.Fatalf("no response expected without a reply-to, got %d", len(env.pub.replies()))
	}
	if acker.rejectCount() != 1 || acker.ackCount() != 0 {
		t.Fatalf("acks = %d rejects = %d, want exactly one reject", acker.ackCount(), acker.rejectCount())
	}
}

func TestConsumerBroadcastMutualGuilds(t *testing.T) {
	env := newTestEnv(t)
	c := newTestConsumer(env, "broadcast")
	acker := &fakeAcker{}

	msg := amqpDelivery("", "replies.app", "broadcast", `{"user_id": "101"}`, acker)
	c.handle(context.Background(), msg, true)

	resp := env.pub.lastResponse(t)
	if resp.StatusCode != StatusOK {
		t.Fatalf("status = %d (%+v)", resp.StatusCode, resp.Error)
	}
	var payload mutualGuildsPayload
	remarshal(t, resp.Data, &payload)
	if payload.Count != 1 || len(payload.Guilds) != 1 || payload.Guilds[0].ID != "4194304" {
		t.Fatalf("unexpected mutual guilds: %+v", payload)
	}
	if acker.ackCount() != 1 {
		t.Fatalf("ack count = %d, want 1", acker.ackCount())
	}
}

func TestConsumerBroadcastByRoutingKey(t *testing.T) {
	env := newTestEnv(t)
	c := newTestConsumer(env, "broadcast")
	acker := &fakeAcker{}

	// Routed through the shard queue stream but keyed to the broadcast queue.
	msg := amqpDelivery("", "replies.app", "broadcast", `{"user": "102"}`, acker)
	c.handle(context.Background(), msg, false)

	resp := env.pub.lastResponse(t)
	if resp.StatusCode != StatusOK {
		t.Fatalf("status = %d (%+v)", resp.StatusCode, resp.Error)
	}
	var payload mutualGuildsPayload
	remarshal(t, resp.Data, &payload)
	if payload.Count != 1 {
		t.Fatalf("unexpected mutual guilds: %+v", payload)
	}
}

func TestConsumerBroadcastUnknownUser(t *testing.T) {
	env := newTestEnv(t)
	c := newTestConsumer(env, "broadcast")
	acker := &fakeAcker{}

	msg := amqpDelivery("", "replies.app", "broadcast", `{"user_id": "999"}`, acker)
	c.handle(context.Background(), msg, true)

	resp := env.pub.lastResponse(t)
	if resp.StatusCode != StatusOK {
		t.Fatalf("status = %d (%+v)", resp.StatusCode, resp.Error)
	}
	var payload mutualGuildsPayload
	remarshal(t, resp.Data, &payload)
	if payload.Count != 0 || len(payload.Guilds) != 0 {
		t.Fatalf("expected empty mutual guild set: %+v", payload)
	}
}

func TestConsumerBroadcastInvalidBody(t *testing.T) {
	env := newTestEnv(t)
	c := newTestConsumer(env, "broadcast")
	acker := &fakeAcker{}

	msg := amqpDelivery("", "replies.app", "broadcast", `{}`, acker)
	c.handle(context.Background(), msg, true)

	resp := env.pub.lastResponse(t)
	if resp.StatusCode != StatusBadRequest || resp.Error.ErrorCode != string(CodeInvalidUser) {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if acker.ackCount() != 1 {
		t.Fatalf("broadcast failures still ack once, got %d", acker.ackCount())
	}
}
