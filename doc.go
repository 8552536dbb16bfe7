// Package shardlink is the remote-control plane for a sharded chat-gateway
// process. It consumes action requests from an AMQP broker, routes them to
// per-namespace processors running against the process's live gateway client
// and entity store, and publishes a JSON response envelope back to each
// request's reply-to queue.
//
// One Service hosts one consumer per shard queue plus the shared meta and
// resource consumers. Each consumer owns a dedicated broker channel; the
// single connection is shared and transparently re-established. A request's
// action header ("user:nick:set", "channel:text:topic:get", ...) selects the
// namespace processor by literal prefix, and the remaining path tokens select
// the operation inside it. Guild-scoped namespaces verify that the addressed
// guild actually belongs to the consuming shard before any handler runs.
//
// Every delivery is settled exactly once. Handlers either return a response
// for the router to send and ack synchronously, or hand the delivery to an
// asynchronous gateway completion which sends and acks later. Deliveries
// without a reply-to destination are rejected without redelivery.
//
// The embedding process supplies the collaborators: a gateway.Client for live
// guild state and mutations, a store.Store for slot persistence, and
// optionally an interaction registry, a broker dialer, and extra namespace
// registrations. See examples/ for a minimal bootstrap.
package shardlink
