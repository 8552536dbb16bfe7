package rpc

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/glyphbot/shardlink/internal/rpc/broker"
	configpkg "github.com/glyphbot/shardlink/internal/rpc/config"
	errspkg "github.com/glyphbot/shardlink/internal/rpc/errors"
	"github.com/glyphbot/shardlink/internal/rpc/gateway"
	"github.com/glyphbot/shardlink/internal/rpc/interactions"
	"github.com/glyphbot/shardlink/internal/rpc/logging"
	"github.com/glyphbot/shardlink/internal/rpc/store"
)

// Dependencies holds the collaborators the Service runs against. Client and
// Store are required; the rest default sensibly when nil.
type Dependencies struct {
	Client       gateway.Client
	Store        store.Store
	Interactions *interactions.Registry
	// Dialer substitutes the broker connection factory, mainly for tests.
	Dialer broker.Dialer
	// ExtraNamespaces are registered after the default namespaces, so a
	// default prefix always wins over a colliding extra one.
	ExtraNamespaces []NamespaceRegistration
}

// Service wires the connection manager, topology, router, and one consumer
// per queue: one per hosted shard plus the meta and resource consumers.
type Service struct {
	conf *configpkg.Config
	log  logging.ServiceLogger

	conn         *broker.ConnManager
	topology     *broker.Topology
	replier      *replier
	router       *Router
	client       gateway.Client
	interactions *interactions.Registry
	metrics      *metrics

	consumers []*consumer

	mu      sync.Mutex
	started bool
}

// NewService validates the configuration, dials the broker, and assembles the
// routing plane. Consumers do not run until Start.
func NewService(conf *configpkg.Config, log logging.ServiceLogger, deps Dependencies) (*Service, error) {
	if conf == nil {
		return nil, errspkg.ErrConfigRequired
	}
	if log == nil {
		return nil, errspkg.ErrLoggerRequired
	}
	if deps.Client == nil {
		return nil, errspkg.ErrClientRequired
	}
	if deps.Store == nil {
		return nil, errspkg.ErrStoreRequired
	}
	if err := conf.Validate(); err != nil {
		return nil, errspkg.ConfigValidationError{Err: err}
	}

	log.Info("Creating shardlink service", logging.LogFields{"config": conf})

	conn, err := broker.NewConnManager(conf.AMQPURL, deps.Dialer, log)
	if err != nil {
		return nil, err
	}

	registry := deps.Interactions
	if registry == nil {
		registry = interactions.NewRegistry(conf.InteractionTTLOrDefault())
	}

	var m *metrics
	if conf.MetricsEnabled {
		m, err = newMetrics()
		if err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}

	s := &Service{
		conf:         conf,
		log:          log,
		conn:         conn,
		client:       deps.Client,
		interactions: registry,
		metrics:      m,
	}
	s.replier = &replier{pub: s.publishReply, log: log}

	regs := DefaultNamespaces(deps.Client, deps.Store, registry, conf.TotalShards)
	regs = append(regs, deps.ExtraNamespaces...)
	router, err := newRouter(regs, deps.Client, conf.TotalShards, conf.Shards, s.replier, log, m)
	if err != nil {
		return nil, err
	}
	s.router = router

	shardQueues := make([]string, len(conf.Shards))
	for i, shard := range conf.Shards {
		shardQueues[i] = conf.ShardQueueName(shard)
	}
	s.topology = &broker.Topology{
		BroadcastExchange: conf.BroadcastExchangeName(),
		BroadcastQueue:    conf.BroadcastQueueName(),
		MetaQueue:         conf.MetaQueueName(),
		ResourceQueue:     conf.ResourceQueueName(),
		ShardQueues:       shardQueues,
	}

	for _, shard := range conf.Shards {
		s.consumers = append(s.consumers, s.newConsumer(conf.ShardQueueName(shard), shard, conf.BroadcastQueueName()))
	}
	s.consumers = append(s.consumers,
		s.newConsumer(conf.MetaQueueName(), AnyShard, ""),
		s.newConsumer(conf.ResourceQueueName(), AnyShard, ""),
	)

	return s, nil
}

// DefaultNamespaces builds the registration list for the built-in processors.
// The process-wide guild listing registers under its full action path before
// the global namespace so the longer prefix wins the ordered match. Every
// other namespace is guild-scoped except interaction, whose guild context
// travels inside the stored handle.
func DefaultNamespaces(client gateway.Client, st store.Store, registry *interactions.Registry, totalShards int) []NamespaceRegistration {
	return []NamespaceRegistration{
		{Prefix: "global:guild:list", Handler: newGuildListProcessor(client, totalShards), RequiresGuild: false},
		{Prefix: "global", Handler: newGlobalProcessor(totalShards), RequiresGuild: true},
		{Prefix: "user", Handler: newUserProcessor(client), RequiresGuild: true},
		{Prefix: "role", Handler: newRoleProcessor(client), RequiresGuild: true},
		{Prefix: "channel", Handler: newChannelProcessor(client), RequiresGuild: true},
		{Prefix: "message", Handler: newMessageProcessor(client), RequiresGuild: true},
		{Prefix: "slot", Handler: newSlotProcessor(client, st), RequiresGuild: true},
		{Prefix: "interaction", Handler: newInteractionProcessor(client, registry), RequiresGuild: false},
	}
}

func (s *Service) newConsumer(queue string, shardID int, broadcastKey string) *consumer {
	return &consumer{
		name:         "consumer." + queue,
		queue:        queue,
		shardID:      shardID,
		broadcastKey: broadcastKey,
		totalShards:  s.conf.TotalShards,
		conn:         s.conn,
		topology:     s.topology,
		router:       s.router,
		client:       s.client,
		replier:      s.replier,
		log:          s.log.With(logging.LogFields{"queue": queue}),
		metrics:      s.metrics,
	}
}

// publishReply sends a response envelope to its reply-to queue through the
// default exchange. Synchronous dispatches and asynchronous gateway
// completions publish concurrently, so the shared reply channel is serialised
// here.
func (s *Service) publishReply(ctx context.Context, key string, msg amqp.Publishing) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, err := s.conn.AcquireChannel("replies")
	if err != nil {
		return err
	}
	return ch.PublishWithContext(ctx, "", key, false, false, msg)
}

// Interactions returns the pending-interaction registry so the embedding
// process can register handles as interactions arrive from the gateway.
func (s *Service) Interactions() *interactions.Registry {
	return s.interactions
}

// Start runs every consumer until the context is cancelled or one of them
// fails. The metrics endpoint, when enabled, serves for the lifetime of the
// process.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("shardlink: service already started")
	}
	s.started = true
	s.mu.Unlock()

	s.startMetricsServer()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errs := make(chan error, len(s.consumers))
	for _, c := range s.consumers {
		wg.Add(1)
		go func(c *consumer) {
			defer wg.Done()
			if err := c.Run(ctx); err != nil {
				errs <- err
				cancel()
			}
		}(c)
	}
	wg.Wait()
	close(errs)

	var first error
	for err := range errs {
		if first == nil {
			first = err
		} else {
			s.log.Error("Consumer failed", err, nil)
		}
	}
	return first
}

func (s *Service) startMetricsServer() {
	if s.metrics == nil || s.conf.MetricsPort == 0 {
		return
	}
	addr := fmt.Sprintf(":%d", s.conf.MetricsPort)
	mux := http.NewServeMux()
	mux.Handle("/metrics", s.metrics.Handler())
	s.log.Info("Starting metrics server", logging.LogFields{"address": addr})
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			s.log.Error("Metrics server stopped", err, logging.LogFields{"address": addr})
		}
	}()
}

// Close tears down the broker connection and every channel handle.
func (s *Service) Close() error {
	return s.conn.Close()
}
