package rpc

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	errspkg "github.com/glyphbot/shardlink/internal/rpc/errors"
	"github.com/glyphbot/shardlink/internal/rpc/gateway"
	"github.com/glyphbot/shardlink/internal/rpc/jsoncodec"
	"github.com/glyphbot/shardlink/internal/rpc/logging"
)

const actionDelimiter = ":"

// AnyShard lets the meta and resource consumers dispatch guild-scoped actions
// for every shard hosted by this process instead of a single fixed one.
const AnyShard = -1

// ShardOf computes the shard that owns a guild.
func ShardOf(guildID uint64, totalShards int) int {
	return int((guildID >> 22) % uint64(totalShards))
}

// Processor services one namespace of remote actions.
type Processor interface {
	Process(req *Request) (Result, error)
}

// NamespaceRegistration binds an action prefix to its processor. Registered
// once at startup; immutable thereafter. Prefixes must not ambiguously
// overlap: registration order is the only tie-break.
type NamespaceRegistration struct {
	Prefix        string
	Handler       Processor
	RequiresGuild bool
}

// Router selects the namespace processor for an action header and enforces
// the guild-affinity precondition before any guild-scoped processor runs.
type Router struct {
	registrations []NamespaceRegistration
	client        gateway.Client
	totalShards   int
	hosted        map[int]bool

	replier *replier
	log     logging.ServiceLogger
	tracer  trace.Tracer
	metrics *metrics
}

func newRouter(regs []NamespaceRegistration, client gateway.Client, totalShards int, hosted []int, rep *replier, log logging.ServiceLogger, m *metrics) (*Router, error) {
	for _, reg := range regs {
		if reg.Prefix == "" {
			return nil, errspkg.ErrPrefixRequired
		}
		if reg.Handler == nil {
			return nil, errspkg.ErrProcessorRequired
		}
	}
	hostedSet := make(map[int]bool, len(hosted))
	for _, shard := range hosted {
		hostedSet[shard] = true
	}
	return &Router{
		registrations: regs,
		client:        client,
		totalShards:   totalShards,
		hosted:        hostedSet,
		replier:       rep,
		log:           log,
		tracer:        otel.Tracer("shardlink"),
		metrics:       m,
	}, nil
}

// Dispatch routes one delivery and guarantees exactly one settle for it: a
// synchronous result is sent and acked here, a Replied result leaves the
// single sendAndAck to the processor's asynchronous continuation. Panics while
// decoding or routing are caught and answered with a best-effort
// ServerException envelope.
func (rt *Router) Dispatch(ctx context.Context, d *Delivery, shardID int) {
	ctx, span := rt.tracer.Start(ctx, "Dispatch", trace.WithAttributes(
		attribute.String("action", d.Action),
		attribute.String("correlation_id", d.CorrelationID),
	))
	defer span.End()

	start := time.Now()
	namespace := "none"
	var result Result

	func() {
		defer func() {
			if rec := recover(); rec != nil {
				rt.log.Error("Handler panicked", fmt.Errorf("panic: %v", rec), logging.LogFields{
					"action":         d.Action,
					"correlation_id": d.CorrelationID,
				})
				result = Pending(Failure(StatusServerError, CodeServerException, fmt.Sprintf("panic: %v", rec)))
			}
		}()

		var err error
		result, namespace, err = rt.dispatch(ctx, d, shardID)
		if err != nil {
			result = Pending(MapError(err))
		}
	}()

	rt.metrics.observeDispatch(namespace, time.Since(start))

	if result.IsReplied() {
		return
	}

	resp := result.Response()
	rt.metrics.recordOutcome(Categorize(resp))
	if err := rt.replier.sendAndAck(ctx, d, resp); err != nil {
		rt.log.Error("Failed to deliver response", err, logging.LogFields{
			"action":         d.Action,
			"correlation_id": d.CorrelationID,
			"reply_to":       d.ReplyTo,
		})
	}
}

func (rt *Router) dispatch(ctx context.Context, d *Delivery, shardID int) (Result, string, error) {
	reg, ok := rt.match(d.Action)
	if !ok {
		return Pending(Failure(StatusBadRequest, CodeInvalidAction, fmt.Sprintf("unsupported action %q", d.Action))), "none", nil
	}

	req := &Request{
		Path:     actionPath(d.Action, reg.Prefix),
		Raw:      d.Body,
		Delivery: d,
		Log:      rt.log.With(logging.LogFields{"namespace": reg.Prefix, "correlation_id": d.CorrelationID}),
		ctx:      ctx,
		replier:  rt.replier,
	}

	if reg.RequiresGuild {
		guild, resp := rt.resolveGuild(d.Body, shardID)
		if resp != nil {
			return Pending(*resp), reg.Prefix, nil
		}
		req.Guild = guild
	}

	result, err := reg.Handler.Process(req)
	return result, reg.Prefix, err
}

// match selects the first registration whose prefix is a literal prefix of
// the action header.
func (rt *Router) match(action string) (NamespaceRegistration, bool) {
	for _, reg := range rt.registrations {
		if strings.HasPrefix(action, reg.Prefix) {
			return reg, true
		}
	}
	return NamespaceRegistration{}, false
}

// actionPath strips the matched prefix and tokenizes the remainder on the
// delimiter, discarding empty tokens so repeated delimiters collapse.
func actionPath(action, prefix string) []string {
	rest := strings.TrimPrefix(action, prefix)
	parts := strings.Split(rest, actionDelimiter)
	path := make([]string, 0, len(parts))
	for _, part := range parts {
		if part != "" {
			path = append(path, part)
		}
	}
	return path
}

type guildScope struct {
	GuildID string `json:"guild_id"`
	// Guild is accepted as a legacy alias for guild_id.
	Guild string `json:"guild"`
}

func (g guildScope) id() (uint64, bool) {
	if g.GuildID != "" {
		return parseSnowflake(g.GuildID)
	}
	return parseSnowflake(g.Guild)
}

// resolveGuild enforces the three-step guild-affinity precondition: the body
// must carry a parseable guild id, the owning shard must be served by this
// consumer, and the guild must resolve against the live tenant set.
func (rt *Router) resolveGuild(body []byte, shardID int) (*gateway.Guild, *Response) {
	var scope guildScope
	if err := jsoncodec.Unmarshal(body, &scope); err != nil {
		return nil, failurePtr(StatusBadRequest, CodeInvalidGuild, "request body is not valid JSON")
	}
	guildID, ok := scope.id()
	if !ok {
		return nil, failurePtr(StatusBadRequest, CodeInvalidGuild, "guild id missing or malformed")
	}

	owning := ShardOf(guildID, rt.totalShards)
	if shardID == AnyShard {
		if !rt.hosted[owning] {
			return nil, failurePtr(StatusBadRequest, CodeInvalidShard, fmt.Sprintf("guild %d belongs to shard %d, not hosted here", guildID, owning))
		}
	} else if owning != shardID {
		return nil, failurePtr(StatusBadRequest, CodeInvalidShard, fmt.Sprintf("guild %d belongs to shard %d, not %d", guildID, owning, shardID))
	}

	guild, ok := rt.client.Guild(guildID)
	if !ok {
		return nil, failurePtr(StatusBadRequest, CodeInvalidGuild, fmt.Sprintf("guild %d not resolvable on this shard", guildID))
	}
	return guild, nil
}
