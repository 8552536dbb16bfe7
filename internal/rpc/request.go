package rpc

import (
	"context"
	"fmt"
	"strconv"

	"github.com/glyphbot/shardlink/internal/rpc/gateway"
	"github.com/glyphbot/shardlink/internal/rpc/jsoncodec"
	"github.com/glyphbot/shardlink/internal/rpc/logging"
)

// Request carries everything a processor needs for one delivery: the action
// path after namespace stripping, the raw JSON body, and (for guild-scoped
// namespaces) the resolved guild snapshot. It is created per delivery and
// discarded once the response is acked.
type Request struct {
	Path     []string
	Raw      []byte
	Guild    *gateway.Guild
	Delivery *Delivery
	Log      logging.ServiceLogger

	ctx     context.Context
	replier *replier
}

// Context returns the dispatch context.
func (r *Request) Context() context.Context {
	return r.ctx
}

// Decode unmarshals the request body into v.
func (r *Request) Decode(v any) error {
	if err := jsoncodec.Unmarshal(r.Raw, v); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}

// Finish performs the single asynchronous sendAndAck for a delivery whose
// processor returned Replied. A collaborator error is mapped onto the
// envelope taxonomy; otherwise data becomes the success payload. This is the
// shared continuation for every callback-based gateway call.
func (r *Request) Finish(data any, err error) {
	resp := Success(data)
	if err != nil {
		resp = MapError(err)
	}
	if sendErr := r.replier.sendAndAck(r.ctx, r.Delivery, resp); sendErr != nil {
		r.Log.Error("Failed to send asynchronous response", sendErr, logging.LogFields{
			"correlation_id": r.Delivery.CorrelationID,
			"action":         r.Delivery.Action,
		})
	}
}

type okPayload struct {
	OK bool `json:"ok"`
}

// Completion adapts Finish to the gateway's completion callback shape for
// mutations that have no payload beyond their outcome.
func (r *Request) Completion() gateway.CompletionFunc {
	return func(err error) {
		if err != nil {
			r.Finish(nil, err)
			return
		}
		r.Finish(okPayload{OK: true}, nil)
	}
}

// badRequest is shorthand for a BadRequest-band pending failure.
func badRequest(code ErrorCode, format string, args ...any) (Result, error) {
	return Pending(Failure(StatusBadRequest, code, fmt.Sprintf(format, args...))), nil
}

// notFound is shorthand for a NotFound-band pending failure.
func notFound(code ErrorCode, format string, args ...any) (Result, error) {
	return Pending(Failure(StatusNotFound, code, fmt.Sprintf(format, args...))), nil
}

// parseSnowflake parses a decimal string id as used on the wire for guilds,
// users, roles, channels, and messages.
func parseSnowflake(s string) (uint64, bool) {
	if s == "" {
		return 0, false
	}
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// channelRef is the wire-level channel descriptor {type, id}.
type channelRef struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// resolveChannel resolves a channel descriptor against the request's guild.
// The descriptor's declared type must match the channel's actual type; the
// capability view is derived from the type once, here.
func (r *Request) resolveChannel(ref channelRef) (*gateway.Channel, *Response) {
	declared, ok := gateway.ParseChannelType(ref.Type)
	if !ok {
		return nil, failurePtr(StatusBadRequest, CodeInvalidChannel, fmt.Sprintf("unknown channel type %q", ref.Type))
	}
	id, ok := parseSnowflake(ref.ID)
	if !ok {
		return nil, failurePtr(StatusBadRequest, CodeInvalidChannel, "channel id missing or malformed")
	}
	ch, ok := r.Guild.Channel(id)
	if !ok {
		return nil, failurePtr(StatusBadRequest, CodeInvalidChannel, fmt.Sprintf("channel %d not found", id))
	}
	if ch.Type != declared {
		return nil, failurePtr(StatusBadRequest, CodeInvalidChannel, fmt.Sprintf("channel %d is %s, not %s", id, ch.Type, declared))
	}
	return ch, nil
}

// requireCapability fails with an UnsupportedCapability envelope unless the
// channel supports the capability.
func requireCapability(ch *gateway.Channel, cap gateway.Capability) *Response {
	if err := ch.Require(cap); err != nil {
		resp := MapError(err)
		return &resp
	}
	return nil
}

// member resolves a wire-level user id against the request's guild.
func (r *Request) member(userID string) (*gateway.Member, *Response) {
	id, ok := parseSnowflake(userID)
	if !ok {
		return nil, failurePtr(StatusBadRequest, CodeInvalidUser, "user id missing or malformed")
	}
	m, ok := r.Guild.Member(id)
	if !ok {
		return nil, failurePtr(StatusBadRequest, CodeInvalidUser, fmt.Sprintf("member %d not found", id))
	}
	return m, nil
}

// role resolves a wire-level role id against the request's guild.
func (r *Request) role(roleID string) (*gateway.Role, *Response) {
	id, ok := parseSnowflake(roleID)
	if !ok {
		return nil, failurePtr(StatusBadRequest, CodeInvalidRole, "role id missing or malformed")
	}
	role, ok := r.Guild.Role(id)
	if !ok {
		return nil, failurePtr(StatusBadRequest, CodeInvalidRole, fmt.Sprintf("role %d not found", id))
	}
	return role, nil
}

func failurePtr(status int, code ErrorCode, message string) *Response {
	resp := Failure(status, code, message)
	return &resp
}
