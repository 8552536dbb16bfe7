package rpc

import (
	"github.com/glyphbot/shardlink/internal/rpc/gateway"
	"github.com/glyphbot/shardlink/internal/rpc/interactions"
)

// interactionProcessor answers pending interactions. Handles are one-shot:
// the registry hands the handle out exactly once, so a duplicate reply for
// the same interaction id reports it as expired.
type interactionProcessor struct {
	routeTable
	client   gateway.Client
	registry *interactions.Registry
}

func newInteractionProcessor(client gateway.Client, registry *interactions.Registry) *interactionProcessor {
	p := &interactionProcessor{client: client, registry: registry}
	p.routeTable = routeTable{
		namespace: "interaction",
		routes: []route{
			{pattern: []string{"reply", "simple"}, handle: p.replySimple},
			{pattern: []string{"reply", "complex"}, handle: p.replyComplex},
		},
	}
	return p
}

type interactionRequest struct {
	Interaction string          `json:"interaction"`
	Content     string          `json:"content"`
	Embeds      []gateway.Embed `json:"embeds"`
}

func (p *interactionProcessor) replySimple(req *Request) (Result, error) {
	var body interactionRequest
	if err := req.Decode(&body); err != nil {
		return badRequest(CodeInvalidRequest, "malformed request body")
	}
	if body.Content == "" {
		return badRequest(CodeInvalidRequest, "reply content required")
	}
	handle, fail := p.take(body.Interaction)
	if fail != nil {
		return Pending(*fail), nil
	}
	p.client.ReplyInteraction(handle.Token, gateway.Outgoing{Content: body.Content}, req.Completion())
	return Replied(), nil
}

func (p *interactionProcessor) replyComplex(req *Request) (Result, error) {
	var body interactionRequest
	if err := req.Decode(&body); err != nil {
		return badRequest(CodeInvalidRequest, "malformed request body")
	}
	if body.Content == "" && len(body.Embeds) == 0 {
		return badRequest(CodeInvalidRequest, "reply needs content or embeds")
	}
	handle, fail := p.take(body.Interaction)
	if fail != nil {
		return Pending(*fail), nil
	}
	out := gateway.Outgoing{Content: body.Content, Embeds: body.Embeds}
	p.client.ReplyInteraction(handle.Token, out, req.Completion())
	return Replied(), nil
}

// take validates the wire id and claims the handle. Validation happens before
// the claim so a malformed request cannot consume a live handle.
func (p *interactionProcessor) take(raw string) (*interactions.Handle, *Response) {
	id, ok := parseSnowflake(raw)
	if !ok {
		return nil, failurePtr(StatusBadRequest, CodeInvalidRequest, "interaction id missing or malformed")
	}
	handle, ok := p.registry.Take(id)
	if !ok {
		return nil, failurePtr(StatusNotFound, CodeInteractionExpired, "interaction expired or already answered")
	}
	return handle, nil
}
