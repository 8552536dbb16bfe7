package rpc

import (
	"github.com/glyphbot/shardlink/internal/rpc/gateway"
)

// messageProcessor serves message CRUD. Sends and edits come in a "simple"
// shape (plain content) and a "complex" shape (content plus embeds); fetches
// complete asynchronously because message history lives on the gateway side.
type messageProcessor struct {
	routeTable
	client gateway.Client
}

func newMessageProcessor(client gateway.Client) *messageProcessor {
	p := &messageProcessor{client: client}
	p.routeTable = routeTable{
		namespace: "message",
		routes: []route{
			{pattern: []string{"send", "simple"}, handle: p.sendSimple},
			{pattern: []string{"send", "complex"}, handle: p.sendComplex},
			{pattern: []string{"edit", "simple"}, handle: p.editSimple},
			{pattern: []string{"edit", "complex"}, handle: p.editComplex},
			{pattern: []string{"list"}, handle: p.list},
			{pattern: []string{"get"}, handle: p.get},
		},
	}
	return p
}

type messageRequest struct {
	Channel channelRef      `json:"channel"`
	Message string          `json:"message"`
	Content string          `json:"content"`
	Embeds  []gateway.Embed `json:"embeds"`
	pageRequest
}

func (p *messageProcessor) resolveText(req *Request, ref channelRef) (*gateway.Channel, *Response) {
	ch, fail := req.resolveChannel(ref)
	if fail != nil {
		return nil, fail
	}
	if resp := requireCapability(ch, gateway.CapText); resp != nil {
		return nil, resp
	}
	return ch, nil
}

func messageCompletion(req *Request) gateway.MessageFunc {
	return func(msg *gateway.Message, err error) {
		if err != nil {
			req.Finish(nil, err)
			return
		}
		req.Finish(newMessagePayload(msg), nil)
	}
}

func (p *messageProcessor) sendSimple(req *Request) (Result, error) {
	var body messageRequest
	if err := req.Decode(&body); err != nil {
		return badRequest(CodeInvalidRequest, "malformed request body")
	}
	ch, fail := p.resolveText(req, body.Channel)
	if fail != nil {
		return Pending(*fail), nil
	}
	if body.Content == "" {
		return badRequest(CodeInvalidRequest, "content is required")
	}
	p.client.SendMessage(req.Guild.ID, ch.ID, gateway.Outgoing{Content: body.Content}, messageCompletion(req))
	return Replied(), nil
}

func (p *messageProcessor) sendComplex(req *Request) (Result, error) {
	var body messageRequest
	if err := req.Decode(&body); err != nil {
		return badRequest(CodeInvalidRequest, "malformed request body")
	}
	ch, fail := p.resolveText(req, body.Channel)
	if fail != nil {
		return Pending(*fail), nil
	}
	if body.Content == "" && len(body.Embeds) == 0 {
		return badRequest(CodeInvalidRequest, "content or embeds are required")
	}
	out := gateway.Outgoing{Content: body.Content, Embeds: body.Embeds}
	p.client.SendMessage(req.Guild.ID, ch.ID, out, messageCompletion(req))
	return Replied(), nil
}

func (p *messageProcessor) editSimple(req *Request) (Result, error) {
	var body messageRequest
	if err := req.Decode(&body); err != nil {
		return badRequest(CodeInvalidRequest, "malformed request body")
	}
	ch, fail := p.resolveText(req, body.Channel)
	if fail != nil {
		return Pending(*fail), nil
	}
	messageID, ok := parseSnowflake(body.Message)
	if !ok {
		return badRequest(CodeInvalidMessage, "message id missing or malformed")
	}
	if body.Content == "" {
		return badRequest(CodeInvalidRequest, "content is required")
	}
	p.client.EditMessage(req.Guild.ID, ch.ID, messageID, gateway.Outgoing{Content: body.Content}, messageCompletion(req))
	return Replied(), nil
}

func (p *messageProcessor) editComplex(req *Request) (Result, error) {
	var body messageRequest
	if err := req.Decode(&body); err != nil {
		return badRequest(CodeInvalidRequest, "malformed request body")
	}
	ch, fail := p.resolveText(req, body.Channel)
	if fail != nil {
		return Pending(*fail), nil
	}
	messageID, ok := parseSnowflake(body.Message)
	if !ok {
		return badRequest(CodeInvalidMessage, "message id missing or malformed")
	}
	if body.Content == "" && len(body.Embeds) == 0 {
		return badRequest(CodeInvalidRequest, "content or embeds are required")
	}
	out := gateway.Outgoing{Content: body.Content, Embeds: body.Embeds}
	p.client.EditMessage(req.Guild.ID, ch.ID, messageID, out, messageCompletion(req))
	return Replied(), nil
}

func (p *messageProcessor) list(req *Request) (Result, error) {
	var body messageRequest
	if err := req.Decode(&body); err != nil {
		return badRequest(CodeInvalidRequest, "malformed request body")
	}
	ch, fail := p.resolveText(req, body.Channel)
	if fail != nil {
		return Pending(*fail), nil
	}
	start, count := body.Start, body.Count
	p.client.Messages(req.Guild.ID, ch.ID, func(msgs []*gateway.Message, err error) {
		if err != nil {
			req.Finish(nil, err)
			return
		}
		result := paginate(msgs, func(m *gateway.Message) uint64 { return m.ID }, start, count)
		req.Finish(mapPage(result, newMessagePayload), nil)
	})
	return Replied(), nil
}

func (p *messageProcessor) get(req *Request) (Result, error) {
	var body messageRequest
	if err := req.Decode(&body); err != nil {
		return badRequest(CodeInvalidRequest, "malformed request body")
	}
	ch, fail := p.resolveText(req, body.Channel)
	if fail != nil {
		return Pending(*fail), nil
	}
	messageID, ok := parseSnowflake(body.Message)
	if !ok {
		return badRequest(CodeInvalidMessage, "message id missing or malformed")
	}
	p.client.Message(req.Guild.ID, ch.ID, messageID, messageCompletion(req))
	return Replied(), nil
}
