package rpc

import (
	"github.com/glyphbot/shardlink/internal/rpc/gateway"
)

// roleProcessor serves per-role mutations and tag introspection.
type roleProcessor struct {
	routeTable
	client gateway.Client
}

func newRoleProcessor(client gateway.Client) *roleProcessor {
	p := &roleProcessor{client: client}
	p.routeTable = routeTable{
		namespace: "role",
		routes: []route{
			{pattern: []string{"permission", "grant"}, handle: p.grant},
			{pattern: []string{"permission", "revoke"}, handle: p.revoke},
			{pattern: []string{"position", "set"}, handle: p.setPosition},
			{pattern: []string{"tags"}, handle: p.tags},
		},
	}
	return p
}

type roleMutationRequest struct {
	Role       string `json:"role"`
	Permission string `json:"permission"`
	Position   int    `json:"position"`
}

func (p *roleProcessor) grant(req *Request) (Result, error) {
	var body roleMutationRequest
	if err := req.Decode(&body); err != nil {
		return badRequest(CodeInvalidRequest, "malformed request body")
	}
	role, fail := req.role(body.Role)
	if fail != nil {
		return Pending(*fail), nil
	}
	perm, ok := gateway.ParsePermission(body.Permission)
	if !ok {
		return badRequest(CodeInvalidPermission, "unknown permission %q", body.Permission)
	}
	p.client.GrantPermission(req.Guild.ID, role.ID, perm, req.Completion())
	return Replied(), nil
}

func (p *roleProcessor) revoke(req *Request) (Result, error) {
	var body roleMutationRequest
	if err := req.Decode(&body); err != nil {
		return badRequest(CodeInvalidRequest, "malformed request body")
	}
	role, fail := req.role(body.Role)
	if fail != nil {
		return Pending(*fail), nil
	}
	perm, ok := gateway.ParsePermission(body.Permission)
	if !ok {
		return badRequest(CodeInvalidPermission, "unknown permission %q", body.Permission)
	}
	p.client.RevokePermission(req.Guild.ID, role.ID, perm, req.Completion())
	return Replied(), nil
}

func (p *roleProcessor) setPosition(req *Request) (Result, error) {
	var body roleMutationRequest
	if err := req.Decode(&body); err != nil {
		return badRequest(CodeInvalidRequest, "malformed request body")
	}
	role, fail := req.role(body.Role)
	if fail != nil {
		return Pending(*fail), nil
	}
	if body.Position < 0 {
		return badRequest(CodeInvalidRequest, "position cannot be negative")
	}
	p.client.SetRolePosition(req.Guild.ID, role.ID, body.Position, req.Completion())
	return Replied(), nil
}

func (p *roleProcessor) tags(req *Request) (Result, error) {
	var body roleMutationRequest
	if err := req.Decode(&body); err != nil {
		return badRequest(CodeInvalidRequest, "malformed request body")
	}
	role, fail := req.role(body.Role)
	if fail != nil {
		return Pending(*fail), nil
	}
	payload := roleTagsPayload{PremiumSubscriber: role.Tags.PremiumSubscriber}
	if role.Tags.BotID != 0 {
		payload.BotID = fmtID(role.Tags.BotID)
	}
	if role.Tags.IntegrationID != 0 {
		payload.IntegrationID = fmtID(role.Tags.IntegrationID)
	}
	return Pending(Success(payload)), nil
}
