package rpc

import (
	"github.com/glyphbot/shardlink/internal/rpc/gateway"
)

// userProcessor serves per-member mutations. Every mutation fires one gateway
// call and replies from its completion callback; the read-only routes answer
// synchronously from the guild snapshot.
type userProcessor struct {
	routeTable
	client gateway.Client
}

func newUserProcessor(client gateway.Client) *userProcessor {
	p := &userProcessor{client: client}
	p.routeTable = routeTable{
		namespace: "user",
		routes: []route{
			{pattern: []string{"nick", "set"}, handle: p.setNick},
			{pattern: []string{"role", "add"}, handle: p.addRole},
			{pattern: []string{"role", "remove"}, handle: p.removeRole},
			{pattern: []string{"role", "has"}, handle: p.hasRole},
			{pattern: []string{"mute"}, handle: p.mute},
			{pattern: []string{"deaf"}, handle: p.deaf},
			{pattern: []string{"permission", "has"}, handle: p.hasPermission},
		},
	}
	return p
}

type userMutationRequest struct {
	User       string `json:"user"`
	Nick       string `json:"nick"`
	Role       string `json:"role"`
	Muted      bool   `json:"muted"`
	Deafened   bool   `json:"deafened"`
	Permission string `json:"permission"`
}

func (p *userProcessor) setNick(req *Request) (Result, error) {
	var body userMutationRequest
	if err := req.Decode(&body); err != nil {
		return badRequest(CodeInvalidRequest, "malformed request body")
	}
	member, fail := req.member(body.User)
	if fail != nil {
		return Pending(*fail), nil
	}
	p.client.SetNickname(req.Guild.ID, member.ID, body.Nick, req.Completion())
	return Replied(), nil
}

func (p *userProcessor) addRole(req *Request) (Result, error) {
	var body userMutationRequest
	if err := req.Decode(&body); err != nil {
		return badRequest(CodeInvalidRequest, "malformed request body")
	}
	member, fail := req.member(body.User)
	if fail != nil {
		return Pending(*fail), nil
	}
	role, fail := req.role(body.Role)
	if fail != nil {
		return Pending(*fail), nil
	}
	p.client.AddRole(req.Guild.ID, member.ID, role.ID, req.Completion())
	return Replied(), nil
}

func (p *userProcessor) removeRole(req *Request) (Result, error) {
	var body userMutationRequest
	if err := req.Decode(&body); err != nil {
		return badRequest(CodeInvalidRequest, "malformed request body")
	}
	member, fail := req.member(body.User)
	if fail != nil {
		return Pending(*fail), nil
	}
	role, fail := req.role(body.Role)
	if fail != nil {
		return Pending(*fail), nil
	}
	p.client.RemoveRole(req.Guild.ID, member.ID, role.ID, req.Completion())
	return Replied(), nil
}

func (p *userProcessor) hasRole(req *Request) (Result, error) {
	var body userMutationRequest
	if err := req.Decode(&body); err != nil {
		return badRequest(CodeInvalidRequest, "malformed request body")
	}
	member, fail := req.member(body.User)
	if fail != nil {
		return Pending(*fail), nil
	}
	role, fail := req.role(body.Role)
	if fail != nil {
		return Pending(*fail), nil
	}
	return Pending(Success(map[string]bool{"has": member.HasRole(role.ID)})), nil
}

func (p *userProcessor) mute(req *Request) (Result, error) {
	var body userMutationRequest
	if err := req.Decode(&body); err != nil {
		return badRequest(CodeInvalidRequest, "malformed request body")
	}
	member, fail := req.member(body.User)
	if fail != nil {
		return Pending(*fail), nil
	}
	p.client.SetMute(req.Guild.ID, member.ID, body.Muted, req.Completion())
	return Replied(), nil
}

func (p *userProcessor) deaf(req *Request) (Result, error) {
	var body userMutationRequest
	if err := req.Decode(&body); err != nil {
		return badRequest(CodeInvalidRequest, "malformed request body")
	}
	member, fail := req.member(body.User)
	if fail != nil {
		return Pending(*fail), nil
	}
	p.client.SetDeaf(req.Guild.ID, member.ID, body.Deafened, req.Completion())
	return Replied(), nil
}

func (p *userProcessor) hasPermission(req *Request) (Result, error) {
	var body userMutationRequest
	if err := req.Decode(&body); err != nil {
		return badRequest(CodeInvalidRequest, "malformed request body")
	}
	member, fail := req.member(body.User)
	if fail != nil {
		return Pending(*fail), nil
	}
	perm, ok := gateway.ParsePermission(body.Permission)
	if !ok {
		return badRequest(CodeInvalidPermission, "unknown permission %q", body.Permission)
	}
	return Pending(Success(map[string]bool{"has": req.Guild.HasPermission(member, perm)})), nil
}
