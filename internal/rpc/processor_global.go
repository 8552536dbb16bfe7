package rpc

import (
	"github.com/glyphbot/shardlink/internal/rpc/gateway"
)

// globalProcessor serves the read-only entity lookups: guilds, members,
// roles, and channels by id or name, plus their paginated listings.
type globalProcessor struct {
	routeTable
	totalShards int
}

func newGlobalProcessor(totalShards int) *globalProcessor {
	p := &globalProcessor{totalShards: totalShards}
	p.routeTable = routeTable{
		namespace: "global",
		routes: []route{
			{pattern: []string{"guild"}, handle: p.guild},
			{pattern: []string{"user", "byId"}, handle: p.userByID},
			{pattern: []string{"user", "byName"}, handle: p.userByName},
			{pattern: []string{"user", "list"}, handle: p.userList},
			{pattern: []string{"role", "byId"}, handle: p.roleByID},
			{pattern: []string{"role", "byName"}, handle: p.roleByName},
			{pattern: []string{"role", "list"}, handle: p.roleList},
			{pattern: []string{"channel", "byId"}, handle: p.channelByID},
			{pattern: []string{"channel", "byName"}, handle: p.channelByName},
			{pattern: []string{"channel", "list"}, handle: p.channelList},
		},
	}
	return p
}

func (p *globalProcessor) guild(req *Request) (Result, error) {
	return Pending(Success(newGuildPayload(req.Guild, p.totalShards))), nil
}

// guildListProcessor serves the paginated listing of every guild hosted by
// this process. The action is not scoped to a single guild, so it registers
// under its full path ahead of the global namespace and carries no guild
// requirement; the meta and resource consumers can serve it too.
type guildListProcessor struct {
	routeTable
	client      gateway.Client
	totalShards int
}

func newGuildListProcessor(client gateway.Client, totalShards int) *guildListProcessor {
	p := &guildListProcessor{client: client, totalShards: totalShards}
	p.routeTable = routeTable{
		namespace: "global:guild:list",
		routes: []route{
			{pattern: nil, handle: p.list},
		},
	}
	return p
}

func (p *guildListProcessor) list(req *Request) (Result, error) {
	var body pageRequest
	if err := req.Decode(&body); err != nil {
		return badRequest(CodeInvalidRequest, "malformed request body")
	}
	result := paginate(p.client.Guilds(), func(g *gateway.Guild) uint64 { return g.ID }, body.Start, body.Count)
	return Pending(Success(mapPage(result, func(g *gateway.Guild) guildPayload {
		return newGuildPayload(g, p.totalShards)
	}))), nil
}

type userLookupRequest struct {
	User string `json:"user"`
	Name string `json:"name"`
	pageRequest
}

func (p *globalProcessor) userByID(req *Request) (Result, error) {
	var body userLookupRequest
	if err := req.Decode(&body); err != nil {
		return badRequest(CodeInvalidRequest, "malformed request body")
	}
	member, fail := req.member(body.User)
	if fail != nil {
		return Pending(*fail), nil
	}
	return Pending(Success(newMemberPayload(member))), nil
}

func (p *globalProcessor) userByName(req *Request) (Result, error) {
	var body userLookupRequest
	if err := req.Decode(&body); err != nil {
		return badRequest(CodeInvalidRequest, "malformed request body")
	}
	if body.Name == "" {
		return badRequest(CodeInvalidUser, "name is required")
	}
	for _, m := range req.Guild.Members {
		if m.Username == body.Name || m.Nick == body.Name {
			return Pending(Success(newMemberPayload(m))), nil
		}
	}
	return badRequest(CodeInvalidUser, "no member named %q", body.Name)
}

func (p *globalProcessor) userList(req *Request) (Result, error) {
	var body pageRequest
	if err := req.Decode(&body); err != nil {
		return badRequest(CodeInvalidRequest, "malformed request body")
	}
	result := paginate(req.Guild.Members, func(m *gateway.Member) uint64 { return m.ID }, body.Start, body.Count)
	return Pending(Success(mapPage(result, newMemberPayload))), nil
}

type roleLookupRequest struct {
	Role string `json:"role"`
	Name string `json:"name"`
}

func (p *globalProcessor) roleByID(req *Request) (Result, error) {
	var body roleLookupRequest
	if err := req.Decode(&body); err != nil {
		return badRequest(CodeInvalidRequest, "malformed request body")
	}
	role, fail := req.role(body.Role)
	if fail != nil {
		return Pending(*fail), nil
	}
	return Pending(Success(newRolePayload(role))), nil
}

func (p *globalProcessor) roleByName(req *Request) (Result, error) {
	var body roleLookupRequest
	if err := req.Decode(&body); err != nil {
		return badRequest(CodeInvalidRequest, "malformed request body")
	}
	if body.Name == "" {
		return badRequest(CodeInvalidRole, "name is required")
	}
	for _, r := range req.Guild.Roles {
		if r.Name == body.Name {
			return Pending(Success(newRolePayload(r))), nil
		}
	}
	return badRequest(CodeInvalidRole, "no role named %q", body.Name)
}

func (p *globalProcessor) roleList(req *Request) (Result, error) {
	var body pageRequest
	if err := req.Decode(&body); err != nil {
		return badRequest(CodeInvalidRequest, "malformed request body")
	}
	result := paginate(req.Guild.Roles, func(r *gateway.Role) uint64 { return r.ID }, body.Start, body.Count)
	return Pending(Success(mapPage(result, newRolePayload))), nil
}

type channelLookupRequest struct {
	Channel channelRef `json:"channel"`
	Name    string     `json:"name"`
}

func (p *globalProcessor) channelByID(req *Request) (Result, error) {
	var body channelLookupRequest
	if err := req.Decode(&body); err != nil {
		return badRequest(CodeInvalidRequest, "malformed request body")
	}
	ch, fail := req.resolveChannel(body.Channel)
	if fail != nil {
		return Pending(*fail), nil
	}
	return Pending(Success(newChannelPayload(ch))), nil
}

func (p *globalProcessor) channelByName(req *Request) (Result, error) {
	var body channelLookupRequest
	if err := req.Decode(&body); err != nil {
		return badRequest(CodeInvalidRequest, "malformed request body")
	}
	if body.Name == "" {
		return badRequest(CodeInvalidChannel, "name is required")
	}
	for _, c := range req.Guild.Channels {
		if c.Name == body.Name {
			return Pending(Success(newChannelPayload(c))), nil
		}
	}
	return badRequest(CodeInvalidChannel, "no channel named %q", body.Name)
}

func (p *globalProcessor) channelList(req *Request) (Result, error) {
	var body pageRequest
	if err := req.Decode(&body); err != nil {
		return badRequest(CodeInvalidRequest, "malformed request body")
	}
	result := paginate(req.Guild.Channels, func(c *gateway.Channel) uint64 { return c.ID }, body.Start, body.Count)
	return Pending(Success(mapPage(result, newChannelPayload))), nil
}

// mapPage converts a page of domain snapshots into a page of wire payloads,
// keeping the window metadata intact.
func mapPage[T, U any](in page[T], convert func(T) U) page[U] {
	out := page[U]{Window: in.Window, Items: make([]U, len(in.Items))}
	for i, item := range in.Items {
		out.Items[i] = convert(item)
	}
	return out
}
