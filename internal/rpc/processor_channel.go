package rpc

import (
	"github.com/glyphbot/shardlink/internal/rpc/gateway"
)

// channelProcessor serves channel operations layered by capability rather
// than by channel type: generic routes work on every channel, the rest
// require a capability view resolved from the channel descriptor.
type channelProcessor struct {
	routeTable
	client gateway.Client
}

func newChannelProcessor(client gateway.Client) *channelProcessor {
	p := &channelProcessor{client: client}
	p.routeTable = routeTable{
		namespace: "channel",
		routes: []route{
			{pattern: []string{"name", "set"}, handle: p.rename},
			{pattern: []string{"override", "put"}, handle: p.putOverride},
			{pattern: []string{"override", "delete"}, handle: p.deleteOverride},
			{pattern: []string{"override", "list"}, handle: p.listOverrides},
			{pattern: []string{"position", "set"}, handle: p.setPosition},
			{pattern: []string{"threads", "list"}, handle: p.listThreads},
			{pattern: []string{"text", "topic", "get"}, handle: p.getTopic},
			{pattern: []string{"text", "topic", "set"}, handle: p.setTopic},
			{pattern: []string{"text", "members", "list"}, handle: p.listTextMembers},
			{pattern: []string{"voice", "members", "list"}, handle: p.listVoiceMembers},
			{pattern: []string{"voice", "members", "move"}, handle: p.moveVoiceMember},
		},
	}
	return p
}

type channelRequest struct {
	Channel  channelRef `json:"channel"`
	Name     string     `json:"name"`
	Topic    string     `json:"topic"`
	Position int        `json:"position"`
	User     string     `json:"user"`
	Target   channelRef `json:"target"`
	pageRequest

	TargetID   string   `json:"target_id"`
	TargetType string   `json:"target_type"`
	Allow      []string `json:"allow"`
	Deny       []string `json:"deny"`
}

func (p *channelProcessor) decode(req *Request) (*channelRequest, *gateway.Channel, *Response) {
	var body channelRequest
	if err := req.Decode(&body); err != nil {
		return nil, nil, failurePtr(StatusBadRequest, CodeInvalidRequest, "malformed request body")
	}
	ch, fail := req.resolveChannel(body.Channel)
	if fail != nil {
		return nil, nil, fail
	}
	return &body, ch, nil
}

func (p *channelProcessor) rename(req *Request) (Result, error) {
	body, ch, fail := p.decode(req)
	if fail != nil {
		return Pending(*fail), nil
	}
	if body.Name == "" {
		return badRequest(CodeInvalidRequest, "name is required")
	}
	p.client.RenameChannel(req.Guild.ID, ch.ID, body.Name, req.Completion())
	return Replied(), nil
}

func (p *channelProcessor) putOverride(req *Request) (Result, error) {
	body, ch, fail := p.decode(req)
	if fail != nil {
		return Pending(*fail), nil
	}
	targetID, ok := parseSnowflake(body.TargetID)
	if !ok {
		return badRequest(CodeInvalidRequest, "target id missing or malformed")
	}
	targetType := gateway.OverrideTarget(body.TargetType)
	if targetType != gateway.OverrideRole && targetType != gateway.OverrideMember {
		return badRequest(CodeInvalidRequest, "target type must be role or member")
	}
	allow, ok := parsePermissions(body.Allow)
	if !ok {
		return badRequest(CodeInvalidPermission, "allow list contains an unknown permission")
	}
	deny, ok := parsePermissions(body.Deny)
	if !ok {
		return badRequest(CodeInvalidPermission, "deny list contains an unknown permission")
	}
	override := gateway.Override{
		TargetID:   targetID,
		TargetType: targetType,
		Allow:      allow,
		Deny:       deny,
	}
	p.client.PutOverride(req.Guild.ID, ch.ID, override, req.Completion())
	return Replied(), nil
}

func (p *channelProcessor) deleteOverride(req *Request) (Result, error) {
	body, ch, fail := p.decode(req)
	if fail != nil {
		return Pending(*fail), nil
	}
	targetID, ok := parseSnowflake(body.TargetID)
	if !ok {
		return badRequest(CodeInvalidRequest, "target id missing or malformed")
	}
	p.client.DeleteOverride(req.Guild.ID, ch.ID, targetID, req.Completion())
	return Replied(), nil
}

func (p *channelProcessor) listOverrides(req *Request) (Result, error) {
	_, ch, fail := p.decode(req)
	if fail != nil {
		return Pending(*fail), nil
	}
	payloads := make([]overridePayload, len(ch.Overrides))
	for i, o := range ch.Overrides {
		payloads[i] = newOverridePayload(o)
	}
	return Pending(Success(payloads)), nil
}

func (p *channelProcessor) setPosition(req *Request) (Result, error) {
	body, ch, fail := p.decode(req)
	if fail != nil {
		return Pending(*fail), nil
	}
	if resp := requireCapability(ch, gateway.CapMovable); resp != nil {
		return Pending(*resp), nil
	}
	if body.Position < 0 {
		return badRequest(CodeInvalidRequest, "position cannot be negative")
	}
	p.client.SetChannelPosition(req.Guild.ID, ch.ID, body.Position, req.Completion())
	return Replied(), nil
}

func (p *channelProcessor) listThreads(req *Request) (Result, error) {
	body, ch, fail := p.decode(req)
	if fail != nil {
		return Pending(*fail), nil
	}
	if resp := requireCapability(ch, gateway.CapThreaded); resp != nil {
		return Pending(*resp), nil
	}
	threads := req.Guild.Threads(ch.ID)
	result := paginate(threads, func(c *gateway.Channel) uint64 { return c.ID }, body.Start, body.Count)
	return Pending(Success(mapPage(result, newChannelPayload))), nil
}

func (p *channelProcessor) getTopic(req *Request) (Result, error) {
	_, ch, fail := p.decode(req)
	if fail != nil {
		return Pending(*fail), nil
	}
	if resp := requireCapability(ch, gateway.CapText); resp != nil {
		return Pending(*resp), nil
	}
	return Pending(Success(map[string]string{"topic": ch.Topic})), nil
}

func (p *channelProcessor) setTopic(req *Request) (Result, error) {
	body, ch, fail := p.decode(req)
	if fail != nil {
		return Pending(*fail), nil
	}
	if resp := requireCapability(ch, gateway.CapText); resp != nil {
		return Pending(*resp), nil
	}
	p.client.SetTopic(req.Guild.ID, ch.ID, body.Topic, req.Completion())
	return Replied(), nil
}

func (p *channelProcessor) listTextMembers(req *Request) (Result, error) {
	body, ch, fail := p.decode(req)
	if fail != nil {
		return Pending(*fail), nil
	}
	if resp := requireCapability(ch, gateway.CapText); resp != nil {
		return Pending(*resp), nil
	}
	var members []*gateway.Member
	for _, id := range ch.MemberIDs {
		if m, ok := req.Guild.Member(id); ok {
			members = append(members, m)
		}
	}
	result := paginate(members, func(m *gateway.Member) uint64 { return m.ID }, body.Start, body.Count)
	return Pending(Success(mapPage(result, newMemberPayload))), nil
}

func (p *channelProcessor) listVoiceMembers(req *Request) (Result, error) {
	body, ch, fail := p.decode(req)
	if fail != nil {
		return Pending(*fail), nil
	}
	if resp := requireCapability(ch, gateway.CapVoice); resp != nil {
		return Pending(*resp), nil
	}
	connected := req.Guild.VoiceMembers(ch.ID)
	result := paginate(connected, func(m *gateway.Member) uint64 { return m.ID }, body.Start, body.Count)
	return Pending(Success(mapPage(result, newMemberPayload))), nil
}

func (p *channelProcessor) moveVoiceMember(req *Request) (Result, error) {
	body, _, fail := p.decode(req)
	if fail != nil {
		return Pending(*fail), nil
	}
	member, memberFail := req.member(body.User)
	if memberFail != nil {
		return Pending(*memberFail), nil
	}
	target, targetFail := req.resolveChannel(body.Target)
	if targetFail != nil {
		return Pending(*targetFail), nil
	}
	if resp := requireCapability(target, gateway.CapVoice); resp != nil {
		return Pending(*resp), nil
	}
	p.client.MoveMember(req.Guild.ID, member.ID, target.ID, req.Completion())
	return Replied(), nil
}

func parsePermissions(names []string) ([]gateway.Permission, bool) {
	perms := make([]gateway.Permission, 0, len(names))
	for _, name := range names {
		perm, ok := gateway.ParsePermission(name)
		if !ok {
			return nil, false
		}
		perms = append(perms, perm)
	}
	return perms, true
}
