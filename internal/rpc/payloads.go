package rpc

import (
	"strconv"
	"time"

	"github.com/glyphbot/shardlink/internal/rpc/gateway"
	"github.com/glyphbot/shardlink/internal/rpc/store"
)

// Wire payloads carry 64-bit ids as decimal strings; window metadata stays
// numeric so the -1 empty-window sentinel survives.

func fmtID(id uint64) string {
	return strconv.FormatUint(id, 10)
}

func fmtIDs(ids []uint64) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = fmtID(id)
	}
	return out
}

type guildPayload struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	OwnerID  string `json:"owner_id"`
	Members  int    `json:"member_count"`
	Roles    int    `json:"role_count"`
	Channels int    `json:"channel_count"`
	Shard    int    `json:"shard"`
}

func newGuildPayload(g *gateway.Guild, totalShards int) guildPayload {
	return guildPayload{
		ID:       fmtID(g.ID),
		Name:     g.Name,
		OwnerID:  fmtID(g.OwnerID),
		Members:  len(g.Members),
		Roles:    len(g.Roles),
		Channels: len(g.Channels),
		Shard:    ShardOf(g.ID, totalShards),
	}
}

type memberPayload struct {
	ID             string   `json:"id"`
	Username       string   `json:"username"`
	Nick           string   `json:"nick,omitempty"`
	DisplayName    string   `json:"display_name"`
	Roles          []string `json:"roles"`
	Muted          bool     `json:"muted"`
	Deafened       bool     `json:"deafened"`
	VoiceChannelID string   `json:"voice_channel_id,omitempty"`
}

func newMemberPayload(m *gateway.Member) memberPayload {
	p := memberPayload{
		ID:          fmtID(m.ID),
		Username:    m.Username,
		Nick:        m.Nick,
		DisplayName: m.DisplayName(),
		Roles:       fmtIDs(m.Roles),
		Muted:       m.Muted,
		Deafened:    m.Deafened,
	}
	if m.VoiceChannelID != 0 {
		p.VoiceChannelID = fmtID(m.VoiceChannelID)
	}
	return p
}

type roleTagsPayload struct {
	BotID             string `json:"bot_id,omitempty"`
	IntegrationID     string `json:"integration_id,omitempty"`
	PremiumSubscriber bool   `json:"premium_subscriber"`
}

type rolePayload struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Position    int              `json:"position"`
	Permissions []string         `json:"permissions"`
	Managed     bool             `json:"managed"`
	Tags        *roleTagsPayload `json:"tags,omitempty"`
}

func newRolePayload(r *gateway.Role) rolePayload {
	perms := make([]string, len(r.Permissions))
	for i, p := range r.Permissions {
		perms[i] = string(p)
	}
	payload := rolePayload{
		ID:          fmtID(r.ID),
		Name:        r.Name,
		Position:    r.Position,
		Permissions: perms,
		Managed:     r.Managed,
	}
	if r.Managed || r.Tags.PremiumSubscriber {
		tags := &roleTagsPayload{PremiumSubscriber: r.Tags.PremiumSubscriber}
		if r.Tags.BotID != 0 {
			tags.BotID = fmtID(r.Tags.BotID)
		}
		if r.Tags.IntegrationID != 0 {
			tags.IntegrationID = fmtID(r.Tags.IntegrationID)
		}
		payload.Tags = tags
	}
	return payload
}

type overridePayload struct {
	TargetID   string   `json:"target_id"`
	TargetType string   `json:"target_type"`
	Allow      []string `json:"allow"`
	Deny       []string `json:"deny"`
}

func newOverridePayload(o gateway.Override) overridePayload {
	return overridePayload{
		TargetID:   fmtID(o.TargetID),
		TargetType: string(o.TargetType),
		Allow:      permissionStrings(o.Allow),
		Deny:       permissionStrings(o.Deny),
	}
}

func permissionStrings(perms []gateway.Permission) []string {
	out := make([]string, len(perms))
	for i, p := range perms {
		out[i] = string(p)
	}
	return out
}

type channelPayload struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Type         string   `json:"type"`
	Position     int      `json:"position"`
	Topic        string   `json:"topic,omitempty"`
	ParentID     string   `json:"parent_id,omitempty"`
	Capabilities []string `json:"capabilities"`
}

func newChannelPayload(c *gateway.Channel) channelPayload {
	caps := c.Capabilities()
	var names []string
	for _, capability := range []gateway.Capability{gateway.CapMovable, gateway.CapThreaded, gateway.CapText, gateway.CapVoice} {
		if caps.Has(capability) {
			names = append(names, capability.String())
		}
	}
	p := channelPayload{
		ID:           fmtID(c.ID),
		Name:         c.Name,
		Type:         string(c.Type),
		Position:     c.Position,
		Topic:        c.Topic,
		Capabilities: names,
	}
	if c.ParentID != 0 {
		p.ParentID = fmtID(c.ParentID)
	}
	return p
}

type messagePayload struct {
	ID        string          `json:"id"`
	ChannelID string          `json:"channel_id"`
	AuthorID  string          `json:"author_id"`
	Content   string          `json:"content"`
	Embeds    []gateway.Embed `json:"embeds,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

func newMessagePayload(m *gateway.Message) messagePayload {
	return messagePayload{
		ID:        fmtID(m.ID),
		ChannelID: fmtID(m.ChannelID),
		AuthorID:  fmtID(m.AuthorID),
		Content:   m.Content,
		Embeds:    m.Embeds,
		Timestamp: m.Timestamp,
	}
}

type slotPayload struct {
	ID        string    `json:"id"`
	GuildID   string    `json:"guild_id"`
	Kind      string    `json:"kind"`
	Enabled   bool      `json:"enabled"`
	RefID     string    `json:"ref_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func newSlotPayload(s *store.Slot) slotPayload {
	return slotPayload{
		ID:        fmtID(s.ID),
		GuildID:   fmtID(s.GuildID),
		Kind:      string(s.Kind),
		Enabled:   s.Enabled,
		RefID:     fmtID(s.RefID),
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}
