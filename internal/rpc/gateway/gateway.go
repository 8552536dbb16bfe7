// Package gateway declares the contract between the remote-control plane and
// the process's live gateway client. The client owns all guild state and every
// mutating call; shardlink only reads snapshots and issues callback-based
// mutations through the Client interface.
package gateway

import (
	"fmt"
	"time"
)

// CompletionFunc receives the eventual outcome of a mutating gateway call.
// It fires later, on a goroutine owned by the client.
type CompletionFunc func(error)

// MessageFunc receives a single message or the error that prevented it.
type MessageFunc func(*Message, error)

// MessagesFunc receives a channel's recent messages or the error that
// prevented fetching them.
type MessagesFunc func([]*Message, error)

// Client is the live gateway connection for one process. Read methods return
// shard-local snapshots synchronously; mutating methods fire immediately and
// report completion through their callback.
type Client interface {
	// Guild resolves a guild hosted by this process.
	Guild(id uint64) (*Guild, bool)
	// Guilds returns every guild hosted by this process.
	Guilds() []*Guild
	// MutualGuilds returns the hosted guilds the given user is a member of.
	MutualGuilds(userID uint64) []*Guild

	SetNickname(guildID, userID uint64, nick string, done CompletionFunc)
	AddRole(guildID, userID, roleID uint64, done CompletionFunc)
	RemoveRole(guildID, userID, roleID uint64, done CompletionFunc)
	SetMute(guildID, userID uint64, muted bool, done CompletionFunc)
	SetDeaf(guildID, userID uint64, deafened bool, done CompletionFunc)

	GrantPermission(guildID, roleID uint64, perm Permission, done CompletionFunc)
	RevokePermission(guildID, roleID uint64, perm Permission, done CompletionFunc)
	SetRolePosition(guildID, roleID uint64, position int, done CompletionFunc)

	RenameChannel(guildID, channelID uint64, name string, done CompletionFunc)
	SetChannelPosition(guildID, channelID uint64, position int, done CompletionFunc)
	SetTopic(guildID, channelID uint64, topic string, done CompletionFunc)
	PutOverride(guildID, channelID uint64, override Override, done CompletionFunc)
	DeleteOverride(guildID, channelID, targetID uint64, done CompletionFunc)
	MoveMember(guildID, userID, channelID uint64, done CompletionFunc)

	SendMessage(guildID, channelID uint64, out Outgoing, done MessageFunc)
	EditMessage(guildID, channelID, messageID uint64, out Outgoing, done MessageFunc)
	Message(guildID, channelID, messageID uint64, done MessageFunc)
	Messages(guildID, channelID uint64, done MessagesFunc)

	RegisterCommand(guildID uint64, name, description string, done CompletionFunc)
	UnregisterCommand(guildID uint64, name string, done CompletionFunc)
	ReplyInteraction(token string, out Outgoing, done CompletionFunc)
}

// Guild is an immutable snapshot of one tenant, resolved from the client for
// the duration of a single request.
type Guild struct {
	ID      uint64
	Name    string
	OwnerID uint64

	Members  []*Member
	Roles    []*Role
	Channels []*Channel
}

// Member looks up a guild member by user id.
func (g *Guild) Member(id uint64) (*Member, bool) {
	for _, m := range g.Members {
		if m.ID == id {
			return m, true
		}
	}
	return nil, false
}

// Role looks up a guild role by id.
func (g *Guild) Role(id uint64) (*Role, bool) {
	for _, r := range g.Roles {
		if r.ID == id {
			return r, true
		}
	}
	return nil, false
}

// Channel looks up a guild channel by id.
func (g *Guild) Channel(id uint64) (*Channel, bool) {
	for _, c := range g.Channels {
		if c.ID == id {
			return c, true
		}
	}
	return nil, false
}

// Threads returns the thread channels whose parent is the given channel.
func (g *Guild) Threads(parentID uint64) []*Channel {
	var threads []*Channel
	for _, c := range g.Channels {
		if c.Type == ChannelThread && c.ParentID == parentID {
			threads = append(threads, c)
		}
	}
	return threads
}

// VoiceMembers returns the members currently connected to the given voice
// channel.
func (g *Guild) VoiceMembers(channelID uint64) []*Member {
	var connected []*Member
	for _, m := range g.Members {
		if m.VoiceChannelID == channelID {
			connected = append(connected, m)
		}
	}
	return connected
}

// HasPermission reports whether the member holds the permission through any of
// their roles. The guild owner holds every permission; Administrator implies
// everything.
func (g *Guild) HasPermission(member *Member, perm Permission) bool {
	if member.ID == g.OwnerID {
		return true
	}
	for _, roleID := range member.Roles {
		role, ok := g.Role(roleID)
		if !ok {
			continue
		}
		if role.HasPermission(PermAdministrator) || role.HasPermission(perm) {
			return true
		}
	}
	return false
}

// Member is a guild member snapshot.
type Member struct {
	ID             uint64
	Username       string
	Nick           string
	Roles          []uint64
	Muted          bool
	Deafened       bool
	VoiceChannelID uint64 // zero when not connected
}

// HasRole reports whether the member carries the given role.
func (m *Member) HasRole(roleID uint64) bool {
	for _, id := range m.Roles {
		if id == roleID {
			return true
		}
	}
	return false
}

// DisplayName returns the nickname when set, the username otherwise.
func (m *Member) DisplayName() string {
	if m.Nick != "" {
		return m.Nick
	}
	return m.Username
}

// RoleTags carries the introspection attributes attached to managed roles.
type RoleTags struct {
	BotID             uint64
	IntegrationID     uint64
	PremiumSubscriber bool
}

// Role is a guild role snapshot.
type Role struct {
	ID          uint64
	Name        string
	Position    int
	Permissions []Permission
	Managed     bool
	Tags        RoleTags
}

// HasPermission reports whether the role grants the permission.
func (r *Role) HasPermission(perm Permission) bool {
	for _, p := range r.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

// OverrideTarget distinguishes role and member permission overrides.
type OverrideTarget string

const (
	OverrideRole   OverrideTarget = "role"
	OverrideMember OverrideTarget = "member"
)

// Override is one permission override on a channel.
type Override struct {
	TargetID   uint64
	TargetType OverrideTarget
	Allow      []Permission
	Deny       []Permission
}

// Embed is a rich message embed.
type Embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	URL         string       `json:"url,omitempty"`
	Color       int          `json:"color,omitempty"`
	Fields      []EmbedField `json:"fields,omitempty"`
}

// EmbedField is one field of an embed.
type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// Message is a channel message snapshot.
type Message struct {
	ID        uint64
	ChannelID uint64
	AuthorID  uint64
	Content   string
	Embeds    []Embed
	Timestamp time.Time
}

// Outgoing is the content of a message to be sent or an edit to apply.
type Outgoing struct {
	Content string
	Embeds  []Embed
}

// PermissionError reports that the gateway's own identity lacks a permission
// required by a mutating call.
type PermissionError struct {
	Permission Permission
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("gateway: missing permission %s", e.Permission)
}

// HierarchyError reports that the target outranks the gateway's own identity,
// so the mutation was refused.
type HierarchyError struct {
	TargetID uint64
}

func (e *HierarchyError) Error() string {
	return fmt.Sprintf("gateway: cannot interact with %d: target outranks the bot", e.TargetID)
}
