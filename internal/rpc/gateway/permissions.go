package gateway

// Permission is one named guild permission. The set is closed; inputs arriving
// over the wire are validated with ParsePermission before any dispatch.
type Permission string

const (
	PermAdministrator   Permission = "ADMINISTRATOR"
	PermManageGuild     Permission = "MANAGE_GUILD"
	PermManageRoles     Permission = "MANAGE_ROLES"
	PermManageChannels  Permission = "MANAGE_CHANNELS"
	PermManageMessages  Permission = "MANAGE_MESSAGES"
	PermKickMembers     Permission = "KICK_MEMBERS"
	PermBanMembers      Permission = "BAN_MEMBERS"
	PermViewChannel     Permission = "VIEW_CHANNEL"
	PermSendMessages    Permission = "SEND_MESSAGES"
	PermMentionEveryone Permission = "MENTION_EVERYONE"
	PermConnect         Permission = "CONNECT"
	PermSpeak           Permission = "SPEAK"
	PermMuteMembers     Permission = "MUTE_MEMBERS"
	PermDeafenMembers   Permission = "DEAFEN_MEMBERS"
	PermMoveMembers     Permission = "MOVE_MEMBERS"
)

var knownPermissions = map[Permission]bool{
	PermAdministrator:   true,
	PermManageGuild:     true,
	PermManageRoles:     true,
	PermManageChannels:  true,
	PermManageMessages:  true,
	PermKickMembers:     true,
	PermBanMembers:      true,
	PermViewChannel:     true,
	PermSendMessages:    true,
	PermMentionEveryone: true,
	PermConnect:         true,
	PermSpeak:           true,
	PermMuteMembers:     true,
	PermDeafenMembers:   true,
	PermMoveMembers:     true,
}

// ParsePermission validates a wire-level permission name.
func ParsePermission(s string) (Permission, bool) {
	p := Permission(s)
	return p, knownPermissions[p]
}
