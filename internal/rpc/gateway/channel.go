package gateway

import "fmt"

// Capability names one thing a channel can do. Channel operations request a
// capability instead of downcasting on the channel's concrete type.
type Capability uint8

const (
	CapMovable Capability = 1 << iota
	CapThreaded
	CapText
	CapVoice
)

func (c Capability) String() string {
	switch c {
	case CapMovable:
		return "movable"
	case CapThreaded:
		return "threaded"
	case CapText:
		return "text"
	case CapVoice:
		return "voice"
	}
	return fmt.Sprintf("capability(%d)", uint8(c))
}

// CapabilitySet is a bitmask of channel capabilities.
type CapabilitySet uint8

// Has reports whether the set contains the capability.
func (s CapabilitySet) Has(c Capability) bool {
	return s&CapabilitySet(c) != 0
}

// ChannelType is the wire-level channel kind carried in channel descriptors.
type ChannelType string

const (
	ChannelText     ChannelType = "text"
	ChannelVoice    ChannelType = "voice"
	ChannelCategory ChannelType = "category"
	ChannelThread   ChannelType = "thread"
	ChannelNews     ChannelType = "news"
	ChannelStage    ChannelType = "stage"
)

var channelCapabilities = map[ChannelType]CapabilitySet{
	ChannelText:     CapabilitySet(CapMovable | CapThreaded | CapText),
	ChannelNews:     CapabilitySet(CapMovable | CapThreaded | CapText),
	ChannelThread:   CapabilitySet(CapText),
	ChannelVoice:    CapabilitySet(CapMovable | CapVoice),
	ChannelStage:    CapabilitySet(CapMovable | CapVoice),
	ChannelCategory: CapabilitySet(CapMovable),
}

// ParseChannelType validates a wire-level channel type string.
func ParseChannelType(s string) (ChannelType, bool) {
	t := ChannelType(s)
	_, ok := channelCapabilities[t]
	return t, ok
}

// Channel is a guild channel snapshot with its capability set resolved once,
// when the snapshot is built.
type Channel struct {
	ID       uint64
	Name     string
	Type     ChannelType
	Position int
	Topic    string
	ParentID uint64

	Overrides []Override
	// MemberIDs lists the members able to view a text-capable channel.
	MemberIDs []uint64
}

// Capabilities returns the capability set implied by the channel's type.
func (c *Channel) Capabilities() CapabilitySet {
	return channelCapabilities[c.Type]
}

// Require returns a CapabilityError unless the channel supports the
// capability.
func (c *Channel) Require(cap Capability) error {
	if c.Capabilities().Has(cap) {
		return nil
	}
	return &CapabilityError{ChannelID: c.ID, Type: c.Type, Capability: cap}
}

// CapabilityError reports a channel operation addressed to a channel that does
// not support it.
type CapabilityError struct {
	ChannelID  uint64
	Type       ChannelType
	Capability Capability
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("gateway: channel %d (%s) does not support %s operations", e.ChannelID, e.Type, e.Capability)
}
