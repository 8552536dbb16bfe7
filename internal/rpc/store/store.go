// Package store declares the entity-store contract for per-guild slots and
// their attached custom commands and auto-responders. Persistence lives
// outside this module; shardlink only issues single-call transactions through
// the Store interface.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when an addressed record does not exist.
var ErrNotFound = errors.New("store: record not found")

// SlotKind distinguishes what a slot holds. A slot holds exactly one of a
// custom command or an auto-responder.
type SlotKind string

const (
	KindCommand   SlotKind = "command"
	KindResponder SlotKind = "responder"
)

// ParseSlotKind validates a wire-level slot kind string.
func ParseSlotKind(s string) (SlotKind, bool) {
	k := SlotKind(s)
	return k, k == KindCommand || k == KindResponder
}

// Slot is a per-guild attachment point for one command or responder.
type Slot struct {
	ID      uint64
	GuildID uint64
	Kind    SlotKind
	Enabled bool
	// RefID points at the CustomCommand or AutoResponder record, depending
	// on Kind.
	RefID     uint64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CustomCommand is a guild-defined chat command.
type CustomCommand struct {
	ID          uint64
	GuildID     uint64
	Name        string
	Description string
	Reply       string
}

// AutoResponder replies automatically when its trigger matches a message.
type AutoResponder struct {
	ID      uint64
	GuildID uint64
	Trigger string
	Reply   string
}

// Store is the CRUD persistence contract. Each method is one transaction;
// there is no cross-call atomicity with gateway mutations.
type Store interface {
	Slot(ctx context.Context, guildID, slotID uint64) (*Slot, error)
	Slots(ctx context.Context, guildID uint64) ([]*Slot, error)
	CreateSlot(ctx context.Context, slot *Slot) error
	UpdateSlot(ctx context.Context, slot *Slot) error
	DeleteSlot(ctx context.Context, guildID, slotID uint64) error

	Command(ctx context.Context, guildID, id uint64) (*CustomCommand, error)
	CreateCommand(ctx context.Context, cmd *CustomCommand) error
	UpdateCommand(ctx context.Context, cmd *CustomCommand) error
	DeleteCommand(ctx context.Context, guildID, id uint64) error

	Responder(ctx context.Context, guildID, id uint64) (*AutoResponder, error)
	CreateResponder(ctx context.Context, resp *AutoResponder) error
	UpdateResponder(ctx context.Context, resp *AutoResponder) error
	DeleteResponder(ctx context.Context, guildID, id uint64) error
}
