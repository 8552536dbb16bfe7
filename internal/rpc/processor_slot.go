package rpc

import (
	"errors"
	"time"

	"github.com/glyphbot/shardlink/internal/rpc/gateway"
	"github.com/glyphbot/shardlink/internal/rpc/store"
)

// slotProcessor drives the slot lifecycle. Enabling or disabling a
// custom-command slot also upserts or removes the command in the guild's live
// registry; there is no compensation between the store write and the gateway
// call, so a partial failure reports only the last-observed error.
type slotProcessor struct {
	routeTable
	client gateway.Client
	store  store.Store
}

func newSlotProcessor(client gateway.Client, st store.Store) *slotProcessor {
	p := &slotProcessor{client: client, store: st}
	p.routeTable = routeTable{
		namespace: "slot",
		routes: []route{
			{pattern: []string{"list"}, handle: p.list},
			{pattern: []string{"get"}, handle: p.get},
			{pattern: []string{"create"}, handle: p.create},
			{pattern: []string{"update"}, handle: p.update},
			{pattern: []string{"enable"}, handle: p.enable},
			{pattern: []string{"disable"}, handle: p.disable},
			{pattern: []string{"delete"}, handle: p.delete},
		},
	}
	return p
}

type slotRequest struct {
	Slot        string `json:"slot"`
	Kind        string `json:"kind"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Reply       string `json:"reply"`
	Trigger     string `json:"trigger"`
	pageRequest
}

func (p *slotProcessor) list(req *Request) (Result, error) {
	var body slotRequest
	if err := req.Decode(&body); err != nil {
		return badRequest(CodeInvalidRequest, "malformed request body")
	}
	slots, err := p.store.Slots(req.Context(), req.Guild.ID)
	if err != nil {
		return Result{}, err
	}
	result := paginate(slots, func(s *store.Slot) uint64 { return s.ID }, body.Start, body.Count)
	return Pending(Success(mapPage(result, newSlotPayload))), nil
}

func (p *slotProcessor) get(req *Request) (Result, error) {
	_, slot, fail, err := p.load(req)
	if fail != nil || err != nil {
		return failOrError(fail, err)
	}
	return Pending(Success(newSlotPayload(slot))), nil
}

func (p *slotProcessor) create(req *Request) (Result, error) {
	var body slotRequest
	if err := req.Decode(&body); err != nil {
		return badRequest(CodeInvalidRequest, "malformed request body")
	}
	kind, ok := store.ParseSlotKind(body.Kind)
	if !ok {
		return badRequest(CodeInvalidSlot, "unsupported slot kind %q", body.Kind)
	}

	now := time.Now().UTC()
	slot := &store.Slot{GuildID: req.Guild.ID, Kind: kind, CreatedAt: now, UpdatedAt: now}

	switch kind {
	case store.KindCommand:
		if body.Name == "" || body.Reply == "" {
			return badRequest(CodeInvalidRequest, "command slots require name and reply")
		}
		cmd := &store.CustomCommand{
			GuildID:     req.Guild.ID,
			Name:        body.Name,
			Description: body.Description,
			Reply:       body.Reply,
		}
		if err := p.store.CreateCommand(req.Context(), cmd); err != nil {
			return Result{}, err
		}
		slot.RefID = cmd.ID
	case store.KindResponder:
		if body.Trigger == "" || body.Reply == "" {
			return badRequest(CodeInvalidRequest, "responder slots require trigger and reply")
		}
		resp := &store.AutoResponder{
			GuildID: req.Guild.ID,
			Trigger: body.Trigger,
			Reply:   body.Reply,
		}
		if err := p.store.CreateResponder(req.Context(), resp); err != nil {
			return Result{}, err
		}
		slot.RefID = resp.ID
	}

	if err := p.store.CreateSlot(req.Context(), slot); err != nil {
		return Result{}, err
	}
	return Pending(Success(newSlotPayload(slot))), nil
}

func (p *slotProcessor) update(req *Request) (Result, error) {
	body, slot, fail, err := p.load(req)
	if fail != nil || err != nil {
		return failOrError(fail, err)
	}

	switch slot.Kind {
	case store.KindCommand:
		cmd, err := p.store.Command(req.Context(), slot.GuildID, slot.RefID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return notFound(CodeCommandNotFound, "slot %d has no command record", slot.ID)
			}
			return Result{}, err
		}
		if body.Name != "" {
			cmd.Name = body.Name
		}
		if body.Description != "" {
			cmd.Description = body.Description
		}
		if body.Reply != "" {
			cmd.Reply = body.Reply
		}
		if err := p.store.UpdateCommand(req.Context(), cmd); err != nil {
			return Result{}, err
		}
	case store.KindResponder:
		resp, err := p.store.Responder(req.Context(), slot.GuildID, slot.RefID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return notFound(CodeResponderNotFound, "slot %d has no responder record", slot.ID)
			}
			return Result{}, err
		}
		if body.Trigger != "" {
			resp.Trigger = body.Trigger
		}
		if body.Reply != "" {
			resp.Reply = body.Reply
		}
		if err := p.store.UpdateResponder(req.Context(), resp); err != nil {
			return Result{}, err
		}
	}

	slot.UpdatedAt = time.Now().UTC()
	if err := p.store.UpdateSlot(req.Context(), slot); err != nil {
		return Result{}, err
	}
	return Pending(Success(newSlotPayload(slot))), nil
}

func (p *slotProcessor) enable(req *Request) (Result, error) {
	return p.setEnabled(req, true)
}

func (p *slotProcessor) disable(req *Request) (Result, error) {
	return p.setEnabled(req, false)
}

// setEnabled flips the slot's enabled flag in the store, then mirrors the
// change into the gateway's live command registry when the slot holds a
// custom command. The command record is verified before any write so a
// dangling slot never reaches the gateway.
func (p *slotProcessor) setEnabled(req *Request, enabled bool) (Result, error) {
	_, slot, fail, err := p.load(req)
	if fail != nil || err != nil {
		return failOrError(fail, err)
	}

	var cmd *store.CustomCommand
	if slot.Kind == store.KindCommand {
		cmd, err = p.store.Command(req.Context(), slot.GuildID, slot.RefID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return notFound(CodeCommandNotFound, "slot %d has no command record", slot.ID)
			}
			return Result{}, err
		}
	}

	slot.Enabled = enabled
	slot.UpdatedAt = time.Now().UTC()
	if err := p.store.UpdateSlot(req.Context(), slot); err != nil {
		return Result{}, err
	}

	if cmd == nil {
		return Pending(Success(newSlotPayload(slot))), nil
	}

	payload := newSlotPayload(slot)
	done := func(err error) {
		if err != nil {
			req.Finish(nil, err)
			return
		}
		req.Finish(payload, nil)
	}
	if enabled {
		p.client.RegisterCommand(slot.GuildID, cmd.Name, cmd.Description, done)
	} else {
		p.client.UnregisterCommand(slot.GuildID, cmd.Name, done)
	}
	return Replied(), nil
}

func (p *slotProcessor) delete(req *Request) (Result, error) {
	_, slot, fail, err := p.load(req)
	if fail != nil || err != nil {
		return failOrError(fail, err)
	}

	var commandName string
	if slot.Enabled && slot.Kind == store.KindCommand {
		cmd, err := p.store.Command(req.Context(), slot.GuildID, slot.RefID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return Result{}, err
		}
		if cmd != nil {
			commandName = cmd.Name
		}
	}

	// DeleteSlot cascades to the referenced command or responder record.
	if err := p.store.DeleteSlot(req.Context(), slot.GuildID, slot.ID); err != nil {
		return Result{}, err
	}

	if commandName == "" {
		return Pending(Success(okPayload{OK: true})), nil
	}
	p.client.UnregisterCommand(slot.GuildID, commandName, req.Completion())
	return Replied(), nil
}

// load decodes the request and resolves its slot against the store.
func (p *slotProcessor) load(req *Request) (*slotRequest, *store.Slot, *Response, error) {
	var body slotRequest
	if err := req.Decode(&body); err != nil {
		return nil, nil, failurePtr(StatusBadRequest, CodeInvalidRequest, "malformed request body"), nil
	}
	slotID, ok := parseSnowflake(body.Slot)
	if !ok {
		return nil, nil, failurePtr(StatusBadRequest, CodeInvalidSlot, "slot id missing or malformed"), nil
	}
	slot, err := p.store.Slot(req.Context(), req.Guild.ID, slotID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, failurePtr(StatusNotFound, CodeSlotNotFound, "slot not found"), nil
		}
		return nil, nil, nil, err
	}
	return &body, slot, nil, nil
}

func failOrError(fail *Response, err error) (Result, error) {
	if err != nil {
		return Result{}, err
	}
	return Pending(*fail), nil
}
