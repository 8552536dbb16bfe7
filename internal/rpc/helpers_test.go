package rpc

import (
	"context"
	"errors"
	"sync"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/glyphbot/shardlink/internal/rpc/gateway"
	"github.com/glyphbot/shardlink/internal/rpc/interactions"
	"github.com/glyphbot/shardlink/internal/rpc/jsoncodec"
	"github.com/glyphbot/shardlink/internal/rpc/logging"
	"github.com/glyphbot/shardlink/internal/rpc/store"
)

var errTestBoom = errors.New("boom")

const (
	testTotalShards = 4
	testShard       = 1
	// testGuildID >> 22 == 1, so the guild lives on shard 1 of 4.
	testGuildID uint64 = 1 << 22
)

type fakeAcker struct {
	mu      sync.Mutex
	acks    []uint64
	rejects []uint64
}

func (a *fakeAcker) Ack(tag uint64, _ bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acks = append(a.acks, tag)
	return nil
}

func (a *fakeAcker) Nack(tag uint64, _, _ bool) error {
	return a.Reject(tag, false)
}

func (a *fakeAcker) Reject(tag uint64, _ bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rejects = append(a.rejects, tag)
	return nil
}

func (a *fakeAcker) ackCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.acks)
}

func (a *fakeAcker) rejectCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.rejects)
}

type sentReply struct {
	key string
	msg amqp.Publishing
}

// capturePublisher stands in for the reply channel publisher.
type capturePublisher struct {
	mu   sync.Mutex
	sent []sentReply
	err  error
}

func (p *capturePublisher) publish(_ context.Context, key string, msg amqp.Publishing) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, sentReply{key: key, msg: msg})
	return nil
}

func (p *capturePublisher) replies() []sentReply {
	p.mu.Lock()
	defer p.mu.Unlock()
	clone := make([]sentReply, len(p.sent))
	copy(clone, p.sent)
	return clone
}

// lastResponse decodes the most recently published envelope.
func (p *capturePublisher) lastResponse(t *testing.T) Response {
	t.Helper()
	replies := p.replies()
	if len(replies) == 0 {
		t.Fatalf("no response published")
	}
	var resp Response
	if err := jsoncodec.Unmarshal(replies[len(replies)-1].msg.Body, &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

// fakeClient records gateway calls and completes every mutation synchronously
// with the configured error.
type fakeClient struct {
	mu     sync.Mutex
	guilds map[uint64]*gateway.Guild
	calls  []string
	err    error
}

func newFakeClient(guilds ...*gateway.Guild) *fakeClient {
	c := &fakeClient{guilds: make(map[uint64]*gateway.Guild)}
	for _, g := range guilds {
		c.guilds[g.ID] = g
	}
	return c
}

func (c *fakeClient) record(call string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, call)
}

func (c *fakeClient) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

func (c *fakeClient) Guild(id uint64) (*gateway.Guild, bool) {
	g, ok := c.guilds[id]
	return g, ok
}

func (c *fakeClient) Guilds() []*gateway.Guild {
	out := make([]*gateway.Guild, 0, len(c.guilds))
	for _, g := range c.guilds {
		out = append(out, g)
	}
	return out
}

func (c *fakeClient) MutualGuilds(userID uint64) []*gateway.Guild {
	var mutual []*gateway.Guild
	for _, g := range c.guilds {
		if _, ok := g.Member(userID); ok {
			mutual = append(mutual, g)
		}
	}
	return mutual
}

func (c *fakeClient) SetNickname(_, _ uint64, _ string, done gateway.CompletionFunc) {
	c.record("SetNickname")
	done(c.err)
}

func (c *fakeClient) AddRole(_, _, _ uint64, done gateway.CompletionFunc) {
	c.record("AddRole")
	done(c.err)
}

func (c *fakeClient) RemoveRole(_, _, _ uint64, done gateway.CompletionFunc) {
	c.record("RemoveRole")
	done(c.err)
}

func (c *fakeClient) SetMute(_, _ uint64, _ bool, done gateway.CompletionFunc) {
	c.record("SetMute")
	done(c.err)
}

func (c *fakeClient) SetDeaf(_, _ uint64, _ bool, done gateway.CompletionFunc) {
	c.record("SetDeaf")
	done(c.err)
}

func (c *fakeClient) GrantPermission(_, _ uint64, _ gateway.Permission, done gateway.CompletionFunc) {
	c.record("GrantPermission")
	done(c.err)
}

func (c *fakeClient) RevokePermission(_, _ uint64, _ gateway.Permission, done gateway.CompletionFunc) {
	c.record("RevokePermission")
	done(c.err)
}

func (c *fakeClient) SetRolePosition(_, _ uint64, _ int, done gateway.CompletionFunc) {
	c.record("SetRolePosition")
	done(c.err)
}

func (c *fakeClient) RenameChannel(_, _ uint64, _ string, done gateway.CompletionFunc) {
	c.record("RenameChannel")
	done(c.err)
}

func (c *fakeClient) SetChannelPosition(_, _ uint64, _ int, done gateway.CompletionFunc) {
	c.record("SetChannelPosition")
	done(c.err)
}

func (c *fakeClient) SetTopic(_, _ uint64, _ string, done gateway.CompletionFunc) {
	c.record("SetTopic")
	done(c.err)
}

func (c *fakeClient) PutOverride(_, _ uint64, _ gateway.Override, done gateway.CompletionFunc) {
	c.record("PutOverride")
	done(c.err)
}

func (c *fakeClient) DeleteOverride(_, _, _ uint64, done gateway.CompletionFunc) {
	c.record("DeleteOverride")
	done(c.err)
}

func (c *fakeClient) MoveMember(_, _, _ uint64, done gateway.CompletionFunc) {
	c.record("MoveMember")
	done(c.err)
}

func (c *fakeClient) SendMessage(_, channelID uint64, out gateway.Outgoing, done gateway.MessageFunc) {
	c.record("SendMessage")
	if c.err != nil {
		done(nil, c.err)
		return
	}
	done(&gateway.Message{ID: 900, ChannelID: channelID, Content: out.Content, Embeds: out.Embeds}, nil)
}

func (c *fakeClient) EditMessage(_, channelID, messageID uint64, out gateway.Outgoing, done gateway.MessageFunc) {
	c.record("EditMessage")
	if c.err != nil {
		done(nil, c.err)
		return
	}
	done(&gateway.Message{ID: messageID, ChannelID: channelID, Content: out.Content, Embeds: out.Embeds}, nil)
}

func (c *fakeClient) Message(_, channelID, messageID uint64, done gateway.MessageFunc) {
	c.record("Message")
	if c.err != nil {
		done(nil, c.err)
		return
	}
	done(&gateway.Message{ID: messageID, ChannelID: channelID}, nil)
}

func (c *fakeClient) Messages(_, channelID uint64, done gateway.MessagesFunc) {
	c.record("Messages")
	if c.err != nil {
		done(nil, c.err)
		return
	}
	done([]*gateway.Message{
		{ID: 3, ChannelID: channelID},
		{ID: 1, ChannelID: channelID},
		{ID: 2, ChannelID: channelID},
	}, nil)
}

func (c *fakeClient) RegisterCommand(_ uint64, _, _ string, done gateway.CompletionFunc) {
	c.record("RegisterCommand")
	done(c.err)
}

func (c *fakeClient) UnregisterCommand(_ uint64, _ string, done gateway.CompletionFunc) {
	c.record("UnregisterCommand")
	done(c.err)
}

func (c *fakeClient) ReplyInteraction(_ string, _ gateway.Outgoing, done gateway.CompletionFunc) {
	c.record("ReplyInteraction")
	done(c.err)
}

// fakeStore keeps records in maps. Zero value is unusable; use newFakeStore.
type fakeStore struct {
	mu         sync.Mutex
	nextID     uint64
	slots      map[uint64]*store.Slot
	commands   map[uint64]*store.CustomCommand
	responders map[uint64]*store.AutoResponder
	err        error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		nextID:     1,
		slots:      make(map[uint64]*store.Slot),
		commands:   make(map[uint64]*store.CustomCommand),
		responders: make(map[uint64]*store.AutoResponder),
	}
}

func (s *fakeStore) id() uint64 {
	id := s.nextID
	s.nextID++
	return id
}

func (s *fakeStore) Slot(_ context.Context, guildID, slotID uint64) (*store.Slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	slot, ok := s.slots[slotID]
	if !ok || slot.GuildID != guildID {
		return nil, store.ErrNotFound
	}
	copied := *slot
	return &copied, nil
}

func (s *fakeStore) Slots(_ context.Context, guildID uint64) ([]*store.Slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	var out []*store.Slot
	for _, slot := range s.slots {
		if slot.GuildID == guildID {
			copied := *slot
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (s *fakeStore) CreateSlot(_ context.Context, slot *store.Slot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	slot.ID = s.id()
	copied := *slot
	s.slots[slot.ID] = &copied
	return nil
}

func (s *fakeStore) UpdateSlot(_ context.Context, slot *store.Slot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if _, ok := s.slots[slot.ID]; !ok {
		return store.ErrNotFound
	}
	copied := *slot
	s.slots[slot.ID] = &copied
	return nil
}

func (s *fakeStore) DeleteSlot(_ context.Context, guildID, slotID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	slot, ok := s.slots[slotID]
	if !ok || slot.GuildID != guildID {
		return store.ErrNotFound
	}
	switch slot.Kind {
	case store.KindCommand:
		delete(s.commands, slot.RefID)
	case store.KindResponder:
		delete(s.responders, slot.RefID)
	}
	delete(s.slots, slotID)
	return nil
}

func (s *fakeStore) Command(_ context.Context, guildID, id uint64) (*store.CustomCommand, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	cmd, ok := s.commands[id]
	if !ok || cmd.GuildID != guildID {
		return nil, store.ErrNotFound
	}
	copied := *cmd
	return &copied, nil
}

func (s *fakeStore) CreateCommand(_ context.Context, cmd *store.CustomCommand) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	cmd.ID = s.id()
	copied := *cmd
	s.commands[cmd.ID] = &copied
	return nil
}

func (s *fakeStore) UpdateCommand(_ context.Context, cmd *store.CustomCommand) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if _, ok := s.commands[cmd.ID]; !ok {
		return store.ErrNotFound
	}
	copied := *cmd
	s.commands[cmd.ID] = &copied
	return nil
}

func (s *fakeStore) DeleteCommand(_ context.Context, guildID, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	cmd, ok := s.commands[id]
	if !ok || cmd.GuildID != guildID {
		return store.ErrNotFound
	}
	delete(s.commands, id)
	return nil
}

func (s *fakeStore) Responder(_ context.Context, guildID, id uint64) (*store.AutoResponder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	resp, ok := s.responders[id]
	if !ok || resp.GuildID != guildID {
		return nil, store.ErrNotFound
	}
	copied := *resp
	return &copied, nil
}

func (s *fakeStore) CreateResponder(_ context.Context, resp *store.AutoResponder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	resp.ID = s.id()
	copied := *resp
	s.responders[resp.ID] = &copied
	return nil
}

func (s *fakeStore) UpdateResponder(_ context.Context, resp *store.AutoResponder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if _, ok := s.responders[resp.ID]; !ok {
		return store.ErrNotFound
	}
	copied := *resp
	s.responders[resp.ID] = &copied
	return nil
}

func (s *fakeStore) DeleteResponder(_ context.Context, guildID, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	resp, ok := s.responders[id]
	if !ok || resp.GuildID != guildID {
		return store.ErrNotFound
	}
	delete(s.responders, id)
	return nil
}

// testGuild builds the standard fixture guild used across the dispatch tests.
func testGuild() *gateway.Guild {
	return &gateway.Guild{
		ID:      testGuildID,
		Name:    "fixture",
		OwnerID: 100,
		Members: []*gateway.Member{
			{ID: 100, Username: "owner"},
			{ID: 101, Username: "alice", Nick: "al", Roles: []uint64{201}},
			{ID: 102, Username: "bob", VoiceChannelID: 301},
		},
		Roles: []*gateway.Role{
			{ID: 200, Name: "everyone", Position: 0},
			{ID: 201, Name: "mods", Position: 1, Permissions: []gateway.Permission{gateway.PermKickMembers}},
		},
		Channels: []*gateway.Channel{
			{ID: 300, Name: "general", Type: gateway.ChannelText, Topic: "hello"},
			{ID: 301, Name: "lounge", Type: gateway.ChannelVoice},
			{ID: 302, Name: "announcements", Type: gateway.ChannelNews},
			{ID: 303, Name: "discussion", Type: gateway.ChannelThread, ParentID: 300},
			{ID: 304, Name: "misc", Type: gateway.ChannelCategory},
		},
	}
}

type testEnv struct {
	router *Router
	client *fakeClient
	store  *fakeStore
	pub    *capturePublisher
	reg    *interactions.Registry
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	client := newFakeClient(testGuild())
	st := newFakeStore()
	pub := &capturePublisher{}
	reg := interactions.NewRegistry(0)

	rep := &replier{pub: pub.publish, log: logging.Nop()}
	regs := DefaultNamespaces(client, st, reg, testTotalShards)
	router, err := newRouter(regs, client, testTotalShards, []int{testShard}, rep, logging.Nop(), nil)
	if err != nil {
		t.Fatalf("router init failed: %v", err)
	}
	return &testEnv{router: router, client: client, store: st, pub: pub, reg: reg}
}

// dispatch runs one delivery through the router and returns its acker.
func (e *testEnv) dispatch(t *testing.T, action, body string) *fakeAcker {
	t.Helper()
	acker := &fakeAcker{}
	d := NewDelivery(action, "corr-1", "replies.test", "", 7, []byte(body), acker)
	e.router.Dispatch(context.Background(), d, testShard)
	return acker
}
