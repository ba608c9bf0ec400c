package server

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icecreamdb/chat-responder/internal/biz"
	"github.com/icecreamdb/chat-responder/internal/biz/domain"
	"github.com/icecreamdb/chat-responder/internal/service"
)

// Mock implementations

type mockTransport struct {
	onMsg    func(ev *domain.MessageEvent)
	onNotice func(ev *domain.NoticeEvent)
	started  chan struct{}
	stopped  bool
}

func (m *mockTransport) BotID() string { return "bot-1" }

func (m *mockTransport) OnMessage(h func(ev *domain.MessageEvent)) { m.onMsg = h }

func (m *mockTransport) OnNotice(h func(ev *domain.NoticeEvent)) { m.onNotice = h }

func (m *mockTransport) Start(ctx context.Context) error {
	close(m.started)
	<-ctx.Done()
	return nil
}

func (m *mockTransport) Stop() { m.stopped = true }

type mockRuleRepo struct {
	channels []*domain.ChannelRules
}

func (m *mockRuleRepo) LoadChannels(ctx context.Context) ([]*domain.ChannelRules, error) {
	return m.channels, nil
}

func (m *mockRuleRepo) RulesByIDs(ctx context.Context, ids []int64) ([]*domain.Rule, error) {
	var out []*domain.Rule
	for _, g := range m.channels[0].Groups {
		for _, r := range g.Rules {
			for _, id := range ids {
				if r.ID == id {
					out = append(out, r)
				}
			}
		}
	}
	return out, nil
}

func (m *mockRuleRepo) IncrementTimesUsed(ctx context.Context, id int64) error { return nil }

func (m *mockRuleRepo) Close() error { return nil }

type mockSender struct {
	mu   sync.Mutex
	sent []domain.OutgoingMessage
	at   []time.Time

	// holdText sends wait for release before they are recorded
	holdText string
	release  chan struct{}
}

func (m *mockSender) Send(ctx context.Context, msg *domain.OutgoingMessage) error {
	if m.holdText != "" && msg.Text == m.holdText {
		select {
		case <-m.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, *msg)
	m.at = append(m.at, time.Now())
	return nil
}

func (m *mockSender) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func (m *mockSender) texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.sent))
	for _, msg := range m.sent {
		out = append(out, msg.Text)
	}
	return out
}

func newTestServer(t *testing.T) (*ChatServer, *mockTransport, *mockSender) {
	t.Helper()
	repo := &mockRuleRepo{channels: []*domain.ChannelRules{{
		Channel: domain.Channel{BotID: "bot-1", RoomID: "room-1", Name: "icecream", Enabled: true},
		Groups: []*domain.RuleGroup{{ID: 1, Enabled: true, Rules: []*domain.Rule{
			{ID: 1, Enabled: true, TriggerPhrase: "!hello", Response: "hi", Permissions: domain.AllowAll()},
		}}},
		NoticeResponses: []domain.NoticeResponse{{BotID: "bot-1", RoomID: "room-1", Kind: domain.NoticeRaid, Response: "welcome raiders"}},
	}}}
	sender := &mockSender{}
	uc := biz.NewUsecases(repo, nil, biz.Options{OwnerIDs: []string{"owner"}}, nil, nil)
	svc := service.NewDispatchService(uc, repo, sender, nil, nil)

	transport := &mockTransport{started: make(chan struct{})}
	return NewChatServer(transport, svc, nil), transport, sender
}

func TestChatServer_RoutesEvents(t *testing.T) {
	s, transport, sender := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()
	<-transport.started

	transport.onMsg(&domain.MessageEvent{BotID: "bot-1", RoomID: "room-1", UserID: "u1", Text: "!hello", MessageID: "m1"})
	transport.onNotice(&domain.NoticeEvent{BotID: "bot-1", RoomID: "room-1", Kind: domain.NoticeRaid})

	assert.Eventually(t, func() bool { return sender.count() == 2 }, time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	s.Stop()
	assert.True(t, transport.stopped)
}

func TestChatServer_DeduplicatesMessageIDs(t *testing.T) {
	s, transport, sender := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go s.Start(ctx)
	<-transport.started

	ev := &domain.MessageEvent{BotID: "bot-1", RoomID: "room-1", UserID: "owner", Text: "!hello", MessageID: "m1"}
	transport.onMsg(ev)
	transport.onMsg(ev)

	assert.Eventually(t, func() bool { return sender.count() == 1 }, time.Second, 10*time.Millisecond)
	assert.Never(t, func() bool { return sender.count() > 1 }, 100*time.Millisecond, 10*time.Millisecond)
}

func TestChatServer_SlowSendDoesNotBlockOtherEvents(t *testing.T) {
	s, transport, sender := newTestServer(t)
	sender.holdText = "hi"
	sender.release = make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go s.Start(ctx)
	<-transport.started

	returned := make(chan struct{})
	go func() {
		transport.onMsg(&domain.MessageEvent{BotID: "bot-1", RoomID: "room-1", UserID: "u1", Text: "!hello", MessageID: "m1"})
		close(returned)
	}()
	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("message callback blocked on a held send")
	}

	transport.onNotice(&domain.NoticeEvent{BotID: "bot-1", RoomID: "room-1", Kind: domain.NoticeRaid})
	assert.Eventually(t, func() bool { return sender.count() == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"welcome raiders"}, sender.texts())

	close(sender.release)
	assert.Eventually(t, func() bool { return sender.count() == 2 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"welcome raiders", "hi"}, sender.texts())

	cancel()
	s.Stop()
}

func TestMarkMessageSeen_Expires(t *testing.T) {
	s, _, _ := newTestServer(t)
	now := time.Now()

	assert.True(t, s.markMessageSeen("m1", now))
	assert.False(t, s.markMessageSeen("m1", now.Add(time.Minute)))
	assert.True(t, s.markMessageSeen("m1", now.Add(seenTTL+time.Second)))
}

func TestPruneSeen(t *testing.T) {
	s, _, _ := newTestServer(t)
	now := time.Now()

	s.markMessageSeen("old", now)
	s.markMessageSeen("new", now.Add(4*time.Minute))

	assert.Equal(t, 1, s.PruneSeen(now.Add(seenTTL+time.Second)))
	assert.False(t, s.markMessageSeen("new", now.Add(seenTTL+time.Second)))
}
