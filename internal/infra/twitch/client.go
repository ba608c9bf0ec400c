package twitch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/lrstanley/girc"

	"github.com/icecreamdb/chat-responder/internal/biz/domain"
)

// maxSeenLogins caps the in-memory login set before it is reset
const maxSeenLogins = 50000

// Config contains IRC connection settings
type Config struct {
	Server    string
	Port      int
	TLS       bool
	Nick      string
	Token     string // oauth:...
	BotUserID string
	Channels  []string
}

// MessageHandler is the callback for chat messages
type MessageHandler = func(ev *domain.MessageEvent)

// NoticeHandler is the callback for USERNOTICE events
type NoticeHandler = func(ev *domain.NoticeEvent)

// Client is the Twitch IRC chat transport
type Client struct {
	cfg      Config
	irc      *girc.Client
	logger   *slog.Logger
	onMsg    MessageHandler
	onNotice NoticeHandler

	mu   sync.RWMutex
	seen map[string]struct{}
}

// NewClient creates a Twitch chat client
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		cfg:    cfg,
		logger: logger.With("component", "twitch"),
		seen:   make(map[string]struct{}),
	}

	c.irc = girc.New(girc.Config{
		Server:     cfg.Server,
		Port:       cfg.Port,
		SSL:        cfg.TLS,
		Nick:       cfg.Nick,
		User:       cfg.Nick,
		Name:       cfg.Nick,
		ServerPass: cfg.Token,
		SupportedCaps: map[string][]string{
			"twitch.tv/tags":       nil,
			"twitch.tv/commands":   nil,
			"twitch.tv/membership": nil,
		},
	})

	c.irc.Handlers.Add(girc.CONNECTED, func(cl *girc.Client, _ girc.Event) {
		c.logger.Info("connected, joining channels", "channels", cfg.Channels)
		for _, ch := range cfg.Channels {
			cl.Cmd.Join(channelName(ch))
		}
	})
	// chat events run in the background so PING handling never waits on dispatch
	c.irc.Handlers.AddBg(girc.PRIVMSG, func(_ *girc.Client, e girc.Event) {
		c.handlePrivmsg(e)
	})
	c.irc.Handlers.AddBg(girc.JOIN, func(_ *girc.Client, e girc.Event) {
		if e.Source != nil {
			c.remember(e.Source.Name)
		}
	})
	c.irc.Handlers.AddBg("USERNOTICE", func(_ *girc.Client, e girc.Event) {
		c.handleUsernotice(e)
	})

	return c
}

// OnMessage sets the message handler
func (c *Client) OnMessage(handler MessageHandler) {
	c.onMsg = handler
}

// OnNotice sets the notice handler
func (c *Client) OnNotice(handler NoticeHandler) {
	c.onNotice = handler
}

// BotID returns the bot account's user id
func (c *Client) BotID() string {
	return c.cfg.BotUserID
}

// Start connects and blocks until ctx is done or the connection fails
func (c *Client) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- c.irc.Connect()
	}()

	select {
	case <-ctx.Done():
		c.irc.Close()
		<-errCh
		return nil
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("irc connection failed: %w", err)
		}
		return nil
	}
}

// Stop closes the IRC connection
func (c *Client) Stop() {
	c.irc.Close()
}

func (c *Client) handlePrivmsg(e girc.Event) {
	ev := toMessageEvent(c.cfg.BotUserID, e)
	if ev == nil {
		return
	}
	c.remember(ev.UserName)
	if c.onMsg != nil {
		c.onMsg(ev)
	}
}

func (c *Client) handleUsernotice(e girc.Event) {
	ev := toNoticeEvent(c.cfg.BotUserID, e)
	if ev == nil {
		return
	}
	c.remember(ev.Login)
	if c.onNotice != nil {
		c.onNotice(ev)
	}
}

// Send writes one PRIVMSG, tagged as a reply when ReplyToID is set
func (c *Client) Send(_ context.Context, msg *domain.OutgoingMessage) error {
	if !c.irc.IsConnected() {
		return fmt.Errorf("irc not connected")
	}
	out := &girc.Event{
		Command: girc.PRIVMSG,
		Params:  []string{channelName(msg.RoomName), msg.Text},
	}
	if msg.ReplyToID != "" {
		out.Tags = girc.Tags{"reply-parent-msg-id": msg.ReplyToID}
	}
	c.irc.Send(out)
	return nil
}

// LoginExists reports whether the login has been seen chatting or joining
func (c *Client) LoginExists(_ context.Context, login string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.seen[strings.ToLower(login)]
	return ok, nil
}

func (c *Client) remember(login string) {
	if login == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.seen) >= maxSeenLogins {
		c.seen = make(map[string]struct{})
	}
	c.seen[strings.ToLower(login)] = struct{}{}
}

// toMessageEvent converts a tagged PRIVMSG. Messages without a room-id tag are dropped.
func toMessageEvent(botID string, e girc.Event) *domain.MessageEvent {
	if len(e.Params) < 2 || e.Source == nil {
		return nil
	}
	roomID, _ := e.Tags.Get("room-id")
	userID, _ := e.Tags.Get("user-id")
	if roomID == "" || userID == "" {
		return nil
	}
	if botID != "" && userID == botID {
		return nil
	}

	displayName, _ := e.Tags.Get("display-name")
	msgID, _ := e.Tags.Get("id")
	badges, _ := e.Tags.Get("badges")

	return &domain.MessageEvent{
		BotID:       botID,
		RoomID:      roomID,
		RoomName:    strings.TrimPrefix(e.Params[0], "#"),
		UserID:      userID,
		UserName:    strings.ToLower(e.Source.Name),
		DisplayName: displayName,
		Text:        stripAction(e.Last()),
		MessageID:   msgID,
		Badges:      parseBadges(badges),
	}
}

// toNoticeEvent converts a USERNOTICE; unknown msg-id values are dropped
func toNoticeEvent(botID string, e girc.Event) *domain.NoticeEvent {
	if len(e.Params) < 1 {
		return nil
	}
	rawKind, _ := e.Tags.Get("msg-id")
	kind, ok := domain.ParseNoticeKind(rawKind)
	if !ok {
		return nil
	}
	roomID, _ := e.Tags.Get("room-id")
	if roomID == "" {
		return nil
	}

	tag := func(key string) string {
		v, _ := e.Tags.Get(key)
		return v
	}
	return &domain.NoticeEvent{
		BotID:                botID,
		RoomID:               roomID,
		RoomName:             strings.TrimPrefix(e.Params[0], "#"),
		Kind:                 kind,
		DisplayName:          tag("display-name"),
		Login:                tag("login"),
		CumulativeMonths:     tag("msg-param-cumulative-months"),
		MassGiftCount:        tag("msg-param-mass-gift-count"),
		RecipientDisplayName: tag("msg-param-recipient-display-name"),
		RecipientLogin:       tag("msg-param-recipient-user-name"),
		SenderName:           tag("msg-param-sender-name"),
		SenderLogin:          tag("msg-param-sender-login"),
	}
}

// parseBadges turns "moderator/1,subscriber/12" into badge names
func parseBadges(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, b := range strings.Split(raw, ",") {
		name, _, _ := strings.Cut(b, "/")
		if name != "" {
			out = append(out, name)
		}
	}
	return out
}

// stripAction unwraps CTCP ACTION (/me) messages
func stripAction(text string) string {
	const prefix = "\x01ACTION "
	if strings.HasPrefix(text, prefix) {
		return strings.TrimSuffix(strings.TrimPrefix(text, prefix), "\x01")
	}
	return text
}

func channelName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if !strings.HasPrefix(name, "#") {
		name = "#" + name
	}
	return name
}
