package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/icecreamdb/chat-responder/internal/biz/domain"
)

// DefaultLookupTimeout bounds a user lookup request
const DefaultLookupTimeout = 2 * time.Second

// MessageHandler is the callback for chat messages
type MessageHandler = func(ev *domain.MessageEvent)

// NoticeHandler is the callback for system notices
type NoticeHandler = func(ev *domain.NoticeEvent)

// Client relays chat traffic through a NATS hub. Events for other bots are ignored.
type Client struct {
	conn          *nats.Conn
	botID         string
	logger        *slog.Logger
	lookupTimeout time.Duration
	onMsg         MessageHandler
	onNotice      NoticeHandler
}

// Connect dials the hub
func Connect(url, botID string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "hub")

	conn, err := nats.Connect(url,
		nats.Name("chat-responder-"+botID),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("hub disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("hub reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect hub: %w", err)
	}

	return &Client{
		conn:          conn,
		botID:         botID,
		logger:        logger,
		lookupTimeout: DefaultLookupTimeout,
	}, nil
}

// BotID returns the bot this client speaks for
func (c *Client) BotID() string {
	return c.botID
}

// OnMessage sets the message handler
func (c *Client) OnMessage(handler MessageHandler) {
	c.onMsg = handler
}

// OnNotice sets the notice handler
func (c *Client) OnNotice(handler NoticeHandler) {
	c.onNotice = handler
}

// Start subscribes to event subjects and blocks until ctx is done
func (c *Client) Start(ctx context.Context) error {
	msgSub, err := c.conn.Subscribe(SubjectMessages, c.handleMessage)
	if err != nil {
		return fmt.Errorf("failed to subscribe %s: %w", SubjectMessages, err)
	}
	defer msgSub.Unsubscribe()

	noticeSub, err := c.conn.Subscribe(SubjectNotices, c.handleNotice)
	if err != nil {
		return fmt.Errorf("failed to subscribe %s: %w", SubjectNotices, err)
	}
	defer noticeSub.Unsubscribe()

	if err := c.conn.Flush(); err != nil {
		return fmt.Errorf("failed to flush subscriptions: %w", err)
	}
	c.logger.Info("listening for hub events", "bot", c.botID)

	<-ctx.Done()
	return nil
}

// Stop drains the connection
func (c *Client) Stop() {
	if err := c.conn.Drain(); err != nil {
		c.conn.Close()
	}
}

func (c *Client) handleMessage(msg *nats.Msg) {
	var env messageEnvelope
	if err := json.Unmarshal(msg.Data, &env); err != nil {
		c.logger.Warn("dropping malformed message event", "error", err)
		return
	}
	if env.BotID != c.botID {
		return
	}
	if c.onMsg != nil {
		c.onMsg(env.toDomain())
	}
}

func (c *Client) handleNotice(msg *nats.Msg) {
	var env noticeEnvelope
	if err := json.Unmarshal(msg.Data, &env); err != nil {
		c.logger.Warn("dropping malformed notice event", "error", err)
		return
	}
	if env.BotID != c.botID {
		return
	}
	ev, ok := env.toDomain()
	if !ok {
		return
	}
	if c.onNotice != nil {
		c.onNotice(ev)
	}
}

// Send publishes one outgoing line for the hub to deliver
func (c *Client) Send(_ context.Context, msg *domain.OutgoingMessage) error {
	data, err := json.Marshal(outgoingFromDomain(msg))
	if err != nil {
		return fmt.Errorf("failed to encode outgoing message: %w", err)
	}
	if err := c.conn.Publish(fmt.Sprintf(SubjectOutgoingFmt, c.botID), data); err != nil {
		return fmt.Errorf("failed to publish outgoing message: %w", err)
	}
	return nil
}

// LoginExists asks the hub whether the login belongs to a real user
func (c *Client) LoginExists(ctx context.Context, login string) (bool, error) {
	data, err := json.Marshal(lookupRequest{Login: login})
	if err != nil {
		return false, fmt.Errorf("failed to encode lookup: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.lookupTimeout)
	defer cancel()

	resp, err := c.conn.RequestWithContext(ctx, SubjectUserLookup, data)
	if err != nil {
		if errors.Is(err, nats.ErrNoResponders) {
			return false, nil
		}
		return false, fmt.Errorf("user lookup failed: %w", err)
	}

	var reply lookupReply
	if err := json.Unmarshal(resp.Data, &reply); err != nil {
		return false, fmt.Errorf("failed to decode lookup reply: %w", err)
	}
	if reply.Error != "" {
		return false, fmt.Errorf("user lookup failed: %s", reply.Error)
	}
	return reply.Exists, nil
}
