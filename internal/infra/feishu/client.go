package feishu

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	"github.com/larksuite/oapi-sdk-go/v3/event/dispatcher"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	larkws "github.com/larksuite/oapi-sdk-go/v3/ws"

	"github.com/icecreamdb/chat-responder/internal/biz/domain"
)

// rosterTTL bounds how long a chat's owner and member names are trusted
const rosterTTL = 10 * time.Minute

// ChatMember represents a member in a chat
type ChatMember struct {
	MemberID   string `json:"member_id"`
	MemberType string `json:"member_type"` // user, bot
	Name       string `json:"name"`
}

// ChatInfo represents information about a chat
type ChatInfo struct {
	ChatID      string `json:"chat_id"`
	Name        string `json:"name"`
	ChatType    string `json:"chat_type"` // p2p, group
	OwnerID     string `json:"owner_id"`
	MemberCount int    `json:"user_count"`
}

// MessageHandler is the callback for received messages
type MessageHandler = func(ev *domain.MessageEvent)

// roster is the cached view of one chat
type roster struct {
	name      string
	ownerID   string
	members   map[string]string // open_id -> name
	fetchedAt time.Time
}

// Client is the Feishu chat transport.
// Chats map to rooms (room id = chat_id) and the app id is the bot id.
type Client struct {
	appID     string
	appSecret string
	larkCli   *lark.Client
	onMessage MessageHandler
	logger    *slog.Logger
	cancel    context.CancelFunc

	mu      sync.RWMutex
	rosters map[string]*roster
}

// NewClient creates a new Feishu client
func NewClient(appID, appSecret string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		appID:     appID,
		appSecret: appSecret,
		larkCli:   lark.NewClient(appID, appSecret),
		logger:    logger.With("component", "feishu"),
		rosters:   make(map[string]*roster),
	}
}

// BotID returns the id used as bot_user_id for Feishu channels
func (c *Client) BotID() string {
	return c.appID
}

// OnMessage sets the message handler
func (c *Client) OnMessage(handler MessageHandler) {
	c.onMessage = handler
}

// Start connects to Feishu via WebSocket and blocks until ctx is done
func (c *Client) Start(ctx context.Context) error {
	ctx, c.cancel = context.WithCancel(ctx)

	// Must return quickly so the SDK can ACK, otherwise Feishu redelivers
	eventHandler := dispatcher.NewEventDispatcher("", "").
		OnP2MessageReceiveV1(func(_ context.Context, event *larkim.P2MessageReceiveV1) error {
			go c.handleMessage(ctx, event)
			return nil
		})

	wsCli := larkws.NewClient(c.appID, c.appSecret,
		larkws.WithEventHandler(eventHandler),
		larkws.WithLogLevel(larkcore.LogLevelInfo),
	)

	c.logger.Info("starting websocket connection")
	return wsCli.Start(ctx)
}

// Stop disconnects from Feishu
func (c *Client) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
}

func (c *Client) handleMessage(ctx context.Context, event *larkim.P2MessageReceiveV1) {
	if event == nil || event.Event == nil || event.Event.Message == nil || event.Event.Message.ChatId == nil {
		return
	}
	chatID := *event.Event.Message.ChatId

	r, err := c.roster(ctx, chatID)
	if err != nil {
		c.logger.Warn("failed to load chat roster", "chat", chatID, "error", err)
		r = &roster{}
	}

	ev := toMessageEvent(c.appID, event, r)
	if ev == nil {
		return
	}
	c.logger.Debug("message received", "chat", ev.RoomID, "user", ev.UserID, "text", truncate(ev.Text, 50))

	if c.onMessage != nil {
		c.onMessage(ev)
	}
}

// toMessageEvent converts a Feishu receive event. It returns nil for
// messages sent by apps and for message types without text.
func toMessageEvent(botID string, event *larkim.P2MessageReceiveV1, r *roster) *domain.MessageEvent {
	rawMsg := event.Event.Message
	if rawMsg == nil || rawMsg.ChatId == nil || rawMsg.MessageType == nil || rawMsg.Content == nil {
		return nil
	}

	sender := event.Event.Sender
	if sender == nil || sender.SenderId == nil || sender.SenderId.OpenId == nil {
		return nil
	}
	// Filter out messages sent by bots to prevent loops
	if sender.SenderType != nil && *sender.SenderType == "app" {
		return nil
	}

	mentionMap := make(map[string]string)
	for _, mention := range rawMsg.Mentions {
		if mention.Key != nil && mention.Name != nil {
			mentionMap[*mention.Key] = *mention.Name
		}
	}

	var text string
	switch *rawMsg.MessageType {
	case "text":
		text = parseTextContent(*rawMsg.Content, mentionMap)
	case "post":
		text = parsePostContent(*rawMsg.Content, mentionMap)
	default:
		return nil
	}
	if strings.TrimSpace(text) == "" {
		return nil
	}

	userID := *sender.SenderId.OpenId
	ev := &domain.MessageEvent{
		BotID:    botID,
		RoomID:   *rawMsg.ChatId,
		RoomName: r.name,
		UserID:   userID,
		UserName: userID,
		Text:     text,
	}
	if rawMsg.MessageId != nil {
		ev.MessageID = *rawMsg.MessageId
	}
	if name := r.members[userID]; name != "" {
		ev.UserName = name
		ev.DisplayName = name
	}
	if r.ownerID != "" && r.ownerID == userID {
		ev.Badges = append(ev.Badges, "broadcaster")
	}
	return ev
}

// parseTextContent extracts text from a text message
// It also replaces mention placeholders (@_user_1) with real names
func parseTextContent(content string, mentionMap map[string]string) string {
	var parsed struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return ""
	}
	return replaceMentions(parsed.Text, mentionMap)
}

// parsePostContent flattens a rich text message to plain lines
func parsePostContent(content string, mentionMap map[string]string) string {
	var parsed struct {
		Title   string `json:"title"`
		Content [][]struct {
			Tag    string `json:"tag"`
			Text   string `json:"text,omitempty"`
			UserID string `json:"user_id,omitempty"` // for "at" tags
		} `json:"content"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return ""
	}

	var lines []string
	if parsed.Title != "" {
		lines = append(lines, parsed.Title)
	}
	for _, line := range parsed.Content {
		var parts []string
		for _, elem := range line {
			switch elem.Tag {
			case "text":
				if elem.Text != "" {
					parts = append(parts, elem.Text)
				}
			case "at":
				if elem.UserID == "" {
					continue
				}
				if name, ok := mentionMap[elem.UserID]; ok {
					parts = append(parts, "@"+name)
				} else {
					parts = append(parts, "@"+elem.UserID)
				}
			}
		}
		if len(parts) > 0 {
			lines = append(lines, strings.Join(parts, ""))
		}
	}
	return replaceMentions(strings.Join(lines, "\n"), mentionMap)
}

// replaceMentions replaces mention placeholders (@_user_1, @_user_2, etc.) with real names
func replaceMentions(text string, mentionMap map[string]string) string {
	for key, name := range mentionMap {
		text = strings.ReplaceAll(text, key, "@"+name)
	}
	return text
}

// Send delivers one text line to a chat, as a threaded reply when ReplyToID is set
func (c *Client) Send(ctx context.Context, msg *domain.OutgoingMessage) error {
	content, err := json.Marshal(map[string]string{"text": msg.Text})
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	if msg.ReplyToID != "" {
		req := larkim.NewReplyMessageReqBuilder().
			MessageId(msg.ReplyToID).
			Body(larkim.NewReplyMessageReqBodyBuilder().
				MsgType(larkim.MsgTypeText).
				Content(string(content)).
				Build()).
			Build()

		resp, err := c.larkCli.Im.Message.Reply(ctx, req)
		if err != nil {
			return fmt.Errorf("reply message failed: %w", err)
		}
		if !resp.Success() {
			return fmt.Errorf("reply message error: %s", resp.Msg)
		}
		return nil
	}

	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(larkim.ReceiveIdTypeChatId).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(msg.RoomID).
			MsgType(larkim.MsgTypeText).
			Content(string(content)).
			Build()).
		Build()

	resp, err := c.larkCli.Im.Message.Create(ctx, req)
	if err != nil {
		return fmt.Errorf("send message failed: %w", err)
	}
	if !resp.Success() {
		return fmt.Errorf("send message error: %s", resp.Msg)
	}
	return nil
}

// LoginExists reports whether any member of a chat seen so far uses the name
func (c *Client) LoginExists(_ context.Context, login string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, r := range c.rosters {
		for _, name := range r.members {
			if strings.EqualFold(name, login) {
				return true, nil
			}
		}
	}
	return false, nil
}

// roster returns the cached chat roster, refreshing it past rosterTTL
func (c *Client) roster(ctx context.Context, chatID string) (*roster, error) {
	c.mu.RLock()
	r, ok := c.rosters[chatID]
	c.mu.RUnlock()
	if ok && time.Since(r.fetchedAt) < rosterTTL {
		return r, nil
	}

	info, err := c.GetChatInfo(ctx, chatID)
	if err != nil {
		return nil, err
	}
	members, err := c.GetChatMembers(ctx, chatID)
	if err != nil {
		return nil, err
	}

	r = &roster{
		name:      info.Name,
		ownerID:   info.OwnerID,
		members:   make(map[string]string, len(members)),
		fetchedAt: time.Now(),
	}
	for _, m := range members {
		r.members[m.MemberID] = m.Name
	}

	c.mu.Lock()
	c.rosters[chatID] = r
	c.mu.Unlock()
	return r, nil
}

// GetChatMembers retrieves members of a chat (group)
// Uses pagination to get all members
func (c *Client) GetChatMembers(ctx context.Context, chatID string) ([]*ChatMember, error) {
	var members []*ChatMember
	var pageToken string

	for {
		reqBuilder := larkim.NewGetChatMembersReqBuilder().
			MemberIdType("open_id").
			ChatId(chatID).
			PageSize(100)
		if pageToken != "" {
			reqBuilder = reqBuilder.PageToken(pageToken)
		}

		resp, err := c.larkCli.Im.ChatMembers.Get(ctx, reqBuilder.Build())
		if err != nil {
			return nil, fmt.Errorf("get chat members failed: %w", err)
		}
		if !resp.Success() {
			return nil, fmt.Errorf("get chat members error: %s", resp.Msg)
		}

		for _, item := range resp.Data.Items {
			member := &ChatMember{}
			if item.MemberId != nil {
				member.MemberID = *item.MemberId
			}
			if item.MemberIdType != nil {
				member.MemberType = *item.MemberIdType
			}
			if item.Name != nil {
				member.Name = *item.Name
			}
			members = append(members, member)
		}

		if resp.Data.PageToken == nil || *resp.Data.PageToken == "" {
			break
		}
		pageToken = *resp.Data.PageToken
	}

	c.logger.Debug("retrieved chat members", "chat", chatID, "count", len(members))
	return members, nil
}

// GetChatInfo retrieves information about a chat
func (c *Client) GetChatInfo(ctx context.Context, chatID string) (*ChatInfo, error) {
	req := larkim.NewGetChatReqBuilder().
		ChatId(chatID).
		Build()

	resp, err := c.larkCli.Im.Chat.Get(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("get chat info failed: %w", err)
	}
	if !resp.Success() {
		return nil, fmt.Errorf("get chat info error: %s", resp.Msg)
	}

	info := &ChatInfo{ChatID: chatID}
	if resp.Data.Name != nil {
		info.Name = *resp.Data.Name
	}
	if resp.Data.ChatMode != nil {
		info.ChatType = *resp.Data.ChatMode
	}
	if resp.Data.OwnerId != nil {
		info.OwnerID = *resp.Data.OwnerId
	}
	if resp.Data.UserCount != nil {
		fmt.Sscanf(*resp.Data.UserCount, "%d", &info.MemberCount)
	}
	return info, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
