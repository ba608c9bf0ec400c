package mcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/icecreamdb/chat-responder/internal/biz/domain"
	"github.com/icecreamdb/chat-responder/internal/biz/usecase"
)

// ChannelInfo describes one cached channel
type ChannelInfo struct {
	BotID          string `json:"bot_id"`
	RoomID         string `json:"room_id"`
	Name           string `json:"name"`
	Enabled        bool   `json:"enabled"`
	PhraseTriggers int    `json:"phrase_triggers"`
	RegexTriggers  int    `json:"regex_triggers"`
}

// ListChannelsInput is empty - no input needed
type ListChannelsInput struct{}

// ListChannelsOutput contains the cached channels
type ListChannelsOutput struct {
	Channels []ChannelInfo `json:"channels"`
}

func (s *Server) handleListChannels(ctx context.Context, req *mcp.CallToolRequest, input ListChannelsInput) (*mcp.CallToolResult, ListChannelsOutput, error) {
	out := ListChannelsOutput{Channels: []ChannelInfo{}}
	for _, ch := range s.uc.Cache.Channels() {
		info := ChannelInfo{
			BotID:   ch.BotID,
			RoomID:  ch.RoomID,
			Name:    ch.Name,
			Enabled: ch.Enabled,
		}
		if snap, ok := s.uc.Cache.SnapshotFor(ch.Key()); ok {
			info.PhraseTriggers = len(snap.PhraseTriggers)
			info.RegexTriggers = len(snap.RegexTriggers)
		}
		out.Channels = append(out.Channels, info)
	}
	return nil, out, nil
}

// CacheStatusInput is empty - no input needed
type CacheStatusInput struct{}

// CacheStatusOutput summarizes the rule snapshot
type CacheStatusOutput struct {
	Loaded          bool   `json:"loaded"`
	Channels        int    `json:"channels"`
	PhraseTriggers  int    `json:"phrase_triggers"`
	RegexTriggers   int    `json:"regex_triggers"`
	UserReplies     int    `json:"user_replies"`
	NoticeResponses int    `json:"notice_responses"`
	LastRefresh     string `json:"last_refresh,omitempty"`
}

func toStatusOutput(st usecase.CacheStatus) CacheStatusOutput {
	out := CacheStatusOutput{
		Loaded:          st.Loaded,
		Channels:        st.Channels,
		PhraseTriggers:  st.PhraseTriggers,
		RegexTriggers:   st.RegexTriggers,
		UserReplies:     st.UserReplies,
		NoticeResponses: st.Notices,
	}
	if st.Loaded {
		out.LastRefresh = st.LastRefresh.Format(time.RFC3339)
	}
	return out
}

func (s *Server) handleCacheStatus(ctx context.Context, req *mcp.CallToolRequest, input CacheStatusInput) (*mcp.CallToolResult, CacheStatusOutput, error) {
	return nil, toStatusOutput(s.uc.Cache.Status()), nil
}

// RefreshCacheInput is empty - no input needed
type RefreshCacheInput struct{}

// RefreshCacheOutput reports the snapshot after a forced refresh
type RefreshCacheOutput struct {
	Success bool              `json:"success"`
	Status  CacheStatusOutput `json:"status"`
	Error   string            `json:"error,omitempty"`
}

func (s *Server) handleRefreshCache(ctx context.Context, req *mcp.CallToolRequest, input RefreshCacheInput) (*mcp.CallToolResult, RefreshCacheOutput, error) {
	if err := s.uc.Cache.Refresh(ctx, s.now()); err != nil {
		s.logger.Warn("forced refresh failed", "error", err)
		return nil, RefreshCacheOutput{Success: false, Status: toStatusOutput(s.uc.Cache.Status()), Error: err.Error()}, nil
	}
	return nil, RefreshCacheOutput{Success: true, Status: toStatusOutput(s.uc.Cache.Status())}, nil
}

// DryRunInput is a message to test against the cached rules
type DryRunInput struct {
	BotID    string   `json:"bot_id" jsonschema:"the bot account the message is addressed to"`
	RoomID   string   `json:"room_id" jsonschema:"the room the message is posted in"`
	UserID   string   `json:"user_id,omitempty" jsonschema:"sender user id, used for owner and admin checks"`
	UserName string   `json:"user_name,omitempty" jsonschema:"sender login, used by response placeholders"`
	Badges   []string `json:"badges,omitempty" jsonschema:"sender badges such as moderator, vip, subscriber or broadcaster"`
	Text     string   `json:"text" jsonschema:"the chat message text"`
}

// DryRunFire is a rule that would fire
type DryRunFire struct {
	Source   string `json:"source"`
	RuleID   int64  `json:"rule_id"`
	Response string `json:"response"`
}

// DryRunOutput lists the candidates and the responses that would be sent
type DryRunOutput struct {
	Roles  []string     `json:"roles"`
	Phrase []int64      `json:"phrase_candidates"`
	Regex  []int64      `json:"regex_candidates"`
	Fired  []DryRunFire `json:"fired"`
	Error  string       `json:"error,omitempty"`
}

func (s *Server) handleDryRunMatch(ctx context.Context, req *mcp.CallToolRequest, input DryRunInput) (*mcp.CallToolResult, DryRunOutput, error) {
	out, err := s.DryRun(ctx, input)
	if err != nil {
		return nil, DryRunOutput{Error: err.Error()}, nil
	}
	return nil, out, nil
}

// DryRun matches a message against the cached rules and renders the first
// permitted response of each batch without sending it or touching cooldowns
func (s *Server) DryRun(ctx context.Context, input DryRunInput) (DryRunOutput, error) {
	if input.BotID == "" || input.RoomID == "" {
		return DryRunOutput{}, errors.New("bot_id and room_id are required")
	}

	ev := &domain.MessageEvent{
		BotID:    input.BotID,
		RoomID:   input.RoomID,
		UserID:   input.UserID,
		UserName: input.UserName,
		Text:     input.Text,
		Badges:   input.Badges,
	}
	roles := s.uc.Permissions.Roles(ev)
	out := DryRunOutput{Roles: roles.Names(), Phrase: []int64{}, Regex: []int64{}, Fired: []DryRunFire{}}

	if err := s.uc.Cache.RefreshIfStale(ctx, s.now()); err != nil {
		s.logger.Warn("serving stale rules", "error", err)
	}
	snap, ok := s.uc.Cache.SnapshotFor(ev.Key())
	if !ok {
		return out, fmt.Errorf("no enabled channel for bot %s in room %s", input.BotID, input.RoomID)
	}
	ev.RoomName = snap.Channel.Name

	cands := s.uc.Matcher.Match(ev.Text, snap)
	out.Phrase = append(out.Phrase, cands.Phrase...)
	out.Regex = append(out.Regex, cands.Regex...)

	for _, batch := range []struct {
		source string
		ids    []int64
	}{{"phrase", cands.Phrase}, {"regex", cands.Regex}} {
		if len(batch.ids) == 0 {
			continue
		}
		rules, err := s.rules.RulesByIDs(ctx, batch.ids)
		if err != nil {
			return out, fmt.Errorf("failed to load candidate rules: %w", err)
		}
		r := usecase.FirstPermitted(rules, roles)
		if r == nil {
			continue
		}
		out.Fired = append(out.Fired, DryRunFire{
			Source:   batch.source,
			RuleID:   r.ID,
			Response: s.uc.Templater.Render(ctx, r.Response, ev, r.TimesUsed),
		})
	}
	return out, nil
}
