package feishu

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receiveEvent(t *testing.T, raw string) *larkim.P2MessageReceiveV1 {
	t.Helper()
	var ev larkim.P2MessageReceiveV1
	require.NoError(t, json.Unmarshal([]byte(raw), &ev))
	return &ev
}

const textEvent = `{
	"event": {
		"sender": {"sender_id": {"open_id": "ou_alice"}, "sender_type": "user"},
		"message": {
			"message_id": "om_1",
			"chat_id": "oc_room",
			"chat_type": "group",
			"message_type": "text",
			"content": "{\"text\":\"!hug @_user_1\"}",
			"mentions": [{"key": "@_user_1", "name": "Bob", "id": {"open_id": "ou_bob"}}]
		}
	}
}`

func TestToMessageEvent_Text(t *testing.T) {
	r := &roster{
		name:    "ice cream lovers",
		ownerID: "ou_alice",
		members: map[string]string{"ou_alice": "Alice"},
	}

	ev := toMessageEvent("cli_app", receiveEvent(t, textEvent), r)
	require.NotNil(t, ev)

	assert.Equal(t, "cli_app", ev.BotID)
	assert.Equal(t, "oc_room", ev.RoomID)
	assert.Equal(t, "ice cream lovers", ev.RoomName)
	assert.Equal(t, "ou_alice", ev.UserID)
	assert.Equal(t, "Alice", ev.UserName)
	assert.Equal(t, "om_1", ev.MessageID)
	assert.Equal(t, "!hug @Bob", ev.Text)
	assert.True(t, ev.HasBadge("broadcaster"), "chat owner maps to broadcaster")
}

func TestToMessageEvent_UnknownMemberFallsBackToID(t *testing.T) {
	ev := toMessageEvent("cli_app", receiveEvent(t, textEvent), &roster{})
	require.NotNil(t, ev)

	assert.Equal(t, "ou_alice", ev.UserName)
	assert.Empty(t, ev.Badges)
}

func TestToMessageEvent_Post(t *testing.T) {
	raw := `{
		"event": {
			"sender": {"sender_id": {"open_id": "ou_alice"}, "sender_type": "user"},
			"message": {
				"message_id": "om_2",
				"chat_id": "oc_room",
				"message_type": "post",
				"content": "{\"title\":\"\",\"content\":[[{\"tag\":\"text\",\"text\":\"!dice\"},{\"tag\":\"text\",\"text\":\"20\"}]]}"
			}
		}
	}`

	ev := toMessageEvent("cli_app", receiveEvent(t, raw), &roster{})
	require.NotNil(t, ev)
	assert.Equal(t, "!dice20", ev.Text)
}

func TestToMessageEvent_Ignored(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"app sender", `{"event":{"sender":{"sender_id":{"open_id":"ou_bot"},"sender_type":"app"},"message":{"chat_id":"oc","message_type":"text","content":"{\"text\":\"hi\"}"}}}`},
		{"image", `{"event":{"sender":{"sender_id":{"open_id":"ou_a"},"sender_type":"user"},"message":{"chat_id":"oc","message_type":"image","content":"{\"image_key\":\"img\"}"}}}`},
		{"blank text", `{"event":{"sender":{"sender_id":{"open_id":"ou_a"},"sender_type":"user"},"message":{"chat_id":"oc","message_type":"text","content":"{\"text\":\"  \"}"}}}`},
		{"no sender", `{"event":{"message":{"chat_id":"oc","message_type":"text","content":"{\"text\":\"hi\"}"}}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Nil(t, toMessageEvent("cli_app", receiveEvent(t, tt.raw), &roster{}))
		})
	}
}

func TestLoginExists(t *testing.T) {
	c := NewClient("cli_app", "secret", nil)
	c.rosters["oc_room"] = &roster{
		members:   map[string]string{"ou_alice": "Alice", "ou_bob": "Bob"},
		fetchedAt: time.Now(),
	}

	ok, err := c.LoginExists(context.Background(), "alice")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.LoginExists(context.Background(), "carol")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRosterCacheHit(t *testing.T) {
	c := NewClient("cli_app", "secret", nil)
	cached := &roster{name: "cached", fetchedAt: time.Now()}
	c.rosters["oc_room"] = cached

	r, err := c.roster(context.Background(), "oc_room")
	require.NoError(t, err)
	assert.Same(t, cached, r)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "冰淇...", truncate("冰淇淋", 2))
}
