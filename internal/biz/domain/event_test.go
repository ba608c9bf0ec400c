package domain

import "testing"

func TestParseNoticeKind_Known(t *testing.T) {
	kind, ok := ParseNoticeKind(" SubGift ")
	if !ok {
		t.Fatal("Expected subgift to be a known notice kind")
	}
	if kind != NoticeSubGift {
		t.Errorf("Expected %q, got %q", NoticeSubGift, kind)
	}
}

func TestParseNoticeKind_Unknown(t *testing.T) {
	if _, ok := ParseNoticeKind("charitydonation"); ok {
		t.Error("Expected unknown notice kind to be rejected")
	}
}

func TestMessageEvent_HasBadge(t *testing.T) {
	ev := &MessageEvent{Badges: []string{"subscriber", "Moderator"}}

	if !ev.HasBadge("moderator") {
		t.Error("Expected badge lookup to ignore case")
	}
	if ev.HasBadge("vip") {
		t.Error("Expected vip badge to be absent")
	}
}

func TestChannel_MaxLength_Default(t *testing.T) {
	ch := &Channel{}
	if ch.MaxLength() != DefaultMaxMessageLength {
		t.Errorf("Expected default %d, got %d", DefaultMaxMessageLength, ch.MaxLength())
	}

	ch.MaxMessageLength = 200
	if ch.MaxLength() != 200 {
		t.Errorf("Expected 200, got %d", ch.MaxLength())
	}
}

func TestRoleSet_Names(t *testing.T) {
	set := RoleSet{Normal: true, Subscriber: true, BotOwner: true}
	names := set.Names()

	want := []string{"normal", "subscriber", "bot_owner"}
	if len(names) != len(want) {
		t.Fatalf("Expected %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("Expected %q at %d, got %q", want[i], i, names[i])
		}
	}
	if !set.Privileged() {
		t.Error("Expected bot owner to be privileged")
	}
}
