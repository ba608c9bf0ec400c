package domain

// Role is a sender classification used for rule permissions
type Role int

const (
	RoleNormal Role = iota
	RoleSubscriber
	RoleVIP
	RoleModerator
	RoleBroadcaster
	RoleBotAdmin
	RoleBotOwner
)

var roleNames = [...]string{"normal", "subscriber", "vip", "moderator", "broadcaster", "bot_admin", "bot_owner"}

func (r Role) String() string {
	if r < 0 || int(r) >= len(roleNames) {
		return "unknown"
	}
	return roleNames[r]
}

// RoleSet holds the roles a sender has for one event
type RoleSet struct {
	Normal      bool
	Subscriber  bool
	VIP         bool
	Moderator   bool
	Broadcaster bool
	BotAdmin    bool
	BotOwner    bool
}

// Has reports whether the set contains the role
func (s RoleSet) Has(r Role) bool {
	switch r {
	case RoleNormal:
		return s.Normal
	case RoleSubscriber:
		return s.Subscriber
	case RoleVIP:
		return s.VIP
	case RoleModerator:
		return s.Moderator
	case RoleBroadcaster:
		return s.Broadcaster
	case RoleBotAdmin:
		return s.BotAdmin
	case RoleBotOwner:
		return s.BotOwner
	}
	return false
}

// Privileged reports whether the sender bypasses cooldowns
func (s RoleSet) Privileged() bool {
	return s.BotOwner || s.BotAdmin
}

// Names lists the roles in the set, lowest first
func (s RoleSet) Names() []string {
	var names []string
	for r := RoleNormal; r <= RoleBotOwner; r++ {
		if s.Has(r) {
			names = append(names, r.String())
		}
	}
	return names
}

// Allows reports whether the permissions admit the role
func (p Permissions) Allows(r Role) bool {
	switch r {
	case RoleNormal:
		return p.Normal
	case RoleSubscriber:
		return p.Subscriber
	case RoleVIP:
		return p.VIP
	case RoleModerator:
		return p.Moderator
	case RoleBroadcaster:
		return p.Broadcaster
	case RoleBotAdmin:
		return p.BotAdmin
	case RoleBotOwner:
		return p.BotOwner
	}
	return false
}
