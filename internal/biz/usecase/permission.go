package usecase

import (
	"github.com/icecreamdb/chat-responder/internal/biz/domain"
)

// PermissionEvaluator derives sender roles and checks them against rule permissions
type PermissionEvaluator struct {
	owners map[string]struct{}
	admins map[string]struct{}
}

// NewPermissionEvaluator creates an evaluator for the configured owner and admin ids
func NewPermissionEvaluator(ownerIDs, adminIDs []string) *PermissionEvaluator {
	p := &PermissionEvaluator{
		owners: make(map[string]struct{}, len(ownerIDs)),
		admins: make(map[string]struct{}, len(adminIDs)),
	}
	for _, id := range ownerIDs {
		if id != "" {
			p.owners[id] = struct{}{}
		}
	}
	for _, id := range adminIDs {
		if id != "" {
			p.admins[id] = struct{}{}
		}
	}
	return p
}

// IsOwner reports whether the user is a bot owner
func (p *PermissionEvaluator) IsOwner(userID string) bool {
	_, ok := p.owners[userID]
	return ok
}

// IsAdmin reports whether the user is a bot admin
func (p *PermissionEvaluator) IsAdmin(userID string) bool {
	_, ok := p.admins[userID]
	return ok
}

// Roles derives the sender's roles for one message
func (p *PermissionEvaluator) Roles(ev *domain.MessageEvent) domain.RoleSet {
	roles := domain.RoleSet{
		BotOwner:    p.IsOwner(ev.UserID),
		BotAdmin:    p.IsAdmin(ev.UserID),
		Broadcaster: (ev.RoomID != "" && ev.RoomID == ev.UserID) || ev.HasBadge("broadcaster"),
		Moderator:   ev.HasBadge("moderator"),
		VIP:         ev.HasBadge("vip"),
		Subscriber:  ev.HasBadge("subscriber") || ev.HasBadge("founder"),
	}
	roles.Normal = !roles.Broadcaster && !roles.Moderator && !roles.VIP
	return roles
}

// Allowed reports whether any role the sender has is permitted by the rule
func Allowed(roles domain.RoleSet, perms domain.Permissions) bool {
	for r := domain.RoleNormal; r <= domain.RoleBotOwner; r++ {
		if roles.Has(r) && perms.Allows(r) {
			return true
		}
	}
	return false
}

// FirstPermitted returns the first enabled rule in candidate order that the
// sender may use, or nil
func FirstPermitted(rules []*domain.Rule, roles domain.RoleSet) *domain.Rule {
	for _, r := range rules {
		if r != nil && r.Enabled && Allowed(roles, r.Permissions) {
			return r
		}
	}
	return nil
}
