package repo

import (
	"context"

	"github.com/icecreamdb/chat-responder/internal/biz/domain"
)

// ChatSender is the outbound side of a chat transport
type ChatSender interface {
	// Send delivers one chat line, as a reply when ReplyToID is set
	Send(ctx context.Context, msg *domain.OutgoingMessage) error
}

// UserResolver confirms that a login belongs to a real chat user
type UserResolver interface {
	// LoginExists reports whether the login is known to the platform
	LoginExists(ctx context.Context, login string) (bool, error)
}
