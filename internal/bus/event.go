// Package bus holds the inbound event model shared by the transport and
// the message router.
package bus

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	KindPrivateText Kind = "private_text"
	KindGroupText   Kind = "group_text"
)

// Identity is an opaque handle owned by the transport. Equality is
// whatever the transport says it is; nothing here parses it.
type Identity string

// InboundEvent is one delivered message. It is terminal for routing:
// the router produces at most one reply for it and never splits it.
type InboundEvent struct {
	ID         string
	Kind       Kind
	Sender     Identity
	SenderName string
	Room       Identity
	Text       string
	ReceivedAt time.Time
}

func NewInboundEvent(kind Kind, sender Identity, senderName string, room Identity, text string) InboundEvent {
	return InboundEvent{
		ID:         uuid.NewString(),
		Kind:       kind,
		Sender:     sender,
		SenderName: senderName,
		Room:       room,
		Text:       text,
		ReceivedAt: time.Now().UTC(),
	}
}

func (e InboundEvent) Validate() error {
	if strings.TrimSpace(e.ID) == "" {
		return fmt.Errorf("event id is required")
	}
	switch e.Kind {
	case KindPrivateText, KindGroupText:
	default:
		return fmt.Errorf("event kind is invalid: %q", e.Kind)
	}
	if strings.TrimSpace(string(e.Sender)) == "" {
		return fmt.Errorf("event sender is required")
	}
	if e.Kind == KindGroupText && strings.TrimSpace(string(e.Room)) == "" {
		return fmt.Errorf("group event room is required")
	}
	return nil
}

// ConversationKey is the history bucket for the event. Both private and
// group turns key on the acting user, so a user shares one thread across
// both surfaces.
func (e InboundEvent) ConversationKey() string {
	return BuildUserConversationKey(e.Sender)
}

func BuildUserConversationKey(id Identity) string {
	return fmt.Sprintf("wx:%s", strings.TrimSpace(string(id)))
}
