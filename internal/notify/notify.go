// Package notify is the fan-out side of the matching protocol: it turns
// state transitions into push payloads addressed to per-user channels and
// hands them to a delivery backend. Delivery is best-effort; callers log
// failures and never roll back state because of them.
package notify

import (
	"context"
	"fmt"
	"time"
)

const (
	TypeMatch         = "match"
	TypeRemoveMatch   = "removeMatch"
	TypeMessage       = "message"
	TypeNewLikes      = "newLikes"
	TypeAccountBanned = "accountBanned"
	TypeReloadProfile = "reloadProfile"
)

// Payload is the discriminated push body. Type selects which of the
// optional fields are meaningful.
type Payload struct {
	Type  string `json:"type"`
	Alert string `json:"alert,omitempty"`
	Badge string `json:"badge,omitempty"`
	Sound string `json:"sound,omitempty"`
	Title string `json:"title,omitempty"`

	MatchID uint64 `json:"matchId,omitempty"`
	UserID  uint64 `json:"userId,omitempty"`

	Message *MessagePayload `json:"message,omitempty"`

	// PushTime asks the delivery worker to defer sending, used by the
	// daily like-digest job.
	PushTime *time.Time `json:"pushTime,omitempty"`
}

// MessagePayload carries enough of a chat message for the client to
// render the conversation without a fetch.
type MessagePayload struct {
	ID        uint64 `json:"id"`
	MatchID   uint64 `json:"matchId"`
	Text      string `json:"text,omitempty"`
	Sender    uint64 `json:"sender"`
	CreatedAt int64  `json:"createdAt"`
}

// Notifier dispatches a payload to a set of channels. Implementations
// must be safe for concurrent use. Errors are DeliveryErrors from the
// caller's point of view: log and move on.
type Notifier interface {
	Send(ctx context.Context, channels []string, payload Payload) error
}

// Channel returns the per-user push channel name.
func Channel(userID uint64) string {
	return fmt.Sprintf("user_%d", userID)
}

// Channels maps user ids to channel names.
func Channels(userIDs ...uint64) []string {
	out := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		out = append(out, Channel(id))
	}
	return out
}

// NewMatchPayload is sent once per mutual transition, to the side that
// did not trigger it.
func NewMatchPayload(matchID uint64) Payload {
	return Payload{
		Type:    TypeMatch,
		Alert:   "You have a new match",
		Badge:   "Increment",
		Sound:   "cheering.caf",
		Title:   "New Match!",
		MatchID: matchID,
	}
}

// RemoveMatchPayload tells a client to drop a match from its list.
func RemoveMatchPayload(matchID uint64) Payload {
	return Payload{Type: TypeRemoveMatch, MatchID: matchID}
}

// RemoveMatchForUserPayload is the ban-cascade variant which identifies
// the removed counterpart instead of a single match id.
func RemoveMatchForUserPayload(userID uint64) Payload {
	return Payload{Type: TypeRemoveMatch, UserID: userID}
}

// MessagePreview renders the notification line for a chat message.
func MessagePreview(senderName, text, image, audio string) string {
	switch {
	case text != "":
		return senderName + ": " + text
	case image != "":
		return senderName + " sent an image"
	case audio != "":
		return senderName + " sent an audio message"
	}
	return senderName
}

// NewMessagePayload is sent to every chat participant except the sender.
func NewMessagePayload(alert string, msg MessagePayload) Payload {
	return Payload{
		Type:    TypeMessage,
		Alert:   alert,
		Badge:   "Increment",
		Sound:   "cheering.caf",
		Message: &msg,
	}
}

// NewLikesPayload is the daily digest sent by jobs.NewLikeNotifications.
func NewLikesPayload(pushTime time.Time) Payload {
	return Payload{
		Type:     TypeNewLikes,
		Alert:    "You have new likes!",
		Badge:    "Increment",
		Sound:    "cheering.caf",
		Title:    "New Likes!",
		PushTime: &pushTime,
	}
}

func AccountBannedPayload() Payload {
	return Payload{Type: TypeAccountBanned}
}

func ReloadProfilePayload() Payload {
	return Payload{Type: TypeReloadProfile}
}
