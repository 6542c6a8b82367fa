// Package chat implements the chat admission gate: message creation is
// authorized against the sender's Match record, which must be mutual.
package chat

import (
	"context"
	stderrors "errors"

	"gorm.io/gorm"

	"github.com/oggyb/matchd/internal/app"
	"github.com/oggyb/matchd/internal/db"
	svcErr "github.com/oggyb/matchd/internal/errors"
	"github.com/oggyb/matchd/internal/notify"
	"github.com/oggyb/matchd/internal/repository"
)

const messagesPageSize = 50

type Service struct {
	appCtx   *app.AppContext
	messages *repository.ChatRepository
	matches  *repository.MatchRepository
	profiles *repository.ProfileRepository
}

func NewService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:   appCtx,
		messages: repository.NewChatRepository(appCtx.DB),
		matches:  repository.NewMatchRepository(appCtx.DB),
		profiles: repository.NewProfileRepository(appCtx.DB),
	}
}

// Draft is a message as submitted by a client. Exactly one payload field
// must be set.
type Draft struct {
	MatchID uint64 `json:"matchId"`
	Text    string `json:"text"`
	Image   string `json:"image"`
	Audio   string `json:"audio"`
}

// SendMessage admits and stores one chat message.
//
// The gate: the match must exist, be exactly mutual, and the
// authenticated sender must be one of its two participants. The message
// is stamped with the canonical sender id and both participant ids; a
// client-asserted sender is never trusted. On success every other
// participant is notified with a rendered preview; delivery failure is
// logged and never fails the send.
func (s *Service) SendMessage(ctx context.Context, senderID uint64, draft Draft) (*db.ChatMessage, error) {
	if draft.MatchID == 0 {
		return nil, svcErr.Validation("match id was not provided")
	}
	if err := validatePayload(draft); err != nil {
		return nil, err
	}

	match, err := s.matches.GetByID(ctx, draft.MatchID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, svcErr.Authorization("match does not exist")
		}
		return nil, err
	}
	if _, ok := match.OtherUser(senderID); !ok {
		return nil, svcErr.Authorization("user is not a part of the provided match")
	}
	if match.State != db.StateMutual {
		return nil, svcErr.Authorization("cannot message a non-mutual match")
	}

	senderName := ""
	if profile, err := s.profiles.GetByUserID(ctx, senderID); err == nil && profile != nil {
		senderName = profile.Name
	}

	msg := &db.ChatMessage{
		MatchID:    match.ID,
		Sender:     senderID,
		SenderName: senderName,
		UserIDs:    []uint64{match.UID1, match.UID2},
		Text:       draft.Text,
		Image:      draft.Image,
		Audio:      draft.Audio,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, err
	}
	s.appCtx.Metrics.MessagesSent.Inc()

	s.notifyParticipants(ctx, msg)

	return msg, nil
}

// ResaveMessage re-persists an existing message through a trusted
// maintenance path. Notification is an append-only, first-creation-only
// side effect and is deliberately skipped here.
func (s *Service) ResaveMessage(ctx context.Context, msg *db.ChatMessage) error {
	return s.messages.Save(ctx, msg)
}

// Messages lists a match's messages for one of its participants, newest
// first.
func (s *Service) Messages(ctx context.Context, userID, matchID, beforeID uint64, limit int) ([]db.ChatMessage, error) {
	if matchID == 0 {
		return nil, svcErr.Validation("match id was not provided")
	}
	if limit <= 0 || limit > messagesPageSize {
		limit = messagesPageSize
	}

	match, err := s.matches.GetByID(ctx, matchID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, svcErr.NotFound("match does not exist")
		}
		return nil, err
	}
	if _, ok := match.OtherUser(userID); !ok {
		return nil, svcErr.Authorization("user is not a part of the provided match")
	}

	return s.messages.ListByMatch(ctx, matchID, beforeID, limit)
}

// notifyParticipants pushes the message preview to everyone in the chat
// except the sender. Best-effort.
func (s *Service) notifyParticipants(ctx context.Context, msg *db.ChatMessage) {
	var recipients []uint64
	for _, uid := range msg.UserIDs {
		if uid != msg.Sender {
			recipients = append(recipients, uid)
		}
	}
	if len(recipients) == 0 {
		return
	}

	alert := notify.MessagePreview(msg.SenderName, msg.Text, msg.Image, msg.Audio)
	payload := notify.NewMessagePayload(alert, notify.MessagePayload{
		ID:        msg.ID,
		MatchID:   msg.MatchID,
		Text:      msg.Text,
		Sender:    msg.Sender,
		CreatedAt: msg.CreatedAt.UnixMilli(),
	})

	if err := s.appCtx.Notifier.Send(ctx, notify.Channels(recipients...), payload); err != nil {
		s.appCtx.Metrics.PushFailures.Inc()
		s.appCtx.Logger.Error("failed to send message notification",
			"message", msg.ID, "match", msg.MatchID, "err", err)
		return
	}
	s.appCtx.Metrics.PushesPublished.WithLabelValues(payload.Type).Inc()
}

func validatePayload(draft Draft) error {
	set := 0
	for _, v := range []string{draft.Text, draft.Image, draft.Audio} {
		if v != "" {
			set++
		}
	}
	if set != 1 {
		return svcErr.Validation("exactly one of text, image or audio must be set")
	}
	return nil
}
