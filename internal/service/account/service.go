// Package account implements unmatching, moderation and the account
// teardown procedure (ban and delete) with its cascades over matches,
// match lists and notifications.
package account

import (
	"context"
	"encoding/json"
	stderrors "errors"

	"gorm.io/gorm"

	"github.com/oggyb/matchd/internal/app"
	"github.com/oggyb/matchd/internal/db"
	svcErr "github.com/oggyb/matchd/internal/errors"
	"github.com/oggyb/matchd/internal/notify"
	"github.com/oggyb/matchd/internal/repository"
)

type Service struct {
	appCtx   *app.AppContext
	users    *repository.UserRepository
	profiles *repository.ProfileRepository
	matches  *repository.MatchRepository
	messages *repository.ChatRepository
	reports  *repository.ReportRepository
}

func NewService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:   appCtx,
		users:    repository.NewUserRepository(appCtx.DB),
		profiles: repository.NewProfileRepository(appCtx.DB),
		matches:  repository.NewMatchRepository(appCtx.DB),
		messages: repository.NewChatRepository(appCtx.DB),
		reports:  repository.NewReportRepository(appCtx.DB),
	}
}

// RemoveMatch unmatches the caller from one mutual match: state moves to
// deleted, the id leaves both users' match lists and the counterpart gets
// a removeMatch push.
func (s *Service) RemoveMatch(ctx context.Context, userID, matchID uint64) error {
	if matchID == 0 {
		return svcErr.Validation("match id was not provided")
	}

	match, err := s.matches.GetByID(ctx, matchID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return svcErr.NotFound("match does not exist")
		}
		return err
	}
	otherID, ok := match.OtherUser(userID)
	if !ok {
		return svcErr.Authorization("user does not belong to match")
	}

	match.State = db.StateDeleted
	if err := s.matches.Save(ctx, match); err != nil {
		return err
	}
	s.appCtx.Metrics.MatchesRemoved.Inc()

	for _, uid := range []uint64{userID, otherID} {
		if err := s.users.RemoveMatch(ctx, uid, matchID); err != nil {
			s.appCtx.Logger.Error("failed to remove match from user list",
				"user", uid, "match", matchID, "err", err)
		}
	}

	s.sendRemoveMatch(ctx, notify.RemoveMatchPayload(matchID), otherID)
	return nil
}

// DeleteAccount runs the teardown procedure for the caller's own account.
func (s *Service) DeleteAccount(ctx context.Context, userID uint64) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return svcErr.NotFound("user does not exist")
		}
		return err
	}
	return s.deleteUser(ctx, user)
}

// DeleteUser is the admin form of account deletion.
func (s *Service) DeleteUser(ctx context.Context, adminID, userID uint64) error {
	if err := s.requireAdmin(ctx, adminID); err != nil {
		return err
	}
	if userID == 0 {
		return svcErr.Validation("user id was not provided")
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return svcErr.NotFound("user does not exist")
		}
		return err
	}
	return s.deleteUser(ctx, user)
}

// deleteUser removes a user while keeping every mutual match consistent.
//
// Order matters: the status flip comes first so the swipe resolver and
// chat gate stop authorizing against the account mid-teardown. Push
// failures never block destruction; storage failures surface so the
// operation can be retried rather than leave a half-deleted user.
func (s *Service) deleteUser(ctx context.Context, user *db.User) error {
	userID := user.ID

	if err := s.users.SetStatus(ctx, userID, db.StatusDeleting); err != nil {
		return err
	}

	// Archive before anything is destroyed.
	tombstone := &db.DeletedUser{UID: userID}
	if raw, err := json.Marshal(user); err == nil {
		tombstone.User = string(raw)
	} else {
		s.appCtx.Logger.Error("could not serialize user for archive", "user", userID, "err", err)
	}
	profile, err := s.profiles.GetByUserID(ctx, userID)
	if err != nil {
		return err
	}
	if profile != nil {
		if raw, err := json.Marshal(profile); err == nil {
			tombstone.Profile = string(raw)
		} else {
			s.appCtx.Logger.Error("could not serialize profile for archive", "user", userID, "err", err)
		}
	}
	if err := s.users.Archive(ctx, tombstone); err != nil {
		return err
	}

	// Mutual matches: soft-delete, fix the counterpart's list, notify.
	mutual, err := s.matches.MutualForUser(ctx, userID)
	if err != nil {
		return err
	}
	for i := range mutual {
		match := &mutual[i]
		otherID, _ := match.OtherUser(userID)

		match.State = db.StateDeleted
		if err := s.matches.Save(ctx, match); err != nil {
			return err
		}
		s.appCtx.Metrics.MatchesRemoved.Inc()

		if err := s.users.RemoveMatch(ctx, otherID, match.ID); err != nil {
			return err
		}

		s.sendRemoveMatch(ctx, notify.RemoveMatchPayload(match.ID), otherID)
	}

	// Pending/rejected matches were never visible to the other side:
	// hard-delete, no notification owed.
	nonMutual, err := s.matches.NonMutualForUser(ctx, userID)
	if err != nil {
		return err
	}
	if len(nonMutual) > 0 {
		ids := make([]uint64, 0, len(nonMutual))
		for _, m := range nonMutual {
			ids = append(ids, m.ID)
		}
		if err := s.messages.DeleteByMatch(ctx, ids); err != nil {
			return err
		}
		if err := s.matches.HardDelete(ctx, ids); err != nil {
			return err
		}
	}

	if err := s.profiles.DeleteByUserID(ctx, userID); err != nil {
		return err
	}

	if err := s.users.HardDelete(ctx, userID); err != nil {
		// A half-deleted user is the worst outcome: flag loudly for the
		// on-call retry path.
		s.appCtx.Logger.Error("ALERT: user deletion left partial state; retry required",
			"user", userID, "err", err)
		return err
	}

	s.appCtx.Logger.Info("account deleted", "user", userID, "mutual_matches", len(mutual))
	return nil
}

// BanUser marks an account banned and cascades: the profile is disabled,
// open reports are closed, every mutual match is torn down with
// removeMatch pushes to the counterparts, and the banned user learns via
// an accountBanned push.
func (s *Service) BanUser(ctx context.Context, adminID, userID uint64) error {
	if err := s.requireAdmin(ctx, adminID); err != nil {
		return err
	}
	if userID == 0 {
		return svcErr.Validation("user id was not provided")
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return svcErr.NotFound("user does not exist")
		}
		return err
	}

	user.Status = db.StatusBanned
	user.Matches = []uint64{}
	if err := s.users.Save(ctx, user); err != nil {
		return err
	}
	if err := s.profiles.SetEnabled(ctx, userID, false); err != nil {
		return err
	}
	if err := s.reports.CloseAllAgainst(ctx, userID, "banned", adminID); err != nil {
		return err
	}

	mutual, err := s.matches.MutualForUser(ctx, userID)
	if err != nil {
		return err
	}
	for i := range mutual {
		match := &mutual[i]
		otherID, _ := match.OtherUser(userID)

		match.State = db.StateDeleted
		if err := s.matches.Save(ctx, match); err != nil {
			return err
		}
		s.appCtx.Metrics.MatchesRemoved.Inc()

		if err := s.users.RemoveMatch(ctx, otherID, match.ID); err != nil {
			return err
		}

		// The ban cascade identifies the removed user so clients can drop
		// every trace at once.
		s.sendRemoveMatch(ctx, notify.RemoveMatchForUserPayload(userID), otherID)
	}

	s.sendPush(ctx, notify.AccountBannedPayload(), userID)

	s.appCtx.Logger.Info("user banned", "user", userID, "by", adminID, "mutual_matches", len(mutual))
	return nil
}

// ReportUser files a moderation report.
func (s *Service) ReportUser(ctx context.Context, reporterID uint64, reportedUser uint64, reportType, reason string) (*db.Report, error) {
	if reportedUser == 0 {
		return nil, svcErr.Validation("reported user id was not provided")
	}
	if reportedUser == reporterID {
		return nil, svcErr.Validation("cannot report yourself")
	}

	report := &db.Report{
		ReportedBy:   reporterID,
		ReportedUser: reportedUser,
		Type:         reportType,
		Reason:       reason,
	}
	if profile, err := s.profiles.GetByUserID(ctx, reportedUser); err == nil && profile != nil {
		report.ProfileID = profile.ID
	}
	if err := s.reports.Create(ctx, report); err != nil {
		return nil, err
	}
	return report, nil
}

// OpenReports lists un-actioned reports for the moderation dashboard.
func (s *Service) OpenReports(ctx context.Context, adminID uint64) ([]db.Report, error) {
	if err := s.requireAdmin(ctx, adminID); err != nil {
		return nil, err
	}
	return s.reports.Open(ctx)
}

// ReportedUserDetails gathers the review context for one reported user:
// every report against them plus their recent messages.
func (s *Service) ReportedUserDetails(ctx context.Context, adminID, reportedUser uint64) ([]db.Report, []db.ChatMessage, error) {
	if err := s.requireAdmin(ctx, adminID); err != nil {
		return nil, nil, err
	}
	reports, err := s.reports.AgainstUser(ctx, reportedUser)
	if err != nil {
		return nil, nil, err
	}
	messages, err := s.messages.RecentBySender(ctx, reportedUser, 50)
	if err != nil {
		return nil, nil, err
	}
	return reports, messages, nil
}

// CloseReport stamps one report with the action taken.
func (s *Service) CloseReport(ctx context.Context, adminID, reportID uint64, action string) error {
	if err := s.requireAdmin(ctx, adminID); err != nil {
		return err
	}
	if reportID == 0 {
		return svcErr.Validation("report id was not provided")
	}

	report, err := s.reports.GetByID(ctx, reportID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return svcErr.NotFound("report does not exist")
		}
		return err
	}
	report.ActionTaken = action
	report.ActionUser = adminID
	return s.reports.Save(ctx, report)
}

// DeletePhoto removes a reported photo from a profile and tells the owner
// to reload.
func (s *Service) DeletePhoto(ctx context.Context, adminID, reportID uint64, photo string) error {
	if err := s.requireAdmin(ctx, adminID); err != nil {
		return err
	}

	report, err := s.reports.GetByID(ctx, reportID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return svcErr.NotFound("report does not exist")
		}
		return err
	}
	profile, err := s.profiles.GetByID(ctx, report.ProfileID)
	if err != nil {
		return err
	}

	kept := profile.Photos[:0]
	for _, p := range profile.Photos {
		if p != photo {
			kept = append(kept, p)
		}
	}
	profile.Photos = kept
	if err := s.profiles.Save(ctx, profile); err != nil {
		return err
	}

	s.sendPush(ctx, notify.ReloadProfilePayload(), report.ReportedUser)
	return nil
}

func (s *Service) requireAdmin(ctx context.Context, adminID uint64) error {
	admin, err := s.users.GetByID(ctx, adminID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return svcErr.Authorization("must be an admin")
		}
		return err
	}
	if !admin.Admin {
		return svcErr.Authorization("must be an admin")
	}
	return nil
}

func (s *Service) sendRemoveMatch(ctx context.Context, payload notify.Payload, recipient uint64) {
	s.sendPush(ctx, payload, recipient)
}

// sendPush is fire-and-forget: failures are logged and counted, never
// propagated.
func (s *Service) sendPush(ctx context.Context, payload notify.Payload, recipient uint64) {
	if err := s.appCtx.Notifier.Send(ctx, notify.Channels(recipient), payload); err != nil {
		s.appCtx.Metrics.PushFailures.Inc()
		s.appCtx.Logger.Error("failed to send push",
			"type", payload.Type, "recipient", recipient, "err", err)
		return
	}
	s.appCtx.Metrics.PushesPublished.WithLabelValues(payload.Type).Inc()
}
