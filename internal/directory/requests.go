package directory

import (
	"errors"
	"fmt"

	"attendance-bot/internal/models"
)

// Replies and notifications for the access-request workflow.
const (
	MsgRequestPending = "You have already requested access. Please wait for the owner to approve it."
	MsgRequestSent    = "Your request has been sent. You can use the bot once the owner approves it."
	MsgOptOut         = "Alright, maybe another time."
	MsgAccessGranted  = "Access granted. You can now submit attendance (the owner still has to add you to your class group)."
	MsgAccessRejected = "Your access request was rejected."
)

func requestorLabel(telegramUserID int64, username string) string {
	if username != "" {
		return "@" + username
	}
	return fmt.Sprintf("user %d", telegramUserID)
}

// HasPendingRequest reports whether the user has an unresolved request.
func (s *Service) HasPendingRequest(telegramUserID int64) (bool, error) {
	_, err := s.store.GetPendingRequest(telegramUserID)
	if errors.Is(err, models.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// OptIn records the user's explicit "yes" and notifies the owner. A second
// opt-in while one is pending changes nothing and returns the wait notice.
func (s *Service) OptIn(telegramUserID int64, username string) (string, error) {
	pending, err := s.HasPendingRequest(telegramUserID)
	if err != nil {
		return "", err
	}
	if pending {
		return MsgRequestPending, nil
	}

	if err := s.store.CreateAccessRequest(telegramUserID, username); err != nil {
		return "", err
	}

	s.notifier.Notify(s.OwnerID(), fmt.Sprintf(
		"Access request:\nUser: %s (ID: %d)\nApprove: /allow %d\nReject: /reject %d",
		requestorLabel(telegramUserID, username), telegramUserID, telegramUserID, telegramUserID,
	))

	return MsgRequestSent, nil
}

// RemindPending is the reply for a user who tries to submit attendance while
// their request is still pending. The owner gets nudged again.
func (s *Service) RemindPending(telegramUserID int64, username string) string {
	s.notifier.Notify(s.OwnerID(), fmt.Sprintf(
		"%s (ID: %d) tried to submit attendance but has no access yet.\nApprove: /allow %d",
		requestorLabel(telegramUserID, username), telegramUserID, telegramUserID,
	))

	return MsgRequestPending
}

// ApproveRequest grants usage permission and resolves the user's pending
// request. A missing pending row is a silent no-op on the request table.
func (s *Service) ApproveRequest(targetUserID int64) error {
	if err := s.store.SetUserAllowed(targetUserID, true); err != nil {
		return err
	}
	if err := s.store.ResolvePendingRequest(targetUserID, models.RequestApproved); err != nil {
		return err
	}

	s.notifier.Notify(targetUserID, MsgAccessGranted)
	return nil
}

// RejectRequest resolves the user's pending request without touching their
// allowance flag.
func (s *Service) RejectRequest(targetUserID int64) error {
	if err := s.store.ResolvePendingRequest(targetUserID, models.RequestRejected); err != nil {
		return err
	}

	s.notifier.Notify(targetUserID, MsgAccessRejected)
	return nil
}
