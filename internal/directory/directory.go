// Package directory maintains identity and permission facts about users,
// groups and chats: who owns the bot, who may use it, which chats it serves
// and who may report for which group.
package directory

import (
	"errors"
	"regexp"
	"strings"

	"attendance-bot/internal/models"
)

// Store is the persistence boundary the directory relies on. It is satisfied
// by *database.DB and by in-memory fakes in tests.
type Store interface {
	GetUser(telegramUserID int64) (*models.User, error)
	GetUserByUsername(username string) (*models.User, error)
	CreateUser(user *models.User) error
	SetUserAllowed(telegramUserID int64, allowed bool) error
	FindOwner() (*models.User, error)

	CreateGroup(name, canonicalName string, createdByUserID int64) (*models.Group, error)
	GetGroupByCanonicalName(canonicalName string) (*models.Group, error)
	ListGroups() ([]models.Group, error)
	AddGroupMember(telegramUserID, groupID int64) error
	IsGroupMember(telegramUserID, groupID int64) (bool, error)

	IsChatAllowed(telegramChatID int64) (bool, error)
	AllowChat(telegramChatID, addedByUserID int64) error

	GetPendingRequest(telegramUserID int64) (*models.AccessRequest, error)
	CreateAccessRequest(telegramUserID int64, username string) error
	ResolvePendingRequest(telegramUserID int64, status models.RequestStatus) error
}

// Notifier delivers out-of-band messages to users. Delivery is best effort:
// implementations log failures and never surface them, so callers may treat
// every Notify as having succeeded.
type Notifier interface {
	Notify(chatID int64, text string)
}

// Service answers permission questions and applies directory mutations. The
// configured owner id is consulted only here; nothing else in the program
// compares user ids against configuration.
type Service struct {
	store    Store
	ownerID  int64
	notifier Notifier
}

func NewService(store Store, ownerID int64, notifier Notifier) *Service {
	return &Service{store: store, ownerID: ownerID, notifier: notifier}
}

var groupTokenRe = regexp.MustCompile(`^(\d+)-?([A-Za-z])$`)

// CanonicalGroupKey folds the two accepted spellings of a grade+section
// label into one key, so "7-b", "7b" and "7-B" all resolve to "7b". Names
// that are not grade+section labels are returned unchanged.
func CanonicalGroupKey(name string) string {
	m := groupTokenRe.FindStringSubmatch(name)
	if m == nil {
		return name
	}
	return m[1] + strings.ToLower(m[2])
}

// EnsureUser returns the stored record for the user, creating one on first
// contact. The owner's record is born allowed; everyone else is born without
// permission. An existing record is returned unchanged.
func (s *Service) EnsureUser(telegramUserID int64, username string) (*models.User, error) {
	user, err := s.store.GetUser(telegramUserID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	isOwner := telegramUserID == s.ownerID
	user = &models.User{
		TelegramUserID: telegramUserID,
		Username:       username,
		IsAllowed:      isOwner,
		IsOwner:        isOwner,
	}
	if err := s.store.CreateUser(user); err != nil {
		return nil, err
	}

	return user, nil
}

// IsOwner reports whether the user may run provisioning commands. The
// configured owner id counts even before that user's record exists.
func (s *Service) IsOwner(telegramUserID int64) (bool, error) {
	if telegramUserID == s.ownerID {
		return true, nil
	}

	user, err := s.store.GetUser(telegramUserID)
	if errors.Is(err, models.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return user.IsOwner, nil
}

// OwnerID resolves the chat id owner notifications go to, preferring a
// stored owner record over the configured fallback.
func (s *Service) OwnerID() int64 {
	owner, err := s.store.FindOwner()
	if err != nil {
		return s.ownerID
	}
	return owner.TelegramUserID
}

// FindUserByUsername resolves a handle to a known user. Only users seen
// before can be resolved; the transport offers no handle lookup by itself.
func (s *Service) FindUserByUsername(username string) (*models.User, error) {
	return s.store.GetUserByUsername(strings.TrimPrefix(username, "@"))
}

func (s *Service) IsChatAllowed(telegramChatID int64) (bool, error) {
	return s.store.IsChatAllowed(telegramChatID)
}

func (s *Service) AllowChat(telegramChatID, addedByUserID int64) error {
	return s.store.AllowChat(telegramChatID, addedByUserID)
}

func (s *Service) AllowUser(telegramUserID int64) error {
	return s.store.SetUserAllowed(telegramUserID, true)
}

func (s *Service) CreateGroup(name string, createdByUserID int64) (*models.Group, error) {
	return s.store.CreateGroup(name, CanonicalGroupKey(name), createdByUserID)
}

func (s *Service) FindGroup(name string) (*models.Group, error) {
	return s.store.GetGroupByCanonicalName(CanonicalGroupKey(name))
}

func (s *Service) ListGroups() ([]models.Group, error) {
	return s.store.ListGroups()
}

// AddMember links a user to a group. The user row is created if missing,
// without granting any permission.
func (s *Service) AddMember(telegramUserID int64, group *models.Group) error {
	user := &models.User{TelegramUserID: telegramUserID}
	if err := s.store.CreateUser(user); err != nil {
		return err
	}
	return s.store.AddGroupMember(telegramUserID, group.ID)
}

// CanAccessGroup reports whether the user may report attendance for the
// named group. The owner bypasses membership entirely.
func (s *Service) CanAccessGroup(telegramUserID int64, groupName string) (bool, error) {
	owner, err := s.IsOwner(telegramUserID)
	if err != nil {
		return false, err
	}
	if owner {
		return true, nil
	}

	group, err := s.store.GetGroupByCanonicalName(CanonicalGroupKey(groupName))
	if errors.Is(err, models.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return s.store.IsGroupMember(telegramUserID, group.ID)
}
