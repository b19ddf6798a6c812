// Package storetest provides an in-memory store for package tests, with the
// same conflict and not-found semantics as the Postgres repository.
package storetest

import (
	"fmt"
	"sort"

	"attendance-bot/internal/models"
)

type Store struct {
	Users     map[int64]*models.User
	Groups    []*models.Group
	Members   map[string]bool
	Chats     map[int64]bool
	Requests  []*models.AccessRequest
	Reports   []*models.AttendanceReport
	Absentees map[int64][]string

	// Forced failures for exercising error paths.
	InsertReportErr error
	InsertAbsentErr error

	nextGroupID  int64
	nextReportID int64
	nextReqID    int64
}

func New() *Store {
	return &Store{
		Users:     make(map[int64]*models.User),
		Members:   make(map[string]bool),
		Chats:     make(map[int64]bool),
		Absentees: make(map[int64][]string),
	}
}

func memberKey(userID, groupID int64) string {
	return fmt.Sprintf("%d:%d", userID, groupID)
}

func (s *Store) GetUser(id int64) (*models.User, error) {
	u, ok := s.Users[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (s *Store) GetUserByUsername(username string) (*models.User, error) {
	for _, u := range s.Users {
		if u.Username == username {
			copied := *u
			return &copied, nil
		}
	}
	return nil, models.ErrNotFound
}

func (s *Store) CreateUser(user *models.User) error {
	if _, ok := s.Users[user.TelegramUserID]; ok {
		return nil
	}
	copied := *user
	s.Users[user.TelegramUserID] = &copied
	return nil
}

func (s *Store) SetUserAllowed(id int64, allowed bool) error {
	if u, ok := s.Users[id]; ok {
		u.IsAllowed = allowed
		return nil
	}
	s.Users[id] = &models.User{TelegramUserID: id, IsAllowed: allowed}
	return nil
}

func (s *Store) FindOwner() (*models.User, error) {
	for _, u := range s.Users {
		if u.IsOwner {
			copied := *u
			return &copied, nil
		}
	}
	return nil, models.ErrNotFound
}

func (s *Store) CreateGroup(name, canonicalName string, createdBy int64) (*models.Group, error) {
	for _, g := range s.Groups {
		if g.CanonicalName == canonicalName {
			return nil, models.ErrGroupExists
		}
	}
	s.nextGroupID++
	g := &models.Group{
		ID:              s.nextGroupID,
		Name:            name,
		CanonicalName:   canonicalName,
		CreatedByUserID: createdBy,
	}
	s.Groups = append(s.Groups, g)
	return g, nil
}

func (s *Store) GetGroupByCanonicalName(canonicalName string) (*models.Group, error) {
	for _, g := range s.Groups {
		if g.CanonicalName == canonicalName {
			return g, nil
		}
	}
	return nil, models.ErrNotFound
}

func (s *Store) ListGroups() ([]models.Group, error) {
	out := make([]models.Group, 0, len(s.Groups))
	for _, g := range s.Groups {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) AddGroupMember(userID, groupID int64) error {
	s.Members[memberKey(userID, groupID)] = true
	return nil
}

func (s *Store) IsGroupMember(userID, groupID int64) (bool, error) {
	return s.Members[memberKey(userID, groupID)], nil
}

func (s *Store) IsChatAllowed(chatID int64) (bool, error) {
	return s.Chats[chatID], nil
}

func (s *Store) AllowChat(chatID, addedBy int64) error {
	s.Chats[chatID] = true
	return nil
}

func (s *Store) GetPendingRequest(userID int64) (*models.AccessRequest, error) {
	for _, r := range s.Requests {
		if r.TelegramUserID == userID && r.Status == models.RequestPending {
			return r, nil
		}
	}
	return nil, models.ErrNotFound
}

func (s *Store) CreateAccessRequest(userID int64, username string) error {
	s.nextReqID++
	s.Requests = append(s.Requests, &models.AccessRequest{
		ID:             s.nextReqID,
		TelegramUserID: userID,
		Username:       username,
		Status:         models.RequestPending,
	})
	return nil
}

func (s *Store) ResolvePendingRequest(userID int64, status models.RequestStatus) error {
	for _, r := range s.Requests {
		if r.TelegramUserID == userID && r.Status == models.RequestPending {
			r.Status = status
		}
	}
	return nil
}

func (s *Store) InsertReport(report *models.AttendanceReport) (int64, error) {
	if s.InsertReportErr != nil {
		return 0, s.InsertReportErr
	}
	s.nextReportID++
	copied := *report
	copied.ID = s.nextReportID
	s.Reports = append(s.Reports, &copied)
	return copied.ID, nil
}

func (s *Store) InsertAbsentStudents(attendanceID int64, names []string) error {
	if s.InsertAbsentErr != nil {
		return s.InsertAbsentErr
	}
	s.Absentees[attendanceID] = append(s.Absentees[attendanceID], names...)
	return nil
}

// ListReports returns reports newest-first, mirroring the SQL ordering.
func (s *Store) ListReports() ([]models.AttendanceReport, error) {
	out := make([]models.AttendanceReport, 0, len(s.Reports))
	for i := len(s.Reports) - 1; i >= 0; i-- {
		out = append(out, *s.Reports[i])
	}
	return out, nil
}

func (s *Store) AbsentStudentsByReportIDs(ids []int64) (map[int64][]string, error) {
	out := make(map[int64][]string)
	for _, id := range ids {
		if names, ok := s.Absentees[id]; ok {
			out[id] = names
		}
	}
	return out, nil
}
