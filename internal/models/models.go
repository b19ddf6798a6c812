package models

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by store lookups when no row matches.
	ErrNotFound = errors.New("not found")
	// ErrGroupExists is returned when a group's canonical name is already taken.
	ErrGroupExists = errors.New("group already exists")
)

type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
)

type User struct {
	TelegramUserID int64     `db:"telegram_user_id"`
	Username       string    `db:"username"`
	IsAllowed      bool      `db:"is_allowed"`
	IsOwner        bool      `db:"is_owner"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

type Group struct {
	ID              int64     `db:"id"`
	Name            string    `db:"name"`
	CanonicalName   string    `db:"canonical_name"`
	CreatedByUserID int64     `db:"created_by_user_id"`
	CreatedAt       time.Time `db:"created_at"`
}

type GroupMember struct {
	ID             int64     `db:"id"`
	TelegramUserID int64     `db:"telegram_user_id"`
	GroupID        int64     `db:"group_id"`
	CreatedAt      time.Time `db:"created_at"`
}

type AllowedChat struct {
	TelegramChatID int64     `db:"telegram_chat_id"`
	AddedByUserID  int64     `db:"added_by_user_id"`
	CreatedAt      time.Time `db:"created_at"`
}

// AccessRequest records a user's ask for general usage permission. At most
// one pending request per user is expected; the check happens before insert.
type AccessRequest struct {
	ID             int64         `db:"id"`
	TelegramUserID int64         `db:"telegram_user_id"`
	Username       string        `db:"username"`
	Status         RequestStatus `db:"status"`
	CreatedAt      time.Time     `db:"created_at"`
	UpdatedAt      time.Time     `db:"updated_at"`
}

// AttendanceReport is immutable once persisted; absent students live in
// child rows keyed by the report id.
type AttendanceReport struct {
	ID              int64     `db:"id"`
	ReportDate      time.Time `db:"report_date"`
	GroupName       string    `db:"group_name"`
	TotalStudents   int       `db:"total_students"`
	PresentStudents int       `db:"present_students"`
	CreatedByUserID int64     `db:"created_by_user_id"`
	CreatedAt       time.Time `db:"created_at"`
}

type AbsentStudent struct {
	ID           int64  `db:"id"`
	AttendanceID int64  `db:"attendance_id"`
	StudentName  string `db:"student_name"`
}
