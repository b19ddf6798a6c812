package database

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"attendance-bot/internal/models"
)

const uniqueViolation = "23505"

// User operations
func (db *DB) GetUser(telegramUserID int64) (*models.User, error) {
	var user models.User

	err := db.QueryRow(`
		SELECT telegram_user_id, username, is_allowed, is_owner, created_at, updated_at
		FROM users
		WHERE telegram_user_id = $1
	`, telegramUserID).Scan(
		&user.TelegramUserID, &user.Username, &user.IsAllowed,
		&user.IsOwner, &user.CreatedAt, &user.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &user, nil
}

func (db *DB) GetUserByUsername(username string) (*models.User, error) {
	var user models.User

	err := db.QueryRow(`
		SELECT telegram_user_id, username, is_allowed, is_owner, created_at, updated_at
		FROM users
		WHERE username = $1
	`, username).Scan(
		&user.TelegramUserID, &user.Username, &user.IsAllowed,
		&user.IsOwner, &user.CreatedAt, &user.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &user, nil
}

// CreateUser inserts a new user row. Existing rows are left untouched so
// repeat contact never resets is_allowed or is_owner.
func (db *DB) CreateUser(user *models.User) error {
	_, err := db.Exec(`
		INSERT INTO users (telegram_user_id, username, is_allowed, is_owner)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (telegram_user_id) DO NOTHING
	`, user.TelegramUserID, user.Username, user.IsAllowed, user.IsOwner)

	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// SetUserAllowed upserts the allowance flag for a user, creating the row if
// the user has never talked to the bot.
func (db *DB) SetUserAllowed(telegramUserID int64, allowed bool) error {
	_, err := db.Exec(`
		INSERT INTO users (telegram_user_id, username, is_allowed, is_owner)
		VALUES ($1, '', $2, FALSE)
		ON CONFLICT (telegram_user_id) DO UPDATE
		SET is_allowed = EXCLUDED.is_allowed,
		    updated_at = CURRENT_TIMESTAMP
	`, telegramUserID, allowed)

	return err
}

func (db *DB) FindOwner() (*models.User, error) {
	var user models.User

	err := db.QueryRow(`
		SELECT telegram_user_id, username, is_allowed, is_owner, created_at, updated_at
		FROM users
		WHERE is_owner = TRUE
		LIMIT 1
	`).Scan(
		&user.TelegramUserID, &user.Username, &user.IsAllowed,
		&user.IsOwner, &user.CreatedAt, &user.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &user, nil
}

// Group operations
func (db *DB) CreateGroup(name, canonicalName string, createdByUserID int64) (*models.Group, error) {
	var group models.Group

	err := db.QueryRow(`
		INSERT INTO groups (name, canonical_name, created_by_user_id)
		VALUES ($1, $2, $3)
		RETURNING id, name, canonical_name, created_by_user_id, created_at
	`, name, canonicalName, createdByUserID).Scan(
		&group.ID, &group.Name, &group.CanonicalName,
		&group.CreatedByUserID, &group.CreatedAt,
	)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return nil, models.ErrGroupExists
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create group: %w", err)
	}

	return &group, nil
}

func (db *DB) GetGroupByCanonicalName(canonicalName string) (*models.Group, error) {
	var group models.Group

	err := db.QueryRow(`
		SELECT id, name, canonical_name, created_by_user_id, created_at
		FROM groups
		WHERE canonical_name = $1
	`, canonicalName).Scan(
		&group.ID, &group.Name, &group.CanonicalName,
		&group.CreatedByUserID, &group.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &group, nil
}

func (db *DB) ListGroups() ([]models.Group, error) {
	rows, err := db.Query(`
		SELECT id, name, canonical_name, created_by_user_id, created_at
		FROM groups
		ORDER BY name
	`)

	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []models.Group
	for rows.Next() {
		var g models.Group
		err := rows.Scan(&g.ID, &g.Name, &g.CanonicalName, &g.CreatedByUserID, &g.CreatedAt)
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}

	return groups, rows.Err()
}

// Membership operations
func (db *DB) AddGroupMember(telegramUserID, groupID int64) error {
	_, err := db.Exec(`
		INSERT INTO group_members (telegram_user_id, group_id)
		VALUES ($1, $2)
		ON CONFLICT (telegram_user_id, group_id) DO NOTHING
	`, telegramUserID, groupID)

	return err
}

func (db *DB) IsGroupMember(telegramUserID, groupID int64) (bool, error) {
	var exists bool
	err := db.QueryRow(`
		SELECT EXISTS(SELECT 1 FROM group_members WHERE telegram_user_id = $1 AND group_id = $2)
	`, telegramUserID, groupID).Scan(&exists)

	return exists, err
}

// Allowed chat operations
func (db *DB) IsChatAllowed(telegramChatID int64) (bool, error) {
	var exists bool
	err := db.QueryRow(`
		SELECT EXISTS(SELECT 1 FROM allowed_chats WHERE telegram_chat_id = $1)
	`, telegramChatID).Scan(&exists)

	return exists, err
}

func (db *DB) AllowChat(telegramChatID, addedByUserID int64) error {
	_, err := db.Exec(`
		INSERT INTO allowed_chats (telegram_chat_id, added_by_user_id)
		VALUES ($1, $2)
		ON CONFLICT (telegram_chat_id) DO NOTHING
	`, telegramChatID, addedByUserID)

	return err
}

// Access request operations
func (db *DB) GetPendingRequest(telegramUserID int64) (*models.AccessRequest, error) {
	var req models.AccessRequest

	err := db.QueryRow(`
		SELECT id, telegram_user_id, username, status, created_at, updated_at
		FROM access_requests
		WHERE telegram_user_id = $1 AND status = $2
		LIMIT 1
	`, telegramUserID, models.RequestPending).Scan(
		&req.ID, &req.TelegramUserID, &req.Username,
		&req.Status, &req.CreatedAt, &req.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &req, nil
}

func (db *DB) CreateAccessRequest(telegramUserID int64, username string) error {
	_, err := db.Exec(`
		INSERT INTO access_requests (telegram_user_id, username, status)
		VALUES ($1, $2, $3)
	`, telegramUserID, username, models.RequestPending)

	if err != nil {
		return fmt.Errorf("failed to create access request: %w", err)
	}

	return nil
}

// ResolvePendingRequest moves a user's pending request to the given status.
// A user with no pending request is a no-op, not an error.
func (db *DB) ResolvePendingRequest(telegramUserID int64, status models.RequestStatus) error {
	_, err := db.Exec(`
		UPDATE access_requests
		SET status = $1,
		    updated_at = CURRENT_TIMESTAMP
		WHERE telegram_user_id = $2 AND status = $3
	`, status, telegramUserID, models.RequestPending)

	return err
}

// Attendance operations
func (db *DB) InsertReport(report *models.AttendanceReport) (int64, error) {
	var id int64

	err := db.QueryRow(`
		INSERT INTO attendance (report_date, group_name, total_students, present_students, created_by_user_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, report.ReportDate, report.GroupName, report.TotalStudents,
		report.PresentStudents, report.CreatedByUserID).Scan(&id)

	if err != nil {
		return 0, err
	}

	return id, nil
}

func (db *DB) InsertAbsentStudents(attendanceID int64, names []string) error {
	for _, name := range names {
		_, err := db.Exec(`
			INSERT INTO absent_students (attendance_id, student_name)
			VALUES ($1, $2)
		`, attendanceID, name)
		if err != nil {
			return err
		}
	}

	return nil
}

func (db *DB) ListReports() ([]models.AttendanceReport, error) {
	rows, err := db.Query(`
		SELECT id, report_date, group_name, total_students, present_students, created_by_user_id, created_at
		FROM attendance
		ORDER BY created_at DESC
	`)

	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reports []models.AttendanceReport
	for rows.Next() {
		var r models.AttendanceReport
		err := rows.Scan(
			&r.ID, &r.ReportDate, &r.GroupName, &r.TotalStudents,
			&r.PresentStudents, &r.CreatedByUserID, &r.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		reports = append(reports, r)
	}

	return reports, rows.Err()
}

// AbsentStudentsByReportIDs fetches absent-name rows for a set of reports in
// one round trip, grouped by report id.
func (db *DB) AbsentStudentsByReportIDs(ids []int64) (map[int64][]string, error) {
	if len(ids) == 0 {
		return map[int64][]string{}, nil
	}

	rows, err := db.Query(`
		SELECT attendance_id, student_name
		FROM absent_students
		WHERE attendance_id = ANY($1)
		ORDER BY id
	`, pq.Array(ids))

	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byReport := make(map[int64][]string)
	for rows.Next() {
		var attendanceID int64
		var name string
		if err := rows.Scan(&attendanceID, &name); err != nil {
			return nil, err
		}
		byReport[attendanceID] = append(byReport[attendanceID], name)
	}

	return byReport, rows.Err()
}
