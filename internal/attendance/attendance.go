// Package attendance validates, persists and renders attendance reports.
package attendance

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"attendance-bot/internal/directory"
	"attendance-bot/internal/models"
	"attendance-bot/internal/parser"
)

// Telegram caps messages at 4096 characters; stay under it with room for
// markup the transport may add.
const maxMessageLen = 4000

const (
	MsgUsage = "Attendance format: <group> <total>/<present> <name(s)> kelmadi\n" +
		"Example: " + parser.UsageExample
	MsgOptInPrompt   = "To start using the bot, press \"Yes\" below."
	MsgListNoAccess  = "You need access to view the attendance list."
	MsgListEmpty     = "No attendance records yet."
	listHeader       = "\U0001F4CB Attendance:\n\n"
	reportDateFormat = "02.01.2006"
)

// Store is the persistence boundary for reports and their absent-student
// child rows.
type Store interface {
	InsertReport(report *models.AttendanceReport) (int64, error)
	InsertAbsentStudents(attendanceID int64, names []string) error
	ListReports() ([]models.AttendanceReport, error)
	AbsentStudentsByReportIDs(ids []int64) (map[int64][]string, error)
}

// Service orchestrates parser, directory and store for one report.
type Service struct {
	store Store
	dir   *directory.Service
	now   func() time.Time
}

func NewService(store Store, dir *directory.Service) *Service {
	return &Service{store: store, dir: dir, now: time.Now}
}

// Result is the outcome of a submission: the reply to send, and whether the
// caller should attach the opt-in keyboard to it.
type Result struct {
	Reply       string
	PromptOptIn bool
}

// Submit runs one attendance report through the full pipeline. Store errors
// during persistence are surfaced to the sender verbatim; a failure on the
// absent-student insert leaves the report row in place (no rollback).
func (s *Service) Submit(senderID int64, username, text string) (Result, error) {
	user, err := s.dir.EnsureUser(senderID, username)
	if err != nil {
		return Result{}, err
	}

	if !user.IsAllowed {
		pending, err := s.dir.HasPendingRequest(senderID)
		if err != nil {
			return Result{}, err
		}
		if pending {
			return Result{Reply: s.dir.RemindPending(senderID, username)}, nil
		}
		return Result{Reply: MsgOptInPrompt, PromptOptIn: true}, nil
	}

	report, ok := parser.Parse(text)
	if !ok {
		return Result{Reply: MsgUsage}, nil
	}

	canAccess, err := s.dir.CanAccessGroup(senderID, report.Group)
	if err != nil {
		return Result{}, err
	}
	if !canAccess {
		return Result{Reply: fmt.Sprintf(
			"You are not allowed to report attendance for %q.\n\n"+
				"Owner: run /add_group %s first (if missing), then /add_to_group %d %s.",
			report.Group, report.Group, senderID, report.Group,
		)}, nil
	}

	row := &models.AttendanceReport{
		ReportDate:      s.now(),
		GroupName:       report.Group,
		TotalStudents:   report.Total,
		PresentStudents: report.Present,
		CreatedByUserID: senderID,
	}
	reportID, err := s.store.InsertReport(row)
	if err != nil {
		zap.L().Error("failed to insert attendance report",
			zap.Int64("user_id", senderID), zap.Error(err))
		return Result{Reply: "Report not saved: " + err.Error()}, nil
	}

	if err := s.store.InsertAbsentStudents(reportID, report.Absent); err != nil {
		zap.L().Error("failed to insert absent students",
			zap.Int64("report_id", reportID), zap.Error(err))
		return Result{Reply: "Absentees not saved: " + err.Error()}, nil
	}

	return Result{Reply: fmt.Sprintf(
		"✅ Saved.\n%s | %s | %d/%d\nAbsent: %s",
		report.Group, row.ReportDate.Format(reportDateFormat),
		report.Present, report.Total, strings.Join(report.Absent, ", "),
	)}, nil
}

// ListAll renders every stored report, newest first, as one line per report.
// The output is split into as few messages as fit the length ceiling; a
// report line is never split across messages.
func (s *Service) ListAll(requesterID int64, username string) ([]string, error) {
	user, err := s.dir.EnsureUser(requesterID, username)
	if err != nil {
		return nil, err
	}
	if !user.IsAllowed {
		return []string{MsgListNoAccess}, nil
	}

	reports, err := s.store.ListReports()
	if err != nil {
		return nil, err
	}
	if len(reports) == 0 {
		return []string{MsgListEmpty}, nil
	}

	ids := make([]int64, len(reports))
	for i, r := range reports {
		ids[i] = r.ID
	}
	absentees, err := s.store.AbsentStudentsByReportIDs(ids)
	if err != nil {
		return nil, err
	}

	lines := make([]string, len(reports))
	for i, r := range reports {
		line := fmt.Sprintf("%s | %s | %d/%d",
			r.ReportDate.Format(reportDateFormat), r.GroupName,
			r.PresentStudents, r.TotalStudents)
		if names := absentees[r.ID]; len(names) > 0 {
			line += " | Absent: " + strings.Join(names, ", ")
		}
		lines[i] = line
	}

	return chunkLines(listHeader, lines), nil
}

func chunkLines(header string, lines []string) []string {
	full := header + strings.Join(lines, "\n")
	if len(full) <= maxMessageLen {
		return []string{full}
	}

	var messages []string
	cur := header
	for _, line := range lines {
		if len(cur)+len(line)+1 > maxMessageLen {
			messages = append(messages, strings.TrimSpace(cur))
			cur = line + "\n"
			continue
		}
		cur += line + "\n"
	}
	if strings.TrimSpace(cur) != "" {
		messages = append(messages, strings.TrimSpace(cur))
	}

	return messages
}
