package attendance

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"attendance-bot/internal/directory"
	"attendance-bot/internal/storetest"
)

type silentNotifier struct {
	sent []int64
}

func (n *silentNotifier) Notify(chatID int64, text string) {
	n.sent = append(n.sent, chatID)
}

const ownerID = int64(1000)

func newTestPipeline() (*Service, *storetest.Store, *silentNotifier) {
	store := storetest.New()
	notifier := &silentNotifier{}
	dir := directory.NewService(store, ownerID, notifier)
	svc := NewService(store, dir)
	svc.now = func() time.Time {
		return time.Date(2024, 3, 11, 9, 30, 0, 0, time.UTC)
	}
	return svc, store, notifier
}

func allowUser(t *testing.T, store *storetest.Store, id int64) {
	t.Helper()
	if err := store.SetUserAllowed(id, true); err != nil {
		t.Fatal(err)
	}
}

func TestSubmitUnknownUserGetsOptInPrompt(t *testing.T) {
	svc, store, _ := newTestPipeline()

	res, err := svc.Submit(42, "teacher", "hello")
	if err != nil {
		t.Fatal(err)
	}
	if !res.PromptOptIn {
		t.Error("expected the opt-in prompt for an unknown user")
	}
	if len(store.Reports) != 0 {
		t.Error("no report must be persisted for an unauthorized user")
	}
}

func TestSubmitPendingUserGetsReminder(t *testing.T) {
	svc, store, notifier := newTestPipeline()

	if err := store.CreateAccessRequest(42, "teacher"); err != nil {
		t.Fatal(err)
	}

	res, err := svc.Submit(42, "teacher", "7-b 20/19 bobur kelmadi")
	if err != nil {
		t.Fatal(err)
	}
	if res.PromptOptIn {
		t.Error("pending user must not be re-prompted with the keyboard")
	}
	if res.Reply != directory.MsgRequestPending {
		t.Errorf("reply = %q, want the pending reminder", res.Reply)
	}
	if len(notifier.sent) != 1 || notifier.sent[0] != ownerID {
		t.Errorf("owner not re-notified: %v", notifier.sent)
	}
}

func TestSubmitSuccess(t *testing.T) {
	svc, store, _ := newTestPipeline()
	allowUser(t, store, 42)

	group, err := svc.dir.CreateGroup("5-a", ownerID)
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.dir.AddMember(42, group); err != nil {
		t.Fatal(err)
	}

	res, err := svc.Submit(42, "teacher", "5-a 30/28 olim, dilnoza kelmadi")
	if err != nil {
		t.Fatal(err)
	}
	if len(store.Reports) != 1 {
		t.Fatalf("got %d reports, want 1 (reply: %q)", len(store.Reports), res.Reply)
	}
	r := store.Reports[0]
	if r.GroupName != "5-a" || r.TotalStudents != 30 || r.PresentStudents != 28 {
		t.Errorf("persisted report = %+v", r)
	}
	if got := store.Absentees[r.ID]; len(got) != 2 {
		t.Fatalf("absent children = %v, want 2 names", got)
	}
	for _, want := range []string{"28/30", "olim", "dilnoza", "11.03.2024"} {
		if !strings.Contains(res.Reply, want) {
			t.Errorf("confirmation %q missing %q", res.Reply, want)
		}
	}
}

func TestSubmitOwnerBypassesMembership(t *testing.T) {
	svc, store, _ := newTestPipeline()
	allowUser(t, store, ownerID)

	res, err := svc.Submit(ownerID, "boss", "7-b 20/19 bobur kelmadi")
	if err != nil {
		t.Fatal(err)
	}
	if len(store.Reports) != 1 {
		t.Fatalf("owner submission not persisted: %q", res.Reply)
	}
}

func TestSubmitParseFailureShowsUsage(t *testing.T) {
	svc, store, _ := newTestPipeline()
	allowUser(t, store, 42)

	res, err := svc.Submit(42, "teacher", "7-b 19/20 bobur kelmadi")
	if err != nil {
		t.Fatal(err)
	}
	if res.Reply != MsgUsage {
		t.Errorf("reply = %q, want usage text", res.Reply)
	}
	if len(store.Reports) != 0 {
		t.Error("invalid report must not be persisted")
	}
}

func TestSubmitWithoutMembershipNamesRemediation(t *testing.T) {
	svc, store, _ := newTestPipeline()
	allowUser(t, store, 42)

	res, err := svc.Submit(42, "teacher", "7-b 20/19 bobur kelmadi")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"/add_group 7-b", "/add_to_group 42 7-b"} {
		if !strings.Contains(res.Reply, want) {
			t.Errorf("remediation %q missing %q", res.Reply, want)
		}
	}
}

func TestSubmitSurfacesStoreErrors(t *testing.T) {
	svc, store, _ := newTestPipeline()
	allowUser(t, store, ownerID)

	store.InsertReportErr = errors.New("connection reset")
	res, err := svc.Submit(ownerID, "boss", "7-b 20/19 bobur kelmadi")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(res.Reply, "connection reset") {
		t.Errorf("store error not surfaced verbatim: %q", res.Reply)
	}
}

func TestSubmitAbsentInsertFailureLeavesReport(t *testing.T) {
	svc, store, _ := newTestPipeline()
	allowUser(t, store, ownerID)

	store.InsertAbsentErr = errors.New("disk full")
	res, err := svc.Submit(ownerID, "boss", "7-b 20/19 bobur kelmadi")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(res.Reply, "disk full") {
		t.Errorf("child insert error not surfaced: %q", res.Reply)
	}
	if len(store.Reports) != 1 {
		t.Error("report row should remain after child insert failure")
	}
}

func TestListAllRequiresAccess(t *testing.T) {
	svc, _, _ := newTestPipeline()

	msgs, err := svc.ListAll(42, "teacher")
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 || msgs[0] != MsgListNoAccess {
		t.Errorf("got %v, want the no-access notice", msgs)
	}
}

func TestListAllEmpty(t *testing.T) {
	svc, store, _ := newTestPipeline()
	allowUser(t, store, 42)

	msgs, err := svc.ListAll(42, "teacher")
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 || msgs[0] != MsgListEmpty {
		t.Errorf("got %v, want the empty notice", msgs)
	}
}

func TestListAllRendersNewestFirst(t *testing.T) {
	svc, store, _ := newTestPipeline()
	allowUser(t, store, ownerID)

	for _, text := range []string{
		"7-b 20/19 bobur kelmadi",
		"5-a 30/28 olim, dilnoza kelmadi",
	} {
		if _, err := svc.Submit(ownerID, "boss", text); err != nil {
			t.Fatal(err)
		}
	}

	msgs, err := svc.ListAll(ownerID, "boss")
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	first := strings.Index(msgs[0], "5-a")
	second := strings.Index(msgs[0], "7-b")
	if first == -1 || second == -1 || first > second {
		t.Errorf("reports not newest-first:\n%s", msgs[0])
	}
	if !strings.Contains(msgs[0], "Absent: olim, dilnoza") {
		t.Errorf("absent names missing:\n%s", msgs[0])
	}
}

func TestChunkLinesNeverSplitsALine(t *testing.T) {
	var lines []string
	for i := 0; i < 300; i++ {
		lines = append(lines, fmt.Sprintf("11.03.2024 | 7-b | 19/20 | Absent: %s", strings.Repeat("x", 80)))
	}

	msgs := chunkLines(listHeader, lines)
	if len(msgs) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(msgs))
	}

	var intact int
	for _, msg := range msgs {
		if len(msg) > maxMessageLen {
			t.Errorf("chunk exceeds ceiling: %d > %d", len(msg), maxMessageLen)
		}
		for _, line := range strings.Split(msg, "\n") {
			if line == lines[0] {
				intact++
			}
		}
	}
	if intact != len(lines) {
		t.Errorf("rendered %d intact lines, want %d", intact, len(lines))
	}
}

func TestChunkLinesMinimalCount(t *testing.T) {
	line := strings.Repeat("a", 999)
	lines := []string{line, line, line, line, line, line, line, line}

	msgs := chunkLines(listHeader, lines)
	for _, msg := range msgs {
		if len(msg) > maxMessageLen {
			t.Fatalf("chunk exceeds ceiling: %d", len(msg))
		}
	}
	// Eight 999-char lines plus separators cannot fit in two 4000-char
	// messages; greedy packing fits them in three.
	if len(msgs) != 3 {
		t.Errorf("got %d chunks, want 3", len(msgs))
	}
}
