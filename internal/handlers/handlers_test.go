package handlers_test

import (
	"strings"
	"testing"

	"attendance-bot/internal/attendance"
	"attendance-bot/internal/bot"
	"attendance-bot/internal/directory"
	"attendance-bot/internal/handlers"
	"attendance-bot/internal/storetest"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// fakeAPI records outbound messages instead of talking to Telegram.
type fakeAPI struct {
	sent      []tgbotapi.MessageConfig
	callbacks int
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, m)
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.callbacks++
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) textsTo(chatID int64) []string {
	var out []string
	for _, m := range f.sent {
		if m.ChatID == chatID {
			out = append(out, m.Text)
		}
	}
	return out
}

const ownerID = int64(1000)

func newTestBot() (*bot.Bot, *storetest.Store, *fakeAPI) {
	store := storetest.New()
	api := &fakeAPI{}
	b := bot.New(api)
	dir := directory.NewService(store, ownerID, b)
	b.Directory = dir
	b.Attendance = attendance.NewService(store, dir)
	return b, store, api
}

func privateChat(id int64) *tgbotapi.Chat {
	return &tgbotapi.Chat{ID: id, Type: "private"}
}

func groupChat(id int64) *tgbotapi.Chat {
	return &tgbotapi.Chat{ID: id, Type: "supergroup"}
}

func textMessage(chat *tgbotapi.Chat, from *tgbotapi.User, text string) *tgbotapi.Message {
	return &tgbotapi.Message{Chat: chat, From: from, Text: text}
}

func commandMessage(chat *tgbotapi.Chat, from *tgbotapi.User, text string) *tgbotapi.Message {
	cmd := strings.Fields(text)[0]
	return &tgbotapi.Message{
		Chat: chat,
		From: from,
		Text: text,
		Entities: []tgbotapi.MessageEntity{
			{Type: "bot_command", Offset: 0, Length: len(cmd)},
		},
	}
}

func deliver(b *bot.Bot, message *tgbotapi.Message) {
	handlers.HandleUpdate(b, tgbotapi.Update{Message: message})
}

func TestUnknownUserInPrivateChatGetsOptInPrompt(t *testing.T) {
	b, store, api := newTestBot()
	teacher := &tgbotapi.User{ID: 42, UserName: "teacher"}

	deliver(b, textMessage(privateChat(42), teacher, "hello"))

	if len(api.sent) != 1 {
		t.Fatalf("got %d messages, want 1", len(api.sent))
	}
	if api.sent[0].Text != attendance.MsgOptInPrompt {
		t.Errorf("reply = %q, want the opt-in prompt", api.sent[0].Text)
	}
	if api.sent[0].ReplyMarkup == nil {
		t.Error("opt-in prompt should carry the Yes/No keyboard")
	}
	if len(store.Reports) != 0 {
		t.Error("no report must be persisted")
	}
}

func TestUnallowedGroupChatIsGated(t *testing.T) {
	b, store, api := newTestBot()
	teacher := &tgbotapi.User{ID: 42, UserName: "teacher"}

	deliver(b, textMessage(groupChat(-500), teacher, "7-b 20/19 bobur kelmadi"))

	if len(api.sent) != 1 {
		t.Fatalf("got %d messages, want 1", len(api.sent))
	}
	if !strings.Contains(api.sent[0].Text, "/allowed_chat") {
		t.Errorf("refusal %q should point at the provisioning command", api.sent[0].Text)
	}
	if len(store.Reports) != 0 {
		t.Error("gated chat must not reach the intake pipeline")
	}
}

func TestSubmissionInAllowedGroupChat(t *testing.T) {
	b, store, api := newTestBot()
	teacher := &tgbotapi.User{ID: 42, UserName: "teacher"}

	if err := store.AllowChat(-500, ownerID); err != nil {
		t.Fatal(err)
	}
	if err := store.SetUserAllowed(42, true); err != nil {
		t.Fatal(err)
	}
	group, err := b.Directory.CreateGroup("5-a", ownerID)
	if err != nil {
		t.Fatal(err)
	}
	if err := b.Directory.AddMember(42, group); err != nil {
		t.Fatal(err)
	}

	deliver(b, textMessage(groupChat(-500), teacher, "5-a 30/28 olim, dilnoza kelmadi"))

	if len(store.Reports) != 1 {
		t.Fatalf("got %d reports, want 1 (sent: %v)", len(store.Reports), api.textsTo(-500))
	}
	if got := store.Absentees[store.Reports[0].ID]; len(got) != 2 {
		t.Fatalf("absent children = %v, want 2", got)
	}
	confirmation := api.sent[len(api.sent)-1].Text
	for _, want := range []string{"28/30", "olim", "dilnoza"} {
		if !strings.Contains(confirmation, want) {
			t.Errorf("confirmation %q missing %q", confirmation, want)
		}
	}
}

func TestOwnerAllowsChatFromInsideIt(t *testing.T) {
	b, store, api := newTestBot()
	owner := &tgbotapi.User{ID: ownerID, UserName: "boss"}
	teacher := &tgbotapi.User{ID: 42, UserName: "teacher"}

	deliver(b, commandMessage(groupChat(-500), owner, "/allowed_chat"))

	if !store.Chats[-500] {
		t.Fatal("chat not added to the allow list")
	}

	// The gate must now pass for regular traffic.
	api.sent = nil
	deliver(b, textMessage(groupChat(-500), teacher, "hello"))
	if len(api.sent) != 1 || strings.Contains(api.sent[0].Text, "not allowed") {
		t.Errorf("gate still refuses after provisioning: %v", api.textsTo(-500))
	}
}

func TestNonOwnerAdminCommandRefused(t *testing.T) {
	b, store, api := newTestBot()
	teacher := &tgbotapi.User{ID: 42, UserName: "teacher"}

	deliver(b, commandMessage(privateChat(42), teacher, "/add_group 7-b"))

	if len(store.Groups) != 0 {
		t.Error("refused command must not mutate")
	}
	if len(api.sent) != 1 || !strings.Contains(api.sent[0].Text, "owner") {
		t.Errorf("expected the owner-only refusal, got %v", api.textsTo(42))
	}
}

func TestOptInCallbackThenOwnerApproval(t *testing.T) {
	b, store, api := newTestBot()
	teacher := &tgbotapi.User{ID: 42, UserName: "teacher"}
	owner := &tgbotapi.User{ID: ownerID, UserName: "boss"}

	handlers.HandleCallbackQuery(b, &tgbotapi.CallbackQuery{
		ID:      "cb1",
		From:    teacher,
		Message: textMessage(privateChat(42), teacher, "prompt"),
		Data:    bot.CallbackOptInYes,
	})

	if api.callbacks != 1 {
		t.Error("callback query not acknowledged")
	}
	if len(store.Requests) != 1 {
		t.Fatalf("got %d requests, want 1", len(store.Requests))
	}
	ownerTexts := api.textsTo(ownerID)
	if len(ownerTexts) != 1 || !strings.Contains(ownerTexts[0], "/allow 42") {
		t.Errorf("owner notification missing: %v", ownerTexts)
	}

	deliver(b, commandMessage(privateChat(ownerID), owner, "/allow 42"))

	if u := store.Users[42]; u == nil || !u.IsAllowed {
		t.Error("approval did not set is_allowed")
	}
	if store.Requests[0].Status != "approved" {
		t.Errorf("request status = %q, want approved", store.Requests[0].Status)
	}
	targetTexts := api.textsTo(42)
	if len(targetTexts) == 0 || !strings.Contains(targetTexts[len(targetTexts)-1], "Access granted") {
		t.Errorf("approved user not notified: %v", targetTexts)
	}
}

func TestDuplicateOptInCallback(t *testing.T) {
	b, store, _ := newTestBot()
	teacher := &tgbotapi.User{ID: 42, UserName: "teacher"}
	cb := func() *tgbotapi.CallbackQuery {
		return &tgbotapi.CallbackQuery{
			ID:      "cb",
			From:    teacher,
			Message: textMessage(privateChat(42), teacher, "prompt"),
			Data:    bot.CallbackOptInYes,
		}
	}

	handlers.HandleCallbackQuery(b, cb())
	handlers.HandleCallbackQuery(b, cb())

	if len(store.Requests) != 1 {
		t.Errorf("duplicate opt-in created %d requests, want 1", len(store.Requests))
	}
}

func TestAllowedChatTwoStepCapture(t *testing.T) {
	b, store, api := newTestBot()
	owner := &tgbotapi.User{ID: ownerID, UserName: "boss"}

	deliver(b, commandMessage(privateChat(ownerID), owner, "/allowed_chat"))
	if len(api.sent) != 1 || !strings.Contains(api.sent[0].Text, "chat id") {
		t.Fatalf("expected the chat id prompt, got %v", api.textsTo(ownerID))
	}

	deliver(b, textMessage(privateChat(ownerID), owner, "-1001234567890"))
	if !store.Chats[-1001234567890] {
		t.Error("supplied chat id not allowed")
	}
}

func TestAllowedChatCaptureRejectsNonInteger(t *testing.T) {
	b, store, api := newTestBot()
	owner := &tgbotapi.User{ID: ownerID, UserName: "boss"}

	deliver(b, commandMessage(privateChat(ownerID), owner, "/allowed_chat"))
	api.sent = nil

	deliver(b, textMessage(privateChat(ownerID), owner, "next tuesday"))
	if len(store.Chats) != 0 {
		t.Error("invalid input must not allow a chat")
	}
	if len(api.sent) != 1 || !strings.Contains(api.sent[0].Text, "/allowed_chat") {
		t.Errorf("expected the reissue instruction, got %v", api.textsTo(ownerID))
	}

	// The flag is consumed either way: the next text goes to the pipeline.
	api.sent = nil
	deliver(b, textMessage(privateChat(ownerID), owner, "next tuesday"))
	if len(api.sent) != 1 || api.sent[0].Text != attendance.MsgUsage {
		t.Errorf("flag not cleared after one input: %v", api.textsTo(ownerID))
	}
}

func TestAddToGroupUnknownHandle(t *testing.T) {
	b, store, api := newTestBot()
	owner := &tgbotapi.User{ID: ownerID, UserName: "boss"}

	if _, err := b.Directory.CreateGroup("7-b", ownerID); err != nil {
		t.Fatal(err)
	}

	deliver(b, commandMessage(privateChat(ownerID), owner, "/add_to_group @ghost 7-b"))

	if len(store.Members) != 0 {
		t.Error("unresolved handle must not create a membership")
	}
	if len(api.sent) != 1 || !strings.Contains(api.sent[0].Text, "User not found") {
		t.Errorf("expected the user-not-found notice, got %v", api.textsTo(ownerID))
	}
}

func TestAddToGroupByHandle(t *testing.T) {
	b, store, api := newTestBot()
	owner := &tgbotapi.User{ID: ownerID, UserName: "boss"}
	teacher := &tgbotapi.User{ID: 42, UserName: "teacher"}

	deliver(b, commandMessage(privateChat(42), teacher, "/start"))
	if _, err := b.Directory.CreateGroup("7-b", ownerID); err != nil {
		t.Fatal(err)
	}

	deliver(b, commandMessage(privateChat(ownerID), owner, "/add_to_group @teacher 7-b"))

	group, err := b.Directory.FindGroup("7b")
	if err != nil {
		t.Fatal(err)
	}
	member, err := store.IsGroupMember(42, group.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !member {
		t.Errorf("membership missing after handle resolution: %v", api.textsTo(ownerID))
	}
}

func TestGroupsListedAlphabetically(t *testing.T) {
	b, _, api := newTestBot()
	owner := &tgbotapi.User{ID: ownerID, UserName: "boss"}

	for _, cmd := range []string{"/add_group 7-b", "/add_group 5-a"} {
		deliver(b, commandMessage(privateChat(ownerID), owner, cmd))
	}
	api.sent = nil

	deliver(b, commandMessage(privateChat(ownerID), owner, "/groups"))
	if len(api.sent) != 1 || api.sent[0].Text != "Groups: 5-a, 7-b" {
		t.Errorf("got %v, want alphabetical listing", api.textsTo(ownerID))
	}
}

func TestStartForAllowedUser(t *testing.T) {
	b, store, api := newTestBot()
	teacher := &tgbotapi.User{ID: 42, UserName: "teacher"}

	if err := store.SetUserAllowed(42, true); err != nil {
		t.Fatal(err)
	}

	deliver(b, commandMessage(privateChat(42), teacher, "/start"))
	if len(api.sent) != 1 || !strings.Contains(api.sent[0].Text, "kelmadi") {
		t.Errorf("allowed user should see the usage welcome, got %v", api.textsTo(42))
	}
	if api.sent[0].ReplyMarkup != nil {
		t.Error("allowed user must not get the opt-in keyboard")
	}
}
