package handlers

import (
	"fmt"
	"strconv"
	"strings"

	"attendance-bot/internal/attendance"
	"attendance-bot/internal/bot"
	"attendance-bot/internal/directory"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const (
	msgChatNotAllowed = "This chat is not allowed. The owner can enable it with /allowed_chat."
	msgUnknownCommand = "Unknown command. Use /start."
	msgChatIDInvalid  = "The chat id must be a number (e.g. -1001234567890). Run /allowed_chat again."
	msgWelcome        = "Welcome to the attendance bot.\n" + attendance.MsgUsage
)

// HandleUpdate routes one inbound update. Each update runs in its own
// goroutine; a panic here must never take the process down.
func HandleUpdate(b *bot.Bot, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("panic while handling update", zap.Any("panic", r))
		}
	}()

	switch {
	case update.Message != nil:
		handleMessage(b, update.Message)
	case update.CallbackQuery != nil:
		HandleCallbackQuery(b, update.CallbackQuery)
	}
}

func handleMessage(b *bot.Bot, message *tgbotapi.Message) {
	if message.From == nil {
		return
	}

	// Multi-party chats are gated on the allow list. The provisioning
	// command itself must pass, or no chat could ever be enabled.
	if !message.Chat.IsPrivate() && message.Command() != "allowed_chat" {
		allowed, err := b.Directory.IsChatAllowed(message.Chat.ID)
		if err != nil {
			zap.L().Error("chat gate check failed",
				zap.Int64("chat_id", message.Chat.ID), zap.Error(err))
			return
		}
		if !allowed {
			b.SendMessage(message.Chat.ID, msgChatNotAllowed, nil)
			return
		}
	}

	if message.IsCommand() {
		handleCommand(b, message)
		return
	}
	if message.Text != "" {
		HandleText(b, message)
	}
}

func handleCommand(b *bot.Bot, message *tgbotapi.Message) {
	switch message.Command() {
	case "start":
		HandleStart(b, message)
	case "allow":
		HandleAllow(b, message)
	case "reject":
		HandleReject(b, message)
	case "add_group":
		HandleAddGroup(b, message)
	case "add_to_group":
		HandleAddToGroup(b, message)
	case "allowed_chat":
		HandleAllowedChat(b, message)
	case "groups":
		HandleGroups(b, message)
	case "list":
		HandleList(b, message)
	case "add":
		text := strings.TrimSpace(message.CommandArguments())
		if text == "" {
			b.SendMessage(message.Chat.ID, "Usage: /add "+attendance.MsgUsage, nil)
			return
		}
		submitAttendance(b, message, text)
	default:
		if message.Chat.IsPrivate() {
			b.SendMessage(message.Chat.ID, msgUnknownCommand, nil)
		}
	}
}

func HandleStart(b *bot.Bot, message *tgbotapi.Message) {
	from := message.From
	chatID := message.Chat.ID

	user, err := b.Directory.EnsureUser(from.ID, from.UserName)
	if err != nil {
		zap.L().Error("failed to ensure user",
			zap.Int64("user_id", from.ID), zap.Error(err))
		b.SendMessage(chatID, "Error: "+err.Error(), nil)
		return
	}

	if user.IsAllowed {
		b.SendMessage(chatID, msgWelcome, nil)
		return
	}

	pending, err := b.Directory.HasPendingRequest(from.ID)
	if err != nil {
		b.SendMessage(chatID, "Error: "+err.Error(), nil)
		return
	}
	if pending {
		b.SendMessage(chatID, directory.MsgRequestPending, nil)
		return
	}

	prompt := "Would you like to use the attendance bot?"
	if from.UserName != "" {
		prompt = fmt.Sprintf("Would you like to use the attendance bot, @%s?", from.UserName)
	}
	b.SendMessage(chatID, prompt, b.OptInKeyboard())
}

// HandleText processes free text: either the chat id an owner was asked to
// supply, or an attendance report.
func HandleText(b *bot.Bot, message *tgbotapi.Message) {
	if message.Chat.IsPrivate() && b.Sessions.TakeAwaitingChatID(message.From.ID) {
		handleChatIDInput(b, message)
		return
	}
	submitAttendance(b, message, message.Text)
}

func handleChatIDInput(b *bot.Bot, message *tgbotapi.Message) {
	chatID, err := strconv.ParseInt(strings.TrimSpace(message.Text), 10, 64)
	if err != nil {
		b.SendMessage(message.Chat.ID, msgChatIDInvalid, nil)
		return
	}

	if err := b.Directory.AllowChat(chatID, message.From.ID); err != nil {
		b.SendMessage(message.Chat.ID, "Error: "+err.Error(), nil)
		return
	}
	b.SendMessage(message.Chat.ID,
		fmt.Sprintf("Chat allowed (ID: %d). The bot now works there.", chatID), nil)
}

func submitAttendance(b *bot.Bot, message *tgbotapi.Message, text string) {
	res, err := b.Attendance.Submit(message.From.ID, message.From.UserName, text)
	if err != nil {
		zap.L().Error("attendance submission failed",
			zap.Int64("user_id", message.From.ID), zap.Error(err))
		b.SendMessage(message.Chat.ID, "Error: "+err.Error(), nil)
		return
	}

	if res.PromptOptIn {
		b.SendMessage(message.Chat.ID, res.Reply, b.OptInKeyboard())
		return
	}
	b.SendMessage(message.Chat.ID, res.Reply, nil)
}

func HandleList(b *bot.Bot, message *tgbotapi.Message) {
	msgs, err := b.Attendance.ListAll(message.From.ID, message.From.UserName)
	if err != nil {
		zap.L().Error("failed to list attendance",
			zap.Int64("user_id", message.From.ID), zap.Error(err))
		b.SendMessage(message.Chat.ID, "Error: "+err.Error(), nil)
		return
	}

	for _, msg := range msgs {
		b.SendMessage(message.Chat.ID, msg, nil)
	}
}

func HandleCallbackQuery(b *bot.Bot, callback *tgbotapi.CallbackQuery) {
	chatID := callback.From.ID
	if callback.Message != nil {
		chatID = callback.Message.Chat.ID
	}

	switch callback.Data {
	case bot.CallbackOptInYes:
		b.AnswerCallbackQuery(callback.ID, "")
		reply, err := b.Directory.OptIn(callback.From.ID, callback.From.UserName)
		if err != nil {
			zap.L().Error("opt-in failed",
				zap.Int64("user_id", callback.From.ID), zap.Error(err))
			b.SendMessage(chatID, "Error: "+err.Error(), nil)
			return
		}
		b.SendMessage(chatID, reply, nil)
	case bot.CallbackOptInNo:
		b.AnswerCallbackQuery(callback.ID, "")
		b.SendMessage(chatID, directory.MsgOptOut, nil)
	}
}
