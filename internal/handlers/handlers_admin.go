package handlers

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"attendance-bot/internal/bot"
	"attendance-bot/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const msgOwnerOnly = "Only the owner can run this command."

// requireOwner gates provisioning commands. Non-owners get a fixed refusal
// and no mutation happens.
func requireOwner(b *bot.Bot, message *tgbotapi.Message) bool {
	ok, err := b.Directory.IsOwner(message.From.ID)
	if err != nil {
		zap.L().Error("owner check failed",
			zap.Int64("user_id", message.From.ID), zap.Error(err))
		b.SendMessage(message.Chat.ID, "Error: "+err.Error(), nil)
		return false
	}
	if !ok {
		b.SendMessage(message.Chat.ID, msgOwnerOnly, nil)
		return false
	}
	return true
}

func HandleAllow(b *bot.Bot, message *tgbotapi.Message) {
	if !requireOwner(b, message) {
		return
	}

	arg := strings.TrimSpace(message.CommandArguments())
	targetID, err := strconv.ParseInt(arg, 10, 64)
	if arg == "" || err != nil || targetID <= 0 {
		b.SendMessage(message.Chat.ID, "Usage: /allow <user_id>\nExample: /allow 7739994444", nil)
		return
	}

	if err := b.Directory.ApproveRequest(targetID); err != nil {
		b.SendMessage(message.Chat.ID, "Error: "+err.Error(), nil)
		return
	}
	b.SendMessage(message.Chat.ID, fmt.Sprintf("Access granted: %d", targetID), nil)
}

func HandleReject(b *bot.Bot, message *tgbotapi.Message) {
	if !requireOwner(b, message) {
		return
	}

	arg := strings.TrimSpace(message.CommandArguments())
	targetID, err := strconv.ParseInt(arg, 10, 64)
	if arg == "" || err != nil || targetID <= 0 {
		b.SendMessage(message.Chat.ID, "Usage: /reject <user_id>", nil)
		return
	}

	if err := b.Directory.RejectRequest(targetID); err != nil {
		b.SendMessage(message.Chat.ID, "Error: "+err.Error(), nil)
		return
	}
	b.SendMessage(message.Chat.ID, fmt.Sprintf("Access rejected: %d", targetID), nil)
}

func HandleAddGroup(b *bot.Bot, message *tgbotapi.Message) {
	if !requireOwner(b, message) {
		return
	}

	name := strings.TrimSpace(message.CommandArguments())
	if name == "" {
		b.SendMessage(message.Chat.ID, "Usage: /add_group 7-b", nil)
		return
	}

	group, err := b.Directory.CreateGroup(name, message.From.ID)
	if errors.Is(err, models.ErrGroupExists) {
		b.SendMessage(message.Chat.ID, fmt.Sprintf("%q already exists.", name), nil)
		return
	}
	if err != nil {
		zap.L().Error("failed to create group", zap.String("name", name), zap.Error(err))
		b.SendMessage(message.Chat.ID, "Error: "+err.Error(), nil)
		return
	}
	b.SendMessage(message.Chat.ID, "Group added: "+group.Name, nil)
}

func HandleAddToGroup(b *bot.Bot, message *tgbotapi.Message) {
	if !requireOwner(b, message) {
		return
	}

	parts := strings.Fields(message.CommandArguments())
	if len(parts) < 2 {
		b.SendMessage(message.Chat.ID,
			"Usage: /add_to_group <user_id or @username> <group>\nExample: /add_to_group @teacher 7-b", nil)
		return
	}

	groupName := parts[len(parts)-1]
	userArg := strings.Join(parts[:len(parts)-1], " ")

	targetID, err := strconv.ParseInt(userArg, 10, 64)
	if err != nil {
		target, err := b.Directory.FindUserByUsername(userArg)
		if err != nil {
			b.SendMessage(message.Chat.ID, "User not found. Send a user_id or @username.", nil)
			return
		}
		targetID = target.TelegramUserID
	}

	group, err := b.Directory.FindGroup(groupName)
	if errors.Is(err, models.ErrNotFound) {
		b.SendMessage(message.Chat.ID,
			fmt.Sprintf("%q group not found. Run /add_group %s first.", groupName, groupName), nil)
		return
	}
	if err != nil {
		b.SendMessage(message.Chat.ID, "Error: "+err.Error(), nil)
		return
	}

	if err := b.Directory.AddMember(targetID, group); err != nil {
		zap.L().Error("failed to add group member",
			zap.Int64("user_id", targetID), zap.Int64("group_id", group.ID), zap.Error(err))
		b.SendMessage(message.Chat.ID, "Error: "+err.Error(), nil)
		return
	}
	b.SendMessage(message.Chat.ID, fmt.Sprintf("%d added to %q.", targetID, group.Name), nil)
}

func HandleAllowedChat(b *bot.Bot, message *tgbotapi.Message) {
	if !requireOwner(b, message) {
		return
	}

	// Issued inside a multi-party chat: allow that chat directly.
	if !message.Chat.IsPrivate() {
		if err := b.Directory.AllowChat(message.Chat.ID, message.From.ID); err != nil {
			b.SendMessage(message.Chat.ID, "Error: "+err.Error(), nil)
			return
		}
		b.SendMessage(message.Chat.ID,
			fmt.Sprintf("This chat is now allowed (ID: %d). The bot works here.", message.Chat.ID), nil)
		return
	}

	arg := strings.TrimSpace(message.CommandArguments())
	if chatID, err := strconv.ParseInt(arg, 10, 64); arg != "" && err == nil {
		if err := b.Directory.AllowChat(chatID, message.From.ID); err != nil {
			b.SendMessage(message.Chat.ID, "Error: "+err.Error(), nil)
			return
		}
		b.SendMessage(message.Chat.ID,
			fmt.Sprintf("Chat allowed (ID: %d). The bot now works there.", chatID), nil)
		return
	}

	b.Sessions.SetAwaitingChatID(message.From.ID)
	b.SendMessage(message.Chat.ID,
		"Send the chat id (e.g. -1001234567890). You can get it from @userinfobot.", nil)
}

func HandleGroups(b *bot.Bot, message *tgbotapi.Message) {
	if !requireOwner(b, message) {
		return
	}

	groups, err := b.Directory.ListGroups()
	if err != nil {
		zap.L().Error("failed to list groups", zap.Error(err))
		b.SendMessage(message.Chat.ID, "Error: "+err.Error(), nil)
		return
	}
	if len(groups) == 0 {
		b.SendMessage(message.Chat.ID, "No groups yet. Add one with /add_group 7-b.", nil)
		return
	}

	names := make([]string, len(groups))
	for i, g := range groups {
		names[i] = g.Name
	}
	b.SendMessage(message.Chat.ID, "Groups: "+strings.Join(names, ", "), nil)
}
