package bot

import (
	"attendance-bot/internal/attendance"
	"attendance-bot/internal/directory"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Callback tokens for the opt-in keyboard.
const (
	CallbackOptInYes = "optin_yes"
	CallbackOptInNo  = "optin_no"
)

// API is the slice of the Telegram client the bot uses. *tgbotapi.BotAPI
// satisfies it; tests substitute a recording fake.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type Bot struct {
	API        API
	Directory  *directory.Service
	Attendance *attendance.Service
	Sessions   *SessionStore
}

func New(api API) *Bot {
	return &Bot{
		API:      api,
		Sessions: NewSessionStore(),
	}
}

// SendMessage delivers text to a chat. Delivery failures (blocked bot,
// deleted chat, forbidden) are logged and must never take the process down;
// the triggering operation is considered complete either way.
func (b *Bot) SendMessage(chatID int64, text string, replyMarkup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	if replyMarkup != nil {
		msg.ReplyMarkup = replyMarkup
	}

	_, err := b.API.Send(msg)
	if err != nil {
		zap.L().Warn("failed to send message",
			zap.Int64("chat_id", chatID), zap.Error(err))
	}
	return err
}

// Notify implements directory.Notifier: fire-and-forget delivery with no
// guarantee and no reported outcome.
func (b *Bot) Notify(chatID int64, text string) {
	_ = b.SendMessage(chatID, text, nil)
}

func (b *Bot) AnswerCallbackQuery(callbackID string, text string) error {
	callback := tgbotapi.NewCallback(callbackID, text)
	_, err := b.API.Request(callback)
	if err != nil {
		zap.L().Warn("failed to answer callback query", zap.Error(err))
	}
	return err
}

// OptInKeyboard is the Yes/No choice shown to first-contact users.
func (b *Bot) OptInKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Yes", CallbackOptInYes),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("No", CallbackOptInNo),
		),
	)
}
