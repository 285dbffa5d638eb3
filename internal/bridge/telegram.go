package bridge

import (
	"fmt"

	"github.com/appetiteclub/apt"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Bridge wraps the Telegram platform capabilities the app uses: resolving
// the current platform user and pushing native alerts. Outside the host app
// (no bot token configured) it degrades to a fixed fallback id and
// log-only alerts.
type Bridge struct {
	bot        *tgbotapi.BotAPI
	userID     int64
	fallbackID int64
	logger     apt.Logger
}

// New connects to the Bot API when a token is configured. An empty token is
// not an error: the bridge is optional by contract.
func New(token string, userID, fallbackID int64, logger apt.Logger) (*Bridge, error) {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	b := &Bridge{userID: userID, fallbackID: fallbackID, logger: logger}
	if token == "" {
		logger.Info("telegram bridge disabled, using fallback identity", "fallback_id", fallbackID)
		return b, nil
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("connect telegram bot: %w", err)
	}
	b.bot = bot
	logger.Info("telegram bridge connected", "bot", bot.Self.UserName)
	return b, nil
}

// UserID returns the current platform user id, or the fixed fallback when
// the bridge runs outside the host app.
func (b *Bridge) UserID() int64 {
	if b.userID != 0 {
		return b.userID
	}
	return b.fallbackID
}

// Available reports whether the native platform surface is reachable.
func (b *Bridge) Available() bool {
	return b.bot != nil
}

// UserDisplay resolves the display info for a chat member. Failures here
// are non-critical: the caller falls back to a bare id.
func (b *Bridge) UserDisplay(chatID, userID int64) (string, error) {
	if b.bot == nil {
		return "", fmt.Errorf("telegram bridge not connected")
	}
	member, err := b.bot.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{ChatID: chatID, UserID: userID},
	})
	if err != nil {
		return "", fmt.Errorf("get chat member %d: %w", userID, err)
	}
	name := member.User.FirstName
	if member.User.LastName != "" {
		name += " " + member.User.LastName
	}
	return name, nil
}

// Alert pushes a native message to the user. Without the host app it only
// logs, matching the webview falling back to a plain alert().
func (b *Bridge) Alert(text string) {
	if b.bot == nil {
		b.logger.Info("alert (bridge offline)", "text", text)
		return
	}
	msg := tgbotapi.NewMessage(b.UserID(), text)
	if _, err := b.bot.Send(msg); err != nil {
		b.logger.Info("cannot deliver alert", "error", err)
	}
}
