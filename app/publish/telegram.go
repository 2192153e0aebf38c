package publish

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"
)

var _ Messenger = (*TelegramMessenger)(nil)

// NewBot connects to the Bot API. endpoint is a format string in the form of
// tgbotapi.APIEndpoint; empty means the public API.
func NewBot(token, endpoint string, timeout time.Duration) (*tgbotapi.BotAPI, error) {
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}

	bot, err := tgbotapi.NewBotAPIWithClient(token, endpoint, &http.Client{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Telegram: %w", err)
	}

	slog.Info("Telegram bot authorized", "username", bot.Self.UserName)
	return bot, nil
}

// ChatTarget is either a public @username or a numeric chat ID.
type ChatTarget struct {
	ID       int64
	Username string
}

func ParseChatTarget(channel string) (ChatTarget, error) {
	channel = strings.TrimSpace(channel)
	if channel == "" {
		return ChatTarget{}, fmt.Errorf("channel is empty")
	}

	if strings.HasPrefix(channel, "@") {
		return ChatTarget{Username: channel}, nil
	}

	id, err := strconv.ParseInt(channel, 10, 64)
	if err != nil {
		return ChatTarget{}, fmt.Errorf("invalid channel %q: expected @username or numeric id", channel)
	}

	return ChatTarget{ID: id}, nil
}

func (t ChatTarget) String() string {
	if t.Username != "" {
		return t.Username
	}
	return strconv.FormatInt(t.ID, 10)
}

// TelegramMessenger posts to one channel, waiting on a rate limiter before each send.
type TelegramMessenger struct {
	bot     *tgbotapi.BotAPI
	target  ChatTarget
	limiter *rate.Limiter
}

func NewTelegramMessenger(bot *tgbotapi.BotAPI, target ChatTarget, sendInterval time.Duration) *TelegramMessenger {
	limit := rate.Inf
	if sendInterval > 0 {
		limit = rate.Every(sendInterval)
	}

	return &TelegramMessenger{
		bot:     bot,
		target:  target,
		limiter: rate.NewLimiter(limit, 1),
	}
}

func (m *TelegramMessenger) SendText(ctx context.Context, text string) error {
	msg := tgbotapi.NewMessage(m.target.ID, text)
	msg.ChannelUsername = m.target.Username
	msg.ParseMode = tgbotapi.ModeHTML

	return m.send(ctx, msg)
}

func (m *TelegramMessenger) SendPhoto(ctx context.Context, r io.Reader, name, caption string) error {
	photo := tgbotapi.NewPhoto(m.target.ID, tgbotapi.FileReader{Name: name, Reader: r})
	photo.ChannelUsername = m.target.Username
	photo.Caption = caption
	photo.ParseMode = tgbotapi.ModeHTML

	return m.send(ctx, photo)
}

func (m *TelegramMessenger) SendVideo(ctx context.Context, r io.Reader, name, caption string) error {
	video := tgbotapi.NewVideo(m.target.ID, tgbotapi.FileReader{Name: name, Reader: r})
	video.ChannelUsername = m.target.Username
	video.Caption = caption
	video.ParseMode = tgbotapi.ModeHTML
	video.SupportsStreaming = true

	return m.send(ctx, video)
}

func (m *TelegramMessenger) send(ctx context.Context, c tgbotapi.Chattable) error {
	if err := m.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("failed to wait for send slot: %w", err)
	}

	if _, err := m.bot.Send(c); err != nil {
		return fmt.Errorf("failed to send to %s: %w", m.target, err)
	}

	return nil
}
