package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/lysyi3m/rss-relay/app/cycle"
)

type CycleStatus interface {
	LastResult() (cycle.Result, bool)
}

type PostedCounter interface {
	Count(ctx context.Context) (int, error)
}

var _ CycleStatus = (*cycle.Runner)(nil)

// Responder builds replies to operator commands.
type Responder struct {
	status   CycleStatus
	posted   PostedCounter
	maxPosts int
	interval time.Duration
}

func NewResponder(status CycleStatus, posted PostedCounter, maxPosts int, interval time.Duration) *Responder {
	return &Responder{
		status:   status,
		posted:   posted,
		maxPosts: maxPosts,
		interval: interval,
	}
}

// Reply returns the answer to a command, or false when the command is unknown.
func (r *Responder) Reply(ctx context.Context, command string) (string, bool) {
	switch command {
	case "start":
		return r.greeting(), true
	case "status":
		return r.statusText(ctx), true
	default:
		return "", false
	}
}

func (r *Responder) greeting() string {
	return fmt.Sprintf("Бот запущен • %d %s / %d мин",
		r.maxPosts,
		plural(r.maxPosts, "пост", "поста", "постов"),
		int(r.interval.Minutes()))
}

func (r *Responder) statusText(ctx context.Context) string {
	var b strings.Builder

	last, ok := r.status.LastResult()
	switch {
	case !ok:
		b.WriteString("Циклов ещё не было")
	case last.Skipped:
		fmt.Fprintf(&b, "Последний цикл %s: ночное время, пропущен", last.StartedAt.In(time.Local).Format("02.01 15:04"))
	default:
		fmt.Fprintf(&b, "Последний цикл %s: источников %d (ошибок %d), новых %d, опубликовано %d, сбоев %d",
			last.StartedAt.In(time.Local).Format("02.01 15:04"),
			last.Sources, last.FailedSources, last.Eligible, last.Published, last.Failed)
	}

	if count, err := r.posted.Count(ctx); err == nil {
		fmt.Fprintf(&b, "\nВсего опубликовано: %d", count)
	} else {
		slog.Warn("Failed to count posted links", "error", err)
	}

	return b.String()
}

// plural picks the Russian form for n: one, few (2-4) or many.
func plural(n int, one, few, many string) string {
	n %= 100
	if n >= 11 && n <= 14 {
		return many
	}
	switch n % 10 {
	case 1:
		return one
	case 2, 3, 4:
		return few
	default:
		return many
	}
}

// Commands answers operator commands sent to the bot over long polling.
type Commands struct {
	bot       *tgbotapi.BotAPI
	responder *Responder
	timeout   int
}

func NewCommands(bot *tgbotapi.BotAPI, responder *Responder) *Commands {
	return &Commands{
		bot:       bot,
		responder: responder,
		timeout:   30,
	}
}

// Run polls for updates until ctx is cancelled.
func (c *Commands) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = c.timeout

	updates := c.bot.GetUpdatesChan(u)
	slog.Info("Command listener started", "bot", c.bot.Self.UserName)

	for {
		select {
		case <-ctx.Done():
			c.bot.StopReceivingUpdates()
			slog.Info("Command listener stopped")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			c.handle(ctx, update)
		}
	}
}

func (c *Commands) handle(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || !msg.IsCommand() {
		return
	}

	text, ok := c.responder.Reply(ctx, msg.Command())
	if !ok {
		slog.Debug("Unknown command", "command", msg.Command(), "chat_id", msg.Chat.ID)
		return
	}

	reply := tgbotapi.NewMessage(msg.Chat.ID, text)
	reply.ReplyToMessageID = msg.MessageID

	if _, err := c.bot.Send(reply); err != nil {
		slog.Error("Failed to answer command", "command", msg.Command(), "chat_id", msg.Chat.ID, "error", err)
	}
}
