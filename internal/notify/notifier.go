package notify

import (
	"context"
	"fmt"
	"time"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	healthsvc "intraday_bot/internal/modules/health/service"
	"intraday_bot/pkg/logger"
)

// Telegram pushes trade events to one chat and answers a /health
// command. Fire and forget: a failed send never blocks trading.
type Telegram struct {
	bot    *tgbot.BotAPI
	chatID int64
	state  *healthsvc.State
}

func NewTelegram(token string, chatID int64, state *healthsvc.State) (*Telegram, error) {
	b, err := tgbot.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return &Telegram{bot: b, chatID: chatID, state: state}, nil
}

func (t *Telegram) Send(ctx context.Context, msg string) {
	if t == nil || t.bot == nil || t.chatID == 0 {
		return
	}
	if _, err := t.bot.Send(tgbot.NewMessage(t.chatID, msg)); err != nil {
		logger.Warn("notify: telegram send failed: %v", err)
	}
}

func (t *Telegram) Sendf(ctx context.Context, format string, args ...any) {
	t.Send(ctx, fmt.Sprintf(format, args...))
}

func (t *Telegram) handleHealth(ctx context.Context) {
	lastTick := "never"
	if lt := t.state.LastTick(); !lt.IsZero() {
		lastTick = time.Since(lt).Truncate(time.Second).String() + " ago"
	}
	t.Sendf(ctx, "stream connected: %v\nlast tick: %s\nuptime: %s",
		t.state.StreamConnected(), lastTick, t.state.Uptime().Truncate(time.Second))
}

// Start runs long polling for commands until ctx is done.
func (t *Telegram) Start(ctx context.Context) error {
	if t == nil || t.bot == nil {
		return nil
	}

	u := tgbot.NewUpdate(0)
	u.Timeout = 30
	u.AllowedUpdates = []string{"message"}

	updates := t.bot.GetUpdatesChan(u)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case upd := <-updates:
				if upd.Message == nil || upd.Message.Chat == nil ||
					upd.Message.Chat.ID != t.chatID || !upd.Message.IsCommand() {
					continue
				}
				switch upd.Message.Command() {
				case "health":
					go t.handleHealth(ctx)
				}
			}
		}
	}()
	return nil
}

// Stdout logs instead of messaging. The default when no token is set.
type Stdout struct{}

func NewStdout() *Stdout { return &Stdout{} }

func (s *Stdout) Send(ctx context.Context, msg string) { logger.Info("notify: %s", msg) }
func (s *Stdout) Sendf(ctx context.Context, format string, args ...any) {
	logger.Info("notify: "+format, args...)
}
