package status

import (
	"errors"
	"io"
	"log/slog"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramBot is the part of the bot API the notifier needs.
type TelegramBot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// BotFactory creates TelegramBot instances.
type BotFactory func(token string) (TelegramBot, error)

var defaultBotFactory BotFactory = func(token string) (TelegramBot, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return bot, nil
}

// TelegramNotifier forwards status messages to one chat. Messages are queued
// and sent by a background goroutine; a full queue drops the message.
type TelegramNotifier struct {
	bot    TelegramBot
	chatID int64
	logger *slog.Logger
	queue  chan string

	closeOnce sync.Once
	done      chan struct{}
}

// NewTelegramNotifier connects with the default bot API.
func NewTelegramNotifier(token string, chatID int64, logger *slog.Logger) (*TelegramNotifier, error) {
	return NewTelegramNotifierWithFactory(token, chatID, logger, defaultBotFactory)
}

// NewTelegramNotifierWithFactory creates a notifier with a custom bot factory.
func NewTelegramNotifierWithFactory(token string, chatID int64, logger *slog.Logger, factory BotFactory) (*TelegramNotifier, error) {
	if token == "" {
		return nil, errors.New("telegram token is required")
	}
	if chatID == 0 {
		return nil, errors.New("telegram chat id is required")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	bot, err := factory(token)
	if err != nil {
		return nil, err
	}
	n := &TelegramNotifier{
		bot:    bot,
		chatID: chatID,
		logger: logger,
		queue:  make(chan string, 8),
		done:   make(chan struct{}),
	}
	go n.loop()
	return n, nil
}

func (n *TelegramNotifier) Notify(msg string) {
	select {
	case <-n.done:
	case n.queue <- msg:
	default:
		n.logger.Debug("telegram queue full, dropping status", "message", msg)
	}
}

func (n *TelegramNotifier) loop() {
	for {
		select {
		case <-n.done:
			return
		case msg := <-n.queue:
			if _, err := n.bot.Send(tgbotapi.NewMessage(n.chatID, msg)); err != nil {
				n.logger.Debug("telegram send failed", "error", err)
			}
		}
	}
}

// Close stops the sender. Queued messages are discarded.
func (n *TelegramNotifier) Close() error {
	n.closeOnce.Do(func() { close(n.done) })
	return nil
}
