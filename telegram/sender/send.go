package sender

import (
	"bytes"
	"context"
	"errors"
	"log/slog"

	"github.com/edmondantes/salary-bot/core/logger"

	tele "gopkg.in/telebot.v4"
)

// Sender is the outbound side of the bot: it splits oversized texts,
// attaches reply keyboards to the final segment only, and runs every call
// through the dispatcher pool.
type Sender struct {
	bot  *tele.Bot
	disp *Dispatcher
}

// New builds a Sender backed by a fresh dispatcher.
func New(bot *tele.Bot, opts Options) *Sender {
	return &Sender{
		bot:  bot,
		disp: NewDispatcher(opts),
	}
}

// Close drains the dispatcher queue.
func (s *Sender) Close() {
	s.disp.Close()
}

// SendText delivers text to the chat, splitting it into successive messages
// when it exceeds the API limit. The markup is attached to the last segment.
func (s *Sender) SendText(ctx context.Context, chatID int64, text string, markup *tele.ReplyMarkup) error {
	segments := SplitText(text, MaxMessageLength)
	if len(segments) > 1 && logger.ShouldSampleDebug() {
		logger.Debug(ctx, "tg.sender", "send.split",
			slog.Int64("chat_id", chatID),
			slog.Int("segments", len(segments)),
		)
	}
	return s.enqueue(ctx, "send.text", "sendMessage", func() error {
		for i, seg := range segments {
			last := i == len(segments)-1
			var err error
			if last && markup != nil {
				_, err = s.bot.Send(tele.ChatID(chatID), seg, &tele.SendOptions{ReplyMarkup: markup})
			} else {
				_, err = s.bot.Send(tele.ChatID(chatID), seg)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// SendPhoto delivers an in-memory image with an optional caption.
func (s *Sender) SendPhoto(ctx context.Context, chatID int64, image []byte, caption string) error {
	return s.enqueue(ctx, "send.photo", "sendPhoto", func() error {
		photo := &tele.Photo{
			File:    tele.FromReader(bytes.NewReader(image)),
			Caption: caption,
		}
		_, err := s.bot.Send(tele.ChatID(chatID), photo)
		return err
	})
}

// enqueue schedules the call on the pool, falling back to a synchronous
// send when the queue is saturated or already closed.
func (s *Sender) enqueue(ctx context.Context, action, endpoint string, run func() error) error {
	err := s.disp.Enqueue(ctx, action, endpoint, run)
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrQueueFull) || errors.Is(err, ErrQueueClosed) {
		logger.Warn(ctx, "tg.sender", "queue.fallback",
			slog.String("action", action),
			slog.String("endpoint", endpoint),
			slog.String("err", err.Error()),
		)
		return run()
	}
	return err
}
