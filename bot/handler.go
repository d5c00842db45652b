package bot

import (
	"context"
	"log/slog"

	"github.com/edmondantes/salary-bot/core/logger"
	"github.com/edmondantes/salary-bot/flow"

	tele "gopkg.in/telebot.v4"
)

// StateStore persists the per-user dialogue state. A nil state clears it.
type StateStore interface {
	Get(ctx context.Context, userID int64) (*string, error)
	Put(ctx context.Context, userID int64, state *string) error
}

// Decider turns one inbound message plus the stored state into replies and
// the next state.
type Decider interface {
	Handle(ctx context.Context, req flow.Request) flow.Result
}

// Replier delivers outbound messages.
type Replier interface {
	SendText(ctx context.Context, chatID int64, text string, markup *tele.ReplyMarkup) error
	SendPhoto(ctx context.Context, chatID int64, image []byte, caption string) error
}

// Handler glues the fetch loop to the dialogue engine: it filters updates,
// serializes per user and persists the new state before any reply goes out,
// so a crash between the two re-runs the dialogue step instead of losing it.
type Handler struct {
	states StateStore
	engine Decider
	sender Replier
	locks  *userLocks
}

func NewHandler(states StateStore, engine Decider, sender Replier) *Handler {
	return &Handler{
		states: states,
		engine: engine,
		sender: sender,
		locks:  newUserLocks(),
	}
}

// HandleUpdate processes one update. Only private-chat text messages from
// humans are handled; everything else is confirmed and dropped.
func (h *Handler) HandleUpdate(ctx context.Context, upd tele.Update) error {
	msg := upd.Message
	if msg == nil || msg.Sender == nil || msg.Chat == nil {
		return nil
	}
	if msg.Sender.IsBot {
		return nil
	}
	if msg.Chat.Type != tele.ChatPrivate {
		return nil
	}
	text := msg.Text
	if text == "" {
		return nil
	}

	userID := msg.Sender.ID
	chatID := msg.Chat.ID

	ctx = logger.WithUpdateMeta(ctx, int64(upd.ID), userID, chatID)
	ctx = logger.WithRID(ctx, logger.BuildRID(int64(upd.ID), chatID, userID))

	unlock := h.locks.Lock(userID)
	defer unlock()

	state, err := h.states.Get(ctx, userID)
	if err != nil {
		logger.Error(ctx, "bot", "state.load",
			slog.Int64("user_id", userID),
			slog.String("err", logger.Sanitize(err.Error())),
		)
		return err
	}

	res := h.engine.Handle(ctx, flow.Request{
		UserID: userID,
		ChatID: chatID,
		Text:   text,
		State:  state,
	})

	if err := h.states.Put(ctx, userID, res.NextState); err != nil {
		logger.Error(ctx, "bot", "state.save",
			slog.Int64("user_id", userID),
			slog.String("err", logger.Sanitize(err.Error())),
		)
		return err
	}

	for _, act := range res.Actions {
		if len(act.Photo) > 0 {
			if err := h.sender.SendPhoto(ctx, chatID, act.Photo, act.Caption); err != nil {
				return err
			}
			continue
		}
		if err := h.sender.SendText(ctx, chatID, act.Text, act.Markup); err != nil {
			return err
		}
	}
	return nil
}
