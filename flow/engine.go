package flow

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/edmondantes/salary-bot/core/logger"
	"github.com/edmondantes/salary-bot/storage"
	"github.com/edmondantes/salary-bot/telegram"

	tele "gopkg.in/telebot.v4"
)

const (
	flowAdd  = "add"
	flowStat = "stat"
)

// Request is a single inbound private message together with the dialogue
// state persisted for its author.
type Request struct {
	UserID int64
	ChatID int64
	Text   string
	State  *string
}

// Action is one outbound reply. Photo actions carry rendered PNG bytes.
type Action struct {
	Text    string
	Markup  *tele.ReplyMarkup
	Photo   []byte
	Caption string
}

// Result carries the dialogue state to persist (nil clears it) and the
// replies to send, in order.
type Result struct {
	NextState *string
	Actions   []Action
}

// RecordStore is the slice of record storage the dialogues need.
type RecordStore interface {
	FindByUserMonth(ctx context.Context, userID int64, year, month int) (*storage.SalaryRecord, error)
	Upsert(ctx context.Context, rec *storage.SalaryRecord) error
	TopBanks(ctx context.Context, limit int) ([]string, error)
}

// StatReporter renders the monthly report for the stat dialogue.
type StatReporter interface {
	Build(ctx context.Context, month, year int) (string, []byte, error)
}

// Engine drives the add and stat dialogues. Handle makes all storage reads
// and writes itself; the caller only persists the returned state and sends
// the returned actions.
type Engine struct {
	records  RecordStore
	reporter StatReporter

	// now is swappable for tests.
	now func() time.Time
}

func NewEngine(records RecordStore, reporter StatReporter) *Engine {
	return &Engine{
		records:  records,
		reporter: reporter,
		now:      time.Now,
	}
}

func mainMenu() *tele.ReplyMarkup {
	return telegram.ReplyButtons([]string{btnAdd}, []string{btnStat})
}

func reply(text string, markup *tele.ReplyMarkup) Action {
	return Action{Text: text, Markup: markup}
}

// Handle processes one message. Menu commands win over an active dialogue;
// any other text is appended to the current state and interpreted by the
// owning flow.
func (e *Engine) Handle(ctx context.Context, req Request) Result {
	lower := strings.ToLower(req.Text)

	switch lower {
	case "/source", "/github":
		return Result{
			NextState: req.State,
			Actions:   []Action{reply(sourceURL, mainMenu())},
		}
	case "/start":
		return Result{Actions: []Action{reply(msgGreeting, mainMenu())}}
	}

	var conv conversation
	switch lower {
	case "/add", "add":
		conv = conversation{kind: flowAdd}
	case "/stat", "stat", "statistics":
		conv = conversation{kind: flowStat}
	default:
		current, active := parseConversation(deref(req.State))
		if !active {
			return Result{Actions: []Action{reply(msgUnknownCommand, mainMenu())}}
		}
		conv, _ = current.withText(req.Text)
	}

	switch conv.kind {
	case flowAdd:
		return e.handleAdd(ctx, req, conv)
	case flowStat:
		return e.handleStat(ctx, req, conv)
	default:
		logger.Warn(ctx, "flow", "state.unknown",
			slog.Int64("user_id", req.UserID),
			slog.String("flow", logger.Sanitize(conv.kind)),
		)
		return Result{}
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
