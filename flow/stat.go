package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/edmondantes/salary-bot/core/logger"
	"github.com/edmondantes/salary-bot/telegram"

	tele "gopkg.in/telebot.v4"
)

func periodKeyboard() *tele.ReplyMarkup {
	return telegram.OneTimeReplyButtons(phPeriod, []string{btnPrevMonth}, []string{btnCurrMonth})
}

// handleStat asks for a reporting period and, once a valid one arrives,
// replies with the monthly report. A bad period resets the flow to the
// period question.
func (e *Engine) handleStat(ctx context.Context, req Request, conv conversation) Result {
	tokens := conv.tokens()
	if len(tokens) < 2 {
		return Result{
			NextState: conv.hold(),
			Actions:   []Action{reply(msgAskPeriod, periodKeyboard())},
		}
	}

	month, year, ok := e.parsePeriod(tokens[1])
	if !ok {
		restart := conversation{kind: flowStat}
		return Result{
			NextState: restart.hold(),
			Actions:   []Action{reply(msgBadPeriod, periodKeyboard())},
		}
	}

	text, png, err := e.reporter.Build(ctx, month, year)
	if err != nil {
		logger.Error(ctx, "flow", "stat.build",
			slog.Int64("user_id", req.UserID),
			slog.Int("month", month),
			slog.Int("year", year),
			slog.String("err", logger.Sanitize(err.Error())),
		)
		return Result{Actions: []Action{reply(msgStatFailed, mainMenu())}}
	}

	actions := []Action{reply(text, mainMenu())}
	if len(png) > 0 {
		actions = append(actions, Action{
			Photo:   png,
			Caption: fmt.Sprintf("%02d.%d", month, year),
		})
	}
	return Result{Actions: actions}
}

// parsePeriod resolves month shortcuts and validates MM.yyyy input: month
// 1..12, year 2022..2025.
func (e *Engine) parsePeriod(token string) (month, year int, ok bool) {
	lower := strings.ToLower(strings.TrimSpace(token))

	var period string
	switch {
	case hasWord(prevMonthWords, lower):
		y, m := previousMonth(e.now())
		period = fmt.Sprintf("%02d.%d", m, y)
	case hasWord(currMonthWords, lower):
		period = e.now().Format(periodLayout)
	default:
		period = strings.TrimSpace(token)
	}

	parts := strings.Split(period, ".")
	if len(parts) != 2 {
		return 0, 0, false
	}
	month, errM := strconv.Atoi(parts[0])
	year, errY := strconv.Atoi(parts[1])
	if errM != nil || errY != nil {
		return 0, 0, false
	}
	if month < 1 || month > 12 || year <= 2021 || year > 2025 {
		return 0, 0, false
	}
	return month, year, true
}

// previousMonth steps back one calendar month without day normalization.
func previousMonth(t time.Time) (year, month int) {
	year, month = t.Year(), int(t.Month())
	month--
	if month == 0 {
		month = 12
		year--
	}
	return year, month
}
