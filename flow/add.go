package flow

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/edmondantes/salary-bot/core/logger"
	"github.com/edmondantes/salary-bot/storage"
	"github.com/edmondantes/salary-bot/telegram"

	tele "gopkg.in/telebot.v4"
)

const (
	dateLayout   = "02.01.2006"
	periodLayout = "01.2006"

	topBanksLimit = 10
)

// payoutFloor is the earliest accepted payout date.
var payoutFloor = time.Date(2022, time.March, 1, 0, 0, 0, 0, time.UTC)

var errDateOutOfRange = errors.New("payout date out of range")

func dateKeyboard() *tele.ReplyMarkup {
	return telegram.OneTimeReplyButtons(phDate, []string{btnToday}, []string{btnYesterday})
}

func yesNoKeyboard(placeholder string) *tele.ReplyMarkup {
	return telegram.OneTimeReplyButtons(placeholder, []string{btnYes, btnNo})
}

// handleAdd advances the add dialogue by one answer. The token count tells
// which question the incoming text answers: flow name, date, bank, salary
// yes/no, amount, rewrite confirmation.
func (e *Engine) handleAdd(ctx context.Context, req Request, conv conversation) Result {
	tokens := conv.tokens()
	switch len(tokens) {
	case 1:
		return Result{
			NextState: conv.hold(),
			Actions:   []Action{reply(msgAskDate, dateKeyboard())},
		}
	case 2:
		date, err := e.parsePayoutDate(tokens[1])
		if err != nil {
			return Result{
				NextState: conv.truncated(1).hold(),
				Actions:   []Action{reply(msgBadDate, dateKeyboard())},
			}
		}
		conv.args[0] = date.Format(dateLayout)
		return Result{
			NextState: conv.hold(),
			Actions:   []Action{reply(msgAskBank, e.bankKeyboard(ctx))},
		}
	case 3:
		return Result{
			NextState: conv.hold(),
			Actions:   []Action{reply(msgAskHasSalary, yesNoKeyboard(""))},
		}
	default:
		return e.finishAdd(ctx, req, conv, tokens)
	}
}

// bankKeyboard offers the most frequently used banks as quick replies.
// A lookup failure degrades to free-form input.
func (e *Engine) bankKeyboard(ctx context.Context) *tele.ReplyMarkup {
	banks, err := e.records.TopBanks(ctx, topBanksLimit)
	if err != nil {
		logger.Warn(ctx, "flow", "banks.lookup",
			slog.String("err", logger.Sanitize(err.Error())),
		)
		return nil
	}
	if len(banks) == 0 {
		return nil
	}
	return telegram.OneTimeReplyButtons(phBank, telegram.ChunkLabels(banks, 2)...)
}

func (e *Engine) finishAdd(ctx context.Context, req Request, conv conversation, tokens []string) Result {
	withAmount := isYes(strings.ToLower(tokens[3]))

	if withAmount && len(tokens) < 5 {
		return Result{
			NextState: conv.hold(),
			Actions:   []Action{reply(msgAskAmount, nil)},
		}
	}

	date, err := time.Parse(dateLayout, tokens[1])
	if err != nil {
		logger.Warn(ctx, "flow", "state.corrupt",
			slog.Int64("user_id", req.UserID),
			slog.String("err", logger.Sanitize(err.Error())),
		)
		return Result{Actions: []Action{reply(msgSaveFailed, mainMenu())}}
	}
	bank := tokens[2]

	var salary *float64
	if withAmount {
		value, err := strconv.ParseFloat(strings.TrimSpace(tokens[4]), 64)
		if err != nil || value < 0 {
			return Result{
				NextState: conv.truncated(4).hold(),
				Actions:   []Action{reply(msgBadAmount, nil)},
			}
		}
		salary = &value
	}

	rewriteIdx := 4
	if withAmount {
		rewriteIdx = 5
	}
	answered := len(tokens) > rewriteIdx
	rewrite := answered && isYes(strings.ToLower(tokens[rewriteIdx]))

	if answered && !rewrite {
		return Result{Actions: []Action{reply(msgNotChanged, mainMenu())}}
	}

	existing, err := e.records.FindByUserMonth(ctx, req.UserID, date.Year(), int(date.Month()))
	if err != nil {
		logger.Error(ctx, "flow", "record.lookup",
			slog.Int64("user_id", req.UserID),
			slog.String("err", logger.Sanitize(err.Error())),
		)
		return Result{Actions: []Action{reply(msgSaveFailed, mainMenu())}}
	}

	if existing != nil && !rewrite {
		return Result{
			NextState: conv.hold(),
			Actions:   []Action{reply(msgAskRewrite, yesNoKeyboard(phRewrite))},
		}
	}

	rec := &storage.SalaryRecord{
		UserID:      req.UserID,
		Bank:        bank,
		SalaryValue: salary,
		IncomeYear:  date.Year(),
		IncomeMonth: int(date.Month()),
		IncomeDay:   date.Day(),
	}
	if existing != nil {
		rec.ID = existing.ID
	}
	if err := e.records.Upsert(ctx, rec); err != nil {
		logger.Error(ctx, "flow", "record.save",
			slog.Int64("user_id", req.UserID),
			slog.String("bank", logger.Sanitize(bank)),
			slog.String("err", logger.Sanitize(err.Error())),
		)
		return Result{Actions: []Action{reply(msgSaveFailed, mainMenu())}}
	}
	return Result{Actions: []Action{reply(msgSaved, mainMenu())}}
}

// parsePayoutDate resolves shortcuts and validates the accepted range:
// not before March 2022 and not in the future.
func (e *Engine) parsePayoutDate(token string) (time.Time, error) {
	trimmed := strings.TrimSpace(token)
	lower := strings.ToLower(trimmed)
	today := dateOnly(e.now())

	var date time.Time
	switch {
	case hasWord(todayWords, lower):
		date = today
	case hasWord(yesterdayWords, lower):
		date = today.AddDate(0, 0, -1)
	default:
		parsed, err := time.Parse(dateLayout, trimmed)
		if err != nil {
			return time.Time{}, err
		}
		date = parsed
	}

	if date.After(today) || date.Before(payoutFloor) {
		return time.Time{}, errDateOutOfRange
	}
	return date, nil
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func hasWord(set map[string]struct{}, word string) bool {
	_, ok := set[word]
	return ok
}
