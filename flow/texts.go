package flow

const (
	btnAdd  = "Add"
	btnStat = "Statistics"

	btnToday     = "Today"
	btnYesterday = "Yesterday"

	btnPrevMonth = "Previous month"
	btnCurrMonth = "Current month"

	btnYes = "Yes"
	btnNo  = "No"

	sourceURL = "https://github.com/EdmonDantes/salary-bot"

	msgGreeting       = "Welcome! Choose an action from the menu below"
	msgUnknownCommand = "Unknown command"

	msgAskDate         = "Enter the payout date in the <day>.<month>.<year> format"
	msgBadDate         = "Wrong date format.\n" + msgAskDate
	msgAskBank         = "Enter the bank name"
	msgAskHasSalary    = "Do you want to specify the payout amount?"
	msgAskAmount       = "Enter the payout amount"
	msgBadAmount       = "The amount must be a number not less than 0"
	msgAskRewrite      = "You already have a record for this month. Do you want to rewrite it?"
	msgNotChanged      = "Your data was not changed"
	msgSaved           = "Everything was saved"
	msgSaveFailed      = "An error occurred while saving, please try again later"
	msgAskPeriod       = "Enter the period in the <month>.<year> format"
	msgBadPeriod       = "Wrong period format.\n" + msgAskPeriod
	msgStatFailed      = "An error occurred while building statistics, please try again later"

	phDate    = "Payout date"
	phBank    = "Bank name"
	phRewrite = "Rewrite?"
	phPeriod  = "Statistics period"
)

// yesWords are the accepted confirmations, Russian synonyms included since
// early users answered in both languages.
var yesWords = map[string]struct{}{
	"yes": {}, "y": {}, "true": {}, "t": {}, "1": {}, "да": {}, "д": {},
}

func isYes(token string) bool {
	_, ok := yesWords[token]
	return ok
}

// Shortcut synonyms for the date and period prompts, keyed lowercase.
var (
	todayWords     = map[string]struct{}{"today": {}, "сегодня": {}}
	yesterdayWords = map[string]struct{}{"yesterday": {}, "вчера": {}}

	prevMonthWords = map[string]struct{}{
		"previous month": {}, "previous": {}, "prev": {},
		"предыдущий месяц": {}, "предыдущий": {}, "прошлый": {},
	}
	currMonthWords = map[string]struct{}{
		"current month": {}, "current": {}, "curr": {},
		"текущий месяц": {}, "текущий": {},
	}
)
