package stat

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/edmondantes/salary-bot/core/logger"
	"github.com/edmondantes/salary-bot/storage"
)

const reportDateLayout = "02.01.2006"

// DayStat aggregates one day of a monthly report: how many records each
// bank contributed.
type DayStat struct {
	Day   int
	Total int
	Banks []BankCount
}

type BankCount struct {
	Name  string
	Count int
}

// RecordLister is the storage slice the reporter reads from.
type RecordLister interface {
	ListByMonth(ctx context.Context, year, month int) ([]storage.SalaryRecord, error)
}

// Reporter builds monthly payout reports from stored records.
type Reporter struct {
	records RecordLister

	// now is swappable for tests.
	now func() time.Time
}

func NewReporter(records RecordLister) *Reporter {
	return &Reporter{records: records, now: time.Now}
}

// Build renders the report text and, when there is data, a PNG chart of
// records per day. Chart render failures degrade to a text-only report.
func (r *Reporter) Build(ctx context.Context, month, year int) (string, []byte, error) {
	records, err := r.records.ListByMonth(ctx, year, month)
	if err != nil {
		return "", nil, err
	}

	days := groupByDay(records)

	var sum float64
	var valued int
	for _, rec := range records {
		if rec.SalaryValue != nil {
			sum += *rec.SalaryValue
			valued++
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Statistics for '%02d.%d' as of '%s'",
		month, year, r.now().Format(reportDateLayout))
	if valued > 0 {
		fmt.Fprintf(&b, "\nAverage payout amount: %.2f", sum/float64(valued))
	}
	for _, day := range days {
		fmt.Fprintf(&b, "\n\n%d:", day.Day)
		for _, bank := range day.Banks {
			fmt.Fprintf(&b, "\n%s: %d", bank.Name, bank.Count)
		}
	}

	png, err := renderDailyChart(month, year, days)
	if err != nil {
		logger.Warn(ctx, "stat", "chart.render",
			slog.Int("month", month),
			slog.Int("year", year),
			slog.String("err", logger.Sanitize(err.Error())),
		)
		png = nil
	}

	if logger.ShouldSampleDebug() {
		logger.Debug(ctx, "stat", "report.built",
			slog.Int("month", month),
			slog.Int("year", year),
			slog.Int("count", len(records)),
		)
	}
	return b.String(), png, nil
}

// groupByDay buckets records day by day and bank by bank, both ascending.
func groupByDay(records []storage.SalaryRecord) []DayStat {
	byDay := make(map[int]map[string]int)
	for _, rec := range records {
		banks, ok := byDay[rec.IncomeDay]
		if !ok {
			banks = make(map[string]int)
			byDay[rec.IncomeDay] = banks
		}
		banks[rec.Bank]++
	}

	days := make([]DayStat, 0, len(byDay))
	for day, banks := range byDay {
		stat := DayStat{Day: day, Banks: make([]BankCount, 0, len(banks))}
		for name, count := range banks {
			stat.Banks = append(stat.Banks, BankCount{Name: name, Count: count})
			stat.Total += count
		}
		sort.Slice(stat.Banks, func(i, j int) bool {
			return stat.Banks[i].Name < stat.Banks[j].Name
		})
		days = append(days, stat)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Day < days[j].Day })
	return days
}
