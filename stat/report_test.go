package stat

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/edmondantes/salary-bot/storage"
)

type fakeLister struct {
	records []storage.SalaryRecord
	err     error
}

func (f *fakeLister) ListByMonth(_ context.Context, _, _ int) ([]storage.SalaryRecord, error) {
	return f.records, f.err
}

func ptr(v float64) *float64 { return &v }

func newTestReporter(lister *fakeLister) *Reporter {
	r := NewReporter(lister)
	r.now = func() time.Time {
		return time.Date(2023, time.June, 15, 12, 0, 0, 0, time.UTC)
	}
	return r
}

func TestReportHeaderAndAverage(t *testing.T) {
	lister := &fakeLister{records: []storage.SalaryRecord{
		{Bank: "Sber", SalaryValue: ptr(100), IncomeDay: 1},
		{Bank: "Sber", SalaryValue: ptr(200), IncomeDay: 1},
		{Bank: "Tinkoff", SalaryValue: nil, IncomeDay: 3},
	}}
	r := newTestReporter(lister)

	text, png, err := r.Build(context.Background(), 6, 2023)
	require.NoError(t, err)
	require.Contains(t, text, "Statistics for '06.2023' as of '15.06.2023'")
	// records without a value do not drag the average down
	require.Contains(t, text, "Average payout amount: 150.00")
	require.NotEmpty(t, png)
}

func TestReportGroupsByDayThenBank(t *testing.T) {
	lister := &fakeLister{records: []storage.SalaryRecord{
		{Bank: "Tinkoff", IncomeDay: 5},
		{Bank: "Alpha", IncomeDay: 5},
		{Bank: "Alpha", IncomeDay: 5},
		{Bank: "Sber", IncomeDay: 1},
	}}
	r := newTestReporter(lister)

	text, _, err := r.Build(context.Background(), 6, 2023)
	require.NoError(t, err)

	require.Contains(t, text, "\n\n1:\nSber: 1")
	require.Contains(t, text, "\n\n5:\nAlpha: 2\nTinkoff: 1")
	// day 1 comes before day 5
	require.Less(t,
		indexOf(t, text, "\n\n1:"),
		indexOf(t, text, "\n\n5:"),
	)
	// no values, no average line
	require.NotContains(t, text, "Average")
}

func TestReportEmptyMonth(t *testing.T) {
	r := newTestReporter(&fakeLister{})

	text, png, err := r.Build(context.Background(), 1, 2024)
	require.NoError(t, err)
	require.Equal(t, "Statistics for '01.2024' as of '15.06.2023'", text)
	require.Nil(t, png)
}

func TestReportStorageFailure(t *testing.T) {
	r := newTestReporter(&fakeLister{err: errors.New("db down")})

	_, _, err := r.Build(context.Background(), 6, 2023)
	require.Error(t, err)
}

func indexOf(t *testing.T, s, sub string) int {
	t.Helper()
	idx := strings.Index(s, sub)
	require.GreaterOrEqual(t, idx, 0, sub)
	return idx
}
