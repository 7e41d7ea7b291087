package stats

import (
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// IndicatorTotal is the indicator whose rows carry a single aggregate value
// rather than a per-year series.
const IndicatorTotal = 4

// totalRowIndex is the position of the aggregate row for IndicatorTotal.
const totalRowIndex = 2

// DateLayout is the layout of period bounds.
const DateLayout = "2006-01-02"

// IndicatorRow is one row of a per-indicator, per-year table.
type IndicatorRow struct {
	IndicatorID int     `json:"indicator_id"`
	Year        int     `json:"year"`
	Value       float64 `json:"value"`
}

// Period is an inclusive date range.
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// SelectYears keeps the entries whose year falls in [begin, end].
func SelectYears(values YearValues, begin, end int) (YearValues, error) {
	out := make(YearValues)
	for k, v := range values {
		year, err := strconv.Atoi(k)
		if err != nil {
			return nil, eris.Wrapf(err, "stats: year key %q", k)
		}
		if year >= begin && year <= end {
			out[k] = v
		}
	}
	return out, nil
}

// SumRange totals the entries whose year falls in [begin, end). The upper
// bound is exclusive, unlike SelectYears.
func SumRange(values YearValues, begin, end int) (float64, error) {
	var sum float64
	for k, v := range values {
		year, err := strconv.Atoi(k)
		if err != nil {
			return 0, eris.Wrapf(err, "stats: year key %q", k)
		}
		if year >= begin && year < end {
			sum += v
		}
	}
	return sum, nil
}

// SelectIndicator returns the yearly values for one indicator within
// [begin, end]. IndicatorTotal returns its aggregate under the "total" key.
func SelectIndicator(rows []IndicatorRow, indicator, begin, end int) (YearValues, error) {
	if indicator == IndicatorTotal {
		if len(rows) <= totalRowIndex {
			return nil, eris.Errorf("stats: indicator %d needs at least %d rows, got %d", indicator, totalRowIndex+1, len(rows))
		}
		return YearValues{"total": rows[totalRowIndex].Value}, nil
	}

	out := make(YearValues)
	for _, r := range rows {
		if r.IndicatorID == indicator && r.Year >= begin && r.Year <= end {
			out[strconv.Itoa(r.Year)] = r.Value
		}
	}
	return out, nil
}

// ParseDate parses a YYYY-MM-DD date in UTC.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), time.UTC)
	if err != nil {
		return time.Time{}, eris.Wrapf(err, "stats: invalid date %q", s)
	}
	return t, nil
}

// ParsePeriod parses "start,end" into a Period. Start must not be after end.
func ParsePeriod(s string) (Period, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return Period{}, eris.Errorf("stats: period %q must be start,end", s)
	}
	start, err := ParseDate(parts[0])
	if err != nil {
		return Period{}, err
	}
	end, err := ParseDate(parts[1])
	if err != nil {
		return Period{}, err
	}
	if start.After(end) {
		return Period{}, eris.Errorf("stats: period start %s is after end %s", parts[0], parts[1])
	}
	return Period{Start: start, End: end}, nil
}

// Millis returns t as milliseconds since the Unix epoch, the unit the
// analysis platform uses for alert dates.
func Millis(t time.Time) int64 {
	return t.UnixMilli()
}

// String formats the period as "start,end".
func (p Period) String() string {
	return p.Start.Format(DateLayout) + "," + p.End.Format(DateLayout)
}
