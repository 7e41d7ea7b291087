package stats

import (
	"errors"

	"github.com/rotisserie/eris"
)

// ErrInvalidSelection marks a malformed Select query.
var ErrInvalidSelection = errors.New("stats: invalid selection")

// Table is a year-keyed input: either a plain series or per-indicator rows.
type Table struct {
	Values YearValues     `json:"values,omitempty"`
	Rows   []IndicatorRow `json:"rows,omitempty"`
}

// Query picks years out of a Table. Indicator is only read for Rows. A zero
// Scale leaves values unchanged.
type Query struct {
	Begin     int
	End       int
	Indicator int
	Scale     float64
}

// Selection is the result of Select. Total sums the selected years in
// [Begin, End), or holds the aggregate for IndicatorTotal.
type Selection struct {
	Values YearValues `json:"values"`
	Total  float64    `json:"total"`
}

// Select filters t to the years in [q.Begin, q.End], scales the result and
// totals it.
func Select(t Table, q Query) (*Selection, error) {
	if q.End < q.Begin {
		return nil, eris.Wrapf(ErrInvalidSelection, "end %d is before begin %d", q.End, q.Begin)
	}
	if len(t.Rows) > 0 && len(t.Values) > 0 {
		return nil, eris.Wrap(ErrInvalidSelection, "values and rows are mutually exclusive")
	}

	var (
		values YearValues
		err    error
	)
	if len(t.Rows) > 0 {
		if q.Indicator <= 0 {
			return nil, eris.Wrap(ErrInvalidSelection, "rows need a positive indicator")
		}
		values, err = SelectIndicator(t.Rows, q.Indicator, q.Begin, q.End)
	} else {
		values, err = SelectYears(t.Values, q.Begin, q.End)
	}
	if err != nil {
		return nil, eris.Wrap(ErrInvalidSelection, err.Error())
	}

	if q.Scale != 0 {
		values = Scale(values, q.Scale)
	}

	sel := &Selection{Values: values}
	if len(t.Rows) > 0 && q.Indicator == IndicatorTotal {
		sel.Total = values["total"]
		return sel, nil
	}
	if sel.Total, err = SumRange(values, q.Begin, q.End); err != nil {
		return nil, eris.Wrap(ErrInvalidSelection, err.Error())
	}
	return sel, nil
}
