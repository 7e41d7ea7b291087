// Package stats converts units and filters year-keyed tables returned by
// remote forest-change analyses.
package stats

import "strconv"

// SquareMetersPerHectare is the number of square meters in one hectare.
const SquareMetersPerHectare = 10000.0

// SquareMetersToHectares converts an area to hectares rounded to two
// decimal places.
func SquareMetersToHectares(m2 float64) float64 {
	return Round2(m2 / SquareMetersPerHectare)
}

// Round2 rounds to two decimal places using the exact binary value of v, so
// exact halves go to the even digit (0.125 -> 0.12, 0.375 -> 0.38).
func Round2(v float64) float64 {
	r, _ := strconv.ParseFloat(strconv.FormatFloat(v, 'f', 2, 64), 64)
	return r
}

// YearValues maps a year (as a decimal string, e.g. "2017") to a value.
type YearValues map[string]float64

// Scale multiplies every value by factor and returns a new table.
func Scale(values YearValues, factor float64) YearValues {
	out := make(YearValues, len(values))
	for k, v := range values {
		out[k] = v * factor
	}
	return out
}
