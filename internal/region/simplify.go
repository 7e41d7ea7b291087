package region

// Simplification tolerances (degrees) applied to administrative boundaries
// of very large or very detailed countries before they are reduced remotely.
// Countries and admin-1 units not listed are sent unsimplified.
var admin0Tolerance = map[string]float64{
	"ATA": 0.3, "RUS": 0.3, "CAN": 0.3, "GRL": 0.3, "USA": 0.3, "CHN": 0.3,
	"AUS": 0.1, "BRA": 0.1, "KAZ": 0.1, "ARG": 0.1, "IND": 0.1, "MNG": 0.1,
	"DZA": 0.1, "MEX": 0.1, "COD": 0.1, "SAU": 0.1, "IRN": 0.1, "SWE": 0.1,
	"LBY": 0.1, "SDN": 0.1, "IDN": 0.1,
	"FIN": 0.01, "NOR": 0.01, "SJM": 0.01, "ZAF": 0.01, "UKR": 0.01,
	"MLI": 0.01, "TCD": 0.01, "PER": 0.01, "AGO": 0.01, "NER": 0.01,
	"CHL": 0.01, "TUR": 0.01, "EGY": 0.01, "MRT": 0.01, "BOL": 0.01,
	"PAK": 0.01, "ETH": 0.01, "FRA": 0.01, "COL": 0.01,
}

var admin1Tolerance = map[string]map[int]float64{
	"RUS": {
		60: 0.3, 35: 0.3,
		12: 0.1, 80: 0.1, 18: 0.1, 28: 0.1, 30: 0.1, 4: 0.1, 40: 0.1, 32: 0.1, 24: 0.1, 83: 0.1,
		3: 0.01, 69: 0.01, 9: 0.01, 46: 0.01, 26: 0.01, 45: 0.01, 66: 0.01, 55: 0.01, 50: 0.01,
	},
	"CAN": {
		8: 0.3, 6: 0.3, 11: 0.3,
		9: 0.1, 2: 0.1, 1: 0.1, 3: 0.1, 12: 0.1, 13: 0.1, 5: 0.1,
	},
	"GRL": {2: 0.3, 3: 0.3, 5: 0.1},
	"USA": {
		2:  0.3,
		44: 0.1,
		27: 0.01, 5: 0.01, 32: 0.01, 29: 0.01, 3: 0.01, 23: 0.01, 38: 0.01, 6: 0.01, 51: 0.01, 24: 0.01, 13: 0.01,
	},
	"AUS": {11: 0.3, 7: 0.3, 6: 0.1, 8: 0.1, 5: 0.1},
	"CHN": {
		28: 0.3,
		19: 0.1, 29: 0.1, 21: 0.1, 11: 0.1,
		26: 0.01, 5: 0.01, 30: 0.01,
	},
	"BRA": {
		4: 0.1, 14: 0.1, 12: 0.1,
		13: 0.01, 5: 0.01, 11: 0.01, 9: 0.01, 10: 0.01, 21: 0.01,
	},
	"NER": {1: 0.1},
	"DZA": {41: 0.01, 1: 0.01, 22: 0.01},
	"KAZ": {9: 0.01, 3: 0.01, 5: 0.01, 11: 0.01, 10: 0.01, 1: 0.01},
	"SAU": {8: 0.01, 7: 0.01},
	"MLI": {9: 0.01},
	"LBY": {6: 0.01},
	"EGY": {14: 0.01},
	"ZAF": {8: 0.01},
	"PAK": {2: 0.01},
	"SDN": {10: 0.01, 8: 0.01},
	"IND": {29: 0.01, 19: 0.01, 20: 0.01},
	"ARG": {1: 0.01, 20: 0.01, 4: 0.01},
	"PER": {17: 0.01},
	"BOL": {8: 0.01},
	"ETH": {8: 0.01, 9: 0.01},
	"IDN": {23: 0.01},
	"SJM": {2: 0.01},
}

// SimplifyTolerance returns the simplification tolerance for a country
// boundary, keyed by ISO 3166-1 alpha-3 code.
func SimplifyTolerance(iso string) (float64, bool) {
	v, ok := admin0Tolerance[iso]
	return v, ok
}

// AdminSimplifyTolerance returns the tolerance for an admin-1 unit within a
// country.
func AdminSimplifyTolerance(iso string, adm1 int) (float64, bool) {
	units, ok := admin1Tolerance[iso]
	if !ok {
		return 0, false
	}
	v, ok := units[adm1]
	return v, ok
}
