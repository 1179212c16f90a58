package csvtab

import (
	"math"
	"strconv"

	"example.com/canconv/internal/dbc"
)

// FormatValue renders one cell. Numeric values are rounded to 1e-9 to strip
// float decode noise (15.600000000000001 -> 15.6) and whole values render
// without a fraction (100.0 -> 100). Labels pass through unchanged.
func FormatValue(v dbc.Value) string {
	if v.IsText {
		return v.Label
	}
	return formatFloat(v.Num, 1e9)
}

// FormatTime renders a slot time rounded to one decimal place.
func FormatTime(t float64) string {
	return formatFloat(t, 10)
}

func formatFloat(f, scale float64) string {
	r := math.Round(f*scale) / scale
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return strconv.FormatFloat(r, 'f', -1, 64)
}
