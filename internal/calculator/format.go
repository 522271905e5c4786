package calculator

import (
	"math"
	"strconv"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// grouped renders a count with thousands separators, e.g. 1,250,000.
func grouped(v float64) string {
	return printer.Sprintf("%d", int64(math.Round(v)))
}

// num renders a user-entered number the shortest way (10, 0.5, 1e-06).
func num(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
