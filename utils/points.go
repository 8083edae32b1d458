package utils

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var pointsPrinter = message.NewPrinter(language.English)

// FormatPoints renders integer points for display, e.g. 12500 -> "12,500".
func FormatPoints(points int64) string {
	return pointsPrinter.Sprintf("%d", points)
}
