package normalize

import "strings"

// Decimal converts a German decimal literal to dot notation: 100,50 becomes
// 100.50.
func Decimal(raw string) string {
	return strings.Replace(strings.TrimSpace(raw), ",", ".", 1)
}

// PadLeft zero-pads value to width when it is exactly one character short.
// Other lengths are returned unchanged so the validator can reject them.
func PadLeft(value string, width int) string {
	if value != "" && len(value) == width-1 {
		return "0" + value
	}
	return value
}
