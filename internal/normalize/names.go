package normalize

import "strings"

// ColumnName normalizes a CSV header: trimmed, lowercase, dashes removed.
// "KH-internes-Kennzeichen" becomes "khinterneskennzeichen".
func ColumnName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ToLower(name)
	return strings.ReplaceAll(name, "-", "")
}
