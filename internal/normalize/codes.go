package normalize

import "strings"

// ICDCode canonicalizes an ICD-10-GM code by inserting the dot after the
// three-character category when it is missing. F2424 becomes F24.24.
// Codes of three characters or less are returned unchanged.
func ICDCode(code string) string {
	r := []rune(code)
	if len(r) > 3 && r[3] != '.' {
		return string(r[:3]) + "." + string(r[3:])
	}
	return code
}

// OPSCode canonicalizes an OPS code: a dash after the first digit and a dot
// after the four-character group, e.g. 964922 becomes 9-649.22.
func OPSCode(code string) string {
	r := []rune(code)
	if len(r) > 1 && r[1] != '-' {
		r = append(r[:1], append([]rune{'-'}, r[1:]...)...)
	}
	if len(r) > 5 && r[5] != '.' {
		r = append(r[:5], append([]rune{'.'}, r[5:]...)...)
	}
	return string(r)
}

// UpperCode trims and uppercases a categorical code used inside a concept name.
func UpperCode(v string) string {
	return strings.ToUpper(strings.TrimSpace(v))
}
