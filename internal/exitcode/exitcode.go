// Package exitcode lists the process exit codes of p21import.
package exitcode

const (
	Success         = 0
	UsageError      = 1
	ValidationError = 2 // archive, file, column or row validation
	DBConnError     = 3
	MatchError      = 4
	UploadError     = 5
	ReportError     = 6
)
