package model

import "time"

// ImportSummary captures metrics from a single archive import run.
type ImportSummary struct {
	ArchivePath       string
	SourceTag         string
	Strategy          string
	TotalRows         int64
	ValidRows         int64
	MatchedRows       int64
	FactsUploaded     int64
	NewEncounters     int64
	UpdatedEncounters int64
	FactsByKind       map[FileKind]int64
	DroppedByKind     map[FileKind]int64
	SkippedKinds      []FileKind
	DurationValidate  time.Duration
	DurationMatch     time.Duration
	DurationUpload    time.Duration
	DurationTotal     time.Duration
}

// Uploaded returns the number of encounters written, new or updated.
func (s *ImportSummary) Uploaded() int64 {
	return s.NewEncounters + s.UpdatedEncounters
}
