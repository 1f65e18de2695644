package model

import "time"

// Identity is a consented patient/encounter pair matched to a raw P21
// encounter identifier.
type Identity struct {
	SourceID     string
	EncounterNum int64
	PatientNum   int64
	Admission    time.Time
}

// Mapping maps raw encounter identifiers to their matched identity.
// It is built once by the matcher and only read afterwards.
type Mapping map[string]Identity

// IDs returns the mapped encounter identifiers as a set.
func (m Mapping) IDs() map[string]struct{} {
	ids := make(map[string]struct{}, len(m))
	for id := range m {
		ids[id] = struct{}{}
	}
	return ids
}
