package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/aktin/p21import/internal/store"
)

// ErrProvenanceConflict is returned when an encounter carries more than one
// importer marker, so it is unclear which earlier import to replace.
var ErrProvenanceConflict = errors.New("encounter has more than one import marker")

// reconcile removes the facts an earlier import wrote for an encounter. It
// reports whether the encounter was imported before and how many facts were
// deleted.
func reconcile(ctx context.Context, tx store.Tx, encounterNum int64) (bool, int64, error) {
	sources, err := tx.ScriptSources(ctx, encounterNum)
	if err != nil {
		return false, 0, err
	}
	switch len(sources) {
	case 0:
		return false, 0, nil
	case 1:
		n, err := tx.DeleteFacts(ctx, encounterNum, sources[0])
		if err != nil {
			return false, 0, err
		}
		return true, n, nil
	}
	return false, 0, fmt.Errorf("%w: %d markers", ErrProvenanceConflict, len(sources))
}
