package match

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/aktin/p21import/internal/normalize"
	"github.com/aktin/p21import/internal/store"
)

const (
	billingRoot   = "1.2.276.0.76.3.87686.1.45"
	encounterRoot = "1.2.276.0.76.3.87686.1.45.2"
	salt          = "pepper"
)

func newMatcher(t *testing.T, st store.Store) *Matcher {
	t.Helper()
	anon, err := normalize.NewAnonymizer("")
	if err != nil {
		t.Fatal(err)
	}
	return New(st, anon, salt, DefaultStrategies(billingRoot, encounterRoot), zerolog.Nop())
}

func pseudonym(t *testing.T, root, id string) string {
	t.Helper()
	anon, _ := normalize.NewAnonymizer("SHA-1")
	return anon.Pseudonym(root, id, salt)
}

func set(ids ...string) map[string]struct{} {
	s := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

var admissions = map[string]string{
	"1001": "202001011200",
	"1002": "202001022400",
	"1003": "202001031200",
}

func TestMatch_Billing(t *testing.T) {
	st := store.NewMemory()
	st.AddIdentity(store.ByBillingID, store.IdentityRow{Pseudonym: pseudonym(t, billingRoot, "1001"), EncounterNum: 11, PatientNum: 1})
	st.AddIdentity(store.ByBillingID, store.IdentityRow{Pseudonym: pseudonym(t, billingRoot, "1002"), EncounterNum: 12, PatientNum: 2})
	st.AddIdentity(store.ByBillingID, store.IdentityRow{Pseudonym: pseudonym(t, billingRoot, "9999"), EncounterNum: 99, PatientNum: 9})
	// Same encounter indexed twice must still map once.
	st.AddIdentity(store.ByBillingID, store.IdentityRow{Pseudonym: pseudonym(t, billingRoot, "1001"), EncounterNum: 11, PatientNum: 1})

	mapping, s, err := newMatcher(t, st).Match(context.Background(), set("1001", "1002", "1003"), admissions)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if s.Source != store.ByBillingID {
		t.Errorf("strategy = %s, want billing", s.Name)
	}
	if len(mapping) != 2 {
		t.Fatalf("mapping = %d entries, want 2", len(mapping))
	}
	if got := mapping["1001"]; got.EncounterNum != 11 || got.PatientNum != 1 {
		t.Errorf("1001 -> %+v", got)
	}
	if got := mapping["1002"].Admission.Format("15:04"); got != "23:59" {
		t.Errorf("1002 admission time = %s, want 23:59", got)
	}
}

func TestMatch_FallbackOnNoRows(t *testing.T) {
	st := store.NewMemory()
	st.AddIdentity(store.ByEncounterID, store.IdentityRow{Pseudonym: pseudonym(t, encounterRoot, "1003"), EncounterNum: 13, PatientNum: 3})

	mapping, s, err := newMatcher(t, st).Match(context.Background(), set("1001", "1003"), admissions)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if s.Source != store.ByEncounterID {
		t.Errorf("strategy = %s, want encounter", s.Name)
	}
	if len(mapping) != 1 || mapping["1003"].EncounterNum != 13 {
		t.Errorf("mapping = %+v", mapping)
	}
}

func TestMatch_NoFallbackOnOtherErrors(t *testing.T) {
	st := store.NewMemory()
	boom := errors.New("connection reset")
	st.FailIdentities = map[store.IdentitySource]error{store.ByBillingID: boom}
	st.AddIdentity(store.ByEncounterID, store.IdentityRow{Pseudonym: pseudonym(t, encounterRoot, "1003"), EncounterNum: 13, PatientNum: 3})

	_, _, err := newMatcher(t, st).Match(context.Background(), set("1003"), admissions)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
}

func TestMatch_EmptyJoinIsFatal(t *testing.T) {
	st := store.NewMemory()
	st.AddIdentity(store.ByBillingID, store.IdentityRow{Pseudonym: pseudonym(t, billingRoot, "9999"), EncounterNum: 99, PatientNum: 9})
	st.AddIdentity(store.ByEncounterID, store.IdentityRow{Pseudonym: pseudonym(t, encounterRoot, "1001"), EncounterNum: 11, PatientNum: 1})

	// Billing returned rows, so encounter matching is not attempted.
	_, _, err := newMatcher(t, st).Match(context.Background(), set("1001"), admissions)
	if !errors.Is(err, ErrNoMatch) {
		t.Fatalf("err = %v, want ErrNoMatch", err)
	}
}

func TestMatch_BothEmpty(t *testing.T) {
	_, _, err := newMatcher(t, store.NewMemory()).Match(context.Background(), set("1001"), admissions)
	if !errors.Is(err, ErrNoMatch) {
		t.Fatalf("err = %v, want ErrNoMatch", err)
	}
}

func TestMatch_SaltChangesPseudonym(t *testing.T) {
	anon, _ := normalize.NewAnonymizer("SHA-1")
	a := anon.Pseudonym(billingRoot, "1001", "")
	b := anon.Pseudonym(billingRoot, "1001", salt)
	if a == b {
		t.Fatal("salt did not change the pseudonym")
	}
	if a != anon.Pseudonym(billingRoot, "1001", "") {
		t.Fatal("pseudonym is not deterministic")
	}
}
