package service

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/Merle-py/beehouse-pdf-app-sub000/config"
	"github.com/Merle-py/beehouse-pdf-app-sub000/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := NewStore(&config.DatabaseConfig{
		Path: filepath.Join(t.TempDir(), "test.db"),
	})
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	return store
}

func seedPropertyAndParty(t *testing.T, store *Store, agency string) (*model.Property, *model.Party) {
	t.Helper()

	prop := &model.Property{
		Agency:         agency,
		Address:        "Rua das Flores, 100",
		City:           "Curitiba",
		State:          "PR",
		PostalCode:     "80010-000",
		RegistryNumber: "12345",
		AskingPrice:    850000,
	}
	if err := store.CreateProperty(prop); err != nil {
		t.Fatalf("Failed to create property: %v", err)
	}

	party := &model.Party{
		Agency: agency,
		Type:   model.PartyIndividual,
		Name:   "Joao da Silva",
		Email:  "joao@example.com",
		TaxID:  "111.222.333-44",
	}
	if err := store.CreateParty(party); err != nil {
		t.Fatalf("Failed to create party: %v", err)
	}

	return prop, party
}

func seedDraft(t *testing.T, store *Store, agency string) *model.Authorization {
	t.Helper()

	prop, party := seedPropertyAndParty(t, store, agency)
	a := &model.Authorization{
		Agency:          agency,
		CreatedBy:       "broker1",
		PropertyID:      prop.ID,
		PartyID:         party.ID,
		ExclusivityDays: 0,
		CommissionPct:   6,
		Status:          model.StatusDraft,
	}
	if err := store.CreateAuthorization(a); err != nil {
		t.Fatalf("Failed to create authorization: %v", err)
	}
	return a
}

func TestMarkAwaitingConflict(t *testing.T) {
	store := newTestStore(t)
	a := seedDraft(t, store, "agency1")

	expires := time.Now().AddDate(0, 0, 90)
	if err := store.MarkAwaiting(a.ID, "R1", "running", expires); err != nil {
		t.Fatalf("First MarkAwaiting failed: %v", err)
	}

	// A second CAS persist must lose: the record is no longer a draft.
	err := store.MarkAwaiting(a.ID, "R2", "running", expires)
	if !errors.Is(err, ErrConcurrentModification) {
		t.Errorf("Expected ErrConcurrentModification, got %v", err)
	}

	got, err := store.GetAuthorization(a.ID)
	if err != nil {
		t.Fatalf("Failed to reload: %v", err)
	}
	if got.ClicksignRequestKey != "R1" {
		t.Errorf("Expected request key R1 preserved, got %q", got.ClicksignRequestKey)
	}
}

func TestMarkSignedIdempotent(t *testing.T) {
	store := newTestStore(t)
	a := seedDraft(t, store, "agency1")

	if err := store.SetDocumentKey(a.ID, "D1"); err != nil {
		t.Fatalf("SetDocumentKey failed: %v", err)
	}
	if err := store.MarkAwaiting(a.ID, "R1", "running", time.Now().AddDate(0, 0, 90)); err != nil {
		t.Fatalf("MarkAwaiting failed: %v", err)
	}

	applied, err := store.MarkSigned("D1", "closed", time.Now())
	if err != nil {
		t.Fatalf("MarkSigned failed: %v", err)
	}
	if !applied {
		t.Error("Expected first MarkSigned to apply")
	}

	got, _ := store.GetAuthorization(a.ID)
	if got.Status != model.StatusSigned {
		t.Errorf("Expected status signed, got %q", got.Status)
	}
	if got.SignedAt == nil {
		t.Fatal("Expected signed_at to be set")
	}
	firstSignedAt := *got.SignedAt

	applied, err = store.MarkSigned("D1", "closed", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("Second MarkSigned failed: %v", err)
	}
	if applied {
		t.Error("Expected second MarkSigned to be a no-op")
	}

	got, _ = store.GetAuthorization(a.ID)
	if !got.SignedAt.Equal(firstSignedAt) {
		t.Error("Expected signed_at to be unchanged on second application")
	}
}

func TestAwaitingIndexPerProperty(t *testing.T) {
	store := newTestStore(t)
	a := seedDraft(t, store, "agency1")

	// Second draft against the same property.
	b := &model.Authorization{
		Agency:        "agency1",
		CreatedBy:     "broker2",
		PropertyID:    a.PropertyID,
		PartyID:       a.PartyID,
		CommissionPct: 5,
		Status:        model.StatusDraft,
	}
	if err := store.CreateAuthorization(b); err != nil {
		t.Fatalf("Failed to create second draft: %v", err)
	}

	expires := time.Now().AddDate(0, 0, 90)
	if err := store.MarkAwaiting(a.ID, "R1", "running", expires); err != nil {
		t.Fatalf("First MarkAwaiting failed: %v", err)
	}

	// The partial unique index must reject a second in-flight authorization
	// for the same property.
	if err := store.MarkAwaiting(b.ID, "R2", "running", expires); err == nil {
		t.Error("Expected second in-flight authorization for the property to be rejected")
	}
}

func TestDeleteDraftGuard(t *testing.T) {
	store := newTestStore(t)
	a := seedDraft(t, store, "agency1")

	if err := store.MarkAwaiting(a.ID, "R1", "running", time.Now().AddDate(0, 0, 90)); err != nil {
		t.Fatalf("MarkAwaiting failed: %v", err)
	}

	err := store.DeleteDraft(a.ID)
	if !errors.Is(err, ErrConcurrentModification) {
		t.Errorf("Expected ErrConcurrentModification deleting a submitted record, got %v", err)
	}

	if _, err := store.GetAuthorization(a.ID); err != nil {
		t.Errorf("Expected record to survive, got %v", err)
	}
}

func TestGetAuthorizationByDocumentKey(t *testing.T) {
	store := newTestStore(t)
	a := seedDraft(t, store, "agency1")

	if err := store.SetDocumentKey(a.ID, "D42"); err != nil {
		t.Fatalf("SetDocumentKey failed: %v", err)
	}

	got, err := store.GetAuthorizationByDocumentKey("D42")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if got.ID != a.ID {
		t.Errorf("Expected authorization %d, got %d", a.ID, got.ID)
	}

	if _, err := store.GetAuthorizationByDocumentKey("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestUpdateDraftTermsGuard(t *testing.T) {
	store := newTestStore(t)
	a := seedDraft(t, store, "agency1")

	if err := store.UpdateDraftTerms(a.ID, 30, 5); err != nil {
		t.Fatalf("UpdateDraftTerms on draft failed: %v", err)
	}

	if err := store.MarkAwaiting(a.ID, "R1", "running", time.Now().AddDate(0, 0, 30)); err != nil {
		t.Fatalf("MarkAwaiting failed: %v", err)
	}

	err := store.UpdateDraftTerms(a.ID, 60, 4)
	if !errors.Is(err, ErrConcurrentModification) {
		t.Errorf("Expected ErrConcurrentModification, got %v", err)
	}

	got, _ := store.GetAuthorization(a.ID)
	if got.ExclusivityDays != 30 || got.CommissionPct != 5 {
		t.Errorf("Expected terms unchanged (30, 5), got (%d, %v)",
			got.ExclusivityDays, got.CommissionPct)
	}
}

func TestListOverdue(t *testing.T) {
	store := newTestStore(t)
	a := seedDraft(t, store, "agency1")

	past := time.Now().Add(-24 * time.Hour)
	if err := store.MarkAwaiting(a.ID, "R1", "running", past); err != nil {
		t.Fatalf("MarkAwaiting failed: %v", err)
	}

	overdue, err := store.ListOverdue(time.Now())
	if err != nil {
		t.Fatalf("ListOverdue failed: %v", err)
	}
	if len(overdue) != 1 || overdue[0].ID != a.ID {
		t.Errorf("Expected one overdue authorization %d, got %v", a.ID, overdue)
	}
}
