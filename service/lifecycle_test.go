package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/Merle-py/beehouse-pdf-app-sub000/config"
	"github.com/Merle-py/beehouse-pdf-app-sub000/model"
)

// fakeGateway counts calls and returns canned keys so tests can assert which
// steps ran and which were skipped on resume.
type fakeGateway struct {
	uploadCalls int
	signerCalls int
	listCalls   int

	failSigner bool
	failList   bool

	lastDeadline time.Time
	lastSigners  []SignerRole
}

func (g *fakeGateway) UploadDocument(_ context.Context, path string, content []byte, deadline time.Time) (string, error) {
	g.uploadCalls++
	g.lastDeadline = deadline
	return fmt.Sprintf("D%d", g.uploadCalls), nil
}

func (g *fakeGateway) CreateSigner(_ context.Context, name, email, taxID, phone string) (string, error) {
	if g.failSigner {
		return "", &GatewayError{Op: "create signer", StatusCode: 500, Message: "boom"}
	}
	g.signerCalls++
	return fmt.Sprintf("S%d", g.signerCalls), nil
}

func (g *fakeGateway) CreateSignatureList(_ context.Context, documentKey string, signers []SignerRole) (string, error) {
	if g.failList {
		return "", &GatewayError{Op: "create signature list", StatusCode: 500, Message: "boom"}
	}
	g.listCalls++
	g.lastSigners = signers
	return fmt.Sprintf("R%d", g.listCalls), nil
}

func (g *fakeGateway) totalCalls() int {
	return g.uploadCalls + g.signerCalls + g.listCalls
}

// fakeObjects is an in-memory artifact store.
type fakeObjects struct {
	files map[string][]byte
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{files: make(map[string][]byte)}
}

func (o *fakeObjects) UploadFile(_ context.Context, objectName string, content []byte, _ string) error {
	o.files[objectName] = content
	return nil
}

func (o *fakeObjects) DownloadFile(_ context.Context, objectName string) ([]byte, error) {
	content, ok := o.files[objectName]
	if !ok {
		return nil, fmt.Errorf("object %s not found", objectName)
	}
	return content, nil
}

func (o *fakeObjects) DeleteFile(_ context.Context, objectName string) error {
	delete(o.files, objectName)
	return nil
}

func testClicksignConfig() *config.ClicksignConfig {
	return &config.ClicksignConfig{
		DeadlineDays: 90,
		Locale:       "pt-BR",
		Representative: config.Representative{
			Name:  "Imobiliaria Ltda",
			Email: "contratos@imobiliaria.example",
			TaxID: "00.000.000/0001-00",
		},
	}
}

func newTestLifecycle(t *testing.T) (*LifecycleService, *Store, *fakeGateway, *fakeObjects) {
	t.Helper()

	store := newTestStore(t)
	gateway := &fakeGateway{}
	objects := newFakeObjects()
	svc := NewLifecycleService(store, objects, gateway, testClicksignConfig())
	return svc, store, gateway, objects
}

func createDraft(t *testing.T, svc *LifecycleService, store *Store, exclusivityDays int) *model.Authorization {
	t.Helper()

	prop, party := seedPropertyAndParty(t, store, "agency1")
	a, err := svc.CreateAuthorization("agency1", "broker1", prop.ID, party.ID, exclusivityDays, 6)
	if err != nil {
		t.Fatalf("Failed to create authorization: %v", err)
	}
	return a
}

func TestSubmitForSigning(t *testing.T) {
	svc, store, gateway, objects := newTestLifecycle(t)
	a := createDraft(t, svc, store, 0)

	got, err := svc.SubmitForSigning(context.Background(), "agency1", a.ID)
	if err != nil {
		t.Fatalf("SubmitForSigning failed: %v", err)
	}

	if got.Status != model.StatusAwaitingSignature {
		t.Errorf("Expected status awaiting_signature, got %q", got.Status)
	}
	if got.ClicksignDocumentKey != "D1" {
		t.Errorf("Expected document key D1, got %q", got.ClicksignDocumentKey)
	}
	if got.ClicksignRequestKey != "R1" {
		t.Errorf("Expected request key R1, got %q", got.ClicksignRequestKey)
	}
	if got.ClicksignStatus != "running" {
		t.Errorf("Expected status mirror running, got %q", got.ClicksignStatus)
	}
	if gateway.signerCalls != 2 {
		t.Errorf("Expected 2 registered signers, got %d", gateway.signerCalls)
	}
	if len(gateway.lastSigners) != 2 || gateway.lastSigners[0].Key != "S1" || gateway.lastSigners[1].Key != "S2" {
		t.Errorf("Expected signature list bound to S1, S2, got %v", gateway.lastSigners)
	}

	// Exclusivity 0 falls back to the 90-day deadline.
	wantExpiry := time.Now().AddDate(0, 0, 90)
	if got.ExpiresAt == nil {
		t.Fatal("Expected expires_at to be set")
	}
	if diff := got.ExpiresAt.Sub(wantExpiry); diff < -time.Minute || diff > time.Minute {
		t.Errorf("Expected expires_at near %v, got %v", wantExpiry, *got.ExpiresAt)
	}

	// The artifact was generated and stored before submission.
	if got.PDFPath == "" || got.PDFFilename == "" {
		t.Error("Expected artifact reference to be persisted")
	}
	if _, ok := objects.files[got.PDFPath]; !ok {
		t.Error("Expected artifact bytes in the object store")
	}
}

func TestSubmitForSigningExclusivityExpiry(t *testing.T) {
	svc, store, _, _ := newTestLifecycle(t)
	a := createDraft(t, svc, store, 45)

	got, err := svc.SubmitForSigning(context.Background(), "agency1", a.ID)
	if err != nil {
		t.Fatalf("SubmitForSigning failed: %v", err)
	}

	wantExpiry := time.Now().AddDate(0, 0, 45)
	if diff := got.ExpiresAt.Sub(wantExpiry); diff < -time.Minute || diff > time.Minute {
		t.Errorf("Expected expires_at near %v, got %v", wantExpiry, *got.ExpiresAt)
	}
}

func TestSubmitForSigningAlreadySigned(t *testing.T) {
	svc, store, gateway, _ := newTestLifecycle(t)
	a := createDraft(t, svc, store, 0)

	if _, err := svc.SubmitForSigning(context.Background(), "agency1", a.ID); err != nil {
		t.Fatalf("SubmitForSigning failed: %v", err)
	}
	if err := svc.ApplyEvent(context.Background(), &SignatureEvent{
		Name:        EventDocumentSigned,
		DocumentKey: "D1",
	}); err != nil {
		t.Fatalf("ApplyEvent failed: %v", err)
	}

	callsBefore := gateway.totalCalls()
	_, err := svc.SubmitForSigning(context.Background(), "agency1", a.ID)
	if !errors.Is(err, ErrAlreadySigned) {
		t.Errorf("Expected ErrAlreadySigned, got %v", err)
	}
	if gateway.totalCalls() != callsBefore {
		t.Error("Expected zero gateway calls for an already signed authorization")
	}
}

func TestSubmitForSigningAwaitingRejected(t *testing.T) {
	svc, store, _, _ := newTestLifecycle(t)
	a := createDraft(t, svc, store, 0)

	if _, err := svc.SubmitForSigning(context.Background(), "agency1", a.ID); err != nil {
		t.Fatalf("SubmitForSigning failed: %v", err)
	}

	_, err := svc.SubmitForSigning(context.Background(), "agency1", a.ID)
	if !errors.Is(err, ErrInvalidState) {
		t.Errorf("Expected ErrInvalidState, got %v", err)
	}
}

func TestSubmitForSigningResumesAfterSignerFailure(t *testing.T) {
	svc, store, gateway, _ := newTestLifecycle(t)
	a := createDraft(t, svc, store, 0)

	gateway.failSigner = true
	_, err := svc.SubmitForSigning(context.Background(), "agency1", a.ID)

	var partial *PartialSubmissionError
	if !errors.As(err, &partial) {
		t.Fatalf("Expected PartialSubmissionError, got %v", err)
	}
	if partial.DocumentKey != "D1" {
		t.Errorf("Expected partial error to carry document key D1, got %q", partial.DocumentKey)
	}

	// The document key is already persisted and the record is still a draft,
	// so a retry can resume.
	got, _ := store.GetAuthorization(a.ID)
	if got.ClicksignDocumentKey != "D1" {
		t.Errorf("Expected document key D1 persisted, got %q", got.ClicksignDocumentKey)
	}
	if got.Status != model.StatusDraft {
		t.Errorf("Expected status draft after partial failure, got %q", got.Status)
	}

	// Retry: the document upload must be skipped, not repeated.
	gateway.failSigner = false
	got, err = svc.SubmitForSigning(context.Background(), "agency1", a.ID)
	if err != nil {
		t.Fatalf("Resumed submission failed: %v", err)
	}
	if gateway.uploadCalls != 1 {
		t.Errorf("Expected a single document upload across retries, got %d", gateway.uploadCalls)
	}
	if got.Status != model.StatusAwaitingSignature {
		t.Errorf("Expected status awaiting_signature after resume, got %q", got.Status)
	}
	if got.ClicksignDocumentKey != "D1" {
		t.Errorf("Expected original document key D1 after resume, got %q", got.ClicksignDocumentKey)
	}
}

func TestSubmitForSigningListFailure(t *testing.T) {
	svc, store, gateway, _ := newTestLifecycle(t)
	a := createDraft(t, svc, store, 0)

	gateway.failList = true
	_, err := svc.SubmitForSigning(context.Background(), "agency1", a.ID)

	var partial *PartialSubmissionError
	if !errors.As(err, &partial) {
		t.Fatalf("Expected PartialSubmissionError, got %v", err)
	}
	got, _ := store.GetAuthorization(a.ID)
	if got.Status != model.StatusDraft {
		t.Errorf("Expected status draft, got %q", got.Status)
	}
}

func TestSubmitForSigningGenerationFailure(t *testing.T) {
	svc, store, gateway, _ := newTestLifecycle(t)

	prop, _ := seedPropertyAndParty(t, store, "agency1")
	party := &model.Party{
		Agency: "agency1",
		Type:   model.PartyMarriedIndividual,
		Name:   "Maria Souza",
		Email:  "maria@example.com",
		TaxID:  "555.666.777-88",
		// spouse fields missing
	}
	if err := store.CreateParty(party); err != nil {
		t.Fatalf("Failed to create party: %v", err)
	}
	a, err := svc.CreateAuthorization("agency1", "broker1", prop.ID, party.ID, 0, 6)
	if err != nil {
		t.Fatalf("Failed to create authorization: %v", err)
	}

	_, err = svc.SubmitForSigning(context.Background(), "agency1", a.ID)
	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("Expected GenerationError, got %v", err)
	}
	if gateway.totalCalls() != 0 {
		t.Error("Expected no gateway calls when generation fails")
	}

	got, _ := store.GetAuthorization(a.ID)
	if got.Status != model.StatusDraft || got.PDFPath != "" {
		t.Error("Expected a clean draft after generation failure")
	}
}

func TestUpdateDraftImmutableAfterSubmission(t *testing.T) {
	svc, store, _, _ := newTestLifecycle(t)
	a := createDraft(t, svc, store, 30)

	if _, err := svc.SubmitForSigning(context.Background(), "agency1", a.ID); err != nil {
		t.Fatalf("SubmitForSigning failed: %v", err)
	}

	_, err := svc.UpdateDraft("agency1", a.ID, 60, 4)
	if !errors.Is(err, ErrInvalidState) {
		t.Errorf("Expected ErrInvalidState, got %v", err)
	}

	got, _ := store.GetAuthorization(a.ID)
	if got.ExclusivityDays != 30 || got.CommissionPct != 6 {
		t.Errorf("Expected terms unchanged (30, 6), got (%d, %v)",
			got.ExclusivityDays, got.CommissionPct)
	}
}

func TestDeleteDraftGuards(t *testing.T) {
	svc, store, _, _ := newTestLifecycle(t)
	a := createDraft(t, svc, store, 0)

	if _, err := svc.SubmitForSigning(context.Background(), "agency1", a.ID); err != nil {
		t.Fatalf("SubmitForSigning failed: %v", err)
	}

	err := svc.DeleteDraft(context.Background(), "agency1", a.ID)
	if !errors.Is(err, ErrInvalidState) {
		t.Errorf("Expected ErrInvalidState, got %v", err)
	}

	b := createDraft(t, svc, store, 0)
	if err := svc.DeleteDraft(context.Background(), "agency1", b.ID); err != nil {
		t.Fatalf("DeleteDraft failed: %v", err)
	}
	if _, err := store.GetAuthorization(b.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected draft removed, got %v", err)
	}
}

func TestCreateAuthorizationOnePerProperty(t *testing.T) {
	svc, store, _, _ := newTestLifecycle(t)
	a := createDraft(t, svc, store, 0)

	if _, err := svc.SubmitForSigning(context.Background(), "agency1", a.ID); err != nil {
		t.Fatalf("SubmitForSigning failed: %v", err)
	}

	_, err := svc.CreateAuthorization("agency1", "broker2", a.PropertyID, a.PartyID, 0, 5)
	if !errors.Is(err, ErrPropertyHasActiveAuthorization) {
		t.Errorf("Expected ErrPropertyHasActiveAuthorization, got %v", err)
	}
}

func TestApplyEventDocumentSignedIdempotent(t *testing.T) {
	svc, store, _, _ := newTestLifecycle(t)
	a := createDraft(t, svc, store, 0)

	if _, err := svc.SubmitForSigning(context.Background(), "agency1", a.ID); err != nil {
		t.Fatalf("SubmitForSigning failed: %v", err)
	}

	ev := &SignatureEvent{Name: EventDocumentSigned, DocumentKey: "D1", DocumentStatus: "closed"}
	if err := svc.ApplyEvent(context.Background(), ev); err != nil {
		t.Fatalf("First ApplyEvent failed: %v", err)
	}

	got, _ := store.GetAuthorization(a.ID)
	if got.Status != model.StatusSigned {
		t.Errorf("Expected status signed, got %q", got.Status)
	}
	if got.SignedAt == nil {
		t.Fatal("Expected signed_at to be set")
	}
	firstSignedAt := *got.SignedAt

	// Second delivery of the same event: no-op success.
	if err := svc.ApplyEvent(context.Background(), ev); err != nil {
		t.Fatalf("Second ApplyEvent failed: %v", err)
	}
	got, _ = store.GetAuthorization(a.ID)
	if got.Status != model.StatusSigned {
		t.Errorf("Expected status still signed, got %q", got.Status)
	}
	if !got.SignedAt.Equal(firstSignedAt) {
		t.Error("Expected signed_at unchanged on duplicate delivery")
	}
}

func TestApplyEventDocumentCanceled(t *testing.T) {
	svc, store, _, _ := newTestLifecycle(t)
	a := createDraft(t, svc, store, 0)

	if _, err := svc.SubmitForSigning(context.Background(), "agency1", a.ID); err != nil {
		t.Fatalf("SubmitForSigning failed: %v", err)
	}

	ev := &SignatureEvent{Name: EventDocumentCanceled, DocumentKey: "D1"}
	if err := svc.ApplyEvent(context.Background(), ev); err != nil {
		t.Fatalf("ApplyEvent failed: %v", err)
	}

	got, _ := store.GetAuthorization(a.ID)
	if got.Status != model.StatusCanceled {
		t.Errorf("Expected status canceled, got %q", got.Status)
	}
	if got.SignedAt != nil {
		t.Error("Expected signed_at to stay empty")
	}
}

func TestApplyEventPartialProgress(t *testing.T) {
	svc, store, _, _ := newTestLifecycle(t)
	a := createDraft(t, svc, store, 0)

	if _, err := svc.SubmitForSigning(context.Background(), "agency1", a.ID); err != nil {
		t.Fatalf("SubmitForSigning failed: %v", err)
	}

	ev := &SignatureEvent{
		Name:        EventSignerSigned,
		DocumentKey: "D1",
		SignerEmail: "joao@example.com",
	}
	if err := svc.ApplyEvent(context.Background(), ev); err != nil {
		t.Fatalf("ApplyEvent failed: %v", err)
	}

	// Only the provider status mirror moves; the lifecycle stays put.
	got, _ := store.GetAuthorization(a.ID)
	if got.Status != model.StatusAwaitingSignature {
		t.Errorf("Expected status awaiting_signature, got %q", got.Status)
	}
	if got.ClicksignStatus != "partially_signed" {
		t.Errorf("Expected mirror partially_signed, got %q", got.ClicksignStatus)
	}
}

func TestApplyEventUnknownDocument(t *testing.T) {
	svc, _, _, _ := newTestLifecycle(t)

	err := svc.ApplyEvent(context.Background(), &SignatureEvent{
		Name:        EventDocumentSigned,
		DocumentKey: "missing",
	})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestApplyEventMissingKey(t *testing.T) {
	svc, _, _, _ := newTestLifecycle(t)

	err := svc.ApplyEvent(context.Background(), &SignatureEvent{Name: EventDocumentSigned})
	if !errors.Is(err, ErrMalformedEvent) {
		t.Errorf("Expected ErrMalformedEvent, got %v", err)
	}
}

func TestApplyEventUnknownNameIgnored(t *testing.T) {
	svc, store, _, _ := newTestLifecycle(t)
	a := createDraft(t, svc, store, 0)

	if _, err := svc.SubmitForSigning(context.Background(), "agency1", a.ID); err != nil {
		t.Fatalf("SubmitForSigning failed: %v", err)
	}

	err := svc.ApplyEvent(context.Background(), &SignatureEvent{
		Name:        "document.viewed",
		DocumentKey: "D1",
	})
	if err != nil {
		t.Errorf("Expected unknown event to be ignored, got %v", err)
	}

	got, _ := store.GetAuthorization(a.ID)
	if got.Status != model.StatusAwaitingSignature {
		t.Errorf("Expected status unchanged, got %q", got.Status)
	}
}
