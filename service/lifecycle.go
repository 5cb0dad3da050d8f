package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Merle-py/beehouse-pdf-app-sub000/config"
	"github.com/Merle-py/beehouse-pdf-app-sub000/model"
)

// SignatureGateway is the slice of the signing provider the lifecycle
// controller drives. ClicksignService implements it; tests substitute fakes.
type SignatureGateway interface {
	UploadDocument(ctx context.Context, path string, content []byte, deadline time.Time) (string, error)
	CreateSigner(ctx context.Context, name, email, taxID, phone string) (string, error)
	CreateSignatureList(ctx context.Context, documentKey string, signers []SignerRole) (string, error)
}

// ObjectStore is the artifact storage surface the controller needs.
// MinioService implements it.
type ObjectStore interface {
	UploadFile(ctx context.Context, objectName string, content []byte, contentType string) error
	DownloadFile(ctx context.Context, objectName string) ([]byte, error)
	DeleteFile(ctx context.Context, objectName string) error
}

// LifecycleService owns the authorization state machine: draft →
// awaiting_signature → {signed | canceled}. It generates the contract
// artifact, drives the three gateway calls in order and reconciles webhook
// events against current state.
type LifecycleService struct {
	store   *Store
	objects ObjectStore
	gateway SignatureGateway
	cfg     *config.ClicksignConfig
}

func NewLifecycleService(store *Store, objects ObjectStore, gateway SignatureGateway, cfg *config.ClicksignConfig) *LifecycleService {
	return &LifecycleService{
		store:   store,
		objects: objects,
		gateway: gateway,
		cfg:     cfg,
	}
}

// CreateAuthorization creates a draft against a property and contracting
// party of the caller's agency. A property with an authorization already
// awaiting signature cannot take another one.
func (s *LifecycleService) CreateAuthorization(agency, broker string, propertyID, partyID uint, exclusivityDays int, commissionPct float64) (*model.Authorization, error) {
	prop, err := s.store.GetProperty(propertyID)
	if err != nil {
		return nil, err
	}
	party, err := s.store.GetParty(partyID)
	if err != nil {
		return nil, err
	}
	if prop.Agency != agency || party.Agency != agency {
		return nil, ErrNotFound
	}

	active, err := s.store.HasActiveForProperty(propertyID)
	if err != nil {
		return nil, err
	}
	if active {
		return nil, ErrPropertyHasActiveAuthorization
	}

	a := &model.Authorization{
		Agency:          agency,
		CreatedBy:       broker,
		PropertyID:      propertyID,
		PartyID:         partyID,
		ExclusivityDays: exclusivityDays,
		CommissionPct:   commissionPct,
		Status:          model.StatusDraft,
	}
	if err := s.store.CreateAuthorization(a); err != nil {
		return nil, err
	}
	return a, nil
}

// GetAuthorization loads an authorization scoped to the caller's agency.
func (s *LifecycleService) GetAuthorization(agency string, id uint) (*model.Authorization, error) {
	a, err := s.store.GetAuthorization(id)
	if err != nil {
		return nil, err
	}
	if a.Agency != agency {
		return nil, ErrNotFound
	}
	return a, nil
}

// ListAuthorizations returns all of an agency's authorizations.
func (s *LifecycleService) ListAuthorizations(agency string) ([]model.Authorization, error) {
	return s.store.ListAuthorizations(agency)
}

// UpdateDraft changes contract terms. Terms, party and property are
// immutable once the authorization left draft.
func (s *LifecycleService) UpdateDraft(agency string, id uint, exclusivityDays int, commissionPct float64) (*model.Authorization, error) {
	a, err := s.GetAuthorization(agency, id)
	if err != nil {
		return nil, err
	}
	if a.Status != model.StatusDraft {
		return nil, ErrInvalidState
	}
	if err := s.store.UpdateDraftTerms(id, exclusivityDays, commissionPct); err != nil {
		return nil, err
	}
	return s.store.GetAuthorization(id)
}

// DeleteDraft removes a draft and its stored artifact, if any.
func (s *LifecycleService) DeleteDraft(ctx context.Context, agency string, id uint) error {
	a, err := s.GetAuthorization(agency, id)
	if err != nil {
		return err
	}
	if a.Status != model.StatusDraft {
		return ErrInvalidState
	}
	if err := s.store.DeleteDraft(id); err != nil {
		return err
	}
	if a.PDFPath != "" {
		if err := s.objects.DeleteFile(ctx, a.PDFPath); err != nil {
			slog.Warn("failed to delete artifact of removed draft",
				"authorization_id", id, "pdf_path", a.PDFPath, "error", err)
		}
	}
	return nil
}

// SubmitForSigning runs the submission sequence: ensure artifact, upload the
// document, register both signers, bind the signature list, then persist the
// transition with a compare-and-swap on the draft status.
//
// Each external key is persisted the moment it is obtained. If signer
// registration or list binding fails, the error is a *PartialSubmissionError
// and a later call resumes at signer registration: the stored document key
// makes the document upload a skip, never a duplicate.
func (s *LifecycleService) SubmitForSigning(ctx context.Context, agency string, id uint) (*model.Authorization, error) {
	a, err := s.GetAuthorization(agency, id)
	if err != nil {
		return nil, err
	}
	switch a.Status {
	case model.StatusDraft:
		// proceed
	case model.StatusSigned:
		return nil, ErrAlreadySigned
	default:
		return nil, ErrInvalidState
	}

	party, err := s.store.GetParty(a.PartyID)
	if err != nil {
		return nil, err
	}
	prop, err := s.store.GetProperty(a.PropertyID)
	if err != nil {
		return nil, err
	}

	content, err := s.ensureArtifact(ctx, a, prop, party)
	if err != nil {
		return nil, err
	}

	deadline := s.expiry(a.ExclusivityDays)

	docKey := a.ClicksignDocumentKey
	if docKey == "" {
		docKey, err = s.gateway.UploadDocument(ctx, "/"+a.PDFFilename, content, deadline)
		if err != nil {
			// Nothing external was created; the caller may retry as-is.
			return nil, fmt.Errorf("failed to submit document: %w", err)
		}
		if err := s.store.SetDocumentKey(a.ID, docKey); err != nil {
			// The external document exists but we could not record it.
			// Surface the key so it can be reconciled by hand.
			slog.Error("orphaned clicksign document: key could not be persisted",
				"authorization_id", a.ID, "document_key", docKey, "error", err)
			return nil, &PartialSubmissionError{Step: "persist document key", DocumentKey: docKey, Err: err}
		}
	} else {
		slog.Info("resuming submission with existing document",
			"authorization_id", a.ID, "document_key", docKey)
	}

	partySignerKey, err := s.gateway.CreateSigner(ctx,
		party.SignerName(), party.Email, party.SignerTaxID(), party.Phone)
	if err != nil {
		return nil, &PartialSubmissionError{Step: "register party signer", DocumentKey: docKey, Err: err}
	}

	rep := s.cfg.Representative
	repSignerKey, err := s.gateway.CreateSigner(ctx, rep.Name, rep.Email, rep.TaxID, rep.Phone)
	if err != nil {
		return nil, &PartialSubmissionError{Step: "register representative signer", DocumentKey: docKey, Err: err}
	}

	requestKey, err := s.gateway.CreateSignatureList(ctx, docKey, []SignerRole{
		{Key: partySignerKey, Role: "contractor"},
		{Key: repSignerKey, Role: "contractee"},
	})
	if err != nil {
		return nil, &PartialSubmissionError{Step: "bind signature list", DocumentKey: docKey, Err: err}
	}

	// The external flow is fully set up; from here only the local persist
	// may be retried. Re-running the gateway calls would duplicate state.
	if err := s.persistSubmission(a.ID, requestKey, deadline); err != nil {
		return nil, err
	}

	slog.Info("authorization submitted for signature",
		"authorization_id", a.ID,
		"document_key", docKey,
		"request_key", requestKey,
		"expires_at", deadline)

	return s.store.GetAuthorization(a.ID)
}

// ensureArtifact returns the contract bytes, generating and storing them
// when the authorization has none yet. The artifact reference is persisted
// before any gateway call happens.
func (s *LifecycleService) ensureArtifact(ctx context.Context, a *model.Authorization, prop *model.Property, party *model.Party) ([]byte, error) {
	if a.PDFPath != "" {
		content, err := s.objects.DownloadFile(ctx, a.PDFPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load stored artifact: %w", err)
		}
		return content, nil
	}

	content, err := RenderAuthorizationDocument(a, prop, party)
	if err != nil {
		return nil, err
	}

	filename := fmt.Sprintf("autorizacao-venda-%d.pdf", a.ID)
	objectName := fmt.Sprintf("%s/authorizations/%d/%s", a.Agency, a.ID, filename)
	if err := s.objects.UploadFile(ctx, objectName, content, "application/pdf"); err != nil {
		return nil, fmt.Errorf("failed to store artifact: %w", err)
	}
	if err := s.store.SetArtifact(a.ID, objectName, filename); err != nil {
		return nil, err
	}
	a.PDFPath = objectName
	a.PDFFilename = filename
	return content, nil
}

// persistSubmission is the final CAS write. A conflict means a concurrent
// submission or webhook won the race and is not retried; transient database
// errors retry the persist alone.
func (s *LifecycleService) persistSubmission(id uint, requestKey string, expiresAt time.Time) error {
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		err = s.store.MarkAwaiting(id, requestKey, "running", expiresAt)
		if err == nil || errors.Is(err, ErrConcurrentModification) {
			return err
		}
		slog.Warn("retrying submission persist",
			"authorization_id", id, "attempt", attempt+1, "error", err)
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("submission persisted externally but not locally: %w", err)
}

func (s *LifecycleService) expiry(exclusivityDays int) time.Time {
	days := exclusivityDays
	if days <= 0 {
		days = s.cfg.DeadlineDays
	}
	return time.Now().AddDate(0, 0, days)
}

// Recognized webhook event names. Anything else is acknowledged and ignored.
const (
	EventDocumentSigned   = "document.signed"
	EventDocumentCanceled = "document.canceled"
	EventSignerSigned     = "signer.signed"
)

// SignatureEvent is a webhook event after boundary parsing: a closed set of
// names plus the external document reference it applies to.
type SignatureEvent struct {
	Name           string
	DocumentKey    string
	DocumentStatus string
	SignerEmail    string
}

// ApplyEvent maps a verified provider event onto a state transition. All
// transitions are idempotent: a second document.signed for an already signed
// authorization is a no-op success and signed_at does not move.
func (s *LifecycleService) ApplyEvent(ctx context.Context, ev *SignatureEvent) error {
	if ev.DocumentKey == "" {
		return ErrMalformedEvent
	}

	a, err := s.store.GetAuthorizationByDocumentKey(ev.DocumentKey)
	if err != nil {
		return err
	}

	switch ev.Name {
	case EventDocumentSigned:
		applied, err := s.store.MarkSigned(ev.DocumentKey, mirrorOr(ev, "closed"), time.Now())
		if err != nil {
			return err
		}
		if !applied {
			s.logStaleEvent(ev, a)
		}
	case EventDocumentCanceled:
		applied, err := s.store.MarkCanceled(ev.DocumentKey, mirrorOr(ev, "canceled"))
		if err != nil {
			return err
		}
		if !applied {
			s.logStaleEvent(ev, a)
		}
	case EventSignerSigned:
		applied, err := s.store.SetSigningStatus(ev.DocumentKey, mirrorOr(ev, "partially_signed"))
		if err != nil {
			return err
		}
		if applied {
			slog.Info("partial signature recorded",
				"authorization_id", a.ID, "signer", ev.SignerEmail)
		}
	default:
		slog.Info("ignoring unrecognized signature event",
			"event", ev.Name, "document_key", ev.DocumentKey)
	}
	return nil
}

func (s *LifecycleService) logStaleEvent(ev *SignatureEvent, a *model.Authorization) {
	// The guard did not match: the authorization already left
	// awaiting_signature. Treated as a benign duplicate.
	slog.Info("signature event had no effect",
		"event", ev.Name,
		"authorization_id", a.ID,
		"status", a.Status)
}

func mirrorOr(ev *SignatureEvent, fallback string) string {
	if ev.DocumentStatus != "" {
		return ev.DocumentStatus
	}
	return fallback
}
