package service

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Merle-py/beehouse-pdf-app-sub000/config"
	"github.com/Merle-py/beehouse-pdf-app-sub000/model"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Store is the gorm-backed persistence layer. Status transitions use
// conditional updates (WHERE on the current status) so that a submission
// racing a webhook delivery loses cleanly instead of overwriting it.
type Store struct {
	db *gorm.DB
}

func NewStore(cfg *config.DatabaseConfig) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(cfg.Path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(
		&model.Property{},
		&model.Party{},
		&model.CoOwner{},
		&model.Authorization{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	// One in-flight authorization per property. The application checks this
	// before creating work; the index catches the race the check cannot.
	if err := db.Exec(
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_authorizations_property_awaiting
		 ON authorizations (property_id) WHERE status = 'awaiting_signature'`,
	).Error; err != nil {
		return nil, fmt.Errorf("failed to create awaiting-signature index: %w", err)
	}

	slog.Info("store initialized", "path", cfg.Path)
	return &Store{db: db}, nil
}

// --- authorizations ---

func (s *Store) CreateAuthorization(a *model.Authorization) error {
	if a.Status == "" {
		a.Status = model.StatusDraft
	}
	if err := s.db.Create(a).Error; err != nil {
		return fmt.Errorf("failed to create authorization: %w", err)
	}
	return nil
}

func (s *Store) GetAuthorization(id uint) (*model.Authorization, error) {
	var a model.Authorization
	if err := s.db.First(&a, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load authorization: %w", err)
	}
	return &a, nil
}

// GetAuthorizationByDocumentKey resolves an inbound webhook's external
// document reference to the authorization it belongs to.
func (s *Store) GetAuthorizationByDocumentKey(key string) (*model.Authorization, error) {
	var a model.Authorization
	err := s.db.Where("clicksign_document_key = ?", key).First(&a).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load authorization by document key: %w", err)
	}
	return &a, nil
}

func (s *Store) ListAuthorizations(agency string) ([]model.Authorization, error) {
	var list []model.Authorization
	err := s.db.Where("agency = ?", agency).Order("created_at DESC").Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list authorizations: %w", err)
	}
	return list, nil
}

// UpdateDraftTerms changes contract terms while the record is still a draft.
// Terms are immutable once submission happened; the WHERE clause is the
// backstop for a submit racing the edit.
func (s *Store) UpdateDraftTerms(id uint, exclusivityDays int, commissionPct float64) error {
	res := s.db.Model(&model.Authorization{}).
		Where("id = ? AND status = ?", id, model.StatusDraft).
		Updates(map[string]any{
			"exclusivity_days": exclusivityDays,
			"commission_pct":   commissionPct,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to update draft terms: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrConcurrentModification
	}
	return nil
}

// DeleteDraft removes a draft authorization. Zero rows means the record was
// submitted (or deleted) in between.
func (s *Store) DeleteDraft(id uint) error {
	res := s.db.Where("id = ? AND status = ?", id, model.StatusDraft).
		Delete(&model.Authorization{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete draft: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrConcurrentModification
	}
	return nil
}

// SetArtifact persists the generated document reference before any gateway
// call is made.
func (s *Store) SetArtifact(id uint, path, filename string) error {
	res := s.db.Model(&model.Authorization{}).
		Where("id = ?", id).
		Updates(map[string]any{"pdf_path": path, "pdf_filename": filename})
	if res.Error != nil {
		return fmt.Errorf("failed to persist artifact reference: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetDocumentKey persists the external document key the moment the gateway
// returns it, so a failed submission can resume at signer registration
// instead of uploading a duplicate document.
func (s *Store) SetDocumentKey(id uint, key string) error {
	res := s.db.Model(&model.Authorization{}).
		Where("id = ?", id).
		Update("clicksign_document_key", key)
	if res.Error != nil {
		return fmt.Errorf("failed to persist document key: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkAwaiting is the final compare-and-swap persist of a submission. It only
// succeeds when the record is still a draft; otherwise another submission or
// a webhook got there first.
func (s *Store) MarkAwaiting(id uint, requestKey, signingStatus string, expiresAt time.Time) error {
	res := s.db.Model(&model.Authorization{}).
		Where("id = ? AND status = ?", id, model.StatusDraft).
		Updates(map[string]any{
			"status":                          model.StatusAwaitingSignature,
			"clicksign_request_signature_key": requestKey,
			"clicksign_status":                signingStatus,
			"expires_at":                      expiresAt,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to persist submission: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrConcurrentModification
	}
	return nil
}

// MarkSigned transitions awaiting_signature → signed. Returns false without
// error when the guard did not match, which callers treat as an idempotent
// no-op after checking the current status.
func (s *Store) MarkSigned(documentKey, signingStatus string, at time.Time) (bool, error) {
	res := s.db.Model(&model.Authorization{}).
		Where("clicksign_document_key = ? AND status = ?", documentKey, model.StatusAwaitingSignature).
		Updates(map[string]any{
			"status":           model.StatusSigned,
			"clicksign_status": signingStatus,
			"signed_at":        at,
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to mark signed: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// MarkCanceled transitions awaiting_signature → canceled.
func (s *Store) MarkCanceled(documentKey, signingStatus string) (bool, error) {
	res := s.db.Model(&model.Authorization{}).
		Where("clicksign_document_key = ? AND status = ?", documentKey, model.StatusAwaitingSignature).
		Updates(map[string]any{
			"status":           model.StatusCanceled,
			"clicksign_status": signingStatus,
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to mark canceled: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// SetSigningStatus updates the provider status mirror only, for partial
// progress events that change nothing about the internal lifecycle.
func (s *Store) SetSigningStatus(documentKey, signingStatus string) (bool, error) {
	res := s.db.Model(&model.Authorization{}).
		Where("clicksign_document_key = ? AND status = ?", documentKey, model.StatusAwaitingSignature).
		Update("clicksign_status", signingStatus)
	if res.Error != nil {
		return false, fmt.Errorf("failed to update signing status: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// HasActiveForProperty reports whether the property already has an
// authorization awaiting signature.
func (s *Store) HasActiveForProperty(propertyID uint) (bool, error) {
	var count int64
	err := s.db.Model(&model.Authorization{}).
		Where("property_id = ? AND status = ?", propertyID, model.StatusAwaitingSignature).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to count active authorizations: %w", err)
	}
	return count > 0, nil
}

// ListOverdue returns awaiting authorizations whose deadline has passed.
// Marking them expired is a scheduler concern, not handled here.
func (s *Store) ListOverdue(now time.Time) ([]model.Authorization, error) {
	var list []model.Authorization
	err := s.db.Where("status = ? AND expires_at IS NOT NULL AND expires_at < ?",
		model.StatusAwaitingSignature, now).Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list overdue authorizations: %w", err)
	}
	return list, nil
}

// --- parties ---

func (s *Store) CreateParty(p *model.Party) error {
	if err := s.db.Create(p).Error; err != nil {
		return fmt.Errorf("failed to create party: %w", err)
	}
	return nil
}

func (s *Store) GetParty(id uint) (*model.Party, error) {
	var p model.Party
	if err := s.db.Preload("CoOwners").First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load party: %w", err)
	}
	return &p, nil
}

func (s *Store) ListParties(agency string) ([]model.Party, error) {
	var list []model.Party
	err := s.db.Preload("CoOwners").Where("agency = ?", agency).
		Order("created_at DESC").Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list parties: %w", err)
	}
	return list, nil
}

func (s *Store) SetPartyCRMRecord(id uint, crmID string) error {
	return s.db.Model(&model.Party{}).Where("id = ?", id).
		Update("crm_record_id", crmID).Error
}

// --- properties ---

func (s *Store) CreateProperty(p *model.Property) error {
	if err := s.db.Create(p).Error; err != nil {
		return fmt.Errorf("failed to create property: %w", err)
	}
	return nil
}

func (s *Store) GetProperty(id uint) (*model.Property, error) {
	var p model.Property
	if err := s.db.First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load property: %w", err)
	}
	return &p, nil
}

func (s *Store) ListProperties(agency string) ([]model.Property, error) {
	var list []model.Property
	err := s.db.Where("agency = ?", agency).Order("created_at DESC").Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list properties: %w", err)
	}
	return list, nil
}

func (s *Store) SetPropertyCRMRecord(id uint, crmID string) error {
	return s.db.Model(&model.Property{}).Where("id = ?", id).
		Update("crm_record_id", crmID).Error
}
