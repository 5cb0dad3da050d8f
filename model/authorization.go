package model

import (
	"time"
)

// Authorization represents a sales-authorization contract and its signing
// lifecycle. The clicksign_* columns hold the external correlation keys and
// the provider's own status vocabulary, kept separate from Status for
// reconciliation diagnostics.
type Authorization struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	Agency     string `gorm:"index" json:"agency"`
	CreatedBy  string `json:"created_by"`
	PropertyID uint   `gorm:"index" json:"property_id"`
	PartyID    uint   `gorm:"index" json:"party_id"`

	ExclusivityDays int     `json:"exclusivity_days"` // 0 = no exclusivity
	CommissionPct   float64 `json:"commission_pct"`

	Status string `gorm:"index;default:draft" json:"status"`

	ClicksignDocumentKey string `gorm:"column:clicksign_document_key;index" json:"clicksign_document_key,omitempty"`
	ClicksignRequestKey  string `gorm:"column:clicksign_request_signature_key" json:"clicksign_request_signature_key,omitempty"`
	ClicksignStatus      string `gorm:"column:clicksign_status" json:"clicksign_status,omitempty"`

	PDFPath     string `gorm:"column:pdf_path" json:"pdf_path,omitempty"`
	PDFFilename string `gorm:"column:pdf_filename" json:"pdf_filename,omitempty"`

	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	SignedAt  *time.Time `json:"signed_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (Authorization) TableName() string { return "authorizations" }

// Authorization status constants
const (
	StatusDraft             = "draft"
	StatusAwaitingSignature = "awaiting_signature"
	StatusSigned            = "signed"
	StatusCanceled          = "canceled"
	StatusExpired           = "expired"
)

// Active reports whether the authorization is in-flight: past draft but not
// yet in a terminal state.
func (a *Authorization) Active() bool {
	return a.Status == StatusAwaitingSignature
}

// Terminal reports whether the authorization reached a final state.
func (a *Authorization) Terminal() bool {
	switch a.Status {
	case StatusSigned, StatusCanceled, StatusExpired:
		return true
	}
	return false
}
