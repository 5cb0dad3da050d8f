package model

import (
	"time"
)

// Party type constants. The type selects which of the optional field groups
// below are required; the artifact generator validates them exhaustively.
const (
	PartyIndividual        = "individual"
	PartyMarriedIndividual = "married_individual"
	PartyCoOwners          = "co_owners"
	PartyCompany           = "company"
)

// Party is the contracting party authorizing the sale. One record covers all
// four shapes (individual, married individual, multiple co-owners, company);
// Type tags which variant the record is.
type Party struct {
	ID     uint   `gorm:"primaryKey" json:"id"`
	Agency string `gorm:"index" json:"agency"`
	Type   string `json:"type"`

	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
	TaxID string `gorm:"column:tax_id" json:"tax_id"` // CPF or CNPJ

	// married_individual
	SpouseName  string `json:"spouse_name,omitempty"`
	SpouseTaxID string `gorm:"column:spouse_tax_id" json:"spouse_tax_id,omitempty"`

	// company
	LegalRepName  string `json:"legal_rep_name,omitempty"`
	LegalRepTaxID string `gorm:"column:legal_rep_tax_id" json:"legal_rep_tax_id,omitempty"`

	// co_owners
	CoOwners []CoOwner `gorm:"constraint:OnDelete:CASCADE" json:"co_owners,omitempty"`

	CRMRecordID string `gorm:"column:crm_record_id" json:"crm_record_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Party) TableName() string { return "parties" }

// CoOwner is one additional owner on a co_owners party.
type CoOwner struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	PartyID uint   `gorm:"index" json:"party_id"`
	Name    string `json:"name"`
	TaxID   string `gorm:"column:tax_id" json:"tax_id"`
	Email   string `json:"email,omitempty"`
}

func (CoOwner) TableName() string { return "co_owners" }

// SignerName returns the person who signs on behalf of the party: the legal
// representative for companies, the party themselves otherwise.
func (p *Party) SignerName() string {
	if p.Type == PartyCompany {
		return p.LegalRepName
	}
	return p.Name
}

// SignerTaxID returns the government id of the signing person.
func (p *Party) SignerTaxID() string {
	if p.Type == PartyCompany {
		return p.LegalRepTaxID
	}
	return p.TaxID
}
