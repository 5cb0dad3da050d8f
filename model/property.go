package model

import (
	"time"
)

// Property is the real-estate asset an authorization is issued against.
type Property struct {
	ID     uint   `gorm:"primaryKey" json:"id"`
	Agency string `gorm:"index" json:"agency"`

	Address        string  `json:"address"`
	City           string  `json:"city"`
	State          string  `json:"state"`
	PostalCode     string  `json:"postal_code"`
	RegistryNumber string  `json:"registry_number"` // matrícula
	AskingPrice    float64 `json:"asking_price"`

	CRMRecordID string `gorm:"column:crm_record_id" json:"crm_record_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Property) TableName() string { return "properties" }
