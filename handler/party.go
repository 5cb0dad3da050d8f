package handler

import (
	"net/http"

	"github.com/Merle-py/beehouse-pdf-app-sub000/middleware"
	"github.com/Merle-py/beehouse-pdf-app-sub000/model"
	"github.com/Merle-py/beehouse-pdf-app-sub000/pkg/logger"
	"github.com/Merle-py/beehouse-pdf-app-sub000/service"
	"github.com/gin-gonic/gin"
)

type PartyHandler struct {
	store      *service.Store
	crmService *service.CRMService
}

func NewPartyHandler(store *service.Store, crmSvc *service.CRMService) *PartyHandler {
	return &PartyHandler{
		store:      store,
		crmService: crmSvc,
	}
}

type CoOwnerRequest struct {
	Name  string `json:"name" binding:"required"`
	TaxID string `json:"tax_id" binding:"required"`
	Email string `json:"email"`
}

type CreatePartyRequest struct {
	Type  string `json:"type" binding:"required,oneof=individual married_individual co_owners company"`
	Name  string `json:"name" binding:"required"`
	Email string `json:"email" binding:"required,email"`
	Phone string `json:"phone"`
	TaxID string `json:"tax_id" binding:"required"`

	SpouseName  string `json:"spouse_name"`
	SpouseTaxID string `json:"spouse_tax_id"`

	LegalRepName  string `json:"legal_rep_name"`
	LegalRepTaxID string `json:"legal_rep_tax_id"`

	CoOwners []CoOwnerRequest `json:"co_owners" binding:"dive"`
}

// Create registers a contracting party. Variant completeness is checked
// again at artifact generation; this only rejects shapes that could never
// produce a document.
func (h *PartyHandler) Create(c *gin.Context) {
	agency := middleware.GetAgency(c)

	var req CreatePartyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	party := &model.Party{
		Agency:        agency,
		Type:          req.Type,
		Name:          req.Name,
		Email:         req.Email,
		Phone:         req.Phone,
		TaxID:         req.TaxID,
		SpouseName:    req.SpouseName,
		SpouseTaxID:   req.SpouseTaxID,
		LegalRepName:  req.LegalRepName,
		LegalRepTaxID: req.LegalRepTaxID,
	}
	for _, co := range req.CoOwners {
		party.CoOwners = append(party.CoOwners, model.CoOwner{
			Name:  co.Name,
			TaxID: co.TaxID,
			Email: co.Email,
		})
	}

	if err := h.store.CreateParty(party); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create party: " + err.Error()})
		return
	}

	if h.crmService.Enabled() {
		crmID, err := h.crmService.CreateRecord(c.Request.Context(), "contact", map[string]string{
			"type":   req.Type,
			"name":   req.Name,
			"email":  req.Email,
			"tax_id": req.TaxID,
			"agency": agency,
		})
		if err != nil {
			logger.Warn(c.Request.Context(), "CRM sync failed for party",
				"party_id", party.ID, "error", err)
		} else if err := h.store.SetPartyCRMRecord(party.ID, crmID); err != nil {
			logger.Warn(c.Request.Context(), "failed to persist CRM record id",
				"party_id", party.ID, "error", err)
		} else {
			party.CRMRecordID = crmID
		}
	}

	c.JSON(http.StatusCreated, party)
}

// List returns all parties for the broker's agency
func (h *PartyHandler) List(c *gin.Context) {
	agency := middleware.GetAgency(c)

	list, err := h.store.ListParties(agency)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list parties: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"parties": list})
}

// Get returns a single party
func (h *PartyHandler) Get(c *gin.Context) {
	agency := middleware.GetAgency(c)
	id, ok := parseID(c)
	if !ok {
		return
	}

	party, err := h.store.GetParty(id)
	if err != nil || party.Agency != agency {
		c.JSON(http.StatusNotFound, gin.H{"error": "Party not found"})
		return
	}

	c.JSON(http.StatusOK, party)
}
