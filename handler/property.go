package handler

import (
	"fmt"
	"net/http"

	"github.com/Merle-py/beehouse-pdf-app-sub000/middleware"
	"github.com/Merle-py/beehouse-pdf-app-sub000/model"
	"github.com/Merle-py/beehouse-pdf-app-sub000/pkg/logger"
	"github.com/Merle-py/beehouse-pdf-app-sub000/service"
	"github.com/gin-gonic/gin"
)

type PropertyHandler struct {
	store      *service.Store
	crmService *service.CRMService
}

func NewPropertyHandler(store *service.Store, crmSvc *service.CRMService) *PropertyHandler {
	return &PropertyHandler{
		store:      store,
		crmService: crmSvc,
	}
}

type CreatePropertyRequest struct {
	Address        string  `json:"address" binding:"required"`
	City           string  `json:"city" binding:"required"`
	State          string  `json:"state" binding:"required"`
	PostalCode     string  `json:"postal_code"`
	RegistryNumber string  `json:"registry_number" binding:"required"`
	AskingPrice    float64 `json:"asking_price" binding:"required,gt=0"`
}

// Create registers a property and mirrors it into the CRM when enabled
func (h *PropertyHandler) Create(c *gin.Context) {
	agency := middleware.GetAgency(c)

	var req CreatePropertyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	prop := &model.Property{
		Agency:         agency,
		Address:        req.Address,
		City:           req.City,
		State:          req.State,
		PostalCode:     req.PostalCode,
		RegistryNumber: req.RegistryNumber,
		AskingPrice:    req.AskingPrice,
	}
	if err := h.store.CreateProperty(prop); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create property: " + err.Error()})
		return
	}

	if h.crmService.Enabled() {
		crmID, err := h.crmService.CreateRecord(c.Request.Context(), "property", map[string]string{
			"address":         req.Address,
			"city":            req.City,
			"state":           req.State,
			"registry_number": req.RegistryNumber,
			"asking_price":    fmt.Sprintf("%.2f", req.AskingPrice),
			"agency":          agency,
		})
		if err != nil {
			// The local record stands; sync can be repeated later.
			logger.Warn(c.Request.Context(), "CRM sync failed for property",
				"property_id", prop.ID, "error", err)
		} else if err := h.store.SetPropertyCRMRecord(prop.ID, crmID); err != nil {
			logger.Warn(c.Request.Context(), "failed to persist CRM record id",
				"property_id", prop.ID, "error", err)
		} else {
			prop.CRMRecordID = crmID
		}
	}

	c.JSON(http.StatusCreated, prop)
}

// List returns all properties for the broker's agency
func (h *PropertyHandler) List(c *gin.Context) {
	agency := middleware.GetAgency(c)

	list, err := h.store.ListProperties(agency)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list properties: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"properties": list})
}

// Get returns a single property
func (h *PropertyHandler) Get(c *gin.Context) {
	agency := middleware.GetAgency(c)
	id, ok := parseID(c)
	if !ok {
		return
	}

	prop, err := h.store.GetProperty(id)
	if err != nil || prop.Agency != agency {
		c.JSON(http.StatusNotFound, gin.H{"error": "Property not found"})
		return
	}

	c.JSON(http.StatusOK, prop)
}
