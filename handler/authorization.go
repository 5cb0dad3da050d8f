package handler

import (
	"net/http"
	"strconv"

	"github.com/Merle-py/beehouse-pdf-app-sub000/middleware"
	"github.com/Merle-py/beehouse-pdf-app-sub000/service"
	"github.com/gin-gonic/gin"
)

type AuthorizationHandler struct {
	lifecycle    *service.LifecycleService
	minioService *service.MinioService
}

func NewAuthorizationHandler(lifecycle *service.LifecycleService, minioSvc *service.MinioService) *AuthorizationHandler {
	return &AuthorizationHandler{
		lifecycle:    lifecycle,
		minioService: minioSvc,
	}
}

type CreateAuthorizationRequest struct {
	PropertyID      uint    `json:"property_id" binding:"required"`
	PartyID         uint    `json:"party_id" binding:"required"`
	ExclusivityDays int     `json:"exclusivity_days" binding:"min=0"`
	CommissionPct   float64 `json:"commission_pct" binding:"required,gt=0,lte=100"`
}

type UpdateAuthorizationRequest struct {
	ExclusivityDays int     `json:"exclusivity_days" binding:"min=0"`
	CommissionPct   float64 `json:"commission_pct" binding:"required,gt=0,lte=100"`
}

// Create registers a new draft authorization
func (h *AuthorizationHandler) Create(c *gin.Context) {
	agency := middleware.GetAgency(c)
	broker := middleware.GetUsername(c)

	var req CreateAuthorizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	a, err := h.lifecycle.CreateAuthorization(agency, broker,
		req.PropertyID, req.PartyID, req.ExclusivityDays, req.CommissionPct)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, a)
}

// List returns all authorizations for the broker's agency
func (h *AuthorizationHandler) List(c *gin.Context) {
	agency := middleware.GetAgency(c)

	list, err := h.lifecycle.ListAuthorizations(agency)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"authorizations": list})
}

// Get returns a single authorization
func (h *AuthorizationHandler) Get(c *gin.Context) {
	agency := middleware.GetAgency(c)
	id, ok := parseID(c)
	if !ok {
		return
	}

	a, err := h.lifecycle.GetAuthorization(agency, id)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, a)
}

// Update changes the contract terms of a draft
func (h *AuthorizationHandler) Update(c *gin.Context) {
	agency := middleware.GetAgency(c)
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req UpdateAuthorizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	a, err := h.lifecycle.UpdateDraft(agency, id, req.ExclusivityDays, req.CommissionPct)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, a)
}

// Delete removes a draft authorization
func (h *AuthorizationHandler) Delete(c *gin.Context) {
	agency := middleware.GetAgency(c)
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.lifecycle.DeleteDraft(c.Request.Context(), agency, id); err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Authorization deleted"})
}

// Submit sends the authorization to the signing provider
func (h *AuthorizationHandler) Submit(c *gin.Context) {
	agency := middleware.GetAgency(c)
	id, ok := parseID(c)
	if !ok {
		return
	}

	a, err := h.lifecycle.SubmitForSigning(c.Request.Context(), agency, id)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, a)
}

// Document returns a presigned download URL for the generated artifact
func (h *AuthorizationHandler) Document(c *gin.Context) {
	agency := middleware.GetAgency(c)
	id, ok := parseID(c)
	if !ok {
		return
	}

	a, err := h.lifecycle.GetAuthorization(agency, id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	if a.PDFPath == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "No document generated yet"})
		return
	}

	url, err := h.minioService.GetPresignedURL(c.Request.Context(), a.PDFPath)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate URL: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"url":      url,
		"filename": a.PDFFilename,
	})
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid id"})
		return 0, false
	}
	return uint(id), true
}
