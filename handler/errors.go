package handler

import (
	"errors"
	"net/http"

	"github.com/Merle-py/beehouse-pdf-app-sub000/service"
	"github.com/gin-gonic/gin"
)

// writeServiceError maps the service error taxonomy onto HTTP responses.
// State conflicts are 409 so the client knows to re-fetch; gateway and
// partial-completion failures are 502 because the fault is upstream, with
// the partial case flagged so automated retry logic can resume instead of
// restarting.
func writeServiceError(c *gin.Context, err error) {
	var genErr *service.GenerationError
	var gwErr *service.GatewayError
	var partialErr *service.PartialSubmissionError

	switch {
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
	case errors.Is(err, service.ErrAlreadySigned):
		c.JSON(http.StatusConflict, gin.H{"error": "Authorization is already signed"})
	case errors.Is(err, service.ErrInvalidState):
		c.JSON(http.StatusConflict, gin.H{"error": "Operation not allowed in the current status"})
	case errors.Is(err, service.ErrConcurrentModification):
		c.JSON(http.StatusConflict, gin.H{"error": "Authorization was modified concurrently, re-fetch and retry"})
	case errors.Is(err, service.ErrPropertyHasActiveAuthorization):
		c.JSON(http.StatusConflict, gin.H{"error": "Property already has an authorization awaiting signature"})
	case errors.As(err, &genErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":          genErr.Error(),
			"missing_fields": genErr.Missing,
		})
	case errors.As(err, &partialErr):
		c.JSON(http.StatusBadGateway, gin.H{
			"error":        "Submission incomplete: " + partialErr.Error(),
			"resumable":    true,
			"document_key": partialErr.DocumentKey,
		})
	case errors.As(err, &gwErr):
		c.JSON(http.StatusBadGateway, gin.H{"error": gwErr.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
