package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Merle-py/beehouse-pdf-app-sub000/config"
	"github.com/Merle-py/beehouse-pdf-app-sub000/service"
	"github.com/gin-gonic/gin"
)

const maxWebhookBodyBytes = 1 << 20 // 1MB

// WebhookHandler receives Clicksign signature events. The signature header is
// an HMAC-SHA256 over the raw body; verification happens before any parsing.
type WebhookHandler struct {
	lifecycle *service.LifecycleService
	config    *config.ClicksignConfig
}

func NewWebhookHandler(lifecycle *service.LifecycleService, cfg *config.ClicksignConfig) *WebhookHandler {
	return &WebhookHandler{
		lifecycle: lifecycle,
		config:    cfg,
	}
}

// webhookEnvelope is the provider's payload shape. Only the fields the
// reconciler needs are bound; everything else is ignored.
type webhookEnvelope struct {
	Event struct {
		Name string `json:"name"`
		Data struct {
			Document struct {
				Key    string `json:"key"`
				Status string `json:"status"`
			} `json:"document"`
			Signer *struct {
				Key   string `json:"key"`
				Email string `json:"email"`
			} `json:"signer"`
		} `json:"data"`
	} `json:"event"`
}

// HandleEvent verifies, parses and applies one signature event.
func (h *WebhookHandler) HandleEvent(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBodyBytes)
	rawBody, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read body"})
		return
	}

	if !h.verifySignature(rawBody, c.GetHeader("Content-Hmac")) {
		slog.Warn("webhook rejected: signature verification failed",
			"remote", c.ClientIP())
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid signature"})
		return
	}

	var envelope webhookEnvelope
	if err := json.Unmarshal(rawBody, &envelope); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payload"})
		return
	}
	if envelope.Event.Data.Document.Key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Event is missing the document key"})
		return
	}

	ev := &service.SignatureEvent{
		Name:           envelope.Event.Name,
		DocumentKey:    envelope.Event.Data.Document.Key,
		DocumentStatus: envelope.Event.Data.Document.Status,
	}
	if envelope.Event.Data.Signer != nil {
		ev.SignerEmail = envelope.Event.Data.Signer.Email
	}

	if err := h.lifecycle.ApplyEvent(c.Request.Context(), ev); err != nil {
		if errors.Is(err, service.ErrNotFound) {
			slog.Warn("webhook for unknown document",
				"event", ev.Name, "document_key", ev.DocumentKey)
			c.JSON(http.StatusNotFound, gin.H{"error": "No authorization for document"})
			return
		}
		if errors.Is(err, service.ErrMalformedEvent) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Malformed event"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process event"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Event processed"})
}

// verifySignature checks the HMAC-SHA256 header against the raw body. A
// missing secret fails closed unless allow_unsigned is set, in which case the
// delivery is accepted with a warning.
func (h *WebhookHandler) verifySignature(body []byte, header string) bool {
	if h.config.WebhookSecret == "" {
		if h.config.AllowUnsigned {
			slog.Warn("webhook secret not configured, accepting unsigned delivery")
			return true
		}
		return false
	}

	sig := strings.TrimSpace(header)
	sig = strings.TrimPrefix(sig, "sha256=")
	got, err := hex.DecodeString(sig)
	if err != nil || len(got) == 0 {
		return false
	}

	mac := hmac.New(sha256.New, []byte(h.config.WebhookSecret))
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}
