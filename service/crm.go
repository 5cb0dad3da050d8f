package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Merle-py/beehouse-pdf-app-sub000/config"
)

// CRMService mirrors newly registered parties and properties into the
// agency's CRM. The lifecycle engine itself never depends on CRM state; a
// failed sync leaves the local record usable and the sync can be repeated.
type CRMService struct {
	config     *config.CRMConfig
	httpClient *http.Client
}

func NewCRMService(cfg *config.CRMConfig) *CRMService {
	return &CRMService{
		config: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Enabled reports whether CRM sync is configured.
func (s *CRMService) Enabled() bool {
	return s.config.Enabled && s.config.APIURL != ""
}

type crmRecordRequest struct {
	Type   string            `json:"type"`
	Fields map[string]string `json:"fields"`
}

type crmRecordResponse struct {
	ID string `json:"id"`
}

// CreateRecord materializes a record in the CRM and returns its external id.
func (s *CRMService) CreateRecord(ctx context.Context, recordType string, fields map[string]string) (string, error) {
	jsonData, err := json.Marshal(crmRecordRequest{Type: recordType, Fields: fields})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.config.APIURL+"/records", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.config.APIToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("CRM API error: status %d: %s", resp.StatusCode, string(body))
	}

	var result crmRecordResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if result.ID == "" {
		return "", fmt.Errorf("CRM returned no record id")
	}
	return result.ID, nil
}
