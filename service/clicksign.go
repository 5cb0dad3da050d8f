package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Merle-py/beehouse-pdf-app-sub000/config"
)

// ClicksignService wraps the three signing-provider calls a submission needs:
// upload the document, register signers, bind them as a signature list.
// None of the calls retry internally. The provider does not deduplicate, so a
// blind retry of UploadDocument would create a duplicate external document;
// retry policy belongs to the lifecycle controller.
type ClicksignService struct {
	config     *config.ClicksignConfig
	httpClient *http.Client
}

func NewClicksignService(cfg *config.ClicksignConfig) *ClicksignService {
	return &ClicksignService{
		config: cfg,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

type clicksignDocumentRequest struct {
	Document struct {
		Path          string `json:"path"`
		ContentBase64 string `json:"content_base64"`
		DeadlineAt    string `json:"deadline_at"`
		AutoClose     bool   `json:"auto_close"`
		Locale        string `json:"locale"`
	} `json:"document"`
}

type clicksignDocumentResponse struct {
	Document struct {
		Key      string `json:"key"`
		Filename string `json:"filename"`
		Status   string `json:"status"`
	} `json:"document"`
}

type clicksignSignerRequest struct {
	Signer struct {
		Name          string `json:"name"`
		Email         string `json:"email"`
		Documentation string `json:"documentation"`
		PhoneNumber   string `json:"phone_number,omitempty"`
	} `json:"signer"`
}

type clicksignSignerResponse struct {
	Signer struct {
		Key string `json:"key"`
	} `json:"signer"`
}

// SignerRole binds a registered signer key to the role it signs under.
type SignerRole struct {
	Key  string `json:"key"`
	Role string `json:"sign_as"`
}

type clicksignListRequest struct {
	List struct {
		DocumentKey string       `json:"document_key"`
		Signers     []SignerRole `json:"signers"`
	} `json:"list"`
}

type clicksignListResponse struct {
	List struct {
		Key string `json:"key"`
	} `json:"list"`
}

// UploadDocument submits the document payload and returns the external
// document key.
func (s *ClicksignService) UploadDocument(ctx context.Context, path string, content []byte, deadline time.Time) (string, error) {
	var reqBody clicksignDocumentRequest
	reqBody.Document.Path = path
	reqBody.Document.ContentBase64 = base64.StdEncoding.EncodeToString(content)
	reqBody.Document.DeadlineAt = deadline.UTC().Format(time.RFC3339)
	reqBody.Document.AutoClose = true
	reqBody.Document.Locale = s.config.Locale

	var result clicksignDocumentResponse
	if err := s.post(ctx, "upload document", "/api/v1/documents", reqBody, &result); err != nil {
		return "", err
	}
	if result.Document.Key == "" {
		return "", fmt.Errorf("clicksign returned no document key")
	}
	return result.Document.Key, nil
}

// CreateSigner registers a signing party and returns the external signer key.
func (s *ClicksignService) CreateSigner(ctx context.Context, name, email, taxID, phone string) (string, error) {
	var reqBody clicksignSignerRequest
	reqBody.Signer.Name = name
	reqBody.Signer.Email = email
	reqBody.Signer.Documentation = taxID
	reqBody.Signer.PhoneNumber = phone

	var result clicksignSignerResponse
	if err := s.post(ctx, "create signer", "/api/v1/signers", reqBody, &result); err != nil {
		return "", err
	}
	if result.Signer.Key == "" {
		return "", fmt.Errorf("clicksign returned no signer key")
	}
	return result.Signer.Key, nil
}

// CreateSignatureList binds registered signers to a document as a signature
// request and returns the external request key.
func (s *ClicksignService) CreateSignatureList(ctx context.Context, documentKey string, signers []SignerRole) (string, error) {
	var reqBody clicksignListRequest
	reqBody.List.DocumentKey = documentKey
	reqBody.List.Signers = signers

	var result clicksignListResponse
	if err := s.post(ctx, "create signature list", "/api/v1/lists", reqBody, &result); err != nil {
		return "", err
	}
	if result.List.Key == "" {
		return "", fmt.Errorf("clicksign returned no list key")
	}
	return result.List.Key, nil
}

func (s *ClicksignService) post(ctx context.Context, op, path string, body, out any) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s%s?access_token=%s", s.config.APIURL, path, s.config.AccessToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &GatewayError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Message:    providerMessage(respBody),
		}
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w, body: %s", err, string(respBody))
	}
	return nil
}

// providerMessage pulls the human-readable error out of a Clicksign error
// body, falling back to the raw payload.
func providerMessage(body []byte) string {
	var parsed struct {
		Errors []string `json:"errors"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && len(parsed.Errors) > 0 {
		return parsed.Errors[0]
	}
	if len(body) > 512 {
		body = body[:512]
	}
	return string(body)
}
