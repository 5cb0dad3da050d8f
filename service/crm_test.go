package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Merle-py/beehouse-pdf-app-sub000/config"
)

func TestCRMServiceEnabled(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.CRMConfig
		enabled bool
	}{
		{"disabled", config.CRMConfig{Enabled: false, APIURL: "http://crm"}, false},
		{"no url", config.CRMConfig{Enabled: true}, false},
		{"configured", config.CRMConfig{Enabled: true, APIURL: "http://crm"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewCRMService(&tt.cfg)
			if svc.Enabled() != tt.enabled {
				t.Errorf("Expected Enabled()=%v", tt.enabled)
			}
		})
	}
}

func TestCRMServiceCreateRecord(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/records" {
			t.Errorf("Expected /records, got %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer crm-token" {
			t.Error("Expected bearer token header")
		}

		var reqBody crmRecordRequest
		json.NewDecoder(r.Body).Decode(&reqBody)
		if reqBody.Type != "property" {
			t.Errorf("Unexpected record type %q", reqBody.Type)
		}
		if reqBody.Fields["address"] != "Rua A, 100" {
			t.Errorf("Unexpected fields %v", reqBody.Fields)
		}

		json.NewEncoder(w).Encode(crmRecordResponse{ID: "crm-42"})
	}))
	defer server.Close()

	svc := NewCRMService(&config.CRMConfig{
		Enabled:  true,
		APIURL:   server.URL,
		APIToken: "crm-token",
	})

	id, err := svc.CreateRecord(context.Background(), "property", map[string]string{
		"address": "Rua A, 100",
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if id != "crm-42" {
		t.Errorf("Expected id 'crm-42', got %q", id)
	}
}

func TestCRMServiceCreateRecordError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"upstream down"}`, http.StatusBadGateway)
	}))
	defer server.Close()

	svc := NewCRMService(&config.CRMConfig{Enabled: true, APIURL: server.URL})

	_, err := svc.CreateRecord(context.Background(), "party", nil)
	if err == nil {
		t.Fatal("Expected error on non-2xx response")
	}
	if !strings.Contains(err.Error(), "status 502") {
		t.Errorf("Expected status in error, got %v", err)
	}
}
