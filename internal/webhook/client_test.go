package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestPostStatusTranslatesRowIndex(t *testing.T) {
	var got statusPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("Expected JSON body, got error %v", err)
		}
	}))
	defer server.Close()

	client := NewClient(server.URL)
	if !client.PostStatus(context.Background(), 4, "Cerrada") {
		t.Fatal("Expected completed request to report success")
	}
	// Zero-based index 4 plus one header row lands on sheet row 6.
	if got.Row != 6 {
		t.Errorf("Expected sheet row 6, got %d", got.Row)
	}
	if got.Status != "Cerrada" {
		t.Errorf("Expected status 'Cerrada', got %q", got.Status)
	}
}

func TestPostStatusOpaqueResponseCountsAsSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "script error", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	if !client.PostStatus(context.Background(), 0, "Abierta") {
		t.Error("Expected a completed exchange to count as success regardless of response code")
	}
}

func TestPostStatusTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := NewClient(server.URL)
	if client.PostStatus(context.Background(), 0, "Cerrada") {
		t.Error("Expected transport failure to report false")
	}
}

func TestPostStatusDisabledClient(t *testing.T) {
	client := NewClient("")
	if client.PostStatus(context.Background(), 0, "Cerrada") {
		t.Error("Expected disabled client to report false")
	}
}

func TestPostStatusNegativeRowIndex(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	client := NewClient(server.URL)
	if client.PostStatus(context.Background(), -1, "Cerrada") {
		t.Error("Expected negative row index to be refused")
	}
	if called {
		t.Error("Expected no request for a negative row index")
	}
}
