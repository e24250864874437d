package carrier

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/avigneron/cavebox-backend/pkg/enums"
	pkgerrors "github.com/avigneron/cavebox-backend/pkg/errors"
)

func TestNewClientRequiresAPIKey(t *testing.T) {
	if _, err := NewClient("  ", "https://carrier.example.com"); err == nil {
		t.Fatal("expected error for blank api key")
	}
}

func TestCreateLabel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/labels" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Fatalf("unexpected auth header %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"tracking_number":"CHR123456789","label_url":"https://labels.example.com/CHR123456789.pdf"}`))
	}))
	defer server.Close()

	client, err := NewClient("test-key", server.URL)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	label, err := client.CreateLabel(context.Background(), LabelRequest{
		Carrier:     enums.CarrierChronopost,
		ShipmentRef: "shp-1",
		Recipient: LabelRecipient{
			Name:       "Alice Martin",
			Line1:      "12 rue des Vignes",
			City:       "Bordeaux",
			PostalCode: "33000",
			Country:    "FR",
		},
		BottleCount: 3,
	})
	if err != nil {
		t.Fatalf("create label: %v", err)
	}
	if label.TrackingNumber != "CHR123456789" {
		t.Fatalf("unexpected tracking number %q", label.TrackingNumber)
	}
}

func TestCreateLabelValidation(t *testing.T) {
	client, err := NewClient("test-key", "https://carrier.example.com")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	_, err = client.CreateLabel(context.Background(), LabelRequest{Carrier: enums.Carrier("pigeon"), ShipmentRef: "shp-1"})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreateLabelUpstreamFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client, err := NewClient("test-key", server.URL)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	_, err = client.CreateLabel(context.Background(), LabelRequest{Carrier: enums.CarrierUPS, ShipmentRef: "shp-1"})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestGetTracking(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tracking/colissimo/COL987" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"in_transit","location":"Lyon Hub","updates":[{"status":"shipped","location":"Bordeaux","timestamp":"2026-03-02T10:00:00Z"}]}`))
	}))
	defer server.Close()

	client, err := NewClient("test-key", server.URL)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	info, err := client.GetTracking(context.Background(), enums.CarrierColissimo, "COL987")
	if err != nil {
		t.Fatalf("get tracking: %v", err)
	}
	if info.Status != "in_transit" {
		t.Fatalf("unexpected status %q", info.Status)
	}
	if len(info.Updates) != 1 || info.Updates[0].Location != "Bordeaux" {
		t.Fatalf("unexpected updates %+v", info.Updates)
	}
}

func TestGetTrackingRequiresNumber(t *testing.T) {
	client, err := NewClient("test-key", "https://carrier.example.com")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	_, err = client.GetTracking(context.Background(), enums.CarrierDHL, "   ")
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestGetTrackingRetriesTransientFailure(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"out_for_delivery"}`))
	}))
	defer server.Close()

	client, err := NewClient("test-key", server.URL)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	info, err := client.GetTracking(context.Background(), enums.CarrierUPS, "UPS555")
	if err != nil {
		t.Fatalf("get tracking: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected one retry, got %d calls", calls)
	}
	if info.Status != "out_for_delivery" {
		t.Fatalf("unexpected status %q", info.Status)
	}
}

func TestGetTrackingDoesNotRetryClientError(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client, err := NewClient("test-key", server.URL)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	_, err = client.GetTracking(context.Background(), enums.CarrierChronopost, "CHR000")
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected no retry on 404, got %d calls", calls)
	}
}
